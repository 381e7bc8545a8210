package history

// DefaultLimit bounds how many operations the stack retains; the oldest
// entries fall off first.
const DefaultLimit = 500

// History is a linear undo/redo stack. Recording a new operation discards
// the redo branch, so there is always exactly one timeline.
type History struct {
	undo  []Operation
	redo  []Operation
	limit int
}

func New() *History {
	return &History{limit: DefaultLimit}
}

// Record pushes an already-applied operation onto the undo stack and
// clears any redo entries.
func (h *History) Record(op Operation) {
	h.undo = append(h.undo, op)
	if len(h.undo) > h.limit {
		h.undo = h.undo[len(h.undo)-h.limit:]
	}
	h.redo = h.redo[:0]
}

func (h *History) CanUndo() bool { return len(h.undo) > 0 }

func (h *History) CanRedo() bool { return len(h.redo) > 0 }

// Undo applies the inverse of the most recent operation. On success the
// original operation moves to the redo stack; on failure both stacks are
// left as they were, so the user can retry after the underlying problem
// clears.
func (h *History) Undo(a Applier) error {
	if len(h.undo) == 0 {
		return nil
	}
	op := h.undo[len(h.undo)-1]
	if err := op.Inverse().Apply(a); err != nil {
		return err
	}
	h.undo = h.undo[:len(h.undo)-1]
	h.redo = append(h.redo, op)
	return nil
}

// Redo re-applies the most recently undone operation.
func (h *History) Redo(a Applier) error {
	if len(h.redo) == 0 {
		return nil
	}
	op := h.redo[len(h.redo)-1]
	if err := op.Apply(a); err != nil {
		return err
	}
	h.redo = h.redo[:len(h.redo)-1]
	h.undo = append(h.undo, op)
	return nil
}

// RewriteUID replaces old with new in every recorded operation on both
// stacks. Called when a create confirms and the backend's permanent uid
// supersedes the temporary one, so that undoing or redoing an older
// operation still targets a block the tree knows.
func (h *History) RewriteUID(old, new string) {
	for i, op := range h.undo {
		h.undo[i] = op.rewriteUID(old, new)
	}
	for i, op := range h.redo {
		h.redo[i] = op.rewriteUID(old, new)
	}
}

// Depths reports the stack sizes, for the status bar.
func (h *History) Depths() (undo, redo int) {
	return len(h.undo), len(h.redo)
}
