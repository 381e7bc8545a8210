package history

import (
	"testing"

	"rhizome/internal/markdown"
	"rhizome/internal/model"
	"rhizome/internal/tree"
)

// treeApplier drives operations against a real block tree, the same way
// the tui wires them up.
type treeApplier struct {
	t *tree.Tree
}

func (a *treeApplier) SpliceText(uid string, pos int, del, ins string) error {
	b, ok := a.t.Block(uid)
	if !ok {
		return tree.ErrNotFound
	}
	rs := []rune(b.Text)
	end := pos + len([]rune(del))
	next := string(rs[:pos]) + ins + string(rs[end:])
	return a.t.SetText(uid, next)
}

func (a *treeApplier) CreateBlock(parentUID string, b model.Block) error {
	return a.t.Insert(parentUID, b)
}

func (a *treeApplier) DeleteBlock(uid string) error {
	_, err := a.t.Delete(uid)
	return err
}

func (a *treeApplier) MoveBlock(uid, parentUID string, order int) error {
	_, _, err := a.t.Move(uid, parentUID, order)
	return err
}

func (a *treeApplier) SetCollapsed(uid string, collapsed bool) error {
	return a.t.SetCollapsed(uid, collapsed)
}

func (a *treeApplier) SetTodo(uid string, state markdown.TodoState) error {
	b, ok := a.t.Block(uid)
	if !ok {
		return tree.ErrNotFound
	}
	text := markdown.StripTodo(b.Text)
	switch state {
	case markdown.TodoOpen:
		text = markdown.TodoMarker + text
	case markdown.TodoDone:
		text = markdown.DoneMarker + text
	}
	return a.t.SetText(uid, text)
}

func newFixture() (*tree.Tree, *treeApplier) {
	tr := tree.New()
	tr.LoadPage(model.Page{
		UID:   "p",
		Title: "P",
		Blocks: []model.Block{
			{UID: "a", Text: "alpha", Order: 0, Children: []model.Block{
				{UID: "a1", Text: "nested", Order: 0},
			}},
			{UID: "b", Text: "beta", Order: 1},
		},
	})
	return tr, &treeApplier{t: tr}
}

func flatUIDs(tr *tree.Tree) []string {
	var out []string
	for _, r := range tr.FlattenVisible("p") {
		out = append(out, r.Block.UID)
	}
	return out
}

func sameUIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Every operation variant must survive apply, undo, redo with the tree
// ending in the applied state and undo restoring the original exactly.
func TestUndoRedoRoundTripAllVariants(t *testing.T) {
	cases := []struct {
		name  string
		op    func(tr *tree.Tree) Operation
		check func(t *testing.T, tr *tree.Tree)
	}{
		{
			name: "insert text",
			op: func(*tree.Tree) Operation {
				return InsertText{UID: "b", Pos: 4, Text: " two"}
			},
			check: func(t *testing.T, tr *tree.Tree) {
				if b, _ := tr.Block("b"); b.Text != "beta two" {
					t.Fatalf("text=%q", b.Text)
				}
			},
		},
		{
			name: "delete text",
			op: func(*tree.Tree) Operation {
				return DeleteText{UID: "a", Pos: 0, Text: "al"}
			},
			check: func(t *testing.T, tr *tree.Tree) {
				if b, _ := tr.Block("a"); b.Text != "pha" {
					t.Fatalf("text=%q", b.Text)
				}
			},
		},
		{
			name: "create block",
			op: func(*tree.Tree) Operation {
				return CreateBlock{ParentUID: "p", Block: model.Block{UID: "n", Text: "new", Order: 2}}
			},
			check: func(t *testing.T, tr *tree.Tree) {
				if _, ok := tr.Block("n"); !ok {
					t.Fatal("block missing")
				}
			},
		},
		{
			name: "delete block with children",
			op: func(tr *tree.Tree) Operation {
				snap, _ := tr.Subtree("a")
				return DeleteBlock{UID: "a", ParentUID: "p", Snapshot: snap}
			},
			check: func(t *testing.T, tr *tree.Tree) {
				if _, ok := tr.Block("a1"); ok {
					t.Fatal("descendant survived delete")
				}
			},
		},
		{
			name: "move block",
			op: func(*tree.Tree) Operation {
				return MoveBlock{UID: "b", OldParent: "p", OldOrder: 1, NewParent: "a", NewOrder: 1}
			},
			check: func(t *testing.T, tr *tree.Tree) {
				if p, _ := tr.Parent("b"); p != "a" {
					t.Fatalf("parent=%s", p)
				}
			},
		},
		{
			name: "toggle collapse",
			op: func(*tree.Tree) Operation {
				return ToggleCollapse{UID: "a", Collapsed: true}
			},
			check: func(t *testing.T, tr *tree.Tree) {
				if b, _ := tr.Block("a"); !b.Collapsed {
					t.Fatal("not collapsed")
				}
			},
		},
		{
			name: "toggle todo",
			op: func(*tree.Tree) Operation {
				return ToggleTodo{UID: "b", From: markdown.TodoNone, To: markdown.TodoOpen}
			},
			check: func(t *testing.T, tr *tree.Tree) {
				if b, _ := tr.Block("b"); markdown.Todo(b.Text) != markdown.TodoOpen {
					t.Fatalf("text=%q", b.Text)
				}
			},
		},
		{
			name: "batch",
			op: func(*tree.Tree) Operation {
				return Batch{
					DeleteText{UID: "b", Pos: 0, Text: "beta"},
					InsertText{UID: "b", Pos: 0, Text: "brand new"},
				}
			},
			check: func(t *testing.T, tr *tree.Tree) {
				if b, _ := tr.Block("b"); b.Text != "brand new" {
					t.Fatalf("text=%q", b.Text)
				}
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tr, app := newFixture()
			beforeUIDs := flatUIDs(tr)
			beforeA, _ := tr.Block("a")
			beforeB, _ := tr.Block("b")

			h := New()
			op := tc.op(tr)
			if err := op.Apply(app); err != nil {
				t.Fatal(err)
			}
			h.Record(op)
			tc.check(t, tr)

			if err := h.Undo(app); err != nil {
				t.Fatal(err)
			}
			if !sameUIDs(flatUIDs(tr), beforeUIDs) {
				t.Fatalf("structure after undo = %v, want %v", flatUIDs(tr), beforeUIDs)
			}
			if a, _ := tr.Block("a"); a.Text != beforeA.Text || a.Collapsed != beforeA.Collapsed {
				t.Fatalf("block a after undo = %+v", a)
			}
			if b, _ := tr.Block("b"); b.Text != beforeB.Text {
				t.Fatalf("block b after undo = %+v", b)
			}

			if err := h.Redo(app); err != nil {
				t.Fatal(err)
			}
			tc.check(t, tr)
		})
	}
}

func TestRecordClearsRedo(t *testing.T) {
	_, app := newFixture()
	h := New()

	op1 := InsertText{UID: "b", Pos: 4, Text: "!"}
	if err := op1.Apply(app); err != nil {
		t.Fatal(err)
	}
	h.Record(op1)
	if err := h.Undo(app); err != nil {
		t.Fatal(err)
	}
	if !h.CanRedo() {
		t.Fatal("redo should be available after undo")
	}

	op2 := InsertText{UID: "b", Pos: 0, Text: "x "}
	if err := op2.Apply(app); err != nil {
		t.Fatal(err)
	}
	h.Record(op2)
	if h.CanRedo() {
		t.Fatal("new edit must discard the redo branch")
	}
}

func TestUndoOnEmptyIsNoop(t *testing.T) {
	_, app := newFixture()
	h := New()
	if err := h.Undo(app); err != nil {
		t.Fatal(err)
	}
	if err := h.Redo(app); err != nil {
		t.Fatal(err)
	}
}

func TestFailedUndoKeepsStacks(t *testing.T) {
	tr, app := newFixture()
	h := New()

	op := CreateBlock{ParentUID: "p", Block: model.Block{UID: "n", Text: "new", Order: 2}}
	if err := op.Apply(app); err != nil {
		t.Fatal(err)
	}
	h.Record(op)

	// Sabotage the inverse by removing the block out from under it.
	if _, err := tr.Delete("n"); err != nil {
		t.Fatal(err)
	}
	if err := h.Undo(app); err == nil {
		t.Fatal("undo should fail when target is gone")
	}
	if !h.CanUndo() {
		t.Fatal("failed undo must not pop the stack")
	}
}

func TestHistoryLimit(t *testing.T) {
	_, app := newFixture()
	h := New()
	for i := 0; i < DefaultLimit+25; i++ {
		op := InsertText{UID: "b", Pos: 0, Text: "x"}
		if err := op.Apply(app); err != nil {
			t.Fatal(err)
		}
		h.Record(op)
	}
	if undo, _ := h.Depths(); undo != DefaultLimit {
		t.Fatalf("undo depth = %d, want %d", undo, DefaultLimit)
	}
}

func TestRewriteUIDCoversBothStacks(t *testing.T) {
	tr, app := newFixture()
	h := New()

	create := CreateBlock{ParentUID: "p", Block: model.Block{UID: "tmp-1", Text: "draft", Order: 2}}
	if err := create.Apply(app); err != nil {
		t.Fatal(err)
	}
	h.Record(create)

	ins := InsertText{UID: "tmp-1", Pos: 5, Text: "!"}
	if err := ins.Apply(app); err != nil {
		t.Fatal(err)
	}
	h.Record(ins)
	if err := h.Undo(app); err != nil {
		t.Fatal(err)
	}

	// The backend confirms the create: "tmp-1" becomes "perm-7" and
	// every recorded operation must follow.
	if err := tr.ReplaceUID("tmp-1", "perm-7"); err != nil {
		t.Fatal(err)
	}
	h.RewriteUID("tmp-1", "perm-7")

	if err := h.Redo(app); err != nil {
		t.Fatalf("redo against renamed block: %v", err)
	}
	if b, _ := tr.Block("perm-7"); b.Text != "draft!" {
		t.Fatalf("text = %q", b.Text)
	}
	if err := h.Undo(app); err != nil {
		t.Fatal(err)
	}
	if err := h.Undo(app); err != nil {
		t.Fatalf("undo of rewritten create: %v", err)
	}
	if _, ok := tr.Block("perm-7"); ok {
		t.Fatal("undo must remove the renamed block")
	}
}

func TestRewriteUIDReachesNestedSnapshots(t *testing.T) {
	op := DeleteBlock{
		UID:       "x",
		ParentUID: "tmp-1",
		Snapshot: model.Block{UID: "x", Children: []model.Block{
			{UID: "tmp-1"},
		}},
	}
	got := op.rewriteUID("tmp-1", "perm-7").(DeleteBlock)
	if got.ParentUID != "perm-7" || got.Snapshot.Children[0].UID != "perm-7" {
		t.Fatalf("rewritten op = %+v", got)
	}
}
