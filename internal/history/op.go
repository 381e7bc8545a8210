// Package history records undoable operations and replays their inverses.
// Every mutation the user can trigger is captured as one Operation before
// it is applied; undo and redo go through the same Applier as the original
// edit, so replayed changes reach the sync queue like any other.
package history

import (
	"rhizome/internal/markdown"
	"rhizome/internal/model"
)

// Applier executes operations against the live document. The tui layer
// implements it on top of the block tree and the sync engine.
type Applier interface {
	SpliceText(uid string, pos int, del, ins string) error
	CreateBlock(parentUID string, block model.Block) error
	DeleteBlock(uid string) error
	MoveBlock(uid, parentUID string, order int) error
	SetCollapsed(uid string, collapsed bool) error
	SetTodo(uid string, state markdown.TodoState) error
}

// Operation is one reversible mutation. Inverse is pure: it derives the
// opposite operation from recorded fields alone, without consulting the
// tree. rewriteUID keeps recorded operations valid when the backend
// replaces a temporary block uid with a permanent one.
type Operation interface {
	Apply(a Applier) error
	Inverse() Operation
	rewriteUID(old, new string) Operation
}

func swapUID(uid, old, new string) string {
	if uid == old {
		return new
	}
	return uid
}

func rewriteBlockUID(b model.Block, old, new string) model.Block {
	b.UID = swapUID(b.UID, old, new)
	for i := range b.Children {
		b.Children[i] = rewriteBlockUID(b.Children[i], old, new)
	}
	return b
}

// InsertText inserts Text at rune offset Pos in block UID.
type InsertText struct {
	UID  string
	Pos  int
	Text string
}

func (op InsertText) Apply(a Applier) error {
	return a.SpliceText(op.UID, op.Pos, "", op.Text)
}

func (op InsertText) Inverse() Operation {
	return DeleteText{UID: op.UID, Pos: op.Pos, Text: op.Text}
}

func (op InsertText) rewriteUID(old, new string) Operation {
	op.UID = swapUID(op.UID, old, new)
	return op
}

// DeleteText removes Text at rune offset Pos in block UID. The removed
// text is recorded so the inverse can restore it.
type DeleteText struct {
	UID  string
	Pos  int
	Text string
}

func (op DeleteText) Apply(a Applier) error {
	return a.SpliceText(op.UID, op.Pos, op.Text, "")
}

func (op DeleteText) Inverse() Operation {
	return InsertText{UID: op.UID, Pos: op.Pos, Text: op.Text}
}

func (op DeleteText) rewriteUID(old, new string) Operation {
	op.UID = swapUID(op.UID, old, new)
	return op
}

// CreateBlock attaches Block (a full snapshot, children included) under
// ParentUID.
type CreateBlock struct {
	ParentUID string
	Block     model.Block
}

func (op CreateBlock) Apply(a Applier) error {
	return a.CreateBlock(op.ParentUID, op.Block)
}

func (op CreateBlock) Inverse() Operation {
	return DeleteBlock{UID: op.Block.UID, ParentUID: op.ParentUID, Snapshot: op.Block}
}

func (op CreateBlock) rewriteUID(old, new string) Operation {
	op.ParentUID = swapUID(op.ParentUID, old, new)
	op.Block = rewriteBlockUID(op.Block, old, new)
	return op
}

// DeleteBlock removes the subtree rooted at UID. Snapshot is the subtree
// as it stood when the operation was recorded, which is exactly what the
// inverse re-creates.
type DeleteBlock struct {
	UID       string
	ParentUID string
	Snapshot  model.Block
}

func (op DeleteBlock) Apply(a Applier) error {
	return a.DeleteBlock(op.UID)
}

func (op DeleteBlock) Inverse() Operation {
	return CreateBlock{ParentUID: op.ParentUID, Block: op.Snapshot}
}

func (op DeleteBlock) rewriteUID(old, new string) Operation {
	op.UID = swapUID(op.UID, old, new)
	op.ParentUID = swapUID(op.ParentUID, old, new)
	op.Snapshot = rewriteBlockUID(op.Snapshot, old, new)
	return op
}

// MoveBlock relocates UID from its old position to the new one. Both ends
// are recorded, so the inverse is just the reverse move.
type MoveBlock struct {
	UID       string
	OldParent string
	OldOrder  int
	NewParent string
	NewOrder  int
}

func (op MoveBlock) Apply(a Applier) error {
	return a.MoveBlock(op.UID, op.NewParent, op.NewOrder)
}

func (op MoveBlock) Inverse() Operation {
	return MoveBlock{
		UID:       op.UID,
		OldParent: op.NewParent,
		OldOrder:  op.NewOrder,
		NewParent: op.OldParent,
		NewOrder:  op.OldOrder,
	}
}

func (op MoveBlock) rewriteUID(old, new string) Operation {
	op.UID = swapUID(op.UID, old, new)
	op.OldParent = swapUID(op.OldParent, old, new)
	op.NewParent = swapUID(op.NewParent, old, new)
	return op
}

// ToggleCollapse sets a block's collapsed state.
type ToggleCollapse struct {
	UID       string
	Collapsed bool
}

func (op ToggleCollapse) Apply(a Applier) error {
	return a.SetCollapsed(op.UID, op.Collapsed)
}

func (op ToggleCollapse) Inverse() Operation {
	return ToggleCollapse{UID: op.UID, Collapsed: !op.Collapsed}
}

func (op ToggleCollapse) rewriteUID(old, new string) Operation {
	op.UID = swapUID(op.UID, old, new)
	return op
}

// ToggleTodo moves a block between todo states. Recording both ends makes
// the inverse a straight swap even though the forward gesture is a
// three-way cycle.
type ToggleTodo struct {
	UID  string
	From markdown.TodoState
	To   markdown.TodoState
}

func (op ToggleTodo) Apply(a Applier) error {
	return a.SetTodo(op.UID, op.To)
}

func (op ToggleTodo) Inverse() Operation {
	return ToggleTodo{UID: op.UID, From: op.To, To: op.From}
}

func (op ToggleTodo) rewriteUID(old, new string) Operation {
	op.UID = swapUID(op.UID, old, new)
	return op
}

// Batch groups operations that undo as one keystroke: a text commit that
// both deletes and inserts, or an outdent that moves several blocks.
type Batch []Operation

func (b Batch) Apply(a Applier) error {
	for _, op := range b {
		if err := op.Apply(a); err != nil {
			return err
		}
	}
	return nil
}

func (b Batch) Inverse() Operation {
	inv := make(Batch, 0, len(b))
	for i := len(b) - 1; i >= 0; i-- {
		inv = append(inv, b[i].Inverse())
	}
	return inv
}

func (b Batch) rewriteUID(old, new string) Operation {
	out := make(Batch, len(b))
	for i, op := range b {
		out[i] = op.rewriteUID(old, new)
	}
	return out
}
