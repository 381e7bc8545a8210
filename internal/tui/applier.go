package tui

import (
	"context"
	"fmt"
	"log/slog"

	"rhizome/internal/api"
	"rhizome/internal/history"
	"rhizome/internal/markdown"
	"rhizome/internal/model"
	"rhizome/internal/store"
	"rhizome/internal/syncer"
	"rhizome/internal/tree"
)

// applier is the single mutation path: every operation, whether typed,
// undone, or redone, goes through here, so each one both updates the
// local tree and enqueues the matching backend write. That is what makes
// undo a first-class edit instead of a local-only rollback.
type applier struct {
	tree  *tree.Tree
	eng   *syncer.Engine
	state *store.State
	log   *slog.Logger

	// journalIDs maps engine write ids to journal rows so results can
	// settle them.
	journalIDs map[uint64]int64
}

func newApplier(tr *tree.Tree, eng *syncer.Engine, state *store.State, log *slog.Logger) *applier {
	return &applier{
		tree:       tr,
		eng:        eng,
		state:      state,
		log:        log,
		journalIDs: make(map[uint64]int64),
	}
}

func (a *applier) enqueue(chainKey, blockUID string, rev uint64, action api.WriteAction) {
	id := a.eng.Enqueue(syncer.Write{
		ChainKey: chainKey,
		BlockUID: blockUID,
		Revision: rev,
		Action:   action,
	})
	if a.state != nil {
		jid, err := a.state.JournalAppend(context.Background(), chainKey, blockUID, action)
		if err != nil {
			a.log.Warn("journal append failed", "err", err)
			return
		}
		a.journalIDs[id] = jid
	}
}

// settle closes out the journal row for a finished write.
func (a *applier) settle(r syncer.Result) {
	if a.state == nil {
		return
	}
	jid, ok := a.journalIDs[r.ID]
	if !ok {
		return
	}
	delete(a.journalIDs, r.ID)
	status, detail := "confirmed", ""
	switch {
	case r.Conflict:
		status, detail = "conflict", r.Err.Error()
	case r.Err != nil:
		status, detail = "failed", r.Err.Error()
	case r.NewUID != "":
		detail = "uid " + r.NewUID
	}
	if err := a.state.JournalSettle(context.Background(), jid, status, detail); err != nil {
		a.log.Warn("journal settle failed", "err", err)
	}
}

func (a *applier) SpliceText(uid string, pos int, del, ins string) error {
	b, ok := a.tree.Block(uid)
	if !ok {
		return tree.ErrNotFound
	}
	rs := []rune(b.Text)
	end := pos + len([]rune(del))
	if pos < 0 || end > len(rs) {
		return fmt.Errorf("tui: splice out of range on %s", uid)
	}
	next := string(rs[:pos]) + ins + string(rs[end:])
	chain := a.tree.RootOf(uid)
	if err := a.tree.SetText(uid, next); err != nil {
		return err
	}
	a.enqueue(chain, uid, a.tree.Revision(uid), api.UpdateBlock(uid, next))
	return nil
}

func (a *applier) CreateBlock(parentUID string, b model.Block) error {
	if err := a.tree.Insert(parentUID, b); err != nil {
		return err
	}
	chain := a.tree.RootOf(b.UID)
	a.enqueue(chain, b.UID, a.tree.Revision(b.UID),
		api.CreateBlock(parentUID, api.OrderIndex(b.Order), b.UID, b.Text))
	// A restored subtree (undo of a delete) recreates children too.
	a.enqueueChildren(b.UID, b.Children)
	return nil
}

func (a *applier) enqueueChildren(parentUID string, children []model.Block) {
	chain := a.tree.RootOf(parentUID)
	for _, c := range children {
		a.enqueue(chain, c.UID, a.tree.Revision(c.UID),
			api.CreateBlock(parentUID, api.OrderIndex(c.Order), c.UID, c.Text))
		a.enqueueChildren(c.UID, c.Children)
	}
}

func (a *applier) DeleteBlock(uid string) error {
	chain := a.tree.RootOf(uid)
	rev := a.tree.Revision(uid)
	if _, err := a.tree.Delete(uid); err != nil {
		return err
	}
	a.enqueue(chain, uid, rev, api.DeleteBlock(uid))
	return nil
}

func (a *applier) MoveBlock(uid, parentUID string, order int) error {
	chain := a.tree.RootOf(uid)
	if _, _, err := a.tree.Move(uid, parentUID, order); err != nil {
		return err
	}
	a.enqueue(chain, uid, a.tree.Revision(uid),
		api.MoveBlock(uid, parentUID, api.OrderIndex(order)))
	return nil
}

// SetCollapsed is local-only state; the backend's open flag is advisory
// and syncing it on every fold would be write noise.
func (a *applier) SetCollapsed(uid string, collapsed bool) error {
	return a.tree.SetCollapsed(uid, collapsed)
}

func (a *applier) SetTodo(uid string, state markdown.TodoState) error {
	b, ok := a.tree.Block(uid)
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
	chain := a.tree.RootOf(uid)
	if err := a.tree.SetText(uid, text); err != nil {
		return err
	}
	a.enqueue(chain, uid, a.tree.Revision(uid), api.UpdateBlock(uid, text))
	return nil
}

var _ history.Applier = (*applier)(nil)
