package tui

import (
	"context"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"rhizome/internal/api"
	"rhizome/internal/editbuf"
	"rhizome/internal/history"
	"rhizome/internal/markdown"
	"rhizome/internal/model"
	"rhizome/internal/tree"
)

// timeNow is swapped in tests to pin daily-note dates.
var timeNow = time.Now

func (m *appModel) currentRow() (tree.Row, bool) {
	if m.cursor < 0 || m.cursor >= len(m.rows) {
		return tree.Row{}, false
	}
	return m.rows[m.cursor], true
}

// applyAndRecord runs an operation through the shared applier and, only
// on success, records it for undo. A failed apply leaves history alone,
// so undo never replays half-applied state.
func (m *appModel) applyAndRecord(op history.Operation) error {
	if err := op.Apply(m.apply); err != nil {
		return err
	}
	m.hist.Record(op)
	return nil
}

func nextTodo(s markdown.TodoState) markdown.TodoState {
	switch s {
	case markdown.TodoNone:
		return markdown.TodoOpen
	case markdown.TodoOpen:
		return markdown.TodoDone
	default:
		return markdown.TodoNone
	}
}

// openPlaceholderSibling starts a new block under the current row's
// parent, just below it. The placeholder lives only in the local tree
// until the session commits; an abandoned empty one simply vanishes.
func (m appModel) openPlaceholderSibling() (tea.Model, tea.Cmd) {
	parent := m.pageUID
	order := 0
	if row, ok := m.currentRow(); ok {
		parent = row.PageUID
		if p, ok := m.tree.Parent(row.Block.UID); ok {
			parent = p
		}
		order = row.Block.Order + 1
	}
	return m.openPlaceholder(parent, order)
}

func (m appModel) openPlaceholderChild() (tea.Model, tea.Cmd) {
	row, ok := m.currentRow()
	if !ok {
		return m.openPlaceholderSibling()
	}
	parent := row.Block.UID
	order := m.tree.LastChildOrder(parent) + 1
	return m.openPlaceholder(parent, order)
}

func (m appModel) openPlaceholder(parent string, order int) (tea.Model, tea.Cmd) {
	if m.pageUID == "" {
		return m, nil
	}
	uid := newTempUID()
	if err := m.tree.Insert(parent, model.Block{UID: uid, Order: order}); err != nil {
		return m, m.flash(err.Error())
	}
	m.session = editbuf.NewSessionAtStart(uid)
	m.createParent = parent
	m.createOrder = order
	m.mode = modeInsert
	m.refreshRows()
	m.cursorTo(uid)
	return m, nil
}

// commitSession closes the edit buffer, turning its final text into
// operations. openNext chains straight into a new sibling placeholder,
// which is how enter-enter-enter grows a list.
func (m appModel) commitSession(openNext bool) (tea.Model, tea.Cmd) {
	s := m.session
	m.session = nil
	m.mode = modeNormal
	if s == nil {
		return m, nil
	}

	if m.createParent != "" {
		parent, order := m.createParent, m.createOrder
		m.createParent = ""
		// The placeholder never hit history or the sync queue; replace
		// it with a real recorded create, or drop it if nothing was
		// typed.
		if _, err := m.tree.Delete(s.UID()); err != nil {
			m.log.Warn("placeholder cleanup", "uid", s.UID(), "err", err)
		}
		if s.Text() == "" {
			m.refreshRows()
			return m, nil
		}
		op := history.CreateBlock{
			ParentUID: parent,
			Block:     model.Block{UID: s.UID(), Text: s.Text(), Order: order},
		}
		if err := m.applyAndRecord(op); err != nil {
			m.refreshRows()
			return m, m.flash(err.Error())
		}
		m.refreshRows()
		m.cursorTo(s.UID())
		if openNext {
			return m.openPlaceholder(parent, order+1)
		}
		return m, nil
	}

	if s.Modified() {
		if op, ok := spliceOps(s.UID(), s.Original(), s.Text()); ok {
			if err := m.applyAndRecord(op); err != nil {
				return m, m.flash(err.Error())
			}
		}
		m.refreshRows()
	}
	m.cursorTo(s.UID())
	if openNext {
		row, ok := m.currentRow()
		if !ok {
			return m, nil
		}
		parent := row.PageUID
		if p, ok := m.tree.Parent(row.Block.UID); ok {
			parent = p
		}
		return m.openPlaceholder(parent, row.Block.Order+1)
	}
	return m, nil
}

// spliceOps reduces an edit-session commit to at most one delete and one
// insert around the common prefix/suffix, so undoing a commit is one
// step.
func spliceOps(uid, before, after string) (history.Operation, bool) {
	if before == after {
		return nil, false
	}
	b, a := []rune(before), []rune(after)
	p := 0
	for p < len(b) && p < len(a) && b[p] == a[p] {
		p++
	}
	sfx := 0
	for sfx < len(b)-p && sfx < len(a)-p && b[len(b)-1-sfx] == a[len(a)-1-sfx] {
		sfx++
	}
	del := string(b[p : len(b)-sfx])
	ins := string(a[p : len(a)-sfx])

	switch {
	case del != "" && ins != "":
		return history.Batch{
			history.DeleteText{UID: uid, Pos: p, Text: del},
			history.InsertText{UID: uid, Pos: p, Text: ins},
		}, true
	case del != "":
		return history.DeleteText{UID: uid, Pos: p, Text: del}, true
	default:
		return history.InsertText{UID: uid, Pos: p, Text: ins}, true
	}
}

func (m appModel) deleteCurrent() (tea.Model, tea.Cmd) {
	row, ok := m.currentRow()
	if !ok {
		return m, nil
	}
	snap, ok := m.tree.Subtree(row.Block.UID)
	if !ok {
		return m, nil
	}
	parent := row.PageUID
	if p, ok := m.tree.Parent(row.Block.UID); ok {
		parent = p
	}
	op := history.DeleteBlock{UID: row.Block.UID, ParentUID: parent, Snapshot: snap}
	if err := m.applyAndRecord(op); err != nil {
		return m, m.flash(err.Error())
	}
	m.refreshRows()
	return m, nil
}

// indentCurrent makes the block the last child of its previous sibling.
func (m appModel) indentCurrent() (tea.Model, tea.Cmd) {
	row, ok := m.currentRow()
	if !ok {
		return m, nil
	}
	prev, ok := m.tree.PrevSibling(row.Block.UID)
	if !ok {
		return m, nil
	}
	oldParent := row.PageUID
	if p, ok := m.tree.Parent(row.Block.UID); ok {
		oldParent = p
	}
	op := history.MoveBlock{
		UID:       row.Block.UID,
		OldParent: oldParent,
		OldOrder:  row.Block.Order,
		NewParent: prev.UID,
		NewOrder:  m.tree.LastChildOrder(prev.UID) + 1,
	}
	if err := m.applyAndRecord(op); err != nil {
		return m, m.flash(err.Error())
	}
	if prev.Collapsed {
		_ = m.tree.SetCollapsed(prev.UID, false)
	}
	m.refreshRows()
	m.cursorTo(row.Block.UID)
	return m, nil
}

// outdentCurrent moves the block to its grandparent, right after its
// former parent.
func (m appModel) outdentCurrent() (tea.Model, tea.Cmd) {
	row, ok := m.currentRow()
	if !ok {
		return m, nil
	}
	parentUID, ok := m.tree.Parent(row.Block.UID)
	if !ok || parentUID == row.PageUID {
		return m, nil
	}
	grand, ok := m.tree.Parent(parentUID)
	if !ok {
		return m, nil
	}
	parent, _ := m.tree.Block(parentUID)
	op := history.MoveBlock{
		UID:       row.Block.UID,
		OldParent: parentUID,
		OldOrder:  row.Block.Order,
		NewParent: grand,
		NewOrder:  parent.Order + 1,
	}
	if err := m.applyAndRecord(op); err != nil {
		return m, m.flash(err.Error())
	}
	m.refreshRows()
	m.cursorTo(row.Block.UID)
	return m, nil
}

func (m appModel) gotoDay(date time.Time) (tea.Model, tea.Cmd) {
	m.persistUIState()
	m.pushNav()
	m.loading = true
	uid := api.DailyNoteUID(date)
	return m, tea.Batch(
		m.spin.Tick,
		m.loadPage(loadRequest{uid: uid, date: date}, false),
	)
}

func (m *appModel) cursorTo(uid string) {
	for i, r := range m.rows {
		if r.Block.UID == uid {
			m.cursor = i
			m.clampScroll()
			return
		}
	}
}

// jumpTo moves the cursor to a block, expanding collapsed ancestors so
// it is actually visible. Expansion is navigation, not an edit, so it is
// not recorded.
func (m *appModel) jumpTo(uid string) {
	cur := uid
	for {
		p, ok := m.tree.Parent(cur)
		if !ok || p == m.pageUID {
			break
		}
		_ = m.tree.SetCollapsed(p, false)
		cur = p
	}
	m.refreshRows()
	m.cursorTo(uid)
}

// searchCandidates matches loaded blocks first, then falls back to
// resolved block-ref texts from other pages.
func (m *appModel) searchCandidates(query string, limit int) []model.Candidate {
	out := m.tree.SearchBlocks(query, limit)
	if len(out) >= limit {
		return out
	}
	seen := make(map[string]bool, len(out))
	for _, c := range out {
		seen[c.UID] = true
	}
	q := strings.ToLower(query)
	for uid, text := range m.refCache {
		if len(out) >= limit {
			break
		}
		if seen[uid] || text == "" {
			continue
		}
		if q == "" || strings.Contains(strings.ToLower(text), q) {
			out = append(out, model.Candidate{UID: uid, Text: text})
		}
	}
	return out
}

// persistUIState saves the collapsed set and current page. Best effort;
// a failure costs nothing but fold state.
func (m *appModel) persistUIState() {
	if m.state == nil || m.pageUID == "" {
		return
	}
	collapsed := m.tree.CollapsedUIDs(m.pageUID)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := m.state.SaveCollapsed(ctx, m.pageUID, collapsed); err != nil {
		m.log.Warn("persist collapsed", "err", err)
	}
	if err := m.state.SetLastPage(ctx, m.pageUID); err != nil {
		m.log.Warn("persist last page", "err", err)
	}
}
