package tui

import (
	"errors"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"rhizome/internal/api"
	"rhizome/internal/editbuf"
	"rhizome/internal/history"
	"rhizome/internal/keys"
	"rhizome/internal/markdown"
	"rhizome/internal/slash"
	"rhizome/internal/syncer"
	"rhizome/internal/tree"
)

func (m appModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.searchInput.Width = max(20, msg.Width-8)
		m.seenWindowSize = true
		m.clampScroll()
		return m, nil

	case spinner.TickMsg:
		if !m.loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case pageLoadedMsg:
		return m.handlePageLoaded(msg)

	case refreshTickMsg:
		// Skip the pull while an edit session is open; the next tick
		// catches up once the user is back in normal mode.
		if m.pageUID == "" || m.mode != modeNormal {
			return m, m.refreshTick()
		}
		return m, tea.Batch(
			m.loadPage(loadRequest{uid: m.pageUID, date: m.pageDate}, true),
			m.refreshTick(),
		)

	case syncResultMsg:
		return m.handleSyncResult(msg.result)

	case blockTextMsg:
		delete(m.refPending, msg.uid)
		if msg.err == nil {
			m.refCache[msg.uid] = msg.text
		}
		return m, nil

	case statusClearMsg:
		if msg.seq == m.statusSeq {
			m.status = ""
		}
		return m, nil

	case tea.KeyMsg:
		if m.showHelp {
			m.showHelp = false
			return m, nil
		}
		switch m.mode {
		case modeInsert:
			return m.updateInsert(msg)
		case modeSearch:
			return m.updateSearch(msg)
		case modeAutocomplete:
			return m.updateAutocomplete(msg)
		case modeSlash:
			return m.updateSlash(msg)
		case modeLinkPicker:
			return m.updateLinkPicker(msg)
		default:
			return m.updateNormal(msg)
		}
	}
	return m, nil
}

func (m appModel) handlePageLoaded(msg pageLoadedMsg) (tea.Model, tea.Cmd) {
	m.loading = false
	if msg.err != nil {
		if errors.Is(msg.err, api.ErrUnauthorized) {
			m.err = msg.err
			return m, nil
		}
		return m, m.flash("load failed: " + msg.err.Error())
	}

	first := m.pageUID == ""
	switching := !msg.refresh && msg.page.UID != m.pageUID
	m.pageUID = msg.page.UID
	m.pageDate = msg.page.Date
	m.tree.LoadPage(msg.page)

	var cmds []tea.Cmd
	if (first || switching) && m.state != nil {
		if collapsed, err := m.state.LoadCollapsed(m.ctx, m.pageUID); err == nil {
			for uid := range collapsed {
				_ = m.tree.SetCollapsed(uid, true)
			}
		}
		if err := m.state.SetLastPage(m.ctx, m.pageUID); err != nil {
			m.log.Warn("persist last page", "err", err)
		}
	}
	if switching {
		m.cursor, m.offset = 0, 0
		m.hist = history.New()
	}
	m.refreshRows()
	if m.restorePending && !msg.refresh {
		m.restorePending = false
		m.cursor = min(m.restoreCursor, max(0, len(m.rows)-1))
		m.clampScroll()
	}
	cmds = append(cmds, m.missingRefCmds()...)
	return m, tea.Batch(cmds...)
}

func (m appModel) handleSyncResult(r syncer.Result) (tea.Model, tea.Cmd) {
	m.apply.settle(r)
	cmds := []tea.Cmd{m.waitSyncResult()}

	switch {
	case r.Err == nil:
		uid := r.BlockUID
		if r.NewUID != "" {
			if err := m.tree.ReplaceUID(r.BlockUID, r.NewUID); err != nil && !errors.Is(err, tree.ErrNotFound) {
				m.log.Warn("uid rewrite", "old", r.BlockUID, "new", r.NewUID, "err", err)
			}
			// The permanent uid must reach everything still holding the
			// temporary one: recorded undo/redo operations, an open edit
			// session, and a pending create's parent.
			m.hist.RewriteUID(r.BlockUID, r.NewUID)
			if m.session != nil && m.session.UID() == r.BlockUID {
				m.session.Rename(r.NewUID)
			}
			if m.createParent == r.BlockUID {
				m.createParent = r.NewUID
			}
			uid = r.NewUID
		}
		m.tree.ClearDirty(uid, r.Revision)
		if m.failed != nil && m.failed.ID == r.ID {
			m.failed = nil
		}
		m.refreshRows()

	case r.Conflict:
		cmds = append(cmds,
			m.flash("write rejected by server, refreshing"),
			m.loadPage(loadRequest{uid: m.pageUID, date: m.pageDate}, true),
		)

	default:
		if errors.Is(r.Err, api.ErrUnauthorized) {
			m.err = r.Err
		}
		m.failed = &r
		cmds = append(cmds, m.flash("sync failed: "+r.Err.Error()+"  (R retry, X discard)"))
	}
	return m, tea.Batch(cmds...)
}

func (m appModel) updateNormal(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	if m.pendingD {
		m.pendingD = false
		if key.String() == "d" {
			return m.deleteCurrent()
		}
		return m, nil
	}

	switch keys.Normal(key.String()) {
	case keys.ActionQuit:
		m.persistUIState()
		return m, tea.Quit

	case keys.ActionUp:
		if m.cursor > 0 {
			m.cursor--
		}
	case keys.ActionDown:
		if m.cursor < len(m.rows)-1 {
			m.cursor++
		}
	case keys.ActionTop:
		m.cursor = 0
	case keys.ActionBottom:
		m.cursor = len(m.rows) - 1

	case keys.ActionToggleCollapse:
		if row, ok := m.currentRow(); ok && row.HasChildren {
			op := history.ToggleCollapse{UID: row.Block.UID, Collapsed: !row.Block.Collapsed}
			if err := m.applyAndRecord(op); err != nil {
				return m, m.flash(err.Error())
			}
			m.refreshRows()
		}

	case keys.ActionEdit:
		if row, ok := m.currentRow(); ok {
			m.session = editbuf.NewSession(row.Block.UID, row.Block.Text)
			m.session.Home()
			m.mode = modeInsert
		}
	case keys.ActionEditEnd:
		if row, ok := m.currentRow(); ok {
			m.session = editbuf.NewSession(row.Block.UID, row.Block.Text)
			m.mode = modeInsert
		}

	case keys.ActionCreateBelow:
		return m.openPlaceholderSibling()
	case keys.ActionCreateChild:
		return m.openPlaceholderChild()

	case keys.ActionDeletePrefix:
		m.pendingD = true

	case keys.ActionIndent:
		return m.indentCurrent()
	case keys.ActionOutdent:
		return m.outdentCurrent()

	case keys.ActionUndo:
		if err := m.hist.Undo(m.apply); err != nil {
			return m, m.flash("undo failed: " + err.Error())
		}
		m.refreshRows()
	case keys.ActionRedo:
		if err := m.hist.Redo(m.apply); err != nil {
			return m, m.flash("redo failed: " + err.Error())
		}
		m.refreshRows()

	case keys.ActionToggleTodo:
		if row, ok := m.currentRow(); ok {
			from := markdown.Todo(row.Block.Text)
			op := history.ToggleTodo{UID: row.Block.UID, From: from, To: nextTodo(from)}
			if err := m.applyAndRecord(op); err != nil {
				return m, m.flash(err.Error())
			}
			m.refreshRows()
		}

	case keys.ActionSearch:
		m.mode = modeSearch
		m.searchInput.Reset()
		m.searchInput.Focus()
		m.searchResults = m.searchCandidates("", searchLimit)
		m.searchSel = 0

	case keys.ActionRefresh:
		m.loading = true
		return m, tea.Batch(
			m.spin.Tick,
			m.loadPage(loadRequest{uid: m.pageUID, date: m.pageDate}, true),
		)

	case keys.ActionPrevDay:
		return m.gotoDay(m.pageDate.AddDate(0, 0, -1))
	case keys.ActionNextDay:
		return m.gotoDay(m.pageDate.AddDate(0, 0, 1))
	case keys.ActionToday:
		return m.gotoDay(timeNow())

	case keys.ActionFollowLink:
		return m.followLink()
	case keys.ActionNavBack:
		return m.navBack()
	case keys.ActionNavForward:
		return m.navForward()

	case keys.ActionRetryWrite:
		if m.failed != nil {
			m.eng.Retry(m.failed.ID)
			m.failed = nil
			return m, m.flash("retrying write")
		}
	case keys.ActionDiscardWrite:
		if m.failed != nil {
			m.eng.Discard(m.failed.ID)
			m.failed = nil
			return m, m.flash("write discarded, block stays local until refresh")
		}

	case keys.ActionHelp:
		m.showHelp = true
		if m.helpCache == "" {
			m.helpCache = m.helpScreen()
		}
	}
	m.clampScroll()
	return m, nil
}

func (m appModel) updateInsert(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.session == nil {
		m.mode = modeNormal
		return m, nil
	}
	if key.Type == tea.KeyRunes || key.Type == tea.KeySpace {
		runes := key.Runes
		if key.Type == tea.KeySpace {
			runes = []rune{' '}
		}
		for _, r := range runes {
			m.session.Insert(r)
		}
		if m.session.RefTrigger() {
			m.mode = modeAutocomplete
			m.acResults = m.searchCandidates("", autocompleteLimit)
			m.acSel = 0
			return m, nil
		}
		if pos, ok := slash.Trigger(m.session); ok {
			m.mode = modeSlash
			m.slashPos = pos
			m.slashResults = slash.Filter("")
			m.slashSel = 0
		}
		return m, nil
	}

	switch keys.Insert(key.String()) {
	case keys.ActionCommit:
		return m.commitSession(false)
	case keys.ActionNewlineCommit:
		return m.commitSession(true)
	case keys.ActionCursorLeft:
		m.session.Left()
	case keys.ActionCursorRight:
		m.session.Right()
	case keys.ActionCursorHome:
		m.session.Home()
	case keys.ActionCursorEnd:
		m.session.End()
	case keys.ActionWordLeft:
		m.session.WordLeft()
	case keys.ActionWordRight:
		m.session.WordRight()
	case keys.ActionBackspace:
		m.session.Backspace()
	case keys.ActionDeleteForward:
		m.session.DeleteForward()
	case keys.ActionKillToEnd:
		m.session.KillToEnd()
	case keys.ActionInsertTodo:
		m.session.CycleTodo()
	}
	return m, nil
}

func (m appModel) updateAutocomplete(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.session == nil {
		m.mode = modeNormal
		return m, nil
	}
	switch key.String() {
	case "esc":
		m.mode = modeInsert
		return m, nil
	case "enter":
		if m.acSel < len(m.acResults) {
			c := m.acResults[m.acSel]
			if m.session.AcceptRef(c.UID) {
				m.refCache[c.UID] = c.Text
			}
		}
		m.mode = modeInsert
		return m, nil
	case "up", "ctrl+p":
		if m.acSel > 0 {
			m.acSel--
		}
		return m, nil
	case "down", "ctrl+n":
		if m.acSel < len(m.acResults)-1 {
			m.acSel++
		}
		return m, nil
	case "backspace":
		m.session.Backspace()
	default:
		if key.Type == tea.KeyRunes || key.Type == tea.KeySpace {
			runes := key.Runes
			if key.Type == tea.KeySpace {
				runes = []rune{' '}
			}
			for _, r := range runes {
				m.session.Insert(r)
			}
		} else {
			return m, nil
		}
	}

	query, _, _, ok := m.session.RefQuery()
	if !ok {
		m.mode = modeInsert
		return m, nil
	}
	m.acResults = m.searchCandidates(query, autocompleteLimit)
	if m.acSel >= len(m.acResults) {
		m.acSel = max(0, len(m.acResults)-1)
	}
	return m, nil
}

func (m appModel) updateSearch(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key.String() {
	case "esc":
		m.mode = modeNormal
		m.searchInput.Blur()
		return m, nil
	case "enter":
		if m.searchSel < len(m.searchResults) {
			m.jumpTo(m.searchResults[m.searchSel].UID)
		}
		m.mode = modeNormal
		m.searchInput.Blur()
		return m, nil
	case "up", "ctrl+p":
		if m.searchSel > 0 {
			m.searchSel--
		}
		return m, nil
	case "down", "ctrl+n":
		if m.searchSel < len(m.searchResults)-1 {
			m.searchSel++
		}
		return m, nil
	}
	var cmd tea.Cmd
	m.searchInput, cmd = m.searchInput.Update(key)
	m.searchResults = m.searchCandidates(m.searchInput.Value(), searchLimit)
	m.searchSel = 0
	return m, cmd
}

func (m appModel) updateSlash(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.session == nil {
		m.mode = modeNormal
		return m, nil
	}
	switch key.String() {
	case "esc":
		m.mode = modeInsert
		return m, nil
	case "enter", "tab":
		if m.slashSel < len(m.slashResults) {
			c := m.slashResults[m.slashSel]
			qlen := m.session.Cursor() - m.slashPos - 1
			c.Apply(m.session, m.slashPos, qlen, timeNow())
		}
		m.mode = modeInsert
		return m, nil
	case "up", "ctrl+p":
		if m.slashSel > 0 {
			m.slashSel--
		}
		return m, nil
	case "down", "ctrl+n":
		if m.slashSel < len(m.slashResults)-1 {
			m.slashSel++
		}
		return m, nil
	case "backspace":
		// Erasing the slash itself closes the palette.
		closing := m.session.Cursor() <= m.slashPos+1
		m.session.Backspace()
		if closing {
			m.mode = modeInsert
			return m, nil
		}
	default:
		if key.Type == tea.KeyRunes {
			for _, r := range key.Runes {
				m.session.Insert(r)
			}
		} else if key.Type == tea.KeySpace {
			// A space ends the token; the slash stays literal text.
			m.session.Insert(' ')
			m.mode = modeInsert
			return m, nil
		} else {
			return m, nil
		}
	}

	m.slashResults = slash.Filter(m.slashQuery())
	if m.slashSel >= len(m.slashResults) {
		m.slashSel = max(0, len(m.slashResults)-1)
	}
	return m, nil
}

// slashQuery is the text typed between the opening "/" and the cursor.
func (m appModel) slashQuery() string {
	rs := []rune(m.session.Text())
	start := m.slashPos + 1
	end := m.session.Cursor()
	if start > len(rs) || end > len(rs) || start > end {
		return ""
	}
	return string(rs[start:end])
}

func (m appModel) updateLinkPicker(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key.String() {
	case "esc":
		m.mode = modeNormal
	case "up", "ctrl+p":
		if m.linkSel > 0 {
			m.linkSel--
		}
	case "down", "ctrl+n":
		if m.linkSel < len(m.linkResults)-1 {
			m.linkSel++
		}
	case "enter":
		m.mode = modeNormal
		if m.linkSel < len(m.linkResults) {
			return m.navigateToPage(m.linkResults[m.linkSel])
		}
	}
	return m, nil
}
