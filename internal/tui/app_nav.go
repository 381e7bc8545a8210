package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"rhizome/internal/history"
	"rhizome/internal/markdown"
)

const navHistoryMax = 50

// navEntry is one page visit, enough to bring the view back on
// back/forward.
type navEntry struct {
	uid    string
	date   time.Time
	cursor int
}

// pushNav records the view being left before navigating somewhere new,
// dropping any forward history like a browser would.
func (m *appModel) pushNav() {
	if m.pageUID == "" {
		return
	}
	e := navEntry{uid: m.pageUID, date: m.pageDate, cursor: m.cursor}
	m.navStack = append(m.navStack[:m.navIndex], e)
	if len(m.navStack) > navHistoryMax {
		m.navStack = m.navStack[1:]
	}
	m.navIndex = len(m.navStack)
}

// navBack steps to the previous page. The current view is saved first,
// pushed when it sits past the end of the stack or written in place when
// revisiting, so forward finds it again.
func (m appModel) navBack() (tea.Model, tea.Cmd) {
	atEnd := m.navIndex == len(m.navStack)
	if atEnd && len(m.navStack) == 0 {
		return m, nil
	}
	if !atEnd && m.navIndex == 0 {
		return m, nil
	}
	cur := navEntry{uid: m.pageUID, date: m.pageDate, cursor: m.cursor}
	if atEnd {
		m.navStack = append(m.navStack, cur)
	} else {
		m.navStack[m.navIndex] = cur
	}
	m.navIndex--
	return m.restoreNav()
}

func (m appModel) navForward() (tea.Model, tea.Cmd) {
	if m.navIndex+1 >= len(m.navStack) {
		return m, nil
	}
	m.navStack[m.navIndex] = navEntry{uid: m.pageUID, date: m.pageDate, cursor: m.cursor}
	m.navIndex++
	return m.restoreNav()
}

func (m appModel) restoreNav() (tea.Model, tea.Cmd) {
	e := m.navStack[m.navIndex]
	m.persistUIState()
	m.restoreCursor = e.cursor
	m.restorePending = true
	m.loading = true
	return m, tea.Batch(
		m.spin.Tick,
		m.loadPage(loadRequest{uid: e.uid, date: e.date}, false),
	)
}

// followLink acts on the page links of the current block: none toggles
// the fold, one navigates straight there, several open the picker.
func (m appModel) followLink() (tea.Model, tea.Cmd) {
	row, ok := m.currentRow()
	if !ok {
		return m, nil
	}
	links := markdown.PageLinks(row.Block.Text)
	switch len(links) {
	case 0:
		if !row.HasChildren {
			return m, nil
		}
		op := history.ToggleCollapse{UID: row.Block.UID, Collapsed: !row.Block.Collapsed}
		if err := m.applyAndRecord(op); err != nil {
			return m, m.flash(err.Error())
		}
		m.refreshRows()
		return m, nil
	case 1:
		return m.navigateToPage(links[0])
	default:
		m.linkResults = links
		m.linkSel = 0
		m.mode = modeLinkPicker
		return m, nil
	}
}

// navigateToPage jumps to a page by title, saving the current view on
// the nav stack first.
func (m appModel) navigateToPage(title string) (tea.Model, tea.Cmd) {
	m.persistUIState()
	m.pushNav()
	m.loading = true
	return m, tea.Batch(m.spin.Tick, m.loadNamed(title))
}
