package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"rhizome/internal/markdown"
	"rhizome/internal/tree"
)

func (m appModel) View() string {
	if !m.seenWindowSize {
		return ""
	}
	if m.err != nil {
		return m.errorScreen()
	}
	if m.showHelp {
		return m.helpScreen()
	}

	var b strings.Builder
	b.WriteString(m.headerLine())
	b.WriteString("\n\n")

	body := m.bodyHeight()
	start := m.offset
	if start > len(m.rows) {
		start = len(m.rows)
	}
	end := start + body
	if end > len(m.rows) {
		end = len(m.rows)
	}
	for i := start; i < end; i++ {
		b.WriteString(m.renderRow(m.rows[i], i == m.cursor))
		b.WriteString("\n")
	}
	for i := end - start; i < body; i++ {
		b.WriteString("\n")
	}

	switch m.mode {
	case modeSearch:
		b.WriteString(m.searchOverlay())
	case modeAutocomplete:
		b.WriteString(m.autocompleteOverlay())
	case modeSlash:
		b.WriteString(m.slashOverlay())
	case modeLinkPicker:
		b.WriteString(m.linkPickerOverlay())
	default:
		b.WriteString(m.statusLine())
	}
	return b.String()
}

func (m appModel) headerLine() string {
	title := m.pageUID
	if p, ok := m.tree.Page(m.pageUID); ok && p.Title != "" {
		title = p.Title
	}
	head := styleTitle.Render(title)
	if m.loading {
		head += " " + m.spin.View()
	}
	return ansi.Truncate(head, max(1, m.width), "…")
}

func (m appModel) renderRow(r tree.Row, selected bool) string {
	indent := strings.Repeat("  ", r.Depth)

	bullet := "•"
	if r.HasChildren && r.Block.Collapsed {
		bullet = "▸"
	}

	editing := m.session != nil && m.session.UID() == r.Block.UID
	var text string
	switch {
	case editing:
		text = m.renderSessionText()
	default:
		text = m.renderBlockText(r.Block.Text)
	}

	dirtyMark := " "
	if r.Block.Dirty && !editing {
		dirtyMark = styleDirty.Render("~")
	}

	line := fmt.Sprintf("%s%s %s%s", indent, styleBullet.Render(bullet), text, dirtyMark)
	line = ansi.Truncate(line, max(1, m.width), "…")
	if selected && !editing {
		return styleSelected.Render(line)
	}
	return line
}

// renderBlockText applies todo decoration and resolves ((uid)) tokens.
func (m appModel) renderBlockText(text string) string {
	resolve := func(uid string) (string, bool) { return m.resolveDisplay(uid) }
	switch markdown.Todo(text) {
	case markdown.TodoOpen:
		return styleTodoTag.Render("[ ] ") + markdown.DisplayText(markdown.StripTodo(text), resolve)
	case markdown.TodoDone:
		return styleTodoTag.Render("[x] ") + styleDone.Render(markdown.DisplayText(markdown.StripTodo(text), resolve))
	default:
		return markdown.DisplayText(text, resolve)
	}
}

// renderSessionText shows the raw buffer with a visible cursor; markup
// stays unexpanded while editing so the user sees what they typed.
func (m appModel) renderSessionText() string {
	rs := []rune(m.session.Text())
	c := m.session.Cursor()
	if c >= len(rs) {
		return string(rs) + styleCursor.Render(" ")
	}
	return string(rs[:c]) + styleCursor.Render(string(rs[c])) + string(rs[c+1:])
}

func (m appModel) statusLine() string {
	parts := []string{styleStatusMode.Render(m.mode.String())}

	if n := m.eng.PendingCount(); n > 0 {
		parts = append(parts, fmt.Sprintf("%d pending", n))
	}
	if n := m.eng.FailedCount(); n > 0 {
		parts = append(parts, styleError.Render(fmt.Sprintf("%d failed", n)))
	}
	if n := m.tree.DirtyCount(); n > 0 {
		parts = append(parts, styleDirty.Render(fmt.Sprintf("%d unsynced", n)))
	}
	if undo, _ := m.hist.Depths(); undo > 0 {
		parts = append(parts, fmt.Sprintf("undo %d", undo))
	}
	if m.status != "" {
		parts = append(parts, m.status)
	} else {
		parts = append(parts, "? help")
	}
	return ansi.Truncate(styleStatusBar.Render(strings.Join(parts, "  ")), max(1, m.width), "…")
}

func (m appModel) searchOverlay() string {
	var b strings.Builder
	b.WriteString(m.searchInput.View())
	b.WriteString("\n")
	for i, c := range m.searchResults {
		if i >= 8 {
			break
		}
		line := ansi.Truncate(markdown.StripTodo(c.Text), max(1, m.width-4), "…")
		if i == m.searchSel {
			line = styleSelected.Render("> " + line)
		} else {
			line = "  " + line
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return styleOverlayBox.Render(b.String())
}

func (m appModel) autocompleteOverlay() string {
	var b strings.Builder
	b.WriteString(styleStatusMode.Render("link block"))
	b.WriteString("\n")
	if len(m.acResults) == 0 {
		b.WriteString(faintIfDark(lipgloss.NewStyle().Foreground(colorMuted)).Render("no matches"))
	}
	for i, c := range m.acResults {
		if i >= 8 {
			break
		}
		line := ansi.Truncate(markdown.StripTodo(c.Text), max(1, m.width-4), "…")
		if i == m.acSel {
			line = styleSelected.Render("> " + line)
		} else {
			line = "  " + line
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return styleOverlayBox.Render(b.String())
}

func (m appModel) errorScreen() string {
	msg := styleError.Render("authorization failed") + "\n\n" +
		m.err.Error() + "\n\n" +
		"Check ROAM_API_TOKEN and the graph name, then restart.\n" +
		styleStatusBar.Render("q to quit")
	return styleOverlayBox.Render(msg)
}

func (m appModel) slashOverlay() string {
	var b strings.Builder
	b.WriteString(styleStatusMode.Render("slash command"))
	b.WriteString("\n")
	if len(m.slashResults) == 0 {
		b.WriteString(faintIfDark(lipgloss.NewStyle().Foreground(colorMuted)).Render("no matches"))
	}
	for i, c := range m.slashResults {
		if i >= 8 {
			break
		}
		line := ansi.Truncate(fmt.Sprintf("%-13s %s", c.Name, c.Desc), max(1, m.width-4), "…")
		if i == m.slashSel {
			line = styleSelected.Render("> " + line)
		} else {
			line = "  " + line
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return styleOverlayBox.Render(b.String())
}

func (m appModel) linkPickerOverlay() string {
	var b strings.Builder
	b.WriteString(styleStatusMode.Render("follow link"))
	b.WriteString("\n")
	for i, title := range m.linkResults {
		if i >= 8 {
			break
		}
		line := ansi.Truncate(title, max(1, m.width-4), "…")
		if i == m.linkSel {
			line = styleSelected.Render("> " + line)
		} else {
			line = "  " + line
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return styleOverlayBox.Render(b.String())
}
