package tui

import (
	"github.com/charmbracelet/glamour"
)

const helpMarkdown = `# rhizome

## Outline
| key | action |
|-----|--------|
| j / k | move down / up |
| g / G | first / last block |
| tab | fold / unfold |
| i / a | edit block (start / end) |
| o / enter | new block below |
| O | new child block |
| dd | delete block |
| > / < | indent / outdent |
| u / ctrl+r | undo / redo |
| t | cycle TODO state |
| / | search blocks |
| f | follow [[page link]] under cursor |
| H / L | navigate back / forward |
| [ / ] / . | previous day / next day / today |
| r | refresh from server |
| R / X | retry / discard failed write |
| q | quit |

## Editing
Esc commits. Enter commits and opens a sibling. Typing ` + "`((`" + ` opens
the block-reference picker and ` + "`/`" + ` at the start of a word opens the
slash-command palette. ctrl+t cycles the TODO marker.
`

// helpScreen renders the key reference through glamour, cached after the
// first paint.
func (m appModel) helpScreen() string {
	if m.helpCache != "" {
		return m.helpCache
	}
	width := m.width
	if width < 20 || width > 100 {
		width = 80
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return helpMarkdown
	}
	out, err := r.Render(helpMarkdown)
	if err != nil {
		return helpMarkdown
	}
	return out
}
