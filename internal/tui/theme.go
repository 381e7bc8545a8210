package tui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme/palette helpers.
//
// The outline must stay readable on both light and dark terminal
// backgrounds, so every color is a lipgloss.AdaptiveColor pair. Faint
// styling is only applied on dark backgrounds; faint text on light
// terminals often becomes illegible.

func ac(light, dark string) lipgloss.AdaptiveColor {
	return lipgloss.AdaptiveColor{Light: light, Dark: dark}
}

func faintIfDark(st lipgloss.Style) lipgloss.Style {
	if lipgloss.HasDarkBackground() {
		return st.Faint(true)
	}
	return st
}

// ColorProfileName is logged at startup so rendering issues can be
// matched to the terminal's capabilities.
func ColorProfileName() string {
	switch termenv.ColorProfile() {
	case termenv.TrueColor:
		return "truecolor"
	case termenv.ANSI256:
		return "ansi256"
	case termenv.ANSI:
		return "ansi"
	default:
		return "ascii"
	}
}

var (
	colorMuted      lipgloss.TerminalColor = ac("240", "243")
	colorSelectedBg lipgloss.TerminalColor = ac("#e9e9e9", "#262626")
	colorSelectedFg lipgloss.TerminalColor = ac("235", "255")
	colorAccent     lipgloss.TerminalColor = ac("27", "62") // blue
	colorDirty      lipgloss.TerminalColor = ac("130", "179")
	colorError      lipgloss.TerminalColor = ac("124", "203")
	colorDone       lipgloss.TerminalColor = ac("28", "71")
	colorTitle      lipgloss.TerminalColor = ac("232", "255")
)

var (
	styleTitle = lipgloss.NewStyle().Bold(true).Foreground(colorTitle)

	styleBullet   = lipgloss.NewStyle().Foreground(colorMuted)
	styleSelected = lipgloss.NewStyle().Background(colorSelectedBg).Foreground(colorSelectedFg)
	styleDirty    = lipgloss.NewStyle().Foreground(colorDirty)
	styleDone     = lipgloss.NewStyle().Foreground(colorDone).Strikethrough(true)
	styleTodoTag  = lipgloss.NewStyle().Foreground(colorAccent)

	styleStatusBar  = lipgloss.NewStyle().Foreground(colorMuted)
	styleStatusMode = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
	styleError      = lipgloss.NewStyle().Foreground(colorError)

	styleOverlayBox = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorMuted).
			Padding(0, 1)

	styleCursor = lipgloss.NewStyle().Reverse(true)
)
