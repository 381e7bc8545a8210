// Package keys maps terminal key strings to editor actions, per mode.
// The tui layer stays free of key-string literals so bindings live in
// one place and the contract test can enumerate them.
package keys

// Action is one user-triggerable command.
type Action int

const (
	ActionNone Action = iota

	// Normal mode.
	ActionQuit
	ActionUp
	ActionDown
	ActionTop
	ActionBottom
	ActionToggleCollapse
	ActionEdit
	ActionEditEnd
	ActionCreateBelow
	ActionCreateChild
	ActionDeletePrefix
	ActionIndent
	ActionOutdent
	ActionUndo
	ActionRedo
	ActionToggleTodo
	ActionSearch
	ActionRefresh
	ActionPrevDay
	ActionNextDay
	ActionToday
	ActionFollowLink
	ActionNavBack
	ActionNavForward
	ActionRetryWrite
	ActionDiscardWrite
	ActionHelp

	// Insert mode keys that are not plain text input.
	ActionCommit
	ActionNewlineCommit
	ActionCursorLeft
	ActionCursorRight
	ActionCursorHome
	ActionCursorEnd
	ActionWordLeft
	ActionWordRight
	ActionBackspace
	ActionDeleteForward
	ActionKillToEnd
	ActionInsertTodo
)

var normal = map[string]Action{
	"q":      ActionQuit,
	"ctrl+c": ActionQuit,
	"k":      ActionUp,
	"up":     ActionUp,
	"j":      ActionDown,
	"down":   ActionDown,
	"g":      ActionTop,
	"G":      ActionBottom,
	"tab":    ActionToggleCollapse,
	"z":      ActionToggleCollapse,
	"i":      ActionEdit,
	"a":      ActionEditEnd,
	"o":      ActionCreateBelow,
	"enter":  ActionCreateBelow,
	"O":      ActionCreateChild,
	"d":      ActionDeletePrefix,
	">":      ActionIndent,
	"<":      ActionOutdent,
	"u":      ActionUndo,
	"ctrl+r": ActionRedo,
	"t":      ActionToggleTodo,
	"/":      ActionSearch,
	"r":      ActionRefresh,
	"[":      ActionPrevDay,
	"]":      ActionNextDay,
	".":      ActionToday,
	"f":      ActionFollowLink,
	"H":      ActionNavBack,
	"L":      ActionNavForward,
	"R":      ActionRetryWrite,
	"X":      ActionDiscardWrite,
	"?":      ActionHelp,
}

var insert = map[string]Action{
	"esc":        ActionCommit,
	"enter":      ActionNewlineCommit,
	"left":       ActionCursorLeft,
	"right":      ActionCursorRight,
	"home":       ActionCursorHome,
	"ctrl+a":     ActionCursorHome,
	"end":        ActionCursorEnd,
	"ctrl+e":     ActionCursorEnd,
	"alt+left":   ActionWordLeft,
	"ctrl+left":  ActionWordLeft,
	"alt+right":  ActionWordRight,
	"ctrl+right": ActionWordRight,
	"backspace":  ActionBackspace,
	"delete":     ActionDeleteForward,
	"ctrl+k":     ActionKillToEnd,
	"ctrl+t":     ActionInsertTodo,
}

// Normal resolves a key in normal mode.
func Normal(key string) Action { return normal[key] }

// Insert resolves a non-text key in insert mode; plain runes fall
// through as ActionNone and are inserted literally.
func Insert(key string) Action { return insert[key] }
