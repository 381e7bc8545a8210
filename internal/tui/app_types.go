package tui

import (
	"time"

	"rhizome/internal/model"
	"rhizome/internal/syncer"
)

// mode is the input state machine. Exactly one mode is active; every key
// is interpreted by the active mode only.
type mode int

const (
	modeNormal mode = iota
	modeInsert
	modeSearch
	modeAutocomplete
	modeSlash
	modeLinkPicker
)

func (m mode) String() string {
	switch m {
	case modeNormal:
		return "NORMAL"
	case modeInsert:
		return "INSERT"
	case modeSearch:
		return "SEARCH"
	case modeAutocomplete:
		return "REF"
	case modeSlash:
		return "SLASH"
	case modeLinkPicker:
		return "LINK"
	default:
		return "?"
	}
}

// pageLoadedMsg carries a freshly pulled page, either the initial load of
// a page the user navigated to or a background refresh of the current one.
type pageLoadedMsg struct {
	page    model.Page
	refresh bool
	err     error
}

type refreshTickMsg struct{}

// syncResultMsg wraps one result from the sync engine.
type syncResultMsg struct {
	result syncer.Result
}

// blockTextMsg resolves one ((uid)) reference for display.
type blockTextMsg struct {
	uid  string
	text string
	err  error
}

// statusClearMsg expires a transient status-bar message.
type statusClearMsg struct{ seq int }

type loadRequest struct {
	uid  string
	date time.Time
}
