package syncer

import "rhizome/internal/api"

// Status tracks a pending write through its lifecycle.
type Status int

const (
	StatusQueued Status = iota
	StatusInFlight
	StatusFailed
	StatusConfirmed
)

func (s Status) String() string {
	switch s {
	case StatusQueued:
		return "queued"
	case StatusInFlight:
		return "in-flight"
	case StatusFailed:
		return "failed"
	case StatusConfirmed:
		return "confirmed"
	default:
		return "unknown"
	}
}

// Write is one queued mutation. ChainKey groups writes that must reach
// the backend in order; writes in different chains may overlap. The tui
// uses the uid of the block's top-level ancestor as the chain key, so
// edits inside one subtree never reorder.
type Write struct {
	ID       uint64
	ChainKey string
	BlockUID string
	Revision uint64
	Action   api.WriteAction

	Status   Status
	Attempts int
	Err      error
}

// Result reports the outcome of one write back to the UI loop, which is
// the only goroutine allowed to touch the block tree.
type Result struct {
	ID       uint64
	BlockUID string
	Revision uint64

	// NewUID is set when the backend assigned a permanent uid to a
	// created block; the tree entry under BlockUID must be renamed.
	NewUID string

	// Err is nil for a confirmed write. A non-nil Err with Conflict
	// false means the write is parked as failed and its chain is
	// blocked until Retry or Discard.
	Err error

	// Conflict marks a permanent rejection: the write was dropped and
	// its chain continues. The next refresh reconciles the tree.
	Conflict bool
}
