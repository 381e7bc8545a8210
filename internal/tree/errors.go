package tree

import "errors"

// Structural errors. All are rejected synchronously and leave the tree
// unchanged; callers surface them as no-ops or popups, never as crashes.
var (
	ErrNotFound     = errors.New("block not found")
	ErrCycle        = errors.New("move would place block under its own descendant")
	ErrDuplicateUID = errors.New("duplicate block uid")
	ErrIsPage       = errors.New("operation not valid on a page root")
)
