package api

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized covers 401 and 403: the token is wrong or lacks
	// access to the graph. Never retried.
	ErrUnauthorized = errors.New("api: unauthorized")

	// ErrRateLimited is a 429. Retryable after a pause.
	ErrRateLimited = errors.New("api: rate limited")

	// ErrNotFound is a 404, typically a page that does not exist yet.
	ErrNotFound = errors.New("api: not found")
)

// Error is any non-2xx response that does not map to a sentinel above.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api: status %d", e.Status)
	}
	return fmt.Sprintf("api: status %d: %s", e.Status, e.Message)
}

// Transient reports whether the error is worth retrying: rate limits,
// server-side failures, and transport errors. Auth and other client
// errors are permanent.
func Transient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	if errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrNotFound) {
		return false
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Status >= 500
	}
	// Anything else is a transport-level failure.
	return true
}

func statusError(status int, message string) error {
	switch status {
	case 401, 403:
		return fmt.Errorf("%w: %s", ErrUnauthorized, message)
	case 404:
		return fmt.Errorf("%w: %s", ErrNotFound, message)
	case 429:
		return ErrRateLimited
	default:
		return &Error{Status: status, Message: message}
	}
}
