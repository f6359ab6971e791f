// Package sentinel holds the infrastructure errors stores and clients return,
// optionally wrapped. The HTTP layer maps them to response codes through
// pkg/domain-errors.
package sentinel

import "errors"

var (
	// ErrNotFound: the run or record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict: another holder owns the resource, e.g. the cycle lock.
	ErrConflict = errors.New("conflict")
	// ErrInvalidState: the run is in the wrong state, e.g. already finished.
	ErrInvalidState = errors.New("invalid state")
	// ErrUnavailable: a remote host or dependency is failing.
	ErrUnavailable = errors.New("unavailable")
)
