package apperr

import "errors"

var (
	// ErrNotFound is a generic sentinel for missing resources.
	ErrNotFound = errors.New("not found")
	// ErrInvalidArgument is a generic sentinel for invalid input.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrConflict marks a state-guarded update that matched zero rows.
	ErrConflict = errors.New("conflict")
	// ErrUnavailable marks an unreachable or non-2xx external collaborator.
	ErrUnavailable = errors.New("dependency unavailable")
)
