package engine

import "errors"

// Local, non-retryable failures reported synchronously to the caller.
var (
	ErrNotAuthenticated  = errors.New("not authenticated")
	ErrNotFound          = errors.New("hazard not found")
	ErrDuplicateVote     = errors.New("already voted on this hazard")
	ErrUnknownHazardType = errors.New("unknown hazard type")
	ErrValidationFailed  = errors.New("validation failed")
	ErrUserNotFound      = errors.New("user not found")
	ErrInvalidSortKey    = errors.New("invalid sort key")
)
