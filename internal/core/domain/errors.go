package domain

import (
	"errors"
	"fmt"
)

var (
	ErrValidation      = errors.New("validation failed")
	ErrStaleQuestion   = errors.New("question is no longer current")
	ErrDuplicateVote   = errors.New("participant has already voted on this question")
	ErrConflict        = errors.New("concurrent update conflict")
	ErrPollNotFound    = errors.New("poll not found")
	ErrPermission      = errors.New("permission denied")
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrPollLocked      = errors.New("poll questions cannot change once the poll is live")
	ErrRateLimited     = errors.New("rate limit exceeded")
	ErrInvalidPollID   = errors.New("invalid poll id")
	ErrInternal        = errors.New("internal server error")

	// ErrPollNotLive is a stale-question rejection: the client should refresh.
	ErrPollNotLive = fmt.Errorf("%w: poll is not live", ErrStaleQuestion)
)

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return e.Field + ": " + e.Reason
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
