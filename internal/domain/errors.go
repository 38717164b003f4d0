package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors used throughout the application.
// Handlers translate these to HTTP status codes via a single mapError function.
var (
	ErrNotFound         = errors.New("not found")
	ErrForbidden        = errors.New("forbidden: only the author may modify this resource")
	ErrInvalidOperation = errors.New("invalid operation")
	ErrInvalidContent   = errors.New("content must be between 1 and 4096 characters")
	ErrInvalidUsername  = errors.New("username must be between 1 and 64 characters")
	ErrQueueFull        = errors.New("queue is at capacity, try again later")
	ErrRateLimited      = errors.New("too many requests, try again later")
	ErrUnknownJobType   = errors.New("unknown job type")

	// ErrTransientJobFailure wraps handler errors that will be retried with backoff.
	ErrTransientJobFailure = errors.New("transient job failure")
	// ErrPermanentJobFailure marks a job that has been dead-lettered.
	ErrPermanentJobFailure = errors.New("permanent job failure")
)

// ErrSelfFollow is returned when a user tries to follow themselves.
var ErrSelfFollow = fmt.Errorf("%w: users cannot follow themselves", ErrInvalidOperation)

// permanentError wraps a handler error so the worker skips the remaining
// retries and dead-letters the job immediately.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

func (e *permanentError) Is(target error) bool {
	return target == ErrPermanentJobFailure
}

// Permanent marks err as non-retryable. A nil err stays nil.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was produced by Permanent.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrPermanentJobFailure)
}
