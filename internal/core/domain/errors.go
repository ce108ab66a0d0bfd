package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrJobNotFound is returned when a job key is unknown to the state store.
	ErrJobNotFound = errors.New("job not found")

	// ErrProfileNotFound is returned when a user has no stored profile.
	ErrProfileNotFound = errors.New("profile not found")

	// ErrSearchUnavailable marks a transient platform search failure.
	// The affected tick is skipped and retried at the next interval.
	ErrSearchUnavailable = errors.New("platform search unavailable")

	// ErrGenerationFailed marks a cover-letter generation failure. Terminal
	// for the bid attempt: the job is recorded as bid_failed.
	ErrGenerationFailed = errors.New("cover letter generation failed")

	// ErrBidSubmissionFailed marks a bid submission failure or platform
	// rejection. Terminal for the job: recorded as bid_failed.
	ErrBidSubmissionFailed = errors.New("bid submission failed")
)

// ConflictError is returned when a compare-and-swap transition loses a race:
// the record was no longer in the expected state. It is surfaced to the
// caller, never silently overwritten.
type ConflictError struct {
	Key      string
	Expected State
	Actual   State
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("state conflict on %s: expected %s, found %s", e.Key, e.Expected, e.Actual)
}

// InvalidTransitionError is returned when a requested transition is not an
// edge of the lifecycle graph.
type InvalidTransitionError struct {
	Key  string
	From State
	To   State
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("transition %s -> %s is not allowed for %s", e.From, e.To, e.Key)
}

// RetryableError wraps transient persistence errors that should trigger a
// bounded-backoff retry.
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string {
	return "retryable error: " + e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// NewRetryableError creates a new retryable error.
func NewRetryableError(err error) error {
	return &RetryableError{Err: err}
}
