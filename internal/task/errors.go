package task

import (
	"errors"
	"fmt"
)

var (
	// ErrPollLimitExceeded marks a task abandoned after too many polls or too
	// much elapsed time.
	ErrPollLimitExceeded = errors.New("poll limit exceeded")

	// ErrStale is returned by Submit when the submission was cancelled or
	// replaced before the backend answered.
	ErrStale = errors.New("submission cancelled or superseded")

	// ErrClosed is returned by Submit after Close.
	ErrClosed = errors.New("controller closed")
)

// SubmissionError means the backend did not accept the job. The controller
// stays Idle.
type SubmissionError struct {
	Reason string
	Err    error
}

func (e *SubmissionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("submit analysis: %s: %v", e.Reason, e.Err)
	}
	return "submit analysis: " + e.Reason
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// TransientPollError is a status request that failed in transport. Polling
// continues.
type TransientPollError struct {
	Ref     Ref
	Attempt int
	Err     error
}

func (e *TransientPollError) Error() string {
	return fmt.Sprintf("poll %s (attempt %d): %v", e.Ref, e.Attempt, e.Err)
}

func (e *TransientPollError) Unwrap() error { return e.Err }

// AnalysisFailure is a terminal failure of a task, either reported by the
// backend or raised by the controller when a poll limit is hit.
type AnalysisFailure struct {
	Ref     Ref
	Message string
	Err     error
}

func (e *AnalysisFailure) Error() string {
	return fmt.Sprintf("analysis %s failed: %s", e.Ref, e.Message)
}

func (e *AnalysisFailure) Unwrap() error { return e.Err }

// asSubmissionError keeps an existing SubmissionError and wraps anything
// else.
func asSubmissionError(err error) *SubmissionError {
	var serr *SubmissionError
	if errors.As(err, &serr) {
		return serr
	}
	return &SubmissionError{Reason: "request failed", Err: err}
}
