package backend

import (
	"errors"
	"fmt"
)

// ErrTaskNotFound is returned when the backend no longer knows a task.
var ErrTaskNotFound = errors.New("task not found")

// HTTPError is a non-2xx response. Detail carries the backend's error
// message when it sent one.
type HTTPError struct {
	Method     string
	Path       string
	StatusCode int
	Detail     string
}

func (e *HTTPError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s %s: HTTP %d", e.Method, e.Path, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: HTTP %d: %s", e.Method, e.Path, e.StatusCode, e.Detail)
}

// ValidationError is a response that decoded but violates the expected
// shape.
type ValidationError struct {
	Endpoint string
	Field    string
	Reason   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid response from %s: %s: %s", e.Endpoint, e.Field, e.Reason)
}
