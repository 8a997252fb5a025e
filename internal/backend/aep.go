package backend

import (
	"context"
	"errors"

	"github.com/user/wind_analyzer_go/internal/task"
)

// AEPJobs adapts the client to task.Backend.
type AEPJobs struct {
	Client *Client
}

var _ task.Backend = AEPJobs{}

// SubmitJob submits an AEP analysis. HTTP and validation failures are
// reported as *task.SubmissionError.
func (j AEPJobs) SubmitJob(ctx context.Context, params task.Params) (task.Submission, error) {
	sub, err := j.Client.SubmitAEP(ctx, params)
	if err == nil {
		return sub, nil
	}
	var herr *HTTPError
	var verr *ValidationError
	switch {
	case errors.As(err, &herr):
		return sub, &task.SubmissionError{Reason: "backend rejected analysis", Err: err}
	case errors.As(err, &verr):
		return sub, &task.SubmissionError{Reason: "malformed submission response", Err: err}
	default:
		return sub, &task.SubmissionError{Reason: "backend unreachable", Err: err}
	}
}

// JobStatus polls the job. A task the backend has forgotten (for example
// after a restart) can never complete, so it is reported as failed rather
// than as a transport error.
func (j AEPJobs) JobStatus(ctx context.Context, ref task.Ref) (task.StatusReport, error) {
	report, err := j.Client.AEPStatus(ctx, ref)
	if errors.Is(err, ErrTaskNotFound) {
		return task.StatusReport{Status: task.StatusFailed, Error: "task not found on backend"}, nil
	}
	return report, err
}
