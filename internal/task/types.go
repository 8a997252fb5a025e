// Package task drives long-running backend analyses: submit a job, poll its
// status on a fixed delay and surface the terminal result.
//
// A Controller owns at most one live polling loop. Every poll is tagged with
// the generation and task reference it was issued for; responses that arrive
// after a newer submission or a cancellation are discarded.
package task

import "time"

// State is the controller lifecycle state.
type State int

// Controller states.
const (
	Idle       State = iota // no task in flight
	Submitting              // waiting for the backend to accept the job
	Polling                 // job accepted, status requests scheduled
	Completed               // result available
	Failed                  // backend failure or poll limit reached
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Submitting:
		return "submitting"
	case Polling:
		return "polling"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether the state ends a task.
func (s State) Terminal() bool {
	return s == Completed || s == Failed
}

// Busy reports whether a task is in flight.
func (s State) Busy() bool {
	return s == Submitting || s == Polling
}

// Ref is the opaque task identifier issued by the backend.
type Ref string

// Params are the AEP job parameters.
type Params struct {
	ReanalysisProducts []string `json:"reanalysis_products" yaml:"reanalysis_products"`
	RegModel           string   `json:"reg_model" yaml:"reg_model"`
	TimeResolution     string   `json:"time_resolution" yaml:"time_resolution"`
}

// DefaultParams matches the backend's defaults.
func DefaultParams() Params {
	return Params{
		ReanalysisProducts: []string{"era5", "merra2"},
		RegModel:           "lin",
		TimeResolution:     "MS",
	}
}

// Result is the outcome of a completed AEP analysis.
type Result struct {
	AEPGWh          float64   `json:"aep_gwh" yaml:"aep_gwh"`
	AEPLowerGWh     float64   `json:"aep_lower" yaml:"aep_lower"`
	AEPUpperGWh     float64   `json:"aep_upper" yaml:"aep_upper"`
	AvailabilityPct float64   `json:"availability_pct" yaml:"availability_pct"`
	CurtailmentPct  float64   `json:"curtailment_pct" yaml:"curtailment_pct"`
	LTPORRatio      float64   `json:"lt_por_ratio" yaml:"lt_por_ratio"`
	R2              float64   `json:"r2" yaml:"r2"`
	NPoints         int       `json:"n_points" yaml:"n_points"`
	IterationsGWh   []float64 `json:"iterations_gwh,omitempty" yaml:"iterations_gwh,omitempty"`
}

// JobStatus is the backend-reported status of a job.
type JobStatus int

// Backend job statuses.
const (
	StatusRunning JobStatus = iota
	StatusCompleted
	StatusFailed
)

func (s JobStatus) String() string {
	switch s {
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	default:
		return "running"
	}
}

// StatusReport is one status observation. Result is set for completed jobs,
// Error for failed ones.
type StatusReport struct {
	Status JobStatus
	Result *Result
	Error  string
}

// Submission is the backend's answer to a submit. The status may already be
// terminal when the backend served the job from its cache.
type Submission struct {
	Ref    Ref
	Status StatusReport
}

// AnalysisTask is one accepted submission.
type AnalysisTask struct {
	Ref         Ref       `json:"task_id"`
	Params      Params    `json:"params"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// Snapshot is a consistent view of the controller.
type Snapshot struct {
	State     State            `json:"-"`
	Task      *AnalysisTask    `json:"task,omitempty"`
	Result    *Result          `json:"result,omitempty"`
	Failure   *AnalysisFailure `json:"-"`
	LastError error            `json:"-"`
	Attempts  int              `json:"attempts"`
}
