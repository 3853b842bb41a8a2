package model

import "time"

// ExecutionStatus is the lifecycle state of an execution.
type ExecutionStatus string

const (
	// StatusRunning is the initial state of every execution.
	StatusRunning ExecutionStatus = "running"
	// StatusCompleted means the engine processed every critical URL it started,
	// regardless of how many issues were found.
	StatusCompleted ExecutionStatus = "completed"
	// StatusFailed means a systemic error prevented the run from finishing.
	StatusFailed ExecutionStatus = "failed"
)

// IsTerminal reports whether the status can no longer change.
func (s ExecutionStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Counters are the aggregate results of an execution.
// They only grow while the execution runs and are frozen once it is terminal.
type Counters struct {
	URLsChecked     int `json:"urls_checked"`
	LinksFound      int `json:"links_found"`
	LinksBroken     int `json:"links_broken"`
	URLsNew         int `json:"urls_new"`
	AlertsGenerated int `json:"alerts_generated"`
}

// Execution is one run of a scout.
//
// Invariant: CompletedAt is set if and only if Status is terminal.
type Execution struct {
	// ID is the unique execution identifier.
	ID string `json:"execution_id"`

	// ScoutID is the scout this execution ran for.
	ScoutID string `json:"scout_id"`

	// Domain is the monitored domain at the time of the run.
	Domain string `json:"domain"`

	// SpecVersion is the version of the validation rules used for the run.
	SpecVersion string `json:"spec_version"`

	// Status is the lifecycle state.
	Status ExecutionStatus `json:"status"`

	// StartedAt is when the execution record was opened.
	StartedAt time.Time `json:"started_at"`

	// CompletedAt is when the execution reached a terminal state.
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Error describes why a failed execution failed.
	Error string `json:"error,omitempty"`

	Counters
}

// ExecutionResult is what a run returns to its caller.
type ExecutionResult struct {
	ExecutionID string          `json:"execution_id"`
	ScoutID     string          `json:"scout_id"`
	Domain      string          `json:"domain"`
	Status      ExecutionStatus `json:"status"`
	StartedAt   time.Time       `json:"started_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	Error       string          `json:"error,omitempty"`

	Counters
}

// Result converts an execution record into an ExecutionResult.
func (e *Execution) Result() *ExecutionResult {
	return &ExecutionResult{
		ExecutionID: e.ID,
		ScoutID:     e.ScoutID,
		Domain:      e.Domain,
		Status:      e.Status,
		StartedAt:   e.StartedAt,
		CompletedAt: e.CompletedAt,
		Error:       e.Error,
		Counters:    e.Counters,
	}
}

// Duration returns how long the execution ran. Zero while it is still running.
func (e *Execution) Duration() time.Duration {
	if e.CompletedAt == nil {
		return 0
	}
	return e.CompletedAt.Sub(e.StartedAt)
}
