package report

import (
	"context"
	"fmt"

	"github.com/nao1215/driftwatch/internal/model"
)

// Report is an execution with the records it produced.
type Report struct {
	Execution      *model.Execution       `json:"execution"`
	Validations    []model.LinkValidation `json:"link_validations"`
	URLDeltas      []model.URLDelta       `json:"url_deltas"`
	SemanticDeltas []model.SemanticDelta  `json:"semantic_deltas"`
	Alerts         []model.Alert          `json:"alerts"`
}

// Reader is the store access Load needs.
type Reader interface {
	GetExecution(ctx context.Context, id string) (*model.Execution, error)
	ListLinkValidations(ctx context.Context, executionID string) ([]model.LinkValidation, error)
	ListURLDeltas(ctx context.Context, executionID string) ([]model.URLDelta, error)
	ListSemanticDeltas(ctx context.Context, executionID string) ([]model.SemanticDelta, error)
	ListAlerts(ctx context.Context, executionID string) ([]model.Alert, error)
}

// Load reads an execution and its records.
func Load(ctx context.Context, r Reader, executionID string) (*Report, error) {
	exec, err := r.GetExecution(ctx, executionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load execution %s: %w", executionID, err)
	}

	rep := &Report{Execution: exec}
	if rep.Validations, err = r.ListLinkValidations(ctx, executionID); err != nil {
		return nil, fmt.Errorf("failed to load link validations: %w", err)
	}
	if rep.URLDeltas, err = r.ListURLDeltas(ctx, executionID); err != nil {
		return nil, fmt.Errorf("failed to load url deltas: %w", err)
	}
	if rep.SemanticDeltas, err = r.ListSemanticDeltas(ctx, executionID); err != nil {
		return nil, fmt.Errorf("failed to load semantic deltas: %w", err)
	}
	if rep.Alerts, err = r.ListAlerts(ctx, executionID); err != nil {
		return nil, fmt.Errorf("failed to load alerts: %w", err)
	}
	return rep, nil
}

// BrokenLinks returns the validations that found a broken link.
func (r *Report) BrokenLinks() []model.LinkValidation {
	var out []model.LinkValidation
	for _, v := range r.Validations {
		if v.IsBroken {
			out = append(out, v)
		}
	}
	return out
}

// AlertsBySeverity returns the alerts of one severity.
func (r *Report) AlertsBySeverity(s model.Severity) []model.Alert {
	var out []model.Alert
	for _, a := range r.Alerts {
		if a.Severity == s {
			out = append(out, a)
		}
	}
	return out
}

// PendingAlerts counts the alerts not yet notified.
func (r *Report) PendingAlerts() int {
	n := 0
	for _, a := range r.Alerts {
		if !a.Notified {
			n++
		}
	}
	return n
}

// severitiesDesc lists severities from the most to the least severe.
var severitiesDesc = []model.Severity{
	model.SeverityCritical,
	model.SeverityRelevant,
	model.SeverityMinor,
	model.SeverityInfo,
}

// statusText returns a one-line status of the execution.
func statusText(e *model.Execution) string {
	switch e.Status {
	case model.StatusFailed:
		return "FAILED - " + e.Error
	case model.StatusRunning:
		return "RUNNING"
	default:
		return "COMPLETED"
	}
}
