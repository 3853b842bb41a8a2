package model

import "time"

// DeltaType is the kind of structural change of a URL.
type DeltaType string

const (
	// DeltaNew means the URL was discovered now and was absent from the previous snapshot.
	DeltaNew DeltaType = "new"
	// DeltaRemoved means the URL was in the previous snapshot and is absent now.
	DeltaRemoved DeltaType = "removed"
	// DeltaModified is reserved for URLs whose target content changed.
	// Content changes are reported as SemanticDelta, so nothing produces this type.
	DeltaModified DeltaType = "modified"
)

// URLDelta records one structural change detected in an execution.
type URLDelta struct {
	ExecutionID string `json:"execution_id"`

	// PageURL is the monitored page on which the link set changed.
	PageURL string `json:"page_url"`

	// URL is the link that appeared or disappeared.
	URL string `json:"url"`

	Type DeltaType `json:"delta_type"`

	// PreviousState and CurrentState are JSON documents describing the URL before and after.
	PreviousState string `json:"previous_state,omitempty"`
	CurrentState  string `json:"current_state,omitempty"`

	DetectedAt time.Time `json:"detected_at"`
}

// SemanticDelta records a meaningful content change of a page.
type SemanticDelta struct {
	ExecutionID string `json:"execution_id"`
	URL         string `json:"url"`

	PreviousKeywords []string `json:"previous_keywords"`
	DetectedKeywords []string `json:"detected_keywords"`

	// Impact is derived from the keyword sets only.
	Impact ImpactLevel `json:"impact_level"`

	// Analysis is the verbatim output of the content analyzer. It may be empty.
	Analysis string `json:"analysis,omitempty"`

	DetectedAt time.Time `json:"detected_at"`
}
