package model

import "time"

// LinkValidation is the result of checking the reachability of one URL.
type LinkValidation struct {
	// ExecutionID is the execution that performed the check.
	ExecutionID string `json:"execution_id"`

	// URL is the absolute URL that was checked.
	URL string `json:"url"`

	// StatusCode is the final HTTP status. Zero when no response was received.
	StatusCode int `json:"status_code,omitempty"`

	// ResponseTime is the duration of the last attempt.
	ResponseTime time.Duration `json:"response_time"`

	// IsBroken is true when the request failed, timed out, or returned status >= 400.
	IsBroken bool `json:"is_broken"`

	// RedirectTarget is the final URL when the request was redirected.
	RedirectTarget string `json:"redirect_target,omitempty"`

	// Error describes why the request failed.
	Error string `json:"error,omitempty"`

	// CheckedAt is when the check finished.
	CheckedAt time.Time `json:"checked_at"`
}

// PageSnapshot is the observed state of a page at the end of a detection pass.
// Snapshots are append-only: every pass writes a new one, the latest per
// (domain, url) being the previous state for the next run.
type PageSnapshot struct {
	// Domain and URL form the snapshot key.
	Domain string `json:"domain"`
	URL    string `json:"url"`

	// ExecutionID is the execution that captured the snapshot.
	ExecutionID string `json:"execution_id"`

	// Fingerprint is the content hash of the page.
	Fingerprint string `json:"fingerprint"`

	// Links is the set of links discovered on the page, sorted.
	Links []string `json:"links"`

	// Keywords is the set of monitored keywords extracted from the page, sorted.
	Keywords []string `json:"keywords"`

	// CapturedAt is when the snapshot was taken.
	CapturedAt time.Time `json:"captured_at"`
}
