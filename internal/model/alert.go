package model

import "time"

// AlertType identifies the reason an alert was raised.
// Together with the URL it forms the deduplication key of an alert within one execution.
type AlertType string

const (
	// AlertTypeLinkFailure is raised when a URL is unreachable or answers with status >= 400.
	AlertTypeLinkFailure AlertType = "link_failure"
	// AlertTypeURLNew is raised when a link appears that was not in the previous snapshot.
	AlertTypeURLNew AlertType = "url_new"
	// AlertTypeURLRemoved is raised when a link of the previous snapshot disappeared.
	AlertTypeURLRemoved AlertType = "url_removed"
	// AlertTypeContentChange is raised when the monitored content of a page changed.
	AlertTypeContentChange AlertType = "content_change"
)

// Alert is a deduplicated, severity-classified issue detected during an execution.
// An alert is only ever mutated to record a successful notification.
type Alert struct {
	// ID is the store-assigned identifier. Zero until persisted.
	ID int64 `json:"id,omitempty"`

	// ExecutionID is the execution that raised the alert.
	ExecutionID string `json:"execution_id"`

	// Type is the reason the alert was raised.
	Type AlertType `json:"alert_type"`

	// Severity is the highest severity among the findings merged into this alert.
	Severity Severity `json:"severity"`

	// URL is the affected URL. Empty when the alert is not tied to a URL.
	URL string `json:"url,omitempty"`

	// Message is a human-readable description of the issue.
	Message string `json:"message"`

	// Notified is true once the notification channel accepted the alert.
	Notified bool `json:"notified"`

	// NotifiedAt is when the notification channel accepted the alert.
	NotifiedAt *time.Time `json:"notified_at,omitempty"`

	// CreatedAt is when the alert was persisted.
	CreatedAt time.Time `json:"created_at"`
}

// AlertInfo contains the human-facing description of an alert type.
type AlertInfo struct {
	Title          string
	Recommendation string
}

// alertInfoMapping maps alert types to their descriptions.
// Severity is not part of the mapping: it depends on where the issue was found.
var alertInfoMapping = map[AlertType]AlertInfo{
	AlertTypeLinkFailure: {
		Title:          "Broken link",
		Recommendation: "Check that the page is deployed and reachable. A failure on a checkout or contact path blocks customers.",
	},
	AlertTypeURLNew: {
		Title:          "New URL",
		Recommendation: "Confirm the new page or link is intended.",
	},
	AlertTypeURLRemoved: {
		Title:          "Removed URL",
		Recommendation: "Confirm the link was removed on purpose and that no navigation path still depends on it.",
	},
	AlertTypeContentChange: {
		Title:          "Content change",
		Recommendation: "Review the changed keywords. Price or contact changes should match what was approved.",
	},
}

// GetAlertInfo returns the description for an alert type.
// Unknown types get a generic description.
func GetAlertInfo(alertType AlertType) AlertInfo {
	if info, ok := alertInfoMapping[alertType]; ok {
		return info
	}
	return AlertInfo{
		Title:          "Unknown issue",
		Recommendation: "Investigate the alert manually.",
	}
}
