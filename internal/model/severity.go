package model

import (
	"fmt"
	"strings"
)

// Severity represents how much an alert matters to the owner of a domain.
// Severities are ordered: info < minor < relevant < critical.
type Severity int

const (
	// SeverityInfo indicates an observation that needs no action.
	// Example: a new URL appeared on a monitored page.
	SeverityInfo Severity = iota

	// SeverityMinor indicates a change that is probably harmless.
	// Example: page wording changed without touching monitored keywords.
	SeverityMinor

	// SeverityRelevant indicates a change or failure worth reviewing.
	// Example: a non-critical link is broken, an expected keyword disappeared.
	SeverityRelevant

	// SeverityCritical indicates a change that likely impacts users or revenue.
	// Example: the checkout page is unreachable, a price changed.
	SeverityCritical
)

// String returns the lower-case name of the severity as stored and notified.
func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityMinor:
		return "minor"
	case SeverityRelevant:
		return "relevant"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// ParseSeverity converts a severity name into a Severity. Matching is case-insensitive.
func ParseSeverity(s string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "info":
		return SeverityInfo, nil
	case "minor":
		return SeverityMinor, nil
	case "relevant":
		return SeverityRelevant, nil
	case "critical":
		return SeverityCritical, nil
	default:
		return SeverityInfo, fmt.Errorf("unknown severity %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Severity) UnmarshalText(text []byte) error {
	parsed, err := ParseSeverity(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// MaxSeverity returns the higher of two severities.
func MaxSeverity(a, b Severity) Severity {
	if a > b {
		return a
	}
	return b
}

// ImpactLevel is the classification of a semantic content change.
// It is a subset of Severity: content changes are never merely informational.
type ImpactLevel int

const (
	// ImpactMinor means the page changed but no monitored keyword was affected.
	ImpactMinor ImpactLevel = iota
	// ImpactRelevant means an expected keyword is no longer present.
	ImpactRelevant
	// ImpactCritical means a sensitive keyword (price, contact method) changed.
	ImpactCritical
)

// String returns the lower-case name of the impact level.
func (l ImpactLevel) String() string {
	switch l {
	case ImpactMinor:
		return "minor"
	case ImpactRelevant:
		return "relevant"
	case ImpactCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// Severity maps the impact level onto the alert severity scale.
func (l ImpactLevel) Severity() Severity {
	switch l {
	case ImpactCritical:
		return SeverityCritical
	case ImpactRelevant:
		return SeverityRelevant
	default:
		return SeverityMinor
	}
}

// ParseImpactLevel converts an impact level name into an ImpactLevel.
func ParseImpactLevel(s string) (ImpactLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "minor":
		return ImpactMinor, nil
	case "relevant":
		return ImpactRelevant, nil
	case "critical":
		return ImpactCritical, nil
	default:
		return ImpactMinor, fmt.Errorf("unknown impact level %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (l ImpactLevel) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *ImpactLevel) UnmarshalText(text []byte) error {
	parsed, err := ParseImpactLevel(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}
