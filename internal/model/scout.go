package model

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Scout is a configured monitoring target.
// The engine only reads scouts; they are created from configuration and
// mutated by enable/disable operations outside of a run.
type Scout struct {
	// ID is the stable identifier of the scout.
	ID string `json:"scout_id" yaml:"-"`

	// Name is the unique human-readable name of the scout.
	Name string `json:"name" yaml:"-"`

	// Domain is the monitored domain, e.g. "shop.example.cl".
	// A scheme may be given ("http://localhost:8080") for non-HTTPS targets.
	Domain string `json:"domain" yaml:"domain"`

	// CriticalURLs is the ordered list of relative paths checked on every run.
	CriticalURLs []string `json:"critical_urls" yaml:"critical_urls"`

	// ExpectedKeywords must stay present on the pages; losing one is a regression.
	ExpectedKeywords []string `json:"expected_keywords,omitempty" yaml:"expected_keywords"`

	// SensitiveKeywords mark values whose change is critical (prices, contact methods).
	SensitiveKeywords []string `json:"sensitive_keywords,omitempty" yaml:"sensitive_keywords"`

	// StructuralPaths are path glob patterns marking structurally critical URLs.
	// When empty the built-in checkout/contact/cart/payment patterns apply.
	StructuralPaths []string `json:"structural_paths,omitempty" yaml:"structural_paths"`

	// NotifyTo lists the recipients of alert notifications.
	NotifyTo []string `json:"notify_to,omitempty" yaml:"notify_to"`

	// Frequency is how often the scout should run: hourly, daily, weekly or a cron expression.
	Frequency string `json:"frequency" yaml:"frequency"`

	// Enabled is false when the scout must not run.
	Enabled bool `json:"enabled" yaml:"enabled"`

	// LastExecutionID is the most recent execution that reached a terminal state.
	LastExecutionID string `json:"last_execution_id,omitempty" yaml:"-"`

	CreatedAt time.Time `json:"created_at" yaml:"-"`
	UpdatedAt time.Time `json:"updated_at" yaml:"-"`
}

// BaseURL returns the scheme and host of the monitored domain.
// Domains without a scheme are assumed to be served over HTTPS.
func (s *Scout) BaseURL() string {
	domain := strings.TrimRight(strings.TrimSpace(s.Domain), "/")
	if strings.Contains(domain, "://") {
		return domain
	}
	return "https://" + domain
}

// Host returns the host part of the domain, without scheme or path.
func (s *Scout) Host() string {
	u, err := url.Parse(s.BaseURL())
	if err != nil {
		return s.Domain
	}
	return u.Host
}

// ResolveURL turns a critical path such as "/checkout" into an absolute URL.
// Absolute URLs are returned unchanged.
func (s *Scout) ResolveURL(path string) (string, error) {
	base, err := url.Parse(s.BaseURL() + "/")
	if err != nil {
		return "", fmt.Errorf("invalid domain %q: %w", s.Domain, err)
	}
	ref, err := url.Parse(strings.TrimSpace(path))
	if err != nil {
		return "", fmt.Errorf("invalid path %q: %w", path, err)
	}
	return base.ResolveReference(ref).String(), nil
}
