package config

import (
	"fmt"
	"maps"
	"net/url"
	"path"
	"slices"
	"strings"

	"github.com/nao1215/driftwatch/internal/model"
)

// ScoutConfig holds the configuration of one scout in the configuration file.
type ScoutConfig struct {
	// ID is the stable scout identifier. Defaults to the scout name.
	ID string `yaml:"id,omitempty"`

	// Domain is the monitored domain, optionally with a scheme.
	Domain string `yaml:"domain,omitempty"`

	// CriticalURLs are the relative paths checked on every run.
	CriticalURLs []string `yaml:"critical_urls,omitempty"`

	// ExpectedKeywords must stay present on the monitored pages.
	ExpectedKeywords []string `yaml:"expected_keywords,omitempty"`

	// SensitiveKeywords mark values whose change is critical.
	SensitiveKeywords []string `yaml:"sensitive_keywords,omitempty"`

	// StructuralPaths are glob patterns marking critical paths.
	StructuralPaths []string `yaml:"structural_paths,omitempty"`

	// NotifyTo lists alert recipients.
	NotifyTo []string `yaml:"notify_to,omitempty"`

	// Frequency is hourly, daily, weekly or a cron expression.
	Frequency string `yaml:"frequency,omitempty"`

	// Enabled defaults to true when omitted.
	Enabled *bool `yaml:"enabled,omitempty"`
}

// File represents the structure of the driftwatch configuration file.
type File struct {
	// Scouts maps scout names to their configuration.
	Scouts map[string]ScoutConfig `yaml:"scouts,omitempty"`

	// Defaults is applied to every scout unless overridden.
	Defaults ScoutConfig `yaml:"defaults,omitempty"`
}

// ScoutNames returns the configured scout names in sorted order.
func (f *File) ScoutNames() []string {
	return slices.Sorted(maps.Keys(f.Scouts))
}

// GetScout returns the named scout merged with the defaults.
// The result is not validated; see ValidateScout.
func (f *File) GetScout(name string) (*model.Scout, error) {
	sc, ok := f.Scouts[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrScoutNotFound, name)
	}

	merged := f.Defaults
	if sc.Domain != "" {
		merged.Domain = sc.Domain
	}
	if len(sc.CriticalURLs) > 0 {
		merged.CriticalURLs = sc.CriticalURLs
	}
	if len(sc.ExpectedKeywords) > 0 {
		merged.ExpectedKeywords = sc.ExpectedKeywords
	}
	if len(sc.SensitiveKeywords) > 0 {
		merged.SensitiveKeywords = sc.SensitiveKeywords
	}
	if len(sc.StructuralPaths) > 0 {
		merged.StructuralPaths = sc.StructuralPaths
	}
	if len(sc.NotifyTo) > 0 {
		merged.NotifyTo = sc.NotifyTo
	}
	if sc.Frequency != "" {
		merged.Frequency = sc.Frequency
	}
	if sc.Enabled != nil {
		merged.Enabled = sc.Enabled
	}

	scout := &model.Scout{
		ID:                sc.ID,
		Name:              name,
		Domain:            merged.Domain,
		CriticalURLs:      slices.Clone(merged.CriticalURLs),
		ExpectedKeywords:  slices.Clone(merged.ExpectedKeywords),
		SensitiveKeywords: slices.Clone(merged.SensitiveKeywords),
		StructuralPaths:   slices.Clone(merged.StructuralPaths),
		NotifyTo:          slices.Clone(merged.NotifyTo),
		Frequency:         merged.Frequency,
		Enabled:           merged.Enabled == nil || *merged.Enabled,
	}
	if scout.ID == "" {
		scout.ID = name
	}
	if scout.Frequency == "" {
		scout.Frequency = FrequencyDaily
	}
	return scout, nil
}

// AllScouts returns every configured scout, merged with the defaults, in name order.
func (f *File) AllScouts() ([]*model.Scout, error) {
	scouts := make([]*model.Scout, 0, len(f.Scouts))
	for _, name := range f.ScoutNames() {
		s, err := f.GetScout(name)
		if err != nil {
			return nil, err
		}
		scouts = append(scouts, s)
	}
	return scouts, nil
}

// ValidateScout checks that a scout can be executed.
// All returned errors wrap ErrInvalidScout.
func ValidateScout(s *model.Scout) error {
	if s == nil {
		return fmt.Errorf("%w: nil scout", ErrInvalidScout)
	}
	if strings.TrimSpace(s.ID) == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidScout)
	}
	if strings.TrimSpace(s.Domain) == "" {
		return fmt.Errorf("%w: %s: missing domain", ErrInvalidScout, s.ID)
	}
	base, err := url.Parse(s.BaseURL())
	if err != nil || base.Host == "" {
		return fmt.Errorf("%w: %s: invalid domain %q", ErrInvalidScout, s.ID, s.Domain)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return fmt.Errorf("%w: %s: unsupported scheme %q", ErrInvalidScout, s.ID, base.Scheme)
	}
	if len(s.CriticalURLs) == 0 {
		return fmt.Errorf("%w: %s: no critical urls", ErrInvalidScout, s.ID)
	}
	for _, u := range s.CriticalURLs {
		if _, err := s.ResolveURL(u); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalidScout, s.ID, err)
		}
	}
	if _, err := ParseFrequency(s.Frequency); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidScout, s.ID, err)
	}
	for _, p := range s.StructuralPaths {
		if _, err := path.Match(p, "/"); err != nil {
			return fmt.Errorf("%w: %s: invalid structural path %q", ErrInvalidScout, s.ID, p)
		}
	}
	return nil
}
