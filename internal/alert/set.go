package alert

import (
	"cmp"
	"slices"
	"strings"
	"sync"

	"github.com/nao1215/driftwatch/internal/model"
)

type key struct {
	url       string
	alertType model.AlertType
}

// Set merges findings so that each (url, type) appears once with the highest
// severity reported for it. It is safe for concurrent use.
type Set struct {
	mu       sync.Mutex
	findings map[key]*Finding
}

// NewSet creates an empty Set.
func NewSet() *Set {
	return &Set{findings: make(map[key]*Finding)}
}

// Add merges f into the set.
func (s *Set) Add(findings ...Finding) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, f := range findings {
		k := key{url: f.URL, alertType: f.Type}
		existing, ok := s.findings[k]
		if !ok {
			merged := f
			s.findings[k] = &merged
			continue
		}
		if f.Severity > existing.Severity {
			existing.Severity = f.Severity
		}
		if f.Message != "" && !strings.Contains(existing.Message, f.Message) {
			if existing.Message == "" {
				existing.Message = f.Message
			} else {
				existing.Message += "; " + f.Message
			}
		}
	}
}

// Len returns the number of distinct findings.
func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.findings)
}

// Findings returns the merged findings, most severe first, then by URL and type.
func (s *Set) Findings() []Finding {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Finding, 0, len(s.findings))
	for _, f := range s.findings {
		out = append(out, *f)
	}
	slices.SortFunc(out, func(a, b Finding) int {
		if c := cmp.Compare(b.Severity, a.Severity); c != 0 {
			return c
		}
		if c := cmp.Compare(a.URL, b.URL); c != 0 {
			return c
		}
		return cmp.Compare(a.Type, b.Type)
	})
	return out
}
