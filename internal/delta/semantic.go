package delta

import (
	"slices"
	"time"

	"github.com/nao1215/driftwatch/internal/keyword"
	"github.com/nao1215/driftwatch/internal/model"
)

// Observation is what was seen on a page in the current execution.
type Observation struct {
	URL         string
	Fingerprint string
	Keywords    []string
}

// DetectSemanticDelta returns the content change of a page, or nil when there
// is none: on cold start or when the fingerprint did not change.
// The returned delta carries no analysis; callers attach it afterwards.
func DetectSemanticDelta(executionID string, previous *model.PageSnapshot, current Observation, scout *model.Scout, now time.Time) *model.SemanticDelta {
	if previous == nil || previous.Fingerprint == current.Fingerprint {
		return nil
	}

	var expected, sensitive []string
	if scout != nil {
		expected = scout.ExpectedKeywords
		sensitive = scout.SensitiveKeywords
	}

	return &model.SemanticDelta{
		ExecutionID:      executionID,
		URL:              current.URL,
		PreviousKeywords: slices.Clone(previous.Keywords),
		DetectedKeywords: slices.Clone(current.Keywords),
		Impact:           ClassifyImpact(previous.Keywords, current.Keywords, expected, sensitive),
		DetectedAt:       now,
	}
}

// ClassifyImpact ranks a keyword change:
//   - critical when a sensitive keyword token appears in the symmetric difference,
//   - relevant when an expected keyword was present before and is absent now,
//   - minor otherwise.
func ClassifyImpact(previous, current, expected, sensitive []string) model.ImpactLevel {
	added, removed := Diff(previous, current)

	for _, token := range append(slices.Clone(added), removed...) {
		if keyword.MatchesAny(token, sensitive) {
			return model.ImpactCritical
		}
	}
	for _, token := range removed {
		for _, kw := range expected {
			if token == keyword.Fold(kw) {
				return model.ImpactRelevant
			}
		}
	}
	return model.ImpactMinor
}

// Diff returns the tokens only in current (added) and only in previous (removed), sorted.
func Diff(previous, current []string) (added, removed []string) {
	before := toSet(previous)
	after := toSet(current)
	for token := range after {
		if _, ok := before[token]; !ok {
			added = append(added, token)
		}
	}
	for token := range before {
		if _, ok := after[token]; !ok {
			removed = append(removed, token)
		}
	}
	slices.Sort(added)
	slices.Sort(removed)
	return added, removed
}
