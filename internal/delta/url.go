package delta

import (
	"encoding/json"
	"slices"
	"strings"
	"time"

	"github.com/nao1215/driftwatch/internal/model"
)

// URLDeltas is the outcome of comparing two link sets.
type URLDeltas struct {
	// Deltas are sorted by URL. Unchanged links produce no record.
	Deltas []model.URLDelta

	// ColdStart is true when there was no previous snapshot. Every link is
	// then new and none of them should raise an alert.
	ColdStart bool
}

// Count returns the number of deltas of type t.
func (d URLDeltas) Count(t model.DeltaType) int {
	n := 0
	for _, delta := range d.Deltas {
		if delta.Type == t {
			n++
		}
	}
	return n
}

type presence struct {
	Present bool `json:"present"`
}

var (
	statePresent = mustState(true)
	stateAbsent  = mustState(false)
)

func mustState(present bool) string {
	b, err := json.Marshal(presence{Present: present})
	if err != nil {
		panic(err)
	}
	return string(b)
}

// DetectURLDeltas compares the links discovered on pageURL with the links of
// the previous snapshot. A nil previous snapshot is a cold start.
func DetectURLDeltas(executionID, pageURL string, previous *model.PageSnapshot, current []string, now time.Time) URLDeltas {
	result := URLDeltas{ColdStart: previous == nil}

	var before map[string]struct{}
	if previous != nil {
		before = toSet(previous.Links)
	}
	after := toSet(current)

	for link := range after {
		if _, ok := before[link]; ok {
			continue
		}
		result.Deltas = append(result.Deltas, model.URLDelta{
			ExecutionID:   executionID,
			PageURL:       pageURL,
			URL:           link,
			Type:          model.DeltaNew,
			PreviousState: stateAbsent,
			CurrentState:  statePresent,
			DetectedAt:    now,
		})
	}
	for link := range before {
		if _, ok := after[link]; ok {
			continue
		}
		result.Deltas = append(result.Deltas, model.URLDelta{
			ExecutionID:   executionID,
			PageURL:       pageURL,
			URL:           link,
			Type:          model.DeltaRemoved,
			PreviousState: statePresent,
			CurrentState:  stateAbsent,
			DetectedAt:    now,
		})
	}

	slices.SortFunc(result.Deltas, func(a, b model.URLDelta) int {
		return strings.Compare(a.URL, b.URL)
	})
	return result
}

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, item := range items {
		if item != "" {
			set[item] = struct{}{}
		}
	}
	return set
}
