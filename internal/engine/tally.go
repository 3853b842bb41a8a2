package engine

import (
	"sync"

	"github.com/nao1215/driftwatch/internal/model"
	"github.com/nao1215/driftwatch/internal/pipeline"
)

// tally is the single writer of the execution counters.
type tally struct {
	mu sync.Mutex

	started     int
	checked     int
	skipped     int
	unavailable int
	urlsNew     int

	writes        int
	writeFailures int

	links  map[string]struct{}
	broken map[string]struct{}
}

func newTally() *tally {
	return &tally{
		links:  make(map[string]struct{}),
		broken: make(map[string]struct{}),
	}
}

// add folds one finished URL into the counters.
func (t *tally) add(s *pipeline.URLState) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.writes += s.Writes
	t.writeFailures += s.WriteFailures

	if s.Skipped {
		t.skipped++
		return
	}
	t.started++
	if s.Interrupted {
		return
	}
	t.checked++
	if s.Unavailable {
		t.unavailable++
	}

	if s.Page != nil {
		for _, l := range s.Page.Links {
			t.links[l] = struct{}{}
		}
	}
	for _, v := range s.Validations {
		if v.IsBroken {
			t.broken[v.URL] = struct{}{}
		}
	}
	t.urlsNew += s.URLDeltas.Count(model.DeltaNew)
}

// addAlertWrites counts the alert writes made by the dispatcher.
func (t *tally) addAlertWrites(attempted, failed int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.writes += attempted
	t.writeFailures += failed
}

// counters returns the aggregate counters. Broken links are counted once
// per URL even when several pages reported them.
func (t *tally) counters() model.Counters {
	t.mu.Lock()
	defer t.mu.Unlock()
	return model.Counters{
		URLsChecked: t.checked,
		LinksFound:  len(t.links),
		LinksBroken: len(t.broken),
		URLsNew:     t.urlsNew,
	}
}

// failure returns why the run failed, or nil when it completed.
func (t *tally) failure() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.checked > 0 && t.unavailable == t.checked {
		return ErrFetcherUnavailable
	}
	if t.writes > 0 && t.writeFailures == t.writes {
		return ErrStoreRejectedWrites
	}
	return nil
}
