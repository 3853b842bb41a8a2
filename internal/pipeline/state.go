package pipeline

import (
	"context"
	"log/slog"
	"sync"

	"github.com/nao1215/driftwatch/internal/alert"
	"github.com/nao1215/driftwatch/internal/delta"
	"github.com/nao1215/driftwatch/internal/fetcher"
	"github.com/nao1215/driftwatch/internal/model"
)

// URLState is everything known about one critical URL during an execution.
type URLState struct {
	ExecutionID string
	Scout       *model.Scout

	// Path is the critical path as configured and URL its absolute form.
	Path string
	URL  string

	// Previous is the latest snapshot before this execution. Nil on cold start.
	Previous *model.PageSnapshot

	// BaselineErr is set when the previous snapshot could not be read.
	// Delta detection is skipped rather than treating the URL as a cold start.
	BaselineErr error

	Page          *fetcher.Page
	FetchErr      error
	FetchAttempts int

	// Unavailable is true when the fetch failed because the fetching
	// collaborator itself is down.
	Unavailable bool

	Validations []model.LinkValidation
	URLDeltas   delta.URLDeltas
	Observation delta.Observation
	Semantic    *model.SemanticDelta
	Snapshot    *model.PageSnapshot

	Findings []alert.Finding

	// Writes and WriteFailures count store writes attempted for this URL.
	Writes        int
	WriteFailures int

	// Skipped is true when the URL was never started because the run budget ran out.
	Skipped bool

	// Interrupted is true when the context was cancelled while the URL was processed.
	Interrupted bool

	PerformedSteps []string
	Err            error

	mu sync.Mutex
}

// NewURLState creates the state of one critical URL.
func NewURLState(executionID string, scout *model.Scout, path, absURL string) *URLState {
	return &URLState{
		ExecutionID: executionID,
		Scout:       scout,
		Path:        path,
		URL:         absURL,
	}
}

// Fetched reports whether the page was retrieved.
func (s *URLState) Fetched() bool {
	return s.Page != nil
}

// Domain is the snapshot scope of the URL.
func (s *URLState) Domain() string {
	return s.Scout.Host()
}

// AddFindings appends findings for the alert classifier.
func (s *URLState) AddFindings(f ...alert.Finding) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Findings = append(s.Findings, f...)
}

// write runs one store write, counting it and logging a failure.
// A failed write never stops the URL.
func (s *URLState) write(ctx context.Context, logger *slog.Logger, what string, fn func(context.Context) error) bool {
	s.mu.Lock()
	s.Writes++
	s.mu.Unlock()

	if err := fn(ctx); err != nil {
		s.mu.Lock()
		s.WriteFailures++
		s.mu.Unlock()
		logger.Error("failed to persist "+what,
			"url", s.URL, "error", err)
		return false
	}
	return true
}
