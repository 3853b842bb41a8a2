package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nao1215/driftwatch/internal/alert"
	"github.com/nao1215/driftwatch/internal/analyzer"
	"github.com/nao1215/driftwatch/internal/delta"
	"github.com/nao1215/driftwatch/internal/fetcher"
	"github.com/nao1215/driftwatch/internal/keyword"
	"github.com/nao1215/driftwatch/internal/model"
	"github.com/nao1215/driftwatch/internal/netclient"
)

// Store is the persistence the steps use.
type Store interface {
	LatestSnapshot(ctx context.Context, domain, url string) (*model.PageSnapshot, error)
	InsertSnapshot(ctx context.Context, snap *model.PageSnapshot) error
	InsertLinkValidation(ctx context.Context, v *model.LinkValidation) error
	InsertURLDelta(ctx context.Context, d *model.URLDelta) error
	InsertSemanticDelta(ctx context.Context, d *model.SemanticDelta) error
}

// LinkValidator checks the reachability of URLs.
type LinkValidator interface {
	Validate(ctx context.Context, urls []string) []model.LinkValidation
}

// Env is what every step shares within one execution.
type Env struct {
	Store      Store
	Classifier *alert.Classifier
	Logger     *slog.Logger
	Now        func() time.Time
}

func (e Env) logger() *slog.Logger {
	if e.Logger == nil {
		return slog.Default()
	}
	return e.Logger
}

func (e Env) now() time.Time {
	if e.Now == nil {
		return time.Now().UTC()
	}
	return e.Now().UTC()
}

// BaselineStep loads the previous snapshot of the URL.
type BaselineStep struct {
	env Env
}

// NewBaselineStep creates a BaselineStep.
func NewBaselineStep(env Env) *BaselineStep {
	return &BaselineStep{env: env}
}

// Name returns the step name.
func (s *BaselineStep) Name() string {
	return "baseline"
}

// Do implements Step.
func (s *BaselineStep) Do(ctx context.Context, state *URLState) error {
	snap, err := s.env.Store.LatestSnapshot(ctx, state.Domain(), state.URL)
	if err != nil {
		state.BaselineErr = err
		s.env.logger().Warn("failed to load previous snapshot, skipping delta detection",
			"url", state.URL, "error", err)
		return nil
	}
	state.Previous = snap
	return nil
}

// FetchStep retrieves the page, retrying transient failures.
// A page that cannot be fetched is recorded as a broken link.
type FetchStep struct {
	env     Env
	fetcher fetcher.Fetcher
	retries int
	timeout time.Duration
}

// NewFetchStep creates a FetchStep. Each attempt is bounded by timeout and
// up to retries more attempts follow a transient failure.
func NewFetchStep(env Env, f fetcher.Fetcher, retries int, timeout time.Duration) *FetchStep {
	return &FetchStep{env: env, fetcher: f, retries: retries, timeout: timeout}
}

// Name returns the step name.
func (s *FetchStep) Name() string {
	return "fetch"
}

// Do implements Step.
func (s *FetchStep) Do(ctx context.Context, state *URLState) error {
	start := time.Now()
	var page *fetcher.Page
	attempts, err := netclient.Retry(ctx, s.retries, s.timeout, func(ctx context.Context) error {
		p, err := s.fetcher.Fetch(ctx, state.URL)
		if err != nil {
			return err
		}
		page = p
		return nil
	})
	state.FetchAttempts = attempts

	if err == nil {
		state.Page = page
		return nil
	}

	if ctx.Err() != nil {
		// The run was cancelled; the failure says nothing about the page.
		state.Interrupted = true
		return nil
	}

	state.FetchErr = err
	state.Unavailable = errors.Is(err, fetcher.ErrUnavailable)
	logger := s.env.logger()

	v := model.LinkValidation{
		ExecutionID:  state.ExecutionID,
		URL:          state.URL,
		StatusCode:   fetcher.StatusCodeOf(err),
		ResponseTime: time.Since(start),
		IsBroken:     true,
		Error:        fmt.Sprintf("fetch failed after %d attempt(s): %v", attempts, err),
		CheckedAt:    s.env.now(),
	}
	state.Validations = append(state.Validations, v)
	state.write(ctx, logger, "link validation", func(ctx context.Context) error {
		return s.env.Store.InsertLinkValidation(ctx, &v)
	})

	if state.Unavailable {
		logger.Error("content fetcher unavailable", "url", state.URL, "error", err)
		return nil
	}

	logger.Warn("failed to fetch critical url", "url", state.URL, "attempts", attempts, "error", err)
	if f, ok := s.env.Classifier.LinkFailure(v); ok {
		state.AddFindings(f)
	}
	return nil
}

// LinkStep validates the internal links discovered on the page.
type LinkStep struct {
	env       Env
	validator LinkValidator
	maxLinks  int
}

// NewLinkStep creates a LinkStep validating at most maxLinks links per page.
func NewLinkStep(env Env, v LinkValidator, maxLinks int) *LinkStep {
	return &LinkStep{env: env, validator: v, maxLinks: maxLinks}
}

// Name returns the step name.
func (s *LinkStep) Name() string {
	return "link_validation"
}

// Do implements Step.
func (s *LinkStep) Do(ctx context.Context, state *URLState) error {
	if !state.Fetched() || s.maxLinks <= 0 {
		return nil
	}

	targets := LinksToValidate(state.Page, s.maxLinks)
	if len(targets) == 0 {
		return nil
	}

	results := s.validator.Validate(ctx, targets)
	if ctx.Err() != nil {
		// Checks cut short by the cancellation say nothing about the links.
		state.Interrupted = true
		return nil
	}

	for _, v := range results {
		v.ExecutionID = state.ExecutionID
		state.Validations = append(state.Validations, v)
		state.write(ctx, s.env.logger(), "link validation", func(ctx context.Context) error {
			return s.env.Store.InsertLinkValidation(ctx, &v)
		})
		if f, ok := s.env.Classifier.LinkFailure(v); ok {
			state.AddFindings(f)
		}
	}
	return nil
}

// LinksToValidate returns the internal links of page, excluding the page
// itself, in order and capped at limit.
func LinksToValidate(page *fetcher.Page, limit int) []string {
	self := map[string]struct{}{
		strings.TrimRight(page.URL, "/"):      {},
		strings.TrimRight(page.FinalURL, "/"): {},
	}
	base := page.FinalURL
	if base == "" {
		base = page.URL
	}

	out := make([]string, 0, min(limit, len(page.Links)))
	for _, link := range page.Links {
		if len(out) == limit {
			break
		}
		if _, ok := self[strings.TrimRight(link, "/")]; ok {
			continue
		}
		if fetcher.IsInternal(base, link) {
			out = append(out, link)
		}
	}
	return out
}

// URLDeltaStep compares the links of the page with the previous snapshot.
type URLDeltaStep struct {
	env Env
}

// NewURLDeltaStep creates a URLDeltaStep.
func NewURLDeltaStep(env Env) *URLDeltaStep {
	return &URLDeltaStep{env: env}
}

// Name returns the step name.
func (s *URLDeltaStep) Name() string {
	return "url_delta"
}

// Do implements Step.
func (s *URLDeltaStep) Do(ctx context.Context, state *URLState) error {
	if !state.Fetched() || state.BaselineErr != nil {
		return nil
	}

	state.URLDeltas = delta.DetectURLDeltas(state.ExecutionID, state.URL, state.Previous, state.Page.Links, s.env.now())
	for _, d := range state.URLDeltas.Deltas {
		state.write(ctx, s.env.logger(), "url delta", func(ctx context.Context) error {
			return s.env.Store.InsertURLDelta(ctx, &d)
		})
	}
	state.AddFindings(s.env.Classifier.URLDeltas(state.URLDeltas.Deltas, state.URLDeltas.ColdStart)...)
	return nil
}

// SemanticStep extracts keywords, fingerprints the page and detects content changes.
// The analyzer is only called when a change was detected.
type SemanticStep struct {
	env      Env
	analyzer analyzer.Analyzer
	timeout  time.Duration
}

// NewSemanticStep creates a SemanticStep. Each analysis is bounded by timeout.
func NewSemanticStep(env Env, a analyzer.Analyzer, timeout time.Duration) *SemanticStep {
	if a == nil {
		a = analyzer.Nop{}
	}
	return &SemanticStep{env: env, analyzer: a, timeout: timeout}
}

// Name returns the step name.
func (s *SemanticStep) Name() string {
	return "semantic_delta"
}

// Do implements Step.
func (s *SemanticStep) Do(ctx context.Context, state *URLState) error {
	if !state.Fetched() {
		return nil
	}

	content := PageContent(state.Page)
	state.Observation = delta.Observation{
		URL:         state.URL,
		Fingerprint: delta.Fingerprint(content),
		Keywords:    keyword.Extract(content, state.Scout.ExpectedKeywords, state.Scout.SensitiveKeywords),
	}
	if state.BaselineErr != nil {
		return nil
	}

	d := delta.DetectSemanticDelta(state.ExecutionID, state.Previous, state.Observation, state.Scout, s.env.now())
	if d == nil {
		return nil
	}

	d.Analysis = s.analyze(ctx, state, content)
	state.Semantic = d
	state.write(ctx, s.env.logger(), "semantic delta", func(ctx context.Context) error {
		return s.env.Store.InsertSemanticDelta(ctx, d)
	})
	if f, ok := s.env.Classifier.SemanticDelta(d); ok {
		state.AddFindings(f)
	}
	return nil
}

// analyze asks the analyzer to describe the change. Failures leave the
// analysis empty; classification never depends on it.
func (s *SemanticStep) analyze(ctx context.Context, state *URLState, content string) string {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	previous := "Keywords: " + strings.Join(state.Previous.Keywords, ", ")
	analysis, err := s.analyzer.Analyze(ctx, content, previous)
	if err != nil {
		s.env.logger().Warn("content analysis unavailable", "url", state.URL, "error", err)
		return ""
	}
	return analysis.Text()
}

// PageContent returns the text that keywords and fingerprints are computed from.
func PageContent(p *fetcher.Page) string {
	if p.Text != "" {
		return p.Text
	}
	return fetcher.CollapseSpace(p.Markdown)
}

// SnapshotStep writes the new snapshot of the page. Pages that could not be
// fetched keep their previous snapshot.
type SnapshotStep struct {
	env Env
}

// NewSnapshotStep creates a SnapshotStep.
func NewSnapshotStep(env Env) *SnapshotStep {
	return &SnapshotStep{env: env}
}

// Name returns the step name.
func (s *SnapshotStep) Name() string {
	return "snapshot"
}

// Do implements Step.
func (s *SnapshotStep) Do(ctx context.Context, state *URLState) error {
	if !state.Fetched() {
		return nil
	}

	snap := &model.PageSnapshot{
		Domain:      state.Domain(),
		URL:         state.URL,
		ExecutionID: state.ExecutionID,
		Fingerprint: state.Observation.Fingerprint,
		Links:       state.Page.Links,
		Keywords:    state.Observation.Keywords,
		CapturedAt:  s.env.now(),
	}
	if state.write(ctx, s.env.logger(), "snapshot", func(ctx context.Context) error {
		return s.env.Store.InsertSnapshot(ctx, snap)
	}) {
		state.Snapshot = snap
	}
	return nil
}

// DefaultSteps returns the steps every critical URL goes through, in order.
func DefaultSteps(env Env, f fetcher.Fetcher, v LinkValidator, a analyzer.Analyzer, cfg StepConfig) []Step {
	return []Step{
		NewBaselineStep(env),
		NewFetchStep(env, f, cfg.FetchRetries, cfg.FetchTimeout),
		NewLinkStep(env, v, cfg.MaxLinksPerPage),
		NewURLDeltaStep(env),
		NewSemanticStep(env, a, cfg.AnalyzeTimeout),
		NewSnapshotStep(env),
	}
}

// StepConfig holds the limits of the default steps.
type StepConfig struct {
	FetchRetries    int
	FetchTimeout    time.Duration
	AnalyzeTimeout  time.Duration
	MaxLinksPerPage int
}
