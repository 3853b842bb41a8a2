package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nao1215/driftwatch/internal/alert"
	"github.com/nao1215/driftwatch/internal/analyzer"
	"github.com/nao1215/driftwatch/internal/config"
	"github.com/nao1215/driftwatch/internal/fetcher"
	"github.com/nao1215/driftwatch/internal/metrics"
	"github.com/nao1215/driftwatch/internal/model"
	"github.com/nao1215/driftwatch/internal/pipeline"
)

const defaultFinalizeTimeout = 30 * time.Second

// Store is the persistence the engine needs.
type Store interface {
	pipeline.Store
	alert.Store

	CreateExecution(ctx context.Context, exec *model.Execution) error
	UpdateExecution(ctx context.Context, exec *model.Execution) error
	SetLastExecution(ctx context.Context, scoutID, executionID string) error
}

// Recorder observes runs. *metrics.Metrics implements it.
type Recorder interface {
	RunFinished(scout string, res *model.ExecutionResult)
	URLProcessed(outcome string)
	LinkValidated(v model.LinkValidation)
	DeltaDetected(kind string, n int)
}

type nopRecorder struct{}

func (nopRecorder) RunFinished(string, *model.ExecutionResult) {}

func (nopRecorder) URLProcessed(string) {}

func (nopRecorder) LinkValidated(model.LinkValidation) {}

func (nopRecorder) DeltaDetected(string, int) {}

// Engine runs executions. Its collaborators are injected at construction
// and their lifecycle belongs to the caller.
type Engine struct {
	store      Store
	fetcher    fetcher.Fetcher
	validator  pipeline.LinkValidator
	analyzer   analyzer.Analyzer
	dispatcher *alert.Dispatcher
	recorder   Recorder
	logger     *slog.Logger
	now        func() time.Time
	newID      func() string

	workers         int
	budget          time.Duration
	finalizeTimeout time.Duration
	steps           pipeline.StepConfig
	specVersion     string
}

// Option configures an Engine.
type Option func(*Engine)

// WithAnalyzer sets the content analyzer. Without one, semantic deltas carry no analysis.
func WithAnalyzer(a analyzer.Analyzer) Option {
	return func(e *Engine) {
		if a != nil {
			e.analyzer = a
		}
	}
}

// WithWorkers sets how many critical URLs are processed at once.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		e.workers = n
	}
}

// WithBudget sets the wall-clock budget of a run.
func WithBudget(d time.Duration) Option {
	return func(e *Engine) {
		e.budget = d
	}
}

// WithFetch sets the per-attempt fetch timeout and the retries on transient errors.
func WithFetch(timeout time.Duration, retries int) Option {
	return func(e *Engine) {
		e.steps.FetchTimeout = timeout
		e.steps.FetchRetries = retries
	}
}

// WithAnalyzeTimeout bounds each content analysis.
func WithAnalyzeTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.steps.AnalyzeTimeout = d
	}
}

// WithMaxLinksPerPage caps the discovered links validated per page.
func WithMaxLinksPerPage(n int) Option {
	return func(e *Engine) {
		e.steps.MaxLinksPerPage = n
	}
}

// WithSpecVersion sets the version of the validation rules recorded on executions.
func WithSpecVersion(v string) Option {
	return func(e *Engine) {
		e.specVersion = v
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithRecorder sets the recorder observing runs.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) {
		if r != nil {
			e.recorder = r
		}
	}
}

// WithClock sets the clock.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithIDGenerator sets how execution ids are generated.
func WithIDGenerator(f func() string) Option {
	return func(e *Engine) {
		e.newID = f
	}
}

// New creates an Engine.
func New(store Store, f fetcher.Fetcher, v pipeline.LinkValidator, d *alert.Dispatcher, opts ...Option) *Engine {
	e := &Engine{
		store:           store,
		fetcher:         f,
		validator:       v,
		analyzer:        analyzer.Nop{},
		dispatcher:      d,
		recorder:        nopRecorder{},
		logger:          slog.Default(),
		now:             time.Now,
		newID:           uuid.NewString,
		workers:         config.DefaultWorkers,
		budget:          config.DefaultRunBudget,
		finalizeTimeout: defaultFinalizeTimeout,
		steps: pipeline.StepConfig{
			FetchRetries:    config.DefaultLinkRetries,
			FetchTimeout:    config.DefaultFetchTimeout,
			AnalyzeTimeout:  config.DefaultAnalyzeTimeout,
			MaxLinksPerPage: config.DefaultMaxLinksPerPage,
		},
		specVersion: config.DefaultSpecVersion,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// NewFromConfig creates an Engine with the limits of cfg.
func NewFromConfig(cfg *config.Config, store Store, f fetcher.Fetcher, v pipeline.LinkValidator, d *alert.Dispatcher, opts ...Option) *Engine {
	base := []Option{
		WithWorkers(cfg.Workers),
		WithBudget(cfg.RunBudget),
		WithFetch(cfg.FetchTimeout, cfg.LinkRetries),
		WithAnalyzeTimeout(cfg.AnalyzeTimeout),
		WithMaxLinksPerPage(cfg.MaxLinksPerPage),
		WithSpecVersion(cfg.SpecVersion),
	}
	return New(store, f, v, d, append(base, opts...)...)
}

// RunExecution runs scout once and returns the closed execution.
//
// It returns an error only when the execution record cannot be created or
// closed, or when the scout is disabled (ErrScoutDisabled, no record).
// Every other failure is reported through the returned result.
func (e *Engine) RunExecution(ctx context.Context, scout *model.Scout) (*model.ExecutionResult, error) {
	if scout == nil {
		return nil, config.ErrInvalidScout
	}
	if !scout.Enabled {
		return nil, fmt.Errorf("%w: %s", ErrScoutDisabled, scout.Name)
	}

	exec := &model.Execution{
		ID:          e.newID(),
		ScoutID:     scout.ID,
		Domain:      scout.Domain,
		SpecVersion: e.specVersion,
		Status:      model.StatusRunning,
		StartedAt:   e.now().UTC(),
	}
	if err := e.store.CreateExecution(ctx, exec); err != nil {
		return nil, fmt.Errorf("failed to create execution: %w", err)
	}

	logger := e.logger.With("execution_id", exec.ID, "scout", scout.Name)
	logger.Info("execution started", "domain", scout.Domain, "critical_urls", len(scout.CriticalURLs))

	if err := config.ValidateScout(scout); err != nil {
		logger.Error("invalid scout configuration", "error", err)
		return e.finalize(ctx, logger, scout, exec, err)
	}

	t := newTally()
	findings := alert.NewSet()
	env := pipeline.Env{
		Store:      e.store,
		Classifier: alert.NewClassifier(scout),
		Logger:     logger,
		Now:        e.now,
	}
	bp := pipeline.NewBatchProcessor(
		func() *pipeline.Pipeline {
			p := pipeline.New(pipeline.WithLogger(logger))
			p.AddSteps(pipeline.DefaultSteps(env, e.fetcher, e.validator, e.analyzer, e.steps)...)
			return p
		},
		pipeline.WithConcurrency(e.workers),
		pipeline.WithBudget(e.budget),
		pipeline.WithBatchClock(e.now),
		pipeline.WithBatchLogger(logger),
	)

	states := make([]*pipeline.URLState, 0, len(scout.CriticalURLs))
	for _, p := range scout.CriticalURLs {
		abs, err := scout.ResolveURL(p)
		if err != nil {
			// ValidateScout resolved every path already.
			return e.finalize(ctx, logger, scout, exec, err)
		}
		states = append(states, pipeline.NewURLState(exec.ID, scout, p, abs))
	}

	bp.ProcessBatch(ctx, states, func(s *pipeline.URLState) {
		t.add(s)
		// An interrupted URL is not counted, so it raises no alert either.
		if !s.Interrupted {
			findings.Add(s.Findings...)
		}
		e.observe(s)
	})

	exec.Counters = t.counters()

	// Alerts are written even when the caller gave up on the run.
	dispatchCtx := context.WithoutCancel(ctx)
	res := e.dispatcher.Dispatch(dispatchCtx, exec.ID, findings.Findings())
	t.addAlertWrites(len(res.Alerts)+res.WriteFailures, res.WriteFailures)
	exec.AlertsGenerated = len(res.Alerts)

	logger.Info("critical urls processed",
		"checked", exec.URLsChecked,
		"skipped", t.skipped,
		"links_broken", exec.LinksBroken,
		"alerts", exec.AlertsGenerated,
		"notified", res.Delivered,
	)

	return e.finalize(ctx, logger, scout, exec, t.failure())
}

// finalize closes the execution as failed when cause is not nil, completed otherwise.
func (e *Engine) finalize(ctx context.Context, logger *slog.Logger, scout *model.Scout, exec *model.Execution, cause error) (*model.ExecutionResult, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.finalizeTimeout)
	defer cancel()

	completedAt := e.now().UTC()
	exec.CompletedAt = &completedAt
	exec.Status = model.StatusCompleted
	if cause != nil {
		exec.Status = model.StatusFailed
		exec.Error = cause.Error()
	}

	if err := e.store.UpdateExecution(ctx, exec); err != nil {
		logger.Error("failed to close execution", "error", err)
		return exec.Result(), fmt.Errorf("failed to close execution %s: %w", exec.ID, err)
	}
	if err := e.store.SetLastExecution(ctx, scout.ID, exec.ID); err != nil {
		logger.Warn("failed to record last execution on scout", "error", err)
	}

	res := exec.Result()
	e.recorder.RunFinished(scout.Name, res)

	attrs := []any{"status", string(exec.Status), "duration", exec.Duration()}
	if cause != nil {
		logger.Error("execution failed", append(attrs, "error", cause)...)
	} else {
		logger.Info("execution completed", attrs...)
	}
	return res, nil
}

func (e *Engine) observe(s *pipeline.URLState) {
	switch {
	case s.Skipped:
		e.recorder.URLProcessed(metrics.OutcomeSkipped)
		return
	case s.Interrupted:
		return
	case s.FetchErr != nil:
		e.recorder.URLProcessed(metrics.OutcomeFetchFailed)
	default:
		e.recorder.URLProcessed(metrics.OutcomeFetched)
	}

	for _, v := range s.Validations {
		e.recorder.LinkValidated(v)
	}
	e.recorder.DeltaDetected(string(model.AlertTypeURLNew), s.URLDeltas.Count(model.DeltaNew))
	e.recorder.DeltaDetected(string(model.AlertTypeURLRemoved), s.URLDeltas.Count(model.DeltaRemoved))
	if s.Semantic != nil {
		e.recorder.DeltaDetected(string(model.AlertTypeContentChange), 1)
	}
}

var _ Recorder = (*metrics.Metrics)(nil)

