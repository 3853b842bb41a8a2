package pipeline

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	// DefaultConcurrency is the number of URLs processed at once.
	DefaultConcurrency = 4

	// MaxConcurrency is the upper bound of WithConcurrency.
	MaxConcurrency = 16
)

// BatchProcessor runs a fresh pipeline for each URL of an execution on a
// bounded number of goroutines.
type BatchProcessor struct {
	// pipelineFactory creates a new pipeline for each URL so that step state
	// never leaks between URLs.
	pipelineFactory func() *Pipeline

	concurrency int

	// budget bounds when URLs may start. Zero means no budget.
	budget time.Duration

	now    func() time.Time
	logger *slog.Logger
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets the logger of the processor.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets how many URLs are processed at once, capped at MaxConcurrency.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = min(n, MaxConcurrency)
		}
	}
}

// WithBudget sets the wall-clock budget of a batch. URLs that have not
// started when it runs out are skipped; URLs already started run to the end.
func WithBudget(d time.Duration) BatchOption {
	return func(b *BatchProcessor) {
		b.budget = d
	}
}

// WithBatchClock sets the clock used for the budget.
func WithBatchClock(now func() time.Time) BatchOption {
	return func(b *BatchProcessor) {
		b.now = now
	}
}

// NewBatchProcessor creates a BatchProcessor.
func NewBatchProcessor(pipelineFactory func() *Pipeline, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		pipelineFactory: pipelineFactory,
		concurrency:     DefaultConcurrency,
		now:             time.Now,
	}

	for _, opt := range opts {
		opt(bp)
	}

	if bp.logger == nil {
		bp.logger = slog.Default()
	}

	return bp
}

// ProcessBatch processes every state and calls done, when not nil, for each
// of them once it is finished or skipped. done is called from worker
// goroutines and must be safe for concurrent use.
//
// States are never dropped: one that did not start has Skipped set.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, states []*URLState, done func(*URLState)) {
	bp.logger.Info("processing critical urls",
		"total", len(states),
		"concurrency", bp.concurrency,
	)

	start := bp.now()
	var deadline time.Time
	if bp.budget > 0 {
		deadline = start.Add(bp.budget)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(bp.concurrency)

	for i, state := range states {
		g.Go(func() error {
			if reason := bp.skipReason(gctx, deadline); reason != "" {
				state.Skipped = true
				bp.logger.Warn("url skipped",
					"url", state.URL,
					"reason", reason,
					"index", i+1,
					"total", len(states),
				)
			} else {
				_ = bp.pipelineFactory().Execute(gctx, state) //nolint:errcheck // Error is stored in state
			}

			if done != nil {
				done(state)
			}
			return nil
		})
	}

	_ = g.Wait() //nolint:errcheck // workers never return errors

	bp.logger.Info("critical urls processed",
		"total", len(states),
		"elapsed", bp.now().Sub(start),
	)
}

// skipReason returns why a URL must not start, or "" when it may.
func (bp *BatchProcessor) skipReason(ctx context.Context, deadline time.Time) string {
	switch {
	case ctx.Err() != nil:
		return "run cancelled"
	case !deadline.IsZero() && !bp.now().Before(deadline):
		return "run budget exhausted"
	default:
		return ""
	}
}
