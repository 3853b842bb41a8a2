package pipeline

import (
	"context"
	"log/slog"
)

// Step is one stage of URL processing.
type Step interface {
	// Do executes the step. Failures local to the URL are recorded in state;
	// an error means the remaining steps cannot run.
	Do(ctx context.Context, state *URLState) error

	// Name returns the step's name for logging purposes.
	Name() string
}

// Pipeline runs steps in order over one URLState.
type Pipeline struct {
	steps []Step

	logger *slog.Logger

	// continueOnError determines whether the remaining steps run after one
	// returns an error.
	continueOnError bool
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger of the pipeline.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithContinueOnError keeps running the remaining steps after a step fails.
func WithContinueOnError(continueOnError bool) Option {
	return func(p *Pipeline) {
		p.continueOnError = continueOnError
	}
}

// New creates an empty Pipeline.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		steps: make([]Step, 0),
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.logger == nil {
		p.logger = slog.Default()
	}

	return p
}

// AddStep appends a step to the pipeline.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends multiple steps to the pipeline.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs every step in order. Cancellation is checked between steps;
// steps bound their own external calls.
func (p *Pipeline) Execute(ctx context.Context, state *URLState) error {
	for _, step := range p.steps {
		select {
		case <-ctx.Done():
			p.logger.Warn("url processing interrupted",
				"step", step.Name(),
				"url", state.URL,
				"reason", ctx.Err(),
			)
			state.Interrupted = true
			return ctx.Err()
		default:
		}

		p.logger.Debug("executing step",
			"step", step.Name(),
			"url", state.URL,
		)

		if err := step.Do(ctx, state); err != nil {
			p.logger.Error("step failed",
				"step", step.Name(),
				"url", state.URL,
				"error", err,
			)
			state.Err = err

			if !p.continueOnError {
				return err
			}
		}

		state.PerformedSteps = append(state.PerformedSteps, step.Name())
	}

	return nil
}

// StepCount returns the number of steps in the pipeline.
func (p *Pipeline) StepCount() int {
	return len(p.steps)
}

// StepNames returns the names of all steps in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}
