package linkcheck

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/nao1215/driftwatch/internal/model"
	"github.com/nao1215/driftwatch/internal/netclient"
)

const (
	defaultTimeout     = 5 * time.Second
	defaultRetries     = 1
	defaultConcurrency = 8

	// maxDrainBytes is how much of a GET body is read before closing,
	// so that keep-alive connections can be reused.
	maxDrainBytes = 64 * 1024
)

// Validator checks URLs concurrently.
type Validator struct {
	client      *http.Client
	timeout     time.Duration
	retries     int
	concurrency int
	limiter     *rate.Limiter
	logger      *slog.Logger
	now         func() time.Time
}

// Option configures a Validator.
type Option func(*Validator)

// WithTimeout sets the timeout of each attempt.
func WithTimeout(d time.Duration) Option {
	return func(v *Validator) {
		if d > 0 {
			v.timeout = d
		}
	}
}

// WithRetries sets how many times a transient failure is retried.
func WithRetries(n int) Option {
	return func(v *Validator) {
		if n >= 0 {
			v.retries = n
		}
	}
}

// WithConcurrency sets how many URLs are checked at once.
func WithConcurrency(n int) Option {
	return func(v *Validator) {
		if n > 0 {
			v.concurrency = n
		}
	}
}

// WithRateLimiter shares an outbound rate limiter with the validator.
func WithRateLimiter(l *rate.Limiter) Option {
	return func(v *Validator) {
		v.limiter = l
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(v *Validator) {
		v.logger = l
	}
}

// NewValidator creates a Validator using client for requests.
// The client's redirect policy decides when a redirect chain is broken.
func NewValidator(client *http.Client, opts ...Option) *Validator {
	v := &Validator{
		client:      client,
		timeout:     defaultTimeout,
		retries:     defaultRetries,
		concurrency: defaultConcurrency,
		logger:      slog.Default(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	if v.client == nil {
		v.client = http.DefaultClient
	}
	return v
}

// Validate checks every URL and returns one result per input URL, in input order.
// Duplicate URLs are only requested once.
func (v *Validator) Validate(ctx context.Context, urls []string) []model.LinkValidation {
	index := make(map[string]int, len(urls))
	unique := make([]string, 0, len(urls))
	for _, u := range urls {
		if _, ok := index[u]; ok {
			continue
		}
		index[u] = len(unique)
		unique = append(unique, u)
	}

	checked := make([]model.LinkValidation, len(unique))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(v.concurrency)
	for i, u := range unique {
		g.Go(func() error {
			checked[i] = v.ValidateOne(gctx, u)
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // workers never return errors

	results := make([]model.LinkValidation, len(urls))
	for i, u := range urls {
		results[i] = checked[index[u]]
	}
	return results
}

// ValidateOne checks a single URL.
func (v *Validator) ValidateOne(ctx context.Context, rawURL string) model.LinkValidation {
	result := model.LinkValidation{URL: rawURL}

	var last outcome
	attempts, err := netclient.Retry(ctx, v.retries, 0, func(ctx context.Context) error {
		if v.limiter != nil {
			if err := v.limiter.Wait(ctx); err != nil {
				return err
			}
		}
		attemptCtx, cancel := context.WithTimeout(ctx, v.timeout)
		defer cancel()

		start := time.Now()
		o, err := v.check(attemptCtx, rawURL)
		o.elapsed = time.Since(start)
		last = o
		return err
	})

	result.ResponseTime = last.elapsed
	result.CheckedAt = v.now()
	if err != nil {
		result.IsBroken = true
		result.Error = err.Error()
		v.logger.Debug("link check failed", "url", rawURL, "attempts", attempts, "error", err)
		return result
	}

	result.StatusCode = last.status
	result.RedirectTarget = last.redirect
	result.IsBroken = last.status >= http.StatusBadRequest
	if result.IsBroken {
		result.Error = http.StatusText(last.status)
		v.logger.Debug("link broken", "url", rawURL, "status", last.status)
	}
	return result
}

type outcome struct {
	status   int
	redirect string
	elapsed  time.Duration
}

// check performs one HEAD request, falling back to GET when the server does
// not support HEAD. An HTTP error status is not an error: it is conclusive.
func (v *Validator) check(ctx context.Context, rawURL string) (outcome, error) {
	o, err := v.do(ctx, http.MethodHead, rawURL)
	if err != nil {
		return o, err
	}
	if o.status == http.StatusMethodNotAllowed || o.status == http.StatusNotImplemented {
		return v.do(ctx, http.MethodGet, rawURL)
	}
	return o, nil
}

func (v *Validator) do(ctx context.Context, method, rawURL string) (outcome, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return outcome{}, err
	}
	resp, err := v.client.Do(req)
	if err != nil {
		return outcome{}, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrainBytes)) //nolint:errcheck // best-effort drain

	o := outcome{status: resp.StatusCode}
	if final := resp.Request.URL.String(); final != rawURL {
		o.redirect = final
	}
	return o, nil
}
