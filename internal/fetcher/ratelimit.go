package fetcher

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// RateLimited waits on a shared limiter before every fetch.
type RateLimited struct {
	next    Fetcher
	limiter *rate.Limiter
}

// NewRateLimited wraps next so that fetches respect limiter.
// A nil limiter returns next unchanged.
func NewRateLimited(next Fetcher, limiter *rate.Limiter) Fetcher {
	if limiter == nil {
		return next
	}
	return &RateLimited{next: next, limiter: limiter}
}

// Fetch implements Fetcher.
func (r *RateLimited) Fetch(ctx context.Context, url string) (*Page, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}
	return r.next.Fetch(ctx, url)
}
