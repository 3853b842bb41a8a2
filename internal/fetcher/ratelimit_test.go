package fetcher

import (
	"context"
	"errors"
	"testing"

	"golang.org/x/time/rate"
)

type countingFetcher struct {
	calls int
}

func (c *countingFetcher) Fetch(_ context.Context, url string) (*Page, error) {
	c.calls++
	return &Page{URL: url}, nil
}

func TestNewRateLimited(t *testing.T) {
	t.Parallel()

	t.Run("nil limiter returns the wrapped fetcher", func(t *testing.T) {
		t.Parallel()

		next := &countingFetcher{}
		if got := NewRateLimited(next, nil); got != Fetcher(next) {
			t.Error("expected the wrapped fetcher")
		}
	})

	t.Run("fetches through the limiter", func(t *testing.T) {
		t.Parallel()

		next := &countingFetcher{}
		f := NewRateLimited(next, rate.NewLimiter(rate.Inf, 1))
		page, err := f.Fetch(context.Background(), "https://example.com/")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if page.URL != "https://example.com/" || next.calls != 1 {
			t.Errorf("unexpected result: %+v, calls=%d", page, next.calls)
		}
	})

	t.Run("cancelled context stops before fetching", func(t *testing.T) {
		t.Parallel()

		next := &countingFetcher{}
		// A burst of zero with a finite rate can never be satisfied.
		f := NewRateLimited(next, rate.NewLimiter(1, 0))
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := f.Fetch(ctx, "https://example.com/")
		if err == nil {
			t.Fatal("expected error")
		}
		if errors.Is(err, ErrUnavailable) {
			t.Error("limiter errors must not look like an unavailable fetcher")
		}
		if next.calls != 0 {
			t.Errorf("calls = %d, want 0", next.calls)
		}
	})
}
