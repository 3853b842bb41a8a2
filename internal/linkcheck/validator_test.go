package linkcheck

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/nao1215/driftwatch/internal/netclient"
)

// counter counts requests per path.
type counter struct {
	head atomic.Int32
	get  atomic.Int32
}

func (c *counter) record(r *http.Request) {
	if r.Method == http.MethodHead {
		c.head.Add(1)
	} else {
		c.get.Add(1)
	}
}

func (c *counter) total() int32 {
	return c.head.Load() + c.get.Load()
}

// newTestServer serves a small site with well-known failure modes.
func newTestServer(t *testing.T) (*httptest.Server, map[string]*counter) {
	t.Helper()

	counters := map[string]*counter{}
	paths := []string{"/ok", "/missing", "/error", "/nohead", "/old", "/new", "/slow", "/flaky", "/loop"}
	for _, p := range paths {
		counters[p] = &counter{}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ok", func(w http.ResponseWriter, r *http.Request) {
		counters["/ok"].record(r)
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, r *http.Request) {
		counters["/missing"].record(r)
		http.NotFound(w, r)
	})
	mux.HandleFunc("/error", func(w http.ResponseWriter, r *http.Request) {
		counters["/error"].record(r)
		w.WriteHeader(http.StatusInternalServerError)
	})
	mux.HandleFunc("/nohead", func(w http.ResponseWriter, r *http.Request) {
		counters["/nohead"].record(r)
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		_, _ = w.Write([]byte("hello"))
	})
	mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
		counters["/old"].record(r)
		http.Redirect(w, r, "/new", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/new", func(w http.ResponseWriter, r *http.Request) {
		counters["/new"].record(r)
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		counters["/slow"].record(r)
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	mux.HandleFunc("/flaky", func(w http.ResponseWriter, r *http.Request) {
		counters["/flaky"].record(r)
		if counters["/flaky"].total() == 1 {
			hj, ok := w.(http.Hijacker)
			if !ok {
				t.Error("response writer does not support hijacking")
				return
			}
			conn, _, err := hj.Hijack()
			if err == nil {
				_ = conn.Close()
			}
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/loop", func(w http.ResponseWriter, r *http.Request) {
		counters["/loop"].record(r)
		http.Redirect(w, r, "/loop", http.StatusFound)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, counters
}

func newTestValidator(t *testing.T, opts ...Option) *Validator {
	t.Helper()

	nc, err := netclient.NewClient(netclient.WithMaxRedirects(3))
	if err != nil {
		t.Fatal(err)
	}
	return NewValidator(nc.HTTPClientWithTimeout(0), opts...)
}

func TestValidateOne(t *testing.T) {
	t.Parallel()

	t.Run("200 is not broken", func(t *testing.T) {
		t.Parallel()

		srv, counters := newTestServer(t)
		res := newTestValidator(t).ValidateOne(t.Context(), srv.URL+"/ok")

		if res.IsBroken || res.StatusCode != http.StatusOK {
			t.Errorf("expected healthy 200, got %+v", res)
		}
		if counters["/ok"].head.Load() != 1 || counters["/ok"].get.Load() != 0 {
			t.Error("expected a single HEAD request")
		}
		if res.CheckedAt.IsZero() {
			t.Error("expected CheckedAt to be set")
		}
	})

	t.Run("404 is broken and not retried", func(t *testing.T) {
		t.Parallel()

		srv, counters := newTestServer(t)
		res := newTestValidator(t).ValidateOne(t.Context(), srv.URL+"/missing")

		if !res.IsBroken {
			t.Error("expected 404 to be broken")
		}
		if res.StatusCode != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", res.StatusCode)
		}
		if n := counters["/missing"].total(); n != 1 {
			t.Errorf("expected exactly one request, got %d", n)
		}
	})

	t.Run("500 is broken and not retried", func(t *testing.T) {
		t.Parallel()

		srv, counters := newTestServer(t)
		res := newTestValidator(t).ValidateOne(t.Context(), srv.URL+"/error")

		if !res.IsBroken || res.StatusCode != http.StatusInternalServerError {
			t.Errorf("expected broken 500, got %+v", res)
		}
		if n := counters["/error"].total(); n != 1 {
			t.Errorf("expected exactly one request, got %d", n)
		}
	})

	t.Run("405 on HEAD falls back to GET", func(t *testing.T) {
		t.Parallel()

		srv, counters := newTestServer(t)
		res := newTestValidator(t).ValidateOne(t.Context(), srv.URL+"/nohead")

		if res.IsBroken || res.StatusCode != http.StatusOK {
			t.Errorf("expected GET fallback to succeed, got %+v", res)
		}
		if counters["/nohead"].head.Load() != 1 || counters["/nohead"].get.Load() != 1 {
			t.Errorf("expected one HEAD and one GET, got %d/%d",
				counters["/nohead"].head.Load(), counters["/nohead"].get.Load())
		}
	})

	t.Run("redirect target is recorded", func(t *testing.T) {
		t.Parallel()

		srv, _ := newTestServer(t)
		res := newTestValidator(t).ValidateOne(t.Context(), srv.URL+"/old")

		if res.IsBroken {
			t.Errorf("expected redirect to a 200 to be healthy, got %+v", res)
		}
		if res.RedirectTarget != srv.URL+"/new" {
			t.Errorf("expected redirect target %s/new, got %q", srv.URL, res.RedirectTarget)
		}
	})

	t.Run("redirect loop is broken and not retried", func(t *testing.T) {
		t.Parallel()

		srv, counters := newTestServer(t)
		res := newTestValidator(t).ValidateOne(t.Context(), srv.URL+"/loop")

		if !res.IsBroken || res.Error == "" {
			t.Errorf("expected broken redirect loop with error, got %+v", res)
		}
		if n := counters["/loop"].total(); n != 4 {
			t.Errorf("expected the original request plus three redirects, got %d", n)
		}
	})

	t.Run("timeout is retried once then broken", func(t *testing.T) {
		t.Parallel()

		srv, counters := newTestServer(t)
		res := newTestValidator(t, WithTimeout(50*time.Millisecond)).ValidateOne(t.Context(), srv.URL+"/slow")

		if !res.IsBroken {
			t.Error("expected timeout to be broken")
		}
		if res.StatusCode != 0 {
			t.Errorf("expected no status code, got %d", res.StatusCode)
		}
		if res.Error == "" {
			t.Error("expected an error message")
		}
		if n := counters["/slow"].total(); n != 2 {
			t.Errorf("expected two attempts, got %d", n)
		}
	})

	t.Run("dropped connection is retried and recovers", func(t *testing.T) {
		t.Parallel()

		srv, counters := newTestServer(t)
		res := newTestValidator(t).ValidateOne(t.Context(), srv.URL+"/flaky")

		if res.IsBroken {
			t.Errorf("expected retry to recover, got %+v", res)
		}
		if n := counters["/flaky"].total(); n < 2 {
			t.Errorf("expected at least two requests, got %d", n)
		}
	})

	t.Run("connection refused is broken", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL + "/gone"
		srv.Close()

		res := newTestValidator(t).ValidateOne(t.Context(), url)
		if !res.IsBroken || res.StatusCode != 0 || res.Error == "" {
			t.Errorf("expected broken result with error, got %+v", res)
		}
	})

	t.Run("invalid url is broken", func(t *testing.T) {
		t.Parallel()

		res := newTestValidator(t).ValidateOne(t.Context(), "http://[::1")
		if !res.IsBroken || res.Error == "" {
			t.Errorf("expected broken result, got %+v", res)
		}
	})
}

func TestValidate(t *testing.T) {
	t.Parallel()

	t.Run("results follow input order and duplicates are requested once", func(t *testing.T) {
		t.Parallel()

		srv, counters := newTestServer(t)
		urls := []string{srv.URL + "/missing", srv.URL + "/ok", srv.URL + "/missing"}

		results := newTestValidator(t, WithConcurrency(2)).Validate(t.Context(), urls)

		if len(results) != 3 {
			t.Fatalf("expected 3 results, got %d", len(results))
		}
		for i, r := range results {
			if r.URL != urls[i] {
				t.Errorf("result %d: expected %s, got %s", i, urls[i], r.URL)
			}
		}
		if !results[0].IsBroken || results[1].IsBroken || !results[2].IsBroken {
			t.Errorf("unexpected broken flags: %v %v %v", results[0].IsBroken, results[1].IsBroken, results[2].IsBroken)
		}
		if n := counters["/missing"].total(); n != 1 {
			t.Errorf("expected duplicate URL to be requested once, got %d", n)
		}
	})

	t.Run("empty input returns empty result", func(t *testing.T) {
		t.Parallel()

		if results := newTestValidator(t).Validate(t.Context(), nil); len(results) != 0 {
			t.Errorf("expected no results, got %d", len(results))
		}
	})

	t.Run("rate limiter is honored", func(t *testing.T) {
		t.Parallel()

		srv, _ := newTestServer(t)
		limiter := rate.NewLimiter(rate.Every(30*time.Millisecond), 1)
		v := newTestValidator(t, WithRateLimiter(limiter), WithConcurrency(4))

		start := time.Now()
		v.Validate(t.Context(), []string{srv.URL + "/ok", srv.URL + "/new", srv.URL + "/error"})
		if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
			t.Errorf("expected requests to be spaced by the limiter, took %v", elapsed)
		}
	})
}
