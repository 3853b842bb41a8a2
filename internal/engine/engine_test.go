package engine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nao1215/driftwatch/internal/alert"
	"github.com/nao1215/driftwatch/internal/config"
	"github.com/nao1215/driftwatch/internal/fetcher"
	"github.com/nao1215/driftwatch/internal/linkcheck"
	"github.com/nao1215/driftwatch/internal/metrics"
	"github.com/nao1215/driftwatch/internal/model"
	"github.com/nao1215/driftwatch/internal/store"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type recordingNotifier struct {
	mu   sync.Mutex
	sent []model.Alert
}

func (n *recordingNotifier) Send(_ context.Context, a model.Alert) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, a)
	return fmt.Sprintf("msg-%d", a.ID), nil
}

// site is a monitored shop. /checkout hangs when slowCheckout is set.
type site struct {
	srv           *httptest.Server
	price         atomic.Value
	slowCheckout  atomic.Bool
	checkoutCalls atomic.Int32
}

func newSite(t *testing.T) *site {
	t.Helper()
	s := &site{}
	s.price.Store("$99.000")

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintf(w, `<html><head><title>Tienda</title></head><body>
<h1>Bienvenido</h1><p>Envío gratis en todo Chile.</p><p>Precio %s</p>
<a href="/about">Nosotros</a> <a href="https://facebook.com/tienda">Facebook</a>
</body></html>`, s.price.Load())
	})
	mux.HandleFunc("/about", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, `<html><body><p>Somos una tienda.</p><a href="/">Inicio</a></body></html>`)
	})
	mux.HandleFunc("/checkout", func(w http.ResponseWriter, r *http.Request) {
		s.checkoutCalls.Add(1)
		if s.slowCheckout.Load() {
			select {
			case <-r.Context().Done():
				return
			case <-time.After(5 * time.Second):
			}
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, `<html><body><p>Pagar ahora</p></body></html>`)
	})

	s.srv = httptest.NewServer(mux)
	t.Cleanup(s.srv.Close)
	return s
}

func (s *site) scout() *model.Scout {
	return &model.Scout{
		ID:                "scout-1",
		Name:              "tienda",
		Domain:            s.srv.URL,
		CriticalURLs:      []string{"/", "/checkout"},
		ExpectedKeywords:  []string{"envío gratis"},
		SensitiveKeywords: []string{"precio"},
		Frequency:         "daily",
		Enabled:           true,
	}
}

func openStore(t *testing.T) *store.SQLStore {
	t.Helper()
	st, err := store.Open(context.Background(), t.TempDir(), store.DefaultOptions())
	if err != nil {
		t.Fatalf("store.Open() error = %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

type fixture struct {
	store    Store
	notifier *recordingNotifier
	metrics  *metrics.Metrics
	engine   *Engine
}

func newFixture(t *testing.T, st Store, f fetcher.Fetcher, client *http.Client, opts ...Option) *fixture {
	t.Helper()
	n := &recordingNotifier{}
	m := metrics.New()
	d := alert.NewDispatcher(st, n, alert.WithRecorder(m))
	v := linkcheck.NewValidator(client, linkcheck.WithTimeout(200*time.Millisecond))

	base := []Option{
		WithFetch(200*time.Millisecond, 1),
		WithRecorder(m),
	}
	return &fixture{
		store:    st,
		notifier: n,
		metrics:  m,
		engine:   New(st, f, v, d, append(base, opts...)...),
	}
}

func TestRunExecutionCheckoutTimeout(t *testing.T) {
	t.Parallel()

	s := newSite(t)
	s.slowCheckout.Store(true)
	st := openStore(t)
	fx := newFixture(t, st, fetcher.NewDirect(s.srv.Client()), s.srv.Client())
	ctx := context.Background()

	res, err := fx.engine.RunExecution(ctx, s.scout())
	if err != nil {
		t.Fatalf("RunExecution() error = %v", err)
	}

	if res.Status != model.StatusCompleted {
		t.Errorf("Status = %s, want completed (error %q)", res.Status, res.Error)
	}
	if res.CompletedAt == nil {
		t.Error("CompletedAt is nil for a terminal execution")
	}
	if res.URLsChecked != 2 {
		t.Errorf("URLsChecked = %d, want 2", res.URLsChecked)
	}
	if res.LinksBroken != 1 {
		t.Errorf("LinksBroken = %d, want 1", res.LinksBroken)
	}
	if got := s.checkoutCalls.Load(); got != 2 {
		t.Errorf("/checkout fetched %d times, want 2", got)
	}

	alerts, err := st.ListAlerts(ctx, res.ExecutionID)
	if err != nil {
		t.Fatal(err)
	}
	if len(alerts) != 1 || res.AlertsGenerated != len(alerts) {
		t.Fatalf("alerts = %+v, AlertsGenerated = %d, want exactly one", alerts, res.AlertsGenerated)
	}
	a := alerts[0]
	if a.Severity != model.SeverityCritical || a.Type != model.AlertTypeLinkFailure {
		t.Errorf("alert = %s/%s, want critical link_failure", a.Severity, a.Type)
	}
	if !strings.HasSuffix(a.URL, "/checkout") {
		t.Errorf("alert URL = %s", a.URL)
	}
	if !a.Notified || a.NotifiedAt == nil {
		t.Error("critical alert was not marked notified")
	}

	exec, err := st.GetExecution(ctx, res.ExecutionID)
	if err != nil {
		t.Fatal(err)
	}
	if exec.Status != model.StatusCompleted || exec.CompletedAt == nil || exec.LinksBroken != 1 {
		t.Errorf("stored execution = %+v", exec)
	}
	if n, err := testutil.GatherAndCount(fx.metrics.Registry(), "driftwatch_runs_total"); err != nil || n != 1 {
		t.Errorf("runs_total series = %d, %v, want 1", n, err)
	}
}

func TestRunExecutionDetectsDrift(t *testing.T) {
	t.Parallel()

	s := newSite(t)
	st := openStore(t)
	fx := newFixture(t, st, fetcher.NewDirect(s.srv.Client()), s.srv.Client())
	ctx := context.Background()

	first, err := fx.engine.RunExecution(ctx, s.scout())
	if err != nil {
		t.Fatal(err)
	}
	if first.Status != model.StatusCompleted || first.AlertsGenerated != 0 {
		t.Fatalf("first run = %+v, want completed without alerts", first)
	}
	if first.URLsNew == 0 {
		t.Error("cold start recorded no new urls")
	}

	s.price.Store("$79.000")
	second, err := fx.engine.RunExecution(ctx, s.scout())
	if err != nil {
		t.Fatal(err)
	}
	if second.Status != model.StatusCompleted {
		t.Fatalf("second run status = %s", second.Status)
	}

	deltas, err := st.ListSemanticDeltas(ctx, second.ExecutionID)
	if err != nil {
		t.Fatal(err)
	}
	if len(deltas) != 1 || deltas[0].Impact != model.ImpactCritical {
		t.Fatalf("semantic deltas = %+v, want one critical", deltas)
	}

	alerts, err := st.ListAlerts(ctx, second.ExecutionID)
	if err != nil {
		t.Fatal(err)
	}
	if second.AlertsGenerated != len(alerts) || len(alerts) != 1 {
		t.Fatalf("alerts = %+v, AlertsGenerated = %d", alerts, second.AlertsGenerated)
	}
	if alerts[0].Type != model.AlertTypeContentChange || alerts[0].Severity != model.SeverityCritical {
		t.Errorf("alert = %s/%s, want critical content_change", alerts[0].Severity, alerts[0].Type)
	}
	if second.URLsNew != 0 {
		t.Errorf("URLsNew = %d, want 0 on an unchanged link set", second.URLsNew)
	}
}

func TestRunExecutionScoutChecks(t *testing.T) {
	t.Parallel()

	t.Run("disabled scout creates no record", func(t *testing.T) {
		t.Parallel()
		st := &faultyStore{SQLStore: openStore(t)}
		fx := newFixture(t, st, &downFetcher{}, http.DefaultClient)

		scout := &model.Scout{ID: "s", Name: "off", Domain: "example.cl", CriticalURLs: []string{"/"}, Frequency: "daily"}
		if _, err := fx.engine.RunExecution(context.Background(), scout); !errors.Is(err, ErrScoutDisabled) {
			t.Fatalf("RunExecution() error = %v, want ErrScoutDisabled", err)
		}
		if st.creates.Load() != 0 {
			t.Error("execution record created for a disabled scout")
		}
	})

	t.Run("invalid scout fails the run after the record exists", func(t *testing.T) {
		t.Parallel()
		st := openStore(t)
		fx := newFixture(t, st, &downFetcher{}, http.DefaultClient)

		scout := &model.Scout{ID: "s", Name: "bad", Domain: "example.cl", Frequency: "daily", Enabled: true}
		res, err := fx.engine.RunExecution(context.Background(), scout)
		if err != nil {
			t.Fatalf("RunExecution() error = %v", err)
		}
		if res.Status != model.StatusFailed || !strings.Contains(res.Error, "invalid scout") {
			t.Errorf("result = %+v, want failed invalid scout", res)
		}
		exec, err := st.GetExecution(context.Background(), res.ExecutionID)
		if err != nil {
			t.Fatal(err)
		}
		if exec.Status != model.StatusFailed || exec.CompletedAt == nil {
			t.Errorf("stored execution = %+v", exec)
		}
	})
}

func TestRunExecutionFailures(t *testing.T) {
	t.Parallel()

	scout := &model.Scout{
		ID: "s", Name: "tienda", Domain: "tienda.example.cl",
		CriticalURLs: []string{"/", "/checkout"}, Frequency: "daily", Enabled: true,
	}

	t.Run("fetcher unavailable for every url fails the run", func(t *testing.T) {
		t.Parallel()
		st := openStore(t)
		fx := newFixture(t, st, &downFetcher{}, http.DefaultClient)

		res, err := fx.engine.RunExecution(context.Background(), scout)
		if err != nil {
			t.Fatal(err)
		}
		if res.Status != model.StatusFailed || res.Error != ErrFetcherUnavailable.Error() {
			t.Errorf("result = %+v, want failed with %v", res, ErrFetcherUnavailable)
		}
		if res.AlertsGenerated != 0 {
			t.Errorf("AlertsGenerated = %d, want 0", res.AlertsGenerated)
		}
	})

	t.Run("store rejecting every write fails the run", func(t *testing.T) {
		t.Parallel()
		st := &faultyStore{SQLStore: openStore(t), failRecords: true}
		fx := newFixture(t, st, &downFetcher{status: 500}, http.DefaultClient)

		res, err := fx.engine.RunExecution(context.Background(), scout)
		if err != nil {
			t.Fatal(err)
		}
		if res.Status != model.StatusFailed || res.Error != ErrStoreRejectedWrites.Error() {
			t.Errorf("result = %+v, want failed with %v", res, ErrStoreRejectedWrites)
		}
	})

	t.Run("execution record that cannot be created is returned as an error", func(t *testing.T) {
		t.Parallel()
		st := &faultyStore{SQLStore: openStore(t), failCreate: true}
		fx := newFixture(t, st, &downFetcher{}, http.DefaultClient)

		res, err := fx.engine.RunExecution(context.Background(), scout)
		if err == nil || res != nil {
			t.Errorf("RunExecution() = %v, %v, want an error", res, err)
		}
	})

	t.Run("execution record that cannot be closed is returned as an error", func(t *testing.T) {
		t.Parallel()
		st := &faultyStore{SQLStore: openStore(t), failUpdate: true}
		fx := newFixture(t, st, &downFetcher{status: 404}, http.DefaultClient)

		if _, err := fx.engine.RunExecution(context.Background(), scout); err == nil {
			t.Error("RunExecution() error = nil")
		}
	})

	t.Run("broken pages complete the run", func(t *testing.T) {
		t.Parallel()
		st := openStore(t)
		fx := newFixture(t, st, &downFetcher{status: 503}, http.DefaultClient)

		res, err := fx.engine.RunExecution(context.Background(), scout)
		if err != nil {
			t.Fatal(err)
		}
		if res.Status != model.StatusCompleted || res.LinksBroken != 2 || res.AlertsGenerated != 2 {
			t.Errorf("result = %+v, want completed with 2 broken links and 2 alerts", res)
		}
		if len(fx.notifier.sent) != 2 {
			t.Errorf("notified %d alerts, want 2", len(fx.notifier.sent))
		}
	})
}

func TestRunExecutionBudget(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	f := &downFetcher{status: 404, onFetch: func() {
		mu.Lock()
		now = now.Add(time.Minute)
		mu.Unlock()
	}}

	st := openStore(t)
	fx := newFixture(t, st, f, http.DefaultClient, WithWorkers(1), WithBudget(90*time.Second), WithClock(clock))

	scout := &model.Scout{
		ID: "s", Name: "tienda", Domain: "tienda.example.cl",
		CriticalURLs: []string{"/a", "/b", "/c", "/d"}, Frequency: "daily", Enabled: true,
	}
	res, err := fx.engine.RunExecution(context.Background(), scout)
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != model.StatusCompleted {
		t.Errorf("Status = %s, want completed", res.Status)
	}
	if res.URLsChecked != 2 {
		t.Errorf("URLsChecked = %d, want 2", res.URLsChecked)
	}
	if n, err := testutil.GatherAndCount(fx.metrics.Registry(), "driftwatch_critical_urls_total"); err != nil || n != 2 {
		t.Errorf("critical_urls_total series = %d, %v, want fetch_failed and skipped", n, err)
	}
}

func TestRunExecutionCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, `<html><body><p>Inicio</p><a href="/checkout/step">Pagar</a></body></html>`)
	})
	mux.HandleFunc("/about", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, `<html><body><p>Somos una tienda.</p><a href="/">Inicio</a></body></html>`)
	})
	// The caller gives up while the checkout link is being checked.
	mux.HandleFunc("/checkout/step", func(_ http.ResponseWriter, r *http.Request) {
		cancel()
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	st := openStore(t)
	fx := newFixture(t, st, fetcher.NewDirect(srv.Client()), srv.Client(), WithWorkers(1))
	scout := &model.Scout{
		ID: "s", Name: "tienda", Domain: srv.URL,
		CriticalURLs: []string{"/about", "/", "/contacto"}, Frequency: "daily", Enabled: true,
	}

	res, err := fx.engine.RunExecution(ctx, scout)
	if err != nil {
		t.Fatalf("RunExecution() error = %v", err)
	}

	if res.Status != model.StatusCompleted || res.CompletedAt == nil {
		t.Errorf("Status = %s, CompletedAt = %v, want completed", res.Status, res.CompletedAt)
	}
	if res.URLsChecked != 1 {
		t.Errorf("URLsChecked = %d, want 1 (only /about finished)", res.URLsChecked)
	}
	if res.LinksBroken != 0 {
		t.Errorf("LinksBroken = %d, want 0", res.LinksBroken)
	}

	bg := context.Background()
	alerts, err := st.ListAlerts(bg, res.ExecutionID)
	if err != nil {
		t.Fatal(err)
	}
	if len(alerts) != 0 || res.AlertsGenerated != len(alerts) {
		t.Errorf("alerts = %+v, AlertsGenerated = %d, want none", alerts, res.AlertsGenerated)
	}
	fx.notifier.mu.Lock()
	sent := len(fx.notifier.sent)
	fx.notifier.mu.Unlock()
	if sent != 0 {
		t.Errorf("notified %d alerts, want 0", sent)
	}

	validations, err := st.ListLinkValidations(bg, res.ExecutionID)
	if err != nil {
		t.Fatal(err)
	}
	for _, v := range validations {
		if v.IsBroken || strings.HasSuffix(v.URL, "/checkout/step") || strings.HasSuffix(v.URL, "/contacto") {
			t.Errorf("validation recorded for an aborted check: %+v", v)
		}
	}

	exec, err := st.GetExecution(bg, res.ExecutionID)
	if err != nil {
		t.Fatal(err)
	}
	if exec.Status != model.StatusCompleted || exec.AlertsGenerated != 0 || exec.URLsChecked != 1 {
		t.Errorf("stored execution = %+v", exec)
	}
}

func TestNewFromConfig(t *testing.T) {
	t.Parallel()

	cfg := config.NewConfig()
	cfg.Workers = 7
	cfg.MaxLinksPerPage = 3
	cfg.SpecVersion = "v2.0.0"
	e := NewFromConfig(cfg, nil, nil, nil, nil)

	if e.workers != 7 || e.steps.MaxLinksPerPage != 3 || e.specVersion != "v2.0.0" {
		t.Errorf("engine = workers %d, max links %d, spec %s", e.workers, e.steps.MaxLinksPerPage, e.specVersion)
	}
	if e.steps.FetchRetries != cfg.LinkRetries || e.budget != cfg.RunBudget {
		t.Error("fetch retries or budget not taken from config")
	}
}

// downFetcher fails every fetch: with a status error when status is set,
// with ErrUnavailable otherwise.
type downFetcher struct {
	status  int
	onFetch func()
}

func (f *downFetcher) Fetch(_ context.Context, url string) (*fetcher.Page, error) {
	if f.onFetch != nil {
		f.onFetch()
	}
	if f.status != 0 {
		return nil, &fetcher.StatusError{URL: url, StatusCode: f.status}
	}
	return nil, fmt.Errorf("%w: connection to scraping api refused", fetcher.ErrUnavailable)
}

// faultyStore injects failures into a real store.
type faultyStore struct {
	*store.SQLStore
	failCreate  bool
	failUpdate  bool
	failRecords bool
	creates     atomic.Int32
}

var errInjected = errors.New("injected store failure")

func (s *faultyStore) CreateExecution(ctx context.Context, exec *model.Execution) error {
	s.creates.Add(1)
	if s.failCreate {
		return errInjected
	}
	return s.SQLStore.CreateExecution(ctx, exec)
}

func (s *faultyStore) UpdateExecution(ctx context.Context, exec *model.Execution) error {
	if s.failUpdate {
		return errInjected
	}
	return s.SQLStore.UpdateExecution(ctx, exec)
}

func (s *faultyStore) InsertLinkValidation(ctx context.Context, v *model.LinkValidation) error {
	if s.failRecords {
		return errInjected
	}
	return s.SQLStore.InsertLinkValidation(ctx, v)
}

func (s *faultyStore) InsertAlert(ctx context.Context, a *model.Alert) error {
	if s.failRecords {
		return errInjected
	}
	return s.SQLStore.InsertAlert(ctx, a)
}
