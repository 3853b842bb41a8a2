package alert

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nao1215/driftwatch/internal/model"
)

func TestClassifierIsCritical(t *testing.T) {
	t.Parallel()

	c := NewClassifier(&model.Scout{})
	tests := []struct {
		url  string
		want bool
	}{
		{url: "https://tienda.example.cl/checkout", want: true},
		{url: "https://tienda.example.cl/checkout/", want: true},
		{url: "https://tienda.example.cl/Checkout/pay", want: true},
		{url: "https://tienda.example.cl/es/checkout", want: true},
		{url: "https://tienda.example.cl/contacto", want: true},
		{url: "https://tienda.example.cl/carrito?item=1", want: true},
		{url: "https://tienda.example.cl/", want: false},
		{url: "https://tienda.example.cl/blog/checkout-tips-and-tricks", want: false},
		{url: "https://tienda.example.cl/productos", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			t.Parallel()
			if got := c.IsCritical(tt.url); got != tt.want {
				t.Errorf("IsCritical(%q) = %v, want %v", tt.url, got, tt.want)
			}
		})
	}

	t.Run("scout patterns replace the defaults", func(t *testing.T) {
		t.Parallel()
		c := NewClassifier(&model.Scout{StructuralPaths: []string{"/reservas/*"}})
		if !c.IsCritical("https://hotel.example.cl/reservas/nueva") {
			t.Error("expected configured pattern to match")
		}
		if c.IsCritical("https://hotel.example.cl/checkout") {
			t.Error("defaults must not apply when patterns are configured")
		}
	})
}

func TestClassifier(t *testing.T) {
	t.Parallel()

	c := NewClassifier(nil)

	t.Run("broken link on a critical path is critical", func(t *testing.T) {
		t.Parallel()
		f, ok := c.LinkFailure(model.LinkValidation{URL: "https://x.cl/checkout", IsBroken: true, Error: "timeout"})
		if !ok || f.Severity != model.SeverityCritical || f.Type != model.AlertTypeLinkFailure {
			t.Errorf("LinkFailure() = %+v, %v", f, ok)
		}
	})

	t.Run("other broken link is relevant", func(t *testing.T) {
		t.Parallel()
		f, ok := c.LinkFailure(model.LinkValidation{URL: "https://x.cl/blog", IsBroken: true, StatusCode: 404})
		if !ok || f.Severity != model.SeverityRelevant || !strings.Contains(f.Message, "status 404") {
			t.Errorf("LinkFailure() = %+v, %v", f, ok)
		}
	})

	t.Run("healthy link raises nothing", func(t *testing.T) {
		t.Parallel()
		if _, ok := c.LinkFailure(model.LinkValidation{URL: "https://x.cl/", StatusCode: 200}); ok {
			t.Error("LinkFailure() ok = true for a healthy link")
		}
	})

	deltas := []model.URLDelta{
		{URL: "https://x.cl/nuevo", Type: model.DeltaNew, PageURL: "https://x.cl/"},
		{URL: "https://x.cl/contacto", Type: model.DeltaRemoved, PageURL: "https://x.cl/"},
		{URL: "https://x.cl/blog", Type: model.DeltaRemoved, PageURL: "https://x.cl/"},
	}

	t.Run("url deltas are classified", func(t *testing.T) {
		t.Parallel()
		got := c.URLDeltas(deltas, false)
		want := map[string]model.Severity{
			"https://x.cl/nuevo":    model.SeverityInfo,
			"https://x.cl/contacto": model.SeverityCritical,
			"https://x.cl/blog":     model.SeverityRelevant,
		}
		if len(got) != len(want) {
			t.Fatalf("URLDeltas() = %v", got)
		}
		for _, f := range got {
			if want[f.URL] != f.Severity {
				t.Errorf("%s severity = %v, want %v", f.URL, f.Severity, want[f.URL])
			}
		}
	})

	t.Run("cold start raises nothing", func(t *testing.T) {
		t.Parallel()
		if got := c.URLDeltas(deltas, true); len(got) != 0 {
			t.Errorf("URLDeltas() on cold start = %v", got)
		}
	})

	t.Run("semantic impact maps to severity", func(t *testing.T) {
		t.Parallel()
		for impact, want := range map[model.ImpactLevel]model.Severity{
			model.ImpactMinor:    model.SeverityMinor,
			model.ImpactRelevant: model.SeverityRelevant,
			model.ImpactCritical: model.SeverityCritical,
		} {
			f, ok := c.SemanticDelta(&model.SemanticDelta{URL: "u", Impact: impact})
			if !ok || f.Severity != want || f.Type != model.AlertTypeContentChange {
				t.Errorf("SemanticDelta(%v) = %+v", impact, f)
			}
		}
		if _, ok := c.SemanticDelta(nil); ok {
			t.Error("SemanticDelta(nil) ok = true")
		}
	})
}

func TestSet(t *testing.T) {
	t.Parallel()

	t.Run("same url and type merge to the highest severity", func(t *testing.T) {
		t.Parallel()
		s := NewSet()
		s.Add(
			Finding{Type: model.AlertTypeLinkFailure, URL: "u", Severity: model.SeverityRelevant, Message: "status 500"},
			Finding{Type: model.AlertTypeLinkFailure, URL: "u", Severity: model.SeverityCritical, Message: "fetch timeout"},
			Finding{Type: model.AlertTypeLinkFailure, URL: "u", Severity: model.SeverityInfo, Message: "status 500"},
		)
		got := s.Findings()
		if len(got) != 1 {
			t.Fatalf("Findings() = %v, want one", got)
		}
		if got[0].Severity != model.SeverityCritical {
			t.Errorf("Severity = %v, want critical", got[0].Severity)
		}
		if got[0].Message != "status 500; fetch timeout" {
			t.Errorf("Message = %q", got[0].Message)
		}
	})

	t.Run("different types stay separate", func(t *testing.T) {
		t.Parallel()
		s := NewSet()
		s.Add(
			Finding{Type: model.AlertTypeURLNew, URL: "u", Severity: model.SeverityInfo},
			Finding{Type: model.AlertTypeContentChange, URL: "u", Severity: model.SeverityMinor},
			Finding{Type: model.AlertTypeLinkFailure, URL: "a", Severity: model.SeverityCritical},
		)
		got := s.Findings()
		if s.Len() != 3 || len(got) != 3 {
			t.Fatalf("Findings() = %v", got)
		}
		if got[0].Severity != model.SeverityCritical || got[2].Severity != model.SeverityInfo {
			t.Errorf("Findings() not sorted by severity: %v", got)
		}
	})

	t.Run("concurrent adds", func(t *testing.T) {
		t.Parallel()
		s := NewSet()
		var wg sync.WaitGroup
		for i := range 50 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				s.Add(Finding{Type: model.AlertTypeLinkFailure, URL: "u", Severity: model.Severity(i % 4)})
			}()
		}
		wg.Wait()
		got := s.Findings()
		if len(got) != 1 || got[0].Severity != model.SeverityCritical {
			t.Errorf("Findings() = %v", got)
		}
	})
}

type memStore struct {
	mu        sync.Mutex
	alerts    []model.Alert
	insertErr error
	seq       int64
}

func (m *memStore) InsertAlert(_ context.Context, a *model.Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return m.insertErr
	}
	for _, existing := range m.alerts {
		if existing.ExecutionID == a.ExecutionID && existing.URL == a.URL && existing.Type == a.Type {
			return errors.New("duplicate alert")
		}
	}
	m.seq++
	a.ID = m.seq
	m.alerts = append(m.alerts, *a)
	return nil
}

func (m *memStore) MarkAlertNotified(_ context.Context, id int64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.alerts {
		if m.alerts[i].ID == id {
			m.alerts[i].Notified = true
			m.alerts[i].NotifiedAt = &at
			return nil
		}
	}
	return errors.New("not found")
}

func (m *memStore) PendingAlerts(_ context.Context, minSeverity model.Severity, limit int) ([]model.Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Alert
	for _, a := range m.alerts {
		if !a.Notified && a.Severity >= minSeverity {
			out = append(out, a)
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *memStore) byURL(url string) model.Alert {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.alerts {
		if a.URL == url {
			return a
		}
	}
	return model.Alert{}
}

type fakeNotifier struct {
	mu      sync.Mutex
	fail    map[string]bool
	sent    []string
	persist func(url string) bool
}

func (f *fakeNotifier) Send(_ context.Context, a model.Alert) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.persist != nil && !f.persist(a.URL) {
		return "", errors.New("alert was not persisted before notification")
	}
	if f.fail[a.URL] {
		return "", errors.New("channel down")
	}
	f.sent = append(f.sent, a.URL)
	return "id-" + a.URL, nil
}

func TestDispatch(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	t.Run("alerts are persisted before notification", func(t *testing.T) {
		t.Parallel()
		store := &memStore{}
		notifier := &fakeNotifier{}
		notifier.persist = func(url string) bool { return store.byURL(url).ID != 0 }
		d := NewDispatcher(store, notifier, WithClock(func() time.Time { return now }))

		res := d.Dispatch(context.Background(), "exec-1", []Finding{
			{Type: model.AlertTypeLinkFailure, URL: "https://x.cl/checkout", Severity: model.SeverityCritical},
			{Type: model.AlertTypeURLNew, URL: "https://x.cl/nuevo", Severity: model.SeverityInfo},
		})

		if len(res.Alerts) != 2 || res.WriteFailures != 0 {
			t.Fatalf("Dispatch() = %+v", res)
		}
		if res.Delivered != 1 || res.DeliveryFailures != 0 {
			t.Errorf("Delivered = %d, DeliveryFailures = %d, want 1, 0", res.Delivered, res.DeliveryFailures)
		}

		critical := store.byURL("https://x.cl/checkout")
		if !critical.Notified || critical.NotifiedAt == nil || !critical.NotifiedAt.Equal(now) {
			t.Errorf("critical alert = %+v, want notified", critical)
		}
		if info := store.byURL("https://x.cl/nuevo"); info.Notified {
			t.Error("info alert below min severity must not be notified")
		}
	})

	t.Run("delivery failure leaves the alert pending", func(t *testing.T) {
		t.Parallel()
		store := &memStore{}
		notifier := &fakeNotifier{fail: map[string]bool{"https://x.cl/pago": true}}
		d := NewDispatcher(store, notifier)

		res := d.Dispatch(context.Background(), "exec-1", []Finding{
			{Type: model.AlertTypeLinkFailure, URL: "https://x.cl/pago", Severity: model.SeverityCritical},
		})
		if len(res.Alerts) != 1 || res.DeliveryFailures != 1 {
			t.Fatalf("Dispatch() = %+v", res)
		}
		if a := store.byURL("https://x.cl/pago"); a.Notified || a.ID == 0 {
			t.Errorf("alert = %+v, want persisted and pending", a)
		}

		notifier.mu.Lock()
		notifier.fail = nil
		notifier.mu.Unlock()

		sweep, err := d.Sweep(context.Background(), 10)
		if err != nil {
			t.Fatalf("Sweep() error = %v", err)
		}
		if sweep.Attempted != 1 || sweep.Delivered != 1 {
			t.Errorf("Sweep() = %+v", sweep)
		}
		if a := store.byURL("https://x.cl/pago"); !a.Notified {
			t.Error("alert still pending after sweep")
		}
	})

	t.Run("write failures are counted", func(t *testing.T) {
		t.Parallel()
		store := &memStore{insertErr: errors.New("disk full")}
		notifier := &fakeNotifier{}
		d := NewDispatcher(store, notifier)

		res := d.Dispatch(context.Background(), "exec-1", []Finding{
			{Type: model.AlertTypeLinkFailure, URL: "u", Severity: model.SeverityCritical},
		})
		if res.WriteFailures != 1 || len(res.Alerts) != 0 {
			t.Errorf("Dispatch() = %+v", res)
		}
		if len(notifier.sent) != 0 {
			t.Error("unpersisted alert was notified")
		}
	})

	t.Run("two detectors on the same url and type yield one alert", func(t *testing.T) {
		t.Parallel()
		store := &memStore{}
		d := NewDispatcher(store, &fakeNotifier{})

		set := NewSet()
		set.Add(Finding{Type: model.AlertTypeLinkFailure, URL: "https://x.cl/checkout", Severity: model.SeverityRelevant, Message: "status 503"})
		set.Add(Finding{Type: model.AlertTypeLinkFailure, URL: "https://x.cl/checkout", Severity: model.SeverityCritical, Message: "fetch failed"})

		res := d.Dispatch(context.Background(), "exec-1", set.Findings())
		if len(res.Alerts) != 1 || res.Alerts[0].Severity != model.SeverityCritical {
			t.Errorf("Dispatch() alerts = %+v, want one critical", res.Alerts)
		}
		if len(store.alerts) != 1 {
			t.Errorf("stored %d alerts, want 1", len(store.alerts))
		}
	})
}
