package alert

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nao1215/driftwatch/internal/model"
	"github.com/nao1215/driftwatch/internal/notify"
	"golang.org/x/sync/errgroup"
)

const (
	defaultConcurrency = 4
	defaultSendTimeout = 30 * time.Second
)

// Store is the persistence the Dispatcher needs.
type Store interface {
	InsertAlert(ctx context.Context, a *model.Alert) error
	MarkAlertNotified(ctx context.Context, id int64, at time.Time) error
	PendingAlerts(ctx context.Context, minSeverity model.Severity, limit int) ([]model.Alert, error)
}

// Recorder observes alert persistence and delivery.
type Recorder interface {
	AlertPersisted(a model.Alert)
	AlertDelivered(a model.Alert, err error)
}

type nopRecorder struct{}

func (nopRecorder) AlertPersisted(model.Alert) {}

func (nopRecorder) AlertDelivered(model.Alert, error) {}

// Dispatcher persists alerts and hands them to a notifier.
type Dispatcher struct {
	store       Store
	notifier    notify.Notifier
	minSeverity model.Severity
	concurrency int
	sendTimeout time.Duration
	logger      *slog.Logger
	recorder    Recorder
	now         func() time.Time
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithMinSeverity sets the lowest severity that is notified.
// Alerts below it are persisted but never sent.
func WithMinSeverity(s model.Severity) Option {
	return func(d *Dispatcher) {
		d.minSeverity = s
	}
}

// WithConcurrency bounds the number of notifications in flight.
func WithConcurrency(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.concurrency = n
		}
	}
}

// WithSendTimeout bounds each notification.
func WithSendTimeout(t time.Duration) Option {
	return func(d *Dispatcher) {
		if t > 0 {
			d.sendTimeout = t
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = l
	}
}

// WithRecorder sets the recorder observing alerts.
func WithRecorder(r Recorder) Option {
	return func(d *Dispatcher) {
		if r != nil {
			d.recorder = r
		}
	}
}

// WithClock sets the clock used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) {
		d.now = now
	}
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(store Store, notifier notify.Notifier, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		store:       store,
		notifier:    notifier,
		minSeverity: model.SeverityRelevant,
		concurrency: defaultConcurrency,
		sendTimeout: defaultSendTimeout,
		logger:      slog.Default(),
		recorder:    nopRecorder{},
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Result summarizes a dispatch.
type Result struct {
	// Alerts are the persisted alerts, with their notification state.
	Alerts []model.Alert

	// WriteFailures counts findings whose alert could not be persisted.
	WriteFailures int

	// Delivered and DeliveryFailures count notification outcomes.
	Delivered        int
	DeliveryFailures int
}

// Dispatch persists one alert per finding with notified=false, then notifies
// those at or above the minimum severity. Persistence always happens before
// any notification; a failed notification leaves its alert pending.
func (d *Dispatcher) Dispatch(ctx context.Context, executionID string, findings []Finding) Result {
	var res Result
	for _, f := range findings {
		a := model.Alert{
			ExecutionID: executionID,
			Type:        f.Type,
			Severity:    f.Severity,
			URL:         f.URL,
			Message:     f.Message,
			CreatedAt:   d.now().UTC(),
		}
		if err := d.store.InsertAlert(ctx, &a); err != nil {
			res.WriteFailures++
			d.logger.Error("failed to persist alert",
				"execution_id", executionID, "type", string(f.Type), "url", f.URL, "error", err)
			continue
		}
		d.recorder.AlertPersisted(a)
		res.Alerts = append(res.Alerts, a)
	}

	res.Delivered, res.DeliveryFailures = d.deliver(ctx, res.Alerts)
	return res
}

// SweepResult summarizes a sweep of pending alerts.
type SweepResult struct {
	Attempted int
	Delivered int
	Failed    int
}

// Sweep retries up to limit pending alerts at or above the minimum severity.
func (d *Dispatcher) Sweep(ctx context.Context, limit int) (SweepResult, error) {
	pending, err := d.store.PendingAlerts(ctx, d.minSeverity, limit)
	if err != nil {
		return SweepResult{}, fmt.Errorf("failed to load pending alerts: %w", err)
	}

	delivered, failed := d.deliver(ctx, pending)
	return SweepResult{
		Attempted: delivered + failed,
		Delivered: delivered,
		Failed:    failed,
	}, nil
}

// deliver notifies alerts concurrently and updates the notification state of
// the delivered ones in place.
func (d *Dispatcher) deliver(ctx context.Context, alerts []model.Alert) (delivered, failed int) {
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.concurrency)

	for i := range alerts {
		if alerts[i].Notified || alerts[i].Severity < d.minSeverity {
			continue
		}
		g.Go(func() error {
			a := &alerts[i]
			ok := d.send(gctx, a)
			mu.Lock()
			if ok {
				delivered++
			} else {
				failed++
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait() // workers never return errors
	return delivered, failed
}

func (d *Dispatcher) send(ctx context.Context, a *model.Alert) bool {
	sendCtx, cancel := context.WithTimeout(ctx, d.sendTimeout)
	defer cancel()

	deliveryID, err := d.notifier.Send(sendCtx, *a)
	d.recorder.AlertDelivered(*a, err)
	if err != nil {
		d.logger.Warn("failed to notify alert, leaving it pending",
			"alert_id", a.ID, "type", string(a.Type), "url", a.URL, "error", err)
		return false
	}

	at := d.now().UTC()
	if err := d.store.MarkAlertNotified(ctx, a.ID, at); err != nil {
		d.logger.Error("alert was delivered but could not be marked notified",
			"alert_id", a.ID, "delivery_id", deliveryID, "error", err)
		return true
	}
	a.Notified = true
	a.NotifiedAt = &at
	d.logger.Debug("alert notified", "alert_id", a.ID, "delivery_id", deliveryID)
	return true
}
