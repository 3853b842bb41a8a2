package metrics

import (
	"fmt"

	"github.com/nao1215/driftwatch/internal/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// Namespace is the prefix of every driftwatch metric.
	Namespace = "driftwatch"
)

// URL outcomes recorded by URLProcessed.
const (
	OutcomeFetched     = "fetched"
	OutcomeFetchFailed = "fetch_failed"
	OutcomeSkipped     = "skipped"
)

// Metrics holds the driftwatch collectors and the registry they live in.
type Metrics struct {
	registry *prometheus.Registry

	runsTotal       *prometheus.CounterVec
	runDuration     *prometheus.HistogramVec
	urlsTotal       *prometheus.CounterVec
	linksTotal      *prometheus.CounterVec
	deltasTotal     *prometheus.CounterVec
	alertsTotal     *prometheus.CounterVec
	deliveriesTotal *prometheus.CounterVec
	lastRun         *prometheus.GaugeVec
}

// New creates a Metrics backed by a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		runsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "runs_total",
			Help:      "Executions finished, by scout and final status.",
		}, []string{"scout", "status"}),
		runDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall-clock duration of executions.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 12), // 0.5s to ~17min
		}, []string{"scout"}),
		urlsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "critical_urls_total",
			Help:      "Critical URLs handled, by outcome.",
		}, []string{"outcome"}),
		linksTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "links_validated_total",
			Help:      "Links validated, by result.",
		}, []string{"result"}),
		deltasTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "deltas_total",
			Help:      "Deltas detected, by kind.",
		}, []string{"kind"}),
		alertsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "alerts_total",
			Help:      "Alerts persisted, by type and severity.",
		}, []string{"type", "severity"}),
		deliveriesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "alert_deliveries_total",
			Help:      "Alert notification attempts, by result.",
		}, []string{"result"}),
		lastRun: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time at which the last execution of a scout finished.",
		}, []string{"scout"}),
	}
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RunFinished records a terminal execution.
func (m *Metrics) RunFinished(scout string, res *model.ExecutionResult) {
	if res == nil {
		return
	}
	m.runsTotal.WithLabelValues(scout, string(res.Status)).Inc()
	if res.CompletedAt != nil {
		m.runDuration.WithLabelValues(scout).Observe(res.CompletedAt.Sub(res.StartedAt).Seconds())
		m.lastRun.WithLabelValues(scout).Set(float64(res.CompletedAt.Unix()))
	}
}

// URLProcessed records the outcome of one critical URL.
func (m *Metrics) URLProcessed(outcome string) {
	m.urlsTotal.WithLabelValues(outcome).Inc()
}

// LinkValidated records one link validation.
func (m *Metrics) LinkValidated(v model.LinkValidation) {
	result := "ok"
	if v.IsBroken {
		result = "broken"
	}
	m.linksTotal.WithLabelValues(result).Inc()
}

// DeltaDetected records n deltas of the given kind.
func (m *Metrics) DeltaDetected(kind string, n int) {
	if n <= 0 {
		return
	}
	m.deltasTotal.WithLabelValues(kind).Add(float64(n))
}

// AlertPersisted records a stored alert.
func (m *Metrics) AlertPersisted(a model.Alert) {
	m.alertsTotal.WithLabelValues(string(a.Type), a.Severity.String()).Inc()
}

// AlertDelivered records a notification attempt.
func (m *Metrics) AlertDelivered(_ model.Alert, err error) {
	result := "delivered"
	if err != nil {
		result = "failed"
	}
	m.deliveriesTotal.WithLabelValues(result).Inc()
}

// WriteToTextfile writes the registry to path in the textfile collector format.
func (m *Metrics) WriteToTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}
