// Package metrics holds the Prometheus collectors of the risk engine.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "riskengine"

// Run outcomes.
const (
	OutcomeSuccess             = "success"
	OutcomeInvalidOrganization = "invalid_organization"
	OutcomeInvalidSelection    = "invalid_selection"
	OutcomeStoreUnavailable    = "store_unavailable"
	OutcomeTimeout             = "timeout"
	OutcomeError               = "error"
)

// Skip reasons.
const (
	SkipUnknownControl  = "unknown_control"
	SkipNotApplicable   = "not_applicable"
	SkipUnparsableRange = "unparsable_range"
	SkipPlaceholder     = "placeholder"
)

// Metrics is the set of pipeline collectors.
type Metrics struct {
	RunsTotal      *prometheus.CounterVec
	RunDuration    *prometheus.HistogramVec
	RecordsWritten *prometheus.GaugeVec
	SkippedTotal   *prometheus.CounterVec
	EventsTotal    *prometheus.CounterVec
}

// New registers the collectors with reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		RunsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Dashboard runs by trigger and outcome",
		}, []string{"trigger", "outcome"}),

		RunDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "run_duration_seconds",
			Help:      "Dashboard run duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"trigger"}),

		RecordsWritten: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "dashboard_records",
			Help:      "Dashboard rows written by the last successful run",
		}, []string{"org_id"}),

		SkippedTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "skipped_total",
			Help:      "Values excluded from aggregation by reason",
		}, []string{"reason"}),

		EventsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "published_total",
			Help:      "Dashboard refresh events by status",
		}, []string{"status"}),
	}
}

// Skips is the per-reason skip count of one run.
type Skips struct {
	UnknownControls  int
	NotApplicable    int
	UnparsableRanges int
	Placeholders     int
}

// ObserveRun records one finished run.
func (m *Metrics) ObserveRun(trigger, outcome string, d time.Duration) {
	m.RunsTotal.WithLabelValues(trigger, outcome).Inc()
	m.RunDuration.WithLabelValues(trigger).Observe(d.Seconds())
}

// ObserveRecords records the row count and skips of a successful run.
func (m *Metrics) ObserveRecords(orgID string, records int, s Skips) {
	m.RecordsWritten.WithLabelValues(orgID).Set(float64(records))
	m.SkippedTotal.WithLabelValues(SkipUnknownControl).Add(float64(s.UnknownControls))
	m.SkippedTotal.WithLabelValues(SkipNotApplicable).Add(float64(s.NotApplicable))
	m.SkippedTotal.WithLabelValues(SkipUnparsableRange).Add(float64(s.UnparsableRanges))
	m.SkippedTotal.WithLabelValues(SkipPlaceholder).Add(float64(s.Placeholders))
}

// ObserveEvent records a publish attempt.
func (m *Metrics) ObserveEvent(err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.EventsTotal.WithLabelValues(status).Inc()
}
