package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the engine's Prometheus collectors.
type Metrics struct {
	// Fetch metrics
	SourceFetchesTotal  *prometheus.CounterVec
	SourceFetchSeconds  *prometheus.HistogramVec
	SourceMeetings      *prometheus.HistogramVec
	BreakerOpen         *prometheus.GaugeVec
	WindowTruncations   *prometheus.CounterVec
	WindowRejectedTotal prometheus.Counter

	// Reconciliation metrics
	LegacyDuplicatesTotal prometheus.Counter
	AmbiguitiesTotal      prometheus.Counter

	// Assignment metrics
	AssignmentsTotal *prometheus.CounterVec
	ConflictChecks   *prometheus.CounterVec
}

// NewMetrics registers the engine metrics with reg. A nil reg gets a private
// registry so repeated construction in tests never collides.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		SourceFetchesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "meeting_source_fetches_total",
				Help: "Source fetches by outcome (ok, failed, skipped)",
			},
			[]string{"source", "status"},
		),
		SourceFetchSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "meeting_source_fetch_seconds",
				Help:    "Source fetch latency",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"source"},
		),
		SourceMeetings: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "meeting_source_meetings",
				Help:    "Meetings returned per successful fetch",
				Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250, 500},
			},
			[]string{"source"},
		),
		BreakerOpen: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "meeting_source_breaker_open",
				Help: "1 while the source circuit is open",
			},
			[]string{"source"},
		),
		WindowTruncations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "meeting_window_truncations_total",
				Help: "Requests whose window was truncated for a cost-sensitive source",
			},
			[]string{"source"},
		),
		WindowRejectedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "meeting_window_rejected_total",
				Help: "Requests rejected for exceeding the hard window ceiling",
			},
		),
		LegacyDuplicatesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "meeting_legacy_duplicates_total",
				Help: "Legacy meetings dropped as duplicates of current meetings",
			},
		),
		AmbiguitiesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "meeting_ambiguous_identities_total",
				Help: "Records whose duplicate status could not be decided",
			},
		),
		AssignmentsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "meeting_assignments_total",
				Help: "Assignment attempts by outcome",
			},
			[]string{"outcome"},
		),
		ConflictChecks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "meeting_conflict_checks_total",
				Help: "Availability checks by status",
			},
			[]string{"status"},
		),
	}
}
