// Package metrics holds the Prometheus collectors exported on /metrics.
//
// Collectors register on the default registry at init, so every package
// that records into them shares one set of series.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Step transition directions.
const (
	DirectionAdvance = "advance"
	DirectionRetreat = "retreat"
)

var (
	SubmissionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tally_submissions_total",
		Help: "Total number of submissions written by wizard sessions",
	})

	SubmitFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tally_submit_failures_total",
		Help: "Number of submit attempts that failed with a storage error",
	})

	StepTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tally_step_transitions_total",
		Help: "Wizard step transitions by direction",
	}, []string{"direction"})

	ValidationFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tally_validation_failures_total",
		Help: "Number of advance or submit calls rejected by step validation",
	})

	MatchOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tally_match_outcomes_total",
		Help: "Contact matching outcomes",
	}, []string{"outcome"})

	TrackingFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tally_tracking_failures_total",
		Help: "Activity events that could not be appended",
	})

	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tally_active_sessions",
		Help: "Wizard sessions currently held in memory",
	})

	DashboardRecompute = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tally_dashboard_recompute_seconds",
		Help:    "Duration of dashboard snapshot recomputation",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
	})
)

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
