// Package metrics exposes the gateway's ambient Prometheus metrics: how
// many turns are in flight, how many have completed by outcome, and how
// long each one took. None of this is part of the spec's functional
// contract — it is the ambient observability layer every component in
// this module carries regardless of feature scope.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/devon-ng/gatewaycore/internal/config"
)

// Recorder collects the gateway's turn-level metrics. One Recorder is
// shared process-wide; it holds no per-Turn state itself.
type Recorder struct {
	turnsActive  *prometheus.GaugeVec
	turnsTotal   *prometheus.CounterVec
	turnDuration *prometheus.HistogramVec
}

// NewRecorder registers the gateway's metrics against reg. Passing
// prometheus.NewRegistry() (rather than the global DefaultRegisterer)
// keeps tests hermetic.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		turnsActive: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gatewaycore_turns_active",
			Help: "Number of Turns currently streaming, per provider.",
		}, []string{"provider"}),
		turnsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gatewaycore_turns_total",
			Help: "Total Turns completed, labeled by provider and terminal outcome.",
		}, []string{"provider", "outcome"}),
		turnDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gatewaycore_turn_duration_seconds",
			Help:    "Wall-clock duration of a Turn from start to terminal callback.",
			Buckets: prometheus.DefBuckets,
		}, []string{"provider"}),
	}
}

// Outcome is the terminal classification a Turn is recorded under.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeError     Outcome = "error"
	OutcomeCancelled Outcome = "cancelled"
)

// TurnStarted marks one Turn as in flight and returns a function to call
// at its terminal callback, which records the duration and outcome and
// clears the in-flight gauge.
func (r *Recorder) TurnStarted(providerID config.ProviderID) func(outcome Outcome) {
	label := string(providerID)
	r.turnsActive.WithLabelValues(label).Inc()
	start := time.Now()

	return func(outcome Outcome) {
		r.turnsActive.WithLabelValues(label).Dec()
		r.turnsTotal.WithLabelValues(label, string(outcome)).Inc()
		r.turnDuration.WithLabelValues(label).Observe(time.Since(start).Seconds())
	}
}
