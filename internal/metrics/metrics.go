// Package metrics holds the Prometheus instruments for daily runs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "edgarsignals"

// Metrics holds all Prometheus metrics for the pipeline. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	TickerOutcomes   *prometheus.CounterVec
	StateTransitions *prometheus.CounterVec
	StepDuration     *prometheus.HistogramVec
	SubjectRetries   *prometheus.CounterVec
	RunDuration      prometheus.Histogram
	Digests          *prometheus.CounterVec
}

// New creates the metrics and registers them on reg
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		TickerOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ticker_outcomes_total",
				Help:      "Per-ticker run outcomes by status",
			},
			[]string{"status"},
		),
		StateTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "pipeline_transitions_total",
				Help:      "Orchestrator state transitions",
			},
			[]string{"from", "to"},
		),
		StepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "pipeline_step_duration_seconds",
				Help:      "Duration of each orchestrator step",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 30, 60, 120},
			},
			[]string{"step"},
		),
		SubjectRetries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "subject_retries_total",
				Help:      "Whole-ticker retries after transient failures",
			},
			[]string{"reason"},
		),
		RunDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Duration of a full multi-ticker run",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
			},
		),
		Digests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "digests_total",
				Help:      "Composed digests by mode",
			},
			[]string{"mode"},
		),
	}

	if reg != nil {
		reg.MustRegister(
			m.TickerOutcomes,
			m.StateTransitions,
			m.StepDuration,
			m.SubjectRetries,
			m.RunDuration,
			m.Digests,
		)
	}
	return m
}

// RecordOutcome counts one ticker outcome
func (m *Metrics) RecordOutcome(status string) {
	if m == nil {
		return
	}
	m.TickerOutcomes.WithLabelValues(status).Inc()
}

// RecordTransition counts one state machine edge
func (m *Metrics) RecordTransition(from, to string) {
	if m == nil {
		return
	}
	m.StateTransitions.WithLabelValues(from, to).Inc()
}

// ObserveStep records the duration of a named step
func (m *Metrics) ObserveStep(step string, d time.Duration) {
	if m == nil {
		return
	}
	m.StepDuration.WithLabelValues(step).Observe(d.Seconds())
}

// RecordRetry counts a whole-subject retry
func (m *Metrics) RecordRetry(reason string) {
	if m == nil {
		return
	}
	m.SubjectRetries.WithLabelValues(reason).Inc()
}

// ObserveRun records the duration of a full run
func (m *Metrics) ObserveRun(d time.Duration) {
	if m == nil {
		return
	}
	m.RunDuration.Observe(d.Seconds())
}

// RecordDigest counts a composed digest by mode (llm, fallback, no_new_filings)
func (m *Metrics) RecordDigest(mode string) {
	if m == nil {
		return
	}
	m.Digests.WithLabelValues(mode).Inc()
}
