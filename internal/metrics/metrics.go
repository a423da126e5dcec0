// Package metrics exposes Prometheus instrumentation for the query pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service's Prometheus collectors.
type Metrics struct {
	registry *prometheus.Registry

	QueriesTotal   *prometheus.CounterVec
	QueryDuration  prometheus.Histogram
	Iterations     prometheus.Histogram
	StepDuration   *prometheus.HistogramVec
	StepFailures   *prometheus.CounterVec
	VerifyScore    prometheus.Histogram
	DegradedTotal  prometheus.Counter
	SessionsActive prometheus.Gauge
}

// New creates the collectors on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		QueriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "answerd_queries_total",
			Help: "Queries processed, by category and outcome.",
		}, []string{"category", "outcome"}),
		QueryDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "answerd_query_duration_seconds",
			Help:    "End to end query latency.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
		Iterations: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "answerd_iterations_per_query",
			Help:    "Plan-execute-verify iterations used per query.",
			Buckets: []float64{0, 1, 2, 3, 4},
		}),
		StepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "answerd_step_duration_seconds",
			Help:    "Plan step execution latency, by capability.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"capability"}),
		StepFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "answerd_step_failures_total",
			Help: "Plan step failures, by capability and error kind.",
		}, []string{"capability", "kind"}),
		VerifyScore: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "answerd_verification_score",
			Help:    "Overall verification score per iteration.",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		}),
		DegradedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "answerd_degraded_answers_total",
			Help: "Answers returned below the verification threshold.",
		}),
		SessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "answerd_sessions_active",
			Help: "Sessions currently tracked.",
		}),
	}
	reg.MustRegister(
		m.QueriesTotal, m.QueryDuration, m.Iterations, m.StepDuration,
		m.StepFailures, m.VerifyScore, m.DegradedTotal, m.SessionsActive,
	)
	return m
}

// Handler serves the scrape endpoint for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
