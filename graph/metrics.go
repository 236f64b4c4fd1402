package graph

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides Prometheus metrics for workflow execution monitoring.
//
// Metrics exposed (all namespaced with "graphflow_"):
//
//  1. runs_inflight (gauge): runs currently executing.
//  2. runs_total (counter, labels: status): terminal run outcomes.
//  3. steps_total (counter, labels: kind, status): step executions.
//  4. step_latency_ms (histogram, labels: kind): step execution duration.
//  5. breaker_transitions_total (counter, labels: circuit, to): circuit
//     breaker state changes, fed by the resilience package.
//
// Usage:
//
//	registry := prometheus.NewRegistry()
//	metrics := graph.NewMetrics(registry)
//	engine := graph.NewEngine(store, emitter, graph.Options{Metrics: metrics})
//	http.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
//
// Thread-safe; the underlying Prometheus types handle concurrency.
type Metrics struct {
	runsInflight       prometheus.Gauge
	runsTotal          *prometheus.CounterVec
	stepsTotal         *prometheus.CounterVec
	stepLatency        *prometheus.HistogramVec
	breakerTransitions *prometheus.CounterVec

	enabled bool
}

// NewMetrics creates and registers all execution metrics with the provided
// registry. A nil registry uses prometheus.DefaultRegisterer; tests should
// pass their own prometheus.NewRegistry() to avoid duplicate-registration
// panics across cases.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	m := &Metrics{enabled: true}

	m.runsInflight = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: "graphflow",
		Name:      "runs_inflight",
		Help:      "Number of workflow runs currently executing",
	})

	m.runsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "graphflow",
		Name:      "runs_total",
		Help:      "Terminal workflow run outcomes",
	}, []string{"status"}) // status: completed, failed, paused

	m.stepsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "graphflow",
		Name:      "steps_total",
		Help:      "Step executions by kind and outcome",
	}, []string{"kind", "status"}) // status: completed, failed

	m.stepLatency = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "graphflow",
		Name:      "step_latency_ms",
		Help:      "Step execution duration in milliseconds",
		Buckets:   []float64{1, 5, 10, 50, 100, 500, 1000, 5000, 10000, 30000},
	}, []string{"kind"})

	m.breakerTransitions = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "graphflow",
		Name:      "breaker_transitions_total",
		Help:      "Circuit breaker state transitions",
	}, []string{"circuit", "to"}) // to: closed, open, half_open

	return m
}

// RunStarted increments the inflight gauge.
func (m *Metrics) RunStarted() {
	if m == nil || !m.enabled {
		return
	}
	m.runsInflight.Inc()
}

// RunFinished decrements the inflight gauge and records the terminal status.
func (m *Metrics) RunFinished(status string) {
	if m == nil || !m.enabled {
		return
	}
	m.runsInflight.Dec()
	m.runsTotal.WithLabelValues(status).Inc()
}

// StepExecuted records one step execution and its latency.
func (m *Metrics) StepExecuted(kind, status string, latency time.Duration) {
	if m == nil || !m.enabled {
		return
	}
	m.stepsTotal.WithLabelValues(kind, status).Inc()
	m.stepLatency.WithLabelValues(kind).Observe(float64(latency.Milliseconds()))
}

// BreakerTransition records a circuit breaker state change.
func (m *Metrics) BreakerTransition(circuit, to string) {
	if m == nil || !m.enabled {
		return
	}
	m.breakerTransitions.WithLabelValues(circuit, to).Inc()
}

// Disable turns off metric recording (useful for testing).
func (m *Metrics) Disable() { m.enabled = false }

// Enable re-enables metric recording after Disable().
func (m *Metrics) Enable() { m.enabled = true }
