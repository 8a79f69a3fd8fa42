// Package metrics provides Prometheus metrics for job dispatch and write
// retries.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	registry *prometheus.Registry

	// Dispatch metrics
	JobsDispatched     *prometheus.CounterVec
	JobsFinished       *prometheus.CounterVec
	JobsInFlight       prometheus.Gauge
	JobDuration        prometheus.Histogram
	NodeRequests       *prometheus.CounterVec
	ContextCloseErrors *prometheus.CounterVec

	// Retry metrics
	RetriesScheduled *prometheus.CounterVec
	RetryAttempts    *prometheus.CounterVec
	RetryOutcomes    *prometheus.CounterVec
	ActiveWriters    *prometheus.GaugeVec
}

// Config holds metrics configuration.
type Config struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
	Address   string `yaml:"address"`
}

// New builds metrics on their own registry.
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = "distexec"
	}
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		JobsDispatched: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "jobs_dispatched_total",
				Help:      "Total number of jobs dispatched",
			},
			[]string{"mode"},
		),
		JobsFinished: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "jobs_finished_total",
				Help:      "Total number of jobs whose result resolved",
			},
			[]string{"outcome"},
		),
		JobsInFlight: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "jobs_in_flight",
				Help:      "Number of dispatched jobs without a result yet",
			},
		),
		JobDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "job_duration_seconds",
				Help:      "Time from dispatch to result",
				Buckets:   prometheus.ExponentialBuckets(0.001, 2, 16),
			},
		),
		NodeRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "node_requests_total",
				Help:      "Job requests sent per node",
			},
			[]string{"node", "outcome"},
		),
		ContextCloseErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "context_close_errors_total",
				Help:      "Remote context close requests that failed",
			},
			[]string{"node"},
		),
		RetriesScheduled: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "retries_scheduled_total",
				Help:      "Write retries handed to a retry coordinator",
			},
			[]string{"node", "mode"},
		),
		RetryAttempts: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "retry_attempts_total",
				Help:      "Individual write attempts made while retrying",
			},
			[]string{"node"},
		),
		RetryOutcomes: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "retry_outcomes_total",
				Help:      "Retries by final outcome",
			},
			[]string{"node", "outcome"},
		),
		ActiveWriters: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "retry_active_writers",
				Help:      "Retries holding or waiting for the write lock",
			},
			[]string{"node"},
		),
	}
}

// Registry returns the registry the metrics are registered with.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler returns an HTTP handler exposing the metrics.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func outcome(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}

// JobDispatched records a dispatched job.
func (m *Metrics) JobDispatched(direct bool) {
	if m == nil {
		return
	}
	mode := "paged"
	if direct {
		mode = "direct"
	}
	m.JobsDispatched.WithLabelValues(mode).Inc()
	m.JobsInFlight.Inc()
}

// JobFinished records a resolved job.
func (m *Metrics) JobFinished(seconds float64, err error) {
	if m == nil {
		return
	}
	m.JobsFinished.WithLabelValues(outcome(err)).Inc()
	m.JobsInFlight.Dec()
	m.JobDuration.Observe(seconds)
}

// NodeRequest records the outcome of a job request to one node.
func (m *Metrics) NodeRequest(node string, err error) {
	if m == nil {
		return
	}
	m.NodeRequests.WithLabelValues(node, outcome(err)).Inc()
}

// ContextCloseFailed records a failed remote context close.
func (m *Metrics) ContextCloseFailed(node string) {
	if m == nil {
		return
	}
	m.ContextCloseErrors.WithLabelValues(node).Inc()
}

// RetryScheduled records a retry handed to a coordinator.
func (m *Metrics) RetryScheduled(node, mode string) {
	if m == nil {
		return
	}
	m.RetriesScheduled.WithLabelValues(node, mode).Inc()
}

// RetryAttempt records one write attempt of a retry.
func (m *Metrics) RetryAttempt(node string) {
	if m == nil {
		return
	}
	m.RetryAttempts.WithLabelValues(node).Inc()
}

// RetryFinished records the final outcome of a retry.
func (m *Metrics) RetryFinished(node string, err error) {
	if m == nil {
		return
	}
	m.RetryOutcomes.WithLabelValues(node, outcome(err)).Inc()
}

// SetActiveWriters records the current active writer count of a node.
func (m *Metrics) SetActiveWriters(node string, n int) {
	if m == nil {
		return
	}
	m.ActiveWriters.WithLabelValues(node).Set(float64(n))
}
