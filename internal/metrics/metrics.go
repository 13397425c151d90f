// Package metrics exposes Prometheus instrumentation for the registry.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the registry's Prometheus collectors.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
	httpInFlight  prometheus.Gauge
	transitions   *prometheus.CounterVec
	pendingSubs   prometheus.Gauge
	confirmations *prometheus.HistogramVec
}

// New creates the collector set on a private Prometheus registry.
func New(namespace string) *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, path and status.",
		}, []string{"method", "path", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_in_flight",
			Help:      "HTTP requests currently being served.",
		}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_total",
			Help:      "Lifecycle transitions by operation and outcome.",
		}, []string{"operation", "outcome"}),
		pendingSubs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending_submissions",
			Help:      "Ledger submissions awaiting confirmation.",
		}),
		confirmations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "confirmation_duration_seconds",
			Help:      "Time from submission to durable confirmation.",
			Buckets:   []float64{0.01, 0.1, 0.5, 1, 2, 5, 15, 30, 60, 120},
		}, []string{"operation"}),
	}

	reg.MustRegister(
		m.httpRequests, m.httpDuration, m.httpInFlight,
		m.transitions, m.pendingSubs, m.confirmations,
	)
	return m
}

// Handler returns the /metrics HTTP handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordHTTPRequest records one served request.
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.httpRequests.WithLabelValues(method, path, status).Inc()
	m.httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// IncrementInFlight marks a request entering the handler chain.
func (m *Metrics) IncrementInFlight() { m.httpInFlight.Inc() }

// DecrementInFlight marks a request leaving the handler chain.
func (m *Metrics) DecrementInFlight() { m.httpInFlight.Dec() }

// RecordTransition counts one transition attempt.
func (m *Metrics) RecordTransition(operation, outcome string) {
	m.transitions.WithLabelValues(operation, outcome).Inc()
}

// PendingSubmissionStarted tracks a new unconfirmed submission.
func (m *Metrics) PendingSubmissionStarted() { m.pendingSubs.Inc() }

// PendingSubmissionResolved tracks a submission reaching a terminal state.
func (m *Metrics) PendingSubmissionResolved(operation string, duration time.Duration) {
	m.pendingSubs.Dec()
	m.confirmations.WithLabelValues(operation).Observe(duration.Seconds())
}
