package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus metrics for the execution engine.
type Metrics struct {
	Registry *prometheus.Registry

	ExecutionsTotal      *prometheus.CounterVec
	ExecutionDuration    *prometheus.HistogramVec
	ActiveExecutions     prometheus.Gauge
	ActiveSessions       prometheus.Gauge
	ValidationRejections *prometheus.CounterVec
	BusPublishFailures   prometheus.Counter
	RequestsInFlight     prometheus.Gauge
	CodeSizeBytes        prometheus.Histogram
	OutputSizeBytes      prometheus.Histogram
}

// NewMetrics creates and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		Registry: reg,

		ExecutionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "codepad",
				Name:      "executions_total",
				Help:      "Total executions by language and status.",
			},
			[]string{"language", "status"},
		),

		ExecutionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "codepad",
				Name:      "execution_duration_seconds",
				Help:      "Duration of executions in seconds.",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 7.5, 10},
			},
			[]string{"language"},
		),

		ActiveExecutions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "codepad",
				Name:      "active_executions",
				Help:      "Number of currently running executions.",
			},
		),

		ActiveSessions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "codepad",
				Name:      "active_sessions",
				Help:      "Number of open WebSocket sessions.",
			},
		),

		ValidationRejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "codepad",
				Name:      "validation_rejections_total",
				Help:      "Total code submissions rejected by the validator.",
			},
			[]string{"language"},
		),

		BusPublishFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "codepad",
				Name:      "bus_publish_failures_total",
				Help:      "Total failed publishes to the message bus.",
			},
		),

		RequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "codepad",
				Subsystem: "api",
				Name:      "requests_in_flight",
				Help:      "Number of HTTP requests currently being processed.",
			},
		),

		CodeSizeBytes: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "codepad",
				Name:      "code_size_bytes",
				Help:      "Size of submitted code in bytes.",
				Buckets:   prometheus.ExponentialBuckets(64, 4, 8),
			},
		),

		OutputSizeBytes: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "codepad",
				Name:      "output_size_bytes",
				Help:      "Size of streamed output chunks in bytes.",
				Buckets:   prometheus.ExponentialBuckets(16, 4, 8),
			},
		),
	}

	reg.MustRegister(
		m.ExecutionsTotal,
		m.ExecutionDuration,
		m.ActiveExecutions,
		m.ActiveSessions,
		m.ValidationRejections,
		m.BusPublishFailures,
		m.RequestsInFlight,
		m.CodeSizeBytes,
		m.OutputSizeBytes,
	)

	return m
}

// RecordExecution records metrics for a finished execution.
func (m *Metrics) RecordExecution(language, status string, durationSec float64) {
	m.ExecutionsTotal.WithLabelValues(language, status).Inc()
	m.ExecutionDuration.WithLabelValues(language).Observe(durationSec)
}
