// Package middleware provides observability adapters for the evaluation
// core.
package middleware

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marketbridge/go-council/internal/ports"
)

// PrometheusMetrics implements the MetricsCollector interface using
// Prometheus. It tracks provider request volume, latency, and token
// consumption across the ensemble.
type PrometheusMetrics struct {
	requestsTotal    *prometheus.CounterVec
	tokensTotal      *prometheus.CounterVec
	requestSeconds   *prometheus.HistogramVec
	operationLatency *prometheus.HistogramVec
	operationCounter *prometheus.CounterVec
	systemGauges     *prometheus.GaugeVec
}

var _ ports.MetricsCollector = (*PrometheusMetrics)(nil)

// NewPrometheusMetrics creates a collector and registers its metrics with
// the given registerer. Passing nil uses the global Prometheus registry.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &PrometheusMetrics{
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "forecast_requests_total",
				Help: "Total provider requests by outcome.",
			},
			[]string{"provider", "model", "status"},
		),
		tokensTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "forecast_tokens_total",
				Help: "Total tokens consumed across provider requests.",
			},
			[]string{"provider", "model", "token_type"},
		),
		requestSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "forecast_request_seconds",
				Help:    "Wall-clock duration of provider requests.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"provider", "model", "status"},
		),
		operationLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "council_operation_duration_seconds",
				Help:    "Execution time of evaluation core operations.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		operationCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "council_operations_total",
				Help: "Total operations performed by the evaluation core.",
			},
			[]string{"operation", "status"},
		),
		systemGauges: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "council_system_state",
				Help: "Current state values for the evaluation core.",
			},
			[]string{"metric"},
		),
	}
}

// RecordLatency records operation latency in seconds.
func (pm *PrometheusMetrics) RecordLatency(
	operation string,
	duration time.Duration,
	labels map[string]string,
) {
	pm.operationLatency.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordCounter routes counter metrics emitted by the provider middleware
// chain onto their dedicated vectors; anything else lands on the general
// operation counter.
func (pm *PrometheusMetrics) RecordCounter(
	metric string, value float64, labels map[string]string,
) {
	switch metric {
	case "forecast_requests_total":
		pm.requestsTotal.WithLabelValues(
			labels["provider"],
			labels["model"],
			labels["status"],
		).Add(value)
	case "forecast_tokens_total":
		pm.tokensTotal.WithLabelValues(
			labels["provider"],
			labels["model"],
			labels["token_type"],
		).Add(value)
	default:
		status, ok := labels["status"]
		if !ok {
			status = "success"
		}
		pm.operationCounter.WithLabelValues(metric, status).Add(value)
	}
}

// RecordGauge sets a system-state gauge.
func (pm *PrometheusMetrics) RecordGauge(
	metric string, value float64, labels map[string]string,
) {
	pm.systemGauges.WithLabelValues(metric).Set(value)
}

// RecordHistogram records observation-style metrics. Provider request
// durations go to their dedicated histogram; anything else is treated as
// an operation duration in seconds.
func (pm *PrometheusMetrics) RecordHistogram(
	metric string, value float64, labels map[string]string,
) {
	if metric == "forecast_request_seconds" {
		pm.requestSeconds.WithLabelValues(
			labels["provider"],
			labels["model"],
			labels["status"],
		).Observe(value)
		return
	}
	pm.operationLatency.WithLabelValues(metric).Observe(value)
}
