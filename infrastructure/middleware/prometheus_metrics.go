// Package middleware provides cross-cutting concerns for the analysis pipeline.
package middleware

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ahrav/go-gvgap/internal/ports"
)

// PrometheusMetrics implements the MetricsCollector interface using Prometheus.
// It exposes LLM usage and per-stage execution telemetry so generation and
// verification runs can be monitored for latency, throughput, and token cost.
type PrometheusMetrics struct {
	llmLatency    *prometheus.HistogramVec
	llmRequests   *prometheus.CounterVec
	llmTokens     *prometheus.CounterVec
	stageLatency  *prometheus.HistogramVec
	stageCounters *prometheus.CounterVec
	stageGauges   *prometheus.GaugeVec
}

// NewPrometheusMetrics creates a PrometheusMetrics instance registered in the
// global Prometheus registry.
func NewPrometheusMetrics() *PrometheusMetrics {
	return NewPrometheusMetricsWith(prometheus.DefaultRegisterer)
}

// NewPrometheusMetricsWith creates a PrometheusMetrics instance and registers
// all metric families with reg. Tests pass a fresh registry so repeated
// construction does not collide in the global one.
func NewPrometheusMetricsWith(reg prometheus.Registerer) *PrometheusMetrics {
	factory := promauto.With(reg)

	return &PrometheusMetrics{
		// LLM request metrics emitted by the client middleware chain.
		llmLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "llm_latency_seconds",
				Help: "LLM request latency by provider, model, and outcome.",
				// Completions routinely outlive DefBuckets' 10s ceiling.
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 60},
			},
			[]string{"provider", "model", "status"},
		),
		llmRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "llm_requests_total",
				Help: "Total LLM requests by provider, model, and outcome.",
			},
			[]string{"provider", "model", "status"},
		),
		llmTokens: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "llm_tokens_total",
				Help: "Total LLM tokens consumed, split by direction.",
			},
			[]string{"provider", "model", "token_type"},
		),

		// Stage-level metrics for pipeline runs.
		stageLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pipeline_stage_duration_seconds",
				Help:    "Execution time of pipeline stage operations.",
				Buckets: []float64{0.01, 0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600},
			},
			[]string{"operation", "stage"},
		),
		stageCounters: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipeline_operations_total",
				Help: "Total operations performed by pipeline stages.",
			},
			[]string{"operation", "status", "stage"},
		),
		stageGauges: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "pipeline_stage_state",
				Help: "Current state values reported by pipeline stages.",
			},
			[]string{"metric", "stage"},
		),
	}
}

// RecordLatency implements the MetricsCollector interface by recording
// operation latency in the stage duration histogram.
func (pm *PrometheusMetrics) RecordLatency(
	operation string,
	duration time.Duration,
	labels map[string]string,
) {
	pm.stageLatency.WithLabelValues(
		operation,
		labelOr(labels, "stage", "unknown"),
	).Observe(duration.Seconds())
}

// RecordCounter implements the MetricsCollector interface by incrementing
// Prometheus counters. LLM metric names route to the dedicated request and
// token families; everything else lands in the generic stage counter.
func (pm *PrometheusMetrics) RecordCounter(
	metric string, value float64, labels map[string]string,
) {
	switch metric {
	case "llm_requests_total":
		pm.llmRequests.WithLabelValues(
			labelOr(labels, "provider", "unknown"),
			labelOr(labels, "model", "unknown"),
			labelOr(labels, "status", "unknown"),
		).Add(value)
	case "llm_tokens_total":
		pm.llmTokens.WithLabelValues(
			labelOr(labels, "provider", "unknown"),
			labelOr(labels, "model", "unknown"),
			labelOr(labels, "token_type", "unknown"),
		).Add(value)
	default:
		pm.stageCounters.WithLabelValues(
			metric,
			labelOr(labels, "status", "success"),
			labelOr(labels, "stage", "unknown"),
		).Add(value)
	}
}

// RecordGauge implements the MetricsCollector interface by setting
// Prometheus gauge values.
func (pm *PrometheusMetrics) RecordGauge(
	metric string, value float64, labels map[string]string,
) {
	pm.stageGauges.WithLabelValues(
		metric,
		labelOr(labels, "stage", "unknown"),
	).Set(value)
}

// RecordHistogram implements the MetricsCollector interface by recording
// values in a Prometheus histogram. LLM latency observations route to the
// request latency family; everything else lands in the stage duration
// histogram keyed by metric name.
func (pm *PrometheusMetrics) RecordHistogram(
	metric string, value float64, labels map[string]string,
) {
	if metric == "llm_latency_seconds" {
		pm.llmLatency.WithLabelValues(
			labelOr(labels, "provider", "unknown"),
			labelOr(labels, "model", "unknown"),
			labelOr(labels, "status", "unknown"),
		).Observe(value)
		return
	}

	pm.stageLatency.WithLabelValues(
		metric,
		labelOr(labels, "stage", "unknown"),
	).Observe(value)
}

// labelOr returns the label value for key, or fallback when the label is
// absent or empty. Lookup on a nil map is safe.
func labelOr(labels map[string]string, key, fallback string) string {
	if v := labels[key]; v != "" {
		return v
	}
	return fallback
}

// Compile-time verification that PrometheusMetrics implements MetricsCollector.
var _ ports.MetricsCollector = (*PrometheusMetrics)(nil)
