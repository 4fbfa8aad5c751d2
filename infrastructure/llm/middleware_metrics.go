package llm

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ahrav/go-gvgap/internal/ports"
)

// modelFamilies maps a model-name marker to the provider label reported on
// metrics. The model name is the only identity a CoreLLM exposes, so family
// inference is best-effort and falls back to "unknown".
var modelFamilies = []struct {
	marker   string
	provider string
}{
	{"gpt", "openai"},
	{"claude", "anthropic"},
	{"gemini", "google"},
}

func providerFromModel(model string) string {
	for _, f := range modelFamilies {
		if strings.Contains(model, f.marker) {
			return f.provider
		}
	}
	return "unknown"
}

// metricsLLM reports latency, outcome, and token counts for every request
// passing through it. A nil collector disables reporting without changing
// request behavior.
type metricsLLM struct {
	next      CoreLLM
	collector ports.MetricsCollector
}

// MetricsMiddleware wraps a client so each request is recorded against the
// given collector, labeled by provider, model, and outcome status.
func MetricsMiddleware(collector ports.MetricsCollector) Middleware {
	return func(next CoreLLM) CoreLLM {
		return &metricsLLM{next: next, collector: collector}
	}
}

func (m *metricsLLM) DoRequest(ctx context.Context, req ports.CompletionRequest) (ports.Completion, error) {
	start := time.Now()
	resp, err := m.next.DoRequest(ctx, req)
	m.record(ctx, resp, err, time.Since(start))
	return resp, err
}

// record emits one latency observation and one request count per call, plus
// token counters when the request produced a completion.
func (m *metricsLLM) record(ctx context.Context, resp ports.Completion, err error, elapsed time.Duration) {
	if m.collector == nil {
		return
	}

	model := m.next.GetModel()
	labels := map[string]string{
		"provider": providerFromModel(model),
		"model":    model,
		"status":   statusLabel(ctx, err),
	}

	m.collector.RecordHistogram("llm_latency_seconds", elapsed.Seconds(), labels)
	m.collector.RecordCounter("llm_requests_total", 1, labels)

	if err != nil {
		return
	}

	labels["token_type"] = "input"
	m.collector.RecordCounter("llm_tokens_total", float64(resp.TokensIn), labels)
	labels["token_type"] = "output"
	m.collector.RecordCounter("llm_tokens_total", float64(resp.TokensOut), labels)
}

// statusLabel buckets the request outcome. Circuit trips and deadline hits
// get their own statuses so dashboards can tell shed load apart from
// genuine provider failures.
func statusLabel(ctx context.Context, err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrCircuitOpen):
		return "circuit_open"
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return "timeout"
	default:
		return "error"
	}
}

func (m *metricsLLM) GetModel() string { return m.next.GetModel() }

func (m *metricsLLM) SetModel(model string) { m.next.SetModel(model) }
