package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-gvgap/internal/ports"
)

// findMetricCalls filters recorded calls by metric name.
func findMetricCalls(calls []metricCall, metric string) []metricCall {
	var out []metricCall
	for _, c := range calls {
		if c.metric == metric {
			out = append(out, c)
		}
	}
	return out
}

func TestMetricsMiddleware_RecordsSuccessfulRequest(t *testing.T) {
	mock := NewMockCoreLLM()
	mock.Model = "gpt-4o-mini"
	collector := newMockMetricsCollector()

	client := MetricsMiddleware(collector)(mock)

	resp, err := client.DoRequest(context.Background(), ports.CompletionRequest{
		Prompt: "What is 2+2?",
	})
	require.NoError(t, err)
	assert.Equal(t, "test response", resp.Text)

	latencies := findMetricCalls(collector.histograms, "llm_latency_seconds")
	require.Len(t, latencies, 1, "should record one latency sample")
	assert.GreaterOrEqual(t, latencies[0].value, 0.0)
	assert.Equal(t, "success", latencies[0].labels["status"])
	assert.Equal(t, "openai", latencies[0].labels["provider"])
	assert.Equal(t, "gpt-4o-mini", latencies[0].labels["model"])

	assert.Equal(t, 1.0, collector.counterTotal("llm_requests_total", map[string]string{"status": "success"}))
	assert.Equal(t, 10.0, collector.counterTotal("llm_tokens_total", map[string]string{"token_type": "input"}))
	assert.Equal(t, 20.0, collector.counterTotal("llm_tokens_total", map[string]string{"token_type": "output"}))
}

func TestMetricsMiddleware_RecordsErrorStatus(t *testing.T) {
	mock := NewMockCoreLLM()
	mock.Error = errors.New("provider exploded")
	collector := newMockMetricsCollector()

	client := MetricsMiddleware(collector)(mock)

	_, err := client.DoRequest(context.Background(), ports.CompletionRequest{Prompt: "test"})
	require.Error(t, err)

	assert.Equal(t, 1.0, collector.counterTotal("llm_requests_total", map[string]string{"status": "error"}))
	assert.Equal(t, 0.0, collector.counterTotal("llm_tokens_total", nil),
		"failed requests should not record token usage")

	latencies := findMetricCalls(collector.histograms, "llm_latency_seconds")
	require.Len(t, latencies, 1)
	assert.Equal(t, "error", latencies[0].labels["status"])
}

func TestMetricsMiddleware_RecordsCircuitOpenStatus(t *testing.T) {
	mock := NewMockCoreLLM()
	mock.Error = ErrCircuitOpen
	collector := newMockMetricsCollector()

	client := MetricsMiddleware(collector)(mock)

	_, err := client.DoRequest(context.Background(), ports.CompletionRequest{Prompt: "test"})
	require.ErrorIs(t, err, ErrCircuitOpen)

	assert.Equal(t, 1.0, collector.counterTotal("llm_requests_total", map[string]string{"status": "circuit_open"}))
	assert.Equal(t, 0.0, collector.counterTotal("llm_requests_total", map[string]string{"status": "error"}))
}

func TestMetricsMiddleware_RecordsTimeoutStatus(t *testing.T) {
	mock := NewMockCoreLLM()
	mock.Error = context.DeadlineExceeded
	collector := newMockMetricsCollector()

	client := MetricsMiddleware(collector)(mock)

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	_, err := client.DoRequest(ctx, ports.CompletionRequest{Prompt: "test"})
	require.Error(t, err)

	assert.Equal(t, 1.0, collector.counterTotal("llm_requests_total", map[string]string{"status": "timeout"}))
}

func TestMetricsMiddleware_RecordsLatencyDuration(t *testing.T) {
	mock := NewMockCoreLLM()
	mock.ResponseDelay = 20 * time.Millisecond
	collector := newMockMetricsCollector()

	client := MetricsMiddleware(collector)(mock)

	_, err := client.DoRequest(context.Background(), ports.CompletionRequest{Prompt: "test"})
	require.NoError(t, err)

	latencies := findMetricCalls(collector.histograms, "llm_latency_seconds")
	require.Len(t, latencies, 1)
	assert.GreaterOrEqual(t, latencies[0].value, 0.02,
		"recorded latency should include the provider delay")
}

func TestMetricsMiddleware_ProviderExtraction(t *testing.T) {
	tests := []struct {
		name         string
		model        string
		wantProvider string
	}{
		{name: "openai models", model: "gpt-4.1", wantProvider: "openai"},
		{name: "anthropic models", model: "claude-4-sonnet", wantProvider: "anthropic"},
		{name: "google models", model: "gemini-2.5-flash", wantProvider: "google"},
		{name: "unrecognized models", model: "mistral-large", wantProvider: "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := NewMockCoreLLM()
			mock.Model = tt.model
			collector := newMockMetricsCollector()

			client := MetricsMiddleware(collector)(mock)

			_, err := client.DoRequest(context.Background(), ports.CompletionRequest{Prompt: "test"})
			require.NoError(t, err)

			latencies := findMetricCalls(collector.histograms, "llm_latency_seconds")
			require.Len(t, latencies, 1)
			assert.Equal(t, tt.wantProvider, latencies[0].labels["provider"])
		})
	}
}

func TestMetricsMiddleware_AccumulatesAcrossRequests(t *testing.T) {
	mock := NewMockCoreLLM()
	mock.Model = "gpt-4o-mini"
	collector := newMockMetricsCollector()

	client := MetricsMiddleware(collector)(mock)

	for range 3 {
		_, err := client.DoRequest(context.Background(), ports.CompletionRequest{Prompt: "test"})
		require.NoError(t, err)
	}

	mock.Error = errors.New("transient")
	_, err := client.DoRequest(context.Background(), ports.CompletionRequest{Prompt: "test"})
	require.Error(t, err)

	assert.Equal(t, 3.0, collector.counterTotal("llm_requests_total", map[string]string{"status": "success"}))
	assert.Equal(t, 1.0, collector.counterTotal("llm_requests_total", map[string]string{"status": "error"}))
	assert.Equal(t, 30.0, collector.counterTotal("llm_tokens_total", map[string]string{"token_type": "input"}))
	assert.Equal(t, 60.0, collector.counterTotal("llm_tokens_total", map[string]string{"token_type": "output"}))
}

func TestMetricsMiddleware_NilCollectorDoesNotPanic(t *testing.T) {
	mock := NewMockCoreLLM()

	client := MetricsMiddleware(nil)(mock)

	assert.NotPanics(t, func() {
		resp, err := client.DoRequest(context.Background(), ports.CompletionRequest{Prompt: "test"})
		require.NoError(t, err)
		assert.Equal(t, "test response", resp.Text)
	})
}

func TestMetricsMiddleware_PassesThroughModelMethods(t *testing.T) {
	mock := NewMockCoreLLM()
	mock.Model = "initial-model"
	collector := newMockMetricsCollector()

	client := MetricsMiddleware(collector)(mock)

	assert.Equal(t, "initial-model", client.GetModel())

	client.SetModel("updated-model")
	assert.Equal(t, "updated-model", client.GetModel())
	assert.Equal(t, "updated-model", mock.Model)
}
