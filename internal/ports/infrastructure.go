package ports

import (
	"context"
	"time"
)

// CompletionRequest is a single LLM completion request. The typed
// struct keeps prompt construction at the caller while letting every
// provider map the fields onto its own API.
type CompletionRequest struct {
	// System is the system prompt establishing the model's role.
	// Empty means the provider default.
	System string

	// Prompt is the user-turn content of the request.
	Prompt string

	// Temperature is the sampling temperature. Zero requests greedy
	// decoding, which judges use for reproducible verdicts.
	Temperature float64

	// MaxTokens caps the completion length. Zero means the provider
	// default.
	MaxTokens int
}

// Completion is the provider response to a CompletionRequest,
// including token usage for cost accounting.
type Completion struct {
	// Text is the generated completion text.
	Text string

	// TokensIn is the prompt token count reported by the provider, or
	// an estimate when the provider omits usage data.
	TokensIn int

	// TokensOut is the completion token count, estimated when absent.
	TokensOut int
}

// CompletionClient is the boundary interface for LLM access.
// Implementations handle provider-specific details such as
// authentication, request formatting, retries, and rate limiting.
// Implementations must be safe for concurrent use; pipeline stages
// issue requests from many goroutines at once.
type CompletionClient interface {
	// Complete sends one completion request and returns the response
	// with token usage. The context carries cancellation and deadlines;
	// implementations must return promptly when it is done.
	Complete(ctx context.Context, req CompletionRequest) (Completion, error)

	// EstimateTokens approximates the token count of text for cost
	// estimation before a request is made. The estimation method may
	// vary by provider.
	EstimateTokens(text string) (int, error)

	// GetModel returns the model identifier served by this client,
	// used for record attribution and logging.
	GetModel() string
}

// MetricsCollector abstracts operational metrics emission so
// infrastructure can record telemetry without binding to a specific
// backend. The production implementation exports to Prometheus.
type MetricsCollector interface {
	// RecordLatency records the execution time of an operation.
	// Labels add dimensions such as provider or model.
	RecordLatency(operation string, duration time.Duration, labels map[string]string)

	// RecordCounter increments a counter metric by value.
	RecordCounter(metric string, value float64, labels map[string]string)

	// RecordGauge sets the current value of a gauge metric.
	RecordGauge(metric string, value float64, labels map[string]string)

	// RecordHistogram records one observation into a histogram metric.
	RecordHistogram(metric string, value float64, labels map[string]string)
}
