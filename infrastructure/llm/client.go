// Package llm provides a unified client for the LLM providers that back
// candidate generation and verdict judging, with built-in support for
// rate limiting, retries, circuit breaking, metrics, and tracing.
//
// The package abstracts multiple providers (OpenAI, Anthropic, Google)
// behind the typed ports.CompletionClient boundary while adding
// operational cross-cutting concerns through a middleware pattern, so
// pipeline stages can switch providers or add resilience features
// without changing their code.
//
// The structure:
//   - Client composes a provider core with a middleware chain
//   - Providers sit behind the CoreLLM interface
//   - Middleware covers retries, rate limiting, circuit breaking,
//     metrics, and tracing
//   - Registry serves multi-provider runs where generator and judge
//     use different models
//   - Token estimation is pluggable per client
//
// Typical use:
//
//	client, err := llm.NewClient("openai", llm.ClientConfig{
//	    APIKey: os.Getenv("OPENAI_API_KEY"),
//	    Model:  "gpt-4o-mini",
//	})
//	resp, err := client.Complete(ctx, ports.CompletionRequest{
//	    System:      "You judge if a final answer is correct.",
//	    Prompt:      judgePrompt,
//	    Temperature: 0,
//	})
//
// With middleware:
//
//	client, err := llm.NewClient("anthropic", llm.ClientConfig{
//	    APIKey: os.Getenv("ANTHROPIC_API_KEY"),
//	    Model:  "claude-4-sonnet",
//	    Middleware: []llm.Middleware{
//	        llm.RetryMiddleware(3, time.Second, 30*time.Second),
//	        llm.RateLimitMiddleware(10, 20),
//	        llm.CircuitBreakerMiddleware(4, 20*time.Second),
//	        llm.MetricsMiddleware(collector),
//	    },
//	})
package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/ahrav/go-gvgap/internal/ports"
)

// CoreLLM is the minimal interface a provider must implement.
// It carries one typed completion request to the provider API and
// returns the typed response, allowing the middleware system to wrap
// any conforming implementation without knowing provider details.
type CoreLLM interface {
	// DoRequest sends one completion request to the provider and
	// returns the response text with token usage.
	DoRequest(ctx context.Context, req ports.CompletionRequest) (ports.Completion, error)

	// GetModel reports the model requests are currently routed to.
	GetModel() string

	// SetModel updates the model used for subsequent requests,
	// allowing dynamic model switching without recreating the client.
	SetModel(model string)
}

// TokenEstimator approximates token counts ahead of a request.
// Providers tokenize differently, so callers can swap in whatever
// counting suits their cost estimation or rate limiting.
type TokenEstimator interface {
	// EstimateTokens returns an approximate token count for text,
	// used when exact counts are unavailable before a request.
	EstimateTokens(text string) int
}

// ClientConfig holds all options for creating an LLM client:
// provider credentials, model selection, middleware, and operational
// settings.
type ClientConfig struct {
	// APIKey authenticates requests to the provider.
	// For the Google provider this may instead point to a credentials file.
	APIKey string

	// Model selects which model serves requests.
	// Each provider supports its own model names.
	Model string

	// BaseURL overrides the provider's default API endpoint.
	// Leave empty for the default.
	BaseURL string

	// Timeout bounds individual requests. Zero means no timeout.
	Timeout time.Duration

	// TokenEstimator supplies custom token counting logic.
	// Nil selects the character-heuristic default.
	TokenEstimator TokenEstimator

	// Middleware is applied in the order given, with the first entry
	// outermost.
	Middleware []Middleware
}

// Middleware wraps a CoreLLM to add cross-cutting behavior such as
// retries, rate limiting, circuit breaking, or telemetry without
// modifying provider logic.
type Middleware func(CoreLLM) CoreLLM

// Client implements ports.CompletionClient by wrapping a
// provider-specific CoreLLM with the configured middleware chain.
type Client struct {
	core      CoreLLM
	estimator TokenEstimator
}

var _ ports.CompletionClient = (*Client)(nil)

// NewClient assembles a client for the named provider type.
// It validates configuration, builds the provider through its
// registered factory, and applies the middleware chain before
// returning a ready-to-use client.
func NewClient(providerType string, config ClientConfig) (*Client, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	if config.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	factory, ok := providerFactories[providerType]
	if !ok {
		return nil, fmt.Errorf("unknown provider: %s", providerType)
	}

	core, err := factory(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create provider: %w", err)
	}

	estimator := config.TokenEstimator
	if estimator == nil {
		estimator = &SimpleTokenEstimator{}
	}

	return &Client{
		core:      applyMiddleware(core, config.Middleware),
		estimator: estimator,
	}, nil
}

// applyMiddleware wraps core with mw back to front, leaving the first
// entry outermost.
func applyMiddleware(core CoreLLM, mw []Middleware) CoreLLM {
	for i := len(mw) - 1; i >= 0; i-- {
		core = mw[i](core)
	}
	return core
}

// Complete sends one completion request through the middleware chain
// to the provider and returns the typed response.
func (c *Client) Complete(ctx context.Context, req ports.CompletionRequest) (ports.Completion, error) {
	return c.core.DoRequest(ctx, req)
}

// EstimateTokens returns an approximate token count for the given text
// using the configured estimator, for cost estimates before a request
// is made.
func (c *Client) EstimateTokens(text string) (int, error) {
	return c.estimator.EstimateTokens(text), nil
}

// GetModel returns the model name configured on the underlying provider.
func (c *Client) GetModel() string { return c.core.GetModel() }

// SetModel switches the underlying provider to a different model for
// subsequent requests.
func (c *Client) SetModel(model string) { c.core.SetModel(model) }

// SimpleTokenEstimator provides basic character-based token estimation
// using the common heuristic of roughly 4 characters per token, which
// works reasonably well for English text.
type SimpleTokenEstimator struct{}

// EstimateTokens returns an approximate token count assuming about
// 4 characters per token.
func (e *SimpleTokenEstimator) EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}

// ProviderFactory builds a provider core from client configuration.
// The registry creates provider instances through this signature
// without knowing their implementation details.
type ProviderFactory func(ClientConfig) (CoreLLM, error)

// Provider factory registry. Providers register themselves in init so
// importing the package is enough to make them available.
var providerFactories = map[string]ProviderFactory{}

// RegisterProviderFactory registers a custom provider factory,
// extending the client with additional providers without modifying the
// core package.
func RegisterProviderFactory(providerType string, factory ProviderFactory) {
	providerFactories[providerType] = factory
}
