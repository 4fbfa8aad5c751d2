package llm

import (
	"context"

	"github.com/ahrav/go-gvgap/internal/ports"
)

// MockProvider is a mock implementation of CoreLLM for testing
// provider-agnostic logic without real API calls.
type MockProvider struct {
	BaseProvider
	// DoRequestFunc injects custom logic into DoRequest. When nil, a
	// default mock response is returned.
	DoRequestFunc func(ctx context.Context, req ports.CompletionRequest) (ports.Completion, error)
	// CallCount tracks the number of times DoRequest has been invoked.
	CallCount int
}

// DoRequest implements CoreLLM for MockProvider. It increments the call
// count and executes DoRequestFunc when defined, otherwise returning a
// default success response.
func (m *MockProvider) DoRequest(ctx context.Context, req ports.CompletionRequest) (ports.Completion, error) {
	m.CallCount++
	if m.DoRequestFunc != nil {
		return m.DoRequestFunc(ctx, req)
	}
	return ports.Completion{Text: "mock response", TokensIn: 10, TokensOut: 5}, nil
}
