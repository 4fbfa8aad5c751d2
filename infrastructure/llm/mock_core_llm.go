package llm

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ahrav/go-gvgap/internal/ports"
)

var errSimulatedFailure = errors.New("simulated failure")

// MockCoreLLM is a configurable CoreLLM double for middleware tests.
// Fields configure the canned response and failure pattern; the mock
// records every request so tests can assert on timing and payloads.
type MockCoreLLM struct {
	mu sync.Mutex

	// Canned response.
	Response  string
	TokensIn  int
	TokensOut int
	Model     string

	// Error, when set, is returned instead of the response. With
	// FailUntilAttempt > 0 the first N calls fail (with Error, or a
	// simulated failure when Error is nil) and later calls succeed.
	Error            error
	FailUntilAttempt int

	// ResponseDelay holds each call open, for timeout and rate tests.
	ResponseDelay time.Duration

	// LastRequest and LastContext capture the most recent call.
	LastRequest ports.CompletionRequest
	LastContext context.Context

	callCount int
	callTimes []time.Time
}

// NewMockCoreLLM creates a mock with default successful behavior.
func NewMockCoreLLM() *MockCoreLLM {
	return &MockCoreLLM{
		Response:  "test response",
		TokensIn:  10,
		TokensOut: 20,
		Model:     "test-model",
	}
}

// DoRequest implements CoreLLM with the configured behavior.
func (m *MockCoreLLM) DoRequest(ctx context.Context, req ports.CompletionRequest) (ports.Completion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.callCount++
	m.LastRequest = req
	m.LastContext = ctx
	m.callTimes = append(m.callTimes, time.Now())

	if m.ResponseDelay > 0 {
		select {
		case <-time.After(m.ResponseDelay):
		case <-ctx.Done():
			return ports.Completion{}, ctx.Err()
		}
	}

	if err := m.callError(); err != nil {
		return ports.Completion{}, err
	}

	return ports.Completion{
		Text:      m.Response,
		TokensIn:  m.TokensIn,
		TokensOut: m.TokensOut,
	}, nil
}

// callError decides whether the current call fails. Callers hold mu.
func (m *MockCoreLLM) callError() error {
	if m.FailUntilAttempt > 0 {
		if m.callCount > m.FailUntilAttempt {
			return nil
		}
		if m.Error != nil {
			return m.Error
		}
		return errSimulatedFailure
	}
	return m.Error
}

// GetModel returns the configured model name.
func (m *MockCoreLLM) GetModel() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Model
}

// SetModel updates the model name.
func (m *MockCoreLLM) SetModel(model string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Model = model
}

// GetCallCount returns the number of times DoRequest was called.
func (m *MockCoreLLM) GetCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// GetTimeBetweenCalls returns the duration between two calls by index,
// or nil when either index is out of range.
func (m *MockCoreLLM) GetTimeBetweenCalls(call1, call2 int) *time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()

	if call1 < 0 || call2 < 0 || call1 >= len(m.callTimes) || call2 >= len(m.callTimes) {
		return nil
	}

	duration := m.callTimes[call2].Sub(m.callTimes[call1])
	return &duration
}
