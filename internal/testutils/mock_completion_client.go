// Package testutils provides deterministic test doubles for the
// evaluation pipeline: a scripted completion client and a seeded noisy
// judge, so end-to-end behavior is testable without network access.
package testutils

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/ahrav/go-gvgap/internal/ports"
)

// ScriptedResponse maps a prompt pattern to a canned completion.
type ScriptedResponse struct {
	// Pattern is matched as a case-insensitive substring of the prompt.
	// Empty matches nothing; the client falls back to its default.
	Pattern string

	// Text is the completion text returned for matching prompts.
	Text string

	// TokensOut is the completion token count reported with the text.
	TokensOut int
}

// MockCompletionClient implements ports.CompletionClient with scripted
// responses selected by prompt content. Responses are checked in the
// order they were added and the first match wins, so specific patterns
// should be registered before broad ones.
//
// Script the client fully before use; Complete only reads the script,
// which keeps concurrent fan-out from pipeline stages safe.
type MockCompletionClient struct {
	model     string
	responses []ScriptedResponse
	failures  []scriptedFailure
	fallback  ScriptedResponse

	mu    sync.Mutex
	calls int
}

type scriptedFailure struct {
	pattern string
	err     error
}

// NewMockCompletionClient creates a scripted client reporting the given
// model identifier. Until responses are added, every prompt receives a
// generic default completion.
func NewMockCompletionClient(model string) *MockCompletionClient {
	return &MockCompletionClient{
		model: model,
		fallback: ScriptedResponse{
			Text:      "Nothing in the script matches, so this is the default.",
			TokensOut: 12,
		},
	}
}

// AddResponse appends a response pattern to the script.
func (m *MockCompletionClient) AddResponse(response ScriptedResponse) {
	m.responses = append(m.responses, response)
}

// AddFailure makes prompts containing pattern fail with err, simulating
// a provider outage for a subset of requests.
func (m *MockCompletionClient) AddFailure(pattern string, err error) {
	m.failures = append(m.failures, scriptedFailure{pattern: pattern, err: err})
}

// Complete implements the CompletionClient interface by returning the
// first scripted response whose pattern appears in the prompt. Prompt
// tokens are estimated the same way the production client estimates
// them, so budget arithmetic in tests matches reality.
func (m *MockCompletionClient) Complete(ctx context.Context, req ports.CompletionRequest) (ports.Completion, error) {
	if ctx.Err() != nil {
		return ports.Completion{}, ctx.Err()
	}
	if req.Prompt == "" {
		return ports.Completion{}, fmt.Errorf("prompt cannot be empty")
	}

	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	prompt := strings.ToLower(req.Prompt)
	for _, f := range m.failures {
		if strings.Contains(prompt, strings.ToLower(f.pattern)) {
			return ports.Completion{}, f.err
		}
	}

	selected := m.fallback
	for _, r := range m.responses {
		if r.Pattern != "" && strings.Contains(prompt, strings.ToLower(r.Pattern)) {
			selected = r
			break
		}
	}

	tokensIn, _ := m.EstimateTokens(req.System + req.Prompt)
	return ports.Completion{
		Text:      selected.Text,
		TokensIn:  tokensIn,
		TokensOut: selected.TokensOut,
	}, nil
}

// EstimateTokens implements the CompletionClient interface with the
// four-characters-per-token approximation the production client uses.
func (m *MockCompletionClient) EstimateTokens(text string) (int, error) {
	return (len(text) + 3) / 4, nil
}

// GetModel implements the CompletionClient interface.
func (m *MockCompletionClient) GetModel() string { return m.model }

// CallCount reports how many Complete calls were made, including ones
// that failed by script.
func (m *MockCompletionClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Verify interface compliance at compile time.
var _ ports.CompletionClient = (*MockCompletionClient)(nil)
