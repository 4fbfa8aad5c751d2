package llm

import "sync"

// DefaultMaxTokens is the completion budget used when a request does not
// set one. Anthropic's API requires an explicit value, so providers fall
// back to this.
const DefaultMaxTokens = 1024

// BaseProvider provides common, thread-safe functionality for all LLM
// providers, primarily model name management.
type BaseProvider struct {
	mu    sync.RWMutex
	model string
}

// GetModel returns the model currently configured for the provider.
// Safe for concurrent use.
func (b *BaseProvider) GetModel() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.model
}

// SetModel switches the provider to a different model. Safe for
// concurrent use.
func (b *BaseProvider) SetModel(model string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.model = model
}

// TokenCounter estimates token counts from text when an exact tokenizer
// is not available for a model.
type TokenCounter struct {
	// CharactersPerToken is the assumed average characters per token.
	CharactersPerToken float64
}

// NewTokenCounter creates a TokenCounter with a ratio suitable for
// English text.
func NewTokenCounter() *TokenCounter {
	return &TokenCounter{CharactersPerToken: 4.0}
}

// EstimateTokens approximates the token count of text using the
// configured ratio.
func (tc *TokenCounter) EstimateTokens(text string) int {
	if len(text) == 0 {
		return 0
	}
	return int(float64(len(text)) / tc.CharactersPerToken)
}

// GetTokenCount returns the actual count when the provider reported one,
// falling back to an estimate from the text otherwise.
func (tc *TokenCounter) GetTokenCount(actualCount int, text string) int {
	if actualCount > 0 {
		return actualCount
	}
	return tc.EstimateTokens(text)
}
