package llm

import (
	"strings"
	"sync"
)

// WordBasedTokenEstimator estimates tokens from word count. Fast and
// simple; best when speed matters more than precision.
type WordBasedTokenEstimator struct{ TokensPerWord float64 }

// NewWordBasedTokenEstimator builds an estimator with the given ratio.
// Typical ratios: 0.75 for English, 0.6-0.9 for other languages.
func NewWordBasedTokenEstimator(tokensPerWord float64) *WordBasedTokenEstimator {
	if tokensPerWord <= 0 {
		tokensPerWord = 0.75
	}
	return &WordBasedTokenEstimator{
		TokensPerWord: tokensPerWord,
	}
}

// EstimateTokens splits text on whitespace and applies the configured
// tokens-per-word ratio.
func (e *WordBasedTokenEstimator) EstimateTokens(text string) int {
	words := strings.Fields(text)
	return int(float64(len(words)) * e.TokensPerWord)
}

// CharacterBasedTokenEstimator estimates tokens from character count.
// More accurate for languages with consistent character density, less
// accurate for code or heavily punctuated text.
type CharacterBasedTokenEstimator struct{ charsPerToken float64 }

// NewCharacterBasedTokenEstimator creates a character-based token
// estimator. Typical ratios: 4.0 for GPT models, 3.5-4.5 for others.
func NewCharacterBasedTokenEstimator(charactersPerToken float64) *CharacterBasedTokenEstimator {
	if charactersPerToken <= 0 {
		charactersPerToken = 4.0
	}
	return &CharacterBasedTokenEstimator{
		charsPerToken: charactersPerToken,
	}
}

// EstimateTokens divides the character count by the configured
// characters-per-token ratio.
func (e *CharacterBasedTokenEstimator) EstimateTokens(text string) int {
	return int(float64(len(text)) / e.charsPerToken)
}

// CachingTokenEstimator wraps another estimator with a bounded result
// cache. Evaluation runs estimate the same question and judge prompts
// repeatedly, so caching avoids recomputing them. Safe for concurrent
// use.
type CachingTokenEstimator struct {
	mu         sync.RWMutex
	underlying TokenEstimator
	cache      map[string]int
	maxSize    int
}

// NewCachingTokenEstimator creates a caching wrapper for any
// TokenEstimator. maxSize bounds memory usage; once full, new results
// pass through uncached.
func NewCachingTokenEstimator(underlying TokenEstimator, maxSize int) *CachingTokenEstimator {
	if maxSize <= 0 {
		maxSize = 1000
	}
	return &CachingTokenEstimator{
		underlying: underlying,
		cache:      make(map[string]int),
		maxSize:    maxSize,
	}
}

// EstimateTokens returns the cached count when available, otherwise
// delegates to the underlying estimator and caches the result.
func (e *CachingTokenEstimator) EstimateTokens(text string) int {
	e.mu.RLock()
	tokens, exists := e.cache[text]
	e.mu.RUnlock()
	if exists {
		return tokens
	}

	tokens = e.underlying.EstimateTokens(text)

	e.mu.Lock()
	if len(e.cache) < e.maxSize {
		e.cache[text] = tokens
	}
	e.mu.Unlock()

	return tokens
}

// ClearCache drops every cached result.
func (e *CachingTokenEstimator) ClearCache() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cache = make(map[string]int)
}

// CacheSize returns the current number of cached results.
func (e *CachingTokenEstimator) CacheSize() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.cache)
}
