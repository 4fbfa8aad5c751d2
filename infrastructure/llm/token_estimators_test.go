package llm

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWordBasedTokenEstimator_EstimatesBasedOnWordCount(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		ratio float64
		want  int
	}{
		{
			name:  "question fragment",
			text:  "Natalia sold 48 clips in April",
			ratio: 0.75,
			want:  4, // 6 words * 0.75 = 4.5, truncated
		},
		{
			name:  "single word",
			text:  "Answer:",
			ratio: 1.0,
			want:  1,
		},
		{
			name:  "empty text",
			text:  "",
			ratio: 0.75,
			want:  0,
		},
		{
			name:  "whitespace only",
			text:  "   \t\n  ",
			ratio: 0.75,
			want:  0,
		},
		{
			name:  "runs of spaces collapse",
			text:  "x    =     7",
			ratio: 1.0,
			want:  3,
		},
		{
			name:  "high ratio",
			text:  "chain of thought",
			ratio: 2.0,
			want:  6,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			estimator := NewWordBasedTokenEstimator(tt.ratio)
			assert.Equal(t, tt.want, estimator.EstimateTokens(tt.text))
		})
	}
}

func TestWordBasedTokenEstimator_UsesDefaultRatio(t *testing.T) {
	zero := NewWordBasedTokenEstimator(0)
	negative := NewWordBasedTokenEstimator(-1.5)

	text := "Add the two totals together"
	want := 3 // 5 words * default 0.75 = 3.75, truncated

	assert.Equal(t, want, zero.EstimateTokens(text), "should use default ratio for zero")
	assert.Equal(t, want, negative.EstimateTokens(text), "should use default ratio for negative")
}

func TestCharacterBasedTokenEstimator_EstimatesBasedOnCharacterCount(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		ratio float64
		want  int
	}{
		{
			name:  "short equation",
			text:  "x + y = 12",
			ratio: 4.0,
			want:  2, // 10 chars / 4.0 = 2.5, truncated
		},
		{
			name:  "single character",
			text:  "7",
			ratio: 1.0,
			want:  1,
		},
		{
			name:  "empty text",
			text:  "",
			ratio: 4.0,
			want:  0,
		},
		{
			name:  "longer text",
			text:  "Each box holds twelve pencils",
			ratio: 5.0,
			want:  5, // 29 chars / 5.0 = 5.8, truncated
		},
		{
			name:  "unicode counts bytes not runes",
			text:  "price 世界 🌍",
			ratio: 3.0,
			want:  5, // 17 bytes / 3.0 = 5.67, truncated
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			estimator := NewCharacterBasedTokenEstimator(tt.ratio)
			assert.Equal(t, tt.want, estimator.EstimateTokens(tt.text))
		})
	}
}

func TestCharacterBasedTokenEstimator_UsesDefaultRatio(t *testing.T) {
	zero := NewCharacterBasedTokenEstimator(0)
	negative := NewCharacterBasedTokenEstimator(-2.5)

	text := "seventy two"
	want := int(float64(len(text)) / 4.0)

	assert.Equal(t, want, zero.EstimateTokens(text), "should use default ratio for zero")
	assert.Equal(t, want, negative.EstimateTokens(text), "should use default ratio for negative")
}

func TestCachingTokenEstimator_CachesResults(t *testing.T) {
	underlying := NewWordBasedTokenEstimator(1.0)
	caching := NewCachingTokenEstimator(underlying, 10)

	text := "forty eight clips"

	first := caching.EstimateTokens(text)
	second := caching.EstimateTokens(text)
	third := caching.EstimateTokens(text)

	assert.Equal(t, 3, first, "should estimate 3 tokens for 3 words")
	assert.Equal(t, first, second, "cached result should match original")
	assert.Equal(t, first, third, "cached result should match original")
	assert.Equal(t, 1, caching.CacheSize())
}

func TestCachingTokenEstimator_DifferentTextsHaveDifferentResults(t *testing.T) {
	underlying := NewWordBasedTokenEstimator(1.0)
	caching := NewCachingTokenEstimator(underlying, 10)

	short := caching.EstimateTokens("two apples")
	long := caching.EstimateTokens("three red apples")

	assert.Equal(t, 2, short)
	assert.Equal(t, 3, long)
	assert.Equal(t, 2, caching.CacheSize())
}

func TestCachingTokenEstimator_RespectsMaxSize(t *testing.T) {
	underlying := NewWordBasedTokenEstimator(1.0)
	caching := NewCachingTokenEstimator(underlying, 2)

	caching.EstimateTokens("sample one")
	caching.EstimateTokens("sample two")
	assert.Equal(t, 2, caching.CacheSize())

	// A full cache passes new texts through uncached but still returns
	// correct estimates.
	tokens := caching.EstimateTokens("sample number three")
	assert.Equal(t, 3, tokens)
	assert.Equal(t, 2, caching.CacheSize(), "cache should not exceed max size")
}

func TestCachingTokenEstimator_ClearCache(t *testing.T) {
	underlying := NewWordBasedTokenEstimator(1.0)
	caching := NewCachingTokenEstimator(underlying, 10)

	caching.EstimateTokens("scratch text")
	assert.Equal(t, 1, caching.CacheSize())

	caching.ClearCache()
	assert.Equal(t, 0, caching.CacheSize())

	// The cache accepts new entries after clearing.
	caching.EstimateTokens("scratch text")
	assert.Equal(t, 1, caching.CacheSize())
}

func TestCachingTokenEstimator_UsesDefaultMaxSize(t *testing.T) {
	underlying := NewWordBasedTokenEstimator(1.0)
	zero := NewCachingTokenEstimator(underlying, 0)
	negative := NewCachingTokenEstimator(underlying, -5)

	zero.EstimateTokens("seed")
	negative.EstimateTokens("seed")

	assert.Equal(t, 1, zero.CacheSize(), "should cache with default max size")
	assert.Equal(t, 1, negative.CacheSize(), "should cache with default max size")
}

func TestCachingTokenEstimator_ConcurrentAccess(t *testing.T) {
	underlying := NewWordBasedTokenEstimator(1.0)
	caching := NewCachingTokenEstimator(underlying, 100)

	texts := []string{
		"seventy two",
		"ten raised questions",
		"five",
	}

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			text := texts[i%len(texts)]
			want := underlying.EstimateTokens(text)
			for range 50 {
				assert.Equal(t, want, caching.EstimateTokens(text))
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, len(texts), caching.CacheSize())
}

func TestTokenEstimators_HandleEdgeCases(t *testing.T) {
	estimators := map[string]TokenEstimator{
		"word":    NewWordBasedTokenEstimator(0.75),
		"char":    NewCharacterBasedTokenEstimator(4.0),
		"caching": NewCachingTokenEstimator(NewWordBasedTokenEstimator(0.75), 10),
		"simple":  &SimpleTokenEstimator{},
	}

	edgeCases := []string{
		"",
		" ",
		"\n\t\r",
		"a",
		strings.Repeat("a", 10000),
		"🌍🌎🌏",
		"Mixed 48 #### 世界",
	}

	for name, estimator := range estimators {
		for _, text := range edgeCases {
			t.Run(name, func(t *testing.T) {
				tokens := estimator.EstimateTokens(text)
				assert.GreaterOrEqual(t, tokens, 0, "should not return negative tokens")
			})
		}
	}
}
