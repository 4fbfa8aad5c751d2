package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-gvgap/internal/ports"
)

// mockUsage mirrors the usage block of a Messages API response.
type mockUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// mockContent mirrors one content block of a Messages API response.
type mockContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// mockMessageResponse mirrors a successful Messages API response.
type mockMessageResponse struct {
	ID      string        `json:"id"`
	Type    string        `json:"type"`
	Role    string        `json:"role"`
	Content []mockContent `json:"content"`
	Model   string        `json:"model"`
	Usage   mockUsage     `json:"usage"`
}

// mockAPIError mirrors an error response from the Messages API.
type mockAPIError struct {
	Type  string `json:"type"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func anthropicErrorBody(errType, message string) mockAPIError {
	var resp mockAPIError
	resp.Type = "error"
	resp.Error.Type = errType
	resp.Error.Message = message
	return resp
}

// stubAnthropic starts a Messages API stub and returns a provider pointed
// at it. An empty model selects the provider default; the stub is torn
// down with the test.
func stubAnthropic(t *testing.T, model string, handler http.HandlerFunc) CoreLLM {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	provider, err := newAnthropicProvider(ClientConfig{
		APIKey:  "test-api-key",
		Model:   model,
		BaseURL: server.URL,
	})
	require.NoError(t, err)
	return provider
}

// respondMessage writes resp as a Messages API success body.
func respondMessage(w http.ResponseWriter, resp mockMessageResponse) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// respondAnthropicError writes a Messages API error body with the given
// HTTP status.
func respondAnthropicError(w http.ResponseWriter, status int, errType, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(anthropicErrorBody(errType, message))
}

// singleTextMessage builds a response carrying one text block and the
// given token usage.
func singleTextMessage(text string, tokensIn, tokensOut int) mockMessageResponse {
	return mockMessageResponse{
		ID:      "msg_test_id",
		Type:    "message",
		Role:    "assistant",
		Content: []mockContent{{Type: "text", Text: text}},
		Model:   AnthropicDefaultModel,
		Usage:   mockUsage{InputTokens: tokensIn, OutputTokens: tokensOut},
	}
}

func TestNewAnthropicProvider(t *testing.T) {
	tests := []struct {
		name        string
		config      ClientConfig
		expectError error
	}{
		{
			name: "valid config with all fields",
			config: ClientConfig{
				APIKey:  "test-api-key",
				Model:   AnthropicDefaultModel,
				BaseURL: "https://api.anthropic.com",
			},
		},
		{
			name:   "valid config with minimal fields",
			config: ClientConfig{APIKey: "test-api-key"},
		},
		{
			name:        "empty API key",
			config:      ClientConfig{},
			expectError: ErrEmptyAPIKey,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider, err := newAnthropicProvider(tt.config)

			if tt.expectError != nil {
				require.ErrorIs(t, err, tt.expectError)
				assert.Nil(t, provider)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, provider)

			expectedModel := tt.config.Model
			if expectedModel == "" {
				expectedModel = AnthropicDefaultModel
			}
			assert.Equal(t, expectedModel, provider.GetModel())
		})
	}

	t.Run("invalid base url", func(t *testing.T) {
		_, err := newAnthropicProvider(ClientConfig{
			APIKey:  "test-api-key",
			BaseURL: "not a url",
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid BaseURL")
	})
}

func TestAnthropicProvider_GetSetModel(t *testing.T) {
	provider, err := newAnthropicProvider(ClientConfig{APIKey: "test-key"})
	require.NoError(t, err)

	assert.Equal(t, AnthropicDefaultModel, provider.GetModel())

	provider.SetModel("claude-3-opus-20240229")
	assert.Equal(t, "claude-3-opus-20240229", provider.GetModel())
}

func TestAnthropicProvider_DoRequest_Success(t *testing.T) {
	provider := stubAnthropic(t, "", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var reqBody map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&reqBody))

		assert.Equal(t, AnthropicDefaultModel, reqBody["model"])
		assert.Equal(t, float64(DefaultMaxTokens), reqBody["max_tokens"],
			"unset budget should fall back to the default")

		messages := reqBody["messages"].([]any)
		assert.Len(t, messages, 1)

		respondMessage(w, singleTextMessage("Hello! This is a test response.", 10, 15))
	})

	resp, err := provider.DoRequest(context.Background(), ports.CompletionRequest{
		Prompt: "Hello, world!",
	})
	require.NoError(t, err)

	assert.Equal(t, "Hello! This is a test response.", resp.Text)
	assert.Equal(t, 10, resp.TokensIn)
	assert.Equal(t, 15, resp.TokensOut)
}

func TestAnthropicProvider_DoRequest_WithSystemAndOptions(t *testing.T) {
	provider := stubAnthropic(t, "claude-3-opus-20240229", func(w http.ResponseWriter, r *http.Request) {
		var reqBody map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&reqBody))

		assert.Equal(t, "claude-3-opus-20240229", reqBody["model"])
		assert.Equal(t, float64(2048), reqBody["max_tokens"])
		assert.Equal(t, 0.7, reqBody["temperature"])

		system := reqBody["system"].([]any)
		require.Len(t, system, 1)
		systemMsg := system[0].(map[string]any)
		assert.Equal(t, "You are a helpful assistant.", systemMsg["text"])

		resp := singleTextMessage("Custom response with options.", 20, 25)
		resp.Model = "claude-3-opus-20240229"
		respondMessage(w, resp)
	})

	resp, err := provider.DoRequest(context.Background(), ports.CompletionRequest{
		System:      "You are a helpful assistant.",
		Prompt:      "Test prompt",
		Temperature: 0.7,
		MaxTokens:   2048,
	})
	require.NoError(t, err)

	assert.Equal(t, "Custom response with options.", resp.Text)
	assert.Equal(t, 20, resp.TokensIn)
	assert.Equal(t, 25, resp.TokensOut)
}

func TestAnthropicProvider_DoRequest_ClampsTemperature(t *testing.T) {
	provider := stubAnthropic(t, "", func(w http.ResponseWriter, r *http.Request) {
		var reqBody map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&reqBody))

		// The Messages API rejects temperatures above 1.
		assert.Equal(t, 1.0, reqBody["temperature"])

		respondMessage(w, singleTextMessage("Response", 5, 5))
	})

	_, err := provider.DoRequest(context.Background(), ports.CompletionRequest{
		Prompt:      "Test",
		Temperature: 2.0,
	})
	require.NoError(t, err)
}

func TestAnthropicProvider_DoRequest_MultipleContentBlocks(t *testing.T) {
	provider := stubAnthropic(t, "", func(w http.ResponseWriter, r *http.Request) {
		resp := singleTextMessage("", 10, 20)
		resp.Content = []mockContent{
			{Type: "text", Text: "First part of response. "},
			{Type: "text", Text: "Second part of response."},
		}
		respondMessage(w, resp)
	})

	resp, err := provider.DoRequest(context.Background(), ports.CompletionRequest{Prompt: "Test"})
	require.NoError(t, err)

	assert.Equal(t, "First part of response. Second part of response.", resp.Text)
	assert.Equal(t, 10, resp.TokensIn)
	assert.Equal(t, 20, resp.TokensOut)
}

func TestAnthropicProvider_DoRequest_EmptyResponse(t *testing.T) {
	provider := stubAnthropic(t, "", func(w http.ResponseWriter, r *http.Request) {
		resp := singleTextMessage("", 5, 0)
		resp.Content = nil
		respondMessage(w, resp)
	})

	_, err := provider.DoRequest(context.Background(), ports.CompletionRequest{Prompt: "Test"})
	require.ErrorIs(t, err, ErrEmptyResponse)
}

func TestAnthropicProvider_DoRequest_AuthError(t *testing.T) {
	provider := stubAnthropic(t, "", func(w http.ResponseWriter, r *http.Request) {
		respondAnthropicError(w, http.StatusUnauthorized, "authentication_error", "invalid api key")
	})

	_, err := provider.DoRequest(context.Background(), ports.CompletionRequest{Prompt: "Test"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "anthropic authentication failed")
	assert.Contains(t, err.Error(), "401")

	var provErr *ProviderError
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, ErrorTypeAuthentication, provErr.Type)
	assert.False(t, provErr.IsRetryable())
}

func TestAnthropicProvider_DoRequest_RateLimitError(t *testing.T) {
	provider := stubAnthropic(t, "", func(w http.ResponseWriter, r *http.Request) {
		respondAnthropicError(w, http.StatusTooManyRequests, "rate_limit_error", "rate limit exceeded")
	})

	_, err := provider.DoRequest(context.Background(), ports.CompletionRequest{Prompt: "Test"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "anthropic rate limit exceeded")

	var provErr *ProviderError
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, ErrorTypeRateLimit, provErr.Type)
	assert.True(t, provErr.IsRetryable(), "rate limits should be retryable by the middleware")
}

func TestAnthropicProvider_DoRequest_ContextCancellation(t *testing.T) {
	provider := stubAnthropic(t, "", func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		respondMessage(w, singleTextMessage("Response", 5, 5))
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := provider.DoRequest(ctx, ports.CompletionRequest{Prompt: "Test"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "context deadline exceeded")

	var provErr *ProviderError
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, ErrorTypeTimeout, provErr.Type, "deadline expiry should classify as a transient timeout")
}

func TestAnthropicProvider_DoRequest_TokenFallback(t *testing.T) {
	provider := stubAnthropic(t, "", func(w http.ResponseWriter, r *http.Request) {
		// Zero usage forces the character-based estimator fallback.
		respondMessage(w, singleTextMessage("Test response", 0, 0))
	})

	resp, err := provider.DoRequest(context.Background(), ports.CompletionRequest{Prompt: "Hello world"})
	require.NoError(t, err)

	assert.Equal(t, "Test response", resp.Text)
	// 11 prompt characters and 13 response characters at ~4 chars per token.
	assert.Equal(t, 2, resp.TokensIn)
	assert.Equal(t, 3, resp.TokensOut)
}
