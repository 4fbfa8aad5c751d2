package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/ahrav/go-gvgap/internal/ports"
)

// AnthropicDefaultModel is used when a config does not name a model.
const AnthropicDefaultModel = "claude-3-5-sonnet-20241022"

func init() {
	RegisterProviderFactory("anthropic", newAnthropicProvider)
}

// anthropicProvider implements CoreLLM for Anthropic's Messages API.
// It handles Anthropic-specific request formatting and response parsing
// while maintaining compatibility with the common middleware system.
type anthropicProvider struct {
	BaseProvider
	client          anthropic.Client
	tokenCounter    *TokenCounter
	errorClassifier *ErrorClassifier
}

// newAnthropicProvider creates an Anthropic provider from the given
// config, validating the API key and any base URL or timeout overrides.
func newAnthropicProvider(config ClientConfig) (CoreLLM, error) {
	if config.APIKey == "" {
		return nil, ErrEmptyAPIKey
	}

	model := config.Model
	if model == "" {
		model = AnthropicDefaultModel
	}

	// Retry policy belongs to the middleware chain, not the SDK.
	opts := []option.RequestOption{
		option.WithAPIKey(config.APIKey),
		option.WithMaxRetries(0),
	}

	if config.BaseURL != "" {
		validatedURL, err := ValidateBaseURL(config.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid BaseURL: %w", err)
		}
		opts = append(opts, option.WithBaseURL(validatedURL))
	}

	if config.Timeout > 0 {
		opts = append(opts, option.WithHTTPClient(&http.Client{
			Timeout: ValidateTimeout(config.Timeout),
		}))
	}

	client := anthropic.NewClient(opts...)

	return &anthropicProvider{
		BaseProvider:    BaseProvider{model: model},
		client:          client,
		tokenCounter:    NewTokenCounter(),
		errorClassifier: &ErrorClassifier{Provider: "anthropic"},
	}, nil
}

// DoRequest sends a request to Anthropic's Messages API and returns the
// generated text along with token usage.
func (p *anthropicProvider) DoRequest(ctx context.Context, req ports.CompletionRequest) (ports.Completion, error) {
	params := p.buildMessageParams(req)

	message, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return ports.Completion{}, p.handleError(err)
	}

	return p.processResponse(message, req.Prompt)
}

// buildMessageParams translates the provider-agnostic request into
// Anthropic's message format. MaxTokens is mandatory for this API, so
// unset budgets fall back to DefaultMaxTokens.
func (p *anthropicProvider) buildMessageParams(req ports.CompletionRequest) anthropic.MessageNewParams {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.GetModel()),
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
		// Anthropic accepts temperatures in [0, 1] only.
		Temperature: anthropic.Float(ClampFloat64(req.Temperature, 0.0, 1.0)),
	}

	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	return params
}

// processResponse extracts text content and token counts from the API
// response.
func (p *anthropicProvider) processResponse(message *anthropic.Message, originalPrompt string) (ports.Completion, error) {
	var responseText strings.Builder
	for _, block := range message.Content {
		switch content := block.AsAny().(type) {
		case anthropic.TextBlock:
			responseText.WriteString(content.Text)
		}
	}

	responseStr := responseText.String()
	if responseStr == "" {
		return ports.Completion{}, ErrEmptyResponse
	}

	return ports.Completion{
		Text:      responseStr,
		TokensIn:  p.tokenCounter.GetTokenCount(int(message.Usage.InputTokens), originalPrompt),
		TokensOut: p.tokenCounter.GetTokenCount(int(message.Usage.OutputTokens), responseStr),
	}, nil
}

// handleError classifies errors from the Anthropic SDK into standardized
// provider errors.
func (p *anthropicProvider) handleError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return p.errorClassifier.ClassifyContextError(err)
	}

	var anthropicErr *anthropic.Error
	if errors.As(err, &anthropicErr) {
		return p.errorClassifier.ClassifyHTTPError(anthropicErr.StatusCode, anthropicErr.Error(), err)
	}

	return NewProviderError("anthropic", ErrorTypeUnknown, 0, "request failed", err)
}
