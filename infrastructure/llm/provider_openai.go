package llm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	"github.com/ahrav/go-gvgap/internal/ports"
)

// OpenAIDefaultModel is used when a config does not name a model.
const OpenAIDefaultModel = "gpt-4o-mini"

func init() {
	RegisterProviderFactory("openai", newOpenAIProvider)
}

// openAIProvider implements CoreLLM for OpenAI's chat completion API,
// translating the provider-agnostic request into chat messages and
// folding usage data back into the typed completion.
type openAIProvider struct {
	BaseProvider
	client          *openai.Client
	tokenCounter    *TokenCounter
	errorClassifier *ErrorClassifier
}

// newOpenAIProvider creates an OpenAI provider from the given config,
// validating the API key and any base URL or timeout overrides.
func newOpenAIProvider(config ClientConfig) (CoreLLM, error) {
	if config.APIKey == "" {
		return nil, ErrEmptyAPIKey
	}

	model := config.Model
	if model == "" {
		model = OpenAIDefaultModel
	}

	clientConfig := openai.DefaultConfig(config.APIKey)

	if config.BaseURL != "" {
		validatedURL, err := ValidateBaseURL(config.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid BaseURL: %w", err)
		}
		clientConfig.BaseURL = validatedURL
	}

	if config.Timeout > 0 {
		clientConfig.HTTPClient = &http.Client{
			Timeout: ValidateTimeout(config.Timeout),
		}
	}

	client := openai.NewClientWithConfig(clientConfig)

	return &openAIProvider{
		BaseProvider:    BaseProvider{model: model},
		client:          client,
		tokenCounter:    NewTokenCounter(),
		errorClassifier: &ErrorClassifier{Provider: "openai"},
	}, nil
}

// DoRequest sends a chat completion request to the OpenAI API and
// returns the generated text along with token usage.
func (p *openAIProvider) DoRequest(ctx context.Context, req ports.CompletionRequest) (ports.Completion, error) {
	chatReq := p.buildChatCompletionRequest(req)
	resp, err := p.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return ports.Completion{}, p.handleError(err)
	}

	if len(resp.Choices) == 0 {
		return ports.Completion{}, ErrNoResponseChoice
	}

	content := resp.Choices[0].Message.Content

	return ports.Completion{
		Text:      content,
		TokensIn:  p.tokenCounter.GetTokenCount(resp.Usage.PromptTokens, req.Prompt),
		TokensOut: p.tokenCounter.GetTokenCount(resp.Usage.CompletionTokens, content),
	}, nil
}

// buildChatCompletionRequest translates the provider-agnostic request
// into OpenAI's chat format.
func (p *openAIProvider) buildChatCompletionRequest(req ports.CompletionRequest) openai.ChatCompletionRequest {
	messages := make([]openai.ChatCompletionMessage, 0, 2)

	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}

	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Prompt,
	})

	// go-openai omits a zero temperature from the request body, which
	// would silently fall back to the API default of 1.0. Greedy
	// decoding matters for single-sample runs, so nudge zero to the
	// smallest representable value.
	temp := float32(ClampFloat64(req.Temperature, 0.0, 2.0))
	if temp == 0 {
		temp = math.SmallestNonzeroFloat32
	}

	chatReq := openai.ChatCompletionRequest{
		Model:       p.GetModel(),
		Messages:    messages,
		Temperature: temp,
	}

	if req.MaxTokens > 0 {
		chatReq.MaxTokens = req.MaxTokens
	}

	return chatReq
}

// handleError classifies errors from the OpenAI API into standardized
// provider errors, distinguishing context errors from API errors.
func (p *openAIProvider) handleError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return p.errorClassifier.ClassifyContextError(err)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		message := apiErr.Message
		if message == "" {
			message = "unknown error"
		}

		return p.errorClassifier.ClassifyHTTPError(apiErr.HTTPStatusCode, message, err)
	}

	return NewProviderError("openai", ErrorTypeUnknown, 0, "request failed", err)
}
