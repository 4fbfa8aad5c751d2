package llm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"google.golang.org/api/googleapi"
	"google.golang.org/genai"

	"github.com/ahrav/go-gvgap/internal/ports"
)

// GoogleDefaultModel is used when a config does not name a model.
const GoogleDefaultModel = "gemini-2.0-flash-exp"

func init() {
	RegisterProviderFactory("google", newGoogleProvider)
}

// googleProvider implements CoreLLM for Google's Gemini API, covering
// the Gemini-specific pieces: API key versus credentials-file
// authentication, content formatting, and safety-block classification.
type googleProvider struct {
	BaseProvider
	client          *genai.Client
	tokenCounter    *TokenCounter
	errorClassifier *ErrorClassifier
}

// newGoogleProvider creates a Google Gemini provider from the given
// config. It returns an error if required configuration is missing or
// invalid.
func newGoogleProvider(config ClientConfig) (CoreLLM, error) {
	if config.APIKey == "" {
		return nil, ErrEmptyAPIKey
	}

	model := config.Model
	if model == "" {
		model = GoogleDefaultModel
	}

	authConfig, err := buildAuthConfig(config)
	if err != nil {
		return nil, fmt.Errorf("failed to configure authentication: %w", err)
	}

	client, err := genai.NewClient(context.Background(), authConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Google client: %w", err)
	}

	return &googleProvider{
		BaseProvider:    BaseProvider{model: model},
		client:          client,
		tokenCounter:    NewTokenCounter(),
		errorClassifier: &ErrorClassifier{Provider: "google"},
	}, nil
}

// DoRequest sends a request to the Google Gemini API and returns the
// generated text along with token usage.
func (p *googleProvider) DoRequest(ctx context.Context, req ports.CompletionRequest) (ports.Completion, error) {
	contents := p.buildContents(req)
	config := p.buildGenerationConfig(req)

	resp, err := p.client.Models.GenerateContent(ctx, p.GetModel(), contents, config)
	if err != nil {
		return ports.Completion{}, p.handleError(err)
	}

	content := resp.Text()
	if content == "" {
		return ports.Completion{}, ErrEmptyResponse
	}

	return ports.Completion{
		Text:      content,
		TokensIn:  p.promptTokens(resp.UsageMetadata, req.Prompt),
		TokensOut: p.outputTokens(resp.UsageMetadata, content),
	}, nil
}

// promptTokens reads the input token count from usage metadata, falling
// back to estimation when the API omitted it.
func (p *googleProvider) promptTokens(usage *genai.GenerateContentResponseUsageMetadata, prompt string) int {
	if usage != nil && usage.PromptTokenCount > 0 {
		return int(usage.PromptTokenCount)
	}
	return p.tokenCounter.EstimateTokens(prompt)
}

// outputTokens mirrors promptTokens for the generated side.
func (p *googleProvider) outputTokens(usage *genai.GenerateContentResponseUsageMetadata, output string) int {
	if usage != nil && usage.CandidatesTokenCount > 0 {
		return int(usage.CandidatesTokenCount)
	}
	return p.tokenCounter.EstimateTokens(output)
}

// buildContents creates the content payload for a Gemini request.
// The system prompt is prepended to the user prompt because this API
// has no separate system role.
func (p *googleProvider) buildContents(req ports.CompletionRequest) []*genai.Content {
	finalPrompt := req.Prompt
	if req.System != "" {
		finalPrompt = fmt.Sprintf("System: %s\n\nUser: %s", req.System, req.Prompt)
	}

	return []*genai.Content{
		genai.NewContentFromText(finalPrompt, genai.RoleUser),
	}
}

// buildGenerationConfig translates sampling parameters into Gemini's
// generation config.
func (p *googleProvider) buildGenerationConfig(req ports.CompletionRequest) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{
		// Gemini supports temperatures in [0, 2].
		Temperature: genai.Ptr(float32(ClampFloat64(req.Temperature, 0.0, 2.0))),
	}

	if req.MaxTokens > 0 {
		if req.MaxTokens > math.MaxInt32 {
			config.MaxOutputTokens = math.MaxInt32
		} else {
			config.MaxOutputTokens = int32(req.MaxTokens)
		}
	}

	return config
}

// handleError classifies errors from the Google API into standardized
// provider errors, with special handling for safety filter blocks.
func (p *googleProvider) handleError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return p.errorClassifier.ClassifyContextError(err)
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		message := apiErr.Message
		if message == "" && len(apiErr.Errors) > 0 {
			message = apiErr.Errors[0].Message
		}

		if containsContentPolicyError(apiErr) {
			return NewProviderError("google", ErrorTypeContentPolicy, apiErr.Code,
				"request blocked by safety filters", err)
		}

		return p.errorClassifier.ClassifyHTTPError(apiErr.Code, message, err)
	}

	return NewProviderError("google", ErrorTypeUnknown, 0, "request failed", err)
}

// buildAuthConfig creates the authentication configuration for the
// client. Only API key authentication is supported; values that look
// like credential file paths are rejected with guidance.
func buildAuthConfig(config ClientConfig) (*genai.ClientConfig, error) {
	if looksLikeFilePath(config.APIKey) {
		if _, err := os.Stat(config.APIKey); err != nil {
			return nil, fmt.Errorf("credentials file not found: %s", config.APIKey)
		}
		return nil, fmt.Errorf("service account authentication requires additional configuration. " +
			"Please use API key authentication or set GOOGLE_APPLICATION_CREDENTIALS environment variable")
	}

	return &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	}, nil
}

// looksLikeFilePath checks whether a string appears to be a file path
// rather than an API key.
func looksLikeFilePath(s string) bool {
	if filepath.IsAbs(s) || strings.ContainsAny(s, `/\`) {
		return true
	}

	lower := strings.ToLower(s)
	for _, ext := range []string{".json", ".p12", ".pem"} {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return strings.Contains(lower, "credentials")
}

// containsContentPolicyError checks whether a Google API error reflects
// a content policy violation, either through a structured reason or the
// message text.
func containsContentPolicyError(apiErr *googleapi.Error) bool {
	for _, e := range apiErr.Errors {
		if e.Reason == "SAFETY" || e.Reason == "BLOCKED" {
			return true
		}
	}

	lower := strings.ToLower(apiErr.Message)
	return strings.Contains(lower, "safety") ||
		strings.Contains(lower, "policy") ||
		strings.Contains(lower, "blocked")
}
