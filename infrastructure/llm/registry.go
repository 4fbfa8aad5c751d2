package llm

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/ahrav/go-gvgap/internal/ports"
)

// Registry resolves "provider/model" specs into middleware-wrapped
// completion clients. Each run stage wires its own registry so limiter
// and breaker state never leaks between generation and judging; within
// a registry, clients are built lazily on first request and cached per
// spec, so repeated lookups for the same pair share one instance.
type Registry struct {
	providers map[string]ProviderConfig

	// defaultProvider answers empty specs. It must name an entry in
	// providers.
	defaultProvider string

	// defaultMiddleware and defaultTimeout apply to every client the
	// registry builds, ahead of any provider-specific middleware.
	defaultMiddleware []Middleware
	defaultTimeout    time.Duration

	mu sync.RWMutex
	// clients caches built clients keyed by "provider/model".
	clients map[string]ports.CompletionClient
}

// ProviderConfig describes one provider entry: how to construct its
// clients and which models they may use.
type ProviderConfig struct {
	// Type selects the provider implementation (openai, anthropic, google).
	Type string

	// EnvVar names the environment variable holding the API key.
	EnvVar string

	// DefaultModel fills in specs that name only the provider.
	DefaultModel string

	// SupportedModels restricts which models the provider accepts.
	// Leave empty to accept any model.
	SupportedModels []string

	// BaseURL overrides the provider's default API endpoint.
	BaseURL string

	// Middleware runs after the registry's default chain, for
	// provider-specific concerns.
	Middleware []Middleware
}

// allowsModel reports whether the provider accepts the model. An empty
// SupportedModels list accepts everything.
func (pc ProviderConfig) allowsModel(model string) bool {
	if len(pc.SupportedModels) == 0 {
		return true
	}
	for _, supported := range pc.SupportedModels {
		if model == supported {
			return true
		}
	}
	return false
}

// RegistryConfig configures a Registry.
type RegistryConfig struct {
	// Providers lists the available providers by name.
	Providers map[string]ProviderConfig

	// DefaultProvider resolves empty specs. Validated eagerly so a
	// misconfigured stage fails at wiring time, not on the first call.
	DefaultProvider string

	// DefaultTimeout is the per-request timeout for every client.
	DefaultTimeout time.Duration

	// DefaultMiddleware wraps every client the registry builds.
	DefaultMiddleware []Middleware
}

// DefaultProviders covers the hosted services this module ships
// adapters for. Callers can extend or replace entries before handing
// the map to NewRegistry.
var DefaultProviders = map[string]ProviderConfig{
	"openai": {
		Type:         "openai",
		EnvVar:       "OPENAI_API_KEY",
		DefaultModel: "gpt-4.1",
		SupportedModels: []string{
			// 4.x chat series.
			"gpt-4.1", "gpt-4.1-mini", "gpt-4.1-nano", "gpt-4o",
			"gpt-4o-mini", "gpt-4", "gpt-4-turbo", "gpt-3.5-turbo",
			// Reasoning series.
			"o4-mini", "o3", "o3-mini", "o1", "o1-mini",
		},
	},
	"anthropic": {
		Type:         "anthropic",
		EnvVar:       "ANTHROPIC_API_KEY",
		DefaultModel: "claude-4-sonnet",
		SupportedModels: []string{
			"claude-4.1-opus", "claude-4-opus", "claude-4-sonnet",
			"claude-3.7-sonnet", "claude-3.5-sonnet", "claude-3.5-haiku",
			"claude-3-opus", "claude-3-sonnet", "claude-3-haiku",
		},
	},
	"google": {
		Type:         "google",
		EnvVar:       "GOOGLE_API_KEY",
		DefaultModel: "gemini-2.5-flash",
		SupportedModels: []string{
			"gemini-2.5-flash", "gemini-2.5-flash-lite", "gemini-2.5-pro",
			"gemini-2.0-flash", "gemini-2.0-flash-lite",
			"gemini-1.5-flash", "gemini-1.5-pro",
		},
	},
}

// NewRegistry builds a registry from config. The default provider must
// be set and must appear in Providers.
func NewRegistry(config RegistryConfig) (*Registry, error) {
	if config.DefaultProvider == "" {
		return nil, fmt.Errorf("default provider cannot be empty")
	}
	if _, ok := config.Providers[config.DefaultProvider]; !ok {
		return nil, fmt.Errorf("default provider %q not found in providers configuration", config.DefaultProvider)
	}

	return &Registry{
		providers:         config.Providers,
		defaultProvider:   config.DefaultProvider,
		defaultMiddleware: config.DefaultMiddleware,
		defaultTimeout:    config.DefaultTimeout,
		clients:           make(map[string]ports.CompletionClient),
	}, nil
}

// GetClient returns the client for a spec, building and caching it on
// first use. Specs take three forms:
//   - "provider/model" selects an explicit pair
//   - "provider" selects the provider's default model
//   - "" selects the registry's default provider and its default model
//
// Concurrent callers asking for the same pair get one shared instance.
func (r *Registry) GetClient(spec string) (ports.CompletionClient, error) {
	if spec == "" {
		spec = r.defaultProvider
	}

	provider, model := r.splitSpec(spec)
	if model == "" {
		return nil, fmt.Errorf("no model for provider %q: spec names none and the provider has no default", provider)
	}
	key := provider + "/" + model

	r.mu.RLock()
	client, ok := r.clients[key]
	r.mu.RUnlock()
	if ok {
		return client, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Another caller may have built the client while we waited.
	if client, ok := r.clients[key]; ok {
		return client, nil
	}

	client, err := r.buildClient(provider, model)
	if err != nil {
		return nil, err
	}
	r.clients[key] = client
	return client, nil
}

// splitSpec separates a spec into provider and model. A spec without a
// separator resolves to the provider's default model; the model may
// itself contain slashes.
func (r *Registry) splitSpec(spec string) (provider, model string) {
	provider, model, ok := strings.Cut(spec, "/")
	if !ok {
		if pc, found := r.providers[provider]; found {
			model = pc.DefaultModel
		}
	}
	return provider, model
}

// buildClient constructs a client for the pair, reading the API key
// from the provider's environment variable and layering the default
// middleware chain under any provider-specific middleware.
func (r *Registry) buildClient(provider, model string) (ports.CompletionClient, error) {
	pc, ok := r.providers[provider]
	if !ok {
		return nil, fmt.Errorf("unknown provider %q", provider)
	}

	if !pc.allowsModel(model) {
		return nil, fmt.Errorf("model %q is not supported by provider %q. Supported models: %v",
			model, provider, pc.SupportedModels)
	}

	apiKey := os.Getenv(pc.EnvVar)
	if apiKey == "" {
		return nil, fmt.Errorf("%s environment variable not set for provider %q", pc.EnvVar, provider)
	}

	chain := make([]Middleware, 0, len(r.defaultMiddleware)+len(pc.Middleware))
	chain = append(chain, r.defaultMiddleware...)
	chain = append(chain, pc.Middleware...)

	return NewClient(pc.Type, ClientConfig{
		APIKey:     apiKey,
		Model:      model,
		BaseURL:    pc.BaseURL,
		Timeout:    r.defaultTimeout,
		Middleware: chain,
	})
}
