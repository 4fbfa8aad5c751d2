package application

import (
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/ahrav/go-gvgap/infrastructure/dataset"
	"github.com/ahrav/go-gvgap/infrastructure/judge"
	"github.com/ahrav/go-gvgap/infrastructure/llm"
	"github.com/ahrav/go-gvgap/infrastructure/middleware"
	"github.com/ahrav/go-gvgap/infrastructure/sampler"
	"github.com/ahrav/go-gvgap/internal/domain"
	"github.com/ahrav/go-gvgap/internal/ports"
)

// Client resilience defaults applied to every provider client built
// from a run configuration.
const (
	clientMaxRetries      = 3
	clientRetryBaseDelay  = time.Second
	clientRetryMaxDelay   = 30 * time.Second
	clientBreakerFailures = 5
	clientBreakerCooldown = 30 * time.Second
)

// NewGenerator builds the generation stage from config: a provider
// client with the full middleware chain, wrapped in a usage guard
// enforcing the run budget, feeding the chain-of-thought sampler. The
// guard is returned alongside so callers can report usage afterwards.
func NewGenerator(config *RunConfig, metrics ports.MetricsCollector) (ports.Generator, *middleware.UsageGuard, error) {
	client, err := stageClient(stageClientConfig{
		provider:          config.Generation.Provider,
		model:             config.Generation.Model,
		requestsPerMinute: config.Generation.RequestsPerMinute,
		timeout:           config.Generation.GenerationTimeout(),
		service:           "gvgap-generate",
		metrics:           metrics,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("generation client: %w", err)
	}

	guard, err := middleware.NewUsageGuard(client, runBudget(config),
		middleware.NewOTelBudgetObserver(metrics, StageGenerate))
	if err != nil {
		return nil, nil, err
	}

	cotSampler, err := sampler.New(guard, samplerConfig(config))
	if err != nil {
		return nil, nil, err
	}
	return cotSampler, guard, nil
}

// NewJudge builds the verification stage the same way: a provider
// client for the judge model behind its own guard, feeding the LLM
// judge. Generation and judging never share a client, so their rate
// limits and circuit breakers stay independent even when both stages
// name the same provider and model.
func NewJudge(config *RunConfig, metrics ports.MetricsCollector) (ports.Judge, *middleware.UsageGuard, error) {
	client, err := stageClient(stageClientConfig{
		provider:          config.Judge.Provider,
		model:             config.Judge.Model,
		requestsPerMinute: config.Judge.RequestsPerMinute,
		timeout:           config.Judge.JudgeTimeout(),
		service:           "gvgap-verify",
		metrics:           metrics,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("judge client: %w", err)
	}

	guard, err := middleware.NewUsageGuard(client, runBudget(config),
		middleware.NewOTelBudgetObserver(metrics, StageVerify))
	if err != nil {
		return nil, nil, err
	}

	llmJudge, err := judge.NewLLMJudge(guard, judgeConfig(config))
	if err != nil {
		return nil, nil, err
	}
	return llmJudge, guard, nil
}

// LoadQuestions prepares the question set selected by the dataset
// section: the embedded pilot sample when no path is configured,
// otherwise the raw problems file, converted per the dataset name and
// capped at the configured limit. The second return value counts raw
// problems skipped during preparation.
func LoadQuestions(config *RunConfig) ([]domain.Question, int, error) {
	var problems []dataset.RawProblem
	source := config.Dataset.Path
	if source == "" {
		problems = dataset.PilotSample()
		source = "embedded-pilot"
	} else {
		var err error
		problems, err = dataset.LoadRawProblems(config.Dataset.Path)
		if err != nil {
			return nil, 0, err
		}
	}
	if config.Dataset.Limit > 0 && len(problems) > config.Dataset.Limit {
		problems = problems[:config.Dataset.Limit]
	}

	metadata := map[string]string{"source": source}
	if config.Dataset.Name == dataset.DatasetGSM8K {
		questions, skipped := dataset.PrepareGSM8K(problems, config.Dataset.Split, metadata)
		return questions, skipped, nil
	}
	questions, skipped := dataset.PrepareGeneric(problems, config.Dataset.Name,
		domain.Domain(config.Dataset.Domain), config.Dataset.Split, metadata)
	return questions, skipped, nil
}

// stageClientConfig carries the per-stage knobs for building one
// provider client.
type stageClientConfig struct {
	provider          string
	model             string
	requestsPerMinute int
	timeout           time.Duration
	service           string
	metrics           ports.MetricsCollector
}

// stageClient assembles one provider client through a stage-local
// registry: retry outermost so every attempt passes the rate limiter,
// then the optional per-request timeout, the circuit breaker, and the
// telemetry layers closest to the provider.
func stageClient(cfg stageClientConfig) (ports.CompletionClient, error) {
	chain := []llm.Middleware{
		llm.RetryMiddleware(clientMaxRetries, clientRetryBaseDelay, clientRetryMaxDelay),
	}
	if cfg.requestsPerMinute > 0 {
		perSecond := rate.Limit(float64(cfg.requestsPerMinute) / 60.0)
		// Allow about one second of burst so fan-out workers are not
		// serialized at startup.
		burst := cfg.requestsPerMinute / 60
		if burst < 1 {
			burst = 1
		}
		chain = append(chain, llm.RateLimitMiddleware(perSecond, burst))
	}
	if cfg.timeout > 0 {
		chain = append(chain, llm.TimeoutMiddleware(cfg.timeout))
	}
	chain = append(chain,
		llm.CircuitBreakerMiddleware(clientBreakerFailures, clientBreakerCooldown),
		llm.MetricsMiddleware(cfg.metrics),
		llm.TracingMiddleware(cfg.service),
	)

	registry, err := llm.NewRegistry(llm.RegistryConfig{
		Providers:         llm.DefaultProviders,
		DefaultProvider:   cfg.provider,
		DefaultTimeout:    cfg.timeout,
		DefaultMiddleware: chain,
	})
	if err != nil {
		return nil, err
	}
	return registry.GetClient(cfg.provider + "/" + cfg.model)
}

// runBudget maps the configured budget onto guard limits. Each stage
// guard enforces the budget over its own calls.
func runBudget(config *RunConfig) middleware.Budget {
	return middleware.Budget{
		MaxTokens: config.Budget.MaxTokens,
		MaxCalls:  config.Budget.MaxCalls,
	}
}

// samplerConfig maps the generation section onto sampler settings.
func samplerConfig(config *RunConfig) sampler.Config {
	c := sampler.Config{
		Provider:       config.Generation.Provider,
		NSamples:       config.Generation.NSamples,
		MaxTokens:      config.Generation.MaxTokens,
		MaxConcurrency: config.Generation.MaxConcurrency,
		Timeout:        config.Generation.GenerationTimeout(),
	}
	if c.Timeout <= 0 {
		c.Timeout = sampler.DefaultTimeoutSeconds * time.Second
	}
	return c
}

// judgeConfig maps the judge section onto judge settings, keeping the
// defaults for unset fields.
func judgeConfig(config *RunConfig) judge.Config {
	c := judge.DefaultConfig()
	if config.Judge.MaxTokens > 0 {
		c.MaxTokens = config.Judge.MaxTokens
	}
	return c
}
