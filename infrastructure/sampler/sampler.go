// Package sampler generates chain-of-thought candidate answers by
// fanning out completion requests to an LLM client. It implements
// ports.Generator for the generation stage of the analysis pipeline.
package sampler

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/ahrav/go-gvgap/internal/domain"
	"github.com/ahrav/go-gvgap/internal/ports"
)

var _ ports.Generator = (*CoTSampler)(nil)

// Shared validator instance to reduce allocations.
var samplerValidator = validator.New()

// SystemPrompt instructs the model to reason step by step and mark its
// final answer, so answer extraction stays mechanical.
const SystemPrompt = "You are a careful problem solver. Show steps briefly and end with 'Final: <answer>'."

// userPromptFormat wraps the question text with solving instructions.
// The closing sentence repeats the marker convention because models
// follow it far more reliably when it appears in the user turn too.
const userPromptFormat = "Question: %s\nSolve step by step. Conclude with 'Final: <answer>'."

// Configuration constants for the CoTSampler.
const (
	// DefaultNSamples is the default number of candidates per question.
	DefaultNSamples = 3
	// DefaultMaxTokens is the default completion budget per candidate.
	DefaultMaxTokens = 1024
	// DefaultMaxConcurrency is the default number of concurrent
	// completion calls per question.
	DefaultMaxConcurrency = 4
	// DefaultTimeoutSeconds is the default timeout for one question's
	// full candidate fan-out, in seconds.
	DefaultTimeoutSeconds = 120

	// MultiSampleTemperature is used when more than one candidate is
	// requested, so candidates actually differ from each other.
	MultiSampleTemperature = 0.7
	// SingleSampleTemperature is used for single-candidate runs, which
	// should be reproducible.
	SingleSampleTemperature = 0.0
)

// Sentinel errors for clear, testable error conditions.
var (
	ErrClientNil        = errors.New("completion client cannot be nil")
	ErrConfigValidation = errors.New("configuration validation failed")
	ErrQuestionEmpty    = errors.New("question text cannot be empty")
	ErrCompletionFailed = errors.New("completion call failed")
)

// Config defines the tunable parameters for candidate generation.
// All fields are validated during sampler creation.
type Config struct {
	// Provider names the LLM provider for record attribution.
	Provider string `yaml:"provider" json:"provider" validate:"required"`

	// NSamples is the number of candidates generated per question.
	NSamples int `yaml:"n_samples" json:"n_samples" validate:"required,min=1,max=16"`

	// MaxTokens caps the completion length of each candidate.
	MaxTokens int `yaml:"max_tokens" json:"max_tokens" validate:"required,min=16,max=16000"`

	// MaxConcurrency limits concurrent completion calls per question to
	// avoid overwhelming the provider.
	MaxConcurrency int `yaml:"max_concurrency" json:"max_concurrency" validate:"required,min=1,max=32"`

	// Timeout bounds the full candidate fan-out for one question.
	Timeout time.Duration `yaml:"timeout" json:"timeout" validate:"required,min=1s,max=30m"`
}

// DefaultConfig returns a Config with production defaults for the
// given provider.
func DefaultConfig(provider string) Config {
	return Config{
		Provider:       provider,
		NSamples:       DefaultNSamples,
		MaxTokens:      DefaultMaxTokens,
		MaxConcurrency: DefaultMaxConcurrency,
		Timeout:        DefaultTimeoutSeconds * time.Second,
	}
}

// CoTSampler produces chain-of-thought candidates by issuing N
// completion requests per question. Every candidate shares one prompt;
// diversity comes from sampling temperature. The sampler is stateless
// and safe for concurrent use across questions.
type CoTSampler struct {
	config Config
	client ports.CompletionClient

	// tracer is the OpenTelemetry tracer for observability.
	tracer trace.Tracer
}

// New creates a CoTSampler with the specified client and configuration.
// It returns an error if the client is nil or the configuration is
// invalid.
func New(client ports.CompletionClient, config Config) (*CoTSampler, error) {
	if client == nil {
		return nil, ErrClientNil
	}
	if err := samplerValidator.Struct(config); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigValidation, err)
	}

	return &CoTSampler{
		config: config,
		client: client,
		tracer: otel.Tracer("cot-sampler"),
	}, nil
}

// Meta describes the generating configuration. It is recorded on every
// generation record so runs stay attributable after files move around.
func (s *CoTSampler) Meta() domain.GeneratorMeta {
	return domain.GeneratorMeta{
		Provider:    s.config.Provider,
		Model:       s.client.GetModel(),
		Temperature: s.temperature(),
		NSamples:    s.config.NSamples,
	}
}

// Generate produces the configured number of candidates for one
// question by calling the completion client concurrently. Either every
// candidate is produced or an error is returned with no partial result,
// so downstream vote counts always match the requested sample count.
func (s *CoTSampler) Generate(ctx context.Context, q domain.Question) (domain.Generation, error) {
	ctx, span := s.tracer.Start(ctx, "CoTSampler.Generate",
		trace.WithAttributes(
			attribute.String("question.id", q.ID),
			attribute.String("question.domain", string(q.Domain)),
			attribute.Int("gen.n_samples", s.config.NSamples),
			attribute.Float64("gen.temperature", s.temperature()),
		),
	)
	defer span.End()

	if q.Question == "" {
		span.RecordError(ErrQuestionEmpty)
		return domain.Generation{}, ErrQuestionEmpty
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	req := ports.CompletionRequest{
		System:      SystemPrompt,
		Prompt:      fmt.Sprintf(userPromptFormat, q.Question),
		Temperature: s.temperature(),
		MaxTokens:   s.config.MaxTokens,
	}

	candidates := make([]domain.Candidate, s.config.NSamples)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.MaxConcurrency)

	for i := range s.config.NSamples {
		g.Go(func() error {
			start := time.Now()
			resp, err := s.client.Complete(ctx, req)
			if err != nil {
				return fmt.Errorf("%w for candidate %d of question %s: %v",
					ErrCompletionFailed, i+1, q.ID, err)
			}
			candidates[i] = domain.Candidate{
				CoT:       resp.Text,
				Answer:    ExtractFinalAnswer(resp.Text),
				LatencyS:  roundSeconds(time.Since(start)),
				TokensIn:  resp.TokensIn,
				TokensOut: resp.TokensOut,
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return domain.Generation{}, err
	}

	span.SetAttributes(attribute.Int("gen.candidates", len(candidates)))

	return domain.Generation{
		Candidates: candidates,
		Answer:     candidates[0].Answer,
	}, nil
}

// temperature selects the sampling temperature: diverse sampling when
// multiple candidates are requested, greedy decoding when one is enough.
func (s *CoTSampler) temperature() float64 {
	if s.config.NSamples > 1 {
		return MultiSampleTemperature
	}
	return SingleSampleTemperature
}

// roundSeconds reports d in seconds at millisecond precision, keeping
// persisted latency fields compact.
func roundSeconds(d time.Duration) float64 {
	return math.Round(d.Seconds()*1000) / 1000
}
