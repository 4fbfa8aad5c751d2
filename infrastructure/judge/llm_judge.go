// Package judge produces accept/reject verdicts for candidate answers.
// The LLM judge asks a model whether a final answer is correct without
// revealing the reference answer; the reference judge is an offline
// oracle for runs without API access.
package judge

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

	"github.com/ahrav/go-gvgap/internal/domain"
	"github.com/ahrav/go-gvgap/internal/ports"
)

var _ ports.Judge = (*LLMJudge)(nil)

// Shared validator instance to reduce allocations.
var judgeValidator = validator.New()

// SystemPrompt frames the judging task. The reference answer is never
// included; the judge must decide correctness on its own, which is the
// whole point of measuring verification separately from generation.
const SystemPrompt = "You judge if a final answer is correct."

// jsonInstruction tells the judge model exactly what shape to answer in.
const jsonInstruction = `Return JSON: {"label":"accept|reject","confidence":0.xx,"rationale":"..."}`

// userPromptFormat lays out question, final answer, reasoning excerpt,
// and the JSON instruction for the judge's user turn.
const userPromptFormat = "Question: %s\nFinal answer: %s\nSteps (may be empty):\n%s\n%s"

// judgeTemperature is fixed at zero so repeated runs over the same
// records produce identical verdicts.
const judgeTemperature = 0.0

// Configuration constants for the LLMJudge.
const (
	// DefaultMaxTokens is the default response budget. Verdict JSON with
	// a short rationale fits comfortably.
	DefaultMaxTokens = 256
	// DefaultMaxExcerptChars is the default bound on the reasoning
	// excerpt included in the judge prompt.
	DefaultMaxExcerptChars = 4000
)

// Sentinel errors for clear, testable error conditions.
var (
	ErrClientNil        = errors.New("completion client cannot be nil")
	ErrConfigValidation = errors.New("configuration validation failed")
	ErrJudgeCallFailed  = errors.New("judge call failed")
)

// Config defines the tunable parameters for LLM judging.
type Config struct {
	// MaxTokens caps the judge's JSON response length.
	MaxTokens int `yaml:"max_tokens" json:"max_tokens" validate:"required,min=50,max=2000"`

	// MaxExcerptChars bounds the reasoning excerpt in the judge prompt
	// so a runaway chain of thought cannot blow the context window.
	MaxExcerptChars int `yaml:"max_excerpt_chars" json:"max_excerpt_chars" validate:"required,min=100,max=100000"`
}

// DefaultConfig returns a Config with production defaults.
func DefaultConfig() Config {
	return Config{
		MaxTokens:       DefaultMaxTokens,
		MaxExcerptChars: DefaultMaxExcerptChars,
	}
}

// LLMJudge evaluates candidates by asking a completion model for an
// accept/reject verdict in JSON. It is stateless and safe for
// concurrent use across candidates.
type LLMJudge struct {
	config Config
	client ports.CompletionClient

	// tracer is the OpenTelemetry tracer for observability.
	tracer trace.Tracer
}

// NewLLMJudge creates an LLMJudge with the specified client and
// configuration. It returns an error if the client is nil or the
// configuration is invalid.
func NewLLMJudge(client ports.CompletionClient, config Config) (*LLMJudge, error) {
	if client == nil {
		return nil, ErrClientNil
	}
	if err := judgeValidator.Struct(config); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigValidation, err)
	}

	return &LLMJudge{
		config: config,
		client: client,
		tracer: otel.Tracer("llm-judge"),
	}, nil
}

// Evaluate asks the judge model for a verdict on one candidate.
// A provider failure returns an error and no verdict, so the caller can
// exclude the candidate from the vote. An unparseable judge response is
// not an error: it degrades to a zero-confidence rejection with the
// parse failure recorded in the rationale.
func (j *LLMJudge) Evaluate(ctx context.Context, q domain.Question, c domain.Candidate) (domain.CandidateVerdict, error) {
	ctx, span := j.tracer.Start(ctx, "LLMJudge.Evaluate",
		trace.WithAttributes(
			attribute.String("question.id", q.ID),
			attribute.String("judge.model", j.client.GetModel()),
		),
	)
	defer span.End()

	req := ports.CompletionRequest{
		System:      SystemPrompt,
		Prompt:      j.prompt(q, c),
		Temperature: judgeTemperature,
		MaxTokens:   j.config.MaxTokens,
	}

	start := time.Now()
	resp, err := j.client.Complete(ctx, req)
	if err != nil {
		span.RecordError(err)
		return domain.CandidateVerdict{}, fmt.Errorf("%w for question %s: %v", ErrJudgeCallFailed, q.ID, err)
	}

	verdict := parseVerdict(resp.Text)
	verdict.LatencyS = roundSeconds(time.Since(start))
	verdict.TokensIn = resp.TokensIn
	verdict.TokensOut = resp.TokensOut

	span.SetAttributes(
		attribute.String("judge.label", string(verdict.Label)),
		attribute.Float64("judge.confidence", verdict.Confidence),
	)

	return verdict, nil
}

func (j *LLMJudge) prompt(q domain.Question, c domain.Candidate) string {
	return fmt.Sprintf(userPromptFormat,
		q.Question, c.Answer, excerpt(c.CoT, j.config.MaxExcerptChars), jsonInstruction)
}

// excerpt truncates reasoning text to at most limit runes, marking the
// cut so the judge knows steps are missing rather than absent.
func excerpt(cot string, limit int) string {
	if limit <= 0 || len(cot) <= limit {
		return cot
	}
	runes := []rune(cot)
	if len(runes) <= limit {
		return cot
	}
	return string(runes[:limit]) + "\n[truncated]"
}

// roundSeconds reports d in seconds at millisecond precision, keeping
// persisted latency fields compact.
func roundSeconds(d time.Duration) float64 {
	return math.Round(d.Seconds()*1000) / 1000
}
