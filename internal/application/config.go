// Package application orchestrates evaluation runs: it loads and
// validates run configuration, then drives the pipeline stages from
// question preparation through generation, verification, tagging,
// scoring, and the cumulative taxonomy rebuild.
package application

import (
	"time"

	"github.com/ahrav/go-gvgap/infrastructure/store"
)

// RunConfig describes one evaluation run end to end and is the primary
// configuration entry point for the pipeline. A run is one
// dataset split evaluated with one generating model and one judging
// model; everything beyond provider credentials lives here, so a
// results directory plus its config echo reproduces the run.
type RunConfig struct {
	// Metadata carries descriptive information recorded in the run
	// manifest. It has no effect on execution.
	Metadata RunMetadata `yaml:"metadata" json:"metadata"`

	// Dataset selects the questions entering the run.
	Dataset DatasetConfig `yaml:"dataset" json:"dataset" validate:"required"`

	// Generation configures the candidate-sampling stage.
	Generation GenerationConfig `yaml:"generation" json:"generation" validate:"required"`

	// Judge configures the verification stage.
	Judge JudgeConfig `yaml:"judge" json:"judge" validate:"required"`

	// Budget caps run-wide LLM usage across both stages.
	// Zero values mean unlimited.
	Budget BudgetConfig `yaml:"budget" json:"budget"`

	// Output locates the results tree that run artifacts are written to.
	Output OutputConfig `yaml:"output" json:"output" validate:"required"`
}

// RunMetadata provides descriptive information about a run for the
// manifest and for operators browsing a results tree. All fields are
// optional.
type RunMetadata struct {
	// Name is a human-readable identifier for the run.
	Name string `yaml:"name" json:"name,omitempty" validate:"omitempty,min=1,max=255"`

	// Description explains what the run is for.
	Description string `yaml:"description" json:"description,omitempty" validate:"max=1000"`
}

// DatasetConfig selects and bounds the question set for a run.
type DatasetConfig struct {
	// Name is the benchmark identifier, lowercase, e.g. "gsm8k".
	// It becomes the dataset segment of every question ID.
	Name string `yaml:"name" json:"name" validate:"required,lowercase,min=1,max=100"`

	// Domain is the task family for questions from this dataset and
	// selects the correctness-matching rules and error taxonomy.
	Domain string `yaml:"domain" json:"domain" validate:"required,oneof=math code factual"`

	// Split names the portion being evaluated, e.g. "pilot" or "val".
	Split string `yaml:"split" json:"split" validate:"required,min=1,max=100"`

	// Path points at the raw problems JSON file. Empty selects the
	// embedded pilot sample, which needs no files on disk.
	Path string `yaml:"path,omitempty" json:"path,omitempty"`

	// Limit caps how many questions enter the run. Zero means all.
	Limit int `yaml:"limit,omitempty" json:"limit,omitempty" validate:"omitempty,min=1"`
}

// GenerationConfig configures the candidate-sampling stage: which model
// generates, how many candidates per question, and the fan-out and rate
// limits protecting the provider.
type GenerationConfig struct {
	// Provider names the LLM provider serving generation requests,
	// e.g. "openai" or "anthropic".
	Provider string `yaml:"provider" json:"provider" validate:"required,min=1,max=100"`

	// Model is the provider-specific model identifier.
	Model string `yaml:"model" json:"model" validate:"required,min=1,max=255"`

	// NSamples is the number of candidates generated per question.
	NSamples int `yaml:"n_samples" json:"n_samples" validate:"required,min=1,max=16"`

	// MaxTokens caps the completion length of one generation call.
	MaxTokens int `yaml:"max_tokens" json:"max_tokens" validate:"required,min=16,max=16000"`

	// MaxConcurrency bounds how many questions generate at once.
	MaxConcurrency int `yaml:"max_concurrency" json:"max_concurrency" validate:"required,min=1,max=32"`

	// RequestsPerMinute rate-limits generation calls to the provider.
	// Zero disables client-side rate limiting.
	RequestsPerMinute int `yaml:"requests_per_minute,omitempty" json:"requests_per_minute,omitempty" validate:"omitempty,min=1,max=10000"`

	// TimeoutSeconds bounds one question's full sampling fan-out.
	// Zero applies the sampler default.
	TimeoutSeconds int `yaml:"timeout_seconds,omitempty" json:"timeout_seconds,omitempty" validate:"omitempty,min=1,max=3600"`
}

// JudgeConfig configures the verification stage: which model judges
// candidates and the fan-out and rate limits for judge calls.
type JudgeConfig struct {
	// Provider names the LLM provider serving judge requests. The judge
	// may use a different provider than generation.
	Provider string `yaml:"provider" json:"provider" validate:"required,min=1,max=100"`

	// Model is the provider-specific model identifier for judging.
	Model string `yaml:"model" json:"model" validate:"required,min=1,max=255"`

	// MaxTokens caps the completion length of one judge call.
	// Zero applies the judge default.
	MaxTokens int `yaml:"max_tokens,omitempty" json:"max_tokens,omitempty" validate:"omitempty,min=50,max=2000"`

	// MaxConcurrency bounds how many questions verify at once. The
	// candidates of one question are always judged concurrently, so
	// total in-flight judge calls can reach MaxConcurrency * NSamples.
	MaxConcurrency int `yaml:"max_concurrency" json:"max_concurrency" validate:"required,min=1,max=32"`

	// RequestsPerMinute rate-limits judge calls to the provider.
	// Zero disables client-side rate limiting.
	RequestsPerMinute int `yaml:"requests_per_minute,omitempty" json:"requests_per_minute,omitempty" validate:"omitempty,min=1,max=10000"`

	// TimeoutSeconds bounds one judge call. Zero means no per-call
	// timeout beyond provider defaults.
	TimeoutSeconds int `yaml:"timeout_seconds,omitempty" json:"timeout_seconds,omitempty" validate:"omitempty,min=1,max=3600"`
}

// BudgetConfig establishes run-wide resource consumption limits,
// enforced by the usage guard wrapped around every LLM client in the
// run. Use it to keep a mis-sized run from consuming an unbounded
// number of tokens or calls.
type BudgetConfig struct {
	// MaxTokens limits total tokens across generation and judging,
	// prompt and completion combined. Zero means unlimited.
	MaxTokens int64 `yaml:"max_tokens,omitempty" json:"max_tokens,omitempty" validate:"omitempty,min=1,max=1000000000"`

	// MaxCalls limits the total number of LLM calls in the run.
	// Zero means unlimited.
	MaxCalls int64 `yaml:"max_calls,omitempty" json:"max_calls,omitempty" validate:"omitempty,min=1,max=1000000"`
}

// OutputConfig locates run artifacts on disk.
type OutputConfig struct {
	// Root is the results root directory. Stage files are written under
	// <root>/<dataset>/<model>/<split>/ and the cumulative taxonomy
	// table at the root itself.
	Root string `yaml:"root" json:"root" validate:"required"`
}

// Layout returns the run directory layout this configuration writes to.
func (c *RunConfig) Layout() store.Layout {
	return store.Layout{
		Root:    c.Output.Root,
		Dataset: c.Dataset.Name,
		Model:   c.Generation.Model,
		Split:   c.Dataset.Split,
	}
}

// GenerationTimeout returns the configured per-question sampling
// timeout, or zero when the sampler default should apply.
func (c GenerationConfig) GenerationTimeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// JudgeTimeout returns the configured per-call judge timeout, or zero
// when no client-side timeout should be applied.
func (c JudgeConfig) JudgeTimeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}
