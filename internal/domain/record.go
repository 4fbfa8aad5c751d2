// Package domain contains the pure evaluation core for
// generation-verification gap studies: the record model shared across
// pipeline stages, answer correctness matching, verdict aggregation,
// error taxonomy classification, and run-level metrics.
//
// Everything in this package is a pure function over its inputs with no
// I/O and no shared mutable state, so all operations are safe to invoke
// concurrently across questions without synchronization.
package domain

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Domain identifies the task family a question belongs to.
// It selects the correctness-matching rules and the error taxonomy.
type Domain string

const (
	// DomainMath covers numeric word problems (e.g. GSM8K).
	DomainMath Domain = "math"

	// DomainCode covers programming tasks (e.g. MBPP).
	DomainCode Domain = "code"

	// DomainFactual covers factual question answering (e.g. TruthfulQA).
	DomainFactual Domain = "factual"
)

// IsValidDomain reports whether d is a recognized task domain.
func IsValidDomain(d Domain) bool {
	switch d {
	case DomainMath, DomainCode, DomainFactual:
		return true
	default:
		return false
	}
}

// Label is a judge's binary decision about one candidate answer.
type Label string

const (
	// LabelAccept means the judge considers the candidate answer correct.
	LabelAccept Label = "accept"

	// LabelReject means the judge considers the candidate answer incorrect.
	LabelReject Label = "reject"
)

// Question is the immutable reference unit produced by dataset
// preparation. Records downstream of generation embed it unchanged.
type Question struct {
	// ID is globally unique in the form <dataset>/<split>/<index>.
	ID string `json:"id" validate:"required"`

	// Domain selects matching rules and taxonomy for this question.
	Domain Domain `json:"domain" validate:"required,oneof=math code factual"`

	// Dataset names the source benchmark (e.g. "gsm8k").
	Dataset string `json:"dataset" validate:"required"`

	// Split names the dataset split (e.g. "pilot", "val").
	Split string `json:"split" validate:"required"`

	// Question is the full problem text shown to the generator.
	Question string `json:"question" validate:"required"`

	// ReferenceAnswer is the ground-truth final answer.
	ReferenceAnswer string `json:"reference_answer" validate:"required"`

	// GoldCoT optionally carries the dataset's reference reasoning.
	GoldCoT string `json:"gold_cot,omitempty"`

	// Metadata carries free-form dataset annotations such as source
	// and difficulty.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Validate checks that the question satisfies the record contract.
func (q *Question) Validate() error { return validate.Struct(q) }

// Candidate is one generated answer attempt for a question.
// Immutable once written by the generation stage.
type Candidate struct {
	// CoT is the model's full chain-of-thought text.
	CoT string `json:"cot"`

	// Answer is the final answer extracted from CoT.
	// May be empty when no final answer could be extracted; the
	// correctness matcher treats an empty answer as incorrect.
	Answer string `json:"answer"`

	// LatencyS is the wall-clock duration of the generation call in seconds.
	LatencyS float64 `json:"latency_s" validate:"min=0"`

	// TokensIn counts prompt tokens consumed by the generation call.
	TokensIn int `json:"tokens_in" validate:"min=0"`

	// TokensOut counts completion tokens produced by the generation call.
	TokensOut int `json:"tokens_out" validate:"min=0"`
}

// GeneratorMeta records which model configuration produced a record's
// candidates, so runs remain attributable after files are moved around.
type GeneratorMeta struct {
	// Provider is the LLM provider name (e.g. "openai", "anthropic").
	Provider string `json:"provider"`

	// Model is the provider-specific model identifier.
	Model string `json:"model"`

	// Temperature is the sampling temperature used for generation.
	Temperature float64 `json:"temperature"`

	// NSamples is the number of candidates requested per question.
	NSamples int `json:"n_samples"`
}

// Generation holds the candidates produced for one question.
type Generation struct {
	// Candidates are the generated attempts in generation order.
	Candidates []Candidate `json:"candidates" validate:"required,min=1,dive"`

	// Answer is a convenience alias for the first candidate's answer,
	// kept so single-candidate consumers need not index into Candidates.
	Answer string `json:"answer"`
}

// GenerationRecord is a question plus its generated candidates.
// One JSONL line per question in the generation stage output.
type GenerationRecord struct {
	Question

	// Generator identifies the model configuration that produced Gen.
	Generator GeneratorMeta `json:"generator"`

	// Gen holds the candidates and the first-candidate answer alias.
	Gen Generation `json:"gen" validate:"required"`
}

// Validate checks structural integrity of a generation record,
// including the first-candidate alias invariant.
func (r *GenerationRecord) Validate() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	if r.Gen.Answer != r.Gen.Candidates[0].Answer {
		return fmt.Errorf("%w: gen.answer %q does not match first candidate answer %q",
			ErrMalformedRecord, r.Gen.Answer, r.Gen.Candidates[0].Answer)
	}
	return nil
}

// CandidateVerdict is the judge's decision about a single candidate.
// Produced once per candidate; immutable.
type CandidateVerdict struct {
	// Label is the judge's accept/reject decision.
	Label Label `json:"label" validate:"required,oneof=accept reject"`

	// Confidence is the judge's self-reported certainty in [0, 1].
	Confidence float64 `json:"confidence" validate:"min=0,max=1"`

	// Rationale is the judge's free-text explanation.
	Rationale string `json:"rationale"`

	// LatencyS is the wall-clock duration of the judge call in seconds.
	LatencyS float64 `json:"latency_s,omitempty" validate:"min=0"`

	// TokensIn counts prompt tokens consumed by the judge call.
	// Zero for offline judges.
	TokensIn int `json:"tokens_in,omitempty" validate:"min=0"`

	// TokensOut counts completion tokens produced by the judge call.
	TokensOut int `json:"tokens_out,omitempty" validate:"min=0"`
}

// AggregateVerdict is the single per-question decision derived from the
// candidate verdicts. It is recomputable at any time from the verdict
// list and never persisted independently of its source verdicts.
type AggregateVerdict struct {
	// Label is the winning decision after majority vote and tie-break.
	Label Label `json:"label" validate:"required,oneof=accept reject"`

	// Confidence is the mean confidence of the verdicts carrying the
	// winning label, not of all verdicts.
	Confidence float64 `json:"confidence" validate:"min=0,max=1"`

	// CandidateCount is the number of verdicts that entered the vote.
	CandidateCount int `json:"candidate_count" validate:"min=1"`

	// AcceptCount is the number of accept verdicts.
	AcceptCount int `json:"accept_count" validate:"min=0"`

	// RejectCount is the number of reject verdicts.
	RejectCount int `json:"reject_count" validate:"min=0"`
}

// Verification holds the judge outputs for one question.
type Verification struct {
	// Aggregate is the combined per-question decision.
	Aggregate AggregateVerdict `json:"aggregate"`

	// Candidates are the per-candidate verdicts, index-aligned with the
	// candidates that were successfully judged.
	Candidates []CandidateVerdict `json:"candidates" validate:"dive"`

	// FailedCount is the number of judge calls excluded from the vote
	// after provider failure. Surfaced so the vote population is never
	// silently smaller than expected.
	FailedCount int `json:"failed_count,omitempty" validate:"min=0"`
}

// VerifiedRecord is a generation record plus its verification block.
// One JSONL line per question in the verification stage output.
type VerifiedRecord struct {
	GenerationRecord

	// Verify holds the aggregate and per-candidate judge outputs.
	Verify Verification `json:"verify"`
}

// Validate checks structural integrity of a verified record, including
// the vote-count invariants:
//
//	accept_count + reject_count == candidate_count
//	candidate_count == len(verify.candidates)
//	candidate_count + failed_count == len(gen.candidates)
func (r *VerifiedRecord) Validate() error {
	if err := r.GenerationRecord.Validate(); err != nil {
		return err
	}
	if err := validate.Struct(&r.Verify); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	agg := r.Verify.Aggregate
	if agg.AcceptCount+agg.RejectCount != agg.CandidateCount {
		return fmt.Errorf("%w: accept %d + reject %d != candidate_count %d",
			ErrMalformedRecord, agg.AcceptCount, agg.RejectCount, agg.CandidateCount)
	}
	if agg.CandidateCount != len(r.Verify.Candidates) {
		return fmt.Errorf("%w: candidate_count %d != %d judged candidates",
			ErrMalformedRecord, agg.CandidateCount, len(r.Verify.Candidates))
	}
	if agg.CandidateCount+r.Verify.FailedCount != len(r.Gen.Candidates) {
		return fmt.Errorf("%w: candidate_count %d + failed_count %d != %d generated candidates",
			ErrMalformedRecord, agg.CandidateCount, r.Verify.FailedCount, len(r.Gen.Candidates))
	}
	return nil
}

// TaggedRecord is a verified record plus its error taxonomy annotation.
// TaxonomyCode is empty when the generation was correct, since only
// incorrect generations are classified.
type TaggedRecord struct {
	VerifiedRecord

	// TaxonomyCode is one of the fixed per-domain codes, or empty.
	TaxonomyCode string `json:"taxonomy_code"`

	// TaxonomyName is the human-readable label for TaxonomyCode.
	TaxonomyName string `json:"taxonomy_name"`
}
