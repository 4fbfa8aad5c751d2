// Package ports defines the interfaces that connect the evaluation
// core to infrastructure: LLM access, candidate generation, verdict
// judging, and metrics emission. These interfaces enable dependency
// inversion and make every pipeline stage testable without network
// access.
package ports

import (
	"context"

	"github.com/ahrav/go-gvgap/internal/domain"
)

// Generator produces candidate answers for questions.
// The production implementation samples chain-of-thought completions
// from an LLM; tests substitute deterministic fakes.
// Implementations must be safe for concurrent use across questions.
type Generator interface {
	// Generate produces the configured number of candidate answers for
	// one question. Partial results are not returned: either every
	// candidate was produced or an error is reported and the caller
	// skips the question.
	Generate(ctx context.Context, q domain.Question) (domain.Generation, error)

	// Meta describes the generating configuration, recorded on every
	// generation record for attribution.
	Meta() domain.GeneratorMeta
}

// Judge evaluates whether a candidate answer is correct.
// The production judge asks an LLM without revealing the reference
// answer; the offline reference judge compares against ground truth
// directly. Implementations must be safe for concurrent use.
type Judge interface {
	// Evaluate returns a verdict for one candidate answer.
	// A returned error means no verdict could be produced; the caller
	// excludes that candidate from the vote and counts the failure
	// rather than inventing a verdict.
	Evaluate(ctx context.Context, q domain.Question, c domain.Candidate) (domain.CandidateVerdict, error)
}
