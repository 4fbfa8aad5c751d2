package testutils

import (
	"context"
	"math/rand"
	"sync"

	"github.com/ahrav/go-gvgap/internal/domain"
	"github.com/ahrav/go-gvgap/internal/ports"
)

// NoisyJudgeConfig controls how accurately the simulated judge decides.
// Rates of 1.0 make it a perfect oracle; rates of 0.0 make it reliably
// wrong, which is how tests reach the false-positive and false-negative
// confusion cells on demand.
type NoisyJudgeConfig struct {
	// CorrectAcceptRate is the probability that a correct candidate is
	// accepted.
	CorrectAcceptRate float64

	// IncorrectRejectRate is the probability that an incorrect candidate
	// is rejected.
	IncorrectRejectRate float64

	// Seed fixes the random sequence so runs are reproducible.
	Seed int64
}

// DefaultNoisyJudgeConfig returns rates resembling a decent but
// imperfect verifier.
func DefaultNoisyJudgeConfig() NoisyJudgeConfig {
	return NoisyJudgeConfig{
		CorrectAcceptRate:   0.85,
		IncorrectRejectRate: 0.80,
		Seed:                42,
	}
}

// NoisyJudge implements ports.Judge as a simulated verifier with
// configurable accuracy. It decides against the reference answer, then
// flips the decision at the configured error rates. Useful for offline
// experiments on the metrics machinery, where a judge that is sometimes
// wrong is the entire point.
type NoisyJudge struct {
	config NoisyJudgeConfig

	mu  sync.Mutex
	rng *rand.Rand
}

// NewNoisyJudge creates a seeded noisy judge.
func NewNoisyJudge(config NoisyJudgeConfig) *NoisyJudge {
	return &NoisyJudge{
		config: config,
		rng:    rand.New(rand.NewSource(config.Seed)),
	}
}

// Evaluate implements the Judge interface. The verdict never reveals
// whether the underlying oracle decision was flipped; rationales read
// like judge prose so taxonomy classification has text to work with.
func (j *NoisyJudge) Evaluate(ctx context.Context, q domain.Question, c domain.Candidate) (domain.CandidateVerdict, error) {
	if ctx.Err() != nil {
		return domain.CandidateVerdict{}, ctx.Err()
	}

	correct := domain.IsCorrect(c.Answer, q.ReferenceAnswer, q.Domain)

	j.mu.Lock()
	roll := j.rng.Float64()
	noise := j.rng.Float64() * 0.1
	j.mu.Unlock()

	var accept bool
	if correct {
		accept = roll < j.config.CorrectAcceptRate
	} else {
		accept = roll >= j.config.IncorrectRejectRate
	}

	if accept {
		return domain.CandidateVerdict{
			Label:      domain.LabelAccept,
			Confidence: 0.85 + noise,
			Rationale:  "the final answer matches my own working",
		}, nil
	}
	return domain.CandidateVerdict{
		Label:      domain.LabelReject,
		Confidence: 0.70 + noise,
		Rationale:  "the calculation does not hold up on recheck",
	}, nil
}

// Verify interface compliance at compile time.
var _ ports.Judge = (*NoisyJudge)(nil)
