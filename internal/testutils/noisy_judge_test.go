package testutils

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-gvgap/internal/domain"
)

func mathQuestion(ref string) domain.Question {
	return domain.Question{
		ID:              "gsm8k/pilot/0001",
		Domain:          domain.DomainMath,
		Dataset:         "gsm8k",
		Split:           "pilot",
		Question:        "What is 2+2?",
		ReferenceAnswer: ref,
	}
}

func TestNoisyJudge_PerfectRatesActAsOracle(t *testing.T) {
	judge := NewNoisyJudge(NoisyJudgeConfig{
		CorrectAcceptRate:   1.0,
		IncorrectRejectRate: 1.0,
		Seed:                7,
	})
	q := mathQuestion("4")

	for range 20 {
		v, err := judge.Evaluate(context.Background(), q, domain.Candidate{Answer: "4"})
		require.NoError(t, err)
		assert.Equal(t, domain.LabelAccept, v.Label)

		v, err = judge.Evaluate(context.Background(), q, domain.Candidate{Answer: "5"})
		require.NoError(t, err)
		assert.Equal(t, domain.LabelReject, v.Label)
	}
}

func TestNoisyJudge_ZeroRatesInvertEveryDecision(t *testing.T) {
	judge := NewNoisyJudge(NoisyJudgeConfig{Seed: 7})
	q := mathQuestion("4")

	v, err := judge.Evaluate(context.Background(), q, domain.Candidate{Answer: "4"})
	require.NoError(t, err)
	assert.Equal(t, domain.LabelReject, v.Label, "correct answers are rejected at rate zero")

	v, err = judge.Evaluate(context.Background(), q, domain.Candidate{Answer: "5"})
	require.NoError(t, err)
	assert.Equal(t, domain.LabelAccept, v.Label, "incorrect answers are accepted at rate zero")
}

func TestNoisyJudge_SeededSequencesRepeat(t *testing.T) {
	config := DefaultNoisyJudgeConfig()
	first := NewNoisyJudge(config)
	second := NewNoisyJudge(config)
	q := mathQuestion("4")

	for i := range 50 {
		answer := "4"
		if i%2 == 1 {
			answer = "5"
		}
		v1, err := first.Evaluate(context.Background(), q, domain.Candidate{Answer: answer})
		require.NoError(t, err)
		v2, err := second.Evaluate(context.Background(), q, domain.Candidate{Answer: answer})
		require.NoError(t, err)
		assert.Equal(t, v1, v2, "same seed must reproduce verdict %d", i)
	}
}

func TestNoisyJudge_ConfidenceStaysInRange(t *testing.T) {
	judge := NewNoisyJudge(DefaultNoisyJudgeConfig())
	q := mathQuestion("4")

	for range 100 {
		v, err := judge.Evaluate(context.Background(), q, domain.Candidate{Answer: "4"})
		require.NoError(t, err)
		assert.GreaterOrEqual(t, v.Confidence, 0.70)
		assert.LessOrEqual(t, v.Confidence, 0.95)
	}
}

func TestNoisyJudge_RationaleClassifies(t *testing.T) {
	// Reject rationales must land in a real taxonomy category so tagged
	// pipelines built on this judge produce meaningful tables.
	judge := NewNoisyJudge(NoisyJudgeConfig{
		CorrectAcceptRate:   1.0,
		IncorrectRejectRate: 1.0,
		Seed:                1,
	})
	v, err := judge.Evaluate(context.Background(), mathQuestion("4"), domain.Candidate{Answer: "5"})
	require.NoError(t, err)

	rule, err := domain.Classify(v.Rationale, domain.DomainMath)
	require.NoError(t, err)
	assert.Equal(t, "calc_error", rule.Code)
}

func TestNoisyJudge_CancelledContext(t *testing.T) {
	judge := NewNoisyJudge(DefaultNoisyJudgeConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := judge.Evaluate(ctx, mathQuestion("4"), domain.Candidate{Answer: "4"})
	assert.ErrorIs(t, err, context.Canceled)
}
