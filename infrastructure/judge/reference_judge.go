package judge

import (
	"context"
	"fmt"
	"math"

	"github.com/ahrav/go-gvgap/internal/domain"
	"github.com/ahrav/go-gvgap/internal/ports"
)

var _ ports.Judge = (*ReferenceJudge)(nil)

// Tolerances for the oracle's numeric comparison.
const (
	refAbsTolerance = 1e-9
	refRelTolerance = 1e-9
)

// ReferenceJudge is an offline oracle that grades candidates against
// the ground-truth reference answer. When both the candidate answer and
// the reference contain a number, the last embedded numbers are
// compared within tolerance; otherwise the domain's string matching
// rules apply. Useful for smoke runs and judge calibration without API
// keys, and deliberately not a measurement of verification ability
// since it sees the reference.
type ReferenceJudge struct{}

// NewReferenceJudge creates a ReferenceJudge.
func NewReferenceJudge() *ReferenceJudge { return &ReferenceJudge{} }

// Evaluate grades one candidate against the reference answer.
// It is deterministic, reports confidence 1.0, and never errors.
func (j *ReferenceJudge) Evaluate(_ context.Context, q domain.Question, c domain.Candidate) (domain.CandidateVerdict, error) {
	candN, candOK := domain.LastNumber(c.Answer)
	refN, refOK := domain.LastNumber(q.ReferenceAnswer)

	var correct bool
	var rationale string
	switch {
	case candOK && refOK:
		correct = refClose(candN, refN)
		if correct {
			rationale = fmt.Sprintf("last number %g matches reference %g", candN, refN)
		} else {
			rationale = fmt.Sprintf("last number %g does not match reference %g", candN, refN)
		}
	default:
		correct = domain.IsCorrect(c.Answer, q.ReferenceAnswer, q.Domain)
		if correct {
			rationale = "answer matches reference"
		} else {
			rationale = "answer does not match reference"
		}
	}

	label := domain.LabelReject
	if correct {
		label = domain.LabelAccept
	}
	return domain.CandidateVerdict{
		Label:      label,
		Confidence: 1.0,
		Rationale:  rationale,
	}, nil
}

// refClose reports whether two numbers are equal within the oracle's
// absolute and relative tolerances.
func refClose(a, b float64) bool {
	bound := refRelTolerance * math.Max(math.Abs(a), math.Abs(b))
	if refAbsTolerance > bound {
		bound = refAbsTolerance
	}
	return math.Abs(a-b) <= bound
}
