package domain

import "sort"

// confSumEpsilon bounds the float error tolerated when comparing camp
// confidence sums during tie-breaking. Sums within epsilon of each
// other are treated as equal.
const confSumEpsilon = 1e-9

// AggregateVerdicts combines the per-candidate judge verdicts for one
// question into a single aggregate verdict.
//
// The winning label is decided by strict majority vote. A tied vote is
// broken by comparing the summed confidence of each camp; when the sums
// are also equal within tolerance, the verdict is reject, so ambiguous
// evidence never counts as verified-correct. The aggregate confidence
// is the mean confidence of the winning camp only, since losing votes
// describe the opposite decision.
//
// Camp sums are computed over sorted confidences, which makes the
// result invariant under reordering of the input verdicts: the same
// multiset of verdicts always produces the identical aggregate. Repeat
// calls with identical input are bit-for-bit deterministic.
//
// Any verdict whose label is not accept counts as a reject vote, so
// AcceptCount + RejectCount always equals CandidateCount.
//
// Returns ErrNoVerdicts when called with an empty verdict list; the
// caller reports that per question without failing the rest of the run.
// The input slice is not modified.
func AggregateVerdicts(verdicts []CandidateVerdict) (AggregateVerdict, error) {
	if len(verdicts) == 0 {
		return AggregateVerdict{}, ErrNoVerdicts
	}

	var acceptConfs, rejectConfs []float64
	for _, v := range verdicts {
		if v.Label == LabelAccept {
			acceptConfs = append(acceptConfs, v.Confidence)
		} else {
			rejectConfs = append(rejectConfs, v.Confidence)
		}
	}

	winner := LabelReject
	switch {
	case len(acceptConfs) > len(rejectConfs):
		winner = LabelAccept
	case len(rejectConfs) > len(acceptConfs):
		winner = LabelReject
	default:
		// Tied vote: the camp with the larger confidence sum wins.
		// Sums equal within tolerance leave the verdict at reject.
		if sortedSum(acceptConfs)-sortedSum(rejectConfs) > confSumEpsilon {
			winner = LabelAccept
		}
	}

	winning := rejectConfs
	if winner == LabelAccept {
		winning = acceptConfs
	}

	return AggregateVerdict{
		Label:          winner,
		Confidence:     sortedSum(winning) / float64(len(winning)),
		CandidateCount: len(verdicts),
		AcceptCount:    len(acceptConfs),
		RejectCount:    len(rejectConfs),
	}, nil
}

// sortedSum sums vals in ascending order so the accumulated float
// error, and therefore the result, does not depend on input order.
// The input slice is not modified.
func sortedSum(vals []float64) float64 {
	sorted := make([]float64, len(vals))
	copy(sorted, vals)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}
	return sum
}
