package domain

import "math"

// Cell identifies one confusion-matrix cell for the verifier, where
// "positive" is an accept verdict and truth is generation correctness.
type Cell string

const (
	// CellTruePositive: accepted and the generation was correct.
	CellTruePositive Cell = "tp"

	// CellTrueNegative: rejected and the generation was incorrect.
	CellTrueNegative Cell = "tn"

	// CellFalsePositive: accepted but the generation was incorrect.
	CellFalsePositive Cell = "fp"

	// CellFalseNegative: rejected but the generation was correct.
	CellFalseNegative Cell = "fn"
)

// QuestionOutcome is the per-question classification derived from one
// verified record before folding into run-level counts. Report writers
// consume outcomes directly for per-question detail rows.
type QuestionOutcome struct {
	// ID is the question ID.
	ID string `json:"id"`

	// Domain is the task domain from the reference set.
	Domain Domain `json:"domain"`

	// Dataset names the source benchmark from the reference set.
	Dataset string `json:"dataset"`

	// Answer is the generated answer that was scored (gen.answer).
	Answer string `json:"generated_answer"`

	// ReferenceAnswer is the ground truth the answer was scored against.
	ReferenceAnswer string `json:"reference_answer"`

	// GenerationCorrect reports whether the answer matched the reference.
	GenerationCorrect bool `json:"generation_correct"`

	// Label is the aggregate verifier decision.
	Label Label `json:"verify_label"`

	// Confidence is the aggregate verifier confidence.
	Confidence float64 `json:"verify_confidence"`

	// VerificationCorrect reports whether the verifier's decision agreed
	// with ground truth: accept on a correct generation or reject on an
	// incorrect one.
	VerificationCorrect bool `json:"verification_correct"`

	// Cell is the confusion-matrix cell this question falls into.
	Cell Cell `json:"cell"`
}

// CellConfidence holds the mean aggregate verifier confidence per
// confusion cell. A cell with no questions reports zero.
type CellConfidence struct {
	TP float64 `json:"tp"`
	TN float64 `json:"tn"`
	FP float64 `json:"fp"`
	FN float64 `json:"fn"`
}

// MetricsResult is the complete scoring summary for one scope, either
// the whole run or a single domain subset.
//
// Accuracies are NaN when N is zero; callers that need a human-readable
// rendering of an empty scope must surface ErrInsufficientData instead
// of printing NaN.
type MetricsResult struct {
	// Scope names the subset this result covers: "overall" or a domain.
	Scope string `json:"scope"`

	// Total is the number of records seen, scored plus skipped.
	Total int `json:"total"`

	// N is the number of scored questions. N + Skipped == Total.
	N int `json:"n"`

	// Skipped counts records excluded because their question ID has no
	// reference entry. Skipped records never enter any matrix cell.
	Skipped int `json:"skipped"`

	// GenerationCorrect counts questions whose generated answer matched
	// the reference.
	GenerationCorrect int `json:"generation_correct"`

	// VerificationCorrect counts questions where the verifier's decision
	// agreed with ground truth. Equals TP + TN.
	VerificationCorrect int `json:"verification_correct"`

	// Confusion-matrix cells. TP + TN + FP + FN == N.
	TP int `json:"tp"`
	TN int `json:"tn"`
	FP int `json:"fp"`
	FN int `json:"fn"`

	// GenerationAccuracy is GenerationCorrect / N.
	GenerationAccuracy float64 `json:"generation_accuracy"`

	// VerificationAccuracy is VerificationCorrect / N.
	VerificationAccuracy float64 `json:"verification_accuracy"`

	// GVGap is VerificationAccuracy - GenerationAccuracy. Positive means
	// the model verifies answers better than it generates them.
	GVGap float64 `json:"gv_gap"`

	// Confidence is the mean verifier confidence per confusion cell.
	Confidence CellConfidence `json:"confidence"`
}

// MetricsReport pairs the overall result with per-domain breakdowns.
type MetricsReport struct {
	// Overall covers every record in the run.
	Overall MetricsResult `json:"overall"`

	// Domains holds one result per domain present in the input, in the
	// fixed order math, code, factual. Absent domains are omitted.
	Domains []MetricsResult `json:"domains,omitempty"`
}

// Outcomes classifies each verified record against the reference set
// and returns the per-question outcomes plus the count of records
// skipped for lacking a reference entry.
//
// The reference set is authoritative: domain, dataset, and reference
// answer are taken from the matched Question, not from the record, so a
// stale or edited record cannot shift its own scoring rules. Input
// order is preserved in the output.
func Outcomes(records []VerifiedRecord, refs map[string]Question) ([]QuestionOutcome, int) {
	outcomes := make([]QuestionOutcome, 0, len(records))
	skipped := 0

	for _, rec := range records {
		ref, ok := refs[rec.ID]
		if !ok {
			skipped++
			continue
		}

		genCorrect := IsCorrect(rec.Gen.Answer, ref.ReferenceAnswer, ref.Domain)
		label := rec.Verify.Aggregate.Label

		var cell Cell
		switch {
		case label == LabelAccept && genCorrect:
			cell = CellTruePositive
		case label == LabelAccept && !genCorrect:
			cell = CellFalsePositive
		case genCorrect:
			cell = CellFalseNegative
		default:
			cell = CellTrueNegative
		}

		outcomes = append(outcomes, QuestionOutcome{
			ID:                  rec.ID,
			Domain:              ref.Domain,
			Dataset:             ref.Dataset,
			Answer:              rec.Gen.Answer,
			ReferenceAnswer:     ref.ReferenceAnswer,
			GenerationCorrect:   genCorrect,
			Label:               label,
			Confidence:          rec.Verify.Aggregate.Confidence,
			VerificationCorrect: cell == CellTruePositive || cell == CellTrueNegative,
			Cell:                cell,
		})
	}

	return outcomes, skipped
}

// ComputeMetrics scores the given records against the reference set and
// folds them into a single result for the named scope.
//
// Records without a reference entry are counted in Skipped and excluded
// from every other count and from the accuracy denominators. With zero
// scored questions the accuracies and gap are NaN.
//
// The computation is pure and deterministic: identical inputs produce
// identical results, and neither argument is modified.
func ComputeMetrics(scope string, records []VerifiedRecord, refs map[string]Question) MetricsResult {
	outcomes, skipped := Outcomes(records, refs)

	res := MetricsResult{
		Scope:   scope,
		Total:   len(records),
		N:       len(outcomes),
		Skipped: skipped,
	}

	var tpSum, tnSum, fpSum, fnSum float64
	for _, o := range outcomes {
		if o.GenerationCorrect {
			res.GenerationCorrect++
		}
		switch o.Cell {
		case CellTruePositive:
			res.TP++
			tpSum += o.Confidence
		case CellTrueNegative:
			res.TN++
			tnSum += o.Confidence
		case CellFalsePositive:
			res.FP++
			fpSum += o.Confidence
		case CellFalseNegative:
			res.FN++
			fnSum += o.Confidence
		}
	}
	res.VerificationCorrect = res.TP + res.TN

	if res.N == 0 {
		res.GenerationAccuracy = math.NaN()
		res.VerificationAccuracy = math.NaN()
		res.GVGap = math.NaN()
		return res
	}

	n := float64(res.N)
	res.GenerationAccuracy = float64(res.GenerationCorrect) / n
	res.VerificationAccuracy = float64(res.VerificationCorrect) / n
	res.GVGap = res.VerificationAccuracy - res.GenerationAccuracy
	res.Confidence = CellConfidence{
		TP: safeMean(tpSum, res.TP),
		TN: safeMean(tnSum, res.TN),
		FP: safeMean(fpSum, res.FP),
		FN: safeMean(fnSum, res.FN),
	}
	return res
}

// ComputeReport computes the overall result plus one result per domain
// present in the input. Domain subsets are selected by each record's
// own domain field, then scored by exactly the same computation as the
// overall result.
func ComputeReport(records []VerifiedRecord, refs map[string]Question) MetricsReport {
	report := MetricsReport{Overall: ComputeMetrics("overall", records, refs)}

	for _, d := range []Domain{DomainMath, DomainCode, DomainFactual} {
		var subset []VerifiedRecord
		for _, rec := range records {
			if rec.Domain == d {
				subset = append(subset, rec)
			}
		}
		if len(subset) == 0 {
			continue
		}
		report.Domains = append(report.Domains, ComputeMetrics(string(d), subset, refs))
	}
	return report
}

func safeMean(sum float64, count int) float64 {
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}
