package report

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/ahrav/go-gvgap/internal/domain"
)

// Column orders for the CSV artifacts. Downstream notebooks address
// columns by name, so names are stable; new columns append only.
var (
	metricsHeader = []string{
		"scope", "n", "generation_accuracy", "verification_accuracy",
		"gv_gap", "tp", "tn", "fp", "fn",
	}

	detailsHeader = []string{
		"id", "generated_answer", "reference_answer", "generation_correct",
		"verify_label", "verify_confidence", "verification_correct",
		"cell", "similarity",
	}
)

// WriteMetricsCSV writes one row per scope: overall first, then each
// domain subset present in the report. Empty scopes render their
// accuracies as NaN rather than being dropped, so a run with zero
// scored questions still leaves a parseable artifact.
func WriteMetricsCSV(w io.Writer, report domain.MetricsReport) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(metricsHeader); err != nil {
		return err
	}
	if err := cw.Write(metricsRow(report.Overall)); err != nil {
		return err
	}
	for _, d := range report.Domains {
		if err := cw.Write(metricsRow(d)); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

func metricsRow(res domain.MetricsResult) []string {
	return []string{
		res.Scope,
		strconv.Itoa(res.N),
		formatFloat(res.GenerationAccuracy),
		formatFloat(res.VerificationAccuracy),
		formatFloat(res.GVGap),
		strconv.Itoa(res.TP),
		strconv.Itoa(res.TN),
		strconv.Itoa(res.FP),
		strconv.Itoa(res.FN),
	}
}

// WriteDetailsCSV writes one row per scored question in input order.
// The similarity column is the normalized Levenshtein similarity
// between the generated and reference answers, so near-misses (wrong
// but close) can be separated from outright failures when reviewing
// false positives.
func WriteDetailsCSV(w io.Writer, outcomes []domain.QuestionOutcome) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(detailsHeader); err != nil {
		return err
	}
	for _, o := range outcomes {
		row := []string{
			o.ID,
			o.Answer,
			o.ReferenceAnswer,
			strconv.FormatBool(o.GenerationCorrect),
			string(o.Label),
			formatFloat(o.Confidence),
			strconv.FormatBool(o.VerificationCorrect),
			string(o.Cell),
			strconv.FormatFloat(domain.Similarity(o.Answer, o.ReferenceAnswer), 'f', 3, 64),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// formatFloat renders a float with full round-trip precision. NaN
// renders as the literal "NaN", which both pandas and R parse as
// missing data.
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
