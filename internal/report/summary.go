// Package report renders run metrics into their human- and
// machine-readable artifacts: the gap-analysis summary block, the scope
// and per-question CSV files, the cumulative markdown taxonomy table,
// and the injected-error stress table.
//
// Writers take an io.Writer so the same rendering serves both console
// output and stage files. Rendering is deterministic: no timestamps,
// no map-order dependence, so regenerated artifacts diff cleanly.
package report

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/ahrav/go-gvgap/internal/domain"
)

// summaryRuleWidth is the width of the "=" rules framing the header.
const summaryRuleWidth = 60

// WriteSummary renders the gap-analysis block for one run: headline
// accuracies, the signed GV-Gap with its interpretation, and the
// confusion-matrix breakdown with mean verifier confidence per cell.
// Per-domain lines are appended when the report carries domain subsets.
//
// Returns ErrInsufficientData when the run scored zero questions; the
// raw MetricsReport still exists in that case, but accuracies are NaN
// and a prose rendering of them would mislead more than inform.
func WriteSummary(w io.Writer, report domain.MetricsReport) error {
	overall := report.Overall
	if overall.N == 0 {
		return fmt.Errorf("%w (records: %d, skipped: %d)",
			domain.ErrInsufficientData, overall.Total, overall.Skipped)
	}

	bw := bufio.NewWriter(w)
	rule := strings.Repeat("=", summaryRuleWidth)

	fmt.Fprintln(bw, rule)
	fmt.Fprintln(bw, "GENERATION-VERIFICATION GAP ANALYSIS")
	fmt.Fprintln(bw, rule)
	fmt.Fprintf(bw, "Total Questions: %d\n", overall.N)
	if overall.Skipped > 0 {
		fmt.Fprintf(bw, "Skipped (no reference): %d\n", overall.Skipped)
	}
	fmt.Fprintf(bw, "Generation Accuracy: %.3f (%d/%d)\n",
		overall.GenerationAccuracy, overall.GenerationCorrect, overall.N)
	fmt.Fprintf(bw, "Verification Accuracy: %.3f (%d/%d)\n",
		overall.VerificationAccuracy, overall.VerificationCorrect, overall.N)
	fmt.Fprintf(bw, "GV-Gap: %.3f\n", overall.GVGap)
	fmt.Fprintln(bw, interpretation(overall.GVGap))

	fmt.Fprintln(bw)
	fmt.Fprintln(bw, "Verification Pattern Analysis:")
	fmt.Fprintf(bw, "True Positives (Accept correct): %d (mean confidence %.2f)\n",
		overall.TP, overall.Confidence.TP)
	fmt.Fprintf(bw, "True Negatives (Reject incorrect): %d (mean confidence %.2f)\n",
		overall.TN, overall.Confidence.TN)
	fmt.Fprintf(bw, "False Positives (Accept incorrect): %d (mean confidence %.2f)\n",
		overall.FP, overall.Confidence.FP)
	fmt.Fprintf(bw, "False Negatives (Reject correct): %d (mean confidence %.2f)\n",
		overall.FN, overall.Confidence.FN)

	if len(report.Domains) > 0 {
		fmt.Fprintln(bw)
		fmt.Fprintln(bw, "Domain Breakdown:")
		for _, d := range report.Domains {
			if d.N == 0 {
				// A subset whose every record lacked a reference has
				// NaN accuracies; skip the line rather than print them.
				fmt.Fprintf(bw, "%-8s no scored questions (skipped %d)\n", d.Scope, d.Skipped)
				continue
			}
			fmt.Fprintf(bw, "%-8s gen %.3f  verify %.3f  gap %+.3f  (n=%d)\n",
				d.Scope, d.GenerationAccuracy, d.VerificationAccuracy, d.GVGap, d.N)
		}
	}

	return bw.Flush()
}

// Summary renders the gap-analysis block to a string.
func Summary(report domain.MetricsReport) (string, error) {
	var sb strings.Builder
	if err := WriteSummary(&sb, report); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// interpretation states what the sign of the gap means for the model's
// self-verification ability.
func interpretation(gap float64) string {
	switch {
	case gap > 0:
		return "✓ Positive GV-Gap: Verifier outperforms generator (good self-verification)"
	case gap < 0:
		return "✗ Negative GV-Gap: Generator outperforms verifier (poor self-verification)"
	default:
		return "= Zero GV-Gap: Generator and verifier perform equally"
	}
}
