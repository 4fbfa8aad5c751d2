package report

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/ahrav/go-gvgap/internal/domain"
)

// StressOutcome is one judged injected-error variant. Every injected
// answer is wrong by construction, so the only question is whether the
// judge caught it.
type StressOutcome struct {
	// ID is the variant ID, e.g. "gsm8k/pilot/3::v2".
	ID string

	// ErrorType names the injected corruption.
	ErrorType string

	// Caught reports whether the judge rejected the corrupted answer.
	Caught bool
}

// StressRow aggregates judge performance for one injected error type.
type StressRow struct {
	ErrorType string
	Total     int
	Caught    int
}

// MissRate is the judge's false-negative rate on this error type: the
// fraction of corrupted answers it accepted.
func (r StressRow) MissRate() float64 {
	if r.Total == 0 {
		return 0
	}
	return 1 - float64(r.Caught)/float64(r.Total)
}

// FoldStress counts outcomes per error type. Rows sort by error type
// so repeated runs render identically.
func FoldStress(outcomes []StressOutcome) []StressRow {
	counts := make(map[string]*StressRow)
	for _, o := range outcomes {
		row, ok := counts[o.ErrorType]
		if !ok {
			row = &StressRow{ErrorType: o.ErrorType}
			counts[o.ErrorType] = row
		}
		row.Total++
		if o.Caught {
			row.Caught++
		}
	}

	rows := make([]StressRow, 0, len(counts))
	for _, row := range counts {
		rows = append(rows, *row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ErrorType < rows[j].ErrorType })
	return rows
}

// JudgeOutcome converts one judged variant into a stress outcome. A
// reject verdict means the corruption was caught.
func JudgeOutcome(rec domain.Question, verdict domain.CandidateVerdict, errorType string) StressOutcome {
	return StressOutcome{
		ID:        rec.ID,
		ErrorType: errorType,
		Caught:    verdict.Label == domain.LabelReject,
	}
}

// WriteStressTable renders the per-error-type miss-rate table. A high
// miss rate on one corruption type means the judge is blind to that
// error family regardless of its headline accuracy.
func WriteStressTable(w io.Writer, rows []StressRow) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "%-14s | %5s | %6s | %13s\n", "ErrorType", "Total", "Caught", "MissRate(FNR)")
	fmt.Fprintln(bw, strings.Repeat("-", 45))
	for _, row := range rows {
		fmt.Fprintf(bw, "%-14s | %5d | %6d | %13.2f\n", row.ErrorType, row.Total, row.Caught, row.MissRate())
	}

	return bw.Flush()
}
