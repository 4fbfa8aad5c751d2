package report

import (
	"bufio"
	"fmt"
	"io"

	"github.com/ahrav/go-gvgap/internal/domain"
)

// WriteTaxonomyTable renders the cumulative error-taxonomy table as a
// markdown document. Rows arrive pre-sorted from TaxonomyRows: dataset
// ascending, then count descending, so the dominant error family leads
// each dataset section.
//
// The document carries no timestamp. It is rebuilt from scratch after
// every run, and a deterministic rendering means an unchanged error
// distribution produces a byte-identical file.
func WriteTaxonomyTable(w io.Writer, rows []domain.TaxonomyCount) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintln(bw, "# Error Taxonomy")
	fmt.Fprintln(bw)
	fmt.Fprintln(bw, "Cumulative counts of classified generation errors, rebuilt from")
	fmt.Fprintln(bw, "every tagged record under the results root.")
	fmt.Fprintln(bw)

	if len(rows) == 0 {
		fmt.Fprintln(bw, "No tagged errors recorded.")
		return bw.Flush()
	}

	fmt.Fprintln(bw, "| Dataset | Code | Name | Count |")
	fmt.Fprintln(bw, "|---|---|---|---:|")
	for _, row := range rows {
		fmt.Fprintf(bw, "| %s | %s | %s | %d |\n", row.Dataset, row.Code, row.Name, row.Count)
	}

	return bw.Flush()
}
