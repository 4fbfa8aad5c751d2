// Command compute_gv_gap scores a verified record file: it computes the
// confusion matrix, generation and verification accuracies, and the
// generation-verification gap, writing the CSV artifacts and printing
// the summary.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/ahrav/go-gvgap/infrastructure/store"
	"github.com/ahrav/go-gvgap/internal/domain"
	"github.com/ahrav/go-gvgap/internal/report"
)

func main() {
	var (
		input     = flag.String("input", "", "Verified record JSONL (required)")
		questions = flag.String("questions", "", "Reference question JSONL; empty scores against the questions embedded in the records")
		outDir    = flag.String("outdir", "", "Artifact directory; empty uses the directory of -input")
	)
	flag.Parse()

	if *input == "" {
		log.Fatalf("Missing required -input")
	}

	records, stats, err := store.ReadRecords(*input, (*domain.VerifiedRecord).Validate)
	if err != nil {
		log.Fatalf("Failed to read verified records: %v", err)
	}
	if stats.Skipped > 0 {
		log.Printf("Skipped %d malformed verified lines", stats.Skipped)
	}

	refs, err := referenceSet(records, *questions)
	if err != nil {
		log.Fatalf("Failed to load reference questions: %v", err)
	}

	metricsReport := domain.ComputeReport(records, refs)
	outcomes, _ := domain.Outcomes(records, refs)

	dir := *outDir
	if dir == "" {
		dir = filepath.Dir(*input)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Fatalf("Failed to create output directory: %v", err)
	}

	metricsPath := filepath.Join(dir, store.MetricsCSVFile)
	if err := writeArtifact(metricsPath, func(w io.Writer) error {
		return report.WriteMetricsCSV(w, metricsReport)
	}); err != nil {
		log.Fatalf("Failed to write metrics CSV: %v", err)
	}

	detailsPath := filepath.Join(dir, store.DetailsCSVFile)
	if err := writeArtifact(detailsPath, func(w io.Writer) error {
		return report.WriteDetailsCSV(w, outcomes)
	}); err != nil {
		log.Fatalf("Failed to write details CSV: %v", err)
	}

	if metricsReport.Overall.N > 0 {
		summaryPath := filepath.Join(dir, store.SummaryFile)
		if err := writeArtifact(summaryPath, func(w io.Writer) error {
			return report.WriteSummary(w, metricsReport)
		}); err != nil {
			log.Fatalf("Failed to write summary: %v", err)
		}
	}

	if err := report.WriteSummary(os.Stdout, metricsReport); err != nil {
		if errors.Is(err, domain.ErrInsufficientData) {
			fmt.Printf("No questions could be scored (%d records, %d without a reference entry)\n",
				metricsReport.Overall.Total, metricsReport.Overall.Skipped)
		} else {
			log.Fatalf("Failed to render summary: %v", err)
		}
	}
	fmt.Printf("Artifacts -> %s\n", dir)
}

// referenceSet builds the by-ID reference lookup, either from a
// prepared question file or from the questions embedded in the records
// themselves.
func referenceSet(records []domain.VerifiedRecord, path string) (map[string]domain.Question, error) {
	refs := make(map[string]domain.Question, len(records))
	if path == "" {
		for _, rec := range records {
			refs[rec.ID] = rec.Question
		}
		return refs, nil
	}

	questions, stats, err := store.ReadRecords(path, (*domain.Question).Validate)
	if err != nil {
		return nil, err
	}
	if stats.Skipped > 0 {
		log.Printf("Skipped %d malformed question lines", stats.Skipped)
	}
	for _, q := range questions {
		refs[q.ID] = q
	}
	return refs, nil
}

// writeArtifact creates path and streams one rendered artifact into it.
func writeArtifact(path string, render func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := render(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
