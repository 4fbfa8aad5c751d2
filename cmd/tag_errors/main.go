// Command tag_errors classifies the incorrect generations of a verified
// file into their domain's error taxonomy and optionally rebuilds the
// cumulative taxonomy table at a results root.
package main

import (
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
		input  = flag.String("input", "", "Verified record JSONL (required)")
		output = flag.String("output", "", "Output path; empty writes the tagged file next to -input")
		root   = flag.String("root", "", "Results root; when set, rebuilds the cumulative taxonomy table from every tagged file beneath it")
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

	tagged := make([]domain.TaggedRecord, 0, len(records))
	skipped := 0
	for _, rec := range records {
		tr, err := domain.TagRecord(rec)
		if err != nil {
			skipped++
			log.Printf("tag %s: %v", rec.ID, err)
			continue
		}
		tagged = append(tagged, tr)
	}

	outPath := *output
	if outPath == "" {
		outPath = filepath.Join(filepath.Dir(*input), store.TaggedFile)
	}
	if err := store.WriteRecords(outPath, tagged); err != nil {
		log.Fatalf("Failed to write tagged records: %v", err)
	}
	fmt.Printf("Tagged %d records (%d skipped) -> %s\n", len(tagged), skipped, outPath)

	if *root != "" {
		if err := rebuildTaxonomy(*root); err != nil {
			log.Fatalf("Failed to rebuild taxonomy table: %v", err)
		}
	}
}

// rebuildTaxonomy recounts every tagged file under root into the
// cumulative markdown table.
func rebuildTaxonomy(root string) error {
	paths, err := store.FindTaggedFiles(root)
	if err != nil {
		return err
	}

	var all []domain.TaggedRecord
	for _, path := range paths {
		records, _, err := store.ReadRecords(path, (*domain.TaggedRecord).Validate)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		all = append(all, records...)
	}

	layout := store.Layout{Root: root}
	if err := writeArtifact(layout.TaxonomyPath(), func(w io.Writer) error {
		return report.WriteTaxonomyTable(w, domain.TaxonomyRows(all))
	}); err != nil {
		return err
	}

	fmt.Printf("Taxonomy table over %d tagged records (%d files) -> %s\n",
		len(all), len(paths), layout.TaxonomyPath())
	return nil
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
