// Command inject_errors builds corrupted answer variants from a
// question JSONL for verifier stress testing. Each numeric-answer
// question yields k deliberately wrong answers with a known error type,
// so judge miss rates can be measured per corruption.
package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/ahrav/go-gvgap/infrastructure/dataset"
	"github.com/ahrav/go-gvgap/infrastructure/store"
	"github.com/ahrav/go-gvgap/internal/domain"
)

func main() {
	var (
		input  = flag.String("input", "", "Question JSONL to corrupt (required)")
		output = flag.String("output", "data/injected.jsonl", "Output JSONL path for corrupted variants")
		k      = flag.Int("k", 2, "Corrupted variants per question")
		seed   = flag.Int64("seed", dataset.DefaultInjectionSeed, "RNG seed; the same seed reproduces the same corruptions")
	)
	flag.Parse()

	if *input == "" {
		log.Fatalf("Missing required -input")
	}
	if *k < 1 {
		log.Fatalf("-k must be at least 1, got %d", *k)
	}

	questions, stats, err := store.ReadRecords(*input, (*domain.Question).Validate)
	if err != nil {
		log.Fatalf("Failed to read questions: %v", err)
	}
	if stats.Skipped > 0 {
		log.Printf("Skipped %d malformed question lines", stats.Skipped)
	}

	injector := dataset.NewInjector(*seed)
	records, skipped := injector.InjectVariants(questions, *k)

	if err := store.WriteRecords(*output, records); err != nil {
		log.Fatalf("Failed to write corrupted variants: %v", err)
	}

	fmt.Printf("Injected %d corrupted variants from %d questions (%d without numeric answers) -> %s\n",
		len(records), len(questions), skipped, *output)
}
