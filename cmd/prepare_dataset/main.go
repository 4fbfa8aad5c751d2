// Command prepare_dataset converts a raw problem set into the question
// JSONL the pipeline consumes. Without -input it prepares the embedded
// GSM8K pilot sample, which needs no files on disk.
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
		input      = flag.String("input", "", "Raw problems JSON file; empty uses the embedded GSM8K pilot sample")
		name       = flag.String("dataset", dataset.DatasetGSM8K, "Dataset name recorded in question ids")
		domainName = flag.String("domain", "math", "Task domain: math, code, or factual")
		split      = flag.String("split", "pilot", "Split name recorded in question ids")
		limit      = flag.Int("limit", 0, "Maximum questions to prepare (0 = all)")
		output     = flag.String("output", "data/questions.jsonl", "Output question JSONL path")
	)
	flag.Parse()

	if !domain.IsValidDomain(domain.Domain(*domainName)) {
		log.Fatalf("Unknown domain %q: use math, code, or factual", *domainName)
	}

	var problems []dataset.RawProblem
	source := *input
	if *input == "" {
		if *name != dataset.DatasetGSM8K {
			log.Fatalf("Dataset %q has no embedded sample; provide -input", *name)
		}
		problems = dataset.PilotSample()
		source = "embedded-pilot"
	} else {
		var err error
		problems, err = dataset.LoadRawProblems(*input)
		if err != nil {
			log.Fatalf("Failed to load problems: %v", err)
		}
	}
	if *limit > 0 && len(problems) > *limit {
		problems = problems[:*limit]
	}

	metadata := map[string]string{"source": source}
	var questions []domain.Question
	var skipped int
	if *name == dataset.DatasetGSM8K {
		questions, skipped = dataset.PrepareGSM8K(problems, *split, metadata)
	} else {
		questions, skipped = dataset.PrepareGeneric(problems, *name, domain.Domain(*domainName), *split, metadata)
	}

	if err := store.WriteRecords(*output, questions); err != nil {
		log.Fatalf("Failed to write questions: %v", err)
	}

	fmt.Printf("Prepared %d questions (%d skipped) -> %s\n", len(questions), skipped, *output)
}
