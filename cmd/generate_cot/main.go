// Command generate_cot runs the generation stage on its own: it samples
// chain-of-thought candidates for every question and writes the
// generation records for a later verification pass.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ahrav/go-gvgap/infrastructure/middleware"
	"github.com/ahrav/go-gvgap/infrastructure/store"
	"github.com/ahrav/go-gvgap/internal/application"
	"github.com/ahrav/go-gvgap/internal/domain"
)

func main() {
	var (
		configPath    = flag.String("config", "", "Run configuration YAML (required)")
		questionsPath = flag.String("questions", "", "Prepared question JSONL; empty prepares questions from the config's dataset section")
		output        = flag.String("output", "", "Output path; empty writes into the run layout under the config's output root")
	)
	flag.Parse()

	if *configPath == "" {
		log.Fatalf("Missing required -config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	config, err := application.NewConfigLoader().LoadFromFile(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	questions, err := loadQuestions(config, *questionsPath)
	if err != nil {
		log.Fatalf("Failed to load questions: %v", err)
	}
	if len(questions) == 0 {
		log.Fatalf("No questions to generate for")
	}

	metrics := middleware.NewPrometheusMetrics()
	generator, guard, err := application.NewGenerator(config, metrics)
	if err != nil {
		log.Fatalf("Failed to build generator: %v", err)
	}

	records, err := application.GenerateRecords(ctx, generator, questions,
		config.Generation.MaxConcurrency,
		func(id string, err error) { log.Printf("generate %s: %v", id, err) })
	if err != nil {
		log.Fatalf("Generation aborted: %v", err)
	}

	outPath := *output
	if outPath == "" {
		layout := config.Layout()
		if err := layout.EnsureRunDir(); err != nil {
			log.Fatalf("Failed to create run directory: %v", err)
		}
		outPath = layout.GenerationPath()
	}
	if err := store.WriteRecords(outPath, records); err != nil {
		log.Fatalf("Failed to write generation records: %v", err)
	}

	usage := guard.Usage()
	fmt.Printf("Generated %d/%d questions (%d failed)\n",
		len(records), len(questions), len(questions)-len(records))
	fmt.Printf("LLM usage: %d calls, %d tokens\n", usage.Calls, usage.Tokens)
	fmt.Printf("Records -> %s\n", outPath)
}

// loadQuestions reads prepared questions from path when given,
// otherwise prepares them from the config's dataset section.
func loadQuestions(config *application.RunConfig, path string) ([]domain.Question, error) {
	if path == "" {
		questions, skipped, err := application.LoadQuestions(config)
		if err != nil {
			return nil, err
		}
		if skipped > 0 {
			log.Printf("Skipped %d raw problems during preparation", skipped)
		}
		return questions, nil
	}

	questions, stats, err := store.ReadRecords(path, (*domain.Question).Validate)
	if err != nil {
		return nil, err
	}
	if stats.Skipped > 0 {
		log.Printf("Skipped %d malformed question lines", stats.Skipped)
	}
	if config.Dataset.Limit > 0 && len(questions) > config.Dataset.Limit {
		questions = questions[:config.Dataset.Limit]
	}
	if len(questions) == 0 {
		return nil, errors.New("no valid questions in " + path)
	}
	return questions, nil
}
