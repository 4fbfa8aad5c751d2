// Command run_pipeline executes a full evaluation run from one YAML
// configuration: question preparation, candidate generation, judging,
// error tagging, scoring, and the cumulative taxonomy rebuild.
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

	"github.com/ahrav/go-gvgap/infrastructure/judge"
	"github.com/ahrav/go-gvgap/infrastructure/middleware"
	"github.com/ahrav/go-gvgap/infrastructure/store"
	"github.com/ahrav/go-gvgap/internal/application"
	"github.com/ahrav/go-gvgap/internal/domain"
	"github.com/ahrav/go-gvgap/internal/ports"
	"github.com/ahrav/go-gvgap/internal/report"
)

func main() {
	var (
		configPath    = flag.String("config", "", "Run configuration YAML (required)")
		questionsPath = flag.String("questions", "", "Prepared question JSONL; empty prepares questions from the config's dataset section")
		judgeName     = flag.String("judge", "llm", "Judge backend: llm or reference")
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
	fmt.Printf("Evaluating %d questions from %s/%s\n",
		len(questions), config.Dataset.Name, config.Dataset.Split)

	metrics := middleware.NewPrometheusMetrics()
	generator, genGuard, err := application.NewGenerator(config, metrics)
	if err != nil {
		log.Fatalf("Failed to build generator: %v", err)
	}

	var j ports.Judge
	var judgeGuard *middleware.UsageGuard
	switch *judgeName {
	case "llm":
		j, judgeGuard, err = application.NewJudge(config, metrics)
		if err != nil {
			log.Fatalf("Failed to build judge: %v", err)
		}
	case "reference":
		j = judge.NewReferenceJudge()
	default:
		log.Fatalf("Unknown judge backend %q: use llm or reference", *judgeName)
	}

	pipeline, err := application.NewPipeline(config, generator, j, metrics)
	if err != nil {
		log.Fatalf("Failed to build pipeline: %v", err)
	}

	result, err := pipeline.Run(ctx, questions)
	if err != nil {
		log.Fatalf("Run failed: %v", err)
	}

	fmt.Printf("\nRun %s complete\n", result.RunID)
	printStages(result.Manifest)
	printUsage("generation", genGuard)
	printUsage("judging", judgeGuard)
	fmt.Println()

	if err := report.WriteSummary(os.Stdout, result.Report); err != nil {
		if errors.Is(err, domain.ErrInsufficientData) {
			fmt.Printf("No questions could be scored (%d failed before scoring)\n",
				len(questions)-result.Report.Overall.N)
		} else {
			log.Fatalf("Failed to render summary: %v", err)
		}
	}
	fmt.Printf("\nArtifacts -> %s\n", result.Layout.RunDir())
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
	return questions, nil
}

// printStages renders the per-stage manifest counts in pipeline order.
func printStages(manifest store.RunManifest) {
	order := []string{
		application.StageGenerate,
		application.StageVerify,
		application.StageTag,
		application.StageScore,
		application.StageTaxonomy,
	}
	for _, stage := range order {
		stats, ok := manifest.Stages[stage]
		if !ok {
			continue
		}
		fmt.Printf("  %-9s processed=%d skipped=%d failed=%d duration=%.1fs\n",
			stage, stats.Processed, stats.Skipped, stats.Failed, stats.DurationS)
	}
}

// printUsage reports one guard's consumption; a nil guard means the
// stage ran without an LLM client.
func printUsage(stage string, guard *middleware.UsageGuard) {
	if guard == nil {
		return
	}
	usage := guard.Usage()
	fmt.Printf("  %s usage: %d calls, %d tokens\n", stage, usage.Calls, usage.Tokens)
}
