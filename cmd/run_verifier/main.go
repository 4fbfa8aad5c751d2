// Command run_verifier runs the verification stage on its own: it
// judges previously generated candidates and writes verified records.
// With -injected it instead judges corrupted answer variants and
// reports how often each corruption type slipped past the judge.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/ahrav/go-gvgap/infrastructure/dataset"
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
		configPath = flag.String("config", "", "Run configuration YAML (required)")
		input      = flag.String("input", "", "Input JSONL; empty uses the run layout's generation file")
		output     = flag.String("output", "", "Output path; empty uses the run layout (ignored in -injected mode unless set)")
		judgeName  = flag.String("judge", "llm", "Judge backend: llm or reference")
		injected   = flag.Bool("injected", false, "Treat -input as corrupted variants and report per-error-type miss rates")
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

	metrics := middleware.NewPrometheusMetrics()
	var j ports.Judge
	var guard *middleware.UsageGuard
	switch *judgeName {
	case "llm":
		j, guard, err = application.NewJudge(config, metrics)
		if err != nil {
			log.Fatalf("Failed to build judge: %v", err)
		}
	case "reference":
		j = judge.NewReferenceJudge()
	default:
		log.Fatalf("Unknown judge backend %q: use llm or reference", *judgeName)
	}

	if *injected {
		runStress(ctx, config, j, *input, *output)
	} else {
		runVerify(ctx, config, j, *input, *output)
	}

	if guard != nil {
		usage := guard.Usage()
		fmt.Printf("LLM usage: %d calls, %d tokens\n", usage.Calls, usage.Tokens)
	}
}

// runVerify judges every candidate of every generation record and
// writes the verified records.
func runVerify(ctx context.Context, config *application.RunConfig, j ports.Judge, input, output string) {
	layout := config.Layout()
	if input == "" {
		input = layout.GenerationPath()
	}

	records, stats, err := store.ReadRecords(input, (*domain.GenerationRecord).Validate)
	if err != nil {
		log.Fatalf("Failed to read generation records: %v", err)
	}
	if stats.Skipped > 0 {
		log.Printf("Skipped %d malformed generation lines", stats.Skipped)
	}
	if len(records) == 0 {
		log.Fatalf("No generation records in %s", input)
	}

	verified, err := application.VerifyRecords(ctx, j, records,
		config.Judge.MaxConcurrency,
		func(id string, err error) { log.Printf("verify %s: %v", id, err) })
	if err != nil {
		log.Fatalf("Verification aborted: %v", err)
	}

	if output == "" {
		if err := layout.EnsureRunDir(); err != nil {
			log.Fatalf("Failed to create run directory: %v", err)
		}
		output = layout.VerifiedPath()
	}
	if err := store.WriteRecords(output, verified); err != nil {
		log.Fatalf("Failed to write verified records: %v", err)
	}

	excluded := 0
	for _, r := range verified {
		excluded += r.Verify.FailedCount
	}
	fmt.Printf("Verified %d/%d questions (%d dropped, %d judge calls excluded)\n",
		len(verified), len(records), len(records)-len(verified), excluded)
	fmt.Printf("Records -> %s\n", output)
}

// runStress judges each corrupted variant and folds the verdicts into
// per-error-type miss rates. A miss is an accepted corruption: the
// judge approved an answer known to be wrong.
func runStress(ctx context.Context, config *application.RunConfig, j ports.Judge, input, output string) {
	if input == "" {
		log.Fatalf("Missing -input: -injected mode needs a corrupted variants file")
	}

	records, stats, err := store.ReadRecords(input, (*dataset.InjectedRecord).Validate)
	if err != nil {
		log.Fatalf("Failed to read corrupted variants: %v", err)
	}
	if stats.Skipped > 0 {
		log.Printf("Skipped %d malformed variant lines", stats.Skipped)
	}
	if len(records) == 0 {
		log.Fatalf("No corrupted variants in %s", input)
	}

	results := make([]*report.StressOutcome, len(records))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(config.Judge.MaxConcurrency)
	for i, rec := range records {
		g.Go(func() error {
			q, c := rec.AsPair()
			verdict, err := j.Evaluate(gctx, q, c)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				log.Printf("judge %s: %v", rec.ID, err)
				return nil
			}
			outcome := report.JudgeOutcome(q, verdict, rec.ErrorType)
			results[i] = &outcome
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.Fatalf("Stress run aborted: %v", err)
	}

	outcomes := make([]report.StressOutcome, 0, len(records))
	for _, r := range results {
		if r != nil {
			outcomes = append(outcomes, *r)
		}
	}

	rows := report.FoldStress(outcomes)
	if err := report.WriteStressTable(os.Stdout, rows); err != nil {
		log.Fatalf("Failed to render stress table: %v", err)
	}
	if output != "" {
		if err := writeArtifact(output, func(w io.Writer) error {
			return report.WriteStressTable(w, rows)
		}); err != nil {
			log.Fatalf("Failed to write stress table: %v", err)
		}
		fmt.Printf("Stress table -> %s\n", output)
	}
	fmt.Printf("Judged %d/%d corrupted variants\n", len(outcomes), len(records))
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
