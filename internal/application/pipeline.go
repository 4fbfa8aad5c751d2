package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/ahrav/go-gvgap/infrastructure/store"
	"github.com/ahrav/go-gvgap/internal/domain"
	"github.com/ahrav/go-gvgap/internal/ports"
	"github.com/ahrav/go-gvgap/internal/report"
)

// Stage names used as manifest keys, metric labels, and span suffixes.
const (
	StageGenerate = "generate"
	StageVerify   = "verify"
	StageTag      = "tag"
	StageScore    = "score"
	StageTaxonomy = "taxonomy"
)

// Sentinel errors for clear, testable error conditions.
var (
	ErrConfigNil    = errors.New("run config cannot be nil")
	ErrGeneratorNil = errors.New("generator cannot be nil")
	ErrJudgeNil     = errors.New("judge cannot be nil")
	ErrMetricsNil   = errors.New("metrics collector cannot be nil")
	ErrNoQuestions  = errors.New("no questions to evaluate")
)

// Pipeline runs one evaluation end to end: generation, verification,
// tagging, scoring, and the cumulative taxonomy rebuild. Each stage
// persists its output before the next begins, so a results directory
// always reflects how far a run got.
//
// Failure handling is per-item wherever possible. A question whose
// generation fails, or whose every judge call fails, is dropped and
// counted rather than aborting the run; only context cancellation stops
// a stage early.
type Pipeline struct {
	config    *RunConfig
	generator ports.Generator
	judge     ports.Judge
	metrics   ports.MetricsCollector

	// tracer is the OpenTelemetry tracer for observability.
	tracer trace.Tracer
}

// NewPipeline creates a pipeline from its collaborators. It returns an
// error if the configuration or any collaborator is nil.
func NewPipeline(
	config *RunConfig,
	generator ports.Generator,
	judge ports.Judge,
	metrics ports.MetricsCollector,
) (*Pipeline, error) {
	if config == nil {
		return nil, ErrConfigNil
	}
	if generator == nil {
		return nil, ErrGeneratorNil
	}
	if judge == nil {
		return nil, ErrJudgeNil
	}
	if metrics == nil {
		return nil, ErrMetricsNil
	}

	return &Pipeline{
		config:    config,
		generator: generator,
		judge:     judge,
		metrics:   metrics,
		tracer:    otel.Tracer("pipeline"),
	}, nil
}

// RunResult summarizes one completed pipeline run.
type RunResult struct {
	// RunID is the UUID assigned when the run started.
	RunID string

	// Layout locates every artifact the run wrote.
	Layout store.Layout

	// Manifest holds the per-stage outcome counts that were persisted
	// next to the stage outputs.
	Manifest store.RunManifest

	// Report holds the computed overall and per-domain metrics.
	Report domain.MetricsReport
}

// Run executes every pipeline stage over the given questions and
// returns the run summary. Artifacts land under the configured results
// root at <root>/<dataset>/<model>/<split>/; the manifest is written
// last, so its presence marks a completed run.
func (p *Pipeline) Run(ctx context.Context, questions []domain.Question) (*RunResult, error) {
	if len(questions) == 0 {
		return nil, ErrNoQuestions
	}

	runID := uuid.NewString()
	ctx, span := p.tracer.Start(ctx, "Pipeline.Run",
		trace.WithAttributes(
			attribute.String("run.id", runID),
			attribute.String("run.dataset", p.config.Dataset.Name),
			attribute.String("run.model", p.config.Generation.Model),
			attribute.Int("run.questions", len(questions)),
		),
	)
	defer span.End()

	layout := p.config.Layout()
	if err := layout.EnsureRunDir(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	manifest := store.RunManifest{
		RunID:     runID,
		CreatedAt: time.Now().UTC(),
		Config:    p.config,
		Stages:    make(map[string]store.StageStats),
	}

	generated, genStats, err := p.generate(ctx, questions)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("generate stage: %w", err)
	}
	manifest.Stages[StageGenerate] = genStats
	if err := store.WriteRecords(layout.GenerationPath(), generated); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("persist generation records: %w", err)
	}

	verified, verifyStats, err := p.verify(ctx, generated)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("verify stage: %w", err)
	}
	manifest.Stages[StageVerify] = verifyStats
	if err := store.WriteRecords(layout.VerifiedPath(), verified); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("persist verified records: %w", err)
	}

	tagged, tagStats := p.tag(ctx, verified)
	manifest.Stages[StageTag] = tagStats
	if err := store.WriteRecords(layout.TaggedPath(), tagged); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("persist tagged records: %w", err)
	}

	metricsReport, scoreStats, err := p.score(ctx, layout, verified, referenceIndex(questions))
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("score stage: %w", err)
	}
	manifest.Stages[StageScore] = scoreStats

	taxStats, err := p.taxonomy(ctx, layout)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("taxonomy stage: %w", err)
	}
	manifest.Stages[StageTaxonomy] = taxStats

	if err := store.WriteManifest(layout.ManifestPath(), manifest); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("persist manifest: %w", err)
	}

	span.SetStatus(codes.Ok, "run complete")

	return &RunResult{
		RunID:    runID,
		Layout:   layout,
		Manifest: manifest,
		Report:   metricsReport,
	}, nil
}

// generate samples candidates for every question concurrently, bounded
// by the configured generation fan-out. A failed question is dropped
// and counted; cancellation aborts the stage with the context error.
func (p *Pipeline) generate(
	ctx context.Context, questions []domain.Question,
) ([]domain.GenerationRecord, store.StageStats, error) {
	ctx, span := p.tracer.Start(ctx, "Pipeline.Generate",
		trace.WithAttributes(attribute.Int("stage.questions", len(questions))),
	)
	defer span.End()
	start := time.Now()

	records, err := GenerateRecords(ctx, p.generator, questions,
		p.config.Generation.MaxConcurrency,
		func(id string, err error) {
			span.AddEvent("question.failed", trace.WithAttributes(
				attribute.String("question.id", id),
				attribute.String("error", err.Error()),
			))
		})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, store.StageStats{}, err
	}

	stats := store.StageStats{}
	for _, r := range records {
		for _, c := range r.Gen.Candidates {
			stats.TokensIn += c.TokensIn
			stats.TokensOut += c.TokensOut
		}
	}
	stats.Processed = len(records)
	stats.Failed = len(questions) - len(records)

	p.finishStage(span, StageGenerate, start, &stats)
	return records, stats, nil
}

// verify judges every candidate of every record. Questions fan out
// bounded by the judge concurrency limit; the candidates of one
// question are always judged concurrently. A question whose every judge
// call failed has no verdicts to vote on and is dropped and counted.
func (p *Pipeline) verify(
	ctx context.Context, records []domain.GenerationRecord,
) ([]domain.VerifiedRecord, store.StageStats, error) {
	ctx, span := p.tracer.Start(ctx, "Pipeline.Verify",
		trace.WithAttributes(attribute.Int("stage.records", len(records))),
	)
	defer span.End()
	start := time.Now()

	kept, err := VerifyRecords(ctx, p.judge, records,
		p.config.Judge.MaxConcurrency,
		func(id string, err error) {
			span.AddEvent("question.dropped", trace.WithAttributes(
				attribute.String("question.id", id),
				attribute.String("error", err.Error()),
			))
		})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, store.StageStats{}, err
	}

	stats := store.StageStats{}
	for _, r := range kept {
		for _, v := range r.Verify.Candidates {
			stats.TokensIn += v.TokensIn
			stats.TokensOut += v.TokensOut
		}
		stats.Failed += r.Verify.FailedCount
	}
	stats.Processed = len(kept)
	// Dropped questions count as failures alongside excluded judge calls.
	stats.Failed += len(records) - len(kept)

	p.finishStage(span, StageVerify, start, &stats)
	return kept, stats, nil
}

// tag classifies the incorrect generations into their domain taxonomy.
// Records whose domain has no taxonomy are skipped and counted.
func (p *Pipeline) tag(
	ctx context.Context, records []domain.VerifiedRecord,
) ([]domain.TaggedRecord, store.StageStats) {
	_, span := p.tracer.Start(ctx, "Pipeline.Tag",
		trace.WithAttributes(attribute.Int("stage.records", len(records))),
	)
	defer span.End()
	start := time.Now()

	tagged := make([]domain.TaggedRecord, 0, len(records))
	stats := store.StageStats{}
	for _, rec := range records {
		tr, err := domain.TagRecord(rec)
		if err != nil {
			stats.Skipped++
			span.AddEvent("record.skipped", trace.WithAttributes(
				attribute.String("question.id", rec.ID),
				attribute.String("error", err.Error()),
			))
			continue
		}
		tagged = append(tagged, tr)
	}
	stats.Processed = len(tagged)

	p.finishStage(span, StageTag, start, &stats)
	return tagged, stats
}

// score computes the metrics report and writes the CSV and summary
// artifacts. The summary is omitted when no question could be scored,
// since there is nothing to interpret; the CSVs are still written with
// zero counts so downstream tooling finds its files.
func (p *Pipeline) score(
	ctx context.Context,
	layout store.Layout,
	records []domain.VerifiedRecord,
	refs map[string]domain.Question,
) (domain.MetricsReport, store.StageStats, error) {
	_, span := p.tracer.Start(ctx, "Pipeline.Score",
		trace.WithAttributes(attribute.Int("stage.records", len(records))),
	)
	defer span.End()
	start := time.Now()

	metricsReport := domain.ComputeReport(records, refs)
	outcomes, _ := domain.Outcomes(records, refs)

	if err := writeArtifact(layout.MetricsCSVPath(), func(w io.Writer) error {
		return report.WriteMetricsCSV(w, metricsReport)
	}); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return domain.MetricsReport{}, store.StageStats{}, err
	}

	if err := writeArtifact(layout.DetailsCSVPath(), func(w io.Writer) error {
		return report.WriteDetailsCSV(w, outcomes)
	}); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return domain.MetricsReport{}, store.StageStats{}, err
	}

	if metricsReport.Overall.N > 0 {
		if err := writeArtifact(layout.SummaryPath(), func(w io.Writer) error {
			return report.WriteSummary(w, metricsReport)
		}); err != nil {
			span.SetStatus(codes.Error, err.Error())
			return domain.MetricsReport{}, store.StageStats{}, err
		}
		span.SetAttributes(
			attribute.Float64("score.generation_accuracy", metricsReport.Overall.GenerationAccuracy),
			attribute.Float64("score.verification_accuracy", metricsReport.Overall.VerificationAccuracy),
			attribute.Float64("score.gv_gap", metricsReport.Overall.GVGap),
		)
	} else {
		span.AddEvent("summary.skipped", trace.WithAttributes(
			attribute.Int("score.unmatched", metricsReport.Overall.Skipped),
		))
	}

	stats := store.StageStats{
		Processed: metricsReport.Overall.N,
		Skipped:   metricsReport.Overall.Skipped,
	}

	p.finishStage(span, StageScore, start, &stats)
	return metricsReport, stats, nil
}

// taxonomy rebuilds the cumulative error table at the results root from
// every tagged file beneath it, including files written by earlier runs
// against other datasets and models.
func (p *Pipeline) taxonomy(ctx context.Context, layout store.Layout) (store.StageStats, error) {
	_, span := p.tracer.Start(ctx, "Pipeline.Taxonomy")
	defer span.End()
	start := time.Now()

	paths, err := store.FindTaggedFiles(layout.Root)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return store.StageStats{}, err
	}

	var all []domain.TaggedRecord
	stats := store.StageStats{}
	for _, path := range paths {
		records, readStats, err := store.ReadRecords(path, (*domain.TaggedRecord).Validate)
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			return store.StageStats{}, fmt.Errorf("read tagged records %s: %w", path, err)
		}
		all = append(all, records...)
		stats.Skipped += readStats.Skipped
	}

	rows := domain.TaxonomyRows(all)
	if err := writeArtifact(layout.TaxonomyPath(), func(w io.Writer) error {
		return report.WriteTaxonomyTable(w, rows)
	}); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return store.StageStats{}, err
	}
	stats.Processed = len(all)

	span.SetAttributes(
		attribute.Int("taxonomy.files", len(paths)),
		attribute.Int("taxonomy.rows", len(rows)),
	)
	p.finishStage(span, StageTaxonomy, start, &stats)
	return stats, nil
}

// finishStage stamps the stage duration and emits the per-stage
// telemetry: a latency observation plus record counters split by
// outcome.
func (p *Pipeline) finishStage(
	span trace.Span, stage string, start time.Time, stats *store.StageStats,
) {
	stats.DurationS = time.Since(start).Seconds()

	p.metrics.RecordLatency("run", time.Since(start), map[string]string{"stage": stage})
	p.metrics.RecordCounter("records", float64(stats.Processed),
		map[string]string{"stage": stage, "status": "processed"})
	if stats.Skipped > 0 {
		p.metrics.RecordCounter("records", float64(stats.Skipped),
			map[string]string{"stage": stage, "status": "skipped"})
	}
	if stats.Failed > 0 {
		p.metrics.RecordCounter("records", float64(stats.Failed),
			map[string]string{"stage": stage, "status": "failed"})
	}

	span.SetAttributes(
		attribute.Int("stage.processed", stats.Processed),
		attribute.Int("stage.skipped", stats.Skipped),
		attribute.Int("stage.failed", stats.Failed),
	)
}

// GenerateRecords samples candidates for every question through gen,
// fanning out up to concurrency questions at a time. Questions whose
// generation failed are dropped from the result and reported through
// onFailure, which may be called concurrently; ordering of the
// surviving records follows the input. Only context cancellation
// returns an error.
func GenerateRecords(
	ctx context.Context,
	gen ports.Generator,
	questions []domain.Question,
	concurrency int,
	onFailure func(id string, err error),
) ([]domain.GenerationRecord, error) {
	meta := gen.Meta()
	results := make([]*domain.GenerationRecord, len(questions))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, q := range questions {
		g.Go(func() error {
			generation, err := gen.Generate(gctx, q)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				if onFailure != nil {
					onFailure(q.ID, err)
				}
				return nil
			}
			results[i] = &domain.GenerationRecord{
				Question:  q,
				Generator: meta,
				Gen:       generation,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	records := make([]domain.GenerationRecord, 0, len(questions))
	for _, r := range results {
		if r != nil {
			records = append(records, *r)
		}
	}
	return records, nil
}

// VerifyRecords judges every candidate of every record through j,
// fanning out up to concurrency questions at a time; the candidates of
// one question are always judged concurrently. A question whose every
// judge call failed has no verdicts to vote on; it is dropped from the
// result and reported through onDrop, which may be called concurrently.
// Only context cancellation returns an error.
func VerifyRecords(
	ctx context.Context,
	j ports.Judge,
	records []domain.GenerationRecord,
	concurrency int,
	onDrop func(id string, err error),
) ([]domain.VerifiedRecord, error) {
	results := make([]*domain.VerifiedRecord, len(records))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, rec := range records {
		g.Go(func() error {
			verified, err := judgeGeneration(gctx, j, rec)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				if onDrop != nil {
					onDrop(rec.ID, err)
				}
				return nil
			}
			results[i] = &verified
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	kept := make([]domain.VerifiedRecord, 0, len(records))
	for _, r := range results {
		if r != nil {
			kept = append(kept, *r)
		}
	}
	return kept, nil
}

// judgeGeneration fans out one judge call per candidate and aggregates
// the verdicts that came back. Failed calls are excluded from the vote
// and surface in FailedCount; when no verdict survives, the aggregation
// error propagates and the caller drops the question.
func judgeGeneration(
	ctx context.Context, j ports.Judge, rec domain.GenerationRecord,
) (domain.VerifiedRecord, error) {
	verdicts := make([]*domain.CandidateVerdict, len(rec.Gen.Candidates))

	g, gctx := errgroup.WithContext(ctx)
	for i, c := range rec.Gen.Candidates {
		g.Go(func() error {
			v, err := j.Evaluate(gctx, rec.Question, c)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				// Excluded from the vote; the nil slot becomes FailedCount.
				return nil
			}
			verdicts[i] = &v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return domain.VerifiedRecord{}, err
	}

	kept := make([]domain.CandidateVerdict, 0, len(verdicts))
	for _, v := range verdicts {
		if v != nil {
			kept = append(kept, *v)
		}
	}

	aggregate, err := domain.AggregateVerdicts(kept)
	if err != nil {
		return domain.VerifiedRecord{}, fmt.Errorf("question %s: %w", rec.ID, err)
	}

	return domain.VerifiedRecord{
		GenerationRecord: rec,
		Verify: domain.Verification{
			Aggregate:   aggregate,
			Candidates:  kept,
			FailedCount: len(rec.Gen.Candidates) - len(kept),
		},
	}, nil
}

// writeArtifact creates path and streams one rendered artifact into it.
func writeArtifact(path string, render func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := render(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}

// referenceIndex builds the by-ID question lookup used for scoring.
func referenceIndex(questions []domain.Question) map[string]domain.Question {
	refs := make(map[string]domain.Question, len(questions))
	for _, q := range questions {
		refs[q.ID] = q
	}
	return refs
}
