// Package middleware provides cross-cutting concerns for the analysis pipeline.
package middleware

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/go-gvgap/internal/ports"
)

var _ BudgetObserver = (*OTelBudgetObserver)(nil)

// OTelBudgetObserver implements observability for budget checks using
// OpenTelemetry tracing. It creates spans to track budget consumption,
// sets usage attributes, and records events for threshold warnings and
// exhaustion. The span started by PreCheck rides the returned context, so
// concurrent requests never share observer state.
type OTelBudgetObserver struct {
	metrics ports.MetricsCollector
	stage   string
}

// NewOTelBudgetObserver creates an OpenTelemetry budget observer reporting
// on behalf of the named pipeline stage.
func NewOTelBudgetObserver(metrics ports.MetricsCollector, stage string) *OTelBudgetObserver {
	return &OTelBudgetObserver{
		metrics: metrics,
		stage:   stage,
	}
}

// PreCheck implements the BudgetObserver interface. It starts a span
// carrying the current budget state and threshold warnings, and returns
// the context holding it.
func (o *OTelBudgetObserver) PreCheck(ctx context.Context, usage Usage, budget Budget) context.Context {
	tracer := otel.Tracer("usage-guard")
	ctx, span := tracer.Start(ctx, "UsageGuard.Complete")

	o.addSpanAttributes(span, usage, budget)
	o.checkThresholds(span, usage, budget)

	return ctx
}

// PostCheck implements the BudgetObserver interface. It finalizes the span
// from the context, records metrics, and handles any error conditions.
func (o *OTelBudgetObserver) PostCheck(
	ctx context.Context,
	usage Usage,
	budget Budget,
	elapsed time.Duration,
	err error,
) {
	span := trace.SpanFromContext(ctx)
	defer span.End()

	o.addSpanAttributes(span, usage, budget)

	if o.metrics != nil {
		o.metrics.RecordLatency("usage_guard_complete", elapsed,
			map[string]string{"stage": o.stage})
	}

	if err != nil {
		var budgetErr *BudgetExceededError
		if errors.As(err, &budgetErr) {
			span.AddEvent("budget.exceeded", trace.WithAttributes(
				attribute.String("limit_type", budgetErr.LimitType),
				attribute.Int64("limit_value", budgetErr.Limit),
				attribute.Int64("used_value", budgetErr.Used),
			))
			span.SetStatus(codes.Error, "budget limit exceeded")

			if o.metrics != nil {
				o.metrics.RecordCounter("budget_exceeded_total", 1, map[string]string{
					"stage":  o.stage,
					"status": budgetErr.LimitType,
				})
			}
		} else {
			span.SetStatus(codes.Error, err.Error())
		}
		return
	}

	span.AddEvent("budget.usage_tracked", trace.WithAttributes(
		attribute.Int64("tokens_consumed", usage.Tokens),
		attribute.Int64("calls_made", usage.Calls),
	))

	o.updateMetrics(usage, budget)
	span.SetStatus(codes.Ok, "request within budget")
}

// addSpanAttributes sets span attributes for budget tracking, including
// current usage, remaining budget, and configuration info.
func (o *OTelBudgetObserver) addSpanAttributes(span trace.Span, usage Usage, budget Budget) {
	span.SetAttributes(
		attribute.String("budget.stage", o.stage),
		attribute.Int64("budget.tokens_used", usage.Tokens),
		attribute.Int64("budget.calls_made", usage.Calls),
	)

	if budget.MaxTokens > 0 {
		span.SetAttributes(
			attribute.Int64("budget.max_tokens", budget.MaxTokens),
			attribute.Int64("budget.remaining_tokens", budget.MaxTokens-usage.Tokens),
		)
	}

	if budget.MaxCalls > 0 {
		span.SetAttributes(
			attribute.Int64("budget.max_calls", budget.MaxCalls),
			attribute.Int64("budget.remaining_calls", budget.MaxCalls-usage.Calls),
		)
	}
}

// checkThresholds examines usage against warning thresholds and generates
// span events so consumption trouble surfaces before the hard cap.
func (o *OTelBudgetObserver) checkThresholds(span trace.Span, usage Usage, budget Budget) {
	const warningThreshold = 0.8
	const criticalThreshold = 0.9

	resources := []struct {
		name string
		used int64
		max  int64
	}{
		{"tokens", usage.Tokens, budget.MaxTokens},
		{"calls", usage.Calls, budget.MaxCalls},
	}

	for _, r := range resources {
		if r.max <= 0 {
			continue
		}

		usagePercentage := float64(r.used) / float64(r.max)
		switch {
		case usagePercentage >= criticalThreshold:
			span.AddEvent("budget.threshold.critical", trace.WithAttributes(
				attribute.String("resource_type", r.name),
				attribute.Float64("usage_percentage", usagePercentage*100),
			))
		case usagePercentage >= warningThreshold:
			span.AddEvent("budget.threshold.warning", trace.WithAttributes(
				attribute.String("resource_type", r.name),
				attribute.Float64("usage_percentage", usagePercentage*100),
			))
		}
	}
}

// updateMetrics sends current budget consumption to the metrics collector.
func (o *OTelBudgetObserver) updateMetrics(usage Usage, budget Budget) {
	if o.metrics == nil {
		return
	}

	labels := map[string]string{"stage": o.stage}
	o.metrics.RecordGauge("budget_tokens_used", float64(usage.Tokens), labels)
	o.metrics.RecordGauge("budget_calls_used", float64(usage.Calls), labels)

	if budget.MaxTokens > 0 {
		remaining := budget.MaxTokens - usage.Tokens
		o.metrics.RecordGauge("budget_remaining_tokens", float64(remaining), labels)
	}

	if budget.MaxCalls > 0 {
		remaining := budget.MaxCalls - usage.Calls
		o.metrics.RecordGauge("budget_remaining_calls", float64(remaining), labels)
	}
}
