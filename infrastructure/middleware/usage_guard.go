// Package middleware provides cross-cutting concerns for the analysis pipeline.
// It implements the middleware/wrapper pattern to keep stage logic clean while
// adding budget enforcement and resilience capabilities around LLM access.
package middleware

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ahrav/go-gvgap/internal/ports"
)

// Budget defines resource consumption limits for a pipeline run.
// It specifies maximum allowed tokens and API calls to prevent runaway costs
// when a run fans out over many questions and candidates.
type Budget struct {
	// MaxTokens limits the total number of tokens that can be consumed.
	// Zero means unlimited token usage.
	MaxTokens int64

	// MaxCalls limits the total number of API calls that can be made.
	// Zero means unlimited API calls.
	MaxCalls int64
}

// Usage is a point-in-time snapshot of consumed resources.
type Usage struct {
	// Tokens is the total token count, prompt and completion combined.
	Tokens int64

	// Calls is the number of completion requests attempted.
	Calls int64
}

// BudgetObserver provides observability hooks for budget checks.
// Implementations can add tracing, metrics, and logging without coupling
// observability concerns to the accounting logic. PreCheck returns a
// context so implementations can attach per-request state, such as a
// span, that PostCheck later completes; the guard threads the returned
// context through the request.
type BudgetObserver interface {
	// PreCheck is called before the request is forwarded, or before a
	// refusal is returned when the budget is already exhausted.
	PreCheck(ctx context.Context, usage Usage, budget Budget) context.Context

	// PostCheck is called after the request completes with updated usage,
	// timing, and the request outcome.
	PostCheck(ctx context.Context, usage Usage, budget Budget, elapsed time.Duration, err error)
}

// BudgetExceededError reports which budget limit was exhausted.
type BudgetExceededError struct {
	// LimitType names the exhausted resource, "tokens" or "calls".
	LimitType string

	// Limit is the configured maximum for the resource.
	Limit int64

	// Used is the consumption observed when the request was refused.
	Used int64
}

// Error implements the error interface for BudgetExceededError.
func (e *BudgetExceededError) Error() string {
	return fmt.Sprintf("budget exceeded: %s limit=%d used=%d", e.LimitType, e.Limit, e.Used)
}

// UsageGuard enforces token and API call limits around a CompletionClient.
// It accounts usage across all requests made through it, so one guard
// instance represents one run-level budget shared by every worker in a
// stage.
//
// Enforcement is advisory under concurrency: requests already in flight
// when the cap is reached still return their completions, and the check
// happens before each request, so usage can overshoot the cap by up to
// the stage's concurrency level. The next request after exhaustion is
// refused with a BudgetExceededError.
type UsageGuard struct {
	client   ports.CompletionClient
	budget   Budget
	observer BudgetObserver

	tokens atomic.Int64
	calls  atomic.Int64
}

// Compile-time verification that UsageGuard implements CompletionClient.
var _ ports.CompletionClient = (*UsageGuard)(nil)

// NewUsageGuard creates a UsageGuard wrapping client with the given budget
// limits and optional observer.
func NewUsageGuard(client ports.CompletionClient, budget Budget, observer BudgetObserver) (*UsageGuard, error) {
	if client == nil {
		return nil, errors.New("usage guard: client is required")
	}
	if budget.MaxTokens < 0 {
		return nil, fmt.Errorf("usage guard: max_tokens cannot be negative, got %d", budget.MaxTokens)
	}
	if budget.MaxCalls < 0 {
		return nil, fmt.Errorf("usage guard: max_calls cannot be negative, got %d", budget.MaxCalls)
	}

	return &UsageGuard{
		client:   client,
		budget:   budget,
		observer: observer,
	}, nil
}

// Complete refuses the request when the budget is already exhausted,
// otherwise forwards it and accounts the reported token usage. Calls are
// counted whether or not the request succeeds; tokens only when the
// provider reported usage for a successful completion.
func (g *UsageGuard) Complete(ctx context.Context, req ports.CompletionRequest) (ports.Completion, error) {
	usage := g.Usage()
	if err := g.checkLimits(usage); err != nil {
		if g.observer != nil {
			ctx = g.observer.PreCheck(ctx, usage, g.budget)
			g.observer.PostCheck(ctx, usage, g.budget, 0, err)
		}
		return ports.Completion{}, err
	}

	if g.observer != nil {
		ctx = g.observer.PreCheck(ctx, usage, g.budget)
	}

	start := time.Now()
	resp, err := g.client.Complete(ctx, req)
	elapsed := time.Since(start)

	g.calls.Add(1)
	if err == nil {
		g.tokens.Add(int64(resp.TokensIn) + int64(resp.TokensOut))
	}

	if g.observer != nil {
		g.observer.PostCheck(ctx, g.Usage(), g.budget, elapsed, err)
	}

	return resp, err
}

// EstimateTokens delegates to the wrapped client. Estimation does not
// consume budget.
func (g *UsageGuard) EstimateTokens(text string) (int, error) {
	return g.client.EstimateTokens(text)
}

// GetModel returns the model identifier of the wrapped client.
func (g *UsageGuard) GetModel() string { return g.client.GetModel() }

// Usage returns a snapshot of consumption so far. Stage reports include
// it in run summaries.
func (g *UsageGuard) Usage() Usage {
	return Usage{
		Tokens: g.tokens.Load(),
		Calls:  g.calls.Load(),
	}
}

// checkLimits verifies that current usage leaves room for another request.
// The budget counts as exhausted once usage reaches a configured cap.
func (g *UsageGuard) checkLimits(usage Usage) error {
	if g.budget.MaxTokens > 0 && usage.Tokens >= g.budget.MaxTokens {
		return &BudgetExceededError{
			LimitType: "tokens",
			Limit:     g.budget.MaxTokens,
			Used:      usage.Tokens,
		}
	}

	if g.budget.MaxCalls > 0 && usage.Calls >= g.budget.MaxCalls {
		return &BudgetExceededError{
			LimitType: "calls",
			Limit:     g.budget.MaxCalls,
			Used:      usage.Calls,
		}
	}

	return nil
}
