package llm

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/ahrav/go-gvgap/internal/ports"
)

// RateLimitMiddleware paces requests with a token bucket so concurrent
// sampling and judging stay under provider rate limits. The limit
// parameter sets sustained requests per second; burst allows short
// spikes above it. Callers block in DoRequest until a token frees up.
func RateLimitMiddleware(limit rate.Limit, burst int) Middleware {
	limiter := rate.NewLimiter(limit, burst)
	return func(next CoreLLM) CoreLLM {
		return &rateLimitedLLM{next: next, limiter: limiter}
	}
}

type rateLimitedLLM struct {
	next    CoreLLM
	limiter *rate.Limiter
}

func (r *rateLimitedLLM) DoRequest(ctx context.Context, req ports.CompletionRequest) (ports.Completion, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return ports.Completion{}, fmt.Errorf("rate limit: %w", err)
	}
	return r.next.DoRequest(ctx, req)
}

func (r *rateLimitedLLM) GetModel() string { return r.next.GetModel() }

func (r *rateLimitedLLM) SetModel(m string) { r.next.SetModel(m) }
