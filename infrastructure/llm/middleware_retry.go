package llm

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/ahrav/go-gvgap/internal/ports"
)

// retryLLM retries transient failures with exponential backoff. Open
// breakers, cancelled contexts, and errors classified non-retryable
// stop the attempts immediately.
type retryLLM struct {
	next       CoreLLM
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

// RetryMiddleware wraps a client with up to maxRetries additional
// attempts. Delays double from baseDelay, carry jitter, and never
// exceed maxDelay.
func RetryMiddleware(maxRetries int, baseDelay, maxDelay time.Duration) Middleware {
	return func(next CoreLLM) CoreLLM {
		return &retryLLM{
			next:       next,
			maxRetries: maxRetries,
			baseDelay:  baseDelay,
			maxDelay:   maxDelay,
		}
	}
}

func (r *retryLLM) DoRequest(ctx context.Context, req ports.CompletionRequest) (ports.Completion, error) {
	attempts := r.maxRetries + 1

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ports.Completion{}, ctx.Err()
			case <-time.After(r.backoffDelay(attempt - 1)):
			}
		}

		resp, err := r.next.DoRequest(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if errors.Is(err, ErrCircuitOpen) || ctx.Err() != nil || !isRetryable(err) {
			break
		}
	}

	return ports.Completion{}, fmt.Errorf("request failed after %d attempts: %w", attempts, lastErr)
}

// isRetryable reports whether another attempt could succeed.
// Classified provider errors carry their own retryability; anything
// unclassified is assumed transient.
func isRetryable(err error) bool {
	var provErr *ProviderError
	if errors.As(err, &provErr) {
		return provErr.IsRetryable()
	}
	return true
}

// backoffDelay returns the wait after the given failed attempt:
// baseDelay doubled per attempt, capped at maxDelay. Delays under the
// cap get a jitter factor in [0.75, 1.25) so workers that failed
// together fan back out.
func (r *retryLLM) backoffDelay(attempt int) time.Duration {
	delay := r.baseDelay
	for i := 0; i < attempt && delay < r.maxDelay; i++ {
		delay *= 2
	}
	if delay >= r.maxDelay {
		return r.maxDelay
	}

	jittered := time.Duration(float64(delay) * (0.75 + rand.Float64()/2))
	if jittered > r.maxDelay {
		return r.maxDelay
	}
	return jittered
}

// GetModel returns the model name from the wrapped implementation.
func (r *retryLLM) GetModel() string { return r.next.GetModel() }

// SetModel updates the model name in the wrapped implementation.
func (r *retryLLM) SetModel(m string) { r.next.SetModel(m) }
