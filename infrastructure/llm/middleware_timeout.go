package llm

import (
	"context"
	"time"

	"github.com/ahrav/go-gvgap/internal/ports"
)

// TimeoutMiddleware bounds each request with its own deadline, layered
// on whatever deadline the caller's context already carries. A slow
// provider then fails with context.DeadlineExceeded instead of stalling
// the whole run.
func TimeoutMiddleware(timeout time.Duration) Middleware {
	return func(next CoreLLM) CoreLLM {
		return &timeoutLLM{next: next, timeout: timeout}
	}
}

type timeoutLLM struct {
	next    CoreLLM
	timeout time.Duration
}

func (t *timeoutLLM) DoRequest(ctx context.Context, req ports.CompletionRequest) (ports.Completion, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.DoRequest(ctx, req)
}

func (t *timeoutLLM) GetModel() string { return t.next.GetModel() }

func (t *timeoutLLM) SetModel(m string) { t.next.SetModel(m) }
