package llm

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/ahrav/go-gvgap/internal/ports"
)

// tracedLLM wraps requests in OpenTelemetry spans so individual
// completions can be followed through retries, rate limiting, and
// provider calls during an evaluation run.
type tracedLLM struct {
	next        CoreLLM
	serviceName string
}

// TracingMiddleware creates middleware that records each request as a
// span named "llm.request" with prompt size, model, and token usage
// attributes.
func TracingMiddleware(serviceName string) Middleware {
	return func(next CoreLLM) CoreLLM {
		return &tracedLLM{
			next:        next,
			serviceName: serviceName,
		}
	}
}

// DoRequest executes the request within a trace span.
func (t *tracedLLM) DoRequest(ctx context.Context, req ports.CompletionRequest) (ports.Completion, error) {
	tracer := otel.Tracer("llm-client")
	ctx, span := tracer.Start(ctx, "llm.request")
	defer span.End()

	span.SetAttributes(
		attribute.String("service.name", t.serviceName),
		attribute.String("llm.model", t.next.GetModel()),
		attribute.Int("llm.prompt.length", len(req.Prompt)),
		attribute.Float64("llm.temperature", req.Temperature),
	)

	resp, err := t.next.DoRequest(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return ports.Completion{}, err
	}

	span.SetAttributes(
		attribute.Int("llm.tokens.input", resp.TokensIn),
		attribute.Int("llm.tokens.output", resp.TokensOut),
	)
	span.SetStatus(codes.Ok, "completion succeeded")
	return resp, nil
}

// GetModel returns the model name from the wrapped implementation.
func (t *tracedLLM) GetModel() string { return t.next.GetModel() }

// SetModel updates the model name in the wrapped implementation.
func (t *tracedLLM) SetModel(m string) { t.next.SetModel(m) }
