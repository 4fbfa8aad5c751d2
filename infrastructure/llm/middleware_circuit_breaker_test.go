package llm

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-gvgap/internal/ports"
)

func TestCircuitBreakerMiddleware_AllowsRequestsWhenClosed(t *testing.T) {
	mock := NewMockCoreLLM()
	wrapped := CircuitBreakerMiddleware(3, 100*time.Millisecond)(mock)

	resp, err := wrapped.DoRequest(context.Background(), ports.CompletionRequest{Prompt: "test"})

	require.NoError(t, err)
	assert.Equal(t, "test response", resp.Text)
	assert.Equal(t, 1, mock.GetCallCount())
}

func TestCircuitBreakerMiddleware_OpensAfterMaxFailures(t *testing.T) {
	mock := NewMockCoreLLM()
	mock.Error = errors.New("service error")
	wrapped := CircuitBreakerMiddleware(2, 100*time.Millisecond)(mock)

	ctx := context.Background()

	_, err1 := wrapped.DoRequest(ctx, ports.CompletionRequest{Prompt: "one"})
	_, err2 := wrapped.DoRequest(ctx, ports.CompletionRequest{Prompt: "two"})

	require.Error(t, err1)
	require.Error(t, err2)
	assert.Equal(t, "service error", err1.Error(), "failures below the threshold return the original error")

	_, err3 := wrapped.DoRequest(ctx, ports.CompletionRequest{Prompt: "three"})

	require.Error(t, err3)
	assert.ErrorIs(t, err3, ErrCircuitOpen)
	assert.Equal(t, 2, mock.GetCallCount(), "open circuit must not call the provider")
}

func TestCircuitBreakerMiddleware_RemainsOpenDuringCooldown(t *testing.T) {
	mock := NewMockCoreLLM()
	mock.Error = errors.New("service error")
	wrapped := CircuitBreakerMiddleware(1, time.Second)(mock)

	ctx := context.Background()

	_, err := wrapped.DoRequest(ctx, ports.CompletionRequest{Prompt: "trip"})
	require.Error(t, err)

	for i := 0; i < 3; i++ {
		_, err = wrapped.DoRequest(ctx, ports.CompletionRequest{Prompt: "rejected"})
		assert.ErrorIs(t, err, ErrCircuitOpen, "attempt %d", i)
	}

	assert.Equal(t, 1, mock.GetCallCount())
}

func TestCircuitBreakerMiddleware_TransitionsToHalfOpenAfterCooldown(t *testing.T) {
	mock := NewMockCoreLLM()
	mock.Error = errors.New("service error")
	wrapped := CircuitBreakerMiddleware(1, 20*time.Millisecond)(mock)

	ctx := context.Background()

	_, err := wrapped.DoRequest(ctx, ports.CompletionRequest{Prompt: "trip"})
	require.Error(t, err)

	time.Sleep(30 * time.Millisecond)

	// The probe goes through; the provider has recovered.
	mock.Error = nil
	resp, err := wrapped.DoRequest(ctx, ports.CompletionRequest{Prompt: "probe"})

	require.NoError(t, err)
	assert.Equal(t, "test response", resp.Text)
	assert.Equal(t, 2, mock.GetCallCount())
}

func TestCircuitBreakerMiddleware_ReopensOnFailureInHalfOpen(t *testing.T) {
	mock := NewMockCoreLLM()
	mock.Error = errors.New("service error")
	wrapped := CircuitBreakerMiddleware(1, 20*time.Millisecond)(mock)

	ctx := context.Background()

	_, err := wrapped.DoRequest(ctx, ports.CompletionRequest{Prompt: "trip"})
	require.Error(t, err)

	time.Sleep(30 * time.Millisecond)

	// The probe fails, reopening the circuit immediately.
	_, err = wrapped.DoRequest(ctx, ports.CompletionRequest{Prompt: "probe"})
	require.Error(t, err)
	assert.Equal(t, "service error", err.Error())

	_, err = wrapped.DoRequest(ctx, ports.CompletionRequest{Prompt: "rejected"})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, 2, mock.GetCallCount())
}

func TestCircuitBreakerMiddleware_ResetsFailureCountOnSuccess(t *testing.T) {
	mock := NewMockCoreLLM()
	wrapped := CircuitBreakerMiddleware(2, 100*time.Millisecond)(mock)

	ctx := context.Background()

	// One failure, then a success, then another failure. The success
	// resets the count, so the circuit stays closed throughout.
	mock.Error = errors.New("blip")
	_, err := wrapped.DoRequest(ctx, ports.CompletionRequest{Prompt: "fail"})
	require.Error(t, err)

	mock.Error = nil
	_, err = wrapped.DoRequest(ctx, ports.CompletionRequest{Prompt: "ok"})
	require.NoError(t, err)

	mock.Error = errors.New("blip")
	_, err = wrapped.DoRequest(ctx, ports.CompletionRequest{Prompt: "fail"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCircuitOpen)

	mock.Error = nil
	_, err = wrapped.DoRequest(ctx, ports.CompletionRequest{Prompt: "ok"})
	assert.NoError(t, err, "circuit should still be closed")
}

func TestCircuitBreakerMiddleware_WithMetrics(t *testing.T) {
	mock := NewMockCoreLLM()
	metrics := newMockCircuitBreakerMetrics()
	wrapped := CircuitBreakerMiddlewareWithMetrics(1, time.Second, metrics)(mock)

	ctx := context.Background()

	_, err := wrapped.DoRequest(ctx, ports.CompletionRequest{Prompt: "ok"})
	require.NoError(t, err)

	mock.Error = errors.New("service error")
	_, err = wrapped.DoRequest(ctx, ports.CompletionRequest{Prompt: "fail"})
	require.Error(t, err)

	_, err = wrapped.DoRequest(ctx, ports.CompletionRequest{Prompt: "rejected"})
	require.ErrorIs(t, err, ErrCircuitOpen)

	assert.Equal(t, 1, metrics.successes)
	assert.Equal(t, 1, metrics.failures)
	assert.Equal(t, 1, metrics.trips)
	assert.Len(t, metrics.states, 3, "state recorded after every call")
}

func TestCircuitBreakerMiddleware_PassesThroughModelMethods(t *testing.T) {
	mock := NewMockCoreLLM()
	wrapped := CircuitBreakerMiddleware(3, time.Second)(mock)

	assert.Equal(t, "test-model", wrapped.GetModel())

	wrapped.SetModel("updated-model")
	assert.Equal(t, "updated-model", mock.GetModel())
}

func TestCircuitBreakerMiddleware_ConcurrentRequests(t *testing.T) {
	mock := NewMockCoreLLM()
	wrapped := CircuitBreakerMiddleware(5, time.Second)(mock)

	var wg sync.WaitGroup
	errs := make([]error, 20)

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			_, errs[idx] = wrapped.DoRequest(context.Background(), ports.CompletionRequest{Prompt: "concurrent"})
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		assert.NoError(t, err, "request %d", i)
	}
	assert.Equal(t, 20, mock.GetCallCount())
}

func TestCircuitBreaker_GetState(t *testing.T) {
	cb := NewCircuitBreaker(1, time.Second)
	assert.Equal(t, StateClosed, cb.GetState())

	err := cb.Call(func() error { return errors.New("fail") })
	require.Error(t, err)
	assert.Equal(t, StateOpen, cb.GetState())
}

func TestCircuitBreaker_HalfOpenAllowsSingleProbe(t *testing.T) {
	cb := NewCircuitBreaker(1, 10*time.Millisecond)

	require.Error(t, cb.Call(func() error { return errors.New("fail") }))
	time.Sleep(15 * time.Millisecond)

	// Start a slow probe, then verify a second caller is rejected while
	// the probe is in flight.
	probeStarted := make(chan struct{})
	probeRelease := make(chan struct{})
	probeDone := make(chan error, 1)

	go func() {
		probeDone <- cb.Call(func() error {
			close(probeStarted)
			<-probeRelease
			return nil
		})
	}()

	<-probeStarted
	err := cb.Call(func() error { return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen, "only one probe may run in half-open")

	close(probeRelease)
	require.NoError(t, <-probeDone)
	assert.Equal(t, StateClosed, cb.GetState())
}
