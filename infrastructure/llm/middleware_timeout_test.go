package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-gvgap/internal/ports"
)

func TestTimeoutMiddleware_SucceedsWithinTimeout(t *testing.T) {
	mock := NewMockCoreLLM()
	mock.ResponseDelay = 10 * time.Millisecond

	wrapped := TimeoutMiddleware(200 * time.Millisecond)(mock)

	resp, err := wrapped.DoRequest(context.Background(), ports.CompletionRequest{Prompt: "test"})

	require.NoError(t, err)
	assert.Equal(t, "test response", resp.Text)
	assert.Equal(t, 1, mock.GetCallCount())
}

func TestTimeoutMiddleware_FailsWhenExceedingTimeout(t *testing.T) {
	mock := NewMockCoreLLM()
	mock.ResponseDelay = 200 * time.Millisecond

	wrapped := TimeoutMiddleware(20 * time.Millisecond)(mock)

	start := time.Now()
	_, err := wrapped.DoRequest(context.Background(), ports.CompletionRequest{Prompt: "test"})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 150*time.Millisecond, "should fail at the deadline, not the response delay")
}

func TestTimeoutMiddleware_RespectsExistingContextTimeout(t *testing.T) {
	mock := NewMockCoreLLM()
	mock.ResponseDelay = 200 * time.Millisecond

	// Middleware timeout is generous; the caller's shorter deadline wins.
	wrapped := TimeoutMiddleware(time.Second)(mock)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := wrapped.DoRequest(ctx, ports.CompletionRequest{Prompt: "test"})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 150*time.Millisecond)
}

func TestTimeoutMiddleware_HandlesImmediateError(t *testing.T) {
	mock := NewMockCoreLLM()
	mock.Error = errors.New("immediate failure")

	wrapped := TimeoutMiddleware(time.Second)(mock)

	_, err := wrapped.DoRequest(context.Background(), ports.CompletionRequest{Prompt: "test"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "immediate failure")
}

func TestTimeoutMiddleware_PassesThroughModelMethods(t *testing.T) {
	mock := NewMockCoreLLM()
	wrapped := TimeoutMiddleware(time.Second)(mock)

	assert.Equal(t, "test-model", wrapped.GetModel())

	wrapped.SetModel("updated-model")
	assert.Equal(t, "updated-model", mock.GetModel())
}

func TestTimeoutMiddleware_PreservesContextValues(t *testing.T) {
	mock := NewMockCoreLLM()
	wrapped := TimeoutMiddleware(time.Second)(mock)

	type ctxKey string
	ctx := context.WithValue(context.Background(), ctxKey("run_id"), "abc123")

	_, err := wrapped.DoRequest(ctx, ports.CompletionRequest{Prompt: "test"})
	require.NoError(t, err)

	require.NotNil(t, mock.LastContext)
	assert.Equal(t, "abc123", mock.LastContext.Value(ctxKey("run_id")))

	_, hasDeadline := mock.LastContext.Deadline()
	assert.True(t, hasDeadline, "wrapped context must carry the timeout deadline")
}

func TestTimeoutMiddleware_MultipleSimultaneousRequests(t *testing.T) {
	mock := NewMockCoreLLM()
	mock.ResponseDelay = 10 * time.Millisecond

	wrapped := TimeoutMiddleware(500 * time.Millisecond)(mock)

	done := make(chan error, 5)
	for i := 0; i < 5; i++ {
		go func() {
			_, err := wrapped.DoRequest(context.Background(), ports.CompletionRequest{Prompt: "concurrent"})
			done <- err
		}()
	}

	for i := 0; i < 5; i++ {
		assert.NoError(t, <-done)
	}
	assert.Equal(t, 5, mock.GetCallCount())
}
