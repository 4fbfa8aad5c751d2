package llm

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ahrav/go-gvgap/internal/ports"
)

// ErrCircuitOpen indicates that the circuit breaker rejected a request
// without forwarding it to the downstream provider.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreakerState represents the current state of a circuit breaker.
type CircuitBreakerState int

const (
	// StateClosed passes requests through and counts consecutive failures.
	StateClosed CircuitBreakerState = iota

	// StateOpen rejects requests outright. The circuit lands here after
	// the failure threshold is crossed and stays until the cooldown
	// expires.
	StateOpen

	// StateHalfOpen admits a single probe request to test whether the
	// provider has recovered.
	StateHalfOpen
)

// CircuitBreakerMetrics receives circuit breaker observations. A sink
// can forward them to whatever backend tracks trip and recovery
// patterns across a run.
type CircuitBreakerMetrics interface {
	// RecordState reports the state observed after a call completes.
	RecordState(state CircuitBreakerState)

	// RecordTrip counts a request rejected by an open circuit.
	RecordTrip()

	// RecordSuccess counts a request the provider answered.
	RecordSuccess()

	// RecordFailure counts a request the provider failed.
	RecordFailure()
}

// CircuitBreaker tracks consecutive failures and opens when they exceed
// the threshold, then tests recovery through a half-open probe. The lock
// guards state transitions only; requests execute outside it so
// concurrent callers are not serialized.
type CircuitBreaker struct {
	mu               sync.Mutex
	state            CircuitBreakerState
	failureCount     int
	maxFailures      int
	cooldownDuration time.Duration
	lastFailure      time.Time
	probeInFlight    bool
}

// NewCircuitBreaker creates a circuit breaker that opens after
// maxFailures consecutive errors and stays open for cooldownDuration
// before testing recovery.
func NewCircuitBreaker(maxFailures int, cooldownDuration time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		state:            StateClosed,
		maxFailures:      maxFailures,
		cooldownDuration: cooldownDuration,
	}
}

// Call executes fn through the circuit breaker. If the circuit is open
// it returns ErrCircuitOpen immediately; otherwise the result of fn
// updates the circuit state.
func (cb *CircuitBreaker) Call(fn func() error) error {
	if err := cb.allow(); err != nil {
		return err
	}
	err := fn()
	cb.record(err)
	return err
}

// allow decides whether a request may proceed, transitioning from open
// to half-open once the cooldown has elapsed. In half-open only one
// probe may be in flight at a time.
func (cb *CircuitBreaker) allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		if time.Since(cb.lastFailure) < cb.cooldownDuration {
			return ErrCircuitOpen
		}
		cb.state = StateHalfOpen
		cb.probeInFlight = true
		return nil
	case StateHalfOpen:
		if cb.probeInFlight {
			return ErrCircuitOpen
		}
		cb.probeInFlight = true
		return nil
	default:
		return nil
	}
}

// record folds a request outcome into the circuit state. A half-open
// failure reopens the circuit immediately; any success closes it and
// resets the failure count.
func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.probeInFlight = false
	if err != nil {
		cb.failureCount++
		cb.lastFailure = time.Now()
		if cb.state == StateHalfOpen || cb.failureCount >= cb.maxFailures {
			cb.state = StateOpen
		}
		return
	}
	cb.failureCount = 0
	cb.state = StateClosed
}

// GetState returns the current circuit breaker state. Useful for
// monitoring and debugging in operational environments.
func (cb *CircuitBreaker) GetState() CircuitBreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// circuitBreakedLLM wraps a CoreLLM with a shared circuit breaker so
// repeated provider failures fail fast instead of piling up timeouts.
type circuitBreakedLLM struct {
	next    CoreLLM
	cb      *CircuitBreaker
	metrics CircuitBreakerMetrics
}

// CircuitBreakerMiddleware creates middleware that opens the circuit
// after maxFailures consecutive errors and keeps it open for the
// cooldown duration before attempting recovery.
func CircuitBreakerMiddleware(maxFailures int, cooldown time.Duration) Middleware {
	return CircuitBreakerMiddlewareWithMetrics(maxFailures, cooldown, nil)
}

// CircuitBreakerMiddlewareWithMetrics creates circuit breaker middleware
// that reports state changes and outcomes to the given metrics sink.
func CircuitBreakerMiddlewareWithMetrics(maxFailures int, cooldown time.Duration, metrics CircuitBreakerMetrics) Middleware {
	cb := NewCircuitBreaker(maxFailures, cooldown)

	return func(next CoreLLM) CoreLLM {
		return &circuitBreakedLLM{
			next:    next,
			cb:      cb,
			metrics: metrics,
		}
	}
}

// DoRequest executes the request through the circuit breaker. When the
// circuit is open this fails immediately without calling the provider.
func (c *circuitBreakedLLM) DoRequest(ctx context.Context, req ports.CompletionRequest) (ports.Completion, error) {
	var resp ports.Completion

	err := c.cb.Call(func() error {
		var err error
		resp, err = c.next.DoRequest(ctx, req)
		return err
	})

	if c.metrics != nil {
		switch {
		case err == nil:
			c.metrics.RecordSuccess()
		case errors.Is(err, ErrCircuitOpen):
			c.metrics.RecordTrip()
		default:
			c.metrics.RecordFailure()
		}
		c.metrics.RecordState(c.cb.GetState())
	}

	if err != nil {
		return ports.Completion{}, err
	}
	return resp, nil
}

// GetModel returns the model name from the wrapped implementation.
func (c *circuitBreakedLLM) GetModel() string { return c.next.GetModel() }

// SetModel updates the model name in the wrapped implementation.
func (c *circuitBreakedLLM) SetModel(m string) { c.next.SetModel(m) }
