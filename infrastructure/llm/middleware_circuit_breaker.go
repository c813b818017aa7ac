package llm

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned when the breaker rejects a request without
// reaching the vendor.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitState is the breaker's position.
type CircuitState int

const (
	// CircuitClosed passes requests through normally.
	CircuitClosed CircuitState = iota

	// CircuitOpen rejects requests immediately after repeated failures.
	CircuitOpen

	// CircuitHalfOpen lets a single probe through after the cooldown to
	// test whether the vendor has recovered.
	CircuitHalfOpen
)

// CircuitBreaker trips open after maxFailures consecutive errors and
// probes recovery after the cooldown elapses.
type CircuitBreaker struct {
	mu           sync.Mutex
	state        CircuitState
	failureCount int
	maxFailures  int
	cooldown     time.Duration
	lastFailure  time.Time
}

// NewCircuitBreaker builds a closed breaker.
func NewCircuitBreaker(maxFailures int, cooldown time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		state:       CircuitClosed,
		maxFailures: maxFailures,
		cooldown:    cooldown,
	}
}

// Call runs fn through the breaker, returning ErrCircuitOpen without
// invoking fn while the circuit is open.
func (cb *CircuitBreaker) Call(fn func() error) error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitOpen:
		if time.Since(cb.lastFailure) < cb.cooldown {
			return ErrCircuitOpen
		}
		cb.state = CircuitHalfOpen
		fallthrough
	case CircuitHalfOpen:
		err := fn()
		if err != nil {
			cb.failureCount++
			cb.lastFailure = time.Now()
			cb.state = CircuitOpen
			return err
		}
		cb.failureCount = 0
		cb.state = CircuitClosed
		return nil
	default: // CircuitClosed
		err := fn()
		if err != nil {
			cb.failureCount++
			cb.lastFailure = time.Now()
			if cb.failureCount >= cb.maxFailures {
				cb.state = CircuitOpen
			}
			return err
		}
		cb.failureCount = 0
		return nil
	}
}

// State returns the breaker's current position.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

type circuitBreakerForecaster struct {
	next CoreForecaster
	cb   *CircuitBreaker
}

// CircuitBreakerMiddleware fails fast once a vendor has produced
// maxFailures consecutive errors, giving it cooldown to recover before a
// probe request is allowed through.
func CircuitBreakerMiddleware(maxFailures int, cooldown time.Duration) Middleware {
	cb := NewCircuitBreaker(maxFailures, cooldown)
	return func(next CoreForecaster) CoreForecaster {
		return &circuitBreakerForecaster{next: next, cb: cb}
	}
}

func (c *circuitBreakerForecaster) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	var response string
	var tokensIn, tokensOut int

	err := c.cb.Call(func() error {
		var err error
		response, tokensIn, tokensOut, err = c.next.DoRequest(ctx, prompt, opts)
		return err
	})
	return response, tokensIn, tokensOut, err
}

func (c *circuitBreakerForecaster) GetModel() string  { return c.next.GetModel() }
func (c *circuitBreakerForecaster) SetModel(m string) { c.next.SetModel(m) }
