package resilience

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrCircuitOpen is returned when a circuit rejects a request and no
// fallback is available.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitState is the state of a single circuit.
type CircuitState string

const (
	// CircuitClosed passes requests through and counts failures.
	CircuitClosed CircuitState = "closed"
	// CircuitOpen rejects requests until the reset timeout elapses.
	CircuitOpen CircuitState = "open"
	// CircuitHalfOpen lets a single trial request through; its success
	// closes the circuit, its failure reopens it.
	CircuitHalfOpen CircuitState = "half_open"
)

type circuit struct {
	state    CircuitState
	failures int
	openedAt time.Time

	// trialInFlight gates half-open to one admitted request at a time.
	// Set when AllowRequest admits the trial, cleared by RecordSuccess
	// or RecordFailure.
	trialInFlight bool
}

// Registry owns circuit breaker state keyed by circuit id.
//
// State lives in the registry, not in the wrapped call sites, so every
// caller sharing a circuit id also shares its failure history. Inject one
// registry per backing service domain; an engine-wide singleton couples
// unrelated dependencies to each other's outages.
//
// All transitions happen under the registry mutex.
type Registry struct {
	mu       sync.Mutex
	circuits map[string]*circuit

	failureThreshold int
	resetTimeout     time.Duration

	// onTransition, when set, observes every state change. Used to feed
	// metrics.
	onTransition func(circuitID string, to CircuitState)

	// now is replaceable in tests.
	now func() time.Time
}

// NewRegistry creates a circuit breaker registry.
//
// failureThreshold consecutive failures open a circuit (default 5);
// resetTimeout is how long an open circuit waits before allowing a
// half-open trial (default 60s). Zero values get the defaults.
func NewRegistry(failureThreshold int, resetTimeout time.Duration) *Registry {
	if failureThreshold <= 0 {
		failureThreshold = 5
	}
	if resetTimeout <= 0 {
		resetTimeout = 60 * time.Second
	}
	return &Registry{
		circuits:         make(map[string]*circuit),
		failureThreshold: failureThreshold,
		resetTimeout:     resetTimeout,
		now:              time.Now,
	}
}

// OnTransition registers an observer for state changes. Call before the
// registry is shared across goroutines.
func (r *Registry) OnTransition(fn func(circuitID string, to CircuitState)) {
	r.onTransition = fn
}

func (r *Registry) get(circuitID string) *circuit {
	c, ok := r.circuits[circuitID]
	if !ok {
		c = &circuit{state: CircuitClosed}
		r.circuits[circuitID] = c
	}
	return c
}

func (r *Registry) transition(circuitID string, c *circuit, to CircuitState) {
	c.state = to
	if r.onTransition != nil {
		r.onTransition(circuitID, to)
	}
}

// AllowRequest reports whether a request may proceed on the circuit.
//
// An open circuit whose reset timeout has elapsed moves to half-open and
// allows the request as the trial. A half-open circuit admits exactly one
// request at a time; further callers are rejected until the trial resolves
// via RecordSuccess or RecordFailure.
func (r *Registry) AllowRequest(circuitID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := r.get(circuitID)
	switch c.state {
	case CircuitClosed:
		return true
	case CircuitHalfOpen:
		if c.trialInFlight {
			return false
		}
		c.trialInFlight = true
		return true
	case CircuitOpen:
		if r.now().Sub(c.openedAt) >= r.resetTimeout {
			r.transition(circuitID, c, CircuitHalfOpen)
			c.trialInFlight = true
			return true
		}
		return false
	}
	return false
}

// RecordSuccess reports a successful request. A half-open circuit closes;
// a closed circuit resets its failure count.
func (r *Registry) RecordSuccess(circuitID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := r.get(circuitID)
	if c.state == CircuitHalfOpen {
		r.transition(circuitID, c, CircuitClosed)
	}
	c.trialInFlight = false
	c.failures = 0
}

// RecordFailure reports a failed request. A half-open circuit reopens
// immediately; a closed circuit opens once the threshold is reached.
func (r *Registry) RecordFailure(circuitID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := r.get(circuitID)
	c.trialInFlight = false
	switch c.state {
	case CircuitHalfOpen:
		c.openedAt = r.now()
		r.transition(circuitID, c, CircuitOpen)
	case CircuitClosed:
		c.failures++
		if c.failures >= r.failureThreshold {
			c.openedAt = r.now()
			r.transition(circuitID, c, CircuitOpen)
		}
	}
}

// State returns the circuit's current state without side effects.
// A circuit never touched before reports CircuitClosed.
func (r *Registry) State(circuitID string) CircuitState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.get(circuitID).state
}

// WithBreaker runs op guarded by the named circuit.
//
// When the circuit rejects the request, the fallback (if any) runs instead;
// without a fallback the call fails with ErrCircuitOpen wrapped with the
// circuit id. Successes and failures of op feed the circuit's state.
func WithBreaker[T any](ctx context.Context, reg *Registry, circuitID string, op func(context.Context) (T, error), fallback func(context.Context) (T, error)) (T, error) {
	var zero T

	if !reg.AllowRequest(circuitID) {
		if fallback != nil {
			return fallback(ctx)
		}
		return zero, fmt.Errorf("circuit %q: %w", circuitID, ErrCircuitOpen)
	}

	result, err := op(ctx)
	if err != nil {
		reg.RecordFailure(circuitID)
		return zero, err
	}

	reg.RecordSuccess(circuitID)
	return result, nil
}
