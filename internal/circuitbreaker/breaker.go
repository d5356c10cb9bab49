package circuitbreaker

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

type State int32

const (
	StateClosed   State = iota // Normal operation
	StateOpen                  // Failing fast, no calls attempted
	StateHalfOpen              // Probing for recovery
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// TargetConfig holds the thresholds for one circuit breaker.
// It is immutable once the breaker is constructed.
type TargetConfig struct {
	// Consecutive failures before the circuit opens.
	FailureThreshold uint32
	// Successes in half-open state required to close the circuit.
	SuccessThreshold uint32
	// Time to wait in open state before probing again.
	ResetTimeout time.Duration
	// Total probes admitted per half-open period.
	HalfOpenMaxCalls uint32
	// Per-call timeout for guarded execution. Zero means no timeout.
	CallTimeout time.Duration
}

// DefaultTargetConfig returns the configuration used for targets that
// were not configured explicitly.
func DefaultTargetConfig() TargetConfig {
	return TargetConfig{
		FailureThreshold: 5,
		SuccessThreshold: 3,
		ResetTimeout:     30 * time.Second,
		HalfOpenMaxCalls: 3,
	}
}

// CircuitBreaker is the per-target state machine. All callers for a target
// share one instance; every method is safe for concurrent use.
//
// Counters are independent atomics mutated without a lock. The state enum
// and the last-failure timestamp are only written together inside the three
// transition methods, which hold a short mutex so a transition is indivisible.
// The threshold decision itself happens outside that critical section, so two
// callers may both execute the same transition; every transition resets its
// counters to the same values, which makes the duplicate harmless.
type CircuitBreaker struct {
	config TargetConfig
	logger *slog.Logger

	mu            sync.Mutex // guards state+lastFailure as a unit during transitions
	state         atomic.Int32
	failureCount  atomic.Uint32
	successCount  atomic.Uint32
	halfOpenCalls atomic.Uint32
	lastFailure   atomic.Int64 // unix nanoseconds, 0 means no failure recorded
}

// NewCircuitBreaker creates a breaker in the closed state.
func NewCircuitBreaker(config TargetConfig, logger *slog.Logger) *CircuitBreaker {
	if logger == nil {
		logger = slog.Default()
	}

	return &CircuitBreaker{
		config: config,
		logger: logger,
	}
}

// ShouldAllow reports whether a call should be admitted. It is not a pure
// predicate: in the open state it may transition the breaker to half-open,
// and in the half-open state it consumes one unit of the probe budget.
// Callers must follow through with RecordSuccess or RecordFailure for every
// admitted call.
func (cb *CircuitBreaker) ShouldAllow() bool {
	switch cb.State() {
	case StateClosed:
		return true

	case StateOpen:
		last := cb.lastFailure.Load()
		if last != 0 && time.Since(time.Unix(0, last)) >= cb.config.ResetTimeout {
			cb.transitionToHalfOpen()
			// This request becomes the first probe.
			cb.halfOpenCalls.Add(1)
			return true
		}
		return false

	case StateHalfOpen:
		// The counter never decrements when a probe completes; the budget
		// limits total probes per half-open period and only resets on a
		// state transition.
		return cb.halfOpenCalls.Add(1)-1 < cb.config.HalfOpenMaxCalls

	default:
		return true
	}
}

// RecordSuccess records a successful call outcome.
func (cb *CircuitBreaker) RecordSuccess() {
	switch cb.State() {
	case StateClosed:
		cb.failureCount.Store(0)

	case StateHalfOpen:
		if cb.successCount.Add(1) >= cb.config.SuccessThreshold {
			cb.transitionToClosed()
		}

	case StateOpen:
		// No call should have been admitted; ignore.
	}
}

// RecordFailure records a failed call outcome. Timeouts count as failures.
func (cb *CircuitBreaker) RecordFailure() {
	switch cb.State() {
	case StateClosed:
		if cb.failureCount.Add(1) >= cb.config.FailureThreshold {
			cb.transitionToOpen()
		}

	case StateHalfOpen:
		// Any failure during probing reopens the circuit immediately.
		cb.transitionToOpen()

	case StateOpen:
		// Manual callers can record failures without an admission check.
		// Refreshing the timestamp extends the open window.
		cb.lastFailure.Store(time.Now().UnixNano())
	}
}

// State returns the current state.
func (cb *CircuitBreaker) State() State {
	return State(cb.state.Load())
}

// FailureCount returns the current consecutive failure count.
func (cb *CircuitBreaker) FailureCount() uint32 {
	return cb.failureCount.Load()
}

// SuccessCount returns the success count accumulated while half-open.
func (cb *CircuitBreaker) SuccessCount() uint32 {
	return cb.successCount.Load()
}

// CallTimeout returns the configured per-call timeout. Zero means none.
func (cb *CircuitBreaker) CallTimeout() time.Duration {
	return cb.config.CallTimeout
}

func (cb *CircuitBreaker) transitionToOpen() {
	cb.mu.Lock()
	cb.state.Store(int32(StateOpen))
	cb.lastFailure.Store(time.Now().UnixNano())
	cb.failureCount.Store(0)
	cb.successCount.Store(0)
	cb.halfOpenCalls.Store(0)
	cb.mu.Unlock()

	cb.logger.Warn("Circuit breaker opened",
		slog.String("state", StateOpen.String()))
}

func (cb *CircuitBreaker) transitionToHalfOpen() {
	cb.mu.Lock()
	cb.state.Store(int32(StateHalfOpen))
	cb.successCount.Store(0)
	cb.halfOpenCalls.Store(0)
	cb.mu.Unlock()

	cb.logger.Info("Circuit breaker transitioned to half-open",
		slog.String("state", StateHalfOpen.String()))
}

func (cb *CircuitBreaker) transitionToClosed() {
	cb.mu.Lock()
	cb.state.Store(int32(StateClosed))
	cb.failureCount.Store(0)
	cb.successCount.Store(0)
	cb.halfOpenCalls.Store(0)
	cb.mu.Unlock()

	cb.logger.Info("Circuit breaker closed",
		slog.String("state", StateClosed.String()))
}
