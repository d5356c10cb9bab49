package circuitbreaker

import (
	"context"
	"errors"
)

type result[T any] struct {
	value T
	err   error
}

// Do executes op through the breaker protocol: check admission, race the
// operation against the configured call timeout if one is set, and record
// the outcome.
//
// When the breaker rejects the call, op is never invoked and a circuit-open
// error is returned. When the timeout elapses first, a failure is recorded
// and the still-running operation's outcome is discarded; op receives a
// context with a deadline so it can stop its own work, but cleanup is the
// operation's responsibility.
func Do[T any](ctx context.Context, cb *CircuitBreaker, target string, op func(context.Context) (T, error)) (T, error) {
	var zero T

	if !cb.ShouldAllow() {
		return zero, NewCircuitOpen(target)
	}

	timeout := cb.CallTimeout()
	if timeout <= 0 {
		value, err := op(ctx)
		if err != nil {
			cb.RecordFailure()
			return zero, NewCallFailed(err)
		}
		cb.RecordSuccess()
		return value, nil
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resultCh := make(chan result[T], 1)
	go func() {
		value, err := op(callCtx)
		resultCh <- result[T]{value: value, err: err}
	}()

	select {
	case res := <-resultCh:
		if res.err != nil {
			cb.RecordFailure()
			return zero, NewCallFailed(res.err)
		}
		cb.RecordSuccess()
		return res.value, nil

	case <-callCtx.Done():
		cb.RecordFailure()
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return zero, NewTimeout(timeout)
		}
		// The parent context was canceled before the timer fired.
		return zero, NewCallFailed(callCtx.Err())
	}
}

// Exec is Do for operations that produce no value.
func Exec(ctx context.Context, cb *CircuitBreaker, target string, op func(context.Context) error) error {
	_, err := Do(ctx, cb, target, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}
