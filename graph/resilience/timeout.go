package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrTimeout is the sentinel wrapped by every timeout failure, so callers
// can distinguish a deadline from an operation error with errors.Is.
var ErrTimeout = errors.New("operation timed out")

// TimeoutError reports an operation that exceeded its limit.
type TimeoutError struct {
	Op    string
	Limit time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %s", e.Op, e.Limit)
}

// Unwrap makes errors.Is(err, ErrTimeout) true.
func (e *TimeoutError) Unwrap() error { return ErrTimeout }

// WithTimeout races op against the limit.
//
// If the limit expires first, the optional onTimeout callback runs and a
// TimeoutError is returned. The underlying operation is ABANDONED, not
// cancelled: its goroutine keeps running until op itself returns, and its
// eventual result is discarded. Operations with side effects may therefore
// still complete after the timeout fires; callers needing hard cancellation
// must make op honor its context.
//
// ctx cancellation is also honored while waiting and returns ctx.Err().
func WithTimeout[T any](ctx context.Context, limit time.Duration, name string, op func(context.Context) (T, error), onTimeout func()) (T, error) {
	var zero T

	type outcome struct {
		result T
		err    error
	}
	// Buffered so the abandoned goroutine can always deliver and exit.
	done := make(chan outcome, 1)

	go func() {
		result, err := op(ctx)
		done <- outcome{result: result, err: err}
	}()

	timer := time.NewTimer(limit)
	defer timer.Stop()

	select {
	case out := <-done:
		return out.result, out.err
	case <-timer.C:
		if onTimeout != nil {
			onTimeout()
		}
		return zero, &TimeoutError{Op: name, Limit: limit}
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
