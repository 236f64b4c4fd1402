// Package resilience provides retry, timeout, and circuit-breaker wrappers
// for the external calls workflow steps make.
package resilience

import (
	"context"
	"log"
	"time"
)

// RetryPolicy configures exponential-backoff retries.
//
// Zero values get defaults, so RetryPolicy{} is the standard policy:
// 3 retries (4 attempts total), 1s initial delay, factor 2. With defaults
// the waits between attempts are 1s, 2s, 4s.
type RetryPolicy struct {
	// MaxRetries is the number of retries after the initial attempt.
	// Defaults to 3. Negative means no retries.
	MaxRetries int

	// Delay is the wait before the first retry. Defaults to 1s.
	Delay time.Duration

	// Factor multiplies the delay after each failed attempt. Defaults
	// to 2.
	Factor float64

	// Logf receives one line per failed attempt, with the attempt index.
	// Defaults to log.Printf.
	Logf func(format string, args ...any)
}

func (p RetryPolicy) maxRetries() int {
	if p.MaxRetries == 0 {
		return 3
	}
	if p.MaxRetries < 0 {
		return 0
	}
	return p.MaxRetries
}

func (p RetryPolicy) delay() time.Duration {
	if p.Delay <= 0 {
		return time.Second
	}
	return p.Delay
}

func (p RetryPolicy) factor() float64 {
	if p.Factor <= 0 {
		return 2
	}
	return p.Factor
}

func (p RetryPolicy) logf(format string, args ...any) {
	if p.Logf != nil {
		p.Logf(format, args...)
		return
	}
	log.Printf(format, args...)
}

// Retry runs op up to 1+MaxRetries times, backing off exponentially
// between failed attempts.
//
// Every error is retried; callers that know an error is permanent should
// not wrap the call in Retry. The error from the final attempt is returned
// unwrapped so errors.Is/As still see the underlying failure. Waits honor
// ctx: cancellation during a backoff returns ctx.Err() immediately.
func Retry[T any](ctx context.Context, policy RetryPolicy, name string, op func(context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	attempts := 1 + policy.maxRetries()
	delay := policy.delay()

	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return zero, ctx.Err()
			}
			delay = time.Duration(float64(delay) * policy.factor())
		}

		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		policy.logf("retry: %s attempt %d/%d failed: %v", name, attempt+1, attempts, err)
	}

	return zero, lastErr
}
