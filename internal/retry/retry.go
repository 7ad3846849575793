// Package retry wraps fallible calls to external services with bounded
// exponential backoff.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Policy is a bounded exponential backoff. The call is attempted once and then
// retried up to MaxRetries times, doubling the delay after each failure.
type Policy struct {
	MaxRetries   int
	InitialDelay time.Duration
	Sleep        SleepFunc
	Logger       *slog.Logger
}

// Default is three retries starting at one second.
func Default() Policy {
	return Policy{MaxRetries: 3, InitialDelay: time.Second}
}

// ContextSleep is the production SleepFunc.
func ContextSleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying. Do returns the wrapped error
// immediately. A nil err stays nil.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Do runs fn under the policy. The last error is returned, wrapped with op,
// once the retry budget is spent. A cancelled context aborts the backoff.
func Do[T any](ctx context.Context, p Policy, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	sleep := p.Sleep
	if sleep == nil {
		sleep = ContextSleep
	}
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	delay := p.InitialDelay

	var zero T
	var lastErr error
	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		var perm *permanentError
		if errors.As(err, &perm) {
			return zero, perm.err
		}
		lastErr = err
		if attempt == p.MaxRetries {
			break
		}
		logger.Warn(
			"Call failed, will retry.",
			"operation", op,
			"attempt", attempt+1,
			"retriesLeft", p.MaxRetries-attempt,
			"backoff", delay.String(),
			"error", err,
		)
		if err := sleep(ctx, delay); err != nil {
			logger.Error("Context cancelled during backoff. Aborting retries.", "operation", op, "error", err)
			return zero, err
		}
		delay *= 2
	}
	return zero, fmt.Errorf("%s failed after %d attempts: %w", op, p.MaxRetries+1, lastErr)
}

// Run is Do for calls that return only an error.
func Run(ctx context.Context, p Policy, op string, fn func(ctx context.Context) error) error {
	_, err := Do(ctx, p, op, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}
