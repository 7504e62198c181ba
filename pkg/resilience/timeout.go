package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// TimeoutError reports an operation, typically one feed source fetch, that
// ran past its limit.
type TimeoutError struct {
	Op    string
	Limit time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: timed out after %v", e.Op, e.Limit)
}

func (e *TimeoutError) Unwrap() error { return context.DeadlineExceeded }

// IsTimeout reports whether err came from a WithTimeout deadline.
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}

// WithTimeout runs fn under a deadline of limit; limit <= 0 means no
// deadline. fn must honour its context. An error caused by the deadline is
// returned as a *TimeoutError naming op, while cancellation of the parent
// ctx is passed through unchanged so callers can tell shutdown from a slow
// source.
func WithTimeout(ctx context.Context, limit time.Duration, op string, fn func(ctx context.Context) error) error {
	if limit <= 0 {
		return fn(ctx)
	}
	fetchCtx, cancel := context.WithTimeout(ctx, limit)
	defer cancel()

	err := fn(fetchCtx)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return fmt.Errorf("%s: %w", op, ctx.Err())
	}
	if errors.Is(fetchCtx.Err(), context.DeadlineExceeded) {
		return &TimeoutError{Op: op, Limit: limit}
	}
	return err
}
