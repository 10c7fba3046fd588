package standardizer

import (
	"context"
	"errors"
	"time"
)

// RetryPolicy retries an operation up to MaxAttempts times. After the n-th
// failed attempt it waits BaseDelay * 2^(n-1).
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration

	// Sleep defaults to a context-aware timer. Tests replace it.
	Sleep func(ctx context.Context, d time.Duration) error
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 5, BaseDelay: time.Second}
}

// Outcome is the result of running an operation under a RetryPolicy: either
// Value with a nil Err, or the last error after Attempts tries.
type Outcome[T any] struct {
	Value    T
	Attempts int
	Err      error
}

func (o Outcome[T]) OK() bool { return o.Err == nil }

func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		return 0
	}
	return p.BaseDelay * time.Duration(1<<(attempt-1))
}

// Run calls op until it succeeds, attempts run out or ctx is done.
// onFailure, when set, is called after each failed attempt with the upcoming delay.
func Run[T any](ctx context.Context, p RetryPolicy, op func(context.Context) (T, error), onFailure func(attempt int, wait time.Duration, err error)) Outcome[T] {
	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	var out Outcome[T]
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		out.Attempts = attempt
		value, err := op(ctx)
		if err == nil {
			out.Value = value
			out.Err = nil
			return out
		}
		out.Err = err

		wait := p.Delay(attempt)
		if onFailure != nil {
			onFailure(attempt, wait, err)
		}
		if sleepErr := sleep(ctx, wait); sleepErr != nil {
			out.Err = errors.Join(err, sleepErr)
			return out
		}
	}
	return out
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
