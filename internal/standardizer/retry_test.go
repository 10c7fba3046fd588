package standardizer

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRunStopsOnSuccess(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 5, BaseDelay: time.Second, Sleep: func(context.Context, time.Duration) error { return nil }}
	calls := 0
	out := Run(context.Background(), p, func(context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, errors.New("flaky")
		}
		return 42, nil
	}, nil)

	if !out.OK() || out.Value != 42 || out.Attempts != 3 {
		t.Fatalf("outcome=%+v", out)
	}
}

func TestRunCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cause := errors.New("down")
	p := RetryPolicy{MaxAttempts: 5, BaseDelay: time.Hour}
	out := Run(ctx, p, func(context.Context) (string, error) { return "", cause }, nil)

	if out.Attempts != 1 {
		t.Fatalf("attempts=%d", out.Attempts)
	}
	if !errors.Is(out.Err, cause) || !errors.Is(out.Err, context.Canceled) {
		t.Fatalf("err=%v", out.Err)
	}
}

func TestRetryDelay(t *testing.T) {
	p := DefaultRetryPolicy()
	for attempt, want := range map[int]time.Duration{0: 0, 1: time.Second, 3: 4 * time.Second, 5: 16 * time.Second} {
		if got := p.Delay(attempt); got != want {
			t.Fatalf("Delay(%d)=%s want %s", attempt, got, want)
		}
	}
}
