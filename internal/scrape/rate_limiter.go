package scrape

import (
	"context"
	"sync"
	"time"
)

// RateLimiter hands out turns at least interval apart. Detail pages of the
// survey site are fetched one turn at a time.
type RateLimiter struct {
	mu            sync.Mutex
	nextAllowedAt time.Time
	interval      time.Duration
	now           func() time.Time
}

func NewRateLimiter(interval time.Duration) *RateLimiter {
	if interval < 0 {
		interval = 0
	}
	return &RateLimiter{interval: interval, now: time.Now}
}

// WaitTurn blocks until the next turn or until ctx is done.
func (r *RateLimiter) WaitTurn(ctx context.Context) error {
	r.mu.Lock()
	now := r.now()
	scheduled := now
	if r.nextAllowedAt.After(now) {
		scheduled = r.nextAllowedAt
	}
	r.nextAllowedAt = scheduled.Add(r.interval)
	r.mu.Unlock()

	wait := scheduled.Sub(now)
	if wait <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
