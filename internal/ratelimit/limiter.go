// Package ratelimit provides per-key sliding-window request limiting for
// scrape traffic.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter grants at most limit acquisitions per rolling window for each key.
// Acquire blocks until a slot opens; permits are never returned, they expire
// out of the window.
type Limiter struct {
	limit  int
	window time.Duration

	mu      sync.Mutex
	history map[string][]time.Time
	now     func() time.Time
}

// New builds a limiter allowing limit acquisitions per window. A limit or
// window of zero or less disables waiting entirely.
func New(limit int, window time.Duration) *Limiter {
	return &Limiter{
		limit:   limit,
		window:  window,
		history: make(map[string][]time.Time),
		now:     time.Now,
	}
}

// Acquire blocks until the key has a free slot in its window, then consumes
// it. It returns early with the context's error when ctx is canceled while
// waiting.
func (l *Limiter) Acquire(ctx context.Context, key string) error {
	if l.limit <= 0 || l.window <= 0 {
		return ctx.Err()
	}
	for {
		l.mu.Lock()
		now := l.now()
		stamps := l.prune(key, now)
		if len(stamps) < l.limit {
			l.history[key] = append(stamps, now)
			l.mu.Unlock()
			return nil
		}
		// Window is full. The next slot opens when the oldest stamp ages out.
		wait := stamps[0].Add(l.window).Sub(now)
		l.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// TryAcquire consumes a slot if one is free without blocking.
func (l *Limiter) TryAcquire(key string) bool {
	if l.limit <= 0 || l.window <= 0 {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	stamps := l.prune(key, now)
	if len(stamps) >= l.limit {
		return false
	}
	l.history[key] = append(stamps, now)
	return true
}

// InFlight reports how many acquisitions currently count against the key's
// window.
func (l *Limiter) InFlight(key string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.prune(key, l.now()))
}

// prune drops stamps older than the window. Callers hold l.mu.
func (l *Limiter) prune(key string, now time.Time) []time.Time {
	stamps := l.history[key]
	cutoff := now.Add(-l.window)
	idx := 0
	for idx < len(stamps) && !stamps[idx].After(cutoff) {
		idx++
	}
	if idx > 0 {
		stamps = append([]time.Time(nil), stamps[idx:]...)
		l.history[key] = stamps
	}
	return stamps
}
