package handlers

import (
	"strings"
	"sync"
	"time"
)

type rateLimiter interface {
	Allow(key string) bool
}

// windowRateLimiter counts requests per key inside fixed windows. A key's
// counter resets when its window elapses; stale keys are dropped lazily on
// the next window rollover.
type windowRateLimiter struct {
	limit  int
	window time.Duration
	clock  func() time.Time

	mu      sync.Mutex
	counts  map[string]int
	started map[string]time.Time
}

func newWindowRateLimiter(limit int, window time.Duration, clock func() time.Time) rateLimiter {
	if limit <= 0 || window <= 0 {
		return nil
	}
	if clock == nil {
		clock = time.Now
	}
	return &windowRateLimiter{
		limit:   limit,
		window:  window,
		clock:   clock,
		counts:  make(map[string]int),
		started: make(map[string]time.Time),
	}
}

func (l *windowRateLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	key = strings.TrimSpace(key)
	if key == "" {
		key = "anonymous"
	}

	now := l.clock()
	l.mu.Lock()
	defer l.mu.Unlock()

	start, ok := l.started[key]
	if !ok || now.Sub(start) >= l.window {
		l.dropStaleLocked(now)
		l.started[key] = now
		l.counts[key] = 1
		return true
	}

	if l.counts[key] >= l.limit {
		return false
	}
	l.counts[key]++
	return true
}

func (l *windowRateLimiter) dropStaleLocked(now time.Time) {
	for key, start := range l.started {
		if now.Sub(start) >= l.window {
			delete(l.started, key)
			delete(l.counts, key)
		}
	}
}
