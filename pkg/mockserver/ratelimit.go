package mockserver

import (
	"sync"
	"time"
)

// windowLimiter is a fixed-window request counter keyed by caller.
type windowLimiter struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu       sync.Mutex
	counters map[string]*windowCounter
}

type windowCounter struct {
	count    int
	windowAt time.Time
}

func newWindowLimiter(limit int, window time.Duration) *windowLimiter {
	return &windowLimiter{
		limit:    limit,
		window:   window,
		now:      time.Now,
		counters: make(map[string]*windowCounter),
	}
}

// allow reports whether the caller is within its window budget.
func (l *windowLimiter) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	c, ok := l.counters[key]
	if !ok || now.Sub(c.windowAt) >= l.window {
		l.counters[key] = &windowCounter{count: 1, windowAt: now}
		return true
	}

	c.count++
	return c.count <= l.limit
}
