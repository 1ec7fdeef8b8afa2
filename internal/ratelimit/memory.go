package ratelimit

import (
	"context"
	"sync"
	"time"
)

type counter struct {
	count       int
	windowStart time.Time
}

// Memory is an in-process fixed-window limiter. Counters live only for
// the process lifetime, which is fine for single-instance deployments.
type Memory struct {
	max    int
	window time.Duration

	mu       sync.Mutex
	counters map[string]*counter

	now func() time.Time // overridable in tests
}

func NewMemory(max int, window time.Duration) *Memory {
	return &Memory{
		max:      max,
		window:   window,
		counters: make(map[string]*counter),
		now:      time.Now,
	}
}

func (m *Memory) Allow(_ context.Context, key string) (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	c, ok := m.counters[key]
	if !ok || now.Sub(c.windowStart) >= m.window {
		c = &counter{windowStart: now}
		m.counters[key] = c
	}

	c.count++
	if c.count > m.max {
		return Result{
			Allowed:    false,
			RetryAfter: c.windowStart.Add(m.window).Sub(now),
		}, nil
	}
	return Result{Allowed: true, Remaining: m.max - c.count}, nil
}

// PurgeStale drops counters whose window has elapsed so idle keys do not
// accumulate forever. Called periodically by the maintenance cron.
func (m *Memory) PurgeStale() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for key, c := range m.counters {
		if now.Sub(c.windowStart) >= m.window {
			delete(m.counters, key)
			removed++
		}
	}
	return removed
}
