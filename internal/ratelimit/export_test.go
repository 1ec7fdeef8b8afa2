package ratelimit

import "time"

// SetNow overrides the limiter clock in tests.
func (m *Memory) SetNow(now func() time.Time) {
	m.now = now
}

// Len reports the number of live counters.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.counters)
}
