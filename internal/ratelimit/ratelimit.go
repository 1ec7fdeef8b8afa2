// Package ratelimit counts attempts per key inside fixed time windows.
// Two implementations exist: an in-process map for single-instance
// deployments and a Redis-backed one for fleets; the caller picks at
// composition time.
package ratelimit

import (
	"context"
	"time"
)

// Result is the outcome of recording one attempt. When Allowed is false,
// RetryAfter is how long the caller should wait before the window resets.
type Result struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

type Limiter interface {
	// Allow records an attempt for key and reports whether it is within
	// budget. An error means the limiter backend itself failed, not that
	// the key is over budget.
	Allow(ctx context.Context, key string) (Result, error)
}
