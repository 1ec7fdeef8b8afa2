// Package maintenance runs the periodic housekeeping the auth flows
// depend on: clearing expired reset tokens from the user directory and
// dropping idle rate-limit counters.
package maintenance

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

type resetTokenPurger interface {
	PurgeExpiredResetTokens(ctx context.Context) (int64, error)
}

// CounterPurger is satisfied by the in-memory rate limiter.
type CounterPurger interface {
	PurgeStale() int
}

// Start schedules the purge jobs and returns the running cron. Counter
// purgers may be empty when the Redis limiter is in use (Redis expires
// its own keys).
func Start(users resetTokenPurger, counters []CounterPurger, logger *slog.Logger) *cron.Cron {
	logger = logger.With("component", "maintenance")
	c := cron.New()

	c.Schedule(cron.Every(10*time.Minute), cron.FuncJob(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		purged, err := users.PurgeExpiredResetTokens(ctx)
		if err != nil {
			logger.Error("purge expired reset tokens", "error", err)
			return
		}
		if purged > 0 {
			logger.Info("purged expired reset tokens", "count", purged)
		}
	}))

	c.Schedule(cron.Every(10*time.Minute), cron.FuncJob(func() {
		for _, p := range counters {
			p.PurgeStale()
		}
	}))

	c.Start()
	return c
}
