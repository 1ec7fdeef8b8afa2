package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is a fixed-window limiter backed by shared Redis counters, for
// deployments running more than one instance behind a load balancer.
type Redis struct {
	client redis.UniversalClient
	prefix string
	max    int
	window time.Duration
}

func NewRedis(client redis.UniversalClient, prefix string, max int, window time.Duration) *Redis {
	return &Redis{client: client, prefix: prefix, max: max, window: window}
}

func (r *Redis) Allow(ctx context.Context, key string) (Result, error) {
	k := r.prefix + ":" + key

	pipe := r.client.TxPipeline()
	incr := pipe.Incr(ctx, k)
	pipe.ExpireNX(ctx, k, r.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return Result{}, fmt.Errorf("rate limit incr %q: %w", key, err)
	}

	count := incr.Val()
	if count > int64(r.max) {
		ttl, err := r.client.TTL(ctx, k).Result()
		if err != nil || ttl < 0 {
			ttl = r.window
		}
		return Result{Allowed: false, RetryAfter: ttl}, nil
	}
	return Result{Allowed: true, Remaining: r.max - int(count)}, nil
}
