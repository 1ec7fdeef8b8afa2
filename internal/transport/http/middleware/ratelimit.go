package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/ErlanBelekov/account-service/internal/metrics"
	"github.com/ErlanBelekov/account-service/internal/ratelimit"
	"github.com/gin-gonic/gin"
)

// RateLimit rejects requests once the client IP exceeds the limiter's
// budget, with a Retry-After header derived from the remaining window.
// A limiter backend failure is logged and the request let through: a
// broken Redis must not take logins down with it.
func RateLimit(name string, limiter ratelimit.Limiter, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := limiter.Allow(c.Request.Context(), c.ClientIP())
		if err != nil {
			logger.ErrorContext(c.Request.Context(), "rate limiter unavailable",
				"limiter", name, "error", err)
			c.Next()
			return
		}

		if !res.Allowed {
			metrics.RateLimitedTotal.WithLabelValues(name).Inc()
			retryAfter := res.RetryAfter.Round(time.Second)
			c.Header("Retry-After", strconv.Itoa(int(retryAfter.Seconds())))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": fmt.Sprintf("Too many requests, please try again in %s", retryAfter),
			})
			return
		}
		c.Next()
	}
}
