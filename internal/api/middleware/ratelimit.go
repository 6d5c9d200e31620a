package middleware

import (
	"log/slog"
	"math"
	"net/http"

	"recipebox/internal/pkg/metrics"
	"recipebox/internal/pkg/ratelimit"

	"github.com/gin-gonic/gin"
)

// RateLimit throttles requests per client IP using the Redis token bucket.
// Redis errors fail open so the API keeps serving without the limiter.
func RateLimit(limiter *ratelimit.Limiter, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		allowed, wait, err := limiter.Allow(c.Request.Context(), c.ClientIP())
		if err != nil {
			if logger != nil {
				logger.Warn("rate limit check failed", slog.String("error", err.Error()))
			}
			c.Next()
			return
		}
		if !allowed {
			metrics.RateLimitRejectedTotal.Inc()
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       "too many requests",
				"retry_after": int(math.Ceil(wait.Seconds())),
			})
			c.Abort()
			return
		}
		c.Next()
	}
}
