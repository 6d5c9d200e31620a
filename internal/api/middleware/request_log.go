package middleware

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
)

// RequestLogger logs one line per request after the handler chain ran.
// Authenticated requests carry the user id set by AuthMiddleware.
func RequestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		if logger == nil {
			return
		}

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		attrs := []slog.Attr{
			slog.String("method", c.Request.Method),
			slog.String("route", route),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", c.Writer.Status()),
			slog.Int("bytes", c.Writer.Size()),
			slog.String("client_ip", c.ClientIP()),
			slog.Duration("latency", time.Since(start)),
		}
		if v, ok := c.Get("userID"); ok {
			if id, ok := v.(uint); ok {
				attrs = append(attrs, slog.Uint64("user_id", uint64(id)))
			}
		}
		logger.LogAttrs(c.Request.Context(), slog.LevelInfo, "http request", attrs...)
	}
}
