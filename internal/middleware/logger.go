package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/nursing-api/pkg/logger"
)

// Logger logs one line per request. Bodies are never logged since they
// carry patient data.
func Logger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		if raw := c.Request.URL.RawQuery; raw != "" {
			path = path + "?" + raw
		}

		c.Next()

		status := c.Writer.Status()
		fields := []interface{}{
			"method", c.Request.Method,
			"path", path,
			"status", status,
			"latency", time.Since(start).String(),
			"client_ip", c.ClientIP(),
		}
		if actor, ok := ActorFrom(c); ok {
			fields = append(fields, "caregiver_id", actor.ID.String(), "role", string(actor.Role))
		}

		l := log.WithContext(c.Request.Context())
		switch {
		case status >= 500:
			var err error
			if last := c.Errors.Last(); last != nil {
				err = last.Err
			}
			l.Error(err, "Server error", fields...)
		case status >= 400:
			l.Warn("Client error", fields...)
		default:
			l.Info("Request processed", fields...)
		}
	}
}
