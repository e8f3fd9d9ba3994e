package middleware

import (
	"time"

	"crosplit/internal/logger"

	"github.com/gin-gonic/gin"
)

// Logger writes one access log line per request through the app logger.
func Logger(logger *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		status := c.Writer.Status()
		line := "%s %s %d %s %s"
		args := []interface{}{c.Request.Method, path, status, time.Since(start), c.ClientIP()}
		if shop := c.GetString(ShopKey); shop != "" {
			line += " shop=%s"
			args = append(args, shop)
		}

		switch {
		case status >= 500:
			logger.Error(line, args...)
		case status >= 400:
			logger.Warn(line, args...)
		default:
			logger.Info(line, args...)
		}
	}
}
