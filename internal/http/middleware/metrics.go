package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/statline/statline-backend/internal/observability"
)

// Metrics instruments request counts, latency and in-flight gauge. Routes
// are labeled by gin's route template so path params do not explode the
// label space.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		observability.HTTPInflightAdd(1)
		defer observability.HTTPInflightAdd(-1)

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		observability.ObserveHTTPRequest(
			c.Request.Method,
			route,
			strconv.Itoa(c.Writer.Status()),
			time.Since(start),
		)
	}
}
