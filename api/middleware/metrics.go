package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/pagesift/metrics"
)

// Metrics records request counts and latencies per route template.
// Unmatched routes are reported under "unmatched" to bound label
// cardinality.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		metrics.HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(c.Request.Method, path, status).
			Observe(time.Since(start).Seconds())
	}
}
