package server

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mahmut0ff/Modern-HandShakeMeApp-sub006/internal/metrics"
)

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		// Label by route template to keep booking ids out of the series.
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metrics.RecordHTTPRequest(
			c.Request.Method,
			path,
			strconv.Itoa(c.Writer.Status()),
			time.Since(start).Seconds(),
		)
	}
}
