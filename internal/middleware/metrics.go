package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/rbac-console/internal/service"
)

// UnmatchedRoute is the path label for requests that hit no registered route.
const UnmatchedRoute = "unmatched"

// Metrics records method, route template, status and latency for every request
// except those whose route is listed in skip.
func Metrics(metricsSvc *service.MetricsService, skip ...string) gin.HandlerFunc {
	skipped := make(map[string]struct{}, len(skip))
	for _, route := range skip {
		skipped[route] = struct{}{}
	}

	return func(c *gin.Context) {
		route := c.FullPath()
		if metricsSvc == nil {
			c.Next()
			return
		}
		if _, ok := skipped[route]; ok && route != "" {
			c.Next()
			return
		}
		if route == "" {
			route = UnmatchedRoute
		}

		start := time.Now()
		c.Next()
		metricsSvc.ObserveHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
