package middleware

import (
	"strconv"

	"fairplay-wallet/internal/metrics"

	"github.com/gin-gonic/gin"
)

// Observe counts every request by matched route template, so path
// parameters do not explode label cardinality.
func Observe(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.HTTPRequest(route, c.Request.Method, strconv.Itoa(c.Writer.Status()))
	}
}
