package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
)

// RequestObserver records request outcomes
type RequestObserver interface {
	Observe(method, route string, code int, d time.Duration)
}

// Metrics observes every request under its route template so path parameters do
// not explode label cardinality. Unmatched requests are grouped as "unmatched".
func Metrics(observer RequestObserver) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		observer.Observe(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
