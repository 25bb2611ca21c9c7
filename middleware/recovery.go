package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/AnTengye/contractlens/pkg/logger"
)

var httpPanicsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "contractlens_http_panics_total",
		Help: "Handler panics recovered, by route.",
	},
	[]string{"path"},
)

// Recovery turns a handler panic into a 500 carrying the request ID. The
// stack goes to the log only.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			route := c.FullPath()
			if route == "" {
				route = "unmatched"
			}
			httpPanicsTotal.WithLabelValues(route).Inc()

			logger.Error(c.Request.Context(), "panic recovered",
				"panic", rec,
				"method", c.Request.Method,
				"route", route,
				"stack", string(debug.Stack()),
			)

			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error":      "Internal server error",
				"kind":       "internal",
				"request_id": GetRequestID(c),
			})
		}()

		c.Next()
	}
}
