package telemetry

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "luyenthi_http_requests_total",
		Help: "HTTP requests by route, method and status.",
	}, []string{"route", "method", "status"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "luyenthi_http_request_duration_seconds",
		Help:    "HTTP request latency by route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})

	// RelayConnections tracks currently open relay sockets.
	RelayConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "luyenthi_relay_connections",
		Help: "Open websocket relay connections.",
	})

	// RelayEvents counts relay events by name and direction.
	RelayEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "luyenthi_relay_events_total",
		Help: "Relay events by name and direction.",
	}, []string{"event", "direction"})
)

// HTTPMiddleware logs each request and records request metrics.
func HTTPMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		status := c.Writer.Status()
		httpRequests.WithLabelValues(route, c.Request.Method, fmt.Sprintf("%d", status)).Inc()
		httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())

		if status >= 500 {
			slog.ErrorContext(c.Request.Context(), "http: request failed",
				"route", route,
				"method", c.Request.Method,
				"status", status,
				"duration", time.Since(start),
			)
			return
		}

		slog.InfoContext(c.Request.Context(), "http: request",
			"route", route,
			"method", c.Request.Method,
			"status", status,
			"duration", time.Since(start),
		)
	}
}
