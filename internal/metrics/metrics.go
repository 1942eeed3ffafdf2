package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus collectors for the HTTP and WebSocket surfaces.
// Registered once at package init via promauto.
var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "path", "status"},
	)

	wsActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_active_connections",
			Help: "Number of currently open WebSocket connections",
		},
	)

	wsConnectionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_connections_total",
			Help: "Total number of WebSocket connections accepted",
		},
	)

	wsBroadcastsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_broadcasts_total",
			Help: "Total number of broadcast events fanned out",
		},
		[]string{"type"},
	)
)

// WSConnectionOpened records an accepted WebSocket connection
func WSConnectionOpened() {
	wsConnectionsTotal.Inc()
	wsActiveConnections.Inc()
}

// WSConnectionClosed records a closed WebSocket connection
func WSConnectionClosed() {
	wsActiveConnections.Dec()
}

// WSBroadcast records one broadcast fan-out by event type
func WSBroadcast(eventType string) {
	wsBroadcastsTotal.WithLabelValues(eventType).Inc()
}

// GinMiddleware records request counts and latency per route
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())

		httpRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, path, status).
			Observe(time.Since(start).Seconds())
	}
}
