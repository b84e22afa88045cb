// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// Metrics instruments HTTP traffic with Prometheus. Labels stay bounded: the
// route label is the registered route (e.g. /api/v1/conversations/:id/messages)
// and every request that matched no route shares the "unmatched" label, so
// scanners cannot grow the series count.
//
// Websocket upgrades are counted like any request but tracked in their own
// gauge; their duration is the whole session, which would swamp the latency
// histogram.
package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

const unmatchedRoute = "unmatched"

var (
	requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by method, route and status.",
		},
		[]string{"method", "route", "status"},
	)

	requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Latency of non-upgrade HTTP requests.",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"method", "route"},
	)

	requestsInflight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_inflight",
			Help: "Non-upgrade HTTP requests currently being served.",
		},
	)

	websocketsOpen = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_websockets_open",
			Help: "Upgraded websocket connections currently open.",
		},
	)

	// Message pages dominate; buckets span a single message to a full page.
	responseSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "http_response_size_bytes",
			Help: "Size of HTTP responses in bytes.",
			Buckets: []float64{
				200, 500, 1 << 10, 4 << 10, 16 << 10,
				64 << 10, 256 << 10, 1 << 20, 4 << 20,
			},
		},
		[]string{"method", "route"},
	)
)

func init() {
	prometheus.MustRegister(requestsTotal, requestDuration, requestsInflight, websocketsOpen, responseSize)
}

// Metrics returns the Prometheus instrumentation middleware.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		gauge := requestsInflight
		if isUpgrade(c) {
			gauge = websocketsOpen
		}
		gauge.Inc()
		defer gauge.Dec()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}
		method := c.Request.Method
		requestsTotal.WithLabelValues(method, route, strconv.Itoa(c.Writer.Status())).Inc()

		if gauge == websocketsOpen {
			return
		}
		requestDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
		if size := c.Writer.Size(); size >= 0 {
			responseSize.WithLabelValues(method, route).Observe(float64(size))
		}
	}
}

func isUpgrade(c *gin.Context) bool {
	return c.GetHeader("Upgrade") != ""
}
