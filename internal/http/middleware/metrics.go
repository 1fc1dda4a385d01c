// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file holds the Prometheus HTTP collectors, exported as
// pickup_http_*. The path label is the registered route template so order
// ids never reach a label; unmatched requests fall back to the raw path.
package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	metricsNamespace = "pickup"
	metricsSubsystem = "http"
)

var (
	httpReqs = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: metricsSubsystem,
		Name:      "requests_total",
		Help:      "HTTP requests by method, route and status code.",
	}, []string{"method", "path", "status"})

	// No status label here; the counter already splits by it.
	httpLat = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Subsystem: metricsSubsystem,
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency by method and route.",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	}, []string{"method", "path"})

	httpInflight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Subsystem: metricsSubsystem,
		Name:      "requests_inflight",
		Help:      "Requests currently being served.",
	})

	// 128B doubling up to 1MiB, the request body cap.
	httpRespSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Subsystem: metricsSubsystem,
		Name:      "response_size_bytes",
		Help:      "Response body size by method and route.",
		Buckets:   prometheus.ExponentialBuckets(128, 2, 14),
	}, []string{"method", "path"})

	httpThrottled = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: metricsSubsystem,
		Name:      "requests_throttled_total",
		Help:      "Requests rejected with 429 by the edge throttle or an operation quota.",
	}, []string{"path"})
)

// Metrics records every request against the collectors above.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		httpInflight.Inc()
		defer httpInflight.Dec()
		start := time.Now()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		code := c.Writer.Status()

		httpReqs.WithLabelValues(c.Request.Method, route, strconv.Itoa(code)).Inc()
		httpLat.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
		if n := c.Writer.Size(); n >= 0 {
			httpRespSize.WithLabelValues(c.Request.Method, route).Observe(float64(n))
		}
		if code == http.StatusTooManyRequests {
			httpThrottled.WithLabelValues(route).Inc()
		}
	}
}
