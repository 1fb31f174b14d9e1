// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file exposes Prometheus instrumentation for HTTP traffic. Labels are
// kept bounded: method, the registered Gin route (for example
// /api/v1/threads/:id/messages, or the raw path when no route matched) and
// the numeric status.
package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// HTTPMetrics holds the request collectors.
type HTTPMetrics struct {
	reqs     *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	inflight prometheus.Gauge
	respSize *prometheus.HistogramVec
}

// NewHTTPMetrics creates the collectors and registers them on reg
// (prometheus.DefaultRegisterer when nil).
func NewHTTPMetrics(reg prometheus.Registerer) *HTTPMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &HTTPMetrics{
		reqs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "path", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "http_request_duration_seconds",
			Help: "Duration of HTTP requests in seconds.",
			// Message sends wait on the chat model; extend past DefBuckets.
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"method", "path"}),
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "http_requests_inflight",
			Help: "Current number of in-flight HTTP requests.",
		}),
		respSize: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "http_response_size_bytes",
			Help: "Size of HTTP responses in bytes.",
			Buckets: []float64{
				200, 500, 1 << 10, 2 << 10, 5 << 10,
				10 << 10, 25 << 10, 50 << 10,
				100 << 10, 250 << 10, 500 << 10,
				1 << 20, 2 << 20, 5 << 20,
			},
		}, []string{"method", "path"}),
	}
	reg.MustRegister(m.reqs, m.latency, m.inflight, m.respSize)
	return m
}

// Handler returns the instrumenting middleware.
func (m *HTTPMetrics) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		m.inflight.Inc()
		defer m.inflight.Dec()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		method := c.Request.Method

		m.reqs.WithLabelValues(method, path, strconv.Itoa(c.Writer.Status())).Inc()
		m.latency.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
		// Size is -1 for hijacked connections.
		if size := c.Writer.Size(); size >= 0 {
			m.respSize.WithLabelValues(method, path).Observe(float64(size))
		}
	}
}
