// Package metrics exposes Prometheus collectors for the HTTP API and SMS fan-out.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	smsSends *prometheus.CounterVec
	smsBatch *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "megvie",
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "megvie",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		smsSends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "megvie",
			Name:      "sms_messages_total",
			Help:      "Individual SMS send attempts by result.",
		}, []string{"result"}),
		smsBatch: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "megvie",
			Name:      "sms_batches_total",
			Help:      "Bulk SMS batches by derived status.",
		}, []string{"status"}),
	}
	reg.MustRegister(
		m.requests, m.duration, m.smsSends, m.smsBatch,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Middleware records request count and latency per matched route.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.requests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.duration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// SMSSent records one gateway call. Safe on a nil receiver.
func (m *Metrics) SMSSent(ok bool) {
	if m == nil {
		return
	}
	result := "sent"
	if !ok {
		result = "failed"
	}
	m.smsSends.WithLabelValues(result).Inc()
}

// SMSBatch records a finished bulk send. Safe on a nil receiver.
func (m *Metrics) SMSBatch(status string) {
	if m == nil {
		return
	}
	m.smsBatch.WithLabelValues(status).Inc()
}
