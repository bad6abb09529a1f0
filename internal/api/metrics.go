package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the server's Prometheus collectors on a private registry.
type Metrics struct {
	registry    *prometheus.Registry
	requests    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	predictions *prometheus.CounterVec
	riskLevels  *prometheus.CounterVec
	reports     *prometheus.CounterVec
}

// NewMetrics registers the collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cardioml",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "cardioml",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		predictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cardioml",
			Name:      "predictions_total",
			Help:      "Assessment submissions by outcome.",
		}, []string{"outcome"}),
		riskLevels: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cardioml",
			Name:      "risk_category_total",
			Help:      "Successful predictions by risk category.",
		}, []string{"category"}),
		reports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cardioml",
			Name:      "reports_total",
			Help:      "PDF report generations by outcome.",
		}, []string{"outcome"}),
	}

	m.registry.MustRegister(
		m.requests, m.duration, m.predictions, m.riskLevels, m.reports,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Middleware records request counts and latency per matched route.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.requests.WithLabelValues(route, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		m.duration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObservePrediction counts one submission outcome: success, invalid, failed or discarded.
func (m *Metrics) ObservePrediction(outcome, category string) {
	m.predictions.WithLabelValues(outcome).Inc()
	if category != "" {
		m.riskLevels.WithLabelValues(category).Inc()
	}
}

// ObserveReport counts one report outcome: success or failed.
func (m *Metrics) ObserveReport(outcome string) {
	m.reports.WithLabelValues(outcome).Inc()
}
