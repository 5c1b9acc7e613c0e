package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the backend's Prometheus collectors on a private registry
type Metrics struct {
	registry *prometheus.Registry

	requests        *prometheus.CounterVec
	duration        *prometheus.HistogramVec
	upstreamErrors  *prometheus.CounterVec
	upstreamLatency prometheus.Histogram
}

// NewMetrics registers the finking collectors plus the Go and process collectors
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "finking",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status code.",
		}, []string{"route", "method", "code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "finking",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		upstreamErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "finking",
			Name:      "upstream_errors_total",
			Help:      "Failed upstream completions by kind.",
		}, []string{"kind"}),
		upstreamLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "finking",
			Name:      "upstream_request_duration_seconds",
			Help:      "Upstream completion latency.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30},
		}),
	}

	m.registry.MustRegister(
		m.requests,
		m.duration,
		m.upstreamErrors,
		m.upstreamLatency,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler exposes the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) observeRequest(route, method string, code int, elapsed time.Duration) {
	m.requests.WithLabelValues(route, method, strconv.Itoa(code)).Inc()
	m.duration.WithLabelValues(route).Observe(elapsed.Seconds())
}

func (m *Metrics) observeUpstream(kind string, elapsed time.Duration) {
	m.upstreamLatency.Observe(elapsed.Seconds())
	if kind != "" {
		m.upstreamErrors.WithLabelValues(kind).Inc()
	}
}
