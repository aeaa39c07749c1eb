package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tradesetup/internal/apperr"
)

// Metrics owns a private registry so tests can build as many as they like.
//
//	tradesetup_step_operations_total{step,op,result}
//	tradesetup_step_duration_seconds{step,op}
//	tradesetup_http_requests_total{method,route,status}
//	tradesetup_http_request_duration_seconds{method,route}
//	tradesetup_events_published_total{type}
type Metrics struct {
	Registry *prometheus.Registry

	stepOps      *prometheus.CounterVec
	stepDuration *prometheus.HistogramVec
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	events       *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		stepOps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradesetup_step_operations_total",
				Help: "Pipeline step operations by outcome.",
			},
			[]string{"step", "op", "result"},
		),
		stepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tradesetup_step_duration_seconds",
				Help:    "Pipeline step operation latency.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"step", "op"},
		),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradesetup_http_requests_total",
				Help: "HTTP requests by route and status.",
			},
			[]string{"method", "route", "status"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tradesetup_http_request_duration_seconds",
				Help:    "HTTP request latency by route.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradesetup_events_published_total",
				Help: "Pipeline events published by type.",
			},
			[]string{"type"},
		),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.stepOps,
		m.stepDuration,
		m.httpRequests,
		m.httpDuration,
		m.events,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

// ObserveStep records one step operation. result is "ok" or the error kind.
func (m *Metrics) ObserveStep(step, op string, start time.Time, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = apperr.KindOf(err).String()
	}
	m.stepOps.WithLabelValues(step, op, result).Inc()
	m.stepDuration.WithLabelValues(step, op).Observe(time.Since(start).Seconds())
}

func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func (m *Metrics) EventPublished(eventType string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(eventType).Inc()
}
