// Package metrics exposes tracker and API metrics in Prometheus format.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics. A nil *Metrics is valid and records
// nothing, which keeps components usable without a registry.
type Metrics struct {
	registry *prometheus.Registry

	// Tracker metrics
	Observations    *prometheus.CounterVec
	TrackingActive  prometheus.Gauge
	SessionsOpen    prometheus.Gauge
	SessionsOpened  *prometheus.CounterVec
	SessionsClosed  *prometheus.CounterVec
	PersistFailures prometheus.Counter

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

// New creates the metrics and registers them on a private registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		Observations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "appclock_observations_total",
				Help: "Focus observations by result",
			},
			[]string{"result"},
		),
		TrackingActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "appclock_tracking_active",
			Help: "1 while tracking is running",
		}),
		SessionsOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "appclock_sessions_open",
			Help: "Number of currently open sessions",
		}),
		SessionsOpened: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "appclock_sessions_opened_total",
				Help: "Sessions opened by category",
			},
			[]string{"category"},
		),
		SessionsClosed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "appclock_sessions_closed_total",
				Help: "Sessions closed by reason",
			},
			[]string{"reason"},
		),
		PersistFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "appclock_persist_failures_total",
			Help: "Session writes that failed and were queued for retry",
		}),
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "appclock_http_requests_total",
				Help: "HTTP requests by route and status",
			},
			[]string{"method", "route", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "appclock_http_request_duration_seconds",
				Help:    "HTTP request latency",
				Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1},
			},
			[]string{"route"},
		),
	}

	m.registry.MustRegister(
		m.Observations,
		m.TrackingActive,
		m.SessionsOpen,
		m.SessionsOpened,
		m.SessionsClosed,
		m.PersistFailures,
		m.RequestsTotal,
		m.RequestDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Registry returns the registry the metrics are registered on
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the metrics in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObservationRecorded(result string) {
	if m == nil {
		return
	}
	m.Observations.WithLabelValues(result).Inc()
}

func (m *Metrics) SetTracking(active bool) {
	if m == nil {
		return
	}
	if active {
		m.TrackingActive.Set(1)
	} else {
		m.TrackingActive.Set(0)
	}
}

func (m *Metrics) SessionOpened(category string, open int) {
	if m == nil {
		return
	}
	m.SessionsOpened.WithLabelValues(category).Inc()
	m.SessionsOpen.Set(float64(open))
}

func (m *Metrics) SessionClosed(reason string, open int) {
	if m == nil {
		return
	}
	m.SessionsClosed.WithLabelValues(reason).Inc()
	m.SessionsOpen.Set(float64(open))
}

func (m *Metrics) PersistFailed() {
	if m == nil {
		return
	}
	m.PersistFailures.Inc()
}

func (m *Metrics) RequestServed(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.RequestDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}
