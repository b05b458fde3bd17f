package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics holds all Prometheus metric collectors for the Huddle service.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics.
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Realtime (websocket) metrics.
	WSConnections        prometheus.Gauge
	WSRooms              prometheus.Gauge
	EventsPublishedTotal *prometheus.CounterVec
	EventsDroppedTotal   prometheus.Counter

	// Audit writer metrics.
	AuditFlushesTotal *prometheus.CounterVec

	// Auth and rate limiting metrics.
	AuthFailuresTotal        *prometheus.CounterVec
	RateLimitRejectionsTotal prometheus.Counter

	// Server lifecycle.
	ServerStartTime prometheus.Gauge
}

// New creates and registers all Prometheus metrics on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,

		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "huddle_http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "path_pattern", "status_code"}),

		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "huddle_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path_pattern"}),

		WSConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "huddle_ws_connections",
			Help: "Number of live websocket connections.",
		}),

		WSRooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "huddle_ws_rooms",
			Help: "Number of rooms with at least one subscriber.",
		}),

		EventsPublishedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "huddle_events_published_total",
			Help: "Total number of events published to rooms.",
		}, []string{"type"}),

		EventsDroppedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "huddle_events_dropped_total",
			Help: "Events missed by slow subscribers.",
		}),

		AuditFlushesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "huddle_audit_flushes_total",
			Help: "Total number of audit batch flushes.",
		}, []string{"status"}),

		AuthFailuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "huddle_auth_failures_total",
			Help: "Total number of failed authentication attempts.",
		}, []string{"reason"}),

		RateLimitRejectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "huddle_ratelimit_rejections_total",
			Help: "Total number of rate-limited requests.",
		}),

		ServerStartTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "huddle_server_start_time_seconds",
			Help: "Unix timestamp of server start.",
		}),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.WSConnections,
		m.WSRooms,
		m.EventsPublishedTotal,
		m.EventsDroppedTotal,
		m.AuditFlushesTotal,
		m.AuthFailuresTotal,
		m.RateLimitRejectionsTotal,
		m.ServerStartTime,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m.ServerStartTime.Set(float64(time.Now().Unix()))

	return m
}

// RegisterDBPool attaches a DB pool stats collector to the registry.
func (m *Metrics) RegisterDBPool(statFunc DBPoolStatFunc) {
	m.registry.MustRegister(NewDBPoolCollector(statFunc))
}
