package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Decode outcomes.
const (
	OutcomeOK      = "ok"
	OutcomeInvalid = "invalid"
)

// Metrics holds the payment link collectors. A nil *Metrics is a valid no-op.
type Metrics struct {
	registry *prometheus.Registry

	codesGenerated  prometheus.Counter
	codesDecoded    *prometheus.CounterVec
	linksCreated    *prometheus.CounterVec
	withdrawLookups *prometheus.CounterVec
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
}

// NewMetrics creates the collectors on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		codesGenerated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "paylink",
			Subsystem: "codes",
			Name:      "generated_total",
			Help:      "Total number of payment codes generated.",
		}),
		codesDecoded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "paylink",
			Subsystem: "codes",
			Name:      "decoded_total",
			Help:      "Total number of payment codes read, by outcome.",
		}, []string{"outcome"}),
		linksCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "paylink",
			Subsystem: "links",
			Name:      "created_total",
			Help:      "Total number of share links created, by action.",
		}, []string{"action"}),
		withdrawLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "paylink",
			Subsystem: "withdraw",
			Name:      "lookups_total",
			Help:      "Total number of withdraw status lookups, by resulting status.",
		}, []string{"status"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "paylink",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "paylink",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		}, []string{"method", "route"}),
	}

	m.registry.MustRegister(
		m.codesGenerated,
		m.codesDecoded,
		m.linksCreated,
		m.withdrawLookups,
		m.httpRequests,
		m.httpDuration,
		prometheus.NewGoCollector(),
	)

	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) CodeGenerated() {
	if m == nil {
		return
	}
	m.codesGenerated.Inc()
}

func (m *Metrics) CodeDecoded(outcome string) {
	if m == nil {
		return
	}
	m.codesDecoded.WithLabelValues(outcome).Inc()
}

func (m *Metrics) LinkCreated(action string) {
	if m == nil {
		return
	}
	m.linksCreated.WithLabelValues(action).Inc()
}

func (m *Metrics) WithdrawLookup(status string) {
	if m == nil {
		return
	}
	m.withdrawLookups.WithLabelValues(status).Inc()
}

// Handler returns the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Instrument records request counts and durations labelled by chi route pattern.
func (m *Metrics) Instrument(next http.Handler) http.Handler {
	if m == nil {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		m.httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
