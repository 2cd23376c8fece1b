package access

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dmitrymomot/tradedesk/pkg/subscription"
)

const namespace = "tradedesk"

// Metrics holds the service's Prometheus collectors. Each instance
// registers on its own registry so that tests can run in parallel.
type Metrics struct {
	registry *prometheus.Registry

	decisions      *prometheus.CounterVec
	refreshes      *prometheus.CounterVec
	webhooks       *prometheus.CounterVec
	billing        *prometheus.CounterVec
	transitions    *prometheus.CounterVec
	limited        *prometheus.CounterVec
	streams        prometheus.Gauge
	requestLatency *prometheus.HistogramVec
}

// NewMetrics registers the collectors plus the Go and process collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "access",
			Name:      "decisions_total",
			Help:      "Feature access decisions by feature and outcome.",
		}, []string{"feature", "allowed"}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "access",
			Name:      "refreshes_total",
			Help:      "Status refreshes by resulting role.",
		}, []string{"role"}),
		webhooks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "billing",
			Name:      "webhook_events_total",
			Help:      "Billing webhook deliveries by event type and outcome.",
		}, []string{"type", "outcome"}),
		billing: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "billing",
			Name:      "sessions_total",
			Help:      "Checkout and portal session requests by outcome.",
		}, []string{"kind", "outcome"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "access",
			Name:      "role_transitions_total",
			Help:      "Observed role changes.",
		}, []string{"from", "to"}),
		limited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "access",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the rate limiter.",
		}, []string{"route"}),
		streams: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "access",
			Name:      "status_streams",
			Help:      "Open status event streams.",
		}),
		requestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration by route pattern.",
			Buckets:   []float64{0.005, 0.025, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"method", "route", "status"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.decisions, m.refreshes, m.webhooks, m.billing, m.transitions, m.limited, m.streams, m.requestLatency,
	)
	return m
}

// Registry exposes the underlying registry for extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveChange counts role transitions. Pass it to the Registry through
// subscription.WithChangeHandler.
func (m *Metrics) ObserveChange(_ context.Context, change subscription.StatusChange) {
	m.transitions.WithLabelValues(change.From.String(), change.To.String()).Inc()
}

// Middleware records request latency labelled by the chi route pattern, so
// path parameters do not explode label cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := routeLabel(r)
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.requestLatency.WithLabelValues(r.Method, route, strconv.Itoa(status)).Observe(time.Since(start).Seconds())
	})
}

func (m *Metrics) decision(f subscription.Feature, allowed bool) {
	label := string(f)
	if !subscription.IsGated(f) {
		label = "ungated"
	}
	m.decisions.WithLabelValues(label, strconv.FormatBool(allowed)).Inc()
}

func (m *Metrics) refresh(role subscription.Role) {
	m.refreshes.WithLabelValues(role.String()).Inc()
}

func (m *Metrics) webhook(eventType subscription.EventType, outcome string) {
	if eventType == "" {
		eventType = "unknown"
	}
	m.webhooks.WithLabelValues(string(eventType), outcome).Inc()
}

func (m *Metrics) session(kind, outcome string) {
	m.billing.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) rateLimited(r *http.Request) {
	m.limited.WithLabelValues(routeLabel(r)).Inc()
}

func routeLabel(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}
