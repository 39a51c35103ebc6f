package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service collectors. A nil *Metrics is a valid no-op.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	alertsCreated          *prometheus.CounterVec
	alertTransitions       *prometheus.CounterVec
	notificationsRouted    *prometheus.CounterVec
	notificationsDelivered *prometheus.CounterVec
	subscriptionDeliveries *prometheus.CounterVec
	activeSubscriptions    *prometheus.GaugeVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		alertsCreated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "alerts_created_total",
				Help: "Alerts raised by patients",
			},
			[]string{"severity"},
		),
		alertTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "alert_transitions_total",
				Help: "Committed alert and responder mutations",
			},
			[]string{"kind", "result"},
		),
		notificationsRouted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notifications_routed_total",
				Help: "Caregiver notifications enqueued by the router",
			},
			[]string{"reason", "result"},
		),
		notificationsDelivered: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notifications_delivered_total",
				Help: "Notifications processed by the delivery worker",
			},
			[]string{"result"},
		),
		subscriptionDeliveries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "subscription_deliveries_total",
				Help: "Snapshots pushed to live subscribers",
			},
			[]string{"kind", "result"},
		),
		activeSubscriptions: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "subscriptions_active",
				Help: "Currently registered live subscriptions",
			},
			[]string{"kind"},
		),
	}

	reg.MustRegister(
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.alertsCreated,
		m.alertTransitions,
		m.notificationsRouted,
		m.notificationsDelivered,
		m.subscriptionDeliveries,
		m.activeSubscriptions,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware records request counts and latency keyed by the chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		m.httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(ww.Status())).Inc()
		m.httpRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

func (m *Metrics) AlertCreated(severity string) {
	if m == nil {
		return
	}
	m.alertsCreated.WithLabelValues(severity).Inc()
}

func (m *Metrics) Transition(kind string, err error) {
	if m == nil {
		return
	}
	m.alertTransitions.WithLabelValues(kind, result(err)).Inc()
}

func (m *Metrics) NotificationRouted(reason string, err error) {
	if m == nil {
		return
	}
	m.notificationsRouted.WithLabelValues(reason, result(err)).Inc()
}

func (m *Metrics) NotificationDelivered(err error) {
	if m == nil {
		return
	}
	m.notificationsDelivered.WithLabelValues(result(err)).Inc()
}

func (m *Metrics) SubscriptionDelivered(kind string, ok bool) {
	if m == nil {
		return
	}
	res := "ok"
	if !ok {
		res = "error"
	}
	m.subscriptionDeliveries.WithLabelValues(kind, res).Inc()
}

func (m *Metrics) SubscriptionsChanged(kind string, delta float64) {
	if m == nil {
		return
	}
	m.activeSubscriptions.WithLabelValues(kind).Add(delta)
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
