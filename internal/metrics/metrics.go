// Package metrics exposes the Prometheus collectors of the service: HTTP
// traffic, ledger operations and notification delivery.
package metrics

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace prefixes every collector name.
const Namespace = "leaveflow"

// Notification outcomes.
const (
	NotificationSent    = "sent"
	NotificationFailed  = "failed"
	NotificationDropped = "dropped"
)

// Metrics holds the collectors registered for one process.
type Metrics struct {
	registry prometheus.Gatherer

	requests       *prometheus.CounterVec
	duration       *prometheus.HistogramVec
	statusCategory *prometheus.CounterVec

	ledgerOps  *prometheus.CounterVec
	ledgerDays *prometheus.CounterVec

	notifications *prometheus.CounterVec
	queueDepth    prometheus.Gauge
}

// New registers the collectors on a fresh registry together with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return NewWithRegistry(reg, reg)
}

// NewWithRegistry registers the collectors on reg and serves them from gatherer.
func NewWithRegistry(reg prometheus.Registerer, gatherer prometheus.Gatherer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		registry: gatherer,
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		statusCategory: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "http_status_category_total",
			Help:      "Total number of responses by status category (2xx, 4xx, 5xx)",
		}, []string{"category"}),
		ledgerOps: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "ledger_operations_total",
			Help:      "Ledger operations by outcome",
		}, []string{"operation", "outcome"}),
		ledgerDays: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "ledger_days_total",
			Help:      "Leave days moved by committed ledger operations",
		}, []string{"operation", "direction"}),
		notifications: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "notifications_total",
			Help:      "Leave notifications by delivery outcome",
		}, []string{"outcome"}),
		queueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "notification_queue_depth",
			Help:      "Notifications waiting for delivery",
		}),
	}
}

// Handler serves the registered collectors in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveLedger records one ledger operation. Positive deltas are credits,
// negative deltas are debits.
func (m *Metrics) ObserveLedger(operation, outcome string, balanceDelta int) {
	if m == nil {
		return
	}
	m.ledgerOps.WithLabelValues(operation, outcome).Inc()
	if balanceDelta == 0 {
		return
	}
	direction := "credit"
	if balanceDelta < 0 {
		direction = "debit"
	}
	m.ledgerDays.WithLabelValues(operation, direction).Add(math.Abs(float64(balanceDelta)))
}

// ObserveNotification records the delivery outcome of one notification.
func (m *Metrics) ObserveNotification(outcome string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(outcome).Inc()
}

// SetQueueDepth records the number of queued notifications.
func (m *Metrics) SetQueueDepth(depth int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(depth))
}

// RouteResolver reports the registered pattern that serves a request.
type RouteResolver interface {
	Handler(r *http.Request) (http.Handler, string)
}

// Middleware records request count, duration and status category. Requests
// are labelled with the matched route pattern rather than the raw path.
func (m *Metrics) Middleware(routes RouteResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if m == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route := "unmatched"
			if routes != nil {
				if _, pattern := routes.Handler(r); pattern != "" {
					route = pattern
				}
			}

			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			status := strconv.Itoa(rec.status)
			m.requests.WithLabelValues(r.Method, route, status).Inc()
			m.duration.WithLabelValues(r.Method, route, status).Observe(time.Since(start).Seconds())
			if category := statusCategory(rec.status); category != "" {
				m.statusCategory.WithLabelValues(category).Inc()
			}
		})
	}
}

func statusCategory(status int) string {
	switch {
	case status >= 200 && status < 300:
		return "2xx"
	case status >= 400 && status < 500:
		return "4xx"
	case status >= 500 && status < 600:
		return "5xx"
	}
	return ""
}

type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (r *statusRecorder) WriteHeader(status int) {
	if !r.wroteHeader {
		r.status = status
		r.wroteHeader = true
	}
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	r.wroteHeader = true
	return r.ResponseWriter.Write(b)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}
