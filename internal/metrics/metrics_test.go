package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newTestMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	return NewWithRegistry(reg, reg)
}

func TestObserveLedger(t *testing.T) {
	t.Parallel()

	m := newTestMetrics()
	m.ObserveLedger("submit", "success", -3)
	m.ObserveLedger("reject", "success", 3)
	m.ObserveLedger("submit", "insufficient_balance", 0)

	if got := testutil.ToFloat64(m.ledgerOps.WithLabelValues("submit", "success")); got != 1 {
		t.Fatalf("expected one successful submit, got %v", got)
	}
	if got := testutil.ToFloat64(m.ledgerOps.WithLabelValues("submit", "insufficient_balance")); got != 1 {
		t.Fatalf("expected one failed submit, got %v", got)
	}
	if got := testutil.ToFloat64(m.ledgerDays.WithLabelValues("submit", "debit")); got != 3 {
		t.Fatalf("expected 3 debited days, got %v", got)
	}
	if got := testutil.ToFloat64(m.ledgerDays.WithLabelValues("reject", "credit")); got != 3 {
		t.Fatalf("expected 3 credited days, got %v", got)
	}
}

func TestObserveNotificationAndQueueDepth(t *testing.T) {
	t.Parallel()

	m := newTestMetrics()
	m.ObserveNotification(NotificationSent)
	m.ObserveNotification(NotificationDropped)
	m.ObserveNotification(NotificationDropped)
	m.SetQueueDepth(4)

	if got := testutil.ToFloat64(m.notifications.WithLabelValues(NotificationDropped)); got != 2 {
		t.Fatalf("expected 2 dropped notifications, got %v", got)
	}
	if got := testutil.ToFloat64(m.queueDepth); got != 4 {
		t.Fatalf("expected queue depth 4, got %v", got)
	}
}

func TestNilMetricsAreNoops(t *testing.T) {
	t.Parallel()

	var m *Metrics
	m.ObserveLedger("submit", "success", -1)
	m.ObserveNotification(NotificationSent)
	m.SetQueueDepth(1)

	handler := m.Middleware(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusTeapot {
		t.Fatalf("expected passthrough, got %d", rec.Code)
	}
}

func TestMiddlewareLabelsByRoutePattern(t *testing.T) {
	t.Parallel()

	m := newTestMetrics()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /leave-requests/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	mux.Handle("GET /metrics", m.Handler())
	handler := m.Middleware(mux)(mux)

	for _, id := range []string{"a", "b"} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/leave-requests/"+id, nil))
	}

	if got := testutil.ToFloat64(m.requests.WithLabelValues(http.MethodGet, "GET /leave-requests/{id}", "404")); got != 2 {
		t.Fatalf("expected both requests under one route label, got %v", got)
	}
	if got := testutil.ToFloat64(m.statusCategory.WithLabelValues("4xx")); got != 2 {
		t.Fatalf("expected 2 client errors, got %v", got)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "leaveflow_http_requests_total") {
		t.Fatalf("expected exposition to include request counter, got %s", rec.Body.String())
	}
}
