package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/example/leaveflow/internal/application"
	"github.com/example/leaveflow/internal/config"
	"github.com/example/leaveflow/internal/metrics"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		HTTPPort:             0,
		Env:                  "test",
		DBDriver:             config.DriverSQLite,
		SQLiteDSN:            filepath.Join(t.TempDir(), "leaveflow.db"),
		SessionTTL:           time.Hour,
		SessionPruneSchedule: "@hourly",
		DefaultBalance:       25,
		WithdrawPolicy:       "refund_always",
		WebhookTimeout:       time.Second,
		NotifyQueueSize:      8,
		AdminName:            "Root",
		AdminEmail:           "root@example.com",
		AdminPassword:        "password123",
		ShutdownTimeout:      5 * time.Second,
	}
}

func testMetrics() *metrics.Metrics {
	reg := prometheus.NewRegistry()
	return metrics.NewWithRegistry(reg, reg)
}

func call(t *testing.T, handler http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var payload io.Reader = http.NoBody
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		payload = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, payload)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func login(t *testing.T, handler http.Handler, email string) string {
	t.Helper()
	rec := call(t, handler, http.MethodPost, "/sessions", "", map[string]string{"email": email, "password": "password123"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("login failed: %d %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode login: %v", err)
	}
	return resp.Token
}

func TestBuildAppOverSQLite(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := testConfig(t)

	a, err := buildApp(ctx, cfg, logger, testMetrics())
	if err != nil {
		t.Fatalf("buildApp failed: %v", err)
	}
	t.Cleanup(func() {
		if err := a.close(context.Background()); err != nil {
			t.Errorf("close failed: %v", err)
		}
	})

	if rec := call(t, a.handler, http.MethodGet, "/healthz", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("expected healthy service, got %d %s", rec.Code, rec.Body.String())
	}

	adminToken := login(t, a.handler, "root@example.com")
	rec := call(t, a.handler, http.MethodGet, "/users", adminToken, nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"role":"admin"`) {
		t.Fatalf("expected bootstrap administrator in listing, got %d %s", rec.Code, rec.Body.String())
	}

	// A second build over the same database keeps the existing administrator.
	again, err := buildApp(ctx, cfg, logger, testMetrics())
	if err != nil {
		t.Fatalf("second buildApp failed: %v", err)
	}
	users, err := again.users.ListUsers(ctx, principalOf(t, again, adminToken))
	if err != nil || len(users) != 1 {
		t.Fatalf("expected a single account, got %d %v", len(users), err)
	}
	if err := again.close(ctx); err != nil {
		t.Fatalf("close failed: %v", err)
	}
}

func principalOf(t *testing.T, a *app, token string) application.Principal {
	t.Helper()
	got, err := a.auth.ValidateSession(context.Background(), token)
	if err != nil {
		t.Fatalf("ValidateSession failed: %v", err)
	}
	return got
}

func TestBuildAppWithRedisSessionsAndWebhook(t *testing.T) {
	t.Parallel()

	var (
		mu       sync.Mutex
		messages []string
	)
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Text string `json:"text"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err == nil {
			mu.Lock()
			messages = append(messages, payload.Text)
			mu.Unlock()
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(hook.Close)

	redisServer := miniredis.RunT(t)

	cfg := testConfig(t)
	cfg.RedisAddr = redisServer.Addr()
	cfg.WebhookURL = hook.URL

	a, err := buildApp(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), testMetrics())
	if err != nil {
		t.Fatalf("buildApp failed: %v", err)
	}

	if rec := call(t, a.handler, http.MethodPost, "/register", "", map[string]string{"name": "Alice", "email": "alice@example.com", "password": "password123"}); rec.Code != http.StatusCreated {
		t.Fatalf("register failed: %d %s", rec.Code, rec.Body.String())
	}
	token := login(t, a.handler, "alice@example.com")
	if len(redisServer.Keys()) == 0 {
		t.Fatalf("expected the session to be stored in redis")
	}

	rec := call(t, a.handler, http.MethodPost, "/leave-requests", token, map[string]string{
		"start_date": "2024-06-10", "end_date": "2024-06-12", "leave_type": "annual", "reason": "Summer trip",
	})
	if rec.Code != http.StatusCreated || !strings.Contains(rec.Body.String(), `"balance":22`) {
		t.Fatalf("unexpected submit response %d %s", rec.Code, rec.Body.String())
	}

	rec = call(t, a.handler, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"redis":"ok"`) {
		t.Fatalf("expected redis health check, got %d %s", rec.Code, rec.Body.String())
	}

	// Closing drains the notification queue.
	if err := a.close(context.Background()); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(messages) != 1 || !strings.Contains(messages[0], "Alice") {
		t.Fatalf("expected one notification about Alice, got %q", messages)
	}
}

func TestOpenStorageRejectsUnknownDriver(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.DBDriver = "oracle"
	if _, err := openStorage(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil))); err == nil {
		t.Fatal("expected an error for an unknown driver")
	}
}
