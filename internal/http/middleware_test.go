package http

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/example/leaveflow/internal/application"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeSessionValidator struct {
	principals map[string]application.Principal
	err        error
}

func (f fakeSessionValidator) ValidateSession(ctx context.Context, token string) (application.Principal, error) {
	if f.err != nil {
		return application.Principal{}, f.err
	}
	principal, ok := f.principals[token]
	if !ok {
		return application.Principal{}, application.ErrInvalidCredentials
	}
	return principal, nil
}

func TestRequireSession(t *testing.T) {
	t.Parallel()

	alice := application.Principal{UserID: "alice", Role: application.RoleEmployee}
	validator := fakeSessionValidator{principals: map[string]application.Principal{"good": alice}}

	tests := []struct {
		name       string
		validator  SessionValidator
		header     string
		cookie     *http.Cookie
		wantStatus int
		wantCode   string
	}{
		{name: "missing credentials", validator: validator, wantStatus: http.StatusUnauthorized, wantCode: "AUTH_REQUIRED"},
		{name: "unknown bearer token", validator: validator, header: "Bearer nope", wantStatus: http.StatusUnauthorized, wantCode: "AUTH_INVALID_CREDENTIALS"},
		{name: "non bearer scheme", validator: validator, header: "Basic good", wantStatus: http.StatusUnauthorized, wantCode: "AUTH_REQUIRED"},
		{name: "bearer token", validator: validator, header: "bearer good", wantStatus: http.StatusNoContent},
		{name: "cookie token", validator: validator, cookie: &http.Cookie{Name: sessionCookieName, Value: "good"}, wantStatus: http.StatusNoContent},
		{name: "expired session", validator: fakeSessionValidator{err: application.ErrSessionExpired}, header: "Bearer good", wantStatus: http.StatusUnauthorized, wantCode: "AUTH_SESSION_EXPIRED"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var seen application.Principal
			var seenToken string
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen, _ = PrincipalFromContext(r.Context())
				seenToken = sessionTokenFromContext(r.Context())
				w.WriteHeader(http.StatusNoContent)
			})

			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			if tc.cookie != nil {
				req.AddCookie(tc.cookie)
			}
			rec := httptest.NewRecorder()

			RequireSession(tc.validator, discardLogger())(next).ServeHTTP(rec, req)

			if rec.Code != tc.wantStatus {
				t.Fatalf("expected status %d, got %d (%s)", tc.wantStatus, rec.Code, rec.Body.String())
			}
			if tc.wantCode != "" && !strings.Contains(rec.Body.String(), tc.wantCode) {
				t.Fatalf("expected error code %s, got %s", tc.wantCode, rec.Body.String())
			}
			if tc.wantStatus == http.StatusNoContent {
				if seen != alice || seenToken != "good" {
					t.Fatalf("expected principal and token in context, got %+v %q", seen, seenToken)
				}
			}
		})
	}
}

func TestRequestID(t *testing.T) {
	t.Parallel()

	var seen string
	handler := RequestID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if seen != "req-123" || rec.Header().Get(RequestIDHeader) != "req-123" {
		t.Fatalf("expected incoming request id to be kept, got %q / %q", seen, rec.Header().Get(RequestIDHeader))
	}

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(RequestIDHeader, strings.Repeat("x", 200))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if len(seen) != 36 || rec.Header().Get(RequestIDHeader) != seen {
		t.Fatalf("expected oversized id to be replaced by a uuid, got %q", seen)
	}
}

func TestRequestLoggerAttachesLogger(t *testing.T) {
	t.Parallel()

	var buf strings.Builder
	base := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	handler := RequestID()(RequestLogger(base)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if LoggerFromContext(r.Context()) == nil {
			t.Errorf("expected request logger in context")
		}
		w.WriteHeader(http.StatusTeapot)
	})))

	req := httptest.NewRequest(http.MethodGet, "/calendar", nil)
	req.Header.Set(RequestIDHeader, "req-9")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	out := buf.String()
	for _, want := range []string{"request completed", "status=418", "request_id=req-9", "path=/calendar"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in log output %q", want, out)
		}
	}
}

func TestHealthHandler(t *testing.T) {
	t.Parallel()

	healthy := NewHealthHandler(map[string]Pinger{
		"database": PingerFunc(func(context.Context) error { return nil }),
	}, discardLogger())
	rec := httptest.NewRecorder()
	healthy.Check(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"database":"ok"`) {
		t.Fatalf("unexpected healthy response %d %s", rec.Code, rec.Body.String())
	}

	degraded := NewHealthHandler(map[string]Pinger{
		"redis": PingerFunc(func(context.Context) error { return context.DeadlineExceeded }),
	}, discardLogger())
	rec = httptest.NewRecorder()
	degraded.Check(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusServiceUnavailable || !strings.Contains(rec.Body.String(), `"status":"degraded"`) {
		t.Fatalf("unexpected degraded response %d %s", rec.Code, rec.Body.String())
	}
}

func TestHandlerLoggerTagsRequestIDWithoutRequestLogger(t *testing.T) {
	t.Parallel()

	var buf strings.Builder
	base := slog.New(slog.NewTextHandler(&buf, nil))

	ctx := ContextWithRequestID(context.Background(), "req-42")
	handlerLogger(ctx, base, "LeaveHandler", "Submit", "principal_id", "alice").Info("decoded")

	out := buf.String()
	for _, want := range []string{"handler=LeaveHandler", "request_id=req-42", "operation=Submit", "principal_id=alice"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in %q", want, out)
		}
	}
}
