package http

import (
	"log/slog"
	"net/http"

	"github.com/example/leaveflow/internal/metrics"
)

type RouterConfig struct {
	Auth     *AuthHandler
	Users    *UserHandler
	Leave    *LeaveHandler
	Health   *HealthHandler
	Sessions SessionValidator
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
	// Middleware wraps the whole router, outermost first.
	Middleware []func(http.Handler) http.Handler
}

func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()

	authenticated := func(h http.HandlerFunc) http.Handler {
		if cfg.Sessions == nil {
			return h
		}
		return RequireSession(cfg.Sessions, cfg.Logger)(h)
	}

	if cfg.Health != nil {
		mux.HandleFunc("GET /healthz", cfg.Health.Check)
	}
	if cfg.Metrics != nil {
		mux.Handle("GET /metrics", cfg.Metrics.Handler())
	}

	if cfg.Auth != nil {
		mux.HandleFunc("POST /sessions", cfg.Auth.CreateSession)
		mux.Handle("PUT /sessions/current", authenticated(cfg.Auth.RefreshCurrentSession))
		mux.Handle("DELETE /sessions/current", authenticated(cfg.Auth.DeleteCurrentSession))
		mux.Handle("DELETE /sessions/{token}", authenticated(cfg.Auth.DeleteSession))
	}

	if cfg.Users != nil {
		mux.HandleFunc("POST /register", cfg.Users.Register)
		mux.Handle("GET /me", authenticated(cfg.Users.Me))
		mux.Handle("GET /users", authenticated(cfg.Users.List))
		mux.Handle("POST /users", authenticated(cfg.Users.Create))
		mux.Handle("PUT /users/{id}/balance", authenticated(cfg.Users.SetBalance))
	}

	if cfg.Leave != nil {
		mux.Handle("GET /leave-requests", authenticated(cfg.Leave.ListMine))
		mux.Handle("POST /leave-requests", authenticated(cfg.Leave.Submit))
		mux.Handle("GET /leave-requests/{id}", authenticated(cfg.Leave.Get))
		mux.Handle("PUT /leave-requests/{id}", authenticated(cfg.Leave.Amend))
		mux.Handle("DELETE /leave-requests/{id}", authenticated(cfg.Leave.Withdraw))
		mux.Handle("POST /leave-requests/{id}/approve", authenticated(cfg.Leave.Approve))
		mux.Handle("POST /leave-requests/{id}/reject", authenticated(cfg.Leave.Reject))
		mux.Handle("GET /admin/leave-requests", authenticated(cfg.Leave.ListAll))
		mux.Handle("GET /calendar", authenticated(cfg.Leave.Calendar))
	}

	var handler http.Handler = mux
	if cfg.Metrics != nil {
		handler = cfg.Metrics.Middleware(mux)(handler)
	}
	for i := len(cfg.Middleware) - 1; i >= 0; i-- {
		if cfg.Middleware[i] != nil {
			handler = cfg.Middleware[i](handler)
		}
	}

	return handler
}
