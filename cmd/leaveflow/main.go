package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/example/leaveflow/internal/application"
	"github.com/example/leaveflow/internal/config"
	httptransport "github.com/example/leaveflow/internal/http"
	"github.com/example/leaveflow/internal/jobs"
	"github.com/example/leaveflow/internal/logging"
	"github.com/example/leaveflow/internal/metrics"
	"github.com/example/leaveflow/internal/notify"
	"github.com/example/leaveflow/internal/persistence"
	"github.com/example/leaveflow/internal/persistence/adapter"
	"github.com/example/leaveflow/internal/persistence/postgres"
	"github.com/example/leaveflow/internal/persistence/redisstore"
	"github.com/example/leaveflow/internal/persistence/sqlite"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger, flush, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		slog.Error("failed to build logger", "error", err)
		os.Exit(1)
	}
	defer func() { _ = flush() }()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("leaveflow stopped with error", "error", err)
		_ = flush()
		os.Exit(1)
	}
}

// storageBackend is what either database engine provides.
type storageBackend interface {
	persistence.UserRepository
	persistence.SessionRepository
	adapter.LeaveBackend
	Ping(ctx context.Context) error
	Close() error
}

// app holds the wired service graph and everything that needs closing.
type app struct {
	handler   http.Handler
	users     *application.UserService
	auth      *application.AuthService
	scheduler *jobs.Scheduler
	closers   []func(ctx context.Context) error
}

func (a *app) close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	a, err := buildApp(ctx, cfg, logger, metrics.New())
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := a.close(closeCtx); err != nil {
			logger.Error("failed to release resources", "error", err)
		}
	}()

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.scheduler.Start()

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("leaveflow API listening", "addr", server.Addr, "db_driver", cfg.DBDriver)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("shutdown server: %w", err)
	}
	logger.Info("leaveflow API stopped")
	return nil
}

// buildApp opens storage and wires services, handlers and background jobs.
// The scheduler is returned stopped.
func buildApp(ctx context.Context, cfg config.Config, logger *slog.Logger, m *metrics.Metrics) (*app, error) {
	a := &app{}
	fail := func(err error) (*app, error) {
		closeCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		_ = a.close(closeCtx)
		return nil, err
	}

	store, err := openStorage(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func(context.Context) error { return store.Close() })

	checks := map[string]httptransport.Pinger{"database": store}

	var sessions persistence.SessionRepository = store
	if cfg.RedisAddr != "" {
		client, err := redisstore.Connect(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return fail(err)
		}
		a.closers = append(a.closers, func(context.Context) error { return client.Close() })
		sessions = redisstore.NewSessionRepository(client, redisstore.Options{})
		checks["redis"] = redisPinger{client: client}
		logger.Info("sessions stored in redis", "addr", cfg.RedisAddr)
	}

	var notifier application.Notifier
	if cfg.WebhookURL != "" {
		dispatcher := notify.NewDispatcher(notify.NewWebhookSender(cfg.WebhookURL, cfg.WebhookTimeout), notify.DispatcherConfig{
			QueueSize: cfg.NotifyQueueSize,
			Timeout:   cfg.WebhookTimeout,
			Logger:    logger,
			Observer:  m,
		})
		a.closers = append(a.closers, dispatcher.Close)
		notifier = dispatcher
	} else {
		logger.Info("leave notifications disabled; no webhook configured")
	}

	newID := uuid.NewString
	now := func() time.Time { return time.Now().UTC() }

	a.users = application.NewUserServiceWithLogger(
		adapter.NewUserRepository(store),
		nil,
		newID,
		now,
		cfg.DefaultBalance,
		logger,
	)
	leave := application.NewLeaveServiceWithConfig(
		adapter.NewLeaveStore(store),
		notifier,
		newID,
		now,
		application.LeaveServiceConfig{
			WithdrawPolicy: application.WithdrawPolicy(cfg.WithdrawPolicy),
			Observer:       m,
			Logger:         logger,
		},
	)
	a.auth = application.NewAuthServiceWithLogger(
		adapter.NewCredentialStore(store),
		adapter.NewSessionRepository(sessions),
		nil,
		newToken,
		now,
		cfg.SessionTTL,
		logger,
	)

	if cfg.AdminEmail != "" {
		created, err := a.users.EnsureAdmin(ctx, cfg.AdminName, cfg.AdminEmail, cfg.AdminPassword)
		if err != nil {
			return fail(fmt.Errorf("bootstrap administrator: %w", err))
		}
		if created {
			logger.Info("bootstrap administrator created", "email", cfg.AdminEmail)
		}
	}

	a.scheduler = jobs.NewScheduler(logger, time.Minute)
	if err := a.scheduler.AddSessionPruning(cfg.SessionPruneSchedule, a.auth); err != nil {
		return fail(err)
	}
	a.closers = append(a.closers, a.scheduler.Stop)

	a.handler = httptransport.NewRouter(httptransport.RouterConfig{
		Auth:     httptransport.NewAuthHandler(a.auth, logger, cfg.IsProduction()),
		Users:    httptransport.NewUserHandler(a.users, logger),
		Leave:    httptransport.NewLeaveHandler(leave, logger),
		Health:   httptransport.NewHealthHandler(checks, logger),
		Sessions: a.auth,
		Metrics:  m,
		Logger:   logger,
		Middleware: []func(http.Handler) http.Handler{
			httptransport.RequestID(),
			httptransport.RequestLogger(logger),
		},
	})

	return a, nil
}

func openStorage(ctx context.Context, cfg config.Config, logger *slog.Logger) (storageBackend, error) {
	switch cfg.DBDriver {
	case config.DriverPostgres:
		store, err := postgres.Open(ctx, postgres.Config{DSN: cfg.DatabaseURL}, logger)
		if err != nil {
			return nil, err
		}
		if err := store.Migrate(ctx); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("apply migrations: %w", err)
		}
		return store, nil
	case config.DriverSQLite, "":
		store, err := sqlite.Open(ctx, sqlite.Config{DSN: cfg.SQLiteDSN}, logger)
		if err != nil {
			return nil, err
		}
		if err := store.Migrate(ctx); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("apply migrations: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.DBDriver)
	}
}

// newToken returns an opaque session token with 244 bits of randomness.
func newToken() string {
	return uuid.NewString() + uuid.NewString()
}

type redisPinger struct {
	client *redis.Client
}

func (p redisPinger) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}
