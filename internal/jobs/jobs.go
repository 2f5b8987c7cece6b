// Package jobs runs periodic housekeeping on a cron schedule.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// SessionPruner removes expired sessions.
type SessionPruner interface {
	PruneExpiredSessions(ctx context.Context) error
}

// Scheduler wraps a cron runner whose jobs share a base context.
type Scheduler struct {
	cron    *cron.Cron
	logger  *slog.Logger
	timeout time.Duration
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewScheduler constructs an idle scheduler. Jobs never overlap with their
// own previous run and panics are recovered and logged.
func NewScheduler(logger *slog.Logger, jobTimeout time.Duration) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if jobTimeout <= 0 {
		jobTimeout = time.Minute
	}
	logger = logger.With("component", "jobs")
	cronLogger := slogCronLogger{logger: logger}

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
		logger:  logger,
		timeout: jobTimeout,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Add registers fn under spec, a standard five field expression or a
// descriptor such as @hourly.
func (s *Scheduler) Add(name, spec string, fn func(ctx context.Context) error) error {
	_, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
		defer cancel()

		start := time.Now()
		logger := s.logger.With("job", name)
		if err := fn(ctx); err != nil {
			logger.ErrorContext(ctx, "job failed", "error", err, "duration", time.Since(start))
			return
		}
		logger.InfoContext(ctx, "job completed", "duration", time.Since(start))
	})
	if err != nil {
		return fmt.Errorf("schedule %s (%q): %w", name, spec, err)
	}
	return nil
}

// AddSessionPruning schedules pruner on spec.
func (s *Scheduler) AddSessionPruning(spec string, pruner SessionPruner) error {
	return s.Add("prune_sessions", spec, pruner.PruneExpiredSessions)
}

// Start runs the scheduler in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started", "jobs", len(s.cron.Entries()))
}

// Stop cancels running jobs and waits for them to return or ctx to be done.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.cancel()
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type slogCronLogger struct {
	logger *slog.Logger
}

func (l slogCronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l slogCronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, append([]interface{}{"error", err}, keysAndValues...)...)
}
