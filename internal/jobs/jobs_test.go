package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

type prunerStub struct {
	calls atomic.Int32
	err   error
}

func (p *prunerStub) PruneExpiredSessions(ctx context.Context) error {
	p.calls.Add(1)
	return p.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSchedulerRejectsInvalidSpec(t *testing.T) {
	t.Parallel()

	s := NewScheduler(discardLogger(), time.Second)
	err := s.AddSessionPruning("every tuesday", &prunerStub{})
	if err == nil || !strings.Contains(err.Error(), "prune_sessions") {
		t.Fatalf("expected schedule error naming the job, got %v", err)
	}
}

func TestSchedulerRunsJobs(t *testing.T) {
	t.Parallel()

	s := NewScheduler(discardLogger(), time.Second)
	pruner := &prunerStub{err: errors.New("transient")}
	if err := s.AddSessionPruning("@every 1s", pruner); err != nil {
		t.Fatalf("AddSessionPruning failed: %v", err)
	}

	s.Start()
	deadline := time.Now().Add(5 * time.Second)
	for pruner.calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if pruner.calls.Load() == 0 {
		t.Fatalf("expected the pruner to run at least once")
	}
}

func TestSchedulerJobContextIsCancelledOnStop(t *testing.T) {
	t.Parallel()

	s := NewScheduler(discardLogger(), time.Minute)
	started := make(chan struct{})
	finished := make(chan error, 4)
	err := s.Add("blocking", "@every 1s", func(ctx context.Context) error {
		select {
		case started <- struct{}{}:
		default:
		}
		<-ctx.Done()
		finished <- ctx.Err()
		return ctx.Err()
	})
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	s.Start()
	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatalf("job did not start")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if err := <-finished; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
