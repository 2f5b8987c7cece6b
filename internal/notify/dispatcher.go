package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/example/leaveflow/internal/application"
	"github.com/example/leaveflow/internal/logging"
)

var (
	// ErrQueueFull is returned when an event is dropped because the queue is full.
	ErrQueueFull = errors.New("notification queue full")
	// ErrClosed is returned for events offered after Close.
	ErrClosed = errors.New("notification dispatcher closed")
)

// Observer records delivery outcomes.
type Observer interface {
	ObserveNotification(outcome string)
	SetQueueDepth(depth int)
}

// Delivery outcomes reported to the Observer.
const (
	OutcomeSent    = "sent"
	OutcomeFailed  = "failed"
	OutcomeDropped = "dropped"
)

// DispatcherConfig tunes a Dispatcher.
type DispatcherConfig struct {
	QueueSize int
	// Timeout bounds each delivery attempt.
	Timeout  time.Duration
	Logger   *slog.Logger
	Observer Observer
}

type job struct {
	ctx   context.Context
	event application.LeaveEvent
}

// Dispatcher implements application.Notifier with a bounded queue drained by
// a single worker goroutine. Notify never blocks.
type Dispatcher struct {
	sender   Sender
	queue    chan job
	timeout  time.Duration
	logger   *slog.Logger
	observer Observer

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// NewDispatcher starts the worker. Callers must Close the dispatcher to
// drain pending events.
func NewDispatcher(sender Sender, cfg DispatcherConfig) *Dispatcher {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	d := &Dispatcher{
		sender:   sender,
		queue:    make(chan job, cfg.QueueSize),
		timeout:  cfg.Timeout,
		logger:   logger.With("component", "notify"),
		observer: cfg.Observer,
		done:     make(chan struct{}),
	}
	go d.run()
	return d
}

// Notify enqueues event for delivery. The enqueue context's values are kept
// for logging but its cancellation is not propagated to the delivery.
func (d *Dispatcher) Notify(ctx context.Context, event application.LeaveEvent) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return ErrClosed
	}

	select {
	case d.queue <- job{ctx: context.WithoutCancel(ctx), event: event}:
		d.setDepth()
		return nil
	default:
		d.observe(OutcomeDropped)
		d.loggerFor(ctx).WarnContext(ctx, "notification dropped",
			"event", event.Kind,
			"request_id", event.RequestID,
			"queue_size", cap(d.queue),
		)
		return ErrQueueFull
	}
}

// Close stops accepting events and waits until queued events are delivered
// or ctx is done.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for j := range d.queue {
		d.setDepth()
		d.deliver(j)
	}
}

func (d *Dispatcher) deliver(j job) {
	ctx, cancel := context.WithTimeout(j.ctx, d.timeout)
	defer cancel()

	logger := d.loggerFor(ctx).With("event", j.event.Kind, "request_id", j.event.RequestID)
	if err := d.sender.Send(ctx, j.event); err != nil {
		d.observe(OutcomeFailed)
		logger.WarnContext(ctx, "notification delivery failed", "error", err)
		return
	}
	d.observe(OutcomeSent)
	logger.DebugContext(ctx, "notification delivered")
}

func (d *Dispatcher) loggerFor(ctx context.Context) *slog.Logger {
	if logger := logging.FromContext(ctx); logger != nil {
		return logger.With("component", "notify")
	}
	return d.logger
}

func (d *Dispatcher) observe(outcome string) {
	if d.observer != nil {
		d.observer.ObserveNotification(outcome)
	}
}

func (d *Dispatcher) setDepth() {
	if d.observer != nil {
		d.observer.SetQueueDepth(len(d.queue))
	}
}
