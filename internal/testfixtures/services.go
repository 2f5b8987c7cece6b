package testfixtures

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/example/leaveflow/internal/application"
	"github.com/example/leaveflow/internal/persistence/adapter"
)

// FastArgon2idParams keeps password hashing cheap in tests.
var FastArgon2idParams = application.Argon2idParams{
	Memory:      1024,
	Iterations:  1,
	Parallelism: 1,
	SaltLength:  8,
	KeyLength:   16,
}

// RecordingNotifier captures leave events in memory.
type RecordingNotifier struct {
	mu     sync.Mutex
	events []application.LeaveEvent
	err    error
}

// NewRecordingNotifier constructs an empty notifier.
func NewRecordingNotifier() *RecordingNotifier {
	return &RecordingNotifier{}
}

// FailWith makes subsequent Notify calls return err after recording the event.
func (n *RecordingNotifier) FailWith(err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.err = err
}

// Notify implements application.Notifier.
func (n *RecordingNotifier) Notify(_ context.Context, event application.LeaveEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return n.err
}

// Events returns a copy of the recorded events.
func (n *RecordingNotifier) Events() []application.LeaveEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]application.LeaveEvent, len(n.events))
	copy(out, n.events)
	return out
}

// Kinds returns the kinds of the recorded events in order.
func (n *RecordingNotifier) Kinds() []application.LeaveEventKind {
	events := n.Events()
	kinds := make([]application.LeaveEventKind, len(events))
	for i, event := range events {
		kinds[i] = event.Kind
	}
	return kinds
}

// ServiceFactory assists tests with constructing application services using
// deterministic identifiers and clocks.
type ServiceFactory struct {
	Clock          *Clock
	IDGenerator    *IDGenerator
	TokenGenerator *IDGenerator
	Notifier       *RecordingNotifier
	WithdrawPolicy application.WithdrawPolicy
	Observer       application.LedgerObserver
	SessionTTL     time.Duration
	Logger         *slog.Logger
}

// ServiceFactoryOption configures a ServiceFactory instance.
type ServiceFactoryOption func(*ServiceFactory)

// NewServiceFactory constructs a ServiceFactory with defaults.
func NewServiceFactory(opts ...ServiceFactoryOption) *ServiceFactory {
	factory := &ServiceFactory{
		Clock:          NewTickingClock(time.Time{}, time.Second),
		IDGenerator:    NewIDGenerator("id"),
		TokenGenerator: NewIDGenerator("token"),
		Notifier:       NewRecordingNotifier(),
		WithdrawPolicy: application.WithdrawRefundAlways,
		SessionTTL:     24 * time.Hour,
		Logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(factory)
	}
	if factory.Clock == nil {
		factory.Clock = NewClock(time.Time{})
	}
	if factory.IDGenerator == nil {
		factory.IDGenerator = NewIDGenerator("id")
	}
	if factory.TokenGenerator == nil {
		factory.TokenGenerator = NewIDGenerator("token")
	}
	if factory.Notifier == nil {
		factory.Notifier = NewRecordingNotifier()
	}
	return factory
}

// WithClock overrides the clock used by the factory.
func WithClock(clock *Clock) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Clock = clock
	}
}

// WithIDGenerator overrides the identifier generator used by the factory.
func WithIDGenerator(generator *IDGenerator) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.IDGenerator = generator
	}
}

// WithWithdrawPolicy overrides the withdraw policy of the leave service.
func WithWithdrawPolicy(policy application.WithdrawPolicy) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.WithdrawPolicy = policy
	}
}

// WithObserver attaches a ledger observer to the leave service.
func WithObserver(observer application.LedgerObserver) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Observer = observer
	}
}

// Services bundles the application services wired over one harness.
type Services struct {
	Users    *application.UserService
	Leave    *application.LeaveService
	Auth     *application.AuthService
	Notifier *RecordingNotifier
	Harness  *SQLiteHarness
}

// NewServices wires every application service over a fresh SQLite harness.
func (f *ServiceFactory) NewServices(tb testing.TB) *Services {
	tb.Helper()
	return f.NewServicesOver(NewSQLiteHarness(tb))
}

// NewServicesOver wires every application service over harness.
func (f *ServiceFactory) NewServicesOver(harness *SQLiteHarness) *Services {
	store := harness.Store
	now := f.Clock.NowFunc()

	users := application.NewUserServiceWithLogger(
		adapter.NewUserRepository(store),
		application.NewPasswordHasher(FastArgon2idParams),
		f.IDGenerator.NextFunc(),
		now,
		application.DefaultLeaveBalance,
		f.Logger,
	)
	leave := application.NewLeaveServiceWithConfig(
		adapter.NewLeaveStore(store),
		f.Notifier,
		f.IDGenerator.NextFunc(),
		now,
		application.LeaveServiceConfig{
			WithdrawPolicy: f.WithdrawPolicy,
			Observer:       f.Observer,
			Logger:         f.Logger,
		},
	)
	auth := application.NewAuthServiceWithLogger(
		adapter.NewCredentialStore(store),
		adapter.NewSessionRepository(store),
		application.VerifyPassword,
		f.TokenGenerator.NextFunc(),
		now,
		f.SessionTTL,
		f.Logger,
	)

	return &Services{
		Users:    users,
		Leave:    leave,
		Auth:     auth,
		Notifier: f.Notifier,
		Harness:  harness,
	}
}
