package persistence

import (
	"context"
	"time"

	"github.com/example/leaveflow/internal/ledger"
)

// UserRepository exposes account operations outside of the ledger.
type UserRepository interface {
	CreateUser(ctx context.Context, user User) error
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
	SetLeaveBalance(ctx context.Context, id string, balance int, updatedAt time.Time) (User, error)
}

// LeaveRequestFilter narrows leave request listings. Zero fields do not filter.
type LeaveRequestFilter struct {
	UserID        string
	Status        string
	ExcludeStatus string
	// OverlapsFrom and OverlapsTo select requests sharing at least one day with the range.
	OverlapsFrom ledger.Date
	OverlapsTo   ledger.Date
}

// LeaveRequestRepository exposes read access to leave requests. Results are
// ordered newest first by creation time.
type LeaveRequestRepository interface {
	GetLeaveRequest(ctx context.Context, id string) (LeaveRequestWithOwner, error)
	ListLeaveRequests(ctx context.Context, filter LeaveRequestFilter) ([]LeaveRequestWithOwner, error)
}

// LedgerTx is the set of mutations available inside one ledger transaction.
type LedgerTx interface {
	GetUser(ctx context.Context, id string) (User, error)
	GetLeaveRequest(ctx context.Context, id string) (LeaveRequest, error)
	InsertLeaveRequest(ctx context.Context, request LeaveRequest) error
	// UpdateLeaveRequest rewrites dates, type and reason of a pending request.
	// It returns ErrStateConflict when the row is no longer pending.
	UpdateLeaveRequest(ctx context.Context, request LeaveRequest) error
	DeleteLeaveRequest(ctx context.Context, id string) error
	// TransitionStatus moves a request from one status to another, returning
	// ErrStateConflict when the current status is not from.
	TransitionStatus(ctx context.Context, id, from, to string, updatedAt time.Time) error
	// AdjustBalance adds delta to the user's balance as a single conditional
	// update and returns the new balance. It returns ErrInsufficientBalance
	// when the result would be negative.
	AdjustBalance(ctx context.Context, userID string, delta int, updatedAt time.Time) (int, error)
}

// Transactor runs fn inside a storage transaction, committing when fn returns
// nil and rolling back otherwise.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context, tx LedgerTx) error) error
}

// SessionRepository stores authentication session state.
type SessionRepository interface {
	CreateSession(ctx context.Context, session Session) (Session, error)
	GetSession(ctx context.Context, token string) (Session, error)
	UpdateSession(ctx context.Context, session Session) (Session, error)
	RevokeSession(ctx context.Context, token string, revokedAt time.Time) (Session, error)
	DeleteExpiredSessions(ctx context.Context, reference time.Time) error
}
