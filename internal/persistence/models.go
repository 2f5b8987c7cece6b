package persistence

import (
	"time"

	"github.com/example/leaveflow/internal/ledger"
)

// Leave request statuses as stored.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// User represents an account together with its leave balance.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         string
	LeaveBalance int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// LeaveRequest represents a stored leave request row.
type LeaveRequest struct {
	ID        string
	UserID    string
	StartDate ledger.Date
	EndDate   ledger.Date
	LeaveType string
	Reason    string
	Status    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// LeaveRequestWithOwner joins a leave request with its owner's identity.
type LeaveRequestWithOwner struct {
	LeaveRequest
	OwnerName  string
	OwnerEmail string
}

// Session represents an authentication session persisted for a user.
type Session struct {
	ID          string
	UserID      string
	Token       string
	Fingerprint string
	ExpiresAt   time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	RevokedAt   *time.Time
}
