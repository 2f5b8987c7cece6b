package application

import (
	"time"

	"github.com/example/leaveflow/internal/ledger"
)

// Role is the tagged capability of an account.
type Role string

const (
	// RoleAdmin may decide on requests and manage users.
	RoleAdmin Role = "admin"
	// RoleEmployee may manage their own requests only.
	RoleEmployee Role = "employee"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleEmployee
}

// Principal represents the authenticated user invoking a service method.
type Principal struct {
	UserID string
	Role   Role
}

// IsAdmin reports whether the principal holds the admin role.
func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// LeaveStatus is the lifecycle state of a leave request.
type LeaveStatus string

const (
	StatusPending  LeaveStatus = "pending"
	StatusApproved LeaveStatus = "approved"
	StatusRejected LeaveStatus = "rejected"
)

// Valid reports whether s is a known status.
func (s LeaveStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// LeaveType classifies a leave request.
type LeaveType string

const (
	LeaveAnnual    LeaveType = "annual"
	LeaveSick      LeaveType = "sick"
	LeavePersonal  LeaveType = "personal"
	LeaveEmergency LeaveType = "emergency"
)

// WithdrawPolicy decides how withdrawing a request affects the balance.
type WithdrawPolicy string

const (
	// WithdrawRefundAlways credits the request's days whatever its status.
	WithdrawRefundAlways WithdrawPolicy = "refund_always"
	// WithdrawSkipRejected credits unless the request was already rejected.
	WithdrawSkipRejected WithdrawPolicy = "skip_rejected"
	// WithdrawPendingOnly only allows withdrawing pending requests.
	WithdrawPendingOnly WithdrawPolicy = "pending_only"
)

// Valid reports whether p is a known policy.
func (p WithdrawPolicy) Valid() bool {
	switch p {
	case WithdrawRefundAlways, WithdrawSkipRejected, WithdrawPendingOnly:
		return true
	}
	return false
}

// User represents an account exposed by the application services.
type User struct {
	ID           string
	Name         string
	Email        string
	Role         Role
	LeaveBalance int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UserCredentials models the authentication attributes persisted for a user.
type UserCredentials struct {
	User         User
	PasswordHash string
	Disabled     bool
}

// NewUser is the record handed to storage when an account is created.
type NewUser struct {
	User
	PasswordHash string
}

// RegisterInput captures self-service registration fields.
type RegisterInput struct {
	Name     string `validate:"required,max=100"`
	Email    string `validate:"required,email,max=254"`
	Password string `validate:"required,min=8,max=128"`
}

// CreateUserInput captures administrator supplied account fields.
type CreateUserInput struct {
	Name         string `validate:"required,max=100"`
	Email        string `validate:"required,email,max=254"`
	Password     string `validate:"required,min=8,max=128"`
	Role         Role   `validate:"required,oneof=admin employee"`
	LeaveBalance *int   `validate:"omitempty,min=0,max=366"`
}

// CreateUserParams wraps the data required to create a user.
type CreateUserParams struct {
	Principal Principal
	Input     CreateUserInput
}

// SetBalanceParams wraps an administrative balance override.
type SetBalanceParams struct {
	Principal Principal
	UserID    string
	Balance   int
}

// LeaveRequest is a leave request, optionally joined with its owner.
type LeaveRequest struct {
	ID         string
	UserID     string
	StartDate  ledger.Date
	EndDate    ledger.Date
	LeaveType  LeaveType
	Reason     string
	Status     LeaveStatus
	CreatedAt  time.Time
	UpdatedAt  time.Time
	OwnerName  string
	OwnerEmail string
}

// Span returns the request's inclusive date range.
func (r LeaveRequest) Span() ledger.Span {
	return ledger.Span{Start: r.StartDate, End: r.EndDate}
}

// Days returns the request's day cost.
func (r LeaveRequest) Days() int {
	return ledger.Days(r.StartDate, r.EndDate)
}

// LeaveRequestInput captures caller provided request fields.
type LeaveRequestInput struct {
	StartDate ledger.Date `validate:"required"`
	EndDate   ledger.Date `validate:"required"`
	LeaveType LeaveType   `validate:"required,oneof=annual sick personal emergency"`
	Reason    string      `validate:"required,max=1000"`
}

// SubmitLeaveParams wraps the data required to submit a request.
type SubmitLeaveParams struct {
	Principal Principal
	Input     LeaveRequestInput
}

// AmendLeaveParams wraps the data required to amend a pending request.
type AmendLeaveParams struct {
	Principal Principal
	RequestID string
	Input     LeaveRequestInput
}

// LeaveResult is returned by balance-affecting operations.
type LeaveResult struct {
	Request LeaveRequest
	// Balance is the owner's balance after the operation committed.
	Balance int
}

// ListAllParams filters the administrative request listing.
type ListAllParams struct {
	Principal Principal
	Status    LeaveStatus
}

// LeaveQuery narrows a storage listing. Zero fields do not filter.
type LeaveQuery struct {
	UserID        string
	Status        LeaveStatus
	ExcludeStatus LeaveStatus
	Overlapping   *ledger.Span
}

// CalendarParams requests the per-day calendar for a date window.
type CalendarParams struct {
	Principal Principal
	From      ledger.Date
	To        ledger.Date
}

// CalendarEntry is one day of one request inside a calendar window.
type CalendarEntry struct {
	Date      ledger.Date
	RequestID string
	UserID    string
	OwnerName string
	LeaveType LeaveType
	Status    LeaveStatus
}

// LeaveEventKind names the notification triggers.
type LeaveEventKind string

const (
	EventNewRequest LeaveEventKind = "new_request"
	EventApproved   LeaveEventKind = "approved"
	EventRejected   LeaveEventKind = "rejected"
)

// LeaveEvent is the record handed to the notification sink.
type LeaveEvent struct {
	Kind             LeaveEventKind
	RequestID        string
	EmployeeName     string
	StartDate        ledger.Date
	EndDate          ledger.Date
	LeaveType        LeaveType
	Reason           string
	Days             int
	RemainingBalance int
}

// Session represents an authenticated session issued to a user.
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

// AuthenticateParams captures the data required to authenticate a user.
type AuthenticateParams struct {
	Email       string
	Password    string
	Fingerprint string
}

// AuthenticateResult captures the outcome of a successful authentication attempt.
type AuthenticateResult struct {
	User    User
	Session Session
}

// RefreshSessionParams captures the data required to refresh an existing session.
type RefreshSessionParams struct {
	Token       string
	Fingerprint string
}

// RefreshSessionResult captures the outcome of rotating a session token.
type RefreshSessionResult struct {
	Session Session
}
