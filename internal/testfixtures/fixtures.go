package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/leaveflow/internal/application"
	"github.com/example/leaveflow/internal/ledger"
	"github.com/example/leaveflow/internal/persistence"
)

var (
	userCounter    uint64
	requestCounter uint64
)

var referenceTime = time.Date(2024, time.January, 2, 15, 4, 5, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// ----------------------------- User fixtures -----------------------------

// UserFixture represents a deterministic account that can be materialised
// for application or persistence tests.
type UserFixture struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         application.Role
	LeaveBalance int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UserOption configures the generated user fixture.
type UserOption func(*UserFixture)

// NewUserFixture returns a deterministic employee with the default balance.
func NewUserFixture(opts ...UserOption) UserFixture {
	idx := atomic.AddUint64(&userCounter, 1)
	id := fmt.Sprintf("user-%03d", idx)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)
	fixture := UserFixture{
		ID:           id,
		Name:         fmt.Sprintf("User %03d", idx),
		Email:        fmt.Sprintf("%s@example.com", id),
		PasswordHash: fmt.Sprintf("hash-%03d", idx),
		Role:         application.RoleEmployee,
		LeaveBalance: application.DefaultLeaveBalance,
		CreatedAt:    created,
		UpdatedAt:    created,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithUserID overrides the identifier.
func WithUserID(id string) UserOption {
	return func(u *UserFixture) { u.ID = id }
}

// WithName overrides the display name.
func WithName(name string) UserOption {
	return func(u *UserFixture) { u.Name = name }
}

// WithEmail overrides the email address.
func WithEmail(email string) UserOption {
	return func(u *UserFixture) { u.Email = email }
}

// WithPasswordHash overrides the stored password hash.
func WithPasswordHash(hash string) UserOption {
	return func(u *UserFixture) { u.PasswordHash = hash }
}

// AsAdmin grants the administrator role.
func AsAdmin() UserOption {
	return func(u *UserFixture) { u.Role = application.RoleAdmin }
}

// WithBalance overrides the leave balance.
func WithBalance(balance int) UserOption {
	return func(u *UserFixture) { u.LeaveBalance = balance }
}

// Principal returns the principal acting as this user.
func (f UserFixture) Principal() application.Principal {
	return application.Principal{UserID: f.ID, Role: f.Role}
}

// Application converts the fixture into an application user.
func (f UserFixture) Application() application.User {
	return application.User{
		ID:           f.ID,
		Name:         f.Name,
		Email:        f.Email,
		Role:         f.Role,
		LeaveBalance: f.LeaveBalance,
		CreatedAt:    f.CreatedAt,
		UpdatedAt:    f.UpdatedAt,
	}
}

// Persistence converts the fixture into a stored user row.
func (f UserFixture) Persistence() persistence.User {
	return persistence.User{
		ID:           f.ID,
		Name:         f.Name,
		Email:        f.Email,
		PasswordHash: f.PasswordHash,
		Role:         string(f.Role),
		LeaveBalance: f.LeaveBalance,
		CreatedAt:    f.CreatedAt,
		UpdatedAt:    f.UpdatedAt,
	}
}

// -------------------------- Leave request fixtures --------------------------

// LeaveRequestFixture represents a deterministic leave request row.
type LeaveRequestFixture struct {
	ID        string
	UserID    string
	StartDate ledger.Date
	EndDate   ledger.Date
	LeaveType application.LeaveType
	Reason    string
	Status    application.LeaveStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// LeaveRequestOption configures the generated leave request fixture.
type LeaveRequestOption func(*LeaveRequestFixture)

// NewLeaveRequestFixture returns a pending three day annual leave owned by userID.
func NewLeaveRequestFixture(userID string, opts ...LeaveRequestOption) LeaveRequestFixture {
	idx := atomic.AddUint64(&requestCounter, 1)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)
	fixture := LeaveRequestFixture{
		ID:        fmt.Sprintf("leave-%03d", idx),
		UserID:    userID,
		StartDate: ledger.NewDate(2024, time.June, 3),
		EndDate:   ledger.NewDate(2024, time.June, 5),
		LeaveType: application.LeaveAnnual,
		Reason:    "Family trip",
		Status:    application.StatusPending,
		CreatedAt: created,
		UpdatedAt: created,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithDates overrides the inclusive date range.
func WithDates(start, end string) LeaveRequestOption {
	return func(r *LeaveRequestFixture) {
		r.StartDate = ledger.MustParseDate(start)
		r.EndDate = ledger.MustParseDate(end)
	}
}

// WithStatus overrides the status.
func WithStatus(status application.LeaveStatus) LeaveRequestOption {
	return func(r *LeaveRequestFixture) { r.Status = status }
}

// Days returns the number of days the fixture covers.
func (f LeaveRequestFixture) Days() int {
	return ledger.Days(f.StartDate, f.EndDate)
}

// Input returns the request fields as submission input.
func (f LeaveRequestFixture) Input() application.LeaveRequestInput {
	return application.LeaveRequestInput{
		StartDate: f.StartDate,
		EndDate:   f.EndDate,
		LeaveType: f.LeaveType,
		Reason:    f.Reason,
	}
}

// Persistence converts the fixture into a stored leave request row.
func (f LeaveRequestFixture) Persistence() persistence.LeaveRequest {
	return persistence.LeaveRequest{
		ID:        f.ID,
		UserID:    f.UserID,
		StartDate: f.StartDate,
		EndDate:   f.EndDate,
		LeaveType: string(f.LeaveType),
		Reason:    f.Reason,
		Status:    string(f.Status),
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.UpdatedAt,
	}
}
