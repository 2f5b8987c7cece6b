package postgres

import (
	"time"

	"github.com/example/leaveflow/internal/ledger"
	"github.com/example/leaveflow/internal/persistence"
)

type userModel struct {
	ID           string    `gorm:"primaryKey;type:text"`
	Name         string    `gorm:"type:text;not null"`
	Email        string    `gorm:"type:text;not null;uniqueIndex"`
	PasswordHash string    `gorm:"type:text;not null"`
	Role         string    `gorm:"type:text;not null;check:chk_users_role,role IN ('admin','employee')"`
	LeaveBalance int       `gorm:"not null;default:25;check:chk_users_leave_balance,leave_balance >= 0"`
	CreatedAt    time.Time `gorm:"not null;autoCreateTime:false"`
	UpdatedAt    time.Time `gorm:"not null;autoUpdateTime:false"`
}

func (userModel) TableName() string { return "users" }

type leaveRequestModel struct {
	ID        string      `gorm:"primaryKey;type:text"`
	UserID    string      `gorm:"type:text;not null;index"`
	Owner     *userModel  `gorm:"foreignKey:UserID;references:ID;constraint:OnDelete:CASCADE"`
	StartDate ledger.Date `gorm:"type:date;not null;index:idx_leave_requests_dates,priority:1"`
	EndDate   ledger.Date `gorm:"type:date;not null;index:idx_leave_requests_dates,priority:2;check:chk_leave_requests_dates,end_date >= start_date"`
	LeaveType string      `gorm:"type:text;not null;check:chk_leave_requests_type,leave_type IN ('annual','sick','personal','emergency')"`
	Reason    string      `gorm:"type:text;not null"`
	Status    string      `gorm:"type:text;not null;index;check:chk_leave_requests_status,status IN ('pending','approved','rejected')"`
	CreatedAt time.Time   `gorm:"not null;autoCreateTime:false"`
	UpdatedAt time.Time   `gorm:"not null;autoUpdateTime:false"`
}

func (leaveRequestModel) TableName() string { return "leave_requests" }

type sessionModel struct {
	ID          string     `gorm:"primaryKey;type:text"`
	UserID      string     `gorm:"type:text;not null;index"`
	Owner       *userModel `gorm:"foreignKey:UserID;references:ID;constraint:OnDelete:CASCADE"`
	Token       string     `gorm:"type:text;not null;uniqueIndex"`
	Fingerprint string     `gorm:"type:text;not null;default:''"`
	ExpiresAt   time.Time  `gorm:"not null;index"`
	RevokedAt   *time.Time
	CreatedAt   time.Time `gorm:"not null;autoCreateTime:false"`
	UpdatedAt   time.Time `gorm:"not null;autoUpdateTime:false"`
}

func (sessionModel) TableName() string { return "sessions" }

func fromUserModel(m userModel) persistence.User {
	return persistence.User{
		ID:           m.ID,
		Name:         m.Name,
		Email:        m.Email,
		PasswordHash: m.PasswordHash,
		Role:         m.Role,
		LeaveBalance: m.LeaveBalance,
		CreatedAt:    m.CreatedAt.UTC(),
		UpdatedAt:    m.UpdatedAt.UTC(),
	}
}

func toUserModel(u persistence.User) userModel {
	return userModel{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Role:         u.Role,
		LeaveBalance: u.LeaveBalance,
		CreatedAt:    u.CreatedAt.UTC(),
		UpdatedAt:    u.UpdatedAt.UTC(),
	}
}

func fromLeaveModel(m leaveRequestModel) persistence.LeaveRequest {
	return persistence.LeaveRequest{
		ID:        m.ID,
		UserID:    m.UserID,
		StartDate: m.StartDate,
		EndDate:   m.EndDate,
		LeaveType: m.LeaveType,
		Reason:    m.Reason,
		Status:    m.Status,
		CreatedAt: m.CreatedAt.UTC(),
		UpdatedAt: m.UpdatedAt.UTC(),
	}
}

func fromLeaveModelWithOwner(m leaveRequestModel) persistence.LeaveRequestWithOwner {
	out := persistence.LeaveRequestWithOwner{LeaveRequest: fromLeaveModel(m)}
	if m.Owner != nil {
		out.OwnerName = m.Owner.Name
		out.OwnerEmail = m.Owner.Email
	}
	return out
}

func toLeaveModel(r persistence.LeaveRequest) leaveRequestModel {
	return leaveRequestModel{
		ID:        r.ID,
		UserID:    r.UserID,
		StartDate: r.StartDate,
		EndDate:   r.EndDate,
		LeaveType: r.LeaveType,
		Reason:    r.Reason,
		Status:    r.Status,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

func fromSessionModel(m sessionModel) persistence.Session {
	s := persistence.Session{
		ID:          m.ID,
		UserID:      m.UserID,
		Token:       m.Token,
		Fingerprint: m.Fingerprint,
		ExpiresAt:   m.ExpiresAt.UTC(),
		CreatedAt:   m.CreatedAt.UTC(),
		UpdatedAt:   m.UpdatedAt.UTC(),
	}
	if m.RevokedAt != nil {
		revoked := m.RevokedAt.UTC()
		s.RevokedAt = &revoked
	}
	return s
}

func toSessionModel(s persistence.Session) sessionModel {
	m := sessionModel{
		ID:          s.ID,
		UserID:      s.UserID,
		Token:       s.Token,
		Fingerprint: s.Fingerprint,
		ExpiresAt:   s.ExpiresAt.UTC(),
		CreatedAt:   s.CreatedAt.UTC(),
		UpdatedAt:   s.UpdatedAt.UTC(),
	}
	if s.RevokedAt != nil {
		revoked := s.RevokedAt.UTC()
		m.RevokedAt = &revoked
	}
	return m
}
