package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/example/leaveflow/internal/persistence"
)

const leaveColumns = `lr.id, lr.user_id, lr.start_date, lr.end_date, lr.leave_type, lr.reason, lr.status, lr.created_at, lr.updated_at`

// LeaveRequestRepository implements persistence.LeaveRequestRepository using SQLite
type LeaveRequestRepository struct {
	pool   *ConnectionPool
	mapper *ErrorMapper
}

// NewLeaveRequestRepository creates a new SQLite leave request repository
func NewLeaveRequestRepository(pool *ConnectionPool) *LeaveRequestRepository {
	return &LeaveRequestRepository{
		pool:   pool,
		mapper: NewErrorMapper(),
	}
}

// GetLeaveRequest returns a request joined with its owner's identity.
func (r *LeaveRequestRepository) GetLeaveRequest(ctx context.Context, id string) (persistence.LeaveRequestWithOwner, error) {
	if id == "" {
		return persistence.LeaveRequestWithOwner{}, persistence.ErrNotFound
	}

	const query = `
		SELECT ` + leaveColumns + `, u.name, u.email
		FROM leave_requests lr
		JOIN users u ON u.id = lr.user_id
		WHERE lr.id = ?
	`
	request, err := scanLeaveRequestWithOwner(r.pool.DB().QueryRowContext(ctx, query, id))
	if err != nil {
		return persistence.LeaveRequestWithOwner{}, r.mapper.MapError(err)
	}
	return request, nil
}

// ListLeaveRequests returns requests matching filter, newest first.
func (r *LeaveRequestRepository) ListLeaveRequests(ctx context.Context, filter persistence.LeaveRequestFilter) ([]persistence.LeaveRequestWithOwner, error) {
	query, args := buildLeaveQuery(filter)

	rows, err := r.pool.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	requests := make([]persistence.LeaveRequestWithOwner, 0)
	for rows.Next() {
		request, err := scanLeaveRequestWithOwner(rows)
		if err != nil {
			return nil, r.mapper.MapError(err)
		}
		requests = append(requests, request)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return requests, nil
}

func buildLeaveQuery(filter persistence.LeaveRequestFilter) (string, []any) {
	var (
		conditions []string
		args       []any
	)
	if filter.UserID != "" {
		conditions = append(conditions, "lr.user_id = ?")
		args = append(args, filter.UserID)
	}
	if filter.Status != "" {
		conditions = append(conditions, "lr.status = ?")
		args = append(args, filter.Status)
	}
	if filter.ExcludeStatus != "" {
		conditions = append(conditions, "lr.status <> ?")
		args = append(args, filter.ExcludeStatus)
	}
	if !filter.OverlapsTo.IsZero() {
		conditions = append(conditions, "lr.start_date <= ?")
		args = append(args, filter.OverlapsTo)
	}
	if !filter.OverlapsFrom.IsZero() {
		conditions = append(conditions, "lr.end_date >= ?")
		args = append(args, filter.OverlapsFrom)
	}

	var b strings.Builder
	b.WriteString(`SELECT ` + leaveColumns + `, u.name, u.email FROM leave_requests lr JOIN users u ON u.id = lr.user_id`)
	if len(conditions) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(conditions, " AND "))
	}
	b.WriteString(" ORDER BY lr.created_at DESC, lr.id DESC")
	return b.String(), args
}

func scanLeaveRequest(row rowScanner, extra ...any) (persistence.LeaveRequest, error) {
	var request persistence.LeaveRequest
	var createdAt, updatedAt string

	dest := []any{
		&request.ID,
		&request.UserID,
		&request.StartDate,
		&request.EndDate,
		&request.LeaveType,
		&request.Reason,
		&request.Status,
		&createdAt,
		&updatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return persistence.LeaveRequest{}, err
	}

	var err error
	if request.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.LeaveRequest{}, fmt.Errorf("leave_requests.created_at: %w", err)
	}
	if request.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return persistence.LeaveRequest{}, fmt.Errorf("leave_requests.updated_at: %w", err)
	}
	return request, nil
}

func scanLeaveRequestWithOwner(row rowScanner) (persistence.LeaveRequestWithOwner, error) {
	var out persistence.LeaveRequestWithOwner
	request, err := scanLeaveRequest(row, &out.OwnerName, &out.OwnerEmail)
	if err != nil {
		return persistence.LeaveRequestWithOwner{}, err
	}
	out.LeaveRequest = request
	return out, nil
}
