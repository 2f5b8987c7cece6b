package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/example/leaveflow/internal/persistence"
)

// ledgerTx implements persistence.LedgerTx on top of one SQL transaction.
type ledgerTx struct {
	tx     *sql.Tx
	mapper *ErrorMapper
}

func (l *ledgerTx) GetUser(ctx context.Context, id string) (persistence.User, error) {
	return getUser(ctx, l.tx, l.mapper, id)
}

func (l *ledgerTx) GetLeaveRequest(ctx context.Context, id string) (persistence.LeaveRequest, error) {
	if id == "" {
		return persistence.LeaveRequest{}, persistence.ErrNotFound
	}
	request, err := scanLeaveRequest(l.tx.QueryRowContext(ctx, `SELECT `+leaveColumns+` FROM leave_requests lr WHERE lr.id = ?`, id))
	if err != nil {
		return persistence.LeaveRequest{}, l.mapper.MapError(err)
	}
	return request, nil
}

func (l *ledgerTx) InsertLeaveRequest(ctx context.Context, request persistence.LeaveRequest) error {
	if request.ID == "" || request.UserID == "" {
		return persistence.ErrConstraintViolation
	}

	const query = `
		INSERT INTO leave_requests (id, user_id, start_date, end_date, leave_type, reason, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := l.tx.ExecContext(ctx, query,
		request.ID,
		request.UserID,
		request.StartDate,
		request.EndDate,
		request.LeaveType,
		request.Reason,
		request.Status,
		formatTime(request.CreatedAt),
		formatTime(request.UpdatedAt),
	)
	return l.mapper.MapError(err)
}

func (l *ledgerTx) UpdateLeaveRequest(ctx context.Context, request persistence.LeaveRequest) error {
	const query = `
		UPDATE leave_requests
		SET start_date = ?, end_date = ?, leave_type = ?, reason = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`
	result, err := l.tx.ExecContext(ctx, query,
		request.StartDate,
		request.EndDate,
		request.LeaveType,
		request.Reason,
		formatTime(request.UpdatedAt),
		request.ID,
		persistence.StatusPending,
	)
	if err != nil {
		return l.mapper.MapError(err)
	}
	return l.requireRow(ctx, result, request.ID)
}

func (l *ledgerTx) DeleteLeaveRequest(ctx context.Context, id string) error {
	result, err := l.tx.ExecContext(ctx, `DELETE FROM leave_requests WHERE id = ?`, id)
	if err != nil {
		return l.mapper.MapError(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

func (l *ledgerTx) TransitionStatus(ctx context.Context, id, from, to string, updatedAt time.Time) error {
	result, err := l.tx.ExecContext(ctx,
		`UPDATE leave_requests SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		to, formatTime(updatedAt), id, from,
	)
	if err != nil {
		return l.mapper.MapError(err)
	}
	return l.requireRow(ctx, result, id)
}

// AdjustBalance applies delta with a single guarded UPDATE so the balance can
// never be observed below zero, even across concurrent transactions.
func (l *ledgerTx) AdjustBalance(ctx context.Context, userID string, delta int, updatedAt time.Time) (int, error) {
	const query = `
		UPDATE users
		SET leave_balance = leave_balance + ?, updated_at = ?
		WHERE id = ? AND leave_balance + ? >= 0
		RETURNING leave_balance
	`
	var balance int
	err := l.tx.QueryRowContext(ctx, query, delta, formatTime(updatedAt), userID, delta).Scan(&balance)
	if err == nil {
		return balance, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, l.mapper.MapError(err)
	}

	if _, getErr := l.GetUser(ctx, userID); getErr != nil {
		return 0, getErr
	}
	return 0, persistence.ErrInsufficientBalance
}

// requireRow distinguishes a missing row from a failed status guard.
func (l *ledgerTx) requireRow(ctx context.Context, result sql.Result, id string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}
	if _, err := l.GetLeaveRequest(ctx, id); err != nil {
		return err
	}
	return persistence.ErrStateConflict
}
