package postgres

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/example/leaveflow/internal/persistence"
)

// ledgerTx implements persistence.LedgerTx on one GORM transaction. Reading
// a user locks its row until the transaction ends.
type ledgerTx struct {
	db *gorm.DB
}

func (l *ledgerTx) GetUser(ctx context.Context, id string) (persistence.User, error) {
	var model userModel
	err := l.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&model, "id = ?", id).Error
	if err != nil {
		return persistence.User{}, mapError(err)
	}
	return fromUserModel(model), nil
}

func (l *ledgerTx) GetLeaveRequest(ctx context.Context, id string) (persistence.LeaveRequest, error) {
	if id == "" {
		return persistence.LeaveRequest{}, persistence.ErrNotFound
	}
	var model leaveRequestModel
	err := l.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&model, "id = ?", id).Error
	if err != nil {
		return persistence.LeaveRequest{}, mapError(err)
	}
	return fromLeaveModel(model), nil
}

func (l *ledgerTx) InsertLeaveRequest(ctx context.Context, request persistence.LeaveRequest) error {
	if request.ID == "" || request.UserID == "" {
		return persistence.ErrConstraintViolation
	}
	model := toLeaveModel(request)
	return mapError(l.db.WithContext(ctx).Omit("Owner").Create(&model).Error)
}

func (l *ledgerTx) UpdateLeaveRequest(ctx context.Context, request persistence.LeaveRequest) error {
	result := l.db.WithContext(ctx).
		Model(&leaveRequestModel{}).
		Where("id = ? AND status = ?", request.ID, persistence.StatusPending).
		Updates(map[string]any{
			"start_date": request.StartDate,
			"end_date":   request.EndDate,
			"leave_type": request.LeaveType,
			"reason":     request.Reason,
			"updated_at": request.UpdatedAt.UTC(),
		})
	if result.Error != nil {
		return mapError(result.Error)
	}
	return l.requireRow(ctx, result.RowsAffected, request.ID)
}

func (l *ledgerTx) DeleteLeaveRequest(ctx context.Context, id string) error {
	result := l.db.WithContext(ctx).Where("id = ?", id).Delete(&leaveRequestModel{})
	if result.Error != nil {
		return mapError(result.Error)
	}
	if result.RowsAffected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

func (l *ledgerTx) TransitionStatus(ctx context.Context, id, from, to string, updatedAt time.Time) error {
	result := l.db.WithContext(ctx).
		Model(&leaveRequestModel{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]any{"status": to, "updated_at": updatedAt.UTC()})
	if result.Error != nil {
		return mapError(result.Error)
	}
	return l.requireRow(ctx, result.RowsAffected, id)
}

// AdjustBalance applies delta with one guarded UPDATE; the row lock taken by
// GetUser or by the UPDATE itself serializes concurrent adjustments.
func (l *ledgerTx) AdjustBalance(ctx context.Context, userID string, delta int, updatedAt time.Time) (int, error) {
	var model userModel
	result := l.db.WithContext(ctx).
		Model(&model).
		Clauses(clause.Returning{Columns: []clause.Column{{Name: "leave_balance"}}}).
		Where("id = ? AND leave_balance + ? >= 0", userID, delta).
		Updates(map[string]any{
			"leave_balance": gorm.Expr("leave_balance + ?", delta),
			"updated_at":    updatedAt.UTC(),
		})
	if result.Error != nil {
		return 0, mapError(result.Error)
	}
	if result.RowsAffected > 0 {
		return model.LeaveBalance, nil
	}
	if _, err := l.GetUser(ctx, userID); err != nil {
		return 0, err
	}
	return 0, persistence.ErrInsufficientBalance
}

func (l *ledgerTx) requireRow(ctx context.Context, affected int64, id string) error {
	if affected > 0 {
		return nil
	}
	if _, err := l.GetLeaveRequest(ctx, id); err != nil {
		return err
	}
	return persistence.ErrStateConflict
}
