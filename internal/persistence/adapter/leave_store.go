package adapter

import (
	"context"
	"time"

	"github.com/example/leaveflow/internal/application"
	"github.com/example/leaveflow/internal/persistence"
)

// LeaveBackend is what a storage engine provides for the leave ledger.
type LeaveBackend interface {
	persistence.LeaveRequestRepository
	persistence.Transactor
}

// LeaveStore adapts a LeaveBackend to application.LeaveStore.
type LeaveStore struct {
	backend LeaveBackend
}

// NewLeaveStore wraps backend.
func NewLeaveStore(backend LeaveBackend) *LeaveStore {
	return &LeaveStore{backend: backend}
}

// WithinTransaction runs fn in a storage transaction. Errors returned by fn
// are passed through untouched so that typed application errors survive.
func (s *LeaveStore) WithinTransaction(ctx context.Context, fn func(ctx context.Context, tx application.LeaveTx) error) error {
	return s.backend.WithinTransaction(ctx, func(ctx context.Context, tx persistence.LedgerTx) error {
		return fn(ctx, &leaveTx{tx: tx})
	})
}

func (s *LeaveStore) GetLeaveRequest(ctx context.Context, id string) (application.LeaveRequest, error) {
	model, err := s.backend.GetLeaveRequest(ctx, id)
	if err != nil {
		return application.LeaveRequest{}, MapError(err)
	}
	return toApplicationRequestWithOwner(model), nil
}

func (s *LeaveStore) ListLeaveRequests(ctx context.Context, query application.LeaveQuery) ([]application.LeaveRequest, error) {
	filter := persistence.LeaveRequestFilter{
		UserID:        query.UserID,
		Status:        string(query.Status),
		ExcludeStatus: string(query.ExcludeStatus),
	}
	if query.Overlapping != nil {
		filter.OverlapsFrom = query.Overlapping.Start
		filter.OverlapsTo = query.Overlapping.End
	}

	models, err := s.backend.ListLeaveRequests(ctx, filter)
	if err != nil {
		return nil, MapError(err)
	}
	requests := make([]application.LeaveRequest, 0, len(models))
	for _, model := range models {
		requests = append(requests, toApplicationRequestWithOwner(model))
	}
	return requests, nil
}

type leaveTx struct {
	tx persistence.LedgerTx
}

func (t *leaveTx) GetUser(ctx context.Context, id string) (application.User, error) {
	model, err := t.tx.GetUser(ctx, id)
	if err != nil {
		return application.User{}, MapError(err)
	}
	return ToApplicationUser(model), nil
}

func (t *leaveTx) GetLeaveRequest(ctx context.Context, id string) (application.LeaveRequest, error) {
	model, err := t.tx.GetLeaveRequest(ctx, id)
	if err != nil {
		return application.LeaveRequest{}, MapError(err)
	}
	return toApplicationRequest(model), nil
}

func (t *leaveTx) InsertLeaveRequest(ctx context.Context, request application.LeaveRequest) error {
	return MapError(t.tx.InsertLeaveRequest(ctx, toPersistenceRequest(request)))
}

func (t *leaveTx) UpdateLeaveRequest(ctx context.Context, request application.LeaveRequest) error {
	return MapError(t.tx.UpdateLeaveRequest(ctx, toPersistenceRequest(request)))
}

func (t *leaveTx) DeleteLeaveRequest(ctx context.Context, id string) error {
	return MapError(t.tx.DeleteLeaveRequest(ctx, id))
}

func (t *leaveTx) TransitionStatus(ctx context.Context, id string, from, to application.LeaveStatus, updatedAt time.Time) error {
	return MapError(t.tx.TransitionStatus(ctx, id, string(from), string(to), updatedAt))
}

func (t *leaveTx) AdjustBalance(ctx context.Context, userID string, delta int, updatedAt time.Time) (int, error) {
	balance, err := t.tx.AdjustBalance(ctx, userID, delta, updatedAt)
	if err != nil {
		return 0, MapError(err)
	}
	return balance, nil
}

func toApplicationRequest(model persistence.LeaveRequest) application.LeaveRequest {
	return application.LeaveRequest{
		ID:        model.ID,
		UserID:    model.UserID,
		StartDate: model.StartDate,
		EndDate:   model.EndDate,
		LeaveType: application.LeaveType(model.LeaveType),
		Reason:    model.Reason,
		Status:    application.LeaveStatus(model.Status),
		CreatedAt: model.CreatedAt,
		UpdatedAt: model.UpdatedAt,
	}
}

func toApplicationRequestWithOwner(model persistence.LeaveRequestWithOwner) application.LeaveRequest {
	request := toApplicationRequest(model.LeaveRequest)
	request.OwnerName = model.OwnerName
	request.OwnerEmail = model.OwnerEmail
	return request
}

func toPersistenceRequest(request application.LeaveRequest) persistence.LeaveRequest {
	return persistence.LeaveRequest{
		ID:        request.ID,
		UserID:    request.UserID,
		StartDate: request.StartDate,
		EndDate:   request.EndDate,
		LeaveType: string(request.LeaveType),
		Reason:    request.Reason,
		Status:    string(request.Status),
		CreatedAt: request.CreatedAt,
		UpdatedAt: request.UpdatedAt,
	}
}
