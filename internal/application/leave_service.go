package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/example/leaveflow/internal/ledger"
)

// LeaveStore is the storage contract of the leave ledger.
type LeaveStore interface {
	// WithinTransaction runs fn atomically; any error rolls back every mutation made through tx.
	WithinTransaction(ctx context.Context, fn func(ctx context.Context, tx LeaveTx) error) error
	// GetLeaveRequest returns a request joined with its owner.
	GetLeaveRequest(ctx context.Context, id string) (LeaveRequest, error)
	// ListLeaveRequests returns joined requests newest first.
	ListLeaveRequests(ctx context.Context, query LeaveQuery) ([]LeaveRequest, error)
}

// LeaveTx exposes the mutations available inside one ledger transaction.
type LeaveTx interface {
	GetUser(ctx context.Context, id string) (User, error)
	GetLeaveRequest(ctx context.Context, id string) (LeaveRequest, error)
	InsertLeaveRequest(ctx context.Context, request LeaveRequest) error
	UpdateLeaveRequest(ctx context.Context, request LeaveRequest) error
	DeleteLeaveRequest(ctx context.Context, id string) error
	TransitionStatus(ctx context.Context, id string, from, to LeaveStatus, updatedAt time.Time) error
	// AdjustBalance applies delta as one conditional update and returns the
	// resulting balance, failing with ErrInsufficientBalance below zero.
	AdjustBalance(ctx context.Context, userID string, delta int, updatedAt time.Time) (int, error)
}

// Notifier receives leave events once the originating operation committed.
type Notifier interface {
	Notify(ctx context.Context, event LeaveEvent) error
}

// LedgerObserver records the outcome of ledger operations.
type LedgerObserver interface {
	ObserveLedger(operation, outcome string, balanceDelta int)
}

// LeaveServiceConfig carries the optional collaborators of a LeaveService.
type LeaveServiceConfig struct {
	WithdrawPolicy WithdrawPolicy
	Observer       LedgerObserver
	Logger         *slog.Logger
}

// LeaveService implements the leave ledger: every operation that moves days
// in or out of a balance, and the read models around it.
type LeaveService struct {
	store       LeaveStore
	notifier    Notifier
	observer    LedgerObserver
	policy      WithdrawPolicy
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewLeaveService wires dependencies for the leave service with default configuration.
func NewLeaveService(store LeaveStore, notifier Notifier, idGenerator func() string, now func() time.Time) *LeaveService {
	return NewLeaveServiceWithConfig(store, notifier, idGenerator, now, LeaveServiceConfig{})
}

// NewLeaveServiceWithConfig wires dependencies for the leave service.
func NewLeaveServiceWithConfig(store LeaveStore, notifier Notifier, idGenerator func() string, now func() time.Time, cfg LeaveServiceConfig) *LeaveService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	policy := cfg.WithdrawPolicy
	if !policy.Valid() {
		policy = WithdrawRefundAlways
	}
	return &LeaveService{
		store:       store,
		notifier:    notifier,
		observer:    cfg.Observer,
		policy:      policy,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(cfg.Logger),
	}
}

// WithdrawPolicy reports the policy in effect.
func (s *LeaveService) WithdrawPolicy() WithdrawPolicy {
	if s == nil {
		return WithdrawRefundAlways
	}
	return s.policy
}

func (s *LeaveService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "LeaveService", operation, attrs...)
}

func (s *LeaveService) ready() error {
	if s == nil {
		return fmt.Errorf("LeaveService is nil")
	}
	if s.store == nil {
		return fmt.Errorf("leave store not configured")
	}
	return nil
}

func (s *LeaveService) observe(operation string, err error, delta int) {
	if s == nil || s.observer == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = ErrorKind(err)
		delta = 0
	}
	s.observer.ObserveLedger(operation, outcome, delta)
}

func (s *LeaveService) notify(ctx context.Context, logger *slog.Logger, event LeaveEvent) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, event); err != nil {
		logger.WarnContext(ctx, "leave notification failed", "event", event.Kind, "error", err)
	}
}

// Submit files a new pending request for the principal and debits its days.
func (s *LeaveService) Submit(ctx context.Context, params SubmitLeaveParams) (result LeaveResult, err error) {
	if err = s.ready(); err != nil {
		return
	}

	var delta int
	logger := s.loggerWith(ctx, "Submit", "principal_id", params.Principal.UserID)
	defer func() {
		s.observe("submit", err, delta)
		if err != nil {
			logger.ErrorContext(ctx, "leave submission failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With(
			"request_id", result.Request.ID,
			"days", -delta,
			"balance", result.Balance,
		).InfoContext(ctx, "leave submitted")
	}()

	if params.Principal.UserID == "" {
		err = ErrUnauthorized
		return
	}

	input := normalizeLeaveInput(params.Input)
	if vErr := validateStruct(input); vErr.HasErrors() {
		err = vErr
		return
	}

	days := ledger.Days(input.StartDate, input.EndDate)
	now := s.now()
	request := LeaveRequest{
		ID:        s.idGenerator(),
		UserID:    params.Principal.UserID,
		StartDate: input.StartDate,
		EndDate:   input.EndDate,
		LeaveType: input.LeaveType,
		Reason:    input.Reason,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	var owner User
	err = s.store.WithinTransaction(ctx, func(ctx context.Context, tx LeaveTx) error {
		user, err := s.principalUser(ctx, tx, request.UserID)
		if err != nil {
			return err
		}
		if !ledger.Sufficient(user.LeaveBalance, days) {
			return &InsufficientBalanceError{Required: days, Available: user.LeaveBalance}
		}
		if err := tx.InsertLeaveRequest(ctx, request); err != nil {
			return fmt.Errorf("insert leave request: %w", err)
		}
		balance, err := tx.AdjustBalance(ctx, user.ID, -days, now)
		if err != nil {
			return balanceFailure(err, days, user.LeaveBalance)
		}
		owner = user
		owner.LeaveBalance = balance
		return nil
	})
	if err != nil {
		return
	}

	delta = -days
	request.OwnerName = owner.Name
	request.OwnerEmail = owner.Email
	result = LeaveResult{Request: request, Balance: owner.LeaveBalance}

	s.notify(ctx, logger, newLeaveEvent(EventNewRequest, request, owner))
	return
}

// Amend rewrites a pending request owned by the principal and applies the
// difference in day cost to the balance.
func (s *LeaveService) Amend(ctx context.Context, params AmendLeaveParams) (result LeaveResult, err error) {
	if err = s.ready(); err != nil {
		return
	}

	var delta int
	logger := s.loggerWith(ctx, "Amend",
		"principal_id", params.Principal.UserID,
		"request_id", params.RequestID,
	)
	defer func() {
		s.observe("amend", err, delta)
		if err != nil {
			logger.ErrorContext(ctx, "leave amendment failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("delta", -delta, "balance", result.Balance).InfoContext(ctx, "leave amended")
	}()

	input := normalizeLeaveInput(params.Input)
	if vErr := validateStruct(input); vErr.HasErrors() {
		err = vErr
		return
	}

	now := s.now()
	next := ledger.Span{Start: input.StartDate, End: input.EndDate}

	var (
		updated LeaveRequest
		owner   User
		change  int
	)
	err = s.store.WithinTransaction(ctx, func(ctx context.Context, tx LeaveTx) error {
		existing, err := ownedRequest(ctx, tx, params.Principal, params.RequestID)
		if err != nil {
			return err
		}
		if existing.Status != StatusPending {
			return ErrInvalidState
		}

		user, err := s.principalUser(ctx, tx, existing.UserID)
		if err != nil {
			return err
		}

		change = ledger.Delta(existing.Span(), next)
		if change > 0 && !ledger.Sufficient(user.LeaveBalance, change) {
			return &InsufficientBalanceError{Required: change, Available: user.LeaveBalance}
		}

		updated = existing
		updated.StartDate = input.StartDate
		updated.EndDate = input.EndDate
		updated.LeaveType = input.LeaveType
		updated.Reason = input.Reason
		updated.UpdatedAt = now
		if err := tx.UpdateLeaveRequest(ctx, updated); err != nil {
			return fmt.Errorf("update leave request: %w", err)
		}

		owner = user
		if change != 0 {
			balance, err := tx.AdjustBalance(ctx, user.ID, -change, now)
			if err != nil {
				return balanceFailure(err, change, user.LeaveBalance)
			}
			owner.LeaveBalance = balance
		}
		return nil
	})
	if err != nil {
		return
	}

	delta = -change
	updated.OwnerName = owner.Name
	updated.OwnerEmail = owner.Email
	result = LeaveResult{Request: updated, Balance: owner.LeaveBalance}
	return
}

// Withdraw deletes a request owned by the principal and credits its days
// back according to the configured WithdrawPolicy.
func (s *LeaveService) Withdraw(ctx context.Context, principal Principal, requestID string) (result LeaveResult, err error) {
	if err = s.ready(); err != nil {
		return
	}

	var credited int
	logger := s.loggerWith(ctx, "Withdraw",
		"principal_id", principal.UserID,
		"request_id", requestID,
		"policy", s.policy,
	)
	defer func() {
		s.observe("withdraw", err, credited)
		if err != nil {
			logger.ErrorContext(ctx, "leave withdrawal failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("credited", credited, "balance", result.Balance).InfoContext(ctx, "leave withdrawn")
	}()

	now := s.now()

	var (
		removed LeaveRequest
		owner   User
		credit  int
	)
	err = s.store.WithinTransaction(ctx, func(ctx context.Context, tx LeaveTx) error {
		existing, err := ownedRequest(ctx, tx, principal, requestID)
		if err != nil {
			return err
		}

		credit, err = s.withdrawCredit(existing)
		if err != nil {
			return err
		}

		user, err := s.principalUser(ctx, tx, existing.UserID)
		if err != nil {
			return err
		}

		if err := tx.DeleteLeaveRequest(ctx, existing.ID); err != nil {
			return fmt.Errorf("delete leave request: %w", err)
		}

		owner = user
		if credit > 0 {
			balance, err := tx.AdjustBalance(ctx, user.ID, credit, now)
			if err != nil {
				return err
			}
			owner.LeaveBalance = balance
		}
		removed = existing
		return nil
	})
	if err != nil {
		return
	}

	credited = credit
	removed.OwnerName = owner.Name
	removed.OwnerEmail = owner.Email
	result = LeaveResult{Request: removed, Balance: owner.LeaveBalance}
	return
}

func (s *LeaveService) withdrawCredit(request LeaveRequest) (int, error) {
	days := request.Days()
	switch s.policy {
	case WithdrawSkipRejected:
		if request.Status == StatusRejected {
			return 0, nil
		}
	case WithdrawPendingOnly:
		if request.Status != StatusPending {
			return 0, ErrInvalidState
		}
	}
	return days, nil
}

// Approve marks a pending request approved. The balance is untouched because
// the days were debited at submission.
func (s *LeaveService) Approve(ctx context.Context, principal Principal, requestID string) (LeaveResult, error) {
	return s.decide(ctx, principal, requestID, StatusApproved)
}

// Reject marks a pending request rejected and credits its days back.
func (s *LeaveService) Reject(ctx context.Context, principal Principal, requestID string) (LeaveResult, error) {
	return s.decide(ctx, principal, requestID, StatusRejected)
}

func (s *LeaveService) decide(ctx context.Context, principal Principal, requestID string, target LeaveStatus) (result LeaveResult, err error) {
	if err = s.ready(); err != nil {
		return
	}

	operation := "approve"
	kind := EventApproved
	if target == StatusRejected {
		operation = "reject"
		kind = EventRejected
	}

	var credited int
	logger := s.loggerWith(ctx, "Decide",
		"principal_id", principal.UserID,
		"request_id", requestID,
		"decision", target,
	)
	defer func() {
		s.observe(operation, err, credited)
		if err != nil {
			logger.ErrorContext(ctx, "leave decision failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("credited", credited, "balance", result.Balance).InfoContext(ctx, "leave decided")
	}()

	if !principal.IsAdmin() {
		err = ErrUnauthorized
		return
	}

	now := s.now()

	var (
		decided LeaveRequest
		owner   User
	)
	err = s.store.WithinTransaction(ctx, func(ctx context.Context, tx LeaveTx) error {
		existing, err := tx.GetLeaveRequest(ctx, requestID)
		if err != nil {
			return err
		}
		if existing.Status != StatusPending {
			return ErrInvalidState
		}
		if err := tx.TransitionStatus(ctx, existing.ID, StatusPending, target, now); err != nil {
			return err
		}

		user, err := tx.GetUser(ctx, existing.UserID)
		if err != nil {
			return fmt.Errorf("load request owner: %w", err)
		}
		owner = user

		if target == StatusRejected {
			balance, err := tx.AdjustBalance(ctx, user.ID, existing.Days(), now)
			if err != nil {
				return err
			}
			owner.LeaveBalance = balance
		}

		decided = existing
		decided.Status = target
		decided.UpdatedAt = now
		return nil
	})
	if err != nil {
		return
	}

	if target == StatusRejected {
		credited = decided.Days()
	}
	decided.OwnerName = owner.Name
	decided.OwnerEmail = owner.Email
	result = LeaveResult{Request: decided, Balance: owner.LeaveBalance}

	s.notify(ctx, logger, newLeaveEvent(kind, decided, owner))
	return
}

// ListMine returns the principal's own requests newest first.
func (s *LeaveService) ListMine(ctx context.Context, principal Principal) ([]LeaveRequest, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if principal.UserID == "" {
		return nil, ErrUnauthorized
	}
	return s.store.ListLeaveRequests(ctx, LeaveQuery{UserID: principal.UserID})
}

// ListAll returns every request newest first, optionally filtered by status.
func (s *LeaveService) ListAll(ctx context.Context, params ListAllParams) ([]LeaveRequest, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if !params.Principal.IsAdmin() {
		return nil, ErrUnauthorized
	}
	if params.Status != "" && !params.Status.Valid() {
		vErr := &ValidationError{}
		vErr.add("status", "status must be one of: pending, approved, rejected")
		return nil, vErr
	}
	return s.store.ListLeaveRequests(ctx, LeaveQuery{Status: params.Status})
}

// Get returns one request visible to the principal.
func (s *LeaveService) Get(ctx context.Context, principal Principal, requestID string) (LeaveRequest, error) {
	if err := s.ready(); err != nil {
		return LeaveRequest{}, err
	}
	request, err := s.store.GetLeaveRequest(ctx, requestID)
	if err != nil {
		return LeaveRequest{}, err
	}
	if !principal.IsAdmin() && request.UserID != principal.UserID {
		return LeaveRequest{}, ErrNotFound
	}
	return request, nil
}

// Calendar expands non-rejected requests overlapping [From, To] into one
// entry per day. Employees only see their own requests.
func (s *LeaveService) Calendar(ctx context.Context, params CalendarParams) ([]CalendarEntry, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if params.Principal.UserID == "" {
		return nil, ErrUnauthorized
	}

	window := ledger.Span{Start: params.From, End: params.To}
	if vErr := validateCalendarWindow(window); vErr.HasErrors() {
		return nil, vErr
	}

	query := LeaveQuery{ExcludeStatus: StatusRejected, Overlapping: &window}
	if !params.Principal.IsAdmin() {
		query.UserID = params.Principal.UserID
	}

	requests, err := s.store.ListLeaveRequests(ctx, query)
	if err != nil {
		return nil, err
	}

	entries := make([]CalendarEntry, 0, len(requests))
	for _, request := range requests {
		days, err := ledger.ExpandDays(request.Span(), window)
		if err != nil {
			return nil, fmt.Errorf("expand request %s: %w", request.ID, err)
		}
		for _, day := range days {
			entries = append(entries, CalendarEntry{
				Date:      day,
				RequestID: request.ID,
				UserID:    request.UserID,
				OwnerName: request.OwnerName,
				LeaveType: request.LeaveType,
				Status:    request.Status,
			})
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Date.Equal(entries[j].Date) {
			return entries[i].RequestID < entries[j].RequestID
		}
		return entries[i].Date.Before(entries[j].Date)
	})
	return entries, nil
}

func validateCalendarWindow(window ledger.Span) *ValidationError {
	vErr := &ValidationError{}
	if window.Start.IsZero() {
		vErr.add("from", "from is required")
	}
	if window.End.IsZero() {
		vErr.add("to", "to is required")
	}
	if vErr.HasErrors() {
		return vErr
	}
	if window.End.Before(window.Start) {
		vErr.add("to", "to must not be before from")
	} else if window.Days() > ledger.MaxWindowDays {
		vErr.add("to", fmt.Sprintf("range must not exceed %d days", ledger.MaxWindowDays))
	}
	return vErr
}

// principalUser loads the acting user; a session for a vanished account is unauthorized.
func (s *LeaveService) principalUser(ctx context.Context, tx LeaveTx, userID string) (User, error) {
	user, err := tx.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return User{}, ErrUnauthorized
		}
		return User{}, fmt.Errorf("load user: %w", err)
	}
	return user, nil
}

// ownedRequest hides requests of other users behind ErrNotFound.
func ownedRequest(ctx context.Context, tx LeaveTx, principal Principal, requestID string) (LeaveRequest, error) {
	request, err := tx.GetLeaveRequest(ctx, requestID)
	if err != nil {
		return LeaveRequest{}, err
	}
	if request.UserID != principal.UserID {
		return LeaveRequest{}, ErrNotFound
	}
	return request, nil
}

// balanceFailure turns a storage-level refusal into the typed error callers expect.
func balanceFailure(err error, required, available int) error {
	if errors.Is(err, ErrInsufficientBalance) {
		return &InsufficientBalanceError{Required: required, Available: available}
	}
	return fmt.Errorf("adjust balance: %w", err)
}

func newLeaveEvent(kind LeaveEventKind, request LeaveRequest, owner User) LeaveEvent {
	return LeaveEvent{
		Kind:             kind,
		RequestID:        request.ID,
		EmployeeName:     owner.Name,
		StartDate:        request.StartDate,
		EndDate:          request.EndDate,
		LeaveType:        request.LeaveType,
		Reason:           request.Reason,
		Days:             request.Days(),
		RemainingBalance: owner.LeaveBalance,
	}
}
