package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"
)

// DefaultLeaveBalance is granted to accounts created without an explicit balance.
const DefaultLeaveBalance = 25

// UserRepository captures the persistence operations needed by the user service.
type UserRepository interface {
	CreateUser(ctx context.Context, user NewUser) (User, error)
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
	SetLeaveBalance(ctx context.Context, id string, balance int, updatedAt time.Time) (User, error)
}

// UserService orchestrates validation, authorization, and persistence for users.
type UserService struct {
	users          UserRepository
	hashPassword   PasswordHasher
	idGenerator    func() string
	now            func() time.Time
	defaultBalance int
	logger         *slog.Logger
}

// NewUserService wires dependencies for the user service.
func NewUserService(users UserRepository, hasher PasswordHasher, idGenerator func() string, now func() time.Time, defaultBalance int) *UserService {
	return NewUserServiceWithLogger(users, hasher, idGenerator, now, defaultBalance, nil)
}

// NewUserServiceWithLogger wires dependencies for the user service with a specified logger.
func NewUserServiceWithLogger(users UserRepository, hasher PasswordHasher, idGenerator func() string, now func() time.Time, defaultBalance int, logger *slog.Logger) *UserService {
	if hasher == nil {
		hasher = HashPassword
	}
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	if defaultBalance < 0 {
		defaultBalance = DefaultLeaveBalance
	}
	return &UserService{
		users:          users,
		hashPassword:   hasher,
		idGenerator:    idGenerator,
		now:            now,
		defaultBalance: defaultBalance,
		logger:         defaultLogger(logger),
	}
}

func (s *UserService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "UserService", operation, attrs...)
}

// Register creates an employee account with the default balance.
func (s *UserService) Register(ctx context.Context, input RegisterInput) (user User, err error) {
	if s == nil {
		err = fmt.Errorf("UserService is nil")
		return
	}

	input.Name = strings.TrimSpace(input.Name)
	input.Email = strings.TrimSpace(input.Email)

	logger := s.loggerWith(ctx, "Register", "email", input.Email)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "registration failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("user_id", user.ID).InfoContext(ctx, "user registered")
	}()

	if vErr := validateStruct(input); vErr.HasErrors() {
		err = vErr
		return
	}

	user, err = s.create(ctx, input.Name, input.Email, input.Password, RoleEmployee, s.defaultBalance)
	return
}

// CreateUser persists a new account with an explicit role for administrators.
func (s *UserService) CreateUser(ctx context.Context, params CreateUserParams) (user User, err error) {
	if s == nil {
		err = fmt.Errorf("UserService is nil")
		return
	}

	input := params.Input
	input.Name = strings.TrimSpace(input.Name)
	input.Email = strings.TrimSpace(input.Email)
	input.Role = Role(strings.ToLower(strings.TrimSpace(string(input.Role))))

	logger := s.loggerWith(ctx, "CreateUser",
		"principal_id", params.Principal.UserID,
		"email", input.Email,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "user creation failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("user_id", user.ID, "role", user.Role).InfoContext(ctx, "user created")
	}()

	if !params.Principal.IsAdmin() {
		err = ErrUnauthorized
		return
	}
	if vErr := validateStruct(input); vErr.HasErrors() {
		err = vErr
		return
	}

	balance := s.defaultBalance
	if input.LeaveBalance != nil {
		balance = *input.LeaveBalance
	}

	user, err = s.create(ctx, input.Name, input.Email, input.Password, input.Role, balance)
	return
}

// EnsureAdmin creates the bootstrap administrator unless an account with the
// email already exists. It reports whether an account was created.
func (s *UserService) EnsureAdmin(ctx context.Context, name, email, password string) (bool, error) {
	if s == nil {
		return false, fmt.Errorf("UserService is nil")
	}
	if s.users == nil {
		return false, fmt.Errorf("user repository not configured")
	}

	email = strings.TrimSpace(email)
	if _, err := s.users.GetUserByEmail(ctx, email); err == nil {
		return false, nil
	} else if !errors.Is(err, ErrNotFound) {
		return false, err
	}

	if strings.TrimSpace(name) == "" {
		name = "Administrator"
	}
	input := CreateUserInput{Name: strings.TrimSpace(name), Email: email, Password: password, Role: RoleAdmin}
	if vErr := validateStruct(input); vErr.HasErrors() {
		return false, vErr
	}

	user, err := s.create(ctx, input.Name, input.Email, input.Password, RoleAdmin, s.defaultBalance)
	if err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			return false, nil
		}
		return false, err
	}
	s.loggerWith(ctx, "EnsureAdmin").With("user_id", user.ID).InfoContext(ctx, "bootstrap administrator created")
	return true, nil
}

func (s *UserService) create(ctx context.Context, name, email, password string, role Role, balance int) (User, error) {
	if s.users == nil {
		return User{}, fmt.Errorf("user repository not configured")
	}

	hash, err := s.hashPassword(password)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}

	now := s.now()
	record := NewUser{
		User: User{
			ID:           s.idGenerator(),
			Name:         name,
			Email:        email,
			Role:         role,
			LeaveBalance: balance,
			CreatedAt:    now,
			UpdatedAt:    now,
		},
		PasswordHash: hash,
	}

	return s.users.CreateUser(ctx, record)
}

// GetUser returns an account visible to the principal: their own, or any for administrators.
func (s *UserService) GetUser(ctx context.Context, principal Principal, userID string) (User, error) {
	if s == nil {
		return User{}, fmt.Errorf("UserService is nil")
	}
	if s.users == nil {
		return User{}, fmt.Errorf("user repository not configured")
	}
	if principal.UserID == "" {
		return User{}, ErrUnauthorized
	}
	if !principal.IsAdmin() && principal.UserID != userID {
		return User{}, ErrUnauthorized
	}
	return s.users.GetUser(ctx, userID)
}

// ListUsers returns all users for administrators ordered by name.
func (s *UserService) ListUsers(ctx context.Context, principal Principal) ([]User, error) {
	if s == nil {
		return nil, fmt.Errorf("UserService is nil")
	}
	if !principal.IsAdmin() {
		return nil, ErrUnauthorized
	}
	if s.users == nil {
		return nil, nil
	}

	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]User, len(users))
	copy(out, users)

	sort.Slice(out, func(i, j int) bool {
		if strings.EqualFold(out[i].Name, out[j].Name) {
			return out[i].ID < out[j].ID
		}
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})

	return out, nil
}

// SetLeaveBalance overrides a user's balance on behalf of an administrator.
func (s *UserService) SetLeaveBalance(ctx context.Context, params SetBalanceParams) (user User, err error) {
	if s == nil {
		err = fmt.Errorf("UserService is nil")
		return
	}

	logger := s.loggerWith(ctx, "SetLeaveBalance",
		"principal_id", params.Principal.UserID,
		"user_id", params.UserID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "balance override failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("balance", user.LeaveBalance).InfoContext(ctx, "balance overridden")
	}()

	if !params.Principal.IsAdmin() {
		err = ErrUnauthorized
		return
	}
	if s.users == nil {
		err = fmt.Errorf("user repository not configured")
		return
	}
	if params.Balance < 0 {
		vErr := &ValidationError{}
		vErr.add("leave_balance", "leave balance must be at least 0")
		err = vErr
		return
	}

	user, err = s.users.SetLeaveBalance(ctx, params.UserID, params.Balance, s.now())
	return
}
