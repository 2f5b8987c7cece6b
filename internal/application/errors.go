package application

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrUnauthorized is returned when the acting principal lacks permission for an operation.
	ErrUnauthorized = errors.New("application: unauthorized")
	// ErrNotFound is returned when the requested resource does not exist or is not visible to the caller.
	ErrNotFound = errors.New("application: not found")
	// ErrInvalidState is returned when a leave request is not in a status that permits the operation.
	ErrInvalidState = errors.New("application: invalid state")
	// ErrInsufficientBalance is the sentinel wrapped by InsufficientBalanceError.
	ErrInsufficientBalance = errors.New("application: insufficient balance")
	// ErrAlreadyExists is returned when a unique attribute such as an email is taken.
	ErrAlreadyExists = errors.New("application: already exists")
	// ErrInvalidCredentials is returned when an email/password pair or token cannot be verified.
	ErrInvalidCredentials = errors.New("application: invalid credentials")
	// ErrAccountDisabled is returned when a user may no longer sign in.
	ErrAccountDisabled = errors.New("application: account disabled")
	// ErrSessionExpired is returned when a session is past its expiry.
	ErrSessionExpired = errors.New("application: session expired")
	// ErrSessionRevoked is returned when a session was explicitly revoked.
	ErrSessionRevoked = errors.New("application: session revoked")
)

// InsufficientBalanceError reports a debit larger than the available balance.
type InsufficientBalanceError struct {
	Required  int
	Available int
}

// Error implements the error interface.
func (e *InsufficientBalanceError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("insufficient leave balance: required %d, available %d", e.Required, e.Available)
}

// Unwrap allows errors.Is(err, ErrInsufficientBalance).
func (e *InsufficientBalanceError) Unwrap() error {
	return ErrInsufficientBalance
}

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	if len(v.FieldErrors) == 0 {
		return "validation failed"
	}
	fields := make([]string, 0, len(v.FieldErrors))
	for field := range v.FieldErrors {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return "validation failed: " + strings.Join(fields, ", ")
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error. The first message per field wins.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	if _, exists := v.FieldErrors[field]; exists {
		return
	}
	v.FieldErrors[field] = message
}

// merge copies entries from another validation error into the receiver.
func (v *ValidationError) merge(other *ValidationError) {
	if other == nil || len(other.FieldErrors) == 0 {
		return
	}
	for field, msg := range other.FieldErrors {
		v.add(field, msg)
	}
}
