package application

import (
	"errors"
	"fmt"
	"testing"
)

func TestValidationError_Error(t *testing.T) {
	t.Parallel()

	var err *ValidationError
	if err.Error() != "" {
		t.Fatalf("expected empty string for nil error, got %q", err.Error())
	}

	empty := &ValidationError{}
	if got := empty.Error(); got != "validation failed" {
		t.Fatalf("expected generic message for empty error, got %q", got)
	}

	withFields := &ValidationError{FieldErrors: map[string]string{"reason": "required", "end_date": "invalid"}}
	if got := withFields.Error(); got != "validation failed: end_date, reason" {
		t.Fatalf("expected sorted field list, got %q", got)
	}
}

func TestValidationError_HasErrors(t *testing.T) {
	t.Parallel()

	if err := (&ValidationError{}).HasErrors(); err {
		t.Fatalf("expected HasErrors to report false for empty error")
	}

	if err := (&ValidationError{FieldErrors: map[string]string{"field": "bad"}}).HasErrors(); !err {
		t.Fatalf("expected HasErrors to report true when fields are present")
	}
}

func TestValidationError_AddAndMerge(t *testing.T) {
	t.Parallel()

	base := &ValidationError{}
	base.add("first", "value")
	base.add("first", "ignored")
	if got := base.FieldErrors["first"]; got != "value" {
		t.Fatalf("expected first message to win, got %q", got)
	}

	other := &ValidationError{FieldErrors: map[string]string{"second": "another"}}
	base.merge(other)
	if got := base.FieldErrors["second"]; got != "another" {
		t.Fatalf("expected merge to copy field, got %q", got)
	}

	base.merge(nil)
	if len(base.FieldErrors) != 2 {
		t.Fatalf("expected merge with nil to leave fields unchanged")
	}
}

func TestInsufficientBalanceError(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("submit: %w", &InsufficientBalanceError{Required: 3, Available: 2})
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected errors.Is to match sentinel")
	}

	var balanceErr *InsufficientBalanceError
	if !errors.As(err, &balanceErr) {
		t.Fatalf("expected errors.As to extract typed error")
	}
	if balanceErr.Required != 3 || balanceErr.Available != 2 {
		t.Fatalf("unexpected amounts %+v", balanceErr)
	}
	if got := balanceErr.Error(); got != "insufficient leave balance: required 3, available 2" {
		t.Fatalf("unexpected message %q", got)
	}
}
