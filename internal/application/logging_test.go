package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
)

func TestDefaultLogger(t *testing.T) {
	t.Parallel()

	custom := slog.New(slog.NewTextHandler(io.Discard, nil))
	if got := defaultLogger(custom); got != custom {
		t.Fatalf("expected custom logger to be returned")
	}

	if got := defaultLogger(nil); got != slog.Default() {
		t.Fatalf("expected default logger when none provided")
	}
}

func TestErrorKind(t *testing.T) {
	t.Parallel()

	cases := []struct {
		err  error
		want string
	}{
		{err: nil, want: ""},
		{err: fmt.Errorf("wrap: %w", ErrNotFound), want: "not_found"},
		{err: ErrInvalidState, want: "invalid_state"},
		{err: &InsufficientBalanceError{Required: 3, Available: 1}, want: "insufficient_balance"},
		{err: &ValidationError{FieldErrors: map[string]string{"reason": "required"}}, want: "validation"},
		{err: ErrUnauthorized, want: "unauthorized"},
		{err: ErrSessionExpired, want: "session_expired"},
		{err: context.Canceled, want: "canceled"},
		{err: errors.New("boom"), want: "unexpected"},
	}

	for _, tc := range cases {
		if got := ErrorKind(tc.err); got != tc.want {
			t.Fatalf("ErrorKind(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}
