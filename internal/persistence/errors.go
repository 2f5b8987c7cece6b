package persistence

import "errors"

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("persistence: not found")
	// ErrDuplicate is returned when a unique constraint rejects a write.
	ErrDuplicate = errors.New("persistence: duplicate")
	// ErrConstraintViolation is returned when a CHECK or NOT NULL constraint rejects a write.
	ErrConstraintViolation = errors.New("persistence: constraint violation")
	// ErrForeignKeyViolation is returned when a referenced record is missing.
	ErrForeignKeyViolation = errors.New("persistence: foreign key violation")
	// ErrInsufficientBalance is returned when a balance adjustment would go below zero.
	ErrInsufficientBalance = errors.New("persistence: insufficient balance")
	// ErrStateConflict is returned when a conditional status update matched no row.
	ErrStateConflict = errors.New("persistence: state conflict")
)
