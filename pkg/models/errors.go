package models

import (
	"errors"
	"fmt"
)

// Sentinels for errors.Is matching. Every typed error below matches exactly one of them.
var (
	ErrNotFound          = errors.New("not found")
	ErrValidation        = errors.New("validation failed")
	ErrPersistence       = errors.New("persistence failure")
	ErrInconsistentState = errors.New("inconsistent state")

	// ErrDuplicate is wrapped by validation errors caused by a unique-key conflict.
	ErrDuplicate = errors.New("duplicate key")
)

// NotFoundError reports a referenced matrix, asset or node that does not exist.
type NotFoundError struct {
	Entity string
	Key    string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Entity, e.Key)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// NotFound builds a NotFoundError.
func NotFound(entity, key string) error {
	return &NotFoundError{Entity: entity, Key: key}
}

// ValidationError reports a missing or invalid field before (or rejected by) a write.
type ValidationError struct {
	Err    error
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Reason
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func (e *ValidationError) Unwrap() error { return e.Err }

// Invalid builds a ValidationError.
func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// PersistenceError reports that the backing store rejected a read or write.
// It is surfaced to the caller and never retried by the core.
type PersistenceError struct {
	Err error
	Op  string
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }

func (e *PersistenceError) Unwrap() error { return e.Err }

// InconsistentStateError reports that node ownership was written but the
// aggregate cascade did not complete. Derived numbers are stale until the
// next recalibration.
type InconsistentStateError struct {
	Err        error
	Op         string
	SKU        string
	MatrixCode string
}

func (e *InconsistentStateError) Error() string {
	return fmt.Sprintf("%s: aggregates stale for asset %q in matrix %q, recalibration required: %v",
		e.Op, e.SKU, e.MatrixCode, e.Err)
}

func (e *InconsistentStateError) Is(target error) bool { return target == ErrInconsistentState }

func (e *InconsistentStateError) Unwrap() error { return e.Err }

// NeedsRecalibration reports whether err signals stale aggregates.
func NeedsRecalibration(err error) bool {
	return errors.Is(err, ErrInconsistentState)
}
