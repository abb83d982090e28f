package services

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when an entity is not found (or belongs to
	// another tenant — the two cases are indistinguishable to the caller).
	ErrNotFound = errors.New("entity not found")

	// ErrAlreadyExists is returned when attempting to create a duplicate entity
	ErrAlreadyExists = errors.New("entity already exists")

	// ErrInvalidInput is returned when input validation fails
	ErrInvalidInput = errors.New("invalid input")

	// ErrAuthRequired is returned when a request lacks a resolved tenant/user
	ErrAuthRequired = errors.New("authentication required")

	// ErrAuthFailed is returned when credentials or tokens are invalid
	ErrAuthFailed = errors.New("authentication failed")

	// ErrPermissionDenied is returned when the user lacks a required permission
	ErrPermissionDenied = errors.New("permission denied")

	// ErrPrecondition is returned when a stage-order or state precondition fails
	ErrPrecondition = errors.New("precondition failed")

	// ErrRateLimited is returned when the sliding-window limit is exceeded
	ErrRateLimited = errors.New("rate limit exceeded")
)

// ValidationError wraps field-specific validation errors
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidInput }

// NewValidationError creates a new validation error
func NewValidationError(field, message string) error {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// PreconditionError carries the stage whose prerequisite is missing.
// It unwraps to ErrPrecondition for boundary mapping.
type PreconditionError struct {
	Stage   int
	Missing string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("stage %d cannot start: missing %s from previous stage", e.Stage, e.Missing)
}

func (e *PreconditionError) Unwrap() error { return ErrPrecondition }
