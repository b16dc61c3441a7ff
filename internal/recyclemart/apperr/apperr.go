package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthenticated is returned when no valid caller identity is present
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrForbidden is returned when the caller's role does not permit the operation
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound is returned when a referenced record, center or user does not exist
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned on version mismatches and duplicate keys
	ErrConflict = errors.New("conflict")
)

// ValidationError describes malformed input for a single field
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// Invalid creates a new ValidationError
func Invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// TransientError wraps a backend failure the caller may retry
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// Transient wraps err as a TransientError unless it already belongs to the taxonomy
func Transient(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsKnown(err) {
		return err
	}
	return &TransientError{Op: op, Err: err}
}

// NotFound wraps ErrNotFound with the missing entity
func NotFound(entity string) error {
	return fmt.Errorf("%s %w", entity, ErrNotFound)
}

// Forbidden wraps ErrForbidden with the refused action
func Forbidden(action string) error {
	return fmt.Errorf("%w: %s", ErrForbidden, action)
}

// IsValidation reports whether err is a ValidationError
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsTransient reports whether err is a TransientError
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// IsKnown reports whether err already carries a taxonomy classification
func IsKnown(err error) bool {
	return IsValidation(err) ||
		IsTransient(err) ||
		errors.Is(err, ErrUnauthenticated) ||
		errors.Is(err, ErrForbidden) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrConflict)
}
