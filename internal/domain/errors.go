package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors used across all layers.
var (
	ErrNotFound          = errors.New("not found")
	ErrAlreadyExists     = errors.New("already exists")
	ErrValidation        = errors.New("validation error")
	ErrAliasRemapped     = errors.New("alias remapped")
	ErrUnknownPatternSet = errors.New("unknown pattern set")
)

// FieldError describes a validation error for a specific field.
type FieldError struct {
	Field   string
	Message string
}

// ValidationError contains a list of field-level validation errors.
type ValidationError struct {
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("validation: %s: %s", e.Errors[0].Field, e.Errors[0].Message)
	}
	return fmt.Sprintf("validation: %d errors", len(e.Errors))
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NewValidationError creates a ValidationError for a single field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Errors: []FieldError{{Field: field, Message: message}},
	}
}

// NewValidationErrors creates a ValidationError from multiple field errors.
func NewValidationErrors(errs []FieldError) *ValidationError {
	return &ValidationError{Errors: errs}
}

// AliasRemapError reports an attempt to point a stored alias at a different
// canonical entity.
type AliasRemapError struct {
	Kind     EntityKind
	Raw      string
	StoredID int64
	WantID   int64
}

func (e *AliasRemapError) Error() string {
	return fmt.Sprintf("%s alias %q is bound to id %d, refusing to remap to id %d", e.Kind, e.Raw, e.StoredID, e.WantID)
}

func (e *AliasRemapError) Unwrap() error { return ErrAliasRemapped }
