// Package apperrors holds the error taxonomy shared by repositories, services
// and the command line surface. Callers match with errors.Is / errors.As.
package apperrors

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrImageDecode         = errors.New("image could not be decoded")
	ErrModelLoad           = errors.New("model weights could not be loaded")
	ErrUnknownModelVariant = errors.New("unknown model variant")
	ErrInstanceNotFound    = errors.New("instance does not exist")
	ErrValidation          = errors.New("validation failed")
	ErrInvalidCredentials  = errors.New("invalid login credentials")
	ErrEmailTaken          = errors.New("email is already registered")
	ErrJobClaimed          = errors.New("training job was already claimed")
)

// FieldError describes one violated rule on one input field.
type FieldError struct {
	Field string
	Rule  string
	Param string
}

func (f FieldError) String() string {
	if f.Param == "" {
		return fmt.Sprintf("%s failed '%s'", f.Field, f.Rule)
	}
	return fmt.Sprintf("%s failed '%s=%s'", f.Field, f.Rule, f.Param)
}

// ValidationError is returned for input rejected before it reaches a service.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.String()
	}
	return fmt.Sprintf("%s: %s", ErrValidation, strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NewValidationError builds a single-field validation error.
func NewValidationError(field, rule, param string) error {
	return &ValidationError{Fields: []FieldError{{Field: field, Rule: rule, Param: param}}}
}

func NewImageDecodeError(err error) error {
	return fmt.Errorf("%w: %v", ErrImageDecode, err)
}

func NewModelLoadError(path string, err error) error {
	return fmt.Errorf("%w from '%s': %v", ErrModelLoad, path, err)
}

func NewUnknownVariantError(key string) error {
	return fmt.Errorf("%w '%s'", ErrUnknownModelVariant, key)
}

func NewJobClaimedError(jobID string) error {
	return fmt.Errorf("%w: %s", ErrJobClaimed, jobID)
}

// NewNotFoundError reports a missing (or not owned) record of the given kind.
func NewNotFoundError(kind string, id any) error {
	return fmt.Errorf("%s with given id=%v: %w", kind, id, ErrInstanceNotFound)
}
