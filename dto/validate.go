package dto

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator"

	"github.com/camden-git/petclassifier/apperrors"
)

var validate = validator.New()

// Validate checks the struct tags of v and reports every violated rule as an
// apperrors.ValidationError.
func Validate(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var invalid *validator.InvalidValidationError
	if errors.As(err, &invalid) {
		return fmt.Errorf("cannot validate %T: %w", v, err)
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("validation of %T failed: %w", v, err)
	}

	out := &apperrors.ValidationError{Fields: make([]apperrors.FieldError, 0, len(fieldErrs))}
	for _, fe := range fieldErrs {
		out.Fields = append(out.Fields, apperrors.FieldError{
			Field: fe.Namespace(),
			Rule:  fe.Tag(),
			Param: fe.Param(),
		})
	}
	return out
}

// Validate reports hyper parameters outside their bounds.
func (h HyperParams) Validate() error {
	return Validate(h)
}
