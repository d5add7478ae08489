package cli

import (
	"context"
	"errors"

	"github.com/camden-git/petclassifier/apperrors"
)

// ExitMessage turns a command error into the line shown to the user.
func ExitMessage(err error) string {
	var validation *apperrors.ValidationError
	switch {
	case errors.As(err, &validation):
		return "invalid input: " + validation.Error()
	case errors.Is(err, apperrors.ErrInstanceNotFound):
		return "not found: the requested record does not exist or is not yours"
	case errors.Is(err, apperrors.ErrInvalidCredentials):
		return "login failed: invalid email or password"
	case errors.Is(err, apperrors.ErrEmailTaken):
		return "registration failed: email is already registered"
	case errors.Is(err, apperrors.ErrImageDecode):
		return "the uploaded file is not a readable image"
	case errors.Is(err, apperrors.ErrUnknownModelVariant):
		return err.Error()
	case errors.Is(err, apperrors.ErrModelLoad):
		return "model unavailable: " + err.Error()
	case errors.Is(err, context.Canceled):
		return "interrupted"
	default:
		return "error: " + err.Error()
	}
}
