package services

import (
	"errors"

	"github.com/rs/zerolog/log"
)

// IsClientError is true for failures caused by the request rather than by the store.
func IsClientError(err error) bool {
	for _, target := range []error{
		ErrNotAuthenticated,
		ErrForbidden,
		ErrNotFound,
		ErrValidation,
		ErrNoOp,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func logFailure(operation string, user Identity, target string, err error) {
	if err == nil {
		return
	}
	event := log.Error()
	if IsClientError(err) {
		event = log.Warn()
	}
	event.Err(err).
		Str("operation", operation).
		Uint("actor", user.UserID).
		Str("role", user.Role).
		Str("target", target).
		Msg("An error occurred when handling messaging operation...")
}
