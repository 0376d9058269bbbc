package exts

import (
	"errors"

	"github.com/edvisory/portal-messaging/pkg/internal/services"
	"github.com/gofiber/fiber/v2"
)

const genericServerError = "something went wrong, please try again later"

func StatusOf(err error) int {
	switch {
	case errors.Is(err, services.ErrNotAuthenticated):
		return fiber.StatusUnauthorized
	case errors.Is(err, services.ErrForbidden):
		return fiber.StatusForbidden
	case errors.Is(err, services.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, services.ErrValidation):
		return fiber.StatusBadRequest
	case errors.Is(err, services.ErrConflict), errors.Is(err, services.ErrNoOp):
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}

// ErrorResponse turns a service error into a fiber error.
// Store details stay in the logs unless the caller is a messaging admin.
func ErrorResponse(c *fiber.Ctx, err error) error {
	status := StatusOf(err)
	message := err.Error()
	if errors.Is(err, services.ErrNoOp) {
		message = services.ErrNoOp.Error()
	} else if status >= fiber.StatusInternalServerError && !services.IsMessagingAdmin(GetIdentity(c).Role) {
		message = genericServerError
	}
	return fiber.NewError(status, message)
}
