package api

import (
	"github.com/edvisory/portal-messaging/pkg/internal/http/exts"
	"github.com/edvisory/portal-messaging/pkg/internal/services"
	"github.com/gofiber/fiber/v2"
)

func refreshSession(c *fiber.Ctx) error {
	if err := exts.EnsureAuthenticated(c); err != nil {
		return err
	}
	claims, ok := exts.GetClaims(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "you must sign in first")
	}

	tk, err := services.RefreshIdentityToken(c.UserContext(), claims)
	if err != nil {
		return exts.ErrorResponse(c, err)
	}

	return c.JSON(fiber.Map{
		"access_token": tk,
	})
}

func signOut(c *fiber.Ctx) error {
	if err := exts.EnsureAuthenticated(c); err != nil {
		return err
	}
	claims, ok := exts.GetClaims(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "you must sign in first")
	}

	if err := services.RevokeIdentityToken(c.UserContext(), claims); err != nil {
		return exts.ErrorResponse(c, err)
	}

	exts.ClearTokenCookie(c)
	return c.SendStatus(fiber.StatusNoContent)
}
