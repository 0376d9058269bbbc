package exts

import (
	"strings"

	"github.com/edvisory/portal-messaging/pkg/internal/cache"
	"github.com/edvisory/portal-messaging/pkg/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

const (
	identityLocal = "user"
	claimsLocal   = "claims"
	tokenCookie   = "portal_access_token"
)

func extractToken(c *fiber.Ctx) string {
	header := c.Get(fiber.HeaderAuthorization)
	if parts := strings.SplitN(header, " ", 2); len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return c.Cookies(tokenCookie)
}

// IdentityMiddleware resolves the bearer token into an identity.
// Requests without a token pass through anonymous, handlers decide with EnsureAuthenticated.
func IdentityMiddleware(c *fiber.Ctx) error {
	tk := extractToken(c)
	if len(tk) == 0 {
		return c.Next()
	}

	claims, err := services.ParseIdentityToken(tk)
	if err != nil {
		return fiber.NewError(fiber.StatusUnauthorized, err.Error())
	}

	if revoked, err := cache.IsRevoked(c.UserContext(), claims.ID); err != nil {
		log.Error().Err(err).Msg("An error occurred when checking token revocation...")
		return fiber.NewError(fiber.StatusServiceUnavailable, "unable to verify your session right now")
	} else if revoked {
		return fiber.NewError(fiber.StatusUnauthorized, "token has been revoked")
	}

	c.Locals(claimsLocal, claims)
	c.Locals(identityLocal, claims.Identity())
	return c.Next()
}

func GetIdentity(c *fiber.Ctx) services.Identity {
	if user, ok := c.Locals(identityLocal).(services.Identity); ok {
		return user
	}
	return services.Identity{}
}

// GetClaims returns the verified token behind the current identity.
func GetClaims(c *fiber.Ctx) (services.IdentityClaims, bool) {
	claims, ok := c.Locals(claimsLocal).(services.IdentityClaims)
	return claims, ok
}

func ClearTokenCookie(c *fiber.Ctx) {
	c.ClearCookie(tokenCookie)
}

func EnsureAuthenticated(c *fiber.Ctx) error {
	if !GetIdentity(c).IsAuthenticated() {
		return fiber.NewError(fiber.StatusUnauthorized, "you must sign in first")
	}
	return nil
}
