package api

import (
	"strings"

	"github.com/edvisory/portal-messaging/pkg/internal/http/exts"
	"github.com/edvisory/portal-messaging/pkg/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/samber/lo"
)

func splitQuery(value string) []string {
	return lo.Compact(lo.Map(strings.Split(value, ","), func(item string, _ int) string {
		return strings.ToUpper(strings.TrimSpace(item))
	}))
}

func getUnread(c *fiber.Ctx) error {
	if err := exts.EnsureAuthenticated(c); err != nil {
		return err
	}
	user := exts.GetIdentity(c)

	summary, err := services.GetUnreadCount(user.UserID, services.UnreadFilter{
		IncludeRoles: splitQuery(c.Query("include_roles")),
		ExcludeRoles: splitQuery(c.Query("exclude_roles")),
	})
	if err != nil {
		return exts.ErrorResponse(c, err)
	}

	return c.JSON(summary)
}
