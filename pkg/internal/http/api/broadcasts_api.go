package api

import (
	"github.com/edvisory/portal-messaging/pkg/internal/http/exts"
	"github.com/edvisory/portal-messaging/pkg/internal/services"
	"github.com/gofiber/fiber/v2"
)

func listBroadcasts(c *fiber.Ctx) error {
	if err := exts.EnsureAuthenticated(c); err != nil {
		return err
	}
	user := exts.GetIdentity(c)

	broadcasts, err := services.ListBroadcasts(user)
	if err != nil {
		return exts.ErrorResponse(c, err)
	}

	return c.JSON(fiber.Map{
		"count": len(broadcasts),
		"data":  broadcasts,
	})
}

func createBroadcast(c *fiber.Ctx) error {
	if err := exts.EnsureAuthenticated(c); err != nil {
		return err
	}
	user := exts.GetIdentity(c)

	var data struct {
		Name       string `json:"name" validate:"required,max=256"`
		Recipients []uint `json:"recipients" validate:"required,min=1"`
	}

	if err := exts.BindAndValidate(c, &data); err != nil {
		return err
	}

	broadcast, err := services.CreateBroadcast(user, data.Name, data.Recipients)
	if err != nil && broadcast.ID > 0 {
		// The broadcast exists but its recipients do not, clients retry through the recipients endpoint.
		return c.Status(fiber.StatusMultiStatus).JSON(fiber.Map{
			"data":  broadcast,
			"error": "recipients were not saved, please add them again",
		})
	} else if err != nil {
		return exts.ErrorResponse(c, err)
	}

	return c.JSON(broadcast)
}

func addBroadcastRecipients(c *fiber.Ctx) error {
	if err := exts.EnsureAuthenticated(c); err != nil {
		return err
	}
	user := exts.GetIdentity(c)

	broadcastId, err := idParam(c, "broadcastId")
	if err != nil {
		return err
	}

	var data struct {
		Recipients []uint `json:"recipients" validate:"required,min=1"`
	}

	if err := exts.BindAndValidate(c, &data); err != nil {
		return err
	}

	added, err := services.AddRecipients(user, broadcastId, data.Recipients)
	if err != nil {
		return exts.ErrorResponse(c, err)
	}

	return c.JSON(fiber.Map{
		"count": len(added),
		"data":  added,
	})
}

func listBroadcastMessages(c *fiber.Ctx) error {
	if err := exts.EnsureAuthenticated(c); err != nil {
		return err
	}
	user := exts.GetIdentity(c)

	broadcastId, err := idParam(c, "broadcastId")
	if err != nil {
		return err
	}

	messages, err := services.ListBroadcastMessages(user, broadcastId)
	if err != nil {
		return exts.ErrorResponse(c, err)
	}

	return c.JSON(fiber.Map{
		"count": len(messages),
		"data":  messages,
	})
}

func newBroadcastMessage(c *fiber.Ctx) error {
	if err := exts.EnsureAuthenticated(c); err != nil {
		return err
	}

	broadcastId, err := idParam(c, "broadcastId")
	if err != nil {
		return err
	}

	return postMessage(c, services.BroadcastRef(broadcastId))
}
