package api

import (
	"github.com/edvisory/portal-messaging/pkg/internal/http/exts"
	"github.com/edvisory/portal-messaging/pkg/internal/services"
	"github.com/gofiber/fiber/v2"
)

func listConversations(c *fiber.Ctx) error {
	if err := exts.EnsureAuthenticated(c); err != nil {
		return err
	}
	user := exts.GetIdentity(c)

	conversations, err := services.ListConversations(user)
	if err != nil {
		return exts.ErrorResponse(c, err)
	}

	return c.JSON(fiber.Map{
		"count": len(conversations),
		"data":  conversations,
	})
}

func createDirectConversation(c *fiber.Ctx) error {
	if err := exts.EnsureAuthenticated(c); err != nil {
		return err
	}
	user := exts.GetIdentity(c)

	var data struct {
		RelatedUser uint `json:"related_user" validate:"required"`
	}

	if err := exts.BindAndValidate(c, &data); err != nil {
		return err
	}

	conversation, err := services.GetOrCreateDirectConversation(user, data.RelatedUser)
	if err != nil {
		return exts.ErrorResponse(c, err)
	}

	return c.JSON(conversation)
}

func getApplicationConversation(c *fiber.Ctx) error {
	if err := exts.EnsureAuthenticated(c); err != nil {
		return err
	}
	user := exts.GetIdentity(c)

	applicationId, err := idParam(c, "applicationId")
	if err != nil {
		return err
	}

	conversation, err := services.GetOrCreateApplicationConversation(user, applicationId)
	if err != nil {
		return exts.ErrorResponse(c, err)
	}

	return c.JSON(conversation)
}

func getConversation(c *fiber.Ctx) error {
	if err := exts.EnsureAuthenticated(c); err != nil {
		return err
	}
	user := exts.GetIdentity(c)

	conversationId, err := idParam(c, "conversationId")
	if err != nil {
		return err
	}

	conversation, err := services.GetConversation(user, conversationId)
	if err != nil {
		return exts.ErrorResponse(c, err)
	}

	return c.JSON(conversation)
}

func deleteConversation(c *fiber.Ctx) error {
	if err := exts.EnsureAuthenticated(c); err != nil {
		return err
	}
	user := exts.GetIdentity(c)

	conversationId, err := idParam(c, "conversationId")
	if err != nil {
		return err
	}

	if err := services.DeleteConversation(user, conversationId); err != nil {
		return exts.ErrorResponse(c, err)
	}

	return c.SendStatus(fiber.StatusOK)
}

func markConversationRead(c *fiber.Ctx) error {
	if err := exts.EnsureAuthenticated(c); err != nil {
		return err
	}
	user := exts.GetIdentity(c)

	conversationId, err := idParam(c, "conversationId")
	if err != nil {
		return err
	}

	marked, err := services.MarkConversationRead(user, conversationId)
	if err != nil {
		return exts.ErrorResponse(c, err)
	}

	return c.JSON(fiber.Map{"count": marked})
}
