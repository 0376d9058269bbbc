package api

import (
	"github.com/edvisory/portal-messaging/pkg/internal/http/exts"
	"github.com/edvisory/portal-messaging/pkg/internal/services"
	"github.com/gofiber/fiber/v2"
)

func postMessage(c *fiber.Ctx, thread services.ThreadRef) error {
	user := exts.GetIdentity(c)

	var data messageRequest
	if err := exts.BindAndValidate(c, &data); err != nil {
		return err
	}

	message, err := services.AppendMessage(user, thread, data.Content, data.Attachments)
	if err != nil {
		return exts.ErrorResponse(c, err)
	}

	return c.JSON(message)
}

func newConversationMessage(c *fiber.Ctx) error {
	if err := exts.EnsureAuthenticated(c); err != nil {
		return err
	}

	conversationId, err := idParam(c, "conversationId")
	if err != nil {
		return err
	}

	return postMessage(c, services.ConversationRef(conversationId))
}

func editMessage(c *fiber.Ctx) error {
	if err := exts.EnsureAuthenticated(c); err != nil {
		return err
	}
	user := exts.GetIdentity(c)

	messageId, err := idParam(c, "messageId")
	if err != nil {
		return err
	}

	var data messageRequest
	if err := exts.BindAndValidate(c, &data); err != nil {
		return err
	}

	message, err := services.EditMessage(user, messageId, data.Content, data.Attachments)
	if err != nil {
		return exts.ErrorResponse(c, err)
	}

	return c.JSON(message)
}
