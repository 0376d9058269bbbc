package api

import (
	"github.com/edvisory/portal-messaging/pkg/internal/http/exts"
	"github.com/edvisory/portal-messaging/pkg/internal/services"
	"github.com/gofiber/fiber/v2"
)

func listGroups(c *fiber.Ctx) error {
	if err := exts.EnsureAuthenticated(c); err != nil {
		return err
	}
	user := exts.GetIdentity(c)

	groups, err := services.ListGroups(user)
	if err != nil {
		return exts.ErrorResponse(c, err)
	}

	return c.JSON(fiber.Map{
		"count": len(groups),
		"data":  groups,
	})
}

func createGroup(c *fiber.Ctx) error {
	if err := exts.EnsureAuthenticated(c); err != nil {
		return err
	}
	user := exts.GetIdentity(c)

	var data struct {
		Name    string `json:"name" validate:"required,max=256"`
		Members []uint `json:"members" validate:"required,min=1"`
	}

	if err := exts.BindAndValidate(c, &data); err != nil {
		return err
	}

	group, err := services.CreateGroup(user, data.Name, data.Members)
	if err != nil {
		return exts.ErrorResponse(c, err)
	}

	return c.JSON(group)
}

func deleteGroup(c *fiber.Ctx) error {
	if err := exts.EnsureAuthenticated(c); err != nil {
		return err
	}
	user := exts.GetIdentity(c)

	groupId, err := idParam(c, "groupId")
	if err != nil {
		return err
	}

	if err := services.DeleteGroup(user, groupId); err != nil {
		return exts.ErrorResponse(c, err)
	}

	return c.SendStatus(fiber.StatusOK)
}

func addGroupMembers(c *fiber.Ctx) error {
	if err := exts.EnsureAuthenticated(c); err != nil {
		return err
	}
	user := exts.GetIdentity(c)

	groupId, err := idParam(c, "groupId")
	if err != nil {
		return err
	}

	var data struct {
		Members []uint `json:"members" validate:"required,min=1"`
	}

	if err := exts.BindAndValidate(c, &data); err != nil {
		return err
	}

	added, err := services.AddMembers(user, groupId, data.Members)
	if err != nil {
		return exts.ErrorResponse(c, err)
	}

	return c.JSON(fiber.Map{
		"count": len(added),
		"data":  added,
	})
}

func listGroupMessages(c *fiber.Ctx) error {
	if err := exts.EnsureAuthenticated(c); err != nil {
		return err
	}
	user := exts.GetIdentity(c)

	groupId, err := idParam(c, "groupId")
	if err != nil {
		return err
	}

	messages, err := services.ListGroupMessages(user, groupId)
	if err != nil {
		return exts.ErrorResponse(c, err)
	}

	return c.JSON(fiber.Map{
		"count": len(messages),
		"data":  messages,
	})
}

func newGroupMessage(c *fiber.Ctx) error {
	if err := exts.EnsureAuthenticated(c); err != nil {
		return err
	}

	groupId, err := idParam(c, "groupId")
	if err != nil {
		return err
	}

	return postMessage(c, services.GroupRef(groupId))
}

func markGroupRead(c *fiber.Ctx) error {
	if err := exts.EnsureAuthenticated(c); err != nil {
		return err
	}
	user := exts.GetIdentity(c)

	groupId, err := idParam(c, "groupId")
	if err != nil {
		return err
	}

	marked, err := services.MarkGroupRead(user, groupId)
	if err != nil {
		return exts.ErrorResponse(c, err)
	}

	return c.JSON(fiber.Map{"count": marked})
}
