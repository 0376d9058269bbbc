package api

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
)

func idParam(c *fiber.Ctx, key string) (uint, error) {
	id, err := c.ParamsInt(key, 0)
	if err != nil || id <= 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("invalid %s", key))
	}
	return uint(id), nil
}

type messageRequest struct {
	Content     string   `json:"content" validate:"max=4096"`
	Attachments []string `json:"attachments" validate:"max=32,dive,required,max=512"`
}
