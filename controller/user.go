package controller

import (
	"conversation-service/service"

	"github.com/gofiber/fiber/v2"
)

// User exposes the current user's projected profile.
type User struct {
	Identity service.Directory
}

func (u *User) Profile(c *fiber.Ctx) error {
	user, err := u.Identity.Resolve(c.Context(), CurrentUserID(c))
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"status":  "success",
		"message": nil,
		"data": fiber.Map{
			"id":           user.ID,
			"created":      user.CreatedAt.Unix(),
			"username":     user.Username,
			"display_name": user.DisplayName,
		},
	})
}
