package router

import (
	"conversation-service/controller"
	"conversation-service/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
)

func Rest(app *fiber.App, messenger *controller.Messenger, user *controller.User) {
	api := app.Group("/v1", logger.New())

	// Messenger
	m := api.Group("/messenger", middleware.JWT())
	m.Get("/conversations", messenger.Conversations)
	m.Post("/conversations", messenger.StartConversation)
	m.Get("/conversations/:id/messages", messenger.Messages)
	m.Post("/conversations/:id/messages", messenger.Send)
	m.Post("/conversations/:id/read", messenger.Read)
	m.Get("/search", messenger.SearchUsers)

	// User
	u := api.Group("/user", middleware.JWT())
	u.Get("/profile", user.Profile)
}
