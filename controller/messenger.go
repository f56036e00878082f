package controller

import (
	"encoding/json"
	"errors"
	"strconv"

	"conversation-service/event"
	"conversation-service/service"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// Messenger exposes the conversation subsystem over REST.
type Messenger struct {
	Registry *service.Registry
	Log      *service.MessageLog
	Tracker  *service.DeliveryTracker
	Search   *service.SearchIndex
}

type StartConversationInput struct {
	UserID uint `json:"user_id"`
}

type SendMessageInput struct {
	Text      string `json:"text"`
	MediaURL  string `json:"media_url"`
	MediaKind string `json:"media_kind"`
	PostID    *uint  `json:"post_id"`
}

type MessageSentEvent struct {
	ConversationID uint `json:"conversation_id"`
	MessageID      uint `json:"message_id"`
	SenderID       uint `json:"sender_id"`
}

type ConversationReadEvent struct {
	ConversationID uint `json:"conversation_id"`
	ReaderID       uint `json:"reader_id"`
	NotifiedID     uint `json:"notified_id"`
}

// CurrentUserID extracts the authenticated user from the JWT middleware.
func CurrentUserID(c *fiber.Ctx) uint {
	user := c.Locals("user").(*jwt.Token)
	claims := user.Claims.(jwt.MapClaims)
	id, _ := strconv.ParseUint(claims["id"].(string), 10, 64)
	return uint(id)
}

func (m *Messenger) Conversations(c *fiber.Ctx) error {
	views, err := m.Log.ListConversations(c.Context(), CurrentUserID(c))
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"status":  "success",
		"message": nil,
		"data":    views,
	})
}

func (m *Messenger) StartConversation(c *fiber.Ctx) error {
	input := new(StartConversationInput)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"status":  "error",
			"message": "Review your input",
			"data":    nil,
		})
	}

	conversation, err := m.Registry.GetOrCreate(c.Context(), CurrentUserID(c), input.UserID)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"status":  "success",
		"message": nil,
		"data": fiber.Map{
			"id": conversation.ID,
		},
	})
}

func (m *Messenger) Messages(c *fiber.Ctx) error {
	conversationID, err := parseID(c)
	if err != nil {
		return respondError(c, service.ErrConversationNotFound)
	}

	views, err := m.Log.ListForConversation(c.Context(), conversationID, CurrentUserID(c))
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"status":  "success",
		"message": nil,
		"data":    views,
	})
}

func (m *Messenger) Send(c *fiber.Ctx) error {
	conversationID, err := parseID(c)
	if err != nil {
		return respondError(c, service.ErrConversationNotFound)
	}

	input := new(SendMessageInput)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"status":  "error",
			"message": "Review your input",
			"data":    nil,
		})
	}

	senderID := CurrentUserID(c)
	message, err := m.Log.Append(c.Context(), conversationID, senderID, service.AppendInput{
		Text:      input.Text,
		MediaURL:  input.MediaURL,
		MediaKind: input.MediaKind,
		PostID:    input.PostID,
	})
	if err != nil {
		return respondError(c, err)
	}

	if event.RabbitMQChannel != nil {
		payload, _ := json.Marshal(MessageSentEvent{
			ConversationID: conversationID,
			MessageID:      message.ID,
			SenderID:       senderID,
		})
		event.Emit("notifier", event.ActionMessageSent, payload, true)
	}

	return c.JSON(fiber.Map{
		"status":  "success",
		"message": nil,
		"data": fiber.Map{
			"id":      message.ID,
			"created": message.CreatedAt.Unix(),
		},
	})
}

func (m *Messenger) Read(c *fiber.Ctx) error {
	conversationID, err := parseID(c)
	if err != nil {
		return respondError(c, service.ErrConversationNotFound)
	}

	readerID := CurrentUserID(c)
	notified, err := m.Tracker.MarkRead(c.Context(), conversationID, readerID)
	if err != nil {
		return respondError(c, err)
	}

	if event.RabbitMQChannel != nil {
		payload, _ := json.Marshal(ConversationReadEvent{
			ConversationID: conversationID,
			ReaderID:       readerID,
			NotifiedID:     notified,
		})
		event.Emit("notifier", event.ActionConversationRead, payload, true)
	}

	return c.JSON(fiber.Map{
		"status":  "success",
		"message": nil,
		"data":    nil,
	})
}

func (m *Messenger) SearchUsers(c *fiber.Ctx) error {
	candidates, err := m.Search.Search(c.Context(), CurrentUserID(c), c.Query("q"))
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"status":  "success",
		"message": nil,
		"data":    candidates,
	})
}

func parseID(c *fiber.Ctx) (uint, error) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return 0, err
	}
	return uint(id), nil
}

func respondError(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrConversationNotFound), errors.Is(err, service.ErrUserNotFound):
		status = fiber.StatusNotFound
	case errors.Is(err, service.ErrNotParticipant):
		status = fiber.StatusForbidden
	case errors.Is(err, service.ErrSelfConversation), errors.Is(err, service.ErrEmptyMessage):
		status = fiber.StatusBadRequest
	case service.IsTransient(err):
		status = fiber.StatusServiceUnavailable
	}

	return c.Status(status).JSON(fiber.Map{
		"status":  "error",
		"message": err.Error(),
		"data":    nil,
	})
}
