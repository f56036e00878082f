package service

import "conversation-service/model"

// Live-push event names. Payloads are delivered as-is to every active
// connection of the addressed user; a user with no connections receives
// nothing, and the next full fetch reconstructs state from the store.
const (
	EventNewMessage = "messenger_new_message"
	EventDelivered  = "messenger_delivered"
	EventRead       = "messenger_read"
)

// Presence is the per-user broadcast channel. Publish is fire-and-forget:
// failures never fail the triggering operation. Online is a hint used only
// for the best-effort delivered signal, never for correctness.
type Presence interface {
	Publish(userID uint, event string, payload any)
	Online(userID uint) bool
}

type NewMessagePayload struct {
	ConversationID uint        `json:"conversation_id"`
	Message        MessageView `json:"message"`
}

type DeliveredPayload struct {
	ConversationID uint `json:"conversation_id"`
	MessageID      uint `json:"message_id"`
}

type ReadPayload struct {
	ConversationID uint `json:"conversation_id"`
	ReaderID       uint `json:"reader_id"`
}

// MessageView is a message enriched with the viewer-derived state flags.
// Delivered is true as soon as the row is persisted; Read derives from the
// receipt table (peer's receipt for own messages, trivially true for
// received ones).
type MessageView struct {
	ID             uint   `json:"id"`
	ConversationID uint   `json:"conversation_id"`
	SenderID       uint   `json:"sender_id"`
	SenderName     string `json:"sender_name"`
	Text           string `json:"text"`
	MediaURL       string `json:"media_url,omitempty"`
	MediaKind      string `json:"media_kind,omitempty"`
	PostID         *uint  `json:"post_id,omitempty"`
	CreatedAt      int64  `json:"created"`
	Delivered      bool   `json:"delivered"`
	Read           bool   `json:"read"`
}

func viewFromMessage(m *model.Message, read bool) MessageView {
	return MessageView{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		SenderName:     m.SenderName,
		Text:           m.Text,
		MediaURL:       m.MediaURL,
		MediaKind:      m.MediaKind,
		PostID:         m.PostID,
		CreatedAt:      m.CreatedAt.Unix(),
		Delivered:      true,
		Read:           read,
	}
}
