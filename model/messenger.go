package model

import (
	"time"

	"gorm.io/gorm"
)

// Conversation is the single thread between two users. The canonical
// (low, high) pair carries the uniqueness invariant: at most one row per
// unordered user pair, enforced by the composite unique index.
type Conversation struct {
	gorm.Model
	UserLowID       uint       `gorm:"not null;uniqueIndex:idx_conversation_pair" json:"user_low_id"`
	UserHighID      uint       `gorm:"not null;uniqueIndex:idx_conversation_pair" json:"user_high_id"`
	LastMessageText string     `json:"last_message_text"`
	LastMessageAt   *time.Time `json:"last_message_at"`

	Participants []Participant `json:"participants"`
}

// Participant is a user's membership in a conversation. Exactly two rows per
// conversation. UnreadCount is owned by the delivery tracker: incremented on
// each incoming message, reset to zero on mark-read, touched nowhere else.
type Participant struct {
	gorm.Model
	ConversationID uint   `gorm:"not null;uniqueIndex:idx_participant_member" json:"conversation_id"`
	UserID         uint   `gorm:"not null;uniqueIndex:idx_participant_member" json:"user_id"`
	DisplayName    string `gorm:"not null" json:"display_name"`
	UnreadCount    int64  `gorm:"not null;default:0" json:"unread_count"`
}

// Message is immutable once created. SenderName is a snapshot of the sender's
// display name at send time.
type Message struct {
	gorm.Model
	ConversationID uint   `gorm:"not null;index" json:"conversation_id"`
	SenderID       uint   `gorm:"not null" json:"sender_id"`
	SenderName     string `gorm:"not null" json:"sender_name"`
	Text           string `json:"text"`
	MediaURL       string `json:"media_url"`
	MediaKind      string `json:"media_kind"`
	PostID         *uint  `json:"post_id"`
}

// ReadReceipt is the authoritative record that UserID has read MessageID.
// At most one row per (message, user); inserts are conflict-safe.
type ReadReceipt struct {
	MessageID uint      `gorm:"primaryKey;autoIncrement:false" json:"message_id"`
	UserID    uint      `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	ReadAt    time.Time `gorm:"not null" json:"read_at"`
}
