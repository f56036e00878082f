package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"conversation-service/model"

	"gorm.io/gorm"
)

// MediaPreview replaces the conversation-list preview text for messages that
// carry media but no text body.
const MediaPreview = "Media"

// AppendInput carries the client-supplied part of a new message. The media
// URL points at an object the upload service already stored; PostID embeds a
// post reference into the thread.
type AppendInput struct {
	Text      string
	MediaURL  string
	MediaKind string
	PostID    *uint
}

// MessageLog appends messages and reads them back viewer-scoped.
type MessageLog struct {
	DB       *gorm.DB
	Tracker  *DeliveryTracker
	Identity Directory
	Presence Presence
}

// Append persists a message and, in the same transaction, updates the
// conversation's last-message preview and the recipient's unread counter.
// After commit it pushes the message to the recipient's connections, echoes
// it to the sender's own, and — when the recipient is reachable right now —
// follows up with a best-effort delivered hint to the sender. Push failures
// never fail an append that committed.
func (l *MessageLog) Append(ctx context.Context, conversationID, senderID uint, in AppendInput) (*model.Message, error) {
	if in.Text == "" && in.MediaURL == "" && in.PostID == nil {
		return nil, ErrEmptyMessage
	}

	sender, err := l.Identity.Resolve(ctx, senderID)
	if err != nil {
		return nil, err
	}

	message := &model.Message{
		ConversationID: conversationID,
		SenderID:       senderID,
		SenderName:     sender.DisplayName,
		Text:           in.Text,
		MediaURL:       in.MediaURL,
		MediaKind:      in.MediaKind,
		PostID:         in.PostID,
	}

	var recipientID uint
	err = l.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		conversation := new(model.Conversation)
		if err := tx.First(conversation, conversationID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrConversationNotFound
			}
			return err
		}

		own, other, err := conversationPair(tx, conversationID, senderID)
		if err != nil {
			return err
		}
		recipientID = other.UserID

		if err := tx.Create(message).Error; err != nil {
			return err
		}

		preview := in.Text
		if preview == "" {
			preview = MediaPreview
		}
		now := message.CreatedAt
		updates := map[string]any{
			"last_message_text": preview,
			"last_message_at":   &now,
		}
		if err := tx.Model(conversation).Updates(updates).Error; err != nil {
			return err
		}

		// A rename updates the participant snapshot lazily, on next message.
		if own.DisplayName != sender.DisplayName {
			if err := tx.Model(own).Update("display_name", sender.DisplayName).Error; err != nil {
				return err
			}
		}

		return l.Tracker.onNewMessage(tx, conversationID, recipientID)
	})
	if err != nil {
		if errors.Is(err, ErrConversationNotFound) || errors.Is(err, ErrNotParticipant) {
			return nil, err
		}
		return nil, transient("append message", err)
	}

	if l.Presence != nil {
		payload := NewMessagePayload{
			ConversationID: conversationID,
			Message:        viewFromMessage(message, false),
		}
		l.Presence.Publish(recipientID, EventNewMessage, payload)
		l.Presence.Publish(senderID, EventNewMessage, payload)
		if l.Presence.Online(recipientID) {
			l.Presence.Publish(senderID, EventDelivered, DeliveredPayload{
				ConversationID: conversationID,
				MessageID:      message.ID,
			})
		}
	}

	return message, nil
}

// ListForConversation returns the full message history in ascending
// (created_at, id) order with state flags derived for the viewer: messages
// the viewer sent show the peer's receipt state, messages the viewer received
// are presented as read by them.
func (l *MessageLog) ListForConversation(ctx context.Context, conversationID, viewerID uint) ([]MessageView, error) {
	db := l.DB.WithContext(ctx)

	_, other, err := conversationPair(db, conversationID, viewerID)
	if err != nil {
		if errors.Is(err, ErrConversationNotFound) || errors.Is(err, ErrNotParticipant) {
			return nil, err
		}
		return nil, transient("load participants", err)
	}

	var messages []model.Message
	err = db.
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC, id ASC").
		Find(&messages).Error
	if err != nil {
		return nil, transient("list messages", err)
	}

	var receipts []model.ReadReceipt
	err = db.
		Where("user_id = ?", other.UserID).
		Where("message_id IN (?)", db.Session(&gorm.Session{NewDB: true}).
			Model(&model.Message{}).
			Select("id").
			Where("conversation_id = ? AND sender_id = ?", conversationID, viewerID)).
		Find(&receipts).Error
	if err != nil {
		return nil, transient("list receipts", err)
	}

	readByPeer := make(map[uint]bool, len(receipts))
	for _, receipt := range receipts {
		readByPeer[receipt.MessageID] = true
	}

	views := make([]MessageView, 0, len(messages))
	for i := range messages {
		message := &messages[i]
		read := true
		if message.SenderID == viewerID {
			read = readByPeer[message.ID]
		}
		views = append(views, viewFromMessage(message, read))
	}
	return views, nil
}

// ConversationView is one row of a user's conversation list. Peer identity is
// resolved live from the users projection; the participant snapshot is kept
// only for message history.
type ConversationView struct {
	ID              uint       `json:"id"`
	PeerID          uint       `json:"peer_id"`
	PeerUsername    string     `json:"peer_username"`
	PeerDisplayName string     `json:"peer_display_name"`
	LastMessageText string     `json:"last_message_text"`
	LastMessageAt   *time.Time `json:"last_message_at"`
	UnreadCount     int64      `json:"unread_count"`
}

// ListConversations returns every conversation the viewer participates in,
// most recently active first.
func (l *MessageLog) ListConversations(ctx context.Context, viewerID uint) ([]ConversationView, error) {
	db := l.DB.WithContext(ctx)

	var memberships []model.Participant
	if err := db.Where("user_id = ?", viewerID).Find(&memberships).Error; err != nil {
		return nil, transient("list memberships", err)
	}

	views := make([]ConversationView, 0, len(memberships))
	for _, membership := range memberships {
		conversation := new(model.Conversation)
		if err := db.First(conversation, membership.ConversationID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			return nil, transient("load conversation", err)
		}

		peerID := conversation.UserLowID
		if peerID == viewerID {
			peerID = conversation.UserHighID
		}

		view := ConversationView{
			ID:              conversation.ID,
			PeerID:          peerID,
			LastMessageText: conversation.LastMessageText,
			LastMessageAt:   conversation.LastMessageAt,
			UnreadCount:     membership.UnreadCount,
		}

		// Current name, not the snapshot.
		if peer, err := l.Identity.Resolve(ctx, peerID); err == nil {
			view.PeerUsername = peer.Username
			view.PeerDisplayName = peer.DisplayName
		}

		views = append(views, view)
	}

	sort.SliceStable(views, func(i, j int) bool {
		a, b := views[i].LastMessageAt, views[j].LastMessageAt
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.After(*b)
		}
	})
	return views, nil
}
