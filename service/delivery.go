package service

import (
	"context"
	"errors"
	"time"

	"conversation-service/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DeliveryTracker owns every mutation of Participant.UnreadCount and the
// read-receipt table. Sent → Read is the only durable transition per message;
// "delivered" lives on the live channel only.
type DeliveryTracker struct {
	DB       *gorm.DB
	Presence Presence
}

// onNewMessage increments the recipient's unread counter. It runs inside the
// same transaction as the message insert so the increment happens at most
// once per message and a concurrent mark-read can never observe the message
// without the counter, or the counter without the message.
func (t *DeliveryTracker) onNewMessage(tx *gorm.DB, conversationID, recipientID uint) error {
	result := tx.Model(&model.Participant{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, recipientID).
		Update("unread_count", gorm.Expr("unread_count + 1"))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotParticipant
	}
	return nil
}

// MarkRead inserts a receipt for every message from the other participant the
// reader has not yet receipted, resets the reader's unread counter, and
// returns the other participant's id so a read event can be pushed to them.
// Duplicate calls are no-ops: receipt inserts are conflict-safe and the
// counter reset is idempotent.
func (t *DeliveryTracker) MarkRead(ctx context.Context, conversationID, readerID uint) (uint, error) {
	var notify uint

	err := t.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		reader, other, err := conversationPair(tx, conversationID, readerID)
		if err != nil {
			return err
		}
		notify = other.UserID

		var unread []model.Message
		err = tx.
			Where("conversation_id = ? AND sender_id = ?", conversationID, other.UserID).
			Where("id NOT IN (?)", tx.Session(&gorm.Session{NewDB: true}).
				Model(&model.ReadReceipt{}).
				Select("message_id").
				Where("user_id = ?", readerID)).
			Find(&unread).Error
		if err != nil {
			return err
		}

		if len(unread) > 0 {
			now := time.Now()
			receipts := make([]model.ReadReceipt, 0, len(unread))
			for _, message := range unread {
				receipts = append(receipts, model.ReadReceipt{
					MessageID: message.ID,
					UserID:    readerID,
					ReadAt:    now,
				})
			}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&receipts).Error; err != nil {
				return err
			}
		}

		// Reset even when nothing needed a receipt.
		return tx.Model(reader).Update("unread_count", 0).Error
	})
	if err != nil {
		if errors.Is(err, ErrConversationNotFound) || errors.Is(err, ErrNotParticipant) {
			return 0, err
		}
		return 0, transient("mark read", err)
	}

	if t.Presence != nil {
		t.Presence.Publish(notify, EventRead, ReadPayload{
			ConversationID: conversationID,
			ReaderID:       readerID,
		})
	}

	return notify, nil
}

// conversationPair loads the two participant rows of a conversation and
// splits them into the acting user's row and the other side's.
func conversationPair(tx *gorm.DB, conversationID, userID uint) (*model.Participant, *model.Participant, error) {
	var participants []model.Participant
	if err := tx.Where("conversation_id = ?", conversationID).Find(&participants).Error; err != nil {
		return nil, nil, err
	}
	if len(participants) == 0 {
		return nil, nil, ErrConversationNotFound
	}

	var own, other *model.Participant
	for i := range participants {
		if participants[i].UserID == userID {
			own = &participants[i]
		} else {
			other = &participants[i]
		}
	}
	if own == nil || other == nil {
		return nil, nil, ErrNotParticipant
	}
	return own, other, nil
}
