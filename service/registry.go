package service

import (
	"context"
	"errors"

	"conversation-service/model"

	"gorm.io/gorm"
)

// Registry finds or creates the single conversation between two users.
type Registry struct {
	DB       *gorm.DB
	Identity Directory
}

// GetOrCreate returns the conversation between a and b, creating it with two
// zero-unread participant rows on first use. Lookup is symmetric: the pair is
// canonicalized to (min, max) before touching the store, so the caller order
// never matters. A concurrent creation race is resolved internally: the loser
// hits the unique pair index and returns the winner's row.
func (r *Registry) GetOrCreate(ctx context.Context, a, b uint) (*model.Conversation, error) {
	if a == b {
		return nil, ErrSelfConversation
	}

	userA, err := r.Identity.Resolve(ctx, a)
	if err != nil {
		return nil, err
	}
	userB, err := r.Identity.Resolve(ctx, b)
	if err != nil {
		return nil, err
	}

	low, high := a, b
	if low > high {
		low, high = high, low
	}

	if conversation, err := r.lookup(ctx, low, high); err == nil {
		return conversation, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, transient("lookup conversation", err)
	}

	conversation := &model.Conversation{UserLowID: low, UserHighID: high}
	err = r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(conversation).Error; err != nil {
			return err
		}
		participants := []model.Participant{
			{ConversationID: conversation.ID, UserID: userA.ID, DisplayName: userA.DisplayName},
			{ConversationID: conversation.ID, UserID: userB.ID, DisplayName: userB.DisplayName},
		}
		return tx.Create(&participants).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// Lost the creation race; the other caller's row is the one.
			conversation, err := r.lookup(ctx, low, high)
			if err != nil {
				return nil, transient("lookup conversation after race", err)
			}
			return conversation, nil
		}
		return nil, transient("create conversation", err)
	}

	return conversation, nil
}

func (r *Registry) lookup(ctx context.Context, low, high uint) (*model.Conversation, error) {
	conversation := new(model.Conversation)
	err := r.DB.WithContext(ctx).
		Where(&model.Conversation{UserLowID: low, UserHighID: high}).
		Preload("Participants").
		First(conversation).Error
	if err != nil {
		return nil, err
	}
	return conversation, nil
}
