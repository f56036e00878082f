package service

import (
	"context"
	"testing"

	"conversation-service/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendValidation(t *testing.T) {
	db, registry, log, _ := newMessenger(t, nil)
	alice := createUser(t, db, "alice", "Alice")
	bob := createUser(t, db, "bob", "Bob")
	carol := createUser(t, db, "carol", "Carol")

	conversation, err := registry.GetOrCreate(context.Background(), alice.ID, bob.ID)
	require.NoError(t, err)

	_, err = log.Append(context.Background(), conversation.ID, alice.ID, AppendInput{})
	assert.ErrorIs(t, err, ErrEmptyMessage)

	_, err = log.Append(context.Background(), conversation.ID+100, alice.ID, AppendInput{Text: "hi"})
	assert.ErrorIs(t, err, ErrConversationNotFound)

	_, err = log.Append(context.Background(), conversation.ID, carol.ID, AppendInput{Text: "hi"})
	assert.ErrorIs(t, err, ErrNotParticipant)
}

func TestAppendUpdatesConversationPreview(t *testing.T) {
	db, registry, log, _ := newMessenger(t, nil)
	alice := createUser(t, db, "alice", "Alice")
	bob := createUser(t, db, "bob", "Bob")

	conversation, err := registry.GetOrCreate(context.Background(), alice.ID, bob.ID)
	require.NoError(t, err)

	_, err = log.Append(context.Background(), conversation.ID, alice.ID, AppendInput{Text: "hello"})
	require.NoError(t, err)

	updated := new(model.Conversation)
	require.NoError(t, db.First(updated, conversation.ID).Error)
	assert.Equal(t, "hello", updated.LastMessageText)
	require.NotNil(t, updated.LastMessageAt)

	// A media-only message gets the placeholder preview.
	_, err = log.Append(context.Background(), conversation.ID, alice.ID, AppendInput{
		MediaURL:  "https://cdn.example/clip.mp4",
		MediaKind: "video",
	})
	require.NoError(t, err)

	require.NoError(t, db.First(updated, conversation.ID).Error)
	assert.Equal(t, MediaPreview, updated.LastMessageText)
}

func TestAppendPublishesToBothSides(t *testing.T) {
	presence := &fakePresence{online: map[uint]bool{}}
	db, registry, log, _ := newMessenger(t, presence)
	alice := createUser(t, db, "alice", "Alice")
	bob := createUser(t, db, "bob", "Bob")

	conversation, err := registry.GetOrCreate(context.Background(), alice.ID, bob.ID)
	require.NoError(t, err)

	message, err := log.Append(context.Background(), conversation.ID, alice.ID, AppendInput{Text: "hi"})
	require.NoError(t, err)

	news := presence.byEvent(EventNewMessage)
	require.Len(t, news, 2)
	assert.Equal(t, bob.ID, news[0].UserID)
	assert.Equal(t, alice.ID, news[1].UserID)

	payload := news[0].Payload.(NewMessagePayload)
	assert.Equal(t, conversation.ID, payload.ConversationID)
	assert.Equal(t, message.ID, payload.Message.ID)
	assert.True(t, payload.Message.Delivered)

	// Recipient offline: no delivered hint.
	assert.Empty(t, presence.byEvent(EventDelivered))

	presence.online[bob.ID] = true
	next, err := log.Append(context.Background(), conversation.ID, alice.ID, AppendInput{Text: "you there?"})
	require.NoError(t, err)

	delivered := presence.byEvent(EventDelivered)
	require.Len(t, delivered, 1)
	assert.Equal(t, alice.ID, delivered[0].UserID)
	assert.Equal(t, DeliveredPayload{
		ConversationID: conversation.ID,
		MessageID:      next.ID,
	}, delivered[0].Payload)
}

func TestAppendRefreshesSenderSnapshot(t *testing.T) {
	db, registry, log, _ := newMessenger(t, nil)
	alice := createUser(t, db, "alice", "Alice")
	bob := createUser(t, db, "bob", "Bob")

	conversation, err := registry.GetOrCreate(context.Background(), alice.ID, bob.ID)
	require.NoError(t, err)

	require.NoError(t, db.Model(&model.User{}).
		Where("id = ?", alice.ID).
		Update("display_name", "Alice Cooper").Error)

	message, err := log.Append(context.Background(), conversation.ID, alice.ID, AppendInput{Text: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "Alice Cooper", message.SenderName)

	participant := new(model.Participant)
	require.NoError(t, db.
		Where("conversation_id = ? AND user_id = ?", conversation.ID, alice.ID).
		First(participant).Error)
	assert.Equal(t, "Alice Cooper", participant.DisplayName)
}

func TestListForConversationOrderAndFlags(t *testing.T) {
	db, registry, log, tracker := newMessenger(t, nil)
	alice := createUser(t, db, "alice", "Alice")
	bob := createUser(t, db, "bob", "Bob")

	conversation, err := registry.GetOrCreate(context.Background(), alice.ID, bob.ID)
	require.NoError(t, err)

	_, err = log.Append(context.Background(), conversation.ID, alice.ID, AppendInput{Text: "hi"})
	require.NoError(t, err)
	_, err = log.Append(context.Background(), conversation.ID, bob.ID, AppendInput{Text: "hey"})
	require.NoError(t, err)

	views, err := log.ListForConversation(context.Background(), conversation.ID, alice.ID)
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, "hi", views[0].Text)
	assert.Equal(t, "hey", views[1].Text)

	// Bob has not read "hi"; "hey" is trivially read by its viewer.
	assert.False(t, views[0].Read)
	assert.True(t, views[0].Delivered)
	assert.True(t, views[1].Read)

	_, err = tracker.MarkRead(context.Background(), conversation.ID, bob.ID)
	require.NoError(t, err)

	views, err = log.ListForConversation(context.Background(), conversation.ID, alice.ID)
	require.NoError(t, err)
	assert.True(t, views[0].Read)

	// Stable across repeated calls.
	again, err := log.ListForConversation(context.Background(), conversation.ID, alice.ID)
	require.NoError(t, err)
	require.Len(t, again, 2)
	for i := range views {
		assert.Equal(t, views[i].ID, again[i].ID)
	}

	_, err = log.ListForConversation(context.Background(), conversation.ID, createUser(t, db, "carol", "Carol").ID)
	assert.ErrorIs(t, err, ErrNotParticipant)
}

func TestListConversationsResolvesCurrentNames(t *testing.T) {
	db, registry, log, _ := newMessenger(t, nil)
	alice := createUser(t, db, "alice", "Alice")
	bob := createUser(t, db, "bob", "Bob")

	conversation, err := registry.GetOrCreate(context.Background(), alice.ID, bob.ID)
	require.NoError(t, err)

	_, err = log.Append(context.Background(), conversation.ID, bob.ID, AppendInput{Text: "hello"})
	require.NoError(t, err)

	// A rename shows up in the list without any new message from bob.
	require.NoError(t, db.Model(&model.User{}).
		Where("id = ?", bob.ID).
		Update("display_name", "Robert").Error)

	views, err := log.ListConversations(context.Background(), alice.ID)
	require.NoError(t, err)
	require.Len(t, views, 1)

	assert.Equal(t, conversation.ID, views[0].ID)
	assert.Equal(t, bob.ID, views[0].PeerID)
	assert.Equal(t, "Robert", views[0].PeerDisplayName)
	assert.Equal(t, "hello", views[0].LastMessageText)
	assert.EqualValues(t, 1, views[0].UnreadCount)
}
