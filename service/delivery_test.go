package service

import (
	"context"
	"testing"

	"conversation-service/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The scenario from the product contract: alice and bob exchange messages,
// bob marks the thread read, counters and receipts follow.
func TestUnreadCountersAndMarkRead(t *testing.T) {
	presence := &fakePresence{online: map[uint]bool{}}
	db, registry, log, tracker := newMessenger(t, presence)
	alice := createUser(t, db, "alice", "Alice")
	bob := createUser(t, db, "bob", "Bob")

	conversation, err := registry.GetOrCreate(context.Background(), alice.ID, bob.ID)
	require.NoError(t, err)

	_, err = log.Append(context.Background(), conversation.ID, alice.ID, AppendInput{Text: "hi"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, unreadCount(t, db, conversation.ID, bob.ID))
	assert.EqualValues(t, 0, unreadCount(t, db, conversation.ID, alice.ID))

	_, err = log.Append(context.Background(), conversation.ID, bob.ID, AppendInput{Text: "hey"})
	require.NoError(t, err)
	// Bob's own message does not count against him.
	assert.EqualValues(t, 1, unreadCount(t, db, conversation.ID, bob.ID))
	assert.EqualValues(t, 1, unreadCount(t, db, conversation.ID, alice.ID))

	notified, err := tracker.MarkRead(context.Background(), conversation.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, alice.ID, notified)
	assert.EqualValues(t, 0, unreadCount(t, db, conversation.ID, bob.ID))
	assert.EqualValues(t, 1, unreadCount(t, db, conversation.ID, alice.ID))

	var receipts []model.ReadReceipt
	require.NoError(t, db.Where("user_id = ?", bob.ID).Find(&receipts).Error)
	require.Len(t, receipts, 1)

	reads := presence.byEvent(EventRead)
	require.Len(t, reads, 1)
	assert.Equal(t, alice.ID, reads[0].UserID)
	assert.Equal(t, ReadPayload{ConversationID: conversation.ID, ReaderID: bob.ID}, reads[0].Payload)
}

func TestMarkReadIsIdempotent(t *testing.T) {
	db, registry, log, tracker := newMessenger(t, nil)
	alice := createUser(t, db, "alice", "Alice")
	bob := createUser(t, db, "bob", "Bob")

	conversation, err := registry.GetOrCreate(context.Background(), alice.ID, bob.ID)
	require.NoError(t, err)

	_, err = log.Append(context.Background(), conversation.ID, alice.ID, AppendInput{Text: "hi"})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		notified, err := tracker.MarkRead(context.Background(), conversation.ID, bob.ID)
		require.NoError(t, err)
		assert.Equal(t, alice.ID, notified)
	}

	assert.EqualValues(t, 0, unreadCount(t, db, conversation.ID, bob.ID))

	var count int64
	require.NoError(t, db.Model(&model.ReadReceipt{}).Where("user_id = ?", bob.ID).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestMarkReadOnEmptyConversationStillResets(t *testing.T) {
	db, registry, _, tracker := newMessenger(t, nil)
	alice := createUser(t, db, "alice", "Alice")
	bob := createUser(t, db, "bob", "Bob")

	conversation, err := registry.GetOrCreate(context.Background(), alice.ID, bob.ID)
	require.NoError(t, err)

	notified, err := tracker.MarkRead(context.Background(), conversation.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, alice.ID, notified)
	assert.EqualValues(t, 0, unreadCount(t, db, conversation.ID, bob.ID))
}

func TestReadMessageNeverCountsAgain(t *testing.T) {
	db, registry, log, tracker := newMessenger(t, nil)
	alice := createUser(t, db, "alice", "Alice")
	bob := createUser(t, db, "bob", "Bob")

	conversation, err := registry.GetOrCreate(context.Background(), alice.ID, bob.ID)
	require.NoError(t, err)

	_, err = log.Append(context.Background(), conversation.ID, alice.ID, AppendInput{Text: "one"})
	require.NoError(t, err)

	_, err = tracker.MarkRead(context.Background(), conversation.ID, bob.ID)
	require.NoError(t, err)

	// Further traffic only counts the new message.
	_, err = log.Append(context.Background(), conversation.ID, alice.ID, AppendInput{Text: "two"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, unreadCount(t, db, conversation.ID, bob.ID))

	_, err = tracker.MarkRead(context.Background(), conversation.ID, bob.ID)
	require.NoError(t, err)

	var count int64
	require.NoError(t, db.Model(&model.ReadReceipt{}).Where("user_id = ?", bob.ID).Count(&count).Error)
	assert.EqualValues(t, 2, count)
}

func TestMarkReadRequiresMembership(t *testing.T) {
	db, registry, _, tracker := newMessenger(t, nil)
	alice := createUser(t, db, "alice", "Alice")
	bob := createUser(t, db, "bob", "Bob")
	carol := createUser(t, db, "carol", "Carol")

	conversation, err := registry.GetOrCreate(context.Background(), alice.ID, bob.ID)
	require.NoError(t, err)

	_, err = tracker.MarkRead(context.Background(), conversation.ID, carol.ID)
	assert.ErrorIs(t, err, ErrNotParticipant)

	_, err = tracker.MarkRead(context.Background(), conversation.ID+100, bob.ID)
	assert.ErrorIs(t, err, ErrConversationNotFound)
}
