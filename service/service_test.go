package service

import (
	"testing"

	"conversation-service/model"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&model.User{},
		&model.Conversation{},
		&model.Participant{},
		&model.Message{},
		&model.ReadReceipt{},
	))

	return db
}

func createUser(t *testing.T, db *gorm.DB, username, displayName string) *model.User {
	t.Helper()

	user := &model.User{Username: username, DisplayName: displayName}
	require.NoError(t, db.Create(user).Error)
	return user
}

type published struct {
	UserID  uint
	Event   string
	Payload any
}

// fakePresence records publishes and reports scripted online state.
type fakePresence struct {
	online map[uint]bool
	events []published
}

func (p *fakePresence) Publish(userID uint, event string, payload any) {
	p.events = append(p.events, published{UserID: userID, Event: event, Payload: payload})
}

func (p *fakePresence) Online(userID uint) bool {
	return p.online[userID]
}

func (p *fakePresence) byEvent(event string) []published {
	var out []published
	for _, e := range p.events {
		if e.Event == event {
			out = append(out, e)
		}
	}
	return out
}

// newMessenger builds the service graph over a fresh in-memory store.
func newMessenger(t *testing.T, presence *fakePresence) (*gorm.DB, *Registry, *MessageLog, *DeliveryTracker) {
	t.Helper()

	db := newTestDB(t)
	directory := &UserDirectory{DB: db}
	tracker := &DeliveryTracker{DB: db}
	log := &MessageLog{DB: db, Tracker: tracker, Identity: directory}
	if presence != nil {
		tracker.Presence = presence
		log.Presence = presence
	}
	registry := &Registry{DB: db, Identity: directory}
	return db, registry, log, tracker
}

func unreadCount(t *testing.T, db *gorm.DB, conversationID, userID uint) int64 {
	t.Helper()

	participant := new(model.Participant)
	require.NoError(t, db.
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		First(participant).Error)
	return participant.UnreadCount
}
