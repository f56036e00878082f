package listener

import (
	"encoding/json"
	"log"

	"conversation-service/database"
	"conversation-service/event"
	"conversation-service/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	IdentityChannel = make(chan event.EventChannelData)
)

// UserEvent is the identity service's payload for user_created and
// user_renamed actions.
type UserEvent struct {
	ID          uint   `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
}

// Identity consumes identity-service events and keeps the local users
// projection current. Participant and message snapshots are left alone: they
// are historical, and a rename reaches the participant snapshot lazily on the
// user's next message.
func Identity() {
	for evt := range IdentityChannel {
		switch evt.Action {
		case event.ActionUserCreated, event.ActionUserRenamed:
			data := UserEvent{}
			if err := json.Unmarshal(evt.Data, &data); err != nil {
				log.Printf("identity event with malformed payload: %v", err)
				continue
			}
			if data.ID == 0 {
				continue
			}
			upsertUser(data)
		default:
			log.Printf("unknown identity action: %s", evt.Action)
		}
	}
}

func upsertUser(data UserEvent) {
	user := model.User{
		Model:       gorm.Model{ID: data.ID},
		Username:    data.Username,
		DisplayName: data.DisplayName,
	}
	err := database.Postgres.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"username", "display_name"}),
	}).Create(&user).Error
	if err != nil {
		log.Printf("failed to project user %d: %v", data.ID, err)
	}
}
