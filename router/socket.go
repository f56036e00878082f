package router

import (
	"context"
	"encoding/json"
	"strconv"

	"conversation-service/controller"
	"conversation-service/event"
	"conversation-service/service"
	"conversation-service/socketio"
	"conversation-service/utils"

	"github.com/zishang520/socket.io/v2/socket"
)

type InitConnection struct {
	Conversations []service.ConversationView `json:"conversations"`
	UserStatus    []UserStatus               `json:"userStatus"`
}

type UserStatus struct {
	Id     uint `json:"id"`
	Status bool `json:"status"`
}

type SocketError struct {
	Event   string `json:"event"`
	Message string `json:"message"`
}

// Socket wires the messenger operations onto the per-user live channel. New
// message, delivered and read pushes do not originate here: the services
// publish them through the presence channel, so every active connection of a
// user receives them regardless of which connection triggered the change.
func Socket(server *socket.Server, messenger *controller.Messenger) {
	presence := socketio.Channel{}

	server.On("connection", func(clients ...interface{}) {
		client := clients[0].(*socket.Socket)

		userID := func() (uint, bool) {
			if client.Data() == nil {
				return 0, false
			}
			id, err := strconv.ParseUint(client.Data().(*utils.TokenMetadata).Id, 10, 64)
			if err != nil {
				return 0, false
			}
			return uint(id), true
		}

		fail := func(eventName string, err error) {
			client.Emit("messenger_error", SocketError{
				Event:   eventName,
				Message: err.Error(),
			})
		}

		client.On("init", func(args ...interface{}) {
			conversations := []service.ConversationView{}
			userStatus := []UserStatus{}

			if viewer, ok := userID(); ok {
				views, err := messenger.Log.ListConversations(context.Background(), viewer)
				if err == nil {
					conversations = views
					for _, view := range views {
						userStatus = append(userStatus, UserStatus{
							Id:     view.PeerID,
							Status: presence.Online(view.PeerID),
						})
					}
				}
			}

			client.Emit(
				"init",
				InitConnection{
					Conversations: conversations,
					UserStatus:    userStatus,
				},
			)
		})

		client.On("messenger_start_dialog", func(args ...interface{}) {
			viewer, ok := userID()
			if !ok || len(args) < 1 {
				return
			}
			peer, _ := strconv.ParseUint(args[0].(string), 10, 64)

			conversation, err := messenger.Registry.GetOrCreate(context.Background(), viewer, uint(peer))
			if err != nil {
				fail("messenger_start_dialog", err)
				return
			}

			client.Emit("messenger_start_dialog", map[string]any{
				"id": conversation.ID,
			})
		})

		client.On("messenger_send_message", func(args ...interface{}) {
			viewer, ok := userID()
			if !ok || len(args) < 2 {
				return
			}
			conversationID, _ := strconv.ParseUint(args[0].(string), 10, 64)

			input := service.AppendInput{Text: args[1].(string)}
			if len(args) > 3 {
				input.MediaURL = args[2].(string)
				input.MediaKind = args[3].(string)
			}

			message, err := messenger.Log.Append(context.Background(), uint(conversationID), viewer, input)
			if err != nil {
				// A send that fails to persist is reported, never dropped.
				fail("messenger_send_message", err)
				return
			}

			if event.RabbitMQChannel != nil {
				payload, _ := json.Marshal(controller.MessageSentEvent{
					ConversationID: uint(conversationID),
					MessageID:      message.ID,
					SenderID:       viewer,
				})
				event.Emit("notifier", event.ActionMessageSent, payload, true)
			}
		})

		client.On("messenger_dialog_messages", func(args ...interface{}) {
			viewer, ok := userID()
			if !ok || len(args) < 1 {
				return
			}
			conversationID, _ := strconv.ParseUint(args[0].(string), 10, 64)

			views, err := messenger.Log.ListForConversation(context.Background(), uint(conversationID), viewer)
			if err != nil {
				fail("messenger_dialog_messages", err)
				return
			}

			client.Emit("messenger_dialog_messages", views)
		})

		client.On("messenger_read_dialog", func(args ...interface{}) {
			viewer, ok := userID()
			if !ok || len(args) < 1 {
				return
			}
			conversationID, _ := strconv.ParseUint(args[0].(string), 10, 64)

			notified, err := messenger.Tracker.MarkRead(context.Background(), uint(conversationID), viewer)
			if err != nil {
				fail("messenger_read_dialog", err)
				return
			}

			if event.RabbitMQChannel != nil {
				payload, _ := json.Marshal(controller.ConversationReadEvent{
					ConversationID: uint(conversationID),
					ReaderID:       viewer,
					NotifiedID:     notified,
				})
				event.Emit("notifier", event.ActionConversationRead, payload, true)
			}
		})

		client.On("messenger_user_status", func(args ...interface{}) {
			userStatus := []UserStatus{}

			if viewer, ok := userID(); ok {
				views, err := messenger.Log.ListConversations(context.Background(), viewer)
				if err == nil {
					for _, view := range views {
						userStatus = append(userStatus, UserStatus{
							Id:     view.PeerID,
							Status: presence.Online(view.PeerID),
						})
					}
				}
			}

			client.Emit("messenger_user_status", userStatus)
		})
	})
}
