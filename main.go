package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"conversation-service/config"
	"conversation-service/controller"
	"conversation-service/database"
	"conversation-service/event"
	"conversation-service/event/listener"
	"conversation-service/router"
	"conversation-service/service"
	"conversation-service/socketio"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

func main() {
	log.SetPrefix("conversation-service: ")

	rest := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		StrictRouting:         true,
		AppName:               "conversation-service",
	})

	rest.Use(cors.New())

	database.RedisConnect()
	database.PostgresConnect()

	event.RabbitMQConnect([]string{
		// Connect to queues
		"messenger",
		"notifier",
	})

	// Run the identity projection listener
	go listener.Identity()

	// Subscribe listener channel to identity events
	event.RabbitMQSubscribe([]event.RabbitMQSubscribeListener{
		{
			Queue:   "messenger",
			Channel: listener.IdentityChannel,
		},
	})

	// Init event logs
	event.Init()

	socket := socketio.Init(rest)

	presence := socketio.Channel{}
	directory := &service.UserDirectory{DB: database.Postgres}
	tracker := &service.DeliveryTracker{DB: database.Postgres, Presence: presence}

	messenger := &controller.Messenger{
		Registry: &service.Registry{DB: database.Postgres, Identity: directory},
		Log: &service.MessageLog{
			DB:       database.Postgres,
			Tracker:  tracker,
			Identity: directory,
			Presence: presence,
		},
		Tracker: tracker,
		Search: &service.SearchIndex{
			Graph:    &service.RedisGraph{Client: database.Redis[2]},
			Identity: directory,
		},
	}

	router.Rest(rest, messenger, &controller.User{Identity: directory})
	router.Socket(socket, messenger)

	go rest.Listen(fmt.Sprintf(":%s", config.Config("SERVER_PORT")))

	exit := make(chan struct{})
	SignalC := make(chan os.Signal, 1)

	signal.Notify(SignalC, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		for s := range SignalC {
			switch s {
			case syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT:
				close(exit)
				return
			}
		}
	}()

	<-exit
	socket.Close(nil)
	event.RabbitMQChannel.Close()
	event.RabbitMQConnection.Close()
	event.InLogFile.Close()
	event.OutLogFile.Close()
	os.Exit(0)
}
