package main

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"github.com/socialrobotics/go-pepper/pkg/protocol"
)

// serveBridge pretends to be the robot: it prints every command and
// acknowledges it after a believable delay.
func serveBridge(addr string) {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})
	app.Use("/", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/", websocket.New(handleBridge))

	fmt.Printf("🔌 Fake robot bridge on %s\n", addr)
	if err := app.Listen(addr); err != nil {
		fmt.Printf("❌ Bridge: %v\n", err)
		os.Exit(1)
	}
}

func handleBridge(c *websocket.Conn) {
	fmt.Println("🤖 Orchestrator connected to the bridge")
	defer fmt.Println("🤖 Orchestrator disconnected from the bridge")

	var mu sync.Mutex
	ack := func(id string, after time.Duration) {
		time.Sleep(after)
		msg, _ := protocol.NewDoneMessage(id)
		data, err := msg.Bytes()
		if err != nil {
			return
		}
		mu.Lock()
		c.WriteMessage(websocket.TextMessage, data)
		mu.Unlock()
	}

	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			return
		}
		msg, err := protocol.ParseMessage(data)
		if err != nil {
			continue
		}

		switch msg.Type {
		case protocol.TypeSay:
			say, err := msg.GetSayData()
			if err != nil {
				continue
			}
			fmt.Printf("🗣  say: %q\n", say.Text)
			go ack(say.ID, speechDuration(say.Text))

		case protocol.TypeGesture:
			gesture, err := msg.GetGestureData()
			if err != nil {
				continue
			}
			fmt.Printf("💃 gesture: %s\n", gesture.Name)
			go ack(gesture.ID, 600*time.Millisecond)

		case protocol.TypeGaze:
			gaze, err := msg.GetGazeData()
			if err != nil {
				continue
			}
			fmt.Printf("👀 gaze: %+.2f rad\n", gaze.Bearing)
			go ack(gaze.ID, 250*time.Millisecond)
		}
	}
}

// speechDuration approximates how long the robot would take to speak.
func speechDuration(text string) time.Duration {
	d := time.Duration(len(text)) * 45 * time.Millisecond
	if d < 500*time.Millisecond {
		return 500 * time.Millisecond
	}
	if d > 4*time.Second {
		return 4 * time.Second
	}
	return d
}
