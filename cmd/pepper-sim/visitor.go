package main

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/socialrobotics/go-pepper/pkg/protocol"
)

// runVisitor walks one scripted visitor through a full interaction:
// enter from the left, get greeted, chat, say goodbye, wander off.
func runVisitor(ctx context.Context, gateway string) error {
	camera, err := dialGateway(gateway, "sim-camera")
	if err != nil {
		return err
	}
	defer camera.Close()

	mic, err := dialGateway(gateway, "sim-mic")
	if err != nil {
		return err
	}
	defer mic.Close()

	fmt.Println()
	fmt.Println("🚶 Visitor entering from the left")

	// Walk in over two seconds.
	for i := 0; i <= 20; i++ {
		x := 80 + float64(i)*11
		if err := push(camera, detectionAt(x)); err != nil {
			return err
		}
		if !pause(ctx, 100*time.Millisecond) {
			return nil
		}
	}

	if err := push(camera, emotionAt("happy", 300)); err != nil {
		return err
	}
	fmt.Println("😊 Visitor looks happy")

	// Stay visible while the conversation runs.
	presence := make(chan struct{})
	stopPresence := sync.OnceFunc(func() { close(presence) })
	defer stopPresence()
	go func() {
		ticker := time.NewTicker(300 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-presence:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				push(camera, detectionAt(300))
			}
		}
	}()

	steps := []struct {
		wait time.Duration
		say  string
	}{
		{3 * time.Second, "hello robot"},
		{6 * time.Second, "what can you do?"},
		{8 * time.Second, "goodbye pepper"},
	}
	for _, step := range steps {
		if !pause(ctx, step.wait) {
			return nil
		}
		fmt.Printf("🗨️  Visitor: %q\n", step.say)
		if err := push(mic, speech(step.say)); err != nil {
			return err
		}
	}

	// Let the farewell play out, then leave the frame.
	if !pause(ctx, 6*time.Second) {
		return nil
	}
	stopPresence()
	fmt.Println("🚶 Visitor leaving; detections stop")
	return nil
}

func dialGateway(base, source string) (*websocket.Conn, error) {
	url := strings.TrimSuffix(base, "/") + "/ws/perception/" + source
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return ws, nil
}

func push(ws *websocket.Conn, msg *protocol.Message) error {
	data, err := msg.Bytes()
	if err != nil {
		return err
	}
	return ws.WriteMessage(websocket.TextMessage, data)
}

func detectionAt(x float64) *protocol.Message {
	msg, _ := protocol.NewDetectionMessage("person",
		protocol.BoundingBox{X: x, Y: 140, W: 90, H: 240}, 0.92, time.Now().UnixMilli())
	return msg
}

func emotionAt(label string, x float64) *protocol.Message {
	msg, _ := protocol.NewEmotionMessage(label,
		protocol.BoundingBox{X: x, Y: 140, W: 90, H: 240}, 0.7, time.Now().UnixMilli())
	return msg
}

func speech(text string) *protocol.Message {
	msg, _ := protocol.NewSpeechMessage(text, nil, 0.85, time.Now().UnixMilli())
	return msg
}
