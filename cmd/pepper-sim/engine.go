package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// serveEngine pretends to be the dialogue engine behind a Rasa-style
// REST webhook.
func serveEngine(addr string) {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})
	app.Post("/webhooks/rest/webhook", handleWebhook)

	fmt.Printf("💬 Fake dialogue engine on %s\n", addr)
	if err := app.Listen(addr); err != nil {
		fmt.Printf("❌ Engine: %v\n", err)
		os.Exit(1)
	}
}

type webhookRequest struct {
	Sender  string `json:"sender"`
	Message string `json:"message"`
}

type webhookReply struct {
	RecipientID string         `json:"recipient_id"`
	Text        string         `json:"text,omitempty"`
	Custom      map[string]any `json:"custom,omitempty"`
}

func handleWebhook(c *fiber.Ctx) error {
	var req webhookRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	fmt.Printf("💬 engine ← %q\n", req.Message)
	return c.JSON(reply(req))
}

func reply(req webhookRequest) []webhookReply {
	lower := strings.ToLower(req.Message)
	switch {
	case req.Message == "/greet":
		return []webhookReply{{
			RecipientID: req.Sender,
			Text:        "Welcome to the robotics lab! I'm Pepper. What's on your mind?",
			Custom:      map[string]any{"gesture": "happy"},
		}}

	case req.Message == "/goodbye":
		return []webhookReply{{
			RecipientID: req.Sender,
			Text:        "Thanks for stopping by!",
		}}

	case strings.Contains(lower, "bye"):
		return []webhookReply{{
			RecipientID: req.Sender,
			Text:        "Goodbye then! Come back any time.",
			Custom:      map[string]any{"gesture": "farewell", "end_of_session": true},
		}}

	case strings.Contains(lower, "?"):
		return []webhookReply{
			{RecipientID: req.Sender, Text: "Good question."},
			{
				RecipientID: req.Sender,
				Text:        "I watch for people, greet whoever comes closest and chat until they wander off.",
				Custom:      map[string]any{"gesture": "explain"},
			},
		}

	default:
		return []webhookReply{{
			RecipientID: req.Sender,
			Text:        fmt.Sprintf("I heard you say %q. Tell me more!", req.Message),
			Custom:      map[string]any{"gesture": "explain"},
		}}
	}
}
