package dialogue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/socialrobotics/go-pepper/internal/httpc"
	"github.com/socialrobotics/go-pepper/internal/log"
)

// Intent triggers understood by the engine. Sent as messages so session
// open and close run through the same webhook as ordinary utterances.
const (
	intentGreet   = "/greet"
	intentGoodbye = "/goodbye"
)

// Client talks to a Rasa-style REST webhook. The engine keeps per-sender
// conversation state, so the session ID travels as the sender field.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a dialogue client. timeout bounds each request on
// top of whatever deadline the caller's context carries.
func NewClient(baseURL string, timeout time.Duration) (*Client, error) {
	if baseURL == "" {
		return nil, ErrMissingURL
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    httpc.NewClient(timeout),
	}, nil
}

// Open implements Engine.
func (c *Client) Open(ctx context.Context, sessionID string) (Act, error) {
	return c.exchange(ctx, sessionID, intentGreet)
}

// Send implements Engine.
func (c *Client) Send(ctx context.Context, sessionID, utterance string) (Act, error) {
	return c.exchange(ctx, sessionID, utterance)
}

// Close implements Engine.
func (c *Client) Close(ctx context.Context, sessionID string) (Act, error) {
	act, err := c.exchange(ctx, sessionID, intentGoodbye)
	if err != nil {
		// Closing is best effort; the caller falls back to a built-in
		// farewell line.
		log.Warn("dialogue: session close failed", "session", sessionID, "error", err)
		return Act{}, err
	}
	act.EndOfSession = true
	return act, nil
}

// webhookRequest is the engine's message format.
type webhookRequest struct {
	Sender  string `json:"sender"`
	Message string `json:"message"`
}

// webhookResponse is one engine reply item. The engine may answer with
// several; texts concatenate, the last custom payload wins.
type webhookResponse struct {
	RecipientID string         `json:"recipient_id"`
	Text        string         `json:"text,omitempty"`
	Custom      *customPayload `json:"custom,omitempty"`
}

type customPayload struct {
	Gesture      string `json:"gesture,omitempty"`
	EndOfSession bool   `json:"end_of_session,omitempty"`
}

func (c *Client) exchange(ctx context.Context, sessionID, message string) (Act, error) {
	body, err := json.Marshal(webhookRequest{Sender: sessionID, Message: message})
	if err != nil {
		return Act{}, fmt.Errorf("dialogue: marshal request: %w", err)
	}

	url := c.baseURL + "/webhooks/rest/webhook"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Act{}, fmt.Errorf("dialogue: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return Act{}, fmt.Errorf("dialogue: engine request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return Act{}, NewEngineError(resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var items []webhookResponse
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return Act{}, fmt.Errorf("dialogue: decode response: %w", err)
	}

	act := mergeItems(items)
	log.Debug("dialogue: exchange complete",
		"session", sessionID,
		"items", len(items),
		"latency_ms", time.Since(start).Milliseconds())
	return act, nil
}

// mergeItems folds a multi-item engine reply into one act.
func mergeItems(items []webhookResponse) Act {
	var act Act
	var texts []string
	for _, item := range items {
		if item.Text != "" {
			texts = append(texts, item.Text)
		}
		if item.Custom != nil {
			if item.Custom.Gesture != "" {
				act.Gesture = item.Custom.Gesture
			}
			if item.Custom.EndOfSession {
				act.EndOfSession = true
			}
		}
	}
	act.Text = strings.Join(texts, " ")
	return act
}

// Verify Client implements Engine at compile time.
var _ Engine = (*Client)(nil)
