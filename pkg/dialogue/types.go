// Package dialogue talks to the conversation engine. One session per
// interaction; the engine decides what the robot says, this package
// only carries the exchange.
package dialogue

import "context"

// Act is one engine response: a line to speak, an optional gesture to
// play alongside it, and whether the engine considers the conversation
// finished. A zero Act means the engine had nothing to say.
type Act struct {
	Text         string `json:"text,omitempty"`
	Gesture      string `json:"gesture,omitempty"`
	EndOfSession bool   `json:"end_of_session,omitempty"`
}

// Empty reports whether the act carries nothing actionable.
func (a Act) Empty() bool {
	return a.Text == "" && a.Gesture == "" && !a.EndOfSession
}

// Engine runs conversation sessions. All calls are blocking and must
// respect the context deadline; the orchestrator invokes them from
// worker goroutines, never from its event loop.
type Engine interface {
	// Open starts a session and returns the opening act. An empty act
	// means the engine has no greeting step.
	Open(ctx context.Context, sessionID string) (Act, error)

	// Send forwards a visitor utterance and returns the reply.
	Send(ctx context.Context, sessionID, utterance string) (Act, error)

	// Close ends the session and returns the engine's farewell act,
	// when it has one. Close is best effort.
	Close(ctx context.Context, sessionID string) (Act, error)
}
