package dialogue

import (
	"context"
	"sync"
)

// Mock is a mock implementation of Engine for testing.
type Mock struct {
	mu sync.Mutex

	// Configurable behavior
	OpenFunc  func(ctx context.Context, sessionID string) (Act, error)
	SendFunc  func(ctx context.Context, sessionID, utterance string) (Act, error)
	CloseFunc func(ctx context.Context, sessionID string) (Act, error)

	// Captured calls for assertions
	Opened []string
	Sent   []SentUtterance
	Closed []string
}

// SentUtterance records one Send call.
type SentUtterance struct {
	SessionID string
	Utterance string
}

// NewMock creates a new Mock engine.
func NewMock() *Mock {
	return &Mock{}
}

// Open implements Engine.
func (m *Mock) Open(ctx context.Context, sessionID string) (Act, error) {
	m.mu.Lock()
	m.Opened = append(m.Opened, sessionID)
	m.mu.Unlock()

	if m.OpenFunc != nil {
		return m.OpenFunc(ctx, sessionID)
	}
	return Act{Text: "Hello! Nice to meet you.", Gesture: "greet"}, nil
}

// Send implements Engine.
func (m *Mock) Send(ctx context.Context, sessionID, utterance string) (Act, error) {
	m.mu.Lock()
	m.Sent = append(m.Sent, SentUtterance{SessionID: sessionID, Utterance: utterance})
	m.mu.Unlock()

	if m.SendFunc != nil {
		return m.SendFunc(ctx, sessionID, utterance)
	}
	return Act{Text: "I heard: " + utterance}, nil
}

// Close implements Engine.
func (m *Mock) Close(ctx context.Context, sessionID string) (Act, error) {
	m.mu.Lock()
	m.Closed = append(m.Closed, sessionID)
	m.mu.Unlock()

	if m.CloseFunc != nil {
		return m.CloseFunc(ctx, sessionID)
	}
	return Act{Text: "Goodbye!", EndOfSession: true}, nil
}

// SentCount returns how many utterances were forwarded.
func (m *Mock) SentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Sent)
}

// Verify Mock implements Engine at compile time.
var _ Engine = (*Mock)(nil)
