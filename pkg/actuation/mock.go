package actuation

import "sync"

// Mock is a test actuator. It records every command and lets the test
// decide when and how each one completes.
type Mock struct {
	mu       sync.Mutex
	commands []Command
	results  chan Result

	// DoFunc overrides Do when set. The command is recorded either way.
	DoFunc func(cmd Command) error
}

// NewMock creates a mock actuator.
func NewMock() *Mock {
	return &Mock{results: make(chan Result, 64)}
}

// Do implements Actuator.
func (m *Mock) Do(cmd Command) error {
	m.mu.Lock()
	m.commands = append(m.commands, cmd)
	m.mu.Unlock()

	if m.DoFunc != nil {
		return m.DoFunc(cmd)
	}
	return nil
}

// Results implements Actuator.
func (m *Mock) Results() <-chan Result {
	return m.results
}

// Close implements Actuator.
func (m *Mock) Close() error {
	return nil
}

// Complete acks a command as succeeded.
func (m *Mock) Complete(id string) {
	m.results <- Result{CommandID: id, OK: true}
}

// Fail acks a command as failed.
func (m *Mock) Fail(id, reason string) {
	m.results <- Result{CommandID: id, OK: false, Reason: reason}
}

// Sent returns a copy of the commands received so far.
func (m *Mock) Sent() []Command {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Command, len(m.commands))
	copy(out, m.commands)
	return out
}

// Last returns the most recent command, or false if none were sent.
func (m *Mock) Last() (Command, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.commands) == 0 {
		return Command{}, false
	}
	return m.commands[len(m.commands)-1], true
}

// Reset clears the recorded commands.
func (m *Mock) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commands = nil
}
