package actuation

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/socialrobotics/go-pepper/internal/log"
	"github.com/socialrobotics/go-pepper/pkg/protocol"
)

const (
	handshakeTimeout = 10 * time.Second
	writeTimeout     = 10 * time.Second
	readTimeout      = 120 * time.Second
	pingInterval     = 30 * time.Second
	maxReconnectWait = 30 * time.Second
)

// ErrNotConnected is returned by Do while the robot bridge is unreachable.
var ErrNotConnected = errors.New("actuation: not connected")

// Link drives a robot bridge over WebSocket. Commands go out as protocol
// messages; the bridge acks each one with done or failed, which Link turns
// into Results. A command that gets no ack within the deadline fails with
// a synthetic "deadline" result so the pipeline never waits forever.
//
// The link reconnects on its own after a drop. Commands submitted while
// disconnected fail fast with ErrNotConnected rather than queueing.
type Link struct {
	url      string
	deadline time.Duration

	ws   *websocket.Conn
	wsMu sync.Mutex

	mu        sync.Mutex
	pending   map[string]*time.Timer
	connected bool
	closed    bool

	results chan Result
	done    chan struct{}
}

// NewLink creates a link to the robot bridge at url. deadline bounds how
// long a single command may wait for its ack.
func NewLink(url string, deadline time.Duration) *Link {
	return &Link{
		url:      url,
		deadline: deadline,
		pending:  make(map[string]*time.Timer),
		results:  make(chan Result, 64),
		done:     make(chan struct{}),
	}
}

// Connect dials the bridge and starts the read loop and keepalive pinger.
func (l *Link) Connect() error {
	if err := l.dial(); err != nil {
		return err
	}

	go l.readLoop()
	go l.keepAlive()

	return nil
}

func (l *Link) dial() error {
	dialer := websocket.Dialer{
		HandshakeTimeout: handshakeTimeout,
	}

	ws, _, err := dialer.Dial(l.url, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to robot bridge: %w", err)
	}

	ws.SetReadDeadline(time.Now().Add(readTimeout))
	ws.SetPongHandler(func(string) error {
		ws.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})

	l.wsMu.Lock()
	l.ws = ws
	l.wsMu.Unlock()

	l.mu.Lock()
	l.connected = true
	l.mu.Unlock()

	return nil
}

// Do implements Actuator. It encodes the command for the bridge and arms
// its ack deadline.
func (l *Link) Do(cmd Command) error {
	l.mu.Lock()
	if !l.connected || l.closed {
		l.mu.Unlock()
		return ErrNotConnected
	}
	l.mu.Unlock()

	var msg *protocol.Message
	var err error
	switch cmd.Kind {
	case KindSpeak:
		msg, err = protocol.NewSayMessage(cmd.ID, cmd.Text, cmd.Animated)
	case KindGesture:
		msg, err = protocol.NewGestureMessage(cmd.ID, cmd.Gesture)
	case KindGaze:
		msg, err = protocol.NewGazeMessage(cmd.ID, cmd.Bearing)
	default:
		return fmt.Errorf("actuation: unknown command kind %v", cmd.Kind)
	}
	if err != nil {
		return fmt.Errorf("failed to encode command: %w", err)
	}

	data, err := msg.Bytes()
	if err != nil {
		return fmt.Errorf("failed to encode command: %w", err)
	}

	if err := l.send(data); err != nil {
		return err
	}

	l.mu.Lock()
	l.pending[cmd.ID] = time.AfterFunc(l.deadline, func() {
		l.finish(cmd.ID, false, "deadline")
	})
	l.mu.Unlock()

	return nil
}

func (l *Link) send(data []byte) error {
	l.wsMu.Lock()
	defer l.wsMu.Unlock()

	if l.ws == nil {
		return ErrNotConnected
	}
	l.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	return l.ws.WriteMessage(websocket.TextMessage, data)
}

// Results implements Actuator.
func (l *Link) Results() <-chan Result {
	return l.results
}

// Close implements Actuator. Pending deadline timers are stopped without
// emitting results; the consumer is shutting down with us.
func (l *Link) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	l.connected = false
	for id, timer := range l.pending {
		timer.Stop()
		delete(l.pending, id)
	}
	l.mu.Unlock()

	close(l.done)

	l.wsMu.Lock()
	defer l.wsMu.Unlock()
	if l.ws != nil {
		return l.ws.Close()
	}
	return nil
}

// finish resolves a pending command exactly once. Later calls for the
// same ID (a late ack after the deadline fired, or vice versa) are no-ops.
func (l *Link) finish(id string, ok bool, reason string) {
	l.mu.Lock()
	timer, exists := l.pending[id]
	if !exists {
		l.mu.Unlock()
		return
	}
	delete(l.pending, id)
	l.mu.Unlock()

	timer.Stop()

	select {
	case l.results <- Result{CommandID: id, OK: ok, Reason: reason}:
	default:
		log.Warn("dropping actuation result, consumer not draining", "command_id", id)
	}
}

// failPending resolves every in-flight command as failed. Called when the
// connection drops so no command is left waiting for an ack that will
// never come.
func (l *Link) failPending(reason string) {
	l.mu.Lock()
	ids := make([]string, 0, len(l.pending))
	for id := range l.pending {
		ids = append(ids, id)
	}
	l.mu.Unlock()

	for _, id := range ids {
		l.finish(id, false, reason)
	}
}

// readLoop parses bridge acks into Results until the link is closed.
// On a read error it fails everything pending and hands off to reconnect.
func (l *Link) readLoop() {
	for {
		l.wsMu.Lock()
		ws := l.ws
		l.wsMu.Unlock()
		if ws == nil {
			return
		}

		_, data, err := ws.ReadMessage()
		if err != nil {
			l.mu.Lock()
			closed := l.closed
			l.connected = false
			l.mu.Unlock()
			if closed {
				return
			}
			log.Warn("robot bridge connection lost", "error", err)
			l.failPending("link lost")
			l.reconnect()
			return
		}
		ws.SetReadDeadline(time.Now().Add(readTimeout))

		msg, err := protocol.ParseMessage(data)
		if err != nil {
			log.Debug("ignoring unparseable bridge message", "error", err)
			continue
		}

		switch msg.Type {
		case protocol.TypeDone:
			done, err := msg.GetDoneData()
			if err != nil {
				continue
			}
			l.finish(done.ID, true, "")
		case protocol.TypeFailed:
			failed, err := msg.GetFailedData()
			if err != nil {
				continue
			}
			l.finish(failed.ID, false, failed.Reason)
		case protocol.TypePong:
			// Keepalive reply, nothing to do.
		default:
			log.Debug("ignoring bridge message", "type", msg.Type)
		}
	}
}

// reconnect redials with exponential backoff until it succeeds or the
// link is closed, then restarts the read loop.
func (l *Link) reconnect() {
	wait := time.Second
	for {
		select {
		case <-l.done:
			return
		case <-time.After(wait):
		}

		if err := l.dial(); err != nil {
			log.Warn("robot bridge reconnect failed", "error", err, "retry_in", wait.String())
			wait *= 2
			if wait > maxReconnectWait {
				wait = maxReconnectWait
			}
			continue
		}

		log.Info("robot bridge reconnected", "url", l.url)
		go l.readLoop()
		return
	}
}

// keepAlive sends periodic pings so an idle connection stays up.
func (l *Link) keepAlive() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			l.wsMu.Lock()
			if l.ws != nil {
				l.ws.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(writeTimeout))
			}
			l.wsMu.Unlock()
		}
	}
}

// Connected reports whether the bridge link is currently up.
func (l *Link) Connected() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.connected && !l.closed
}
