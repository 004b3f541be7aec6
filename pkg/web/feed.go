package web

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/websocket/v2"

	"github.com/socialrobotics/go-pepper/internal/log"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	clientBacklog  = 64
	broadcastDepth = 256
)

// feed fans pre-encoded JSON frames out to dashboard sockets. A client
// that cannot keep up is dropped rather than allowed to stall the rest.
type feed struct {
	name string

	mu      sync.RWMutex
	clients map[*feedClient]bool

	broadcast  chan []byte
	register   chan *feedClient
	unregister chan *feedClient
	done       chan struct{}
	stopOnce   sync.Once

	dropped atomic.Uint64
}

func newFeed(name string) *feed {
	return &feed{
		name:       name,
		clients:    make(map[*feedClient]bool),
		broadcast:  make(chan []byte, broadcastDepth),
		register:   make(chan *feedClient),
		unregister: make(chan *feedClient),
		done:       make(chan struct{}),
	}
}

// run owns the client set. Call in a goroutine; stop() makes it return
// after disconnecting every client.
func (f *feed) run() {
	for {
		select {
		case <-f.done:
			f.mu.Lock()
			for c := range f.clients {
				delete(f.clients, c)
				close(c.send)
			}
			f.mu.Unlock()
			return

		case c := <-f.register:
			f.mu.Lock()
			f.clients[c] = true
			total := len(f.clients)
			f.mu.Unlock()
			log.Debug("dashboard client connected", "feed", f.name, "total", total)

		case c := <-f.unregister:
			f.mu.Lock()
			if _, ok := f.clients[c]; ok {
				delete(f.clients, c)
				close(c.send)
			}
			f.mu.Unlock()

		case frame := <-f.broadcast:
			f.mu.Lock()
			for c := range f.clients {
				select {
				case c.send <- frame:
				default:
					delete(f.clients, c)
					close(c.send)
					f.dropped.Add(1)
					log.Warn("dropping slow dashboard client", "feed", f.name)
				}
			}
			f.mu.Unlock()
		}
	}
}

func (f *feed) stop() {
	f.stopOnce.Do(func() { close(f.done) })
}

// publish enqueues one frame for broadcast. Never blocks; a full
// broadcast queue drops the frame.
func (f *feed) publish(frame []byte) {
	select {
	case f.broadcast <- frame:
	case <-f.done:
	default:
		f.dropped.Add(1)
	}
}

func (f *feed) publishJSON(v any) error {
	frame, err := json.Marshal(v)
	if err != nil {
		return err
	}
	f.publish(frame)
	return nil
}

func (f *feed) attach(c *feedClient) bool {
	select {
	case f.register <- c:
		return true
	case <-f.done:
		return false
	}
}

func (f *feed) detach(c *feedClient) {
	select {
	case f.unregister <- c:
	case <-f.done:
	}
}

// serve pumps one dashboard socket until it disconnects or the feed
// stops. Blocks, so call it from the websocket handler.
func (f *feed) serve(conn *websocket.Conn) {
	c := &feedClient{feed: f, conn: conn, send: make(chan []byte, clientBacklog)}
	if !f.attach(c) {
		return
	}
	go c.writePump()
	c.readPump()
}

func (f *feed) clientCount() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.clients)
}

// feedClient is one dashboard socket.
type feedClient struct {
	feed *feed
	conn *websocket.Conn
	send chan []byte
}

// readPump discards inbound frames; it exists to notice disconnects
// and answer keepalive.
func (c *feedClient) readPump() {
	defer func() {
		c.feed.detach(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(1024)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump is the only writer on the socket.
func (c *feedClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
