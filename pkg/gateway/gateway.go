// Package gateway accepts perception pushes from detector and speech
// collaborators. Each collaborator holds one WebSocket connection,
// optionally identifies itself with a hello record, and streams
// protocol records; every record that parses is handed to the sink in
// arrival order.
package gateway

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"github.com/socialrobotics/go-pepper/internal/log"
	"github.com/socialrobotics/go-pepper/pkg/protocol"
)

// Sink consumes parsed perception records. The orchestrator is the
// production sink; it must never block the caller.
type Sink interface {
	SubmitPerception(msg *protocol.Message, source string)
}

// source is one connected collaborator.
type source struct {
	ws        *websocket.Conn
	connected time.Time

	mu       sync.Mutex
	name     string
	lastSeen time.Time
}

func (s *source) send(msg *protocol.Message) error {
	data, err := msg.Bytes()
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ws.WriteMessage(websocket.TextMessage, data)
}

func (s *source) Name() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.name
}

func (s *source) rename(name string) {
	s.mu.Lock()
	s.name = name
	s.mu.Unlock()
}

func (s *source) touch() {
	s.mu.Lock()
	s.lastSeen = time.Now()
	s.mu.Unlock()
}

// Gateway owns the perception ingest endpoints.
type Gateway struct {
	sink Sink

	mu      sync.RWMutex
	sources map[*source]struct{}

	anon atomic.Uint64

	received    atomic.Uint64
	forwarded   atomic.Uint64
	parseErrors atomic.Uint64
	unexpected  atomic.Uint64
}

// New creates a gateway feeding sink.
func New(sink Sink) *Gateway {
	return &Gateway{
		sink:    sink,
		sources: make(map[*source]struct{}),
	}
}

// RegisterRoutes mounts the ingest endpoints on app. Collaborators
// connect to /ws/perception and may name themselves in the path or
// with a hello record after connecting.
func (g *Gateway) RegisterRoutes(app *fiber.App) {
	app.Use("/ws/perception", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/perception", websocket.New(g.handleSource))
	app.Get("/ws/perception/:source", websocket.New(g.handleSource))
}

// RegisterAPIRoutes mounts source observability endpoints on api.
func (g *Gateway) RegisterAPIRoutes(api fiber.Router) {
	sources := api.Group("/sources")

	sources.Get("/", func(c *fiber.Ctx) error {
		infos := g.Sources()
		return c.JSON(fiber.Map{
			"sources": infos,
			"count":   len(infos),
		})
	})

	sources.Get("/stats", func(c *fiber.Ctx) error {
		return c.JSON(g.Stats())
	})
}

func (g *Gateway) handleSource(c *websocket.Conn) {
	name := c.Params("source")
	if name == "" {
		name = fmt.Sprintf("source-%d", g.anon.Add(1))
	}

	now := time.Now()
	src := &source{
		ws:        c,
		name:      name,
		connected: now,
		lastSeen:  now,
	}

	g.mu.Lock()
	g.sources[src] = struct{}{}
	total := len(g.sources)
	g.mu.Unlock()
	log.Info("perception source connected", "source", name, "total", total)

	defer func() {
		g.mu.Lock()
		delete(g.sources, src)
		total := len(g.sources)
		g.mu.Unlock()
		log.Info("perception source disconnected", "source", src.Name(), "total", total)
	}()

	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			return
		}
		src.touch()
		g.received.Add(1)
		g.handleRecord(src, data)
	}
}

// handleRecord parses one pushed record. Anything that does not parse
// is dropped and counted; the stream itself stays up.
func (g *Gateway) handleRecord(src *source, data []byte) {
	msg, err := protocol.ParseMessage(data)
	if err != nil {
		g.parseErrors.Add(1)
		log.Warn("dropping unparseable record", "source", src.Name(), "error", err)
		return
	}

	switch msg.Type {
	case protocol.TypeHello:
		hello, err := msg.GetHelloData()
		if err != nil || hello.Source == "" {
			g.parseErrors.Add(1)
			return
		}
		log.Info("perception source identified", "was", src.Name(), "source", hello.Source)
		src.rename(hello.Source)

	case protocol.TypeDetection, protocol.TypeEmotion, protocol.TypeSpeech, protocol.TypeLost:
		g.forwarded.Add(1)
		g.sink.SubmitPerception(msg, src.Name())

	case protocol.TypePing:
		ping, err := msg.GetPingData()
		if err != nil {
			g.parseErrors.Add(1)
			return
		}
		pong, err := protocol.NewPongMessage(ping.ID, msg.Timestamp, time.Now().UnixMilli())
		if err != nil {
			return
		}
		if err := src.send(pong); err != nil {
			log.Debug("pong write failed", "source", src.Name(), "error", err)
		}

	default:
		g.unexpected.Add(1)
		log.Debug("ignoring record", "source", src.Name(), "type", string(msg.Type))
	}
}

// Stats counts gateway traffic since start.
type Stats struct {
	Sources     int    `json:"sources"`
	Received    uint64 `json:"received"`
	Forwarded   uint64 `json:"forwarded"`
	ParseErrors uint64 `json:"parse_errors"`
	Unexpected  uint64 `json:"unexpected"`
}

// Stats returns a snapshot of the traffic counters.
func (g *Gateway) Stats() Stats {
	return Stats{
		Sources:     g.SourceCount(),
		Received:    g.received.Load(),
		Forwarded:   g.forwarded.Load(),
		ParseErrors: g.parseErrors.Load(),
		Unexpected:  g.unexpected.Load(),
	}
}

// SourceInfo describes one connected collaborator.
type SourceInfo struct {
	Name      string    `json:"name"`
	Connected time.Time `json:"connected"`
	LastSeen  time.Time `json:"last_seen"`
}

// Sources lists the connected collaborators.
func (g *Gateway) Sources() []SourceInfo {
	g.mu.RLock()
	defer g.mu.RUnlock()

	infos := make([]SourceInfo, 0, len(g.sources))
	for s := range g.sources {
		s.mu.Lock()
		infos = append(infos, SourceInfo{
			Name:      s.name,
			Connected: s.connected,
			LastSeen:  s.lastSeen,
		})
		s.mu.Unlock()
	}
	return infos
}

// SourceCount returns the number of connected collaborators.
func (g *Gateway) SourceCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.sources)
}
