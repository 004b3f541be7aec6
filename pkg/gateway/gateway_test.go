package gateway

import (
	"encoding/json"
	"net"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gorilla/websocket"

	"github.com/socialrobotics/go-pepper/pkg/protocol"
)

type captured struct {
	msg    *protocol.Message
	source string
}

type captureSink struct {
	mu      sync.Mutex
	records []captured
}

func (s *captureSink) SubmitPerception(msg *protocol.Message, source string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, captured{msg: msg, source: source})
}

func (s *captureSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

func (s *captureSink) at(i int) captured {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records[i]
}

// startGateway serves a gateway on an ephemeral port and returns its
// address.
func startGateway(t *testing.T, sink Sink) (*Gateway, string) {
	t.Helper()

	g := New(sink)
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})
	g.RegisterRoutes(app)
	g.RegisterAPIRoutes(app.Group("/api"))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go app.Listener(ln)
	t.Cleanup(func() {
		if err := app.Shutdown(); err != nil {
			t.Logf("shutdown: %v", err)
		}
	})

	return g, ln.Addr().String()
}

func dial(t *testing.T, addr, path string) *websocket.Conn {
	t.Helper()
	ws, _, err := websocket.DefaultDialer.Dial("ws://"+addr+path, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", path, err)
	}
	t.Cleanup(func() { ws.Close() })
	return ws
}

func send(t *testing.T, ws *websocket.Conn, msg *protocol.Message) {
	t.Helper()
	data, err := msg.Bytes()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func detection(t *testing.T) *protocol.Message {
	t.Helper()
	msg, err := protocol.NewDetectionMessage("person",
		protocol.BoundingBox{X: 100, Y: 100, W: 50, H: 120}, 0.9, time.Now().UnixMilli())
	if err != nil {
		t.Fatalf("NewDetectionMessage: %v", err)
	}
	return msg
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestSourceNameFromPath(t *testing.T) {
	sink := &captureSink{}
	_, addr := startGateway(t, sink)

	ws := dial(t, addr, "/ws/perception/camera")
	send(t, ws, detection(t))

	waitFor(t, "record forwarded", func() bool { return sink.count() == 1 })

	got := sink.at(0)
	if got.source != "camera" {
		t.Errorf("source = %q, want camera", got.source)
	}
	if got.msg.Type != protocol.TypeDetection {
		t.Errorf("type = %q, want detection", got.msg.Type)
	}
}

func TestHelloRenamesSource(t *testing.T) {
	sink := &captureSink{}
	_, addr := startGateway(t, sink)

	ws := dial(t, addr, "/ws/perception")

	hello, err := protocol.NewHelloMessage("mic")
	if err != nil {
		t.Fatalf("NewHelloMessage: %v", err)
	}
	send(t, ws, hello)

	bearing := 0.3
	speech, err := protocol.NewSpeechMessage("hi there", &bearing, 0.8, time.Now().UnixMilli())
	if err != nil {
		t.Fatalf("NewSpeechMessage: %v", err)
	}
	send(t, ws, speech)

	waitFor(t, "record forwarded", func() bool { return sink.count() == 1 })

	if got := sink.at(0).source; got != "mic" {
		t.Errorf("source = %q, want mic", got)
	}
}

func TestMalformedRecordDropped(t *testing.T) {
	sink := &captureSink{}
	g, addr := startGateway(t, sink)

	ws := dial(t, addr, "/ws/perception/camera")
	if err := ws.WriteMessage(websocket.TextMessage, []byte("not json{{")); err != nil {
		t.Fatalf("write: %v", err)
	}
	send(t, ws, detection(t))

	waitFor(t, "good record forwarded", func() bool { return sink.count() == 1 })

	stats := g.Stats()
	if stats.ParseErrors != 1 {
		t.Errorf("ParseErrors = %d, want 1", stats.ParseErrors)
	}
	if stats.Received != 2 {
		t.Errorf("Received = %d, want 2", stats.Received)
	}
	if stats.Forwarded != 1 {
		t.Errorf("Forwarded = %d, want 1", stats.Forwarded)
	}
}

func TestActuationAckIgnoredAtIngest(t *testing.T) {
	sink := &captureSink{}
	g, addr := startGateway(t, sink)

	ws := dial(t, addr, "/ws/perception/camera")
	done, err := protocol.NewDoneMessage("cmd-1")
	if err != nil {
		t.Fatalf("NewDoneMessage: %v", err)
	}
	send(t, ws, done)

	waitFor(t, "record counted", func() bool { return g.Stats().Unexpected == 1 })

	if sink.count() != 0 {
		t.Errorf("sink got %d records, want 0", sink.count())
	}
}

func TestPingGetsPong(t *testing.T) {
	sink := &captureSink{}
	_, addr := startGateway(t, sink)

	ws := dial(t, addr, "/ws/perception/camera")
	ping, err := protocol.NewPingMessage("ping-1")
	if err != nil {
		t.Fatalf("NewPingMessage: %v", err)
	}
	send(t, ws, ping)

	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	reply, err := protocol.ParseMessage(data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if reply.Type != protocol.TypePong {
		t.Fatalf("reply type = %q, want pong", reply.Type)
	}
	pong, err := reply.GetPongData()
	if err != nil {
		t.Fatalf("GetPongData: %v", err)
	}
	if pong.ID != "ping-1" {
		t.Errorf("pong ID = %q, want ping-1", pong.ID)
	}
	if pong.PingTS != ping.Timestamp {
		t.Errorf("PingTS = %d, want %d", pong.PingTS, ping.Timestamp)
	}
}

func TestDisconnectRemovesSource(t *testing.T) {
	sink := &captureSink{}
	g, addr := startGateway(t, sink)

	ws := dial(t, addr, "/ws/perception/camera")
	waitFor(t, "source registered", func() bool { return g.SourceCount() == 1 })

	ws.Close()
	waitFor(t, "source removed", func() bool { return g.SourceCount() == 0 })
}

func TestSourcesAPI(t *testing.T) {
	sink := &captureSink{}
	g, addr := startGateway(t, sink)

	dial(t, addr, "/ws/perception/camera")
	waitFor(t, "source registered", func() bool { return g.SourceCount() == 1 })

	resp, err := http.Get("http://" + addr + "/api/sources/stats")
	if err != nil {
		t.Fatalf("GET stats: %v", err)
	}
	defer resp.Body.Close()

	var stats Stats
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if stats.Sources != 1 {
		t.Errorf("Sources = %d, want 1", stats.Sources)
	}
}
