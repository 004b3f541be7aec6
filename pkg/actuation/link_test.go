package actuation

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/socialrobotics/go-pepper/pkg/protocol"
)

// newBridgeServer starts a fake robot bridge that answers each command
// with whatever respond returns. A nil reply swallows the command.
func newBridgeServer(t *testing.T, respond func(msg *protocol.Message) *protocol.Message) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()

		for {
			_, data, err := ws.ReadMessage()
			if err != nil {
				return
			}
			msg, err := protocol.ParseMessage(data)
			if err != nil {
				continue
			}
			reply := respond(msg)
			if reply == nil {
				continue
			}
			out, err := reply.Bytes()
			if err != nil {
				continue
			}
			if err := ws.WriteMessage(websocket.TextMessage, out); err != nil {
				return
			}
		}
	}))
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func waitResult(t *testing.T, l *Link) Result {
	t.Helper()
	select {
	case res := <-l.Results():
		return res
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for result")
		return Result{}
	}
}

func TestLinkDeliversAndResolves(t *testing.T) {
	srv := newBridgeServer(t, func(msg *protocol.Message) *protocol.Message {
		say, err := msg.GetSayData()
		if err != nil {
			return nil
		}
		reply, _ := protocol.NewDoneMessage(say.ID)
		return reply
	})
	defer srv.Close()

	l := NewLink(wsURL(srv), 2*time.Second)
	if err := l.Connect(); err != nil {
		t.Fatalf("Connect() error: %v", err)
	}
	defer l.Close()

	cmd := NewSpeak("int-1", "person-1", "hello", PriorityConverse)
	if err := l.Do(cmd); err != nil {
		t.Fatalf("Do() error: %v", err)
	}

	res := waitResult(t, l)
	if res.CommandID != cmd.ID {
		t.Errorf("expected result for %s, got %s", cmd.ID, res.CommandID)
	}
	if !res.OK {
		t.Errorf("expected OK result, got failure %q", res.Reason)
	}
}

func TestLinkCarriesFailureReason(t *testing.T) {
	srv := newBridgeServer(t, func(msg *protocol.Message) *protocol.Message {
		gesture, err := msg.GetGestureData()
		if err != nil {
			return nil
		}
		reply, _ := protocol.NewFailedMessage(gesture.ID, "motors disabled")
		return reply
	})
	defer srv.Close()

	l := NewLink(wsURL(srv), 2*time.Second)
	if err := l.Connect(); err != nil {
		t.Fatalf("Connect() error: %v", err)
	}
	defer l.Close()

	cmd := NewGesture("int-1", "person-1", "greet", PriorityConverse)
	if err := l.Do(cmd); err != nil {
		t.Fatalf("Do() error: %v", err)
	}

	res := waitResult(t, l)
	if res.OK {
		t.Error("expected failed result")
	}
	if res.Reason != "motors disabled" {
		t.Errorf("expected reason 'motors disabled', got %q", res.Reason)
	}
}

func TestLinkDeadlineSynthesizesFailure(t *testing.T) {
	// Bridge that never acks.
	srv := newBridgeServer(t, func(msg *protocol.Message) *protocol.Message {
		return nil
	})
	defer srv.Close()

	l := NewLink(wsURL(srv), 50*time.Millisecond)
	if err := l.Connect(); err != nil {
		t.Fatalf("Connect() error: %v", err)
	}
	defer l.Close()

	cmd := NewSpeak("int-1", "person-1", "anyone there", PriorityConverse)
	if err := l.Do(cmd); err != nil {
		t.Fatalf("Do() error: %v", err)
	}

	res := waitResult(t, l)
	if res.OK {
		t.Error("expected deadline failure")
	}
	if res.Reason != "deadline" {
		t.Errorf("expected reason 'deadline', got %q", res.Reason)
	}

	// A late ack for the same command must not produce a second result.
	select {
	case res := <-l.Results():
		t.Errorf("unexpected second result: %+v", res)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestLinkDoWhileDisconnected(t *testing.T) {
	l := NewLink("ws://127.0.0.1:1/robot", time.Second)

	err := l.Do(NewSpeak("int-1", "person-1", "hello", PriorityConverse))
	if !errors.Is(err, ErrNotConnected) {
		t.Errorf("expected ErrNotConnected, got %v", err)
	}
}
