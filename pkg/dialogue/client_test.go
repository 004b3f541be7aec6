package dialogue

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNewClientRequiresURL(t *testing.T) {
	if _, err := NewClient("", time.Second); !errors.Is(err, ErrMissingURL) {
		t.Errorf("NewClient: got %v, want ErrMissingURL", err)
	}
}

func TestOpenSendsGreetIntent(t *testing.T) {
	var got webhookRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/webhooks/rest/webhook" {
			t.Errorf("path: got %q, want /webhooks/rest/webhook", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode([]webhookResponse{
			{Text: "Welcome!", Custom: &customPayload{Gesture: "greet"}},
		})
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, time.Second)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	act, err := c.Open(context.Background(), "session-1")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	if got.Sender != "session-1" {
		t.Errorf("sender: got %q, want session-1", got.Sender)
	}
	if got.Message != "/greet" {
		t.Errorf("message: got %q, want /greet", got.Message)
	}
	if act.Text != "Welcome!" {
		t.Errorf("Text: got %q, want Welcome!", act.Text)
	}
	if act.Gesture != "greet" {
		t.Errorf("Gesture: got %q, want greet", act.Gesture)
	}
}

func TestSendMergesMultiItemReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]webhookResponse{
			{Text: "The food court is upstairs."},
			{Text: "Take the escalator on your left.", Custom: &customPayload{Gesture: "showing"}},
		})
	}))
	defer srv.Close()

	c, _ := NewClient(srv.URL, time.Second)
	act, err := c.Send(context.Background(), "s", "where can I eat")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	want := "The food court is upstairs. Take the escalator on your left."
	if act.Text != want {
		t.Errorf("Text: got %q, want %q", act.Text, want)
	}
	if act.Gesture != "showing" {
		t.Errorf("Gesture: got %q, want showing", act.Gesture)
	}
	if act.EndOfSession {
		t.Error("EndOfSession: got true, want false")
	}
}

func TestEndOfSessionFlag(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]webhookResponse{
			{Text: "It was lovely talking to you.", Custom: &customPayload{EndOfSession: true}},
		})
	}))
	defer srv.Close()

	c, _ := NewClient(srv.URL, time.Second)
	act, err := c.Send(context.Background(), "s", "bye")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if !act.EndOfSession {
		t.Error("EndOfSession: got false, want true")
	}
}

func TestEmptyReplyYieldsEmptyAct(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("[]"))
	}))
	defer srv.Close()

	c, _ := NewClient(srv.URL, time.Second)
	act, err := c.Open(context.Background(), "s")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if !act.Empty() {
		t.Errorf("Act: got %+v, want empty", act)
	}
}

func TestCloseSendsGoodbyeAndMarksEnd(t *testing.T) {
	var got webhookRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		json.NewEncoder(w).Encode([]webhookResponse{{Text: "Goodbye, come again!"}})
	}))
	defer srv.Close()

	c, _ := NewClient(srv.URL, time.Second)
	act, err := c.Close(context.Background(), "s")
	if err != nil {
		t.Fatalf("Close: %v", err)
	}
	if got.Message != "/goodbye" {
		t.Errorf("message: got %q, want /goodbye", got.Message)
	}
	if !act.EndOfSession {
		t.Error("EndOfSession: got false, want true")
	}
	if act.Text != "Goodbye, come again!" {
		t.Errorf("Text: got %q", act.Text)
	}
}

func TestServerErrorBecomesEngineError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "action server down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c, _ := NewClient(srv.URL, time.Second)
	_, err := c.Send(context.Background(), "s", "hello")
	if err == nil {
		t.Fatal("Send: expected error, got nil")
	}

	var engineErr *EngineError
	if !errors.As(err, &engineErr) {
		t.Fatalf("error: got %T, want *EngineError", err)
	}
	if engineErr.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("StatusCode: got %d, want 503", engineErr.StatusCode)
	}
	if !IsRetryable(err) {
		t.Error("IsRetryable: got false for a 503")
	}
}

func TestContextDeadlineStopsCall(t *testing.T) {
	blocked := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-blocked
	}))
	defer srv.Close()
	defer close(blocked)

	c, _ := NewClient(srv.URL, 10*time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := c.Send(ctx, "s", "hello")
	if err == nil {
		t.Fatal("Send: expected deadline error, got nil")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Send: took %v, deadline not honored", elapsed)
	}
}
