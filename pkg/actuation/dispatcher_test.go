package actuation

import (
	"errors"
	"testing"
)

func newTestDispatcher() (*Dispatcher, *Mock) {
	mock := NewMock()
	return NewDispatcher(mock), mock
}

func TestSubmitSpeakDispatchesWhenIdle(t *testing.T) {
	d, mock := newTestDispatcher()

	cmd := NewSpeak("int-1", "person-1", "hello there", PriorityConverse)
	outcomes := d.Submit(cmd)
	if len(outcomes) != 0 {
		t.Fatalf("expected no settled outcomes, got %d", len(outcomes))
	}

	sent := mock.Sent()
	if len(sent) != 1 {
		t.Fatalf("expected 1 command at actuator, got %d", len(sent))
	}
	if sent[0].Text != "hello there" {
		t.Errorf("expected text 'hello there', got %q", sent[0].Text)
	}
	if sent[0].Seq != 1 {
		t.Errorf("expected seq 1, got %d", sent[0].Seq)
	}

	inFlight, ok := d.InFlight()
	if !ok || inFlight.ID != cmd.ID {
		t.Error("expected submitted speak to be in flight")
	}
}

func TestSecondSpeakQueues(t *testing.T) {
	d, mock := newTestDispatcher()

	d.Submit(NewSpeak("int-1", "person-1", "first", PriorityConverse))
	d.Submit(NewSpeak("int-1", "person-1", "second", PriorityConverse))

	if got := len(mock.Sent()); got != 1 {
		t.Errorf("expected 1 delivered command, got %d", got)
	}
	if got := d.Pending(); got != 1 {
		t.Errorf("expected 1 queued speak, got %d", got)
	}
}

func TestGesturePassesThroughDuringSpeech(t *testing.T) {
	d, mock := newTestDispatcher()

	d.Submit(NewSpeak("int-1", "person-1", "talking", PriorityConverse))
	d.Submit(NewGesture("int-1", "person-1", "happy", PriorityConverse))
	d.Submit(NewGaze("int-1", "person-1", 0.2, PriorityConverse))

	sent := mock.Sent()
	if len(sent) != 3 {
		t.Fatalf("expected all 3 commands delivered, got %d", len(sent))
	}
	if sent[1].Kind != KindGesture || sent[2].Kind != KindGaze {
		t.Error("expected gesture and gaze to bypass the speak queue")
	}
	if d.Pending() != 0 {
		t.Errorf("expected empty queue, got %d", d.Pending())
	}
}

func TestResolveAdvancesQueue(t *testing.T) {
	d, mock := newTestDispatcher()

	first := NewSpeak("int-1", "person-1", "first", PriorityConverse)
	second := NewSpeak("int-1", "person-1", "second", PriorityConverse)
	d.Submit(first)
	d.Submit(second)

	outcomes := d.Resolve(Result{CommandID: first.ID, OK: true})
	if len(outcomes) != 1 {
		t.Fatalf("expected 1 outcome, got %d", len(outcomes))
	}
	if outcomes[0].Command.ID != first.ID || !outcomes[0].OK {
		t.Error("expected first speak resolved OK")
	}

	sent := mock.Sent()
	if len(sent) != 2 {
		t.Fatalf("expected second speak dispatched, got %d commands", len(sent))
	}
	if sent[1].ID != second.ID {
		t.Error("expected queued speak to take the freed slot")
	}
}

func TestQueueOrderPriorityThenSeq(t *testing.T) {
	d, mock := newTestDispatcher()

	blocking := NewSpeak("int-1", "person-1", "blocking", PriorityConverse)
	d.Submit(blocking)

	ambient := NewSpeak("int-2", "person-2", "ambient", PriorityAmbient)
	converse := NewSpeak("int-3", "person-3", "converse", PriorityConverse)
	d.Submit(ambient)
	d.Submit(converse)

	d.Resolve(Result{CommandID: blocking.ID, OK: true})

	sent := mock.Sent()
	if len(sent) != 2 {
		t.Fatalf("expected 2 delivered commands, got %d", len(sent))
	}
	if sent[1].ID != converse.ID {
		t.Error("expected higher priority speak to dispatch first despite later seq")
	}
}

func TestSamesPrioritySubmissionOrder(t *testing.T) {
	d, mock := newTestDispatcher()

	blocking := NewSpeak("int-1", "person-1", "blocking", PriorityConverse)
	d.Submit(blocking)

	early := NewSpeak("int-2", "person-2", "early", PriorityConverse)
	late := NewSpeak("int-3", "person-3", "late", PriorityConverse)
	d.Submit(early)
	d.Submit(late)

	d.Resolve(Result{CommandID: blocking.ID, OK: true})

	sent := mock.Sent()
	if sent[len(sent)-1].ID != early.ID {
		t.Error("expected equal priorities to dispatch in submission order")
	}
}

func TestEngagedInteractionJumpsQueue(t *testing.T) {
	d, mock := newTestDispatcher()

	blocking := NewSpeak("int-1", "person-1", "blocking", PriorityConverse)
	d.Submit(blocking)

	other := NewSpeak("int-2", "person-2", "other", PriorityConverse)
	engaged := NewSpeak("int-3", "person-3", "engaged", PriorityConverse)
	d.Submit(other)
	d.Submit(engaged)
	d.SetEngaged("int-3")

	d.Resolve(Result{CommandID: blocking.ID, OK: true})

	sent := mock.Sent()
	if sent[len(sent)-1].ID != engaged.ID {
		t.Error("expected engaged interaction's speak to jump the queue")
	}
}

func TestFarewellSupersedesQueuedSpeech(t *testing.T) {
	d, mock := newTestDispatcher()

	blocking := NewSpeak("int-1", "person-1", "blocking", PriorityConverse)
	d.Submit(blocking)

	reply := NewSpeak("int-1", "person-1", "stale reply", PriorityConverse)
	d.Submit(reply)

	farewell := NewSpeak("int-1", "person-1", "goodbye", PriorityFarewell)
	outcomes := d.Submit(farewell)

	if len(outcomes) != 1 {
		t.Fatalf("expected 1 superseded outcome, got %d", len(outcomes))
	}
	if outcomes[0].Command.ID != reply.ID || outcomes[0].OK {
		t.Error("expected the stale reply to be superseded")
	}
	if outcomes[0].Reason != "superseded" {
		t.Errorf("expected reason 'superseded', got %q", outcomes[0].Reason)
	}
	if got := d.Pending(); got != 1 {
		t.Errorf("expected only the farewell queued, got %d", got)
	}

	d.Resolve(Result{CommandID: blocking.ID, OK: true})
	sent := mock.Sent()
	if sent[len(sent)-1].ID != farewell.ID {
		t.Error("expected farewell to dispatch after the blocking speak")
	}
	if got := d.Stats().Superseded; got != 1 {
		t.Errorf("expected 1 superseded in stats, got %d", got)
	}
}

func TestFarewellLeavesOtherInteractionsAlone(t *testing.T) {
	d, _ := newTestDispatcher()

	blocking := NewSpeak("int-1", "person-1", "blocking", PriorityConverse)
	d.Submit(blocking)
	d.Submit(NewSpeak("int-2", "person-2", "unrelated", PriorityConverse))

	outcomes := d.Submit(NewSpeak("int-1", "person-1", "goodbye", PriorityFarewell))
	if len(outcomes) != 0 {
		t.Fatalf("expected no supersede across interactions, got %d outcomes", len(outcomes))
	}
	if got := d.Pending(); got != 2 {
		t.Errorf("expected both speaks still queued, got %d", got)
	}
}

func TestCancelPendingCullsQueueOnly(t *testing.T) {
	d, mock := newTestDispatcher()

	inFlight := NewSpeak("int-1", "person-1", "talking", PriorityConverse)
	queued := NewSpeak("int-1", "person-1", "queued", PriorityConverse)
	d.Submit(inFlight)
	d.Submit(queued)

	outcomes := d.CancelPending("int-1")
	if len(outcomes) != 1 {
		t.Fatalf("expected 1 cancelled outcome, got %d", len(outcomes))
	}
	if outcomes[0].Command.ID != queued.ID || outcomes[0].Reason != "cancelled" {
		t.Error("expected the queued speak cancelled")
	}

	// The in-flight speak is already at the robot and still resolves.
	resolved := d.Resolve(Result{CommandID: inFlight.ID, OK: true})
	if len(resolved) != 1 || !resolved[0].OK {
		t.Error("expected in-flight speak to survive the cancel")
	}
	if got := len(mock.Sent()); got != 1 {
		t.Errorf("expected cancelled speak never delivered, got %d commands", got)
	}
}

func TestDeliveryFailureSynthesizesOutcome(t *testing.T) {
	d, mock := newTestDispatcher()
	mock.DoFunc = func(cmd Command) error {
		return errors.New("link down")
	}

	cmd := NewSpeak("int-1", "person-1", "hello", PriorityConverse)
	outcomes := d.Submit(cmd)

	if len(outcomes) != 1 {
		t.Fatalf("expected 1 failure outcome, got %d", len(outcomes))
	}
	if outcomes[0].OK {
		t.Error("expected failed outcome")
	}
	if outcomes[0].Reason != "link down" {
		t.Errorf("expected reason 'link down', got %q", outcomes[0].Reason)
	}
	if _, ok := d.InFlight(); ok {
		t.Error("expected no speak in flight after delivery failure")
	}
	if got := d.Stats().Failed; got != 1 {
		t.Errorf("expected 1 failed in stats, got %d", got)
	}
}

func TestDeliveryFailureDrainsQueue(t *testing.T) {
	d, mock := newTestDispatcher()

	blocking := NewSpeak("int-1", "person-1", "blocking", PriorityConverse)
	d.Submit(blocking)
	d.Submit(NewSpeak("int-2", "person-2", "queued one", PriorityConverse))
	d.Submit(NewSpeak("int-3", "person-3", "queued two", PriorityConverse))

	// Link dies before the slot frees up.
	mock.DoFunc = func(cmd Command) error {
		return errors.New("link down")
	}

	outcomes := d.Resolve(Result{CommandID: blocking.ID, OK: true})
	if len(outcomes) != 3 {
		t.Fatalf("expected resolve plus 2 failures, got %d outcomes", len(outcomes))
	}
	if !outcomes[0].OK {
		t.Error("expected the resolved speak to be OK")
	}
	for _, o := range outcomes[1:] {
		if o.OK {
			t.Error("expected queued speaks to fail when delivery is down")
		}
	}
	if d.Pending() != 0 {
		t.Errorf("expected empty queue, got %d", d.Pending())
	}
}

func TestResolveUnknownResult(t *testing.T) {
	d, _ := newTestDispatcher()

	outcomes := d.Resolve(Result{CommandID: "no-such-command", OK: true})
	if outcomes != nil {
		t.Errorf("expected nil outcomes for unknown result, got %d", len(outcomes))
	}
	if got := d.Stats().Unknown; got != 1 {
		t.Errorf("expected 1 unknown in stats, got %d", got)
	}
}

func TestGestureResolves(t *testing.T) {
	d, _ := newTestDispatcher()

	gesture := NewGesture("int-1", "person-1", "greet", PriorityConverse)
	d.Submit(gesture)

	outcomes := d.Resolve(Result{CommandID: gesture.ID, OK: true})
	if len(outcomes) != 1 || !outcomes[0].OK {
		t.Fatal("expected gesture to resolve OK")
	}
	if outcomes[0].Command.Kind != KindGesture {
		t.Errorf("expected gesture outcome, got %v", outcomes[0].Command.Kind)
	}
}

func TestSeqAssignedInSubmissionOrder(t *testing.T) {
	d, mock := newTestDispatcher()

	d.Submit(NewGesture("int-1", "person-1", "greet", PriorityAmbient))
	d.Submit(NewGaze("int-1", "person-1", 0.1, PriorityAmbient))
	d.Submit(NewGesture("int-1", "person-1", "happy", PriorityAmbient))

	sent := mock.Sent()
	for i, cmd := range sent {
		if cmd.Seq != uint64(i+1) {
			t.Errorf("command %d: expected seq %d, got %d", i, i+1, cmd.Seq)
		}
	}
}
