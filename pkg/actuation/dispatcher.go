package actuation

import (
	"sync"

	"github.com/socialrobotics/go-pepper/internal/log"
)

// Outcome is the settled fate of a submitted command: the robot acked it,
// the robot rejected it, or the dispatcher dropped it before delivery
// (superseded, cancelled, link down).
type Outcome struct {
	Command Command
	OK      bool
	Reason  string // Set when OK is false
}

// Stats counts dispatcher activity since start.
type Stats struct {
	Submitted  uint64 `json:"submitted"`
	Completed  uint64 `json:"completed"`
	Failed     uint64 `json:"failed"`
	Superseded uint64 `json:"superseded"`
	Cancelled  uint64 `json:"cancelled"`
	Unknown    uint64 `json:"unknown"` // Results with no matching command
}

// Dispatcher serializes speech and forwards everything else straight
// through. The robot can only say one thing at a time, so Speak commands
// queue behind the one in flight; gestures and gaze shifts ride alongside
// speech and never queue.
//
// Queued speech is ordered by interaction first (the engaged interaction
// jumps ahead), then priority, then submission order. A farewell entering
// the queue drops any lower-priority speech still queued for the same
// interaction, so a goodbye never waits behind a stale reply.
//
// Every submitted command produces exactly one Outcome, returned from
// Submit, Resolve, or CancelPending.
type Dispatcher struct {
	mu  sync.Mutex
	act Actuator

	seq         uint64
	engaged     string             // Interaction whose speech takes precedence
	inFlight    string             // ID of the Speak awaiting its ack, if any
	outstanding map[string]Command // All dispatched commands awaiting acks
	queue       []Command          // Speaks waiting for the slot

	stats Stats
}

// NewDispatcher creates a dispatcher that delivers through act.
func NewDispatcher(act Actuator) *Dispatcher {
	return &Dispatcher{
		act:         act,
		outstanding: make(map[string]Command),
	}
}

// Submit accepts a command for delivery. The returned outcomes are
// commands settled immediately: superseded queue entries and delivery
// failures. Nil means everything is dispatched or queued.
func (d *Dispatcher) Submit(cmd Command) []Outcome {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.seq++
	cmd.Seq = d.seq
	d.stats.Submitted++

	if cmd.Kind != KindSpeak {
		return d.dispatch(cmd)
	}

	var outcomes []Outcome
	if cmd.Priority == PriorityFarewell {
		outcomes = d.supersede(cmd.InteractionID)
	}

	if d.inFlight == "" {
		outcomes = append(outcomes, d.dispatch(cmd)...)
		outcomes = append(outcomes, d.advance()...)
		return outcomes
	}

	d.queue = append(d.queue, cmd)
	return outcomes
}

// Resolve matches a robot ack to its command. The first outcome is the
// resolved command itself; any further outcomes are queued speaks that
// failed to dispatch when the slot freed up. Nil means the result matched
// nothing we sent.
func (d *Dispatcher) Resolve(res Result) []Outcome {
	d.mu.Lock()
	defer d.mu.Unlock()

	cmd, ok := d.outstanding[res.CommandID]
	if !ok {
		d.stats.Unknown++
		log.Debug("result for unknown command", "command_id", res.CommandID)
		return nil
	}
	delete(d.outstanding, res.CommandID)

	if res.OK {
		d.stats.Completed++
	} else {
		d.stats.Failed++
	}

	outcomes := []Outcome{{Command: cmd, OK: res.OK, Reason: res.Reason}}

	if d.inFlight == res.CommandID {
		d.inFlight = ""
		outcomes = append(outcomes, d.advance()...)
	}
	return outcomes
}

// CancelPending drops all queued speech for one interaction. Anything
// already at the robot keeps going; a half-spoken sentence cannot be
// unsaid. Returns the cancelled commands as failed outcomes.
func (d *Dispatcher) CancelPending(interactionID string) []Outcome {
	d.mu.Lock()
	defer d.mu.Unlock()

	var outcomes []Outcome
	kept := d.queue[:0]
	for _, cmd := range d.queue {
		if cmd.InteractionID == interactionID {
			d.stats.Cancelled++
			outcomes = append(outcomes, Outcome{Command: cmd, Reason: "cancelled"})
			continue
		}
		kept = append(kept, cmd)
	}
	d.queue = kept
	return outcomes
}

// SetEngaged names the interaction whose queued speech goes first. Empty
// clears the preference.
func (d *Dispatcher) SetEngaged(interactionID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.engaged = interactionID
}

// InFlight returns the Speak currently at the robot, if any.
func (d *Dispatcher) InFlight() (Command, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.inFlight == "" {
		return Command{}, false
	}
	cmd, ok := d.outstanding[d.inFlight]
	return cmd, ok
}

// Pending returns the number of queued speaks.
func (d *Dispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queue)
}

// Stats returns a snapshot of the dispatch counters.
func (d *Dispatcher) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stats
}

// dispatch hands one command to the actuator. Callers hold d.mu.
func (d *Dispatcher) dispatch(cmd Command) []Outcome {
	d.outstanding[cmd.ID] = cmd
	if cmd.Kind == KindSpeak {
		d.inFlight = cmd.ID
	}

	if err := d.act.Do(cmd); err != nil {
		delete(d.outstanding, cmd.ID)
		if d.inFlight == cmd.ID {
			d.inFlight = ""
		}
		d.stats.Failed++
		log.Warn("command delivery failed",
			"command_id", cmd.ID,
			"kind", cmd.Kind.String(),
			"error", err)
		return []Outcome{{Command: cmd, Reason: err.Error()}}
	}
	return nil
}

// advance fills the speak slot from the queue, skipping over commands
// that fail to deliver. Callers hold d.mu.
func (d *Dispatcher) advance() []Outcome {
	var outcomes []Outcome
	for d.inFlight == "" && len(d.queue) > 0 {
		next := d.popNext()
		outcomes = append(outcomes, d.dispatch(next)...)
	}
	return outcomes
}

// popNext removes and returns the queued speak that should go first:
// engaged interaction, then priority, then submission order. Callers
// hold d.mu.
func (d *Dispatcher) popNext() Command {
	best := 0
	for i := 1; i < len(d.queue); i++ {
		if d.before(d.queue[i], d.queue[best]) {
			best = i
		}
	}
	cmd := d.queue[best]
	d.queue = append(d.queue[:best], d.queue[best+1:]...)
	return cmd
}

func (d *Dispatcher) before(a, b Command) bool {
	aEng := d.engaged != "" && a.InteractionID == d.engaged
	bEng := d.engaged != "" && b.InteractionID == d.engaged
	if aEng != bEng {
		return aEng
	}
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	return a.Seq < b.Seq
}

// supersede drops queued lower-priority speech for an interaction whose
// farewell is arriving. Callers hold d.mu.
func (d *Dispatcher) supersede(interactionID string) []Outcome {
	var outcomes []Outcome
	kept := d.queue[:0]
	for _, cmd := range d.queue {
		if cmd.InteractionID == interactionID && cmd.Priority < PriorityFarewell {
			d.stats.Superseded++
			outcomes = append(outcomes, Outcome{Command: cmd, Reason: "superseded"})
			continue
		}
		kept = append(kept, cmd)
	}
	d.queue = kept
	return outcomes
}
