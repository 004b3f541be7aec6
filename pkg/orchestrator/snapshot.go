package orchestrator

import (
	"time"

	"github.com/socialrobotics/go-pepper/pkg/actuation"
	"github.com/socialrobotics/go-pepper/pkg/interaction"
	"github.com/socialrobotics/go-pepper/pkg/perception"
	"github.com/socialrobotics/go-pepper/pkg/tracker"
)

// Snapshot is one consistent view of the pipeline for dashboards and
// the status API.
type Snapshot struct {
	At            time.Time                 `json:"at"`
	FocusPersonID string                    `json:"focus_person_id"`
	FocusSeq      uint64                    `json:"focus_seq"`
	People        []tracker.Person          `json:"people"`
	Interactions  []interaction.Interaction `json:"interactions"`
	PendingSpeech int                       `json:"pending_speech"`
	Perception    perception.Stats          `json:"perception"`
	Tracker       tracker.Stats             `json:"tracker"`
	Dispatch      actuation.Stats           `json:"dispatch"`
	Sessions      interaction.Stats         `json:"sessions"`
	DroppedEvents uint64                    `json:"dropped_events"`
	JournalDrops  uint64                    `json:"journal_drops"`
}

// Snapshot assembles the current state. Safe to call from any
// goroutine.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	focus := o.focus
	o.mu.Unlock()

	return Snapshot{
		At:            time.Now(),
		FocusPersonID: focus.PersonID,
		FocusSeq:      focus.Seq,
		People:        o.tracker.People(),
		Interactions:  o.manager.All(),
		PendingSpeech: o.dispatcher.Pending(),
		Perception:    o.adapter.Stats(),
		Tracker:       o.tracker.Stats(),
		Dispatch:      o.dispatcher.Stats(),
		Sessions:      o.manager.Stats(),
		DroppedEvents: o.dropped.Load(),
		JournalDrops:  o.journalDrops.Load(),
	}
}

// SetNotify registers a callback invoked with a fresh snapshot after
// ticks and focus changes. The callback runs on the loop goroutine and
// must not block.
func (o *Orchestrator) SetNotify(fn func(Snapshot)) {
	o.mu.Lock()
	o.notify = fn
	o.mu.Unlock()
}

func (o *Orchestrator) pushSnapshot(now time.Time) {
	o.mu.Lock()
	fn := o.notify
	o.mu.Unlock()
	if fn == nil {
		return
	}

	snap := o.Snapshot()
	snap.At = now
	fn(snap)
}
