package interaction

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/socialrobotics/go-pepper/internal/log"
	"github.com/socialrobotics/go-pepper/pkg/actuation"
	"github.com/socialrobotics/go-pepper/pkg/dialogue"
	"github.com/socialrobotics/go-pepper/pkg/tracker"
)

// Spoken when the engine has no farewell text of its own.
const defaultFarewell = "It was nice talking to you. Goodbye!"

// Manager owns every live interaction. All methods are safe for
// concurrent use, but the intended caller is a single event loop:
// engine calls run on worker goroutines and re-enter through
// HandleCompletion instead of blocking an advance.
//
// The interaction ID doubles as the dialogue session ID and as the
// staleness token: every incarnation gets a fresh ID, so a completion
// whose ID no longer resolves belongs to a dead interaction and is
// dropped.
type Manager struct {
	mu       sync.Mutex
	engine   dialogue.Engine
	deadline time.Duration
	notify   func(Completion)

	byPerson map[string]*interaction
	byID     map[string]*interaction
	ended    []EndedInteraction

	stats Stats
}

// NewManager creates a manager driving engine. Engine calls are bounded
// by deadline. Completions are delivered to notify from worker
// goroutines; the caller routes them back into HandleCompletion.
func NewManager(engine dialogue.Engine, deadline time.Duration, notify func(Completion)) *Manager {
	return &Manager{
		engine:   engine,
		deadline: deadline,
		notify:   notify,
		byPerson: make(map[string]*interaction),
		byID:     make(map[string]*interaction),
	}
}

// Focus starts an interaction for a person who just won the robot's
// attention. A fresh machine enters Greeting: the robot looks at the
// person, waves, and opens a dialogue session. Focus on a person whose
// interaction is already live is a no-op.
func (m *Manager) Focus(person tracker.Person, now time.Time) []actuation.Command {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byPerson[person.ID]; ok {
		return nil
	}

	it := &interaction{
		id:           uuid.NewString(),
		personID:     person.ID,
		state:        Idle,
		startedAt:    now,
		lastActivity: now,
	}
	m.byPerson[person.ID] = it
	m.byID[it.id] = it
	m.stats.Started++

	it.state = Greeting
	it.pending = true
	it.pendingKind = CallOpen
	m.launch(CallOpen, it.id, "")

	log.Info("interaction started",
		"interaction_id", it.id,
		"person_id", person.ID)

	var cmds []actuation.Command
	if person.Where.HasBearing {
		cmds = append(cmds, actuation.NewGaze(it.id, person.ID, person.Where.Bearing, actuation.PriorityConverse))
	}
	cmds = append(cmds, actuation.NewGesture(it.id, person.ID, "greet", actuation.PriorityConverse))
	return cmds
}

// Defocus ends a person's interaction because the arbiter moved on. The
// machine passes through Farewell: a goodbye is emitted and the session
// closes in the background.
func (m *Manager) Defocus(personID string, now time.Time) []actuation.Command {
	m.mu.Lock()
	defer m.mu.Unlock()

	it, ok := m.byPerson[personID]
	if !ok {
		return nil
	}
	return m.farewell(it, dialogue.Act{}, now, ReasonDefocused)
}

// HandleUtterance forwards a recognized utterance to the engine. While
// a call is already in flight the newest utterance waits in a single
// slot; a newer one replaces it and the older is counted dropped.
// Utterances during Greeting are buffered until the session opens.
func (m *Manager) HandleUtterance(personID, transcript string, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	it, ok := m.byPerson[personID]
	if !ok {
		return
	}
	it.lastActivity = now

	switch it.state {
	case Greeting:
		m.buffer(it, transcript)
	case Conversing:
		if it.pending {
			m.buffer(it, transcript)
			return
		}
		it.pending = true
		it.pendingKind = CallSend
		m.launch(CallSend, it.id, transcript)
	}
}

// HandleCompletion feeds an engine result back into its machine.
// Results for dead or replaced interactions are discarded. An engine
// failure ends the session through the farewell path; it never retries.
func (m *Manager) HandleCompletion(c Completion, now time.Time) []actuation.Command {
	m.mu.Lock()
	defer m.mu.Unlock()

	it, ok := m.byID[c.InteractionID]
	if !ok || !it.pending || it.pendingKind != c.Kind {
		m.stats.StaleResults++
		log.Debug("discarding stale engine result",
			"interaction_id", c.InteractionID,
			"kind", c.Kind.String())
		return nil
	}
	it.pending = false
	it.lastActivity = now

	if c.Err != nil {
		m.stats.EngineFailures++
		log.Warn("dialogue engine call failed",
			"interaction_id", it.id,
			"kind", c.Kind.String(),
			"error", c.Err)
		return m.farewell(it, dialogue.Act{}, now, ReasonEngineFailure)
	}

	it.lastAct = c.Act

	switch c.Kind {
	case CallOpen:
		if c.Act.EndOfSession {
			return m.farewell(it, c.Act, now, ReasonSessionEnd)
		}
		it.state = Conversing
		cmds := m.actCommands(it, c.Act)
		m.flush(it)
		return cmds

	case CallSend:
		it.turns++
		if c.Act.EndOfSession {
			return m.farewell(it, c.Act, now, ReasonSessionEnd)
		}
		cmds := m.actCommands(it, c.Act)
		m.flush(it)
		return cmds
	}
	return nil
}

// HandleRemoval tears down a vanished person's interaction. Nobody is
// there to hear a goodbye, so no speech is emitted; the session closes
// in the background. Returns the ended interaction's ID so the caller
// can cancel its queued commands.
func (m *Manager) HandleRemoval(personID string, now time.Time) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	it, ok := m.byPerson[personID]
	if !ok {
		return "", false
	}

	m.stats.ForcedTeardowns++
	it.state = Farewell
	m.end(it, now, ReasonPersonLeft)
	m.launch(CallClose, it.id, "")

	log.Info("interaction torn down, person gone",
		"interaction_id", it.id,
		"person_id", personID)
	return it.id, true
}

// Get returns the live interaction for a person.
func (m *Manager) Get(personID string) (Interaction, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	it, ok := m.byPerson[personID]
	if !ok {
		return Interaction{}, false
	}
	return it.snapshot(), true
}

// All returns snapshots of every live interaction, oldest first.
func (m *Manager) All() []Interaction {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Interaction, 0, len(m.byPerson))
	for _, it := range m.byPerson {
		out = append(out, it.snapshot())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].StartedAt.Before(out[j].StartedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Count returns the number of live interactions.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byPerson)
}

// ConversingCount returns how many interactions are in Conversing. More
// than one means the attention pipeline is broken.
func (m *Manager) ConversingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, it := range m.byPerson {
		if it.state == Conversing {
			n++
		}
	}
	return n
}

// Stats returns a snapshot of the manager counters.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

// farewell emits the goodbye and ends the machine in one advance. The
// engine's own words win when it provided any; otherwise the built-in
// line goes out. Callers hold m.mu.
func (m *Manager) farewell(it *interaction, act dialogue.Act, now time.Time, reason string) []actuation.Command {
	it.state = Farewell
	it.lastActivity = now

	text := act.Text
	if text == "" {
		text = defaultFarewell
	}
	gesture := act.Gesture
	if gesture == "" {
		gesture = "farewell"
	}

	cmds := []actuation.Command{
		actuation.NewSpeak(it.id, it.personID, text, actuation.PriorityFarewell),
		actuation.NewGesture(it.id, it.personID, gesture, actuation.PriorityFarewell),
	}

	m.end(it, now, reason)
	m.launch(CallClose, it.id, "")
	return cmds
}

// end finalizes a machine and forgets it. Callers hold m.mu.
func (m *Manager) end(it *interaction, now time.Time, reason string) {
	it.state = Ended
	it.lastActivity = now
	delete(m.byPerson, it.personID)
	delete(m.byID, it.id)
	m.stats.Ended++
	m.ended = append(m.ended, EndedInteraction{
		Interaction: it.snapshot(),
		Reason:      reason,
		EndedAt:     now,
	})
}

// TakeEnded drains the interactions that finished since the last call.
// The event loop records them in the visit journal once per turn.
func (m *Manager) TakeEnded() []EndedInteraction {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := m.ended
	m.ended = nil
	return out
}

// actCommands turns an engine act into conversational robot commands.
// Callers hold m.mu.
func (m *Manager) actCommands(it *interaction, act dialogue.Act) []actuation.Command {
	var cmds []actuation.Command
	if act.Text != "" {
		cmds = append(cmds, actuation.NewSpeak(it.id, it.personID, act.Text, actuation.PriorityConverse))
	}
	if act.Gesture != "" {
		cmds = append(cmds, actuation.NewGesture(it.id, it.personID, act.Gesture, actuation.PriorityConverse))
	}
	return cmds
}

// buffer parks the newest utterance, replacing any older one. Callers
// hold m.mu.
func (m *Manager) buffer(it *interaction, transcript string) {
	if it.hasBuffered {
		m.stats.DroppedUtterances++
	}
	it.buffered = transcript
	it.hasBuffered = true
}

// flush sends the parked utterance once the machine can take another
// turn. Callers hold m.mu.
func (m *Manager) flush(it *interaction) {
	if !it.hasBuffered || it.pending || it.state != Conversing {
		return
	}
	transcript := it.buffered
	it.buffered = ""
	it.hasBuffered = false
	it.pending = true
	it.pendingKind = CallSend
	m.launch(CallSend, it.id, transcript)
}

// launch runs one engine call on a worker goroutine. Close is fire and
// forget; Open and Send report back through notify.
func (m *Manager) launch(kind CallKind, id, utterance string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), m.deadline)
		defer cancel()

		var act dialogue.Act
		var err error
		switch kind {
		case CallOpen:
			act, err = m.engine.Open(ctx, id)
		case CallSend:
			act, err = m.engine.Send(ctx, id, utterance)
		case CallClose:
			act, err = m.engine.Close(ctx, id)
		}

		if kind == CallClose {
			if err != nil {
				log.Debug("session close failed", "interaction_id", id, "error", err)
			}
			return
		}
		if m.notify != nil {
			m.notify(Completion{InteractionID: id, Kind: kind, Act: act, Err: err})
		}
	}()
}
