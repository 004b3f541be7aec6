// Package orchestrator wires perception, identity, attention, dialogue
// and actuation into one event loop. Every mutation of tracked-person
// and interaction state happens on the loop goroutine; producers only
// enqueue events, and slow collaborators re-enter the loop as events
// instead of blocking it.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/socialrobotics/go-pepper/internal/config"
	"github.com/socialrobotics/go-pepper/internal/log"
	"github.com/socialrobotics/go-pepper/pkg/actuation"
	"github.com/socialrobotics/go-pepper/pkg/attention"
	"github.com/socialrobotics/go-pepper/pkg/dialogue"
	"github.com/socialrobotics/go-pepper/pkg/interaction"
	"github.com/socialrobotics/go-pepper/pkg/perception"
	"github.com/socialrobotics/go-pepper/pkg/protocol"
	"github.com/socialrobotics/go-pepper/pkg/tracker"
	"github.com/socialrobotics/go-pepper/pkg/visitlog"
)

const (
	// eventQueueSize bounds the loop inbox. Perception bursts beyond
	// it are dropped; completions always get through.
	eventQueueSize = 256

	journalQueueSize = 128
	journalTimeout   = 5 * time.Second
)

type eventKind int

const (
	evPerception eventKind = iota
	evTick
	evDialogue
	evActuation
)

// event is the loop's input. Exactly one payload field is set, selected
// by kind.
type event struct {
	kind       eventKind
	at         time.Time
	perception perception.Event
	completion interaction.Completion
	result     actuation.Result
}

// Orchestrator runs the interaction pipeline: ingest, sweep, arbitrate,
// advance, dispatch. Construct with New, feed perception through
// SubmitPerception, and call Run.
type Orchestrator struct {
	cfg *config.Config

	adapter    *perception.Adapter
	tracker    *tracker.Tracker
	arbiter    *attention.Arbiter
	manager    *interaction.Manager
	dispatcher *actuation.Dispatcher
	actuator   actuation.Actuator
	catalog    *actuation.Catalog
	visits     visitlog.Store

	events  chan event
	journal chan func(context.Context) error
	done    chan struct{}

	mu     sync.Mutex
	focus  attention.FocusDecision
	notify func(Snapshot)

	dropped      atomic.Uint64
	journalDrops atomic.Uint64
}

// New assembles an orchestrator. visits may be nil to disable the
// journal; everything else is required.
func New(cfg *config.Config, engine dialogue.Engine, act actuation.Actuator, visits visitlog.Store) *Orchestrator {
	o := &Orchestrator{
		cfg:        cfg,
		adapter:    perception.NewAdapter(adapterConfig(cfg)),
		tracker:    tracker.New(trackerConfig(cfg)),
		arbiter:    attention.New(cfg.StaleAfter),
		dispatcher: actuation.NewDispatcher(act),
		actuator:   act,
		catalog:    actuation.NewCatalog(),
		visits:     visits,
		events:     make(chan event, eventQueueSize),
		journal:    make(chan func(context.Context) error, journalQueueSize),
		done:       make(chan struct{}),
	}
	o.manager = interaction.NewManager(engine, cfg.DialogueDeadline, o.enqueueCompletion)
	return o
}

func adapterConfig(cfg *config.Config) perception.Config {
	return perception.Config{
		CameraEnabled:        cfg.CameraEnabled,
		SpeechEnabled:        cfg.SpeechEnabled(),
		CameraFOV:            cfg.CameraFOV,
		FrameWidth:           float64(cfg.FrameWidth),
		MinPersonConfidence:  cfg.MinPersonConfidence,
		MinFaceConfidence:    cfg.MinFaceConfidence,
		MinEmotionConfidence: cfg.MinEmotionConfidence,
		MinSpeechConfidence:  cfg.MinSpeechConfidence,
	}
}

func trackerConfig(cfg *config.Config) tracker.Config {
	tc := tracker.DefaultConfig()
	tc.StaleAfter = cfg.StaleAfter
	tc.LostAfter = cfg.LostAfter
	tc.MatchWindow = cfg.MatchWindow
	tc.MatchDistance = cfg.MatchDistance
	tc.MatchBearing = cfg.MatchBearing
	return tc
}

// SubmitPerception normalizes one collaborator message and enqueues it.
// A full queue drops the event; perception is lossy by nature and the
// tracker absorbs gaps.
func (o *Orchestrator) SubmitPerception(msg *protocol.Message, source string) {
	ev, ok := o.adapter.Normalize(msg, source)
	if !ok {
		return
	}

	select {
	case o.events <- event{kind: evPerception, at: ev.At, perception: ev}:
	default:
		o.dropped.Add(1)
		log.Debug("event queue full, dropping perception event", "kind", ev.Kind.String())
	}
}

// enqueueCompletion feeds an engine result back into the loop. Unlike
// perception it must not be lost, so it blocks until the loop takes it
// or the orchestrator stops.
func (o *Orchestrator) enqueueCompletion(c interaction.Completion) {
	select {
	case o.events <- event{kind: evDialogue, at: time.Now(), completion: c}:
	case <-o.done:
	}
}

// Run drives the loop until ctx is cancelled. It owns the tick clock,
// the actuation result pump and the journal writer.
func (o *Orchestrator) Run(ctx context.Context) error {
	defer close(o.done)

	go o.resultsPump(ctx)
	go o.journalLoop(ctx)

	ticker := time.NewTicker(o.cfg.TickInterval)
	defer ticker.Stop()

	log.Info("orchestrator running",
		"tick", o.cfg.TickInterval.String(),
		"stale_after", o.cfg.StaleAfter.String(),
		"lost_after", o.cfg.LostAfter.String())

	for {
		select {
		case <-ctx.Done():
			log.Info("orchestrator stopping")
			return nil
		case now := <-ticker.C:
			o.turn(event{kind: evTick, at: now})
		case ev := <-o.events:
			o.turn(ev)
		}
	}
}

// resultsPump converts actuator acks into loop events.
func (o *Orchestrator) resultsPump(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case res, ok := <-o.actuator.Results():
			if !ok {
				return
			}
			select {
			case o.events <- event{kind: evActuation, at: time.Now(), result: res}:
			case <-ctx.Done():
				return
			}
		}
	}
}

// journalLoop applies journal writes off the loop goroutine so a slow
// database never stalls a turn.
func (o *Orchestrator) journalLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case op := <-o.journal:
			jctx, cancel := context.WithTimeout(context.Background(), journalTimeout)
			if err := op(jctx); err != nil {
				log.Warn("visit journal write failed", "error", err)
			}
			cancel()
		}
	}
}

// turn processes one event through the pipeline stages in order:
// ingest, sweep, arbitrate, advance, dispatch.
func (o *Orchestrator) turn(ev event) {
	now := ev.at
	if now.IsZero() {
		now = time.Now()
	}

	focusChanged := false
	switch ev.kind {
	case evPerception:
		o.ingest(ev.perception, now)
		switch ev.perception.Kind {
		case perception.PersonDetected, perception.FaceDetected, perception.PersonLost:
			focusChanged = o.arbitrate(now)
		}
	case evTick:
		o.sweep(now)
		focusChanged = o.arbitrate(now)
	case evDialogue:
		o.submitAll(o.manager.HandleCompletion(ev.completion, now))
	case evActuation:
		o.logOutcomes(o.dispatcher.Resolve(ev.result))
	default:
		log.Error("unhandled event kind", "kind", int(ev.kind))
	}

	o.recordEnded()

	if n := o.manager.ConversingCount(); n > 1 {
		panic(fmt.Sprintf("orchestrator: %d interactions conversing at once", n))
	}

	if focusChanged || ev.kind == evTick {
		o.pushSnapshot(now)
	}
}

// ingest applies one perception event to the tracker and routes
// utterances to the engaged interaction.
func (o *Orchestrator) ingest(ev perception.Event, now time.Time) {
	res := o.tracker.Ingest(ev)
	if res.PersonID == "" {
		return
	}

	if res.Created {
		log.Info("tracking new person", "person_id", res.PersonID, "source", ev.Source)
		o.record(func(ctx context.Context) error {
			return o.visits.RecordArrival(ctx, res.PersonID, ev.At)
		})
	}

	if ev.Kind == perception.SpeechRecognized {
		o.mu.Lock()
		focused := o.focus.PersonID
		o.mu.Unlock()
		if focused != "" && focused == res.PersonID {
			o.manager.HandleUtterance(res.PersonID, ev.Transcript, now)
		}
	}
}

// sweep removes overdue persons and tears down whatever they left
// behind: their interaction loses its queued speech and the visit
// closes in the journal.
func (o *Orchestrator) sweep(now time.Time) {
	for _, p := range o.tracker.Tick(now) {
		log.Info("person lost",
			"person_id", p.ID,
			"sightings", p.Sightings,
			"tracked_for", now.Sub(p.FirstSeen).String())

		if id, ok := o.manager.HandleRemoval(p.ID, now); ok {
			o.logOutcomes(o.dispatcher.CancelPending(id))
		}

		o.record(func(ctx context.Context) error {
			return o.visits.RecordDeparture(ctx, p.ID, now, p.Sightings, p.DominantEmotion)
		})
	}
}

// arbitrate re-evaluates focus and plays out a change: the old
// interaction gets its farewell, the new person gets greeted, and the
// dispatcher reorders around the new engagement.
func (o *Orchestrator) arbitrate(now time.Time) bool {
	decision, changed := o.arbiter.Decide(o.tracker.People(), now)
	if !changed {
		return false
	}

	o.mu.Lock()
	prev := o.focus
	o.focus = decision
	o.mu.Unlock()

	if prev.PersonID != "" {
		o.submitAll(o.manager.Defocus(prev.PersonID, now))
	}

	if decision.PersonID == "" {
		o.dispatcher.SetEngaged("")
		log.Info("focus released", "seq", decision.Seq)
		o.submitAll([]actuation.Command{
			actuation.NewGaze("", "", 0, actuation.PriorityAmbient),
		})
		return true
	}

	person, ok := o.tracker.Get(decision.PersonID)
	if !ok {
		// The decision's person vanished between snapshot and now;
		// the next tick re-arbitrates.
		o.dispatcher.SetEngaged("")
		return true
	}

	o.submitAll(o.manager.Focus(person, now))
	if it, ok := o.manager.Get(person.ID); ok {
		o.dispatcher.SetEngaged(it.ID)
	}
	log.Info("focus changed", "person_id", decision.PersonID, "seq", decision.Seq)
	return true
}

// submitAll pushes commands to the dispatcher, resolving gesture names
// through the catalog first. Unknown gestures are dropped; the engine
// sometimes invents them.
func (o *Orchestrator) submitAll(cmds []actuation.Command) {
	for _, cmd := range cmds {
		if cmd.Kind == actuation.KindGesture {
			name, ok := o.catalog.Resolve(cmd.Gesture)
			if !ok {
				log.Debug("dropping unknown gesture", "gesture", cmd.Gesture)
				continue
			}
			cmd.Gesture = name
		}
		o.logOutcomes(o.dispatcher.Submit(cmd))
	}
}

// logOutcomes reports settled commands. Failures are logged and
// dropped, never retried.
func (o *Orchestrator) logOutcomes(outcomes []actuation.Outcome) {
	for _, out := range outcomes {
		if out.OK {
			log.Debug("command completed",
				"command_id", out.Command.ID,
				"kind", out.Command.Kind.String())
			continue
		}
		log.Warn("command dropped",
			"command_id", out.Command.ID,
			"kind", out.Command.Kind.String(),
			"reason", out.Reason)
	}
}

// recordEnded journals interactions that finished this turn.
func (o *Orchestrator) recordEnded() {
	for _, e := range o.manager.TakeEnded() {
		log.Info("interaction ended",
			"interaction_id", e.ID,
			"person_id", e.PersonID,
			"turns", e.Turns,
			"reason", e.Reason)
		o.record(func(ctx context.Context) error {
			return o.visits.RecordInteraction(ctx, visitlog.InteractionRecord{
				InteractionID: e.ID,
				PersonID:      e.PersonID,
				StartedAt:     e.StartedAt,
				EndedAt:       e.EndedAt,
				Turns:         e.Turns,
				Outcome:       e.Reason,
			})
		})
	}
}

// record enqueues a journal write. Best effort: a full journal queue
// drops the record rather than stalling the loop.
func (o *Orchestrator) record(op func(context.Context) error) {
	if o.visits == nil {
		return
	}
	select {
	case o.journal <- op:
	default:
		o.journalDrops.Add(1)
	}
}
