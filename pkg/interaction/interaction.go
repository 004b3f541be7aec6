// Package interaction runs one conversational state machine per tracked
// person. A machine is born when its person first wins the robot's
// attention, moves through greeting and conversation as the dialogue
// engine responds, and tears itself down when the person leaves, loses
// focus, or the engine ends the session.
package interaction

import (
	"encoding/json"
	"time"

	"github.com/socialrobotics/go-pepper/pkg/dialogue"
)

// State is the lifecycle position of one interaction.
type State int

const (
	// Idle is the initial state, before the person has ever held focus.
	Idle State = iota

	// Greeting means the opening exchange with the dialogue engine is
	// under way.
	Greeting

	// Conversing means the session is open and turns flow.
	Conversing

	// Farewell means the goodbye is being emitted. Interactions pass
	// through this state within a single advance.
	Farewell

	// Ended is terminal.
	Ended
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Greeting:
		return "greeting"
	case Conversing:
		return "conversing"
	case Farewell:
		return "farewell"
	case Ended:
		return "ended"
	default:
		return "unknown"
	}
}

// MarshalJSON renders the state as its name, for status payloads.
func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// CallKind identifies which engine operation a completion belongs to.
type CallKind int

const (
	CallOpen CallKind = iota
	CallSend
	CallClose
)

func (k CallKind) String() string {
	switch k {
	case CallOpen:
		return "open"
	case CallSend:
		return "send"
	case CallClose:
		return "close"
	default:
		return "unknown"
	}
}

// Completion is the outcome of one asynchronous engine call. The manager
// hands these to its notify callback from worker goroutines; the event
// loop feeds them back through HandleCompletion.
type Completion struct {
	InteractionID string
	Kind          CallKind
	Act           dialogue.Act
	Err           error
}

// Teardown reasons reported through TakeEnded.
const (
	ReasonSessionEnd    = "session_end"    // Engine signaled end of session
	ReasonDefocused     = "defocused"      // Arbiter moved the focus away
	ReasonEngineFailure = "engine_failure" // Engine call failed or timed out
	ReasonPersonLeft    = "person_left"    // Person removed by the tracker
)

// EndedInteraction is the final snapshot of a torn-down machine plus
// why it ended.
type EndedInteraction struct {
	Interaction
	Reason  string
	EndedAt time.Time
}

// Interaction is a read-only snapshot of one machine.
type Interaction struct {
	ID       string       `json:"id"`
	PersonID string       `json:"person_id"`
	State    State        `json:"state"`
	Turns    int          `json:"turns"`
	LastAct  dialogue.Act `json:"last_act"`

	StartedAt    time.Time `json:"started_at"`
	LastActivity time.Time `json:"last_activity"`
}

// interaction is the mutable record behind a snapshot.
type interaction struct {
	id       string
	personID string
	state    State
	turns    int
	lastAct  dialogue.Act

	startedAt    time.Time
	lastActivity time.Time

	// One engine call in flight at a time. While it runs the newest
	// utterance waits in a single slot; a newer one overwrites it.
	pending     bool
	pendingKind CallKind
	buffered    string
	hasBuffered bool
}

func (it *interaction) snapshot() Interaction {
	return Interaction{
		ID:           it.id,
		PersonID:     it.personID,
		State:        it.state,
		Turns:        it.turns,
		LastAct:      it.lastAct,
		StartedAt:    it.startedAt,
		LastActivity: it.lastActivity,
	}
}

// Stats counts manager activity since start.
type Stats struct {
	Started           uint64 `json:"started"`
	Ended             uint64 `json:"ended"`
	ForcedTeardowns   uint64 `json:"forced_teardowns"`
	EngineFailures    uint64 `json:"engine_failures"`
	DroppedUtterances uint64 `json:"dropped_utterances"`
	StaleResults      uint64 `json:"stale_results"`
}
