// Package actuation turns interaction decisions into robot commands and
// keeps speech serialized: the robot has one mouth, so one Speak runs at
// a time while gestures and gaze changes pass straight through.
package actuation

import "github.com/google/uuid"

// Kind identifies the command variant.
type Kind int

const (
	// KindSpeak says a line, optionally with animated body language.
	KindSpeak Kind = iota

	// KindGesture plays a named animation.
	KindGesture

	// KindGaze orients the head toward a bearing.
	KindGaze
)

func (k Kind) String() string {
	switch k {
	case KindSpeak:
		return "speak"
	case KindGesture:
		return "gesture"
	case KindGaze:
		return "gaze"
	default:
		return "unknown"
	}
}

// Priority orders queued commands. Higher values run first.
type Priority int

const (
	// PriorityAmbient is for idle behavior such as gaze resets.
	PriorityAmbient Priority = iota

	// PriorityConverse is for greeting and conversation output.
	PriorityConverse

	// PriorityFarewell is for goodbye lines, which outrank anything a
	// dying conversation still has queued.
	PriorityFarewell
)

func (p Priority) String() string {
	switch p {
	case PriorityAmbient:
		return "ambient"
	case PriorityConverse:
		return "converse"
	case PriorityFarewell:
		return "farewell"
	default:
		return "unknown"
	}
}

// Command is one robot instruction. Commands are created by the
// interaction layer and consumed exactly once by the dispatcher.
type Command struct {
	ID            string
	InteractionID string
	PersonID      string
	Kind          Kind
	Priority      Priority

	// Seq is the emission order, assigned by the dispatcher.
	Seq uint64

	// Speak fields.
	Text     string
	Animated bool

	// Gesture field.
	Gesture string

	// Gaze field.
	Bearing float64
}

// NewSpeak builds a speech command. Animated body language is on; the
// bridge decides what that means for the platform.
func NewSpeak(interactionID, personID, text string, priority Priority) Command {
	return Command{
		ID:            uuid.NewString(),
		InteractionID: interactionID,
		PersonID:      personID,
		Kind:          KindSpeak,
		Priority:      priority,
		Text:          text,
		Animated:      true,
	}
}

// NewGesture builds a gesture command.
func NewGesture(interactionID, personID, name string, priority Priority) Command {
	return Command{
		ID:            uuid.NewString(),
		InteractionID: interactionID,
		PersonID:      personID,
		Kind:          KindGesture,
		Priority:      priority,
		Gesture:       name,
	}
}

// NewGaze builds a gaze command. An empty interaction ID is allowed for
// ambient gaze resets that belong to nobody.
func NewGaze(interactionID, personID string, bearing float64, priority Priority) Command {
	return Command{
		ID:            uuid.NewString(),
		InteractionID: interactionID,
		PersonID:      personID,
		Kind:          KindGaze,
		Priority:      priority,
		Bearing:       bearing,
	}
}
