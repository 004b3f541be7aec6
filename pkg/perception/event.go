// Package perception normalizes detector and speech reports into the
// event stream the orchestrator consumes. It owns the event vocabulary
// and carries no inference logic of its own.
package perception

import (
	"math"
	"time"
)

// Kind identifies the perception event variant.
type Kind int

const (
	// PersonDetected reports a full-body detection.
	PersonDetected Kind = iota

	// FaceDetected reports a face detection.
	FaceDetected

	// EmotionClassified reports an emotion label on a detected face.
	EmotionClassified

	// SpeechRecognized reports a finished utterance transcript.
	SpeechRecognized

	// PersonLost reports a detector-side track loss.
	PersonLost
)

func (k Kind) String() string {
	switch k {
	case PersonDetected:
		return "person_detected"
	case FaceDetected:
		return "face_detected"
	case EmotionClassified:
		return "emotion_classified"
	case SpeechRecognized:
		return "speech_recognized"
	case PersonLost:
		return "person_lost"
	default:
		return "unknown"
	}
}

// Locator places an observation relative to the robot: a pixel box in
// the camera frame, a bearing from robot forward, or both.
type Locator struct {
	HasBox bool    `json:"has_box"`
	X      float64 `json:"x,omitempty"` // Pixel box, X/Y is the top-left corner
	Y      float64 `json:"y,omitempty"`
	W      float64 `json:"w,omitempty"`
	H      float64 `json:"h,omitempty"`

	HasBearing bool    `json:"has_bearing"`
	Bearing    float64 `json:"bearing,omitempty"` // Radians, positive = left of robot forward
}

// BoxLocator builds a box-only locator.
func BoxLocator(x, y, w, h float64) Locator {
	return Locator{HasBox: true, X: x, Y: y, W: w, H: h}
}

// BearingLocator builds a direction-only locator.
func BearingLocator(bearing float64) Locator {
	return Locator{HasBearing: true, Bearing: bearing}
}

// Center returns the box center in pixels. Only meaningful when HasBox.
func (l Locator) Center() (float64, float64) {
	return l.X + l.W/2, l.Y + l.H/2
}

// PixelDistance returns the Euclidean distance between two box centers.
// Only meaningful when both locators carry boxes.
func (l Locator) PixelDistance(other Locator) float64 {
	ax, ay := l.Center()
	bx, by := other.Center()
	return math.Hypot(ax-bx, ay-by)
}

// BearingDistance returns the absolute angular difference in radians.
func (l Locator) BearingDistance(other Locator) float64 {
	return math.Abs(l.Bearing - other.Bearing)
}

// Event is a single normalized perception observation. Events are
// values; once emitted they are never mutated.
type Event struct {
	Kind Kind

	// At is the receipt timestamp assigned by the adapter from its own
	// clock. All liveness windows are measured against At, never the
	// collaborator's clock.
	At time.Time

	// SensorAt is the collaborator's own timestamp when provided.
	// Informational only.
	SensorAt time.Time

	Where      Locator
	Confidence float64

	// Emotion is set for EmotionClassified events.
	Emotion string

	// Transcript is set for SpeechRecognized events.
	Transcript string

	// Source identifies the collaborator connection that produced the
	// event, for logging.
	Source string
}
