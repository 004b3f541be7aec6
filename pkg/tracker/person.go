// Package tracker maintains identity over the perception stream: which
// person is which across detection gaps, when a person goes stale and
// when they are gone for good.
package tracker

import (
	"encoding/json"
	"time"

	"github.com/socialrobotics/go-pepper/pkg/perception"
)

// Liveness describes how recently a person was observed.
type Liveness int

const (
	// Active means the person was seen within the stale window.
	Active Liveness = iota

	// Stale means the person has not been seen recently but is still
	// remembered and can re-attach to new detections.
	Stale

	// Lost means the person has been removed from tracking. Lost only
	// appears on snapshots returned by Tick; the tracker itself never
	// holds a lost person.
	Lost
)

func (l Liveness) String() string {
	switch l {
	case Active:
		return "active"
	case Stale:
		return "stale"
	case Lost:
		return "lost"
	default:
		return "unknown"
	}
}

// MarshalJSON renders liveness as its name, for status payloads.
func (l Liveness) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

// Person is a read-only snapshot of a tracked person. The tracker owns
// the live record; callers always receive copies.
type Person struct {
	ID        string             `json:"id"`
	Where     perception.Locator `json:"where"`
	FirstSeen time.Time          `json:"first_seen"`
	LastSeen  time.Time          `json:"last_seen"`
	Sightings int                `json:"sightings"`

	Liveness   Liveness  `json:"liveness"`
	StaleSince time.Time `json:"stale_since,omitempty"` // Set while Liveness is Stale

	// Confidence of the most recent matched detection.
	Confidence float64 `json:"confidence"`

	// DominantEmotion is the strongest label in the rolling emotion
	// estimate, "" when no emotion has been observed.
	DominantEmotion string  `json:"dominant_emotion,omitempty"`
	EmotionScore    float64 `json:"emotion_score,omitempty"`
}

// person is the mutable record behind a Person snapshot.
type person struct {
	id        string
	where     perception.Locator
	firstSeen time.Time
	lastSeen  time.Time
	sightings int

	liveness   Liveness
	staleSince time.Time

	confidence float64

	// Rolling per-label emotion scores, updated with an exponential
	// moving average so one noisy frame cannot flip the estimate.
	emotions map[string]float64
}

func (p *person) observeEmotion(label string, confidence, smoothing float64) {
	if p.emotions == nil {
		p.emotions = make(map[string]float64)
	}
	for l := range p.emotions {
		p.emotions[l] *= 1 - smoothing
	}
	p.emotions[label] += smoothing * confidence
}

// dominantEmotion returns the strongest label, ties broken by label
// order so the result is stable across map iterations.
func (p *person) dominantEmotion() (string, float64) {
	best := ""
	bestScore := 0.0
	for label, score := range p.emotions {
		if score > bestScore || (score == bestScore && best != "" && label < best) {
			best = label
			bestScore = score
		}
	}
	return best, bestScore
}

func (p *person) snapshot() Person {
	label, score := p.dominantEmotion()
	return Person{
		ID:              p.id,
		Where:           p.where,
		FirstSeen:       p.firstSeen,
		LastSeen:        p.lastSeen,
		Sightings:       p.sightings,
		Liveness:        p.liveness,
		StaleSince:      p.staleSince,
		Confidence:      p.confidence,
		DominantEmotion: label,
		EmotionScore:    score,
	}
}
