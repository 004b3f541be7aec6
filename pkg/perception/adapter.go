package perception

import (
	"sync"
	"time"

	"github.com/socialrobotics/go-pepper/internal/log"
	"github.com/socialrobotics/go-pepper/pkg/protocol"
)

// Config holds perception normalization settings.
type Config struct {
	// CameraEnabled gates detection, emotion and track-loss records.
	CameraEnabled bool
	// SpeechEnabled gates transcript records.
	SpeechEnabled bool

	// CameraFOV and FrameWidth derive bearings from box centers.
	CameraFOV  float64 // Horizontal field of view, radians
	FrameWidth float64

	// Confidence floors per modality. Records below the floor are
	// dropped before they reach the tracker.
	MinPersonConfidence  float64
	MinFaceConfidence    float64
	MinEmotionConfidence float64
	MinSpeechConfidence  float64
}

// DefaultConfig returns adapter settings matched to a 640px frame.
func DefaultConfig() Config {
	return Config{
		CameraEnabled:        true,
		SpeechEnabled:        true,
		CameraFOV:            1.0472,
		FrameWidth:           640,
		MinPersonConfidence:  0.5,
		MinFaceConfidence:    0.5,
		MinEmotionConfidence: 0.4,
		MinSpeechConfidence:  0.3,
	}
}

// Stats counts adapter decisions since startup.
type Stats struct {
	Accepted      uint64 `json:"accepted"`
	LowConfidence uint64 `json:"low_confidence"`
	Malformed     uint64 `json:"malformed"`
	Disabled      uint64 `json:"disabled"`
}

// Adapter turns collaborator wire records into Events. It assigns
// receipt timestamps, derives bearings from box centers, enforces
// confidence floors and drops what it cannot use. Safe for concurrent
// use by multiple gateway connections.
type Adapter struct {
	config Config

	mu    sync.Mutex
	stats Stats
}

// NewAdapter creates an adapter with the given settings.
func NewAdapter(config Config) *Adapter {
	return &Adapter{config: config}
}

// Stats returns a snapshot of the drop/accept counters.
func (a *Adapter) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stats
}

// Normalize converts one wire message into an Event. The second return
// is false when the record was dropped; the reason is counted and
// logged, never fatal.
func (a *Adapter) Normalize(msg *protocol.Message, source string) (Event, bool) {
	switch msg.Type {
	case protocol.TypeDetection:
		return a.normalizeDetection(msg, source)
	case protocol.TypeEmotion:
		return a.normalizeEmotion(msg, source)
	case protocol.TypeSpeech:
		return a.normalizeSpeech(msg, source)
	case protocol.TypeLost:
		return a.normalizeLost(msg, source)
	default:
		a.drop(&a.stats.Malformed)
		log.Warn("perception: unexpected message type", "type", msg.Type, "source", source)
		return Event{}, false
	}
}

func (a *Adapter) normalizeDetection(msg *protocol.Message, source string) (Event, bool) {
	if !a.config.CameraEnabled {
		a.drop(&a.stats.Disabled)
		return Event{}, false
	}

	data, err := msg.GetDetectionData()
	if err != nil {
		a.drop(&a.stats.Malformed)
		log.Warn("perception: bad detection payload", "source", source, "error", err)
		return Event{}, false
	}

	var kind Kind
	switch data.Kind {
	case "person":
		kind = PersonDetected
	case "face":
		kind = FaceDetected
	default:
		a.drop(&a.stats.Malformed)
		log.Warn("perception: unknown detection kind", "kind", data.Kind, "source", source)
		return Event{}, false
	}

	where, ok := a.locator(data.Box, data.Bearing)
	if !ok {
		a.drop(&a.stats.Malformed)
		log.Warn("perception: detection without box or bearing", "source", source)
		return Event{}, false
	}

	floor := a.config.MinPersonConfidence
	if kind == FaceDetected {
		floor = a.config.MinFaceConfidence
	}
	if data.Confidence < floor {
		a.drop(&a.stats.LowConfidence)
		log.Debug("perception: detection below confidence floor",
			"kind", data.Kind, "confidence", data.Confidence, "floor", floor)
		return Event{}, false
	}

	a.accept()
	return Event{
		Kind:       kind,
		At:         time.Now(),
		SensorAt:   sensorTime(data.SensorTS),
		Where:      where,
		Confidence: data.Confidence,
		Source:     source,
	}, true
}

func (a *Adapter) normalizeEmotion(msg *protocol.Message, source string) (Event, bool) {
	if !a.config.CameraEnabled {
		a.drop(&a.stats.Disabled)
		return Event{}, false
	}

	data, err := msg.GetEmotionData()
	if err != nil {
		a.drop(&a.stats.Malformed)
		log.Warn("perception: bad emotion payload", "source", source, "error", err)
		return Event{}, false
	}
	if data.Label == "" {
		a.drop(&a.stats.Malformed)
		log.Warn("perception: emotion without label", "source", source)
		return Event{}, false
	}

	where, ok := a.locator(data.Box, data.Bearing)
	if !ok {
		a.drop(&a.stats.Malformed)
		log.Warn("perception: emotion without box or bearing", "source", source)
		return Event{}, false
	}

	if data.Confidence < a.config.MinEmotionConfidence {
		a.drop(&a.stats.LowConfidence)
		return Event{}, false
	}

	a.accept()
	return Event{
		Kind:       EmotionClassified,
		At:         time.Now(),
		SensorAt:   sensorTime(data.SensorTS),
		Where:      where,
		Confidence: data.Confidence,
		Emotion:    data.Label,
		Source:     source,
	}, true
}

func (a *Adapter) normalizeSpeech(msg *protocol.Message, source string) (Event, bool) {
	if !a.config.SpeechEnabled {
		a.drop(&a.stats.Disabled)
		return Event{}, false
	}

	data, err := msg.GetSpeechData()
	if err != nil {
		a.drop(&a.stats.Malformed)
		log.Warn("perception: bad speech payload", "source", source, "error", err)
		return Event{}, false
	}
	if data.Transcript == "" {
		a.drop(&a.stats.Malformed)
		log.Warn("perception: speech without transcript", "source", source)
		return Event{}, false
	}

	if data.Confidence < a.config.MinSpeechConfidence {
		a.drop(&a.stats.LowConfidence)
		log.Debug("perception: transcript below confidence floor",
			"confidence", data.Confidence)
		return Event{}, false
	}

	// Speaker direction is optional; without it the tracker matches by
	// recency alone.
	var where Locator
	if data.Bearing != nil {
		where = BearingLocator(*data.Bearing)
	}

	a.accept()
	return Event{
		Kind:       SpeechRecognized,
		At:         time.Now(),
		SensorAt:   sensorTime(data.SensorTS),
		Where:      where,
		Confidence: data.Confidence,
		Transcript: data.Transcript,
		Source:     source,
	}, true
}

func (a *Adapter) normalizeLost(msg *protocol.Message, source string) (Event, bool) {
	if !a.config.CameraEnabled {
		a.drop(&a.stats.Disabled)
		return Event{}, false
	}

	data, err := msg.GetLostData()
	if err != nil {
		a.drop(&a.stats.Malformed)
		log.Warn("perception: bad track-loss payload", "source", source, "error", err)
		return Event{}, false
	}

	where, ok := a.locator(data.Box, data.Bearing)
	if !ok {
		a.drop(&a.stats.Malformed)
		log.Warn("perception: track loss without last location", "source", source)
		return Event{}, false
	}

	a.accept()
	return Event{
		Kind:     PersonLost,
		At:       time.Now(),
		SensorAt: sensorTime(data.SensorTS),
		Where:    where,
		Source:   source,
	}, true
}

// locator builds a Locator from a wire box and/or bearing, deriving a
// bearing from the box center so bearing-only observations can still be
// matched against boxed tracks.
func (a *Adapter) locator(box *protocol.BoundingBox, bearing *float64) (Locator, bool) {
	var l Locator
	if box != nil {
		l.HasBox = true
		l.X, l.Y, l.W, l.H = box.X, box.Y, box.W, box.H
	}
	if bearing != nil {
		l.HasBearing = true
		l.Bearing = *bearing
	} else if l.HasBox && a.config.FrameWidth > 0 {
		cx, _ := l.Center()
		l.HasBearing = true
		l.Bearing = a.boxBearing(cx)
	}
	if !l.HasBox && !l.HasBearing {
		return Locator{}, false
	}
	return l, true
}

// boxBearing converts a frame x coordinate to a robot-relative bearing.
// Positive bearing is left of robot forward, while frame x grows to the
// right, so the offset is negated.
func (a *Adapter) boxBearing(cx float64) float64 {
	frameOffset := cx/a.config.FrameWidth - 0.5
	return -frameOffset * a.config.CameraFOV
}

func (a *Adapter) accept() {
	a.mu.Lock()
	a.stats.Accepted++
	a.mu.Unlock()
}

func (a *Adapter) drop(counter *uint64) {
	a.mu.Lock()
	*counter++
	a.mu.Unlock()
}

func sensorTime(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
