package tracker

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/socialrobotics/go-pepper/internal/log"
	"github.com/socialrobotics/go-pepper/pkg/perception"
)

// scoreEpsilon treats two match scores as equal, so the recency
// tie-break applies instead of float noise.
const scoreEpsilon = 1e-9

// Stats counts observations that could not be attached to anyone.
type Stats struct {
	OrphanEmotions uint64 `json:"orphan_emotions"`
	OrphanSpeech   uint64 `json:"orphan_speech"`
	OrphanLost     uint64 `json:"orphan_lost"`
}

// IngestResult reports what an event did to the tracked population.
type IngestResult struct {
	// PersonID is the matched or newly created person, "" when the
	// event was discarded.
	PersonID string

	// Created is true when the event started tracking a new person.
	Created bool
}

// Tracker maintains the set of tracked persons. IDs are fresh UUIDs and
// are never reused, even for someone who returns after being lost.
//
// The tracker is not itself goroutine-safe beyond its internal lock; it
// expects Ingest and Tick to be called from the orchestrator's single
// consumer loop, with snapshot reads from anywhere.
type Tracker struct {
	mu     sync.RWMutex
	config Config
	people map[string]*person
	stats  Stats
}

// New creates an empty tracker.
func New(config Config) *Tracker {
	return &Tracker{
		config: config,
		people: make(map[string]*person),
	}
}

// Ingest applies one perception event and reports which person it
// touched. Detections create or refresh persons; emotion, speech and
// track-loss events only annotate existing ones.
func (t *Tracker) Ingest(ev perception.Event) IngestResult {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch ev.Kind {
	case perception.PersonDetected, perception.FaceDetected:
		return t.ingestDetection(ev)
	case perception.EmotionClassified:
		return t.ingestEmotion(ev)
	case perception.SpeechRecognized:
		return t.ingestSpeech(ev)
	case perception.PersonLost:
		return t.ingestLost(ev)
	default:
		return IngestResult{}
	}
}

func (t *Tracker) ingestDetection(ev perception.Event) IngestResult {
	if match := t.bestMatch(ev.Where, ev.At); match != nil {
		t.refresh(match, ev)
		return IngestResult{PersonID: match.id}
	}

	p := &person{
		id:         uuid.NewString(),
		where:      ev.Where,
		firstSeen:  ev.At,
		lastSeen:   ev.At,
		sightings:  1,
		liveness:   Active,
		confidence: ev.Confidence,
	}
	t.people[p.id] = p
	log.Debug("tracker: new person", "person", p.id, "kind", ev.Kind.String())
	return IngestResult{PersonID: p.id, Created: true}
}

func (t *Tracker) ingestEmotion(ev perception.Event) IngestResult {
	match := t.bestMatch(ev.Where, ev.At)
	if match == nil {
		t.stats.OrphanEmotions++
		log.Debug("tracker: emotion with no matching person", "label", ev.Emotion)
		return IngestResult{}
	}
	match.observeEmotion(ev.Emotion, ev.Confidence, t.config.EmotionSmoothing)
	return IngestResult{PersonID: match.id}
}

func (t *Tracker) ingestSpeech(ev perception.Event) IngestResult {
	var match *person
	if ev.Where.HasBox || ev.Where.HasBearing {
		match = t.bestMatch(ev.Where, ev.At)
	}
	if match == nil {
		// No speaker direction: attribute to whoever was seen most
		// recently and is still active.
		match = t.mostRecentActive()
	}
	if match == nil {
		t.stats.OrphanSpeech++
		log.Debug("tracker: transcript with no matching person")
		return IngestResult{}
	}
	return IngestResult{PersonID: match.id}
}

func (t *Tracker) ingestLost(ev perception.Event) IngestResult {
	match := t.bestMatch(ev.Where, ev.At)
	if match == nil {
		t.stats.OrphanLost++
		return IngestResult{}
	}
	// Demote immediately; removal stays with the lost window so a
	// detector hiccup cannot erase someone mid-conversation.
	if match.liveness == Active {
		match.liveness = Stale
		match.staleSince = ev.At
		log.Debug("tracker: person reported lost, demoted to stale", "person", match.id)
	}
	return IngestResult{PersonID: match.id}
}

// refresh applies a matched detection to an existing person.
func (t *Tracker) refresh(p *person, ev perception.Event) {
	s := t.config.PositionSmoothing
	if p.where.HasBox && ev.Where.HasBox {
		p.where.X = s*ev.Where.X + (1-s)*p.where.X
		p.where.Y = s*ev.Where.Y + (1-s)*p.where.Y
		p.where.W = s*ev.Where.W + (1-s)*p.where.W
		p.where.H = s*ev.Where.H + (1-s)*p.where.H
	} else if ev.Where.HasBox {
		p.where.HasBox = true
		p.where.X, p.where.Y, p.where.W, p.where.H = ev.Where.X, ev.Where.Y, ev.Where.W, ev.Where.H
	}
	if ev.Where.HasBearing {
		if p.where.HasBearing {
			p.where.Bearing = s*ev.Where.Bearing + (1-s)*p.where.Bearing
		} else {
			p.where.HasBearing = true
			p.where.Bearing = ev.Where.Bearing
		}
	}

	p.lastSeen = ev.At
	p.sightings++
	p.confidence = ev.Confidence
	if p.liveness == Stale {
		log.Debug("tracker: person re-attached", "person", p.id,
			"gap", ev.At.Sub(p.staleSince).String())
	}
	p.liveness = Active
	p.staleSince = time.Time{}
}

// bestMatch finds the person closest to a locator among those seen
// within the match window. Boxes compare by pixel distance, bearings by
// angle; scores are normalized by their thresholds so the two kinds are
// comparable. Equal scores go to the person seen most recently.
func (t *Tracker) bestMatch(where perception.Locator, at time.Time) *person {
	var best *person
	bestScore := 0.0

	for _, p := range t.people {
		if at.Sub(p.lastSeen) > t.config.MatchWindow {
			continue
		}
		score, ok := t.matchScore(where, p)
		if !ok {
			continue
		}
		switch {
		case best == nil,
			score < bestScore-scoreEpsilon:
			best = p
			bestScore = score
		case score < bestScore+scoreEpsilon && p.lastSeen.After(best.lastSeen):
			best = p
			bestScore = score
		}
	}
	return best
}

func (t *Tracker) matchScore(where perception.Locator, p *person) (float64, bool) {
	if where.HasBox && p.where.HasBox {
		d := where.PixelDistance(p.where)
		if d > t.config.MatchDistance {
			return 0, false
		}
		return d / t.config.MatchDistance, true
	}
	if where.HasBearing && p.where.HasBearing {
		d := where.BearingDistance(p.where)
		if d > t.config.MatchBearing {
			return 0, false
		}
		return d / t.config.MatchBearing, true
	}
	return 0, false
}

func (t *Tracker) mostRecentActive() *person {
	var best *person
	for _, p := range t.people {
		if p.liveness != Active {
			continue
		}
		if best == nil || p.lastSeen.After(best.lastSeen) {
			best = p
		}
	}
	return best
}

// Tick sweeps liveness at the given time. Active persons unseen past
// the stale window go stale; stale persons unseen past the lost window
// are removed and returned (marked Lost) so the caller can tear down
// whatever depended on them. Removal order is by ID for determinism.
func (t *Tracker) Tick(now time.Time) []Person {
	t.mu.Lock()
	defer t.mu.Unlock()

	var removed []Person
	for id, p := range t.people {
		unseen := now.Sub(p.lastSeen)
		if p.liveness == Active && unseen > t.config.StaleAfter {
			p.liveness = Stale
			p.staleSince = p.lastSeen.Add(t.config.StaleAfter)
		}
		if p.liveness == Stale && unseen > t.config.LostAfter {
			snap := p.snapshot()
			snap.Liveness = Lost
			removed = append(removed, snap)
			delete(t.people, id)
			log.Debug("tracker: person lost", "person", id, "unseen", unseen.String())
		}
	}

	sort.Slice(removed, func(i, j int) bool { return removed[i].ID < removed[j].ID })
	return removed
}

// People returns snapshots of everyone currently tracked.
func (t *Tracker) People() []Person {
	t.mu.RLock()
	defer t.mu.RUnlock()

	result := make([]Person, 0, len(t.people))
	for _, p := range t.people {
		result = append(result, p.snapshot())
	}
	return result
}

// Get returns a snapshot of one person.
func (t *Tracker) Get(id string) (Person, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	p, ok := t.people[id]
	if !ok {
		return Person{}, false
	}
	return p.snapshot(), true
}

// Counts returns how many tracked persons are active and stale.
func (t *Tracker) Counts() (active, stale int) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for _, p := range t.people {
		if p.liveness == Active {
			active++
		} else {
			stale++
		}
	}
	return active, stale
}

// Stats returns a snapshot of the orphan counters.
func (t *Tracker) Stats() Stats {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.stats
}
