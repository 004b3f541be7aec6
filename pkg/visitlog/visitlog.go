// Package visitlog journals who visited the robot and what came of it.
// It records presence and engagement facts only; what was actually said
// never leaves the interaction's lifetime.
package visitlog

import (
	"context"
	"errors"
	"time"
)

// ErrNoOpenVisit is returned when a departure has no matching arrival.
var ErrNoOpenVisit = errors.New("visitlog: no open visit for person")

// Visit is one continuous presence of one person. DepartedAt is zero
// while the visit is still open.
type Visit struct {
	PersonID        string
	ArrivedAt       time.Time
	DepartedAt      time.Time
	Sightings       int
	DominantEmotion string
}

// Open reports whether the person is still considered present.
func (v Visit) Open() bool {
	return v.DepartedAt.IsZero()
}

// Duration is the visit length, zero while open.
func (v Visit) Duration() time.Duration {
	if v.Open() {
		return 0
	}
	return v.DepartedAt.Sub(v.ArrivedAt)
}

// InteractionRecord summarizes one ended interaction.
type InteractionRecord struct {
	InteractionID string
	PersonID      string
	StartedAt     time.Time
	EndedAt       time.Time
	Turns         int
	Outcome       string
}

// Summary aggregates journal activity since a point in time.
type Summary struct {
	Visits       int64 `json:"visits"`
	Interactions int64 `json:"interactions"`
	Conversed    int64 `json:"conversed"` // Interactions with at least one turn
}

// Store persists the journal. Implementations must be safe for
// concurrent use.
type Store interface {
	// RecordArrival opens a visit for a person.
	RecordArrival(ctx context.Context, personID string, at time.Time) error

	// RecordDeparture closes the person's open visit with the final
	// tracker facts.
	RecordDeparture(ctx context.Context, personID string, at time.Time, sightings int, dominantEmotion string) error

	// RecordInteraction journals an ended interaction.
	RecordInteraction(ctx context.Context, rec InteractionRecord) error

	// RecentVisits returns up to limit visits, newest arrival first.
	RecentVisits(ctx context.Context, limit int) ([]Visit, error)

	// Stats aggregates activity with arrivals at or after since.
	Stats(ctx context.Context, since time.Time) (Summary, error)

	// Close releases the underlying storage.
	Close() error
}
