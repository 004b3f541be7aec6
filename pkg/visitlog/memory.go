package visitlog

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps the journal in process memory. It is the default
// when no database is configured, and what the tests run against.
type MemoryStore struct {
	mu           sync.Mutex
	visits       []Visit
	interactions []InteractionRecord
}

// NewMemoryStore creates an empty in-memory journal.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// RecordArrival implements Store.
func (s *MemoryStore) RecordArrival(ctx context.Context, personID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.visits = append(s.visits, Visit{PersonID: personID, ArrivedAt: at})
	return nil
}

// RecordDeparture implements Store.
func (s *MemoryStore) RecordDeparture(ctx context.Context, personID string, at time.Time, sightings int, dominantEmotion string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := len(s.visits) - 1; i >= 0; i-- {
		v := &s.visits[i]
		if v.PersonID == personID && v.Open() {
			v.DepartedAt = at
			v.Sightings = sightings
			v.DominantEmotion = dominantEmotion
			return nil
		}
	}
	return ErrNoOpenVisit
}

// RecordInteraction implements Store.
func (s *MemoryStore) RecordInteraction(ctx context.Context, rec InteractionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.interactions = append(s.interactions, rec)
	return nil
}

// RecentVisits implements Store.
func (s *MemoryStore) RecentVisits(ctx context.Context, limit int) ([]Visit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Visit, len(s.visits))
	copy(out, s.visits)
	sort.Slice(out, func(i, j int) bool {
		return out[i].ArrivedAt.After(out[j].ArrivedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Stats implements Store.
func (s *MemoryStore) Stats(ctx context.Context, since time.Time) (Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var sum Summary
	for _, v := range s.visits {
		if !v.ArrivedAt.Before(since) {
			sum.Visits++
		}
	}
	for _, rec := range s.interactions {
		if rec.StartedAt.Before(since) {
			continue
		}
		sum.Interactions++
		if rec.Turns > 0 {
			sum.Conversed++
		}
	}
	return sum, nil
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	return nil
}

// Verify implementations at compile time.
var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*GormStore)(nil)
)
