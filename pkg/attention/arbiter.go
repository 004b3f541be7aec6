// Package attention decides which tracked person holds the robot's
// focus. One person at a time; switching away from an engaged person is
// deliberately sticky so brief detection dropouts do not bounce the
// robot between visitors.
package attention

import (
	"time"

	"github.com/socialrobotics/go-pepper/internal/log"
	"github.com/socialrobotics/go-pepper/pkg/tracker"
)

// FocusDecision names the person holding focus. PersonID is "" when
// nobody does. Seq increases by one for every change of target, so
// consumers can discard decisions they observe out of order.
type FocusDecision struct {
	PersonID string
	Seq      uint64
	At       time.Time
}

// Arbiter selects the focus target from tracker snapshots. It keeps the
// current decision between calls; Decide is expected from a single
// goroutine (the orchestrator loop).
type Arbiter struct {
	// staleSwitch is how long an engaged person must have been stale
	// before an active alternative may take the focus.
	staleSwitch time.Duration

	seq     uint64
	current FocusDecision
}

// New creates an arbiter. staleSwitch matches the tracker's stale
// window in the usual deployment.
func New(staleSwitch time.Duration) *Arbiter {
	return &Arbiter{staleSwitch: staleSwitch}
}

// Current returns the standing decision without re-evaluating.
func (a *Arbiter) Current() FocusDecision {
	return a.current
}

// Decide re-evaluates focus against the current population and reports
// whether the target changed. The rules, in order:
//
//  1. An engaged person who is still active keeps the focus.
//  2. An engaged person who went stale keeps the focus until they have
//     been stale for the switch window AND a strictly more recently
//     seen active person exists.
//  3. With no engaged person (or the engaged person gone), the active
//     person seen most recently wins; ties go to the smallest ID.
//  4. Nobody active and nobody engaged means no focus.
//
// The decision never names a lost person.
func (a *Arbiter) Decide(people []tracker.Person, now time.Time) (FocusDecision, bool) {
	engaged := a.findEngaged(people)

	if engaged != nil && engaged.Liveness == tracker.Active {
		return a.current, false
	}

	challenger := bestActive(people)

	if engaged != nil {
		// Engaged but stale: hold the focus through the dropout unless
		// both switch conditions are met.
		staleFor := now.Sub(engaged.StaleSince)
		if staleFor < a.staleSwitch || challenger == nil || !challenger.LastSeen.After(engaged.LastSeen) {
			return a.current, false
		}
		log.Info("attention: focus switched off stale person",
			"from", engaged.ID, "to", challenger.ID, "stale_for", staleFor.String())
		return a.focusOn(challenger.ID, now), true
	}

	if challenger != nil {
		if a.current.PersonID == challenger.ID {
			return a.current, false
		}
		return a.focusOn(challenger.ID, now), true
	}

	if a.current.PersonID == "" {
		return a.current, false
	}
	log.Info("attention: focus released", "from", a.current.PersonID)
	return a.focusOn("", now), true
}

func (a *Arbiter) focusOn(id string, now time.Time) FocusDecision {
	a.seq++
	a.current = FocusDecision{PersonID: id, Seq: a.seq, At: now}
	return a.current
}

func (a *Arbiter) findEngaged(people []tracker.Person) *tracker.Person {
	if a.current.PersonID == "" {
		return nil
	}
	for i := range people {
		if people[i].ID != a.current.PersonID {
			continue
		}
		if people[i].Liveness == tracker.Lost {
			return nil
		}
		return &people[i]
	}
	return nil
}

// bestActive picks the active person seen most recently, ties broken by
// smallest ID.
func bestActive(people []tracker.Person) *tracker.Person {
	var best *tracker.Person
	for i := range people {
		p := &people[i]
		if p.Liveness != tracker.Active {
			continue
		}
		if best == nil ||
			p.LastSeen.After(best.LastSeen) ||
			(p.LastSeen.Equal(best.LastSeen) && p.ID < best.ID) {
			best = p
		}
	}
	return best
}
