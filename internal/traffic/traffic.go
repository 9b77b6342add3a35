// Package traffic keeps sliding windows of preview request outcomes for health evaluation.
package traffic

import (
	"sync"
	"time"
)

// Outcome classifies a finished request.
type Outcome int

const (
	Success Outcome = iota
	Error
	Denied
)

// Snapshot is the outcome tally within one window.
type Snapshot struct {
	Successes int
	Errors    int
	Denials   int
}

// Requests returns every outcome in the window, denials included.
func (s Snapshot) Requests() int { return s.Successes + s.Errors + s.Denials }

// ErrorPct returns errors as a share of served requests (denials excluded), 0..100.
func (s Snapshot) ErrorPct() float64 {
	served := s.Successes + s.Errors
	if served == 0 {
		return 0
	}
	return float64(s.Errors) * 100 / float64(served)
}

// DenialPct returns denials as a share of all requests, 0..100.
func (s Snapshot) DenialPct() float64 {
	if s.Requests() == 0 {
		return 0
	}
	return float64(s.Denials) * 100 / float64(s.Requests())
}

type event struct {
	at      time.Time
	outcome Outcome
}

// Tracker records timestamped outcomes and drops those older than maxAge.
type Tracker struct {
	mu     sync.Mutex
	maxAge time.Duration
	events []event
	now    func() time.Time
}

// NewTracker keeps outcomes for maxAge (at least one minute).
func NewTracker(maxAge time.Duration) *Tracker {
	if maxAge < time.Minute {
		maxAge = time.Minute
	}
	return &Tracker{maxAge: maxAge, now: time.Now}
}

// Retain raises maxAge to d so snapshots over windows up to d stay complete. It never shrinks it.
func (t *Tracker) Retain(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.maxAge = max(t.maxAge, d)
}

// MaxAge returns how long outcomes are kept.
func (t *Tracker) MaxAge() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.maxAge
}

// Record appends one outcome.
func (t *Tracker) Record(o Outcome) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	t.events = append(t.events, event{at: now, outcome: o})
	t.pruneLocked(now)
}

// Snapshot tallies the outcomes recorded less than window ago.
func (t *Tracker) Snapshot(window time.Duration) Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := t.now().Add(-window)
	var s Snapshot
	for i := len(t.events) - 1; i >= 0 && t.events[i].at.After(cutoff); i-- {
		switch t.events[i].outcome {
		case Success:
			s.Successes++
		case Error:
			s.Errors++
		case Denied:
			s.Denials++
		}
	}
	return s
}

// pruneLocked drops events at least maxAge old. Events are appended in time order.
func (t *Tracker) pruneLocked(now time.Time) {
	cutoff := now.Add(-t.maxAge)
	i := 0
	for i < len(t.events) && !t.events[i].at.After(cutoff) {
		i++
	}
	if i > 0 {
		t.events = append(t.events[:0], t.events[i:]...)
	}
}
