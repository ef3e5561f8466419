// Package scheduler fires the delayed availability transitions for
// ordered investigations. Timers are keyed by (session id, record
// label) so a reset can cancel everything belonging to the old
// session; a callback that slips past cancellation must still be
// harmless, which the session's idempotent availability update
// guarantees.
package scheduler

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/icusim/icu-sim/pkg/scenario"
)

// Delays holds the two turnaround classes. Cultures take longer,
// representing real-world incubation time.
type Delays struct {
	Lab     time.Duration
	Culture time.Duration
}

// ForItem returns the turnaround for a single item id.
func (d Delays) ForItem(item string) time.Duration {
	if scenario.IsCultureItem(item) {
		return d.Culture
	}
	return d.Lab
}

// ForItems returns the turnaround for a bundled order: the max of the
// per-item delays, modeling a single report that covers the slowest
// constituent. A category never becomes available before its slowest
// item would be ready.
func (d Delays) ForItems(items []string) time.Duration {
	var max time.Duration
	for _, item := range items {
		if delay := d.ForItem(item); delay > max {
			max = delay
		}
	}
	return max
}

type timerKey struct {
	sessionID uuid.UUID
	label     string
}

// Scheduler owns the pending availability timers.
type Scheduler struct {
	mu     sync.Mutex
	timers map[timerKey]*time.Timer
	logger *slog.Logger
}

func New(logger *slog.Logger) *Scheduler {
	return &Scheduler{
		timers: make(map[timerKey]*time.Timer),
		logger: logger,
	}
}

// Schedule arms a timer for one ledger entry. A second schedule for
// the same (session, label) replaces the first; the session rejects
// duplicate orders before this point, so replacement only happens in
// tests.
func (s *Scheduler) Schedule(sessionID uuid.UUID, label string, delay time.Duration, fire func()) {
	key := timerKey{sessionID: sessionID, label: label}

	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.timers[key]; ok {
		old.Stop()
	}
	s.timers[key] = time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.timers, key)
		s.mu.Unlock()
		fire()
	})
	s.logger.Debug("availability timer armed",
		"session_id", sessionID.String(), "label", label, "delay", delay.String())
}

// Cancel stops every pending timer for a session. Called on reset so
// stale callbacks cannot touch the replacement session.
func (s *Scheduler) Cancel(sessionID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, timer := range s.timers {
		if key.sessionID == sessionID {
			timer.Stop()
			delete(s.timers, key)
		}
	}
}

// Pending returns the number of armed timers for a session.
func (s *Scheduler) Pending(sessionID uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for key := range s.timers {
		if key.sessionID == sessionID {
			n++
		}
	}
	return n
}

// Close stops all timers. Used at shutdown.
func (s *Scheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, timer := range s.timers {
		timer.Stop()
		delete(s.timers, key)
	}
}
