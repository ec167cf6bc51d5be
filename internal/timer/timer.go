// Package timer provides keyed one-shot timers and periodic ticks on top of
// an injectable clock, so turn deadlines and blind level advances can be
// driven by a mock clock in tests.
package timer

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
)

// Service schedules callbacks by key. Scheduling a key that already has a
// pending timer replaces it; at most one callback per key is ever pending.
type Service struct {
	clock  quartz.Clock
	logger *log.Logger

	mu      sync.Mutex
	entries map[string]*entry
	gen     uint64
}

type entry struct {
	timer *quartz.Timer
	gen   uint64
}

// NewService creates a timer service on the given clock.
func NewService(clock quartz.Clock, logger *log.Logger) *Service {
	return &Service{
		clock:   clock,
		logger:  logger.WithPrefix("timer"),
		entries: make(map[string]*entry),
	}
}

// Clock exposes the underlying clock for callers that need Now.
func (s *Service) Clock() quartz.Clock {
	return s.clock
}

// Schedule arranges for fn to run after d, replacing any pending timer for
// the same key. fn runs on the clock's timer goroutine.
func (s *Service) Schedule(key string, d time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.entries[key]; ok {
		old.timer.Stop()
	}
	s.gen++
	e := &entry{gen: s.gen}
	s.entries[key] = e
	gen := s.gen
	e.timer = s.clock.AfterFunc(d, func() {
		// A Stop that loses the race with firing leaves a stale callback;
		// the generation check drops it.
		s.mu.Lock()
		cur, ok := s.entries[key]
		if !ok || cur.gen != gen {
			s.mu.Unlock()
			return
		}
		delete(s.entries, key)
		s.mu.Unlock()
		fn()
	})
}

// Cancel stops the pending timer for key. Returns false if none was pending.
func (s *Service) Cancel(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return false
	}
	e.timer.Stop()
	delete(s.entries, key)
	return true
}

// CancelAll stops every pending timer. Called on shutdown.
func (s *Service) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, e := range s.entries {
		e.timer.Stop()
		delete(s.entries, key)
	}
}

// Pending reports whether a timer is scheduled for key.
func (s *Service) Pending(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[key]
	return ok
}

// Tick runs fn every interval until ctx is cancelled, returning a waiter
// whose Wait unblocks when the loop exits.
func (s *Service) Tick(ctx context.Context, interval time.Duration, fn func(), name string) quartz.Waiter {
	return s.clock.TickerFunc(ctx, interval, func() error {
		fn()
		return nil
	}, name)
}
