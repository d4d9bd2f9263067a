package news

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/marketsim/engine/internal/model"
)

// Static replays canned events in order, repeating the last one once the
// script is exhausted. With no events it behaves like a provider that is
// always down and returns the fallback. Used in tests and when no provider
// credential is configured.
type Static struct {
	mu     sync.Mutex
	events []model.NewsEvent
	next   int
	calls  []Call
}

// Call records the arguments of one Generate invocation.
type Call struct {
	Day     int
	Sectors []string
}

// NewStatic returns a generator that yields events in order.
func NewStatic(events ...model.NewsEvent) *Static {
	return &Static{events: events}
}

var _ Generator = (*Static)(nil)

// Generate returns the next scripted event stamped with day and a fresh ID.
func (s *Static) Generate(_ context.Context, day int, sectors []string) model.NewsEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, Call{Day: day, Sectors: append([]string(nil), sectors...)})

	if len(s.events) == 0 {
		return Fallback(day, time.Now())
	}

	idx := s.next
	if idx >= len(s.events) {
		idx = len(s.events) - 1
	} else {
		s.next++
	}

	ev := s.events[idx]
	ev.ID = uuid.New().String()
	ev.Day = day
	ev.AffectedSectors = append([]string{}, ev.AffectedSectors...)
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	return ev
}

// Calls returns the recorded invocations.
func (s *Static) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}
