package sink

import (
	"sync"

	"github.com/nextedit/tracker/internal/events"
)

// Memory records every emitted event in order. Used by tests and by the
// replay CLI to summarize a run.
type Memory struct {
	mu     sync.Mutex
	events []events.Event
}

// NewMemory creates an empty recording sink.
func NewMemory() *Memory {
	return &Memory{}
}

// Emit records the event.
func (s *Memory) Emit(event events.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

// Events returns a copy of the recorded events in emission order.
func (s *Memory) Events() []events.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]events.Event, len(s.events))
	copy(out, s.events)
	return out
}

// Actions returns the recorded action names in emission order.
func (s *Memory) Actions() []events.Action {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]events.Action, len(s.events))
	for i, ev := range s.events {
		out[i] = ev.Action
	}
	return out
}

// CountByAction returns emission counts keyed by action.
func (s *Memory) CountByAction() map[events.Action]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[events.Action]int)
	for _, ev := range s.events {
		counts[ev.Action]++
	}
	return counts
}

// Len returns the number of recorded events.
func (s *Memory) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}
