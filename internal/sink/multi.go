package sink

import "github.com/nextedit/tracker/internal/events"

// Multi fans each event out to every wrapped sink in order.
type Multi struct {
	sinks []events.Sink
}

// NewMulti creates a fan-out over the given sinks. Nil sinks are
// skipped.
func NewMulti(sinks ...events.Sink) *Multi {
	out := &Multi{}
	for _, s := range sinks {
		if s != nil {
			out.sinks = append(out.sinks, s)
		}
	}
	return out
}

// Emit forwards the event to every sink.
func (m *Multi) Emit(event events.Event) {
	for _, s := range m.sinks {
		s.Emit(event)
	}
}
