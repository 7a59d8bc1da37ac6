// Package sink provides event sink implementations: a JSONL stream
// writer, an asynchronous SQLite store, an in-memory recorder, a
// fan-out, and a rate-limited debug panel wrapper. Sinks absorb their
// own failures; emission is fire-and-forget by contract.
package sink

import (
	"encoding/json"
	"io"
	"sync"
	"sync/atomic"

	"github.com/nextedit/tracker/internal/events"
)

// JSONL writes each event as one JSON object per line.
type JSONL struct {
	mu  sync.Mutex
	enc *json.Encoder

	writeErrors atomic.Int64
}

// NewJSONL creates a JSONL sink over w.
func NewJSONL(w io.Writer) *JSONL {
	return &JSONL{enc: json.NewEncoder(w)}
}

// Emit writes the event. Write and marshal failures are counted, not
// surfaced; a broken writer must not break the tracker.
func (s *JSONL) Emit(event events.Event) {
	s.mu.Lock()
	err := s.enc.Encode(event)
	s.mu.Unlock()
	if err != nil {
		s.writeErrors.Add(1)
	}
}

// WriteErrors returns the number of events dropped by write failures.
func (s *JSONL) WriteErrors() int64 {
	return s.writeErrors.Load()
}
