// Package events defines the analytics events the lifecycle tracker
// emits and the sink interfaces that carry them out of process scope.
// Emission is fire-and-forget: sinks must never block or fail back into
// the tracker.
package events

import (
	"time"

	"github.com/nextedit/tracker/internal/request"
)

// Action names the kind of analytics event being emitted.
type Action string

const (
	// ActionSuggested indicates a suggestion was surfaced to the user.
	// Emitted at most once per request, from the first terminal-phase
	// call that observes an unlogged record.
	ActionSuggested Action = "suggested"
	// ActionAccepted indicates the user accepted a suggestion
	ActionAccepted Action = "accepted"
	// ActionDiscarded indicates a suggestion was dropped without being shown
	ActionDiscarded Action = "discarded"
	// ActionError indicates an aggregated runtime error
	ActionError Action = "error"
	// ActionFeedback indicates user-submitted feedback
	ActionFeedback Action = "feedback"
	// ActionInvalidTransition is the diagnostic emitted when a caller
	// attempts an illegal phase advance or references an unknown request
	ActionInvalidTransition Action = "invalidTransition"
)

// MissingRequest is the current-phase value reported on an invalid
// transition whose request ID is unknown or was evicted.
const MissingRequest = "missingRequest"

// Event is a finished event description handed to a sink: an action
// name plus an ordered sequence of opaque debug values.
type Event struct {
	// ID is the unique identifier for this event
	ID string `json:"id"`
	// Action is the event's action name
	Action Action `json:"action"`
	// Timestamp is when the event was emitted
	Timestamp time.Time `json:"timestamp"`
	// Details is the ordered debug arguments for the action. Values are
	// opaque to the sink but must be JSON-serializable.
	Details []interface{} `json:"details"`
}

// Sink receives finished events. Implementations are expected to be
// non-blocking from the tracker's perspective.
type Sink interface {
	Emit(event Event)
}

// DebugPanel receives every post-transition record for introspection.
// Records evolve as phases advance, so implementations must tolerate
// partial shapes. Updates are best-effort and may be dropped.
type DebugPanel interface {
	Update(rec *request.Record)
}
