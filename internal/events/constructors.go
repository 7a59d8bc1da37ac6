package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/nextedit/tracker/internal/phase"
	"github.com/nextedit/tracker/internal/request"
)

func newEvent(action Action, details ...interface{}) Event {
	return Event{
		ID:        uuid.New().String(),
		Action:    action,
		Timestamp: time.Now(),
		Details:   details,
	}
}

// NewSuggestedEvent creates the suggested event for a terminal-class
// record. Details: request ID, then the accumulated analytics payload.
func NewSuggestedEvent(rec *request.Record) Event {
	return newEvent(ActionSuggested, rec.RequestID, rec.Payload)
}

// NewAcceptedEvent creates the accepted event for a record.
// Details: request ID, then the accumulated analytics payload.
func NewAcceptedEvent(rec *request.Record) Event {
	return newEvent(ActionAccepted, rec.RequestID, rec.Payload)
}

// NewDiscardedEvent creates the discarded event for a record.
// Details: request ID, then the accumulated analytics payload.
func NewDiscardedEvent(rec *request.Record) Event {
	return newEvent(ActionDiscarded, rec.RequestID, rec.Payload)
}

// NewErrorEvent creates an aggregated error event.
// Details: error message, then the occurrence count this emission
// covers (1 for the immediate emission, the suppressed total for the
// trailing window flush).
func NewErrorEvent(message string, count int) Event {
	return newEvent(ActionError, message, count)
}

// NewFeedbackEvent creates a feedback event carrying caller-supplied
// feedback data unchanged.
func NewFeedbackEvent(data map[string]interface{}) Event {
	return newEvent(ActionFeedback, data)
}

// NewInvalidTransitionEvent creates the diagnostic for a rejected phase
// advance. Details: request ID, the attempted target phase, and the
// record's actual current phase (or MissingRequest when the ID is
// unknown or evicted).
func NewInvalidTransitionEvent(requestID string, attempted phase.Phase, current string) Event {
	return newEvent(ActionInvalidTransition, requestID, string(attempted), current)
}
