// Package phase defines the lifecycle phases an autoedit suggestion
// request moves through and the legal transitions between them.
//
// Phase Flow:
// - started → context loading or loading (loading may skip context gathering)
// - loaded → post-processing → ready to render → suggested
// - suggested → read, accepted, or rejected
// - discarded is reachable from every non-terminal phase
package phase

// Phase represents a named stage in a suggestion request's lifecycle.
type Phase string

const (
	// Started indicates a request was created and is awaiting context/loading
	Started Phase = "started"
	// ContextLoaded indicates context snippets were gathered for the request
	ContextLoaded Phase = "contextLoaded"
	// Loaded indicates the model produced a prediction for the request
	Loaded Phase = "loaded"
	// PostProcessed indicates the raw prediction was post-processed
	PostProcessed Phase = "postProcessed"
	// ReadyToBeRendered indicates decorations were computed and the
	// suggestion can be shown
	ReadyToBeRendered Phase = "readyToBeRendered"
	// Suggested indicates the suggestion was surfaced to the user
	Suggested Phase = "suggested"
	// Read indicates the user visibly read the suggestion
	Read Phase = "read"
	// Accepted indicates the user accepted the suggestion (terminal)
	Accepted Phase = "accepted"
	// Rejected indicates the user rejected the suggestion (terminal)
	Rejected Phase = "rejected"
	// Discarded indicates the suggestion was dropped before or after
	// rendering without a user decision (terminal)
	Discarded Phase = "discarded"
)

// validNext maps each phase to the set of phases it may legally advance
// into. Terminal phases have no outgoing transitions. The table is
// package state and is never mutated after init.
var validNext = map[Phase][]Phase{
	Started:           {ContextLoaded, Loaded, Discarded},
	ContextLoaded:     {Loaded, Discarded},
	Loaded:            {PostProcessed, Discarded},
	PostProcessed:     {ReadyToBeRendered, Discarded},
	ReadyToBeRendered: {Suggested, Discarded},
	Suggested:         {Read, Accepted, Rejected, Discarded},
	Read:              {Accepted, Rejected, Discarded},
	Accepted:          {},
	Rejected:          {},
	Discarded:         {},
}

// CanTransitionTo reports whether a record in phase from may advance
// into phase to.
func CanTransitionTo(from, to Phase) bool {
	for _, next := range validNext[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether p is a terminal phase (no outgoing
// transitions permitted).
func Terminal(p Phase) bool {
	return p == Accepted || p == Rejected || p == Discarded
}

// Valid reports whether p is a known phase.
func Valid(p Phase) bool {
	_, ok := validNext[p]
	return ok
}

// Next returns a copy of the allowed next phases for p. The copy keeps
// callers from mutating the transition table.
func Next(p Phase) []Phase {
	allowed := validNext[p]
	out := make([]Phase, len(allowed))
	copy(out, allowed)
	return out
}

// All returns every known phase in lifecycle order.
func All() []Phase {
	return []Phase{
		Started, ContextLoaded, Loaded, PostProcessed,
		ReadyToBeRendered, Suggested, Read,
		Accepted, Rejected, Discarded,
	}
}
