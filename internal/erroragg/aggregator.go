// Package erroragg rate-limits error event emission so repeated
// identical failures cannot flood the event sink. Each distinct error
// message produces at most two error events per window: one immediately
// on first occurrence and one trailing summary when the window closes
// with further occurrences suppressed in between.
package erroragg

import (
	"sync"
	"time"

	"github.com/nextedit/tracker/internal/clock"
	"github.com/nextedit/tracker/internal/events"
)

// DefaultWindow is the suppression window applied when none is
// configured.
const DefaultWindow = 10 * time.Minute

// Policy decides whether an error is reportable at all. Non-reportable
// errors are dropped with no side effects.
type Policy interface {
	ShouldReport(err error, userFacing bool) bool
}

// Capture forwards an error to an exception-reporting backend. Capture
// happens once per reportable call, independent of event suppression.
type Capture interface {
	Capture(err error)
}

// Aggregator counts error occurrences by exact message text and decides
// when to emit.
type Aggregator struct {
	mu     sync.Mutex
	counts map[string]int

	window  time.Duration
	clk     clock.Clock
	sink    events.Sink
	policy  Policy
	capture Capture
}

// Options configures an Aggregator. Sink is required; a nil Policy
// reports everything, a nil Capture skips capturing, a nil Clock uses
// the real one, and a zero Window uses DefaultWindow.
type Options struct {
	Window  time.Duration
	Clock   clock.Clock
	Sink    events.Sink
	Policy  Policy
	Capture Capture
}

// New creates an Aggregator.
func New(opts Options) *Aggregator {
	if opts.Window <= 0 {
		opts.Window = DefaultWindow
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	return &Aggregator{
		counts:  make(map[string]int),
		window:  opts.Window,
		clk:     opts.Clock,
		sink:    opts.Sink,
		policy:  opts.Policy,
		capture: opts.Capture,
	}
}

// Log records one occurrence of err. The first occurrence of a message
// within a window emits an error event immediately and schedules the
// trailing flush; subsequent occurrences only increment the suppressed
// count. Never returns an error: analytics must not be able to fail the
// caller.
func (a *Aggregator) Log(err error) {
	if err == nil {
		return
	}
	if a.policy != nil && !a.policy.ShouldReport(err, false) {
		return
	}
	if a.capture != nil {
		a.capture.Capture(err)
	}

	message := err.Error()

	a.mu.Lock()
	first := a.counts[message] == 0
	a.counts[message]++
	a.mu.Unlock()

	if !first {
		return
	}

	a.sink.Emit(events.NewErrorEvent(message, 1))
	a.clk.AfterFunc(a.window, func() {
		a.flush(message)
	})
}

// flush is the trailing window emission. If the message recurred since
// the immediate emission (count still non-zero), one summary event
// carries the suppressed total; either way the count resets so the next
// occurrence opens a fresh window.
func (a *Aggregator) flush(message string) {
	a.mu.Lock()
	count := a.counts[message]
	a.counts[message] = 0
	a.mu.Unlock()

	if count > 0 {
		a.sink.Emit(events.NewErrorEvent(message, count))
	}
}

// Count returns the suppressed occurrence count for a message since the
// last flush.
func (a *Aggregator) Count(message string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.counts[message]
}
