// Package clock abstracts the time operations the tracker's deferred
// work depends on, so timer-driven behavior can be tested
// deterministically. Production code injects Real(); tests inject
// NewFake() and advance it manually.
package clock

import "time"

// Clock provides the current time and one-shot deferred execution.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// AfterFunc waits for duration d, then calls f in its own
	// goroutine (real clock) or synchronously from Advance (fake).
	// The returned Timer cancels the pending call via Stop.
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a scheduled call that can be cancelled.
type Timer interface {
	// Stop prevents the timer from firing. It returns true if the call
	// stops the timer, false if the timer already fired or was stopped.
	Stop() bool
}

// Real returns a Clock backed by the standard time package.
func Real() Clock { return realClock{} }

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
