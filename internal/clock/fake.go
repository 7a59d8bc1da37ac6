package clock

import (
	"sort"
	"sync"
	"time"
)

// Fake is a manually-advanced Clock for tests. Time only moves when
// Advance is called; pending AfterFunc callbacks whose deadline is
// reached run synchronously inside Advance, in deadline order.
type Fake struct {
	mu      sync.Mutex
	now     time.Time
	pending []*fakeTimer
}

// NewFake returns a Fake positioned at start.
func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

// Now returns the fake's current time.
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// AfterFunc schedules f to run once the fake's time advances past d
// from now. If d <= 0 the callback runs immediately.
func (f *Fake) AfterFunc(d time.Duration, fn func()) Timer {
	f.mu.Lock()
	t := &fakeTimer{clk: f, deadline: f.now.Add(d), fn: fn}
	if d <= 0 {
		t.fired = true
		f.mu.Unlock()
		fn()
		return t
	}
	f.pending = append(f.pending, t)
	f.mu.Unlock()
	return t
}

// Advance moves the fake's time forward by d, firing due timers in
// deadline order. Callbacks run without the fake's lock held, so they
// may schedule further timers.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
	f.fireDue()
}

func (f *Fake) fireDue() {
	for {
		f.mu.Lock()
		sort.SliceStable(f.pending, func(i, j int) bool {
			return f.pending[i].deadline.Before(f.pending[j].deadline)
		})
		var due *fakeTimer
		for i, t := range f.pending {
			if !t.deadline.After(f.now) {
				due = t
				f.pending = append(f.pending[:i], f.pending[i+1:]...)
				break
			}
		}
		f.mu.Unlock()
		if due == nil {
			return
		}
		due.mu.Lock()
		fired := due.fired
		due.fired = true
		due.mu.Unlock()
		if !fired {
			due.fn()
		}
	}
}

// PendingTimers returns the number of timers that have not fired or
// been stopped.
func (f *Fake) PendingTimers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pending)
}

type fakeTimer struct {
	clk      *Fake
	deadline time.Time
	fn       func()

	mu    sync.Mutex
	fired bool
}

func (t *fakeTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.fired {
		return false
	}
	t.fired = true

	t.clk.mu.Lock()
	for i, p := range t.clk.pending {
		if p == t {
			t.clk.pending = append(t.clk.pending[:i], t.clk.pending[i+1:]...)
			break
		}
	}
	t.clk.mu.Unlock()
	return true
}
