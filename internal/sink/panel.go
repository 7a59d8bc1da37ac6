package sink

import (
	"sync/atomic"

	"golang.org/x/time/rate"

	"github.com/nextedit/tracker/internal/events"
	"github.com/nextedit/tracker/internal/request"
)

// PanelThrottle wraps a debug panel so a hot request stream cannot
// flood an introspection UI. Updates beyond the configured rate are
// dropped rather than queued; panel updates are best-effort by
// contract.
type PanelThrottle struct {
	panel   events.DebugPanel
	limiter *rate.Limiter
	dropped atomic.Int64
}

// NewPanelThrottle wraps panel with a limit of updatesPerSecond
// (bursting up to burst). Non-positive values disable throttling.
func NewPanelThrottle(panel events.DebugPanel, updatesPerSecond float64, burst int) *PanelThrottle {
	var limiter *rate.Limiter
	if updatesPerSecond > 0 && burst > 0 {
		limiter = rate.NewLimiter(rate.Limit(updatesPerSecond), burst)
	}
	return &PanelThrottle{panel: panel, limiter: limiter}
}

// Update forwards the record when the limiter allows it. Never blocks.
func (p *PanelThrottle) Update(rec *request.Record) {
	if p.limiter != nil && !p.limiter.Allow() {
		p.dropped.Add(1)
		return
	}
	p.panel.Update(rec)
}

// Dropped returns the number of updates suppressed by the limiter.
func (p *PanelThrottle) Dropped() int64 {
	return p.dropped.Load()
}
