// Package tracker implements the autoedit suggestion lifecycle
// tracker: a bounded, in-memory event pipeline that records the life of
// a single suggestion request through its processing phases, enforces
// legal phase transitions, accumulates phase-specific metadata, and
// emits de-duplicated analytics events.
//
// No operation ever returns an error or panics back into the caller:
// instrumentation must never be able to crash or block the feature it
// observes. Failures surface as nil/false returns plus a diagnostic
// event.
package tracker

import (
	"fmt"
	"sync"

	"github.com/nextedit/tracker/internal/clock"
	"github.com/nextedit/tracker/internal/config"
	"github.com/nextedit/tracker/internal/diffstats"
	"github.com/nextedit/tracker/internal/erroragg"
	"github.com/nextedit/tracker/internal/events"
	"github.com/nextedit/tracker/internal/identity"
	"github.com/nextedit/tracker/internal/phase"
	"github.com/nextedit/tracker/internal/request"
	"github.com/nextedit/tracker/internal/requeststore"
	"github.com/nextedit/tracker/internal/sink"
)

// Registry is the stable suggestion identity collaborator (subset of
// identity.Registry). IDs derive from (prompt, prediction) content and
// are invalidated on acceptance.
type Registry interface {
	GetOrCreate(promptKey, prediction string) string
	DeleteIfValueMatches(id string)
}

// ChangeCalculator computes character-level change metadata at
// acceptance time from the document, the original replace range, and
// the inserted prediction.
type ChangeCalculator interface {
	CharsChanged(document interface{}, replaceRange interface{}, inserted string) diffstats.CharsChanged
}

// Tracker owns the request store, the rolling counters, and the error
// aggregator. Construct one per process via New and pass the handle
// around; there is no ambient singleton.
type Tracker struct {
	mu    sync.Mutex
	store *requeststore.Store

	// startedSinceLastSuggestion counts requests created since the last
	// suggestion decision. Incremented at creation, snapshotted into the
	// payload at accept/reject, and never reset: resetting when a
	// suggestion is shown was considered and deliberately not done to
	// match observed behavior.
	startedSinceLastSuggestion int

	cfg      config.Config
	sink     events.Sink
	panel    events.DebugPanel
	registry Registry
	chars    ChangeCalculator
	clk      clock.Clock
	agg      *erroragg.Aggregator
}

// Options configures a Tracker. Sink is required; every other field has
// a working default.
type Options struct {
	// Config is the tracker configuration; nil uses DefaultConfig
	Config *config.Config
	// Sink receives every emitted event (required)
	Sink events.Sink
	// Panel optionally receives every post-transition record. It is
	// wrapped with the configured rate limit.
	Panel events.DebugPanel
	// Registry is the suggestion identity registry; nil uses an
	// in-process identity.Registry
	Registry Registry
	// Chars is the acceptance change calculator; nil uses
	// diffstats.Calculator
	Chars ChangeCalculator
	// Policy filters errors before aggregation; nil reports everything
	Policy erroragg.Policy
	// Capture forwards reportable errors to an exception backend; nil
	// skips capture
	Capture erroragg.Capture
	// Clock drives timestamps and the error window timer; nil uses the
	// real clock
	Clock clock.Clock
}

// New creates a Tracker.
func New(opts Options) (*Tracker, error) {
	if opts.Sink == nil {
		return nil, fmt.Errorf("tracker requires an event sink")
	}

	cfg := config.DefaultConfig()
	if opts.Config != nil {
		cfg = *opts.Config
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid tracker configuration: %w", err)
	}

	store, err := requeststore.New(cfg.StoreCapacity)
	if err != nil {
		return nil, fmt.Errorf("failed to create request store: %w", err)
	}

	clk := opts.Clock
	if clk == nil {
		clk = clock.Real()
	}

	var registry Registry = opts.Registry
	if registry == nil {
		registry = identity.New()
	}

	var chars ChangeCalculator = opts.Chars
	if chars == nil {
		chars = diffstats.Calculator{}
	}

	panel := opts.Panel
	if panel != nil && cfg.PanelUpdatesPerSecond > 0 {
		burst := int(cfg.PanelUpdatesPerSecond)
		if burst < 1 {
			burst = 1
		}
		panel = sink.NewPanelThrottle(panel, cfg.PanelUpdatesPerSecond, burst)
	}

	return &Tracker{
		store:    store,
		cfg:      cfg,
		sink:     opts.Sink,
		panel:    panel,
		registry: registry,
		chars:    chars,
		clk:      clk,
		agg: erroragg.New(erroragg.Options{
			Window:  cfg.ErrorWindow,
			Clock:   clk,
			Sink:    opts.Sink,
			Policy:  opts.Policy,
			Capture: opts.Capture,
		}),
	}, nil
}

// GetRequest returns the current record for id, or nil when the id is
// unknown or evicted. The read refreshes the record's LRU recency like
// any other store access.
func (t *Tracker) GetRequest(requestID string) *request.Record {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.store.Get(requestID)
	if !ok {
		return nil
	}
	return rec
}

// RequestsStartedSinceLastSuggestion returns the rolling counter of
// requests created since the last suggestion decision.
func (t *Tracker) RequestsStartedSinceLastSuggestion() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.startedSinceLastSuggestion
}

// LogError funnels an externally detected runtime error through the
// rate-limited aggregator. Independent of any request's phase state.
func (t *Tracker) LogError(err error) {
	t.agg.Log(err)
}

// LogFeedback emits a feedback event unconditionally. No state
// interaction.
func (t *Tracker) LogFeedback(data map[string]interface{}) {
	t.sink.Emit(events.NewFeedbackEvent(data))
}

// transition is the validation algorithm every phase-advance operation
// goes through (hot-streak augmentation excepted). On failure it emits
// one invalidTransition diagnostic naming the attempted target and the
// actual current phase (or missingRequest) and mutates nothing. On
// success it applies the patch to a clone, writes the clone back
// (refreshing LRU recency), and returns both the pre- and
// post-transition records so callers can use previous-phase fields.
func (t *Tracker) transition(requestID string, next phase.Phase, apply func(prev, cur *request.Record)) (prev, cur *request.Record) {
	t.mu.Lock()
	rec, ok := t.store.Get(requestID)
	if !ok {
		t.mu.Unlock()
		t.sink.Emit(events.NewInvalidTransitionEvent(requestID, next, events.MissingRequest))
		return nil, nil
	}
	if !phase.CanTransitionTo(rec.Phase, next) {
		current := string(rec.Phase)
		t.mu.Unlock()
		t.sink.Emit(events.NewInvalidTransitionEvent(requestID, next, current))
		return nil, nil
	}

	cur = rec.Clone()
	cur.Phase = next
	if apply != nil {
		apply(rec, cur)
	}
	t.store.Put(cur)
	t.mu.Unlock()

	if t.panel != nil {
		t.panel.Update(cur)
	}
	return rec, cur
}

// logSuggestedEvent emits the suggested event for a terminal-class
// record unless it was already emitted, then stamps the record's
// idempotency marker unconditionally. A second call through any
// terminal path is a no-op for the suggested emission.
func (t *Tracker) logSuggestedEvent(rec *request.Record) {
	t.mu.Lock()
	already := rec.SuggestionLoggedAt != nil
	now := t.clk.Now()
	rec.SuggestionLoggedAt = &now
	t.mu.Unlock()

	if !already {
		t.sink.Emit(events.NewSuggestedEvent(rec))
	}
}

// telemetrySafePrediction reports whether prediction text may be copied
// into an analytics payload: it must fit the configured length bound
// and the authentication context must be internal.
func (t *Tracker) telemetrySafePrediction(prediction string) bool {
	return t.cfg.InternalUser &&
		t.cfg.MaxLoggedPredictionLength > 0 &&
		len(prediction) <= t.cfg.MaxLoggedPredictionLength
}
