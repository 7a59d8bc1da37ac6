package tracker

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nextedit/tracker/internal/clock"
	"github.com/nextedit/tracker/internal/config"
	"github.com/nextedit/tracker/internal/diffstats"
	"github.com/nextedit/tracker/internal/events"
	"github.com/nextedit/tracker/internal/phase"
	"github.com/nextedit/tracker/internal/request"
	"github.com/nextedit/tracker/internal/sink"
)

func newTestTracker(t *testing.T, mutate func(*config.Config), extra func(*Options)) (*Tracker, *sink.Memory, *clock.Fake) {
	t.Helper()

	cfg := config.DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	clk := clock.NewFake(time.Date(2026, 1, 2, 15, 0, 0, 0, time.UTC))
	recorder := sink.NewMemory()

	opts := Options{Config: &cfg, Sink: recorder, Clock: clk}
	if extra != nil {
		extra(&opts)
	}
	trk, err := New(opts)
	require.NoError(t, err)
	return trk, recorder, clk
}

// advanceToSuggested walks a fresh request through the full pipeline up
// to the suggested phase.
func advanceToSuggested(t *testing.T, trk *Tracker) string {
	t.Helper()

	id := trk.CreateRequest(CreateParams{FilePath: "main.go"})
	require.True(t, trk.MarkAsContextLoaded(id, ContextLoadedParams{}))
	require.True(t, trk.MarkAsLoaded(id, LoadedParams{Prompt: "p", Prediction: "return nil"}))
	require.True(t, trk.MarkAsPostProcessed(id, PostProcessedParams{CodeToReplaceData: "return err"}))
	require.True(t, trk.MarkAsReadyToBeRendered(id, ReadyParams{}))
	require.NotNil(t, trk.MarkAsSuggested(id))
	return id
}

func TestNewRequiresSink(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.StoreCapacity = 0
	_, err := New(Options{Config: &cfg, Sink: sink.NewMemory()})
	assert.Error(t, err)
}

func TestAcceptedLifecycle(t *testing.T) {
	trk, recorder, clk := newTestTracker(t, func(c *config.Config) {
		c.InternalUser = true
	}, nil)

	id := trk.CreateRequest(CreateParams{
		FilePath: "main.go",
		Payload:  map[string]interface{}{"languageId": "go"},
	})
	require.NotEmpty(t, id)
	assert.Equal(t, 1, trk.RequestsStartedSinceLastSuggestion())

	clk.Advance(50 * time.Millisecond)
	require.True(t, trk.MarkAsContextLoaded(id, ContextLoadedParams{
		ContextSummary: map[string]interface{}{"snippetCount": 3},
	}))

	clk.Advance(100 * time.Millisecond)
	require.True(t, trk.MarkAsLoaded(id, LoadedParams{
		Prompt:          "prompt-key",
		Prediction:      "return nil",
		Source:          "network",
		ResponseHeaders: map[string]string{"x-model": "m1"},
	}))

	require.True(t, trk.MarkAsPostProcessed(id, PostProcessedParams{
		CacheID:           "cache-1",
		CodeToReplaceData: "return err",
	}))

	require.True(t, trk.MarkAsReadyToBeRendered(id, ReadyParams{
		Decoration: diffstats.DecorationInfo{AddedLines: []string{"return nil"}},
		Render: RenderOutput{InlineCompletionItems: []InlineCompletionItem{
			{InsertText: "return nil"},
		}},
	}))

	suggested := trk.MarkAsSuggested(id)
	require.NotNil(t, suggested)
	assert.Equal(t, phase.Suggested, suggested.Phase)
	assert.False(t, suggested.SuggestedAt.IsZero())

	require.True(t, trk.MarkAsRead(id))
	clk.Advance(2 * time.Second)
	require.True(t, trk.MarkAsAccepted(id, "tab"))

	// Nothing is emitted until the terminal decision, then suggested
	// precedes accepted.
	assert.Equal(t, []events.Action{events.ActionSuggested, events.ActionAccepted}, recorder.Actions())

	rec := trk.GetRequest(id)
	require.NotNil(t, rec)
	assert.Equal(t, phase.Accepted, rec.Phase)
	assert.NotNil(t, rec.SuggestionLoggedAt)
	assert.Equal(t, "m1", rec.ResponseHeaders["x-model"])

	payload := rec.Payload
	assert.Equal(t, "go", payload["languageId"])
	assert.Equal(t, map[string]interface{}{"snippetCount": 3}, payload["contextSummary"])
	assert.Equal(t, "network", payload["source"])
	assert.Equal(t, false, payload["isFuzzyMatch"])
	assert.Equal(t, int64(150), payload["latencyMs"])
	assert.Equal(t, "return nil", payload["prediction"])
	assert.Equal(t, true, payload["isAccepted"])
	assert.Equal(t, true, payload["isRead"])
	assert.Equal(t, "tab", payload["acceptReason"])
	assert.Equal(t, 1, payload["requestsStartedSinceLastSuggestion"])
	assert.Equal(t, int64(2000), payload["timeFromSuggestedAtMs"])
	assert.Equal(t, diffstats.CharsChanged{
		CharsInserted: 3, CharsDeleted: 3,
		LinesInserted: 1, LinesDeleted: 1,
		UnchangedPrefixChars: 7,
	}, payload["charsChanged"])

	stats, ok := payload["decorationStats"].(diffstats.DecorationStats)
	require.True(t, ok)
	assert.Equal(t, 1, stats.AddedLines)
	insertion, ok := payload["inlineCompletionStats"].(diffstats.InsertionStats)
	require.True(t, ok)
	assert.Equal(t, 1, insertion.Lines)
	assert.Equal(t, len("return nil"), insertion.Characters)
}

func TestInvalidTransitionLeavesRecordUntouched(t *testing.T) {
	trk, recorder, _ := newTestTracker(t, nil, nil)

	id := trk.CreateRequest(CreateParams{FilePath: "main.go"})

	// started -> suggested skips the whole pipeline.
	assert.Nil(t, trk.MarkAsSuggested(id))

	rec := trk.GetRequest(id)
	require.NotNil(t, rec)
	assert.Equal(t, phase.Started, rec.Phase)
	assert.True(t, rec.SuggestedAt.IsZero())

	evs := recorder.Events()
	require.Len(t, evs, 1)
	assert.Equal(t, events.ActionInvalidTransition, evs[0].Action)
	assert.Equal(t, []interface{}{id, "suggested", "started"}, evs[0].Details)
}

func TestUnknownRequestReportsMissing(t *testing.T) {
	trk, recorder, _ := newTestTracker(t, nil, nil)

	assert.False(t, trk.MarkAsRead("no-such-request"))
	assert.Nil(t, trk.GetRequest("no-such-request"))

	evs := recorder.Events()
	require.Len(t, evs, 1)
	assert.Equal(t, events.ActionInvalidTransition, evs[0].Action)
	assert.Equal(t, []interface{}{"no-such-request", "read", events.MissingRequest}, evs[0].Details)
}

func TestEvictedRequestReportsMissing(t *testing.T) {
	trk, recorder, _ := newTestTracker(t, func(c *config.Config) {
		c.StoreCapacity = 1
	}, nil)

	first := trk.CreateRequest(CreateParams{FilePath: "a.go"})
	trk.CreateRequest(CreateParams{FilePath: "b.go"})

	assert.False(t, trk.MarkAsContextLoaded(first, ContextLoadedParams{}))

	evs := recorder.Events()
	require.Len(t, evs, 1)
	assert.Equal(t, []interface{}{first, "contextLoaded", events.MissingRequest}, evs[0].Details)
}

func TestRejectedEmitsSuggestedOnly(t *testing.T) {
	trk, recorder, _ := newTestTracker(t, nil, nil)

	id := advanceToSuggested(t, trk)
	require.True(t, trk.MarkAsRejected(id, "esc"))

	assert.Equal(t, []events.Action{events.ActionSuggested}, recorder.Actions())

	rec := trk.GetRequest(id)
	require.NotNil(t, rec)
	assert.Equal(t, phase.Rejected, rec.Phase)
	assert.Equal(t, false, rec.Payload["isAccepted"])
	assert.Equal(t, false, rec.Payload["isRead"])
	assert.Equal(t, "esc", rec.Payload["rejectReason"])
}

func TestRejectedAfterReadMarksIsRead(t *testing.T) {
	trk, _, _ := newTestTracker(t, nil, nil)

	id := advanceToSuggested(t, trk)
	require.True(t, trk.MarkAsRead(id))
	require.True(t, trk.MarkAsRejected(id, "esc"))

	assert.Equal(t, true, trk.GetRequest(id).Payload["isRead"])
}

func TestSuggestedEventNotRepeatedAfterTerminalPhase(t *testing.T) {
	trk, recorder, _ := newTestTracker(t, nil, nil)

	id := advanceToSuggested(t, trk)
	require.True(t, trk.MarkAsRejected(id, "esc"))

	// A second terminal attempt is an invalid transition and must not
	// re-emit the suggested event.
	assert.False(t, trk.MarkAsRejected(id, "esc"))
	assert.False(t, trk.MarkAsAccepted(id, "tab"))

	assert.Equal(t, 1, recorder.CountByAction()[events.ActionSuggested])
	assert.Equal(t, 2, recorder.CountByAction()[events.ActionInvalidTransition])
}

func TestDiscardedFromStarted(t *testing.T) {
	trk, recorder, _ := newTestTracker(t, nil, nil)

	id := trk.CreateRequest(CreateParams{FilePath: "main.go"})
	require.True(t, trk.MarkAsDiscarded(id, "staleDocument", ""))

	// Never shown, so no suggested event accompanies the discard.
	assert.Equal(t, []events.Action{events.ActionDiscarded}, recorder.Actions())

	rec := trk.GetRequest(id)
	require.NotNil(t, rec)
	assert.Equal(t, phase.Discarded, rec.Phase)
	assert.Equal(t, "staleDocument", rec.Payload["discardReason"])
	assert.Nil(t, rec.SuggestionLoggedAt)
}

func TestDiscardedPredictionRedaction(t *testing.T) {
	tests := []struct {
		name          string
		internal      bool
		prediction    string
		wantInPayload bool
	}{
		{"internal short prediction", true, "return nil", true},
		{"external user", false, "return nil", false},
		{"internal long prediction", true, string(make([]byte, 500)), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trk, _, _ := newTestTracker(t, func(c *config.Config) {
				c.InternalUser = tt.internal
			}, nil)

			id := trk.CreateRequest(CreateParams{FilePath: "main.go"})
			require.True(t, trk.MarkAsDiscarded(id, "notApplicable", tt.prediction))

			rec := trk.GetRequest(id)
			// The record always keeps the prediction; only the payload
			// copy is gated.
			assert.Equal(t, tt.prediction, rec.Prediction)
			if tt.wantInPayload {
				assert.Equal(t, tt.prediction, rec.Payload["prediction"])
			} else {
				assert.NotContains(t, rec.Payload, "prediction")
			}
		})
	}
}

func TestLoadedPredictionRedactionForExternalUsers(t *testing.T) {
	trk, _, _ := newTestTracker(t, nil, nil)

	id := trk.CreateRequest(CreateParams{FilePath: "main.go"})
	require.True(t, trk.MarkAsContextLoaded(id, ContextLoadedParams{}))
	require.True(t, trk.MarkAsLoaded(id, LoadedParams{Prompt: "p", Prediction: "secret()"}))

	rec := trk.GetRequest(id)
	assert.Equal(t, "secret()", rec.Prediction)
	assert.NotContains(t, rec.Payload, "prediction")
}

func TestContextLoadedMaySkipToLoaded(t *testing.T) {
	trk, recorder, _ := newTestTracker(t, nil, nil)

	// Cache hits skip context gathering entirely.
	id := trk.CreateRequest(CreateParams{FilePath: "main.go"})
	require.True(t, trk.MarkAsLoaded(id, LoadedParams{Prompt: "p", Prediction: "x", Source: "cache"}))
	assert.Equal(t, 0, recorder.Len())
}

func TestCounterNeverResets(t *testing.T) {
	trk, _, _ := newTestTracker(t, nil, nil)

	for i := 0; i < 3; i++ {
		id := advanceToSuggested(t, trk)
		require.True(t, trk.MarkAsRejected(id, "esc"))
	}

	// Three requests started, and showing suggestions did not reset the
	// rolling counter.
	assert.Equal(t, 3, trk.RequestsStartedSinceLastSuggestion())

	id := advanceToSuggested(t, trk)
	require.True(t, trk.MarkAsAccepted(id, "tab"))
	assert.Equal(t, 4, trk.GetRequest(id).Payload["requestsStartedSinceLastSuggestion"])
	assert.Equal(t, 4, trk.RequestsStartedSinceLastSuggestion())
}

func TestHotStreakChunksAccumulateInOrder(t *testing.T) {
	trk, recorder, _ := newTestTracker(t, nil, nil)

	id := trk.CreateRequest(CreateParams{FilePath: "main.go"})
	require.True(t, trk.MarkAsContextLoaded(id, ContextLoadedParams{}))
	require.True(t, trk.MarkAsLoaded(id, LoadedParams{Prompt: "p", Prediction: "ab"}))

	trk.RecordHotStreakLoaded(id, "hs-1", HotStreakChunkParams{Prediction: "a", FullPrediction: "a"})
	trk.RecordHotStreakLoaded(id, "hs-1", HotStreakChunkParams{Prediction: "b", FullPrediction: "ab"})

	rec := trk.GetRequest(id)
	require.Len(t, rec.HotStreakChunks, 2)
	assert.Equal(t, "a", rec.HotStreakChunks[0].Prediction)
	assert.Equal(t, "ab", rec.HotStreakChunks[1].FullPrediction)
	assert.Equal(t, phase.Loaded, rec.Phase, "augmentation does not advance the phase")

	// Unknown requests are a silent no-op, not a diagnostic.
	trk.RecordHotStreakLoaded("no-such-request", "hs-1", HotStreakChunkParams{Prediction: "c"})
	assert.Equal(t, 0, recorder.Len())
}

type recordingRegistry struct {
	created []string
	deleted []string
}

func (r *recordingRegistry) GetOrCreate(promptKey, prediction string) string {
	id := fmt.Sprintf("stable-%d", len(r.created))
	r.created = append(r.created, id)
	return id
}

func (r *recordingRegistry) DeleteIfValueMatches(id string) {
	r.deleted = append(r.deleted, id)
}

func TestAcceptInvalidatesStableID(t *testing.T) {
	registry := &recordingRegistry{}
	trk, _, _ := newTestTracker(t, nil, func(o *Options) {
		o.Registry = registry
	})

	id := advanceToSuggested(t, trk)
	require.True(t, trk.MarkAsAccepted(id, "tab"))

	assert.Equal(t, []string{"stable-0"}, registry.deleted)
	assert.Equal(t, "stable-0", trk.GetRequest(id).StableID)
}

func TestRejectDoesNotInvalidateStableID(t *testing.T) {
	registry := &recordingRegistry{}
	trk, _, _ := newTestTracker(t, nil, func(o *Options) {
		o.Registry = registry
	})

	id := advanceToSuggested(t, trk)
	require.True(t, trk.MarkAsRejected(id, "esc"))

	assert.Empty(t, registry.deleted)
}

type recordingPanel struct {
	updates []*request.Record
}

func (p *recordingPanel) Update(rec *request.Record) {
	p.updates = append(p.updates, rec)
}

func TestPanelSeesEveryTransition(t *testing.T) {
	panel := &recordingPanel{}
	trk, _, _ := newTestTracker(t, func(c *config.Config) {
		c.PanelUpdatesPerSecond = 0 // no throttle in tests
	}, func(o *Options) {
		o.Panel = panel
	})

	id := advanceToSuggested(t, trk)

	// create + five phase advances
	require.Len(t, panel.updates, 6)
	assert.Equal(t, phase.Started, panel.updates[0].Phase)
	assert.Equal(t, phase.Suggested, panel.updates[5].Phase)
	assert.Equal(t, id, panel.updates[5].RequestID)
}

func TestLogErrorFlowsThroughAggregator(t *testing.T) {
	trk, recorder, clk := newTestTracker(t, nil, nil)

	for i := 0; i < 4; i++ {
		trk.LogError(errors.New("renderer crashed"))
	}
	assert.Equal(t, 1, recorder.CountByAction()[events.ActionError])

	clk.Advance(config.DefaultConfig().ErrorWindow)
	assert.Equal(t, 2, recorder.CountByAction()[events.ActionError])
}

func TestLogFeedback(t *testing.T) {
	trk, recorder, _ := newTestTracker(t, nil, nil)

	trk.LogFeedback(map[string]interface{}{"rating": 5, "comment": "good"})

	evs := recorder.Events()
	require.Len(t, evs, 1)
	assert.Equal(t, events.ActionFeedback, evs[0].Action)
	assert.Equal(t, []interface{}{map[string]interface{}{"rating": 5, "comment": "good"}}, evs[0].Details)
}
