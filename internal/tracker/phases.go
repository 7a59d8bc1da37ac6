package tracker

import (
	"time"

	"github.com/google/uuid"

	"github.com/nextedit/tracker/internal/diffstats"
	"github.com/nextedit/tracker/internal/events"
	"github.com/nextedit/tracker/internal/phase"
	"github.com/nextedit/tracker/internal/request"
)

// CreateParams describes a new suggestion request.
type CreateParams struct {
	// StartedAt is when the request began; zero means now
	StartedAt time.Time
	// FilePath is the file the suggestion targets
	FilePath string
	// Document is an opaque document handle owned by the caller
	Document interface{}
	// Position is an opaque cursor position handle owned by the caller
	Position interface{}
	// Payload seeds the analytics payload (languageId, model,
	// triggerKind, codeToRewrite, ...)
	Payload map[string]interface{}
}

// CreateRequest mints a new request ID, stores the started-phase
// record, and increments the rolling started-since-last-suggestion
// counter. Nothing is emitted at this phase. The returned ID is never
// reused within this process, even after the record is evicted.
func (t *Tracker) CreateRequest(params CreateParams) string {
	startedAt := params.StartedAt
	if startedAt.IsZero() {
		startedAt = t.clk.Now()
	}

	rec := request.New(uuid.New().String(), startedAt)
	rec.FilePath = params.FilePath
	rec.Document = params.Document
	rec.Position = params.Position
	rec.MergePayload(params.Payload)

	t.mu.Lock()
	t.startedSinceLastSuggestion++
	t.store.Put(rec)
	t.mu.Unlock()

	if t.panel != nil {
		t.panel.Update(rec)
	}
	return rec.RequestID
}

// ContextLoadedParams carries the gathered context for a request.
type ContextLoadedParams struct {
	// Context is a converted/redacted view of the context snippets
	Context interface{}
	// ContextSummary is the analytics summary of the gathered context
	ContextSummary map[string]interface{}
}

// MarkAsContextLoaded advances a request to contextLoaded.
func (t *Tracker) MarkAsContextLoaded(requestID string, params ContextLoadedParams) bool {
	_, cur := t.transition(requestID, phase.ContextLoaded, func(prev, cur *request.Record) {
		cur.ContextLoadedAt = t.clk.Now()
		cur.Context = params.Context
		cur.MergePayload(map[string]interface{}{
			"contextSummary": params.ContextSummary,
		})
	})
	return cur != nil
}

// LoadedParams carries the model prediction for a request.
type LoadedParams struct {
	// Prompt is the prompt key the prediction was produced from
	Prompt string
	// Prediction is the raw prediction text
	Prediction string
	// Source names where the prediction came from (network, cache, ...)
	Source string
	// IsFuzzyMatch indicates the prediction came from a fuzzy cache hit
	IsFuzzyMatch bool
	// ResponseHeaders are the model response headers, if any
	ResponseHeaders map[string]string
}

// MarkAsLoaded advances a request to loaded. It derives the stable
// suggestion ID from (prompt, prediction), records the load latency,
// and copies the prediction text into the payload only when the
// telemetry-safety conditions hold.
func (t *Tracker) MarkAsLoaded(requestID string, params LoadedParams) bool {
	_, cur := t.transition(requestID, phase.Loaded, func(prev, cur *request.Record) {
		loadedAt := t.clk.Now()
		cur.LoadedAt = loadedAt
		cur.StableID = t.registry.GetOrCreate(params.Prompt, params.Prediction)
		cur.Prediction = params.Prediction

		headers := make(map[string]string, len(params.ResponseHeaders))
		for k, v := range params.ResponseHeaders {
			headers[k] = v
		}
		cur.ResponseHeaders = headers

		patch := map[string]interface{}{
			"source":       params.Source,
			"isFuzzyMatch": params.IsFuzzyMatch,
			"latencyMs":    loadedAt.Sub(prev.StartedAt).Milliseconds(),
		}
		if t.telemetrySafePrediction(params.Prediction) {
			patch["prediction"] = params.Prediction
		}
		cur.MergePayload(patch)
	})
	return cur != nil
}

// HotStreakChunkParams is one incremental prediction fragment.
type HotStreakChunkParams struct {
	// Prediction is the incremental fragment
	Prediction string
	// FullPrediction is the accumulated prediction up to this chunk
	FullPrediction string
}

// RecordHotStreakLoaded appends an incremental prediction chunk to the
// request's hot-streak sequence. This is best-effort telemetry
// augmentation: it bypasses transition validation, changes no phase,
// and is a silent no-op when the request is not resident.
func (t *Tracker) RecordHotStreakLoaded(requestID, hotStreakID string, chunk HotStreakChunkParams) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.store.Get(requestID)
	if !ok {
		return
	}
	rec.HotStreakChunks = append(rec.HotStreakChunks, request.HotStreakChunk{
		HotStreakID:    hotStreakID,
		LoadedAt:       t.clk.Now(),
		Prediction:     chunk.Prediction,
		FullPrediction: chunk.FullPrediction,
	})
}

// PostProcessedParams carries post-processing output references.
type PostProcessedParams struct {
	// CacheID identifies the post-processing cache entry
	CacheID string
	// HotStreakID identifies the hot streak, when part of one
	HotStreakID string
	// CodeToReplaceData is the opaque original replace-range description
	CodeToReplaceData interface{}
	// PredictionDocContext is the opaque document context of the prediction
	PredictionDocContext interface{}
	// EditPosition is the opaque position the edit applies at
	EditPosition interface{}
}

// MarkAsPostProcessed advances a request to postProcessed.
func (t *Tracker) MarkAsPostProcessed(requestID string, params PostProcessedParams) bool {
	_, cur := t.transition(requestID, phase.PostProcessed, func(prev, cur *request.Record) {
		cur.PostProcessedAt = t.clk.Now()
		cur.CacheID = params.CacheID
		cur.HotStreakID = params.HotStreakID
		cur.CodeToReplaceData = params.CodeToReplaceData
		cur.PredictionDocContext = params.PredictionDocContext
		cur.EditPosition = params.EditPosition
	})
	return cur != nil
}

// InlineCompletionItem is one rendered completion candidate.
type InlineCompletionItem struct {
	// InsertText is the text the candidate inserts
	InsertText string
}

// RenderOutput is what the renderer produced for a suggestion.
type RenderOutput struct {
	// InlineCompletionItems are the rendered candidates, first is primary
	InlineCompletionItems []InlineCompletionItem
}

// ReadyParams carries rendering decisions for a request.
type ReadyParams struct {
	// Decoration describes the decoration chosen by the renderer
	Decoration diffstats.DecorationInfo
	// Prediction is the final prediction text, when it changed during
	// post-processing
	Prediction string
	// Render is the renderer's output
	Render RenderOutput
}

// MarkAsReadyToBeRendered advances a request to readyToBeRendered and
// merges decoration statistics plus, when a rendered candidate exists,
// inline-completion size statistics derived from its insert text.
func (t *Tracker) MarkAsReadyToBeRendered(requestID string, params ReadyParams) bool {
	_, cur := t.transition(requestID, phase.ReadyToBeRendered, func(prev, cur *request.Record) {
		if params.Prediction != "" {
			cur.Prediction = params.Prediction
		}
		patch := map[string]interface{}{
			"decorationStats": diffstats.ComputeDecorationStats(params.Decoration),
		}
		if len(params.Render.InlineCompletionItems) > 0 {
			patch["inlineCompletionStats"] = diffstats.ComputeInsertionStats(
				params.Render.InlineCompletionItems[0].InsertText)
		}
		cur.MergePayload(patch)
	})
	return cur != nil
}

// MarkAsSuggested advances a request to suggested and returns the
// fully-populated post-transition record so the caller can base
// rendering decisions on it. Returns nil when the transition is
// invalid.
func (t *Tracker) MarkAsSuggested(requestID string) *request.Record {
	_, cur := t.transition(requestID, phase.Suggested, func(prev, cur *request.Record) {
		cur.SuggestedAt = t.clk.Now()
	})
	return cur
}

// MarkAsRead advances a request to read.
func (t *Tracker) MarkAsRead(requestID string) bool {
	_, cur := t.transition(requestID, phase.Read, func(prev, cur *request.Record) {
		cur.ReadAt = t.clk.Now()
	})
	return cur != nil
}

// MarkAsAccepted advances a request to accepted. It invalidates the
// stable suggestion ID so an accepted identity is never recycled,
// merges acceptance metadata including character-level change counters,
// and emits the suggested event (idempotent) followed by the accepted
// event.
func (t *Tracker) MarkAsAccepted(requestID, acceptReason string) bool {
	t.mu.Lock()
	counter := t.startedSinceLastSuggestion
	t.mu.Unlock()

	_, cur := t.transition(requestID, phase.Accepted, func(prev, cur *request.Record) {
		acceptedAt := t.clk.Now()
		cur.AcceptedAt = acceptedAt

		patch := map[string]interface{}{
			"isAccepted":                        true,
			"isRead":                            true,
			"acceptReason":                      acceptReason,
			"requestsStartedSinceLastSuggestion": counter,
			"charsChanged": t.chars.CharsChanged(
				prev.Document, prev.CodeToReplaceData, prev.Prediction),
		}
		if !prev.SuggestedAt.IsZero() {
			patch["timeFromSuggestedAtMs"] = acceptedAt.Sub(prev.SuggestedAt).Milliseconds()
		}
		cur.MergePayload(patch)
	})
	if cur == nil {
		return false
	}

	// One-time external cleanup: the accepted identity must never be
	// handed out again for a different suggestion body. The record
	// itself stays resident.
	t.registry.DeleteIfValueMatches(cur.StableID)

	t.logSuggestedEvent(cur)
	t.sink.Emit(events.NewAcceptedEvent(cur))
	return true
}

// MarkAsRejected advances a request to rejected and emits the suggested
// event (idempotent) only. No rejected event exists: rejected
// suggestions remain addressable in the store, a deliberate asymmetry
// with the accepted and discarded paths.
func (t *Tracker) MarkAsRejected(requestID, rejectReason string) bool {
	t.mu.Lock()
	counter := t.startedSinceLastSuggestion
	t.mu.Unlock()

	_, cur := t.transition(requestID, phase.Rejected, func(prev, cur *request.Record) {
		rejectedAt := t.clk.Now()
		cur.RejectedAt = rejectedAt

		patch := map[string]interface{}{
			"isAccepted":                        false,
			"isRead":                            !prev.ReadAt.IsZero(),
			"rejectReason":                      rejectReason,
			"requestsStartedSinceLastSuggestion": counter,
		}
		if !prev.SuggestedAt.IsZero() {
			patch["timeFromSuggestedAtMs"] = rejectedAt.Sub(prev.SuggestedAt).Milliseconds()
		}
		cur.MergePayload(patch)
	})
	if cur == nil {
		return false
	}

	t.logSuggestedEvent(cur)
	return true
}

// MarkAsDiscarded advances a request to discarded and emits a discarded
// event. Discarded suggestions were never shown, so no suggested event
// accompanies it. The optional prediction records the final prediction
// text for requests discarded after loading.
func (t *Tracker) MarkAsDiscarded(requestID, discardReason, prediction string) bool {
	_, cur := t.transition(requestID, phase.Discarded, func(prev, cur *request.Record) {
		cur.DiscardedAt = t.clk.Now()
		if prediction != "" {
			cur.Prediction = prediction
		}

		patch := map[string]interface{}{
			"discardReason": discardReason,
		}
		if prediction != "" && t.telemetrySafePrediction(prediction) {
			patch["prediction"] = prediction
		}
		cur.MergePayload(patch)
	})
	if cur == nil {
		return false
	}

	t.sink.Emit(events.NewDiscardedEvent(cur))
	return true
}
