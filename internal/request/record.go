// Package request defines the request record, the central entity of the
// suggestion lifecycle tracker. One record exists per outstanding
// suggestion request; each phase adds fields and the record only grows
// until the store evicts it.
package request

import (
	"time"

	"github.com/nextedit/tracker/internal/phase"
)

// HotStreakChunk is one incremental prediction fragment of a multi-part
// (hot streak) prediction. Chunks are appended in arrival order and are
// never reordered or deduplicated.
type HotStreakChunk struct {
	// HotStreakID identifies the hot streak this chunk belongs to
	HotStreakID string `json:"hot_streak_id"`
	// LoadedAt is when the chunk arrived
	LoadedAt time.Time `json:"loaded_at"`
	// Prediction is the incremental prediction fragment
	Prediction string `json:"prediction"`
	// FullPrediction is the full accumulated prediction up to this chunk
	FullPrediction string `json:"full_prediction"`
}

// Record tracks the state of a single suggestion request as it moves
// through the lifecycle. Fields set by earlier phases are retained by
// later ones; zero time values mean the corresponding phase has not
// happened yet.
type Record struct {
	// RequestID uniquely identifies this record for as long as it is
	// resident in the store. IDs are minted at creation and never reused
	// within a process.
	RequestID string
	// Phase is the current position in the lifecycle state machine. It is
	// only ever set by the tracker as the last step of a validated
	// transition.
	Phase phase.Phase

	// StartedAt is when the request was created
	StartedAt time.Time
	// FilePath is the file the suggestion targets
	FilePath string
	// Document is an opaque document handle owned by the caller
	Document interface{}
	// Position is an opaque cursor position handle owned by the caller
	Position interface{}

	// ContextLoadedAt is when context gathering finished
	ContextLoadedAt time.Time
	// Context is a converted/redacted view of the gathered context snippets
	Context interface{}

	// LoadedAt is when the model prediction arrived
	LoadedAt time.Time
	// StableID is the content-derived suggestion identity for this
	// (prompt, prediction) pair
	StableID string
	// Prediction is the raw prediction text. It is always kept on the
	// record (acceptance needs it) but is only copied into Payload when
	// the telemetry-safety conditions hold.
	Prediction string
	// ResponseHeaders are the model response headers, empty when the
	// response carried none
	ResponseHeaders map[string]string

	// PostProcessedAt is when post-processing finished
	PostProcessedAt time.Time
	// CacheID identifies the post-processing cache entry
	CacheID string
	// HotStreakID identifies the hot streak this request belongs to, if any
	HotStreakID string
	// CodeToReplaceData is the opaque original replace-range description
	CodeToReplaceData interface{}
	// PredictionDocContext is the opaque document context of the prediction
	PredictionDocContext interface{}
	// EditPosition is the opaque position the edit applies at
	EditPosition interface{}

	// SuggestedAt is when the suggestion was surfaced
	SuggestedAt time.Time
	// ReadAt is when the suggestion was read
	ReadAt time.Time
	// AcceptedAt is when the suggestion was accepted
	AcceptedAt time.Time
	// RejectedAt is when the suggestion was rejected
	RejectedAt time.Time
	// DiscardedAt is when the suggestion was discarded
	DiscardedAt time.Time

	// SuggestionLoggedAt marks that the suggested event was emitted for
	// this record. Once set, further suggested emissions are no-ops.
	SuggestionLoggedAt *time.Time

	// Payload accumulates analytics attributes across phases. Later
	// phases extend earlier keys via shallow merge; they never replace
	// the map wholesale.
	Payload map[string]interface{}

	// HotStreakChunks is the ordered sequence of incremental prediction
	// sub-records, appended as multi-part predictions stream in.
	HotStreakChunks []HotStreakChunk
}

// New builds a started-phase record.
func New(requestID string, startedAt time.Time) *Record {
	return &Record{
		RequestID: requestID,
		Phase:     phase.Started,
		StartedAt: startedAt,
		Payload:   make(map[string]interface{}),
	}
}

// Clone returns a copy of the record safe to mutate without affecting
// the original. The payload map, response headers, and chunk slice are
// copied; opaque caller-owned handles are shared.
func (r *Record) Clone() *Record {
	out := *r

	out.Payload = make(map[string]interface{}, len(r.Payload))
	for k, v := range r.Payload {
		out.Payload[k] = v
	}

	if r.ResponseHeaders != nil {
		out.ResponseHeaders = make(map[string]string, len(r.ResponseHeaders))
		for k, v := range r.ResponseHeaders {
			out.ResponseHeaders[k] = v
		}
	}

	out.HotStreakChunks = make([]HotStreakChunk, len(r.HotStreakChunks))
	copy(out.HotStreakChunks, r.HotStreakChunks)

	if r.SuggestionLoggedAt != nil {
		loggedAt := *r.SuggestionLoggedAt
		out.SuggestionLoggedAt = &loggedAt
	}

	return &out
}

// MergePayload shallow-merges patch into the record's payload. Existing
// keys are overwritten by patch keys; keys absent from patch survive.
func (r *Record) MergePayload(patch map[string]interface{}) {
	if r.Payload == nil {
		r.Payload = make(map[string]interface{}, len(patch))
	}
	for k, v := range patch {
		r.Payload[k] = v
	}
}
