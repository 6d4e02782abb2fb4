// Package otel records structured pipeline events.
//
// Each stage of a live build emits typed Events. The Logger serializes them
// as JSONL through a buffered channel and a single drain goroutine, and can
// mirror them into a RingBuffer that the server exposes for inspection.
package otel

import (
	"encoding/json"
	"time"
)

// Level defines event severity for filtering.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// EventKind identifies the category of an event.
// Dot-delimited: "<stage>.<action>".
type EventKind string

const (
	// Feed collection
	KindFeedFetch   EventKind = "feed.fetch"
	KindFeedBatch   EventKind = "feed.batch"
	KindSocialFetch EventKind = "social.fetch"
	KindSocialScore EventKind = "social.score"

	// Model-assisted reranking; Reason carries the outcome tag.
	KindRerank EventKind = "rerank.outcome"

	// Markets
	KindMarketIngest  EventKind = "market.ingest"
	KindMarketSelect  EventKind = "market.select"
	KindHistoryFetch  EventKind = "history.fetch"
	KindHistorySynth  EventKind = "history.synth"
	KindPipelineBuild EventKind = "pipeline.build"

	// Serving
	KindRequest  EventKind = "http.request"
	KindRefresh  EventKind = "cache.refresh"
	KindStartup  EventKind = "sys.startup"
	KindShutdown EventKind = "sys.shutdown"
)

// Event is one observability record. Every field except Kind and Time is
// optional.
type Event struct {
	Time   time.Time      `json:"t"`
	Level  Level          `json:"level,omitempty"`
	Kind   EventKind      `json:"kind"`
	Comp   string         `json:"comp,omitempty"`   // "fetch", "social", "rerank", "markets", "live"
	RunID  string         `json:"run,omitempty"`    // one id per live build
	Dur    time.Duration  `json:"-"`                // serialized as dur_ms
	DurMs  float64        `json:"dur_ms,omitempty"` // computed from Dur at marshal time
	Count  int            `json:"count,omitempty"`
	Source string         `json:"source,omitempty"`
	Reason string         `json:"reason,omitempty"` // outcome tag, e.g. "filtered_indices"
	Err    string         `json:"err,omitempty"`
	Msg    string         `json:"msg,omitempty"`
	Extra  map[string]any `json:"extra,omitempty"`
}

// MarshalJSON converts Dur to DurMs.
func (e Event) MarshalJSON() ([]byte, error) {
	type alias Event
	a := alias(e)
	if e.Dur > 0 {
		a.DurMs = float64(e.Dur) / float64(time.Millisecond)
	}
	return json.Marshal(a)
}
