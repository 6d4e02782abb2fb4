// Package live assembles the dashboard document: merged news, selected
// markets and their probability history, plus per-stage diagnostics.
package live

import (
	"strings"
	"time"

	"github.com/abelbrown/crisiswatch/internal/feeds"
	"github.com/abelbrown/crisiswatch/internal/rerank"
	"github.com/abelbrown/crisiswatch/internal/social"
)

const lastUpdatedLayout = "02 Jan 2006 - 15:04"

// Document is the JSON body served at /api/live.
type Document struct {
	Timestamp   string              `json:"timestamp"`
	LastUpdated string              `json:"lastUpdated"`
	News        []feeds.NewsItem    `json:"news"`
	Markets     []feeds.MarketEvent `json:"markets"`
	OddsHistory feeds.OddsHistory   `json:"oddsHistory"`
	Meta        Meta                `json:"meta"`
}

// Meta carries counts and diagnostics for one build.
type Meta struct {
	RunID          string       `json:"runId"`
	NewsCount      int          `json:"newsCount"`
	RSSCount       int          `json:"rssCount"`
	MergedCount    int          `json:"mergedCount"`
	FeedsFailed    int          `json:"feedsFailed"`
	XDebug         social.Debug `json:"xDebug"`
	MarketsCount   int          `json:"marketsCount"`
	MarketsFetched int          `json:"marketsFetched"`
	MarketsLLM     rerank.Meta  `json:"marketsLlm"`
	HistoryPoints  int          `json:"historyPoints"`
	HistoryFetched int          `json:"historyFetched"`
	HistorySynth   int          `json:"historySynthesized"`
	Stages         []Stage      `json:"stages"`
	FetchedAt      string       `json:"fetchedAt"`
}

// Stage records how one pipeline stage ended.
type Stage struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
	Error  string `json:"error,omitempty"`
}

// FormatLastUpdated renders t as "02 JAN 2006 - 15:04 GMT".
func FormatLastUpdated(t time.Time) string {
	return strings.ToUpper(t.UTC().Format(lastUpdatedLayout)) + " GMT"
}

// Empty returns a document with no content, stamped at now.
func Empty(now time.Time) Document {
	return Document{
		Timestamp:   now.UTC().Format(time.RFC3339),
		LastUpdated: FormatLastUpdated(now),
		News:        []feeds.NewsItem{},
		Markets:     []feeds.MarketEvent{},
		OddsHistory: feeds.OddsHistory{},
		Meta: Meta{
			XDebug:     social.Debug{LLM: rerank.Meta{Result: rerank.ResultNotRun}, Status: social.StatusNotRun},
			MarketsLLM: rerank.Meta{Result: rerank.ResultNotRun},
			Stages:     []Stage{},
			FetchedAt:  feeds.FormatTime(now),
		},
	}
}
