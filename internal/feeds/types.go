// Package feeds holds the shared item shapes that flow through the live
// pipeline, plus the pure helpers every stage needs: the relevance filter,
// timestamp normalization, and per-call results.
package feeds

import (
	"encoding/json"
	"time"
)

// CanonicalLayout is the only timestamp format that leaves the pipeline.
const CanonicalLayout = "2006-01-02T15:04:05Z"

// ItemType distinguishes editorial items from social posts.
type ItemType string

const (
	TypeNews  ItemType = "news"
	TypeOSINT ItemType = "osint"
)

// Tag is the dashboard lane an item is shown in.
type Tag string

const (
	TagBreaking Tag = "breaking"
	TagRegional Tag = "regional"
	TagOSINT    Tag = "osint"
	TagAnalysis Tag = "analysis"
)

// NewsItem is one entry of the news list. Items are built once per
// aggregation cycle and never mutated afterwards.
type NewsItem struct {
	ID      string
	Type    ItemType
	Tag     Tag
	Source  string // feed display name, or "@handle" for social posts
	Title   string
	Excerpt string
	URL     string
	Time    time.Time // UTC, whole seconds
}

// MarshalJSON writes Time twice, as "time" and "timestamp", in canonical form.
func (n NewsItem) MarshalJSON() ([]byte, error) {
	ts := FormatTime(n.Time)
	return json.Marshal(struct {
		ID        string   `json:"id"`
		Type      ItemType `json:"type"`
		Tag       Tag      `json:"tag"`
		Source    string   `json:"source"`
		Title     string   `json:"title"`
		Excerpt   string   `json:"excerpt"`
		URL       string   `json:"url"`
		Time      string   `json:"time"`
		Timestamp string   `json:"timestamp"`
	}{n.ID, n.Type, n.Tag, n.Source, n.Title, n.Excerpt, n.URL, ts, ts})
}

// Outcome is a single tradeable answer within a market event.
type Outcome struct {
	Label       string  `json:"label"`
	Probability float64 `json:"probability"` // 0-100, one decimal
	Active      bool    `json:"active"`
}

// MarketEvent is a prediction-market event with its active outcomes.
type MarketEvent struct {
	Question        string    `json:"question"`
	ResolutionDate  string    `json:"resolutionDate,omitempty"`
	Volume          float64   `json:"volume"` // active and closed sub-markets
	VolumeFormatted string    `json:"volumeFormatted"`
	Outcomes        []Outcome `json:"outcomes"`
	Status          string    `json:"status"`
	Source          string    `json:"source"`
	URL             string    `json:"url"`

	// TokenID keys the price-history lookup. Internal only.
	TokenID string `json:"-"`
}

// ChartOutcome returns the outcome charted for the market: the one labeled
// "Yes" when present, otherwise the first. ok is false when there are none.
func (m MarketEvent) ChartOutcome() (o Outcome, ok bool) {
	if len(m.Outcomes) == 0 {
		return Outcome{}, false
	}
	for _, oc := range m.Outcomes {
		if oc.Label == "Yes" {
			return oc, true
		}
	}
	return m.Outcomes[0], true
}

// OddsPoint is one sample of an outcome's probability history.
type OddsPoint struct {
	T time.Time
	Y float64 // 0-100, one decimal
}

// MarshalJSON writes T in canonical form.
func (p OddsPoint) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		T string  `json:"t"`
		Y float64 `json:"y"`
	}{FormatTime(p.T), p.Y})
}

// OddsHistory maps question -> outcome label -> ordered series.
type OddsHistory map[string]map[string][]OddsPoint

// Points returns the total number of samples across all series.
func (h OddsHistory) Points() int {
	n := 0
	for _, byLabel := range h {
		for _, series := range byLabel {
			n += len(series)
		}
	}
	return n
}
