// Package markets ingests prediction-market events, selects the ones worth
// a dashboard card, and reconciles their probability history.
package markets

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/abelbrown/crisiswatch/internal/feeds"
)

const (
	// DefaultGammaURL is the Polymarket Gamma API base.
	DefaultGammaURL = "https://gamma-api.polymarket.com"

	eventsQuery = "/events?active=true&closed=false&order=volume24hr&ascending=false&limit=50"
	userAgent   = "CrisisWatch/1.0"
)

// Number decodes a JSON number or a numeric string. null, "" and values
// that do not parse decode as 0.
type Number float64

func (n *Number) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*n = 0
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*n = 0
			return nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			*n = 0
			return nil
		}
		*n = Number(f)
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		*n = 0
		return nil
	}
	*n = Number(f)
	return nil
}

// List decodes an array of scalars, or a string holding one, into strings.
// Gamma encodes outcomePrices and clobTokenIds either way. Undecodable
// values yield an empty list rather than an error.
type List []string

func (l *List) UnmarshalJSON(b []byte) error {
	*l = nil
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return nil
		}
		b = []byte(strings.TrimSpace(s))
		if len(b) == 0 {
			return nil
		}
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		var s string
		if err := json.Unmarshal(r, &s); err == nil {
			out = append(out, s)
			continue
		}
		out = append(out, string(bytes.TrimSpace(r)))
	}
	*l = out
	return nil
}

// Market is a Gamma sub-market within an event.
type Market struct {
	ID             string `json:"id"`
	Question       string `json:"question"`
	GroupItemTitle string `json:"groupItemTitle"`
	Closed         bool   `json:"closed"`
	Volume         Number `json:"volume"`
	OutcomePrices  List   `json:"outcomePrices"`
	ClobTokenIDs   List   `json:"clobTokenIds"`
}

// Event is a Gamma event with its sub-markets.
type Event struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	Slug       string   `json:"slug"`
	EndDate    string   `json:"endDate"`
	EndDateIso string   `json:"endDateIso"`
	EndDateISO string   `json:"endDateISO"`
	Markets    []Market `json:"markets"`
}

// GammaClient lists active events.
type GammaClient struct {
	baseURL string
	client  *http.Client
}

// NewGammaClient creates a Gamma client. An empty baseURL uses
// DefaultGammaURL.
func NewGammaClient(baseURL string, timeout time.Duration) *GammaClient {
	if baseURL == "" {
		baseURL = DefaultGammaURL
	}
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	return &GammaClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// Events fetches active, non-closed events ordered by 24h volume. An event
// whose shape does not decode is left out.
func (c *GammaClient) Events(ctx context.Context) ([]Event, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+eventsQuery, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to fetch polymarket: %v", feeds.ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: polymarket API error: %d", feeds.ErrSourceUnavailable, resp.StatusCode)
	}

	var raw []json.RawMessage
	if err := json.NewDecoder(io.LimitReader(resp.Body, 16<<20)).Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: failed to decode polymarket response: %v", feeds.ErrSourceMalformed, err)
	}
	events := make([]Event, 0, len(raw))
	for _, r := range raw {
		var ev Event
		if err := json.Unmarshal(r, &ev); err != nil {
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}
