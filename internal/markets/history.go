package markets

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/abelbrown/crisiswatch/internal/feeds"
	"github.com/abelbrown/crisiswatch/internal/logging"
	"github.com/abelbrown/crisiswatch/internal/otel"
)

const (
	// DefaultClobURL is the Polymarket CLOB API base.
	DefaultClobURL = "https://clob.polymarket.com"

	historyInterval  = "max"
	historyFidelity  = 120 // minutes per bar
	synthPoints      = 15
	synthStep        = 6 * time.Hour
	synthNoise       = 3.0
	synthMin         = 1.0
	synthMax         = 99.0
	defaultChartProb = 50.0
)

type pricePoint struct {
	T Number `json:"t"`
	P Number `json:"p"`
}

type priceHistory struct {
	History []pricePoint `json:"history"`
}

// HistoryClient fetches price series from the CLOB API.
type HistoryClient struct {
	baseURL string
	client  *http.Client
}

// NewHistoryClient creates a CLOB client. An empty baseURL uses
// DefaultClobURL.
func NewHistoryClient(baseURL string, timeout time.Duration) *HistoryClient {
	if baseURL == "" {
		baseURL = DefaultClobURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HistoryClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// Fetch returns the token's series as percentages, oldest first.
func (c *HistoryClient) Fetch(ctx context.Context, tokenID string) ([]feeds.OddsPoint, error) {
	q := url.Values{}
	q.Set("market", tokenID)
	q.Set("interval", historyInterval)
	q.Set("fidelity", fmt.Sprint(historyFidelity))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/prices-history?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", feeds.ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: clob API error: %d", feeds.ErrSourceUnavailable, resp.StatusCode)
	}

	var body priceHistory
	if err := json.NewDecoder(io.LimitReader(resp.Body, 8<<20)).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: %v", feeds.ErrSourceMalformed, err)
	}

	points := make([]feeds.OddsPoint, 0, len(body.History))
	for _, pt := range body.History {
		points = append(points, feeds.OddsPoint{
			T: time.Unix(int64(pt.T), 0).UTC(),
			Y: round1(float64(pt.P) * 100),
		})
	}
	sort.SliceStable(points, func(i, j int) bool { return points[i].T.Before(points[j].T) })
	return points, nil
}

// Synthesize builds a 15-point series ending at now in 6-hour steps. Each
// point is current plus uniform noise in [-3, 3] that tapers linearly to
// zero toward now, clamped to [1, 99]. The last point is exactly current.
func Synthesize(current float64, now time.Time, rng *rand.Rand) []feeds.OddsPoint {
	now = now.UTC().Truncate(time.Second)
	points := make([]feeds.OddsPoint, 0, synthPoints)
	for i := synthPoints - 1; i >= 0; i-- {
		taper := float64(i) / float64(synthPoints-1)
		noise := (rng.Float64()*2 - 1) * synthNoise * taper
		val := math.Max(synthMin, math.Min(synthMax, current+noise))
		points = append(points, feeds.OddsPoint{
			T: now.Add(-time.Duration(i) * synthStep),
			Y: round1(val),
		})
	}
	points[len(points)-1].Y = current
	return points
}

// HistoryStats counts how each selected market's series was obtained.
type HistoryStats struct {
	Fetched     int
	Synthesized int
}

// Reconciler attaches a probability series to each selected market.
type Reconciler struct {
	client *HistoryClient
	rng    *rand.Rand
	events *otel.Logger
}

// NewReconciler creates a Reconciler. rng drives synthetic series; pass a
// seeded source for reproducible output.
func NewReconciler(client *HistoryClient, rng *rand.Rand, events *otel.Logger) *Reconciler {
	if rng == nil {
		rng = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0))
	}
	return &Reconciler{client: client, rng: rng, events: events}
}

// Reconcile returns the history for each market, keyed by question then
// chart outcome label, and a copy of markets with every TokenID cleared.
// Markets are processed sequentially.
func (r *Reconciler) Reconcile(ctx context.Context, markets []feeds.MarketEvent, now time.Time) (feeds.OddsHistory, []feeds.MarketEvent, HistoryStats) {
	history := make(feeds.OddsHistory, len(markets))
	var stats HistoryStats

	for _, m := range markets {
		label, current := "Yes", defaultChartProb
		if o, ok := m.ChartOutcome(); ok {
			label, current = o.Label, o.Probability
		}

		var series []feeds.OddsPoint
		if m.TokenID != "" && r.client != nil {
			start := time.Now()
			pts, err := r.client.Fetch(ctx, m.TokenID)
			ev := otel.Event{
				Time:   time.Now(),
				Level:  otel.LevelInfo,
				Kind:   otel.KindHistoryFetch,
				Comp:   "markets",
				Source: m.Question,
				Dur:    time.Since(start),
				Count:  len(pts),
			}
			if err != nil {
				logging.Debug("price history unavailable", "market", m.Question, "error", err)
				ev.Level = otel.LevelWarn
				ev.Err = err.Error()
			}
			r.events.EmitContext(ctx, ev)
			series = pts
		}

		if len(series) == 0 {
			series = Synthesize(current, now, r.rng)
			stats.Synthesized++
			r.events.EmitContext(ctx, otel.Event{
				Time:   time.Now(),
				Level:  otel.LevelDebug,
				Kind:   otel.KindHistorySynth,
				Comp:   "markets",
				Source: m.Question,
				Count:  len(series),
			})
		} else {
			stats.Fetched++
		}
		history[m.Question] = map[string][]feeds.OddsPoint{label: series}
	}

	return history, StripTokens(markets), stats
}

// StripTokens returns a copy of markets with TokenID cleared.
func StripTokens(markets []feeds.MarketEvent) []feeds.MarketEvent {
	out := make([]feeds.MarketEvent, len(markets))
	for i, m := range markets {
		m.TokenID = ""
		out[i] = m
	}
	return out
}
