package markets

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/abelbrown/crisiswatch/internal/feeds"
	"github.com/abelbrown/crisiswatch/internal/logging"
	"github.com/abelbrown/crisiswatch/internal/otel"
)

const (
	maxOutcomes = 6
	sourceName  = "Polymarket"
	eventURL    = "https://polymarket.com/event/"
)

// Ingest keeps events whose title passes the market relevance filter and
// converts them to MarketEvents sorted by total volume, descending.
func Ingest(events []Event, relevance *feeds.Relevance) []feeds.MarketEvent {
	out := make([]feeds.MarketEvent, 0, len(events))
	for _, ev := range events {
		if relevance != nil && !relevance.MarketTitle(ev.Title) {
			continue
		}
		if m, ok := Convert(ev); ok {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Volume > out[j].Volume
	})
	return out
}

// Convert derives one MarketEvent from an event. Up to six open sub-markets
// become outcomes; volume sums every sub-market, open or closed. ok is false when
// no sub-market is open.
func Convert(ev Event) (feeds.MarketEvent, bool) {
	var (
		total    float64
		outcomes []feeds.Outcome
		tokenID  string
		open     int
	)
	for _, mkt := range ev.Markets {
		if mkt.Closed {
			total += float64(mkt.Volume)
			continue
		}
		if open == 0 && len(mkt.ClobTokenIDs) > 0 {
			tokenID = mkt.ClobTokenIDs[0]
		}
		open++
		total += float64(mkt.Volume)
		if open > maxOutcomes {
			continue
		}
		outcomes = append(outcomes, feeds.Outcome{
			Label:       firstNonEmpty(mkt.GroupItemTitle, mkt.Question, ev.Title),
			Probability: round1(firstPrice(mkt.OutcomePrices) * 100),
			Active:      true,
		})
	}
	if len(outcomes) == 0 {
		return feeds.MarketEvent{}, false
	}

	return feeds.MarketEvent{
		Question:        ev.Title,
		ResolutionDate:  firstNonEmpty(ev.EndDate, ev.EndDateIso, ev.EndDateISO),
		Volume:          total,
		VolumeFormatted: FormatVolume(total),
		Outcomes:        outcomes,
		Status:          "active",
		Source:          sourceName,
		URL:             eventURL + ev.Slug,
		TokenID:         tokenID,
	}, true
}

// FormatVolume renders volume as "$X.XM" from one million up, else "$XK".
func FormatVolume(v float64) string {
	if v >= 1e6 {
		return fmt.Sprintf("$%.1fM", v/1e6)
	}
	return fmt.Sprintf("$%.0fK", v/1e3)
}

func firstPrice(prices List) float64 {
	if len(prices) == 0 {
		return 0
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(prices[0]), 64)
	if err != nil {
		return 0
	}
	return f
}

func round1(f float64) float64 {
	return math.Round(f*10) / 10
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// Ingestor fetches and converts relevant events.
type Ingestor struct {
	client    *GammaClient
	relevance *feeds.Relevance
	events    *otel.Logger
}

// NewIngestor creates an Ingestor.
func NewIngestor(client *GammaClient, relevance *feeds.Relevance, events *otel.Logger) *Ingestor {
	return &Ingestor{client: client, relevance: relevance, events: events}
}

// Fetch returns relevant markets by volume. A failed call is Degraded and
// carries no data.
func (in *Ingestor) Fetch(ctx context.Context) feeds.Result[[]feeds.MarketEvent] {
	start := time.Now()
	events, err := in.client.Events(ctx)
	if err != nil {
		logging.Warn("market ingest failed", "error", err)
		in.events.EmitContext(ctx, otel.Event{
			Time:  time.Now(),
			Level: otel.LevelWarn,
			Kind:  otel.KindMarketIngest,
			Comp:  "markets",
			Dur:   time.Since(start),
			Err:   err.Error(),
		})
		return feeds.Degraded[[]feeds.MarketEvent]("fetch_failed", err)
	}

	markets := Ingest(events, in.relevance)
	in.events.EmitContext(ctx, otel.Event{
		Time:  time.Now(),
		Level: otel.LevelInfo,
		Kind:  otel.KindMarketIngest,
		Comp:  "markets",
		Dur:   time.Since(start),
		Count: len(markets),
		Extra: map[string]any{"events": len(events)},
	})
	if len(markets) == 0 {
		return feeds.Empty[[]feeds.MarketEvent]("no_relevant_markets")
	}
	return feeds.OK(markets, "ok")
}
