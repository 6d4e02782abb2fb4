package markets

import (
	"context"
	"time"

	"github.com/abelbrown/crisiswatch/internal/feeds"
	"github.com/abelbrown/crisiswatch/internal/otel"
	"github.com/abelbrown/crisiswatch/internal/rerank"
)

// Selection defaults.
const (
	DefaultCandidatePool = 20
	DefaultMaxKeep       = 6
)

// Selector picks dashboard markets, with model ranking as advice.
type Selector struct {
	reranker  *rerank.Reranker
	model     string
	maxTokens int
	poolSize  int
	events    *otel.Logger
}

// NewSelector creates a Selector. reranker may be nil.
func NewSelector(reranker *rerank.Reranker, model string, maxTokens int, events *otel.Logger) *Selector {
	return &Selector{
		reranker:  reranker,
		model:     model,
		maxTokens: maxTokens,
		poolSize:  DefaultCandidatePool,
		events:    events,
	}
}

// Select returns exactly min(maxKeep, candidate pool size) markets. The
// pool is the first twenty by volume. Ranked picks come first in ranked
// order; remaining slots fill from the pool in volume order. When ranking
// yields nothing usable, including an explicit NONE, the pool's first
// maxKeep are returned.
func (s *Selector) Select(ctx context.Context, markets []feeds.MarketEvent, maxKeep int) ([]feeds.MarketEvent, rerank.Meta) {
	start := time.Now()
	if len(markets) == 0 || maxKeep <= 0 {
		return []feeds.MarketEvent{}, rerank.Meta{Result: rerank.ResultNoItems}
	}

	pool := markets[:min(len(markets), s.poolSize)]
	rk := s.reranker.Rank(ctx, rerank.MarketPrompt(pool, maxKeep, s.model, s.maxTokens), len(pool))
	selected := Fill(pool, rk, maxKeep)

	s.events.EmitContext(ctx, otel.Event{
		Time:   time.Now(),
		Level:  otel.LevelInfo,
		Kind:   otel.KindMarketSelect,
		Comp:   "markets",
		Dur:    time.Since(start),
		Count:  len(selected),
		Reason: rk.Meta.Result,
		Extra:  map[string]any{"pool": len(pool)},
	})
	return selected, rk.Meta
}

// Fill applies a ranking to pool and tops it up in pool order.
func Fill(pool []feeds.MarketEvent, rk rerank.Ranking, maxKeep int) []feeds.MarketEvent {
	want := min(maxKeep, len(pool))
	selected := make([]feeds.MarketEvent, 0, want)
	used := make(map[int]bool, want)

	if rk.Kind == rerank.Indices {
		for _, i := range rk.Indices {
			if len(selected) >= want {
				break
			}
			if i < 0 || i >= len(pool) || used[i] {
				continue
			}
			selected = append(selected, pool[i])
			used[i] = true
		}
	}
	for i := range pool {
		if len(selected) >= want {
			break
		}
		if !used[i] {
			selected = append(selected, pool[i])
			used[i] = true
		}
	}
	return selected
}
