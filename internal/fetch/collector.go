package fetch

import (
	"context"
	"time"

	"github.com/abelbrown/crisiswatch/internal/feeds"
	"github.com/abelbrown/crisiswatch/internal/logging"
	"github.com/abelbrown/crisiswatch/internal/otel"
	"github.com/abelbrown/crisiswatch/internal/work"
)

// Default collection limits.
const (
	DefaultWorkers     = 5
	DefaultFeedTimeout = 6 * time.Second
	DefaultDeadline    = 20 * time.Second
)

// SourceReport is the outcome of one source in a batch.
type SourceReport struct {
	Source string
	Count  int
	Dur    time.Duration
	Err    error
}

// Batch is the aggregated result of one collection pass.
type Batch struct {
	Items   []feeds.NewsItem // source order, then document order
	Sources []SourceReport
	Stats   work.Stats
}

// Collector fetches a fixed list of sources on a bounded pool.
type Collector struct {
	fetcher *Fetcher
	pool    *work.Pool
	events  *otel.Logger
}

// NewCollector creates a Collector. The pool's task timeout bounds each
// fetch; its deadline bounds the whole batch.
func NewCollector(fetcher *Fetcher, pool *work.Pool, events *otel.Logger) *Collector {
	if pool == nil {
		pool = work.NewPool(DefaultWorkers, DefaultFeedTimeout, DefaultDeadline)
	}
	return &Collector{fetcher: fetcher, pool: pool, events: events}
}

// Collect fetches every source concurrently. A failed source contributes no
// items; the batch itself never fails.
func (c *Collector) Collect(ctx context.Context, sources []feeds.FeedSource, now time.Time) Batch {
	start := time.Now()

	tasks := make([]work.Task[[]feeds.NewsItem], len(sources))
	for i, src := range sources {
		src := src
		tasks[i] = work.Task[[]feeds.NewsItem]{
			Name: src.Name,
			Run: func(ctx context.Context) ([]feeds.NewsItem, error) {
				return c.fetcher.Fetch(ctx, src, now)
			},
		}
	}

	results := work.Run(ctx, c.pool, tasks)

	batch := Batch{Sources: make([]SourceReport, 0, len(results))}
	for _, r := range results {
		report := SourceReport{Source: r.Name, Dur: r.Dur, Err: r.Err}
		ev := otel.Event{
			Time:   time.Now(),
			Level:  otel.LevelInfo,
			Kind:   otel.KindFeedFetch,
			Comp:   "fetch",
			Source: r.Name,
			Dur:    r.Dur,
		}
		if r.Err != nil {
			logging.Warn("feed fetch failed", "source", r.Name, "error", r.Err)
			ev.Level = otel.LevelWarn
			ev.Err = r.Err.Error()
		} else {
			report.Count = len(r.Value)
			ev.Count = report.Count
			batch.Items = append(batch.Items, r.Value...)
		}
		c.events.EmitContext(ctx, ev)
		batch.Sources = append(batch.Sources, report)
	}

	batch.Stats = work.Summarize(results, time.Since(start))
	c.events.EmitContext(ctx, otel.Event{
		Time:  time.Now(),
		Level: otel.LevelInfo,
		Kind:  otel.KindFeedBatch,
		Comp:  "fetch",
		Dur:   batch.Stats.Elapsed,
		Count: len(batch.Items),
		Extra: map[string]any{
			"sources":   batch.Stats.Total,
			"completed": batch.Stats.Completed,
			"failed":    batch.Stats.Failed,
		},
	})
	logging.Debug("feed batch complete",
		"items", len(batch.Items),
		"completed", batch.Stats.Completed,
		"failed", batch.Stats.Failed,
		"elapsed", batch.Stats.Elapsed)

	return batch
}
