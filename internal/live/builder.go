package live

import (
	"context"
	"fmt"
	"time"

	"github.com/abelbrown/crisiswatch/internal/feeds"
	"github.com/abelbrown/crisiswatch/internal/fetch"
	"github.com/abelbrown/crisiswatch/internal/logging"
	"github.com/abelbrown/crisiswatch/internal/markets"
	"github.com/abelbrown/crisiswatch/internal/metrics"
	"github.com/abelbrown/crisiswatch/internal/news"
	"github.com/abelbrown/crisiswatch/internal/otel"
	"github.com/abelbrown/crisiswatch/internal/rerank"
	"github.com/abelbrown/crisiswatch/internal/social"
)

// Stage names reported in Meta.Stages and metrics.
const (
	StageFeeds   = "feeds"
	StageSocial  = "social"
	StageMerge   = "merge"
	StageIngest  = "markets_ingest"
	StageSelect  = "markets_select"
	StageHistory = "history"
)

// Options configures a Builder. Nil stages are skipped and reported as
// not_run.
type Options struct {
	Sources    []feeds.FeedSource
	Collector  *fetch.Collector
	Social     *social.Source
	Ingestor   *markets.Ingestor
	Selector   *markets.Selector
	Reconciler *markets.Reconciler

	NewsLimit   int
	SocialSlots int
	MaxKeep     int

	// ModelProvider names the model backend behind ranking, for logs.
	ModelProvider string

	Metrics *metrics.Metrics
	Events  *otel.Logger
	Clock   func() time.Time
}

// Builder runs the full pipeline once per Build call.
type Builder struct {
	opts Options
}

// NewBuilder creates a Builder, filling zero limits with defaults.
func NewBuilder(opts Options) *Builder {
	if opts.NewsLimit <= 0 {
		opts.NewsLimit = news.DefaultLimit
	}
	if opts.SocialSlots < 0 {
		opts.SocialSlots = 0
	}
	if opts.MaxKeep <= 0 {
		opts.MaxKeep = markets.DefaultMaxKeep
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.ModelProvider == "" {
		opts.ModelProvider = "none"
	}
	return &Builder{opts: opts}
}

// ModelProvider returns the name of the model backend in use.
func (b *Builder) ModelProvider() string {
	return b.opts.ModelProvider
}

// WithClock replaces the clock used to stamp documents and age items.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.opts.Clock = now
	return b
}

// build carries intermediate state between stages.
type build struct {
	doc    Document
	now    time.Time
	rss    []feeds.NewsItem
	social []feeds.NewsItem
	pool   []feeds.MarketEvent
	picked []feeds.MarketEvent
}

// Build runs every stage and returns the assembled document. It never
// fails: a stage that errors or panics contributes nothing and is recorded
// in Meta.Stages.
func (b *Builder) Build(ctx context.Context) Document {
	start := time.Now()
	now := b.opts.Clock().UTC()
	runID := otel.NewRunID()

	st := &build{doc: Empty(now), now: now}
	st.doc.Meta.RunID = runID
	ctx = otel.WithRunID(ctx, runID)

	b.stage(st, StageFeeds, func() Stage { return b.collectFeeds(ctx, st) })
	b.stage(st, StageSocial, func() Stage { return b.collectSocial(ctx, st) })
	b.stage(st, StageMerge, func() Stage { return b.merge(st) })
	b.stage(st, StageIngest, func() Stage { return b.ingest(ctx, st) })
	b.stage(st, StageSelect, func() Stage { return b.selectMarkets(ctx, st) })
	b.stage(st, StageHistory, func() Stage { return b.history(ctx, st) })

	meta := &st.doc.Meta
	meta.NewsCount = len(st.doc.News)
	meta.MarketsCount = len(st.doc.Markets)
	meta.HistoryPoints = st.doc.OddsHistory.Points()

	elapsed := time.Since(start)
	b.opts.Metrics.ObserveBuild(elapsed)
	b.opts.Metrics.SetItems("news", meta.NewsCount)
	b.opts.Metrics.SetItems("markets", meta.MarketsCount)
	b.opts.Metrics.SetItems("history_points", meta.HistoryPoints)

	b.opts.Events.Emit(otel.Event{
		Time:  time.Now(),
		Level: otel.LevelInfo,
		Kind:  otel.KindPipelineBuild,
		Comp:  "live",
		RunID: runID,
		Dur:   elapsed,
		Count: meta.NewsCount,
		Extra: map[string]any{
			"rss":     meta.RSSCount,
			"merged":  meta.MergedCount,
			"markets": meta.MarketsCount,
			"points":  meta.HistoryPoints,
		},
	})
	logging.Info("live document built",
		"run", runID,
		"news", meta.NewsCount,
		"markets", meta.MarketsCount,
		"dur", elapsed.Round(time.Millisecond))

	return st.doc
}

// stage runs fn, converting a panic into an error stage, and records the
// outcome.
func (b *Builder) stage(st *build, name string, fn func() Stage) {
	s := func() (s Stage) {
		defer func() {
			if r := recover(); r != nil {
				logging.Error("pipeline stage panicked", "stage", name, "panic", r)
				s = Stage{Status: "error", Reason: "panic", Error: fmt.Sprint(r)}
			}
		}()
		return fn()
	}()
	s.Name = name
	st.doc.Meta.Stages = append(st.doc.Meta.Stages, s)
	b.opts.Metrics.ObserveStage(name, s.Status)
}

func (b *Builder) collectFeeds(ctx context.Context, st *build) Stage {
	if b.opts.Collector == nil || len(b.opts.Sources) == 0 {
		return Stage{Status: "not_run"}
	}
	batch := b.opts.Collector.Collect(ctx, b.opts.Sources, st.now)

	failed := 0
	for _, r := range batch.Sources {
		b.opts.Metrics.ObserveFeed(r.Source, r.Dur, r.Err)
		if r.Err != nil {
			failed++
		}
	}
	st.doc.Meta.FeedsFailed = failed
	st.rss = news.Merge(batch.Items, nil, b.opts.NewsLimit, 0)
	st.doc.Meta.RSSCount = len(st.rss)

	switch {
	case failed == len(batch.Sources):
		return Stage{Status: "degraded", Reason: "all_sources_failed"}
	case failed > 0:
		return Stage{Status: "ok", Reason: fmt.Sprintf("%d_of_%d_failed", failed, len(batch.Sources))}
	}
	return Stage{Status: "ok"}
}

func (b *Builder) collectSocial(ctx context.Context, st *build) Stage {
	if b.opts.Social == nil {
		return Stage{Status: "not_run"}
	}
	items, debug := b.opts.Social.Fetch(ctx, st.now)
	st.social = items
	st.doc.Meta.XDebug = debug
	if debug.Enabled {
		b.opts.Metrics.ObserveRerank("social", debug.LLM.Result)
	}

	switch debug.Status {
	case social.StatusOK:
		return Stage{Status: "ok"}
	case social.StatusSearchFailed:
		return Stage{Status: "degraded", Reason: debug.Status, Error: debug.Error}
	}
	return Stage{Status: "empty", Reason: debug.Status}
}

func (b *Builder) merge(st *build) Stage {
	merged := news.Merge(st.rss, st.social, b.opts.NewsLimit, b.opts.SocialSlots)
	if merged == nil {
		merged = []feeds.NewsItem{}
	}
	st.doc.News = merged
	st.doc.Meta.MergedCount = len(merged)
	if len(merged) == 0 {
		return Stage{Status: "empty", Reason: "no_items"}
	}
	return Stage{Status: "ok"}
}

func (b *Builder) ingest(ctx context.Context, st *build) Stage {
	if b.opts.Ingestor == nil {
		return Stage{Status: "not_run"}
	}
	res := b.opts.Ingestor.Fetch(ctx)
	st.pool = res.Data
	st.doc.Meta.MarketsFetched = len(res.Data)

	s := Stage{Status: res.Status.String(), Reason: res.Reason}
	if res.Err != nil {
		s.Error = res.Err.Error()
	}
	return s
}

func (b *Builder) selectMarkets(ctx context.Context, st *build) Stage {
	if len(st.pool) == 0 {
		return Stage{Status: "empty", Reason: rerank.ResultNoItems}
	}
	var picked []feeds.MarketEvent
	var meta rerank.Meta
	if b.opts.Selector == nil {
		picked = markets.Fill(st.pool, rerank.Ranking{Kind: rerank.Passthrough}, b.opts.MaxKeep)
		meta = rerank.Meta{InputCount: len(st.pool), OutputCount: len(picked), Result: rerank.ResultNotRun}
	} else {
		picked, meta = b.opts.Selector.Select(ctx, st.pool, b.opts.MaxKeep)
	}
	st.picked = picked
	st.doc.Meta.MarketsLLM = meta
	b.opts.Metrics.ObserveRerank("markets", meta.Result)
	return Stage{Status: "ok", Reason: meta.Result}
}

func (b *Builder) history(ctx context.Context, st *build) Stage {
	if len(st.picked) == 0 {
		return Stage{Status: "empty", Reason: "no_markets"}
	}
	if b.opts.Reconciler == nil {
		st.doc.Markets = markets.StripTokens(st.picked)
		return Stage{Status: "not_run"}
	}
	history, stripped, stats := b.opts.Reconciler.Reconcile(ctx, st.picked, st.now)
	st.doc.Markets = stripped
	st.doc.OddsHistory = history
	st.doc.Meta.HistoryFetched = stats.Fetched
	st.doc.Meta.HistorySynth = stats.Synthesized
	if stats.Synthesized > 0 {
		return Stage{Status: "ok", Reason: fmt.Sprintf("%d_synthesized", stats.Synthesized)}
	}
	return Stage{Status: "ok"}
}
