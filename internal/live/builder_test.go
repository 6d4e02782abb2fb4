package live

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/abelbrown/crisiswatch/internal/config"
	"github.com/abelbrown/crisiswatch/internal/feeds"
	"github.com/abelbrown/crisiswatch/internal/otel"
	"github.com/abelbrown/crisiswatch/internal/rerank"
	"github.com/abelbrown/crisiswatch/internal/social"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

const rssFeed = `<?xml version="1.0"?>
<rss version="2.0"><channel><title>Wire</title>
<item><title>Iran says talks will resume in Oman</title><link>https://wire.example/1</link>
<description>Officials in Tehran confirmed the date.</description><pubDate>Sun, 01 Mar 2026 10:00:00 GMT</pubDate></item>
<item><title>IRGC drills near Strait of Hormuz</title><link>https://wire.example/2</link>
<description>Naval exercise announced.</description><pubDate>Sun, 01 Mar 2026 11:00:00 GMT</pubDate></item>
<item><title>Local bake sale raises funds</title><link>https://wire.example/3</link>
<description>Cakes.</description><pubDate>Sun, 01 Mar 2026 11:30:00 GMT</pubDate></item>
</channel></rss>`

const gammaEvents = `[
  {"id": "1", "title": "Will the US strike Iran by March 31?", "slug": "us-strike-iran", "endDate": "2026-03-31T00:00:00Z",
   "markets": [{"question": "Will the US strike Iran by March 31?", "closed": false, "volume": "1500000",
                "outcomePrices": "[\"0.634\", \"0.366\"]", "clobTokenIds": "[\"tok-a\", \"tok-a-no\"]"}]},
  {"id": "2", "title": "Iran nuclear deal signed?", "slug": "iran-deal", "endDateIso": "2026-06-30",
   "markets": [{"groupItemTitle": "June", "closed": false, "volume": 12000, "outcomePrices": [0.1, 0.9], "clobTokenIds": ["tok-b"]}]}
]`

func searchResponse() social.SearchResponse {
	var resp social.SearchResponse
	resp.Data = []social.Post{
		{ID: "10", AuthorID: "u1", CreatedAt: testNow.Add(-time.Hour).Format(time.RFC3339),
			Text:    "IRGC naval units reported moving toward the Strait of Hormuz this morning",
			Metrics: social.Metrics{Likes: 40}},
		{ID: "11", AuthorID: "u2", CreatedAt: testNow.Add(-2 * time.Hour).Format(time.RFC3339),
			Text:    "Explosions reported near Isfahan air base, IRGC statement expected within the hour",
			Metrics: social.Metrics{Likes: 30}},
	}
	resp.Includes.Users = []social.User{{ID: "u1", Username: "faytuks"}, {ID: "u2", Username: "AuroraIntel"}}
	return resp
}

type upstream struct {
	server   *httptest.Server
	llmCalls atomic.Int32
	down     bool
}

func newUpstream(t *testing.T, down bool) *upstream {
	t.Helper()
	u := &upstream{down: down}
	mux := http.NewServeMux()
	fail := func(w http.ResponseWriter) bool {
		if u.down {
			w.WriteHeader(http.StatusBadGateway)
		}
		return u.down
	}

	mux.HandleFunc("/feed/a.xml", func(w http.ResponseWriter, r *http.Request) {
		if fail(w) {
			return
		}
		w.Write([]byte(rssFeed))
	})
	mux.HandleFunc("/feed/b.xml", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	mux.HandleFunc("/x/search", func(w http.ResponseWriter, r *http.Request) {
		if fail(w) {
			return
		}
		if r.Header.Get("Authorization") != "Bearer x-token" {
			t.Errorf("missing bearer token")
		}
		json.NewEncoder(w).Encode(searchResponse())
	})
	mux.HandleFunc("/gamma/events", func(w http.ResponseWriter, r *http.Request) {
		if fail(w) {
			return
		}
		w.Write([]byte(gammaEvents))
	})
	mux.HandleFunc("/clob/prices-history", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("market") == "tok-a" && !u.down {
			w.Write([]byte(`{"history":[{"t":1772272800,"p":0.6},{"t":1772280000,"p":0.634}]}`))
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	})
	mux.HandleFunc("/anthropic/v1/messages", func(w http.ResponseWriter, r *http.Request) {
		u.llmCalls.Add(1)
		if fail(w) {
			return
		}
		if r.Header.Get("x-api-key") != "sk-test" {
			t.Errorf("missing api key")
		}
		w.Write([]byte(`{"content":[{"type":"text","text":"2"}],"model":"claude-test","stop_reason":"end_turn"}`))
	})

	u.server = httptest.NewServer(mux)
	t.Cleanup(u.server.Close)
	return u
}

func (u *upstream) config() *config.Config {
	cfg := config.DefaultConfig()
	base := u.server.URL
	cfg.Feeds.Sources = []feeds.FeedSource{
		{URL: base + "/feed/a.xml", Name: "Wire A", Tag: feeds.TagBreaking},
		{URL: base + "/feed/b.xml", Name: "Wire B", Tag: feeds.TagRegional},
	}
	cfg.Feeds.SearchURL = base + "/x/search"
	cfg.Markets.GammaURL = base + "/gamma"
	cfg.Markets.ClobURL = base + "/clob"
	cfg.Markets.Seed = 7
	cfg.Models.AnthropicURL = base + "/anthropic/v1/messages"
	cfg.Credentials = config.Credentials{XBearerToken: "x-token", AnthropicKey: "sk-test"}
	return cfg
}

func buildWith(t *testing.T, cfg *config.Config) Document {
	t.Helper()
	b, err := FromConfig(cfg, nil, nil)
	if err != nil {
		t.Fatalf("FromConfig: %v", err)
	}
	return b.WithClock(func() time.Time { return testNow }).Build(context.Background())
}

func stageByName(doc Document, name string) (Stage, bool) {
	for _, s := range doc.Meta.Stages {
		if s.Name == name {
			return s, true
		}
	}
	return Stage{}, false
}

func TestBuildFullPipeline(t *testing.T) {
	up := newUpstream(t, false)
	doc := buildWith(t, up.config())

	if doc.Timestamp != "2026-03-01T12:00:00Z" {
		t.Errorf("Timestamp = %q", doc.Timestamp)
	}
	if doc.LastUpdated != "01 MAR 2026 - 12:00 GMT" {
		t.Errorf("LastUpdated = %q", doc.LastUpdated)
	}

	meta := doc.Meta
	if meta.RSSCount != 2 || meta.FeedsFailed != 1 {
		t.Errorf("rss = %d, failed = %d", meta.RSSCount, meta.FeedsFailed)
	}
	if meta.XDebug.Status != social.StatusOK || meta.XDebug.SelectedBeforeLLM != 2 || meta.XDebug.AfterLLM != 1 {
		t.Errorf("xDebug = %+v", meta.XDebug)
	}
	if meta.XDebug.LLM.Result != rerank.ResultFilteredIndices {
		t.Errorf("social rerank result = %q", meta.XDebug.LLM.Result)
	}
	if meta.MergedCount != 3 || meta.NewsCount != 3 || len(doc.News) != 3 {
		t.Errorf("merged = %d, news = %d", meta.MergedCount, len(doc.News))
	}
	osint := 0
	for i, item := range doc.News {
		if item.Type == feeds.TypeOSINT {
			osint++
		}
		if i > 0 && item.Time.After(doc.News[i-1].Time) {
			t.Errorf("news not newest first at %d", i)
		}
	}
	if osint != 1 {
		t.Errorf("expected one social item, got %d", osint)
	}

	if meta.MarketsFetched != 2 || meta.MarketsCount != 2 {
		t.Errorf("markets fetched = %d, count = %d", meta.MarketsFetched, meta.MarketsCount)
	}
	// model picked candidate 2 first; the rest fills in volume order
	if doc.Markets[0].Question != "Iran nuclear deal signed?" {
		t.Errorf("first market = %q", doc.Markets[0].Question)
	}
	if meta.MarketsLLM.Result != rerank.ResultFilteredIndices || !meta.MarketsLLM.LLMApplied {
		t.Errorf("marketsLlm = %+v", meta.MarketsLLM)
	}
	for _, m := range doc.Markets {
		if m.TokenID != "" {
			t.Errorf("token leaked for %q", m.Question)
		}
	}

	if meta.HistoryFetched != 1 || meta.HistorySynth != 1 {
		t.Errorf("history fetched = %d, synthesized = %d", meta.HistoryFetched, meta.HistorySynth)
	}
	if meta.HistoryPoints != 2+15 || doc.OddsHistory.Points() != meta.HistoryPoints {
		t.Errorf("historyPoints = %d", meta.HistoryPoints)
	}
	if got := up.llmCalls.Load(); got != 2 {
		t.Errorf("expected 2 model calls, got %d", got)
	}
	if len(meta.Stages) != 6 {
		t.Errorf("expected 6 stages, got %+v", meta.Stages)
	}
}

func TestBuildUpstreamsDown(t *testing.T) {
	up := newUpstream(t, true)
	doc := buildWith(t, up.config())

	if len(doc.News) != 0 || len(doc.Markets) != 0 || len(doc.OddsHistory) != 0 {
		t.Errorf("expected empty document, got %d news / %d markets", len(doc.News), len(doc.Markets))
	}
	if s, _ := stageByName(doc, StageFeeds); s.Status != "degraded" {
		t.Errorf("feeds stage = %+v", s)
	}
	if s, _ := stageByName(doc, StageIngest); s.Status != "degraded" || s.Reason != "fetch_failed" {
		t.Errorf("ingest stage = %+v", s)
	}
	if doc.Meta.XDebug.Status != social.StatusSearchFailed {
		t.Errorf("xStatus = %q", doc.Meta.XDebug.Status)
	}
	if got := up.llmCalls.Load(); got != 0 {
		t.Errorf("no model call expected without candidates, got %d", got)
	}

	body, err := json.Marshal(doc)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{`"news":[]`, `"markets":[]`, `"oddsHistory":{}`} {
		if !strings.Contains(string(body), want) {
			t.Errorf("body missing %s", want)
		}
	}
}

func TestBuildWithoutCredentials(t *testing.T) {
	up := newUpstream(t, false)
	cfg := up.config()
	cfg.Credentials = config.Credentials{}
	doc := buildWith(t, cfg)

	if doc.Meta.XDebug.Status != social.StatusNoToken || doc.Meta.XDebug.Enabled {
		t.Errorf("xDebug = %+v", doc.Meta.XDebug)
	}
	if doc.Meta.MarketsLLM.Result != rerank.ResultNoAPIKey {
		t.Errorf("marketsLlm = %+v", doc.Meta.MarketsLLM)
	}
	if doc.Markets[0].Question != "Will the US strike Iran by March 31?" {
		t.Errorf("passthrough should keep volume order, got %q", doc.Markets[0].Question)
	}
	if got := up.llmCalls.Load(); got != 0 {
		t.Errorf("expected no model calls, got %d", got)
	}
	if len(doc.News) != 2 {
		t.Errorf("news = %d", len(doc.News))
	}
}

func TestBuildEventsShareRunID(t *testing.T) {
	up := newUpstream(t, false)
	ring := otel.NewRingBuffer(256)
	events := otel.NewNullLogger()
	events.SetRingBuffer(ring)

	b, err := FromConfig(up.config(), nil, events)
	if err != nil {
		t.Fatalf("FromConfig: %v", err)
	}
	doc := b.WithClock(func() time.Time { return testNow }).Build(context.Background())
	events.Close()

	got := ring.Last(0)
	if len(got) < 2 {
		t.Fatalf("expected stage events, got %d", len(got))
	}
	kinds := map[otel.EventKind]bool{}
	for _, ev := range got {
		kinds[ev.Kind] = true
		if ev.RunID != doc.Meta.RunID {
			t.Errorf("%s event run = %q, want %q", ev.Kind, ev.RunID, doc.Meta.RunID)
		}
	}
	for _, k := range []otel.EventKind{otel.KindFeedFetch, otel.KindSocialFetch, otel.KindRerank, otel.KindMarketIngest, otel.KindHistoryFetch, otel.KindPipelineBuild} {
		if !kinds[k] {
			t.Errorf("no %s event", k)
		}
	}
}

func TestFromConfigModelProvider(t *testing.T) {
	up := newUpstream(t, false)
	tests := []struct {
		name  string
		creds config.Credentials
		want  string
	}{
		{"anthropic", config.Credentials{AnthropicKey: "sk-test", OpenAIKey: "oa"}, "claude"},
		{"openai", config.Credentials{OpenAIKey: "oa"}, "openai"},
		{"none", config.Credentials{}, "none"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := up.config()
			cfg.Credentials = tt.creds
			b, err := FromConfig(cfg, nil, nil)
			if err != nil {
				t.Fatalf("FromConfig: %v", err)
			}
			if got := b.ModelProvider(); got != tt.want {
				t.Errorf("ModelProvider = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBuildNoStages(t *testing.T) {
	doc := NewBuilder(Options{Clock: func() time.Time { return testNow }}).Build(context.Background())
	if len(doc.News) != 0 || doc.Meta.XDebug.Status != social.StatusNotRun {
		t.Errorf("unexpected document: %+v", doc.Meta)
	}
	for _, s := range doc.Meta.Stages {
		if s.Status == "error" {
			t.Errorf("stage %s errored: %+v", s.Name, s)
		}
	}
}

func TestStagePanicIsRecorded(t *testing.T) {
	b := NewBuilder(Options{})
	st := &build{doc: Empty(testNow)}
	b.stage(st, "boom", func() Stage { panic("kaboom") })

	if len(st.doc.Meta.Stages) != 1 {
		t.Fatalf("stages = %+v", st.doc.Meta.Stages)
	}
	s := st.doc.Meta.Stages[0]
	if s.Name != "boom" || s.Status != "error" || s.Error != "kaboom" {
		t.Errorf("stage = %+v", s)
	}
}

func TestFormatLastUpdated(t *testing.T) {
	at := time.Date(2026, 3, 1, 9, 5, 0, 0, time.FixedZone("X", 3600))
	if got := FormatLastUpdated(at); got != "01 MAR 2026 - 08:05 GMT" {
		t.Errorf("FormatLastUpdated = %q", got)
	}
}
