package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/abelbrown/crisiswatch/internal/live"
	"github.com/abelbrown/crisiswatch/internal/metrics"
	"github.com/abelbrown/crisiswatch/internal/otel"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type countingBuilder struct {
	calls atomic.Int32
	delay time.Duration
}

func (b *countingBuilder) Build(ctx context.Context) live.Document {
	b.calls.Add(1)
	time.Sleep(b.delay)
	doc := live.Empty(testNow)
	doc.Meta.RunID = "run-1"
	return doc
}

func get(t *testing.T, h http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestLiveHeadersAndBody(t *testing.T) {
	b := &countingBuilder{}
	h := New(b, Options{CacheTTL: 55 * time.Second}).Handler()

	rec := get(t, h, http.MethodGet, "/api/live")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
	if got := rec.Header().Get("Cache-Control"); got != "public, max-age=55" {
		t.Errorf("Cache-Control = %q", got)
	}
	if got := rec.Header().Get("Content-Type"); !strings.HasPrefix(got, "application/json") {
		t.Errorf("Content-Type = %q", got)
	}
	if rec.Header().Get("X-Cache") != "miss" {
		t.Errorf("first request should miss")
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
		t.Fatalf("body is not JSON: %v", err)
	}
	for _, key := range []string{"timestamp", "lastUpdated", "news", "markets", "oddsHistory", "meta"} {
		if _, ok := doc[key]; !ok {
			t.Errorf("missing key %q", key)
		}
	}
}

func TestLiveCache(t *testing.T) {
	b := &countingBuilder{}
	h := New(b, Options{CacheTTL: time.Minute}).Handler()

	get(t, h, http.MethodGet, "/api/live")
	rec := get(t, h, http.MethodGet, "/api/live")
	if rec.Header().Get("X-Cache") != "hit" {
		t.Errorf("second request should hit")
	}
	if got := b.calls.Load(); got != 1 {
		t.Errorf("builds = %d, want 1", got)
	}
}

func TestLiveCacheDisabled(t *testing.T) {
	b := &countingBuilder{}
	h := New(b, Options{}).Handler()

	get(t, h, http.MethodGet, "/api/live")
	get(t, h, http.MethodGet, "/api/live")
	if got := b.calls.Load(); got != 2 {
		t.Errorf("builds = %d, want 2", got)
	}
}

func TestLiveConcurrentMissesShareBuild(t *testing.T) {
	b := &countingBuilder{delay: 50 * time.Millisecond}
	h := New(b, Options{CacheTTL: time.Minute}).Handler()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/live", nil))
			if rec.Code != http.StatusOK {
				t.Errorf("status = %d", rec.Code)
			}
		}()
	}
	wg.Wait()
	if got := b.calls.Load(); got != 1 {
		t.Errorf("builds = %d, want 1", got)
	}
}

func TestLivePreflightAndMethods(t *testing.T) {
	b := &countingBuilder{}
	h := New(b, Options{CacheTTL: time.Minute}).Handler()

	rec := get(t, h, http.MethodOptions, "/api/live")
	if rec.Code != http.StatusNoContent {
		t.Errorf("OPTIONS status = %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Errorf("preflight missing CORS header")
	}

	rec = get(t, h, http.MethodPost, "/api/live")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST status = %d", rec.Code)
	}
	if got := b.calls.Load(); got != 0 {
		t.Errorf("builds = %d, want 0", got)
	}
}

func TestHealth(t *testing.T) {
	h := New(&countingBuilder{}, Options{CacheTTL: time.Minute}).Handler()
	rec := get(t, h, http.MethodGet, "/healthz")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Errorf("healthz = %d %s", rec.Code, rec.Body.String())
	}
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	h := New(&countingBuilder{}, Options{CacheTTL: time.Minute, Gatherer: reg, Metrics: m}).Handler()

	get(t, h, http.MethodGet, "/api/live")
	rec := get(t, h, http.MethodGet, "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `crisiswatch_http_requests_total{cache="miss",route="live"} 1`) {
		t.Errorf("request counter missing:\n%s", rec.Body.String())
	}
}

func TestMetricsDisabled(t *testing.T) {
	h := New(&countingBuilder{}, Options{}).Handler()
	if rec := get(t, h, http.MethodGet, "/metrics"); rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestDebugEvents(t *testing.T) {
	ring := otel.NewRingBuffer(10)
	for i := 0; i < 5; i++ {
		ring.Push(otel.Event{Time: testNow, Kind: otel.KindFeedFetch, Count: i})
	}
	h := New(&countingBuilder{}, Options{Ring: ring}).Handler()

	rec := get(t, h, http.MethodGet, "/debug/events?n=2")
	var events []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &events); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(events) != 2 || events[1]["count"] != float64(4) {
		t.Errorf("events = %v", events)
	}

	if rec := get(t, h, http.MethodGet, "/debug/events?n=x"); rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestRecover(t *testing.T) {
	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}), Recover())
	if rec := get(t, h, http.MethodGet, "/"); rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestRunShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- New(&countingBuilder{}, Options{}).Run(ctx, "127.0.0.1:0") }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRefreshReplacesCache(t *testing.T) {
	b := &countingBuilder{}
	s := New(b, Options{CacheTTL: time.Minute})
	h := s.Handler()

	get(t, h, http.MethodGet, "/api/live")
	if err := s.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	rec := get(t, h, http.MethodGet, "/api/live")
	if rec.Header().Get("X-Cache") != "hit" {
		t.Errorf("request after refresh should hit")
	}
	if got := b.calls.Load(); got != 2 {
		t.Errorf("builds = %d, want 2", got)
	}
}
