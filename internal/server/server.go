// Package server exposes the live document over HTTP.
//
// /api/live serves a cached JSON document; concurrent cache misses share a
// single build. /healthz, /metrics and /debug/events support operations.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/singleflight"

	"github.com/abelbrown/crisiswatch/internal/live"
	"github.com/abelbrown/crisiswatch/internal/logging"
	"github.com/abelbrown/crisiswatch/internal/metrics"
	"github.com/abelbrown/crisiswatch/internal/otel"
)

const (
	liveKey         = "live"
	buildTimeout    = 45 * time.Second
	shutdownTimeout = 10 * time.Second
	defaultEvents   = 100
)

// Builder produces a live document.
type Builder interface {
	Build(ctx context.Context) live.Document
}

// Options configures a Server.
type Options struct {
	CacheTTL time.Duration
	Gatherer prometheus.Gatherer // nil disables /metrics
	Metrics  *metrics.Metrics
	Events   *otel.Logger
	Ring     *otel.RingBuffer // nil disables /debug/events
}

// Server serves the live document with a TTL cache.
type Server struct {
	builder Builder
	opts    Options
	cache   *gocache.Cache
	group   singleflight.Group
	started time.Time
}

// New creates a Server. A non-positive CacheTTL disables caching.
func New(builder Builder, opts Options) *Server {
	cleanup := 2 * opts.CacheTTL
	if cleanup <= 0 {
		cleanup = time.Minute
	}
	return &Server{
		builder: builder,
		opts:    opts,
		cache:   gocache.New(opts.CacheTTL, cleanup),
		started: time.Now(),
	}
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/live", s.handleLive)
	mux.HandleFunc("/healthz", s.handleHealth)
	if s.opts.Gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(s.opts.Gatherer, promhttp.HandlerOpts{}))
	}
	if s.opts.Ring != nil {
		mux.HandleFunc("/debug/events", s.handleEvents)
	}

	return Chain(mux,
		Recover(),
		OTel("crisiswatch"),
		Logger(s.opts.Events),
		CORS("*"),
	)
}

// Live returns the encoded document, building it when the cache is cold.
// hit reports whether the cache answered.
func (s *Server) Live(ctx context.Context) (body []byte, hit bool, err error) {
	if v, ok := s.cache.Get(liveKey); ok {
		return v.([]byte), true, nil
	}
	body, err = s.rebuild(ctx, false)
	return body, false, err
}

// Refresh rebuilds the document and replaces the cached copy.
func (s *Server) Refresh(ctx context.Context) error {
	_, err := s.rebuild(ctx, true)
	return err
}

// rebuild builds and caches the document. Concurrent callers share one
// build; unless force is set, a copy cached meanwhile is returned instead.
func (s *Server) rebuild(ctx context.Context, force bool) ([]byte, error) {
	v, err, _ := s.group.Do(liveKey, func() (any, error) {
		if !force {
			if v, ok := s.cache.Get(liveKey); ok {
				return v, nil
			}
		}
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), buildTimeout)
		defer cancel()

		doc := s.builder.Build(ctx)
		b, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("encode document: %w", err)
		}
		if s.opts.CacheTTL > 0 {
			s.cache.SetDefault(liveKey, b)
		}
		return b, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD, OPTIONS")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, hit, err := s.Live(r.Context())
	if err != nil {
		logging.Error("live build failed", "error", err)
		s.opts.Metrics.ObserveRequest("live", "error")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	cacheState := "miss"
	if hit {
		cacheState = "hit"
	}
	s.opts.Metrics.ObserveRequest("live", cacheState)

	h := w.Header()
	h.Set("Content-Type", "application/json; charset=utf-8")
	h.Set("Cache-Control", "public, max-age="+strconv.Itoa(int(s.opts.CacheTTL/time.Second)))
	h.Set("X-Cache", cacheState)
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodGet {
		w.Write(body)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	_, cached := s.cache.Get(liveKey)
	writeJSON(w, map[string]any{
		"status": "ok",
		"uptime": time.Since(s.started).Round(time.Second).String(),
		"cached": cached,
	})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	n := defaultEvents
	if raw := r.URL.Query().Get("n"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			http.Error(w, "invalid n", http.StatusBadRequest)
			return
		}
		n = v
	}
	events := s.opts.Ring.Last(n)
	if events == nil {
		events = []otel.Event{}
	}
	writeJSON(w, events)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Warn("failed to write response", "error", err)
	}
}

// Run serves on addr until ctx is cancelled, then drains in-flight
// requests.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      buildTimeout + 15*time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
