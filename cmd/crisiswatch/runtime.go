package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/abelbrown/crisiswatch/internal/config"
	"github.com/abelbrown/crisiswatch/internal/live"
	"github.com/abelbrown/crisiswatch/internal/logging"
	"github.com/abelbrown/crisiswatch/internal/metrics"
	"github.com/abelbrown/crisiswatch/internal/otel"
)

// runtime holds the process-wide observability plumbing and the builder.
type runtime struct {
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	events   *otel.Logger
	ring     *otel.RingBuffer
	builder  *live.Builder
	file     io.Closer
}

func newRuntime(c *config.Config) (*runtime, error) {
	rt := &runtime{
		registry: prometheus.NewRegistry(),
		ring:     otel.NewRingBuffer(c.Server.RingSize),
	}
	rt.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	rt.metrics = metrics.New(rt.registry)

	if c.Server.EventsFile != "" {
		if err := os.MkdirAll(filepath.Dir(c.Server.EventsFile), 0755); err != nil {
			return nil, fmt.Errorf("create events directory: %w", err)
		}
		f, err := os.OpenFile(c.Server.EventsFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("open events file: %w", err)
		}
		rt.file = f
		rt.events = otel.NewLogger(f)
	} else {
		rt.events = otel.NewNullLogger()
	}
	rt.events.SetRingBuffer(rt.ring)

	b, err := live.FromConfig(c, rt.metrics, rt.events)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.builder = b

	status := c.CredentialStatus()
	logging.Info("runtime ready",
		"sources", len(c.Feeds.Sources),
		"x", status["X_BEARER_TOKEN"],
		"anthropic", status["ANTHROPIC_API_KEY"],
		"openai", status["OPENAI_API_KEY"],
		"provider", b.ModelProvider())
	return rt, nil
}

// Close flushes the event log.
func (rt *runtime) Close() {
	rt.events.Close()
	if rt.file != nil {
		rt.file.Close()
	}
}
