// Package coord keeps the live document warm in the background.
package coord

import (
	"context"
	"sync"
	"time"

	"github.com/abelbrown/crisiswatch/internal/logging"
	"github.com/abelbrown/crisiswatch/internal/otel"
)

// Refresher rebuilds and stores the live document.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Coordinator refreshes a target on a fixed interval.
// Uses context cancellation as the ONLY stop mechanism.
type Coordinator struct {
	target   Refresher
	interval time.Duration
	events   *otel.Logger
	wg       sync.WaitGroup
}

// NewCoordinator creates a Coordinator. interval must be positive.
func NewCoordinator(target Refresher, interval time.Duration, events *otel.Logger) *Coordinator {
	return &Coordinator{target: target, interval: interval, events: events}
}

// Start begins background refreshing. Call with a cancellable context.
// Performs an initial refresh immediately, then one per interval.
func (c *Coordinator) Start(ctx context.Context) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		c.refresh(ctx)

		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.refresh(ctx)
			}
		}
	}()
}

// Wait blocks until the background goroutine exits.
// Call after canceling the context passed to Start.
func (c *Coordinator) Wait() {
	c.wg.Wait()
}

func (c *Coordinator) refresh(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	start := time.Now()
	err := c.target.Refresh(ctx)

	ev := otel.Event{
		Time:  time.Now(),
		Level: otel.LevelDebug,
		Kind:  otel.KindRefresh,
		Comp:  "coord",
		Dur:   time.Since(start),
	}
	if err != nil {
		logging.Warn("background refresh failed", "error", err)
		ev.Level = otel.LevelWarn
		ev.Err = err.Error()
	}
	c.events.Emit(ev)
}
