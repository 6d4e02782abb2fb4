package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/abelbrown/crisiswatch/internal/coord"
	"github.com/abelbrown/crisiswatch/internal/logging"
	"github.com/abelbrown/crisiswatch/internal/otel"
	"github.com/abelbrown/crisiswatch/internal/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the live document over HTTP",
	Long: `Serve /api/live, /healthz, /metrics and /debug/events.

The live document is rebuilt at most once per cache TTL; concurrent
requests during a rebuild share it.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server.addr)")
}

func runServe(cmd *cobra.Command, args []string) error {
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}

	rt, err := newRuntime(cfg)
	if err != nil {
		return err
	}
	defer rt.Close()
	defer logging.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.New(rt.builder, server.Options{
		CacheTTL: cfg.Server.CacheTTL,
		Gatherer: rt.registry,
		Metrics:  rt.metrics,
		Events:   rt.events,
		Ring:     rt.ring,
	})

	if cfg.Server.RefreshInterval > 0 && cfg.Server.CacheTTL > 0 {
		c := coord.NewCoordinator(srv, cfg.Server.RefreshInterval, rt.events)
		c.Start(ctx)
		defer func() {
			stop()
			c.Wait()
		}()
	}

	rt.events.Emit(otel.Event{
		Time:   time.Now(),
		Level:  otel.LevelInfo,
		Kind:   otel.KindStartup,
		Comp:   "server",
		Source: cfg.Server.Addr,
		Msg:    "config " + orDefault(cfgUsed, "defaults"),
	})
	err = srv.Run(ctx, cfg.Server.Addr)
	rt.events.Emit(otel.Event{
		Time:  time.Now(),
		Level: otel.LevelInfo,
		Kind:  otel.KindShutdown,
		Comp:  "server",
	})
	logging.Info("server stopped")
	return err
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
