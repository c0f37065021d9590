package main

import (
	"context"
	"errors"
	"log/slog"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nadzzz/narrator/internal/config"
	"github.com/nadzzz/narrator/internal/health"
	"github.com/nadzzz/narrator/internal/telemetry"
	"github.com/nadzzz/narrator/internal/transport"
	grpctransport "github.com/nadzzz/narrator/internal/transport/grpc"
	httptransport "github.com/nadzzz/narrator/internal/transport/http"
	natstransport "github.com/nadzzz/narrator/internal/transport/nats"
	"github.com/nadzzz/narrator/internal/tts"
)

// historyPruneInterval is how often retention is applied while serving.
const historyPruneInterval = time.Hour

func newServeCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the web form, API and enabled transports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			return runServe(cfg)
		},
	}
}

func runServe(cfg *config.Config) error {
	slog.Info("narrator starting", "version", version)

	// Create root context with signal handling for graceful shutdown.
	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	tel, err := telemetry.Init(ctx, cfg.Telemetry, version)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown", "error", err)
		}
	}()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	// Optional in-process NATS broker.
	var natsURL string
	if cfg.Transports.NATS.Enabled && cfg.Transports.NATS.Embedded {
		embedded, err := natstransport.StartEmbedded(cfg.Transports.NATS.EmbeddedPort)
		if err != nil {
			return err
		}
		defer embedded.Shutdown()
		natsURL = embedded.ClientURL()
	}

	// Initialize enabled transports.
	var transports []transport.Transport

	if cfg.Transports.GRPC.Enabled {
		transports = append(transports, grpctransport.New(cfg.Transports.GRPC.Port))
	}
	if cfg.Transports.HTTP.Enabled {
		transports = append(transports, httptransport.New(httptransport.Options{
			HTTP:      cfg.Transports.HTTP,
			UI:        cfg.UI,
			RateLimit: cfg.RateLimit,
			MaxChars:  cfg.Synthesis.MaxChars,
		}, a.dispatcher))
	}
	if cfg.Transports.NATS.Enabled {
		transports = append(transports, natstransport.New(cfg.Transports.NATS, natsURL))
	}

	if len(transports) == 0 {
		return errors.New("no transports enabled; enable at least one in config")
	}

	// Start health check server.
	healthServer := health.New(cfg.Server.HealthPort)
	healthServer.SetMetricsHandler(tel.MetricsHandler)
	healthServer.AddCheck("history", a.history.Ping)
	if p, ok := a.backend.(tts.Pinger); ok {
		healthServer.AddCheck("backend", p.Ping)
	}
	go func() {
		if err := healthServer.ListenAndServe(ctx); err != nil {
			slog.Error("health server failed", "error", err)
		}
	}()

	go pruneHistory(ctx, a)

	// Start all transports.
	var wg sync.WaitGroup
	for _, t := range transports {
		wg.Add(1)
		go func(t transport.Transport) {
			defer wg.Done()
			slog.Info("starting transport", "name", t.Name())
			if err := t.Listen(ctx, a.dispatcher.Handle); err != nil {
				slog.Error("transport failed", "name", t.Name(), "error", err)
			}
		}(t)
	}

	// Mark as ready once all transports are started.
	healthServer.SetReady(true)
	slog.Info("narrator ready",
		"backend", a.backend.Name(),
		"transports", len(transports),
		"health_port", cfg.Server.HealthPort)

	// Block until shutdown signal.
	<-ctx.Done()
	slog.Info("shutdown signal received, draining...")
	healthServer.SetReady(false)

	// Close all transports gracefully.
	for _, t := range transports {
		if err := t.Close(); err != nil {
			slog.Error("transport close error", "name", t.Name(), "error", err)
		}
	}

	wg.Wait()
	slog.Info("narrator stopped")
	return nil
}

func pruneHistory(ctx context.Context, a *app) {
	if !a.history.Enabled() {
		return
	}
	ticker := time.NewTicker(historyPruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := a.history.Prune(ctx); err != nil {
				slog.Warn("pruning history failed", "error", err)
			}
		}
	}
}
