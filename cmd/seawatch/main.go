// Seawatch - Abnormal Vessel Behaviour Analysis
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/seawatch

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/seawatch/internal/analysis"
	"github.com/tomtom215/seawatch/internal/api"
	"github.com/tomtom215/seawatch/internal/behavior"
	"github.com/tomtom215/seawatch/internal/config"
	"github.com/tomtom215/seawatch/internal/eventbus"
	"github.com/tomtom215/seawatch/internal/events"
	"github.com/tomtom215/seawatch/internal/featurestore"
	"github.com/tomtom215/seawatch/internal/grid"
	"github.com/tomtom215/seawatch/internal/ingest"
	"github.com/tomtom215/seawatch/internal/logging"
	"github.com/tomtom215/seawatch/internal/metrics"
	"github.com/tomtom215/seawatch/internal/supervisor"
	"github.com/tomtom215/seawatch/internal/supervisor/services"
	"github.com/tomtom215/seawatch/internal/tracker"
	ws "github.com/tomtom215/seawatch/internal/websocket"
)

func main() {
	if err := run(); err != nil {
		logging.Fatal().Err(err).Msg("Seawatch failed")
	}
}

//nolint:gocyclo // sequential wiring
func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logging.Init(logging.Config{
		Level:            cfg.Logging.Level,
		Format:           cfg.Logging.Format,
		Caller:           cfg.Logging.Caller,
		Timestamp:        true,
		Service:          "seawatch",
		DebugSampleEvery: cfg.Logging.DebugSampleEvery,
	})
	logging.Info().
		Str("ingest_mode", cfg.Ingest.Mode).
		Int("analyses", cfg.EnabledAnalyses()).
		Float64("grid_resolution", cfg.Tracker.GridResolution).
		Msg("Starting Seawatch with supervisor tree")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// === STORAGE ===

	features, err := featurestore.OpenBadger(featurestore.Options{
		Path:       cfg.FeatureStore.Path,
		InMemory:   cfg.FeatureStore.InMemory,
		SyncWrites: cfg.FeatureStore.SyncWrites,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := features.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing feature store")
		}
	}()

	eventStore, err := events.OpenDuckDB(ctx, cfg.Events.Path)
	if err != nil {
		return err
	}
	defer func() {
		if err := eventStore.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing event store")
		}
	}()

	var sink events.Sink = eventStore
	if cfg.Events.BreakerEnabled {
		sink = events.NewBreakerSink(eventStore, events.BreakerConfig{
			Name:        "event-store",
			MaxFailures: cfg.Events.BreakerMaxFailures,
			Timeout:     cfg.Events.BreakerTimeout,
		})
	}

	// === PIPELINE ===

	g, err := grid.New(cfg.Tracker.GridResolution)
	if err != nil {
		return err
	}

	dispatcher := eventbus.New(eventbus.Config{
		Workers:   cfg.Dispatch.Workers,
		QueueSize: cfg.Dispatch.QueueSize,
	})

	wsHub := ws.NewHub()
	manager := behavior.NewManager(sink, wsHub)

	for _, a := range buildAnalyses(cfg, features, manager) {
		a.Subscribe(dispatcher)
		logging.Info().Str("analysis", a.Name()).Msg("Analysis subscribed")
	}
	if cfg.EnabledAnalyses() == 0 {
		logging.Warn().Msg("All analyses are disabled; tracks are followed but never judged")
	}

	registry := tracker.NewRegistry(g, dispatcher, tracker.Config{
		StaleTimeout:     cfg.Tracker.StaleTimeout,
		DropLogPerSecond: cfg.Tracker.DropLogPerSecond,
	})
	sweeper := tracker.NewSweeper(registry, cfg.Tracker.SweepInterval)

	// === INGEST ===

	transport, cleanup, err := newTransport(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	consumer := ingest.NewConsumer(cfg.Ingest, transport.Subscriber, transport.Publisher, registry)

	// === SUPERVISOR TREE ===

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfigFrom(cfg.Supervisor))
	if err != nil {
		return fmt.Errorf("create supervisor tree: %w", err)
	}

	tree.AddPipelineService(services.NewDispatcherService(dispatcher, cfg.Supervisor.ShutdownTimeout))
	tree.AddPipelineService(services.NewSweeperService(sweeper))
	tree.AddMessagingService(services.NewIngestService(consumer))
	tree.AddMessagingService(services.NewWebSocketHubService(wsHub))

	if cfg.Server.Enabled {
		handler := api.NewHandler(cfg, registry, eventStore, wsHub).
			WithReports(transport.Publisher, cfg.Ingest.Topic).
			WithReadiness(eventStore.DB(), consumer.Running())
		router := api.NewRouter(handler, api.NewChiMiddleware(api.ChiMiddlewareConfigFrom(cfg.Server)))

		server := &http.Server{
			Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
			Handler:           router,
			ReadTimeout:       cfg.Server.ReadTimeout,
			ReadHeaderTimeout: 10 * time.Second,
			WriteTimeout:      cfg.Server.WriteTimeout,
			IdleTimeout:       60 * time.Second,
		}
		tree.AddAPIService(services.NewHTTPServerService(server, server.Addr, cfg.Server.ShutdownTimeout))
		logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")
	}

	// === START ===

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree...")
	if err := <-tree.ServeBackground(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("Supervisor tree error")
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
	}

	logging.Info().Int("active_tracks", registry.Len()).Msg("Seawatch stopped gracefully")
	return nil
}

// buildAnalyses creates the enabled analyses, all judging through manager.
func buildAnalyses(cfg *config.Config, store featurestore.Reader, manager *behavior.Manager) []*analysis.Analysis {
	stats := metrics.PrometheusSink{}
	var out []*analysis.Analysis
	if p := cfg.Analysis.CourseOverGround; p.Enabled {
		out = append(out, analysis.NewCourseOverGround(p, store, manager, stats))
	}
	if p := cfg.Analysis.SpeedOverGround; p.Enabled {
		out = append(out, analysis.NewSpeedOverGround(p, store, manager, stats))
	}
	if p := cfg.Analysis.ShipTypeAndSize; p.Enabled {
		out = append(out, analysis.NewShipSizeOrType(p, store, manager, stats))
	}
	return out
}
