// Package main is the entry point for the researchplane server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"researchplane/internal/collab"
	"researchplane/internal/config"
	"researchplane/internal/dispatch"
	"researchplane/internal/guard"
	"researchplane/internal/jobs"
	"researchplane/internal/logger"
	"researchplane/internal/notify"
	"researchplane/internal/observability"
	"researchplane/internal/pipeline"
	"researchplane/internal/registry"
	"researchplane/internal/server"
	"researchplane/internal/server/handlers"
	"researchplane/internal/store/postgres"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

func main() {
	migrateFlag := flag.Bool("migrate", false, "Run database migrations before starting")
	configPath := flag.String("config", "", "Path to config file (default: researchplane.yaml in current directory)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logg := logger.New(cfg.LogLevel)

	ctx := context.Background()
	db, err := postgres.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	defer db.Close()

	if *migrateFlag {
		logg.Info("running database migrations")
		if err := postgres.Migrate(db.DB()); err != nil {
			log.Fatalf("Migration failed: %v", err)
		}
		logg.Info("migrations completed")
	}

	// Tracing
	shutdownTracer, err := observability.InitTracer(ctx, "researchplane", cfg.OTELEndpoint)
	if err != nil {
		log.Fatalf("Failed to init tracing: %v", err)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logg.Warn("failed to shutdown tracer", "error", err)
		}
	}()

	// Metrics
	metricsHandler, shutdownMetrics, err := observability.InitMetrics()
	if err != nil {
		log.Fatalf("Failed to init metrics: %v", err)
	}
	defer func() {
		if err := shutdownMetrics(context.Background()); err != nil {
			logg.Warn("failed to shutdown metrics", "error", err)
		}
	}()

	queue := jobs.New(db, logg)

	// Jobs left running by a previous process can never complete; fail
	// them before the runner starts pulling.
	if _, err := queue.RecoverInterrupted(ctx); err != nil {
		log.Fatalf("Failed to recover interrupted jobs: %v", err)
	}

	reg, err := registry.Load(cfg.RegistryPath, logg)
	if err != nil {
		log.Fatalf("Failed to load artifact registry: %v", err)
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		log.Fatalf("Failed to create data dir: %v", err)
	}

	// Queue depth as an observable gauge, read only when scraped.
	meter := otel.Meter("researchplane")
	_, err = meter.Int64ObservableGauge("researchplane.queue.depth",
		metric.WithDescription("Current number of queued jobs"),
		metric.WithInt64Callback(func(ctx context.Context, obs metric.Int64Observer) error {
			count, err := queue.Depth(ctx)
			if err != nil {
				logg.Warn("failed to count queue depth", "error", err)
				return nil // Don't fail the scrape on a DB hiccup.
			}
			obs.Observe(count)
			return nil
		}),
	)
	if err != nil {
		logg.Warn("failed to register queue depth metric", "error", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// One consumer for the shared browser session.
	serial := guard.New(logg)
	go serial.Run(runCtx)

	dispatcher := dispatch.New(dispatch.Config{
		BaseURL: cfg.DispatchBaseURL,
		Token:   cfg.DispatchToken,
	}, db, logg)
	if !dispatcher.IsConfigured() {
		logg.Info("remote dispatch disabled, no base URL or token configured")
	}

	channels := []notify.Channel{&notify.LogChannel{Logger: logg}}
	if cfg.NotifyWebhookURL != "" {
		channels = append(channels, notify.NewWebhookChannel(cfg.NotifyWebhookURL))
	}
	notifier := notify.NewFanout(logg, channels...)

	// The browser collaborators are external processes; their stubs are
	// chosen here, once, so the pipeline never branches on nil.
	orch := pipeline.New(pipeline.Deps{
		Queue:      queue,
		Registry:   reg,
		Graph:      db,
		Dispatcher: dispatcher,
		Researcher: collab.NoopResearcher{},
		Syncer:     collab.NoopSyncer{},
		Exporter:   collab.NoopExporter{},
		Studio:     collab.NoopAudioStudio{},
		Guard:      serial,
		Notifier:   notifier,
		Logger:     logg,
		DataDir:    cfg.DataDir,
	})

	runner := pipeline.NewRunner(queue, orch, pipeline.RunnerConfig{
		PollInterval: cfg.PollInterval,
		MaxBackoff:   cfg.MaxBackoff,
	}, logg)
	go func() {
		if err := runner.Run(runCtx); err != nil {
			logg.Error("runner stopped", "error", err)
		}
	}()

	h := handlers.New(queue, reg, db, dispatcher, db, logg)
	addr := fmt.Sprintf(":%d", cfg.HTTPPort)
	srv := server.New(addr, h, server.Options{
		APIToken:       cfg.APIToken,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
		Metrics:        metricsHandler,
	})

	go func() {
		logg.Info("researchplane server starting", "addr", addr)
		if err := srv.Run(runCtx); err != nil {
			logg.Error("server stopped", "error", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logg.Info("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logg.Error("server forced to shutdown", "error", err)
	}

	// Let the runner finish the job it has in flight.
	select {
	case <-runner.Done():
	case <-shutdownCtx.Done():
		logg.Warn("runner did not drain in time")
	}
	logg.Info("server exited")
}
