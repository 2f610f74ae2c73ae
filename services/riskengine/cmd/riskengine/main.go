// Package main is the entry point for the risk engine service.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"

	"github.com/riskfabric/cyberrisk/pkg/config"
	"github.com/riskfabric/cyberrisk/pkg/kafka"
	"github.com/riskfabric/cyberrisk/pkg/logger"
	"github.com/riskfabric/cyberrisk/pkg/telemetry"
	"github.com/riskfabric/cyberrisk/services/riskengine/internal/app"
	"github.com/riskfabric/cyberrisk/services/riskengine/internal/handlers"
	"github.com/riskfabric/cyberrisk/services/riskengine/internal/routes"
	"github.com/riskfabric/cyberrisk/services/riskengine/internal/service"
)

// Build information (set via ldflags).
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

func main() {
	if err := run(); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	log = log.WithService("riskengine")

	log.Info("starting risk engine",
		"version", version,
		"build_time", buildTime,
		"git_commit", gitCommit,
		"env", cfg.Env,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	tp, err := telemetry.NewProvider(ctx, telemetry.FromConfig(cfg.Telemetry, "riskengine", version, cfg.Env))
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, done := context.WithTimeout(context.Background(), cfg.API.ShutdownTimeout)
		defer done()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			log.Error("failed to shutdown telemetry", "error", err)
		}
	}()

	a, err := app.New(ctx, cfg, log, app.Options{})
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Error("failed to close connections", "error", err)
		}
	}()

	health := handlers.HealthHandlerConfig{
		DB:        a.DB,
		Version:   version,
		GitCommit: gitCommit,
	}
	if a.Redis != nil {
		health.Redis = a.Redis
	}

	if cfg.Kafka.Enabled {
		health.Kafka = app.KafkaHealth{Brokers: cfg.Kafka.Brokers}

		consumer, err := kafka.NewConsumer(cfg.Kafka)
		if err != nil {
			return fmt.Errorf("failed to create Kafka consumer: %w", err)
		}
		defer consumer.Close()

		go func() {
			topics := []string{cfg.Kafka.Topics.AssessmentSubmitted}
			log.Info("starting Kafka consumer", "topics", topics, "group", cfg.Kafka.ConsumerGroup)

			err := consumer.Subscribe(ctx, topics, func(ctx context.Context, msg kafka.Message) error {
				err := a.Sync.HandleAssessmentSubmitted(ctx, msg)
				a.Metrics.ObserveEvent(err)
				return err
			})
			if err != nil && ctx.Err() == nil {
				log.Error("Kafka consumer error", "error", err)
			}
		}()
	}

	var scheduler *cron.Cron
	if interval := cfg.Pipeline.Schedule; interval > 0 {
		scheduler = cron.New(cron.WithSeconds())
		_, err = scheduler.AddFunc(fmt.Sprintf("@every %s", interval), func() {
			runScheduledSync(ctx, a.Sync, log)
		})
		if err != nil {
			return fmt.Errorf("failed to schedule sync: %w", err)
		}
		scheduler.Start()
		log.Info("scheduler started", "interval", interval)
	}

	server := &http.Server{
		Addr: cfg.API.Address(),
		Handler: routes.New(routes.Config{
			Config:    cfg,
			Logger:    log,
			Sync:      a.Sync,
			Dashboard: a.Dashboard,
			Health:    health,
		}),
		ReadTimeout:  cfg.API.ReadTimeout,
		WriteTimeout: cfg.API.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		log.Info("shutdown signal received")
	}

	if scheduler != nil {
		// Wait for an in-flight scheduled sync to finish.
		<-scheduler.Stop().Done()
	}

	shutdownCtx, done := context.WithTimeout(context.Background(), cfg.API.ShutdownTimeout)
	defer done()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("risk engine shutdown complete")
	return nil
}

func runScheduledSync(ctx context.Context, svc *service.SyncService, log *logger.Logger) {
	res, err := svc.SyncAll(ctx, service.TriggerSchedule)
	if err != nil {
		log.Error("scheduled sync failed", "error", err)
		return
	}
	log.Info("scheduled sync completed",
		"organizations", len(res.Runs)+len(res.Failures),
		"failed", len(res.Failures),
		"duration", res.Duration.String(),
	)
}
