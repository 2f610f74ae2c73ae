// Package app assembles the risk engine's dependencies from configuration.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/riskfabric/cyberrisk/pkg/config"
	"github.com/riskfabric/cyberrisk/pkg/database"
	"github.com/riskfabric/cyberrisk/pkg/kafka"
	"github.com/riskfabric/cyberrisk/pkg/logger"
	"github.com/riskfabric/cyberrisk/pkg/models"
	"github.com/riskfabric/cyberrisk/pkg/resilience"
	"github.com/riskfabric/cyberrisk/services/riskengine/internal/cache"
	"github.com/riskfabric/cyberrisk/services/riskengine/internal/metrics"
	"github.com/riskfabric/cyberrisk/services/riskengine/internal/pipeline"
	"github.com/riskfabric/cyberrisk/services/riskengine/internal/repository"
	"github.com/riskfabric/cyberrisk/services/riskengine/internal/service"
)

// App holds the wired services and the connections they own.
type App struct {
	DB         *database.DB
	Repository *repository.Repository
	Redis      *cache.RedisBackend
	Producer   *kafka.Producer
	Metrics    *metrics.Metrics
	Sync       *service.SyncService
	Dashboard  *service.DashboardService

	log     *logger.Logger
	closers []func() error
}

// Options adjusts what New wires.
type Options struct {
	// Registerer receives the metrics. Nil uses the default registerer.
	Registerer prometheus.Registerer

	// DisablePublishing skips the Kafka producer even when Kafka is enabled.
	DisablePublishing bool
}

// New connects to the database, and to Redis and Kafka when enabled, and
// builds the services on top. Close releases everything New opened.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger, opts Options) (*App, error) {
	a := &App{log: log}

	db, err := database.New(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	a.DB = db
	a.closers = append(a.closers, func() error { db.Close(); return nil })
	log.Info("connected to database")

	a.Repository = repository.New(db)

	var meta pipeline.MetadataSource = a.Repository
	if cfg.Redis.Enabled {
		backend, err := cache.NewRedisBackend(ctx, cfg.Redis)
		if err != nil {
			// Runs still work from the database alone.
			log.Warn("redis unavailable, control metadata cache disabled", "error", err)
		} else {
			a.Redis = backend
			a.closers = append(a.closers, backend.Close)
			meta = cache.NewMetadataCache(a.Repository, backend, cfg.Redis.Prefix, cfg.Redis.CacheTTL, log)
			log.Info("control metadata cache enabled", "ttl", cfg.Redis.CacheTTL)
		}
	}

	breaker := resilience.NewBreaker(&resilience.BreakerConfig{
		Name:        "riskengine-store",
		MaxFailures: cfg.Pipeline.BreakerMaxFailures,
		Timeout:     cfg.Pipeline.BreakerTimeout,
	})

	engine := pipeline.New(a.Repository, meta, breaker, log, pipeline.Config{
		ReadTimeout: cfg.Pipeline.ReadTimeout,
	})

	a.Metrics = metrics.New(opts.Registerer)

	var publisher service.EventPublisher
	if cfg.Kafka.Enabled && !opts.DisablePublishing {
		producer, err := kafka.NewProducer(cfg.Kafka)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
		}
		a.Producer = producer
		a.closers = append(a.closers, producer.Close)
		publisher = producer
		log.Info("connected to Kafka producer", "brokers", cfg.Kafka.Brokers)
	}

	a.Sync = service.NewSyncService(engine, a.Repository, publisher, a.Metrics, log, service.SyncConfig{
		RunTimeout:  cfg.Pipeline.RunTimeout,
		Concurrency: cfg.Pipeline.OrgConcurrency,
		DefaultMode: models.SelectionMode(cfg.Pipeline.DefaultMode),
		Topic:       cfg.Kafka.Topics.DashboardRefreshed,
	})
	a.Dashboard = service.NewDashboardService(a.Repository)

	return a, nil
}

// Close releases connections in reverse order of creation.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// KafkaHealth adapts kafka.Health to the readiness probe.
type KafkaHealth struct {
	Brokers []string
}

// Health dials the brokers.
func (k KafkaHealth) Health(ctx context.Context) error {
	return kafka.Health(k.Brokers)
}
