// Package app initializes and holds long-lived application services, acting
// as a dependency injection container for the pipeline commands.
package app

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/JakeFAU/leasecar-etl/internal/api"
	"github.com/JakeFAU/leasecar-etl/internal/clock/system"
	"github.com/JakeFAU/leasecar-etl/internal/config"
	"github.com/JakeFAU/leasecar-etl/internal/hash/sha256"
	"github.com/JakeFAU/leasecar-etl/internal/id/uuid"
	"github.com/JakeFAU/leasecar-etl/internal/metrics"
	"github.com/JakeFAU/leasecar-etl/internal/pipeline"
	"github.com/JakeFAU/leasecar-etl/internal/publisher/memory"
	pubsubpublisher "github.com/JakeFAU/leasecar-etl/internal/publisher/pubsub"
	"github.com/JakeFAU/leasecar-etl/internal/report"
	"github.com/JakeFAU/leasecar-etl/internal/report/sinks"
	"github.com/JakeFAU/leasecar-etl/internal/storage"
)

// DefaultTopic is used for stage reports when no Pub/Sub topic is set.
const DefaultTopic = "leasecar-stages"

// App holds the shared services. It is built once per process and closed
// by the root command after the subcommand returns.
type App struct {
	cfg      config.Config
	logger   *zap.Logger
	registry *prometheus.Registry
	metrics  *metrics.Collectors
	reporter report.Reporter
	store    *storage.Backend
	history  *memory.Publisher
	pubsub   *pubsubpublisher.Publisher
	clock    *system.Clock
	ids      *uuid.Generator
	hasher   *sha256.Hasher

	stopServer context.CancelFunc
	serverDone chan error
}

// New wires every service named by cfg. It fails fast when a configured
// backend cannot be reached.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("initializing application services")

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	promSink, err := sinks.NewPrometheusSink(registry)
	if err != nil {
		return nil, fmt.Errorf("init report sink: %w", err)
	}

	store, err := storage.Open(ctx, cfg.Storage, logger.Named("storage"))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	a := &App{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		metrics:  metrics.New(registry),
		reporter: report.Multi{sinks.NewLogSink(logger.Named("report")), promSink},
		store:    store,
		history:  memory.New(),
		clock:    system.New(),
		ids:      uuid.New(),
		hasher:   sha256.New(),
	}

	if cfg.PubSub.ProjectID != "" {
		pub, err := pubsubpublisher.New(ctx, cfg.PubSub.ProjectID, cfg.PubSub.TopicName)
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("failed to initialize publisher: %w", err)
		}
		logger.Info("publishing stage reports to pubsub",
			zap.String("project", cfg.PubSub.ProjectID),
			zap.String("topic", cfg.PubSub.TopicName),
		)
		a.pubsub = pub
	}

	if cfg.Metrics.ListenAddr != "" {
		a.startServer(cfg.Metrics.ListenAddr)
	}

	logger.Info("application services initialized", zap.String("storage", store.Name))
	return a, nil
}

func (a *App) startServer(addr string) {
	ctx, cancel := context.WithCancel(context.Background())
	a.stopServer = cancel
	a.serverDone = make(chan error, 1)
	srv := api.NewServer(a.metrics, a.history, a.logger.Named("api"))
	go func() {
		a.serverDone <- srv.Serve(ctx, addr)
	}()
}

// Config returns the configuration the app was built from.
func (a *App) Config() config.Config { return a.cfg }

// Logger returns the root logger.
func (a *App) Logger() *zap.Logger { return a.logger }

// Metrics returns the shared collectors.
func (a *App) Metrics() *metrics.Collectors { return a.metrics }

// Registry returns the Prometheus registry backing Metrics.
func (a *App) Registry() *prometheus.Registry { return a.registry }

// Reporter returns the fan-out reporter used by every stage.
func (a *App) Reporter() report.Reporter { return a.reporter }

// Store returns the configured artifact store.
func (a *App) Store() pipeline.ArtifactStore { return a.store }

// Clock returns the wall clock.
func (a *App) Clock() pipeline.Clock { return a.clock }

// IDs returns the run identifier generator.
func (a *App) IDs() pipeline.IDGenerator { return a.ids }

// Hasher returns the artifact checksum function.
func (a *App) Hasher() pipeline.Hasher { return a.hasher }

// Reports returns the stage reports published by this process.
func (a *App) Reports() []pipeline.StageReport { return a.history.Reports() }

// PublishReport records rep locally and, when configured, on Pub/Sub.
// Notification failures are logged, never fatal.
func (a *App) PublishReport(ctx context.Context, rep pipeline.StageReport) {
	if _, err := a.history.Publish(ctx, DefaultTopic, rep); err != nil {
		a.logger.Warn("record stage report failed", zap.Error(err))
	}
	if a.pubsub == nil {
		return
	}
	id, err := a.pubsub.Publish(ctx, a.cfg.PubSub.TopicName, rep)
	if err != nil {
		a.logger.Warn("publish stage report failed", zap.String("stage", string(rep.Stage)), zap.Error(err))
		return
	}
	a.logger.Debug("stage report published", zap.String("message_id", id))
}

// Close pushes metrics if a gateway is configured, stops the operator
// server and releases every client.
func (a *App) Close(ctx context.Context) {
	a.logger.Info("shutting down application services")

	if err := a.metrics.Push(ctx, a.cfg.Metrics.PushgatewayURL, a.cfg.Metrics.JobName); err != nil {
		a.logger.Warn("error pushing metrics", zap.Error(err))
	}
	if a.stopServer != nil {
		a.stopServer()
		if err := <-a.serverDone; err != nil {
			a.logger.Warn("error stopping operator server", zap.Error(err))
		}
	}
	if a.pubsub != nil {
		if err := a.pubsub.Close(); err != nil {
			a.logger.Warn("error closing publisher", zap.Error(err))
		}
	}
	if err := a.store.Close(); err != nil {
		a.logger.Warn("error closing storage", zap.Error(err))
	}
	if err := a.logger.Sync(); err != nil {
		a.logger.Warn("error syncing logger on shutdown", zap.Error(err))
	}
}
