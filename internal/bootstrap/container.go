package bootstrap

import (
	"context"
	"sync"

	"tradelens/internal/adapters/ai"
	chclient "tradelens/internal/adapters/clickhouse"
	"tradelens/internal/adapters/config"
	"tradelens/internal/adapters/kafka"
	pgclient "tradelens/internal/adapters/postgres"
	redisclient "tradelens/internal/adapters/redis"
	"tradelens/internal/api"
	"tradelens/internal/api/health"
	"tradelens/internal/consumers"
	"tradelens/internal/domain/saved"
	"tradelens/internal/events"
	chrepo "tradelens/internal/repository/clickhouse"
	pgrepo "tradelens/internal/repository/postgres"
	"tradelens/internal/services/analysis"
	"tradelens/internal/services/forecast"
	"tradelens/internal/workers"
	"tradelens/internal/workers/persist"
	"tradelens/pkg/errors"
	"tradelens/pkg/logger"
)

// Container holds all application dependencies and their lifecycle.
// Optional backends (ClickHouse, Redis, Kafka) are nil when disabled.
type Container struct {
	Config       *config.Config
	Version      string
	Log          *logger.Logger
	ErrorTracker errors.Tracker

	PG    *pgclient.Client
	CH    *chclient.Client
	Redis *redisclient.Client

	Repos       *Repositories
	Adapters    *Adapters
	Services    *Services
	Application *Application
	Background  *Background

	Lifecycle *Lifecycle
	WG        *sync.WaitGroup
	Context   context.Context
	Cancel    context.CancelFunc
}

// Repositories groups data access
type Repositories struct {
	SavedAnalysis *pgrepo.SavedAnalysisRepository
	Activity      *chrepo.ActivityRepository
}

// Adapters groups external clients
type Adapters struct {
	AIRegistry       *ai.Registry
	KafkaProducer    *kafka.Producer
	ActivityConsumer *kafka.Consumer
	Publisher        events.Publisher
}

// Services groups business logic
type Services struct {
	Forecast    *forecast.Engine
	Cache       *analysis.ResultCache
	Analysis    *analysis.Service
	QueryWriter *analysis.QueryWriter
	Saved       *saved.Service
}

// Application groups the HTTP surface
type Application struct {
	Handler       *api.Handler
	HealthHandler *health.Handler
	HTTPServer    *api.Server
}

// Background groups asynchronous processing
type Background struct {
	Persister        *persist.Persister
	ActivityConsumer *consumers.ActivityConsumer
	WorkerScheduler  *workers.Scheduler
}

// NewContainer creates an empty container
func NewContainer(version string) *Container {
	ctx, cancel := context.WithCancel(context.Background())

	return &Container{
		Version:     version,
		Repos:       &Repositories{},
		Adapters:    &Adapters{},
		Services:    &Services{},
		Application: &Application{},
		Background:  &Background{},
		Lifecycle:   NewLifecycle(),
		WG:          &sync.WaitGroup{},
		Context:     ctx,
		Cancel:      cancel,
	}
}

// MustInit initializes all components in dependency order.
// Panics or exits on any initialization error.
func (c *Container) MustInit() {
	c.MustInitConfig()
	c.MustInitInfrastructure()
	c.MustInitRepositories()
	c.MustInitAdapters()
	c.MustInitServices()
	c.MustInitBackground()
	c.MustInitApplication()
}

// Start starts background processing and the HTTP server
func (c *Container) Start() error {
	c.Log.Info("Starting all systems...")

	if c.Repos.Activity != nil {
		c.Repos.Activity.Start(c.Context)
	}

	if err := c.Background.Persister.Start(c.Context); err != nil {
		return errors.Wrap(err, "failed to start persister")
	}

	c.startConsumers()

	if err := c.Background.WorkerScheduler.Start(c.Context); err != nil {
		return errors.Wrap(err, "failed to start workers")
	}

	c.WG.Add(1)
	go func() {
		defer c.WG.Done()
		if err := c.Application.HTTPServer.Start(); err != nil {
			c.Log.Errorw("HTTP server failed", "error", err)
			c.Cancel()
		}
	}()

	c.Log.Info("✓ All systems operational")
	return nil
}

// startConsumers runs Kafka consumers in background goroutines
func (c *Container) startConsumers() {
	consumer := c.Background.ActivityConsumer
	if consumer == nil {
		return
	}

	c.WG.Add(1)
	go func() {
		defer c.WG.Done()
		if err := consumer.Start(c.Context); err != nil && c.Context.Err() == nil {
			c.Log.Errorw("Activity consumer failed", "error", err)
		}
	}()
	c.Log.Infow("✓ Event consumers started", "consumers", []string{"activity"})
}

// Shutdown stops everything in reverse dependency order
func (c *Container) Shutdown() {
	c.Log.Info("Initiating graceful shutdown...")

	c.Lifecycle.Shutdown(c.Cancel, c.WG, Components{
		HTTPServer:      c.Application.HTTPServer,
		ShutdownGrace:   c.Config.HTTP.ShutdownGrace,
		Persister:       c.Background.Persister,
		WorkerScheduler: c.Background.WorkerScheduler,
		ActivityRepo:    c.Repos.Activity,
		KafkaProducer:   c.Adapters.KafkaProducer,
		PG:              c.PG,
		CH:              c.CH,
		Redis:           c.Redis,
		ErrorTracker:    c.ErrorTracker,
	}, c.Log)
}
