package bootstrap

import (
	"context"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	goredis "github.com/redis/go-redis/v9"

	"tradelens/internal/adapters/ai"
	chclient "tradelens/internal/adapters/clickhouse"
	"tradelens/internal/adapters/config"
	errnoop "tradelens/internal/adapters/errors/noop"
	"tradelens/internal/adapters/errors/sentry"
	"tradelens/internal/adapters/kafka"
	pgclient "tradelens/internal/adapters/postgres"
	redisclient "tradelens/internal/adapters/redis"
	"tradelens/internal/api"
	"tradelens/internal/api/health"
	"tradelens/internal/consumers"
	"tradelens/internal/domain/saved"
	"tradelens/internal/domain/trade"
	"tradelens/internal/events"
	"tradelens/internal/metrics"
	chrepo "tradelens/internal/repository/clickhouse"
	pgrepo "tradelens/internal/repository/postgres"
	"tradelens/internal/services/analysis"
	"tradelens/internal/services/forecast"
	"tradelens/internal/workers"
	"tradelens/internal/workers/maintenance"
	"tradelens/internal/workers/persist"
	"tradelens/pkg/errors"
	"tradelens/pkg/logger"
)

const connectTimeout = 15 * time.Second

// ========================================
// Phase 1: Configuration & Logging
// ========================================

// MustInitConfig loads configuration, the logger and the error tracker
func (c *Container) MustInitConfig() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}
	c.Config = cfg

	if err := logger.Init(cfg.App.LogLevel, cfg.App.Env); err != nil {
		panic("failed to init logger: " + err.Error())
	}

	c.Log = logger.Get()
	c.Log.Infof("Starting %s %s in %s mode", cfg.App.Name, c.Version, cfg.App.Env)

	c.ErrorTracker = provideErrorTracker(cfg, c.Version, c.Log)
	logger.SetErrorTracker(c.ErrorTracker)

	metrics.Init()
}

// ========================================
// Phase 2: Infrastructure
// ========================================

// MustInitInfrastructure connects to the data stores. Postgres is
// required; ClickHouse and Redis are optional.
func (c *Container) MustInitInfrastructure() {
	ctx, cancel := context.WithTimeout(c.Context, connectTimeout)
	defer cancel()

	var err error

	c.Log.Info("Connecting to PostgreSQL...")
	c.PG, err = pgclient.NewClient(ctx, c.Config.Postgres)
	if err != nil {
		c.Log.Fatalf("failed to connect postgres: %v", err)
	}
	if err := pgrepo.EnsureSchema(ctx, c.PG.DB()); err != nil {
		c.Log.Fatalf("failed to apply postgres schema: %v", err)
	}
	c.Log.Info("✓ PostgreSQL connected")

	if c.Config.ClickHouse.Enabled {
		c.Log.Info("Connecting to ClickHouse...")
		c.CH, err = chclient.NewClient(ctx, c.Config.ClickHouse)
		if err != nil {
			c.Log.Fatalf("failed to connect clickhouse: %v", err)
		}
		c.Log.Info("✓ ClickHouse connected")
	} else {
		c.Log.Info("ClickHouse disabled, activity analytics unavailable")
	}

	if c.Config.Redis.Enabled {
		c.Log.Info("Connecting to Redis...")
		c.Redis, err = redisclient.NewClient(ctx, c.Config.Redis)
		if err != nil {
			c.Log.Fatalf("failed to connect redis: %v", err)
		}
		c.Log.Info("✓ Redis connected")
	} else {
		c.Log.Info("Redis disabled, analysis results are not cached")
	}

	c.registerStoreCollector()
}

// registerStoreCollector exposes store gauges for whichever backends are up
func (c *Container) registerStoreCollector() {
	var (
		chConn driver.Conn
		rdb    *goredis.Client
	)
	if c.CH != nil {
		chConn = c.CH.Conn()
	}
	if c.Redis != nil {
		rdb = c.Redis.Client()
	}
	metrics.RegisterStoreCollector(metrics.NewStoreCollector(c.Log, c.PG.DB(), chConn, rdb))
}

// ========================================
// Phase 3: Repositories
// ========================================

// MustInitRepositories creates repositories over the connected stores
func (c *Container) MustInitRepositories() {
	c.Repos.SavedAnalysis = pgrepo.NewSavedAnalysisRepository(c.PG.DB())

	if c.CH != nil {
		c.Repos.Activity = chrepo.NewActivityRepository(c.CH.Conn(), chrepo.ActivityRepositoryConfig{
			MaxBatchSize: c.Config.Analysis.ActivityBatch,
			MaxAge:       5 * time.Second,
		})
		ctx, cancel := context.WithTimeout(c.Context, connectTimeout)
		defer cancel()
		if err := c.Repos.Activity.EnsureSchema(ctx); err != nil {
			c.Log.Fatalf("failed to apply clickhouse schema: %v", err)
		}
	}

	c.Log.Info("✓ Repositories initialized")
}

// ========================================
// Phase 4: External Adapters
// ========================================

// MustInitAdapters creates the AI registry and the activity transport
func (c *Container) MustInitAdapters() {
	ctx, cancel := context.WithTimeout(c.Context, connectTimeout)
	defer cancel()

	registry, err := ai.BuildRegistry(ctx, c.Config.AI)
	if err != nil {
		c.Log.Fatalf("failed to initialize AI providers: %v", err)
	}
	c.Adapters.AIRegistry = registry

	if c.Config.Kafka.Enabled {
		c.Adapters.KafkaProducer = provideKafkaProducer(c.Config, c.Log)
		if c.Repos.Activity != nil {
			c.Adapters.ActivityConsumer = provideKafkaConsumer(c.Config, c.Config.Kafka.ActivityTopic, c.Log)
		} else {
			c.Log.Warn("Kafka enabled without ClickHouse, activity events are published but not stored")
		}
	}

	c.Adapters.Publisher = providePublisher(c.Config, c.Adapters.KafkaProducer, c.Repos.Activity, c.Log)
}

// ========================================
// Phase 5: Services
// ========================================

// MustInitServices builds the analysis pipeline and saved analyses
func (c *Container) MustInitServices() {
	cfg := c.Config

	c.Services.Forecast = forecast.NewEngine(c.Log)

	var cache analysis.Cache
	if c.Redis != nil {
		c.Services.Cache = analysis.NewResultCache(c.Redis, cfg.Redis.CacheTTL)
		cache = c.Services.Cache
	}

	c.Services.Analysis = analysis.NewService(analysis.Deps{
		Generator:  c.Adapters.AIRegistry.GetOrUnavailable(ai.ProviderNameGoogle),
		Forecaster: c.Services.Forecast,
		Cache:      cache,
		Publisher:  c.Adapters.Publisher,
		Logger:     c.Log,
	}, provideAnalysisOptions(cfg))

	provider, model := provideQueryModel(cfg.AI)
	c.Services.QueryWriter = analysis.NewQueryWriter(
		c.Adapters.AIRegistry.GetOrUnavailable(provider),
		model,
		c.Adapters.Publisher,
	)

	c.Services.Saved = saved.NewService(c.Repos.SavedAnalysis, cfg.Analysis.RecentLimit, cfg.Analysis.ListLimit)

	c.Log.Infow("✓ Services initialized",
		"analysis_model", cfg.AI.AnalysisModel,
		"query_provider", provider,
		"query_model", model,
		"cache", c.Services.Cache != nil,
	)
}

// ========================================
// Phase 6: Background processing
// ========================================

// MustInitBackground creates the persister, the activity consumer and
// the periodic workers
func (c *Container) MustInitBackground() {
	cfg := c.Config

	c.Background.Persister = persist.New(c.Services.Saved, persist.Config{
		Workers:   cfg.Analysis.PersistWorkers,
		QueueSize: cfg.Analysis.PersistQueue,
	})

	if c.Adapters.ActivityConsumer != nil {
		c.Background.ActivityConsumer = consumers.NewActivityConsumer(
			c.Adapters.ActivityConsumer,
			c.Repos.Activity,
			consumers.ActivityConsumerConfig{BatchSize: cfg.Analysis.ActivityBatch},
			c.Log,
		)
	}

	c.Background.WorkerScheduler = workers.NewScheduler(c.Log)
	c.Background.WorkerScheduler.RegisterWorker(maintenance.NewPersistMonitor(c.Background.Persister, 30*time.Second))

	c.Log.Info("✓ Background processing initialized")
}

// ========================================
// Phase 7: Application
// ========================================

// MustInitApplication builds the HTTP handler, router and server
func (c *Container) MustInitApplication() {
	cfg := c.Config

	deps := api.Deps{
		Analyzer:     c.Services.Analysis,
		Queries:      c.Services.QueryWriter,
		Forecaster:   c.Services.Forecast,
		Saved:        c.Services.Saved,
		Persister:    c.Background.Persister,
		Publisher:    c.Adapters.Publisher,
		Logger:       c.Log,
		MaxBodyBytes: cfg.HTTP.MaxBodyBytes,
	}
	if c.Repos.Activity != nil {
		deps.Activity = c.Repos.Activity
	}
	c.Application.Handler = api.NewHandler(deps)

	c.Application.HealthHandler = health.New(c.Log, cfg.App.Name, c.Version, c.provideHealthChecks()...)

	serverCfg := api.ServerConfig{
		Port:         cfg.HTTP.Port,
		ServiceName:  cfg.App.Name,
		Version:      c.Version,
		UserIDHeader: cfg.HTTP.UserIDHeader,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}
	router := api.NewRouter(serverCfg, c.Application.Handler, c.Application.HealthHandler, c.Log)
	c.Application.HTTPServer = api.NewServer(serverCfg, router, c.Log)

	c.Log.Info("✓ Application initialized")
}

// ========================================
// Providers
// ========================================

func provideErrorTracker(cfg *config.Config, release string, log *logger.Logger) errors.Tracker {
	if !cfg.ErrorTracking.Enabled || cfg.ErrorTracking.SentryDSN == "" {
		log.Info("Error tracking disabled")
		return errnoop.New()
	}

	tracker, err := sentry.New(cfg.ErrorTracking.SentryDSN, cfg.ErrorTracking.Environment, release)
	if err != nil {
		log.Warnf("Failed to initialize Sentry: %v", err)
		return errnoop.New()
	}

	log.Info("✓ Error tracking initialized (Sentry)")
	return tracker
}

func provideKafkaProducer(cfg *config.Config, log *logger.Logger) *kafka.Producer {
	producer := kafka.NewProducer(kafka.ProducerConfig{
		Brokers: cfg.Kafka.Brokers,
	})
	log.Infow("✓ Kafka producer initialized", "brokers", cfg.Kafka.Brokers)
	return producer
}

func provideKafkaConsumer(cfg *config.Config, topic string, log *logger.Logger) *kafka.Consumer {
	consumer := kafka.NewConsumer(kafka.ConsumerConfig{
		Brokers: cfg.Kafka.Brokers,
		GroupID: cfg.Kafka.GroupID,
		Topic:   topic,
	})
	log.Infow("✓ Kafka consumer initialized", "topic", topic, "group", cfg.Kafka.GroupID)
	return consumer
}

// providePublisher picks the activity transport: Kafka when enabled,
// otherwise buffered writes straight to ClickHouse, otherwise nothing.
func providePublisher(cfg *config.Config, producer *kafka.Producer, store *chrepo.ActivityRepository, log *logger.Logger) events.Publisher {
	switch {
	case producer != nil:
		log.Infow("Activity events go to Kafka", "topic", cfg.Kafka.ActivityTopic)
		return events.NewKafkaPublisher(producer, cfg.Kafka.ActivityTopic, log)
	case store != nil:
		log.Info("Activity events go directly to ClickHouse")
		return events.NewStorePublisher(store)
	default:
		log.Info("Activity tracking disabled")
		return events.NoopPublisher{}
	}
}

func provideAnalysisOptions(cfg *config.Config) analysis.Options {
	opts := analysis.Options{
		Model:         cfg.AI.AnalysisModel,
		Timeout:       cfg.AI.RequestTimeout,
		WebSearch:     cfg.AI.WebSearch,
		Reasoning:     ai.ReasoningNone,
		ForecastYears: cfg.Analysis.ForecastYears,
		Variant:       trade.SchemaBasic,
	}
	if cfg.AI.ReasoningBudget > 0 {
		opts.Reasoning = ai.ReasoningHigh
	}
	if cfg.Analysis.ExtendedSchema {
		opts.Variant = trade.SchemaExtended
	}
	return opts
}

// provideQueryModel returns the provider and model used to phrase filter
// selections as questions
func provideQueryModel(cfg config.AIConfig) (ai.ProviderName, string) {
	if ai.ProviderName(cfg.QueryProvider) == ai.ProviderNameOpenAI {
		return ai.ProviderNameOpenAI, cfg.OpenAIModel
	}
	return ai.ProviderNameGoogle, cfg.QueryModel
}

// provideHealthChecks lists the backends probed by /health and /ready.
// Only Postgres gates readiness.
func (c *Container) provideHealthChecks() []health.Check {
	checks := []health.Check{
		{Name: "postgres", Required: true, Ping: c.PG.Health},
	}
	if c.Redis != nil {
		checks = append(checks, health.Check{Name: "redis", Ping: c.Redis.Health})
	}
	if c.CH != nil {
		checks = append(checks, health.Check{Name: "clickhouse", Ping: c.CH.Health})
	}
	return checks
}
