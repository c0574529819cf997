package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"tradelens/pkg/errors"
)

type Config struct {
	App           AppConfig
	HTTP          HTTPConfig
	Postgres      PostgresConfig
	ClickHouse    ClickHouseConfig
	Redis         RedisConfig
	Kafka         KafkaConfig
	AI            AIConfig
	Analysis      AnalysisConfig
	ErrorTracking ErrorTrackingConfig
}

type AppConfig struct {
	Name     string `envconfig:"APP_NAME" default:"tradelens"`
	Env      string `envconfig:"APP_ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	Debug    bool   `envconfig:"DEBUG" default:"false"`
}

type HTTPConfig struct {
	Port          int           `envconfig:"HTTP_PORT" default:"8080"`
	ReadTimeout   time.Duration `envconfig:"HTTP_READ_TIMEOUT" default:"15s"`
	WriteTimeout  time.Duration `envconfig:"HTTP_WRITE_TIMEOUT" default:"90s"` // must exceed AI_REQUEST_TIMEOUT
	UserIDHeader  string        `envconfig:"HTTP_USER_ID_HEADER" default:"X-User-ID"`
	MaxBodyBytes  int64         `envconfig:"HTTP_MAX_BODY_BYTES" default:"1048576"`
	ShutdownGrace time.Duration `envconfig:"HTTP_SHUTDOWN_GRACE" default:"20s"`
}

type PostgresConfig struct {
	Host     string `envconfig:"POSTGRES_HOST" required:"true"`
	Port     int    `envconfig:"POSTGRES_PORT" default:"5432"`
	User     string `envconfig:"POSTGRES_USER" required:"true"`
	Password string `envconfig:"POSTGRES_PASSWORD" required:"true"`
	Database string `envconfig:"POSTGRES_DB" required:"true"`
	SSLMode  string `envconfig:"POSTGRES_SSL_MODE" default:"disable"`
	MaxConns int    `envconfig:"POSTGRES_MAX_CONNS" default:"25"`
}

func (c PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

type ClickHouseConfig struct {
	Enabled  bool   `envconfig:"CLICKHOUSE_ENABLED" default:"false"`
	Host     string `envconfig:"CLICKHOUSE_HOST" default:"localhost"`
	Port     int    `envconfig:"CLICKHOUSE_PORT" default:"9000"`
	User     string `envconfig:"CLICKHOUSE_USER" default:"default"`
	Password string `envconfig:"CLICKHOUSE_PASSWORD"`
	Database string `envconfig:"CLICKHOUSE_DB" default:"tradelens"`
}

type RedisConfig struct {
	Enabled  bool          `envconfig:"REDIS_ENABLED" default:"false"`
	Host     string        `envconfig:"REDIS_HOST" default:"localhost"`
	Port     int           `envconfig:"REDIS_PORT" default:"6379"`
	Password string        `envconfig:"REDIS_PASSWORD"`
	DB       int           `envconfig:"REDIS_DB" default:"0"`
	CacheTTL time.Duration `envconfig:"REDIS_CACHE_TTL" default:"6h"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type KafkaConfig struct {
	Enabled       bool     `envconfig:"KAFKA_ENABLED" default:"false"`
	Brokers       []string `envconfig:"KAFKA_BROKERS" default:"localhost:9092"`
	GroupID       string   `envconfig:"KAFKA_GROUP_ID" default:"tradelens"`
	ActivityTopic string   `envconfig:"KAFKA_ACTIVITY_TOPIC" default:"tradelens.activity"`
}

type AIConfig struct {
	GeminiKey       string        `envconfig:"GEMINI_API_KEY"`
	AnalysisModel   string        `envconfig:"AI_ANALYSIS_MODEL" default:"gemini-3-pro-preview"`
	QueryModel      string        `envconfig:"AI_QUERY_MODEL" default:"gemini-2.5-flash"`
	RequestTimeout  time.Duration `envconfig:"AI_REQUEST_TIMEOUT" default:"45s"`
	RatePerMinute   int           `envconfig:"AI_RATE_PER_MINUTE" default:"30"`
	RateBurst       int           `envconfig:"AI_RATE_BURST" default:"5"`
	ReasoningBudget int32         `envconfig:"AI_REASONING_BUDGET" default:"8192"`
	WebSearch       bool          `envconfig:"AI_WEB_SEARCH" default:"true"`

	// Provider for the filter-to-query writer: gemini or openai
	QueryProvider string `envconfig:"AI_QUERY_PROVIDER" default:"gemini"`
	OpenAIKey     string `envconfig:"OPENAI_API_KEY"`
	OpenAIModel   string `envconfig:"OPENAI_QUERY_MODEL" default:"gpt-4o-mini"`
}

type AnalysisConfig struct {
	ForecastYears   int  `envconfig:"ANALYSIS_FORECAST_YEARS" default:"2"`
	ExtendedSchema  bool `envconfig:"ANALYSIS_EXTENDED_SCHEMA" default:"true"`
	PersistWorkers  int  `envconfig:"ANALYSIS_PERSIST_WORKERS" default:"2"`
	PersistQueue    int  `envconfig:"ANALYSIS_PERSIST_QUEUE" default:"64"`
	ActivityBatch   int  `envconfig:"ANALYSIS_ACTIVITY_BATCH" default:"200"`
	RecentLimit     int  `envconfig:"ANALYSIS_RECENT_LIMIT" default:"5"`
	ListLimit       int  `envconfig:"ANALYSIS_LIST_LIMIT" default:"50"`
}

type ErrorTrackingConfig struct {
	Enabled     bool   `envconfig:"ERROR_TRACKING_ENABLED" default:"false"`
	Provider    string `envconfig:"ERROR_TRACKING_PROVIDER" default:"sentry"`
	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"SENTRY_ENVIRONMENT" default:"production"`
}

// Load reads configuration from environment variables.
// A .env file in the working directory is applied first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to process env config")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks cross-field constraints envconfig cannot express
func (c *Config) Validate() error {
	if c.AI.RequestTimeout <= 0 {
		return errors.NewValidationError("AI_REQUEST_TIMEOUT", "must be positive", c.AI.RequestTimeout)
	}
	switch c.AI.QueryProvider {
	case "gemini", "openai":
	default:
		return errors.NewValidationError("AI_QUERY_PROVIDER", "must be gemini or openai", c.AI.QueryProvider)
	}
	if c.Analysis.ForecastYears < 1 {
		c.Analysis.ForecastYears = 2
	}
	if c.Analysis.PersistWorkers < 1 {
		c.Analysis.PersistWorkers = 1
	}
	if c.Analysis.PersistQueue < 1 {
		c.Analysis.PersistQueue = 1
	}
	return nil
}
