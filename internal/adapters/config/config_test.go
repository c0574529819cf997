package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradelens/pkg/errors"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("POSTGRES_HOST", "localhost")
	t.Setenv("POSTGRES_USER", "tradelens")
	t.Setenv("POSTGRES_PASSWORD", "secret")
	t.Setenv("POSTGRES_DB", "tradelens")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "tradelens", cfg.App.Name)
	assert.Equal(t, 45*time.Second, cfg.AI.RequestTimeout)
	assert.Equal(t, "gemini", cfg.AI.QueryProvider)
	assert.Equal(t, "gemini-3-pro-preview", cfg.AI.AnalysisModel)
	assert.Equal(t, 2, cfg.Analysis.ForecastYears)
	assert.Equal(t, "X-User-ID", cfg.HTTP.UserIDHeader)
	assert.False(t, cfg.Redis.Enabled)
	assert.False(t, cfg.Kafka.Enabled)
	assert.Equal(t, "tradelens.activity", cfg.Kafka.ActivityTopic)
	assert.Equal(t, "host=localhost port=5432 user=tradelens password=secret dbname=tradelens sslmode=disable", cfg.Postgres.DSN())
}

func TestLoadRejectsUnknownQueryProvider(t *testing.T) {
	setRequired(t)
	t.Setenv("AI_QUERY_PROVIDER", "claude")

	_, err := Load()
	require.Error(t, err)

	var verr *errors.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "AI_QUERY_PROVIDER", verr.Field)
}

func TestValidateRepairsNonPositiveCounts(t *testing.T) {
	cfg := &Config{
		AI:       AIConfig{RequestTimeout: time.Second, QueryProvider: "openai"},
		Analysis: AnalysisConfig{ForecastYears: 0, PersistWorkers: -1},
	}

	require.NoError(t, cfg.Validate())
	assert.Equal(t, 2, cfg.Analysis.ForecastYears)
	assert.Equal(t, 1, cfg.Analysis.PersistWorkers)
	assert.Equal(t, 1, cfg.Analysis.PersistQueue)
}

func TestRedisAddr(t *testing.T) {
	assert.Equal(t, "cache:6380", RedisConfig{Host: "cache", Port: 6380}.Addr())
}
