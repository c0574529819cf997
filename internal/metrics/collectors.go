package metrics

import (
	"context"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"tradelens/pkg/logger"
)

// StoreCollector reports gauges read from the backing stores at scrape time.
// Any of the store handles may be nil when that backend is disabled.
type StoreCollector struct {
	log        *logger.Logger
	postgres   *sqlx.DB
	clickhouse driver.Conn
	redis      *redis.Client

	savedAnalyses *prometheus.Desc
	savedViews    *prometheus.Desc
	cacheKeys     *prometheus.Desc
	activity24h   *prometheus.Desc
}

func NewStoreCollector(log *logger.Logger, postgres *sqlx.DB, clickhouse driver.Conn, redis *redis.Client) *StoreCollector {
	return &StoreCollector{
		log:        log.With("component", "store_collector"),
		postgres:   postgres,
		clickhouse: clickhouse,
		redis:      redis,

		savedAnalyses: prometheus.NewDesc(
			"tradelens_saved_analyses",
			"Saved analyses by visibility",
			[]string{"visibility"}, nil, // visibility: public|private
		),
		savedViews: prometheus.NewDesc(
			"tradelens_saved_analysis_views",
			"Sum of view counts over all saved analyses",
			nil, nil,
		),
		cacheKeys: prometheus.NewDesc(
			"tradelens_cache_keys",
			"Keys in the result cache database",
			nil, nil,
		),
		activity24h: prometheus.NewDesc(
			"tradelens_activity_events_24h",
			"Activity events stored in the last 24h by type",
			[]string{"type"}, nil,
		),
	}
}

// Describe implements prometheus.Collector
func (c *StoreCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.savedAnalyses
	ch <- c.savedViews
	ch <- c.cacheKeys
	ch <- c.activity24h
}

// Collect implements prometheus.Collector
func (c *StoreCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if c.postgres != nil {
		c.collectSavedAnalyses(ctx, ch)
	}
	if c.redis != nil {
		c.collectCacheKeys(ctx, ch)
	}
	if c.clickhouse != nil {
		c.collectActivity(ctx, ch)
	}
}

func (c *StoreCollector) collectSavedAnalyses(ctx context.Context, ch chan<- prometheus.Metric) {
	type visibilityStat struct {
		IsPublic bool `db:"is_public"`
		Count    int  `db:"count"`
	}

	var stats []visibilityStat
	err := c.postgres.SelectContext(ctx, &stats, `
		SELECT is_public, COUNT(*) AS count
		FROM saved_analyses
		GROUP BY is_public
	`)
	if err != nil {
		c.log.Errorw("Failed to collect saved analysis stats", "error", err)
		return
	}

	for _, stat := range stats {
		visibility := "private"
		if stat.IsPublic {
			visibility = "public"
		}
		ch <- prometheus.MustNewConstMetric(c.savedAnalyses, prometheus.GaugeValue, float64(stat.Count), visibility)
	}

	var views int64
	if err := c.postgres.GetContext(ctx, &views, "SELECT COALESCE(SUM(view_count), 0) FROM saved_analyses"); err != nil {
		c.log.Errorw("Failed to collect view count", "error", err)
		return
	}
	ch <- prometheus.MustNewConstMetric(c.savedViews, prometheus.GaugeValue, float64(views))
}

func (c *StoreCollector) collectCacheKeys(ctx context.Context, ch chan<- prometheus.Metric) {
	size, err := c.redis.DBSize(ctx).Result()
	if err != nil {
		c.log.Errorw("Failed to collect cache size", "error", err)
		return
	}
	ch <- prometheus.MustNewConstMetric(c.cacheKeys, prometheus.GaugeValue, float64(size))
}

func (c *StoreCollector) collectActivity(ctx context.Context, ch chan<- prometheus.Metric) {
	rows, err := c.clickhouse.Query(ctx, `
		SELECT event_type, count() AS cnt
		FROM user_activity
		WHERE timestamp > now() - INTERVAL 1 DAY
		GROUP BY event_type
	`)
	if err != nil {
		c.log.Errorw("Failed to collect activity stats", "error", err)
		return
	}
	defer rows.Close()

	for rows.Next() {
		var (
			eventType string
			count     uint64
		)
		if err := rows.Scan(&eventType, &count); err != nil {
			c.log.Errorw("Failed to scan activity stats", "error", err)
			return
		}
		ch <- prometheus.MustNewConstMetric(c.activity24h, prometheus.GaugeValue, float64(count), eventType)
	}
}

// RegisterStoreCollector registers the collector with the default registry
func RegisterStoreCollector(collector *StoreCollector) {
	prometheus.MustRegister(collector)
}
