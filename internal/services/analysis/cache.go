package analysis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"tradelens/internal/domain/trade"
	"tradelens/internal/metrics"
	"tradelens/pkg/errors"
	"tradelens/pkg/logger"
)

const cacheKeyPrefix = "analysis:v1:"

// Cache stores model-produced results keyed by query, filters and schema
// variant. Implementations report a miss as (nil, false, nil).
type Cache interface {
	Get(ctx context.Context, key string) (*trade.AnalysisResult, bool, error)
	Set(ctx context.Context, key string, result *trade.AnalysisResult) error
}

// kvStore is the subset of the redis adapter the cache needs
type kvStore interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// cachedResult wraps a result with the time it was stored
type cachedResult struct {
	Result   *trade.AnalysisResult `json:"result"`
	StoredAt time.Time             `json:"storedAt"`
}

// ResultCache is a Redis-backed Cache
type ResultCache struct {
	store kvStore
	ttl   time.Duration
	log   *logger.Logger
}

var _ Cache = (*ResultCache)(nil)

// NewResultCache creates a cache over the redis adapter
func NewResultCache(store kvStore, ttl time.Duration) *ResultCache {
	if ttl <= 0 {
		ttl = 6 * time.Hour
	}
	return &ResultCache{
		store: store,
		ttl:   ttl,
		log:   logger.Get().With("component", "analysis_cache"),
	}
}

// Get returns a cached result. Entries older than the TTL are treated as
// misses even if Redis has not expired them yet.
func (c *ResultCache) Get(ctx context.Context, key string) (*trade.AnalysisResult, bool, error) {
	var cached cachedResult
	if err := c.store.Get(ctx, key, &cached); err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			metrics.CacheLookups.WithLabelValues("miss").Inc()
			return nil, false, nil
		}
		metrics.CacheLookups.WithLabelValues("error").Inc()
		return nil, false, errors.Wrap(err, "failed to get from cache")
	}

	if cached.Result == nil || time.Since(cached.StoredAt) > c.ttl {
		_ = c.store.Delete(ctx, key)
		metrics.CacheLookups.WithLabelValues("miss").Inc()
		return nil, false, nil
	}

	metrics.CacheLookups.WithLabelValues("hit").Inc()
	c.log.Debugw("Cache hit", "key", key, "age", time.Since(cached.StoredAt))
	return cached.Result, true, nil
}

// Set stores a result under key
func (c *ResultCache) Set(ctx context.Context, key string, result *trade.AnalysisResult) error {
	if result == nil {
		return nil
	}
	entry := cachedResult{Result: result, StoredAt: time.Now().UTC()}
	if err := c.store.Set(ctx, key, entry, c.ttl); err != nil {
		return errors.Wrap(err, "failed to set cache")
	}
	c.log.Debugw("Cache set", "key", key, "ttl", c.ttl)
	return nil
}

// CacheKey derives a stable key from the normalized query and filters.
// Case and surrounding whitespace in the query do not split entries.
func CacheKey(query string, filters *trade.FilterSelection, variant trade.SchemaVariant) string {
	var b strings.Builder
	b.WriteString(variant.String())
	b.WriteByte('|')
	b.WriteString(strings.ToLower(strings.Join(strings.Fields(query), " ")))
	if filters != nil && !filters.IsDefault() {
		f := filters.Normalize()
		b.WriteString("|s=")
		b.WriteString(strings.ToLower(strings.Join(f.Sectors, ",")))
		b.WriteString("|c=")
		b.WriteString(strings.ToLower(strings.Join(f.Countries, ",")))
		b.WriteString("|t=")
		b.WriteString(string(f.TradeType))
		b.WriteString("|y=")
		b.WriteString(string(trade.YearOf(f.YearFrom)))
		b.WriteByte('-')
		b.WriteString(string(trade.YearOf(f.YearTo)))
	}

	sum := sha256.Sum256([]byte(b.String()))
	return cacheKeyPrefix + hex.EncodeToString(sum[:16])
}
