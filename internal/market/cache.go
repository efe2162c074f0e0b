package market

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// SeriesCache provides Redis-based caching for benchmark close series.
// A nil cache is valid and behaves as a permanent miss, so Redis stays an
// optional dependency.
type SeriesCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSeriesCache creates a series cache. Returns nil when client is nil.
func NewSeriesCache(client *redis.Client, ttl time.Duration) *SeriesCache {
	if client == nil {
		return nil
	}
	if ttl == 0 {
		ttl = 5 * time.Minute
	}
	return &SeriesCache{client: client, ttl: ttl}
}

func (c *SeriesCache) buildKey(symbol string, days int) string {
	return fmt.Sprintf("riskgate:series:%s:%d", symbol, days)
}

// Get retrieves a cached series. Cache errors degrade to a miss.
func (c *SeriesCache) Get(ctx context.Context, symbol string, days int) (Series, bool) {
	if c == nil || c.client == nil {
		return Series{}, false
	}

	cacheCtx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()

	cached, err := c.client.Get(cacheCtx, c.buildKey(symbol, days)).Result()
	if err != nil {
		if err != redis.Nil {
			log.Warn().Err(err).Str("symbol", symbol).Msg("Series cache read failed")
		}
		return Series{}, false
	}

	var series Series
	if err := json.Unmarshal([]byte(cached), &series); err != nil {
		log.Warn().Err(err).Str("symbol", symbol).Msg("Series cache entry corrupt, ignoring")
		return Series{}, false
	}
	return series, true
}

// Set stores a series with the configured TTL. Failures are logged, never
// propagated: the cache is an optimization, not a source of truth.
func (c *SeriesCache) Set(ctx context.Context, symbol string, days int, series Series) {
	if c == nil || c.client == nil {
		return
	}

	payload, err := json.Marshal(series)
	if err != nil {
		log.Warn().Err(err).Str("symbol", symbol).Msg("Failed to marshal series for cache")
		return
	}

	cacheCtx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()

	if err := c.client.Set(cacheCtx, c.buildKey(symbol, days), payload, c.ttl).Err(); err != nil {
		log.Warn().Err(err).Str("symbol", symbol).Msg("Series cache write failed")
	}
}

// CachedProvider layers a SeriesCache over another Provider.
type CachedProvider struct {
	inner Provider
	cache *SeriesCache
}

// NewCachedProvider wraps a provider with a cache. A nil cache passes every
// call straight through.
func NewCachedProvider(inner Provider, cache *SeriesCache) *CachedProvider {
	return &CachedProvider{inner: inner, cache: cache}
}

// CloseSeries returns the cached series when fresh, otherwise fetches and
// repopulates the cache. Empty series are not cached.
func (p *CachedProvider) CloseSeries(ctx context.Context, symbol string, days int) (Series, error) {
	if series, ok := p.cache.Get(ctx, symbol, days); ok {
		log.Debug().Str("symbol", symbol).Int("days", days).Msg("Series cache hit")
		return series, nil
	}

	series, err := p.inner.CloseSeries(ctx, symbol, days)
	if err != nil {
		return Series{}, err
	}
	if !series.Empty() {
		p.cache.Set(ctx, symbol, days, series)
	}
	return series, nil
}
