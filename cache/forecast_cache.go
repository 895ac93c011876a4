package cache

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"weather-dashboard/datasource"
	"weather-dashboard/logger"
	"weather-dashboard/metrics"
	"weather-dashboard/models"
)

// CachedForecastSource wraps a ForecastSource and adds caching functionality.
// Only successful fetches are stored.
type CachedForecastSource struct {
	source         datasource.ForecastSource
	store          Store
	cacheDuration  time.Duration
	logger         *logger.Logger
	mutex          sync.Mutex
	cacheHitCount  int
	cacheMissCount int
}

// NewCachedForecastSource creates a new cached wrapper around a forecast source
func NewCachedForecastSource(source datasource.ForecastSource, store Store, cacheDuration time.Duration, log *logger.Logger) *CachedForecastSource {
	if log == nil {
		log = logger.NewNop()
	}
	return &CachedForecastSource{
		source:        source,
		store:         store,
		cacheDuration: cacheDuration,
		logger:        log.Named("cache"),
	}
}

// Name returns the name of the underlying forecast source with [Cached] suffix
func (c *CachedForecastSource) Name() string {
	return c.source.Name() + " [Cached]"
}

// Key combines the source name with the normalized location and days, so
// several sources can share one store
func Key(source, location string, days int) string {
	return fmt.Sprintf("%s:%s:%d", strings.ToLower(source), strings.ToLower(strings.TrimSpace(location)), days)
}

// FetchForecast fetches forecast data, using cache when available. A
// failing store degrades to a direct fetch.
func (c *CachedForecastSource) FetchForecast(ctx context.Context, location string, days int) (models.ForecastData, error) {
	cacheKey := Key(c.source.Name(), location, days)

	entry, found, err := c.store.Get(ctx, cacheKey)
	if err != nil {
		c.logger.Warn("Cache read failed", logger.String("key", cacheKey), logger.Error(err))
	}
	if found {
		c.count(true)
		c.logger.Debug("Forecast cache hit",
			logger.String("location", location),
			logger.Int("days", days),
			logger.String("source", c.source.Name()),
			logger.Duration("age", time.Since(entry.Updated).Round(time.Second)))
		return entry, nil
	}

	c.count(false)
	c.logger.Debug("Forecast cache miss, fetching fresh data",
		logger.String("location", location),
		logger.Int("days", days),
		logger.String("source", c.source.Name()))

	forecast, err := c.source.FetchForecast(ctx, location, days)
	if err != nil {
		return models.ForecastData{}, err
	}

	if err := c.store.Set(ctx, cacheKey, forecast, c.cacheDuration); err != nil {
		c.logger.Warn("Cache write failed", logger.String("key", cacheKey), logger.Error(err))
	}
	return forecast, nil
}

func (c *CachedForecastSource) count(hit bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if hit {
		c.cacheHitCount++
		metrics.CacheLookups.WithLabelValues("hit").Inc()
	} else {
		c.cacheMissCount++
		metrics.CacheLookups.WithLabelValues("miss").Inc()
	}
}

// SearchLocations forwards to the wrapped source uncached
func (c *CachedForecastSource) SearchLocations(ctx context.Context, query string, limit int) ([]models.Location, error) {
	searcher, ok := c.source.(datasource.LocationSearcher)
	if !ok {
		return nil, fmt.Errorf("%s does not support location search", c.source.Name())
	}
	return searcher.SearchLocations(ctx, query, limit)
}

// Unwrap returns the wrapped source
func (c *CachedForecastSource) Unwrap() datasource.ForecastSource {
	return c.source
}

// CacheStats returns statistics about cache hits and misses
func (c *CachedForecastSource) CacheStats() (hits, misses int) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.cacheHitCount, c.cacheMissCount
}

// Ensure CachedForecastSource implements ForecastSource
var (
	_ datasource.ForecastSource   = (*CachedForecastSource)(nil)
	_ datasource.LocationSearcher = (*CachedForecastSource)(nil)
	_ datasource.Wrapper          = (*CachedForecastSource)(nil)
)
