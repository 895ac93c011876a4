package cache

import (
	"context"
	"time"

	"weather-dashboard/models"
)

// Store is a TTL key-value store for forecasts
type Store interface {
	// Get returns the forecast under key; found is false on a miss or expiry
	Get(ctx context.Context, key string) (data models.ForecastData, found bool, err error)
	Set(ctx context.Context, key string, data models.ForecastData, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}
