package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"weather-dashboard/models"
)

// MemoryStore keeps forecasts in process
type MemoryStore struct {
	cache *gocache.Cache
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates a store whose entries default to ttl and are
// swept every cleanupInterval
func NewMemoryStore(ttl, cleanupInterval time.Duration) *MemoryStore {
	return &MemoryStore{cache: gocache.New(ttl, cleanupInterval)}
}

// Get returns a copy of the cached forecast
func (m *MemoryStore) Get(_ context.Context, key string) (models.ForecastData, bool, error) {
	cached, found := m.cache.Get(key)
	if !found {
		return models.ForecastData{}, false, nil
	}
	data := cached.(models.ForecastData)
	data.Days = append([]models.DayRecord(nil), data.Days...)
	return data, true, nil
}

// Set stores the forecast; a zero ttl uses the store default
func (m *MemoryStore) Set(_ context.Context, key string, data models.ForecastData, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = gocache.DefaultExpiration
	}
	data.Days = append([]models.DayRecord(nil), data.Days...)
	m.cache.Set(key, data, ttl)
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.cache.Delete(key)
	return nil
}

// Len returns the number of entries, expired ones included until swept
func (m *MemoryStore) Len() int {
	return m.cache.ItemCount()
}

func (m *MemoryStore) Close() error {
	m.cache.Flush()
	return nil
}
