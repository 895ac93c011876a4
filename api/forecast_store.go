package api

import (
	"strings"
	"sync"
	"time"

	"weather-dashboard/models"
)

// ForecastStore holds the latest forecast windows organized by query and provider
type ForecastStore struct {
	data  map[string]map[string]models.ForecastData // key is normalized query, then provider
	mutex sync.RWMutex
	now   func() time.Time
}

// NewForecastStore creates a new in-memory forecast data store
func NewForecastStore() *ForecastStore {
	return &ForecastStore{
		data: make(map[string]map[string]models.ForecastData),
		now:  time.Now,
	}
}

func storeKey(query string) string {
	return strings.ToLower(strings.TrimSpace(query))
}

// UpdateForecast adds or updates forecast data for the query that produced it
func (s *ForecastStore) UpdateForecast(data models.ForecastData) {
	key := storeKey(data.Query)
	if key == "" {
		key = storeKey(data.Location.Name)
	}
	if key == "" {
		return
	}
	if data.Updated.IsZero() {
		data.Updated = s.now()
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, exists := s.data[key]; !exists {
		s.data[key] = make(map[string]models.ForecastData)
	}
	s.data[key][data.Provider] = data
}

// GetForecastByQuery retrieves all forecast data stored for a query
func (s *ForecastStore) GetForecastByQuery(query string) ([]models.ForecastData, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	providerMap, exists := s.data[storeKey(query)]
	if !exists {
		return nil, false
	}

	forecasts := make([]models.ForecastData, 0, len(providerMap))
	for _, forecast := range providerMap {
		forecasts = append(forecasts, forecast)
	}
	return forecasts, true
}

// GetForecastByProvider retrieves forecast data for a specific query and provider
func (s *ForecastStore) GetForecastByProvider(query, provider string) (models.ForecastData, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	providerMap, exists := s.data[storeKey(query)]
	if !exists {
		return models.ForecastData{}, false
	}
	forecast, exists := providerMap[provider]
	return forecast, exists
}

// Latest returns the most recently updated window for a query holding at least minDays days
func (s *ForecastStore) Latest(query string, minDays int) (models.ForecastData, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var (
		best  models.ForecastData
		found bool
	)
	for _, forecast := range s.data[storeKey(query)] {
		if len(forecast.Days) < minDays {
			continue
		}
		if !found || forecast.Updated.After(best.Updated) {
			best = forecast
			found = true
		}
	}
	return best, found
}

// GetAllForecastQueries returns every query with forecast data
func (s *ForecastStore) GetAllForecastQueries() []string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	queries := make([]string, 0, len(s.data))
	for q := range s.data {
		queries = append(queries, q)
	}
	return queries
}

// PruneOldForecasts removes forecasts older than the specified duration
func (s *ForecastStore) PruneOldForecasts(maxAge time.Duration) int {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	cutoff := s.now().Add(-maxAge)
	prunedCount := 0

	for query, providers := range s.data {
		for provider, forecast := range providers {
			if forecast.Updated.Before(cutoff) {
				delete(providers, provider)
				prunedCount++
			}
		}
		if len(providers) == 0 {
			delete(s.data, query)
		}
	}

	return prunedCount
}
