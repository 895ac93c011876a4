package datasource

import (
	"context"
	"fmt"

	"weather-dashboard/models"

	"golang.org/x/time/rate"
)

// RateLimitedForecastSource wraps a ForecastSource with rate limiting
type RateLimitedForecastSource struct {
	source  ForecastSource
	limiter *rate.Limiter
	name    string
}

// NewRateLimitedForecastSource creates a new rate limited forecast source
// rps is the maximum requests per second allowed (can be fractional for less than 1 request per second)
// burst is the maximum burst size allowed
func NewRateLimitedForecastSource(source ForecastSource, rps float64, burst int) *RateLimitedForecastSource {
	if burst < 1 {
		burst = 1
	}
	return &RateLimitedForecastSource{
		source:  source,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		name:    fmt.Sprintf("%s [Rate Limited]", source.Name()),
	}
}

// FetchForecast fetches forecast data, respecting rate limits
func (r *RateLimitedForecastSource) FetchForecast(ctx context.Context, location string, days int) (models.ForecastData, error) {
	// Wait for rate limiter permission or context cancellation
	if err := r.limiter.Wait(ctx); err != nil {
		return models.ForecastData{}, fmt.Errorf("rate limit wait canceled: %w", err)
	}

	return r.source.FetchForecast(ctx, location, days)
}

// SearchLocations forwards to the wrapped source when it supports search,
// sharing the same token bucket
func (r *RateLimitedForecastSource) SearchLocations(ctx context.Context, query string, limit int) ([]models.Location, error) {
	searcher, ok := r.source.(LocationSearcher)
	if !ok {
		return nil, fmt.Errorf("%s does not support location search", r.source.Name())
	}
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait canceled: %w", err)
	}
	return searcher.SearchLocations(ctx, query, limit)
}

// Unwrap returns the wrapped source
func (r *RateLimitedForecastSource) Unwrap() ForecastSource {
	return r.source
}

// Name returns the source name
func (r *RateLimitedForecastSource) Name() string {
	return r.name
}

var (
	_ ForecastSource   = (*RateLimitedForecastSource)(nil)
	_ LocationSearcher = (*RateLimitedForecastSource)(nil)
	_ Wrapper          = (*RateLimitedForecastSource)(nil)
)
