package collector

import (
	"context"
	"fmt"
	"sync"
	"time"

	"weather-dashboard/datasource"
	"weather-dashboard/models"
)

// ForecastCollector periodically prefetches forecasts for a set of locations
// so the first dashboard request for them is served warm
type ForecastCollector struct {
	sources      []datasource.ForecastSource
	outputChan   chan models.ForecastData
	errorChan    chan error
	locations    []string
	days         int
	interval     time.Duration
	fetchTimeout time.Duration
}

// NewForecastCollector creates a new collector with the provided sources
func NewForecastCollector(sources []datasource.ForecastSource, locations []string, days int) *ForecastCollector {
	return &ForecastCollector{
		sources:      sources,
		outputChan:   make(chan models.ForecastData, 100),
		errorChan:    make(chan error, 100),
		locations:    locations,
		days:         days,
		interval:     15 * time.Minute,
		fetchTimeout: 10 * time.Second,
	}
}

// SetFetchTimeout changes the timeout for API requests
func (fc *ForecastCollector) SetFetchTimeout(timeout time.Duration) {
	fc.fetchTimeout = timeout
}

// SetInterval changes how often each location is refreshed
func (fc *ForecastCollector) SetInterval(interval time.Duration) {
	if interval > 0 {
		fc.interval = interval
	}
}

// OutputChannel returns the channel that emits collected forecasts
func (fc *ForecastCollector) OutputChannel() <-chan models.ForecastData {
	return fc.outputChan
}

// ErrorChannel returns the channel that emits errors
func (fc *ForecastCollector) ErrorChannel() <-chan error {
	return fc.errorChan
}

// Start begins collecting from all sources for all locations.
// The returned function stops collection and waits for it to finish.
// Both channels are closed once every collector has returned.
func (fc *ForecastCollector) Start(ctx context.Context) func() {
	collectionCtx, cancelCollection := context.WithCancel(ctx)

	var wg sync.WaitGroup

	for _, source := range fc.sources {
		for _, location := range fc.locations {
			wg.Add(1)
			go fc.collectFromSource(collectionCtx, &wg, source, location)
		}
	}

	go func() {
		wg.Wait()
		close(fc.outputChan)
		close(fc.errorChan)
	}()

	return func() {
		cancelCollection()
		wg.Wait()
	}
}

// collectFromSource continuously collects forecasts from a single source for a location
func (fc *ForecastCollector) collectFromSource(ctx context.Context, wg *sync.WaitGroup, source datasource.ForecastSource, location string) {
	defer wg.Done()

	ticker := time.NewTicker(fc.interval)
	defer ticker.Stop()

	fc.fetchOnce(ctx, source, location)

	for {
		select {
		case <-ticker.C:
			fc.fetchOnce(ctx, source, location)
		case <-ctx.Done():
			return
		}
	}
}

// fetchOnce performs a single fetch from a source
func (fc *ForecastCollector) fetchOnce(ctx context.Context, source datasource.ForecastSource, location string) {
	fetchCtx, cancel := context.WithTimeout(ctx, fc.fetchTimeout)
	defer cancel()

	data, err := source.FetchForecast(fetchCtx, location, fc.days)
	if err != nil {
		select {
		case fc.errorChan <- fmt.Errorf("error fetching forecast from %s for %s: %w", source.Name(), location, err):
		default:
		}
		return
	}
	if data.Query == "" {
		data.Query = location
	}

	select {
	case fc.outputChan <- data:
	case <-ctx.Done():
	}
}
