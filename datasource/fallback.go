package datasource

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"weather-dashboard/logger"
	"weather-dashboard/metrics"
	"weather-dashboard/models"
)

// MinSearchLength is the shortest query that produces suggestions
const MinSearchLength = 3

// FallbackSource tries live sources in order, then degrades to demo data
// or the predefined location table. Every result is tagged with its
// Availability.
type FallbackSource struct {
	live        []ForecastSource
	searchers   []LocationSearcher
	demo        *DemoSource
	demoEnabled bool
	table       *LocationTable
	logger      *logger.Logger
}

// FallbackOptions configures a FallbackSource
type FallbackOptions struct {
	// DemoEnabled serves demo data when every live source is unreachable
	DemoEnabled bool
	// Table resolves names offline; defaults to PredefinedLocations
	Table *LocationTable
	// Demo synthesizes non-live windows; defaults to a DemoSource over Table
	Demo *DemoSource
}

// NewFallbackSource creates the availability chain over live sources
func NewFallbackSource(live []ForecastSource, opts FallbackOptions, log *logger.Logger) *FallbackSource {
	if opts.Table == nil {
		opts.Table = PredefinedLocations()
	}
	if opts.Demo == nil {
		opts.Demo = NewDemoSource(opts.Table)
	}
	if log == nil {
		log = logger.NewNop()
	}
	f := &FallbackSource{
		live:        live,
		demo:        opts.Demo,
		demoEnabled: opts.DemoEnabled,
		table:       opts.Table,
		logger:      log.Named("fallback"),
	}
	for _, src := range live {
		if s, ok := AsSearcher(src); ok {
			f.searchers = append(f.searchers, s)
		}
	}
	return f
}

// Name returns the source name
func (f *FallbackSource) Name() string {
	return "Fallback"
}

// Sources returns the names of the live sources in try order
func (f *FallbackSource) Sources() []string {
	names := make([]string, 0, len(f.live))
	for _, src := range f.live {
		names = append(names, src.Name())
	}
	return names
}

// FetchForecast walks the chain. Cancellation or deadline of ctx is
// returned as is and never triggers a fallback.
func (f *FallbackSource) FetchForecast(ctx context.Context, location string, days int) (models.ForecastData, error) {
	var (
		lastErr  error
		notFound bool
	)

	for _, src := range f.live {
		data, err := src.FetchForecast(ctx, location, days)
		if err == nil {
			if len(data.Days) == 0 {
				err = fmt.Errorf("%s returned an empty forecast", src.Name())
			} else {
				metrics.SourceFetches.WithLabelValues(src.Name(), "ok").Inc()
				data.Availability = models.Live
				data.SortDays()
				return f.served(data), nil
			}
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			metrics.SourceFetches.WithLabelValues(src.Name(), "canceled").Inc()
			return models.ForecastData{}, fmt.Errorf("failed to fetch forecast for %q: %w", location, ctxErr)
		}

		lastErr = err
		if errors.Is(err, ErrLocationNotFound) {
			notFound = true
			metrics.SourceFetches.WithLabelValues(src.Name(), "not_found").Inc()
			f.logger.Debug("Source does not know location",
				logger.String("source", src.Name()),
				logger.String("location", location))
			continue
		}
		metrics.SourceFetches.WithLabelValues(src.Name(), "error").Inc()
		f.logger.Warn("Source unavailable",
			logger.String("source", src.Name()),
			logger.String("location", location),
			logger.Error(err))
	}

	if !notFound && f.demoEnabled {
		data, err := f.demo.FetchForecast(ctx, location, days)
		if err != nil {
			return models.ForecastData{}, err
		}
		f.logger.Info("Serving demo forecast",
			logger.String("location", location),
			logger.String("resolved", data.Location.DisplayName()))
		return f.served(data), nil
	}

	if loc, ok := f.table.Lookup(location); ok {
		data := f.demo.Window(location, loc, days, models.LocalFallback)
		f.logger.Info("Serving predefined location",
			logger.String("location", location),
			logger.String("resolved", loc.DisplayName()))
		return f.served(data), nil
	}

	if lastErr == nil || notFound {
		return models.ForecastData{}, fmt.Errorf("%w: %q", ErrLocationNotFound, location)
	}
	return models.ForecastData{}, fmt.Errorf("all sources failed for %q: %w", location, lastErr)
}

func (f *FallbackSource) served(data models.ForecastData) models.ForecastData {
	metrics.ForecastAvailability.WithLabelValues(string(data.Availability)).Inc()
	return data
}

// SearchLocations asks live searchers first and falls back to the table.
// Queries shorter than MinSearchLength return an empty list.
func (f *FallbackSource) SearchLocations(ctx context.Context, query string, limit int) ([]models.Location, error) {
	query = strings.TrimSpace(query)
	if utf8.RuneCountInString(query) < MinSearchLength {
		return []models.Location{}, nil
	}

	for _, s := range f.searchers {
		results, err := s.SearchLocations(ctx, query, limit)
		if err == nil && len(results) > 0 {
			return results, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if err != nil {
			f.logger.Warn("Location search failed", logger.String("query", query), logger.Error(err))
		}
	}
	return f.table.Search(query, limit), nil
}

var (
	_ ForecastSource   = (*FallbackSource)(nil)
	_ LocationSearcher = (*FallbackSource)(nil)
)
