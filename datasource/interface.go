package datasource

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"weather-dashboard/models"
)

// ErrLocationNotFound is returned when a source cannot resolve the location query
var ErrLocationNotFound = errors.New("location not found")

// ForecastSource is an interface for services that can fetch daily forecasts
type ForecastSource interface {
	// FetchForecast fetches a non-empty, date-sorted forecast for a location.
	// location is free text or "lat,lon".
	FetchForecast(ctx context.Context, location string, days int) (models.ForecastData, error)

	// Name returns the source's name
	Name() string
}

// LocationSearcher provides search-box suggestions
type LocationSearcher interface {
	SearchLocations(ctx context.Context, query string, limit int) ([]models.Location, error)
}

// StatusError reports a non-success HTTP status from an upstream API
type StatusError struct {
	Source     string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s returned status %d: %s", e.Source, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s returned status %d", e.Source, e.StatusCode)
}

// Query is a parsed location query
type Query struct {
	Text      string
	Latitude  float64
	Longitude float64
	HasCoords bool
}

// ParseQuery recognizes "lat,lon" queries; anything else is free text
func ParseQuery(location string) Query {
	q := Query{Text: strings.TrimSpace(location)}
	parts := strings.Split(q.Text, ",")
	if len(parts) != 2 {
		return q
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil || lat < -90 || lat > 90 {
		return q
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil || lon < -180 || lon > 180 {
		return q
	}
	q.Latitude, q.Longitude, q.HasCoords = lat, lon, true
	return q
}

// CoordsQuery formats coordinates the way ParseQuery reads them
func CoordsQuery(lat, lon float64) string {
	return fmt.Sprintf("%.4f,%.4f", lat, lon)
}

// Wrapper is implemented by decorators such as rate limiters and caches
type Wrapper interface {
	Unwrap() ForecastSource
}

// AsSearcher returns src as a LocationSearcher when src, or the innermost
// source it decorates, supports search
func AsSearcher(src ForecastSource) (LocationSearcher, bool) {
	searcher, ok := src.(LocationSearcher)
	if !ok {
		return nil, false
	}
	inner := src
	for {
		w, ok := inner.(Wrapper)
		if !ok {
			break
		}
		inner = w.Unwrap()
	}
	if _, ok := inner.(LocationSearcher); !ok {
		return nil, false
	}
	return searcher, true
}
