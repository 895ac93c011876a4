package weatherapi

import (
	"context"
	"net/url"
	"strings"
	"unicode/utf8"

	"weather-dashboard/datasource"
	"weather-dashboard/models"
)

type searchResult struct {
	Name    string  `json:"name"`
	Region  string  `json:"region"`
	Country string  `json:"country"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
}

// SearchLocations returns autocomplete suggestions from search.json
func (w *WeatherAPIForecastSource) SearchLocations(ctx context.Context, query string, limit int) ([]models.Location, error) {
	query = strings.TrimSpace(query)
	if utf8.RuneCountInString(query) < datasource.MinSearchLength {
		return []models.Location{}, nil
	}

	params := url.Values{}
	params.Set("key", w.apiKey)
	params.Set("q", query)

	var results []searchResult
	if err := w.get(ctx, "/search.json", params, &results); err != nil {
		return nil, err
	}

	locations := make([]models.Location, 0, len(results))
	for _, r := range results {
		if limit > 0 && len(locations) == limit {
			break
		}
		locations = append(locations, models.Location{
			Name:      r.Name,
			Region:    r.Region,
			Country:   r.Country,
			Latitude:  r.Lat,
			Longitude: r.Lon,
		})
	}
	return locations, nil
}
