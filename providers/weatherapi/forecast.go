package weatherapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"weather-dashboard/datasource"
	"weather-dashboard/logger"
	"weather-dashboard/models"
)

const (
	// DefaultBaseURL is the WeatherAPI.com v1 endpoint
	DefaultBaseURL = "https://api.weatherapi.com/v1"
	// MaxForecastDays is the longest forecast the API serves
	MaxForecastDays = 14

	errCodeNoLocation = 1006
)

// Config holds WeatherAPI.com client settings
type Config struct {
	APIKey  string
	BaseURL string
	Lang    string
	Timeout time.Duration
}

// WeatherAPIForecastSource provides forecasts from WeatherAPI.com
type WeatherAPIForecastSource struct {
	apiKey  string
	baseURL string
	lang    string
	client  *http.Client
	logger  *logger.Logger
}

// Ensure WeatherAPIForecastSource implements ForecastSource and LocationSearcher
var (
	_ datasource.ForecastSource   = (*WeatherAPIForecastSource)(nil)
	_ datasource.LocationSearcher = (*WeatherAPIForecastSource)(nil)
)

// NewWeatherAPIForecastSource creates a new forecast source
func NewWeatherAPIForecastSource(cfg Config, log *logger.Logger) *WeatherAPIForecastSource {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &WeatherAPIForecastSource{
		apiKey:  cfg.APIKey,
		baseURL: cfg.BaseURL,
		lang:    cfg.Lang,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: log.Named("weatherapi"),
	}
}

// Name returns the provider name
func (w *WeatherAPIForecastSource) Name() string {
	return "WeatherAPI"
}

type condition struct {
	Text string `json:"text"`
	Icon string `json:"icon"`
}

// WeatherAPIForecastResponse represents the API response structure
type WeatherAPIForecastResponse struct {
	Location struct {
		Name    string  `json:"name"`
		Region  string  `json:"region"`
		Country string  `json:"country"`
		Lat     float64 `json:"lat"`
		Lon     float64 `json:"lon"`
	} `json:"location"`
	Current struct {
		LastUpdatedEpoch int64     `json:"last_updated_epoch"`
		TempC            float64   `json:"temp_c"`
		WindKph          float64   `json:"wind_kph"`
		PressureMb       float64   `json:"pressure_mb"`
		Humidity         float64   `json:"humidity"`
		Condition        condition `json:"condition"`
	} `json:"current"`
	Forecast struct {
		ForecastDay []struct {
			Date string `json:"date"`
			Day  struct {
				AvgTempC    float64   `json:"avgtemp_c"`
				MaxWindKph  float64   `json:"maxwind_kph"`
				AvgHumidity float64   `json:"avghumidity"`
				Condition   condition `json:"condition"`
			} `json:"day"`
		} `json:"forecastday"`
	} `json:"forecast"`
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// FetchForecast gets forecast data from WeatherAPI.com
func (w *WeatherAPIForecastSource) FetchForecast(ctx context.Context, location string, days int) (models.ForecastData, error) {
	if days < 1 {
		days = 1
	}
	if days > MaxForecastDays {
		days = MaxForecastDays
	}

	params := url.Values{}
	params.Set("key", w.apiKey)
	params.Set("q", location)
	params.Set("days", strconv.Itoa(days))
	params.Set("aqi", "no")
	params.Set("alerts", "no")
	if w.lang != "" {
		params.Set("lang", w.lang)
	}

	var forecastResp WeatherAPIForecastResponse
	if err := w.get(ctx, "/forecast.json", params, &forecastResp); err != nil {
		return models.ForecastData{}, err
	}

	forecastData := models.ForecastData{
		Provider: w.Name(),
		Query:    location,
		Location: models.Location{
			Name:      forecastResp.Location.Name,
			Region:    forecastResp.Location.Region,
			Country:   forecastResp.Location.Country,
			Latitude:  forecastResp.Location.Lat,
			Longitude: forecastResp.Location.Lon,
		},
		Current: &models.CurrentConditions{
			TempC:         forecastResp.Current.TempC,
			PressureMb:    forecastResp.Current.PressureMb,
			HumidityPct:   forecastResp.Current.Humidity,
			WindKph:       forecastResp.Current.WindKph,
			ConditionText: forecastResp.Current.Condition.Text,
			ConditionIcon: forecastResp.Current.Condition.Icon,
			Observed:      time.Unix(forecastResp.Current.LastUpdatedEpoch, 0),
		},
		Availability: models.Live,
		Updated:      time.Now(),
	}

	for _, fd := range forecastResp.Forecast.ForecastDay {
		date, err := models.ParseDate(fd.Date)
		if err != nil {
			return models.ForecastData{}, fmt.Errorf("failed to parse forecast date: %w", err)
		}
		forecastData.Days = append(forecastData.Days, models.DayRecord{
			Date:          date,
			AvgTempC:      fd.Day.AvgTempC,
			MaxWindKph:    fd.Day.MaxWindKph,
			HumidityPct:   fd.Day.AvgHumidity,
			ConditionText: fd.Day.Condition.Text,
			ConditionIcon: fd.Day.Condition.Icon,
		})
	}

	if len(forecastData.Days) == 0 {
		return models.ForecastData{}, fmt.Errorf("WeatherAPI returned no forecast days for %q", location)
	}
	forecastData.SortDays()
	return forecastData, nil
}

// get performs a GET against the API and decodes a 200 response into out
func (w *WeatherAPIForecastSource) get(ctx context.Context, path string, params url.Values, out interface{}) error {
	apiURL := w.baseURL + path + "?" + params.Encode()
	w.logger.Debug("Making WeatherAPI request", logger.String("path", path), logger.String("q", params.Get("q")))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	rawData, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr errorResponse
		_ = json.Unmarshal(rawData, &apiErr)
		if resp.StatusCode == http.StatusBadRequest && apiErr.Error.Code == errCodeNoLocation {
			return fmt.Errorf("%w: %s", datasource.ErrLocationNotFound, params.Get("q"))
		}
		return &datasource.StatusError{Source: w.Name(), StatusCode: resp.StatusCode, Message: apiErr.Error.Message}
	}

	if err := json.Unmarshal(rawData, out); err != nil {
		return fmt.Errorf("failed to parse API response: %w", err)
	}
	return nil
}
