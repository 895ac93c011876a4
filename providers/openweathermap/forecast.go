package openweathermap

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"weather-dashboard/datasource"
	"weather-dashboard/logger"
	"weather-dashboard/models"
)

// DefaultBaseURL is the OpenWeatherMap 2.5 API endpoint
const DefaultBaseURL = "https://api.openweathermap.org/data/2.5"

// Config holds OpenWeatherMap client settings
type Config struct {
	APIKey  string
	BaseURL string
	Lang    string
	Timeout time.Duration
}

// OpenWeatherMapForecastSource provides forecasts from OpenWeatherMap
type OpenWeatherMapForecastSource struct {
	apiKey  string
	baseURL string
	lang    string
	client  *http.Client
	logger  *logger.Logger
}

// Ensure OpenWeatherMapForecastSource implements ForecastSource
var _ datasource.ForecastSource = (*OpenWeatherMapForecastSource)(nil)

// NewOpenWeatherMapForecastSource creates a new forecast source
func NewOpenWeatherMapForecastSource(cfg Config, log *logger.Logger) *OpenWeatherMapForecastSource {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &OpenWeatherMapForecastSource{
		apiKey:  cfg.APIKey,
		baseURL: cfg.BaseURL,
		lang:    cfg.Lang,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: log.Named("openweathermap"),
	}
}

// Name returns the provider name
func (o *OpenWeatherMapForecastSource) Name() string {
	return "OpenWeatherMap"
}

type forecastEntry struct {
	Dt   int64 `json:"dt"`
	Main struct {
		Temp     float64 `json:"temp"`
		Pressure float64 `json:"pressure"`
		Humidity float64 `json:"humidity"`
	} `json:"main"`
	Weather []struct {
		Description string `json:"description"`
		Icon        string `json:"icon"`
	} `json:"weather"`
	Wind struct {
		Speed float64 `json:"speed"` // m/s with units=metric
	} `json:"wind"`
}

// OpenWeatherMapForecastResponse represents the API response structure
type OpenWeatherMapForecastResponse struct {
	City struct {
		Name    string `json:"name"`
		Country string `json:"country"`
		Coord   struct {
			Lat float64 `json:"lat"`
			Lon float64 `json:"lon"`
		} `json:"coord"`
		Timezone int `json:"timezone"` // offset from UTC in seconds
	} `json:"city"`
	List []forecastEntry `json:"list"`
}

// FetchForecast gets the 5 day / 3 hour forecast and folds it into days
func (o *OpenWeatherMapForecastSource) FetchForecast(ctx context.Context, location string, days int) (models.ForecastData, error) {
	params := url.Values{}
	params.Set("appid", o.apiKey)
	params.Set("units", "metric")
	if o.lang != "" {
		params.Set("lang", o.lang)
	}
	if q := datasource.ParseQuery(location); q.HasCoords {
		params.Set("lat", strconv.FormatFloat(q.Latitude, 'f', -1, 64))
		params.Set("lon", strconv.FormatFloat(q.Longitude, 'f', -1, 64))
	} else {
		params.Set("q", location)
	}

	apiURL := o.baseURL + "/forecast?" + params.Encode()
	o.logger.Debug("Making OpenWeatherMap forecast request", logger.String("location", location))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return models.ForecastData{}, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return models.ForecastData{}, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	rawData, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.ForecastData{}, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return models.ForecastData{}, fmt.Errorf("%w: %s", datasource.ErrLocationNotFound, location)
	}
	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Message string `json:"message"`
		}
		_ = json.Unmarshal(rawData, &apiErr)
		return models.ForecastData{}, &datasource.StatusError{Source: o.Name(), StatusCode: resp.StatusCode, Message: apiErr.Message}
	}

	var forecastResp OpenWeatherMapForecastResponse
	if err := json.Unmarshal(rawData, &forecastResp); err != nil {
		return models.ForecastData{}, fmt.Errorf("failed to parse API response: %w", err)
	}
	if len(forecastResp.List) == 0 {
		return models.ForecastData{}, fmt.Errorf("OpenWeatherMap returned no forecast entries for %q", location)
	}

	forecastData := models.ForecastData{
		Provider: o.Name(),
		Query:    location,
		Location: models.Location{
			Name:      forecastResp.City.Name,
			Country:   forecastResp.City.Country,
			Latitude:  forecastResp.City.Coord.Lat,
			Longitude: forecastResp.City.Coord.Lon,
		},
		Days:         aggregateDays(forecastResp.List, forecastResp.City.Timezone),
		Current:      currentFrom(forecastResp.List[0]),
		Availability: models.Live,
		Updated:      time.Now(),
	}
	forecastData.SortDays()
	forecastData.TruncateDays(days)
	return forecastData, nil
}

type dayAccumulator struct {
	date      models.Date
	tempSum   float64
	humSum    float64
	maxWind   float64
	count     int
	noonDist  float64
	condition string
	icon      string
}

// aggregateDays groups 3-hourly entries by local calendar date. Temperature
// and humidity are averaged, wind is the maximum and the condition is taken
// from the entry closest to local noon.
func aggregateDays(entries []forecastEntry, tzOffset int) []models.DayRecord {
	byDate := map[string]*dayAccumulator{}
	var order []string

	for _, e := range entries {
		local := time.Unix(e.Dt+int64(tzOffset), 0).UTC()
		date := models.DateOf(local)
		key := date.String()
		acc, ok := byDate[key]
		if !ok {
			acc = &dayAccumulator{date: date, noonDist: math.Inf(1)}
			byDate[key] = acc
			order = append(order, key)
		}
		acc.tempSum += e.Main.Temp
		acc.humSum += e.Main.Humidity
		acc.maxWind = math.Max(acc.maxWind, e.Wind.Speed*3.6)
		acc.count++

		noon := local.Truncate(24 * time.Hour).Add(12 * time.Hour)
		if dist := math.Abs(local.Sub(noon).Hours()); dist < acc.noonDist && len(e.Weather) > 0 {
			acc.noonDist = dist
			acc.condition = e.Weather[0].Description
			acc.icon = iconURL(e.Weather[0].Icon)
		}
	}

	days := make([]models.DayRecord, 0, len(order))
	for _, key := range order {
		acc := byDate[key]
		days = append(days, models.DayRecord{
			Date:          acc.date,
			AvgTempC:      acc.tempSum / float64(acc.count),
			MaxWindKph:    acc.maxWind,
			HumidityPct:   acc.humSum / float64(acc.count),
			ConditionText: acc.condition,
			ConditionIcon: acc.icon,
		})
	}
	return days
}

func currentFrom(e forecastEntry) *models.CurrentConditions {
	c := &models.CurrentConditions{
		TempC:       e.Main.Temp,
		PressureMb:  e.Main.Pressure,
		HumidityPct: e.Main.Humidity,
		WindKph:     e.Wind.Speed * 3.6,
		Observed:    time.Unix(e.Dt, 0),
	}
	if len(e.Weather) > 0 {
		c.ConditionText = e.Weather[0].Description
		c.ConditionIcon = iconURL(e.Weather[0].Icon)
	}
	return c
}

func iconURL(code string) string {
	if code == "" {
		return ""
	}
	return fmt.Sprintf("https://openweathermap.org/img/wn/%s@2x.png", code)
}
