package prediction

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"weather-dashboard/datasource"
	"weather-dashboard/logger"
	"weather-dashboard/models"
)

// Status values reported by Status
const (
	StatusOnline = "online"
	StatusDemo   = "demo"
)

// Config holds settings for the local prediction backend
type Config struct {
	BaseURL string
	Timeout time.Duration
	// Concurrency bounds the number of /predict calls in flight
	Concurrency int
}

// PredictionSource turns per-day ML predictions into a forecast window
type PredictionSource struct {
	baseURL     string
	client      *http.Client
	concurrency int
	geocoder    datasource.LocationSearcher
	logger      *logger.Logger
	now         func() time.Time
}

var _ datasource.ForecastSource = (*PredictionSource)(nil)

// NewPredictionSource creates a client. geocoder resolves free-text
// queries to coordinates; it may be nil when only "lat,lon" queries are used.
func NewPredictionSource(cfg Config, geocoder datasource.LocationSearcher, log *logger.Logger) *PredictionSource {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &PredictionSource{
		baseURL:     cfg.BaseURL,
		client:      &http.Client{Timeout: cfg.Timeout},
		concurrency: cfg.Concurrency,
		geocoder:    geocoder,
		logger:      log.Named("prediction"),
		now:         time.Now,
	}
}

// Name returns the source name
func (p *PredictionSource) Name() string {
	return "Prediction"
}

type predictResponse struct {
	Location struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	} `json:"location"`
	PredictionDate string `json:"prediction_date"`
	Predictions    struct {
		PrecipitationMm float64 `json:"precipitation_mm_per_day"`
		TemperatureC    float64 `json:"temperature_c"`
		TemperatureMaxC float64 `json:"temperature_max_c"`
		TemperatureMinC float64 `json:"temperature_min_c"`
		HumidityPct     float64 `json:"humidity_percent"`
		WindSpeedMs     float64 `json:"wind_speed_ms"`
		PressureKPa     float64 `json:"pressure_kpa"`
		CloudCoverPct   float64 `json:"cloud_cover_percent"`
	} `json:"predictions"`
	Detail string `json:"detail"`
}

// FetchForecast predicts each of the next days, starting tomorrow since the
// backend only accepts future dates
func (p *PredictionSource) FetchForecast(ctx context.Context, location string, days int) (models.ForecastData, error) {
	if days < 1 {
		days = 1
	}
	loc, err := p.resolve(ctx, location)
	if err != nil {
		return models.ForecastData{}, err
	}

	today := models.DateOf(p.now())
	results := make([]predictResponse, days)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for i := 0; i < days; i++ {
		i := i
		date := today.AddDays(i + 1)
		g.Go(func() error {
			resp, err := p.predict(gctx, loc.Latitude, loc.Longitude, date)
			if err != nil {
				return err
			}
			results[i] = resp
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return models.ForecastData{}, err
	}

	data := models.ForecastData{
		Provider:     p.Name(),
		Query:        location,
		Location:     loc,
		Availability: models.Live,
		Updated:      p.now(),
	}
	for i, r := range results {
		pr := r.Predictions
		text, icon := datasource.DescribeConditions(pr.PrecipitationMm, pr.CloudCoverPct)
		date := today.AddDays(i + 1)
		if parsed, err := models.ParseDate(r.PredictionDate); err == nil {
			date = parsed
		}
		data.Days = append(data.Days, models.DayRecord{
			Date:          date,
			AvgTempC:      pr.TemperatureC,
			MaxWindKph:    pr.WindSpeedMs * 3.6,
			HumidityPct:   pr.HumidityPct,
			ConditionText: text,
			ConditionIcon: icon,
		})
		if i == 0 {
			data.Current = &models.CurrentConditions{
				TempC:         pr.TemperatureC,
				PressureMb:    pr.PressureKPa * 10,
				HumidityPct:   pr.HumidityPct,
				WindKph:       pr.WindSpeedMs * 3.6,
				ConditionText: text,
				ConditionIcon: icon,
				Observed:      p.now(),
			}
		}
	}
	data.SortDays()
	return data, nil
}

func (p *PredictionSource) resolve(ctx context.Context, location string) (models.Location, error) {
	q := datasource.ParseQuery(location)
	if q.HasCoords {
		return models.Location{Latitude: q.Latitude, Longitude: q.Longitude}, nil
	}
	if p.geocoder == nil {
		return models.Location{}, fmt.Errorf("%w: %q (no geocoder configured)", datasource.ErrLocationNotFound, location)
	}
	matches, err := p.geocoder.SearchLocations(ctx, q.Text, 1)
	if err != nil {
		return models.Location{}, fmt.Errorf("failed to resolve location %q: %w", location, err)
	}
	if len(matches) == 0 {
		return models.Location{}, fmt.Errorf("%w: %q", datasource.ErrLocationNotFound, location)
	}
	return matches[0], nil
}

func (p *PredictionSource) predict(ctx context.Context, lat, lon float64, date models.Date) (predictResponse, error) {
	params := url.Values{}
	params.Set("lat", strconv.FormatFloat(lat, 'f', 4, 64))
	params.Set("lon", strconv.FormatFloat(lon, 'f', 4, 64))
	params.Set("date", date.String())

	var out predictResponse
	status, err := p.getJSON(ctx, "/predict?"+params.Encode(), &out)
	if err != nil {
		return predictResponse{}, err
	}
	switch {
	case status == http.StatusOK:
		return out, nil
	case status == http.StatusBadRequest:
		// coordinates outside the trained region
		return predictResponse{}, fmt.Errorf("%w: %s", datasource.ErrLocationNotFound, out.Detail)
	default:
		return predictResponse{}, &datasource.StatusError{Source: p.Name(), StatusCode: status, Message: out.Detail}
	}
}

// StatusInfo describes the backend as shown in the dashboard header
type StatusInfo struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Version string `json:"version,omitempty"`
}

// Status probes the backend root endpoint
func (p *PredictionSource) Status(ctx context.Context) StatusInfo {
	var info struct {
		Message string `json:"message"`
		Version string `json:"version"`
		Status  string `json:"status"`
	}
	status, err := p.getJSON(ctx, "/", &info)
	if err != nil || status != http.StatusOK || info.Status == StatusDemo {
		if err != nil {
			p.logger.Warn("Prediction backend unreachable", logger.Error(err))
		}
		return StatusInfo{Status: StatusDemo, Message: "Modo demostración - Backend no disponible"}
	}
	return StatusInfo{Status: StatusOnline, Message: info.Message, Version: info.Version}
}

// getJSON decodes the body into out whatever the status, when it is JSON
func (p *PredictionSource) getJSON(ctx context.Context, path string, out interface{}) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+path, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	rawData, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("failed to read response body: %w", err)
	}
	if err := json.Unmarshal(rawData, out); err != nil && resp.StatusCode == http.StatusOK {
		return resp.StatusCode, fmt.Errorf("failed to parse response: %w", err)
	}
	return resp.StatusCode, nil
}
