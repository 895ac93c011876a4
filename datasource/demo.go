package datasource

import (
	"context"
	"time"

	"weather-dashboard/models"
)

// Values of the demo payload served when the prediction backend is down
const (
	DemoTempC          = 23.5
	DemoHumidityPct    = 65.5
	DemoWindMs         = 2.1
	DemoPressureKPa    = 81.2
	DemoPrecipMmPerDay = 2.3
	DemoCloudCoverPct  = 45.8

	demoNote          = "Datos de demostración - Backend no disponible"
	localFallbackNote = "Ubicación predefinida - datos aproximados"
)

// demoTempOffsets keeps the demo chart from being a flat line
var demoTempOffsets = []float64{0, 1.2, -0.8, 0.5, -1.5, 2.0, -0.3}

// DemoSource synthesizes deterministic forecasts. It never fails for a
// resolvable location.
type DemoSource struct {
	table *LocationTable
	now   func() time.Time
}

// NewDemoSource creates a demo source resolving names through table
func NewDemoSource(table *LocationTable) *DemoSource {
	return &DemoSource{table: table, now: time.Now}
}

// WithClock overrides the clock used to pick the first forecast day
func (d *DemoSource) WithClock(now func() time.Time) *DemoSource {
	d.now = now
	return d
}

// Name returns the source name
func (d *DemoSource) Name() string {
	return "Demo"
}

// FetchForecast returns a demo window. The location is taken from query
// coordinates, else the location table, else DefaultLocation.
func (d *DemoSource) FetchForecast(ctx context.Context, location string, days int) (models.ForecastData, error) {
	if err := ctx.Err(); err != nil {
		return models.ForecastData{}, err
	}
	loc := d.resolve(location)
	return d.Window(location, loc, days, models.Demo), nil
}

func (d *DemoSource) resolve(location string) models.Location {
	q := ParseQuery(location)
	if q.HasCoords {
		return models.Location{Latitude: q.Latitude, Longitude: q.Longitude}
	}
	if d.table != nil {
		if loc, ok := d.table.Lookup(q.Text); ok {
			return loc
		}
	}
	return DefaultLocation
}

// Window builds a days-long window starting today at loc
func (d *DemoSource) Window(query string, loc models.Location, days int, availability models.Availability) models.ForecastData {
	if days < 1 {
		days = 1
	}
	now := d.now()
	start := models.DateOf(now)
	text, icon := DescribeConditions(DemoPrecipMmPerDay, DemoCloudCoverPct)

	note := demoNote
	if availability == models.LocalFallback {
		note = localFallbackNote
	}

	data := models.ForecastData{
		Provider:     d.Name(),
		Query:        query,
		Location:     loc,
		Availability: availability,
		Note:         note,
		Updated:      now,
		Current: &models.CurrentConditions{
			TempC:         DemoTempC,
			PressureMb:    DemoPressureKPa * 10,
			HumidityPct:   DemoHumidityPct,
			WindKph:       DemoWindMs * 3.6,
			ConditionText: text,
			ConditionIcon: icon,
			Observed:      now,
		},
	}
	for i := 0; i < days; i++ {
		data.Days = append(data.Days, models.DayRecord{
			Date:          start.AddDays(i),
			AvgTempC:      DemoTempC + demoTempOffsets[i%len(demoTempOffsets)],
			MaxWindKph:    DemoWindMs * 3.6,
			HumidityPct:   DemoHumidityPct,
			ConditionText: text,
			ConditionIcon: icon,
		})
	}
	return data
}

// DescribeConditions derives a condition label and icon from daily
// precipitation and cloud cover, for sources that only predict quantities
func DescribeConditions(precipMm, cloudPct float64) (text, icon string) {
	switch {
	case precipMm >= 10:
		return "Lluvia fuerte", "https://openweathermap.org/img/wn/09d@2x.png"
	case precipMm >= 1:
		return "Lluvia ligera", "https://openweathermap.org/img/wn/10d@2x.png"
	case cloudPct >= 70:
		return "Nublado", "https://openweathermap.org/img/wn/04d@2x.png"
	case cloudPct >= 30:
		return "Parcialmente nublado", "https://openweathermap.org/img/wn/02d@2x.png"
	default:
		return "Despejado", "https://openweathermap.org/img/wn/01d@2x.png"
	}
}

var _ ForecastSource = (*DemoSource)(nil)
