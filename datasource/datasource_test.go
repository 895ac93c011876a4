package datasource

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"weather-dashboard/models"
)

type fakeSource struct {
	name  string
	data  models.ForecastData
	err   error
	calls int
	block bool
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) FetchForecast(ctx context.Context, location string, days int) (models.ForecastData, error) {
	f.calls++
	if f.block {
		<-ctx.Done()
		return models.ForecastData{}, ctx.Err()
	}
	if f.err != nil {
		return models.ForecastData{}, f.err
	}
	return f.data, nil
}

type searchingSource struct {
	fakeSource
	results []models.Location
}

func (s *searchingSource) SearchLocations(ctx context.Context, query string, limit int) ([]models.Location, error) {
	return s.results, nil
}

func liveData(provider string) models.ForecastData {
	return models.ForecastData{
		Provider: provider,
		Location: models.Location{Name: "Oaxaca"},
		Days: []models.DayRecord{
			{Date: models.MustParseDate("2025-06-02"), AvgTempC: 21},
			{Date: models.MustParseDate("2025-06-01"), AvgTempC: 20},
		},
	}
}

var fixedNow = time.Date(2025, time.June, 1, 15, 30, 0, 0, time.UTC)

func testOptions(demo bool) FallbackOptions {
	table := PredefinedLocations()
	return FallbackOptions{
		DemoEnabled: demo,
		Table:       table,
		Demo:        NewDemoSource(table).WithClock(func() time.Time { return fixedNow }),
	}
}

func TestParseQuery(t *testing.T) {
	tests := []struct {
		input     string
		hasCoords bool
		lat, lon  float64
	}{
		{"17.0654,-96.7236", true, 17.0654, -96.7236},
		{" 19.4326 , -99.1332 ", true, 19.4326, -99.1332},
		{"Oaxaca", false, 0, 0},
		{"Oaxaca, MX", false, 0, 0},
		{"95,10", false, 0, 0},
		{"10,200", false, 0, 0},
		{"", false, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			q := ParseQuery(tt.input)
			if q.HasCoords != tt.hasCoords {
				t.Fatalf("HasCoords = %v, want %v", q.HasCoords, tt.hasCoords)
			}
			if tt.hasCoords && (q.Latitude != tt.lat || q.Longitude != tt.lon) {
				t.Errorf("coords = %v,%v, want %v,%v", q.Latitude, q.Longitude, tt.lat, tt.lon)
			}
		})
	}
}

func TestLocationTableLookup(t *testing.T) {
	table := PredefinedLocations()
	tests := []struct {
		query    string
		wantName string
		found    bool
	}{
		{"Oaxaca", "Oaxaca", true},
		{"oaxaca de juárez", "Oaxaca", true},
		{"Ciudad de México", "Ciudad de México", true},
		{"CDMX", "Ciudad de México", true},
		{"cancun", "Cancún", true},
		{"León", "León", true},
		{"Ciudad Juárez", "Ciudad Juárez", true},
		{"Huajuapan de León", "Huajuapan de León", true},
		{"Atlantis", "", false},
		{"", "", false},
		{"de", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			loc, ok := table.Lookup(tt.query)
			if ok != tt.found {
				t.Fatalf("Lookup(%q) found = %v, want %v", tt.query, ok, tt.found)
			}
			if ok && loc.Name != tt.wantName {
				t.Errorf("Lookup(%q) = %s, want %s", tt.query, loc.Name, tt.wantName)
			}
		})
	}
}

func TestLocationTableSearch(t *testing.T) {
	table := PredefinedLocations()

	got := table.Search("chihuahua", 10)
	if len(got) != 2 {
		t.Fatalf("Search(chihuahua) returned %d results, want 2", len(got))
	}
	if got[0].Name != "Ciudad Juárez" || got[1].Name != "Chihuahua" {
		t.Errorf("Search(chihuahua) = %v", got)
	}

	if got := table.Search("a", 0); len(got) != MaxSuggestions {
		t.Errorf("Search(a) returned %d results, want %d", len(got), MaxSuggestions)
	}
	if got := table.Search("merida", 5); len(got) != 1 || got[0].Name != "Mérida" {
		t.Errorf("accent-insensitive search failed: %v", got)
	}
	if got := table.Search("  ", 5); len(got) != 0 {
		t.Errorf("blank search returned %v", got)
	}
}

func TestDemoSourceWindow(t *testing.T) {
	demo := NewDemoSource(PredefinedLocations()).WithClock(func() time.Time { return fixedNow })

	data, err := demo.FetchForecast(context.Background(), "17.5,-97.1", 3)
	if err != nil {
		t.Fatalf("FetchForecast failed: %v", err)
	}
	if data.Availability != models.Demo {
		t.Errorf("Availability = %s, want demo", data.Availability)
	}
	if data.Location.Latitude != 17.5 || data.Location.Longitude != -97.1 {
		t.Errorf("location = %+v, want query coordinates", data.Location)
	}
	if len(data.Days) != 3 || data.Days[0].Date.String() != "2025-06-01" || data.Days[2].Date.String() != "2025-06-03" {
		t.Fatalf("days = %+v", data.Days)
	}
	if data.Days[0].AvgTempC != DemoTempC || data.Days[0].HumidityPct != DemoHumidityPct {
		t.Errorf("first day = %+v", data.Days[0])
	}
	if data.Current == nil || data.Current.PressureMb != 812 {
		t.Errorf("current = %+v, want 812 mb", data.Current)
	}

	unknown, _ := demo.FetchForecast(context.Background(), "Atlantis", 1)
	if unknown.Location != DefaultLocation {
		t.Errorf("unknown query resolved to %+v, want default location", unknown.Location)
	}

	again, _ := demo.FetchForecast(context.Background(), "17.5,-97.1", 3)
	for i := range data.Days {
		if data.Days[i] != again.Days[i] {
			t.Errorf("demo window is not deterministic at day %d", i)
		}
	}
}

func TestFallbackSourceLive(t *testing.T) {
	failing := &fakeSource{name: "down", err: &StatusError{Source: "down", StatusCode: 503}}
	live := &fakeSource{name: "up", data: liveData("up")}
	f := NewFallbackSource([]ForecastSource{failing, live}, testOptions(true), nil)

	data, err := f.FetchForecast(context.Background(), "Oaxaca", 3)
	if err != nil {
		t.Fatalf("FetchForecast failed: %v", err)
	}
	if data.Availability != models.Live || data.Provider != "up" {
		t.Errorf("got %s from %s, want live from up", data.Availability, data.Provider)
	}
	if data.Days[0].Date.String() != "2025-06-01" {
		t.Errorf("days not sorted: %v", data.Days)
	}
	if failing.calls != 1 || live.calls != 1 {
		t.Errorf("calls = %d/%d, want 1/1", failing.calls, live.calls)
	}
}

func TestFallbackSourceChain(t *testing.T) {
	unavailable := func() ForecastSource {
		return &fakeSource{name: "down", err: errors.New("connection refused")}
	}
	notFound := func() ForecastSource {
		return &fakeSource{name: "nf", err: fmt.Errorf("lookup: %w", ErrLocationNotFound)}
	}

	tests := []struct {
		name         string
		live         []ForecastSource
		demo         bool
		query        string
		availability models.Availability
		wantName     string
		wantErr      error
	}{
		{"no sources serves demo", nil, true, "Puebla", models.Demo, "Puebla", nil},
		{"unavailable serves demo", []ForecastSource{unavailable()}, true, "Atlantis", models.Demo, DefaultLocation.Name, nil},
		{"not found uses table", []ForecastSource{notFound()}, true, "Guadalajara", models.LocalFallback, "Guadalajara", nil},
		{"not found and unknown", []ForecastSource{notFound()}, true, "Atlantis", "", "", ErrLocationNotFound},
		{"demo disabled uses table", []ForecastSource{unavailable()}, false, "Tampico", models.LocalFallback, "Tampico", nil},
		{"demo disabled and unknown", []ForecastSource{unavailable()}, false, "Atlantis", "", "", nil},
		{"demo disabled no sources", nil, false, "Atlantis", "", "", ErrLocationNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewFallbackSource(tt.live, testOptions(tt.demo), nil)
			data, err := f.FetchForecast(context.Background(), tt.query, 3)

			if tt.availability == "" {
				if err == nil {
					t.Fatalf("expected error, got %s forecast", data.Availability)
				}
				if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
					t.Errorf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("FetchForecast failed: %v", err)
			}
			if data.Availability != tt.availability {
				t.Errorf("Availability = %s, want %s", data.Availability, tt.availability)
			}
			if data.Location.Name != tt.wantName {
				t.Errorf("Location = %s, want %s", data.Location.Name, tt.wantName)
			}
			if len(data.Days) != 3 {
				t.Errorf("got %d days, want 3", len(data.Days))
			}
		})
	}
}

func TestFallbackSourceHonorsCancellation(t *testing.T) {
	slow := &fakeSource{name: "slow", block: true}
	next := &fakeSource{name: "next", data: liveData("next")}
	f := NewFallbackSource([]ForecastSource{slow, next}, testOptions(true), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := f.FetchForecast(ctx, "Oaxaca", 3)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("error = %v, want deadline exceeded", err)
	}
	if next.calls != 0 {
		t.Errorf("fallback continued after deadline")
	}
}

func TestFallbackSearchLocations(t *testing.T) {
	remote := &searchingSource{
		fakeSource: fakeSource{name: "remote"},
		results:    []models.Location{{Name: "Oaxaca de Juárez"}},
	}
	plain := &fakeSource{name: "plain"}

	f := NewFallbackSource([]ForecastSource{plain, NewRateLimitedForecastSource(plain, 100, 1), remote}, testOptions(true), nil)

	got, err := f.SearchLocations(context.Background(), "oa", 5)
	if err != nil || len(got) != 0 {
		t.Errorf("short query = %v, %v; want empty list", got, err)
	}

	got, err = f.SearchLocations(context.Background(), "oaxa", 5)
	if err != nil {
		t.Fatalf("SearchLocations failed: %v", err)
	}
	if len(got) != 1 || got[0].Name != "Oaxaca de Juárez" {
		t.Errorf("SearchLocations = %v, want remote result", got)
	}

	remote.results = nil
	got, _ = f.SearchLocations(context.Background(), "oaxa", 5)
	if len(got) != 2 || got[0].Name != "Oaxaca" {
		t.Errorf("table fallback = %v", got)
	}
}

func TestRateLimitedForecastSource(t *testing.T) {
	src := &fakeSource{name: "api", data: liveData("api")}
	limited := NewRateLimitedForecastSource(src, 0.001, 1)

	if limited.Name() != "api [Rate Limited]" {
		t.Errorf("Name = %q", limited.Name())
	}
	if _, err := limited.FetchForecast(context.Background(), "Oaxaca", 3); err != nil {
		t.Fatalf("first fetch failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := limited.FetchForecast(ctx, "Oaxaca", 3); err == nil {
		t.Fatalf("second fetch should wait past the deadline")
	}
	if src.calls != 1 {
		t.Errorf("wrapped source called %d times, want 1", src.calls)
	}
	if _, ok := AsSearcher(limited); ok {
		t.Errorf("limiter over a non-searching source reported search support")
	}
}
