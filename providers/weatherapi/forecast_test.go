package weatherapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"weather-dashboard/datasource"
)

const forecastFixture = `{
  "location": {"name": "Oaxaca", "region": "Oaxaca", "country": "Mexico", "lat": 17.06, "lon": -96.72},
  "current": {"last_updated_epoch": 1748790000, "temp_c": 24.0, "wind_kph": 9.4, "pressure_mb": 1014.0,
              "humidity": 48, "condition": {"text": "Soleado", "icon": "//cdn.weatherapi.com/weather/64x64/day/113.png"}},
  "forecast": {"forecastday": [
    {"date": "2025-06-02", "day": {"avgtemp_c": 22.1, "maxwind_kph": 14.0, "avghumidity": 55,
      "condition": {"text": "Nublado", "icon": "//cdn.weatherapi.com/weather/64x64/day/119.png"}}},
    {"date": "2025-06-01", "day": {"avgtemp_c": 23.4, "maxwind_kph": 12.2, "avghumidity": 50,
      "condition": {"text": "Soleado", "icon": "//cdn.weatherapi.com/weather/64x64/day/113.png"}}}
  ]}
}`

func newTestSource(t *testing.T, handler http.HandlerFunc) *WeatherAPIForecastSource {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewWeatherAPIForecastSource(Config{APIKey: "test-key", BaseURL: server.URL, Lang: "es"}, nil)
}

func TestFetchForecast(t *testing.T) {
	var gotQuery map[string]string
	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/forecast.json" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotQuery = map[string]string{}
		for k := range r.URL.Query() {
			gotQuery[k] = r.URL.Query().Get(k)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(forecastFixture))
	})

	data, err := src.FetchForecast(context.Background(), "Oaxaca", 30)
	if err != nil {
		t.Fatalf("FetchForecast failed: %v", err)
	}

	if gotQuery["days"] != "14" || gotQuery["lang"] != "es" || gotQuery["key"] != "test-key" || gotQuery["aqi"] != "no" {
		t.Errorf("unexpected query parameters: %v", gotQuery)
	}
	if len(data.Days) != 2 {
		t.Fatalf("got %d days, want 2", len(data.Days))
	}
	if data.Days[0].Date.String() != "2025-06-01" || data.Days[0].AvgTempC != 23.4 {
		t.Errorf("first day = %+v", data.Days[0])
	}
	if data.Location.Name != "Oaxaca" || data.Location.Latitude != 17.06 {
		t.Errorf("location = %+v", data.Location)
	}
	if data.Current == nil || data.Current.PressureMb != 1014 {
		t.Errorf("current = %+v", data.Current)
	}
	if data.Provider != "WeatherAPI" {
		t.Errorf("provider = %s", data.Provider)
	}
}

func TestFetchForecastErrors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		notFound   bool
		wantStatus int
	}{
		{"unknown location", http.StatusBadRequest, `{"error":{"code":1006,"message":"No matching location found."}}`, true, 0},
		{"bad key", http.StatusUnauthorized, `{"error":{"code":2006,"message":"API key is invalid."}}`, false, http.StatusUnauthorized},
		{"other bad request", http.StatusBadRequest, `{"error":{"code":1003,"message":"Parameter q is missing."}}`, false, http.StatusBadRequest},
		{"server error", http.StatusBadGateway, `oops`, false, http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})

			_, err := src.FetchForecast(context.Background(), "Atlantis", 3)
			if err == nil {
				t.Fatalf("expected error")
			}
			if got := errors.Is(err, datasource.ErrLocationNotFound); got != tt.notFound {
				t.Errorf("errors.Is(ErrLocationNotFound) = %v, want %v (%v)", got, tt.notFound, err)
			}
			var statusErr *datasource.StatusError
			if tt.wantStatus != 0 {
				if !errors.As(err, &statusErr) || statusErr.StatusCode != tt.wantStatus {
					t.Errorf("error = %v, want StatusError %d", err, tt.wantStatus)
				}
			}
		})
	}
}

func TestFetchForecastEmpty(t *testing.T) {
	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"location":{"name":"X"},"forecast":{"forecastday":[]}}`))
	})
	if _, err := src.FetchForecast(context.Background(), "X", 3); err == nil {
		t.Errorf("expected error for an empty forecast")
	}
}

func TestSearchLocations(t *testing.T) {
	calls := 0
	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.URL.Path != "/search.json" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`[
			{"name":"Oaxaca","region":"Oaxaca","country":"Mexico","lat":17.06,"lon":-96.72},
			{"name":"Oaxaca de Juarez","region":"Oaxaca","country":"Mexico","lat":17.05,"lon":-96.71},
			{"name":"Oaxtepec","region":"Morelos","country":"Mexico","lat":18.9,"lon":-98.97}
		]`))
	})

	got, err := src.SearchLocations(context.Background(), "oax", 2)
	if err != nil {
		t.Fatalf("SearchLocations failed: %v", err)
	}
	if len(got) != 2 || got[1].Name != "Oaxaca de Juarez" {
		t.Errorf("SearchLocations = %+v", got)
	}

	got, err = src.SearchLocations(context.Background(), "oa", 5)
	if err != nil || len(got) != 0 {
		t.Errorf("short query = %v, %v", got, err)
	}
	if calls != 1 {
		t.Errorf("short query reached the API")
	}
}
