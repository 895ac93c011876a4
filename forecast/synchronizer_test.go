package forecast

import (
	"encoding/json"
	"errors"
	"strings"
	"reflect"
	"testing"
	"time"

	"weather-dashboard/models"
)

// juneWindow builds a forecast for 2025-06-01 .. 2025-06-(n)
func juneWindow(n int) models.ForecastData {
	data := models.ForecastData{
		Provider:     "test",
		Location:     models.Location{Name: "Oaxaca", Region: "Oaxaca", Latitude: 17.0654, Longitude: -96.7236},
		Availability: models.Live,
	}
	for i := 0; i < n; i++ {
		data.Days = append(data.Days, models.DayRecord{
			Date:          models.NewDate(2025, time.June, 1+i),
			AvgTempC:      20 + float64(i) + 0.5,
			MaxWindKph:    10 + float64(i),
			HumidityPct:   50,
			ConditionText: "Soleado",
			ConditionIcon: "//cdn.weatherapi.com/weather/64x64/day/113.png",
		})
	}
	return data
}

func newLoaded(t *testing.T, k int, data models.ForecastData) *Synchronizer {
	t.Helper()
	s, err := NewSynchronizer(Options{LookAheadDays: k, Locale: "es-ES"})
	if err != nil {
		t.Fatalf("NewSynchronizer failed: %v", err)
	}
	if _, err := s.Load(data); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	return s
}

func lookAheadDates(v *View) []string {
	var out []string
	for _, slot := range v.LookAhead {
		if slot.Hidden {
			out = append(out, "hidden")
			continue
		}
		out = append(out, slot.Date.String())
	}
	return out
}

func TestSelectDayExamples(t *testing.T) {
	tests := []struct {
		name          string
		days          int
		requested     string
		wantPrimary   string
		wantLookAhead []string
		wantWarning   bool
	}{
		{
			name:          "date inside window",
			days:          10,
			requested:     "2025-06-05",
			wantPrimary:   "2025-06-05",
			wantLookAhead: []string{"2025-06-06", "2025-06-07"},
		},
		{
			name:          "date outside window",
			days:          10,
			requested:     "2025-07-01",
			wantPrimary:   "2025-06-01",
			wantLookAhead: []string{"2025-06-02", "2025-06-03"},
			wantWarning:   true,
		},
		{
			name:          "single day window",
			days:          1,
			requested:     "2025-06-01",
			wantPrimary:   "2025-06-01",
			wantLookAhead: []string{"hidden", "hidden"},
		},
		{
			name:          "malformed date",
			days:          10,
			requested:     "not-a-date",
			wantPrimary:   "2025-06-01",
			wantLookAhead: []string{"2025-06-02", "2025-06-03"},
			wantWarning:   true,
		},
		{
			name:          "last day hides every slot",
			days:          10,
			requested:     "2025-06-10",
			wantPrimary:   "2025-06-10",
			wantLookAhead: []string{"hidden", "hidden"},
		},
		{
			name:          "second to last day hides one slot",
			days:          10,
			requested:     "2025-06-09",
			wantPrimary:   "2025-06-09",
			wantLookAhead: []string{"2025-06-10", "hidden"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newLoaded(t, 2, juneWindow(tt.days))
			view, err := s.SelectDay(tt.requested)
			if err != nil {
				t.Fatalf("SelectDay(%q) failed: %v", tt.requested, err)
			}
			if got := view.Primary.Date.String(); got != tt.wantPrimary {
				t.Errorf("primary = %s, want %s", got, tt.wantPrimary)
			}
			if got := lookAheadDates(view); !reflect.DeepEqual(got, tt.wantLookAhead) {
				t.Errorf("look-ahead = %v, want %v", got, tt.wantLookAhead)
			}
			if tt.wantWarning {
				if view.Warning == nil {
					t.Fatalf("expected a DateOutOfRangeWarning")
				}
				if view.Warning.Corrected.String() != "2025-06-01" {
					t.Errorf("warning corrected = %s, want 2025-06-01", view.Warning.Corrected)
				}
				if view.Warning.Requested != tt.requested {
					t.Errorf("warning requested = %q, want %q", view.Warning.Requested, tt.requested)
				}
				if view.Picker.Value.String() != "2025-06-01" {
					t.Errorf("picker value = %s, want corrected date", view.Picker.Value)
				}
			} else if view.Warning != nil {
				t.Errorf("unexpected warning: %v", view.Warning)
			}
		})
	}
}

func TestSelectDayEveryPresentDate(t *testing.T) {
	data := juneWindow(10)
	for _, k := range []int{0, 2, 6} {
		s := newLoaded(t, k, data)
		for _, day := range data.Days {
			view, err := s.SelectDate(day.Date)
			if err != nil {
				t.Fatalf("SelectDate(%s) failed: %v", day.Date, err)
			}
			if view.Warning != nil {
				t.Errorf("k=%d SelectDate(%s) warned: %v", k, day.Date, view.Warning)
			}
			if !view.Primary.Date.Equal(day.Date) {
				t.Errorf("k=%d primary = %s, want %s", k, view.Primary.Date, day.Date)
			}
			if len(view.LookAhead) != k {
				t.Errorf("k=%d look-ahead has %d slots", k, len(view.LookAhead))
			}
			last := data.Days[len(data.Days)-1].Date
			for _, slot := range view.VisibleLookAhead() {
				if slot.Date.After(last) || !slot.Date.After(day.Date) {
					t.Errorf("k=%d slot %s outside (%s, %s]", k, slot.Date, day.Date, last)
				}
			}
		}
	}
}

func TestSelectDayIsIdempotent(t *testing.T) {
	s := newLoaded(t, 6, juneWindow(10))
	first, err := s.SelectDay("2025-06-04")
	if err != nil {
		t.Fatalf("SelectDay failed: %v", err)
	}
	second, err := s.SelectDay("2025-06-04")
	if err != nil {
		t.Fatalf("SelectDay failed: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("repeated SelectDay produced different views:\n%+v\n%+v", first, second)
	}
}

func TestMiniCardSelectionMatchesPicker(t *testing.T) {
	s := newLoaded(t, 2, juneWindow(10))
	view, _ := s.SelectDay("2025-06-03")
	slot := view.LookAhead[1]

	viaCard, err := s.SelectDate(slot.Date)
	if err != nil {
		t.Fatalf("SelectDate failed: %v", err)
	}
	viaPicker, err := s.SelectDay(slot.Date.String())
	if err != nil {
		t.Fatalf("SelectDay failed: %v", err)
	}
	if !reflect.DeepEqual(viaCard, viaPicker) {
		t.Errorf("mini-card and picker selection diverged")
	}
	if viaCard.Primary.Date.String() != "2025-06-05" {
		t.Errorf("primary = %s, want 2025-06-05", viaCard.Primary.Date)
	}
}

func TestSelectDayBeforeLoad(t *testing.T) {
	s, err := NewSynchronizer(Options{LookAheadDays: 2})
	if err != nil {
		t.Fatalf("NewSynchronizer failed: %v", err)
	}
	if _, err := s.SelectDay("2025-06-01"); !errors.Is(err, ErrNotLoaded) {
		t.Errorf("SelectDay before Load error = %v, want ErrNotLoaded", err)
	}
	if _, err := s.View(); !errors.Is(err, ErrNotLoaded) {
		t.Errorf("View before Load error = %v, want ErrNotLoaded", err)
	}
}

func TestLoadEmptyKeepsState(t *testing.T) {
	s := newLoaded(t, 2, juneWindow(10))
	if _, err := s.SelectDay("2025-06-07"); err != nil {
		t.Fatalf("SelectDay failed: %v", err)
	}

	if _, err := s.Load(models.ForecastData{Provider: "empty"}); !errors.Is(err, ErrEmptyWindow) {
		t.Fatalf("Load(empty) error = %v, want ErrEmptyWindow", err)
	}

	view, err := s.View()
	if err != nil {
		t.Fatalf("View failed: %v", err)
	}
	if view.Primary.Date.String() != "2025-06-07" || view.Provider != "test" {
		t.Errorf("state changed after failed load: %s from %s", view.Primary.Date, view.Provider)
	}
}

func TestReloadPreservesSelection(t *testing.T) {
	s := newLoaded(t, 2, juneWindow(10))
	if _, err := s.SelectDay("2025-06-05"); err != nil {
		t.Fatalf("SelectDay failed: %v", err)
	}

	next := juneWindow(7)
	next.Provider = "reloaded"
	view, err := s.Load(next)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if view.Warning != nil {
		t.Errorf("unexpected warning on reload: %v", view.Warning)
	}
	if view.Primary.Date.String() != "2025-06-05" {
		t.Errorf("primary after reload = %s, want 2025-06-05", view.Primary.Date)
	}
	if view.Provider != "reloaded" {
		t.Errorf("provider = %s, want reloaded", view.Provider)
	}
}

func TestReloadWithoutSelectedDateFallsBack(t *testing.T) {
	s := newLoaded(t, 2, juneWindow(10))
	if _, err := s.SelectDay("2025-06-09"); err != nil {
		t.Fatalf("SelectDay failed: %v", err)
	}

	view, err := s.Load(juneWindow(3))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if view.Warning == nil || view.Warning.Corrected.String() != "2025-06-01" {
		t.Fatalf("expected warning correcting to 2025-06-01, got %v", view.Warning)
	}
	if view.Warning.Requested != "2025-06-09" {
		t.Errorf("warning requested = %q, want 2025-06-09", view.Warning.Requested)
	}
}

func TestFirstLoadSelectsFirstDayWithoutWarning(t *testing.T) {
	s, _ := NewSynchronizer(Options{LookAheadDays: 2})
	view, err := s.Load(juneWindow(4))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if view.Warning != nil {
		t.Errorf("unexpected warning on first load: %v", view.Warning)
	}
	if view.Primary.Date.String() != "2025-06-01" {
		t.Errorf("primary = %s, want 2025-06-01", view.Primary.Date)
	}
}

func TestPrimaryPayload(t *testing.T) {
	data := juneWindow(10)
	data.Current = &models.CurrentConditions{PressureMb: 1012}
	s := newLoaded(t, 2, data)

	view, err := s.SelectDay("2025-06-05")
	if err != nil {
		t.Fatalf("SelectDay failed: %v", err)
	}
	p := view.Primary
	// 2025-06-05 is a Thursday; avg temp 24.5 rounds half up to 25
	if p.DayName != "Jueves" {
		t.Errorf("DayName = %q, want Jueves", p.DayName)
	}
	if p.DateLabel != "5 de junio" {
		t.Errorf("DateLabel = %q, want 5 de junio", p.DateLabel)
	}
	if p.TemperatureC != 25 {
		t.Errorf("TemperatureC = %d, want 25", p.TemperatureC)
	}
	if p.PressureMb == nil || *p.PressureMb != 1012 {
		t.Errorf("PressureMb = %v, want 1012", p.PressureMb)
	}
	if p.ConditionIcon != "https://cdn.weatherapi.com/weather/64x64/day/113.png" {
		t.Errorf("ConditionIcon = %q", p.ConditionIcon)
	}
	if view.LookAhead[0].DayLabel != "VIE" {
		t.Errorf("look-ahead label = %q, want VIE", view.LookAhead[0].DayLabel)
	}
	if view.Picker.Min.String() != "2025-06-01" || view.Picker.Max.String() != "2025-06-10" {
		t.Errorf("picker bounds = %s..%s", view.Picker.Min, view.Picker.Max)
	}
	if view.Map.Label != "Oaxaca" || view.Map.Latitude != 17.0654 {
		t.Errorf("map marker = %+v", view.Map)
	}
	if view.Chart.SelectedIndex != 4 || len(view.Chart.TemperaturesC) != 10 {
		t.Errorf("chart = %+v", view.Chart)
	}
}

func TestPrimaryPayloadWithoutCurrentConditions(t *testing.T) {
	s := newLoaded(t, 2, juneWindow(3))
	view, _ := s.View()
	if view.Primary.PressureMb != nil {
		t.Errorf("PressureMb = %v, want omitted", *view.Primary.PressureMb)
	}
}

func TestRoundTemperature(t *testing.T) {
	tests := []struct {
		input    float64
		expected int
	}{
		{20.5, 21},
		{20.49, 20},
		{-0.5, 0},
		{-1.5, -1},
		{-1.51, -2},
		{0, 0},
		{0.49999999999999994, 0},
		{-0.49999999999999994, 0},
	}
	for _, tt := range tests {
		if got := RoundTemperature(tt.input); got != tt.expected {
			t.Errorf("RoundTemperature(%v) = %d, want %d", tt.input, got, tt.expected)
		}
	}
}

func TestNewSynchronizerRejectsBadOptions(t *testing.T) {
	if _, err := NewSynchronizer(Options{LookAheadDays: -1}); err == nil {
		t.Errorf("expected error for negative look-ahead")
	}
	if _, err := NewSynchronizer(Options{Locale: "!!"}); err == nil {
		t.Errorf("expected error for invalid locale")
	}
}

func TestLookAheadKeepsZeroTemperature(t *testing.T) {
	data := juneWindow(3)
	for i, temp := range []float64{10, 0.2, 5} {
		data.Days[i].AvgTempC = temp
	}
	s := newLoaded(t, 2, data)
	view, err := s.SelectDay("2025-06-01")
	if err != nil {
		t.Fatalf("SelectDay failed: %v", err)
	}

	for i, want := range []string{`"temperatureC":0`, `"temperatureC":5`} {
		b, err := json.Marshal(view.LookAhead[i])
		if err != nil {
			t.Fatalf("Marshal failed: %v", err)
		}
		if !strings.Contains(string(b), want) {
			t.Errorf("slot %d = %s, want it to contain %s", i, b, want)
		}
		if !strings.Contains(string(b), `"date":"2025-06-0`) {
			t.Errorf("slot %d = %s, missing date", i, b)
		}
	}
}

func TestWindowAccessorsAreReadOnly(t *testing.T) {
	s := newLoaded(t, 2, juneWindow(3))
	if _, err := s.SelectDay("2025-06-03"); err != nil {
		t.Fatalf("SelectDay failed: %v", err)
	}

	days := s.Days()
	if len(days) != 3 {
		t.Fatalf("Days() returned %d days, want 3", len(days))
	}
	days[2].AvgTempC = 99
	days[2].Date = models.NewDate(2025, time.July, 1)

	view, err := s.SelectDay("2025-06-03")
	if err != nil {
		t.Fatalf("SelectDay after mutating the copy failed: %v", err)
	}
	if view.Warning != nil || view.Primary.TemperatureC != 23 {
		t.Errorf("view changed through Days() copy: temp %d, warning %v", view.Primary.TemperatureC, view.Warning)
	}

	minDate, maxDate, ok := s.Bounds()
	if !ok || minDate.String() != "2025-06-01" || maxDate.String() != "2025-06-03" {
		t.Errorf("Bounds() = %s, %s, %v", minDate, maxDate, ok)
	}
	if s.Location().Name != "Oaxaca" {
		t.Errorf("Location() = %q, want Oaxaca", s.Location().Name)
	}
}
