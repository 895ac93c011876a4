package forecast

import (
	"fmt"

	"weather-dashboard/models"
)

// Options configures a Synchronizer
type Options struct {
	// LookAheadDays is the number of mini-card slots after the selected day
	LookAheadDays int
	// Locale is a BCP 47 tag used for weekday and month labels
	Locale string
}

// Synchronizer resolves a selected date against the loaded window and derives
// the payloads every dependent view renders. It is not safe for concurrent
// use; callers serialize access.
type Synchronizer struct {
	window   Window
	opts     Options
	labels   *Labeler
	selected models.Date
}

// NewSynchronizer creates an unloaded synchronizer
func NewSynchronizer(opts Options) (*Synchronizer, error) {
	if opts.LookAheadDays < 0 {
		return nil, fmt.Errorf("look-ahead days must not be negative, got %d", opts.LookAheadDays)
	}
	labels, err := NewLabeler(opts.Locale)
	if err != nil {
		return nil, err
	}
	return &Synchronizer{opts: opts, labels: labels}, nil
}

// Options returns the synchronizer configuration
func (s *Synchronizer) Options() Options {
	return s.opts
}

// Loaded reports whether a window has been loaded
func (s *Synchronizer) Loaded() bool {
	return s.window.Loaded()
}

// Bounds returns the first and last loaded dates; ok is false before a load
func (s *Synchronizer) Bounds() (minDate, maxDate models.Date, ok bool) {
	return s.window.Bounds()
}

// Days returns a copy of the loaded days
func (s *Synchronizer) Days() []models.DayRecord {
	return s.window.Days()
}

// Location returns the location of the loaded window
func (s *Synchronizer) Location() models.Location {
	return s.window.Location()
}

// Load replaces the forecast window and re-runs selection for the previously
// selected date. The first load selects the first day without a warning; a
// reload whose window no longer contains the selected date falls back to the
// first day with a warning.
func (s *Synchronizer) Load(data models.ForecastData) (*View, error) {
	if err := s.window.Load(data); err != nil {
		return nil, err
	}
	if s.selected.IsZero() {
		first, _ := s.window.FirstDay()
		return s.render(first.Date, nil), nil
	}
	return s.SelectDay(s.selected.String())
}

// SelectDay makes the requested ISO date the selected day. A malformed or
// out-of-range date selects the first day and the returned view carries a
// DateOutOfRangeWarning. Mini-card clicks go through here as well.
func (s *Synchronizer) SelectDay(requested string) (*View, error) {
	first, ok := s.window.FirstDay()
	if !ok {
		return nil, ErrNotLoaded
	}

	date, err := models.ParseDate(requested)
	if err == nil {
		if _, found := s.window.FindByDate(date); found {
			return s.render(date, nil), nil
		}
	}

	warning := &DateOutOfRangeWarning{Requested: requested, Corrected: first.Date}
	return s.render(first.Date, warning), nil
}

// SelectDate is SelectDay for an already parsed date
func (s *Synchronizer) SelectDate(date models.Date) (*View, error) {
	return s.SelectDay(date.String())
}

// View re-renders the current selection
func (s *Synchronizer) View() (*View, error) {
	if !s.window.Loaded() {
		return nil, ErrNotLoaded
	}
	return s.render(s.selected, nil), nil
}

// Selected returns the selected date, zero before the first load
func (s *Synchronizer) Selected() models.Date {
	return s.selected
}

// render builds the view for a date known to be in the window
func (s *Synchronizer) render(date models.Date, warning *DateOutOfRangeWarning) *View {
	s.selected = date
	idx, _ := s.window.indexOf(date)
	days := s.window.days
	day := days[idx]
	loc := s.window.Location()
	minDate, maxDate, _ := s.window.Bounds()

	view := &View{
		Provider:     s.window.Provider(),
		Availability: s.window.Availability(),
		Primary:      s.primary(day),
		LookAhead:    make([]LookAheadSlot, s.opts.LookAheadDays),
		Map: MapMarker{
			Latitude:  loc.Latitude,
			Longitude: loc.Longitude,
			Label:     loc.DisplayName(),
		},
		Chart: ChartSeries{
			Labels:        make([]string, len(days)),
			TemperaturesC: make([]float64, len(days)),
			SelectedIndex: idx,
		},
		Picker:  PickerState{Min: minDate, Max: maxDate, Value: date},
		Warning: warning,
	}

	for i := range view.LookAhead {
		next := idx + 1 + i
		if next >= len(days) {
			view.LookAhead[i] = LookAheadSlot{Hidden: true}
			continue
		}
		view.LookAhead[i] = s.lookAhead(days[next])
	}

	for i, d := range days {
		view.Chart.Labels[i] = s.labels.ShortDayLabel(d.Date)
		view.Chart.TemperaturesC[i] = d.AvgTempC
	}

	return view
}

func (s *Synchronizer) primary(day models.DayRecord) PrimaryPayload {
	p := PrimaryPayload{
		Date:          day.Date,
		DayName:       s.labels.DayName(day.Date),
		DateLabel:     s.labels.DateLabel(day.Date),
		TemperatureC:  RoundTemperature(day.AvgTempC),
		WindKph:       day.MaxWindKph,
		HumidityPct:   day.HumidityPct,
		ConditionText: day.ConditionText,
		ConditionIcon: IconURL(day.ConditionIcon),
	}
	if current := s.window.Current(); current != nil {
		pressure := current.PressureMb
		p.PressureMb = &pressure
	}
	return p
}

func (s *Synchronizer) lookAhead(day models.DayRecord) LookAheadSlot {
	return LookAheadSlot{
		Date:          day.Date,
		DayLabel:      s.labels.ShortDayLabel(day.Date),
		TemperatureC:  RoundTemperature(day.AvgTempC),
		ConditionText: day.ConditionText,
		ConditionIcon: IconURL(day.ConditionIcon),
	}
}
