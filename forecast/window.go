package forecast

import (
	"errors"
	"fmt"

	"weather-dashboard/models"
)

var (
	// ErrEmptyWindow is returned when a forecast with no days is loaded
	ErrEmptyWindow = errors.New("forecast window is empty")
	// ErrDuplicateDate is returned when two day records share a date
	ErrDuplicateDate = errors.New("forecast window has duplicate dates")
	// ErrNotLoaded is returned by selection operations before the first successful Load
	ErrNotLoaded = errors.New("forecast window not loaded")
)

// Window holds the forecast days and location currently loaded for a dashboard.
// The zero value is an unloaded window.
type Window struct {
	days         []models.DayRecord
	index        map[string]int // date string -> position in days
	location     models.Location
	current      *models.CurrentConditions
	provider     string
	availability models.Availability
}

// Load replaces the window contents with data. On error the previous
// contents are kept.
func (w *Window) Load(data models.ForecastData) error {
	if len(data.Days) == 0 {
		return ErrEmptyWindow
	}

	sorted := data
	sorted.Days = append([]models.DayRecord(nil), data.Days...)
	sorted.SortDays()

	index := make(map[string]int, len(sorted.Days))
	for i, day := range sorted.Days {
		key := day.Date.String()
		if _, dup := index[key]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateDate, key)
		}
		index[key] = i
	}

	var current *models.CurrentConditions
	if data.Current != nil {
		c := *data.Current
		current = &c
	}

	w.days = sorted.Days
	w.index = index
	w.location = data.Location
	w.current = current
	w.provider = data.Provider
	w.availability = data.Availability
	return nil
}

// Loaded reports whether a forecast has been loaded
func (w *Window) Loaded() bool {
	return len(w.days) > 0
}

// Len returns the number of days in the window
func (w *Window) Len() int {
	return len(w.days)
}

// FindByDate returns the day with exactly the given date
func (w *Window) FindByDate(date models.Date) (models.DayRecord, bool) {
	i, ok := w.indexOf(date)
	if !ok {
		return models.DayRecord{}, false
	}
	return w.days[i], true
}

func (w *Window) indexOf(date models.Date) (int, bool) {
	i, ok := w.index[date.String()]
	return i, ok
}

// FirstDay returns the earliest day in the window
func (w *Window) FirstDay() (models.DayRecord, bool) {
	if !w.Loaded() {
		return models.DayRecord{}, false
	}
	return w.days[0], true
}

// Bounds returns the first and last dates in the window
func (w *Window) Bounds() (minDate, maxDate models.Date, ok bool) {
	if !w.Loaded() {
		return models.Date{}, models.Date{}, false
	}
	return w.days[0].Date, w.days[len(w.days)-1].Date, true
}

// Days returns a copy of the day records
func (w *Window) Days() []models.DayRecord {
	return append([]models.DayRecord(nil), w.days...)
}

// Location returns the location of the loaded forecast
func (w *Window) Location() models.Location {
	return w.location
}

// Current returns the location-level conditions, or nil if the source had none
func (w *Window) Current() *models.CurrentConditions {
	return w.current
}

// Provider returns the name of the source that produced the window
func (w *Window) Provider() string {
	return w.provider
}

// Availability returns where the loaded data came from
func (w *Window) Availability() models.Availability {
	return w.availability
}
