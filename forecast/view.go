package forecast

import (
	"fmt"
	"math"
	"strings"

	"weather-dashboard/models"
)

// DateOutOfRangeWarning reports that a requested date was not in the window
// and the selection fell back to the first day. Callers should write Corrected
// back into their date picker.
type DateOutOfRangeWarning struct {
	Requested string      `json:"requested"`
	Corrected models.Date `json:"corrected"`
}

func (w *DateOutOfRangeWarning) String() string {
	return fmt.Sprintf("date %q outside forecast window, showing %s", w.Requested, w.Corrected)
}

// PrimaryPayload is what the main card shows for the selected day
type PrimaryPayload struct {
	Date          models.Date `json:"date"`
	DayName       string      `json:"dayName"`
	DateLabel     string      `json:"dateLabel"`
	TemperatureC  int         `json:"temperatureC"`
	WindKph       float64     `json:"windKph"`
	HumidityPct   float64     `json:"humidityPercent"`
	PressureMb    *float64    `json:"pressureMb,omitempty"`
	ConditionText string      `json:"conditionText"`
	ConditionIcon string      `json:"conditionIcon"`
}

// LookAheadSlot is one mini-card. Hidden slots carry no data.
type LookAheadSlot struct {
	Hidden        bool        `json:"hidden"`
	Date          models.Date `json:"date"`
	DayLabel      string      `json:"dayLabel,omitempty"`
	TemperatureC  int         `json:"temperatureC"`
	ConditionText string      `json:"conditionText,omitempty"`
	ConditionIcon string      `json:"conditionIcon,omitempty"`
}

// MapMarker positions the map widget
type MapMarker struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
	Label     string  `json:"label"`
}

// ChartSeries feeds the temperature chart widget
type ChartSeries struct {
	Labels        []string  `json:"labels"`
	TemperaturesC []float64 `json:"temperaturesC"`
	SelectedIndex int       `json:"selectedIndex"`
}

// PickerState clamps and sets the date picker control
type PickerState struct {
	Min   models.Date `json:"min"`
	Max   models.Date `json:"max"`
	Value models.Date `json:"value"`
}

// View is the full set of payloads derived from one selection
type View struct {
	Provider     string                 `json:"provider"`
	Availability models.Availability    `json:"availability"`
	Primary      PrimaryPayload         `json:"primary"`
	LookAhead    []LookAheadSlot        `json:"lookAhead"`
	Map          MapMarker              `json:"map"`
	Chart        ChartSeries            `json:"chart"`
	Picker       PickerState            `json:"picker"`
	Warning      *DateOutOfRangeWarning `json:"warning,omitempty"`
}

// VisibleLookAhead returns only the populated look-ahead slots
func (v *View) VisibleLookAhead() []LookAheadSlot {
	visible := make([]LookAheadSlot, 0, len(v.LookAhead))
	for _, slot := range v.LookAhead {
		if !slot.Hidden {
			visible = append(visible, slot)
		}
	}
	return visible
}

// RoundTemperature rounds half up, so 20.5 becomes 21 and -0.5 becomes 0
func RoundTemperature(c float64) int {
	f := math.Floor(c)
	if c-f >= 0.5 {
		f++
	}
	return int(f)
}

// IconURL turns a protocol-relative icon reference into an https URL
func IconURL(ref string) string {
	if strings.HasPrefix(ref, "//") {
		return "https:" + ref
	}
	return ref
}
