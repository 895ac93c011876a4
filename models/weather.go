package models

import (
	"fmt"
	"time"
)

// Location is a resolved place with coordinates
type Location struct {
	Name      string  `json:"name"`
	Region    string  `json:"region,omitempty"`
	Country   string  `json:"country,omitempty"`
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
}

// DisplayName is the label used for the map marker popup
func (l Location) DisplayName() string {
	switch {
	case l.Name == "":
		return fmt.Sprintf("%.4f, %.4f", l.Latitude, l.Longitude)
	case l.Region == "" || l.Region == l.Name:
		return l.Name
	default:
		return fmt.Sprintf("%s, %s", l.Name, l.Region)
	}
}

// CurrentConditions are the location-level conditions reported alongside a forecast
type CurrentConditions struct {
	TempC         float64   `json:"tempC"`
	PressureMb    float64   `json:"pressureMb"`
	HumidityPct   float64   `json:"humidityPercent"`
	WindKph       float64   `json:"windKph"`
	ConditionText string    `json:"conditionText"`
	ConditionIcon string    `json:"conditionIcon"`
	Observed      time.Time `json:"observed"`
}
