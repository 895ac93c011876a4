package models

import (
	"sort"
	"time"
)

// DayRecord is one day's forecast summary
type DayRecord struct {
	Date          Date    `json:"date"`
	AvgTempC      float64 `json:"avgTempC"`        // in Celsius
	MaxWindKph    float64 `json:"maxWindKph"`      // in km/h
	HumidityPct   float64 `json:"humidityPercent"` // percentage
	ConditionText string  `json:"conditionText"`   // short text description
	ConditionIcon string  `json:"conditionIcon"`   // icon code or URL
}

// Availability tells where a forecast actually came from
type Availability string

const (
	// Live data from a configured weather provider or prediction backend
	Live Availability = "live"
	// Demo data synthesized because no live source was reachable
	Demo Availability = "demo"
	// LocalFallback data synthesized for a location from the built-in table
	LocalFallback Availability = "local_fallback"
)

// ForecastData is a multi-day forecast for one location as returned by a source
type ForecastData struct {
	Provider     string             `json:"provider"`          // data provider name
	Query        string             `json:"query"`             // location query that produced it
	Location     Location           `json:"location"`          // resolved location
	Days         []DayRecord        `json:"days"`              // ordered by date
	Current      *CurrentConditions `json:"current,omitempty"` // location-level conditions, if provided
	Availability Availability       `json:"availability"`      // live, demo or local_fallback
	Note         string             `json:"note,omitempty"`    // human readable note for non-live data
	Updated      time.Time          `json:"updated"`           // when this forecast was fetched
}

// SortDays orders the day records ascending by date
func (f *ForecastData) SortDays() {
	sort.SliceStable(f.Days, func(i, j int) bool {
		return f.Days[i].Date.Before(f.Days[j].Date)
	})
}

// TruncateDays keeps at most n days
func (f *ForecastData) TruncateDays(n int) {
	if n >= 0 && len(f.Days) > n {
		f.Days = f.Days[:n]
	}
}
