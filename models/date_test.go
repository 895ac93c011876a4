package models

import (
	"encoding/json"
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{name: "valid", input: "2025-06-05"},
		{name: "leap day", input: "2024-02-29"},
		{name: "not a leap year", input: "2025-02-29", wantErr: true},
		{name: "datetime", input: "2025-06-05T10:00", wantErr: true},
		{name: "empty", input: "", wantErr: true},
		{name: "garbage", input: "next tuesday", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := ParseDate(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseDate(%q) = %v, want error", tt.input, d)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseDate(%q) failed: %v", tt.input, err)
			}
			if d.String() != tt.input {
				t.Errorf("ParseDate(%q).String() = %q", tt.input, d.String())
			}
		})
	}
}

func TestDateOfIgnoresTimeOfDay(t *testing.T) {
	loc := time.FixedZone("UTC-6", -6*3600)
	got := DateOf(time.Date(2025, 6, 5, 23, 30, 0, 0, loc))
	if want := NewDate(2025, time.June, 5); !got.Equal(want) {
		t.Errorf("DateOf() = %v, want %v", got, want)
	}
}

func TestDateAddDaysAcrossMonth(t *testing.T) {
	d := NewDate(2025, time.June, 30).AddDays(1)
	if d.String() != "2025-07-01" {
		t.Errorf("AddDays(1) = %v, want 2025-07-01", d)
	}
}

func TestDateJSON(t *testing.T) {
	rec := DayRecord{Date: NewDate(2025, time.June, 1), AvgTempC: 21.5}
	b, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var back DayRecord
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if !back.Date.Equal(rec.Date) {
		t.Errorf("round trip date = %v, want %v", back.Date, rec.Date)
	}

	if err := json.Unmarshal([]byte(`{"date":"06/01/2025"}`), &back); err == nil {
		t.Errorf("expected error for malformed date")
	}
}

func TestLocationDisplayName(t *testing.T) {
	tests := []struct {
		loc  Location
		want string
	}{
		{Location{Name: "Oaxaca", Region: "Oaxaca"}, "Oaxaca"},
		{Location{Name: "Huajuapan de León", Region: "Oaxaca"}, "Huajuapan de León, Oaxaca"},
		{Location{Name: "Tijuana"}, "Tijuana"},
		{Location{Latitude: 17.827, Longitude: -97.8043}, "17.8270, -97.8043"},
	}
	for _, tt := range tests {
		if got := tt.loc.DisplayName(); got != tt.want {
			t.Errorf("DisplayName(%+v) = %q, want %q", tt.loc, got, tt.want)
		}
	}
}
