package datasource

import (
	"context"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"weather-dashboard/models"
)

// MaxSuggestions caps the suggestion list offered by the location table
const MaxSuggestions = 5

// DefaultLocation is used when no query or coordinates are supplied
var DefaultLocation = models.Location{
	Name:      "Huajuapan de León",
	Region:    "Oaxaca",
	Country:   "México",
	Latitude:  17.827,
	Longitude: -97.8043,
}

type tableEntry struct {
	key      string
	location models.Location
}

// LocationTable resolves place names without a live backend
type LocationTable struct {
	entries []tableEntry
}

// NewLocationTable builds a table from keyed locations. Lookup walks entries in order.
func NewLocationTable(keys []string, locations []models.Location) *LocationTable {
	t := &LocationTable{}
	for i, loc := range locations {
		key := strings.ToLower(loc.Name)
		if i < len(keys) && keys[i] != "" {
			key = keys[i]
		}
		t.entries = append(t.entries, tableEntry{key: key, location: loc})
	}
	return t
}

// PredefinedLocations returns the built-in table of Mexican cities
func PredefinedLocations() *LocationTable {
	mx := func(name, region string, lat, lon float64) models.Location {
		return models.Location{Name: name, Region: region, Country: "México", Latitude: lat, Longitude: lon}
	}
	return NewLocationTable(
		[]string{"oaxaca", "cdmx", "guadalajara", "monterrey", "cancun", "merida", "tijuana", "puebla",
			"leon", "juarez", "acapulco", "veracruz", "toluca", "chihuahua", "tampico", "huajuapan"},
		[]models.Location{
			mx("Oaxaca", "Oaxaca", 17.0654, -96.7236),
			mx("Ciudad de México", "CDMX", 19.4326, -99.1332),
			mx("Guadalajara", "Jalisco", 20.6597, -103.3496),
			mx("Monterrey", "Nuevo León", 25.6866, -100.3161),
			mx("Cancún", "Quintana Roo", 21.1619, -86.8515),
			mx("Mérida", "Yucatán", 20.9674, -89.5926),
			mx("Tijuana", "Baja California", 32.5027, -117.0037),
			mx("Puebla", "Puebla", 19.0414, -98.2063),
			mx("León", "Guanajuato", 21.1289, -101.6860),
			mx("Ciudad Juárez", "Chihuahua", 31.6904, -106.4245),
			mx("Acapulco", "Guerrero", 16.8531, -99.8237),
			mx("Veracruz", "Veracruz", 19.1738, -96.1342),
			mx("Toluca", "Estado de México", 19.2926, -99.6568),
			mx("Chihuahua", "Chihuahua", 28.6353, -106.0889),
			mx("Tampico", "Tamaulipas", 22.2331, -97.8614),
			DefaultLocation,
		},
	)
}

// Lookup finds an entry by exact name, else the first entry whose key or
// name overlaps the normalized query
func (t *LocationTable) Lookup(name string) (models.Location, bool) {
	search := searchKey(name)
	if search == "" {
		return models.Location{}, false
	}
	exact := fold(strings.TrimSpace(name))
	for _, e := range t.entries {
		if fold(e.location.Name) == exact || e.key == exact {
			return e.location, true
		}
	}
	for _, e := range t.entries {
		key := fold(e.key)
		locName := fold(e.location.Name)
		if strings.Contains(key, search) ||
			strings.Contains(search, key) ||
			strings.Contains(locName, search) ||
			strings.Contains(search, stripSpaces(locName)) {
			return e.location, true
		}
	}
	return models.Location{}, false
}

// Search returns up to limit entries whose name or region contains query
func (t *LocationTable) Search(query string, limit int) []models.Location {
	if limit <= 0 || limit > MaxSuggestions {
		limit = MaxSuggestions
	}
	q := fold(strings.TrimSpace(query))
	results := make([]models.Location, 0, limit)
	if q == "" {
		return results
	}
	for _, e := range t.entries {
		if strings.Contains(fold(e.location.Name), q) || strings.Contains(fold(e.location.Region), q) {
			results = append(results, e.location)
			if len(results) == limit {
				break
			}
		}
	}
	return results
}

// SearchLocations implements LocationSearcher over the table
func (t *LocationTable) SearchLocations(_ context.Context, query string, limit int) ([]models.Location, error) {
	return t.Search(query, limit), nil
}

var _ LocationSearcher = (*LocationTable)(nil)

// searchKey drops whitespace and the first occurrence of common
// place-name prefixes, so "Ciudad de México" and "mexico" meet
func searchKey(name string) string {
	key := stripSpaces(fold(name))
	for _, word := range []string{"ciudad", "de", "san", "santa"} {
		key = strings.Replace(key, word, "", 1)
	}
	return key
}

func stripSpaces(s string) string {
	return strings.Join(strings.Fields(s), "")
}

// fold lower-cases and removes diacritics
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}
