package forecast

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"weather-dashboard/models"
)

type localeNames struct {
	weekdays      [7]string // Sunday first
	shortWeekdays [7]string
	months        [12]string
	dayMonth      func(day int, month string) string
}

var spanishNames = localeNames{
	weekdays:      [7]string{"domingo", "lunes", "martes", "miércoles", "jueves", "viernes", "sábado"},
	shortWeekdays: [7]string{"dom.", "lun.", "mar.", "mié.", "jue.", "vie.", "sáb."},
	months: [12]string{"enero", "febrero", "marzo", "abril", "mayo", "junio", "julio",
		"agosto", "septiembre", "octubre", "noviembre", "diciembre"},
	dayMonth: func(day int, month string) string { return fmt.Sprintf("%d de %s", day, month) },
}

var englishNames = localeNames{
	weekdays:      [7]string{"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"},
	shortWeekdays: [7]string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"},
	months: [12]string{"January", "February", "March", "April", "May", "June", "July",
		"August", "September", "October", "November", "December"},
	dayMonth: func(day int, month string) string { return fmt.Sprintf("%s %d", month, day) },
}

// Spanish comes first so it is the matcher's default.
var (
	supportedTags  = []language.Tag{language.Spanish, language.English}
	supportedNames = []localeNames{spanishNames, englishNames}
	localeMatcher  = language.NewMatcher(supportedTags)
)

// Labeler formats dates for display in a locale
type Labeler struct {
	tag   language.Tag
	names localeNames
}

// NewLabeler returns a labeler for the closest supported match of locale
func NewLabeler(locale string) (*Labeler, error) {
	tag := language.Spanish
	if locale != "" {
		parsed, err := language.Parse(locale)
		if err != nil {
			return nil, fmt.Errorf("invalid locale %q: %w", locale, err)
		}
		tag = parsed
	}
	_, idx, _ := localeMatcher.Match(tag)
	return &Labeler{tag: supportedTags[idx], names: supportedNames[idx]}, nil
}

// Tag returns the matched language
func (l *Labeler) Tag() language.Tag {
	return l.tag
}

// DayName is the capitalized long weekday, e.g. "Jueves"
func (l *Labeler) DayName(d models.Date) string {
	return cases.Title(l.tag).String(l.names.weekdays[d.Weekday()])
}

// DateLabel is the day and long month, e.g. "5 de junio"
func (l *Labeler) DateLabel(d models.Date) string {
	return l.names.dayMonth(d.Day(), l.names.months[d.Month()-1])
}

// ShortDayLabel is the upper-case abbreviated weekday without a trailing dot, e.g. "JUE"
func (l *Labeler) ShortDayLabel(d models.Date) string {
	short := cases.Upper(l.tag).String(l.names.shortWeekdays[d.Weekday()])
	return strings.Replace(short, ".", "", 1)
}
