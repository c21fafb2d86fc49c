package panel

import (
	"math"
	"strings"
	"time"
	_ "time/tzdata"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	// DefaultTimeZone is the zone timestamps are shown in when none is configured.
	DefaultTimeZone = "America/Sao_Paulo"

	emptyValuePlaceholder = "-"
	dateTimeLayout        = "02/01/2006, 15:04:05"
	dateLayout            = "02/01/2006"
	currencyPrefix        = "R$ "
)

// Offset-less layouts are read in the formatter's zone.
var localTimestampLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
}

// Formatter renders backend values the way Brazilian users read them.
type Formatter struct {
	location *time.Location
	printer  *message.Printer
}

// NewFormatter builds a Formatter for the named zone. An unknown zone falls back to UTC
// and is reported so the caller can log it.
func NewFormatter(timeZone string) (Formatter, error) {
	trimmedZone := strings.TrimSpace(timeZone)
	if trimmedZone == "" {
		trimmedZone = DefaultTimeZone
	}
	printer := message.NewPrinter(language.BrazilianPortuguese)
	location, loadErr := time.LoadLocation(trimmedZone)
	if loadErr != nil {
		return Formatter{location: time.UTC, printer: printer}, loadErr
	}
	return Formatter{location: location, printer: printer}, nil
}

// Location returns the zone timestamps are rendered in.
func (formatter Formatter) Location() *time.Location {
	if formatter.location == nil {
		return time.UTC
	}
	return formatter.location
}

// DateTime renders raw as DD/MM/YYYY, HH:MM:SS. Empty input yields "-"; unparseable input
// is returned as received.
func (formatter Formatter) DateTime(raw string) string {
	return formatter.render(raw, dateTimeLayout)
}

// Date renders raw as DD/MM/YYYY.
func (formatter Formatter) Date(raw string) string {
	return formatter.render(raw, dateLayout)
}

// Currency renders value in Brazilian reais, e.g. R$ 1.234,56.
func (formatter Formatter) Currency(value float64) string {
	printer := formatter.printer
	if printer == nil {
		printer = message.NewPrinter(language.BrazilianPortuguese)
	}
	rounded := math.Round(value*100) / 100
	if rounded < 0 {
		return "-" + currencyPrefix + printer.Sprintf("%.2f", -rounded)
	}
	return currencyPrefix + printer.Sprintf("%.2f", rounded)
}

func (formatter Formatter) render(raw string, layout string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return emptyValuePlaceholder
	}
	parsed, parsedOK := formatter.parse(trimmed)
	if !parsedOK {
		return trimmed
	}
	return parsed.In(formatter.Location()).Format(layout)
}

func (formatter Formatter) parse(value string) (time.Time, bool) {
	if parsed, parseErr := time.Parse(time.RFC3339Nano, value); parseErr == nil {
		return parsed, true
	}
	for _, layout := range localTimestampLayouts {
		if parsed, parseErr := time.ParseInLocation(layout, value, formatter.Location()); parseErr == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}
