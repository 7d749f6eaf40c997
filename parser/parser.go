package parser

import (
	"strconv"
	"strings"

	"github.com/sanjaysagar12/travelboutiqueonline-browser/models"
)

// StripNonNumeric keeps only digits and decimal points.
func StripNonNumeric(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ParseNumeric strips s down to digits and decimal points and parses the
// longest leading number, so "1,234.50 INR" is 1234.5 and "12.3.4" is 12.3.
func ParseNumeric(s string) (float64, bool) {
	clean := StripNonNumeric(s)
	if i := strings.IndexByte(clean, '.'); i >= 0 {
		if j := strings.IndexByte(clean[i+1:], '.'); j >= 0 {
			clean = clean[:i+1+j]
		}
	}
	if clean == "" || clean == "." {
		return 0, false
	}
	v, err := strconv.ParseFloat(clean, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// PositivePrice reports whether value parses to a strictly positive number.
func PositivePrice(value string) bool {
	v, ok := ParseNumeric(value)
	return ok && v > 0
}

// FormatPrice renders v with two decimal places.
func FormatPrice(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// NormalizeDuration upper-cases the hour and minute markers ("2h 5m" -> "2H 5M").
func NormalizeDuration(d string) string {
	d = strings.ReplaceAll(d, "h", "H")
	return strings.ReplaceAll(d, "m", "M")
}

// NormalizeStops replaces the feed's zero-stop marker with a readable label.
func NormalizeStops(stops string) string {
	if strings.TrimSpace(stops) == models.DefaultStops {
		return models.NoStopLabel
	}
	return stops
}

// cleanText trims the surrounding whitespace of extracted text.
func cleanText(text string) string {
	return strings.TrimSpace(text)
}
