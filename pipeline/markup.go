package pipeline

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/sanjaysagar12/travelboutiqueonline-browser/models"
	"github.com/sanjaysagar12/travelboutiqueonline-browser/parser"
)

// AllColumns targets every fare column.
const AllColumns = "ALL"

var (
	// ErrInvalidAmount is returned for a markup amount that is not finite.
	ErrInvalidAmount = errors.New("invalid markup amount")
	// ErrNoColumn is returned when column markup has no target column.
	ErrNoColumn = errors.New("no column selected")
	// ErrUnknownColumn is returned when the target is not a fare column.
	ErrUnknownColumn = errors.New("unknown fare column")
)

// ValidateMarkup checks the markup inputs without touching any record.
func ValidateMarkup(amount float64, column string) error {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return ErrInvalidAmount
	}
	if strings.TrimSpace(column) == "" {
		return ErrNoColumn
	}
	return nil
}

// AddMarkup adds amount to a raw price and formats the result with two
// decimals. Blank, unparseable and zero prices yield "" so no price is
// invented for a fare the record never had.
func AddMarkup(value string, amount float64) string {
	if strings.TrimSpace(value) == "" {
		return ""
	}
	v, ok := parser.ParseNumeric(value)
	if !ok || v == 0 {
		return ""
	}
	return parser.FormatPrice(v + amount)
}

// ApplyMarkup rewrites the targeted fare cells of records in place. Each call
// is a new adjustment, so repeated calls compound.
func ApplyMarkup(records []models.FlightRecord, schema Schema, amount float64, column string) (int, error) {
	if err := ValidateMarkup(amount, column); err != nil {
		return 0, err
	}

	targets := schema.Fares
	if column != AllColumns {
		if !schema.IsFare(column) {
			return 0, fmt.Errorf("%w: %q", ErrUnknownColumn, column)
		}
		targets = []string{column}
	}

	adjusted := 0
	for _, r := range records {
		for _, col := range targets {
			value, ok := r[col]
			if !ok {
				continue
			}
			r[col] = AddMarkup(value, amount)
			if r[col] != "" {
				adjusted++
			}
		}
	}
	return adjusted, nil
}
