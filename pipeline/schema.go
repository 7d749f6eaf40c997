package pipeline

import (
	"sort"

	"github.com/sanjaysagar12/travelboutiqueonline-browser/models"
	"github.com/sanjaysagar12/travelboutiqueonline-browser/parser"
)

// Schema is the column layout derived from a record set.
type Schema struct {
	Base  []string
	Fares []string
}

// Columns returns the base columns followed by the fare columns.
func (s Schema) Columns() []string {
	out := make([]string, 0, len(s.Base)+len(s.Fares))
	out = append(out, s.Base...)
	return append(out, s.Fares...)
}

// IsFare reports whether col is one of the derived fare columns.
func (s Schema) IsFare(col string) bool {
	for _, f := range s.Fares {
		if f == col {
			return true
		}
	}
	return false
}

// Unify normalizes records in place and derives their schema.
//
// Fixed fields get their presentation form: the flight number key is
// renamed, the zero-stop marker is relabelled and duration markers are
// upper-cased. Fare columns are every other key holding a strictly positive
// price in at least one record, sorted alphabetically. When exactly one
// survives it is renamed to models.CanonicalFare in every record. Running
// Unify again on its own output changes nothing.
func Unify(records []models.FlightRecord) Schema {
	for _, r := range records {
		normalizeRecord(r)
	}

	fares := fareColumns(records)
	if len(fares) == 1 && fares[0] != models.CanonicalFare {
		renameField(records, fares[0], models.CanonicalFare)
		fares = []string{models.CanonicalFare}
	}

	base := make([]string, len(models.BaseColumns))
	copy(base, models.BaseColumns)
	return Schema{Base: base, Fares: fares}
}

func normalizeRecord(r models.FlightRecord) {
	if r == nil {
		return
	}
	if v, ok := r[models.FieldFlightNumber]; ok {
		r[models.LabelFlightNumber] = v
		delete(r, models.FieldFlightNumber)
	}
	if v, ok := r[models.FieldStops]; ok {
		r[models.FieldStops] = parser.NormalizeStops(v)
	}
	if v, ok := r[models.FieldDuration]; ok {
		r[models.FieldDuration] = parser.NormalizeDuration(v)
	}
}

func fareColumns(records []models.FlightRecord) []string {
	seen := make(map[string]bool)
	for _, r := range records {
		for key, value := range r {
			if models.IsFixedField(key) {
				continue
			}
			if parser.PositivePrice(value) {
				seen[key] = true
			} else if _, ok := seen[key]; !ok {
				seen[key] = false
			}
		}
	}

	fares := make([]string, 0, len(seen))
	for key, keep := range seen {
		if keep {
			fares = append(fares, key)
		}
	}
	sort.Strings(fares)
	return fares
}

func renameField(records []models.FlightRecord, from, to string) {
	for _, r := range records {
		if v, ok := r[from]; ok {
			r[to] = v
			delete(r, from)
		}
	}
}
