// Package models defines data structures for the flight scraper.
package models

import "sort"

// Fixed fields emitted by the extractor for every result block.
const (
	FieldAirline       = "Airline"
	FieldFlightNumber  = "FlightNumber"
	FieldDepartureTime = "DepartureTime"
	FieldOrigin        = "Origin"
	FieldArrivalTime   = "ArrivalTime"
	FieldDestination   = "Destination"
	FieldDuration      = "Duration"
	FieldStops         = "Stops"
)

// LabelFlightNumber is the presentation name FieldFlightNumber is renamed to
// once records are unified.
const LabelFlightNumber = "Flight #"

const (
	NotAvailable    = "N/A"
	DefaultStops    = "0 Stop"
	NoStopLabel     = "No Stop"
	DefaultFareName = "Standard"
	CanonicalFare   = "Fare"
)

// ExtractedFields lists the fixed fields in extraction order.
var ExtractedFields = []string{
	FieldAirline,
	FieldFlightNumber,
	FieldDepartureTime,
	FieldOrigin,
	FieldArrivalTime,
	FieldDestination,
	FieldDuration,
	FieldStops,
}

// BaseColumns lists the fixed fields in presentation order, after unification.
var BaseColumns = []string{
	FieldAirline,
	LabelFlightNumber,
	FieldDepartureTime,
	FieldOrigin,
	FieldArrivalTime,
	FieldDestination,
	FieldDuration,
	FieldStops,
}

// IsFixedField reports whether name is one of the fixed fields, under either
// its extracted or its presentation name.
func IsFixedField(name string) bool {
	if name == FieldFlightNumber {
		return true
	}
	for _, f := range BaseColumns {
		if f == name {
			return true
		}
	}
	return false
}

// FlightRecord maps field names to raw string values. Fare fields are keyed
// by fare name and only present when the fare appeared on the source page.
type FlightRecord map[string]string

// Get returns the value for field, or "" when absent.
func (r FlightRecord) Get(field string) string {
	if r == nil {
		return ""
	}
	return r[field]
}

// Clone returns an independent copy of the record.
func (r FlightRecord) Clone() FlightRecord {
	if r == nil {
		return nil
	}
	out := make(FlightRecord, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Keys returns the record's field names sorted alphabetically.
func (r FlightRecord) Keys() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// CloneRecords deep copies a record slice.
func CloneRecords(records []FlightRecord) []FlightRecord {
	out := make([]FlightRecord, len(records))
	for i, r := range records {
		out[i] = r.Clone()
	}
	return out
}

// RequestTemplate is the captured request every page fetch is derived from.
type RequestTemplate struct {
	URL    string `json:"url" yaml:"url"`
	Method string `json:"method" yaml:"method"`
}
