package pipeline

import (
	"sync"
	"testing"

	"github.com/sanjaysagar12/travelboutiqueonline-browser/models"
)

func flight(airline string, fares map[string]string) models.FlightRecord {
	r := models.FlightRecord{
		models.FieldAirline:       airline,
		models.FieldFlightNumber:  "6E-101",
		models.FieldDepartureTime: "06:10",
		models.FieldOrigin:        "DEL",
		models.FieldArrivalTime:   "08:20",
		models.FieldDestination:   "BOM",
		models.FieldDuration:      "2h 10m",
		models.FieldStops:         models.DefaultStops,
	}
	for k, v := range fares {
		r[k] = v
	}
	return r
}

func TestCollectionAppendAndCopy(t *testing.T) {
	c := NewCollection()
	if got := c.Append(flight("IndiGo", nil), nil, flight("Vistara", nil)); got != 2 {
		t.Fatalf("len after append = %d, want 2", got)
	}
	if got := c.Append(flight("Akasa Air", nil)); got != 3 {
		t.Fatalf("len after append = %d, want 3", got)
	}
	if c.Pages() != 2 {
		t.Fatalf("pages = %d, want 2", c.Pages())
	}

	records := c.Records()
	records[0][models.FieldAirline] = "mutated"
	if c.Records()[0][models.FieldAirline] != "IndiGo" {
		t.Fatalf("Records must return copies")
	}

	c.Reset()
	if c.Len() != 0 || c.Pages() != 0 {
		t.Fatalf("reset left len=%d pages=%d", c.Len(), c.Pages())
	}
}

func TestCollectionConcurrentReaders(t *testing.T) {
	c := NewCollection()
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			c.Append(flight("IndiGo", map[string]string{"Saver": "4000"}))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			c.Unify()
			_ = c.Len()
		}
	}()
	wg.Wait()

	if c.Len() != 50 {
		t.Fatalf("len = %d, want 50", c.Len())
	}
}

func TestCollectionPreviewLeavesRecordsUntouched(t *testing.T) {
	c := NewCollection()
	c.Append(flight("IndiGo", map[string]string{"Saver": "4000"}))

	schema, records := c.Preview()
	if len(schema.Fares) != 1 || schema.Fares[0] != models.CanonicalFare {
		t.Fatalf("preview fares = %v, want [%s]", schema.Fares, models.CanonicalFare)
	}
	if records[0][models.CanonicalFare] != "4000" {
		t.Fatalf("preview row = %v", records[0])
	}

	c.Append(flight("Vistara", map[string]string{"Saver": "4500", "Flexi": "5200"}))
	schema, records = c.Unify()
	if len(schema.Fares) != 2 || schema.Fares[0] != "Flexi" || schema.Fares[1] != "Saver" {
		t.Fatalf("fares = %v, want [Flexi Saver]", schema.Fares)
	}
	if records[0]["Saver"] != "4000" {
		t.Fatalf("first record lost its fare name: %v", records[0])
	}
}

func TestCollectionApplyMarkupRejectsBeforeMutation(t *testing.T) {
	c := NewCollection()
	c.Append(flight("IndiGo", map[string]string{"Saver": "4000", "Flexi": "5000"}))

	if _, err := c.ApplyMarkup(10, ""); err != ErrNoColumn {
		t.Fatalf("err = %v, want ErrNoColumn", err)
	}
	if got := c.Records()[0][models.FieldFlightNumber]; got != "6E-101" {
		t.Fatalf("rejected markup must not unify records, flight number key = %q", got)
	}

	n, err := c.ApplyMarkup(100, "Saver")
	if err != nil {
		t.Fatalf("apply markup: %v", err)
	}
	if n != 1 {
		t.Fatalf("adjusted = %d, want 1", n)
	}
	if got := c.Records()[0]["Saver"]; got != "4100.00" {
		t.Fatalf("Saver = %q, want 4100.00", got)
	}
}
