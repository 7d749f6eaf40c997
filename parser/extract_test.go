package parser

import (
	"context"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/go-cmp/cmp"
	"github.com/sanjaysagar12/travelboutiqueonline-browser/models"
	"github.com/sanjaysagar12/travelboutiqueonline-browser/parser/parsertest"
)

func TestParsePageFullRecord(t *testing.T) {
	page := parsertest.Page(parsertest.Flight{
		Airline:     "Air India",
		Codes:       [][2]string{{"AI", "- 805"}, {"AI", "-2417"}},
		Departure:   "21:00",
		Origin:      "DEL",
		Arrival:     "07:15",
		Destination: "BLR",
		Duration:    "10h 15m",
		Stops:       "1 Stop",
		Fares: []parsertest.Fare{
			{Name: "Saver", Price: "₹ 5,432"},
			{Name: "Flexi Plus", Price: "₹ 6,100.50"},
		},
	})

	records, err := ParsePage(page)
	if err != nil {
		t.Fatalf("parse page: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("records=%d, want 1", len(records))
	}

	want := models.FlightRecord{
		models.FieldAirline:       "Air India",
		models.FieldFlightNumber:  "AI-805, AI-2417",
		models.FieldDepartureTime: "21:00",
		models.FieldOrigin:        "DEL",
		models.FieldArrivalTime:   "07:15",
		models.FieldDestination:   "BLR",
		models.FieldDuration:      "10h 15m",
		models.FieldStops:         "1 Stop",
		"Saver":                   "5432",
		"Flexi Plus":              "6100.50",
	}
	if diff := cmp.Diff(want, records[0]); diff != "" {
		t.Fatalf("record mismatch (-want +got):\n%s", diff)
	}
}

func TestParsePageMissingStructureUsesSentinels(t *testing.T) {
	page := parsertest.Page(parsertest.Flight{
		Fares: []parsertest.Fare{{Price: "3999"}},
	})

	records, err := ParsePage(page)
	if err != nil {
		t.Fatalf("parse page: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("records=%d, want 1", len(records))
	}
	r := records[0]

	for _, field := range []string{
		models.FieldAirline,
		models.FieldFlightNumber,
		models.FieldDepartureTime,
		models.FieldOrigin,
		models.FieldArrivalTime,
		models.FieldDestination,
		models.FieldDuration,
	} {
		if got := r[field]; got != models.NotAvailable {
			t.Errorf("%s=%q, want %q", field, got, models.NotAvailable)
		}
	}
	if got := r[models.FieldStops]; got != models.DefaultStops {
		t.Errorf("stops=%q, want %q", got, models.DefaultStops)
	}
	if got := r[models.DefaultFareName]; got != "3999" {
		t.Errorf("fare %q=%q, want 3999", models.DefaultFareName, got)
	}
}

func TestParsePageIncompleteFlightCodeSkipped(t *testing.T) {
	page := parsertest.Page(parsertest.Flight{
		Airline: "Vistara",
		Codes:   [][2]string{{"UK", ""}, {"UK", "-951"}, {"", "-100"}},
	})

	records, err := ParsePage(page)
	if err != nil {
		t.Fatalf("parse page: %v", err)
	}
	if got := records[0][models.FieldFlightNumber]; got != "UK-951" {
		t.Fatalf("flight number=%q, want UK-951", got)
	}
}

func TestParsePageMissingPriceTagAddsNoField(t *testing.T) {
	page := parsertest.Page(parsertest.Flight{
		Airline: "SpiceJet",
		Fares: []parsertest.Fare{
			{Name: "Saver", Price: "4100"},
			{Name: "Corporate", NoPrice: true},
		},
	})

	records, err := ParsePage(page)
	if err != nil {
		t.Fatalf("parse page: %v", err)
	}
	r := records[0]
	if _, ok := r["Corporate"]; ok {
		t.Fatalf("fare without price tag should not produce a field: %v", r)
	}
	if r["Saver"] != "4100" {
		t.Fatalf("Saver=%q, want 4100", r["Saver"])
	}
}

func TestParsePageSkipsFailingBlock(t *testing.T) {
	original := readBlock
	t.Cleanup(func() { readBlock = original })
	readBlock = func(res *goquery.Selection) models.FlightRecord {
		if flightNumbers(res) == "6E-101" {
			panic("malformed fare block")
		}
		return original(res)
	}

	records, err := ParsePage(parsertest.Page(parsertest.Flights(0, 3)...))
	if err != nil {
		t.Fatalf("parse page: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("records=%d, want 2", len(records))
	}
	for i, want := range []string{"6E-100", "6E-102"} {
		if got := records[i][models.FieldFlightNumber]; got != want {
			t.Fatalf("records[%d] flight=%q, want %q", i, got, want)
		}
	}
}

func TestParsePageDuplicateFareLastWins(t *testing.T) {
	page := parsertest.Page(parsertest.Flight{
		Airline: "Akasa Air",
		Fares: []parsertest.Fare{
			{Name: "Saver", Price: "4100"},
			{Name: "Saver", Price: "4300"},
		},
	})

	records, err := ParsePage(page)
	if err != nil {
		t.Fatalf("parse page: %v", err)
	}
	if got := records[0]["Saver"]; got != "4300" {
		t.Fatalf("Saver=%q, want 4300", got)
	}
}

func TestParsePageNoResults(t *testing.T) {
	records, err := ParsePage(parsertest.Page())
	if err != nil {
		t.Fatalf("parse page: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("records=%d, want 0", len(records))
	}
}

func TestServiceCachesByContent(t *testing.T) {
	svc, err := NewService(8)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	page := parsertest.Page(parsertest.Flights(0, 3)...)

	first, err := svc.Extract(context.Background(), page)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	first[0][models.FieldAirline] = "mutated"

	second, err := svc.Extract(context.Background(), page)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if svc.Len() != 1 {
		t.Fatalf("cache len=%d, want 1", svc.Len())
	}
	if len(second) != 3 {
		t.Fatalf("records=%d, want 3", len(second))
	}
	if second[0][models.FieldAirline] != "IndiGo" {
		t.Fatalf("cached records must not share state with callers, got %q", second[0][models.FieldAirline])
	}
}

func TestServiceWithoutCache(t *testing.T) {
	svc, err := NewService(0)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	records, err := svc.Extract(context.Background(), parsertest.Page(parsertest.Flights(0, 2)...))
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(records) != 2 || svc.Len() != 0 {
		t.Fatalf("records=%d cache=%d, want 2 and 0", len(records), svc.Len())
	}
}

func TestServiceHonoursCancelledContext(t *testing.T) {
	svc, err := NewService(1)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := svc.Extract(ctx, parsertest.Page()); err == nil {
		t.Fatalf("expected error for cancelled context")
	}
}
