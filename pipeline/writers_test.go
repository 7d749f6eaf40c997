package pipeline

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sanjaysagar12/travelboutiqueonline-browser/models"
)

func unifiedSample() (Schema, []models.FlightRecord) {
	records := []models.FlightRecord{
		flight("Air India, Star Alliance", map[string]string{"Saver": "4000", "Flexi": "5000.5"}),
		flight(`The "Red" Airline`, map[string]string{"Flexi": "5100"}),
	}
	return Unify(records), records
}

func TestWriteCSVQuoting(t *testing.T) {
	schema, records := unifiedSample()

	var buf bytes.Buffer
	if err := WriteCSV(&buf, schema, records); err != nil {
		t.Fatalf("write csv: %v", err)
	}

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("lines=%d, want 3:\n%s", len(lines), buf.String())
	}
	if lines[0] != "Airline,Flight #,DepartureTime,Origin,ArrivalTime,Destination,Duration,Stops,Flexi,Saver" {
		t.Fatalf("unexpected header: %s", lines[0])
	}
	if !strings.HasPrefix(lines[1], `"Air India, Star Alliance",`) {
		t.Fatalf("comma value must be quoted: %s", lines[1])
	}
	if !strings.HasPrefix(lines[2], `"The ""Red"" Airline",`) {
		t.Fatalf("quote value must be quoted and doubled: %s", lines[2])
	}
	if !strings.HasSuffix(lines[2], ",5100,") {
		t.Fatalf("missing fare must render empty: %s", lines[2])
	}
}

func TestWriteCSVRoundTrip(t *testing.T) {
	values := []string{
		"plain",
		"with, comma",
		`with "quotes"`,
		`both, "of" them`,
		`""`,
		"6E-101, 6E-202",
	}
	schema := Schema{Base: []string{"Value"}}
	records := make([]models.FlightRecord, 0, len(values))
	for _, v := range values {
		records = append(records, models.FlightRecord{"Value": v})
	}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, schema, records); err != nil {
		t.Fatalf("write csv: %v", err)
	}

	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(rows) != len(values)+1 {
		t.Fatalf("rows=%d, want %d", len(rows), len(values)+1)
	}
	for i, v := range values {
		if rows[i+1][0] != v {
			t.Fatalf("row %d = %q, want %q", i+1, rows[i+1][0], v)
		}
	}
}

func TestWriteCSVQuotesLeadingSpaceAndNewline(t *testing.T) {
	schema := Schema{Base: []string{"Value"}}
	records := []models.FlightRecord{{"Value": " DEL"}, {"Value": "two\nlines"}, {"Value": "BOM "}}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, schema, records); err != nil {
		t.Fatalf("write csv: %v", err)
	}

	want := "Value\n\" DEL\"\n\"two\nlines\"\nBOM \n"
	if buf.String() != want {
		t.Fatalf("csv = %q, want %q", buf.String(), want)
	}
}

func TestRenderHTML(t *testing.T) {
	schema, records := unifiedSample()

	html := RenderHTML(schema, records)

	for _, want := range []string{
		"<table",
		"Flight #",
		"5000.50",
		"4000.00",
		`align="right"`,
		"The &#34;Red&#34; Airline",
	} {
		if !strings.Contains(html, want) {
			t.Fatalf("html missing %q:\n%s", want, html)
		}
	}
	if strings.Contains(html, ">5100<") {
		t.Fatalf("fare cells must be fixed to two decimals:\n%s", html)
	}
}

func TestCSVWriterWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out", "flights.csv")

	writer, err := NewCSVWriter(path)
	if err != nil {
		t.Fatalf("create csv writer: %v", err)
	}
	schema, records := unifiedSample()
	if err := writer.Write(schema, records); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	if err := writer.Validate(); err != nil {
		t.Fatalf("validate csv: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close csv: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open csv: %v", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows=%d, want 3", len(rows))
	}
	if rows[0][0] != "Airline" || rows[0][1] != models.LabelFlightNumber {
		t.Fatalf("unexpected header: %v", rows[0])
	}
}

func TestJSONWriterWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "flights.jsonl")

	writer, err := NewJSONWriter(path)
	if err != nil {
		t.Fatalf("create json writer: %v", err)
	}
	schema, records := unifiedSample()
	if err := writer.Write(schema, records); err != nil {
		t.Fatalf("write json: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close json: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open json: %v", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	var lines int
	for scanner.Scan() {
		var obj map[string]string
		if err := json.Unmarshal(scanner.Bytes(), &obj); err != nil {
			t.Fatalf("decode line: %v", err)
		}
		if _, ok := obj["Saver"]; !ok {
			t.Fatalf("every line carries every schema column: %v", obj)
		}
		lines++
	}
	if lines != 2 {
		t.Fatalf("lines=%d, want 2", lines)
	}
}

func TestNewFileWriterFormats(t *testing.T) {
	dir := t.TempDir()
	schema, records := unifiedSample()

	for _, format := range []string{"csv", "json", "html", "dual"} {
		t.Run(format, func(t *testing.T) {
			path := filepath.Join(dir, format, "flights.csv")
			writer, err := NewFileWriter(format, path)
			if err != nil {
				t.Fatalf("new writer: %v", err)
			}
			if err := writer.Write(schema, records); err != nil {
				t.Fatalf("write: %v", err)
			}
			if err := writer.Validate(); err != nil {
				t.Fatalf("validate: %v", err)
			}
			if err := writer.Close(); err != nil {
				t.Fatalf("close: %v", err)
			}
		})
	}

	if _, err := os.Stat(filepath.Join(dir, "dual", "flights.json")); err != nil {
		t.Fatalf("dual writer should create the json sibling: %v", err)
	}
	if _, err := NewFileWriter("xml", filepath.Join(dir, "x.xml")); err == nil {
		t.Fatalf("expected unsupported format error")
	}
}
