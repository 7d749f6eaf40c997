package pipeline

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/sanjaysagar12/travelboutiqueonline-browser/models"
	"github.com/sanjaysagar12/travelboutiqueonline-browser/parser"
)

// emptyPrice marks a fare cell without a numeric price in the HTML table.
const emptyPrice = "-"

// OutputWriter defines the interface for table output.
type OutputWriter interface {
	Write(schema Schema, records []models.FlightRecord) error
	Close() error
	Validate() error
}

// NewFileWriter returns the writer for format ("csv", "json", "html" or
// "dual"). For dual the JSON file sits next to filename with a .json suffix.
func NewFileWriter(format, filename string) (OutputWriter, error) {
	switch format {
	case "csv":
		return NewCSVWriter(filename)
	case "json":
		return NewJSONWriter(filename)
	case "html":
		return NewHTMLWriter(filename)
	case "dual":
		ext := filepath.Ext(filename)
		jsonFilename := filename[:len(filename)-len(ext)] + ".json"
		return NewDualWriter(filename, jsonFilename)
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

// WriteCSV writes the header row and one row per record. Values holding the
// delimiter or a quote are quoted with inner quotes doubled, as are values
// with a line break or a leading space; missing values are empty.
func WriteCSV(w io.Writer, schema Schema, records []models.FlightRecord) error {
	writer := csv.NewWriter(w)
	columns := schema.Columns()
	if err := writer.Write(columns); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	row := make([]string, len(columns))
	for _, r := range records {
		for i, col := range columns {
			row[i] = r.Get(col)
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("write csv record: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush csv records: %w", err)
	}
	return nil
}

// WriteJSON writes newline-delimited JSON objects limited to the schema
// columns.
func WriteJSON(w io.Writer, schema Schema, records []models.FlightRecord) error {
	encoder := json.NewEncoder(w)
	columns := schema.Columns()
	for _, r := range records {
		obj := make(map[string]string, len(columns))
		for _, col := range columns {
			obj[col] = r.Get(col)
		}
		if err := encoder.Encode(obj); err != nil {
			return fmt.Errorf("encode json record: %w", err)
		}
	}
	return nil
}

// RenderHTML renders the records as an HTML table for clipboard use. Fare
// cells are right-aligned with two decimals; fixed fields are raw text.
func RenderHTML(schema Schema, records []models.FlightRecord) string {
	t := table.NewWriter()
	t.Style().Format.Header = text.FormatDefault
	t.Style().HTML = table.HTMLOptions{
		CSSClass:    "flight-results",
		EmptyColumn: "&nbsp;",
		EscapeText:  true,
		Newline:     "<br/>",
	}

	columns := schema.Columns()
	header := make(table.Row, len(columns))
	for i, col := range columns {
		header[i] = col
	}
	t.AppendHeader(header)

	for _, r := range records {
		row := make(table.Row, len(columns))
		for i, col := range columns {
			row[i] = htmlCell(schema, col, r.Get(col))
		}
		t.AppendRow(row)
	}

	configs := make([]table.ColumnConfig, 0, len(schema.Fares))
	for _, fare := range schema.Fares {
		configs = append(configs, table.ColumnConfig{Name: fare, Align: text.AlignRight})
	}
	t.SetColumnConfigs(configs)

	return t.RenderHTML()
}

func htmlCell(schema Schema, col, value string) string {
	if !schema.IsFare(col) {
		return value
	}
	v, ok := parser.ParseNumeric(value)
	if !ok {
		return emptyPrice
	}
	return parser.FormatPrice(v)
}

// CSVWriter writes the unified table to a CSV file.
type CSVWriter struct {
	file *os.File
	mu   sync.Mutex
}

// NewCSVWriter creates the CSV file and its directory.
func NewCSVWriter(filename string) (*CSVWriter, error) {
	f, err := createFile(filename)
	if err != nil {
		return nil, fmt.Errorf("create csv file: %w", err)
	}
	return &CSVWriter{file: f}, nil
}

// Write writes the header and every record.
func (cw *CSVWriter) Write(schema Schema, records []models.FlightRecord) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	return WriteCSV(cw.file, schema, records)
}

// Close closes the file handle.
func (cw *CSVWriter) Close() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	return cw.file.Close()
}

// Validate ensures the file has content.
func (cw *CSVWriter) Validate() error {
	return validateFile(cw.file, "csv")
}

// JSONWriter writes newline-delimited JSON records.
type JSONWriter struct {
	file   *os.File
	writer *bufio.Writer
	mu     sync.Mutex
}

// NewJSONWriter initialises the JSON writer.
func NewJSONWriter(filename string) (*JSONWriter, error) {
	f, err := createFile(filename)
	if err != nil {
		return nil, fmt.Errorf("create json file: %w", err)
	}
	return &JSONWriter{
		file:   f,
		writer: bufio.NewWriter(f),
	}, nil
}

// Write appends records in JSONL format.
func (jw *JSONWriter) Write(schema Schema, records []models.FlightRecord) error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	if err := WriteJSON(jw.writer, schema, records); err != nil {
		return err
	}
	if err := jw.writer.Flush(); err != nil {
		return fmt.Errorf("flush json writer: %w", err)
	}
	return nil
}

// Close flushes buffers and closes the underlying file.
func (jw *JSONWriter) Close() error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	if err := jw.writer.Flush(); err != nil {
		return fmt.Errorf("flush json writer: %w", err)
	}
	return jw.file.Close()
}

// Validate ensures the JSON file has data.
func (jw *JSONWriter) Validate() error {
	return validateFile(jw.file, "json")
}

// HTMLWriter writes the clipboard table to a file.
type HTMLWriter struct {
	file *os.File
	mu   sync.Mutex
}

// NewHTMLWriter creates the HTML file and its directory.
func NewHTMLWriter(filename string) (*HTMLWriter, error) {
	f, err := createFile(filename)
	if err != nil {
		return nil, fmt.Errorf("create html file: %w", err)
	}
	return &HTMLWriter{file: f}, nil
}

// Write renders the table into the file.
func (hw *HTMLWriter) Write(schema Schema, records []models.FlightRecord) error {
	hw.mu.Lock()
	defer hw.mu.Unlock()
	if _, err := io.WriteString(hw.file, RenderHTML(schema, records)); err != nil {
		return fmt.Errorf("write html table: %w", err)
	}
	return nil
}

// Close closes the file handle.
func (hw *HTMLWriter) Close() error {
	hw.mu.Lock()
	defer hw.mu.Unlock()
	return hw.file.Close()
}

// Validate ensures the HTML file has content.
func (hw *HTMLWriter) Validate() error {
	return validateFile(hw.file, "html")
}

func createFile(filename string) (*os.File, error) {
	if err := ensureDir(filename); err != nil {
		return nil, err
	}
	return os.Create(filename)
}

func validateFile(f *os.File, kind string) error {
	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat %s file: %w", kind, err)
	}
	if info.Size() <= 0 {
		return fmt.Errorf("%s file is empty", kind)
	}
	return nil
}

func ensureDir(filename string) error {
	dir := filepath.Dir(filename)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	return nil
}
