// Package pipeline accumulates extracted flight records and derives the
// unified table, price markup and exports from them.
package pipeline

import (
	"sync"

	"github.com/sanjaysagar12/travelboutiqueonline-browser/models"
)

// Collection is the append-only record set of one session. During a run the
// pagination driver is its only writer; readers always receive copies.
type Collection struct {
	mu      sync.Mutex
	records []models.FlightRecord
	pages   int
}

// NewCollection returns an empty collection.
func NewCollection() *Collection {
	return &Collection{}
}

// Append adds one page worth of records and returns the new total. The
// collection takes ownership of the records; nil entries are ignored.
func (c *Collection) Append(records ...models.FlightRecord) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, r := range records {
		if r == nil {
			continue
		}
		c.records = append(c.records, r)
	}
	c.pages++
	return len(c.records)
}

// Replace swaps the whole record set, used when restoring persisted data.
func (c *Collection) Replace(records []models.FlightRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = models.CloneRecords(records)
	c.pages = 0
}

// Reset drops every record.
func (c *Collection) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = nil
	c.pages = 0
}

// Len returns the number of records.
func (c *Collection) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.records)
}

// Pages returns how many Append calls fed the collection since the last reset.
func (c *Collection) Pages() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pages
}

// Records returns a deep copy of the records in insertion order.
func (c *Collection) Records() []models.FlightRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	return models.CloneRecords(c.records)
}

// Unify normalizes the stored records in place and returns the derived
// schema together with a copy of the normalized records.
func (c *Collection) Unify() (Schema, []models.FlightRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	schema := Unify(c.records)
	return schema, models.CloneRecords(c.records)
}

// Preview derives the schema from a copy of the records and leaves the
// stored records untouched. Reads taken while a run is still appending use
// it, since the single fare rename would not see later pages.
func (c *Collection) Preview() (Schema, []models.FlightRecord) {
	c.mu.Lock()
	records := models.CloneRecords(c.records)
	c.mu.Unlock()
	return Unify(records), records
}

// ApplyMarkup unifies the stored records and adds amount to the targeted
// fare column, or to every fare column for AllColumns. It returns the number
// of prices that were adjusted.
func (c *Collection) ApplyMarkup(amount float64, column string) (int, error) {
	if err := ValidateMarkup(amount, column); err != nil {
		return 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	schema := Unify(c.records)
	return ApplyMarkup(c.records, schema, amount, column)
}
