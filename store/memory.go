package store

import (
	"context"
	"sync"

	"github.com/sanjaysagar12/travelboutiqueonline-browser/models"
)

// MemoryStore keeps state for the lifetime of the process.
type MemoryStore struct {
	mu      sync.Mutex
	snap    *models.Snapshot
	records []models.FlightRecord
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) SaveSnapshot(_ context.Context, snap models.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if snap.LastCaptureTime != nil {
		t := *snap.LastCaptureTime
		snap.LastCaptureTime = &t
	}
	m.snap = &snap
	return nil
}

func (m *MemoryStore) LoadSnapshot(context.Context) (models.Snapshot, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.snap == nil {
		return models.Snapshot{}, false, nil
	}
	return *m.snap, true, nil
}

func (m *MemoryStore) SaveRecords(_ context.Context, records []models.FlightRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = models.CloneRecords(records)
	return nil
}

func (m *MemoryStore) LoadRecords(context.Context) ([]models.FlightRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return models.CloneRecords(m.records), nil
}

func (m *MemoryStore) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snap = nil
	m.records = nil
	return nil
}

func (m *MemoryStore) Close() error {
	return nil
}
