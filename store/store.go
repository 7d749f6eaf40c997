// Package store persists the observable session state: the status snapshot
// polled by clients and the accumulated flight records.
package store

import (
	"context"

	"github.com/sanjaysagar12/travelboutiqueonline-browser/models"
)

// Keys under which session state is stored.
const (
	KeyStatus          = "status"
	KeyPagesDownloaded = "pagesDownloaded"
	KeyLastCaptureTime = "lastCaptureTime"
	KeyCapturedURL     = "capturedUrl"
	KeyRunID           = "runId"
	KeyStopReason      = "stopReason"
	KeyFlightData      = "flightData"
)

// Store is the key/value persistence behind a session.
type Store interface {
	SaveSnapshot(ctx context.Context, snap models.Snapshot) error
	// LoadSnapshot returns ok=false when nothing was saved yet.
	LoadSnapshot(ctx context.Context) (snap models.Snapshot, ok bool, err error)
	SaveRecords(ctx context.Context, records []models.FlightRecord) error
	LoadRecords(ctx context.Context) ([]models.FlightRecord, error)
	Clear(ctx context.Context) error
	Close() error
}
