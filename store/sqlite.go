package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sanjaysagar12/travelboutiqueonline-browser/models"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schema string

// SQLiteStore persists state as JSON values in a single kv table.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path. ":memory:"
// gives a private in-memory database.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create store dir: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// Every connection to ":memory:" is a separate database.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) SaveSnapshot(ctx context.Context, snap models.Snapshot) error {
	values := map[string]any{
		KeyStatus:          snap.Status,
		KeyPagesDownloaded: snap.PageCount,
		KeyLastCaptureTime: snap.LastCaptureTime,
		KeyCapturedURL:     snap.CapturedURL,
		KeyRunID:           snap.RunID,
		KeyStopReason:      snap.StopReason,
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	for key, value := range values {
		if err := put(ctx, tx, key, value); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}
	return nil
}

func (s *SQLiteStore) LoadSnapshot(ctx context.Context) (models.Snapshot, bool, error) {
	var snap models.Snapshot
	found, err := s.get(ctx, KeyStatus, &snap.Status)
	if err != nil || !found {
		return models.Snapshot{}, false, err
	}

	fields := []struct {
		key string
		dst any
	}{
		{KeyPagesDownloaded, &snap.PageCount},
		{KeyLastCaptureTime, &snap.LastCaptureTime},
		{KeyCapturedURL, &snap.CapturedURL},
		{KeyRunID, &snap.RunID},
		{KeyStopReason, &snap.StopReason},
	}
	for _, f := range fields {
		if _, err := s.get(ctx, f.key, f.dst); err != nil {
			return models.Snapshot{}, false, err
		}
	}
	return snap, true, nil
}

func (s *SQLiteStore) SaveRecords(ctx context.Context, records []models.FlightRecord) error {
	if records == nil {
		records = []models.FlightRecord{}
	}
	return put(ctx, s.db, KeyFlightData, records)
}

func (s *SQLiteStore) LoadRecords(ctx context.Context) ([]models.FlightRecord, error) {
	var records []models.FlightRecord
	if _, err := s.get(ctx, KeyFlightData, &records); err != nil {
		return nil, err
	}
	return records, nil
}

func (s *SQLiteStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv`); err != nil {
		return fmt.Errorf("clear store: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func put(ctx context.Context, db execer, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	_, err = db.ExecContext(ctx,
		`INSERT INTO kv (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, string(raw),
	)
	if err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) get(ctx context.Context, key string, dst any) (bool, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load %s: %w", key, err)
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}
