// Package session owns the capture/scrape lifecycle: idle, ready, scraping
// and finished. Commands may arrive at any time; the pagination run is the
// only writer of the record collection while it is active.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sanjaysagar12/travelboutiqueonline-browser/models"
	"github.com/sanjaysagar12/travelboutiqueonline-browser/pipeline"
	"github.com/sanjaysagar12/travelboutiqueonline-browser/scraper"
	"github.com/sanjaysagar12/travelboutiqueonline-browser/store"
)

var (
	ErrNoRequestCaptured    = errors.New("no request captured")
	ErrAlreadyScraping      = errors.New("already scraping")
	ErrCaptureWhileScraping = errors.New("capture ignored while scraping")
	ErrScrapeInProgress     = errors.New("scrape in progress")
	errStaleRun             = errors.New("run superseded")
)

// resetGrace bounds how long Reset waits for a cancelled run to exit.
const resetGrace = 5 * time.Second

// Runner executes one pagination run.
type Runner interface {
	Run(ctx context.Context, runID string, tmpl models.RequestTemplate, sink scraper.Sink) (*models.ScraperResult, error)
}

// Session is the state machine in front of the pagination driver.
type Session struct {
	runner  Runner
	store   store.Store
	records *pipeline.Collection
	now     func() time.Time

	mu         sync.Mutex
	tmpl       *models.RequestTemplate
	snap       models.Snapshot
	generation uint64
	cancel     context.CancelCauseFunc
	done       chan struct{}
	last       *models.ScraperResult
	subs       map[chan models.Snapshot]struct{}
}

// New builds a session and restores the last persisted snapshot and
// records from st. A run that was still scraping when the process died is
// restored as finished. The request template is never persisted, so a
// restored session must see a new capture before it can start.
func New(ctx context.Context, runner Runner, st store.Store) (*Session, error) {
	if runner == nil {
		return nil, fmt.Errorf("runner is required")
	}
	if st == nil {
		st = store.NewMemoryStore()
	}
	s := &Session{
		runner:  runner,
		store:   st,
		records: pipeline.NewCollection(),
		now:     time.Now,
		snap:    models.Snapshot{Status: models.StatusIdle},
		subs:    make(map[chan models.Snapshot]struct{}),
	}

	snap, ok, err := st.LoadSnapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("restore snapshot: %w", err)
	}
	if ok && snap.Status.Valid() {
		switch snap.Status {
		case models.StatusScraping:
			snap.Status = models.StatusFinished
			if snap.StopReason == models.StopNone {
				snap.StopReason = models.StopCancelled
			}
		case models.StatusReady:
			snap.Status = models.StatusIdle
		}
		s.snap = snap
	}

	records, err := st.LoadRecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("restore records: %w", err)
	}
	s.records.Replace(records)
	s.snap.RecordCount = s.records.Len()

	if ok {
		slog.Info("session restored",
			slog.String("status", string(s.snap.Status)),
			slog.Int("pages", s.snap.PageCount),
			slog.Int("records", s.snap.RecordCount),
		)
	}
	return s, nil
}

// Capture records the request template every page is derived from. It is
// ignored while a run is active.
func (s *Session) Capture(tmpl models.RequestTemplate) error {
	tmpl.URL = strings.TrimSpace(tmpl.URL)
	if tmpl.URL == "" {
		return fmt.Errorf("captured request has no url")
	}
	if tmpl.Method == "" {
		tmpl.Method = "GET"
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.snap.Status == models.StatusScraping {
		return ErrCaptureWhileScraping
	}

	now := s.now()
	s.tmpl = &tmpl
	s.snap.Status = models.StatusReady
	s.snap.CapturedURL = tmpl.URL
	s.snap.LastCaptureTime = &now
	s.persistLocked()

	slog.Info("request captured", slog.String("url", tmpl.URL), slog.String("method", tmpl.Method))
	return nil
}

// Start launches a pagination run from ready or finished. The previous
// run's records are discarded. It returns the new run id.
func (s *Session) Start(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tmpl == nil {
		return "", ErrNoRequestCaptured
	}
	if s.snap.Status == models.StatusScraping {
		return "", ErrAlreadyScraping
	}

	s.generation++
	gen := s.generation
	runID := uuid.NewString()
	tmpl := *s.tmpl

	s.records.Reset()
	s.snap.Status = models.StatusScraping
	s.snap.PageCount = 0
	s.snap.RecordCount = 0
	s.snap.RunID = runID
	s.snap.StopReason = models.StopNone
	s.last = nil
	s.persistLocked()
	s.saveRecordsLocked(nil)

	runCtx, cancel := context.WithCancelCause(context.WithoutCancel(ctx))
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done

	slog.Info("scrape started", slog.String("run_id", runID), slog.String("url", tmpl.URL))

	go func() {
		defer close(done)
		defer cancel(nil)
		sink := scraper.SinkFunc(func(page int, records []models.FlightRecord) error {
			return s.ingest(gen, page, records)
		})
		result, err := s.runner.Run(runCtx, runID, tmpl, sink)
		if result == nil {
			result = &models.ScraperResult{RunID: runID, StopReason: models.StopInvalidTemplate, Err: err}
		}
		s.finish(gen, result)
	}()

	return runID, nil
}

// Stop asks the active run to end after its in-flight page. The session
// moves to finished when the run exits. Stop is a no-op when not scraping.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snap.Status != models.StatusScraping || s.cancel == nil {
		return
	}
	slog.Info("stop requested", slog.String("run_id", s.snap.RunID))
	s.cancel(scraper.ErrStopRequested)
}

// Reset cancels any run and clears the template, records and persisted
// state, returning to idle. It then waits up to resetGrace for the cancelled
// run to exit so a following Start does not overlap it.
func (s *Session) Reset() {
	s.mu.Lock()
	done := s.done
	if s.cancel != nil {
		s.cancel(scraper.ErrSessionReset)
	}
	s.generation++
	s.tmpl = nil
	s.cancel = nil
	s.last = nil
	s.records.Reset()
	s.snap = models.Snapshot{Status: models.StatusIdle}

	if err := s.store.Clear(context.Background()); err != nil {
		slog.Error("clear store", slog.Any("error", err))
	}
	s.persistLocked()
	s.mu.Unlock()
	slog.Info("session reset")

	if done == nil {
		return
	}
	timer := time.NewTimer(resetGrace)
	defer timer.Stop()
	select {
	case <-done:
	case <-timer.C:
		slog.Warn("cancelled run still running after reset", slog.Duration("waited", resetGrace))
	}
}

// Status returns the current snapshot.
func (s *Session) Status() models.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Template returns the captured request, if any.
func (s *Session) Template() (models.RequestTemplate, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tmpl == nil {
		return models.RequestTemplate{}, false
	}
	return *s.tmpl, true
}

// LastResult returns the result of the most recent finished run.
func (s *Session) LastResult() *models.ScraperResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Wait blocks until the active run, if any, has exited or ctx is done.
func (s *Session) Wait(ctx context.Context) error {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe returns a channel receiving every new snapshot. Slow readers
// miss intermediate snapshots. Call the returned func to unsubscribe.
func (s *Session) Subscribe() (<-chan models.Snapshot, func()) {
	ch := make(chan models.Snapshot, 16)
	s.mu.Lock()
	s.subs[ch] = struct{}{}
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, ch)
			s.mu.Unlock()
			close(ch)
		})
	}
}

// Table unifies the collected records and returns the schema with a copy
// of the rows. While scraping only a copy is unified; the stored records
// are normalized once the run has finished.
func (s *Session) Table() (pipeline.Schema, []models.FlightRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snap.Status == models.StatusScraping {
		return s.records.Preview()
	}
	return s.records.Unify()
}

// ApplyMarkup adds amount to column (or pipeline.AllColumns) across every
// record and persists the adjusted records.
func (s *Session) ApplyMarkup(amount float64, column string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snap.Status == models.StatusScraping {
		return 0, ErrScrapeInProgress
	}

	n, err := s.records.ApplyMarkup(amount, column)
	if err != nil {
		return 0, err
	}
	s.saveRecordsLocked(s.records.Records())
	slog.Info("markup applied", slog.Float64("amount", amount), slog.String("column", column), slog.Int("adjusted", n))
	return n, nil
}

// ExportCSV writes the unified table as CSV.
func (s *Session) ExportCSV(w io.Writer) error {
	schema, records := s.Table()
	return pipeline.WriteCSV(w, schema, records)
}

// ExportJSON writes the unified table as JSON lines.
func (s *Session) ExportJSON(w io.Writer) error {
	schema, records := s.Table()
	return pipeline.WriteJSON(w, schema, records)
}

// ExportHTML renders the unified table.
func (s *Session) ExportHTML() string {
	schema, records := s.Table()
	return pipeline.RenderHTML(schema, records)
}

func (s *Session) ingest(gen uint64, page int, records []models.FlightRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		return errStaleRun
	}

	total := s.records.Append(records...)
	now := s.now()
	s.snap.PageCount = page + 1
	s.snap.RecordCount = total
	s.snap.LastCaptureTime = &now
	s.persistLocked()
	s.saveRecordsLocked(s.records.Records())
	return nil
}

func (s *Session) finish(gen uint64, result *models.ScraperResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		slog.Debug("stale run finished", slog.String("run_id", result.RunID))
		return
	}

	s.cancel = nil
	s.last = result
	s.snap.Status = models.StatusFinished
	s.snap.StopReason = result.StopReason
	s.persistLocked()
	slog.Info("scrape finished",
		slog.String("run_id", result.RunID),
		slog.String("reason", string(result.StopReason)),
		slog.Int("pages", s.snap.PageCount),
		slog.Int("records", s.snap.RecordCount),
	)
}

func (s *Session) snapshotLocked() models.Snapshot {
	snap := s.snap
	if snap.LastCaptureTime != nil {
		t := *snap.LastCaptureTime
		snap.LastCaptureTime = &t
	}
	return snap
}

// persistLocked saves the snapshot and notifies subscribers. Store failures
// are logged; the in-memory state stays authoritative.
func (s *Session) persistLocked() {
	snap := s.snapshotLocked()
	if err := s.store.SaveSnapshot(context.Background(), snap); err != nil {
		slog.Error("persist snapshot", slog.Any("error", err))
	}
	for ch := range s.subs {
		select {
		case ch <- snap:
		default:
		}
	}
}

func (s *Session) saveRecordsLocked(records []models.FlightRecord) {
	if err := s.store.SaveRecords(context.Background(), records); err != nil {
		slog.Error("persist records", slog.Any("error", err))
	}
}
