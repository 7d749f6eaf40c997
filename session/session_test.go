package session

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/sanjaysagar12/travelboutiqueonline-browser/config"
	"github.com/sanjaysagar12/travelboutiqueonline-browser/models"
	"github.com/sanjaysagar12/travelboutiqueonline-browser/parser"
	"github.com/sanjaysagar12/travelboutiqueonline-browser/parser/parsertest"
	"github.com/sanjaysagar12/travelboutiqueonline-browser/pipeline"
	"github.com/sanjaysagar12/travelboutiqueonline-browser/scraper"
	"github.com/sanjaysagar12/travelboutiqueonline-browser/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const searchURL = "http://tbo.test/FlightReturnSearchAjax.aspx?sid=abc&pageNumber=0"

var capture = models.RequestTemplate{URL: searchURL, Method: http.MethodGet}

// blockingRunner ingests one record and then holds the run open until it is
// cancelled.
type blockingRunner struct {
	started   chan struct{}
	ingestErr chan error
}

func newBlockingRunner() *blockingRunner {
	return &blockingRunner{
		started:   make(chan struct{}, 4),
		ingestErr: make(chan error, 4),
	}
}

func (r *blockingRunner) Run(ctx context.Context, runID string, _ models.RequestTemplate, sink scraper.Sink) (*models.ScraperResult, error) {
	if err := sink.Ingest(0, []models.FlightRecord{{models.FieldAirline: "IndiGo"}}); err != nil {
		return nil, err
	}
	r.started <- struct{}{}
	<-ctx.Done()

	r.ingestErr <- sink.Ingest(1, []models.FlightRecord{{models.FieldAirline: "Vistara"}})

	reason := models.StopCancelled
	switch cause := context.Cause(ctx); {
	case errors.Is(cause, scraper.ErrStopRequested):
		reason = models.StopRequested
	case errors.Is(cause, scraper.ErrSessionReset):
		reason = models.StopReset
	}
	return &models.ScraperResult{RunID: runID, StopReason: reason, PageCount: 1}, nil
}

func (r *blockingRunner) waitStarted(t *testing.T) {
	t.Helper()
	select {
	case <-r.started:
	case <-time.After(5 * time.Second):
		t.Fatalf("run did not start")
	}
}

func newSession(t *testing.T, runner Runner, st store.Store) *Session {
	t.Helper()
	if st == nil {
		st = store.NewMemoryStore()
	}
	s, err := New(context.Background(), runner, st)
	require.NoError(t, err)
	return s
}

func waitRun(t *testing.T, s *Session) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Wait(ctx))
}

// feedScraper builds a real driver whose pages hold counts[i] flights each.
func feedScraper(t *testing.T, counts ...int) *scraper.Scraper {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.PageDelay = 0

	extractor, err := parser.NewService(8)
	require.NoError(t, err)
	s, err := scraper.NewScraper(cfg, extractor)
	require.NoError(t, err)

	transport := httpmock.NewMockTransport()
	transport.RegisterRegexpResponder(http.MethodGet, regexp.MustCompile(`FlightReturnSearchAjax\.aspx`),
		func(req *http.Request) (*http.Response, error) {
			page, _ := strconv.Atoi(req.URL.Query().Get("pageNumber"))
			body := parsertest.Page()
			if page < len(counts) {
				offset := 0
				for _, c := range counts[:page] {
					offset += c
				}
				body = parsertest.Page(parsertest.Flights(offset, counts[page])...)
			}
			return httpmock.NewStringResponse(http.StatusOK, body), nil
		})
	s.WithTransport(transport)
	return s
}

func TestStartWithoutCaptureFails(t *testing.T) {
	s := newSession(t, newBlockingRunner(), nil)
	before := s.Status()

	_, err := s.Start(context.Background())

	require.ErrorIs(t, err, ErrNoRequestCaptured)
	assert.Equal(t, "no request captured", err.Error())
	assert.Equal(t, before, s.Status())
}

func TestStopWhileIdleIsNoop(t *testing.T) {
	s := newSession(t, newBlockingRunner(), nil)

	s.Stop()

	snap := s.Status()
	assert.Equal(t, models.StatusIdle, snap.Status)
	assert.Zero(t, snap.PageCount)
}

func TestCaptureMovesToReady(t *testing.T) {
	s := newSession(t, newBlockingRunner(), nil)

	require.Error(t, s.Capture(models.RequestTemplate{URL: "  "}))
	require.NoError(t, s.Capture(models.RequestTemplate{URL: searchURL}))

	snap := s.Status()
	assert.Equal(t, models.StatusReady, snap.Status)
	assert.Equal(t, searchURL, snap.CapturedURL)
	require.NotNil(t, snap.LastCaptureTime)

	tmpl, ok := s.Template()
	require.True(t, ok)
	assert.Equal(t, http.MethodGet, tmpl.Method)
}

func TestEndToEnd(t *testing.T) {
	st := store.NewMemoryStore()
	s := newSession(t, feedScraper(t, 2, 3, 0), st)
	updates, unsubscribe := s.Subscribe()
	defer unsubscribe()

	require.NoError(t, s.Capture(capture))
	runID, err := s.Start(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, runID)
	waitRun(t, s)

	snap := s.Status()
	assert.Equal(t, models.StatusFinished, snap.Status)
	assert.Equal(t, 2, snap.PageCount)
	assert.Equal(t, 5, snap.RecordCount)
	assert.Equal(t, models.StopExhausted, snap.StopReason)
	assert.Equal(t, runID, snap.RunID)

	schema, records := s.Table()
	assert.Len(t, records, 5)
	assert.Equal(t, []string{models.CanonicalFare}, schema.Fares)

	persisted, err := st.LoadRecords(context.Background())
	require.NoError(t, err)
	assert.Len(t, persisted, 5)
	saved, ok, err := st.LoadSnapshot(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, models.StatusFinished, saved.Status)
	assert.Equal(t, 2, saved.PageCount)

	var statuses []models.Status
	for len(updates) > 0 {
		statuses = append(statuses, (<-updates).Status)
	}
	require.NotEmpty(t, statuses)
	assert.Equal(t, models.StatusReady, statuses[0])
	assert.Equal(t, models.StatusFinished, statuses[len(statuses)-1])
}

func TestRestartDiscardsPreviousRun(t *testing.T) {
	s := newSession(t, feedScraper(t, 2, 3, 0), nil)
	require.NoError(t, s.Capture(capture))

	for i := 0; i < 2; i++ {
		_, err := s.Start(context.Background())
		require.NoError(t, err)
		waitRun(t, s)
	}

	snap := s.Status()
	assert.Equal(t, models.StatusFinished, snap.Status)
	assert.Equal(t, 5, snap.RecordCount)
}

func TestStartWhileScrapingRejected(t *testing.T) {
	runner := newBlockingRunner()
	s := newSession(t, runner, nil)
	require.NoError(t, s.Capture(capture))

	_, err := s.Start(context.Background())
	require.NoError(t, err)
	runner.waitStarted(t)

	_, err = s.Start(context.Background())
	require.ErrorIs(t, err, ErrAlreadyScraping)
	require.ErrorIs(t, s.Capture(capture), ErrCaptureWhileScraping)

	_, err = s.ApplyMarkup(10, pipeline.AllColumns)
	require.ErrorIs(t, err, ErrScrapeInProgress)

	s.Stop()
	waitRun(t, s)
}

func TestStopFinishesAfterInFlightPage(t *testing.T) {
	runner := newBlockingRunner()
	s := newSession(t, runner, nil)
	require.NoError(t, s.Capture(capture))

	_, err := s.Start(context.Background())
	require.NoError(t, err)
	runner.waitStarted(t)
	assert.Equal(t, models.StatusScraping, s.Status().Status)

	s.Stop()
	waitRun(t, s)

	require.NoError(t, <-runner.ingestErr, "the page in flight at stop is still ingested")
	snap := s.Status()
	assert.Equal(t, models.StatusFinished, snap.Status)
	assert.Equal(t, models.StopRequested, snap.StopReason)
	assert.Equal(t, 2, snap.PageCount)
	assert.Equal(t, 2, snap.RecordCount)
	assert.Equal(t, models.StopRequested, s.LastResult().StopReason)

	_, err = s.Start(context.Background())
	require.NoError(t, err, "finished sessions can restart")
	runner.waitStarted(t)
	s.Stop()
	waitRun(t, s)
}

func TestResetFromAnyState(t *testing.T) {
	setups := map[models.Status]func(t *testing.T, s *Session, r *blockingRunner){
		models.StatusIdle: func(*testing.T, *Session, *blockingRunner) {},
		models.StatusReady: func(t *testing.T, s *Session, _ *blockingRunner) {
			require.NoError(t, s.Capture(capture))
		},
		models.StatusScraping: func(t *testing.T, s *Session, r *blockingRunner) {
			require.NoError(t, s.Capture(capture))
			_, err := s.Start(context.Background())
			require.NoError(t, err)
			r.waitStarted(t)
		},
		models.StatusFinished: func(t *testing.T, s *Session, r *blockingRunner) {
			require.NoError(t, s.Capture(capture))
			_, err := s.Start(context.Background())
			require.NoError(t, err)
			r.waitStarted(t)
			s.Stop()
			waitRun(t, s)
			<-r.ingestErr
		},
	}

	for status, setup := range setups {
		t.Run(string(status), func(t *testing.T) {
			st := store.NewMemoryStore()
			runner := newBlockingRunner()
			s := newSession(t, runner, st)
			setup(t, s, runner)
			require.Equal(t, status, s.Status().Status)

			s.Reset()

			snap := s.Status()
			assert.Equal(t, models.StatusIdle, snap.Status)
			assert.Zero(t, snap.PageCount)
			assert.Zero(t, snap.RecordCount)
			assert.Empty(t, snap.CapturedURL)
			_, ok := s.Template()
			assert.False(t, ok)
			_, err := s.Start(context.Background())
			assert.ErrorIs(t, err, ErrNoRequestCaptured)

			if status == models.StatusScraping {
				select {
				case err := <-runner.ingestErr:
					assert.ErrorIs(t, err, errStaleRun)
				default:
					t.Fatalf("reset returned before the cancelled run exited")
				}
				assert.Equal(t, models.StatusIdle, s.Status().Status, "a reset run must not write after reset")
			}

			records, err := st.LoadRecords(context.Background())
			require.NoError(t, err)
			assert.Empty(t, records)
		})
	}
}

// pageRunner ingests each page once the test releases it.
type pageRunner struct {
	pages    [][]models.FlightRecord
	ingested chan int
	release  chan struct{}
}

func (r *pageRunner) Run(_ context.Context, runID string, _ models.RequestTemplate, sink scraper.Sink) (*models.ScraperResult, error) {
	for i, page := range r.pages {
		if i > 0 {
			<-r.release
		}
		if err := sink.Ingest(i, page); err != nil {
			return nil, err
		}
		r.ingested <- i
	}
	return &models.ScraperResult{RunID: runID, PageCount: len(r.pages), StopReason: models.StopExhausted}, nil
}

func TestTableDuringRunKeepsFareNames(t *testing.T) {
	runner := &pageRunner{
		pages: [][]models.FlightRecord{
			{{models.FieldAirline: "IndiGo", "Saver": "100"}},
			{{models.FieldAirline: "Vistara", "Saver": "200", "Flexi": "300"}},
		},
		ingested: make(chan int, 2),
		release:  make(chan struct{}),
	}
	s := newSession(t, runner, nil)
	require.NoError(t, s.Capture(capture))
	_, err := s.Start(context.Background())
	require.NoError(t, err)
	<-runner.ingested

	schema, records := s.Table()
	assert.Equal(t, []string{models.CanonicalFare}, schema.Fares)
	assert.Equal(t, "100", records[0][models.CanonicalFare])

	close(runner.release)
	<-runner.ingested
	waitRun(t, s)

	schema, records = s.Table()
	assert.Equal(t, []string{"Flexi", "Saver"}, schema.Fares)
	require.Len(t, records, 2)
	assert.Equal(t, "100", records[0]["Saver"])
	assert.NotContains(t, records[0], models.CanonicalFare)
	assert.Equal(t, "200", records[1]["Saver"])
}

func TestRestoreFromStore(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	captured := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, st.SaveSnapshot(ctx, models.Snapshot{
		Status:          models.StatusScraping,
		PageCount:       3,
		LastCaptureTime: &captured,
		RunID:           "run-9",
	}))
	require.NoError(t, st.SaveRecords(ctx, []models.FlightRecord{
		{models.FieldAirline: "IndiGo", "Saver": "4000"},
		{models.FieldAirline: "Vistara", "Saver": "4100"},
	}))

	s := newSession(t, newBlockingRunner(), st)

	snap := s.Status()
	assert.Equal(t, models.StatusFinished, snap.Status)
	assert.Equal(t, 3, snap.PageCount)
	assert.Equal(t, 2, snap.RecordCount)
	assert.Equal(t, models.StopCancelled, snap.StopReason)

	_, err := s.Start(ctx)
	assert.ErrorIs(t, err, ErrNoRequestCaptured)
}

func TestMarkupAndExport(t *testing.T) {
	st := store.NewMemoryStore()
	s := newSession(t, feedScraper(t, 2, 0), st)
	require.NoError(t, s.Capture(capture))
	_, err := s.Start(context.Background())
	require.NoError(t, err)
	waitRun(t, s)

	n, err := s.ApplyMarkup(100, pipeline.AllColumns)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, records := s.Table()
	assert.Equal(t, "4100.00", records[0][models.CanonicalFare])
	assert.Equal(t, "4101.00", records[1][models.CanonicalFare])

	persisted, err := st.LoadRecords(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "4100.00", persisted[0][models.CanonicalFare])

	_, err = s.ApplyMarkup(5, "Business")
	require.ErrorIs(t, err, pipeline.ErrUnknownColumn)

	var csvOut bytes.Buffer
	require.NoError(t, s.ExportCSV(&csvOut))
	lines := strings.Split(strings.TrimSpace(csvOut.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasSuffix(lines[0], ",Fare"), lines[0])
	assert.True(t, strings.HasSuffix(lines[1], ",4100.00"), lines[1])

	var jsonOut bytes.Buffer
	require.NoError(t, s.ExportJSON(&jsonOut))
	assert.Equal(t, 2, strings.Count(jsonOut.String(), "\n"))

	html := s.ExportHTML()
	assert.Contains(t, html, "4101.00")
	assert.Contains(t, html, "IndiGo")
}
