package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/google/uuid"
	"github.com/sanjaysagar12/travelboutiqueonline-browser/config"
	"github.com/sanjaysagar12/travelboutiqueonline-browser/models"
)

const (
	ctxStart  = "start"
	ctxBody   = "body"
	ctxStatus = "status"
)

// Extractor turns one page of markup into flight records.
type Extractor interface {
	Extract(ctx context.Context, markup string) ([]models.FlightRecord, error)
}

// Sink receives the records of every successfully extracted page, in page
// order. An error from Ingest ends the run.
type Sink interface {
	Ingest(page int, records []models.FlightRecord) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(page int, records []models.FlightRecord) error

// Ingest calls f.
func (f SinkFunc) Ingest(page int, records []models.FlightRecord) error {
	return f(page, records)
}

// Scraper drives the paginated result feed: it re-issues the captured
// request with an increasing page number until the feed runs dry.
type Scraper struct {
	cfg       *config.Config
	collector *colly.Collector
	extractor Extractor
	Metrics   *Metrics
}

// NewScraper builds a scraper instance configured from cfg.
func NewScraper(cfg *config.Config, extractor Extractor) (*Scraper, error) {
	if extractor == nil {
		return nil, fmt.Errorf("extractor is required")
	}
	if cfg.PageParam == "" {
		return nil, fmt.Errorf("page param cannot be empty")
	}

	// Pages are fetched one at a time; the collector stays synchronous so
	// Request returns only after the response has been handled.
	collector := colly.NewCollector(
		colly.UserAgent(cfg.UserAgent),
		colly.AllowURLRevisit(),
	)

	collector.SetRequestTimeout(cfg.Timeout)
	collector.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})

	s := &Scraper{
		cfg:       cfg,
		collector: collector,
		extractor: extractor,
		Metrics:   NewMetrics(),
	}
	s.configureHandlers()
	return s, nil
}

// WithTransport replaces the HTTP transport used for page requests.
func (s *Scraper) WithTransport(rt http.RoundTripper) {
	s.collector.WithTransport(rt)
}

// Run paginates tmpl until a terminal page, a page cap or cancellation.
// Cancellation is observed between pages only: a request in flight is
// completed and its records ingested first. Use context.WithCancelCause
// with ErrStopRequested or ErrSessionReset to have the cause reflected in
// the result's stop reason.
//
// The returned error is non-nil only when the run could not begin; page
// failures end the run and are reported through the result.
func (s *Scraper) Run(ctx context.Context, runID string, tmpl models.RequestTemplate, sink Sink) (*models.ScraperResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if runID == "" {
		runID = uuid.NewString()
	}
	result := &models.ScraperResult{RunID: runID, StartTime: time.Now()}
	logger := slog.With(slog.String("run_id", runID))

	method := strings.ToUpper(strings.TrimSpace(tmpl.Method))
	if method == "" {
		method = http.MethodGet
	}
	if _, err := PageURL(tmpl.URL, s.cfg.PageParam, 0); err != nil {
		s.finish(logger, result, models.StopInvalidTemplate, err)
		return result, err
	}
	if sink == nil {
		err := fmt.Errorf("sink is required")
		s.finish(logger, result, models.StopInvalidTemplate, err)
		return result, err
	}

	logger.Info("pagination started", slog.String("url", tmpl.URL), slog.String("method", method))

	for page := 0; ; page++ {
		if ctx.Err() != nil {
			s.finish(logger, result, causeReason(ctx), nil)
			break
		}
		if s.cfg.MaxPages > 0 && page >= s.cfg.MaxPages {
			s.finish(logger, result, models.StopMaxPages, nil)
			break
		}

		pageURL, _ := PageURL(tmpl.URL, s.cfg.PageParam, page)
		body, status, err := s.fetch(method, pageURL)
		result.RequestCount++
		if err != nil {
			reason := models.StopTransport
			if status != 0 {
				reason = models.StopHTTPStatus
			}
			s.finish(logger, result, reason, err)
			break
		}
		if len(body) < s.cfg.MinBodyLength {
			logger.Debug("short page body", slog.Int("page", page), slog.Int("bytes", len(body)))
			s.finish(logger, result, models.StopShortBody, nil)
			break
		}

		records, err := s.extractor.Extract(context.WithoutCancel(ctx), string(body))
		if err != nil {
			s.finish(logger, result, models.StopExtractFailed, fmt.Errorf("extract page %d: %w", page, err))
			break
		}
		if len(records) == 0 {
			s.finish(logger, result, models.StopExhausted, nil)
			break
		}

		if err := sink.Ingest(page, records); err != nil {
			reason := models.StopCancelled
			if ctx.Err() != nil {
				reason = causeReason(ctx)
			}
			s.finish(logger, result, reason, fmt.Errorf("ingest page %d: %w", page, err))
			break
		}
		result.PageCount++
		result.RecordCount += len(records)
		s.Metrics.AddPage(len(records))
		logger.Info("page ingested",
			slog.Int("page", page),
			slog.Int("records", len(records)),
			slog.Int("total_records", result.RecordCount),
		)

		s.pause(ctx)
	}

	return result, nil
}

func (s *Scraper) finish(logger *slog.Logger, result *models.ScraperResult, reason models.StopReason, err error) {
	result.EndTime = time.Now()
	result.StopReason = reason
	result.Err = err
	s.Metrics.IncRun(reason)

	attrs := []any{
		slog.String("reason", string(reason)),
		slog.Int("pages", result.PageCount),
		slog.Int("records", result.RecordCount),
		slog.Duration("duration", result.Duration()),
	}
	if err != nil {
		logger.Warn("pagination ended", append(attrs, slog.Any("error", err))...)
		return
	}
	logger.Info("pagination ended", attrs...)
}

// pause waits PageDelay between pages, returning early on cancellation.
func (s *Scraper) pause(ctx context.Context) {
	if s.cfg.PageDelay <= 0 {
		return
	}
	timer := time.NewTimer(s.cfg.PageDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func (s *Scraper) fetch(method, pageURL string) ([]byte, int, error) {
	reqCtx := colly.NewContext()
	if err := s.collector.Request(method, pageURL, nil, reqCtx, nil); err != nil {
		status, _ := reqCtx.GetAny(ctxStatus).(int)
		return nil, status, classifyError(err, status)
	}
	body, _ := reqCtx.GetAny(ctxBody).([]byte)
	return body, http.StatusOK, nil
}

func (s *Scraper) configureHandlers() {
	s.collector.OnRequest(func(r *colly.Request) {
		r.Ctx.Put(ctxStart, time.Now())
		s.Metrics.IncRequest("started")
		slog.Debug("page request", slog.String("method", r.Method), slog.String("url", r.URL.String()))
	})

	s.collector.OnResponse(func(r *colly.Response) {
		r.Ctx.Put(ctxBody, r.Body)
		s.Metrics.IncRequest("completed")
		if start, ok := r.Ctx.GetAny(ctxStart).(time.Time); ok {
			s.Metrics.ObserveDuration(time.Since(start))
		}
	})

	s.collector.OnError(func(r *colly.Response, err error) {
		statusCode := 0
		if r != nil {
			statusCode = r.StatusCode
			if r.Ctx != nil {
				r.Ctx.Put(ctxStatus, statusCode)
			}
		}
		category := errorTypeLabel(classifyError(err, statusCode))
		s.Metrics.IncError(category)

		url := ""
		if r != nil && r.Request != nil && r.Request.URL != nil {
			url = r.Request.URL.String()
		}
		slog.Error("request error",
			slog.String("url", url),
			slog.Int("status", statusCode),
			slog.String("category", category),
			slog.Any("error", err),
		)
	})
}

// PageURL rewrites the page query parameter of raw to page, keeping every
// other part of the captured request URL.
func PageURL(raw, param string, page int) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("parse request url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("request url %q must be absolute", raw)
	}
	q := u.Query()
	q.Set(param, strconv.Itoa(page))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func causeReason(ctx context.Context) models.StopReason {
	cause := context.Cause(ctx)
	switch {
	case errors.Is(cause, ErrStopRequested):
		return models.StopRequested
	case errors.Is(cause, ErrSessionReset):
		return models.StopReset
	default:
		return models.StopCancelled
	}
}

func classifyError(err error, statusCode int) error {
	if err == nil && statusCode == 0 {
		return nil
	}

	var netErr net.Error
	var opErr *net.OpError
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr) && netErr.Timeout():
		return &FetchError{Kind: FailureTimeout, StatusCode: statusCode, Err: err}
	case errors.As(err, &opErr):
		return &FetchError{Kind: FailureConnection, StatusCode: statusCode, Err: err}
	case statusCode == 0:
		return err
	}

	if err == nil {
		err = errors.New(http.StatusText(statusCode))
	}
	kind := FailureHTTPStatus
	switch statusCode {
	case http.StatusForbidden:
		kind = FailureForbidden
	case http.StatusNotFound:
		kind = FailureNotFound
	case http.StatusTooManyRequests:
		kind = FailureRateLimited
	}
	return &FetchError{Kind: kind, StatusCode: statusCode, Err: err}
}
