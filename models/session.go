package models

import "time"

// Status is the lifecycle state of a scraping session.
type Status string

const (
	StatusIdle     Status = "idle"
	StatusReady    Status = "ready"
	StatusScraping Status = "scraping"
	StatusFinished Status = "finished"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusIdle, StatusReady, StatusScraping, StatusFinished:
		return true
	}
	return false
}

// StopReason records why a pagination run ended. The session status is
// "finished" for all of them.
type StopReason string

const (
	StopNone            StopReason = ""
	StopExhausted       StopReason = "exhausted"
	StopShortBody       StopReason = "short_body"
	StopHTTPStatus      StopReason = "http_status"
	StopTransport       StopReason = "transport"
	StopExtractFailed   StopReason = "extract_failed"
	StopInvalidTemplate StopReason = "invalid_template"
	StopRequested       StopReason = "stopped"
	StopReset           StopReason = "reset"
	StopCancelled       StopReason = "cancelled"
	StopMaxPages        StopReason = "max_pages"
)

// Snapshot is the externally observable session state.
type Snapshot struct {
	Status          Status     `json:"status"`
	PageCount       int        `json:"pagesDownloaded"`
	LastCaptureTime *time.Time `json:"lastCaptureTime,omitempty"`
	CapturedURL     string     `json:"capturedUrl,omitempty"`
	RunID           string     `json:"runId,omitempty"`
	StopReason      StopReason `json:"stopReason,omitempty"`
	RecordCount     int        `json:"recordCount"`
}

// ScraperResult holds the overall result of one pagination run.
type ScraperResult struct {
	RunID        string
	StartTime    time.Time
	EndTime      time.Time
	PageCount    int
	RecordCount  int
	RequestCount int
	StopReason   StopReason
	// Err is the failure that ended the run, if any.
	Err error
}

// Duration returns the wall time of the run.
func (r *ScraperResult) Duration() time.Duration {
	if r == nil || r.EndTime.IsZero() {
		return 0
	}
	return r.EndTime.Sub(r.StartTime)
}
