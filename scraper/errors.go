package scraper

import (
	"errors"
	"fmt"
)

var (
	// ErrStopRequested is the cancellation cause for an explicit stop.
	ErrStopRequested = errors.New("stop requested")
	// ErrSessionReset is the cancellation cause for a session reset.
	ErrSessionReset = errors.New("session reset")
)

// FailureKind classifies why a page request failed. Its value is the
// error_type label of the error counter.
type FailureKind string

const (
	FailureTimeout     FailureKind = "timeout"
	FailureConnection  FailureKind = "connection"
	FailureForbidden   FailureKind = "forbidden" // expired search session cookie
	FailureNotFound    FailureKind = "not_found"
	FailureRateLimited FailureKind = "rate_limited"
	FailureHTTPStatus  FailureKind = "http_status"
)

// FetchError is a failed page request. StatusCode is zero when no response
// arrived.
type FetchError struct {
	Kind       FailureKind
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s (status %d): %v", e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

func errorTypeLabel(err error) string {
	if err == nil {
		return "unknown"
	}
	var fetchErr *FetchError
	if errors.As(err, &fetchErr) {
		return string(fetchErr.Kind)
	}
	return "other"
}
