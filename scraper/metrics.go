package scraper

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sanjaysagar12/travelboutiqueonline-browser/models"
)

// Metrics bundles Prometheus collectors for the pagination driver.
type Metrics struct {
	Registry        *prometheus.Registry
	RequestsTotal   *prometheus.CounterVec
	RequestDuration prometheus.Histogram
	PagesTotal      prometheus.Counter
	RecordsTotal    prometheus.Counter
	ErrorsTotal     *prometheus.CounterVec
	RunsTotal       *prometheus.CounterVec
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tbo_requests_total",
			Help: "Total page requests issued by the driver.",
		},
		[]string{"phase"},
	)
	requestDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tbo_request_duration_seconds",
			Help:    "Latency of page requests.",
			Buckets: prometheus.DefBuckets,
		},
	)
	pages := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tbo_pages_ingested_total",
			Help: "Total number of result pages ingested.",
		},
	)
	records := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tbo_records_extracted_total",
			Help: "Total number of flight records extracted.",
		},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tbo_errors_total",
			Help: "Total number of request errors by type.",
		},
		[]string{"error_type"},
	)
	runs := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tbo_runs_total",
			Help: "Completed pagination runs by stop reason.",
		},
		[]string{"reason"},
	)

	registry.MustRegister(requests, requestDuration, pages, records, errorsTotal, runs)

	return &Metrics{
		Registry:        registry,
		RequestsTotal:   requests,
		RequestDuration: requestDuration,
		PagesTotal:      pages,
		RecordsTotal:    records,
		ErrorsTotal:     errorsTotal,
		RunsTotal:       runs,
	}
}

// IncRequest increments the requests total counter.
func (m *Metrics) IncRequest(phase string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(phase).Inc()
}

// ObserveDuration records a request duration.
func (m *Metrics) ObserveDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.Observe(d.Seconds())
}

// AddPage counts one ingested page and its records.
func (m *Metrics) AddPage(records int) {
	if m == nil {
		return
	}
	m.PagesTotal.Inc()
	m.RecordsTotal.Add(float64(records))
}

// IncError increments the errors counter for a type label.
func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}

// IncRun counts a finished run.
func (m *Metrics) IncRun(reason models.StopReason) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(string(reason)).Inc()
}
