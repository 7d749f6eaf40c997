// Package api exposes session commands and exports over HTTP for the
// dashboard and popup clients.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sanjaysagar12/travelboutiqueonline-browser/models"
	"github.com/sanjaysagar12/travelboutiqueonline-browser/pipeline"
	"github.com/sanjaysagar12/travelboutiqueonline-browser/session"
)

// Server routes HTTP requests to a session.
type Server struct {
	session  *session.Session
	registry *prometheus.Registry
	mux      *http.ServeMux
}

type commandResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	RunID   string `json:"runId,omitempty"`
}

type markupRequest struct {
	Amount *float64 `json:"amount"`
	Column string   `json:"column"`
}

type markupResponse struct {
	Success  bool `json:"success"`
	Adjusted int  `json:"adjusted"`
}

type recordsResponse struct {
	Columns []string              `json:"columns"`
	Fares   []string              `json:"fares"`
	Records []models.FlightRecord `json:"records"`
}

// NewServer builds the routes. registry may be nil to disable /metrics.
func NewServer(sess *session.Session, registry *prometheus.Registry) *Server {
	s := &Server{session: sess, registry: registry, mux: http.NewServeMux()}

	s.mux.HandleFunc("POST /capture", s.handleCapture)
	s.mux.HandleFunc("POST /start", s.handleStart)
	s.mux.HandleFunc("POST /stop", s.handleStop)
	s.mux.HandleFunc("POST /reset", s.handleReset)
	s.mux.HandleFunc("GET /status", s.handleStatus)
	s.mux.HandleFunc("GET /records", s.handleRecords)
	s.mux.HandleFunc("POST /markup", s.handleMarkup)
	s.mux.HandleFunc("GET /export.csv", s.handleExportCSV)
	s.mux.HandleFunc("GET /export.json", s.handleExportJSON)
	s.mux.HandleFunc("GET /export.html", s.handleExportHTML)
	if registry != nil {
		s.mux.Handle("GET /metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}
	return s
}

// ServeHTTP logs and dispatches the request.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	s.mux.ServeHTTP(w, r)
	slog.Debug("http request",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.Duration("duration", time.Since(start)),
	)
}

func (s *Server) handleCapture(w http.ResponseWriter, r *http.Request) {
	var tmpl models.RequestTemplate
	if err := json.NewDecoder(r.Body).Decode(&tmpl); err != nil {
		writeJSON(w, http.StatusBadRequest, commandResponse{Error: "invalid capture body: " + err.Error()})
		return
	}
	if err := s.session.Capture(tmpl); err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, session.ErrCaptureWhileScraping) {
			status = http.StatusConflict
		}
		writeJSON(w, status, commandResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, commandResponse{Success: true})
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	runID, err := s.session.Start(r.Context())
	if err != nil {
		writeJSON(w, http.StatusConflict, commandResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, commandResponse{Success: true, RunID: runID})
}

func (s *Server) handleStop(w http.ResponseWriter, _ *http.Request) {
	s.session.Stop()
	writeJSON(w, http.StatusOK, commandResponse{Success: true})
}

func (s *Server) handleReset(w http.ResponseWriter, _ *http.Request) {
	s.session.Reset()
	writeJSON(w, http.StatusOK, commandResponse{Success: true})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.session.Status())
}

func (s *Server) handleRecords(w http.ResponseWriter, _ *http.Request) {
	schema, records := s.session.Table()
	if records == nil {
		records = []models.FlightRecord{}
	}
	fares := schema.Fares
	if fares == nil {
		fares = []string{}
	}
	writeJSON(w, http.StatusOK, recordsResponse{
		Columns: schema.Columns(),
		Fares:   fares,
		Records: records,
	})
}

func (s *Server) handleMarkup(w http.ResponseWriter, r *http.Request) {
	var req markupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, commandResponse{Error: "invalid markup body: " + err.Error()})
		return
	}
	if req.Amount == nil {
		writeJSON(w, http.StatusBadRequest, commandResponse{Error: pipeline.ErrInvalidAmount.Error()})
		return
	}

	n, err := s.session.ApplyMarkup(*req.Amount, req.Column)
	switch {
	case errors.Is(err, session.ErrScrapeInProgress):
		writeJSON(w, http.StatusConflict, commandResponse{Error: err.Error()})
		return
	case err != nil:
		writeJSON(w, http.StatusBadRequest, commandResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, markupResponse{Success: true, Adjusted: n})
}

func (s *Server) handleExportCSV(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="flights.csv"`)
	if err := s.session.ExportCSV(w); err != nil {
		slog.Error("csv export failed", slog.Any("error", err))
	}
}

func (s *Server) handleExportJSON(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/x-ndjson")
	if err := s.session.ExportJSON(w); err != nil {
		slog.Error("json export failed", slog.Any("error", err))
	}
}

func (s *Server) handleExportHTML(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := w.Write([]byte(s.session.ExportHTML())); err != nil {
		slog.Error("html export failed", slog.Any("error", err))
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("encode response", slog.Any("error", err))
	}
}
