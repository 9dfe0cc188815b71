package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/actionsum/appclock/internal/metrics"
	"github.com/actionsum/appclock/internal/models"
	"github.com/actionsum/appclock/internal/reporter"
	"github.com/actionsum/appclock/internal/tracker"
	"github.com/actionsum/appclock/pkg/window"
)

// Tracker is the part of tracker.Service the API exposes.
type Tracker interface {
	StartTracking(apps []string) (tracker.StartResult, error)
	StopTracking()
	ActiveSessions() []models.SessionSnapshot
	ChartDataForDate(date string) (models.ChartData, error)
	Breakdown(date string) (models.Breakdown, error)
	ActiveWindow(ctx context.Context) (*window.WindowInfo, error)
	TrackedTotals() ([]models.AppTotal, error)
	DailySummary(date string) ([]models.SessionSnapshot, error)
	Status() tracker.Status
}

// windowTimeout bounds the diagnostic focus query of /api/window.
const windowTimeout = 2 * time.Second

type Handler struct {
	tracker  Tracker
	reporter *reporter.Reporter
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

func NewHandler(t Tracker, m *metrics.Metrics, logger *zap.Logger) *Handler {
	return &Handler{
		tracker:  t,
		reporter: reporter.New(t),
		metrics:  m,
		logger:   logger,
	}
}

// StartRequest is the body of POST /api/tracking/start.
type StartRequest struct {
	Apps []string `json:"apps"`
}

// StartResponse is the reply of POST /api/tracking/start.
type StartResponse struct {
	tracker.StartResult
	Error string `json:"error,omitempty"`
}

func (h *Handler) SetupRoutes(mux *http.ServeMux) {
	h.handle(mux, "/api/tracking/start", http.MethodPost, h.handleStartTracking)
	h.handle(mux, "/api/tracking/stop", http.MethodPost, h.handleStopTracking)
	h.handle(mux, "/api/sessions/active", http.MethodGet, h.handleActiveSessions)
	h.handle(mux, "/api/sessions", http.MethodGet, h.handleDailySummary)
	h.handle(mux, "/api/chart", http.MethodGet, h.handleChart)
	h.handle(mux, "/api/breakdown", http.MethodGet, h.handleBreakdown)
	h.handle(mux, "/api/report", http.MethodGet, h.handleReport)
	h.handle(mux, "/api/window", http.MethodGet, h.handleActiveWindow)
	h.handle(mux, "/api/totals", http.MethodGet, h.handleTotals)
	h.handle(mux, "/api/status", http.MethodGet, h.handleStatus)

	h.handle(mux, "/health", http.MethodGet, h.handleHealth)
	mux.Handle("/metrics", h.metrics.Handler())
}

// handle registers fn for one method and records request metrics.
func (h *Handler) handle(mux *http.ServeMux, route, method string, fn http.HandlerFunc) {
	mux.HandleFunc(route, func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		switch r.Method {
		case method:
			fn(rec, r)
		case http.MethodOptions:
			setCORSHeaders(rec)
			rec.Header().Set("Allow", method+", "+http.MethodOptions)
			rec.WriteHeader(http.StatusNoContent)
		default:
			rec.Header().Set("Allow", method+", "+http.MethodOptions)
			h.respondError(rec, http.StatusMethodNotAllowed, errors.New("method not allowed"))
		}

		h.metrics.RequestServed(r.Method, route, rec.status, time.Since(start))
		h.logger.Debug("request served",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("elapsed", time.Since(start)))
	})
}

func (h *Handler) handleStartTracking(w http.ResponseWriter, r *http.Request) {
	var req StartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, errors.New("request body must be {\"apps\": [...]}"))
		return
	}

	result, err := h.tracker.StartTracking(req.Apps)
	if err != nil {
		h.respondStatusJSON(w, http.StatusBadRequest, StartResponse{StartResult: result, Error: err.Error()})
		return
	}
	h.respondJSON(w, StartResponse{StartResult: result})
}

func (h *Handler) handleStopTracking(w http.ResponseWriter, r *http.Request) {
	h.tracker.StopTracking()
	h.respondJSON(w, map[string]bool{"tracking": false})
}

func (h *Handler) handleActiveSessions(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, h.tracker.ActiveSessions())
}

func (h *Handler) handleDailySummary(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.tracker.DailySummary(r.URL.Query().Get("date"))
	if err != nil {
		h.respondQueryError(w, err)
		return
	}
	h.respondJSON(w, sessions)
}

func (h *Handler) handleChart(w http.ResponseWriter, r *http.Request) {
	data, err := h.tracker.ChartDataForDate(r.URL.Query().Get("date"))
	if err != nil {
		h.respondQueryError(w, err)
		return
	}
	h.respondJSON(w, data.Rows)
}

func (h *Handler) handleBreakdown(w http.ResponseWriter, r *http.Request) {
	b, err := h.tracker.Breakdown(r.URL.Query().Get("date"))
	if err != nil {
		h.respondQueryError(w, err)
		return
	}
	h.respondJSON(w, b)
}

func (h *Handler) handleReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.reporter.GenerateReport(r.URL.Query().Get("date"))
	if err != nil {
		h.respondQueryError(w, err)
		return
	}
	h.respondJSON(w, report)
}

func (h *Handler) handleActiveWindow(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), windowTimeout)
	defer cancel()

	info, err := h.tracker.ActiveWindow(ctx)
	if err != nil || info == nil {
		if err != nil {
			h.logger.Debug("no focused window", zap.Error(err))
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}
	h.respondJSON(w, info)
}

func (h *Handler) handleTotals(w http.ResponseWriter, r *http.Request) {
	totals, err := h.tracker.TrackedTotals()
	if err != nil {
		h.respondQueryError(w, err)
		return
	}

	rows := make([][2]any, 0, len(totals))
	for _, t := range totals {
		rows = append(rows, [2]any{t.ExeName, t.TotalSeconds})
	}
	h.respondJSON(w, rows)
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, h.tracker.Status())
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

func (h *Handler) respondQueryError(w http.ResponseWriter, err error) {
	if errors.Is(err, tracker.ErrInvalidDate) || errors.Is(err, tracker.ErrInvalidApp) {
		h.respondError(w, http.StatusBadRequest, err)
		return
	}
	h.logger.Error("query failed", zap.Error(err))
	h.respondError(w, http.StatusInternalServerError, err)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (h *Handler) respondError(w http.ResponseWriter, status int, err error) {
	h.respondStatusJSON(w, status, map[string]string{"error": err.Error()})
}

func (h *Handler) respondJSON(w http.ResponseWriter, data any) {
	h.respondStatusJSON(w, http.StatusOK, data)
}

func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}

func (h *Handler) respondStatusJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	setCORSHeaders(w)
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", zap.Error(err))
	}
}
