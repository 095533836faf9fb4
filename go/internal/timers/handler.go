package timers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/mcdev12/oralboard/go/internal/models"
	"github.com/rs/zerolog/log"
)

// TimersApp defines what the transport layers need from the timers application
type TimersApp interface {
	StartTimer(ctx context.Context, req StartTimerRequest) (*models.Timer, error)
	GetTimer(ctx context.Context, userID string, caseNumber int) (*models.Timer, error)
	ListTimers(ctx context.Context, userID string) ([]*models.Timer, error)
	CancelTimer(ctx context.Context, userID string, caseNumber int) error
}

// Handler serves the REST timer endpoints
type Handler struct {
	app TimersApp
}

// NewHandler creates a new REST handler
func NewHandler(app TimersApp) *Handler {
	return &Handler{
		app: app,
	}
}

// RegisterRoutes registers the timer routes with an HTTP mux
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/users/{userId}/cases/{caseNumber}/timer", h.HandleStartTimer)
	mux.HandleFunc("GET /api/v1/users/{userId}/cases/{caseNumber}/timer", h.HandleGetTimer)
	mux.HandleFunc("DELETE /api/v1/users/{userId}/cases/{caseNumber}/timer", h.HandleCancelTimer)
	mux.HandleFunc("GET /api/v1/users/{userId}/timers", h.HandleListTimers)
}

// HandleStartTimer handles POST /api/v1/users/{userId}/cases/{caseNumber}/timer
func (h *Handler) HandleStartTimer(w http.ResponseWriter, r *http.Request) {
	caseNumber, ok := parseCaseNumber(w, r)
	if !ok {
		return
	}

	req := StartTimerRequest{
		UserID:     r.PathValue("userId"),
		CaseNumber: caseNumber,
	}
	if raw := r.URL.Query().Get("durationSeconds"); raw != "" {
		duration, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "durationSeconds must be an integer")
			return
		}
		if duration < 1 {
			writeError(w, http.StatusBadRequest, ErrInvalidDuration.Error())
			return
		}
		req.DurationSeconds = duration
	}

	timer, err := h.app.StartTimer(r.Context(), req)
	if err != nil {
		writeAppError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, timer)
}

// HandleGetTimer handles GET /api/v1/users/{userId}/cases/{caseNumber}/timer
func (h *Handler) HandleGetTimer(w http.ResponseWriter, r *http.Request) {
	caseNumber, ok := parseCaseNumber(w, r)
	if !ok {
		return
	}

	timer, err := h.app.GetTimer(r.Context(), r.PathValue("userId"), caseNumber)
	if err != nil {
		writeAppError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, timer)
}

// HandleCancelTimer handles DELETE /api/v1/users/{userId}/cases/{caseNumber}/timer
func (h *Handler) HandleCancelTimer(w http.ResponseWriter, r *http.Request) {
	caseNumber, ok := parseCaseNumber(w, r)
	if !ok {
		return
	}

	if err := h.app.CancelTimer(r.Context(), r.PathValue("userId"), caseNumber); err != nil {
		writeAppError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleListTimers handles GET /api/v1/users/{userId}/timers
func (h *Handler) HandleListTimers(w http.ResponseWriter, r *http.Request) {
	timers, err := h.app.ListTimers(r.Context(), r.PathValue("userId"))
	if err != nil {
		writeAppError(w, err)
		return
	}
	if timers == nil {
		timers = []*models.Timer{}
	}

	writeJSON(w, http.StatusOK, ListTimersResponse{Timers: timers})
}

func parseCaseNumber(w http.ResponseWriter, r *http.Request) (int, bool) {
	caseNumber, err := strconv.Atoi(r.PathValue("caseNumber"))
	if err != nil || !models.ValidCaseNumber(caseNumber) {
		writeError(w, http.StatusBadRequest, ErrInvalidCase.Error())
		return 0, false
	}
	return caseNumber, true
}

// statusFromError maps app errors onto HTTP status codes
func statusFromError(err error) int {
	switch {
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeAppError(w http.ResponseWriter, err error) {
	status := statusFromError(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Msg("timer request failed")
	}
	writeError(w, status, err.Error())
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}
