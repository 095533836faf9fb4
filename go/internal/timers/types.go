package timers

import "github.com/mcdev12/oralboard/go/internal/models"

// StartTimerRequest represents the data needed to start a case timer.
// A zero DurationSeconds selects the configured default.
type StartTimerRequest struct {
	UserID          string `json:"userId"`
	CaseNumber      int    `json:"caseNumber"`
	DurationSeconds int    `json:"durationSeconds,omitempty"`
}

// TimerKeyRequest addresses one timer
type TimerKeyRequest struct {
	UserID     string `json:"userId"`
	CaseNumber int    `json:"caseNumber"`
}

// ListTimersRequest addresses every timer of a user
type ListTimersRequest struct {
	UserID string `json:"userId"`
}

type TimerResponse struct {
	Timer *models.Timer `json:"timer"`
}

type CancelTimerResponse struct{}

type ListTimersResponse struct {
	Timers []*models.Timer `json:"timers"`
}

// ErrorResponse is the REST error body
type ErrorResponse struct {
	Error string `json:"error"`
}
