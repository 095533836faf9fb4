package models

import (
	"time"

	"github.com/google/uuid"
)

// TimerStatus defines the lifecycle state of a case timer.
type TimerStatus string

const (
	TimerStatusRunning  TimerStatus = "running"
	TimerStatusExpired  TimerStatus = "expired"
	TimerStatusCanceled TimerStatus = "canceled"
)

// Case numbers a user can run timers for.
const (
	MinCaseNumber = 1
	MaxCaseNumber = 4
)

// Timer is a countdown for one case of one user.
type Timer struct {
	ID               uuid.UUID   `json:"timerId"`
	UserID           string      `json:"userId"`
	CaseNumber       int         `json:"caseNumber"`
	DurationSeconds  int         `json:"durationSeconds"`
	RemainingSeconds int         `json:"remainingSeconds"`
	Status           TimerStatus `json:"status"`
	StartedAt        time.Time   `json:"startedAt"`
}

// IsRunning reports whether the timer is still counting down.
func (t *Timer) IsRunning() bool {
	return t.Status == TimerStatusRunning
}

// Valid reports whether s is a known timer status.
func (s TimerStatus) Valid() bool {
	switch s {
	case TimerStatusRunning, TimerStatusExpired, TimerStatusCanceled:
		return true
	}
	return false
}

// ValidCaseNumber reports whether n is in [MinCaseNumber, MaxCaseNumber].
func ValidCaseNumber(n int) bool {
	return n >= MinCaseNumber && n <= MaxCaseNumber
}
