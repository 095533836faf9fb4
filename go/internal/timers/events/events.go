package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/oralboard/go/internal/models"
)

// EventType represents the type of timer lifecycle event
type EventType string

const (
	EventTypeTimerStarted  EventType = "TimerStarted"
	EventTypeTimerExpired  EventType = "TimerExpired"
	EventTypeTimerCanceled EventType = "TimerCanceled"
)

// Event is a timer lifecycle event as it leaves the service
type Event struct {
	ID         uuid.UUID       `json:"eventId"`
	Type       EventType       `json:"eventType"`
	UserID     string          `json:"userId"`
	CaseNumber int             `json:"caseNumber"`
	Timestamp  time.Time       `json:"timestamp"`
	Payload    json.RawMessage `json:"payload"`
}

// TimerPayload is the payload shared by all timer events
type TimerPayload struct {
	TimerID          string    `json:"timerId"`
	DurationSeconds  int       `json:"durationSeconds"`
	RemainingSeconds int       `json:"remainingSeconds"`
	Status           string    `json:"status"`
	StartedAt        time.Time `json:"startedAt"`
}

// NewTimerEvent builds an event of the given type describing timer
func NewTimerEvent(eventType EventType, timer *models.Timer, at time.Time) (Event, error) {
	payload, err := json.Marshal(TimerPayload{
		TimerID:          timer.ID.String(),
		DurationSeconds:  timer.DurationSeconds,
		RemainingSeconds: timer.RemainingSeconds,
		Status:           string(timer.Status),
		StartedAt:        timer.StartedAt,
	})
	if err != nil {
		return Event{}, fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
	}

	return Event{
		ID:         uuid.New(),
		Type:       eventType,
		UserID:     timer.UserID,
		CaseNumber: timer.CaseNumber,
		Timestamp:  at.UTC(),
		Payload:    payload,
	}, nil
}

// ParsePayload decodes the event payload
func (e Event) ParsePayload() (TimerPayload, error) {
	var payload TimerPayload
	if err := json.Unmarshal(e.Payload, &payload); err != nil {
		return TimerPayload{}, fmt.Errorf("failed to unmarshal %s payload: %w", e.Type, err)
	}
	return payload, nil
}
