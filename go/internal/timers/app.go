package timers

import (
	"context"
	"fmt"

	"github.com/mcdev12/oralboard/go/internal/models"
	"github.com/mcdev12/oralboard/go/internal/timers/events"
	"github.com/rs/zerolog/log"
)

// TimerRepository defines what the app layer needs from the repository
type TimerRepository interface {
	SaveTimers(ctx context.Context, timers ...*models.Timer) error
	ListTimers(ctx context.Context) ([]*models.Timer, error)
}

// EventPublisher defines what the app layer needs to announce lifecycle changes
type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

// Config holds timer limits
type Config struct {
	DefaultDurationSeconds int `yaml:"default_duration_seconds"`
	MaxDurationSeconds     int `yaml:"max_duration_seconds"`
}

// DefaultConfig returns a 7 minute default and a 4 hour ceiling
func DefaultConfig() Config {
	return Config{
		DefaultDurationSeconds: 420,
		MaxDurationSeconds:     4 * 60 * 60,
	}
}

// App handles case timer business logic
type App struct {
	registry  *Registry
	repo      TimerRepository
	publisher EventPublisher
	config    Config
}

// NewApp creates a new timers App. The registry is the authoritative state;
// repo and publisher only observe it.
func NewApp(registry *Registry, repo TimerRepository, publisher EventPublisher, cfg Config) *App {
	if repo == nil {
		repo = NopRepository{}
	}
	if publisher == nil {
		publisher = events.NewLogPublisher()
	}
	return &App{
		registry:  registry,
		repo:      repo,
		publisher: publisher,
		config:    cfg,
	}
}

// Registry returns the registry owned by the app
func (a *App) Registry() *Registry {
	return a.registry
}

// StartTimer starts the timer for a user's case
func (a *App) StartTimer(ctx context.Context, req StartTimerRequest) (*models.Timer, error) {
	if req.DurationSeconds == 0 {
		req.DurationSeconds = a.config.DefaultDurationSeconds
	}
	if err := a.validateStartTimerRequest(req); err != nil {
		return nil, err
	}

	registry := a.registryFor(ctx)
	timer, err := registry.Start(req.UserID, req.CaseNumber, req.DurationSeconds)
	a.flushExpired(ctx, registry)
	if err != nil {
		return nil, fmt.Errorf("failed to start timer: %w", err)
	}

	a.save(ctx, timer)
	a.publish(ctx, events.EventTypeTimerStarted, timer)

	log.Info().
		Str("timer_id", timer.ID.String()).
		Str("user_id", timer.UserID).
		Int("case_number", timer.CaseNumber).
		Int("duration_sec", timer.DurationSeconds).
		Msg("started timer")
	return timer, nil
}

// GetTimer retrieves the timer for a user's case
func (a *App) GetTimer(ctx context.Context, userID string, caseNumber int) (*models.Timer, error) {
	if err := validateKey(userID, caseNumber); err != nil {
		return nil, err
	}

	registry := a.registryFor(ctx)
	timer, err := registry.Get(userID, caseNumber)
	a.flushExpired(ctx, registry)
	if err != nil {
		return nil, fmt.Errorf("failed to get timer: %w", err)
	}
	return timer, nil
}

// ListTimers retrieves every timer of a user ordered by case number
func (a *App) ListTimers(ctx context.Context, userID string) ([]*models.Timer, error) {
	if userID == "" {
		return nil, ErrInvalidUser
	}

	registry := a.registryFor(ctx)
	timers := registry.List(userID)
	a.flushExpired(ctx, registry)
	return timers, nil
}

// CancelTimer cancels the timer for a user's case. Canceling a missing or
// finished timer is a no-op.
func (a *App) CancelTimer(ctx context.Context, userID string, caseNumber int) error {
	if err := validateKey(userID, caseNumber); err != nil {
		return err
	}

	registry := a.registryFor(ctx)
	timer, canceled := registry.Cancel(userID, caseNumber)
	a.flushExpired(ctx, registry)
	if !canceled {
		return nil
	}

	a.save(ctx, timer)
	a.publish(ctx, events.EventTypeTimerCanceled, timer)

	log.Info().
		Str("timer_id", timer.ID.String()).
		Str("user_id", timer.UserID).
		Int("case_number", timer.CaseNumber).
		Int("remaining_sec", timer.RemainingSeconds).
		Msg("canceled timer")
	return nil
}

// Restore loads persisted timers into the registry
func (a *App) Restore(ctx context.Context) (int, error) {
	timers, err := a.repo.ListTimers(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load timers: %w", err)
	}

	restored := a.registry.Restore(timers)
	// timers that ran out while we were down
	a.registry.Tick()
	a.flushExpired(ctx, a.registry)

	log.Info().
		Int("loaded", len(timers)).
		Int("restored", restored).
		Msg("restored timers")
	return restored, nil
}

// registryFor prefers the registry carried by the request context
func (a *App) registryFor(ctx context.Context) *Registry {
	if registry, ok := RegistryFromContext(ctx); ok {
		return registry
	}
	return a.registry
}

// flushExpired persists and announces every expiration the registry observed
func (a *App) flushExpired(ctx context.Context, registry *Registry) {
	expired := registry.DrainExpired()
	if len(expired) == 0 {
		return
	}

	a.save(ctx, expired...)
	for _, timer := range expired {
		a.publish(ctx, events.EventTypeTimerExpired, timer)
		log.Info().
			Str("timer_id", timer.ID.String()).
			Str("user_id", timer.UserID).
			Int("case_number", timer.CaseNumber).
			Msg("timer expired")
	}
}

func (a *App) save(ctx context.Context, timers ...*models.Timer) {
	if err := a.repo.SaveTimers(ctx, timers...); err != nil {
		log.Error().Err(err).Int("count", len(timers)).Msg("failed to persist timers")
	}
}

func (a *App) publish(ctx context.Context, eventType events.EventType, timer *models.Timer) {
	event, err := events.NewTimerEvent(eventType, timer, a.registry.Now())
	if err != nil {
		log.Error().Err(err).Str("timer_id", timer.ID.String()).Msg("failed to build event")
		return
	}
	if err := a.publisher.Publish(ctx, event); err != nil {
		log.Error().
			Err(err).
			Str("event_type", string(eventType)).
			Str("timer_id", timer.ID.String()).
			Msg("failed to publish event")
	}
}

// validateStartTimerRequest validates start timer request
func (a *App) validateStartTimerRequest(req StartTimerRequest) error {
	if err := validateKey(req.UserID, req.CaseNumber); err != nil {
		return err
	}
	if req.DurationSeconds < 1 || req.DurationSeconds > a.config.MaxDurationSeconds {
		return fmt.Errorf("%w: got %d, want 1..%d", ErrInvalidDuration, req.DurationSeconds, a.config.MaxDurationSeconds)
	}
	return nil
}

func validateKey(userID string, caseNumber int) error {
	if userID == "" {
		return ErrInvalidUser
	}
	if !models.ValidCaseNumber(caseNumber) {
		return fmt.Errorf("%w: got %d", ErrInvalidCase, caseNumber)
	}
	return nil
}
