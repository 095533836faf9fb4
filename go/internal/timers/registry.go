package timers

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/oralboard/go/internal/models"
	"github.com/qmuntal/stateless"
	"github.com/rs/zerolog/log"
)

const (
	triggerExpire = "expire"
	triggerCancel = "cancel"
)

// Key identifies the single live timer slot for a user and case.
type Key struct {
	UserID     string
	CaseNumber int
}

// entry binds a registry-owned timer to the state machine guarding its status.
type entry struct {
	timer   *models.Timer
	machine *stateless.StateMachine
}

func newEntry(timer *models.Timer) *entry {
	machine := stateless.NewStateMachineWithExternalStorage(
		func(_ context.Context) (stateless.State, error) {
			return timer.Status, nil
		},
		func(_ context.Context, state stateless.State) error {
			timer.Status = state.(models.TimerStatus)
			return nil
		},
		stateless.FiringImmediate,
	)

	// expired and canceled are terminal: no transitions configured out of them
	machine.Configure(models.TimerStatusRunning).
		Permit(triggerExpire, models.TimerStatusExpired).
		Permit(triggerCancel, models.TimerStatusCanceled)

	return &entry{timer: timer, machine: machine}
}

// Registry holds the timers of every user, keyed by (user, case). Remaining time
// is never counted down in the background; every access first ticks all running
// timers against the clock.
type Registry struct {
	clock clockwork.Clock

	mu      sync.Mutex
	entries map[Key]*entry
	expired []*models.Timer // expirations not yet drained
}

// NewRegistry creates an empty registry reading time from clock
func NewRegistry(clock clockwork.Clock) *Registry {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Registry{
		clock:   clock,
		entries: make(map[Key]*entry),
	}
}

// Now returns the registry clock's current time
func (r *Registry) Now() time.Time {
	return r.clock.Now()
}

// Start creates or replaces the timer for the key. It fails with ErrConflict while
// the current timer for the key is still running.
func (r *Registry) Start(userID string, caseNumber, durationSeconds int) (*models.Timer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now()
	r.tickLocked(now)

	key := Key{UserID: userID, CaseNumber: caseNumber}
	if existing, ok := r.entries[key]; ok && existing.timer.IsRunning() {
		return nil, fmt.Errorf("user %s case %d: %w", userID, caseNumber, ErrConflict)
	}

	timer := &models.Timer{
		ID:               uuid.New(),
		UserID:           userID,
		CaseNumber:       caseNumber,
		DurationSeconds:  durationSeconds,
		RemainingSeconds: durationSeconds,
		Status:           models.TimerStatusRunning,
		StartedAt:        now.UTC(),
	}
	e := newEntry(timer)
	r.entries[key] = e

	// a zero-length timer is already over
	r.expireIfDone(e, now)

	return cloneTimer(timer), nil
}

// Get returns the timer for the key after ticking, or ErrNotFound.
func (r *Registry) Get(userID string, caseNumber int) (*models.Timer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.tickLocked(r.clock.Now())

	e, ok := r.entries[Key{UserID: userID, CaseNumber: caseNumber}]
	if !ok {
		return nil, fmt.Errorf("user %s case %d: %w", userID, caseNumber, ErrNotFound)
	}
	return cloneTimer(e.timer), nil
}

// List returns all timers of a user ordered by case number.
func (r *Registry) List(userID string) []*models.Timer {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.tickLocked(r.clock.Now())

	var result []*models.Timer
	for key, e := range r.entries {
		if key.UserID == userID {
			result = append(result, cloneTimer(e.timer))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CaseNumber < result[j].CaseNumber
	})
	return result
}

// Cancel stops a running timer, freezing its remaining time at the current value.
// It returns the canceled timer and true, or nil and false when there was no
// running timer for the key. Absent keys are not an error.
func (r *Registry) Cancel(userID string, caseNumber int) (*models.Timer, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.tickLocked(r.clock.Now())

	e, ok := r.entries[Key{UserID: userID, CaseNumber: caseNumber}]
	if !ok || !e.timer.IsRunning() {
		return nil, false
	}

	if err := e.machine.Fire(triggerCancel); err != nil {
		log.Error().Err(err).
			Str("timer_id", e.timer.ID.String()).
			Msg("failed to cancel timer")
		return nil, false
	}
	return cloneTimer(e.timer), true
}

// Tick recomputes every running timer and returns those that expired during this pass.
// The expirations stay queued for DrainExpired.
func (r *Registry) Tick() []*models.Timer {
	r.mu.Lock()
	defer r.mu.Unlock()

	before := len(r.expired)
	r.tickLocked(r.clock.Now())

	result := make([]*models.Timer, 0, len(r.expired)-before)
	for _, t := range r.expired[before:] {
		result = append(result, cloneTimer(t))
	}
	return result
}

// DrainExpired returns and forgets every expiration observed since the last drain.
func (r *Registry) DrainExpired() []*models.Timer {
	r.mu.Lock()
	defer r.mu.Unlock()

	drained := r.expired
	r.expired = nil
	return drained
}

// Restore loads previously persisted timers, replacing any record with the same key.
// Records with an unknown status or case number are skipped.
func (r *Registry) Restore(timers []*models.Timer) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	restored := 0
	for _, t := range timers {
		if t == nil || !t.Status.Valid() || !models.ValidCaseNumber(t.CaseNumber) {
			continue
		}
		key := Key{UserID: t.UserID, CaseNumber: t.CaseNumber}
		r.entries[key] = newEntry(cloneTimer(t))
		restored++
	}
	return restored
}

// tickLocked is the lazy sweep. Callers must hold r.mu.
func (r *Registry) tickLocked(now time.Time) {
	for _, e := range r.entries {
		if !e.timer.IsRunning() {
			continue
		}
		r.expireIfDone(e, now)
	}
}

func (r *Registry) expireIfDone(e *entry, now time.Time) {
	e.timer.RemainingSeconds = remainingAt(e.timer, now)
	if e.timer.RemainingSeconds > 0 {
		return
	}

	if err := e.machine.Fire(triggerExpire); err != nil {
		log.Error().Err(err).
			Str("timer_id", e.timer.ID.String()).
			Msg("failed to expire timer")
		return
	}
	r.expired = append(r.expired, cloneTimer(e.timer))
}

// remainingAt is max(duration - whole elapsed seconds, 0).
func remainingAt(t *models.Timer, now time.Time) int {
	elapsed := int(now.Sub(t.StartedAt) / time.Second)
	if elapsed < 0 {
		elapsed = 0
	}
	return max(t.DurationSeconds-elapsed, 0)
}

func cloneTimer(t *models.Timer) *models.Timer {
	c := *t
	return &c
}
