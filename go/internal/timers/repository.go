package timers

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mcdev12/oralboard/go/internal/models"
	"github.com/mcdev12/oralboard/go/internal/sqlutil"
)

// NopRepository keeps nothing. The registry alone holds timers.
type NopRepository struct{}

func (NopRepository) SaveTimers(ctx context.Context, timers ...*models.Timer) error {
	return nil
}

func (NopRepository) ListTimers(ctx context.Context) ([]*models.Timer, error) {
	return nil, nil
}

// Querier defines what the repository needs from the database layer
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

const createTableSQL = `
CREATE TABLE IF NOT EXISTS case_timers (
    user_id           TEXT        NOT NULL,
    case_number       INTEGER     NOT NULL CHECK (case_number BETWEEN 1 AND 4),
    timer_id          TEXT        NOT NULL,
    duration_seconds  INTEGER     NOT NULL,
    remaining_seconds INTEGER     NOT NULL,
    status            TEXT        NOT NULL,
    started_at        TIMESTAMPTZ NOT NULL,
    updated_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (user_id, case_number)
)`

const upsertTimerSQL = `
INSERT INTO case_timers (
    user_id, case_number, timer_id, duration_seconds, remaining_seconds, status, started_at, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, now())
ON CONFLICT (user_id, case_number) DO UPDATE SET
    timer_id          = EXCLUDED.timer_id,
    duration_seconds  = EXCLUDED.duration_seconds,
    remaining_seconds = EXCLUDED.remaining_seconds,
    status            = EXCLUDED.status,
    started_at        = EXCLUDED.started_at,
    updated_at        = now()`

const listTimersSQL = `
SELECT user_id, case_number, timer_id, duration_seconds, remaining_seconds, status, started_at
FROM case_timers
ORDER BY user_id, case_number`

// PostgresRepository stores the latest record of every (user, case) key
type PostgresRepository struct {
	db Querier
}

// NewPostgresRepository creates a new Postgres timer repository
func NewPostgresRepository(db Querier) *PostgresRepository {
	return &PostgresRepository{
		db: db,
	}
}

// EnsureSchema creates the case_timers table if missing
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, createTableSQL); err != nil {
		return fmt.Errorf("failed to create case_timers table: %w", err)
	}
	return nil
}

// SaveTimers upserts timers in a single transaction
func (r *PostgresRepository) SaveTimers(ctx context.Context, timers ...*models.Timer) error {
	if len(timers) == 0 {
		return nil
	}

	return sqlutil.Run(ctx, r.db, func(tx pgx.Tx) error {
		for _, t := range timers {
			_, err := tx.Exec(ctx, upsertTimerSQL,
				t.UserID,
				t.CaseNumber,
				t.ID.String(),
				t.DurationSeconds,
				t.RemainingSeconds,
				string(t.Status),
				t.StartedAt,
			)
			if err != nil {
				return fmt.Errorf("failed to save timer %s: %w", t.ID, err)
			}
		}
		return nil
	})
}

// ListTimers loads every stored timer
func (r *PostgresRepository) ListTimers(ctx context.Context) ([]*models.Timer, error) {
	rows, err := r.db.Query(ctx, listTimersSQL)
	if err != nil {
		return nil, fmt.Errorf("failed to list timers: %w", err)
	}
	defer rows.Close()

	var timers []*models.Timer
	for rows.Next() {
		var (
			timer     models.Timer
			timerID   string
			status    string
			startedAt time.Time
		)
		if err := rows.Scan(
			&timer.UserID,
			&timer.CaseNumber,
			&timerID,
			&timer.DurationSeconds,
			&timer.RemainingSeconds,
			&status,
			&startedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan timer: %w", err)
		}

		id, err := uuid.Parse(timerID)
		if err != nil {
			return nil, fmt.Errorf("invalid timer id %q: %w", timerID, err)
		}
		timer.ID = id
		timer.Status = models.TimerStatus(status)
		timer.StartedAt = startedAt.UTC()
		timers = append(timers, &timer)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate timers: %w", err)
	}

	return timers, nil
}
