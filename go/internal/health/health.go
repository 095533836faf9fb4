package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// Pinger is satisfied by *pgxpool.Pool
type Pinger interface {
	Ping(ctx context.Context) error
}

// ConnectionReporter is satisfied by the JetStream publisher
type ConnectionReporter interface {
	Connected() bool
}

// LiveCounter reports how many clients are watching timers
type LiveCounter func() int

type Status struct {
	Healthy           bool     `json:"healthy"`
	DatabaseConnected *bool    `json:"database_connected,omitempty"`
	NATSConnected     *bool    `json:"nats_connected,omitempty"`
	LiveConnections   int      `json:"live_connections"`
	Errors            []string `json:"errors"`
}

// Checker probes the optional dependencies of the timer service. Nil
// dependencies are skipped.
type Checker struct {
	db      Pinger
	nats    ConnectionReporter
	live    LiveCounter
	timeout time.Duration
}

func NewChecker(db Pinger, nats ConnectionReporter, live LiveCounter) *Checker {
	return &Checker{
		db:      db,
		nats:    nats,
		live:    live,
		timeout: 5 * time.Second,
	}
}

func (h *Checker) Check(ctx context.Context) Status {
	status := Status{
		Healthy: true,
		Errors:  []string{},
	}

	if h.db != nil {
		connected := true
		if err := h.db.Ping(ctx); err != nil {
			connected = false
			status.Healthy = false
			status.Errors = append(status.Errors, fmt.Sprintf("database ping failed: %v", err))
		}
		status.DatabaseConnected = &connected
	}

	if h.nats != nil {
		connected := h.nats.Connected()
		if !connected {
			status.Healthy = false
			status.Errors = append(status.Errors, "NATS disconnected")
		}
		status.NATSConnected = &connected
	}

	if h.live != nil {
		status.LiveConnections = h.live()
	}

	return status
}

func (h *Checker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	status := h.Check(ctx)

	w.Header().Set("Content-Type", "application/json")
	if !status.Healthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	if err := json.NewEncoder(w).Encode(status); err != nil {
		log.Error().Err(err).Msg("failed to encode health status")
	}
}
