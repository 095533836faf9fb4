package gateway

import (
	"context"
	"net/http"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Service is the timer gateway: WebSocket connections plus event fan-out
type Service struct {
	connectionManager *ConnectionManager
	wsHandler         *WebSocketHandler
}

// NewService creates a new timer gateway service
func NewService(provider TimerProvider, clock clockwork.Clock, config ConnectionConfig) *Service {
	connectionManager := NewConnectionManager(provider, clock, config)

	return &Service{
		connectionManager: connectionManager,
		wsHandler:         NewWebSocketHandler(connectionManager),
	}
}

// Start runs the gateway until ctx is done
func (s *Service) Start(ctx context.Context) {
	log.Info().Msg("starting timer gateway service")
	s.connectionManager.Start(ctx)
	log.Info().Msg("timer gateway service stopped")
}

// RegisterRoutes registers the WebSocket HTTP routes
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	s.wsHandler.RegisterRoutes(mux)
	log.Info().Msg("timer gateway routes registered")
}

// Publisher exposes the gateway as an event sink
func (s *Service) Publisher() *ConnectionManager {
	return s.connectionManager
}

// GetStats returns statistics about the gateway service
func (s *Service) GetStats() ConnectionStats {
	return s.connectionManager.GetConnectionStats()
}
