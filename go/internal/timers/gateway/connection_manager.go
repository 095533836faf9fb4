package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/oralboard/go/internal/models"
	"github.com/mcdev12/oralboard/go/internal/timers/events"
	"github.com/rs/zerolog/log"
)

// TimerProvider defines what the gateway needs to build snapshots
type TimerProvider interface {
	ListTimers(ctx context.Context, userID string) ([]*models.Timer, error)
}

// MessageType represents the type of message pushed to clients
type MessageType string

const (
	MessageTypeSnapshot MessageType = "TimerSnapshot"
	MessageTypeEvent    MessageType = "TimerEvent"
)

// Message is the envelope of everything written to a connection
type Message struct {
	Type   MessageType     `json:"type"`
	UserID string          `json:"userId"`
	SentAt time.Time       `json:"sentAt"`
	Timers []*models.Timer `json:"timers,omitempty"`
	Event  *events.Event   `json:"event,omitempty"`
}

// ConnectionManager manages WebSocket connections watching user timers
type ConnectionManager struct {
	// Connection pools organized by user ID
	userConnections map[string]map[*Connection]bool
	mu              sync.RWMutex

	upgrader websocket.Upgrader
	provider TimerProvider
	clock    clockwork.Clock
	config   ConnectionConfig

	broadcastCh chan BroadcastMessage
}

// Connection represents a WebSocket connection to a client
type Connection struct {
	ID      string
	UserID  string
	Conn    *websocket.Conn
	Send    chan []byte
	Manager *ConnectionManager

	ConnectedAt time.Time
	done        chan struct{}
	closeOnce   sync.Once
}

// ConnectionConfig holds configuration for WebSocket connections
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	PushInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool
}

// BroadcastMessage represents a message to deliver to every connection of a user
type BroadcastMessage struct {
	UserID  string
	Message Message
}

// DefaultConnectionConfig returns default WebSocket configuration
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		PushInterval:    time.Second,
		MaxMessageSize:  1024,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
}

// NewConnectionManager creates a new WebSocket connection manager
func NewConnectionManager(provider TimerProvider, clock clockwork.Clock, config ConnectionConfig) *ConnectionManager {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &ConnectionManager{
		userConnections: make(map[string]map[*Connection]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		provider:    provider,
		clock:       clock,
		config:      config,
		broadcastCh: make(chan BroadcastMessage, 1000),
	}
}

// Start processes broadcast messages until ctx is done
func (cm *ConnectionManager) Start(ctx context.Context) {
	log.Info().Msg("connection manager started")

	for {
		select {
		case <-ctx.Done():
			cm.closeAll()
			log.Info().Msg("connection manager shutting down")
			return
		case message := <-cm.broadcastCh:
			cm.handleBroadcast(message)
		}
	}
}

// Publish forwards a timer lifecycle event to the owner's connections.
// It lets the manager sit behind an events.Publisher.
func (cm *ConnectionManager) Publish(ctx context.Context, event events.Event) error {
	cm.BroadcastToUser(event.UserID, Message{
		Type:   MessageTypeEvent,
		UserID: event.UserID,
		SentAt: cm.clock.Now().UTC(),
		Event:  &event,
	})
	return nil
}

// BroadcastToUser queues a message for every connection of a user
func (cm *ConnectionManager) BroadcastToUser(userID string, message Message) {
	select {
	case cm.broadcastCh <- BroadcastMessage{UserID: userID, Message: message}:
	default:
		log.Warn().Str("user_id", userID).Msg("broadcast channel full, dropping message")
	}
}

// UpgradeConnection upgrades an HTTP connection to WebSocket
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request, userID string) error {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("failed to upgrade connection: %w", err)
	}

	connection := &Connection{
		ID:          uuid.New().String(),
		UserID:      userID,
		Conn:        conn,
		Send:        make(chan []byte, 256),
		Manager:     cm,
		ConnectedAt: cm.clock.Now(),
		done:        make(chan struct{}),
	}

	cm.registerConnection(connection)

	go connection.writePump()
	go connection.readPump()

	log.Info().
		Str("connection_id", connection.ID).
		Str("user_id", userID).
		Msg("WebSocket connection established")

	return nil
}

func (cm *ConnectionManager) registerConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.userConnections[conn.UserID] == nil {
		cm.userConnections[conn.UserID] = make(map[*Connection]bool)
	}
	cm.userConnections[conn.UserID][conn] = true

	log.Debug().
		Str("connection_id", conn.ID).
		Str("user_id", conn.UserID).
		Int("user_connections", len(cm.userConnections[conn.UserID])).
		Msg("connection registered")
}

func (cm *ConnectionManager) unregisterConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	connections, exists := cm.userConnections[conn.UserID]
	if !exists {
		return
	}
	if _, exists := connections[conn]; !exists {
		return
	}

	delete(connections, conn)
	conn.close()
	if len(connections) == 0 {
		delete(cm.userConnections, conn.UserID)
	}

	log.Info().
		Str("connection_id", conn.ID).
		Str("user_id", conn.UserID).
		Msg("connection unregistered")
}

func (cm *ConnectionManager) closeAll() {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	for userID, connections := range cm.userConnections {
		for conn := range connections {
			conn.close()
		}
		delete(cm.userConnections, userID)
	}
}

func (cm *ConnectionManager) handleBroadcast(message BroadcastMessage) {
	cm.mu.RLock()
	var targets []*Connection
	for conn := range cm.userConnections[message.UserID] {
		targets = append(targets, conn)
	}
	cm.mu.RUnlock()

	if len(targets) == 0 {
		return
	}

	data, err := json.Marshal(message.Message)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal message for broadcast")
		return
	}

	for _, conn := range targets {
		conn.enqueue(data)
	}
}

// snapshot renders the current timers of a user
func (cm *ConnectionManager) snapshot(ctx context.Context, userID string) ([]byte, error) {
	timers, err := cm.provider.ListTimers(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list timers: %w", err)
	}
	if timers == nil {
		timers = []*models.Timer{}
	}

	return json.Marshal(Message{
		Type:   MessageTypeSnapshot,
		UserID: userID,
		SentAt: cm.clock.Now().UTC(),
		Timers: timers,
	})
}

// GetConnectionStats returns statistics about active connections
func (cm *ConnectionManager) GetConnectionStats() ConnectionStats {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	stats := ConnectionStats{
		UserConnections: make(map[string]int, len(cm.userConnections)),
	}
	for userID, connections := range cm.userConnections {
		stats.TotalConnections += len(connections)
		stats.UserConnections[userID] = len(connections)
	}
	stats.ActiveUsers = len(cm.userConnections)
	return stats
}

// ConnectionStats summarizes the open connections
type ConnectionStats struct {
	TotalConnections int            `json:"total_connections"`
	ActiveUsers      int            `json:"active_users"`
	UserConnections  map[string]int `json:"user_connections"`
}

// enqueue drops the connection when its send buffer is full
func (c *Connection) enqueue(data []byte) {
	select {
	case <-c.done:
	case c.Send <- data:
	default:
		log.Warn().
			Str("connection_id", c.ID).
			Str("user_id", c.UserID).
			Msg("connection send buffer full, closing connection")
		c.Manager.unregisterConnection(c)
	}
}

func (c *Connection) close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// writePump pushes snapshots, queued messages and pings to the client
func (c *Connection) writePump() {
	cfg := c.Manager.config
	pushTicker := c.Manager.clock.NewTicker(cfg.PushInterval)
	pingTicker := c.Manager.clock.NewTicker(cfg.PingInterval)
	defer func() {
		pushTicker.Stop()
		pingTicker.Stop()
		c.Manager.unregisterConnection(c)
		c.Conn.Close()
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-c.done:
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := c.pushSnapshot(ctx); err != nil {
		return
	}

	for {
		select {
		case <-c.done:
			c.Conn.SetWriteDeadline(time.Now().Add(cfg.WriteTimeout))
			c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case message := <-c.Send:
			if err := c.write(websocket.TextMessage, message); err != nil {
				return
			}

		case <-pushTicker.Chan():
			if err := c.pushSnapshot(ctx); err != nil {
				return
			}

		case <-pingTicker.Chan():
			if err := c.write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Connection) pushSnapshot(ctx context.Context) error {
	data, err := c.Manager.snapshot(ctx, c.UserID)
	if err != nil {
		log.Error().Err(err).Str("connection_id", c.ID).Msg("failed to build snapshot")
		return err
	}
	return c.write(websocket.TextMessage, data)
}

func (c *Connection) write(messageType int, data []byte) error {
	c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
	if err := c.Conn.WriteMessage(messageType, data); err != nil {
		log.Error().
			Err(err).
			Str("connection_id", c.ID).
			Msg("failed to write message to WebSocket")
		return err
	}
	return nil
}

// readPump drains client frames so pongs and close frames are processed
func (c *Connection) readPump() {
	defer func() {
		c.Manager.unregisterConnection(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.Manager.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("unexpected WebSocket close error")
			}
			return
		}

		log.Debug().
			Str("connection_id", c.ID).
			Str("user_id", c.UserID).
			Int("size", len(message)).
			Msg("received client message")
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	}
}
