package services

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"vawter.tech/stopper"

	"github.com/high001/webpanel/internal/models"
)

// Stream message types
const (
	StreamStats       = "stats"
	StreamAuth        = "auth"
	StreamAuthSuccess = "auth_success"
	StreamAuthError   = "auth_error"
	StreamPing        = "ping"
	StreamPong        = "pong"
)

// ClientConnection represents a connected WebSocket client
type ClientConnection struct {
	ID   string
	IP   string
	Conn *websocket.Conn
	Send chan models.StreamMessage

	mu    sync.Mutex
	token string
}

// NewClientConnection wraps an upgraded connection authenticated by token
func NewClientConnection(id, ip string, conn *websocket.Conn, token string) *ClientConnection {
	return &ClientConnection{
		ID:    id,
		IP:    ip,
		Conn:  conn,
		Send:  make(chan models.StreamMessage, 256),
		token: token,
	}
}

// Token returns the session token the client last authenticated with
func (c *ClientConnection) Token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

// SetToken replaces the session token after a successful auth message
func (c *ClientConnection) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// StatsHub manages all connected WebSocket clients and pushes metrics
// snapshots to them every interval
type StatsHub struct {
	clients    map[string]*ClientConnection
	broadcast  chan models.StreamMessage
	register   chan *ClientConnection
	unregister chan string
	done       chan struct{}
	mu         sync.RWMutex

	stats    *StatsCache
	auth     *AuthService
	interval time.Duration
	logger   zerolog.Logger
}

// NewStatsHub creates the hub. Run must be started for it to deliver anything.
func NewStatsHub(stats *StatsCache, auth *AuthService, interval time.Duration, logger zerolog.Logger) *StatsHub {
	if interval <= 0 {
		interval = time.Second
	}
	return &StatsHub{
		clients:    make(map[string]*ClientConnection),
		broadcast:  make(chan models.StreamMessage, 256),
		register:   make(chan *ClientConnection),
		unregister: make(chan string),
		done:       make(chan struct{}),
		stats:      stats,
		auth:       auth,
		interval:   interval,
		logger:     logger,
	}
}

// Run manages the hub's event loop until ctx stops
func (h *StatsHub) Run(ctx *stopper.Context) error {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	defer close(h.done)
	defer h.dropAll()

	for {
		select {
		case <-ctx.Stopping():
			return nil

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ID] = client
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Info().Str("client", client.ID).Str("ip", client.IP).Int("total", total).Msg("client connected")

		case clientID := <-h.unregister:
			if h.drop(clientID) {
				h.logger.Info().Str("client", clientID).Int("total", h.ClientCount()).Msg("client disconnected")
			}

		case msg := <-h.broadcast:
			h.fanOut(msg)

		case <-ticker.C:
			h.expireSessions()
			if h.ClientCount() == 0 {
				continue
			}
			msg, err := h.statsMessage()
			if err != nil {
				h.logger.Warn().Err(err).Msg("stats unavailable for broadcast")
				continue
			}
			h.fanOut(msg)
		}
	}
}

func (h *StatsHub) statsMessage() (models.StreamMessage, error) {
	stats, err := h.stats.Get()
	if err != nil {
		return models.StreamMessage{}, err
	}
	data, err := json.Marshal(stats)
	if err != nil {
		return models.StreamMessage{}, err
	}
	return models.StreamMessage{Type: StreamStats, Timestamp: time.Now(), Data: data}, nil
}

func (h *StatsHub) fanOut(msg models.StreamMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		select {
		case client.Send <- msg:
		default:
			// slow client, skip this frame
		}
	}
}

// expireSessions tells clients whose session ended and disconnects them
func (h *StatsHub) expireSessions() {
	h.mu.RLock()
	var expired []*ClientConnection
	for _, client := range h.clients {
		if _, err := h.auth.ValidateToken(client.Token()); err != nil {
			expired = append(expired, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range expired {
		select {
		case client.Send <- models.StreamMessage{Type: StreamAuthError, Timestamp: time.Now(), Error: "Session expired"}:
		default:
		}
		h.drop(client.ID)
		h.logger.Info().Str("client", client.ID).Msg("session ended, client dropped")
	}
}

func (h *StatsHub) drop(clientID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	client, exists := h.clients[clientID]
	if !exists {
		return false
	}
	delete(h.clients, clientID)
	close(client.Send)
	return true
}

func (h *StatsHub) dropAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, client := range h.clients {
		delete(h.clients, id)
		close(client.Send)
	}
}

// Register adds a new client to the hub. It reports false once the hub stopped.
func (h *StatsHub) Register(client *ClientConnection) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes a client from the hub
func (h *StatsHub) Unregister(clientID string) {
	select {
	case h.unregister <- clientID:
	case <-h.done:
	}
}

// Broadcast sends a message to all connected clients
func (h *StatsHub) Broadcast(msg models.StreamMessage) {
	select {
	case h.broadcast <- msg:
	case <-h.done:
	}
}

// Reply queues msg for one client if it is still connected
func (h *StatsHub) Reply(clientID string, msg models.StreamMessage) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	client, exists := h.clients[clientID]
	if !exists {
		return false
	}
	select {
	case client.Send <- msg:
		return true
	default:
		return false
	}
}

// ClientCount returns the number of connected clients
func (h *StatsHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Auth returns the service used to re-validate client sessions
func (h *StatsHub) Auth() *AuthService {
	return h.auth
}
