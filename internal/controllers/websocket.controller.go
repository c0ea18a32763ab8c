package controllers

import (
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/high001/webpanel/internal/middleware"
	"github.com/high001/webpanel/internal/models"
	"github.com/high001/webpanel/internal/services"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// WebSocketController upgrades /ws requests and attaches them to the stats hub
type WebSocketController struct {
	hub      *services.StatsHub
	security *middleware.SecurityLogger
	upgrader websocket.Upgrader
	logger   zerolog.Logger
}

func NewWebSocketController(hub *services.StatsHub, security *middleware.SecurityLogger, allowedOrigins []string, logger zerolog.Logger) *WebSocketController {
	return &WebSocketController{
		hub:      hub,
		security: security,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					// non-browser clients such as the console
					return true
				}
				if u, err := url.Parse(origin); err == nil && u.Host == r.Host {
					return true
				}
				return middleware.OriginAllowed(origin, allowedOrigins)
			},
		},
	}
}

// HandleWebSocket authenticates with the Bearer header, session cookie or
// token query parameter and then streams stats frames
func (wc *WebSocketController) HandleWebSocket(c *gin.Context) {
	token := middleware.ExtractToken(c)
	if token == "" {
		token = c.Query("token")
	}
	if token == "" {
		wc.security.LogFailedAuth(c.ClientIP(), "websocket: missing token")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	claims, err := wc.hub.Auth().ValidateToken(token)
	if err != nil {
		wc.security.LogFailedAuth(c.ClientIP(), "websocket: "+err.Error())
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Session expired"})
		return
	}

	ws, err := wc.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		wc.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	wc.security.LogWebSocketConnected(c.ClientIP(), claims.Username)

	client := services.NewClientConnection(uuid.NewString(), c.ClientIP(), ws, token)
	if !wc.hub.Register(client) {
		_ = ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"), time.Now().Add(writeWait))
		_ = ws.Close()
		return
	}

	go wc.readPump(client)
	go wc.writePump(client)
}

// readPump reads messages from the WebSocket client
func (wc *WebSocketController) readPump(client *services.ClientConnection) {
	defer func() {
		wc.hub.Unregister(client.ID)
		wc.security.LogWebSocketDisconnected(client.IP, client.ID)
		client.Conn.Close()
	}()

	client.Conn.SetReadLimit(64 << 10)
	_ = client.Conn.SetReadDeadline(time.Now().Add(pongWait))
	client.Conn.SetPongHandler(func(string) error {
		return client.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg models.StreamMessage
		if err := client.Conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				wc.logger.Debug().Err(err).Str("client", client.ID).Msg("websocket read error")
			}
			return
		}

		switch msg.Type {
		case services.StreamAuth:
			// re-authentication with a fresh token
			claims, err := wc.hub.Auth().ValidateToken(msg.Token)
			if err != nil {
				wc.security.LogFailedAuth(client.IP, "websocket auth message: "+err.Error())
				wc.hub.Reply(client.ID, models.StreamMessage{Type: services.StreamAuthError, Timestamp: time.Now(), Error: "Invalid token"})
				continue
			}
			client.SetToken(msg.Token)
			data, _ := json.Marshal(gin.H{"username": claims.Username})
			wc.hub.Reply(client.ID, models.StreamMessage{Type: services.StreamAuthSuccess, Timestamp: time.Now(), Data: data})

		case services.StreamPing:
			wc.hub.Reply(client.ID, models.StreamMessage{Type: services.StreamPong, Timestamp: time.Now()})

		case "unsubscribe":
			return

		default:
			wc.logger.Debug().Str("type", msg.Type).Msg("unknown websocket message type")
		}
	}
}

// writePump writes messages to the WebSocket client
func (wc *WebSocketController) writePump(client *services.ClientConnection) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		client.Conn.Close()
	}()

	for {
		select {
		case msg, ok := <-client.Send:
			_ = client.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// hub closed the channel
				_ = client.Conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := client.Conn.WriteJSON(msg); err != nil {
				return
			}

		case <-ticker.C:
			_ = client.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
