package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/high001/webpanel/internal/models"
)

// StreamStats subscribes to the agent's live stats channel and calls fn for
// every metrics frame until ctx is cancelled or the connection drops.
func (c *Client) StreamStats(ctx context.Context, fn func(*models.DashboardStats)) error {
	const op = "GET /ws"

	u, err := url.Parse(c.base + "/ws")
	if err != nil {
		return &Error{Kind: KindValidation, Op: op, Err: err}
	}
	if strings.HasPrefix(u.Scheme, "https") {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}

	header := http.Header{}
	if token := c.session.Token(); token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			apiErr := &Error{Kind: KindAuth, Op: op, Status: resp.StatusCode}
			c.session.Teardown(apiErr)
			return apiErr
		}
		return &Error{Kind: KindNetwork, Op: op, Err: err}
	}
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		var msg models.StreamMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return &Error{Kind: KindNetwork, Op: op, Err: err}
		}
		switch msg.Type {
		case "stats":
			var stats models.DashboardStats
			if err := json.Unmarshal(msg.Data, &stats); err != nil {
				c.logger.Warn().Err(err).Msg("dropping malformed stats frame")
				continue
			}
			fn(&stats)
		case "auth_error":
			apiErr := &Error{Kind: KindAuth, Op: op, Message: msg.Error}
			c.session.Teardown(apiErr)
			return apiErr
		}
	}
}
