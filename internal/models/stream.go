package models

import (
	"encoding/json"
	"time"
)

// StreamMessage is one frame exchanged on the /ws live stats channel
type StreamMessage struct {
	Type      string          `json:"type"` // "stats", "auth", "auth_success", "auth_error", "ping", "pong"
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
	Error     string          `json:"error,omitempty"`
	Token     string          `json:"token,omitempty"` // auth frames from the client
}
