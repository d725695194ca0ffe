package websocket

import (
	"time"

	"github.com/coder/websocket"
)

// Message types sent to browsers.
const (
	MessageReload = "reload"
	MessageErrors = "errors"
)

// Client represents a WebSocket client connection
type Client struct {
	conn *websocket.Conn
	send chan []byte
}

// UpdateMessage represents a message sent to the browser
type UpdateMessage struct {
	Type      string    `json:"type"`
	Assets    []string  `json:"assets,omitempty"`
	Errors    []string  `json:"errors,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// OriginValidator decides whether a browser origin may connect.
type OriginValidator interface {
	IsAllowedOrigin(origin string) bool
}

// OriginPatterns validates origins by host against path.Match patterns,
// e.g. "localhost:*".
type OriginPatterns []string
