// Package websocket pushes build notifications to connected browsers.
package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"path"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/conneroisu/stencil/internal/logging"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 54 * time.Second
)

// Manager is a hub of browser connections. A single goroutine owns
// registration and broadcast; clients each get a writer goroutine.
//
// Invariants:
//   - clients is only touched with clientsMutex held
//   - a client's send channel is closed exactly once, by unregister
type Manager struct {
	clients      map[*websocket.Conn]*Client
	clientsMutex sync.RWMutex

	broadcast  chan []byte
	register   chan *Client
	unregister chan *websocket.Conn

	origins OriginValidator
	logger  logging.Logger

	ctx          context.Context
	cancel       context.CancelFunc
	shutdownOnce sync.Once
}

// NewManager creates a manager and starts its hub goroutine.
func NewManager(origins OriginValidator, logger logging.Logger) *Manager {
	if origins == nil {
		origins = OriginPatterns{"localhost:*", "127.0.0.1:*"}
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())

	m := &Manager{
		clients:    make(map[*websocket.Conn]*Client),
		broadcast:  make(chan []byte, 64),
		register:   make(chan *Client, 32),
		unregister: make(chan *websocket.Conn, 32),
		origins:    origins,
		logger:     logger.WithComponent("websocket"),
		ctx:        ctx,
		cancel:     cancel,
	}
	go m.runHub()
	return m
}

// IsAllowedOrigin matches the origin's host against the patterns.
func (p OriginPatterns) IsAllowedOrigin(origin string) bool {
	u, err := url.Parse(origin)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return false
	}
	for _, pattern := range p {
		if ok, _ := path.Match(pattern, u.Host); ok {
			return true
		}
	}
	return false
}

// ServeHTTP upgrades the request and registers the client.
func (m *Manager) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if m.ctx.Err() != nil {
		http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
		return
	}
	if origin := r.Header.Get("Origin"); origin != "" && !m.origins.IsAllowedOrigin(origin) {
		m.logger.Warn(r.Context(), nil, "WebSocket origin rejected", "origin", origin)
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// Origins were validated above.
		OriginPatterns:  []string{"*"},
		CompressionMode: websocket.CompressionDisabled,
	})
	if err != nil {
		m.logger.Warn(r.Context(), err, "WebSocket upgrade failed", "remote", r.RemoteAddr)
		return
	}
	client := &Client{conn: conn, send: make(chan []byte, 16)}
	select {
	case m.register <- client:
	case <-m.ctx.Done():
		_ = conn.Close(websocket.StatusServiceRestart, "server shutting down")
		return
	}

	go m.writeToClient(client)
	m.readFromClient(client)
	m.unregisterConn(client.conn)
}

// Broadcast sends message to every connected client. It drops the message
// when the hub is saturated or shut down.
func (m *Manager) Broadcast(message UpdateMessage) {
	if message.Timestamp.IsZero() {
		message.Timestamp = time.Now()
	}
	data, err := json.Marshal(message)
	if err != nil {
		m.logger.Error(context.Background(), err, "Failed to marshal broadcast message")
		return
	}

	select {
	case m.broadcast <- data:
	case <-m.ctx.Done():
	default:
		m.logger.Warn(context.Background(), nil, "Broadcast channel full, dropping message", "type", message.Type)
	}
}

// ClientCount returns the number of connected clients.
func (m *Manager) ClientCount() int {
	m.clientsMutex.RLock()
	defer m.clientsMutex.RUnlock()
	return len(m.clients)
}

// Shutdown closes every connection and stops the hub.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.shutdownOnce.Do(func() {
		m.cancel()

		m.clientsMutex.Lock()
		for conn, client := range m.clients {
			close(client.send)
			_ = conn.Close(websocket.StatusGoingAway, "server shutdown")
		}
		m.clients = make(map[*websocket.Conn]*Client)
		m.clientsMutex.Unlock()

		m.logger.Info(ctx, "WebSocket manager shut down")
	})
	return nil
}

func (m *Manager) runHub() {
	for {
		select {
		case client := <-m.register:
			m.clientsMutex.Lock()
			m.clients[client.conn] = client
			count := len(m.clients)
			m.clientsMutex.Unlock()
			m.logger.Debug(m.ctx, "WebSocket client connected", "clients", count)

		case conn := <-m.unregister:
			m.remove(conn)

		case message := <-m.broadcast:
			m.clientsMutex.RLock()
			for conn, client := range m.clients {
				select {
				case client.send <- message:
				default:
					// Slow client; drop it outside the read lock.
					go m.unregisterConn(conn)
				}
			}
			m.clientsMutex.RUnlock()

		case <-m.ctx.Done():
			return
		}
	}
}

func (m *Manager) unregisterConn(conn *websocket.Conn) {
	select {
	case m.unregister <- conn:
	case <-m.ctx.Done():
	}
}

func (m *Manager) remove(conn *websocket.Conn) {
	m.clientsMutex.Lock()
	client, ok := m.clients[conn]
	if ok {
		delete(m.clients, conn)
		close(client.send)
	}
	count := len(m.clients)
	m.clientsMutex.Unlock()

	if ok {
		_ = conn.Close(websocket.StatusNormalClosure, "")
		m.logger.Debug(m.ctx, "WebSocket client disconnected", "clients", count)
	}
}

// readFromClient blocks until the peer goes away. Browsers never send
// data frames; CloseRead keeps control frames flowing.
func (m *Manager) readFromClient(client *Client) {
	<-client.conn.CloseRead(m.ctx).Done()
}

func (m *Manager) writeToClient(client *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case message, ok := <-client.send:
			if !ok {
				return
			}
			ctx, cancel := context.WithTimeout(m.ctx, writeWait)
			err := client.conn.Write(ctx, websocket.MessageText, message)
			cancel()
			if err != nil {
				m.logger.Debug(m.ctx, "WebSocket write failed", "error", err.Error())
				return
			}

		case <-ticker.C:
			ctx, cancel := context.WithTimeout(m.ctx, writeWait)
			err := client.conn.Ping(ctx)
			cancel()
			if err != nil {
				return
			}

		case <-m.ctx.Done():
			return
		}
	}
}
