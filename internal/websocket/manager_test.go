package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dial(t *testing.T, srv *httptest.Server, origin string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	header := http.Header{}
	if origin != "" {
		header.Set("Origin", origin)
	}
	return websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), &websocket.DialOptions{HTTPHeader: header})
}

func TestOriginPatterns(t *testing.T) {
	origins := OriginPatterns{"localhost:*", "example.com"}

	assert.True(t, origins.IsAllowedOrigin("http://localhost:8080"))
	assert.True(t, origins.IsAllowedOrigin("https://example.com"))
	assert.False(t, origins.IsAllowedOrigin("http://evil.com"))
	assert.False(t, origins.IsAllowedOrigin("ftp://localhost:21"))
	assert.False(t, origins.IsAllowedOrigin("::not a url"))
}

func TestManagerBroadcastsToClients(t *testing.T) {
	m := NewManager(OriginPatterns{"127.0.0.1:*"}, nil)
	defer m.Shutdown(context.Background())

	srv := httptest.NewServer(m)
	defer srv.Close()

	conn, _, err := dial(t, srv, srv.URL)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	require.Eventually(t, func() bool { return m.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	m.Broadcast(UpdateMessage{Type: MessageReload, Assets: []string{"index.html"}})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, data, err := conn.Read(ctx)
	require.NoError(t, err)

	var msg UpdateMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, MessageReload, msg.Type)
	assert.Equal(t, []string{"index.html"}, msg.Assets)
	assert.False(t, msg.Timestamp.IsZero())
}

func TestManagerRejectsForeignOrigin(t *testing.T) {
	m := NewManager(OriginPatterns{"localhost:*"}, nil)
	defer m.Shutdown(context.Background())

	srv := httptest.NewServer(m)
	defer srv.Close()

	_, resp, err := dial(t, srv, "http://evil.com")
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestManagerForgetsDisconnectedClients(t *testing.T) {
	m := NewManager(nil, nil)
	defer m.Shutdown(context.Background())

	srv := httptest.NewServer(m)
	defer srv.Close()

	conn, _, err := dial(t, srv, "")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return m.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close(websocket.StatusNormalClosure, "bye"))
	assert.Eventually(t, func() bool { return m.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestManagerShutdown(t *testing.T) {
	m := NewManager(nil, nil)
	require.NoError(t, m.Shutdown(context.Background()))
	require.NoError(t, m.Shutdown(context.Background()))

	rec := httptest.NewRecorder()
	m.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	m.Broadcast(UpdateMessage{Type: MessageReload})
}
