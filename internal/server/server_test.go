package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	serrors "github.com/conneroisu/stencil/internal/errors"
	"github.com/conneroisu/stencil/internal/host"
	"github.com/conneroisu/stencil/internal/output"
	"github.com/conneroisu/stencil/internal/plugin"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixture is a host whose emit handler publishes whatever is in assets.
type fixture struct {
	host   *host.Host
	assets map[string]string
	errs   []error
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	h, err := host.New("/site/dist", host.WithFilesystem(memfs.New()))
	require.NoError(t, err)

	f := &fixture{host: h, assets: map[string]string{}}
	h.OnCompile("fixture", func(_ context.Context, c plugin.Compilation, done func(error)) {
		for _, err := range f.errs {
			c.AddError(err)
		}
		done(nil)
	})
	h.OnEmit("fixture", func(_ context.Context, e plugin.Emission, done func(error)) {
		for name, content := range f.assets {
			e.EmitAsset(name, output.NewStringAsset(content))
		}
		done(nil)
	})
	return f
}

func (f *fixture) run(t *testing.T) {
	t.Helper()
	_, err := f.host.Run(context.Background(), nil)
	require.NoError(t, err)
}

func get(t *testing.T, srv *httptest.Server, p string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(srv.URL + p)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func TestServesAssets(t *testing.T) {
	f := newFixture(t)
	f.assets["index.html"] = "<html><body><h1>Home</h1></body></html>"
	f.assets["about.html"] = "<p>About</p>"
	f.assets["blog/index.html"] = "<p>Blog</p>"
	f.assets["feed.xml"] = "<rss/>"
	f.run(t)

	s := New(f.host, Config{Port: 3000}, nil)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, body := get(t, srv, "/")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.HasPrefix(resp.Header.Get("Content-Type"), "text/html"))
	assert.Contains(t, body, "<h1>Home</h1>")
	assert.Contains(t, body, ReloadPath, "pages get the reload client")

	_, body = get(t, srv, "/about")
	assert.Contains(t, body, "<p>About</p>")

	_, body = get(t, srv, "/blog/")
	assert.Contains(t, body, "<p>Blog</p>")

	resp, body = get(t, srv, "/feed.xml")
	assert.Equal(t, "<rss/>", body, "non-HTML assets are served verbatim")
	assert.NotContains(t, resp.Header.Get("Content-Type"), "html")

	resp, _ = get(t, srv, "/missing")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "no-store", resp.Header.Get("Cache-Control"))
}

func TestRejectsWrites(t *testing.T) {
	f := newFixture(t)
	s := New(f.host, Config{}, nil)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/index.html", "text/plain", strings.NewReader("x"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestErrorOverlayAndEndpoint(t *testing.T) {
	f := newFixture(t)
	f.assets["index.html"] = "<p>ok</p>"
	f.errs = []error{serrors.NewRenderError("/site/src/broken.hbs", errors.New("unclosed block"))}
	f.run(t)

	s := New(f.host, Config{}, nil)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	_, body := get(t, srv, "/")
	assert.Contains(t, body, "stencil-error-overlay")
	assert.Contains(t, body, "/site/src/broken.hbs")

	resp, body := get(t, srv, ErrorsPath)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	var errs []map[string]string
	require.NoError(t, json.Unmarshal([]byte(body), &errs))
	require.Len(t, errs, 1)
	assert.Equal(t, "/site/src/broken.hbs", errs[0]["file"])
	assert.Equal(t, serrors.ErrCodeRenderFailed, errs[0]["code"])
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	f.assets["index.html"] = "x"
	f.run(t)

	s := New(f.host, Config{}, nil)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	_, body := get(t, srv, HealthPath)
	var health map[string]any
	require.NoError(t, json.Unmarshal([]byte(body), &health))
	assert.Equal(t, "ok", health["status"])
	assert.EqualValues(t, 1, health["assets"])
}

func TestBrowsersAreToldToReload(t *testing.T) {
	f := newFixture(t)
	s := New(f.host, Config{}, nil)
	defer s.Shutdown(context.Background())

	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+ReloadPath, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	require.Eventually(t, func() bool { return s.reload.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	f.assets["index.html"] = "v2"
	f.run(t)

	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"type":"reload"`)
	assert.Contains(t, string(data), "index.html")
}

func TestEmptyRunsAreNotBroadcast(t *testing.T) {
	f := newFixture(t)
	s := New(f.host, Config{}, nil)
	defer s.Shutdown(context.Background())

	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+ReloadPath, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	require.Eventually(t, func() bool { return s.reload.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	f.run(t)
	f.assets["about.html"] = "about"
	f.run(t)

	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	assert.Contains(t, string(data), "about.html", "the empty run sent nothing before this one")
}

func TestInjectPage(t *testing.T) {
	out, err := InjectPage([]byte("<!DOCTYPE html><html><head></head><body><main>hi</main></body></html>"), "/ws", "")
	require.NoError(t, err)
	page := string(out)
	assert.Contains(t, page, "<main>hi</main>")
	assert.Contains(t, page, `<script data-stencil="reload">`)
	assert.Less(t, strings.Index(page, "<main>"), strings.Index(page, "<script"))
	assert.True(t, strings.HasSuffix(page, "</script></body></html>"))

	out, err = InjectPage([]byte("just text"), "/ws", `<div id="overlay">bad</div>`)
	require.NoError(t, err)
	assert.Contains(t, string(out), `<body>just text<div id="overlay">bad</div><script`)
}
