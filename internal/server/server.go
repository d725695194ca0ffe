// Package server is the development server: it serves the assets held by
// a stencil host and tells connected browsers to reload after each pass.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/http"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	serrors "github.com/conneroisu/stencil/internal/errors"
	"github.com/conneroisu/stencil/internal/host"
	"github.com/conneroisu/stencil/internal/logging"
	"github.com/conneroisu/stencil/internal/middleware"
	"github.com/conneroisu/stencil/internal/websocket"
)

// Reserved paths.
const (
	ReloadPath = "/_stencil/ws"
	HealthPath = "/_stencil/health"
	ErrorsPath = "/_stencil/errors"
)

// Config configures the dev server.
type Config struct {
	Host string
	Port int
	// AllowedOrigins are extra host patterns allowed to open the reload
	// socket, in addition to the server's own address and localhost.
	AllowedOrigins []string
}

// Server serves host assets with live reload.
type Server struct {
	cfg     Config
	host    *host.Host
	origins websocket.OriginPatterns
	reload  *websocket.Manager
	logger  logging.Logger
	started time.Time

	serverMutex sync.Mutex
	httpServer  *http.Server
}

// New creates a server for h and subscribes it to h's results.
func New(h *host.Host, cfg Config, logger logging.Logger) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}

	origins := websocket.OriginPatterns{
		net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		"localhost:*",
		"127.0.0.1:*",
	}
	origins = append(origins, cfg.AllowedOrigins...)

	s := &Server{
		cfg:     cfg,
		host:    h,
		origins: origins,
		reload:  websocket.NewManager(origins, logger),
		logger:  logger.WithComponent("server"),
		started: time.Now(),
	}
	h.OnResult(s.notify)
	return s
}

// Handler returns the server's HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(ReloadPath, s.reload)
	mux.HandleFunc(HealthPath, s.handleHealth)
	mux.HandleFunc(ErrorsPath, s.handleErrors)
	mux.HandleFunc("/", s.handleAsset)

	chain := middleware.NewChain(
		middleware.Recover(s.logger),
		middleware.Logging(s.logger),
		middleware.CORS(s.origins),
		middleware.NoCache(),
	)
	return chain.Apply(mux)
}

// Addr is the listen address.
func (s *Server) Addr() string {
	return net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
}

// Start serves until ctx is done, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.serverMutex.Lock()
	s.httpServer = &http.Server{
		Addr:              s.Addr(),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv := s.httpServer
	s.serverMutex.Unlock()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info(ctx, "Dev server listening", "addr", "http://"+srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server error: %w", err)
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.Shutdown(shutdownCtx)
}

// Shutdown stops the HTTP server and disconnects browsers.
func (s *Server) Shutdown(ctx context.Context) error {
	_ = s.reload.Shutdown(ctx)

	s.serverMutex.Lock()
	srv := s.httpServer
	s.serverMutex.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// notify tells browsers about a finished run. Runs that emitted nothing
// and reported nothing, skipped passes included, change nothing on the
// page and are not broadcast.
func (s *Server) notify(result host.Result) {
	if result.Skipped || (len(result.Emitted) == 0 && len(result.Errors) == 0) {
		return
	}
	msg := websocket.UpdateMessage{Type: websocket.MessageReload, Assets: result.Emitted}
	if len(result.Errors) > 0 {
		msg.Type = websocket.MessageErrors
		for _, err := range result.Errors {
			msg.Errors = append(msg.Errors, err.Error())
		}
	}
	s.reload.Broadcast(msg)
}

func (s *Server) handleAsset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	name, ok := s.lookup(r.URL.Path)
	if !ok {
		http.NotFound(w, r)
		return
	}
	asset, _ := s.host.Asset(name)
	body := asset.Source()

	contentType := mime.TypeByExtension(filepath.Ext(name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	if strings.HasPrefix(contentType, "text/html") {
		overlay := serrors.ErrorOverlay(s.host.Errors())
		injected, err := InjectPage(body, ReloadPath, overlay)
		if err != nil {
			s.logger.Warn(r.Context(), err, "Serving page without live reload", "asset", name)
		} else {
			body = injected
		}
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	if r.Method == http.MethodHead {
		return
	}
	_, _ = w.Write(body)
}

// lookup maps a URL path onto an asset name: "/" and directory paths
// serve index.html, extensionless paths fall back to ".html".
func (s *Server) lookup(urlPath string) (string, bool) {
	clean := strings.TrimPrefix(path.Clean("/"+urlPath), "/")
	candidates := []string{clean}
	switch {
	case clean == "":
		candidates = []string{"index.html"}
	case strings.HasSuffix(urlPath, "/"):
		candidates = []string{path.Join(clean, "index.html")}
	case path.Ext(clean) == "":
		candidates = append(candidates, clean+".html", path.Join(clean, "index.html"))
	}

	for _, name := range candidates {
		if _, ok := s.host.Asset(name); ok {
			return name, true
		}
	}
	return "", false
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"assets":  len(s.host.Assets()),
		"clients": s.reload.ClientCount(),
		"uptime":  time.Since(s.started).Round(time.Second).String(),
	})
}

func (s *Server) handleErrors(w http.ResponseWriter, r *http.Request) {
	errs := s.host.Errors()
	out := make([]map[string]string, 0, len(errs))
	for _, err := range errs {
		entry := map[string]string{"message": err.Error()}
		var se *serrors.StencilError
		if errors.As(err, &se) {
			entry["file"] = se.FilePath
			entry["code"] = se.Code
		}
		out = append(out, entry)
	}
	writeJSON(w, http.StatusOK, out)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
