// Package host is a standalone build host for stencil plugins. It plays
// the bundler's role: it drives compile and emit signals, keeps the
// emitted assets in memory and tracks the dependency list between passes.
package host

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/conneroisu/stencil/internal/deps"
	serrors "github.com/conneroisu/stencil/internal/errors"
	"github.com/conneroisu/stencil/internal/logging"
	"github.com/conneroisu/stencil/internal/output"
	"github.com/conneroisu/stencil/internal/plugin"
	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
)

// Result describes one Run.
type Result struct {
	// Emitted lists the asset names emitted by this run, sorted.
	Emitted []string
	// Errors are the diagnostics reported by this run. A skipped run
	// reports none; Host.Errors keeps those of the last real pass.
	Errors []error
	// Skipped is true when every compile handler found nothing to do.
	Skipped      bool
	Dependencies []string
	Duration     time.Duration
}

// Listener is notified after every Run.
type Listener func(Result)

type namedCompile struct {
	name    string
	handler plugin.CompileHandler
}

type namedEmit struct {
	name    string
	handler plugin.EmitHandler
}

// Host implements plugin.Host.
type Host struct {
	outputDir string
	fs        billy.Filesystem
	logger    logging.Logger

	// runMutex serializes passes.
	runMutex sync.Mutex

	mutex        sync.RWMutex
	compiles     []namedCompile
	emits        []namedEmit
	assets       map[string]output.Asset
	dependencies []string
	errors       []error
	listeners    []Listener
}

// Option configures a Host.
type Option func(*Host)

// WithFilesystem sets the filesystem WriteAssets writes to.
func WithFilesystem(fs billy.Filesystem) Option {
	return func(h *Host) { h.fs = fs }
}

// WithLogger sets the host logger.
func WithLogger(logger logging.Logger) Option {
	return func(h *Host) { h.logger = logger }
}

// New creates a host whose assets live under outputDir.
func New(outputDir string, opts ...Option) (*Host, error) {
	abs, err := filepath.Abs(outputDir)
	if err != nil {
		return nil, serrors.NewConfigError(serrors.ErrCodeConfigInvalid, "invalid output directory", err)
	}
	h := &Host{
		outputDir: abs,
		assets:    make(map[string]output.Asset),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.fs == nil {
		h.fs = osfs.New("/")
	}
	if h.logger == nil {
		h.logger = logging.NewNop()
	}
	h.logger = h.logger.WithComponent("host")
	return h, nil
}

// OutputDir returns the absolute output directory.
func (h *Host) OutputDir() string {
	return h.outputDir
}

// OnCompile registers a compile handler.
func (h *Host) OnCompile(name string, handler plugin.CompileHandler) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.compiles = append(h.compiles, namedCompile{name: name, handler: handler})
}

// OnEmit registers an emit handler.
func (h *Host) OnEmit(name string, handler plugin.EmitHandler) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.emits = append(h.emits, namedEmit{name: name, handler: handler})
}

// OnResult registers a listener called after every Run.
func (h *Host) OnResult(listener Listener) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.listeners = append(h.listeners, listener)
}

// Run performs one compile then emit. A nil modified set means "no
// change signal" and forces a full pass. Handler failures abort the run;
// per-entry diagnostics are collected into Result.Errors.
func (h *Host) Run(ctx context.Context, modified deps.FileSet) (Result, error) {
	h.runMutex.Lock()
	defer h.runMutex.Unlock()

	start := time.Now()
	h.mutex.RLock()
	compiles := append([]namedCompile(nil), h.compiles...)
	emits := append([]namedEmit(nil), h.emits...)
	h.mutex.RUnlock()

	c := &compilation{modified: modified, outputDir: h.outputDir}
	for _, nc := range compiles {
		err := wait(ctx, func(done func(error)) { nc.handler(ctx, c, done) })
		if err != nil {
			return Result{}, fmt.Errorf("%s compile: %w", nc.name, err)
		}
	}

	e := &emission{outputDir: h.outputDir, assets: make(map[string]output.Asset)}
	for _, ne := range emits {
		err := wait(ctx, func(done func(error)) { ne.handler(ctx, e, done) })
		if err != nil {
			return Result{}, fmt.Errorf("%s emit: %w", ne.name, err)
		}
	}

	result := Result{
		Emitted:      sortedKeys(e.assets),
		Errors:       c.errors(),
		Dependencies: e.dependencies(),
		Skipped:      c.skipped(len(compiles)),
		Duration:     time.Since(start),
	}

	h.mutex.Lock()
	for name, asset := range e.assets {
		h.assets[name] = asset
	}
	h.dependencies = result.Dependencies
	if !result.Skipped {
		h.errors = result.Errors
	}
	listeners := append([]Listener(nil), h.listeners...)
	h.mutex.Unlock()

	h.logger.Info(ctx, "Build pass complete",
		"emitted", len(result.Emitted),
		"errors", len(result.Errors),
		"dependencies", len(result.Dependencies),
		"skipped", result.Skipped,
		"duration_ms", result.Duration.Milliseconds())

	for _, listener := range listeners {
		listener(result)
	}
	return result, nil
}

// wait calls fn and blocks until it reports done or ctx ends. Extra done
// calls are ignored.
func wait(ctx context.Context, fn func(done func(error))) error {
	ch := make(chan error, 1)
	var once sync.Once
	fn(func(err error) {
		once.Do(func() { ch <- err })
	})
	select {
	case err := <-ch:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Asset returns the latest asset emitted under name.
func (h *Host) Asset(name string) (output.Asset, bool) {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	asset, ok := h.assets[name]
	return asset, ok
}

// Assets returns a snapshot of every asset emitted so far.
func (h *Host) Assets() map[string]output.Asset {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	snapshot := make(map[string]output.Asset, len(h.assets))
	for name, asset := range h.assets {
		snapshot[name] = asset
	}
	return snapshot
}

// Dependencies returns the dependency list declared by the last Run.
func (h *Host) Dependencies() []string {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return append([]string(nil), h.dependencies...)
}

// Errors returns the diagnostics of the last Run.
func (h *Host) Errors() []error {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return append([]error(nil), h.errors...)
}

// WriteAssets writes every asset under the output directory and returns
// how many were written.
func (h *Host) WriteAssets(ctx context.Context) (int, error) {
	assets := h.Assets()
	names := sortedKeys(assets)
	root := filepath.ToSlash(h.outputDir)

	for i, name := range names {
		if err := ctx.Err(); err != nil {
			return i, err
		}
		target := path.Join(root, name)
		if err := h.fs.MkdirAll(path.Dir(target), 0o755); err != nil {
			return i, serrors.NewIOError(serrors.ErrCodeWriteFailed, target, err)
		}
		if err := util.WriteFile(h.fs, target, assets[name].Source(), 0o644); err != nil {
			return i, serrors.NewIOError(serrors.ErrCodeWriteFailed, target, err)
		}
		h.logger.Debug(ctx, "Wrote asset", "path", target, "size", assets[name].Size())
	}
	return len(names), nil
}

func sortedKeys(m map[string]output.Asset) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
