package host

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/conneroisu/stencil/internal/deps"
	"github.com/conneroisu/stencil/internal/output"
	"github.com/conneroisu/stencil/internal/plugin"
	"github.com/conneroisu/stencil/internal/watcher"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
}

func newSite(t *testing.T) (string, *Host, *plugin.Plugin) {
	t.Helper()
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"src/index.hbs": "<h1>{{title}}</h1>",
		"src/about.hbs": "{{#if}}",
		"data.json":     `{"title":"Home"}`,
	})
	dist := filepath.Join(root, "dist")

	h, err := New(dist, WithFilesystem(memfs.New()))
	require.NoError(t, err)

	p, err := plugin.New(plugin.Options{
		Entry:  filepath.Join(root, "src/*.hbs"),
		Output: filepath.Join(dist, "[name].html"),
		Data:   filepath.Join(root, "data.json"),
	})
	require.NoError(t, err)
	p.Apply(h)
	return root, h, p
}

func TestRunDrivesCompileAndEmit(t *testing.T) {
	root, h, _ := newSite(t)

	var notified []Result
	h.OnResult(func(r Result) { notified = append(notified, r) })

	result, err := h.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"index.html"}, result.Emitted)
	require.Len(t, result.Errors, 1, "the broken entry is a diagnostic, not a failure")
	assert.Contains(t, result.Dependencies, filepath.Join(root, "data.json"))
	assert.Contains(t, result.Dependencies, filepath.Join(root, "src/about.hbs"))
	require.Len(t, notified, 1)

	asset, ok := h.Asset("index.html")
	require.True(t, ok)
	assert.Equal(t, "<h1>Home</h1>", string(asset.Source()))
	assert.Equal(t, result.Dependencies, h.Dependencies())
	assert.Len(t, h.Errors(), 1)
}

func TestRunWithoutChangesKeepsAssets(t *testing.T) {
	root, h, p := newSite(t)

	_, err := h.Run(context.Background(), nil)
	require.NoError(t, err)

	result, err := h.Run(context.Background(), deps.NewFileSet())
	require.NoError(t, err)
	assert.Empty(t, result.Emitted)
	assert.True(t, p.LastReport().Skipped)
	assert.Contains(t, result.Dependencies, filepath.Join(root, "src/index.hbs"), "dependencies survive skipped passes")
	assert.Len(t, h.Assets(), 1)
}

func TestSkippedRunKeepsDiagnostics(t *testing.T) {
	root, h, _ := newSite(t)

	first, err := h.Run(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, first.Errors, 1)

	second, err := h.Run(context.Background(), deps.NewFileSet(filepath.Join(root, "README.md")))
	require.NoError(t, err)
	assert.True(t, second.Skipped)
	assert.Empty(t, second.Errors)
	assert.Equal(t, first.Errors, h.Errors(), "the broken entry is still broken")

	writeFiles(t, root, map[string]string{"src/about.hbs": "<p>fixed</p>"})
	third, err := h.Run(context.Background(), deps.NewFileSet(filepath.Join(root, "src/about.hbs")))
	require.NoError(t, err)
	assert.False(t, third.Skipped)
	assert.Empty(t, h.Errors(), "a real pass replaces the diagnostics")
}

func TestRunWithoutSkipReportIsNotSkipped(t *testing.T) {
	h, err := New("/site/dist", WithFilesystem(memfs.New()))
	require.NoError(t, err)

	h.OnCompile("quiet", func(_ context.Context, _ plugin.Compilation, done func(error)) {
		done(nil)
	})
	result, err := h.Run(context.Background(), deps.NewFileSet())
	require.NoError(t, err)
	assert.False(t, result.Skipped)
}

func TestRunRebuildsOnTrackedChange(t *testing.T) {
	root, h, _ := newSite(t)
	_, err := h.Run(context.Background(), nil)
	require.NoError(t, err)

	writeFiles(t, root, map[string]string{"data.json": `{"title":"Changed"}`})
	result, err := h.Run(context.Background(), deps.NewFileSet(filepath.Join(root, "data.json")))
	require.NoError(t, err)
	assert.Equal(t, []string{"index.html"}, result.Emitted)

	asset, _ := h.Asset("index.html")
	assert.Equal(t, "<h1>Changed</h1>", string(asset.Source()))
}

func TestWriteAssets(t *testing.T) {
	fs := memfs.New()
	h, err := New("/site/dist", WithFilesystem(fs))
	require.NoError(t, err)

	h.OnEmit("test", func(_ context.Context, e plugin.Emission, done func(error)) {
		e.EmitAsset("index.html", output.NewStringAsset("home"))
		e.EmitAsset("blog/post.html", output.NewStringAsset("post"))
		done(nil)
	})
	_, err = h.Run(context.Background(), nil)
	require.NoError(t, err)

	n, err := h.WriteAssets(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := util.ReadFile(fs, filepath.ToSlash(filepath.Join(h.OutputDir(), "blog/post.html")))
	require.NoError(t, err)
	assert.Equal(t, "post", string(got))
}

func TestRunStopsOnHandlerError(t *testing.T) {
	h, err := New(t.TempDir())
	require.NoError(t, err)

	boom := errors.New("boom")
	emitted := false
	h.OnCompile("failing", func(_ context.Context, _ plugin.Compilation, done func(error)) { done(boom) })
	h.OnEmit("never", func(_ context.Context, _ plugin.Emission, done func(error)) {
		emitted = true
		done(nil)
	})

	_, err = h.Run(context.Background(), nil)
	assert.ErrorIs(t, err, boom)
	assert.False(t, emitted)
}

func TestRunWaitsForAsyncDone(t *testing.T) {
	h, err := New(t.TempDir())
	require.NoError(t, err)

	h.OnCompile("async", func(_ context.Context, _ plugin.Compilation, done func(error)) {
		go func() {
			time.Sleep(10 * time.Millisecond)
			done(nil)
			done(errors.New("ignored second call"))
		}()
	})

	_, err = h.Run(context.Background(), nil)
	assert.NoError(t, err)
}

func TestRunHonorsContextWhileWaiting(t *testing.T) {
	h, err := New(t.TempDir())
	require.NoError(t, err)
	h.OnCompile("stuck", func(context.Context, plugin.Compilation, func(error)) {})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = h.Run(ctx, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCompilationSignal(t *testing.T) {
	c := &compilation{}
	_, ok := c.ModifiedFiles()
	assert.False(t, ok)

	c = &compilation{modified: deps.NewFileSet()}
	set, ok := c.ModifiedFiles()
	assert.True(t, ok)
	assert.Empty(t, set)
}

func TestWatchRebuildsOnChange(t *testing.T) {
	root, h, _ := newSite(t)
	_, err := h.Run(context.Background(), nil)
	require.NoError(t, err)

	w, err := watcher.NewFileWatcher(20*time.Millisecond, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rebuilt := make(chan Result, 4)
	h.OnResult(func(r Result) { rebuilt <- r })

	watchErr := make(chan error, 1)
	go func() { watchErr <- h.Watch(ctx, w, filepath.Join(root, "src")) }()
	time.Sleep(100 * time.Millisecond)

	writeFiles(t, root, map[string]string{"data.json": `{"title":"Live"}`})

	select {
	case r := <-rebuilt:
		assert.Equal(t, []string{"index.html"}, r.Emitted)
	case <-time.After(3 * time.Second):
		t.Fatal("no rebuild after change")
	}
	asset, _ := h.Asset("index.html")
	assert.Equal(t, "<h1>Live</h1>", string(asset.Source()))

	cancel()
	assert.NoError(t, <-watchErr)
}
