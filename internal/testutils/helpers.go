// Package testutils holds fixtures shared by package tests.
package testutils

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/conneroisu/stencil/internal/config"
	"github.com/stretchr/testify/require"
)

// CreateTempProject creates an empty site layout: src/pages,
// src/partials and dist.
func CreateTempProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for _, sub := range []string{"src/pages", "src/partials", "dist"} {
		require.NoError(t, os.MkdirAll(filepath.Join(dir, sub), 0o755))
	}
	return dir
}

// WriteFile writes content to dir/rel, creating parent directories, and
// returns the absolute path.
func WriteFile(t *testing.T, dir, rel, content string) string {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// CreateTestConfig returns a validated-looking configuration for a
// project made by CreateTempProject. Every path is absolute.
func CreateTestConfig(projectDir string) *config.Config {
	return &config.Config{
		Entry:     filepath.Join(projectDir, "src", "pages", "**", "*.hbs"),
		Output:    filepath.Join(projectDir, "dist", "[path]", "[name].html"),
		OutputDir: filepath.Join(projectDir, "dist"),
		Data:      filepath.Join(projectDir, "data.json"),
		Partials:  []string{filepath.Join(projectDir, "src", "partials", "*.hbs")},
		Engine:    "handlebars",
		Server:    config.ServerConfig{Host: "localhost", Port: 0},
		Watch:     config.WatchConfig{Debounce: 20 * time.Millisecond},
		Log:       config.LogConfig{Level: "info", Format: "text"},
	}
}

// WaitForContent waits until path holds want, or fails the test.
func WaitForContent(t *testing.T, path, want string, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	var last string
	for time.Now().Before(deadline) {
		if data, err := os.ReadFile(path); err == nil {
			last = string(data)
			if last == want {
				return
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("file %s holds %q, want %q after %v", path, last, want, timeout)
}
