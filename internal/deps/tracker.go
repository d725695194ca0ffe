// Package deps tracks the files a stencil build depends on and decides,
// from a host's modified-files signal, whether a new pass has work to do.
//
// Every file read by the pipeline (entry templates, partials, component
// modules, data files) must be recorded here; a read that bypasses the
// tracker is a file whose edits never trigger a rebuild.
package deps

import (
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Normalize turns p into the canonical key used for membership tests:
// absolute, cleaned, slash separated. Both `\` and `/` are accepted as
// separators regardless of platform.
func Normalize(p string) string {
	if p == "" {
		return ""
	}
	slashed := strings.ReplaceAll(p, `\`, "/")
	if !isAbs(slashed) {
		if abs, err := filepath.Abs(filepath.FromSlash(slashed)); err == nil {
			slashed = filepath.ToSlash(abs)
		}
	}
	return path.Clean(slashed)
}

// isAbs accepts both POSIX roots and Windows drive letters so a key does
// not depend on the platform it was computed on.
func isAbs(p string) bool {
	if strings.HasPrefix(p, "/") {
		return true
	}
	return len(p) >= 3 && p[1] == ':' && p[2] == '/'
}

// Tracker is the deduplicated, monotonically growing set of dependency
// paths. There is no removal: a path whose file was deleted stays tracked
// and simply never matches a change again.
type Tracker struct {
	mutex sync.RWMutex
	paths map[string]struct{}
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{paths: make(map[string]struct{})}
}

// Record normalizes each path and inserts it if absent.
func (t *Tracker) Record(paths ...string) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	for _, p := range paths {
		key := Normalize(p)
		if key == "" {
			continue
		}
		t.paths[key] = struct{}{}
	}
}

// Contains reports whether p, once normalized, is tracked.
func (t *Tracker) Contains(p string) bool {
	t.mutex.RLock()
	defer t.mutex.RUnlock()
	_, ok := t.paths[Normalize(p)]
	return ok
}

// Len returns the number of tracked paths.
func (t *Tracker) Len() int {
	t.mutex.RLock()
	defer t.mutex.RUnlock()
	return len(t.paths)
}

// All returns every tracked path as an absolute OS path, sorted.
func (t *Tracker) All() []string {
	t.mutex.RLock()
	defer t.mutex.RUnlock()
	out := make([]string, 0, len(t.paths))
	for p := range t.paths {
		out = append(out, filepath.FromSlash(p))
	}
	sort.Strings(out)
	return out
}

// each calls fn for every normalized key until fn returns false.
func (t *Tracker) each(fn func(key string) bool) {
	t.mutex.RLock()
	defer t.mutex.RUnlock()
	for p := range t.paths {
		if !fn(p) {
			return
		}
	}
}

// Reader reads files and records each path with a Tracker first, so a
// file that fails to read is still watched and a fix triggers a rebuild.
type Reader struct {
	tracker  *Tracker
	readFile func(name string) ([]byte, error)
}

// NewReader returns a Reader backed by os.ReadFile.
func NewReader(tracker *Tracker) *Reader {
	return &Reader{tracker: tracker, readFile: os.ReadFile}
}

// ReadFile records name and returns its contents.
func (r *Reader) ReadFile(name string) ([]byte, error) {
	r.tracker.Record(name)
	return r.readFile(name)
}
