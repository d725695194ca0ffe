package host

import (
	"sort"
	"sync"

	"github.com/conneroisu/stencil/internal/deps"
	"github.com/conneroisu/stencil/internal/output"
)

// compilation is the plugin.Compilation handed to compile handlers.
type compilation struct {
	modified  deps.FileSet
	outputDir string

	mutex sync.Mutex
	errs  []error
	skips int
}

func (c *compilation) ModifiedFiles() (deps.FileSet, bool) {
	return c.modified, c.modified != nil
}

func (c *compilation) OutputDir() string { return c.outputDir }

func (c *compilation) AddError(err error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.errs = append(c.errs, err)
}

func (c *compilation) MarkSkipped() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.skips++
}

// skipped reports whether all compile handlers skipped and none
// reported an error.
func (c *compilation) skipped(handlers int) bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return handlers > 0 && c.skips >= handlers && len(c.errs) == 0
}

func (c *compilation) errors() []error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return append([]error(nil), c.errs...)
}

// emission is the plugin.Emission handed to emit handlers. Its dependency
// list starts empty on every run.
type emission struct {
	outputDir string

	mutex  sync.Mutex
	deps   map[string]struct{}
	assets map[string]output.Asset
}

func (e *emission) OutputDir() string { return e.outputDir }

func (e *emission) AddFileDependencies(paths ...string) {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	if e.deps == nil {
		e.deps = make(map[string]struct{}, len(paths))
	}
	for _, p := range paths {
		e.deps[p] = struct{}{}
	}
}

func (e *emission) EmitAsset(name string, asset output.Asset) {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	e.assets[name] = asset
}

func (e *emission) dependencies() []string {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	out := make([]string, 0, len(e.deps))
	for p := range e.deps {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
