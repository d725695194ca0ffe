package renderer

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/a-h/templ"
)

// ComponentFunc builds a templ component for the given render data.
type ComponentFunc func(data any) (templ.Component, error)

// ComponentLoader resolves the component for an entry path. It is asked
// again after every Reload of that path.
type ComponentLoader func(path string) (ComponentFunc, error)

// Components renders entries that are templ component modules. Entry
// content is ignored: the component is looked up by entry path through
// the loader, or by entry base name among registered components.
type Components struct {
	mutex    sync.RWMutex
	byName   map[string]ComponentFunc
	loader   ComponentLoader
	resolved map[string]ComponentFunc
}

// NewComponents creates a component renderer. loader may be nil when all
// components are registered by name.
func NewComponents(loader ComponentLoader) *Components {
	return &Components{
		byName:   make(map[string]ComponentFunc),
		loader:   loader,
		resolved: make(map[string]ComponentFunc),
	}
}

// Register makes fn available to entries whose base name, without
// extension, is name.
func (c *Components) Register(name string, fn ComponentFunc) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.byName[name] = fn
}

// Reload drops the resolved component for path.
func (c *Components) Reload(path string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	delete(c.resolved, path)
}

// Render builds the entry's component with data and renders it.
func (c *Components) Render(ctx context.Context, tpl Template, data any) (string, error) {
	fn, err := c.resolve(tpl.Path)
	if err != nil {
		return "", err
	}

	component, err := fn(data)
	if err != nil {
		return "", fmt.Errorf("building component for %s: %w", tpl.Path, err)
	}

	var buf bytes.Buffer
	if err := component.Render(ctx, &buf); err != nil {
		return "", fmt.Errorf("rendering component for %s: %w", tpl.Path, err)
	}
	return buf.String(), nil
}

func (c *Components) resolve(path string) (ComponentFunc, error) {
	c.mutex.RLock()
	fn, ok := c.resolved[path]
	c.mutex.RUnlock()
	if ok {
		return fn, nil
	}

	if c.loader != nil {
		loaded, err := c.loader(path)
		if err != nil {
			return nil, fmt.Errorf("loading component %s: %w", path, err)
		}
		if loaded != nil {
			c.store(path, loaded)
			return loaded, nil
		}
	}

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	c.mutex.RLock()
	fn, ok = c.byName[name]
	c.mutex.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no component registered for %s", path)
	}
	c.store(path, fn)
	return fn, nil
}

func (c *Components) store(path string, fn ComponentFunc) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.resolved[path] = fn
}
