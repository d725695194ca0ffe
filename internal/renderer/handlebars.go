package renderer

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/aymerick/raymond"
	lru "github.com/hashicorp/golang-lru/v2"
)

// Handlebars renders entries with the Handlebars language.
//
// Parsed templates are cached by content digest, so an entry whose source
// did not change since the previous pass is not parsed again. Helpers and
// partials are registered per template rather than globally; a change to
// the partial set purges the cache because cached templates carry the
// partials they were parsed with.
type Handlebars struct {
	mutex          sync.RWMutex
	helpers        map[string]any
	partials       map[string]string
	partialsDigest string
	cache          *lru.Cache[string, *raymond.Template]
}

// NewHandlebars creates a Handlebars renderer.
func NewHandlebars(opts Options) (*Handlebars, error) {
	helpers := mergeHelpers(opts.Helpers)
	for name, fn := range helpers {
		if reflect.ValueOf(fn).Kind() != reflect.Func {
			return nil, fmt.Errorf("helper %q is not a function", name)
		}
	}

	size := opts.CacheSize
	if size <= 0 {
		size = defaultCacheSize
	}
	cache, err := lru.New[string, *raymond.Template](size)
	if err != nil {
		return nil, fmt.Errorf("creating template cache: %w", err)
	}

	return &Handlebars{
		helpers:  helpers,
		partials: map[string]string{},
		cache:    cache,
	}, nil
}

// SetPartials replaces the partial set used by subsequent renders.
func (h *Handlebars) SetPartials(partials map[string]string) error {
	next := digestPartials(partials)

	h.mutex.Lock()
	defer h.mutex.Unlock()
	if next == h.partialsDigest {
		return nil
	}
	copied := make(map[string]string, len(partials))
	for name, src := range partials {
		copied[name] = src
	}
	h.partials = copied
	h.partialsDigest = next
	h.cache.Purge()
	return nil
}

// Render parses (or reuses) the template and executes it with data.
func (h *Handlebars) Render(ctx context.Context, tpl Template, data any) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	parsed, err := h.template(tpl)
	if err != nil {
		return "", err
	}
	out, err := parsed.Exec(data)
	if err != nil {
		return "", fmt.Errorf("executing %s: %w", tpl.Path, err)
	}
	return out, nil
}

func (h *Handlebars) template(tpl Template) (*raymond.Template, error) {
	key := digest(tpl.Path, tpl.Content)
	if cached, ok := h.cache.Get(key); ok {
		return cached, nil
	}

	parsed, err := raymond.Parse(tpl.Content)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", tpl.Path, err)
	}

	h.mutex.RLock()
	parsed.RegisterHelpers(h.helpers)
	if len(h.partials) > 0 {
		parsed.RegisterPartials(h.partials)
	}
	h.mutex.RUnlock()

	h.cache.Add(key, parsed)
	return parsed, nil
}

// cached reports how many parsed templates are cached.
func (h *Handlebars) cached() int {
	return h.cache.Len()
}

func digestPartials(partials map[string]string) string {
	names := make([]string, 0, len(partials))
	for name := range partials {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names)*2)
	for _, name := range names {
		parts = append(parts, name, partials[name])
	}
	return digest(parts...)
}
