package renderer

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"sort"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// GoTemplate renders entries with html/template. Partials are added as
// named associated templates, so an entry includes one with
// {{template "nav" .}}.
type GoTemplate struct {
	mutex          sync.RWMutex
	funcs          template.FuncMap
	partials       map[string]string
	partialsDigest string
	cache          *lru.Cache[string, *template.Template]
}

// NewGoTemplate creates an html/template renderer.
func NewGoTemplate(opts Options) (*GoTemplate, error) {
	size := opts.CacheSize
	if size <= 0 {
		size = defaultCacheSize
	}
	cache, err := lru.New[string, *template.Template](size)
	if err != nil {
		return nil, fmt.Errorf("creating template cache: %w", err)
	}

	return &GoTemplate{
		funcs:    template.FuncMap(mergeHelpers(opts.Helpers)),
		partials: map[string]string{},
		cache:    cache,
	}, nil
}

// SetPartials replaces the partial set used by subsequent renders.
func (g *GoTemplate) SetPartials(partials map[string]string) error {
	next := digestPartials(partials)

	g.mutex.Lock()
	defer g.mutex.Unlock()
	if next == g.partialsDigest {
		return nil
	}
	copied := make(map[string]string, len(partials))
	for name, src := range partials {
		copied[name] = src
	}
	g.partials = copied
	g.partialsDigest = next
	g.cache.Purge()
	return nil
}

// Render parses (or reuses) the template and executes it with data.
func (g *GoTemplate) Render(ctx context.Context, tpl Template, data any) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	parsed, err := g.template(tpl)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := parsed.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("executing %s: %w", tpl.Path, err)
	}
	return buf.String(), nil
}

func (g *GoTemplate) template(tpl Template) (*template.Template, error) {
	key := digest(tpl.Path, tpl.Content)
	if cached, ok := g.cache.Get(key); ok {
		return cached, nil
	}

	root, err := template.New(tpl.Path).Funcs(g.funcs).Parse(tpl.Content)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", tpl.Path, err)
	}

	g.mutex.RLock()
	names := make([]string, 0, len(g.partials))
	for name := range g.partials {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if _, err := root.New(name).Parse(g.partials[name]); err != nil {
			g.mutex.RUnlock()
			return nil, fmt.Errorf("parsing partial %s: %w", name, err)
		}
	}
	g.mutex.RUnlock()

	g.cache.Add(key, root)
	return root, nil
}
