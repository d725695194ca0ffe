// Package renderer provides the template engines stencil renders entries
// with.
//
// The plugin core only sees the Renderer interface. Engines may also
// implement Reloader, which the core calls before every render so a
// component module edited since the last pass is loaded fresh, and
// PartialRegistrar, which receives the partials resolved for the pass.
package renderer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ohler55/ojg/oj"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Template is an entry handed to a renderer. Content has already been
// read (and recorded as a dependency) by the caller.
type Template struct {
	Path    string
	Content string
}

// Renderer turns a template and its data into output text.
type Renderer interface {
	Render(ctx context.Context, tpl Template, data any) (string, error)
}

// Reloader is implemented by renderers that cache loaded modules and must
// drop them before a path is rendered again.
type Reloader interface {
	Reload(path string)
}

// PartialRegistrar is implemented by renderers that support partials.
// The map is partial name to partial source.
type PartialRegistrar interface {
	SetPartials(partials map[string]string) error
}

// Engine names accepted by New.
const (
	EngineHandlebars = "handlebars"
	EngineGoTemplate = "gotemplate"
)

// Options configures the engines New builds.
type Options struct {
	// Helpers are extra template functions, merged over the defaults.
	Helpers map[string]any
	// CacheSize bounds the parsed-template cache; 0 selects the default.
	CacheSize int
}

const defaultCacheSize = 256

// New builds the renderer registered under engine.
func New(engine string, opts Options) (Renderer, error) {
	switch strings.ToLower(strings.TrimSpace(engine)) {
	case "", EngineHandlebars, "hbs":
		return NewHandlebars(opts)
	case EngineGoTemplate, "go":
		return NewGoTemplate(opts)
	default:
		return nil, fmt.Errorf("unknown template engine %q", engine)
	}
}

// DefaultHelpers returns the helpers every engine registers. Handlebars
// resolves helpers before context fields, so the names avoid common data
// keys such as title or json.
func DefaultHelpers() map[string]any {
	title := cases.Title(language.English)
	return map[string]any{
		"titleCase": func(s string) string { return title.String(s) },
		"toUpper":   strings.ToUpper,
		"toLower":   strings.ToLower,
		"toJSON":    func(v any) string { return oj.JSON(v, &oj.Options{Sort: true}) },
	}
}

func mergeHelpers(extra map[string]any) map[string]any {
	helpers := DefaultHelpers()
	for name, fn := range extra {
		helpers[name] = fn
	}
	return helpers
}

// digest keys the parsed-template caches by content.
func digest(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
