// Package stencil is the public entry point for embedding the stencil
// build plugin in another program.
//
// A Plugin is attached to a Host. Each Host.Run delivers a compile signal
// (optionally carrying the set of modified files) followed by an emit
// signal; the plugin renders every entry when any tracked file changed and
// emits the resulting assets.
//
//	p, err := stencil.New(stencil.Options{
//		Entry:  "./src/pages/**/*.hbs",
//		Output: "./dist/[path]/[name].html",
//		Data:   "./src/data.json",
//	})
//	h, err := stencil.NewHost("./dist")
//	p.Apply(h)
//	result, err := h.Run(ctx, nil)
package stencil

import (
	"github.com/conneroisu/stencil/internal/deps"
	"github.com/conneroisu/stencil/internal/host"
	"github.com/conneroisu/stencil/internal/output"
	"github.com/conneroisu/stencil/internal/plugin"
	"github.com/conneroisu/stencil/internal/renderer"
)

type (
	// Options configures a Plugin.
	Options = plugin.Options
	// Plugin is the compilation orchestrator.
	Plugin = plugin.Plugin
	// Report describes the outcome of a compile signal.
	Report = plugin.Report

	// Host runs plugins outside a bundler.
	Host = host.Host
	// HostOption configures a Host.
	HostOption = host.Option
	// Result describes one Host.Run.
	Result = host.Result

	// Compilation is the compile signal a host delivers.
	Compilation = plugin.Compilation
	// Emission is the emit signal a host delivers.
	Emission = plugin.Emission
	// HostContract is what a bundler implements to drive a Plugin.
	HostContract = plugin.Host

	// FileSet is a set of absolute file paths.
	FileSet = deps.FileSet
	// Asset is an in-memory output.
	Asset = output.Asset

	// Renderer turns a template and its data into output text.
	Renderer = renderer.Renderer
	// RendererOptions configures the built-in engines.
	RendererOptions = renderer.Options
	// Template is an entry handed to a renderer.
	Template = renderer.Template
	// ComponentFunc builds a templ component for render data.
	ComponentFunc = renderer.ComponentFunc
)

// PluginName is the name the plugin registers its handlers under.
const PluginName = plugin.Name

// New validates opts and builds a Plugin.
func New(opts Options) (*Plugin, error) {
	return plugin.New(opts)
}

// NewHost creates a standalone host emitting under outputDir.
func NewHost(outputDir string, opts ...HostOption) (*Host, error) {
	return host.New(outputDir, opts...)
}

// WithFilesystem, WithLogger configure a Host.
var (
	WithFilesystem = host.WithFilesystem
	WithLogger     = host.WithLogger
)

// NewRenderer builds the engine registered under name ("handlebars" or
// "gotemplate").
func NewRenderer(engine string, opts RendererOptions) (Renderer, error) {
	return renderer.New(engine, opts)
}

// NewComponents builds a renderer for templ component entries.
func NewComponents(loader renderer.ComponentLoader) *renderer.Components {
	return renderer.NewComponents(loader)
}

// NewFileSet builds a FileSet from paths.
func NewFileSet(paths ...string) FileSet {
	return deps.NewFileSet(paths...)
}
