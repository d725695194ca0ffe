// Package plugin is stencil's compilation orchestrator.
//
// A Plugin registers two handlers with a host. On every compile signal it
// asks the change detector whether any tracked file was modified; if so it
// reloads render data, resolves partials, components and entries, renders
// each entry and routes the result. On every emit signal it forwards the
// dependency set and the in-memory assets produced since the last emit.
//
// Passes are sequential. Each pass owns its accumulators; only when a pass
// completes are its assets merged into the set awaiting emit.
package plugin

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/conneroisu/stencil/internal/data"
	"github.com/conneroisu/stencil/internal/deps"
	"github.com/conneroisu/stencil/internal/entries"
	serrors "github.com/conneroisu/stencil/internal/errors"
	"github.com/conneroisu/stencil/internal/logging"
	"github.com/conneroisu/stencil/internal/output"
	"github.com/conneroisu/stencil/internal/pathing"
	"github.com/conneroisu/stencil/internal/renderer"
	billy "github.com/go-git/go-billy/v5"
)

// Name is the name the plugin registers its handlers under.
const Name = "StencilPlugin"

// Options configures a Plugin. Hooks returning (value, true) replace the
// pipeline's current value; (_, false) leaves it unchanged, so an empty
// string is a valid replacement.
type Options struct {
	// Entry is the glob of templates to render. Required.
	Entry string
	// Output is the target pattern with [name] and [path] tokens.
	// Required.
	Output string
	// Data is a data file path (string) or a literal value.
	Data any
	// DataSelect is an optional JSONPath applied to the data.
	DataSelect string
	// Components are globs of auxiliary files that are watched but not
	// rendered.
	Components []string
	// Partials are globs of partial templates handed to the renderer.
	Partials []string

	GetTargetFilepath   pathing.TargetFunc
	OnBeforeSetup       func()
	OnBeforeAddPartials func(partials map[string]string) (map[string]string, bool)
	OnBeforeCompile     func(content, sourcePath string) (string, bool)
	OnBeforeRender      func(data any, sourcePath string) (any, bool)
	OnBeforeSave        func(content, targetPath string) (string, bool)
	OnDone              func(targetPath string)

	// Helpers are named template functions registered with the default
	// Handlebars renderer. They are ignored when Renderer is set.
	Helpers map[string]any
	// Renderer defaults to Handlebars.
	Renderer renderer.Renderer
	Logger   logging.Logger
	// Filesystem receives direct writes for targets outside the host
	// output directory; nil selects the OS filesystem.
	Filesystem billy.Filesystem
}

// Plugin is the compilation orchestrator.
type Plugin struct {
	opts     Options
	tracker  *deps.Tracker
	reader   *deps.Reader
	resolver *entries.Resolver
	data     *data.Source
	router   *output.Router
	renderer renderer.Renderer
	logger   logging.Logger

	mutex   sync.Mutex
	pending map[string]output.Asset
	last    Report
}

// New validates opts and builds a Plugin. Missing required options and
// malformed globs are configuration errors.
func New(opts Options) (*Plugin, error) {
	if opts.Entry == "" {
		return nil, serrors.NewConfigError(serrors.ErrCodeConfigInvalid, "entry is required", nil)
	}
	if opts.Output == "" {
		return nil, serrors.NewConfigError(serrors.ErrCodeConfigInvalid, "output is required", nil)
	}
	patterns := append([]string{opts.Entry}, opts.Partials...)
	patterns = append(patterns, opts.Components...)
	for _, pattern := range patterns {
		if err := entries.Validate(pattern); err != nil {
			return nil, err
		}
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	source, err := data.NewSource(data.Options{Data: opts.Data, Select: opts.DataSelect, Logger: logger})
	if err != nil {
		return nil, err
	}

	r := opts.Renderer
	if r == nil {
		r, err = renderer.NewHandlebars(renderer.Options{Helpers: opts.Helpers})
		if err != nil {
			return nil, fmt.Errorf("creating default renderer: %w", err)
		}
	}

	if opts.OnBeforeSetup != nil {
		opts.OnBeforeSetup()
	}

	tracker := deps.NewTracker()
	return &Plugin{
		opts:     opts,
		tracker:  tracker,
		reader:   deps.NewReader(tracker),
		resolver: entries.NewResolver(),
		data:     source,
		router:   output.NewRouter(opts.Filesystem),
		renderer: r,
		logger:   logger.WithComponent("plugin"),
		pending:  make(map[string]output.Asset),
	}, nil
}

// Apply registers the plugin's handlers with host.
func (p *Plugin) Apply(host Host) {
	host.OnCompile(Name, p.Compile)
	host.OnEmit(Name, p.Emit)
}

// Tracker exposes the dependency set.
func (p *Plugin) Tracker() *deps.Tracker {
	return p.tracker
}

// LastReport returns the outcome of the most recent compile signal.
func (p *Plugin) LastReport() Report {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.last
}

// Compile handles the host's compile signal. Per-entry failures are
// reported through c.AddError; only configuration failures reach done.
func (p *Plugin) Compile(ctx context.Context, c Compilation, done func(error)) {
	var err error
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("stencil: compile panicked: %v", r)
		}
		done(err)
	}()
	err = p.compile(ctx, c)
}

// Emit handles the host's emit signal. It always re-declares every
// tracked dependency, whether or not the preceding compile did work.
func (p *Plugin) Emit(ctx context.Context, e Emission, done func(error)) {
	e.AddFileDependencies(p.tracker.All()...)

	p.mutex.Lock()
	pending := p.pending
	p.pending = make(map[string]output.Asset)
	p.mutex.Unlock()

	names := make([]string, 0, len(pending))
	for name := range pending {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		e.EmitAsset(name, pending[name])
	}

	p.logger.Debug(ctx, "Emitted", "assets", len(names), "dependencies", p.tracker.Len())
	done(nil)
}

func (p *Plugin) compile(ctx context.Context, c Compilation) error {
	modified, ok := c.ModifiedFiles()
	if !ok {
		modified = nil
	}
	if !deps.NeedsRecompile(modified, p.tracker) {
		p.logger.Debug(ctx, "No tracked file changed, skipping pass", "modified", len(modified))
		p.setReport(Report{Skipped: true})
		if sr, ok := c.(SkipReporter); ok {
			sr.MarkSkipped()
		}
		return nil
	}

	op := logging.StartOperation(p.logger, "pass")
	ps := newPass(c.OutputDir())
	if err := p.run(ctx, ps); err != nil {
		p.setReport(ps.report(op.Elapsed()))
		op.EndWithError(ctx, err)
		return err
	}

	p.mutex.Lock()
	for name, asset := range ps.assets {
		p.pending[name] = asset
	}
	p.mutex.Unlock()

	for _, err := range ps.errors.Errors() {
		c.AddError(err)
	}

	report := ps.report(op.Elapsed())
	p.setReport(report)
	if report.Failed > 0 {
		op.EndWithError(ctx, ps.errors.Err(), "rendered", report.Rendered, "failed", report.Failed)
	} else {
		op.End(ctx, "rendered", report.Rendered)
	}
	return nil
}

func (p *Plugin) setReport(r Report) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.last = r
}
