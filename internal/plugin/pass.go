package plugin

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	serrors "github.com/conneroisu/stencil/internal/errors"
	"github.com/conneroisu/stencil/internal/output"
	"github.com/conneroisu/stencil/internal/pathing"
	"github.com/conneroisu/stencil/internal/renderer"
)

// Entry is one resolved template to render.
type Entry struct {
	SourcePath string
	RootFolder string
}

// Report summarises one compile signal.
type Report struct {
	// Skipped is true when no tracked file changed.
	Skipped  bool
	Entries  int
	Rendered int
	Failed   int
	// Emitted counts in-memory assets, Written direct writes.
	Emitted  int
	Written  int
	Errors   []error
	Warnings []error
	Duration time.Duration
}

// pass holds the accumulators of a single compile signal.
type pass struct {
	outputDir string
	entries   []Entry
	errors    *serrors.ErrorCollector
	warnings  []error
	assets    map[string]output.Asset
	rendered  int
	written   int
}

func newPass(outputDir string) *pass {
	return &pass{
		outputDir: outputDir,
		errors:    serrors.NewErrorCollector(),
		assets:    make(map[string]output.Asset),
	}
}

func (ps *pass) report(d time.Duration) Report {
	errs := ps.errors.Errors()
	return Report{
		Entries:  len(ps.entries),
		Rendered: ps.rendered,
		Failed:   len(errs),
		Emitted:  len(ps.assets),
		Written:  ps.written,
		Errors:   errs,
		Warnings: ps.warnings,
		Duration: d,
	}
}

// run performs a full pass: data, components, partials, entries, render.
// It returns only errors that abort the pass.
func (p *Plugin) run(ctx context.Context, ps *pass) error {
	value, err := p.data.Load(ctx, p.reader)
	if err != nil {
		if !serrors.IsRecoverable(err) {
			return err
		}
		ps.warnings = append(ps.warnings, err)
	}

	components, err := p.resolver.CollectAll(p.opts.Components)
	if err != nil {
		return err
	}
	p.tracker.Record(components...)

	if err := p.loadPartials(ctx, ps); err != nil {
		return err
	}

	if err := p.resolveEntries(ctx, ps); err != nil {
		return err
	}
	if len(ps.entries) == 0 {
		p.logger.Warn(ctx, nil, "Entry pattern matched no files", "entry", p.opts.Entry)
		return nil
	}

	for _, entry := range ps.entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := p.compileEntry(ctx, ps, entry, value); err != nil {
			ps.errors.AddError(err)
			p.logger.Error(ctx, err, "Entry failed", "source", entry.SourcePath)
		}
	}
	return nil
}

func (p *Plugin) resolveEntries(ctx context.Context, ps *pass) error {
	for source, err := range p.resolver.Resolve(p.opts.Entry) {
		if err != nil {
			return err
		}
		p.tracker.Record(source)

		root, err := pathing.RootFolder(source, p.opts.Entry, p.opts.Output)
		if err != nil {
			ps.errors.AddError(serrors.NewEntryResolutionError(source, err))
			continue
		}
		ps.entries = append(ps.entries, Entry{SourcePath: source, RootFolder: root})
	}
	p.logger.Debug(ctx, "Resolved entries", "count", len(ps.entries))
	return nil
}

func (p *Plugin) loadPartials(ctx context.Context, ps *pass) error {
	if len(p.opts.Partials) == 0 {
		return nil
	}

	paths := make(map[string]string)
	for _, pattern := range p.opts.Partials {
		base, err := pathing.GlobBase(pattern)
		if err != nil {
			return serrors.NewConfigError(serrors.ErrCodeGlobSyntax, "invalid partial pattern "+pattern, err)
		}
		for match, err := range p.resolver.Resolve(pattern) {
			if err != nil {
				return err
			}
			paths[PartialName(base, match)] = match
		}
	}

	if p.opts.OnBeforeAddPartials != nil {
		if replaced, ok := p.opts.OnBeforeAddPartials(paths); ok {
			paths = replaced
		}
	}

	sources := make(map[string]string, len(paths))
	for name, path := range paths {
		content, err := p.reader.ReadFile(path)
		if err != nil {
			ps.errors.AddError(serrors.NewIOError(serrors.ErrCodeReadFailed, path, err))
			continue
		}
		sources[name] = string(content)
	}

	registrar, ok := p.renderer.(renderer.PartialRegistrar)
	if !ok {
		p.logger.Debug(ctx, "Renderer takes no partials, tracking only", "partials", len(sources))
		return nil
	}
	return registrar.SetPartials(sources)
}

// PartialName is the name a partial is registered under: its path
// relative to the glob base, without extension, slash separated.
func PartialName(base, path string) string {
	rel, err := filepath.Rel(base, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		rel = filepath.Base(path)
	}
	rel = strings.TrimSuffix(rel, filepath.Ext(rel))
	return filepath.ToSlash(rel)
}

func (p *Plugin) compileEntry(ctx context.Context, ps *pass, entry Entry, value any) error {
	source := entry.SourcePath

	target, err := pathing.ComputeTargetPath(source, p.opts.Output, entry.RootFolder, p.opts.GetTargetFilepath)
	if err != nil {
		return serrors.NewEntryResolutionError(source, err)
	}
	if abs, err := filepath.Abs(target); err == nil {
		target = abs
	}

	raw, err := p.reader.ReadFile(source)
	if err != nil {
		return serrors.NewIOError(serrors.ErrCodeReadFailed, source, err)
	}
	content := string(raw)
	if p.opts.OnBeforeCompile != nil {
		if replaced, ok := p.opts.OnBeforeCompile(content, source); ok {
			content = replaced
		}
	}

	if reloader, ok := p.renderer.(renderer.Reloader); ok {
		reloader.Reload(source)
	}

	entryData := value
	if p.opts.OnBeforeRender != nil {
		if replaced, ok := p.opts.OnBeforeRender(value, source); ok {
			entryData = replaced
		}
	}

	rendered, err := p.renderer.Render(ctx, renderer.Template{Path: source, Content: content}, entryData)
	if err != nil {
		return serrors.NewRenderError(source, err)
	}

	if p.opts.OnBeforeSave != nil {
		if replaced, ok := p.opts.OnBeforeSave(rendered, target); ok {
			rendered = replaced
		}
	}

	result, err := p.router.Route(target, rendered, ps.outputDir)
	if err != nil {
		return err
	}
	switch result.Destination {
	case output.DestinationMemory:
		ps.assets[result.AssetName] = result.Asset
	case output.DestinationDisk:
		ps.written++
	}
	ps.rendered++

	p.logger.Debug(ctx, "Rendered entry",
		"source", source, "target", target, "destination", result.Destination.String())
	if p.opts.OnDone != nil {
		p.opts.OnDone(target)
	}
	return nil
}
