package plugin

import (
	"context"

	"github.com/conneroisu/stencil/internal/deps"
	"github.com/conneroisu/stencil/internal/output"
)

// Compilation is the host's handle for one compile signal.
type Compilation interface {
	// ModifiedFiles returns the files changed since the previous pass. The
	// boolean is false when the host has no such signal (first pass, or a
	// host without incremental support).
	ModifiedFiles() (deps.FileSet, bool)
	// OutputDir is the directory the host manages assets under.
	OutputDir() string
	// AddError reports a diagnostic for this pass.
	AddError(err error)
}

// SkipReporter is optionally implemented by a Compilation. A handler
// calls MarkSkipped when no tracked file changed and it did no work, so
// the host can keep the diagnostics of the last real pass.
type SkipReporter interface {
	MarkSkipped()
}

// Emission is the host's handle for one emit signal.
type Emission interface {
	OutputDir() string
	// AddFileDependencies adds paths to the host's watch list for the
	// next pass. Hosts may reset this list between passes.
	AddFileDependencies(paths ...string)
	// EmitAsset registers an in-memory asset under a name relative to
	// OutputDir.
	EmitAsset(name string, asset output.Asset)
}

// CompileHandler runs on the host's compile signal. done must be called
// exactly once, also when the handler fails.
type CompileHandler func(ctx context.Context, c Compilation, done func(error))

// EmitHandler runs on the host's emit signal; the same done rule applies.
type EmitHandler func(ctx context.Context, e Emission, done func(error))

// Host is the lifecycle surface a plugin registers itself against.
type Host interface {
	OnCompile(name string, handler CompileHandler)
	OnEmit(name string, handler EmitHandler)
}
