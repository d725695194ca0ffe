// Package entries expands glob patterns into the concrete files a pass
// works on: entry templates, partials and watched component modules.
package entries

import (
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
	serrors "github.com/conneroisu/stencil/internal/errors"
)

// errStop ends a walk early when the consumer stops iterating.
var errStop = errors.New("stop")

// Resolver expands doublestar glob patterns (`*`, `**`, `?`, `[...]`,
// `{a,b}`) against the real filesystem. It keeps no state, so every call
// re-walks the tree.
type Resolver struct {
	// dirFS opens the walk root; tests swap it for an in-memory fs.
	dirFS func(dir string) fs.FS
}

// NewResolver returns a Resolver over the OS filesystem.
func NewResolver() *Resolver {
	return &Resolver{dirFS: os.DirFS}
}

// Validate reports a malformed pattern as a configuration error.
func Validate(pattern string) error {
	if pattern == "" {
		return serrors.NewConfigError(serrors.ErrCodeConfigInvalid, "glob pattern is empty", nil)
	}
	if !doublestar.ValidatePattern(filepath.ToSlash(pattern)) {
		return serrors.NewConfigError(serrors.ErrCodeGlobSyntax, "malformed glob pattern", doublestar.ErrBadPattern).
			WithContext("pattern", pattern)
	}
	return nil
}

// Resolve lazily yields the absolute paths of regular files matching
// pattern, in walk order. A malformed pattern or a failed walk is yielded
// once as an error and ends the sequence. Zero matches, including a base
// directory that does not exist yet, yield nothing.
func (r *Resolver) Resolve(pattern string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		if err := Validate(pattern); err != nil {
			yield("", err)
			return
		}

		base, rest := doublestar.SplitPattern(filepath.ToSlash(pattern))
		absBase, err := filepath.Abs(filepath.FromSlash(base))
		if err != nil {
			yield("", serrors.NewConfigError(serrors.ErrCodeGlobWalk, "cannot resolve glob base", err).
				WithContext("pattern", pattern))
			return
		}

		fsys := r.dirFS(absBase)
		if _, err := fs.Stat(fsys, "."); errors.Is(err, fs.ErrNotExist) {
			return
		}

		err = doublestar.GlobWalk(fsys, rest, func(p string, d fs.DirEntry) error {
			if !yield(filepath.Join(absBase, filepath.FromSlash(p)), nil) {
				return errStop
			}
			return nil
		}, doublestar.WithFilesOnly(), doublestar.WithFailOnIOErrors())

		switch {
		case err == nil, errors.Is(err, errStop):
		case errors.Is(err, doublestar.ErrBadPattern):
			yield("", serrors.NewConfigError(serrors.ErrCodeGlobSyntax, "malformed glob pattern", err).
				WithContext("pattern", pattern))
		default:
			yield("", serrors.NewConfigError(serrors.ErrCodeGlobWalk, "walking glob pattern failed", err).
				WithContext("pattern", pattern))
		}
	}
}

// Collect drains Resolve into a slice.
func (r *Resolver) Collect(pattern string) ([]string, error) {
	var out []string
	for p, err := range r.Resolve(pattern) {
		if err != nil {
			return out, err
		}
		out = append(out, p)
	}
	return out, nil
}

// CollectAll resolves several patterns, de-duplicating paths that match
// more than one of them while keeping first-seen order.
func (r *Resolver) CollectAll(patterns []string) ([]string, error) {
	seen := make(map[string]struct{})
	var out []string
	for _, pattern := range patterns {
		matches, err := r.Collect(pattern)
		if err != nil {
			return out, fmt.Errorf("resolving %q: %w", pattern, err)
		}
		for _, m := range matches {
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			out = append(out, m)
		}
	}
	return out, nil
}
