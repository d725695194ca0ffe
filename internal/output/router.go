// Package output routes rendered entries to their destination.
//
// A result whose target lies inside the host's output directory becomes an
// in-memory asset the host emits itself; anything else is written straight
// to disk. Every result takes exactly one of the two routes.
package output

import (
	"os"
	"path"
	"path/filepath"
	"strings"

	serrors "github.com/conneroisu/stencil/internal/errors"
	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
)

// Asset is a named in-memory build artifact. Content and size are
// produced on demand so a host can query the size without copying.
type Asset interface {
	Source() []byte
	Size() int
}

// StringAsset is an Asset backed by rendered text.
type StringAsset struct {
	content string
}

// NewStringAsset wraps content as an Asset.
func NewStringAsset(content string) *StringAsset {
	return &StringAsset{content: content}
}

// Source returns the asset bytes.
func (a *StringAsset) Source() []byte {
	return []byte(a.content)
}

// Size returns the byte length of the asset.
func (a *StringAsset) Size() int {
	return len(a.content)
}

// String returns the asset text.
func (a *StringAsset) String() string {
	return a.content
}

// Destination is where a result went.
type Destination int

const (
	// DestinationMemory means the result is an in-memory asset.
	DestinationMemory Destination = iota
	// DestinationDisk means the result was written to the filesystem.
	DestinationDisk
)

// String returns the string representation of the Destination
func (d Destination) String() string {
	switch d {
	case DestinationMemory:
		return "memory"
	case DestinationDisk:
		return "disk"
	default:
		return "unknown"
	}
}

// Result is a routed render result.
type Result struct {
	TargetPath  string
	Destination Destination
	// AssetName is the slash-separated name relative to the output
	// directory; set only for DestinationMemory.
	AssetName string
	// Asset is set only for DestinationMemory.
	Asset Asset
}

// Router routes rendered content. Direct writes go through a billy
// filesystem rooted at "/" so tests can substitute memfs.
type Router struct {
	fs billy.Filesystem
}

// NewRouter returns a Router writing to fs; nil selects the OS filesystem.
func NewRouter(fs billy.Filesystem) *Router {
	if fs == nil {
		fs = osfs.New("/")
	}
	return &Router{fs: fs}
}

// Route sends content to exactly one destination. targetPath must be
// absolute; outputDir may be empty, in which case every result is written
// to disk.
func (r *Router) Route(targetPath, content, outputDir string) (Result, error) {
	target := filepath.Clean(targetPath)

	if name, ok := AssetName(target, outputDir); ok {
		return Result{
			TargetPath:  target,
			Destination: DestinationMemory,
			AssetName:   name,
			Asset:       NewStringAsset(content),
		}, nil
	}

	if err := r.write(target, content); err != nil {
		return Result{}, serrors.NewIOError(serrors.ErrCodeWriteFailed, target, err)
	}
	return Result{TargetPath: target, Destination: DestinationDisk}, nil
}

func (r *Router) write(target, content string) error {
	name := filepath.ToSlash(target)
	if err := r.fs.MkdirAll(path.Dir(name), 0o755); err != nil {
		return err
	}
	return util.WriteFile(r.fs, name, []byte(content), 0o644)
}

// AssetName reports whether target is strictly inside outputDir and, if
// so, returns its slash-separated path relative to outputDir.
func AssetName(target, outputDir string) (string, bool) {
	if outputDir == "" {
		return "", false
	}
	dir := filepath.Clean(outputDir)
	target = filepath.Clean(target)

	prefix := dir
	if !strings.HasSuffix(prefix, string(os.PathSeparator)) {
		prefix += string(os.PathSeparator)
	}
	if !strings.HasPrefix(target, prefix) {
		return "", false
	}

	rel := strings.TrimLeft(strings.TrimPrefix(target, prefix), `/\`)
	if rel == "" {
		return "", false
	}
	return filepath.ToSlash(rel), true
}
