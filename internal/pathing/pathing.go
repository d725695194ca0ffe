// Package pathing computes where a rendered entry is written.
//
// Output patterns are plain paths with two substitution tokens:
//
//	[name]  the entry's file name without its extension
//	[path]  the entry's directory relative to its root folder
//
// Everything here is a pure function of its inputs.
package pathing

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

const (
	// NameToken is replaced by the entry's base name without extension.
	NameToken = "[name]"
	// PathToken is replaced by the entry's directory relative to its root.
	PathToken = "[path]"
)

// TargetFunc overrides the built-in target computation. A non-empty return
// value wins; an empty one falls back to the built-in substitution.
type TargetFunc func(sourcePath, outputPattern, rootFolder string) string

// UsesPathToken reports whether outputPattern contains [path].
func UsesPathToken(outputPattern string) bool {
	return strings.Contains(outputPattern, PathToken)
}

// GlobBase returns the non-wildcard prefix of a glob pattern as an
// absolute path, e.g. "/src/pages/**/*.hbs" -> "/src/pages".
func GlobBase(pattern string) (string, error) {
	base, _ := doublestar.SplitPattern(filepath.ToSlash(pattern))
	abs, err := filepath.Abs(filepath.FromSlash(base))
	if err != nil {
		return "", fmt.Errorf("resolving glob base of %q: %w", pattern, err)
	}
	return abs, nil
}

// RootFolder computes the root folder of sourcePath. For patterns using
// [path] it is the entry glob's base and sourcePath must live under it;
// otherwise it is simply the source's parent directory.
func RootFolder(sourcePath, entryPattern, outputPattern string) (string, error) {
	if !UsesPathToken(outputPattern) {
		return filepath.Dir(sourcePath), nil
	}

	base, err := GlobBase(entryPattern)
	if err != nil {
		return "", err
	}
	if _, err := relativeDir(sourcePath, base); err != nil {
		return "", err
	}
	return base, nil
}

// ComputeTargetPath resolves the output path of sourcePath. When override
// is set it is asked first and its non-empty answer is used verbatim.
func ComputeTargetPath(sourcePath, outputPattern, rootFolder string, override TargetFunc) (string, error) {
	if override != nil {
		if target := override(sourcePath, outputPattern, rootFolder); target != "" {
			return target, nil
		}
	}

	if outputPattern == "" {
		return strings.TrimSuffix(sourcePath, filepath.Ext(sourcePath)) + ".html", nil
	}

	tokens := []string{NameToken, BaseName(sourcePath)}
	if UsesPathToken(outputPattern) {
		rel, err := relativeDir(sourcePath, rootFolder)
		if err != nil {
			return "", err
		}
		tokens = append(tokens, PathToken, rel)
	}

	// One pass, so token text inside a substituted value stays literal.
	target := strings.NewReplacer(tokens...).Replace(outputPattern)
	return filepath.Clean(target), nil
}

// BaseName returns the file name of p without its extension.
func BaseName(p string) string {
	name := filepath.Base(p)
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// relativeDir returns the directory of sourcePath relative to root, with
// "." mapped to "". It fails when sourcePath is not inside root.
func relativeDir(sourcePath, root string) (string, error) {
	rel, err := filepath.Rel(root, filepath.Dir(sourcePath))
	if err != nil {
		return "", fmt.Errorf("%s is not relative to %s: %w", sourcePath, root, err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s is outside root folder %s", sourcePath, root)
	}
	if rel == "." {
		return "", nil
	}
	return rel, nil
}
