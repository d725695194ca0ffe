package entries

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"testing/fstest"

	serrors "github.com/conneroisu/stencil/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTree(t *testing.T, root string, files ...string) {
	t.Helper()
	for _, f := range files {
		full := filepath.Join(root, filepath.FromSlash(f))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(f), 0o644))
	}
}

func TestResolveRecursiveGlob(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root,
		"pages/index.hbs",
		"pages/blog/post.hbs",
		"pages/blog/draft.txt",
		"partials/nav.hbs",
	)

	matches, err := NewResolver().Collect(filepath.Join(root, "pages", "**", "*.hbs"))
	require.NoError(t, err)
	sort.Strings(matches)

	assert.Equal(t, []string{
		filepath.Join(root, "pages", "blog", "post.hbs"),
		filepath.Join(root, "pages", "index.hbs"),
	}, matches)
}

func TestResolveSkipsDirectories(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, "a.hbs/inner.txt", "b.hbs")

	matches, err := NewResolver().Collect(filepath.Join(root, "*.hbs"))
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(root, "b.hbs")}, matches)
}

func TestResolveZeroMatchesIsNotAnError(t *testing.T) {
	root := t.TempDir()

	matches, err := NewResolver().Collect(filepath.Join(root, "*.hbs"))
	require.NoError(t, err)
	assert.Empty(t, matches)

	matches, err = NewResolver().Collect(filepath.Join(root, "missing", "**", "*.hbs"))
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestResolveMalformedPattern(t *testing.T) {
	root := t.TempDir()

	_, err := NewResolver().Collect(filepath.Join(root, "[a-"))
	require.Error(t, err)
	assert.True(t, serrors.IsConfigError(err))
}

func TestResolveIsLazy(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, "a.hbs", "b.hbs", "c.hbs")

	count := 0
	for _, err := range NewResolver().Resolve(filepath.Join(root, "*.hbs")) {
		require.NoError(t, err)
		count++
		if count == 1 {
			break
		}
	}
	assert.Equal(t, 1, count)
}

func TestResolveRewalksEveryCall(t *testing.T) {
	root := t.TempDir()
	resolver := NewResolver()
	pattern := filepath.Join(root, "*.hbs")

	first, err := resolver.Collect(pattern)
	require.NoError(t, err)
	assert.Empty(t, first)

	writeTree(t, root, "new.hbs")
	second, err := resolver.Collect(pattern)
	require.NoError(t, err)
	assert.Len(t, second, 1)
}

func TestResolveWithInMemoryFS(t *testing.T) {
	memfs := fstest.MapFS{
		"one.hbs":       {Data: []byte("1")},
		"sub/two.hbs":   {Data: []byte("2")},
		"sub/three.css": {Data: []byte("3")},
	}
	resolver := &Resolver{dirFS: func(string) fs.FS { return memfs }}

	matches, err := resolver.Collect("/virtual/**/*.hbs")
	require.NoError(t, err)
	sort.Strings(matches)

	base, err := filepath.Abs(filepath.FromSlash("/virtual"))
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(base, "one.hbs"),
		filepath.Join(base, "sub", "two.hbs"),
	}, matches)
}

func TestCollectAllDeduplicates(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, "components/button.go", "components/card.go")

	matches, err := NewResolver().CollectAll([]string{
		filepath.Join(root, "components", "*.go"),
		filepath.Join(root, "components", "button.go"),
	})
	require.NoError(t, err)
	assert.Len(t, matches, 2)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate("src/**/*.hbs"))
	assert.NoError(t, Validate("src/{a,b}/*.hbs"))
	assert.Error(t, Validate(""))
	assert.Error(t, Validate("src/[a-"))
	assert.Error(t, Validate("src/{a,b"))
}
