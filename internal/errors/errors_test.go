package errors

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStencilErrorMessage(t *testing.T) {
	err := NewRenderError("/src/about.hbs", errors.New("unexpected token"))

	msg := err.Error()
	assert.Contains(t, msg, "[ERR_RENDER_FAILED]")
	assert.Contains(t, msg, "/src/about.hbs")
	assert.Contains(t, msg, "render failed")
	assert.True(t, strings.HasSuffix(msg, ": unexpected token"))
}

func TestStencilErrorUnwrap(t *testing.T) {
	err := NewIOError(ErrCodeReadFailed, "/missing", fs.ErrNotExist)

	assert.ErrorIs(t, err, fs.ErrNotExist)
	assert.True(t, IsRecoverable(err))
}

func TestStencilErrorIs(t *testing.T) {
	a := NewRenderError("/a", nil)
	b := NewRenderError("/b", errors.New("other"))
	c := NewEntryResolutionError("/a", nil)

	assert.True(t, errors.Is(a, b))
	assert.False(t, errors.Is(a, c))

	wrapped := fmt.Errorf("pass failed: %w", a)
	assert.True(t, IsRenderError(wrapped))
	assert.False(t, IsConfigError(wrapped))
}

func TestTaxonomy(t *testing.T) {
	testCases := []struct {
		name        string
		err         *StencilError
		errType     ErrorType
		recoverable bool
	}{
		{"config", NewConfigError(ErrCodeConfigInvalid, "entry is required", nil), ErrorTypeConfig, false},
		{"data", NewDataLoadError("/data.json", nil), ErrorTypeData, true},
		{"entry", NewEntryResolutionError("/x.hbs", nil), ErrorTypeEntry, true},
		{"render", NewRenderError("/x.hbs", nil), ErrorTypeRender, true},
		{"io", NewIOError(ErrCodeWriteFailed, "/out/x.html", nil), ErrorTypeIO, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.errType, tc.err.Type)
			assert.Equal(t, tc.recoverable, IsRecoverable(tc.err))
		})
	}

	assert.True(t, IsEntryResolutionError(NewEntryResolutionError("/x", nil)))
	assert.False(t, IsRecoverable(errors.New("plain")))
}

func TestWithContext(t *testing.T) {
	err := NewConfigError(ErrCodeGlobSyntax, "bad pattern", nil).
		WithContext("pattern", "src/[").
		WithFile(".stencil.yml")

	assert.Equal(t, "src/[", err.Context["pattern"])
	assert.Equal(t, ".stencil.yml", err.FilePath)
}

func TestErrorCollector(t *testing.T) {
	ec := NewErrorCollector()
	assert.False(t, ec.HasErrors())
	assert.NoError(t, ec.Err())

	ec.AddError(nil)
	assert.Equal(t, 0, ec.Len())

	ec.AddError(NewRenderError("/a.hbs", errors.New("boom")))
	ec.AddError(NewIOError(ErrCodeWriteFailed, "/b.html", errors.New("disk full")))
	ec.AddError(errors.New("plain"))

	require.Equal(t, 3, ec.Len())
	assert.True(t, ec.HasErrors())
	assert.Len(t, ec.ErrorsForFile("/a.hbs"), 1)
	assert.Empty(t, ec.ErrorsForFile("/c.hbs"))

	joined := ec.Err()
	require.Error(t, joined)
	assert.Contains(t, joined.Error(), "boom")
	assert.Contains(t, joined.Error(), "disk full")

	copied := ec.Errors()
	copied[0] = nil
	assert.NotNil(t, ec.Errors()[0])

	ec.Clear()
	assert.False(t, ec.HasErrors())
}

func TestErrorCollectorConcurrentAdd(t *testing.T) {
	ec := NewErrorCollector()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ec.AddError(fmt.Errorf("error %d", i))
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 50, ec.Len())
}

func TestErrorOverlay(t *testing.T) {
	assert.Empty(t, ErrorOverlay(nil))

	overlay := ErrorOverlay([]error{
		NewRenderError("/src/<about>.hbs", errors.New("missing }}")),
	})
	assert.Contains(t, overlay, "stencil-error-overlay")
	assert.Contains(t, overlay, "/src/&lt;about&gt;.hbs")
	assert.NotContains(t, overlay, "<about>")
}
