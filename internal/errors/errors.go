// Package errors defines stencil's error taxonomy and the collector that
// accumulates per-entry failures during a compilation pass.
package errors

import (
	"errors"
	"fmt"
	"html"
	"strings"
	"sync"
)

// ErrorCollector accumulates the errors of one compilation pass.
type ErrorCollector struct {
	errors []error
	mutex  sync.RWMutex
}

// NewErrorCollector creates a new error collector
func NewErrorCollector() *ErrorCollector {
	return &ErrorCollector{
		errors: make([]error, 0),
	}
}

// AddError adds an error to the collector; nil is ignored.
func (ec *ErrorCollector) AddError(err error) {
	if err == nil {
		return
	}
	ec.mutex.Lock()
	defer ec.mutex.Unlock()
	ec.errors = append(ec.errors, err)
}

// Errors returns a copy of the collected errors.
func (ec *ErrorCollector) Errors() []error {
	ec.mutex.RLock()
	defer ec.mutex.RUnlock()
	result := make([]error, len(ec.errors))
	copy(result, ec.errors)
	return result
}

// Len returns the number of collected errors.
func (ec *ErrorCollector) Len() int {
	ec.mutex.RLock()
	defer ec.mutex.RUnlock()
	return len(ec.errors)
}

// HasErrors returns true if there are any errors
func (ec *ErrorCollector) HasErrors() bool {
	return ec.Len() > 0
}

// Err joins the collected errors, or returns nil when there are none.
func (ec *ErrorCollector) Err() error {
	ec.mutex.RLock()
	defer ec.mutex.RUnlock()
	return errors.Join(ec.errors...)
}

// ErrorsForFile returns errors recorded against a specific file
func (ec *ErrorCollector) ErrorsForFile(file string) []error {
	ec.mutex.RLock()
	defer ec.mutex.RUnlock()
	var fileErrors []error
	for _, err := range ec.errors {
		var se *StencilError
		if errors.As(err, &se) && se.FilePath == file {
			fileErrors = append(fileErrors, err)
		}
	}
	return fileErrors
}

// Clear clears all errors
func (ec *ErrorCollector) Clear() {
	ec.mutex.Lock()
	defer ec.mutex.Unlock()
	ec.errors = ec.errors[:0]
}

// ErrorOverlay renders the given errors as an HTML overlay the dev server
// appends to served pages. It returns "" for an empty list.
func ErrorOverlay(errs []error) string {
	if len(errs) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString(`<div id="stencil-error-overlay" style="position:fixed;inset:0;background:rgba(0,0,0,.85);color:#fff;font-family:Menlo,monospace;font-size:14px;z-index:9999;padding:20px;overflow:auto">`)
	b.WriteString(`<div style="max-width:1000px;margin:0 auto">`)
	b.WriteString(`<h2 style="margin:0 0 20px;color:#ff6b6b">Build Errors</h2>`)
	for _, err := range errs {
		file := ""
		var se *StencilError
		if errors.As(err, &se) {
			file = se.FilePath
		}
		fmt.Fprintf(&b,
			`<div style="background:#2d3748;padding:15px;margin-bottom:15px;border-left:4px solid #ff6b6b"><div style="color:#a0aec0;font-size:12px">%s</div><div>%s</div></div>`,
			html.EscapeString(file), html.EscapeString(err.Error()))
	}
	b.WriteString(`</div></div>`)

	return b.String()
}
