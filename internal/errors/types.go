package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeConfig ErrorType = "config"
	ErrorTypeData   ErrorType = "data"
	ErrorTypeEntry  ErrorType = "entry"
	ErrorTypeRender ErrorType = "render"
	ErrorTypeIO     ErrorType = "io"
)

// Common error codes.
const (
	ErrCodeConfigInvalid = "ERR_CONFIG_INVALID"
	ErrCodeGlobSyntax    = "ERR_GLOB_SYNTAX"
	ErrCodeGlobWalk      = "ERR_GLOB_WALK"
	ErrCodeDataLoad      = "ERR_DATA_LOAD"
	ErrCodeEntryRoot     = "ERR_ENTRY_ROOT"
	ErrCodeReadFailed    = "ERR_READ_FAILED"
	ErrCodeRenderFailed  = "ERR_RENDER_FAILED"
	ErrCodeWriteFailed   = "ERR_WRITE_FAILED"
)

// StencilError is a structured error type with context.
type StencilError struct {
	Type        ErrorType
	Code        string
	Message     string
	Cause       error
	FilePath    string
	Context     map[string]interface{}
	Recoverable bool
}

// Error implements the error interface.
func (e *StencilError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}
	if e.FilePath != "" {
		parts = append(parts, e.FilePath)
	}
	parts = append(parts, e.Message)

	result := strings.Join(parts, " ")
	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *StencilError) Unwrap() error {
	return e.Cause
}

// Is matches another StencilError with the same type and code.
func (e *StencilError) Is(target error) bool {
	var t *StencilError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// WithContext adds context information to the error.
func (e *StencilError) WithContext(key string, value interface{}) *StencilError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value

	return e
}

// WithFile records the file the error is about.
func (e *StencilError) WithFile(path string) *StencilError {
	e.FilePath = path

	return e
}

// NewConfigError creates a configuration error. Configuration errors abort
// the pass they occur in.
func NewConfigError(code, message string, cause error) *StencilError {
	return &StencilError{
		Type:    ErrorTypeConfig,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewDataLoadError creates an error for a data file that could not be
// read or parsed. The pass continues with a fallback value.
func NewDataLoadError(path string, cause error) *StencilError {
	return &StencilError{
		Type:        ErrorTypeData,
		Code:        ErrCodeDataLoad,
		Message:     "could not load render data",
		Cause:       cause,
		FilePath:    path,
		Recoverable: true,
	}
}

// NewEntryResolutionError creates an error for an entry whose root folder
// cannot be computed. The entry is skipped.
func NewEntryResolutionError(path string, cause error) *StencilError {
	return &StencilError{
		Type:        ErrorTypeEntry,
		Code:        ErrCodeEntryRoot,
		Message:     "entry is outside its root folder",
		Cause:       cause,
		FilePath:    path,
		Recoverable: true,
	}
}

// NewRenderError creates an error for an entry the renderer failed on.
func NewRenderError(path string, cause error) *StencilError {
	return &StencilError{
		Type:        ErrorTypeRender,
		Code:        ErrCodeRenderFailed,
		Message:     "render failed",
		Cause:       cause,
		FilePath:    path,
		Recoverable: true,
	}
}

// NewIOError creates an I/O error.
func NewIOError(code, path string, cause error) *StencilError {
	return &StencilError{
		Type:        ErrorTypeIO,
		Code:        code,
		Message:     "i/o failure",
		Cause:       cause,
		FilePath:    path,
		Recoverable: true,
	}
}

// IsRecoverable checks if an error is recoverable.
func IsRecoverable(err error) bool {
	var se *StencilError
	if errors.As(err, &se) {
		return se.Recoverable
	}

	return false
}

// IsConfigError reports whether err is a configuration error.
func IsConfigError(err error) bool {
	return typeOf(err) == ErrorTypeConfig
}

// IsRenderError reports whether err is a render error.
func IsRenderError(err error) bool {
	return typeOf(err) == ErrorTypeRender
}

// IsEntryResolutionError reports whether err is an entry resolution error.
func IsEntryResolutionError(err error) bool {
	return typeOf(err) == ErrorTypeEntry
}

func typeOf(err error) ErrorType {
	var se *StencilError
	if errors.As(err, &se) {
		return se.Type
	}

	return ""
}
