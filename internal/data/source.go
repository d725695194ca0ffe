// Package data loads the value templates are rendered with.
//
// The value is either a literal supplied in configuration or the contents
// of a data file. Files are re-read on every call to Load so edits are
// picked up by the next pass, and a file that fails to parse degrades to
// its raw text instead of failing the pass.
package data

import (
	"context"
	"path/filepath"
	"strings"

	serrors "github.com/conneroisu/stencil/internal/errors"
	"github.com/conneroisu/stencil/internal/logging"
	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"
	"gopkg.in/yaml.v3"
)

// FileReader is the subset of deps.Reader the source needs; reads through
// it are recorded as dependencies.
type FileReader interface {
	ReadFile(name string) ([]byte, error)
}

// Source resolves render data for a pass.
type Source struct {
	literal  any
	path     string
	selector jp.Expr
	logger   logging.Logger
}

// Options configures a Source.
type Options struct {
	// Data is a path to a data file when it is a string, otherwise a
	// literal value. Nil means an empty object.
	Data any
	// Select is an optional JSONPath applied to the loaded document.
	Select string
	Logger logging.Logger
}

// NewSource validates opts and builds a Source. An unparsable Select is a
// configuration error.
func NewSource(opts Options) (*Source, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &Source{logger: logger.WithComponent("data")}

	switch v := opts.Data.(type) {
	case nil:
		s.literal = map[string]any{}
	case string:
		s.path = v
	default:
		s.literal = v
	}

	if sel := strings.TrimSpace(opts.Select); sel != "" {
		expr, err := jp.ParseString(sel)
		if err != nil {
			return nil, serrors.NewConfigError(serrors.ErrCodeConfigInvalid, "invalid data_select JSONPath", err).
				WithContext("data_select", sel)
		}
		s.selector = expr
	}

	return s, nil
}

// Load returns the data for this pass. For file-backed data the file is
// read through reader. A read or parse failure is logged as a warning and
// the raw text (the path for an unreadable file) is returned with the
// DataLoadError so callers may surface it; it never aborts the pass.
func (s *Source) Load(ctx context.Context, reader FileReader) (any, error) {
	if s.path == "" {
		return s.selectFrom(s.literal), nil
	}

	raw, err := reader.ReadFile(s.path)
	if err != nil {
		loadErr := serrors.NewDataLoadError(s.path, err)
		s.logger.Warn(ctx, loadErr, "Data file unreadable, rendering with its path as text", "path", s.path)
		return s.path, loadErr
	}

	value, err := decode(s.path, raw)
	if err != nil {
		loadErr := serrors.NewDataLoadError(s.path, err)
		s.logger.Warn(ctx, loadErr, "Data file is not valid, rendering with its raw text", "path", s.path)
		return string(raw), loadErr
	}

	return s.selectFrom(value), nil
}

func (s *Source) selectFrom(value any) any {
	if s.selector == nil {
		return value
	}
	return s.selector.First(value)
}

// decode parses raw by file extension: YAML for .yaml/.yml, JSON otherwise.
func decode(path string, raw []byte) (any, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var value any
		if err := yaml.Unmarshal(raw, &value); err != nil {
			return nil, err
		}
		return value, nil
	default:
		return oj.Parse(raw)
	}
}
