package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/conneroisu/stencil/internal/config"
	"github.com/conneroisu/stencil/internal/host"
	"github.com/conneroisu/stencil/internal/logging"
	"github.com/conneroisu/stencil/internal/pathing"
	"github.com/conneroisu/stencil/internal/plugin"
	"github.com/conneroisu/stencil/internal/publish"
	"github.com/conneroisu/stencil/internal/renderer"
)

// app is one configured plugin attached to a standalone host.
type app struct {
	cfg    *config.Config
	logger logging.Logger
	host   *host.Host
	plugin *plugin.Plugin
}

func newLogger(cfg config.LogConfig, out io.Writer) (logging.Logger, error) {
	level, err := logging.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = os.Stderr
	}
	return logging.NewLogger(&logging.LoggerConfig{
		Level:  level,
		Format: cfg.Format,
		Output: out,
	}), nil
}

func newApp(cfg *config.Config, logger logging.Logger) (*app, error) {
	r, err := renderer.New(cfg.Engine, renderer.Options{})
	if err != nil {
		return nil, err
	}

	p, err := plugin.New(plugin.Options{
		Entry:      cfg.Entry,
		Output:     cfg.Output,
		Data:       cfg.Data,
		DataSelect: cfg.DataSelect,
		Components: cfg.Components,
		Partials:   cfg.Partials,
		Renderer:   r,
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}

	h, err := host.New(cfg.OutputDir, host.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	p.Apply(h)

	return &app{cfg: cfg, logger: logger, host: h, plugin: p}, nil
}

// watchRoots lists the glob bases that are watched recursively so files
// created after startup are picked up.
func (a *app) watchRoots() ([]string, error) {
	patterns := append([]string{a.cfg.Entry}, a.cfg.Partials...)
	patterns = append(patterns, a.cfg.Components...)

	seen := make(map[string]struct{}, len(patterns))
	roots := make([]string, 0, len(patterns))
	for _, pattern := range patterns {
		base, err := pathing.GlobBase(pattern)
		if err != nil {
			return nil, err
		}
		if _, ok := seen[base]; ok {
			continue
		}
		if _, err := os.Stat(base); err != nil {
			continue
		}
		seen[base] = struct{}{}
		roots = append(roots, base)
	}
	return roots, nil
}

func (a *app) publisher() (*publish.S3Publisher, error) {
	p := a.cfg.Publish
	if p.Bucket == "" {
		return nil, fmt.Errorf("publish.bucket is not configured")
	}
	return publish.NewS3Publisher(publish.Config{
		Endpoint:  p.Endpoint,
		Region:    p.Region,
		AccessKey: p.AccessKey,
		SecretKey: p.SecretKey,
		Bucket:    p.Bucket,
		Prefix:    p.Prefix,
		UseSSL:    p.UseSSL,
	}, a.logger)
}

// loadApp reads the global configuration and builds the app.
func loadApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(cfg.Log, nil)
	if err != nil {
		return nil, err
	}
	return newApp(cfg, logger)
}
