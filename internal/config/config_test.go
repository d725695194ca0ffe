package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	serrors "github.com/conneroisu/stencil/internal/errors"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func minimal() *viper.Viper {
	v := viper.New()
	v.Set("entry", "./src/pages/**/*.hbs")
	v.Set("output", "./dist/[path]/[name].html")
	return v
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadFrom(minimal())
	require.NoError(t, err)

	assert.Equal(t, "./dist", cfg.OutputDir)
	assert.Equal(t, "handlebars", cfg.Engine)
	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 300*time.Millisecond, cfg.Watch.Debounce)
	assert.True(t, cfg.Publish.UseSSL)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Nil(t, cfg.Data)
	assert.Empty(t, cfg.Partials)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".stencil.yml")
	require.NoError(t, os.WriteFile(path, []byte(`
entry: ./src/**/*.hbs
output: ./public/[name].html
output_dir: ./public
engine: GoTemplate
data:
  site:
    title: Home
data_select: $.site
partials:
  - ./src/partials/**/*.hbs
server:
  port: 3000
watch:
  debounce: 1s
log:
  level: debug
  format: json
`), 0o644))

	v := viper.New()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	cfg, err := LoadFrom(v)
	require.NoError(t, err)
	assert.Equal(t, "./src/**/*.hbs", cfg.Entry)
	assert.Equal(t, "./public", cfg.OutputDir)
	assert.Equal(t, "gotemplate", cfg.Engine, "engine is normalized")
	assert.Equal(t, []string{"./src/partials/**/*.hbs"}, cfg.Partials)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, time.Second, cfg.Watch.Debounce)
	assert.Equal(t, "$.site", cfg.DataSelect)

	data, ok := cfg.Data.(map[string]any)
	require.True(t, ok, "inline data stays a literal value")
	assert.Contains(t, data, "site")
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("STENCIL_SERVER_PORT", "9090")
	t.Setenv("STENCIL_PUBLISH_BUCKET", "site")
	t.Setenv("STENCIL_PUBLISH_ENDPOINT", "localhost:9000")
	t.Setenv("STENCIL_WATCH_DEBOUNCE", "50ms")
	t.Setenv("STENCIL_DATA", "./data.json")

	v := minimal()
	BindEnv(v)

	cfg, err := LoadFrom(v)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "site", cfg.Publish.Bucket)
	assert.Equal(t, "localhost:9000", cfg.Publish.Endpoint)
	assert.Equal(t, 50*time.Millisecond, cfg.Watch.Debounce)
	assert.Equal(t, "./data.json", cfg.Data)
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name  string
		set   map[string]any
		field string
	}{
		{"missing entry", map[string]any{"entry": ""}, "entry"},
		{"missing output", map[string]any{"output": ""}, "output"},
		{"bad glob", map[string]any{"entry": "./src/[abc"}, "entry"},
		{"bad partial glob", map[string]any{"partials": []string{"{a,b"}}, "partials"},
		{"port range", map[string]any{"server.port": 70000}, "server.port"},
		{"hostname", map[string]any{"server.host": "evil;rm -rf"}, "server.host"},
		{"engine", map[string]any{"engine": "mustache"}, "engine"},
		{"log level", map[string]any{"log.level": "loud"}, "log.level"},
		{"log format", map[string]any{"log.format": "xml"}, "log.format"},
		{"debounce", map[string]any{"watch.debounce": "-1s"}, "watch.debounce"},
		{"publish endpoint", map[string]any{"publish.bucket": "site"}, "publish.endpoint"},
		{"data select", map[string]any{"data": "./d.json", "data_select": "$.a[1"}, "data_select"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := minimal()
			for key, value := range tt.set {
				v.Set(key, value)
			}
			_, err := LoadFrom(v)
			require.Error(t, err)
			assert.True(t, serrors.IsConfigError(err))
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestInvalidFileNamedInError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".stencil.yml")
	require.NoError(t, os.WriteFile(path, []byte("entry: ./src/*.hbs\n"), 0o644))

	v := viper.New()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	_, err := LoadFrom(v)
	require.Error(t, err)
	var se *serrors.StencilError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, path, se.FilePath)
	assert.Contains(t, err.Error(), path)
}

func TestValidationWarnings(t *testing.T) {
	cfg := &Config{
		Entry:      "./src/*.hbs",
		Output:     "./dist/index.html",
		OutputDir:  "./dist",
		DataSelect: "$.site",
		Server:     ServerConfig{Host: "localhost", Port: 80},
		Publish:    PublishConfig{Endpoint: "localhost:9000", Bucket: "site"},
	}

	result := ValidateConfigWithDetails(cfg)
	assert.True(t, result.Valid)
	assert.False(t, result.HasErrors())
	assert.NoError(t, result.Err())
	require.True(t, result.HasWarnings())

	fields := make([]string, 0, len(result.Warnings))
	for _, w := range result.Warnings {
		fields = append(fields, w.Field)
	}
	assert.ElementsMatch(t, []string{"output", "data_select", "server.port", "publish"}, fields)
	assert.Contains(t, result.String(), "Validation warnings")
}

func TestValidationResultErr(t *testing.T) {
	result := ValidateConfigWithDetails(&Config{OutputDir: "./dist"})
	require.True(t, result.HasErrors())

	err := result.Err()
	require.Error(t, err)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "entry", ve.Field)
	assert.Contains(t, result.String(), "hint:")
}

func TestValidateHostname(t *testing.T) {
	for _, host := range []string{"localhost", "0.0.0.0", "::1", "dev.example.com"} {
		assert.NoError(t, validateHostname(host), host)
	}
	for _, host := range []string{"a b", "host;ls", "-leading", "$(id)"} {
		assert.Error(t, validateHostname(host), host)
	}
}
