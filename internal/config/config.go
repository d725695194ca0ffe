// Package config provides configuration management for stencil using
// Viper for loading from files, environment variables, and command-line
// flags.
//
// The configuration file is .stencil.yml; every key can be overridden by
// an environment variable with the STENCIL_ prefix (STENCIL_SERVER_PORT,
// STENCIL_PUBLISH_BUCKET, ...).
package config

import (
	"fmt"
	"strings"
	"time"

	serrors "github.com/conneroisu/stencil/internal/errors"
	"github.com/spf13/viper"
)

// EnvPrefix is the environment variable prefix.
const EnvPrefix = "STENCIL"

// Config is the stencil configuration.
type Config struct {
	Entry      string   `yaml:"entry" mapstructure:"entry"`
	Output     string   `yaml:"output" mapstructure:"output"`
	OutputDir  string   `yaml:"output_dir" mapstructure:"output_dir"`
	Data       any      `yaml:"data" mapstructure:"data"`
	DataSelect string   `yaml:"data_select" mapstructure:"data_select"`
	Partials   []string `yaml:"partials" mapstructure:"partials"`
	Components []string `yaml:"components" mapstructure:"components"`
	Engine     string   `yaml:"engine" mapstructure:"engine"`

	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Watch   WatchConfig   `yaml:"watch" mapstructure:"watch"`
	Publish PublishConfig `yaml:"publish" mapstructure:"publish"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

type ServerConfig struct {
	Host           string   `yaml:"host" mapstructure:"host"`
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce" mapstructure:"debounce"`
}

type PublishConfig struct {
	Endpoint  string `yaml:"endpoint" mapstructure:"endpoint"`
	Bucket    string `yaml:"bucket" mapstructure:"bucket"`
	Region    string `yaml:"region" mapstructure:"region"`
	AccessKey string `yaml:"access_key" mapstructure:"access_key"`
	SecretKey string `yaml:"secret_key" mapstructure:"secret_key"`
	Prefix    string `yaml:"prefix" mapstructure:"prefix"`
	UseSSL    bool   `yaml:"use_ssl" mapstructure:"use_ssl"`
}

type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// SetDefaults registers default values on v. Defaults also make every
// key known to v, so environment overrides apply during Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("entry", "")
	v.SetDefault("output", "")
	v.SetDefault("output_dir", "./dist")
	v.SetDefault("data", nil)
	v.SetDefault("data_select", "")
	v.SetDefault("partials", []string{})
	v.SetDefault("components", []string{})
	v.SetDefault("engine", "handlebars")

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{})

	v.SetDefault("watch.debounce", 300*time.Millisecond)

	v.SetDefault("publish.endpoint", "")
	v.SetDefault("publish.bucket", "")
	v.SetDefault("publish.region", "")
	v.SetDefault("publish.access_key", "")
	v.SetDefault("publish.secret_key", "")
	v.SetDefault("publish.prefix", "")
	v.SetDefault("publish.use_ssl", true)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// BindEnv wires STENCIL_ environment overrides into v.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
}

// Load reads the configuration from the global viper instance.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom unmarshals and validates the configuration held by v.
func LoadFrom(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, serrors.NewConfigError(serrors.ErrCodeConfigInvalid, "cannot decode configuration", err).
			WithFile(v.ConfigFileUsed())
	}

	// Environment values for list keys arrive as a single string.
	config.Partials = stringSlice(v, "partials", config.Partials)
	config.Components = stringSlice(v, "components", config.Components)
	config.Server.AllowedOrigins = stringSlice(v, "server.allowed_origins", config.Server.AllowedOrigins)

	if s, ok := config.Data.(string); ok && strings.TrimSpace(s) == "" {
		config.Data = nil
	}
	config.Engine = strings.ToLower(strings.TrimSpace(config.Engine))

	result := ValidateConfigWithDetails(&config)
	if result.HasErrors() {
		return nil, serrors.NewConfigError(serrors.ErrCodeConfigInvalid,
			fmt.Sprintf("invalid configuration:\n%s", result.String()), result.Err()).
			WithFile(v.ConfigFileUsed())
	}
	return &config, nil
}

func stringSlice(v *viper.Viper, key string, current []string) []string {
	if len(current) > 0 {
		return current
	}
	if !v.IsSet(key) {
		return current
	}
	var out []string
	for _, s := range v.GetStringSlice(key) {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
