package config

import (
	"errors"
	"fmt"
	"net"
	"regexp"
	"strings"

	"github.com/conneroisu/stencil/internal/entries"
	"github.com/conneroisu/stencil/internal/logging"
	"github.com/conneroisu/stencil/internal/pathing"
	"github.com/ohler55/ojg/jp"
)

// ValidationError represents a configuration validation error with suggestions
type ValidationError struct {
	Field       string
	Value       interface{}
	Message     string
	Suggestions []string
}

func (ve *ValidationError) Error() string {
	return fmt.Sprintf("validation error in %s: %s", ve.Field, ve.Message)
}

// ValidationResult holds the result of configuration validation
type ValidationResult struct {
	Valid    bool
	Errors   []ValidationError
	Warnings []ValidationError
}

// HasErrors returns true if there are any validation errors
func (vr *ValidationResult) HasErrors() bool {
	return len(vr.Errors) > 0
}

// HasWarnings returns true if there are any validation warnings
func (vr *ValidationResult) HasWarnings() bool {
	return len(vr.Warnings) > 0
}

// Err joins the validation errors, or returns nil.
func (vr *ValidationResult) Err() error {
	errs := make([]error, 0, len(vr.Errors))
	for i := range vr.Errors {
		errs = append(errs, &vr.Errors[i])
	}
	return errors.Join(errs...)
}

// String returns a formatted string of all validation issues
func (vr *ValidationResult) String() string {
	var builder strings.Builder

	write := func(title string, issues []ValidationError) {
		if len(issues) == 0 {
			return
		}
		builder.WriteString(title + ":\n")
		for _, issue := range issues {
			builder.WriteString(fmt.Sprintf("  - %s: %s\n", issue.Field, issue.Message))
			for _, suggestion := range issue.Suggestions {
				builder.WriteString(fmt.Sprintf("    hint: %s\n", suggestion))
			}
		}
	}
	write("Validation errors", vr.Errors)
	write("Validation warnings", vr.Warnings)

	return builder.String()
}

func (vr *ValidationResult) addError(field string, value interface{}, message string, suggestions ...string) {
	vr.Errors = append(vr.Errors, ValidationError{Field: field, Value: value, Message: message, Suggestions: suggestions})
}

func (vr *ValidationResult) addWarning(field string, value interface{}, message string, suggestions ...string) {
	vr.Warnings = append(vr.Warnings, ValidationError{Field: field, Value: value, Message: message, Suggestions: suggestions})
}

// ValidateConfigWithDetails performs comprehensive validation with detailed feedback
func ValidateConfigWithDetails(config *Config) *ValidationResult {
	result := &ValidationResult{
		Errors:   []ValidationError{},
		Warnings: []ValidationError{},
	}

	validateSources(config, result)
	validateServerConfigDetails(&config.Server, result)
	validateWatchConfigDetails(&config.Watch, result)
	validatePublishConfigDetails(&config.Publish, result)
	validateLogConfigDetails(&config.Log, result)

	result.Valid = !result.HasErrors()
	return result
}

func validateSources(config *Config, result *ValidationResult) {
	if strings.TrimSpace(config.Entry) == "" {
		result.addError("entry", config.Entry, "entry glob is required",
			"Set entry to the templates to render, e.g. ./src/pages/**/*.hbs")
	} else if err := entries.Validate(config.Entry); err != nil {
		result.addError("entry", config.Entry, err.Error())
	}

	if strings.TrimSpace(config.Output) == "" {
		result.addError("output", config.Output, "output pattern is required",
			"Use the [name] and [path] tokens, e.g. ./dist/[path]/[name].html")
	} else if !strings.Contains(config.Output, pathing.NameToken) {
		result.addWarning("output", config.Output, "output has no [name] token; every entry renders to the same file",
			"Add [name] to the output pattern")
	}

	if strings.TrimSpace(config.OutputDir) == "" {
		result.addError("output_dir", config.OutputDir, "output_dir is required")
	}

	for _, pattern := range config.Partials {
		if err := entries.Validate(pattern); err != nil {
			result.addError("partials", pattern, err.Error())
		}
	}
	for _, pattern := range config.Components {
		if err := entries.Validate(pattern); err != nil {
			result.addError("components", pattern, err.Error())
		}
	}

	if sel := strings.TrimSpace(config.DataSelect); sel != "" {
		if _, err := jp.ParseString(sel); err != nil {
			result.addError("data_select", sel, fmt.Sprintf("invalid JSONPath: %v", err),
				"Select a subtree with e.g. $.site")
		}
		if config.Data == nil {
			result.addWarning("data_select", sel, "data_select has no effect without data")
		}
	}

	switch config.Engine {
	case "", "handlebars", "hbs", "gotemplate", "go":
	default:
		result.addError("engine", config.Engine, "unknown template engine",
			"Use 'handlebars' or 'gotemplate'")
	}
}

func validateServerConfigDetails(config *ServerConfig, result *ValidationResult) {
	if config.Port < 0 || config.Port > 65535 {
		result.addError("server.port", config.Port, fmt.Sprintf("port %d is not in valid range 0-65535", config.Port),
			"Common development ports: 3000, 8080, 8000",
			"Port 0 allows system to assign an available port")
	} else if config.Port > 0 && config.Port < 1024 {
		result.addWarning("server.port", config.Port, "port below 1024 requires elevated privileges",
			"Consider using a port above 1024 for development")
	}

	if config.Host != "" {
		if err := validateHostname(config.Host); err != nil {
			result.addError("server.host", config.Host, err.Error(),
				"Use 'localhost' for local development",
				"Use '0.0.0.0' to bind to all interfaces")
		}
	}
}

func validateWatchConfigDetails(config *WatchConfig, result *ValidationResult) {
	if config.Debounce < 0 {
		result.addError("watch.debounce", config.Debounce, "debounce cannot be negative")
	}
}

func validatePublishConfigDetails(config *PublishConfig, result *ValidationResult) {
	if config.Endpoint == "" && config.Bucket == "" {
		return
	}
	if config.Endpoint == "" {
		result.addError("publish.endpoint", config.Endpoint, "endpoint is required when a bucket is set")
	}
	if config.Bucket == "" {
		result.addError("publish.bucket", config.Bucket, "bucket is required when an endpoint is set")
	}
	if config.AccessKey == "" || config.SecretKey == "" {
		result.addWarning("publish", nil, "credentials are not set; publishing will fail",
			"Set STENCIL_PUBLISH_ACCESS_KEY and STENCIL_PUBLISH_SECRET_KEY, e.g. in .env")
	}
}

func validateLogConfigDetails(config *LogConfig, result *ValidationResult) {
	if _, err := logging.ParseLevel(config.Level); err != nil {
		result.addError("log.level", config.Level, err.Error(), "Use debug, info, warn or error")
	}
	switch strings.ToLower(config.Format) {
	case "", "text", "json":
	default:
		result.addError("log.format", config.Format, "unknown log format", "Use 'text' or 'json'")
	}
}

var hostnameRegex = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(\.[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*$`)

func validateHostname(host string) error {
	dangerousChars := []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\"", "'", "\\"}
	for _, char := range dangerousChars {
		if strings.Contains(host, char) {
			return fmt.Errorf("contains dangerous character: %s", char)
		}
	}

	if net.ParseIP(host) != nil {
		return nil
	}
	if !hostnameRegex.MatchString(host) {
		return fmt.Errorf("invalid hostname format")
	}
	return nil
}
