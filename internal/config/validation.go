package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a configuration validation error with suggestions
type ValidationError struct {
	Field       string
	Value       interface{}
	Message     string
	Suggestions []string
}

func (ve ValidationError) Error() string {
	return fmt.Sprintf("validation error in %s: %s", ve.Field, ve.Message)
}

// ValidationResult holds the result of configuration validation
type ValidationResult struct {
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

// String returns a formatted string of all validation issues
func (vr *ValidationResult) String() string {
	var builder strings.Builder

	if len(vr.Errors) > 0 {
		builder.WriteString("Validation errors:\n")
		for _, err := range vr.Errors {
			builder.WriteString(fmt.Sprintf("  - %s: %s\n", err.Field, err.Message))
			for _, suggestion := range err.Suggestions {
				builder.WriteString(fmt.Sprintf("    hint: %s\n", suggestion))
			}
		}
	}

	if len(vr.Warnings) > 0 {
		builder.WriteString("Validation warnings:\n")
		for _, warning := range vr.Warnings {
			builder.WriteString(fmt.Sprintf("  - %s: %s\n", warning.Field, warning.Message))
		}
	}

	return builder.String()
}

var (
	validLevels  = []string{"debug", "info", "warn", "error"}
	validFormats = []string{"text", "json"}
)

// ValidateConfig checks every field and collects all problems.
func ValidateConfig(config *Config) *ValidationResult {
	result := &ValidationResult{}

	if strings.TrimSpace(config.Root) == "" {
		result.Errors = append(result.Errors, ValidationError{
			Field:       KeyRoot,
			Value:       config.Root,
			Message:     "root directory must not be empty",
			Suggestions: []string{"Pass --root <dir> or omit it to use the current directory"},
		})
	}

	// 0 asks the OS for a free port
	if config.Server.Port < 0 || config.Server.Port > 65535 {
		result.Errors = append(result.Errors, ValidationError{
			Field:       KeyServerPort,
			Value:       config.Server.Port,
			Message:     fmt.Sprintf("port %d is not in valid range 0-65535", config.Server.Port),
			Suggestions: []string{fmt.Sprintf("Use the default port %d", DefaultPort)},
		})
	} else if config.Server.Port > 0 && config.Server.Port < 1024 {
		result.Warnings = append(result.Warnings, ValidationError{
			Field:   KeyServerPort,
			Value:   config.Server.Port,
			Message: "ports below 1024 usually require elevated privileges",
		})
	}

	if strings.ContainsAny(config.Server.Host, ";&|$`()<>\"'\\ ") {
		result.Errors = append(result.Errors, ValidationError{
			Field:   KeyServerHost,
			Value:   config.Server.Host,
			Message: "host contains invalid characters",
		})
	}

	if !contains(validLevels, config.Log.Level) {
		result.Errors = append(result.Errors, ValidationError{
			Field:       KeyLogLevel,
			Value:       config.Log.Level,
			Message:     fmt.Sprintf("unknown log level %q", config.Log.Level),
			Suggestions: []string{"Use one of: " + strings.Join(validLevels, ", ")},
		})
	}

	if !contains(validFormats, config.Log.Format) {
		result.Errors = append(result.Errors, ValidationError{
			Field:       KeyLogFormat,
			Value:       config.Log.Format,
			Message:     fmt.Sprintf("unknown log format %q", config.Log.Format),
			Suggestions: []string{"Use one of: " + strings.Join(validFormats, ", ")},
		})
	}

	if config.Watch.Debounce < 0 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   KeyWatchDebounce,
			Value:   config.Watch.Debounce,
			Message: "debounce must not be negative",
		})
	}

	return result
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
