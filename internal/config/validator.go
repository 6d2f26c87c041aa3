package config

import (
	"fmt"
	"slices"
	"strings"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "steps.max_attempts")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validatePaths()...)
	errors = append(errors, c.validateLogging()...)
	errors = append(errors, c.validateSteps()...)
	errors = append(errors, c.validateArchive()...)

	return errors
}

func (c *Config) validatePaths() []ValidationError {
	var errors []ValidationError

	if strings.TrimSpace(c.PipelineConfig) == "" {
		errors = append(errors, ValidationError{
			Field:   "pipeline_config",
			Value:   c.PipelineConfig,
			Message: "must not be empty",
		})
	}
	if strings.TrimSpace(c.StateFile) == "" {
		errors = append(errors, ValidationError{
			Field:   "state_file",
			Value:   c.StateFile,
			Message: "must not be empty",
		})
	}

	return errors
}

func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), strings.ToLower(c.Logging.Level)) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}
	if c.Logging.MaxSizeMB < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: "must be non-negative",
		})
	}
	if c.Logging.MaxBackups < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_backups",
			Value:   c.Logging.MaxBackups,
			Message: "must be non-negative",
		})
	}

	return errors
}

func (c *Config) validateSteps() []ValidationError {
	var errors []ValidationError

	const maxAttemptsLimit = 10
	if c.Steps.MaxAttempts < 1 || c.Steps.MaxAttempts > maxAttemptsLimit {
		errors = append(errors, ValidationError{
			Field:   "steps.max_attempts",
			Value:   c.Steps.MaxAttempts,
			Message: fmt.Sprintf("must be between 1 and %d", maxAttemptsLimit),
		})
	}

	names := make([]string, 0, len(c.Steps.Commands))
	for name := range c.Steps.Commands {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		if len(c.Steps.Commands[name]) == 0 {
			errors = append(errors, ValidationError{
				Field:   "steps.commands." + name,
				Value:   c.Steps.Commands[name],
				Message: "command must have at least one element",
			})
		}
	}

	return errors
}

func (c *Config) validateArchive() []ValidationError {
	var errors []ValidationError

	if strings.ContainsAny(c.Archive.Prefix, `/\`) {
		errors = append(errors, ValidationError{
			Field:   "archive.prefix",
			Value:   c.Archive.Prefix,
			Message: "must not contain path separators",
		})
	}

	remote := c.Archive.Remote
	if !remote.Enabled {
		return errors
	}
	if remote.Endpoint == "" {
		errors = append(errors, ValidationError{
			Field:   "archive.remote.endpoint",
			Value:   remote.Endpoint,
			Message: "is required when the remote mirror is enabled",
		})
	}
	if remote.Bucket == "" {
		errors = append(errors, ValidationError{
			Field:   "archive.remote.bucket",
			Value:   remote.Bucket,
			Message: "is required when the remote mirror is enabled",
		})
	}
	if remote.Concurrency < 1 {
		errors = append(errors, ValidationError{
			Field:   "archive.remote.concurrency",
			Value:   remote.Concurrency,
			Message: "must be at least 1",
		})
	}

	return errors
}
