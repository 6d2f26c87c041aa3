// Package errors provides the error taxonomy for foldrun. It defines the
// sentinel errors the orchestrator propagates, typed errors that carry
// pipeline context (configuration path, step, run, attempt), and helpers that
// classify errors for exit codes and user-facing reporting.
//
// # Error Types
//
// Sentinel errors mirror the failure classes of the orchestrator:
//   - ErrConfigNotFound: recoverable, built-in defaults are applied
//   - ErrConfigParse: fatal before any step runs
//   - ErrConfigChanged: fatal unless --force-resume is given
//   - ErrUnknownRunID: fatal before any step runs
//   - ErrUnmetDependency: per-run, the analysis run is marked Skipped
//   - ErrStepFailed: per-run, the run is marked Failed
//   - ErrArchiveFailure: fatal to the whole invocation
//
// Typed errors wrap these sentinels with context:
//   - ConfigError: configuration document problems
//   - StepError: a failed step invocation
//   - ArchiveError: archive/cleanup failures
//   - ValidationError: a single invalid field
//
// # Usage
//
//	err := errors.NewStepError("exit status 1", errors.ErrStepFailed).
//	    WithStep("chai-run").WithRun("standard")
//
//	if errors.Is(err, errors.ErrStepFailed) { ... }
//
//	var stepErr *errors.StepError
//	if errors.As(err, &stepErr) { ... }
package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Severity represents the severity level of an error.
type Severity int

const (
	// SeverityDebug is for errors that are useful for debugging but not critical.
	SeverityDebug Severity = iota
	// SeverityInfo is for informational errors that don't indicate a problem.
	SeverityInfo
	// SeverityWarning is for errors that might indicate a problem but aren't critical.
	SeverityWarning
	// SeverityError is for errors that indicate a real problem.
	SeverityError
	// SeverityCritical is for errors that abort the whole pipeline.
	SeverityCritical
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Configuration sentinel errors
var (
	// ErrConfigNotFound indicates the configuration document does not exist.
	ErrConfigNotFound = New("configuration not found")
	// ErrConfigParse indicates the configuration document is malformed or invalid.
	ErrConfigParse = New("configuration parse error")
	// ErrConfigChanged indicates the configuration fingerprint differs from the resumed state.
	ErrConfigChanged = New("configuration changed since previous run")
	// ErrUnknownRunID indicates a run selector or source references a run that does not exist.
	ErrUnknownRunID = New("unknown run id")
	// ErrUsage indicates invalid command-line input such as an unknown step name.
	ErrUsage = New("invalid usage")
)

// Execution sentinel errors
var (
	// ErrUnmetDependency indicates an analysis run's source prediction did not succeed.
	ErrUnmetDependency = New("unmet dependency")
	// ErrStepFailed indicates a step invocation reported failure.
	ErrStepFailed = New("step failed")
	// ErrArchiveFailure indicates the archive phase failed.
	ErrArchiveFailure = New("archive failure")
	// ErrRunsFailed indicates at least one attempted run ended Failed.
	ErrRunsFailed = New("one or more runs failed")
)

// State sentinel errors
var (
	// ErrStateCorrupted indicates the state file could not be decoded.
	ErrStateCorrupted = New("state file corrupted")
)

// -----------------------------------------------------------------------------
// Base Error Interface
// -----------------------------------------------------------------------------

// PipelineError is the base interface for all foldrun errors.
type PipelineError interface {
	error

	// Unwrap returns the underlying error, if any.
	Unwrap() error

	// Is reports whether this error matches the target error.
	Is(target error) bool

	// Severity returns the severity level of this error.
	Severity() Severity

	// IsUserFacing returns true if the error message is safe to display
	// to end users.
	IsUserFacing() bool
}

// baseError provides common functionality for all error types.
type baseError struct {
	message    string
	cause      error
	severity   Severity
	userFacing bool
}

// Error returns the error message.
func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Unwrap returns the underlying error.
func (e *baseError) Unwrap() error {
	return e.cause
}

// Is checks if this error matches the target.
func (e *baseError) Is(target error) bool {
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

// Severity returns the error severity.
func (e *baseError) Severity() Severity {
	return e.severity
}

// IsUserFacing returns whether the error is safe to show users.
func (e *baseError) IsUserFacing() bool {
	return e.userFacing
}

func formatWithContext(kind string, parts []string, message string, cause error) string {
	prefix := kind
	if len(parts) > 0 {
		prefix = fmt.Sprintf("%s [%s]", kind, strings.Join(parts, ", "))
	}
	if cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, message, cause)
	}
	return fmt.Sprintf("%s: %s", prefix, message)
}

// -----------------------------------------------------------------------------
// Domain-Specific Errors
// -----------------------------------------------------------------------------

// ConfigError represents errors in the configuration document.
//
// Example:
//
//	err := errors.NewConfigError("invalid yaml", errors.ErrConfigParse).WithPath("pipeline_config.json")
//	fmt.Println(err) // "config error [path=pipeline_config.json]: invalid yaml: configuration parse error"
type ConfigError struct {
	baseError
	Path string
}

// NewConfigError creates a new ConfigError.
func NewConfigError(message string, cause error) *ConfigError {
	return &ConfigError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityCritical,
			userFacing: true,
		},
	}
}

// WithPath adds the document path to the error context.
func (e *ConfigError) WithPath(path string) *ConfigError {
	e.Path = path
	return e
}

// Error returns the formatted error message.
func (e *ConfigError) Error() string {
	var parts []string
	if e.Path != "" {
		parts = append(parts, fmt.Sprintf("path=%s", e.Path))
	}
	return formatWithContext("config error", parts, e.message, e.cause)
}

// Is checks if this error matches the target.
func (e *ConfigError) Is(target error) bool {
	if _, ok := target.(*ConfigError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// StepError represents a failed step invocation.
//
// Example:
//
//	err := errors.NewStepError("exit status 2", errors.ErrStepFailed).
//	    WithStep("boltz-run").WithRun("with_msa").WithAttempt(1)
type StepError struct {
	baseError
	Step    string
	RunID   string
	Attempt int
}

// NewStepError creates a new StepError.
func NewStepError(message string, cause error) *StepError {
	return &StepError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			userFacing: true,
		},
	}
}

// WithStep adds the step name to the error context.
func (e *StepError) WithStep(step string) *StepError {
	e.Step = step
	return e
}

// WithRun adds the owning run id to the error context.
func (e *StepError) WithRun(runID string) *StepError {
	e.RunID = runID
	return e
}

// WithAttempt adds the attempt number to the error context.
func (e *StepError) WithAttempt(attempt int) *StepError {
	e.Attempt = attempt
	return e
}

// Reason returns the message without context decoration, suitable for
// the error field of a step record.
func (e *StepError) Reason() string {
	return e.message
}

// Error returns the formatted error message.
func (e *StepError) Error() string {
	var parts []string
	if e.Step != "" {
		parts = append(parts, fmt.Sprintf("step=%s", e.Step))
	}
	if e.RunID != "" {
		parts = append(parts, fmt.Sprintf("run=%s", e.RunID))
	}
	if e.Attempt > 0 {
		parts = append(parts, fmt.Sprintf("attempt=%d", e.Attempt))
	}
	return formatWithContext("step error", parts, e.message, e.cause)
}

// Is checks if this error matches the target.
func (e *StepError) Is(target error) bool {
	if _, ok := target.(*StepError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// ArchiveError represents a failure of the archive phase.
type ArchiveError struct {
	baseError
	Target string
}

// NewArchiveError creates a new ArchiveError. The cause chain always
// includes ErrArchiveFailure.
func NewArchiveError(message string, cause error) *ArchiveError {
	if cause == nil {
		cause = ErrArchiveFailure
	} else if !errors.Is(cause, ErrArchiveFailure) {
		cause = Join(ErrArchiveFailure, cause)
	}
	return &ArchiveError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityCritical,
			userFacing: true,
		},
	}
}

// WithTarget adds the file or directory being archived to the error context.
func (e *ArchiveError) WithTarget(target string) *ArchiveError {
	e.Target = target
	return e
}

// Error returns the formatted error message.
func (e *ArchiveError) Error() string {
	var parts []string
	if e.Target != "" {
		parts = append(parts, fmt.Sprintf("target=%s", e.Target))
	}
	return formatWithContext("archive error", parts, e.message, e.cause)
}

// Is checks if this error matches the target.
func (e *ArchiveError) Is(target error) bool {
	if _, ok := target.(*ArchiveError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Semantic Errors
// -----------------------------------------------------------------------------

// ValidationError represents a single invalid field or value.
//
// Example:
//
//	err := errors.NewValidationError("duplicate run id").
//	    WithField("prediction_runs[1].id").WithValue("standard")
type ValidationError struct {
	Message string
	Field   string
	Value   any
	cause   error
}

// NewValidationError creates a new ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{Message: message}
}

// WithField adds a field name to the error context.
func (e *ValidationError) WithField(field string) *ValidationError {
	e.Field = field
	return e
}

// WithValue adds the invalid value to the error context.
func (e *ValidationError) WithValue(value any) *ValidationError {
	e.Value = value
	return e
}

// WithCause adds a cause to the error.
func (e *ValidationError) WithCause(cause error) *ValidationError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *ValidationError) Error() string {
	var sb strings.Builder
	if e.Field != "" {
		sb.WriteString(e.Field)
		sb.WriteString(": ")
	}
	sb.WriteString(e.Message)
	if e.Value != nil {
		sb.WriteString(fmt.Sprintf(" (got: %v)", e.Value))
	}
	return sb.String()
}

// Unwrap returns the underlying cause.
func (e *ValidationError) Unwrap() error {
	return e.cause
}

// -----------------------------------------------------------------------------
// Error Classification Helpers
// -----------------------------------------------------------------------------

// IsUserFacing returns true if the error message is safe to display to end users.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}

	var pipelineErr PipelineError
	if As(err, &pipelineErr) {
		return pipelineErr.IsUserFacing()
	}

	var validation *ValidationError
	return As(err, &validation)
}

// GetSeverity returns the severity level of the error.
// Returns SeverityError for errors that don't implement PipelineError.
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityDebug
	}

	var pipelineErr PipelineError
	if As(err, &pipelineErr) {
		return pipelineErr.Severity()
	}

	return SeverityError
}

// Process exit codes.
const (
	ExitOK          = 0
	ExitRunsFailed  = 1
	ExitConfig      = 2
	ExitFatal       = 3
	ExitInterrupted = 130
)

// ExitCode maps an error returned by the orchestrator to a process exit code
// so the tool composes with external schedulers.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case Is(err, context.Canceled):
		return ExitInterrupted
	case Is(err, ErrArchiveFailure), Is(err, ErrConfigChanged), Is(err, ErrStateCorrupted):
		return ExitFatal
	case Is(err, ErrConfigParse), Is(err, ErrUnknownRunID), Is(err, ErrUsage):
		return ExitConfig
	default:
		return ExitRunsFailed
	}
}

// -----------------------------------------------------------------------------
// Convenience Constructors
// -----------------------------------------------------------------------------

// Wrap wraps an error with additional context message.
//
// Example:
//
//	err := errors.Wrap(baseErr, "failed to load state")
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted context message.
//
// Example:
//
//	err := errors.Wrapf(baseErr, "failed to archive %s", dir)
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
