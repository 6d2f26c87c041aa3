package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

// -----------------------------------------------------------------------------
// Severity Tests
// -----------------------------------------------------------------------------

func TestSeverity_String(t *testing.T) {
	tests := []struct {
		severity Severity
		want     string
	}{
		{SeverityDebug, "debug"},
		{SeverityInfo, "info"},
		{SeverityWarning, "warning"},
		{SeverityError, "error"},
		{SeverityCritical, "critical"},
		{Severity(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.severity.String(); got != tt.want {
				t.Errorf("Severity.String() = %q, want %q", got, tt.want)
			}
		})
	}
}

// -----------------------------------------------------------------------------
// ConfigError Tests
// -----------------------------------------------------------------------------

func TestConfigError(t *testing.T) {
	err := NewConfigError("invalid yaml", ErrConfigParse).WithPath("pipeline_config.json")

	want := "config error [path=pipeline_config.json]: invalid yaml: configuration parse error"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
	if !errors.Is(err, ErrConfigParse) {
		t.Error("errors.Is(err, ErrConfigParse) = false, want true")
	}
	if !errors.Is(err, &ConfigError{}) {
		t.Error("errors.Is(err, &ConfigError{}) = false, want true")
	}
	if err.Severity() != SeverityCritical {
		t.Errorf("Severity() = %v, want %v", err.Severity(), SeverityCritical)
	}
}

func TestConfigError_NoPath(t *testing.T) {
	err := NewConfigError("empty document", nil)
	if err.Error() != "config error: empty document" {
		t.Errorf("Error() = %q", err.Error())
	}
}

// -----------------------------------------------------------------------------
// StepError Tests
// -----------------------------------------------------------------------------

func TestStepError(t *testing.T) {
	err := NewStepError("exit status 2", ErrStepFailed).
		WithStep("boltz-run").
		WithRun("with_msa").
		WithAttempt(2)

	msg := err.Error()
	for _, part := range []string{"step=boltz-run", "run=with_msa", "attempt=2", "exit status 2"} {
		if !strings.Contains(msg, part) {
			t.Errorf("Error() = %q, missing %q", msg, part)
		}
	}
	if err.Reason() != "exit status 2" {
		t.Errorf("Reason() = %q, want %q", err.Reason(), "exit status 2")
	}
	if !errors.Is(err, ErrStepFailed) {
		t.Error("errors.Is(err, ErrStepFailed) = false, want true")
	}

	wrapped := fmt.Errorf("prediction phase: %w", err)
	var stepErr *StepError
	if !errors.As(wrapped, &stepErr) {
		t.Fatal("errors.As failed to find StepError")
	}
	if stepErr.Step != "boltz-run" {
		t.Errorf("Step = %q, want %q", stepErr.Step, "boltz-run")
	}
}

// -----------------------------------------------------------------------------
// ArchiveError Tests
// -----------------------------------------------------------------------------

func TestArchiveError_AlwaysWrapsSentinel(t *testing.T) {
	tests := []struct {
		name  string
		cause error
	}{
		{"nil cause", nil},
		{"foreign cause", errors.New("permission denied")},
		{"sentinel cause", ErrArchiveFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewArchiveError("move failed", tt.cause).WithTarget("OUTPUT")
			if !errors.Is(err, ErrArchiveFailure) {
				t.Errorf("errors.Is(err, ErrArchiveFailure) = false for %v", tt.cause)
			}
			if tt.cause != nil && !errors.Is(err, tt.cause) {
				t.Errorf("errors.Is(err, cause) = false")
			}
			if !strings.Contains(err.Error(), "target=OUTPUT") {
				t.Errorf("Error() = %q, missing target", err.Error())
			}
		})
	}
}

// -----------------------------------------------------------------------------
// ValidationError Tests
// -----------------------------------------------------------------------------

func TestValidationError(t *testing.T) {
	err := NewValidationError("duplicate run id").
		WithField("prediction_runs[1].id").
		WithValue("standard")

	want := "prediction_runs[1].id: duplicate run id (got: standard)"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}

	withCause := NewValidationError("unknown source").WithCause(ErrUnknownRunID)
	if !errors.Is(withCause, ErrUnknownRunID) {
		t.Error("errors.Is(err, ErrUnknownRunID) = false, want true")
	}
}

// -----------------------------------------------------------------------------
// Classification Tests
// -----------------------------------------------------------------------------

func TestIsUserFacing(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("boom"), false},
		{"step error", NewStepError("failed", nil), true},
		{"validation", NewValidationError("bad"), true},
		{"wrapped config", fmt.Errorf("load: %w", NewConfigError("bad", nil)), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsUserFacing(tt.err); got != tt.want {
				t.Errorf("IsUserFacing() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetSeverity(t *testing.T) {
	if got := GetSeverity(nil); got != SeverityDebug {
		t.Errorf("GetSeverity(nil) = %v, want debug", got)
	}
	if got := GetSeverity(errors.New("x")); got != SeverityError {
		t.Errorf("GetSeverity(plain) = %v, want error", got)
	}
	if got := GetSeverity(NewArchiveError("x", nil)); got != SeverityCritical {
		t.Errorf("GetSeverity(archive) = %v, want critical", got)
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"success", nil, ExitOK},
		{"runs failed", ErrRunsFailed, ExitRunsFailed},
		{"config parse", NewConfigError("bad", ErrConfigParse), ExitConfig},
		{"unknown run", fmt.Errorf("select: %w", ErrUnknownRunID), ExitConfig},
		{"usage", fmt.Errorf("skip-step: %w", ErrUsage), ExitConfig},
		{"config changed", ErrConfigChanged, ExitFatal},
		{"archive", NewArchiveError("x", nil), ExitFatal},
		{"interrupted", fmt.Errorf("run: %w", context.Canceled), ExitInterrupted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCode(tt.err); got != tt.want {
				t.Errorf("ExitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestWrap(t *testing.T) {
	if Wrap(nil, "ctx") != nil {
		t.Error("Wrap(nil) should return nil")
	}
	err := Wrapf(ErrStateCorrupted, "load %s", "pipeline_state.json")
	if !errors.Is(err, ErrStateCorrupted) {
		t.Error("Wrapf lost the cause")
	}
	if err.Error() != "load pipeline_state.json: state file corrupted" {
		t.Errorf("Error() = %q", err.Error())
	}
}
