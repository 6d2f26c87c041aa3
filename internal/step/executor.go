package step

import (
	"context"
	"time"

	"github.com/westberg-lab/foldrun/internal/runconfig"
)

// Source is a prediction run consumed by an analysis step.
type Source struct {
	RunID  string
	Config runconfig.Value
	Layout Layout
}

// Invocation is everything a collaborator needs to run one step.
type Invocation struct {
	Step Step
	// Config is the effective configuration of the owning run.
	Config runconfig.Value
	// Layout resolves the owning run's directories.
	Layout Layout
	// Sources lists the prediction runs an analysis step reads from.
	Sources []Source

	AnalysisType string
	MotifID      string

	// Attempt is the 1-based attempt number within this invocation.
	Attempt int
	Quiet   bool
}

// OutputDir returns the directory the step writes to.
func (inv Invocation) OutputDir() string {
	return inv.Layout.OutputDir(inv.Step.Name)
}

// Outcome is the result of executing one step.
type Outcome struct {
	Succeeded bool
	// Reason is a human-readable failure reason, empty on success.
	Reason string
	// AlreadyComplete is set when the collaborator found valid existing
	// output and the external action was not invoked.
	AlreadyComplete bool
	// Interrupted is set when the step was stopped by cancellation.
	Interrupted bool

	ExitCode          int
	Duration          time.Duration
	LogPath           string
	OutputFingerprint string
}

// Failed returns a failed Outcome with the given reason.
func Failed(reason string) Outcome {
	return Outcome{Reason: reason, ExitCode: -1}
}

// Executor runs a single step. Implementations perform exactly one external
// action per call and never retry internally.
type Executor interface {
	Execute(ctx context.Context, inv Invocation) Outcome
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, inv Invocation) Outcome

// Execute calls f(ctx, inv).
func (f ExecutorFunc) Execute(ctx context.Context, inv Invocation) Outcome {
	return f(ctx, inv)
}
