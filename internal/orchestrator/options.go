package orchestrator

import (
	"slices"

	"github.com/westberg-lab/foldrun/internal/runconfig"
)

// Options controls one orchestrator invocation. They mirror the flags of
// "foldrun run".
type Options struct {
	// InvocationID tags state and logs of this invocation.
	InvocationID string

	// Resume consults the prior state and skips steps recorded Succeeded.
	Resume bool
	// ForceResume resumes even when the configuration fingerprint changed.
	ForceResume bool
	// CleanState deletes the on-disk state before anything else.
	CleanState bool

	// SkipSteps lists step names never executed in this invocation.
	SkipSteps []string
	// PredictionRuns and AnalysisRuns restrict execution to the named runs.
	PredictionRuns []string
	AnalysisRuns   []string

	// Overrides are command-line configuration toggles, overlaid last on
	// every effective configuration. Null when none are set.
	Overrides runconfig.Value

	// RunsDir is the parent of per-run directories in run-matrix mode.
	RunsDir string
	// MaxAttempts is the number of attempts per step. Values below 1 mean 1.
	MaxAttempts int

	// DryRun plans the invocation without executing or persisting anything.
	DryRun bool
	// Quiet is passed to collaborators.
	Quiet bool
}

func (o Options) skipped(name string) bool {
	return slices.Contains(o.SkipSteps, name)
}
