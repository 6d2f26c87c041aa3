// Package step defines the static pipeline topology and executes single
// steps against their external collaborators.
package step

import (
	"fmt"
	"slices"

	"github.com/westberg-lab/foldrun/internal/errors"
	"github.com/westberg-lab/foldrun/internal/runconfig"
)

// Phase groups steps by pipeline stage.
type Phase int

const (
	PhaseArchive Phase = iota
	PhasePrediction
	PhaseAnalysis
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case PhaseArchive:
		return "archive"
	case PhasePrediction:
		return "prediction"
	case PhaseAnalysis:
		return "analysis"
	default:
		return "unknown"
	}
}

// Step names in static pipeline order.
const (
	Archive      = "archive"
	ChaiFasta    = "chai-fasta"
	ChaiRun      = "chai-run"
	BoltzYAML    = "boltz-yaml"
	BoltzRun     = "boltz-run"
	CombineCIF   = "combine-cif"
	RMSDExtract  = "rmsd-extract"
	RMSDPlot     = "rmsd-plot"
	PLDDTExtract = "plddt-extract"
	PLDDTPlot    = "plddt-plot"
)

var phases = map[string]Phase{
	Archive:      PhaseArchive,
	ChaiFasta:    PhasePrediction,
	ChaiRun:      PhasePrediction,
	BoltzYAML:    PhasePrediction,
	BoltzRun:     PhasePrediction,
	CombineCIF:   PhaseAnalysis,
	RMSDExtract:  PhaseAnalysis,
	RMSDPlot:     PhaseAnalysis,
	PLDDTExtract: PhaseAnalysis,
	PLDDTPlot:    PhaseAnalysis,
}

// Names returns every step name in static order.
func Names() []string {
	return []string{
		Archive,
		ChaiFasta, ChaiRun, BoltzYAML, BoltzRun,
		CombineCIF, RMSDExtract, RMSDPlot, PLDDTExtract, PLDDTPlot,
	}
}

// Known reports whether name is a pipeline step.
func Known(name string) bool {
	_, ok := phases[name]
	return ok
}

// ValidateNames fails with ErrUsage for the first unknown step name.
func ValidateNames(names []string) error {
	for _, name := range names {
		if !Known(name) {
			return fmt.Errorf("unknown step %q (valid: %v): %w", name, Names(), errors.ErrUsage)
		}
	}
	return nil
}

// Step is one scheduled unit of work.
type Step struct {
	Name  string
	Phase Phase
	// RunID is the owning run, empty for the archive step.
	RunID string
}

// Key returns the "<run>/<step>" form used in logs and retry bookkeeping.
func (s Step) Key() string {
	if s.RunID == "" {
		return s.Name
	}
	return s.RunID + "/" + s.Name
}

func newStep(name, runID string) Step {
	return Step{Name: name, Phase: phases[name], RunID: runID}
}

// ArchiveStep returns the archive step.
func ArchiveStep() Step {
	return newStep(Archive, "")
}

// ForPrediction returns the prediction steps of a run in static order. CHAI
// steps are included when methods.use_chai is set in cfg and Boltz steps
// when methods.use_boltz is set.
func ForPrediction(runID string, cfg runconfig.Value) []Step {
	var steps []Step
	if cfg.BoolAt(true, "methods", "use_chai") {
		steps = append(steps, newStep(ChaiFasta, runID), newStep(ChaiRun, runID))
	}
	if cfg.BoolAt(true, "methods", "use_boltz") {
		steps = append(steps, newStep(BoltzYAML, runID), newStep(BoltzRun, runID))
	}
	return steps
}

// Metric returns the analysis metric whose chain the step belongs to, or
// "" for steps every metric depends on.
func (s Step) Metric() runconfig.Metric {
	switch s.Name {
	case RMSDExtract, RMSDPlot:
		return runconfig.MetricRMSD
	case PLDDTExtract, PLDDTPlot:
		return runconfig.MetricPLDDT
	default:
		return ""
	}
}

// ForAnalysis returns the analysis steps of a run: structural alignment
// followed by extraction and plotting for each requested metric.
func ForAnalysis(run runconfig.RunDefinition) []Step {
	steps := []Step{newStep(CombineCIF, run.ID)}
	if run.HasMetric(runconfig.MetricRMSD) {
		steps = append(steps, newStep(RMSDExtract, run.ID), newStep(RMSDPlot, run.ID))
	}
	if run.HasMetric(runconfig.MetricPLDDT) {
		steps = append(steps, newStep(PLDDTExtract, run.ID), newStep(PLDDTPlot, run.ID))
	}
	return steps
}

// Without removes steps whose names are in skip, preserving order.
func Without(steps []Step, skip []string) []Step {
	if len(skip) == 0 {
		return steps
	}
	out := make([]Step, 0, len(steps))
	for _, s := range steps {
		if !slices.Contains(skip, s.Name) {
			out = append(out, s)
		}
	}
	return out
}

// StepNames returns the names of steps.
func StepNames(steps []Step) []string {
	names := make([]string, len(steps))
	for i, s := range steps {
		names[i] = s.Name
	}
	return names
}
