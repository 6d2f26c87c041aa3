package orchestrator

import (
	"github.com/westberg-lab/foldrun/internal/state"
	"github.com/westberg-lab/foldrun/internal/step"
)

// Planned step actions.
const (
	ActionExecute   = "execute"
	ActionSkipFlag  = "skip (--skip-step)"
	ActionSucceeded = "skip (already succeeded)"
	ActionResumed   = "skip (resuming previous outputs)"
	ActionUnmet     = "skip (unmet dependency)"
)

// PlannedStep is one line of a dry-run plan.
type PlannedStep struct {
	Phase  string `json:"phase"`
	RunID  string `json:"run_id,omitempty"`
	Step   string `json:"step"`
	Action string `json:"action"`
}

// dryRun lists the steps an invocation would execute, assuming every
// prediction run it executes completes.
func (o *Orchestrator) dryRun(p *plan, st *state.PipelineState) []PlannedStep {
	var out []PlannedStep

	if o.archiver != nil {
		action := ActionExecute
		switch {
		case o.opts.skipped(step.Archive):
			action = ActionSkipFlag
		case o.opts.Resume && st.Counts()[state.StatusSucceeded] > 0:
			action = ActionResumed
		}
		out = append(out, PlannedStep{Phase: step.PhaseArchive.String(), Step: step.Archive, Action: action})
	}

	outcomes := make(map[string]RunStatus)
	for _, rp := range p.predictions {
		out = append(out, o.planRun(rp, st, "")...)
		outcomes[rp.run.ID] = RunCompleted
	}
	for _, ap := range p.analyses {
		override := ""
		if len(unmetSources(st, p, ap, outcomes)) > 0 {
			override = ActionUnmet
		}
		out = append(out, o.planRun(ap, st, override)...)
	}
	return out
}

func (o *Orchestrator) planRun(rp runPlan, st *state.PipelineState, override string) []PlannedStep {
	out := make([]PlannedStep, 0, len(rp.steps))
	for _, s := range rp.steps {
		action := ActionExecute
		switch {
		case o.opts.skipped(s.Name):
			action = ActionSkipFlag
		case override != "":
			action = override
		case st.Succeeded(s.Name, s.RunID):
			action = ActionSucceeded
		}
		out = append(out, PlannedStep{Phase: s.Phase.String(), RunID: s.RunID, Step: s.Name, Action: action})
	}
	return out
}
