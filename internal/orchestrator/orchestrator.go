// Package orchestrator expands the run matrix of a configuration document
// into ordered steps and drives them through a step executor. It applies
// the resume policy, isolates failures to the run they occur in, gates
// analysis runs on their source prediction runs and persists state after
// every step transition.
package orchestrator

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/westberg-lab/foldrun/internal/archive"
	"github.com/westberg-lab/foldrun/internal/errors"
	"github.com/westberg-lab/foldrun/internal/logging"
	"github.com/westberg-lab/foldrun/internal/orchestrator/retry"
	"github.com/westberg-lab/foldrun/internal/runconfig"
	"github.com/westberg-lab/foldrun/internal/state"
	"github.com/westberg-lab/foldrun/internal/step"
	"github.com/westberg-lab/foldrun/internal/util"
)

// Archiver runs the archive phase.
type Archiver interface {
	Run(ctx context.Context) (*archive.Result, error)
}

// Orchestrator runs one pipeline invocation.
type Orchestrator struct {
	doc      *runconfig.Document
	store    *state.Store
	executor step.Executor
	archiver Archiver // nil disables the archive phase
	opts     Options
	logger   *logging.Logger
	console  *logging.Console
	retries  *retry.Manager

	fingerprint func(doc, overrides runconfig.Value) string
	now         func() time.Time
}

// New creates an Orchestrator. archiver may be nil, logger and console
// default to no-ops.
func New(doc *runconfig.Document, store *state.Store, executor step.Executor, archiver Archiver, opts Options, logger *logging.Logger, console *logging.Console) *Orchestrator {
	if logger == nil {
		logger = logging.NopLogger()
	}
	if console == nil {
		console = logging.NewConsole(io.Discard, true)
	}
	return &Orchestrator{
		doc:         doc,
		store:       store,
		executor:    executor,
		archiver:    archiver,
		opts:        opts,
		logger:      logger.WithInvocation(opts.InvocationID),
		console:     console,
		retries:     retry.NewManager(opts.MaxAttempts),
		fingerprint: state.Fingerprint,
		now:         time.Now,
	}
}

// Run executes the invocation. The returned summary is non-nil even when
// an error is returned. Errors are ErrRunsFailed when any attempted run
// failed, ErrConfigChanged, ErrArchiveFailure, a configuration or selection
// error raised before any step ran, or the context error on cancellation.
func (o *Orchestrator) Run(ctx context.Context) (*Summary, error) {
	fp := o.fingerprint(o.doc.Raw, o.fingerprintOverrides())
	summary := &Summary{
		InvocationID: o.opts.InvocationID,
		Fingerprint:  fp,
		DryRun:       o.opts.DryRun,
	}

	p, err := expand(o.doc, o.opts)
	if err != nil {
		return summary, err
	}

	st, err := o.prepareState(fp)
	if err != nil {
		return summary, err
	}

	if o.opts.DryRun {
		summary.Plan = o.dryRun(p, st)
		return summary, nil
	}

	o.logger.Info("pipeline started",
		"fingerprint", fp,
		"prediction_runs", len(p.predictions),
		"analysis_runs", len(p.analyses),
		"resume", o.opts.Resume,
	)

	if err := o.archivePhase(ctx, st, summary); err != nil {
		o.logger.Error("archive phase failed", "error", err.Error())
		return summary, err
	}

	outcomes := make(map[string]RunStatus)
	for _, rp := range p.predictions {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		res, err := o.executeRun(ctx, st, rp, step.PhasePrediction)
		summary.Runs = append(summary.Runs, res)
		outcomes[rp.run.ID] = res.Status
		if err != nil {
			return summary, err
		}
	}

	for _, ap := range p.analyses {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		if unmet := unmetSources(st, p, ap, outcomes); len(unmet) > 0 {
			reason := fmt.Sprintf("unmet dependency: %s", strings.Join(unmet, ", "))
			o.console.Warnf("Skipping analysis run %s: %s", ap.run.ID, reason)
			o.logger.WithRun(ap.run.ID).Warn("analysis run skipped",
				"reason", reason,
				"error", errors.ErrUnmetDependency.Error(),
			)
			summary.Runs = append(summary.Runs, RunResult{
				RunID:  ap.run.ID,
				Phase:  step.PhaseAnalysis.String(),
				Status: RunSkipped,
				Reason: reason,
			})
			continue
		}
		res, err := o.executeRun(ctx, st, ap, step.PhaseAnalysis)
		summary.Runs = append(summary.Runs, res)
		if err != nil {
			return summary, err
		}
	}

	failed := summary.FailedRuns()
	o.logger.Info("pipeline finished",
		"completed", summary.count(RunCompleted),
		"failed", failed,
		"skipped", summary.count(RunSkipped),
		"retried_steps", o.retries.GetRetriedSteps(),
	)
	if failed > 0 {
		return summary, fmt.Errorf("%d run(s) failed: %w", failed, errors.ErrRunsFailed)
	}
	return summary, nil
}

// fingerprintOverrides returns the CLI overrides with the settings that
// decide where run outputs live. Moving runs_dir makes recorded results
// stale, so it must change the fingerprint. Legacy layouts ignore runs_dir.
func (o *Orchestrator) fingerprintOverrides() runconfig.Value {
	if o.doc.Legacy {
		return o.opts.Overrides
	}
	settings := runconfig.Mapping(map[string]runconfig.Value{
		"settings": runconfig.Mapping(map[string]runconfig.Value{
			"runs_dir": runconfig.String(filepath.Clean(o.opts.RunsDir)),
		}),
	})
	return runconfig.Merge(o.opts.Overrides, settings)
}

// prepareState returns the state this invocation records into. A fresh
// state replaces the on-disk file immediately; a resumed one is the prior
// state, which must carry the current fingerprint unless force-resume is set.
func (o *Orchestrator) prepareState(fp string) (*state.PipelineState, error) {
	if o.opts.CleanState && !o.opts.DryRun {
		if err := o.store.Reset(); err != nil {
			return nil, err
		}
		o.console.Infof("Deleted state file %s", o.store.Path())
	}

	fresh := state.New(fp, o.opts.InvocationID, o.now())
	if !o.opts.Resume || o.opts.CleanState {
		return o.start(fresh)
	}

	prior, err := o.store.Load()
	if err != nil {
		return nil, err
	}
	if prior.IsEmpty() {
		o.console.Infof("No previous state at %s, starting from scratch", o.store.Path())
		return o.start(fresh)
	}

	if prior.ConfigFingerprint != fp {
		if !o.opts.ForceResume {
			return nil, fmt.Errorf("state %s was recorded for configuration %s, current configuration is %s; rerun without --resume or with --force-resume: %w",
				o.store.Path(), util.ShortHash(prior.ConfigFingerprint, 12), util.ShortHash(fp, 12), errors.ErrConfigChanged)
		}
		o.console.Warnf("Configuration changed since %s was written, resuming anyway (--force-resume)", o.store.Path())
		o.logger.Warn("resuming under changed configuration",
			"previous_fingerprint", prior.ConfigFingerprint,
			"fingerprint", fp,
		)
		prior.ConfigFingerprint = fp
	}
	prior.InvocationID = o.opts.InvocationID

	counts := prior.Counts()
	o.console.Infof("Resuming from %s: %d step(s) already succeeded", o.store.Path(), counts[state.StatusSucceeded])
	return prior, nil
}

func (o *Orchestrator) start(st *state.PipelineState) (*state.PipelineState, error) {
	if o.opts.DryRun {
		return st, nil
	}
	if err := o.store.Save(st); err != nil {
		return nil, err
	}
	return st, nil
}

// archivePhase runs the archiver unless the archive step is skipped. When
// resuming, previously succeeded work is never archived away.
func (o *Orchestrator) archivePhase(ctx context.Context, st *state.PipelineState, summary *Summary) error {
	switch {
	case o.archiver == nil:
		return nil
	case o.opts.skipped(step.Archive):
		o.console.Infof("Skipping: archive (--skip-step %s)", step.Archive)
		return nil
	case o.opts.Resume && st.Counts()[state.StatusSucceeded] > 0:
		o.console.Infof("Skipping: archive (resuming previous outputs)")
		return nil
	}

	s := step.ArchiveStep()
	o.console.Infof("Starting: archive previous outputs")
	if err := o.store.RecordStart(st, s.Name, s.RunID); err != nil {
		return err
	}

	res, err := o.archiver.Run(ctx)
	summary.Archive = res
	if err != nil {
		if ferr := o.store.RecordFinish(st, s.Name, s.RunID, state.StatusFailed, err.Error(), ""); ferr != nil {
			o.logger.Error("failed to record archive failure", "error", ferr.Error())
		}
		if !errors.Is(err, errors.ErrArchiveFailure) {
			err = errors.NewArchiveError("archive phase", err)
		}
		o.console.Errorf("Failed: archive: %v", err)
		return err
	}

	o.console.Infof("Completed: archive previous outputs")
	return o.store.RecordFinish(st, s.Name, s.RunID, state.StatusSucceeded, "", "")
}

// executeRun runs the steps of one run in order. A failed step ends the run
// as Failed without affecting other runs. In analysis runs each metric's
// extract and plot steps form an independent chain: a failed chain marks the
// run Failed but the other metrics still run. The returned error is reserved
// for conditions that stop the whole invocation: cancellation or a state
// file that cannot be written.
func (o *Orchestrator) executeRun(ctx context.Context, st *state.PipelineState, rp runPlan, phase step.Phase) (res RunResult, err error) {
	res = RunResult{RunID: rp.run.ID, Phase: phase.String(), Status: RunRunning}
	logger := o.logger.WithPhase(phase.String()).WithRun(rp.run.ID)
	start := o.now()
	defer func() { res.Duration = o.now().Sub(start) }()

	steps := step.Without(rp.steps, o.opts.SkipSteps)
	for _, s := range rp.steps {
		if o.opts.skipped(s.Name) {
			res.SkippedSteps = append(res.SkippedSteps, s.Name)
			o.console.Infof("Skipping: %s (--skip-step %s)", s.Key(), s.Name)
		}
	}

	var pending []string
	for _, s := range steps {
		if !st.Succeeded(s.Name, s.RunID) {
			pending = append(pending, s.Name)
		}
	}
	if err := o.store.Schedule(st, rp.run.ID, pending); err != nil {
		res.Status = RunFailed
		res.Reason = err.Error()
		return res, err
	}

	o.console.Infof("Starting %s run %s (%d step(s))", phase, rp.run.ID, len(steps))
	logger.Info("run started", "steps", step.StepNames(steps))

	// A failed metric chain stops only its own remaining steps.
	failedMetrics := make(map[runconfig.Metric]bool)
	for _, s := range steps {
		if m := s.Metric(); m != "" && failedMetrics[m] {
			o.console.Warnf("Skipping: %s (%s chain failed)", s.Key(), m)
			continue
		}
		if st.Succeeded(s.Name, s.RunID) {
			res.Resumed++
			o.console.Infof("Skipping: %s (already succeeded)", s.Key())
			continue
		}
		if err := ctx.Err(); err != nil {
			res.Status = RunFailed
			res.Reason = "interrupted"
			return res, err
		}

		inv := step.Invocation{
			Step:         s,
			Config:       rp.config,
			Layout:       rp.layout,
			Sources:      rp.sources,
			AnalysisType: rp.run.AnalysisType,
			MotifID:      rp.run.MotifID,
			Quiet:        o.opts.Quiet,
		}
		outcome, err := o.runStep(ctx, st, inv)
		if err != nil {
			res.Status = RunFailed
			res.FailedStep = s.Name
			res.Reason = err.Error()
			return res, err
		}
		if !outcome.Succeeded {
			if res.Status != RunFailed {
				res.Status = RunFailed
				res.FailedStep = s.Name
				res.Reason = outcome.Reason
			}
			logger.Error("step failed", "step", s.Name, "reason", outcome.Reason)
			if outcome.Interrupted {
				if err := ctx.Err(); err != nil {
					return res, err
				}
				return res, context.Canceled
			}
			metric := s.Metric()
			if metric == "" {
				break
			}
			failedMetrics[metric] = true
			continue
		}
		res.Executed++
	}

	if res.Status == RunFailed {
		logger.Error("run failed", "step", res.FailedStep, "reason", res.Reason)
		return res, nil
	}
	res.Status = RunCompleted
	o.console.Infof("Completed %s run %s", phase, rp.run.ID)
	logger.Info("run completed", "executed", res.Executed, "resumed", res.Resumed)
	return res, nil
}

// runStep executes one step, retrying failures while attempts remain. Every
// attempt is recorded Running before the executor is called and terminal
// after it returns. Only state persistence errors are returned.
func (o *Orchestrator) runStep(ctx context.Context, st *state.PipelineState, inv step.Invocation) (step.Outcome, error) {
	s := inv.Step
	key := s.Key()
	logger := o.logger.WithPhase(s.Phase.String()).WithRun(s.RunID).WithStep(s.Name)

	for {
		inv.Attempt = o.retries.Begin(key)
		if err := o.store.RecordStart(st, s.Name, s.RunID); err != nil {
			return step.Outcome{}, err
		}
		if inv.Attempt == 1 {
			o.console.Infof("Starting: %s", key)
		} else {
			o.console.Infof("Starting: %s (attempt %d/%d)", key, inv.Attempt, o.retries.MaxAttempts())
		}

		outcome := o.executor.Execute(ctx, inv)
		if !outcome.Succeeded && ctx.Err() != nil {
			outcome.Interrupted = true
		}
		if outcome.Interrupted {
			outcome.Succeeded = false
			outcome.Reason = "interrupted"
		}

		if outcome.Succeeded {
			if err := o.store.RecordFinish(st, s.Name, s.RunID, state.StatusSucceeded, "", outcome.OutputFingerprint); err != nil {
				return outcome, err
			}
			o.retries.RecordSuccess(key)
			if outcome.AlreadyComplete {
				o.console.Infof("Completed: %s (output already present)", key)
			} else {
				o.console.Infof("Completed: %s", key)
			}
			return outcome, nil
		}

		if outcome.Reason == "" {
			outcome.Reason = "step failed"
		}
		if err := o.store.RecordFinish(st, s.Name, s.RunID, state.StatusFailed, outcome.Reason, ""); err != nil {
			return outcome, err
		}
		o.retries.RecordFailure(key, outcome.Reason, outcome.Interrupted)

		stepErr := errors.NewStepError(outcome.Reason, errors.ErrStepFailed).
			WithStep(s.Name).
			WithRun(s.RunID).
			WithAttempt(inv.Attempt)
		logger.Warn("step attempt failed", "error", stepErr.Error(), "exit_code", outcome.ExitCode, "log", outcome.LogPath)

		if !o.retries.ShouldRetry(key) {
			o.console.Errorf("Failed: %s: %s", key, outcome.Reason)
			return outcome, nil
		}
		o.console.Warnf("Failed: %s: %s, retrying", key, outcome.Reason)
	}
}

// unmetSources returns the sources of an analysis run that are not
// satisfied. A source attempted in this invocation must have completed; a
// source that was not attempted must have every step recorded Succeeded.
func unmetSources(st *state.PipelineState, p *plan, ap runPlan, outcomes map[string]RunStatus) []string {
	var unmet []string
	for _, src := range ap.sources {
		if status, attempted := outcomes[src.RunID]; attempted {
			if status != RunCompleted {
				unmet = append(unmet, src.RunID)
			}
			continue
		}
		for _, s := range p.byID[src.RunID].steps {
			if !st.Succeeded(s.Name, s.RunID) {
				unmet = append(unmet, src.RunID)
				break
			}
		}
	}
	return unmet
}
