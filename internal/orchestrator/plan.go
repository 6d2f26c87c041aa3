package orchestrator

import (
	"fmt"

	"github.com/westberg-lab/foldrun/internal/errors"
	"github.com/westberg-lab/foldrun/internal/runconfig"
	"github.com/westberg-lab/foldrun/internal/step"
)

// runPlan is one run expanded into its effective configuration and steps.
type runPlan struct {
	run    runconfig.RunDefinition
	config runconfig.Value
	layout step.Layout
	// steps are the run's steps in static order, before --skip-step.
	steps []step.Step
	// sources are the resolved prediction runs of an analysis run.
	sources []step.Source
}

// plan is the expanded run matrix.
type plan struct {
	predictions []runPlan
	analyses    []runPlan
	// byID holds every declared prediction run, enabled or not, so analysis
	// sources outside the selection can still be resolved.
	byID map[string]runPlan
}

// expand builds the run matrix for doc. All configuration and selection
// errors surface here, before any side effect.
func expand(doc *runconfig.Document, opts Options) (*plan, error) {
	if err := step.ValidateNames(opts.SkipSteps); err != nil {
		return nil, err
	}

	preds, err := runconfig.ListEnabledRuns(doc, runconfig.Prediction, opts.PredictionRuns)
	if err != nil {
		return nil, err
	}
	analyses, err := runconfig.ListEnabledRuns(doc, runconfig.Analysis, opts.AnalysisRuns)
	if err != nil {
		return nil, err
	}

	p := &plan{byID: make(map[string]runPlan)}
	for _, run := range doc.Runs(runconfig.Prediction) {
		p.byID[run.ID] = predictionPlan(doc, run, opts)
	}
	for _, run := range preds {
		p.predictions = append(p.predictions, p.byID[run.ID])
	}

	for _, run := range analyses {
		ap, err := analysisPlan(doc, run, p.byID, opts)
		if err != nil {
			return nil, err
		}
		p.analyses = append(p.analyses, ap)
	}
	return p, nil
}

func predictionPlan(doc *runconfig.Document, run runconfig.RunDefinition, opts Options) runPlan {
	cfg := doc.Effective(&run, nil, opts.Overrides)
	return runPlan{
		run:    run,
		config: cfg,
		layout: step.NewLayout(cfg, step.RunRoot(opts.RunsDir, run.ID, doc.Legacy)),
		steps:  step.ForPrediction(run.ID, cfg),
	}
}

func analysisPlan(doc *runconfig.Document, run runconfig.RunDefinition, preds map[string]runPlan, opts Options) (runPlan, error) {
	cfg := doc.Effective(nil, &run, opts.Overrides)
	ap := runPlan{
		run:    run,
		config: cfg,
		layout: step.NewLayout(cfg, step.RunRoot(opts.RunsDir, run.ID, doc.Legacy)),
		steps:  step.ForAnalysis(run),
	}
	for _, id := range run.SourcePredictions {
		src, ok := preds[id]
		if !ok {
			return runPlan{}, fmt.Errorf("analysis run %q source %q: %w", run.ID, id, errors.ErrUnknownRunID)
		}
		ap.sources = append(ap.sources, step.Source{
			RunID:  id,
			Config: doc.Effective(&src.run, &run, opts.Overrides),
			Layout: src.layout,
		})
	}
	return ap, nil
}
