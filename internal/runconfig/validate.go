package runconfig

import (
	"fmt"
	"slices"
	"strings"

	"github.com/westberg-lab/foldrun/internal/errors"
)

// ValidationErrors is a collection of document validation errors.
type ValidationErrors []*errors.ValidationError

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

// Unwrap exposes the individual errors to errors.Is and errors.As.
func (e ValidationErrors) Unwrap() []error {
	out := make([]error, len(e))
	for i, err := range e {
		out[i] = err
	}
	return out
}

// Validate checks run ids, source references, metrics and motif references.
// It returns nil or a ValidationErrors holding every problem found.
func (d *Document) Validate() error {
	errs := append(ValidationErrors(nil), d.problems...)

	errs = append(errs, duplicateIDs(d.PredictionRuns, "prediction_runs")...)
	errs = append(errs, duplicateIDs(d.AnalysisRuns, "analysis_runs")...)

	motifs := d.Motifs()
	_, motifsDeclared := d.Global.Field("motifs")

	for i, run := range d.AnalysisRuns {
		field := fmt.Sprintf("analysis_runs[%d]", i)
		if len(run.SourcePredictions) == 0 {
			errs = append(errs, errors.NewValidationError("at least one source prediction is required").
				WithField(field+".source_predictions").WithValue(run.ID))
		}
		for _, source := range run.SourcePredictions {
			if _, ok := d.Run(Prediction, source); !ok {
				errs = append(errs, errors.NewValidationError("source references an unknown prediction run").
					WithField(field+".source_predictions").
					WithValue(source).
					WithCause(errors.ErrUnknownRunID))
			}
		}
		if len(run.Metrics) == 0 {
			errs = append(errs, errors.NewValidationError("no valid metrics requested").
				WithField(field+".metrics").WithValue(run.ID))
		}
		if run.MotifID != "" && motifsDeclared && !slices.Contains(motifs, run.MotifID) {
			errs = append(errs, errors.NewValidationError("motif_id is not declared under global.motifs").
				WithField(field+".motif_id").WithValue(run.MotifID))
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}

func duplicateIDs(runs []RunDefinition, key string) ValidationErrors {
	var errs ValidationErrors
	seen := make(map[string]bool, len(runs))
	for i, run := range runs {
		if seen[run.ID] {
			errs = append(errs, errors.NewValidationError("duplicate run id").
				WithField(fmt.Sprintf("%s[%d].id", key, i)).
				WithValue(run.ID))
		}
		seen[run.ID] = true
	}
	return errs
}
