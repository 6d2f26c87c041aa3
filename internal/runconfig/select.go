package runconfig

import (
	"fmt"
	"slices"

	"github.com/westberg-lab/foldrun/internal/errors"
)

// ListEnabledRuns returns, in declaration order, the enabled runs of kind.
// When explicitIDs is non-empty only runs named there are returned. An
// explicit id that names no declared run fails with ErrUnknownRunID.
func ListEnabledRuns(doc *Document, kind RunKind, explicitIDs []string) ([]RunDefinition, error) {
	for _, id := range explicitIDs {
		if _, ok := doc.Run(kind, id); !ok {
			return nil, fmt.Errorf("%s run %q: %w", kind, id, errors.ErrUnknownRunID)
		}
	}

	var runs []RunDefinition
	for _, run := range doc.Runs(kind) {
		if !run.Enabled {
			continue
		}
		if len(explicitIDs) > 0 && !slices.Contains(explicitIDs, run.ID) {
			continue
		}
		runs = append(runs, run)
	}
	return runs, nil
}

// SetEnabled overrides the enabled flag of a declared run.
func (d *Document) SetEnabled(kind RunKind, id string, enabled bool) error {
	runs := d.PredictionRuns
	if kind == Analysis {
		runs = d.AnalysisRuns
	}
	for i := range runs {
		if runs[i].ID == id {
			runs[i].Enabled = enabled
			return nil
		}
	}
	return fmt.Errorf("%s run %q: %w", kind, id, errors.ErrUnknownRunID)
}
