package orchestrator

import (
	"github.com/westberg-lab/foldrun/internal/archive"
	"github.com/westberg-lab/foldrun/internal/runconfig"
	"github.com/westberg-lab/foldrun/internal/step"
)

// ArchiveTargets returns the directories the archive phase clears and the
// directories it recreates. In legacy mode these are the configured output
// directories; in run-matrix mode the whole runs directory is archived.
func ArchiveTargets(doc *runconfig.Document, overrides runconfig.Value, runsDir string) (dirs, recreate []string) {
	if !doc.Legacy {
		return []string{runsDir}, []string{runsDir}
	}
	layout := step.NewLayout(doc.Effective(nil, nil, overrides), "")
	return archive.TopLevel(layout.Dirs()), layout.Dirs()
}
