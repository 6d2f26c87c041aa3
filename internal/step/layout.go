package step

import (
	"path/filepath"

	"github.com/westberg-lab/foldrun/internal/runconfig"
)

// Layout maps directory keys to filesystem paths for one run.
type Layout struct {
	// Root prefixes every directory; empty in legacy mode.
	Root string
	dirs map[string]string
}

// NewLayout resolves the directories of an effective configuration. When
// root is non-empty each directory is placed under it.
func NewLayout(cfg runconfig.Value, root string) Layout {
	l := Layout{Root: root, dirs: make(map[string]string)}
	for _, key := range runconfig.DirectoryKeys() {
		dir := runconfig.Directory(cfg, key)
		if root != "" && !filepath.IsAbs(dir) {
			dir = filepath.Join(root, dir)
		}
		l.dirs[key] = dir
	}
	return l
}

// RunRoot returns the layout root for a run: runsDir/runID in run-matrix
// mode, empty in legacy mode.
func RunRoot(runsDir, runID string, legacy bool) string {
	if legacy {
		return ""
	}
	return filepath.Join(runsDir, runID)
}

// Dir returns the path for a directory key.
func (l Layout) Dir(key string) string {
	return l.dirs[key]
}

// Dirs returns every directory in canonical key order.
func (l Layout) Dirs() []string {
	out := make([]string, 0, len(l.dirs))
	for _, key := range runconfig.DirectoryKeys() {
		out = append(out, l.dirs[key])
	}
	return out
}

// OutputDir returns the directory a step writes its results to.
func (l Layout) OutputDir(name string) string {
	switch name {
	case ChaiFasta:
		return l.Dir(runconfig.DirChaiFasta)
	case ChaiRun:
		return l.Dir(runconfig.DirChaiOutput)
	case BoltzYAML:
		return l.Dir(runconfig.DirBoltzYAML)
	case BoltzRun:
		return l.Dir(runconfig.DirBoltzOutput)
	case CombineCIF:
		return l.Dir(runconfig.DirPSEFiles)
	case RMSDExtract, PLDDTExtract:
		return l.Dir(runconfig.DirCSV)
	case RMSDPlot, PLDDTPlot:
		return l.Dir(runconfig.DirPlots)
	default:
		return ""
	}
}
