// Package archive moves the outputs of a previous pipeline execution out of
// the way before a new one starts. Non-empty output directories and result
// files are moved into a timestamped archive directory (or deleted), then
// fresh directories are created.
package archive

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/westberg-lab/foldrun/internal/errors"
	"github.com/westberg-lab/foldrun/internal/logging"
)

// DefaultResultFiles are loose result files produced by earlier pipeline
// versions in the project directory.
var DefaultResultFiles = []string{
	"rmsd_values.csv",
	"plddt_values.csv",
	"rmsd_heatmap.png",
	"plddt_heatmap.png",
}

// Options configures an Archiver.
type Options struct {
	// BaseDir is the project directory relative paths are resolved against.
	BaseDir string
	// Dirs are the output directories to archive or delete.
	Dirs []string
	// Files are loose result files to archive or delete.
	Files []string
	// Recreate lists directories created fresh afterwards.
	Recreate []string
	// Prefix names the archive directory: <prefix><YYYYmmdd_HHMMSS>.
	Prefix string
	// Delete removes outputs instead of archiving them.
	Delete bool
}

// Result describes what an archive pass did.
type Result struct {
	// ArchiveDir is the created archive directory, empty when nothing was
	// archived or in delete mode.
	ArchiveDir string   `json:"archive_dir,omitempty"`
	Archived   []string `json:"archived,omitempty"`
	Deleted    []string `json:"deleted,omitempty"`
	Skipped    []string `json:"skipped,omitempty"`
	Created    []string `json:"created,omitempty"`
	// Uploaded counts files mirrored to remote storage.
	Uploaded int `json:"uploaded,omitempty"`
}

// Archiver performs the archive phase.
type Archiver struct {
	opts    Options
	mirror  *Mirror
	logger  *logging.Logger
	console *logging.Console
	now     func() time.Time
}

// New creates an Archiver. mirror may be nil.
func New(opts Options, mirror *Mirror, logger *logging.Logger, console *logging.Console) *Archiver {
	if opts.Prefix == "" {
		opts.Prefix = "archive_"
	}
	if logger == nil {
		logger = logging.NopLogger()
	}
	if console == nil {
		console = logging.NewConsole(io.Discard, true)
	}
	return &Archiver{opts: opts, mirror: mirror, logger: logger, console: console, now: time.Now}
}

// Run archives or deletes previous outputs and recreates fresh directories.
// Every failure is an ArchiveError.
func (a *Archiver) Run(ctx context.Context) (*Result, error) {
	res := &Result{}

	if a.opts.Delete {
		if err := a.deleteAll(res); err != nil {
			return res, err
		}
	} else {
		if err := a.archiveAll(res); err != nil {
			return res, err
		}
		if res.ArchiveDir != "" && a.mirror != nil {
			n, err := a.mirror.Sync(ctx, a.path(res.ArchiveDir), res.ArchiveDir)
			res.Uploaded = n
			if err != nil {
				return res, errors.NewArchiveError("mirror archive to remote storage", err).WithTarget(res.ArchiveDir)
			}
			a.console.Infof("Mirrored %d files from %s", n, res.ArchiveDir)
		}
	}

	for _, dir := range a.opts.Recreate {
		if err := os.MkdirAll(a.path(dir), 0755); err != nil {
			return res, errors.NewArchiveError("create directory", err).WithTarget(dir)
		}
		res.Created = append(res.Created, dir)
	}

	a.logger.Info("archive phase finished",
		"archive_dir", res.ArchiveDir,
		"archived", len(res.Archived),
		"deleted", len(res.Deleted),
		"skipped", len(res.Skipped),
		"uploaded", res.Uploaded,
	)
	return res, nil
}

func (a *Archiver) archiveAll(res *Result) error {
	var targets []string
	for _, dir := range a.opts.Dirs {
		empty, err := a.isEmpty(dir)
		if err != nil {
			return errors.NewArchiveError("inspect directory", err).WithTarget(dir)
		}
		if empty {
			a.skip(res, dir)
			continue
		}
		targets = append(targets, dir)
	}

	var files []string
	for _, file := range a.opts.Files {
		info, err := os.Stat(a.path(file))
		if err != nil || info.IsDir() || info.Size() == 0 {
			a.skip(res, file)
			continue
		}
		files = append(files, file)
	}

	if len(targets) == 0 && len(files) == 0 {
		return nil
	}

	archiveDir, err := a.createArchiveDir()
	if err != nil {
		return err
	}
	res.ArchiveDir = archiveDir
	a.console.Infof("Created archive directory: %s", archiveDir)

	for _, dir := range targets {
		dest := filepath.Join(archiveDir, dir)
		if err := os.MkdirAll(filepath.Dir(a.path(dest)), 0755); err != nil {
			return errors.NewArchiveError("create archive subdirectory", err).WithTarget(dir)
		}
		if err := os.Rename(a.path(dir), a.path(dest)); err != nil {
			return errors.NewArchiveError("move directory", err).WithTarget(dir)
		}
		res.Archived = append(res.Archived, dir)
		a.console.Infof("Archived: %s -> %s", dir, dest)
	}

	for _, file := range files {
		dest := filepath.Join(archiveDir, filepath.Base(file))
		if err := os.Rename(a.path(file), a.path(dest)); err != nil {
			return errors.NewArchiveError("move file", err).WithTarget(file)
		}
		res.Archived = append(res.Archived, file)
		a.console.Infof("Archived: %s -> %s", file, dest)
	}
	return nil
}

func (a *Archiver) deleteAll(res *Result) error {
	for _, target := range append(append([]string(nil), a.opts.Dirs...), a.opts.Files...) {
		path := a.path(target)
		if _, err := os.Lstat(path); os.IsNotExist(err) {
			a.skip(res, target)
			continue
		}
		if err := os.RemoveAll(path); err != nil {
			return errors.NewArchiveError("delete", err).WithTarget(target)
		}
		res.Deleted = append(res.Deleted, target)
		a.console.Infof("Deleted: %s", target)
	}
	return nil
}

func (a *Archiver) skip(res *Result, target string) {
	res.Skipped = append(res.Skipped, target)
	a.logger.Debug("skipped archive target", "target", target)
}

// createArchiveDir creates <prefix><timestamp>, adding a numeric suffix when
// an archive from the same second exists.
func (a *Archiver) createArchiveDir() (string, error) {
	base := a.opts.Prefix + a.now().Format("20060102_150405")
	name := base
	for i := 1; ; i++ {
		err := os.Mkdir(a.path(name), 0755)
		if err == nil {
			return name, nil
		}
		if !os.IsExist(err) || i > 100 {
			return "", errors.NewArchiveError("create archive directory", err).WithTarget(name)
		}
		name = fmt.Sprintf("%s_%d", base, i)
	}
}

// isEmpty reports whether dir is missing or holds only empty files and
// empty subdirectories.
func (a *Archiver) isEmpty(dir string) (bool, error) {
	root := a.path(dir)
	if _, err := os.Stat(root); os.IsNotExist(err) {
		return true, nil
	}

	empty := true
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.Size() > 0 {
			empty = false
			return filepath.SkipAll
		}
		return nil
	})
	return empty, err
}

func (a *Archiver) path(rel string) string {
	if filepath.IsAbs(rel) || a.opts.BaseDir == "" {
		return rel
	}
	return filepath.Join(a.opts.BaseDir, rel)
}
