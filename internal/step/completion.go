package step

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/westberg-lab/foldrun/internal/runconfig"
)

// Complete reports whether the collaborator of inv would find all of its
// output already present. Only the prediction tool steps have a completion
// check; every other step reports false. A step with no inputs is never
// complete.
func Complete(inv Invocation) (bool, error) {
	useMSA := inv.Config.BoolAt(true, "methods", "use_msa")
	switch inv.Step.Name {
	case ChaiRun:
		return chaiComplete(inv.Layout.Dir(runconfig.DirChaiFasta), inv.Layout.Dir(runconfig.DirChaiOutput), useMSA)
	case BoltzRun:
		return boltzComplete(inv.Layout.Dir(runconfig.DirBoltzYAML), inv.Layout.Dir(runconfig.DirBoltzOutput), useMSA)
	default:
		return false, nil
	}
}

// chaiComplete checks <out>/<folder>[_with_MSA]/<stem>/{outs.json,pred.model_idx_0.cif}
// for every <in>/<folder>/<stem>.fasta.
func chaiComplete(inputDir, outputDir string, useMSA bool) (bool, error) {
	return eachInput(inputDir, ".fasta", func(folder, stem string) bool {
		dir := filepath.Join(outputDir, msaSuffix(folder, useMSA), stem)
		return exists(filepath.Join(dir, "outs.json")) && exists(filepath.Join(dir, "pred.model_idx_0.cif"))
	})
}

// boltzComplete checks <out>/<folder>[_with_MSA]/boltz_results_<stem>[_with_MSA]/{predictions,processed}
// for every <in>/<folder>/<stem>.yaml.
func boltzComplete(inputDir, outputDir string, useMSA bool) (bool, error) {
	return eachInput(inputDir, ".yaml", func(folder, stem string) bool {
		dir := filepath.Join(outputDir, msaSuffix(folder, useMSA), "boltz_results_"+msaSuffix(stem, useMSA))
		return exists(filepath.Join(dir, "predictions")) && exists(filepath.Join(dir, "processed"))
	})
}

func msaSuffix(name string, useMSA bool) string {
	if useMSA {
		return name + "_with_MSA"
	}
	return name
}

// eachInput calls done for every input file with extension ext found one
// level below inputDir. It returns true only when at least one input exists
// and done holds for all of them.
func eachInput(inputDir, ext string, done func(folder, stem string) bool) (bool, error) {
	folders, err := os.ReadDir(inputDir)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read input directory: %w", err)
	}

	inputs := 0
	for _, folder := range folders {
		if !folder.IsDir() {
			continue
		}
		files, err := os.ReadDir(filepath.Join(inputDir, folder.Name()))
		if err != nil {
			return false, fmt.Errorf("failed to read input folder: %w", err)
		}
		for _, f := range files {
			if f.IsDir() || filepath.Ext(f.Name()) != ext {
				continue
			}
			inputs++
			if !done(folder.Name(), strings.TrimSuffix(f.Name(), ext)) {
				return false, nil
			}
		}
	}
	return inputs > 0, nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// OutputFingerprint hashes the relative paths and sizes of all files under
// dir. It is diagnostic only and returns "" when dir does not exist.
func OutputFingerprint(dir string) (string, error) {
	if dir == "" || !exists(dir) {
		return "", nil
	}

	var entries []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
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
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		entries = append(entries, fmt.Sprintf("%s\t%d", filepath.ToSlash(rel), info.Size()))
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to fingerprint %s: %w", dir, err)
	}

	sort.Strings(entries)
	sum := sha256.Sum256([]byte(strings.Join(entries, "\n")))
	return hex.EncodeToString(sum[:]), nil
}
