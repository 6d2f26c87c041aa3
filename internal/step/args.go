package step

import (
	"path/filepath"
	"strconv"

	"github.com/westberg-lab/foldrun/internal/runconfig"
)

// scripts maps each step to its collaborator script under the scripts
// directory.
var scripts = map[string]string{
	ChaiFasta:    "generate_chai_fasta.py",
	ChaiRun:      "run_chai_apptainer.py",
	BoltzYAML:    "generate_boltz_yaml.py",
	BoltzRun:     "run_boltz_apptainer.py",
	CombineCIF:   "combine_cif_files.py",
	RMSDExtract:  "motif_alignment.py",
	RMSDPlot:     "plot_rmsd.py",
	PLDDTExtract: "extract_motif_plddt.py",
	PLDDTPlot:    "plot_plddt.py",
}

// Script returns the collaborator script name for a step.
func Script(name string) string {
	return scripts[name]
}

// Arguments returns the step-specific arguments for inv, derived from the
// effective configuration and layout.
func Arguments(inv Invocation) []string {
	cfg := inv.Config
	l := inv.Layout
	useMSA := cfg.BoolAt(true, "methods", "use_msa")

	var args []string
	switch inv.Step.Name {
	case ChaiFasta:
		args = []string{"--output-dir", l.Dir(runconfig.DirChaiFasta)}

	case ChaiRun:
		args = []string{"--input", l.Dir(runconfig.DirChaiFasta), "--output", l.Dir(runconfig.DirChaiOutput)}
		if useMSA {
			args = append(args, "--use-msa")
			if cfg.BoolAt(false, "methods", "use_msa_dir") {
				args = append(args, "--use-msa-dir")
			}
		}
		args = appendQuiet(args, inv.Quiet)

	case BoltzYAML:
		args = []string{"--output-dir", l.Dir(runconfig.DirBoltzYAML)}
		if useMSA {
			args = append(args, "--use-msa")
		}

	case BoltzRun:
		args = []string{"--input", l.Dir(runconfig.DirBoltzYAML), "--output", l.Dir(runconfig.DirBoltzOutput)}
		if useMSA {
			args = append(args, "--use-msa")
		}
		args = appendQuiet(args, inv.Quiet)

	case CombineCIF:
		args = appendSourceOutputs(nil, inv.Sources)
		args = append(args,
			"--pse-files", l.Dir(runconfig.DirPSEFiles),
			"--model-idx", strconv.FormatInt(cfg.IntAt(4, "templates", "model_idx"), 10),
		)
		if tmpl := cfg.StringAt("", "templates", "default_template"); tmpl != "" {
			args = append(args, "--template", tmpl)
		}
		if !anySource(inv, "use_chai") {
			args = append(args, "--no-chai")
		}
		if !anySource(inv, "use_boltz") {
			args = append(args, "--no-boltz")
		}
		if !anySource(inv, "use_msa") {
			args = append(args, "--no-msa")
		}
		args = appendQuiet(args, inv.Quiet)

	case RMSDExtract:
		args = []string{"--pse-files", l.Dir(runconfig.DirPSEFiles), "--csv", l.Dir(runconfig.DirCSV)}
		args = appendAnalysis(args, inv)

	case RMSDPlot:
		args = []string{
			"--input", filepath.Join(l.Dir(runconfig.DirCSV), "rmsd_values.csv"),
			"--output", l.Dir(runconfig.DirPlots),
			"--pse-files", l.Dir(runconfig.DirPSEFiles),
			"--vmin", formatFloat(cfg.FloatAt(0.2, "visualization", "rmsd_vmin")),
			"--vmax", formatFloat(cfg.FloatAt(6.2, "visualization", "rmsd_vmax")),
		}
		args = appendAnalysis(args, inv)

	case PLDDTExtract:
		args = appendSourceOutputs(nil, inv.Sources)
		args = append(args, "--csv", l.Dir(runconfig.DirCSV))
		args = appendAnalysis(args, inv)

	case PLDDTPlot:
		args = []string{
			"--input", filepath.Join(l.Dir(runconfig.DirCSV), "plddt_values.csv"),
			"--output", l.Dir(runconfig.DirPlots),
		}
		args = appendAnalysis(args, inv)
	}
	return args
}

func appendQuiet(args []string, quiet bool) []string {
	if quiet {
		return append(args, "--quiet")
	}
	return args
}

func appendSourceOutputs(args []string, sources []Source) []string {
	for _, src := range sources {
		args = append(args,
			"--chai-output", src.Layout.Dir(runconfig.DirChaiOutput),
			"--boltz-output", src.Layout.Dir(runconfig.DirBoltzOutput),
		)
	}
	return args
}

func appendAnalysis(args []string, inv Invocation) []string {
	if inv.MotifID != "" {
		args = append(args, "--motif", inv.MotifID)
	}
	return append(args, "--analysis-run", inv.Step.RunID)
}

// anySource reports whether any source enables methods.<key>. Without
// sources the invocation's own configuration decides.
func anySource(inv Invocation, key string) bool {
	if len(inv.Sources) == 0 {
		return inv.Config.BoolAt(true, "methods", key)
	}
	for _, src := range inv.Sources {
		if src.Config.BoolAt(true, "methods", key) {
			return true
		}
	}
	return false
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
