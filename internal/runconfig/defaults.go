package runconfig

// Directory keys under global.directories.
const (
	DirChaiFasta   = "chai_fasta"
	DirBoltzYAML   = "boltz_yaml"
	DirChaiOutput  = "chai_output"
	DirBoltzOutput = "boltz_output"
	DirPSEFiles    = "pse_files"
	DirPlots       = "plots"
	DirCSV         = "csv"
)

// DirectoryKeys lists the directory keys in their canonical order.
func DirectoryKeys() []string {
	return []string{DirChaiFasta, DirBoltzYAML, DirChaiOutput, DirBoltzOutput, DirPSEFiles, DirPlots, DirCSV}
}

// DefaultGlobal returns the built-in global configuration used when no
// document exists and as the base layer under every loaded document.
func DefaultGlobal() Value {
	return MustFromAny(map[string]any{
		"directories": map[string]any{
			DirChaiFasta:   "CHAI_FASTA",
			DirBoltzYAML:   "BOLTZ_YAML",
			DirChaiOutput:  "OUTPUT/CHAI",
			DirBoltzOutput: "OUTPUT/BOLTZ",
			DirPSEFiles:    "PSE_FILES",
			DirPlots:       "plots",
			DirCSV:         "csv",
		},
		"methods": map[string]any{
			"use_chai":    true,
			"use_boltz":   true,
			"use_msa":     true,
			"use_msa_dir": false,
		},
		"templates": map[string]any{
			"default_template": "KOr_w_momSalB.cif",
			"model_idx":        4,
		},
		"visualization": map[string]any{
			"rmsd_vmin": 0.2,
			"rmsd_vmax": 6.2,
		},
	})
}

// DefaultDocument returns the document used when the configuration file is
// absent: the built-in global section with the implicit default runs.
func DefaultDocument() *Document {
	doc, err := FromValue(DefaultGlobal())
	if err != nil {
		panic(err)
	}
	return doc
}
