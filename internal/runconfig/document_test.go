package runconfig

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/westberg-lab/foldrun/internal/errors"
)

const matrixJSON = `{
  "global": {
    "directories": {"plots": "figures"},
    "methods": {"use_msa": true},
    "motifs": {"pocket": {"residues": [1, 2, 3]}}
  },
  "prediction_runs": [
    {"id": "standard", "description": "baseline"},
    {"id": "no_msa", "parameters": {"methods": {"use_msa": false}}},
    {"id": "with_msa_dir", "enabled": false, "methods": {"use_msa_dir": true}}
  ],
  "analysis_runs": [
    {"id": "whole", "source_predictions": ["standard", "no_msa", "standard"]},
    {"id": "pocket_rmsd", "source_predictions": ["no_msa"], "analysis_type": "motif",
     "motif_id": "pocket", "metrics": ["plddt", "RMSD"]}
  ]
}`

func writeDoc(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoad_Matrix(t *testing.T) {
	doc, err := Load(writeDoc(t, "pipeline_config.json", matrixJSON))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if doc.Legacy {
		t.Error("Legacy = true, want false")
	}

	var ids []string
	for _, run := range doc.PredictionRuns {
		ids = append(ids, run.ID)
	}
	if strings.Join(ids, ",") != "standard,no_msa,with_msa_dir" {
		t.Errorf("prediction run order = %v", ids)
	}

	disabled, _ := doc.Run(Prediction, "with_msa_dir")
	if disabled.Enabled {
		t.Error("with_msa_dir should be disabled")
	}
	if !disabled.Parameters.BoolAt(false, "methods", "use_msa_dir") {
		t.Error("non-reserved run keys should become parameters")
	}

	whole, _ := doc.Run(Analysis, "whole")
	if !slices.Equal(whole.SourcePredictions, []string{"standard", "no_msa"}) {
		t.Errorf("SourcePredictions = %v, want duplicates collapsed", whole.SourcePredictions)
	}
	if !slices.Equal(whole.Metrics, AllMetrics()) {
		t.Errorf("default Metrics = %v, want %v", whole.Metrics, AllMetrics())
	}
	if whole.AnalysisType != DefaultAnalysisType {
		t.Errorf("AnalysisType = %q, want %q", whole.AnalysisType, DefaultAnalysisType)
	}

	pocket, _ := doc.Run(Analysis, "pocket_rmsd")
	if !slices.Equal(pocket.Metrics, []Metric{MetricRMSD, MetricPLDDT}) {
		t.Errorf("Metrics = %v, want rmsd,plddt", pocket.Metrics)
	}

	if got := doc.Global.StringAt("", "directories", "plots"); got != "figures" {
		t.Errorf("global plots dir = %q, want figures", got)
	}
	if got := doc.Global.StringAt("", "directories", "chai_fasta"); got != "CHAI_FASTA" {
		t.Errorf("defaults should fill missing directories, got %q", got)
	}
}

func TestLoad_YAML(t *testing.T) {
	content := `
global:
  methods:
    use_boltz: false
prediction_runs:
  - id: standard
analysis_runs: []
`
	doc, err := Load(writeDoc(t, "pipeline.yaml", content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(doc.PredictionRuns) != 1 || len(doc.AnalysisRuns) != 0 {
		t.Fatalf("runs = %d/%d, want 1/0", len(doc.PredictionRuns), len(doc.AnalysisRuns))
	}
	if doc.Global.BoolAt(true, "methods", "use_boltz") {
		t.Error("use_boltz should be false")
	}
}

func TestLoad_Legacy(t *testing.T) {
	content := `{"methods": {"use_chai": false}, "templates": {"model_idx": 2}}`
	doc, err := Load(writeDoc(t, "pipeline_config.json", content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !doc.Legacy {
		t.Fatal("Legacy = false, want true")
	}
	if len(doc.PredictionRuns) != 1 || doc.PredictionRuns[0].ID != DefaultRunID {
		t.Fatalf("PredictionRuns = %+v", doc.PredictionRuns)
	}
	if len(doc.AnalysisRuns) != 1 || !slices.Equal(doc.AnalysisRuns[0].SourcePredictions, []string{DefaultRunID}) {
		t.Fatalf("AnalysisRuns = %+v", doc.AnalysisRuns)
	}
	if doc.Global.BoolAt(true, "methods", "use_chai") {
		t.Error("use_chai should come from the legacy document")
	}
	if got := doc.Global.IntAt(0, "templates", "model_idx"); got != 2 {
		t.Errorf("model_idx = %d, want 2", got)
	}
	if got := doc.Global.StringAt("", "templates", "default_template"); got != "KOr_w_momSalB.cif" {
		t.Errorf("default_template = %q", got)
	}
}

func TestLoad_NotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	if !errors.Is(err, errors.ErrConfigNotFound) {
		t.Fatalf("Load() error = %v, want ErrConfigNotFound", err)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		wantParse bool
		wantMsg   string
	}{
		{"empty", "   \n", true, "empty document"},
		{"malformed", `{"global": `, true, "malformed"},
		{"root sequence", `[1, 2]`, true, "mapping"},
		{"duplicate ids", `{"prediction_runs": [{"id": "a"}, {"id": "a"}]}`, true, "duplicate run id"},
		{"missing id", `{"prediction_runs": [{"description": "x"}]}`, true, "run id is required"},
		{"unknown source", `{"prediction_runs": [{"id": "a"}], "analysis_runs": [{"id": "x", "source_predictions": ["b"]}]}`, true, "unknown prediction run"},
		{"no sources", `{"prediction_runs": [{"id": "a"}], "analysis_runs": [{"id": "x"}]}`, true, "at least one source"},
		{"unknown metric", `{"prediction_runs": [{"id": "a"}], "analysis_runs": [{"id": "x", "source_predictions": ["a"], "metrics": ["tm"]}]}`, true, "unknown metric"},
		{"unknown motif", `{"global": {"motifs": {"m1": {}}}, "prediction_runs": [{"id": "a"}], "analysis_runs": [{"id": "x", "source_predictions": ["a"], "motif_id": "m2"}]}`, true, "motif_id"},
		{"runs not a sequence", `{"prediction_runs": {"id": "a"}}`, true, "must be a sequence"},
		{"bad enabled", `{"prediction_runs": [{"id": "a", "enabled": "yes"}]}`, true, "enabled must be a boolean"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeDoc(t, "pipeline_config.json", tt.content))
			if err == nil {
				t.Fatal("Load() should fail")
			}
			if tt.wantParse && !errors.Is(err, errors.ErrConfigParse) {
				t.Errorf("error %v should wrap ErrConfigParse", err)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error %q should mention %q", err.Error(), tt.wantMsg)
			}
			if !strings.Contains(err.Error(), "pipeline_config.json") {
				t.Errorf("error %q should carry the path", err.Error())
			}
		})
	}
}

func TestLoad_UnknownSourceIsUnknownRunID(t *testing.T) {
	content := `{"prediction_runs": [{"id": "a"}], "analysis_runs": [{"id": "x", "source_predictions": ["ghost"]}]}`
	_, err := Load(writeDoc(t, "c.json", content))
	if !errors.Is(err, errors.ErrUnknownRunID) {
		t.Errorf("error %v should wrap ErrUnknownRunID", err)
	}
}

func TestDefaultDocument(t *testing.T) {
	doc := DefaultDocument()
	if !doc.Legacy {
		t.Error("default document should have the legacy shape")
	}
	if err := doc.Validate(); err != nil {
		t.Errorf("default document should validate: %v", err)
	}
	if !doc.Raw.Equal(DefaultGlobal()) {
		t.Error("default document Raw should equal DefaultGlobal()")
	}
}

func TestListEnabledRuns(t *testing.T) {
	doc, err := Parse([]byte(matrixJSON))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	tests := []struct {
		name     string
		kind     RunKind
		explicit []string
		want     []string
		wantErr  bool
	}{
		{"all enabled predictions", Prediction, nil, []string{"standard", "no_msa"}, false},
		{"explicit keeps declaration order", Prediction, []string{"no_msa", "standard"}, []string{"standard", "no_msa"}, false},
		{"explicit disabled run is filtered", Prediction, []string{"with_msa_dir"}, nil, false},
		{"unknown id", Prediction, []string{"ghost"}, nil, true},
		{"analysis subset", Analysis, []string{"pocket_rmsd"}, []string{"pocket_rmsd"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runs, err := ListEnabledRuns(doc, tt.kind, tt.explicit)
			if tt.wantErr {
				if !errors.Is(err, errors.ErrUnknownRunID) {
					t.Fatalf("error = %v, want ErrUnknownRunID", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ListEnabledRuns() error = %v", err)
			}
			var got []string
			for _, run := range runs {
				got = append(got, run.ID)
			}
			if !slices.Equal(got, tt.want) {
				t.Errorf("runs = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSetEnabled(t *testing.T) {
	doc, err := Parse([]byte(matrixJSON))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if err := doc.SetEnabled(Prediction, "with_msa_dir", true); err != nil {
		t.Fatalf("SetEnabled() error = %v", err)
	}
	if err := doc.SetEnabled(Prediction, "standard", false); err != nil {
		t.Fatalf("SetEnabled() error = %v", err)
	}
	runs, _ := ListEnabledRuns(doc, Prediction, nil)
	if len(runs) != 2 || runs[0].ID != "no_msa" || runs[1].ID != "with_msa_dir" {
		t.Errorf("enabled runs after toggles = %+v", runs)
	}
	if err := doc.SetEnabled(Analysis, "ghost", true); !errors.Is(err, errors.ErrUnknownRunID) {
		t.Errorf("SetEnabled(ghost) error = %v, want ErrUnknownRunID", err)
	}
}

func TestEffective(t *testing.T) {
	doc, err := Parse([]byte(matrixJSON))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	pred, _ := doc.Run(Prediction, "no_msa")
	analysis := RunDefinition{Parameters: MustFromAny(map[string]any{
		"visualization": map[string]any{"rmsd_vmax": 4.0},
		"methods":       map[string]any{"use_boltz": false},
	})}

	useChai := false
	overrides := Overrides{UseChai: &useChai}

	cfg := doc.Effective(&pred, &analysis, overrides.Value())
	if cfg.BoolAt(true, "methods", "use_msa") {
		t.Error("prediction parameters should turn use_msa off")
	}
	if cfg.BoolAt(true, "methods", "use_boltz") {
		t.Error("analysis parameters should turn use_boltz off")
	}
	if cfg.BoolAt(true, "methods", "use_chai") {
		t.Error("CLI overrides should win over run parameters")
	}
	if got := cfg.FloatAt(0, "visualization", "rmsd_vmax"); got != 4.0 {
		t.Errorf("rmsd_vmax = %v, want 4", got)
	}
	if got := cfg.FloatAt(0, "visualization", "rmsd_vmin"); got != 0.2 {
		t.Errorf("rmsd_vmin = %v, want 0.2", got)
	}

	base := doc.Effective(nil, nil, Null())
	if !base.Equal(doc.Global) {
		t.Error("Effective without runs or overrides should equal the global section")
	}
	if !doc.Global.BoolAt(false, "methods", "use_msa") {
		t.Error("Effective mutated the global section")
	}
}

func TestOverrides_Value(t *testing.T) {
	if !(Overrides{}).IsEmpty() {
		t.Error("zero Overrides should be empty")
	}
	if !(Overrides{Directories: map[string]string{DirPlots: ""}}).IsEmpty() {
		t.Error("blank directory override should be ignored")
	}

	msa := false
	idx := 2
	tmpl := "other.cif"
	o := Overrides{
		UseMSA:      &msa,
		ModelIdx:    &idx,
		Template:    &tmpl,
		Directories: map[string]string{DirPlots: "figs"},
	}
	want := MustFromAny(map[string]any{
		"methods":     map[string]any{"use_msa": false},
		"templates":   map[string]any{"model_idx": 2, "default_template": "other.cif"},
		"directories": map[string]any{"plots": "figs"},
	})
	if got := o.Value(); !got.Equal(want) {
		t.Errorf("Value() = %s, want %s", got.Canonical(), want.Canonical())
	}
}

func TestDirectory(t *testing.T) {
	cfg := MustFromAny(map[string]any{"directories": map[string]any{"plots": "figs"}})
	if got := Directory(cfg, DirPlots); got != "figs" {
		t.Errorf("Directory(plots) = %q", got)
	}
	if got := Directory(cfg, DirCSV); got != "csv" {
		t.Errorf("Directory(csv) fallback = %q", got)
	}
}
