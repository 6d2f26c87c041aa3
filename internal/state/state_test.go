package state

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/westberg-lab/foldrun/internal/errors"
	"github.com/westberg-lab/foldrun/internal/runconfig"
)

func TestFingerprint_KeyOrderIndependent(t *testing.T) {
	var a, b any
	if err := json.Unmarshal([]byte(`{"global": {"b": 1, "a": [1, 2]}, "prediction_runs": [{"id": "x"}]}`), &a); err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal([]byte(`{
		"prediction_runs": [ {"id":"x"} ],
		"global": {"a": [1,2], "b": 1}
	}`), &b); err != nil {
		t.Fatal(err)
	}

	fa := Fingerprint(runconfig.MustFromAny(a), runconfig.Null())
	fb := Fingerprint(runconfig.MustFromAny(b), runconfig.Null())
	if fa != fb {
		t.Errorf("fingerprints differ for reordered documents: %s vs %s", fa, fb)
	}
	if len(fa) != 64 {
		t.Errorf("fingerprint length = %d, want 64 hex chars", len(fa))
	}
}

func TestFingerprint_LeafChange(t *testing.T) {
	base := map[string]any{
		"global": map[string]any{"methods": map[string]any{"use_msa": true}, "visualization": map[string]any{"rmsd_vmax": 6.2}},
		"runs":   []any{"a", "b"},
	}
	variants := []map[string]any{
		{"global": map[string]any{"methods": map[string]any{"use_msa": false}, "visualization": map[string]any{"rmsd_vmax": 6.2}}, "runs": []any{"a", "b"}},
		{"global": map[string]any{"methods": map[string]any{"use_msa": true}, "visualization": map[string]any{"rmsd_vmax": 6.3}}, "runs": []any{"a", "b"}},
		{"global": map[string]any{"methods": map[string]any{"use_msa": true}, "visualization": map[string]any{"rmsd_vmax": 6.2}}, "runs": []any{"b", "a"}},
		{"global": map[string]any{"methods": map[string]any{"use_msa": "true"}, "visualization": map[string]any{"rmsd_vmax": 6.2}}, "runs": []any{"a", "b"}},
	}

	want := Fingerprint(runconfig.MustFromAny(base), runconfig.Null())
	if again := Fingerprint(runconfig.MustFromAny(base), runconfig.Null()); again != want {
		t.Fatal("Fingerprint is not deterministic")
	}
	for i, v := range variants {
		if got := Fingerprint(runconfig.MustFromAny(v), runconfig.Null()); got == want {
			t.Errorf("variant %d: fingerprint unchanged after leaf change", i)
		}
	}
}

func TestFingerprint_Overrides(t *testing.T) {
	doc := runconfig.DefaultGlobal()
	plain := Fingerprint(doc, runconfig.Null())

	if got := Fingerprint(doc, runconfig.EmptyMapping()); got != plain {
		t.Error("empty overrides should not change the fingerprint")
	}

	msa := false
	overrides := runconfig.Overrides{UseMSA: &msa}.Value()
	if got := Fingerprint(doc, overrides); got == plain {
		t.Error("non-empty overrides should change the fingerprint")
	}
}

func TestStatus_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		in      string
		want    Status
		wantErr bool
	}{
		{`"succeeded"`, StatusSucceeded, false},
		{`"Succeeded"`, StatusSucceeded, false},
		{`"RUNNING"`, StatusRunning, false},
		{`"done"`, "", true},
		{`3`, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var s Status
			err := json.Unmarshal([]byte(tt.in), &s)
			if tt.wantErr {
				if err == nil {
					t.Errorf("Unmarshal(%s) should fail", tt.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unmarshal(%s) error = %v", tt.in, err)
			}
			if s != tt.want {
				t.Errorf("status = %q, want %q", s, tt.want)
			}
		})
	}
}

func TestStatus_IsTerminal(t *testing.T) {
	tests := []struct {
		status Status
		want   bool
	}{
		{StatusPending, false},
		{StatusRunning, false},
		{StatusSucceeded, true},
		{StatusFailed, true},
	}
	for _, tt := range tests {
		if got := tt.status.IsTerminal(); got != tt.want {
			t.Errorf("%s.IsTerminal() = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestLoad_Missing(t *testing.T) {
	st, err := Load(filepath.Join(t.TempDir(), DefaultFileName))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !st.IsEmpty() {
		t.Errorf("missing state should be empty, got %+v", st)
	}
	if st.ConfigFingerprint != "" {
		t.Errorf("ConfigFingerprint = %q, want empty", st.ConfigFingerprint)
	}
}

func TestLoad_Corrupt(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"truncated", `{"config_fingerprint": "abc", "records": [`},
		{"unknown status", `{"config_fingerprint": "abc", "records": [{"step": "chai-run", "run_id": "a", "status": "exploded"}]}`},
		{"record without step", `{"config_fingerprint": "abc", "records": [{"run_id": "a", "status": "failed"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), DefaultFileName)
			if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
				t.Fatal(err)
			}
			_, err := Load(path)
			if !errors.Is(err, errors.ErrStateCorrupted) {
				t.Errorf("Load() error = %v, want ErrStateCorrupted", err)
			}
		})
	}
}

func TestLoad_LegacyRecordShape(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFileName)
	content := `{"config_fingerprint": "abc", "records": [{"step": "predict", "run_id": "standard", "status": "Succeeded"}]}`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	st, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if st.ConfigFingerprint != "abc" {
		t.Errorf("ConfigFingerprint = %q", st.ConfigFingerprint)
	}
	if !st.Succeeded("predict", "standard") {
		t.Error("record should be succeeded")
	}
	if st.Succeeded("predict", "other") {
		t.Error("unknown run should not be succeeded")
	}
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", DefaultFileName)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	st := New("fp", "inv-1", now)
	st.Records = append(st.Records, StepRecord{Step: "chai-run", RunID: "standard", Status: StatusFailed, Error: "exit status 1", Attempts: 2})

	if err := Save(path, st); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.ConfigFingerprint != "fp" || loaded.InvocationID != "inv-1" {
		t.Errorf("loaded header = %+v", loaded)
	}
	if !loaded.CreatedAt.Equal(now) {
		t.Errorf("CreatedAt = %v, want %v", loaded.CreatedAt, now)
	}
	rec, ok := loaded.Lookup("chai-run", "standard")
	if !ok {
		t.Fatal("record not found after round trip")
	}
	if rec.Status != StatusFailed || rec.Error != "exit status 1" || rec.Attempts != 2 {
		t.Errorf("record = %+v", rec)
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("directory should only hold the state file, got %d entries", len(entries))
	}
}

func TestSave_KeepsPreviousOnFailure(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, DefaultFileName)
	if err := Save(path, New("first", "", time.Now())); err != nil {
		t.Fatal(err)
	}

	// Using the state file as a parent directory makes the write fail.
	bad := filepath.Join(path, "child.json")
	if err := Save(bad, New("second", "", time.Now())); err == nil {
		t.Fatal("Save() into a file path should fail")
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.ConfigFingerprint != "first" {
		t.Errorf("ConfigFingerprint = %q, want first", loaded.ConfigFingerprint)
	}
}

func TestPipelineState_CountsAndRunRecords(t *testing.T) {
	st := New("fp", "", time.Now())
	st.Records = []StepRecord{
		{Step: "chai-fasta", RunID: "a", Status: StatusSucceeded},
		{Step: "chai-run", RunID: "a", Status: StatusFailed},
		{Step: "chai-fasta", RunID: "b", Status: StatusSucceeded},
		{Step: "chai-run", RunID: "b", Status: StatusPending},
	}

	counts := st.Counts()
	if counts[StatusSucceeded] != 2 || counts[StatusFailed] != 1 || counts[StatusPending] != 1 {
		t.Errorf("Counts() = %v", counts)
	}
	if got := st.RunRecords("b"); len(got) != 2 || got[0].Step != "chai-fasta" {
		t.Errorf("RunRecords(b) = %+v", got)
	}
}

func TestStepRecord_Duration(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(90 * time.Second)
	rec := StepRecord{StartedAt: &start, FinishedAt: &end}
	if rec.Duration() != 90*time.Second {
		t.Errorf("Duration() = %v", rec.Duration())
	}
	if (StepRecord{StartedAt: &start}).Duration() != 0 {
		t.Error("unfinished record should have zero duration")
	}
}
