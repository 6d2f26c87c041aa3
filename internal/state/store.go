package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/westberg-lab/foldrun/internal/errors"
)

// Load reads the state file at path. A missing file yields an empty state;
// an undecodable file fails with ErrStateCorrupted.
func Load(path string) (*PipelineState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &PipelineState{Records: []StepRecord{}}, nil
		}
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}

	var st PipelineState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, errors.Wrapf(errors.Join(errors.ErrStateCorrupted, err), "load %s", path)
	}
	if st.Records == nil {
		st.Records = []StepRecord{}
	}
	for i, rec := range st.Records {
		if rec.Step == "" {
			return nil, errors.Wrapf(errors.ErrStateCorrupted, "load %s: record %d has no step", path, i)
		}
	}
	return &st, nil
}

// Save writes st to path atomically.
func Save(path string, st *PipelineState) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create state directory: %w", err)
		}
	}
	return atomicWriteFile(path, data, 0644)
}

// Store binds state persistence to one state file. Every transition method
// mutates the given state and saves it before returning.
type Store struct {
	path string
	now  func() time.Time
}

// NewStore creates a Store persisting to path.
func NewStore(path string) *Store {
	return &Store{path: path, now: time.Now}
}

// Path returns the state file path.
func (s *Store) Path() string {
	return s.path
}

// Load reads the store's state file.
func (s *Store) Load() (*PipelineState, error) {
	return Load(s.path)
}

// Save writes st to the store's state file.
func (s *Store) Save(st *PipelineState) error {
	return Save(s.path, st)
}

// Reset deletes the on-disk state. A missing file is not an error.
func (s *Store) Reset() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete state file: %w", err)
	}
	return nil
}

// Schedule creates pending records for steps of runID that have no record
// yet and persists the state.
func (s *Store) Schedule(st *PipelineState, runID string, steps []string) error {
	for _, step := range steps {
		st.upsert(step, runID)
	}
	return s.Save(st)
}

// RecordStart marks (step, runID) running and persists the state. The
// record's previous outcome is cleared.
func (s *Store) RecordStart(st *PipelineState, step, runID string) error {
	rec := st.upsert(step, runID)
	now := s.now().UTC()
	rec.Status = StatusRunning
	rec.StartedAt = &now
	rec.FinishedAt = nil
	rec.Error = ""
	rec.OutputFingerprint = ""
	rec.Attempts++
	return s.Save(st)
}

// RecordFinish moves (step, runID) to a terminal status and persists the
// state.
func (s *Store) RecordFinish(st *PipelineState, step, runID string, status Status, errMsg, outputFingerprint string) error {
	if !status.IsTerminal() {
		return fmt.Errorf("record finish %s/%s: status %q is not terminal", step, runID, status)
	}
	rec := st.upsert(step, runID)
	now := s.now().UTC()
	if rec.StartedAt == nil {
		rec.StartedAt = &now
	}
	rec.Status = status
	rec.FinishedAt = &now
	rec.Error = errMsg
	rec.OutputFingerprint = outputFingerprint
	return s.Save(st)
}
