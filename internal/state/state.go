// Package state persists pipeline execution state: the configuration
// fingerprint of the invocation that produced it and one record per
// (step, run) pair. The state file is the only source of truth across
// invocations, so every record transition is written through to disk
// atomically.
package state

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/westberg-lab/foldrun/internal/runconfig"
)

// DefaultFileName is the state file used when none is configured.
const DefaultFileName = "pipeline_state.json"

// Status is the lifecycle status of a step record.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// IsTerminal returns true if the status is a final state.
func (s Status) IsTerminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusRunning, StatusSucceeded, StatusFailed:
		return true
	}
	return false
}

// UnmarshalJSON accepts statuses in any letter case.
func (s *Status) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	status := Status(strings.ToLower(raw))
	if !status.Valid() {
		return fmt.Errorf("unknown step status %q", raw)
	}
	*s = status
	return nil
}

// StepRecord is the persisted outcome of one step for one run.
type StepRecord struct {
	Step              string     `json:"step"`
	RunID             string     `json:"run_id"`
	Status            Status     `json:"status"`
	StartedAt         *time.Time `json:"started_at,omitempty"`
	FinishedAt        *time.Time `json:"finished_at,omitempty"`
	Error             string     `json:"error,omitempty"`
	OutputFingerprint string     `json:"output_fingerprint,omitempty"`
	Attempts          int        `json:"attempts,omitempty"`
}

// Duration returns how long the step ran, or zero when it has not finished.
func (r StepRecord) Duration() time.Duration {
	if r.StartedAt == nil || r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(*r.StartedAt)
}

// PipelineState is the persisted execution state.
type PipelineState struct {
	ConfigFingerprint string       `json:"config_fingerprint"`
	CreatedAt         time.Time    `json:"created_at"`
	InvocationID      string       `json:"invocation_id,omitempty"`
	Records           []StepRecord `json:"records"`
}

// New returns an empty state for the given fingerprint.
func New(fingerprint, invocationID string, now time.Time) *PipelineState {
	return &PipelineState{
		ConfigFingerprint: fingerprint,
		CreatedAt:         now.UTC(),
		InvocationID:      invocationID,
		Records:           []StepRecord{},
	}
}

// IsEmpty reports whether the state carries no fingerprint and no records,
// which is the case before the first invocation.
func (s *PipelineState) IsEmpty() bool {
	return s.ConfigFingerprint == "" && len(s.Records) == 0
}

// Lookup returns the record for (step, runID).
func (s *PipelineState) Lookup(step, runID string) (StepRecord, bool) {
	if i := s.index(step, runID); i >= 0 {
		return s.Records[i], true
	}
	return StepRecord{}, false
}

// Succeeded reports whether (step, runID) has a succeeded record.
func (s *PipelineState) Succeeded(step, runID string) bool {
	rec, ok := s.Lookup(step, runID)
	return ok && rec.Status == StatusSucceeded
}

// Counts returns the number of records per status.
func (s *PipelineState) Counts() map[Status]int {
	counts := make(map[Status]int, 4)
	for _, rec := range s.Records {
		counts[rec.Status]++
	}
	return counts
}

// RunRecords returns the records owned by runID in record order.
func (s *PipelineState) RunRecords(runID string) []StepRecord {
	var out []StepRecord
	for _, rec := range s.Records {
		if rec.RunID == runID {
			out = append(out, rec)
		}
	}
	return out
}

func (s *PipelineState) index(step, runID string) int {
	for i := range s.Records {
		if s.Records[i].Step == step && s.Records[i].RunID == runID {
			return i
		}
	}
	return -1
}

// upsert returns a pointer to the record for (step, runID), appending a
// pending record when none exists.
func (s *PipelineState) upsert(step, runID string) *StepRecord {
	if i := s.index(step, runID); i >= 0 {
		return &s.Records[i]
	}
	s.Records = append(s.Records, StepRecord{Step: step, RunID: runID, Status: StatusPending})
	return &s.Records[len(s.Records)-1]
}

// Fingerprint returns a stable hash of the configuration document and any
// command-line overrides. Mapping key order and serialization whitespace do
// not affect the result; overrides only contribute when non-empty.
func Fingerprint(doc, overrides runconfig.Value) string {
	h := sha256.New()
	h.Write(doc.Canonical())
	if !overrides.IsNull() && overrides.Len() > 0 {
		h.Write([]byte{'\n'})
		h.Write(overrides.Canonical())
	}
	return hex.EncodeToString(h.Sum(nil))
}
