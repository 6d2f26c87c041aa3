// Package retry tracks step attempts within one orchestrator invocation and
// decides whether a failed step gets another attempt.
package retry

import (
	"sort"
	"sync"
)

// StepState tracks attempts for one (run, step) key.
type StepState struct {
	Key         string `json:"key"`
	Attempts    int    `json:"attempts"`
	MaxAttempts int    `json:"max_attempts"`
	LastError   string `json:"last_error,omitempty"`
	Succeeded   bool   `json:"succeeded,omitempty"`
	// Interrupted is set when the last attempt was stopped by cancellation;
	// interrupted steps are never retried.
	Interrupted bool `json:"interrupted,omitempty"`
}

// Exhausted reports whether no attempts remain.
func (s StepState) Exhausted() bool {
	return s.Attempts >= s.MaxAttempts
}

// Manager manages attempt state for steps. It is safe for concurrent use.
type Manager struct {
	mu          sync.RWMutex
	maxAttempts int
	states      map[string]*StepState
}

// NewManager creates a manager allowing maxAttempts attempts per step.
// Values below 1 are treated as 1.
func NewManager(maxAttempts int) *Manager {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Manager{
		maxAttempts: maxAttempts,
		states:      make(map[string]*StepState),
	}
}

// MaxAttempts returns the per-step attempt limit.
func (m *Manager) MaxAttempts() int {
	return m.maxAttempts
}

func (m *Manager) getOrCreate(key string) *StepState {
	state, ok := m.states[key]
	if !ok {
		state = &StepState{Key: key, MaxAttempts: m.maxAttempts}
		m.states[key] = state
	}
	return state
}

// Begin records the start of an attempt and returns its 1-based number.
func (m *Manager) Begin(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	state := m.getOrCreate(key)
	state.Attempts++
	return state.Attempts
}

// RecordSuccess marks key succeeded; no further attempts are allowed.
func (m *Manager) RecordSuccess(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state := m.getOrCreate(key)
	state.Succeeded = true
	state.LastError = ""
}

// RecordFailure stores the failure reason of the latest attempt.
func (m *Manager) RecordFailure(key, reason string, interrupted bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state := m.getOrCreate(key)
	state.LastError = reason
	state.Interrupted = interrupted
}

// ShouldRetry reports whether key failed and has attempts left.
func (m *Manager) ShouldRetry(key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.states[key]
	if !ok {
		return false
	}
	return !state.Succeeded && !state.Interrupted && !state.Exhausted()
}

// GetState returns a copy of the state for key.
func (m *Manager) GetState(key string) (StepState, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.states[key]
	if !ok {
		return StepState{}, false
	}
	return *state, true
}

// GetFailedSteps returns the sorted keys of steps that exhausted their
// attempts, or were interrupted, without succeeding.
func (m *Manager) GetFailedSteps() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var failed []string
	for key, state := range m.states {
		if !state.Succeeded && (state.Interrupted || state.Exhausted()) {
			failed = append(failed, key)
		}
	}
	sort.Strings(failed)
	return failed
}

// GetRetriedSteps returns the sorted keys of steps that needed more than one
// attempt.
func (m *Manager) GetRetriedSteps() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var retried []string
	for key, state := range m.states {
		if state.Attempts > 1 {
			retried = append(retried, key)
		}
	}
	sort.Strings(retried)
	return retried
}

// Reset clears the state for key.
func (m *Manager) Reset(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.states, key)
}
