package retry

import (
	"slices"
	"sync"
	"testing"
)

func TestNewManager(t *testing.T) {
	tests := []struct {
		name string
		max  int
		want int
	}{
		{"single attempt", 1, 1},
		{"several attempts", 3, 3},
		{"zero clamps to one", 0, 1},
		{"negative clamps to one", -2, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager(tt.max)
			if got := m.MaxAttempts(); got != tt.want {
				t.Errorf("MaxAttempts() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestManager_RetryLifecycle(t *testing.T) {
	m := NewManager(3)
	key := "standard/chai-run"

	if m.ShouldRetry(key) {
		t.Error("ShouldRetry() = true for unknown key")
	}

	for want := 1; want <= 3; want++ {
		if got := m.Begin(key); got != want {
			t.Fatalf("Begin() = %d, want %d", got, want)
		}
		m.RecordFailure(key, "exit status 1", false)
		shouldRetry := m.ShouldRetry(key)
		if want < 3 && !shouldRetry {
			t.Errorf("attempt %d: ShouldRetry() = false, want true", want)
		}
		if want == 3 && shouldRetry {
			t.Error("ShouldRetry() = true after attempts exhausted")
		}
	}

	state, ok := m.GetState(key)
	if !ok {
		t.Fatal("GetState() found nothing")
	}
	if state.LastError != "exit status 1" || !state.Exhausted() {
		t.Errorf("state = %+v", state)
	}
	if !slices.Equal(m.GetFailedSteps(), []string{key}) {
		t.Errorf("GetFailedSteps() = %v", m.GetFailedSteps())
	}
	if !slices.Equal(m.GetRetriedSteps(), []string{key}) {
		t.Errorf("GetRetriedSteps() = %v", m.GetRetriedSteps())
	}
}

func TestManager_SuccessStopsRetries(t *testing.T) {
	m := NewManager(3)
	key := "standard/boltz-run"

	m.Begin(key)
	m.RecordFailure(key, "oom", false)
	m.Begin(key)
	m.RecordSuccess(key)

	if m.ShouldRetry(key) {
		t.Error("ShouldRetry() = true after success")
	}
	state, _ := m.GetState(key)
	if state.LastError != "" {
		t.Errorf("LastError = %q, want cleared", state.LastError)
	}
	if len(m.GetFailedSteps()) != 0 {
		t.Errorf("GetFailedSteps() = %v, want none", m.GetFailedSteps())
	}
}

func TestManager_InterruptedNeverRetried(t *testing.T) {
	m := NewManager(5)
	key := "standard/chai-run"

	m.Begin(key)
	m.RecordFailure(key, "interrupted", true)

	if m.ShouldRetry(key) {
		t.Error("ShouldRetry() = true for interrupted step")
	}
	if !slices.Equal(m.GetFailedSteps(), []string{key}) {
		t.Errorf("GetFailedSteps() = %v", m.GetFailedSteps())
	}
}

func TestManager_Reset(t *testing.T) {
	m := NewManager(2)
	m.Begin("a")
	m.Reset("a")
	if _, ok := m.GetState("a"); ok {
		t.Error("state still present after Reset")
	}
	if got := m.Begin("a"); got != 1 {
		t.Errorf("Begin() after Reset = %d, want 1", got)
	}
}

func TestManager_Concurrent(t *testing.T) {
	m := NewManager(100)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Begin("shared")
			m.RecordFailure("shared", "x", false)
			_ = m.ShouldRetry("shared")
		}()
	}
	wg.Wait()

	state, _ := m.GetState("shared")
	if state.Attempts != 50 {
		t.Errorf("Attempts = %d, want 50", state.Attempts)
	}
}
