package logging

import (
	"bytes"
	"io"
	"strings"
	"testing"
	"time"
)

func fixedConsole(buf *bytes.Buffer, quiet bool) *Console {
	c := NewConsole(buf, quiet)
	c.now = func() time.Time { return time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC) }
	return c
}

func TestConsole_Format(t *testing.T) {
	var buf bytes.Buffer
	c := fixedConsole(&buf, false)

	c.Infof("Running: %s", "chai-run")
	c.Errorf("Error in %s\n", "boltz-run")

	want := "[2026-03-01 09:30:00] [INFO] Running: chai-run\n" +
		"[2026-03-01 09:30:00] [ERROR] Error in boltz-run\n"
	if buf.String() != want {
		t.Errorf("output = %q, want %q", buf.String(), want)
	}
}

func TestConsole_Quiet(t *testing.T) {
	var buf bytes.Buffer
	c := fixedConsole(&buf, true)

	c.Infof("hidden")
	c.Warnf("shown")

	if strings.Contains(buf.String(), "hidden") {
		t.Error("INFO line should be suppressed in quiet mode")
	}
	if !strings.Contains(buf.String(), "[WARN] shown") {
		t.Errorf("WARN line missing: %q", buf.String())
	}
	if c.Writer() != io.Discard {
		t.Error("Writer() should discard in quiet mode")
	}
	if !c.Quiet() {
		t.Error("Quiet() = false, want true")
	}
}

func TestConsole_NilWriterDiscards(t *testing.T) {
	c := NewConsole(nil, true)

	c.Warnf("unmet dependency")
	c.Errorf("step failed")

	if c.Writer() != io.Discard {
		t.Error("Writer() should discard")
	}
}
