package logging

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// Console prints human-readable progress lines. INFO lines are suppressed
// when quiet is set; warnings and errors are always printed.
type Console struct {
	mu    sync.Mutex
	w     io.Writer
	quiet bool
	now   func() time.Time
}

// NewConsole returns a Console writing to w. A nil w discards output.
func NewConsole(w io.Writer, quiet bool) *Console {
	if w == nil {
		w = io.Discard
	}
	return &Console{w: w, quiet: quiet, now: time.Now}
}

// Quiet reports whether INFO output is suppressed.
func (c *Console) Quiet() bool {
	return c.quiet
}

// Writer returns the underlying writer, or io.Discard when quiet so callers
// streaming subprocess output respect --quiet.
func (c *Console) Writer() io.Writer {
	if c.quiet {
		return io.Discard
	}
	return c.w
}

// Infof prints an INFO line.
func (c *Console) Infof(format string, args ...any) {
	if c.quiet {
		return
	}
	c.printf(LevelInfo, format, args...)
}

// Warnf prints a WARN line.
func (c *Console) Warnf(format string, args ...any) {
	c.printf(LevelWarn, format, args...)
}

// Errorf prints an ERROR line.
func (c *Console) Errorf(format string, args ...any) {
	c.printf(LevelError, format, args...)
}

func (c *Console) printf(level, format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	msg := strings.TrimRight(fmt.Sprintf(format, args...), "\n")
	fmt.Fprintf(c.w, "[%s] [%s] %s\n", c.now().Format("2006-01-02 15:04:05"), level, msg)
}
