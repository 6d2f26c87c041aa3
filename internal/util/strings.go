// Package util provides text helpers shared by the summary and status
// renderers.
package util

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

// TruncateANSI truncates s to maxWidth terminal columns, keeping escape
// sequences intact.
func TruncateANSI(s string, maxWidth int) string {
	if maxWidth <= 3 {
		return "..."
	}
	if lipgloss.Width(s) <= maxWidth {
		return s
	}
	return ansi.Truncate(s, maxWidth, "...")
}

// FirstLine returns the first non-blank line of s, trimmed. Collaborator
// failure reasons can span lines; table cells cannot.
func FirstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}

// ShortHash returns the first n characters of a hex digest, or "-" when it
// is empty.
func ShortHash(h string, n int) string {
	if h == "" {
		return "-"
	}
	if len(h) > n {
		return h[:n]
	}
	return h
}
