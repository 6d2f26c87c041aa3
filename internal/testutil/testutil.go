// Package testutil provides testing utilities for foldrun tests.
package testutil

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

// WriteFile writes content to path, creating parent directories.
func WriteFile(t *testing.T, path, content string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("Failed to create directory for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", path, err)
	}
}

// SetupDir creates a temporary directory holding the given files.
// The files map contains relative paths to file contents. The directory is
// automatically cleaned up when the test completes.
func SetupDir(t *testing.T, files map[string]string) string {
	t.Helper()

	dir := t.TempDir()
	for path, content := range files {
		WriteFile(t, filepath.Join(dir, path), content)
	}
	return dir
}

// Workdir is SetupDir followed by a change into the directory for the
// duration of the test.
func Workdir(t *testing.T, files map[string]string) string {
	t.Helper()

	dir := SetupDir(t, files)
	t.Chdir(dir)
	return dir
}

// ShellCommand returns a step command prefix that runs script with sh.
// Arguments appended to the prefix become $1, $2, ...
func ShellCommand(script string) []string {
	return []string{"sh", "-c", script, "sh"}
}

// ProjectRoot returns the module root, found by walking up from the working
// directory to the first go.mod.
func ProjectRoot(t *testing.T) string {
	t.Helper()

	dir, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("go.mod not found above working directory")
		}
		dir = parent
	}
}

// SkipIfNoShell skips the test if sh is not installed.
func SkipIfNoShell(t *testing.T) {
	t.Helper()

	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not found in PATH, skipping test")
	}
}

// SkipIfNoGolangciLint skips the test if golangci-lint is not installed.
func SkipIfNoGolangciLint(t *testing.T) {
	t.Helper()

	if _, err := exec.LookPath("golangci-lint"); err != nil {
		t.Skip("golangci-lint not found in PATH, skipping test")
	}
}
