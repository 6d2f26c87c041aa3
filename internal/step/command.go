package step

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/westberg-lab/foldrun/internal/logging"
)

// Environment variables passed to every collaborator process.
const (
	EnvStep      = "FOLDRUN_STEP"
	EnvRunID     = "FOLDRUN_RUN_ID"
	EnvOutputDir = "FOLDRUN_OUTPUT_DIR"
	EnvConfig    = "FOLDRUN_EFFECTIVE_CONFIG"
)

// CommandConfig configures a CommandExecutor.
type CommandConfig struct {
	// Python interprets the collaborator scripts.
	Python string
	// ScriptsDir holds the collaborator scripts.
	ScriptsDir string
	// Commands replaces the default "<python> <script>" prefix per step.
	Commands map[string][]string
	// LogsDir receives one log file per step and run.
	LogsDir string
	// Output receives a live copy of collaborator output; nil discards it.
	Output io.Writer
	// KillGrace is how long an interrupted process may take to exit after
	// SIGINT before it is killed.
	KillGrace time.Duration
}

// CommandExecutor runs each step as a subprocess.
type CommandExecutor struct {
	cfg    CommandConfig
	logger *logging.Logger
	now    func() time.Time
}

// NewCommandExecutor creates a CommandExecutor. Command overrides must name
// known steps.
func NewCommandExecutor(cfg CommandConfig, logger *logging.Logger) (*CommandExecutor, error) {
	for name, argv := range cfg.Commands {
		if !Known(name) || name == Archive {
			return nil, fmt.Errorf("command override for unknown step %q", name)
		}
		if len(argv) == 0 {
			return nil, fmt.Errorf("command override for %q is empty", name)
		}
	}
	if cfg.Python == "" {
		cfg.Python = "python"
	}
	if cfg.KillGrace <= 0 {
		cfg.KillGrace = 30 * time.Second
	}
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &CommandExecutor{cfg: cfg, logger: logger, now: time.Now}, nil
}

// Command returns the full argv for inv.
func (e *CommandExecutor) Command(inv Invocation) []string {
	var argv []string
	if prefix, ok := e.cfg.Commands[inv.Step.Name]; ok {
		argv = append(argv, prefix...)
	} else {
		argv = append(argv, e.cfg.Python, filepath.Join(e.cfg.ScriptsDir, Script(inv.Step.Name)))
	}
	return append(argv, Arguments(inv)...)
}

// LogPath returns the log file for inv.
func (e *CommandExecutor) LogPath(inv Invocation) string {
	runDir := inv.Step.RunID
	if runDir == "" {
		runDir = "_pipeline"
	}
	return filepath.Join(e.cfg.LogsDir, runDir, inv.Step.Name+".log")
}

// Execute runs the collaborator for inv. Steps whose output is already
// complete succeed without starting a process.
func (e *CommandExecutor) Execute(ctx context.Context, inv Invocation) Outcome {
	logger := e.logger.WithRun(inv.Step.RunID).WithStep(inv.Step.Name)
	start := e.now()

	complete, err := Complete(inv)
	if err != nil {
		logger.Warn("completion check failed", "error", err.Error())
	}
	if complete {
		fp, _ := OutputFingerprint(inv.OutputDir())
		logger.Info("output already complete, not invoking collaborator", "output_dir", inv.OutputDir())
		return Outcome{Succeeded: true, AlreadyComplete: true, OutputFingerprint: fp}
	}

	if dir := inv.OutputDir(); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return Failed(fmt.Sprintf("create output directory: %v", err))
		}
	}

	logPath := e.LogPath(inv)
	logFile, err := openLog(logPath)
	if err != nil {
		return Failed(fmt.Sprintf("open step log: %v", err))
	}
	defer logFile.Close()

	argv := e.Command(inv)
	fmt.Fprintf(logFile, "# %s attempt=%d\n# %s\n", start.Format(time.RFC3339), inv.Attempt, strings.Join(argv, " "))

	configJSON, err := json.Marshal(inv.Config)
	if err != nil {
		return Failed(fmt.Sprintf("encode effective config: %v", err))
	}

	tail := &tailBuffer{max: 4096}
	writers := []io.Writer{logFile, tail}
	if e.cfg.Output != nil {
		writers = append(writers, e.cfg.Output)
	}
	out := &lockedWriter{w: io.MultiWriter(writers...)}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdout = out
	cmd.Stderr = out
	cmd.Env = append(os.Environ(),
		EnvStep+"="+inv.Step.Name,
		EnvRunID+"="+inv.Step.RunID,
		EnvOutputDir+"="+inv.OutputDir(),
		EnvConfig+"="+string(configJSON),
	)
	cmd.Cancel = func() error {
		return cmd.Process.Signal(os.Interrupt)
	}
	cmd.WaitDelay = e.cfg.KillGrace

	logger.Info("starting step", "command", strings.Join(argv, " "), "attempt", inv.Attempt, "log", logPath)
	runErr := cmd.Run()
	duration := e.now().Sub(start)

	outcome := Outcome{
		Duration: duration,
		LogPath:  logPath,
		ExitCode: exitCode(cmd, runErr),
	}

	switch {
	case ctx.Err() != nil:
		outcome.Interrupted = true
		outcome.Reason = "interrupted"
	case runErr != nil:
		outcome.Reason = failureReason(runErr, tail.LastLine())
	default:
		outcome.Succeeded = true
		fp, err := OutputFingerprint(inv.OutputDir())
		if err != nil {
			logger.Warn("output fingerprint failed", "error", err.Error())
		}
		outcome.OutputFingerprint = fp
	}

	fmt.Fprintf(logFile, "# exit=%d duration=%s\n", outcome.ExitCode, duration.Round(time.Millisecond))
	if outcome.Succeeded {
		logger.Info("step succeeded", "duration_ms", duration.Milliseconds())
	} else {
		logger.Error("step failed", "reason", outcome.Reason, "exit_code", outcome.ExitCode, "duration_ms", duration.Milliseconds())
	}
	return outcome
}

func openLog(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
}

func exitCode(cmd *exec.Cmd, err error) int {
	if cmd.ProcessState != nil {
		return cmd.ProcessState.ExitCode()
	}
	if err != nil {
		return -1
	}
	return 0
}

func failureReason(err error, lastLine string) string {
	if lastLine == "" {
		return err.Error()
	}
	return fmt.Sprintf("%v: %s", err, lastLine)
}

// lockedWriter serializes writes from the stdout and stderr copiers.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	max int
	buf []byte
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.max; over > 0 {
		t.buf = t.buf[over:]
	}
	return len(p), nil
}

// LastLine returns the last non-blank line written.
func (t *tailBuffer) LastLine() string {
	lines := bytes.Split(bytes.TrimRight(t.buf, "\r\n\t "), []byte("\n"))
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(string(lines[i])); line != "" {
			return line
		}
	}
	return ""
}
