package orchestrator

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/westberg-lab/foldrun/internal/archive"
	"github.com/westberg-lab/foldrun/internal/step"
	"github.com/westberg-lab/foldrun/internal/util"
)

// RunStatus is the state of one run within an invocation.
type RunStatus string

const (
	RunNotStarted RunStatus = "not_started"
	RunRunning    RunStatus = "running"
	RunCompleted  RunStatus = "completed"
	RunFailed     RunStatus = "failed"
	RunSkipped    RunStatus = "skipped"
)

// RunResult is the outcome of one attempted or skipped run.
type RunResult struct {
	RunID  string    `json:"run_id"`
	Phase  string    `json:"phase"`
	Status RunStatus `json:"status"`
	// Reason explains a failed or skipped run.
	Reason     string `json:"reason,omitempty"`
	FailedStep string `json:"failed_step,omitempty"`
	// Executed counts steps that succeeded in this invocation, Resumed those
	// skipped because a prior invocation succeeded.
	Executed     int           `json:"executed"`
	Resumed      int           `json:"resumed"`
	SkippedSteps []string      `json:"skipped_steps,omitempty"`
	Duration     time.Duration `json:"duration_ns"`
}

// PhaseCounts counts terminal run states for one phase.
type PhaseCounts struct {
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// Summary describes an invocation.
type Summary struct {
	InvocationID string          `json:"invocation_id"`
	Fingerprint  string          `json:"config_fingerprint"`
	DryRun       bool            `json:"dry_run,omitempty"`
	Archive      *archive.Result `json:"archive,omitempty"`
	Runs         []RunResult     `json:"runs"`
	Plan         []PlannedStep   `json:"plan,omitempty"`
}

// Counts returns terminal run counts for phase.
func (s *Summary) Counts(phase step.Phase) PhaseCounts {
	var c PhaseCounts
	for _, r := range s.Runs {
		if r.Phase != phase.String() {
			continue
		}
		switch r.Status {
		case RunCompleted:
			c.Completed++
		case RunFailed:
			c.Failed++
		case RunSkipped:
			c.Skipped++
		}
	}
	return c
}

// FailedRuns returns the number of runs that ended Failed.
func (s *Summary) FailedRuns() int {
	return s.count(RunFailed)
}

func (s *Summary) count(status RunStatus) int {
	n := 0
	for _, r := range s.Runs {
		if r.Status == status {
			n++
		}
	}
	return n
}

// WriteJSON writes the summary as indented JSON.
func (s *Summary) WriteJSON(w io.Writer) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	_, err = fmt.Fprintf(w, "%s\n", data)
	return err
}

// Palette for styled output.
var (
	colorGreen = lipgloss.Color("#10B981")
	colorRed   = lipgloss.Color("#F87171")
	colorAmber = lipgloss.Color("#F59E0B")
	colorMuted = lipgloss.Color("#9CA3AF")
	colorTitle = lipgloss.Color("#A78BFA")
)

// StatusColor returns the display color for a status name shared by runs
// and step records.
func StatusColor(status string) lipgloss.Color {
	switch strings.ToLower(status) {
	case string(RunCompleted), "succeeded":
		return colorGreen
	case string(RunFailed):
		return colorRed
	case string(RunSkipped), string(RunRunning):
		return colorAmber
	default:
		return colorMuted
	}
}

// NewTable returns a table styled for a terminal, or with ASCII borders
// and no colors when styled is false. statusCol is the column colored by
// StatusColor, or -1.
func NewTable(styled bool, statusCol int, headers []string, rows [][]string) *table.Table {
	border := lipgloss.ASCIIBorder()
	if styled {
		border = lipgloss.RoundedBorder()
	}
	cell := lipgloss.NewStyle().Padding(0, 1)

	t := table.New().
		Border(border).
		Headers(headers...).
		Rows(rows...)
	if !styled {
		return t.StyleFunc(func(row, col int) lipgloss.Style { return cell })
	}
	return t.
		BorderStyle(lipgloss.NewStyle().Foreground(colorMuted)).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return cell.Bold(true)
			}
			if col == statusCol && row >= 0 && row < len(rows) {
				return cell.Foreground(StatusColor(rows[row][col]))
			}
			return cell
		})
}

// Render writes the human-readable summary. width bounds the reason column
// when positive.
func (s *Summary) Render(w io.Writer, styled bool, width int) {
	title := lipgloss.NewStyle()
	if styled {
		title = title.Bold(true).Foreground(colorTitle)
	}

	if s.DryRun {
		fmt.Fprintln(w, title.Render("Dry run: planned steps"))
		fmt.Fprintln(w, NewTable(styled, -1, []string{"PHASE", "RUN", "STEP", "ACTION"}, s.planRows()).String())
		return
	}

	fmt.Fprintln(w, title.Render("Pipeline summary"))
	if s.Archive != nil && s.Archive.ArchiveDir != "" {
		fmt.Fprintf(w, "Archived previous outputs to %s\n", s.Archive.ArchiveDir)
	}
	for _, phase := range []step.Phase{step.PhasePrediction, step.PhaseAnalysis} {
		c := s.Counts(phase)
		fmt.Fprintf(w, "%-11s %d completed, %d failed, %d skipped\n", phase.String()+":", c.Completed, c.Failed, c.Skipped)
	}
	if len(s.Runs) == 0 {
		return
	}

	reasonWidth := 0
	if width > 0 {
		reasonWidth = max(20, width-70)
	}
	rows := make([][]string, 0, len(s.Runs))
	for _, r := range s.Runs {
		reason := util.FirstLine(r.Reason)
		if r.FailedStep != "" {
			reason = r.FailedStep + ": " + reason
		}
		if reasonWidth > 0 {
			reason = util.TruncateANSI(reason, reasonWidth)
		}
		rows = append(rows, []string{
			r.Phase,
			r.RunID,
			string(r.Status),
			fmt.Sprintf("%d run, %d resumed", r.Executed, r.Resumed),
			r.Duration.Round(time.Second).String(),
			reason,
		})
	}
	fmt.Fprintln(w, NewTable(styled, 2, []string{"PHASE", "RUN", "STATUS", "STEPS", "DURATION", "REASON"}, rows).String())
}

func (s *Summary) planRows() [][]string {
	rows := make([][]string, 0, len(s.Plan))
	for _, p := range s.Plan {
		run := p.RunID
		if run == "" {
			run = "-"
		}
		rows = append(rows, []string{p.Phase, run, p.Step, p.Action})
	}
	return rows
}
