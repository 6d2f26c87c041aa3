package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/westberg-lab/foldrun/internal/orchestrator"
	"github.com/westberg-lab/foldrun/internal/state"
	"github.com/westberg-lab/foldrun/internal/util"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the recorded pipeline state",
	Long: `Show every step recorded in the state file with its status, attempts,
duration and failure reason.`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

var (
	statusStateFile string
	statusJSON      bool
)

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().StringVar(&statusStateFile, "state-file", "", "state file (default from settings: pipeline_state.json)")
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "print the state as JSON")
}

func runStatus(cmd *cobra.Command, _ []string) error {
	cfg, err := loadSettings()
	if err != nil {
		return err
	}
	path := firstNonEmpty(statusStateFile, cfg.StateFile)

	st, err := state.Load(path)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if statusJSON {
		data, err := json.MarshalIndent(st, "", "  ")
		if err != nil {
			return fmt.Errorf("encode state: %w", err)
		}
		_, err = fmt.Fprintf(out, "%s\n", data)
		return err
	}

	if st.IsEmpty() {
		fmt.Fprintf(out, "No pipeline state recorded at %s\n", path)
		return nil
	}

	styled, width := terminal(out)
	title := lipgloss.NewStyle()
	if styled {
		title = title.Bold(true)
	}
	fmt.Fprintln(out, title.Render("Pipeline state: "+path))
	fmt.Fprintf(out, "Configuration: %s\n", util.ShortHash(st.ConfigFingerprint, 12))
	fmt.Fprintf(out, "Created:       %s\n", st.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	if st.InvocationID != "" {
		fmt.Fprintf(out, "Invocation:    %s\n", st.InvocationID)
	}

	counts := st.Counts()
	fmt.Fprintf(out, "Steps:         %d succeeded, %d failed, %d running, %d pending\n",
		counts[state.StatusSucceeded], counts[state.StatusFailed], counts[state.StatusRunning], counts[state.StatusPending])

	errWidth := 0
	if width > 0 {
		errWidth = max(20, width-80)
	}
	rows := make([][]string, 0, len(st.Records))
	for _, rec := range st.Records {
		run := rec.RunID
		if run == "" {
			run = "-"
		}
		started := "-"
		if rec.StartedAt != nil {
			started = rec.StartedAt.Local().Format("01-02 15:04:05")
		}
		duration := "-"
		if d := rec.Duration(); d > 0 {
			duration = d.Round(time.Second).String()
		}
		reason := util.FirstLine(rec.Error)
		if errWidth > 0 {
			reason = util.TruncateANSI(reason, errWidth)
		}
		rows = append(rows, []string{
			run,
			rec.Step,
			string(rec.Status),
			fmt.Sprintf("%d", rec.Attempts),
			started,
			duration,
			reason,
		})
	}
	fmt.Fprintln(out, orchestrator.NewTable(styled, 2,
		[]string{"RUN", "STEP", "STATUS", "ATTEMPTS", "STARTED", "DURATION", "ERROR"}, rows).String())
	return nil
}
