// Package cmd implements the foldrun command line.
package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/westberg-lab/foldrun/internal/config"
	"github.com/westberg-lab/foldrun/internal/errors"
)

var rootCmd = &cobra.Command{
	Use:   "foldrun",
	Short: "Structure prediction and analysis pipeline orchestrator",
	Long: `foldrun drives a multi-stage structure prediction pipeline across a
matrix of prediction runs and analysis runs. Every step is recorded in a
state file so an interrupted or partially failed pipeline can be resumed
without redoing completed work.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command with ctx, which is cancelled on interrupt.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// PrintError reports err on w. Errors not meant for end users get a hint
// pointing at the debug log.
func PrintError(w io.Writer, err error) {
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled):
		fmt.Fprintln(w, "Interrupted")
	case unclassified(err):
		fmt.Fprintf(w, "Error: %v\n", err)
		fmt.Fprintln(w, "Run with --log-level debug and check the foldrun log for details.")
	default:
		fmt.Fprintf(w, "Error: %v\n", err)
	}
}

// unclassified reports whether err carries no pipeline classification.
func unclassified(err error) bool {
	return !errors.IsUserFacing(err) &&
		!errors.Is(err, errors.ErrRunsFailed) &&
		errors.ExitCode(err) == errors.ExitRunsFailed
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return fmt.Errorf("%w: %w", err, errors.ErrUsage)
	})

	// Global flags
	rootCmd.PersistentFlags().String("settings", "", "settings file (default is ./foldrun.yaml or $HOME/.config/foldrun/foldrun.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")
	_ = viper.BindPFlag("settings", rootCmd.PersistentFlags().Lookup("settings"))
}

func initConfig() {
	// Set defaults first so they're available even without a settings file
	config.SetDefaults()

	if settingsFile := viper.GetString("settings"); settingsFile != "" {
		viper.SetConfigFile(settingsFile)
	} else {
		viper.SetConfigName("foldrun")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath(config.ConfigDir())
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("FOLDRUN")
	// e.g. FOLDRUN_STEPS_MAX_ATTEMPTS for steps.max_attempts
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read settings file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()

	if level := rootCmd.PersistentFlags().Lookup("log-level"); level != nil && level.Changed {
		viper.Set("logging.level", level.Value.String())
	}
}
