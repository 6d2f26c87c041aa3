package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/westberg-lab/foldrun/internal/errors"
	"github.com/westberg-lab/foldrun/internal/logging"
	"github.com/westberg-lab/foldrun/internal/runconfig"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect the pipeline configuration",
	Long: `Inspect the pipeline configuration.

Without arguments, shows the global configuration after defaults are
applied. Use subcommands to show the effective configuration of a run or to
validate the document.`,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long: `Show the effective configuration of a prediction run, an analysis run,
or a (prediction, analysis) pair: the global section merged with the runs'
parameters.`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration document and settings",
	Args:  cobra.NoArgs,
	RunE:  runConfigValidate,
}

var configSettingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show the tool settings",
	Args:  cobra.NoArgs,
	RunE:  runConfigSettings,
}

var (
	configDocPath     string
	configPredRun     string
	configAnalysisRun string
)

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configSettingsCmd)

	configCmd.PersistentFlags().StringVar(&configDocPath, "config", "", "pipeline configuration document (default from settings: pipeline_config.json)")
	configShowCmd.Flags().StringVar(&configPredRun, "prediction-run", "", "prediction run to merge")
	configShowCmd.Flags().StringVar(&configAnalysisRun, "analysis-run", "", "analysis run to merge")
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	cfg, err := loadSettings()
	if err != nil {
		return err
	}
	console := logging.NewConsole(cmd.ErrOrStderr(), false)
	doc, err := loadDocument(firstNonEmpty(configDocPath, cfg.PipelineConfig), console)
	if err != nil {
		return err
	}

	pred, err := lookupRun(doc, runconfig.Prediction, configPredRun)
	if err != nil {
		return err
	}
	analysis, err := lookupRun(doc, runconfig.Analysis, configAnalysisRun)
	if err != nil {
		return err
	}

	effective := doc.Effective(pred, analysis, runconfig.Null())
	data, err := yaml.Marshal(effective.Any())
	if err != nil {
		return fmt.Errorf("encode configuration: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "# source: %s\n", firstNonEmpty(doc.Path, "(built-in defaults)"))
	if pred != nil {
		fmt.Fprintf(out, "# prediction run: %s\n", pred.ID)
	}
	if analysis != nil {
		fmt.Fprintf(out, "# analysis run: %s\n", analysis.ID)
	}
	_, err = out.Write(data)
	return err
}

func lookupRun(doc *runconfig.Document, kind runconfig.RunKind, id string) (*runconfig.RunDefinition, error) {
	if id == "" {
		return nil, nil
	}
	run, ok := doc.Run(kind, id)
	if !ok {
		return nil, fmt.Errorf("%s run %q: %w", kind, id, errors.ErrUnknownRunID)
	}
	return &run, nil
}

func runConfigValidate(cmd *cobra.Command, _ []string) error {
	cfg, err := loadSettings()
	if err != nil {
		return err
	}

	path := firstNonEmpty(configDocPath, cfg.PipelineConfig)
	doc, err := runconfig.Load(path)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s is valid\n", path)
	if doc.Legacy {
		fmt.Fprintln(out, "  legacy layout: one implicit prediction run and one implicit analysis run")
	}
	for _, kind := range []runconfig.RunKind{runconfig.Prediction, runconfig.Analysis} {
		enabled, _ := runconfig.ListEnabledRuns(doc, kind, nil)
		fmt.Fprintf(out, "  %s runs: %d declared, %d enabled\n", kind, len(doc.Runs(kind)), len(enabled))
	}
	return nil
}

func runConfigSettings(cmd *cobra.Command, _ []string) error {
	if _, err := loadSettings(); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if used := viper.ConfigFileUsed(); used != "" {
		fmt.Fprintf(out, "# settings file: %s\n", used)
	} else {
		fmt.Fprintln(out, "# settings file: (none - using defaults)")
	}

	settings := viper.AllSettings()
	redact(settings)
	data, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	_, err = out.Write(data)
	return err
}

// redact hides credentials in a settings tree.
func redact(m map[string]any) {
	for k, v := range m {
		switch val := v.(type) {
		case map[string]any:
			redact(val)
		case string:
			if (k == "secret_key" || k == "access_key") && val != "" {
				m[k] = "********"
			}
		}
	}
}
