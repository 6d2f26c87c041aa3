package cmd

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/westberg-lab/foldrun/internal/archive"
	"github.com/westberg-lab/foldrun/internal/config"
	"github.com/westberg-lab/foldrun/internal/errors"
	"github.com/westberg-lab/foldrun/internal/logging"
	"github.com/westberg-lab/foldrun/internal/orchestrator"
	"github.com/westberg-lab/foldrun/internal/runconfig"
	"github.com/westberg-lab/foldrun/internal/state"
	"github.com/westberg-lab/foldrun/internal/step"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the pipeline",
	Long: `Run the pipeline: archive previous outputs, execute every enabled
prediction run, then every enabled analysis run whose source prediction
runs completed.

With --resume, steps recorded as succeeded in the state file are skipped.
The state must have been written for the same configuration unless
--force-resume is given.

Steps: ` + strings.Join(step.Names(), ", "),
	Args: cobra.NoArgs,
	RunE: runPipeline,
}

var (
	runConfigPath  string
	runStateFile   string
	runResume      bool
	runForceResume bool
	runCleanState  bool
	runNoArchive   bool
	runDeleteOuts  bool
	runSkipSteps   []string
	runPredictions []string
	runAnalyses    []string
	runEnablePred  []string
	runDisablePred []string
	runEnableAna   []string
	runDisableAna  []string
	runDryRun      bool
	runQuiet       bool
	runJSON        bool
)

// methodToggles pairs --use-X and --no-X flags with their methods key.
var methodToggles = []struct {
	key string
	on  string
	off string
}{
	{"use_chai", "use-chai", "no-chai"},
	{"use_boltz", "use-boltz", "no-boltz"},
	{"use_msa", "use-msa", "no-msa"},
	{"use_msa_dir", "use-msa-dir", "no-msa-dir"},
}

func init() {
	rootCmd.AddCommand(runCmd)

	f := runCmd.Flags()
	f.StringVar(&runConfigPath, "config", "", "pipeline configuration document (default from settings: pipeline_config.json)")
	f.StringVar(&runStateFile, "state-file", "", "state file (default from settings: pipeline_state.json)")
	f.BoolVar(&runResume, "resume", false, "skip steps recorded as succeeded in the state file")
	f.BoolVar(&runForceResume, "force-resume", false, "resume even if the configuration changed")
	f.BoolVar(&runCleanState, "clean-state", false, "delete the state file before running")
	f.BoolVar(&runNoArchive, "no-archive", false, "delete previous outputs instead of archiving them")
	f.BoolVar(&runDeleteOuts, "delete-outputs", false, "alias for --no-archive")
	f.StringArrayVar(&runSkipSteps, "skip-step", nil, "skip a step (repeatable)")
	f.StringSliceVar(&runPredictions, "prediction-runs", nil, "only execute these prediction runs (comma-separated)")
	f.StringSliceVar(&runAnalyses, "analysis-runs", nil, "only execute these analysis runs (comma-separated)")
	f.StringArrayVar(&runEnablePred, "enable-prediction", nil, "enable a prediction run (repeatable)")
	f.StringArrayVar(&runDisablePred, "disable-prediction", nil, "disable a prediction run (repeatable)")
	f.StringArrayVar(&runEnableAna, "enable-analysis", nil, "enable an analysis run (repeatable)")
	f.StringArrayVar(&runDisableAna, "disable-analysis", nil, "disable an analysis run (repeatable)")
	f.BoolVar(&runDryRun, "dry-run", false, "print the planned steps without executing them")
	f.BoolVarP(&runQuiet, "quiet", "q", false, "suppress progress output")
	f.BoolVar(&runJSON, "json", false, "print the summary as JSON")
	addOverrideFlags(f)
}

// addOverrideFlags registers the flags read by overridesFromFlags.
func addOverrideFlags(f *pflag.FlagSet) {
	for _, t := range methodToggles {
		f.Bool(t.on, false, fmt.Sprintf("set methods.%s for every run", t.key))
		f.Bool(t.off, false, fmt.Sprintf("unset methods.%s for every run", t.key))
	}
	f.String("template", "", "reference template structure")
	f.Int("model-idx", 4, "model index used for alignment")
	for _, key := range runconfig.DirectoryKeys() {
		f.String(dirFlag(key), "", fmt.Sprintf("override directories.%s", key))
	}
}

func dirFlag(key string) string {
	return strings.ReplaceAll(key, "_", "-")
}

func runPipeline(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadSettings()
	if err != nil {
		return err
	}
	invocationID := uuid.NewString()

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Close()
	logger = logger.WithInvocation(invocationID)

	// Progress goes to stderr when stdout carries the JSON summary.
	progress := cmd.OutOrStdout()
	if runJSON {
		progress = cmd.ErrOrStderr()
	}
	console := logging.NewConsole(progress, runQuiet)

	configPath := firstNonEmpty(runConfigPath, cfg.PipelineConfig)
	doc, err := loadDocument(configPath, console)
	if err != nil {
		return err
	}
	if err := applySelectors(doc); err != nil {
		return err
	}

	overrides, err := overridesFromFlags(cmd.Flags())
	if err != nil {
		return err
	}

	executor, err := step.NewCommandExecutor(step.CommandConfig{
		Python:     cfg.Steps.Python,
		ScriptsDir: cfg.Steps.ScriptsDir,
		Commands:   cfg.Steps.Commands,
		LogsDir:    cfg.StepLogsDir,
		Output:     console.Writer(),
	}, logger)
	if err != nil {
		return fmt.Errorf("%v: %w", err, errors.ErrUsage)
	}

	opts := orchestrator.Options{
		InvocationID:   invocationID,
		Resume:         runResume || runForceResume,
		ForceResume:    runForceResume,
		CleanState:     runCleanState,
		SkipSteps:      runSkipSteps,
		PredictionRuns: runPredictions,
		AnalysisRuns:   runAnalyses,
		Overrides:      overrides.Value(),
		RunsDir:        cfg.RunsDir,
		MaxAttempts:    cfg.Steps.MaxAttempts,
		DryRun:         runDryRun,
		Quiet:          runQuiet,
	}

	archiver, err := newArchiver(cfg, doc, opts, logger, console)
	if err != nil {
		return err
	}

	statePath := firstNonEmpty(runStateFile, cfg.StateFile)
	logger.Info("invocation started",
		"config", configPath,
		"state_file", statePath,
		"settings", viper.ConfigFileUsed(),
	)

	o := orchestrator.New(doc, state.NewStore(statePath), executor, archiver, opts, logger, console)
	summary, runErr := o.Run(ctx)
	if runErr != nil {
		logger.Error("invocation failed",
			"severity", errors.GetSeverity(runErr).String(),
			"exit_code", errors.ExitCode(runErr),
			"error", runErr.Error(),
		)
	}
	if summary != nil && (len(summary.Runs) > 0 || summary.DryRun || runJSON) {
		if runJSON {
			if err := summary.WriteJSON(cmd.OutOrStdout()); err != nil {
				return err
			}
		} else {
			styled, width := terminal(cmd.OutOrStdout())
			summary.Render(cmd.OutOrStdout(), styled, width)
		}
	}
	return runErr
}

// applySelectors applies --enable-*/--disable-* to the document.
func applySelectors(doc *runconfig.Document) error {
	selectors := []struct {
		kind    runconfig.RunKind
		ids     []string
		enabled bool
	}{
		{runconfig.Prediction, runEnablePred, true},
		{runconfig.Prediction, runDisablePred, false},
		{runconfig.Analysis, runEnableAna, true},
		{runconfig.Analysis, runDisableAna, false},
	}
	for _, s := range selectors {
		for _, id := range s.ids {
			if err := doc.SetEnabled(s.kind, id, s.enabled); err != nil {
				return err
			}
		}
	}
	return nil
}

// overridesFromFlags collects method, template and directory overrides.
// Only flags given on the command line count.
func overridesFromFlags(flags *pflag.FlagSet) (runconfig.Overrides, error) {
	var o runconfig.Overrides

	for _, t := range methodToggles {
		on := flags.Changed(t.on)
		off := flags.Changed(t.off)
		if on && off {
			return o, fmt.Errorf("--%s and --%s are mutually exclusive: %w", t.on, t.off, errors.ErrUsage)
		}
		if !on && !off {
			continue
		}
		name := t.off
		if on {
			name = t.on
		}
		set, err := flags.GetBool(name)
		if err != nil {
			return o, err
		}
		value := set == on
		switch t.key {
		case "use_chai":
			o.UseChai = &value
		case "use_boltz":
			o.UseBoltz = &value
		case "use_msa":
			o.UseMSA = &value
		case "use_msa_dir":
			o.UseMSADir = &value
		}
	}

	if flags.Changed("template") {
		tmpl, _ := flags.GetString("template")
		o.Template = &tmpl
	}
	if flags.Changed("model-idx") {
		idx, _ := flags.GetInt("model-idx")
		if idx < 0 {
			return o, fmt.Errorf("--model-idx must not be negative: %w", errors.ErrUsage)
		}
		o.ModelIdx = &idx
	}

	for _, key := range runconfig.DirectoryKeys() {
		if !flags.Changed(dirFlag(key)) {
			continue
		}
		dir, _ := flags.GetString(dirFlag(key))
		if dir == "" {
			return o, fmt.Errorf("--%s must not be empty: %w", dirFlag(key), errors.ErrUsage)
		}
		if o.Directories == nil {
			o.Directories = make(map[string]string)
		}
		o.Directories[key] = dir
	}
	return o, nil
}

// newArchiver builds the archive phase, mirroring archives to remote
// storage when enabled. It returns nil when the archive step is skipped.
// Nothing touches the network here; the bucket is prepared on first upload.
func newArchiver(cfg *config.Config, doc *runconfig.Document, opts orchestrator.Options, logger *logging.Logger, console *logging.Console) (orchestrator.Archiver, error) {
	if slices.Contains(opts.SkipSteps, step.Archive) {
		return nil, nil
	}

	dirs, recreate := orchestrator.ArchiveTargets(doc, opts.Overrides, cfg.RunsDir)
	archiveOpts := archive.Options{
		Dirs:     dirs,
		Files:    archive.DefaultResultFiles,
		Recreate: recreate,
		Prefix:   cfg.Archive.Prefix,
		Delete:   runNoArchive || runDeleteOuts,
	}

	var mirror *archive.Mirror
	remote := cfg.Archive.Remote
	if remote.Enabled && !archiveOpts.Delete && !opts.DryRun {
		uploader, err := archive.NewMinIOUploader(archive.RemoteConfig{
			Endpoint:  remote.Endpoint,
			Bucket:    remote.Bucket,
			Prefix:    remote.Prefix,
			AccessKey: remote.AccessKey,
			SecretKey: remote.SecretKey,
			Region:    remote.Region,
			UseSSL:    remote.UseSSL,
		})
		if err != nil {
			return nil, errors.NewArchiveError("configure remote archive", err).WithTarget(remote.Endpoint)
		}
		mirror = archive.NewMirror(uploader, remote.Prefix, remote.Concurrency, logger.WithPhase(step.PhaseArchive.String()))
	}

	return archive.New(archiveOpts, mirror, logger.WithPhase(step.PhaseArchive.String()), console), nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
