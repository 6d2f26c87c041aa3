// Package config holds the foldrun tool settings: where the pipeline
// configuration document and state file live, how step collaborators are
// invoked, logging, and archive behavior. Settings are loaded through viper
// from defaults, an optional foldrun.yaml, FOLDRUN_* environment variables
// and bound command-line flags.
//
// The scientific configuration document (global section, prediction and
// analysis runs) is a separate artifact handled by package runconfig.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config represents the complete foldrun tool configuration
type Config struct {
	// PipelineConfig is the path of the pipeline configuration document
	PipelineConfig string `mapstructure:"pipeline_config"`
	// StateFile is the path of the persisted execution state
	StateFile string `mapstructure:"state_file"`
	// RunsDir is the root under which each run's directories are created
	// when the document declares a run matrix
	RunsDir string `mapstructure:"runs_dir"`
	// StepLogsDir receives one captured stdout/stderr log per step invocation
	StepLogsDir string `mapstructure:"step_logs_dir"`

	Logging LoggingConfig `mapstructure:"logging"`
	Steps   StepsConfig   `mapstructure:"steps"`
	Archive ArchiveConfig `mapstructure:"archive"`
}

// LoggingConfig controls the structured log file
type LoggingConfig struct {
	// Enabled controls whether the structured log file is written (default: true)
	Enabled bool `mapstructure:"enabled"`
	// Level is the log level: "debug", "info", "warn", "error" (default: "info")
	Level string `mapstructure:"level"`
	// Dir is the directory holding foldrun.log (default: ".foldrun/logs")
	Dir string `mapstructure:"dir"`
	// MaxSizeMB is the size at which the log is rotated (default: 10, 0 disables)
	MaxSizeMB int `mapstructure:"max_size_mb"`
	// MaxBackups is the number of rotated files to keep (default: 3)
	MaxBackups int `mapstructure:"max_backups"`
	// Compress gzips rotated files (default: false)
	Compress bool `mapstructure:"compress"`
}

// StepsConfig controls how step collaborators are invoked
type StepsConfig struct {
	// Python is the interpreter used for the bundled pipeline scripts
	Python string `mapstructure:"python"`
	// ScriptsDir is the directory containing the pipeline scripts
	ScriptsDir string `mapstructure:"scripts_dir"`
	// MaxAttempts is how many times a failing step is attempted (default: 1, no retry)
	MaxAttempts int `mapstructure:"max_attempts"`
	// Commands overrides the command prefix for individual steps, keyed by
	// step name, e.g. {"chai-run": ["sbatch", "--wait", "run_chai.sh"]}
	Commands map[string][]string `mapstructure:"commands"`
}

// ArchiveConfig controls the archive phase
type ArchiveConfig struct {
	// Prefix names the timestamped archive directory (default: "archive_")
	Prefix string `mapstructure:"prefix"`
	// Remote mirrors the archive directory to S3-compatible storage
	Remote RemoteConfig `mapstructure:"remote"`
}

// RemoteConfig configures the optional S3-compatible archive mirror
type RemoteConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Endpoint  string `mapstructure:"endpoint"`
	Bucket    string `mapstructure:"bucket"`
	Prefix    string `mapstructure:"prefix"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Region    string `mapstructure:"region"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	// Concurrency bounds parallel uploads (default: 4)
	Concurrency int `mapstructure:"concurrency"`
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		PipelineConfig: "pipeline_config.json",
		StateFile:      "pipeline_state.json",
		RunsDir:        "runs",
		StepLogsDir:    filepath.Join(".foldrun", "steps"),
		Logging: LoggingConfig{
			Enabled:    true,
			Level:      "info",
			Dir:        filepath.Join(".foldrun", "logs"),
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
		Steps: StepsConfig{
			Python:      "python",
			ScriptsDir:  "src",
			MaxAttempts: 1,
			Commands:    map[string][]string{},
		},
		Archive: ArchiveConfig{
			Prefix: "archive_",
			Remote: RemoteConfig{
				UseSSL:      true,
				Concurrency: 4,
			},
		},
	}
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	viper.SetDefault("pipeline_config", defaults.PipelineConfig)
	viper.SetDefault("state_file", defaults.StateFile)
	viper.SetDefault("runs_dir", defaults.RunsDir)
	viper.SetDefault("step_logs_dir", defaults.StepLogsDir)

	viper.SetDefault("logging.enabled", defaults.Logging.Enabled)
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.dir", defaults.Logging.Dir)
	viper.SetDefault("logging.max_size_mb", defaults.Logging.MaxSizeMB)
	viper.SetDefault("logging.max_backups", defaults.Logging.MaxBackups)
	viper.SetDefault("logging.compress", defaults.Logging.Compress)

	viper.SetDefault("steps.python", defaults.Steps.Python)
	viper.SetDefault("steps.scripts_dir", defaults.Steps.ScriptsDir)
	viper.SetDefault("steps.max_attempts", defaults.Steps.MaxAttempts)
	viper.SetDefault("steps.commands", defaults.Steps.Commands)

	viper.SetDefault("archive.prefix", defaults.Archive.Prefix)
	viper.SetDefault("archive.remote.enabled", defaults.Archive.Remote.Enabled)
	viper.SetDefault("archive.remote.endpoint", defaults.Archive.Remote.Endpoint)
	viper.SetDefault("archive.remote.bucket", defaults.Archive.Remote.Bucket)
	viper.SetDefault("archive.remote.prefix", defaults.Archive.Remote.Prefix)
	viper.SetDefault("archive.remote.access_key", defaults.Archive.Remote.AccessKey)
	viper.SetDefault("archive.remote.secret_key", defaults.Archive.Remote.SecretKey)
	viper.SetDefault("archive.remote.region", defaults.Archive.Remote.Region)
	viper.SetDefault("archive.remote.use_ssl", defaults.Archive.Remote.UseSSL)
	viper.SetDefault("archive.remote.concurrency", defaults.Archive.Remote.Concurrency)
}

// Load reads the configuration from viper and validates it.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom unmarshals and validates the configuration held by v.
func LoadFrom(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "foldrun")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".foldrun"
	}
	return filepath.Join(home, ".config", "foldrun")
}

// ResolvePath expands a leading ~ and resolves relative paths against baseDir.
func ResolvePath(baseDir, path string) string {
	if path == "" {
		return path
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(baseDir, path)
	}
	return path
}
