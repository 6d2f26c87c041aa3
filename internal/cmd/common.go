package cmd

import (
	"io"
	"os"

	"github.com/charmbracelet/x/term"
	"github.com/spf13/viper"

	"github.com/westberg-lab/foldrun/internal/config"
	"github.com/westberg-lab/foldrun/internal/errors"
	"github.com/westberg-lab/foldrun/internal/logging"
	"github.com/westberg-lab/foldrun/internal/runconfig"
)

// loadSettings loads and validates the tool settings.
func loadSettings() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, errors.NewConfigError("invalid settings", errors.Join(errors.ErrConfigParse, err)).
			WithPath(viper.ConfigFileUsed())
	}
	return cfg, nil
}

// loadDocument reads the pipeline configuration. A missing file falls back
// to the built-in legacy defaults.
func loadDocument(path string, console *logging.Console) (*runconfig.Document, error) {
	doc, err := runconfig.Load(path)
	if errors.Is(err, errors.ErrConfigNotFound) {
		console.Warnf("Config file %s not found, using built-in defaults", path)
		return runconfig.DefaultDocument(), nil
	}
	return doc, err
}

// newLogger opens the structured log configured in cfg, or a no-op logger
// when logging is disabled.
func newLogger(cfg *config.Config) (*logging.Logger, error) {
	if !cfg.Logging.Enabled {
		return logging.NopLogger(), nil
	}
	logger, err := logging.NewLoggerWithRotation(cfg.Logging.Dir, cfg.Logging.Level, logging.RotationConfig{
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		Compress:   cfg.Logging.Compress,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to open log")
	}
	return logger, nil
}

// terminal reports whether w is a terminal and its width, 0 when unknown.
func terminal(w io.Writer) (bool, int) {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(f.Fd()) {
		return false, 0
	}
	width, _, err := term.GetSize(f.Fd())
	if err != nil {
		return true, 0
	}
	return true, width
}
