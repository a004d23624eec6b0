package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-logr/logr"
	"github.com/mattn/go-isatty"

	"github.com/jaa/npk/internal/config"
	"github.com/jaa/npk/internal/exitcode"
	"github.com/jaa/npk/internal/logging"
	"github.com/jaa/npk/internal/preset"
)

func loadConfig(app *AppContext) (config.Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return config.Config{}, fmt.Errorf("resolve working directory: %w", err)
	}

	cfg, err := config.Load(config.LoadOptions{
		ExplicitPath: strings.TrimSpace(app.Opts.ConfigPath),
		WorkingDir:   wd,
	})
	if err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// loadValidConfig is loadConfig plus validation, both mapped to the
// invalid-config exit code.
func loadValidConfig(app *AppContext) (config.Config, error) {
	cfg, err := loadConfig(app)
	if err != nil {
		return config.Config{}, withExitCode(exitcode.InvalidConfig, err)
	}
	if err := config.Validate(cfg); err != nil {
		return config.Config{}, withExitCode(exitcode.InvalidConfig, err)
	}
	return cfg, nil
}

func newLogger(app *AppContext, cfg config.Config) logr.Logger {
	level := cfg.Logging.Level
	if app.Opts.Verbose {
		level = "debug"
	}
	log, err := logging.New(level, cfg.Logging.Format, app.IO.ErrOut)
	if err != nil {
		fmt.Fprintln(app.IO.ErrOut, "WARN:", err)
		return logr.Discard()
	}
	return log
}

func presetStore(cfg config.Config) (*preset.Store, error) {
	dir, err := config.ExpandPath(cfg.PresetsDir)
	if err != nil {
		return nil, fmt.Errorf("resolve presets_dir: %w", err)
	}
	return preset.NewStore(dir), nil
}

func isTTY(file *os.File) bool {
	return isatty.IsTerminal(file.Fd()) || isatty.IsCygwinTerminal(file.Fd())
}
