package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/jaa/npk/internal/progress"
)

var minVersionPattern = regexp.MustCompile(`^\d+(\.\d+){0,2}$`)

type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	if len(e.Problems) == 0 {
		return "invalid config"
	}
	return fmt.Sprintf("invalid config: %s", strings.Join(e.Problems, "; "))
}

func Validate(cfg Config) error {
	problems := []string{}

	if cfg.Version != 1 {
		problems = append(problems, "version must be 1")
	}

	if strings.TrimSpace(cfg.Nuitka.MinVersion) != "" && !minVersionPattern.MatchString(cfg.Nuitka.MinVersion) {
		problems = append(problems, fmt.Sprintf("nuitka.min_version %q must look like 1.2.3", cfg.Nuitka.MinVersion))
	}

	presetsDir, err := ExpandPath(cfg.PresetsDir)
	if err != nil || strings.TrimSpace(presetsDir) == "" {
		problems = append(problems, "presets_dir must be a valid path")
	} else if !filepath.IsAbs(presetsDir) {
		problems = append(problems, "presets_dir must resolve to an absolute path")
	}

	if _, err := ExpandPath(cfg.DefaultOutputDir); err != nil {
		problems = append(problems, "default_output_dir must be a valid path")
	}

	if cfg.CommandTimeoutSeconds < 0 {
		problems = append(problems, "command_timeout_seconds must be >= 0")
	}
	if cfg.Progress.TickIntervalMS <= 0 {
		problems = append(problems, "progress.tick_interval_ms must be > 0")
	}
	if cfg.Progress.TickIncrement <= 0 || cfg.Progress.TickIncrement > 100 {
		problems = append(problems, "progress.tick_increment must be between 1 and 100")
	}
	if cfg.Progress.LineNudgeIncrement < 0 || cfg.Progress.LineNudgeIncrement > 100 {
		problems = append(problems, "progress.line_nudge_increment must be between 0 and 100")
	}
	if _, err := cfg.StageModel(); err != nil {
		var modelErr *progress.ValidationError
		if errors.As(err, &modelErr) {
			for _, problem := range modelErr.Problems {
				problems = append(problems, "progress: "+problem)
			}
		} else {
			problems = append(problems, fmt.Sprintf("progress: %v", err))
		}
	}

	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		problems = append(problems, fmt.Sprintf("logging.level %q must be one of debug, info, warn, error", cfg.Logging.Level))
	}
	switch cfg.Logging.Format {
	case "text", "json":
	default:
		problems = append(problems, fmt.Sprintf("logging.format %q must be text or json", cfg.Logging.Format))
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}
