package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jaa/npk/internal/progress"
)

type LoadOptions struct {
	ExplicitPath string
	WorkingDir   string
	Env          map[string]string
}

type fileConfig struct {
	Version               *int         `yaml:"version"`
	Nuitka                fileNuitka   `yaml:"nuitka"`
	PresetsDir            *string      `yaml:"presets_dir"`
	DefaultOutputDir      *string      `yaml:"default_output_dir"`
	CommandTimeoutSeconds *int         `yaml:"command_timeout_seconds"`
	Progress              fileProgress `yaml:"progress"`
	Logging               fileLogging  `yaml:"logging"`
}

type fileNuitka struct {
	Bin            *string `yaml:"bin"`
	MinVersion     *string `yaml:"min_version"`
	OutputEncoding *string `yaml:"output_encoding"`
}

type fileProgress struct {
	TickIntervalMS     *int                  `yaml:"tick_interval_ms"`
	TickIncrement      *int                  `yaml:"tick_increment"`
	LineNudgeMarker    *string               `yaml:"line_nudge_marker"`
	LineNudgeIncrement *int                  `yaml:"line_nudge_increment"`
	Stages             *[]progress.StageSpec `yaml:"stages"`
	FinalMarkers       *[]string             `yaml:"final_markers"`
}

type fileLogging struct {
	Level  *string `yaml:"level"`
	Format *string `yaml:"format"`
}

func Load(opts LoadOptions) (Config, error) {
	cfg := DefaultConfig()

	cwd := opts.WorkingDir
	if strings.TrimSpace(cwd) == "" {
		wd, err := os.Getwd()
		if err != nil {
			return Config{}, fmt.Errorf("resolve working directory: %w", err)
		}
		cwd = wd
	}

	env := opts.Env
	if env == nil {
		env = osEnvMap()
	}

	if explicit := strings.TrimSpace(opts.ExplicitPath); explicit != "" {
		if err := mergeFile(&cfg, explicit, true); err != nil {
			return Config{}, err
		}
	} else {
		userPath, err := UserConfigPath()
		if err != nil {
			return Config{}, err
		}
		if err := mergeFile(&cfg, userPath, false); err != nil {
			return Config{}, err
		}

		if err := mergeFile(&cfg, ProjectConfigPath(cwd), false); err != nil {
			return Config{}, err
		}
	}

	if err := applyEnvOverrides(&cfg, env); err != nil {
		return Config{}, err
	}

	normalize(&cfg)
	return cfg, nil
}

func mergeFile(cfg *Config, path string, required bool) error {
	payload, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !required {
			return nil
		}
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("config file does not exist: %s", path)
		}
		return fmt.Errorf("read config file %s: %w", path, err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(payload, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	if fc.Version != nil {
		cfg.Version = *fc.Version
	}
	if fc.Nuitka.Bin != nil {
		cfg.Nuitka.Bin = strings.TrimSpace(*fc.Nuitka.Bin)
	}
	if fc.Nuitka.MinVersion != nil {
		cfg.Nuitka.MinVersion = strings.TrimSpace(*fc.Nuitka.MinVersion)
	}
	if fc.Nuitka.OutputEncoding != nil {
		cfg.Nuitka.OutputEncoding = strings.TrimSpace(*fc.Nuitka.OutputEncoding)
	}
	if fc.PresetsDir != nil {
		cfg.PresetsDir = strings.TrimSpace(*fc.PresetsDir)
	}
	if fc.DefaultOutputDir != nil {
		cfg.DefaultOutputDir = strings.TrimSpace(*fc.DefaultOutputDir)
	}
	if fc.CommandTimeoutSeconds != nil {
		cfg.CommandTimeoutSeconds = *fc.CommandTimeoutSeconds
	}
	if fc.Progress.TickIntervalMS != nil {
		cfg.Progress.TickIntervalMS = *fc.Progress.TickIntervalMS
	}
	if fc.Progress.TickIncrement != nil {
		cfg.Progress.TickIncrement = *fc.Progress.TickIncrement
	}
	if fc.Progress.LineNudgeMarker != nil {
		cfg.Progress.LineNudgeMarker = *fc.Progress.LineNudgeMarker
	}
	if fc.Progress.LineNudgeIncrement != nil {
		cfg.Progress.LineNudgeIncrement = *fc.Progress.LineNudgeIncrement
	}
	if fc.Progress.Stages != nil {
		cfg.Progress.Stages = make([]progress.StageSpec, 0, len(*fc.Progress.Stages))
		for _, stage := range *fc.Progress.Stages {
			cfg.Progress.Stages = append(cfg.Progress.Stages, progress.StageSpec{
				Name:   strings.TrimSpace(stage.Name),
				Weight: stage.Weight,
				Marker: stage.Marker,
			})
		}
	}
	if fc.Progress.FinalMarkers != nil {
		cfg.Progress.FinalMarkers = append([]string{}, (*fc.Progress.FinalMarkers)...)
	}
	if fc.Logging.Level != nil {
		cfg.Logging.Level = strings.TrimSpace(*fc.Logging.Level)
	}
	if fc.Logging.Format != nil {
		cfg.Logging.Format = strings.TrimSpace(*fc.Logging.Format)
	}

	return nil
}

func applyEnvOverrides(cfg *Config, env map[string]string) error {
	if value := strings.TrimSpace(env["NPK_NUITKA_BIN"]); value != "" {
		cfg.Nuitka.Bin = value
	}
	if value := strings.TrimSpace(env["NPK_OUTPUT_ENCODING"]); value != "" {
		cfg.Nuitka.OutputEncoding = value
	}
	if value := strings.TrimSpace(env["NPK_PRESETS_DIR"]); value != "" {
		cfg.PresetsDir = value
	}
	if value := strings.TrimSpace(env["NPK_OUTPUT_DIR"]); value != "" {
		cfg.DefaultOutputDir = value
	}
	if value := strings.TrimSpace(env["NPK_LOG_LEVEL"]); value != "" {
		cfg.Logging.Level = value
	}

	ints := []struct {
		key    string
		target *int
	}{
		{key: "NPK_TICK_INTERVAL_MS", target: &cfg.Progress.TickIntervalMS},
		{key: "NPK_TICK_INCREMENT", target: &cfg.Progress.TickIncrement},
		{key: "NPK_TIMEOUT_SECONDS", target: &cfg.CommandTimeoutSeconds},
	}
	for _, item := range ints {
		value := strings.TrimSpace(env[item.key])
		if value == "" {
			continue
		}
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid %s value %q: %w", item.key, value, err)
		}
		*item.target = parsed
	}
	return nil
}

func normalize(cfg *Config) {
	cfg.Logging.Level = strings.ToLower(cfg.Logging.Level)
	cfg.Logging.Format = strings.ToLower(cfg.Logging.Format)
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
	if cfg.Logging.Level == "warning" {
		cfg.Logging.Level = "warn"
	}
}

func osEnvMap() map[string]string {
	result := map[string]string{}
	for _, pair := range os.Environ() {
		pieces := strings.SplitN(pair, "=", 2)
		if len(pieces) == 2 {
			result[pieces[0]] = pieces[1]
		}
	}
	return result
}

func EnsureConfigDir(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create config directory %s: %w", dir, err)
	}
	return nil
}
