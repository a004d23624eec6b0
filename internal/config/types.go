package config

import (
	"time"

	"github.com/jaa/npk/internal/progress"
)

type Config struct {
	Version               int            `yaml:"version"`
	Nuitka                NuitkaConfig   `yaml:"nuitka"`
	PresetsDir            string         `yaml:"presets_dir"`
	DefaultOutputDir      string         `yaml:"default_output_dir"`
	CommandTimeoutSeconds int            `yaml:"command_timeout_seconds"`
	Progress              ProgressConfig `yaml:"progress"`
	Logging               LoggingConfig  `yaml:"logging"`
}

type NuitkaConfig struct {
	Bin            string `yaml:"bin"`
	MinVersion     string `yaml:"min_version"`
	OutputEncoding string `yaml:"output_encoding"`
}

type ProgressConfig struct {
	TickIntervalMS     int                  `yaml:"tick_interval_ms"`
	TickIncrement      int                  `yaml:"tick_increment"`
	LineNudgeMarker    string               `yaml:"line_nudge_marker"`
	LineNudgeIncrement int                  `yaml:"line_nudge_increment"`
	Stages             []progress.StageSpec `yaml:"stages,omitempty"`
	FinalMarkers       []string             `yaml:"final_markers,omitempty"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func DefaultConfig() Config {
	return Config{
		Version: 1,
		Nuitka: NuitkaConfig{
			MinVersion: "1.0.0",
		},
		PresetsDir:       defaultPresetsDir(),
		DefaultOutputDir: "dist",
		Progress: ProgressConfig{
			TickIntervalMS:     80,
			TickIncrement:      progress.DefaultTickIncrement,
			LineNudgeMarker:    progress.DefaultNudgeMarker,
			LineNudgeIncrement: progress.DefaultNudgeIncrement,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

func (c Config) TickInterval() time.Duration {
	return time.Duration(c.Progress.TickIntervalMS) * time.Millisecond
}

func (c Config) CommandTimeout() time.Duration {
	if c.CommandTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(c.CommandTimeoutSeconds) * time.Second
}

// StageModel builds the progress model, falling back to the built-in stage
// table and final markers for whatever the config leaves empty.
func (c Config) StageModel() (*progress.Model, error) {
	stages := c.Progress.Stages
	if len(stages) == 0 {
		stages = progress.DefaultStages()
	}
	markers := c.Progress.FinalMarkers
	if len(markers) == 0 {
		markers = progress.DefaultFinalMarkers()
	}
	return progress.NewModel(stages, markers)
}
