package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadPrecedence(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(tmp, "xdg"))

	userConfigPath, err := UserConfigPath()
	if err != nil {
		t.Fatalf("user config path: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(userConfigPath), 0o755); err != nil {
		t.Fatalf("mkdir user config dir: %v", err)
	}

	userConfig := `version: 1
nuitka:
  bin: "/opt/user/nuitka"
  min_version: "2.0.0"
presets_dir: "/tmp/user-presets"
progress:
  tick_interval_ms: 120
  line_nudge_marker: ""
`
	if err := os.WriteFile(userConfigPath, []byte(userConfig), 0o644); err != nil {
		t.Fatalf("write user config: %v", err)
	}

	projectDir := filepath.Join(tmp, "project")
	if err := os.MkdirAll(projectDir, 0o755); err != nil {
		t.Fatalf("mkdir project dir: %v", err)
	}
	projectConfig := `version: 1
nuitka:
  bin: "/opt/project/nuitka"
default_output_dir: "build"
progress:
  stages:
    - {name: "Start", weight: 40, marker: "Starting"}
    - {name: "Finish", weight: 60, marker: "Finishing"}
`
	if err := os.WriteFile(ProjectConfigPath(projectDir), []byte(projectConfig), 0o644); err != nil {
		t.Fatalf("write project config: %v", err)
	}

	cfg, err := Load(LoadOptions{
		WorkingDir: projectDir,
		Env: map[string]string{
			"NPK_TICK_INCREMENT":  "5",
			"NPK_TIMEOUT_SECONDS": "600",
			"NPK_LOG_LEVEL":       "DEBUG",
		},
	})
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.Nuitka.Bin != "/opt/project/nuitka" {
		t.Fatalf("expected project nuitka.bin, got %q", cfg.Nuitka.Bin)
	}
	if cfg.Nuitka.MinVersion != "2.0.0" {
		t.Fatalf("expected user min_version to survive, got %q", cfg.Nuitka.MinVersion)
	}
	if cfg.PresetsDir != "/tmp/user-presets" {
		t.Fatalf("expected user presets_dir, got %q", cfg.PresetsDir)
	}
	if cfg.DefaultOutputDir != "build" {
		t.Fatalf("expected project output dir, got %q", cfg.DefaultOutputDir)
	}
	if cfg.TickInterval() != 120*time.Millisecond {
		t.Fatalf("expected tick interval 120ms, got %s", cfg.TickInterval())
	}
	if cfg.Progress.TickIncrement != 5 {
		t.Fatalf("expected env tick increment 5, got %d", cfg.Progress.TickIncrement)
	}
	if cfg.Progress.LineNudgeMarker != "" || cfg.Progress.LineNudgeIncrement != 5 {
		t.Fatalf("expected user to clear the nudge marker only, got %q/%d", cfg.Progress.LineNudgeMarker, cfg.Progress.LineNudgeIncrement)
	}
	if cfg.CommandTimeout() != 10*time.Minute {
		t.Fatalf("expected env timeout, got %s", cfg.CommandTimeout())
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("expected normalized log level, got %q", cfg.Logging.Level)
	}

	model, err := cfg.StageModel()
	if err != nil {
		t.Fatalf("stage model: %v", err)
	}
	if model.Len() != 2 || model.Stage(1).Name != "Finish" {
		t.Fatalf("expected project stage table, got %+v", model.Stages())
	}
}

func TestLoadExplicitPathRequired(t *testing.T) {
	_, err := Load(LoadOptions{
		ExplicitPath: filepath.Join(t.TempDir(), "missing.yaml"),
		Env:          map[string]string{},
	})
	if err == nil {
		t.Fatalf("expected error for missing explicit config")
	}
	if !strings.Contains(err.Error(), "does not exist") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoadRejectsBadEnvInteger(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	_, err := Load(LoadOptions{
		WorkingDir: t.TempDir(),
		Env:        map[string]string{"NPK_TICK_INTERVAL_MS": "fast"},
	})
	if err == nil || !strings.Contains(err.Error(), "NPK_TICK_INTERVAL_MS") {
		t.Fatalf("expected env parse error, got %v", err)
	}
}

func TestDefaultTemplateLoads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(DefaultTemplate()), 0o644); err != nil {
		t.Fatalf("write template: %v", err)
	}
	cfg, err := Load(LoadOptions{ExplicitPath: path, Env: map[string]string{}})
	if err != nil {
		t.Fatalf("load template: %v", err)
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("template should validate: %v", err)
	}
	model, err := cfg.StageModel()
	if err != nil {
		t.Fatalf("stage model: %v", err)
	}
	if model.Len() != 7 {
		t.Fatalf("expected built-in stages, got %d", model.Len())
	}
}

func TestAbsPath(t *testing.T) {
	got, err := AbsPath("/work", "out/dist")
	if err != nil {
		t.Fatalf("abs path: %v", err)
	}
	if got != filepath.Join("/work", "out", "dist") {
		t.Fatalf("unexpected path %q", got)
	}
	got, err = AbsPath("/work", "/abs/dir")
	if err != nil || got != filepath.Clean("/abs/dir") {
		t.Fatalf("expected absolute path unchanged, got %q (%v)", got, err)
	}
	got, err = AbsPath("/work", "")
	if err != nil || got != "" {
		t.Fatalf("expected empty path to stay empty, got %q (%v)", got, err)
	}
}
