package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func UserConfigPath() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); strings.TrimSpace(xdg) != "" {
		return filepath.Join(xdg, "npk", "config.yaml"), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".config", "npk", "config.yaml"), nil
}

func ProjectConfigPath(cwd string) string {
	return filepath.Join(cwd, "npk.yaml")
}

func defaultPresetsDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); strings.TrimSpace(xdg) != "" {
		return filepath.Join(xdg, "npk", "presets")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "./.npk-presets"
	}
	return filepath.Join(home, ".local", "share", "npk", "presets")
}

func ExpandPath(raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", nil
	}

	expanded := os.ExpandEnv(strings.TrimSpace(raw))
	if expanded == "~" || strings.HasPrefix(expanded, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		expanded = filepath.Join(home, strings.TrimPrefix(expanded, "~/"))
	}

	return filepath.Clean(expanded), nil
}

// AbsPath expands raw and makes it absolute against base (or the process
// working directory when base is empty).
func AbsPath(base string, raw string) (string, error) {
	expanded, err := ExpandPath(raw)
	if err != nil || expanded == "" {
		return expanded, err
	}
	if filepath.IsAbs(expanded) {
		return expanded, nil
	}
	if strings.TrimSpace(base) == "" {
		abs, err := filepath.Abs(expanded)
		if err != nil {
			return "", fmt.Errorf("resolve %s: %w", raw, err)
		}
		return abs, nil
	}
	return filepath.Join(base, expanded), nil
}
