package nuitka

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Options is everything the user can set for one compilation. It is also
// the on-disk preset format, hence the flat snake_case keys.
type Options struct {
	ScriptPath          string   `json:"script_path"`
	OutputDir           string   `json:"output_dir"`
	Platform            string   `json:"platform"`
	Standalone          bool     `json:"standalone"`
	Onefile             bool     `json:"onefile"`
	RemoveOutput        bool     `json:"remove_output"`
	ShowProgress        bool     `json:"show_progress"`
	FollowImports       bool     `json:"follow_imports"`
	IncludePackages     bool     `json:"include_packages"`
	IncludePackagesList string   `json:"include_packages_list"`
	EnablePlugin        bool     `json:"enable_plugin"`
	PluginsList         string   `json:"plugins_list"`
	IconPath            string   `json:"icon_path"`
	CompanyName         string   `json:"company_name"`
	ProductName         string   `json:"product_name"`
	Version             string   `json:"version"`
	ConsoleWindow       bool     `json:"console_window"`
	Parallel            bool     `json:"parallel"`
	ParallelCount       int      `json:"parallel_count"`
	IncludedFiles       []string `json:"included_files"`
}

const DefaultPlugins = "tk-inter,pylint-warnings"

func DefaultOptions() Options {
	return Options{
		Platform:        PlatformAuto,
		Standalone:      true,
		ShowProgress:    true,
		IncludePackages: true,
		EnablePlugin:    true,
		PluginsList:     DefaultPlugins,
		ConsoleWindow:   true,
		Parallel:        true,
		ParallelCount:   4,
		IncludedFiles:   []string{},
	}
}

const (
	PlatformAuto    = "auto"
	PlatformWindows = "windows"
	PlatformLinux   = "linux"
	PlatformMacOS   = "macos"
)

// assumePlatform maps a platform name to the value nuitka expects.
var assumePlatform = map[string]string{
	PlatformWindows: "win",
	PlatformLinux:   "linux",
	PlatformMacOS:   "macos",
}

type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	if len(e.Problems) == 0 {
		return "invalid options"
	}
	return fmt.Sprintf("invalid options: %s", strings.Join(e.Problems, "; "))
}

func Validate(opts Options) error {
	problems := []string{}

	script := strings.TrimSpace(opts.ScriptPath)
	if script == "" {
		problems = append(problems, "script_path is required")
	} else if !strings.EqualFold(filepath.Ext(script), ".py") {
		problems = append(problems, fmt.Sprintf("script_path %q must be a .py file", script))
	}

	if opts.Parallel && opts.ParallelCount <= 0 {
		problems = append(problems, "parallel_count must be > 0 when parallel is enabled")
	}

	switch normalizePlatform(opts.Platform) {
	case "", PlatformAuto, PlatformWindows, PlatformLinux, PlatformMacOS:
	default:
		problems = append(problems, fmt.Sprintf("platform %q must be one of auto, windows, linux, macos", opts.Platform))
	}

	if icon := strings.TrimSpace(opts.IconPath); icon != "" && !strings.EqualFold(filepath.Ext(icon), ".ico") {
		problems = append(problems, fmt.Sprintf("icon_path %q must be an .ico file", icon))
	}

	for _, file := range opts.IncludedFiles {
		if strings.TrimSpace(file) == "" {
			problems = append(problems, "included_files must not contain empty entries")
			break
		}
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

// SplitList splits a comma separated field, dropping blanks.
func SplitList(raw string) []string {
	items := []string{}
	for _, item := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}

func normalizePlatform(raw string) string {
	platform := strings.ToLower(strings.TrimSpace(raw))
	switch platform {
	case "win", "win32":
		return PlatformWindows
	case "darwin", "mac", "osx":
		return PlatformMacOS
	}
	return platform
}
