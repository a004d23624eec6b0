package nuitka

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/jaa/npk/internal/config"
	"github.com/jaa/npk/internal/engine"
)

// BuildExecSpec assembles the nuitka command line for opts. Paths are made
// absolute because the child runs inside the output directory.
func BuildExecSpec(bin string, opts Options, timeout time.Duration) (engine.ExecSpec, error) {
	if strings.TrimSpace(bin) == "" {
		return engine.ExecSpec{}, fmt.Errorf("nuitka binary is not set")
	}
	if err := Validate(opts); err != nil {
		return engine.ExecSpec{}, err
	}

	script, err := config.AbsPath("", opts.ScriptPath)
	if err != nil {
		return engine.ExecSpec{}, err
	}
	outputDir, err := config.AbsPath("", opts.OutputDir)
	if err != nil {
		return engine.ExecSpec{}, err
	}

	args := []string{}
	if opts.Standalone {
		args = append(args, "--standalone")
	}
	if opts.Onefile {
		args = append(args, "--onefile")
	}
	if opts.RemoveOutput {
		args = append(args, "--remove-output")
	}
	if opts.ShowProgress {
		args = append(args, "--show-progress")
	}
	if outputDir != "" {
		args = append(args, "--output-dir="+outputDir)
	}

	for _, raw := range opts.IncludedFiles {
		path, err := config.AbsPath("", raw)
		if err != nil {
			return engine.ExecSpec{}, err
		}
		flag := "--include-data-file"
		if info, statErr := os.Stat(path); statErr == nil && info.IsDir() {
			flag = "--include-data-dir"
		}
		args = append(args, fmt.Sprintf("%s=%s=%s", flag, path, filepath.Base(path)))
	}

	if platform, ok := assumePlatform[normalizePlatform(opts.Platform)]; ok {
		args = append(args, "--assume-platform="+platform)
	}
	if opts.FollowImports {
		args = append(args, "--follow-imports")
	}
	if opts.IncludePackages {
		for _, pkg := range SplitList(opts.IncludePackagesList) {
			args = append(args, "--include-package="+pkg)
		}
	}
	if opts.EnablePlugin {
		for _, plugin := range SplitList(opts.PluginsList) {
			args = append(args, "--enable-plugin="+plugin)
		}
	}

	if icon := strings.TrimSpace(opts.IconPath); icon != "" {
		iconPath, err := config.AbsPath("", icon)
		if err != nil {
			return engine.ExecSpec{}, err
		}
		args = append(args, "--windows-icon-from-ico="+iconPath)
	}
	if value := strings.TrimSpace(opts.CompanyName); value != "" {
		args = append(args, "--windows-company-name="+value)
	}
	if value := strings.TrimSpace(opts.ProductName); value != "" {
		args = append(args, "--windows-product-name="+value)
	}
	if value := strings.TrimSpace(opts.Version); value != "" {
		args = append(args, "--windows-product-version="+value)
	}
	if !opts.ConsoleWindow {
		args = append(args, "--windows-disable-console")
	}
	if opts.Parallel {
		args = append(args, "--jobs="+strconv.Itoa(opts.ParallelCount))
	}
	args = append(args, script)

	return engine.ExecSpec{
		Bin:            bin,
		Args:           args,
		Dir:            outputDir,
		Timeout:        timeout,
		DisplayCommand: FormatCommand(bin, args),
	}, nil
}

// FormatCommand renders a copy-pasteable preview of the command. Backslashes
// become forward slashes so the line reads the same on every platform.
func FormatCommand(bin string, args []string) string {
	parts := []string{quoteArg(bin)}
	for _, arg := range args {
		parts = append(parts, quoteArg(arg))
	}
	return strings.ReplaceAll(strings.Join(parts, " "), `\`, "/")
}

func quoteArg(arg string) string {
	if arg == "" || strings.ContainsAny(arg, " \t\"'") {
		return strconv.Quote(arg)
	}
	return arg
}

// ExpectedArtifact is where nuitka puts the program for opts when it does
// not say so itself. goos is the host; an explicit platform wins over it.
func ExpectedArtifact(opts Options, goos string) string {
	outputDir, err := config.AbsPath("", opts.OutputDir)
	if err != nil || outputDir == "" {
		outputDir = "."
	}
	base := filepath.Base(strings.TrimSpace(opts.ScriptPath))
	stem := strings.TrimSuffix(base, filepath.Ext(base))

	target := normalizePlatform(opts.Platform)
	if target == "" || target == PlatformAuto {
		target = normalizePlatform(goos)
	}
	name := stem
	if target == PlatformWindows {
		name += ".exe"
	}

	if opts.Onefile {
		return filepath.Join(outputDir, name)
	}
	return filepath.Join(outputDir, stem+".dist", name)
}
