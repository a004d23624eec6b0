package doctor

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/jaa/npk/internal/config"
	"github.com/jaa/npk/internal/nuitka"
)

type Severity string

const (
	SeverityInfo  Severity = "info"
	SeverityWarn  Severity = "warn"
	SeverityError Severity = "error"
)

type Check struct {
	Severity Severity `json:"severity"`
	Name     string   `json:"name"`
	Message  string   `json:"message"`
}

type Report struct {
	Checks []Check `json:"checks"`
}

func (r Report) HasErrors() bool {
	return r.ErrorCount() > 0
}

func (r Report) ErrorCount() int {
	count := 0
	for _, check := range r.Checks {
		if check.Severity == SeverityError {
			count++
		}
	}
	return count
}

func (r *Report) add(severity Severity, name string, format string, args ...any) {
	r.Checks = append(r.Checks, Check{Severity: severity, Name: name, Message: fmt.Sprintf(format, args...)})
}

type Checker struct {
	Resolve       func(string) (string, error)
	LookPath      func(string) (string, error)
	ReadVersion   func(context.Context, string) (string, error)
	CheckWritable func(string) error
	Stat          func(string) (fs.FileInfo, error)
	ListOutdated  func(context.Context, string) (string, error)

	// CheckUpdates asks pip whether a newer nuitka is published. It needs
	// network access, so it is off unless requested.
	CheckUpdates bool
}

func NewChecker() *Checker {
	return &Checker{
		Resolve:       nuitka.ResolveBinary,
		LookPath:      exec.LookPath,
		ReadVersion:   defaultReadVersion,
		CheckWritable: checkDirWritable,
		Stat:          os.Stat,
		ListOutdated:  defaultListOutdated,
	}
}

var pythonBinaries = []string{"python3", "python"}

func (c *Checker) Check(ctx context.Context, cfg config.Config) Report {
	report := Report{Checks: []Check{}}

	c.checkCompiler(ctx, cfg, &report)

	python := ""
	for _, name := range pythonBinaries {
		if location, err := c.LookPath(name); err == nil {
			report.add(SeverityInfo, "dependency", "%s found at %s", name, location)
			python = location
			break
		}
	}
	if python == "" {
		report.add(SeverityWarn, "dependency", "no python interpreter found in PATH (tried %s)", strings.Join(pythonBinaries, ", "))
	}
	if c.CheckUpdates {
		c.checkUpdate(ctx, python, &report)
	}

	c.checkPresetsDir(cfg.PresetsDir, &report)
	c.checkOutputDir(cfg.DefaultOutputDir, &report)

	return report
}

func (c *Checker) checkCompiler(ctx context.Context, cfg config.Config, report *Report) {
	binary, err := c.Resolve(cfg.Nuitka.Bin)
	if err != nil {
		report.add(SeverityError, "dependency", "%v", err)
		return
	}
	report.add(SeverityInfo, "dependency", "nuitka found at %s", binary)

	output, err := c.ReadVersion(ctx, binary)
	if err != nil {
		report.add(SeverityWarn, "dependency", "nuitka version could not be read: %v", err)
		return
	}
	version, ok := nuitka.ParseVersion(output)
	if !ok {
		report.add(SeverityWarn, "dependency", "nuitka version output is unrecognized: %q", strings.TrimSpace(output))
		return
	}

	minimum := strings.TrimSpace(cfg.Nuitka.MinVersion)
	if minimum != "" && nuitka.CompareVersions(version, minimum) < 0 {
		report.add(SeverityError, "dependency", "nuitka version %s is below minimum %s", version, minimum)
		return
	}
	report.add(SeverityInfo, "dependency", "nuitka version %s is compatible", version)
}

// checkUpdate never reports an error: a failed lookup is informational and a
// newer release is a warning.
func (c *Checker) checkUpdate(ctx context.Context, python string, report *Report) {
	if python == "" {
		report.add(SeverityInfo, "update", "update check skipped: no python interpreter")
		return
	}
	output, err := c.ListOutdated(ctx, python)
	if err != nil {
		report.add(SeverityInfo, "update", "update check failed: %v", err)
		return
	}
	installed, latest, outdated := nuitka.ParseOutdated(output)
	if !outdated {
		report.add(SeverityInfo, "update", "nuitka is up to date")
		return
	}
	upgrade := fmt.Sprintf("%s -m pip install --upgrade nuitka", python)
	if latest != "" {
		report.add(SeverityWarn, "update", "nuitka %s is available (installed %s); upgrade with: %s", latest, installed, upgrade)
		return
	}
	report.add(SeverityWarn, "update", "a newer nuitka is available; upgrade with: %s", upgrade)
}

// checkPresetsDir accepts a missing presets dir as long as the nearest
// existing parent is writable, since the store creates it on first save.
func (c *Checker) checkPresetsDir(raw string, report *Report) {
	dir, err := config.ExpandPath(raw)
	if err != nil {
		report.add(SeverityError, "filesystem", "presets_dir is invalid: %v", err)
		return
	}
	if _, err := c.Stat(dir); err == nil {
		if err := c.CheckWritable(dir); err != nil {
			report.add(SeverityError, "filesystem", "presets_dir %s is not writable: %v", dir, err)
			return
		}
		report.add(SeverityInfo, "filesystem", "presets_dir %s is writable", dir)
		return
	}

	parent := c.nearestExisting(filepath.Dir(dir))
	if parent == "" {
		report.add(SeverityError, "filesystem", "presets_dir %s has no existing parent", dir)
		return
	}
	if err := c.CheckWritable(parent); err != nil {
		report.add(SeverityError, "filesystem", "presets_dir %s cannot be created under %s: %v", dir, parent, err)
		return
	}
	report.add(SeverityInfo, "filesystem", "presets_dir %s will be created on first save", dir)
}

func (c *Checker) checkOutputDir(raw string, report *Report) {
	if strings.TrimSpace(raw) == "" {
		return
	}
	dir, err := config.ExpandPath(raw)
	if err != nil {
		report.add(SeverityError, "filesystem", "default_output_dir is invalid: %v", err)
		return
	}
	if _, err := c.Stat(dir); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			report.add(SeverityInfo, "filesystem", "default_output_dir %s does not exist yet", dir)
			return
		}
		report.add(SeverityWarn, "filesystem", "default_output_dir %s: %v", dir, err)
		return
	}
	if err := c.CheckWritable(dir); err != nil {
		report.add(SeverityError, "filesystem", "default_output_dir %s is not writable: %v", dir, err)
		return
	}
	report.add(SeverityInfo, "filesystem", "default_output_dir %s is writable", dir)
}

func (c *Checker) nearestExisting(dir string) string {
	for {
		if _, err := c.Stat(dir); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

func defaultReadVersion(ctx context.Context, binary string) (string, error) {
	cmd := exec.CommandContext(ctx, binary, "--version")
	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", err
	}
	return string(output), nil
}

func defaultListOutdated(ctx context.Context, python string) (string, error) {
	cmd := exec.CommandContext(ctx, python, "-m", "pip", "list", "--outdated", "--disable-pip-version-check")
	output, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			if stderr := strings.TrimSpace(string(exitErr.Stderr)); stderr != "" {
				return "", fmt.Errorf("%w: %s", err, stderr)
			}
		}
		return "", err
	}
	return string(output), nil
}

func checkDirWritable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", path)
	}

	file, err := os.CreateTemp(path, ".npk-write-check-*")
	if err != nil {
		return err
	}
	name := file.Name()
	_ = file.Close()
	_ = os.Remove(name)
	return nil
}
