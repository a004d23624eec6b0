package nuitka

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildExecSpecFlagOrder(t *testing.T) {
	tmp := t.TempDir()
	dataDir := filepath.Join(tmp, "assets")
	require.NoError(t, os.MkdirAll(dataDir, 0o755))
	dataFile := filepath.Join(tmp, "settings.ini")
	require.NoError(t, os.WriteFile(dataFile, []byte("x"), 0o644))
	outDir := filepath.Join(tmp, "out")
	script := filepath.Join(tmp, "app.py")

	opts := Options{
		ScriptPath:          script,
		OutputDir:           outDir,
		Platform:            "windows",
		Standalone:          true,
		Onefile:             true,
		RemoveOutput:        true,
		ShowProgress:        true,
		FollowImports:       true,
		IncludePackages:     true,
		IncludePackagesList: "requests, yaml ,",
		EnablePlugin:        true,
		PluginsList:         "tk-inter",
		IconPath:            filepath.Join(tmp, "app.ico"),
		CompanyName:         "Acme",
		ProductName:         "Widget Maker",
		Version:             "1.2.3.4",
		ConsoleWindow:       false,
		Parallel:            true,
		ParallelCount:       8,
		IncludedFiles:       []string{dataFile, dataDir},
	}

	spec, err := BuildExecSpec("nuitka", opts, time.Minute)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"--standalone",
		"--onefile",
		"--remove-output",
		"--show-progress",
		"--output-dir=" + outDir,
		"--include-data-file=" + dataFile + "=settings.ini",
		"--include-data-dir=" + dataDir + "=assets",
		"--assume-platform=win",
		"--follow-imports",
		"--include-package=requests",
		"--include-package=yaml",
		"--enable-plugin=tk-inter",
		"--windows-icon-from-ico=" + filepath.Join(tmp, "app.ico"),
		"--windows-company-name=Acme",
		"--windows-product-name=Widget Maker",
		"--windows-product-version=1.2.3.4",
		"--windows-disable-console",
		"--jobs=8",
		script,
	}, spec.Args)
	assert.Equal(t, "nuitka", spec.Bin)
	assert.Equal(t, outDir, spec.Dir)
	assert.Equal(t, time.Minute, spec.Timeout)
	assert.Contains(t, spec.DisplayCommand, `"--windows-product-name=Widget Maker"`)
	assert.NotContains(t, spec.DisplayCommand, `\`)
}

func TestBuildExecSpecDefaults(t *testing.T) {
	opts := DefaultOptions()
	opts.ScriptPath = "/src/main.py"

	spec, err := BuildExecSpec("/usr/bin/nuitka", opts, 0)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"--standalone",
		"--show-progress",
		"--enable-plugin=tk-inter",
		"--enable-plugin=pylint-warnings",
		"--jobs=4",
		filepath.Clean("/src/main.py"),
	}, spec.Args)
	assert.Empty(t, spec.Dir)
}

func TestBuildExecSpecMakesScriptAbsolute(t *testing.T) {
	opts := DefaultOptions()
	opts.ScriptPath = "app.py"
	opts.OutputDir = "dist"

	spec, err := BuildExecSpec("nuitka", opts, 0)
	require.NoError(t, err)

	wd, err := os.Getwd()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(wd, "app.py"), spec.Args[len(spec.Args)-1])
	assert.Equal(t, filepath.Join(wd, "dist"), spec.Dir)
}

func TestBuildExecSpecRejectsInvalidOptions(t *testing.T) {
	opts := DefaultOptions()
	opts.ScriptPath = "notes.txt"
	opts.ParallelCount = 0
	opts.Platform = "beos"

	_, err := BuildExecSpec("nuitka", opts, 0)
	require.Error(t, err)

	var validationErr *ValidationError
	require.True(t, errors.As(err, &validationErr))
	joined := strings.Join(validationErr.Problems, "\n")
	assert.Contains(t, joined, ".py")
	assert.Contains(t, joined, "parallel_count")
	assert.Contains(t, joined, "platform")

	_, err = BuildExecSpec("", DefaultOptions(), 0)
	require.Error(t, err)
}

func TestFormatCommandUsesForwardSlashes(t *testing.T) {
	got := FormatCommand(`C:\Python\Scripts\nuitka.cmd`, []string{`--output-dir=C:\out`, `C:\src\app.py`})
	assert.Equal(t, "C:/Python/Scripts/nuitka.cmd --output-dir=C:/out C:/src/app.py", got)
}

func TestExpectedArtifact(t *testing.T) {
	out := filepath.Join(string(filepath.Separator), "build")
	tests := []struct {
		name string
		opts Options
		goos string
		want string
	}{
		{name: "onefile linux", opts: Options{ScriptPath: "app.py", OutputDir: out, Onefile: true}, goos: "linux", want: filepath.Join(out, "app")},
		{name: "onefile windows", opts: Options{ScriptPath: "app.py", OutputDir: out, Onefile: true}, goos: "windows", want: filepath.Join(out, "app.exe")},
		{name: "standalone linux", opts: Options{ScriptPath: "/src/tool.py", OutputDir: out}, goos: "linux", want: filepath.Join(out, "tool.dist", "tool")},
		{name: "standalone windows", opts: Options{ScriptPath: "tool.py", OutputDir: out}, goos: "windows", want: filepath.Join(out, "tool.dist", "tool.exe")},
		{name: "assumed platform wins", opts: Options{ScriptPath: "tool.py", OutputDir: out, Platform: "windows", Onefile: true}, goos: "linux", want: filepath.Join(out, "tool.exe")},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ExpectedArtifact(tc.opts, tc.goos))
		})
	}
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, SplitList(" a, ,b ,"))
	assert.Empty(t, SplitList(""))
}
