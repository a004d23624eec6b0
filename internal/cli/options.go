package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/jaa/npk/internal/config"
	"github.com/jaa/npk/internal/nuitka"
)

// optionFlags are the per-run compiler settings shared by build, command
// and preset save. A flag only overrides the preset when it was given.
type optionFlags struct {
	preset        string
	outputDir     string
	platform      string
	standalone    bool
	onefile       bool
	removeOutput  bool
	showProgress  bool
	followImports bool
	packages      []string
	plugins       []string
	noPlugins     bool
	icon          string
	company       string
	product       string
	version       string
	console       bool
	jobs          int
	include       []string
}

func (f *optionFlags) bind(flags *pflag.FlagSet, withPreset bool) {
	if withPreset {
		flags.StringVarP(&f.preset, "preset", "p", "", "Start from a saved preset")
	}
	flags.StringVarP(&f.outputDir, "output-dir", "o", "", "Directory nuitka writes into")
	flags.StringVar(&f.platform, "platform", "", "Target platform: auto, windows, linux, macos")
	flags.BoolVar(&f.standalone, "standalone", true, "Build a standalone distribution")
	flags.BoolVar(&f.onefile, "onefile", false, "Pack everything into a single executable")
	flags.BoolVar(&f.removeOutput, "remove-output", false, "Remove the build directory afterwards")
	flags.BoolVar(&f.showProgress, "show-progress", true, "Ask nuitka for progress output")
	flags.BoolVar(&f.followImports, "follow-imports", false, "Compile all imported modules")
	flags.StringSliceVar(&f.packages, "include-package", nil, "Package to include (repeatable or comma separated)")
	flags.StringSliceVar(&f.plugins, "plugin", nil, "Plugin to enable (repeatable or comma separated)")
	flags.BoolVar(&f.noPlugins, "no-plugins", false, "Do not enable any plugin")
	flags.StringVar(&f.icon, "icon", "", "Windows icon (.ico)")
	flags.StringVar(&f.company, "company", "", "Windows company name")
	flags.StringVar(&f.product, "product", "", "Windows product name")
	flags.StringVar(&f.version, "product-version", "", "Windows product version")
	flags.BoolVar(&f.console, "console", true, "Keep the console window on Windows")
	flags.IntVarP(&f.jobs, "jobs", "j", 0, "Parallel C compiler jobs (0 turns parallel compilation off)")
	flags.StringArrayVar(&f.include, "include", nil, "Data file or directory to bundle (repeatable)")
}

// apply copies every flag the user actually set onto opts.
func (f *optionFlags) apply(flags *pflag.FlagSet, opts *nuitka.Options) {
	changed := flags.Changed
	if changed("output-dir") {
		opts.OutputDir = f.outputDir
	}
	if changed("platform") {
		opts.Platform = f.platform
	}
	if changed("standalone") {
		opts.Standalone = f.standalone
	}
	if changed("onefile") {
		opts.Onefile = f.onefile
	}
	if changed("remove-output") {
		opts.RemoveOutput = f.removeOutput
	}
	if changed("show-progress") {
		opts.ShowProgress = f.showProgress
	}
	if changed("follow-imports") {
		opts.FollowImports = f.followImports
	}
	if changed("include-package") {
		opts.IncludePackages = len(f.packages) > 0
		opts.IncludePackagesList = strings.Join(f.packages, ",")
	}
	if changed("plugin") {
		opts.EnablePlugin = len(f.plugins) > 0
		opts.PluginsList = strings.Join(f.plugins, ",")
	}
	if changed("no-plugins") && f.noPlugins {
		opts.EnablePlugin = false
	}
	if changed("icon") {
		opts.IconPath = f.icon
	}
	if changed("company") {
		opts.CompanyName = f.company
	}
	if changed("product") {
		opts.ProductName = f.product
	}
	if changed("product-version") {
		opts.Version = f.version
	}
	if changed("console") {
		opts.ConsoleWindow = f.console
	}
	if changed("jobs") {
		opts.Parallel = f.jobs > 0
		if f.jobs > 0 {
			opts.ParallelCount = f.jobs
		}
	}
	if changed("include") {
		opts.IncludedFiles = append([]string{}, f.include...)
	}
}

// resolveOptions layers defaults, the preset, flags and the script
// argument, then makes the paths absolute against the working directory.
func resolveOptions(cmd *cobra.Command, cfg config.Config, f *optionFlags, args []string) (nuitka.Options, error) {
	opts := nuitka.DefaultOptions()
	if name := strings.TrimSpace(f.preset); name != "" {
		store, err := presetStore(cfg)
		if err != nil {
			return nuitka.Options{}, err
		}
		loaded, err := store.Load(name)
		if err != nil {
			return nuitka.Options{}, err
		}
		opts = loaded
	}

	f.apply(cmd.Flags(), &opts)
	if len(args) > 0 {
		opts.ScriptPath = args[0]
	}
	if strings.TrimSpace(opts.OutputDir) == "" {
		opts.OutputDir = cfg.DefaultOutputDir
	}

	wd, err := os.Getwd()
	if err != nil {
		return nuitka.Options{}, fmt.Errorf("resolve working directory: %w", err)
	}
	if opts.ScriptPath, err = config.AbsPath(wd, opts.ScriptPath); err != nil {
		return nuitka.Options{}, err
	}
	if opts.OutputDir, err = config.AbsPath(wd, opts.OutputDir); err != nil {
		return nuitka.Options{}, err
	}
	if strings.TrimSpace(opts.IconPath) != "" {
		if opts.IconPath, err = config.AbsPath(wd, opts.IconPath); err != nil {
			return nuitka.Options{}, err
		}
	}
	for i, path := range opts.IncludedFiles {
		if strings.TrimSpace(path) == "" {
			continue
		}
		if opts.IncludedFiles[i], err = config.AbsPath(wd, path); err != nil {
			return nuitka.Options{}, err
		}
	}
	return opts, nil
}
