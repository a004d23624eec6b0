package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pkg/browser"
	"github.com/spf13/cobra"

	"github.com/jaa/npk/internal/config"
	"github.com/jaa/npk/internal/engine"
	"github.com/jaa/npk/internal/exitcode"
	"github.com/jaa/npk/internal/nuitka"
	"github.com/jaa/npk/internal/output"
	"github.com/jaa/npk/internal/progress"
)

// openDirectory shows a directory in the desktop file manager.
var openDirectory = browser.OpenFile

func newBuildCommand(app *AppContext) *cobra.Command {
	var flags optionFlags
	var timeout time.Duration
	var progressMode string
	var openOutput bool
	var savePreset string

	cmd := &cobra.Command{
		Use:   "build [script.py]",
		Short: "Compile a Python program with nuitka and track its progress",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parsedProgressMode, err := parseProgressMode(progressMode)
			if err != nil {
				return withExitCode(exitcode.InvalidUsage, err)
			}

			cfg, err := loadValidConfig(app)
			if err != nil {
				return err
			}
			log := newLogger(app, cfg)

			opts, err := resolveOptions(cmd, cfg, &flags, args)
			if err != nil {
				return withExitCode(exitcode.InvalidUsage, err)
			}
			if err := nuitka.Validate(opts); err != nil {
				return withExitCode(exitcode.InvalidUsage, err)
			}

			if cmd.Flags().Changed("save-preset") {
				store, err := presetStore(cfg)
				if err != nil {
					return withExitCode(exitcode.RuntimeFailure, err)
				}
				name, err := store.Save(savePreset, opts)
				if err != nil {
					return withExitCode(exitcode.InvalidUsage, err)
				}
				if !app.Opts.JSON && !app.Opts.Quiet {
					fmt.Fprintf(app.IO.ErrOut, "Saved preset %s\n", name)
				}
			}

			bin, err := nuitka.ResolveBinary(cfg.Nuitka.Bin)
			if err != nil {
				if !app.Opts.DryRun {
					return withExitCode(exitcode.MissingDependency, err)
				}
				bin = fallbackBinary(cfg)
			}
			log.V(1).Info("compiler resolved", "bin", bin)

			if !cmd.Flags().Changed("timeout") {
				timeout = cfg.CommandTimeout()
			}
			spec, err := nuitka.BuildExecSpec(bin, opts, timeout)
			if err != nil {
				return withExitCode(exitcode.InvalidUsage, err)
			}
			spec.OutputEncoding = cfg.Nuitka.OutputEncoding

			if app.Opts.DryRun {
				fmt.Fprintln(app.IO.Out, spec.DisplayCommand)
				return nil
			}

			if spec.Dir != "" {
				if err := os.MkdirAll(spec.Dir, 0o755); err != nil {
					return withExitCode(exitcode.RuntimeFailure, fmt.Errorf("create output directory %s: %w", spec.Dir, err))
				}
			}

			model, err := cfg.StageModel()
			if err != nil {
				return withExitCode(exitcode.InvalidConfig, err)
			}
			tracker := progress.NewTracker(model, cfg.Progress.TickIncrement)
			tracker.SetLineNudge(cfg.Progress.LineNudgeMarker, cfg.Progress.LineNudgeIncrement)

			supervisor := engine.NewSupervisor(engine.NewSubprocessRunner(nil), tracker, buildEmitter(app, parsedProgressMode))
			supervisor.Log = log
			supervisor.TickInterval = cfg.TickInterval()

			ctx, stop := signal.NotifyContext(context.Background(), interruptSignals()...)
			defer stop()

			result, runErr := supervisor.Run(ctx, spec, nuitka.ExpectedArtifact(opts, runtime.GOOS))
			if runErr != nil {
				if result.ExitCode == 127 || errors.Is(runErr, engine.ErrMissingBinary) {
					return withExitCode(exitcode.MissingDependency, runErr)
				}
				return withExitCode(exitcode.RuntimeFailure, runErr)
			}

			if app.Opts.Verbose && !app.Opts.JSON {
				printRunSummary(app.IO.ErrOut, model, supervisor.Metrics, result)
			}

			switch {
			case result.TimedOut:
				return withExitCode(exitcode.TimedOut, fmt.Errorf("nuitka did not finish within %s", timeout))
			case result.Cancelled:
				return withExitCode(exitcode.Interrupted, fmt.Errorf("packaging interrupted"))
			case !result.Completed:
				return withExitCode(exitcode.RuntimeFailure, fmt.Errorf("nuitka exited with code %d", result.ExitCode))
			}

			if openOutput && result.ArtifactPath != "" {
				dir := filepath.Dir(result.ArtifactPath)
				if err := openDirectory(dir); err != nil {
					log.Error(err, "could not open output directory", "dir", dir)
				}
			}
			return nil
		},
	}

	flags.bind(cmd.Flags(), true)
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Stop nuitka after this long (e.g. 30m); 0 uses the config value")
	cmd.Flags().StringVar(&progressMode, "progress", "auto", "Progress rendering mode: auto, always, or never")
	cmd.Flags().BoolVar(&openOutput, "open", false, "Open the output directory when the build succeeds")
	cmd.Flags().StringVar(&savePreset, "save-preset", "", "Also save the effective options as a preset (empty name picks one)")
	return cmd
}

func buildEmitter(app *AppContext, progressMode string) output.EventEmitter {
	if app.Opts.JSON {
		return output.NewJSONEmitter(app.IO.Out)
	}
	human := output.NewHumanEmitter(app.IO.Out, app.IO.ErrOut, app.Opts.Quiet, app.Opts.Verbose)
	if app.Opts.Quiet {
		return human
	}
	interactive := output.SupportsInPlaceUpdates(app.IO.Out) && !app.Opts.Verbose
	switch progressMode {
	case "always":
		interactive = true
	case "never":
		interactive = false
	}
	return output.NewProgressRenderer(app.IO.Out, human, output.ProgressRendererOptions{
		Interactive: interactive,
		Color:       !app.Opts.NoColor && os.Getenv("NO_COLOR") == "",
	})
}

func parseProgressMode(raw string) (string, error) {
	mode := strings.TrimSpace(strings.ToLower(raw))
	switch mode {
	case "":
		return "auto", nil
	case "auto", "always", "never":
		return mode, nil
	default:
		return "", fmt.Errorf("invalid --progress mode %q (expected: auto, always, never)", raw)
	}
}

// fallbackBinary names the compiler for previews when it is not installed.
func fallbackBinary(cfg config.Config) string {
	if bin := strings.TrimSpace(cfg.Nuitka.Bin); bin != "" {
		return bin
	}
	return "nuitka"
}

// printRunSummary reads stage and run durations back from the metrics
// registry, in stage-table order.
func printRunSummary(w io.Writer, model *progress.Model, runMetrics *engine.RunMetrics, result engine.RunResult) {
	totals := map[string]time.Duration{}
	for _, timing := range runMetrics.StageTotals() {
		totals[timing.Name] = timing.Duration
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STAGE\tDURATION")
	for _, stage := range model.Stages() {
		d, ok := totals[stage.Name]
		if !ok {
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\n", stage.Name, d.Round(time.Millisecond))
	}
	fmt.Fprintf(tw, "total\t%s\n", runMetrics.RunTotal().Round(time.Millisecond))
	_ = tw.Flush()

	fmt.Fprintf(w, "%s output lines", humanize.Comma(int64(result.Lines)))
	if result.PeakRSSBytes > 0 {
		fmt.Fprintf(w, ", peak memory %s", humanize.IBytes(result.PeakRSSBytes))
	}
	fmt.Fprintln(w)
}
