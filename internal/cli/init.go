package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/jaa/npk/internal/config"
	"github.com/jaa/npk/internal/exitcode"
	"github.com/jaa/npk/internal/fileops"
	"github.com/spf13/cobra"
)

func newInitCommand(app *AppContext) *cobra.Command {
	force := false

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a starter config and the presets directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := strings.TrimSpace(app.Opts.ConfigPath)
			if path == "" {
				userPath, err := config.UserConfigPath()
				if err != nil {
					return withExitCode(exitcode.RuntimeFailure, err)
				}
				path = userPath
			}

			if err := config.EnsureConfigDir(path); err != nil {
				return withExitCode(exitcode.RuntimeFailure, err)
			}

			if _, err := os.Stat(path); err == nil && !force {
				if app.Opts.NoInput || !isTTY(os.Stdin) {
					return withExitCode(exitcode.RuntimeFailure, fmt.Errorf("config already exists at %s (rerun with --force)", path))
				}
				confirmed, confirmErr := promptYesNo(app, fmt.Sprintf("Config already exists at %s. Overwrite?", path))
				if confirmErr != nil {
					return withExitCode(exitcode.RuntimeFailure, confirmErr)
				}
				if !confirmed {
					fmt.Fprintln(app.IO.Out, "Initialization canceled.")
					return nil
				}
			}

			if err := fileops.WriteFileAtomic(path, []byte(config.DefaultTemplate()), 0o644); err != nil {
				return withExitCode(exitcode.RuntimeFailure, fmt.Errorf("write config file: %w", err))
			}

			presetsDir, err := config.ExpandPath(config.DefaultConfig().PresetsDir)
			if err != nil {
				return withExitCode(exitcode.RuntimeFailure, fmt.Errorf("resolve presets directory: %w", err))
			}
			if err := os.MkdirAll(presetsDir, 0o755); err != nil {
				return withExitCode(exitcode.RuntimeFailure, fmt.Errorf("create presets directory %s: %w", presetsDir, err))
			}

			fmt.Fprintf(app.IO.Out, "Wrote config: %s\n", path)
			fmt.Fprintf(app.IO.Out, "Ensured presets dir: %s\n", presetsDir)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing config file")
	return cmd
}

func promptYesNo(app *AppContext, prompt string) (bool, error) {
	fmt.Fprintf(app.IO.Out, "%s [y/N]: ", prompt)
	reader := bufio.NewReader(app.IO.In)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false, err
	}
	response := strings.ToLower(strings.TrimSpace(line))
	return response == "y" || response == "yes", nil
}
