package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jaa/npk/internal/exitcode"
	"github.com/jaa/npk/internal/preset"
)

func newPresetCommand(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "preset",
		Short: "Manage saved build presets",
	}
	cmd.AddCommand(newPresetListCommand(app))
	cmd.AddCommand(newPresetShowCommand(app))
	cmd.AddCommand(newPresetSaveCommand(app))
	cmd.AddCommand(newPresetDeleteCommand(app))
	cmd.AddCommand(newPresetExportCommand(app))
	cmd.AddCommand(newPresetImportCommand(app))
	return cmd
}

func openPresetStore(app *AppContext) (*preset.Store, error) {
	cfg, err := loadValidConfig(app)
	if err != nil {
		return nil, err
	}
	store, err := presetStore(cfg)
	if err != nil {
		return nil, withExitCode(exitcode.InvalidConfig, err)
	}
	return store, nil
}

func newPresetListCommand(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved presets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openPresetStore(app)
			if err != nil {
				return err
			}
			names, err := store.List()
			if err != nil {
				return withExitCode(exitcode.RuntimeFailure, err)
			}
			if app.Opts.JSON {
				return json.NewEncoder(app.IO.Out).Encode(map[string]any{"presets": names})
			}
			if len(names) == 0 && !app.Opts.Quiet {
				fmt.Fprintf(app.IO.ErrOut, "No presets in %s\n", store.Dir)
				return nil
			}
			for _, name := range names {
				fmt.Fprintln(app.IO.Out, name)
			}
			return nil
		},
	}
}

func newPresetShowCommand(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <name>",
		Short: "Print a preset as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openPresetStore(app)
			if err != nil {
				return err
			}
			opts, err := store.Load(args[0])
			if err != nil {
				return err
			}
			encoder := json.NewEncoder(app.IO.Out)
			if !app.Opts.JSON {
				encoder.SetIndent("", "    ")
			}
			return encoder.Encode(opts)
		},
	}
}

func newPresetSaveCommand(app *AppContext) *cobra.Command {
	var flags optionFlags
	var from string

	cmd := &cobra.Command{
		Use:   "save [name] [--script script.py]",
		Short: "Save options as a preset (no name picks a timestamped one)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadValidConfig(app)
			if err != nil {
				return err
			}
			flags.preset = from
			var scriptArgs []string
			if script, _ := cmd.Flags().GetString("script"); strings.TrimSpace(script) != "" {
				scriptArgs = []string{script}
			}
			opts, err := resolveOptions(cmd, cfg, &flags, scriptArgs)
			if err != nil {
				return withExitCode(exitcode.InvalidUsage, err)
			}

			store, err := presetStore(cfg)
			if err != nil {
				return withExitCode(exitcode.InvalidConfig, err)
			}
			name := ""
			if len(args) > 0 {
				name = args[0]
			}
			saved, err := store.Save(name, opts)
			if err != nil {
				return withExitCode(exitcode.InvalidUsage, err)
			}
			return reportPreset(app, "saved", saved, store.Path(saved))
		},
	}

	flags.bind(cmd.Flags(), false)
	cmd.Flags().String("script", "", "Entry script of the program")
	cmd.Flags().StringVar(&from, "from", "", "Start from an existing preset")
	return cmd
}

func newPresetDeleteCommand(app *AppContext) *cobra.Command {
	force := false

	cmd := &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a preset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openPresetStore(app)
			if err != nil {
				return err
			}
			name := args[0]
			if _, err := store.Load(name); err != nil {
				return err
			}
			if !force && !app.Opts.NoInput && !app.Opts.JSON && isTTY(os.Stdin) {
				confirmed, confirmErr := promptYesNo(app, fmt.Sprintf("Delete preset %s?", name))
				if confirmErr != nil {
					return withExitCode(exitcode.RuntimeFailure, confirmErr)
				}
				if !confirmed {
					fmt.Fprintln(app.IO.Out, "Delete canceled.")
					return nil
				}
			}
			if err := store.Delete(name); err != nil {
				return err
			}
			return reportPreset(app, "deleted", name, store.Path(name))
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Do not ask for confirmation")
	return cmd
}

func newPresetExportCommand(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "export <name> <file>",
		Short: "Write a preset to a file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openPresetStore(app)
			if err != nil {
				return err
			}
			if err := store.Export(args[0], args[1]); err != nil {
				return err
			}
			return reportPreset(app, "exported", args[0], args[1])
		},
	}
}

func newPresetImportCommand(app *AppContext) *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Store a preset file under a name (the file name by default)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openPresetStore(app)
			if err != nil {
				return err
			}
			saved, err := store.Import(args[0], name)
			if err != nil {
				return withExitCode(exitcode.InvalidUsage, err)
			}
			return reportPreset(app, "imported", saved, store.Path(saved))
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Preset name to store under")
	return cmd
}

func reportPreset(app *AppContext, action string, name string, path string) error {
	if app.Opts.JSON {
		return json.NewEncoder(app.IO.Out).Encode(map[string]any{"action": action, "name": name, "path": path})
	}
	if !app.Opts.Quiet {
		fmt.Fprintf(app.IO.Out, "Preset %s %s (%s)\n", name, action, path)
	}
	return nil
}
