package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jaa/npk/internal/exitcode"
	"github.com/jaa/npk/internal/nuitka"
)

func newCommandCommand(app *AppContext) *cobra.Command {
	var flags optionFlags

	cmd := &cobra.Command{
		Use:   "command [script.py]",
		Short: "Print the nuitka command a build would run",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadValidConfig(app)
			if err != nil {
				return err
			}
			opts, err := resolveOptions(cmd, cfg, &flags, args)
			if err != nil {
				return withExitCode(exitcode.InvalidUsage, err)
			}

			bin, err := nuitka.ResolveBinary(cfg.Nuitka.Bin)
			if err != nil {
				bin = fallbackBinary(cfg)
			}
			spec, err := nuitka.BuildExecSpec(bin, opts, cfg.CommandTimeout())
			if err != nil {
				return withExitCode(exitcode.InvalidUsage, err)
			}

			if app.Opts.JSON {
				return json.NewEncoder(app.IO.Out).Encode(map[string]any{
					"bin":     spec.Bin,
					"args":    spec.Args,
					"dir":     spec.Dir,
					"command": spec.DisplayCommand,
				})
			}
			fmt.Fprintln(app.IO.Out, spec.DisplayCommand)
			return nil
		},
	}

	flags.bind(cmd.Flags(), true)
	return cmd
}
