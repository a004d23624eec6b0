package cli

import (
	"encoding/json"
	"fmt"

	"github.com/jaa/npk/internal/exitcode"
	"github.com/spf13/cobra"
)

func newValidateCommand(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the config and its stage table",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadValidConfig(app)
			if err != nil {
				return err
			}
			model, err := cfg.StageModel()
			if err != nil {
				return withExitCode(exitcode.InvalidConfig, err)
			}

			if app.Opts.JSON {
				stages := []string{}
				for _, stage := range model.Stages() {
					stages = append(stages, stage.Name)
				}
				payload := map[string]any{"valid": true, "stages": stages}
				encoded, _ := json.Marshal(payload)
				fmt.Fprintln(app.IO.Out, string(encoded))
			} else {
				fmt.Fprintf(app.IO.Out, "Config is valid (%d stages).\n", model.Len())
			}
			return nil
		},
	}
}
