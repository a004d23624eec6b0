package cli

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

func newVersionCommand(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version/build metadata",
		RunE: func(cmd *cobra.Command, args []string) error {
			if app.Opts.JSON {
				return json.NewEncoder(app.IO.Out).Encode(map[string]string{
					"version":    app.Build.Version,
					"commit":     app.Build.Commit,
					"build_date": app.Build.Date,
				})
			}
			printVersion(app)
			return nil
		},
	}
}
