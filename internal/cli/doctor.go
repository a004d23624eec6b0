package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/jaa/npk/internal/doctor"
	"github.com/jaa/npk/internal/exitcode"
	"github.com/spf13/cobra"
)

const updateCheckTimeout = 2 * time.Minute

func newDoctorCommand(app *AppContext) *cobra.Command {
	var checkUpdates bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the compiler, python and directories",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadValidConfig(app)
			if err != nil {
				return err
			}

			ctx := context.Background()
			checker := doctor.NewChecker()
			if checkUpdates {
				checker.CheckUpdates = true
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, updateCheckTimeout)
				defer cancel()
			}
			report := checker.Check(ctx, cfg)

			if app.Opts.JSON {
				encoder := json.NewEncoder(app.IO.Out)
				if err := encoder.Encode(report); err != nil {
					return withExitCode(exitcode.RuntimeFailure, err)
				}
			} else {
				checks := append([]doctor.Check{}, report.Checks...)
				sort.SliceStable(checks, func(i, j int) bool {
					return checks[i].Name < checks[j].Name
				})
				for _, check := range checks {
					if app.Opts.Quiet && check.Severity == doctor.SeverityInfo {
						continue
					}
					fmt.Fprintf(app.IO.Out, "[%s] %s: %s\n", check.Severity, check.Name, check.Message)
				}
			}

			if report.HasErrors() {
				return withExitCode(exitcode.MissingDependency, fmt.Errorf("doctor found %d error(s)", report.ErrorCount()))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&checkUpdates, "check-updates", false, "Ask pip whether a newer nuitka release is available")
	return cmd
}
