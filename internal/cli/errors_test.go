package cli

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jaa/npk/internal/config"
	"github.com/jaa/npk/internal/exitcode"
	"github.com/jaa/npk/internal/nuitka"
	"github.com/jaa/npk/internal/preset"
)

func TestMapExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "nil", err: nil, want: exitcode.Success},
		{name: "coded", err: &ExitError{Code: exitcode.InvalidConfig, Err: errors.New("bad")}, want: exitcode.InvalidConfig},
		{name: "interrupted", err: withExitCode(exitcode.Interrupted, errors.New("stop")), want: exitcode.Interrupted},
		{name: "config validation", err: &config.ValidationError{Problems: []string{"x"}}, want: exitcode.InvalidConfig},
		{name: "options validation", err: fmt.Errorf("build: %w", &nuitka.ValidationError{Problems: []string{"x"}}), want: exitcode.InvalidUsage},
		{name: "missing preset", err: fmt.Errorf("%w: release", preset.ErrNotFound), want: exitcode.InvalidUsage},
		{name: "missing compiler", err: fmt.Errorf("%w: nuitka", nuitka.ErrBinaryNotFound), want: exitcode.MissingDependency},
		{name: "unknown command", err: errors.New("unknown command \"x\" for \"npk\""), want: exitcode.InvalidUsage},
		{name: "generic", err: errors.New("boom"), want: exitcode.RuntimeFailure},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := mapExitCode(tc.err); got != tc.want {
				t.Fatalf("mapExitCode() = %d, want %d", got, tc.want)
			}
		})
	}
}
