package cli

import (
	"errors"
	"strings"

	"github.com/jaa/npk/internal/config"
	"github.com/jaa/npk/internal/engine"
	"github.com/jaa/npk/internal/exitcode"
	"github.com/jaa/npk/internal/nuitka"
	"github.com/jaa/npk/internal/preset"
)

type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

func withExitCode(code int, err error) error {
	if err == nil {
		return nil
	}
	return &ExitError{Code: code, Err: err}
}

func mapExitCode(err error) int {
	if err == nil {
		return exitcode.Success
	}
	var coded *ExitError
	if errors.As(err, &coded) {
		return coded.Code
	}

	var configErr *config.ValidationError
	var optionsErr *nuitka.ValidationError
	switch {
	case errors.As(err, &configErr):
		return exitcode.InvalidConfig
	case errors.As(err, &optionsErr), errors.Is(err, preset.ErrNotFound):
		return exitcode.InvalidUsage
	case errors.Is(err, nuitka.ErrBinaryNotFound), errors.Is(err, engine.ErrMissingBinary):
		return exitcode.MissingDependency
	}

	message := err.Error()
	if strings.Contains(message, "unknown command") || strings.Contains(message, "unknown flag") {
		return exitcode.InvalidUsage
	}
	return exitcode.RuntimeFailure
}
