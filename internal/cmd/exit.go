package cmd

import (
	"context"
	"errors"
	"strings"

	"github.com/quantmind-br/gman/internal/core"
)

// ExitError carries the process exit code of a failed command
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

func withExit(code int, err error) error {
	if err == nil {
		return nil
	}
	return &ExitError{Code: code, Err: err}
}

// ExitCode maps an error returned by a command to the process exit code
func ExitCode(err error) int {
	if err == nil {
		return core.ExitSuccess
	}

	var exitErr *ExitError
	switch {
	case errors.Is(err, context.Canceled):
		return core.ExitInterrupted
	case errors.As(err, &exitErr):
		return exitErr.Code
	case errors.Is(err, core.ErrCanceled):
		return core.ExitCanceled
	case strings.HasPrefix(err.Error(), "unknown command"):
		return core.ExitCommandNotFound
	case strings.HasPrefix(err.Error(), "unknown flag"),
		strings.HasPrefix(err.Error(), "unknown shorthand flag"),
		strings.Contains(err.Error(), "arg(s)"):
		return core.ExitInvalidArgs
	default:
		return core.ExitGeneral
	}
}

// installExitCode classifies a failed install
func installExitCode(err error) int {
	var repoErr *core.RepositoryError
	var dlErr *core.DownloadError
	switch {
	case errors.Is(err, core.ErrCanceled):
		return core.ExitCanceled
	case errors.Is(err, core.ErrUnauthorized):
		return core.ExitPermission
	case errors.As(err, &repoErr), errors.As(err, &dlErr):
		return core.ExitNetwork
	default:
		return core.ExitInstallFailed
	}
}
