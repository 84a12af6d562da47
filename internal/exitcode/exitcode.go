package exitcode

import (
	"context"
	stderrors "errors"
	"os"

	"github.com/felixgeelhaar/brewprobe/internal/errors"
)

// Exit codes for consistent error handling across the CLI
const (
	// Success indicates every recorded step passed
	Success = 0

	// GeneralError indicates at least one step failed, or a general error condition
	GeneralError = 1

	// UsageError indicates invalid command usage (bad flags, missing args, etc.)
	UsageError = 2

	// EnvironmentUnavailable indicates a required external tool is missing
	EnvironmentUnavailable = 3

	// Interrupted indicates the operator cancelled the run (128 + SIGINT)
	Interrupted = 130
)

// Error carries a precomputed exit code through cobra's error return.
type Error struct {
	Code int
}

func (e *Error) Error() string {
	return GetExitCodeDescription(e.Code)
}

// WithCode returns an error that makes DetermineExitCode yield code.
func WithCode(code int) error {
	if code == Success {
		return nil
	}
	return &Error{Code: code}
}

// Exit terminates the program with the given exit code
func Exit(code int) {
	os.Exit(code)
}

// ExitWithError exits with an appropriate code based on error type
func ExitWithError(err error) {
	Exit(DetermineExitCode(err))
}

// DetermineExitCode analyzes an error and returns the appropriate exit code
func DetermineExitCode(err error) int {
	if err == nil {
		return Success
	}

	var coded *Error
	if stderrors.As(err, &coded) {
		return coded.Code
	}

	if stderrors.Is(err, context.Canceled) {
		return Interrupted
	}

	switch errors.CodeOf(err) {
	case errors.ErrCodeEnvUnavailable:
		return EnvironmentUnavailable
	case errors.ErrCodeConfigInvalid:
		return UsageError
	}

	return GeneralError
}

// GetExitCodeDescription returns a human-readable description of an exit code
func GetExitCodeDescription(code int) string {
	switch code {
	case Success:
		return "Success"
	case GeneralError:
		return "One or more steps failed"
	case UsageError:
		return "Usage error (invalid flags, arguments or configuration)"
	case EnvironmentUnavailable:
		return "Required tools unavailable"
	case Interrupted:
		return "Interrupted by operator"
	default:
		return "Unknown error"
	}
}
