package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ErrorCode represents a unique error identifier
type ErrorCode string

// Error categories
const (
	// Execution errors (EXEC-001 to EXEC-099)
	ErrCodeCommandFailed  ErrorCode = "EXEC-001"
	ErrCodeCommandTimeout ErrorCode = "EXEC-002"
	ErrCodeCommandStart   ErrorCode = "EXEC-003"

	// Assertion errors (ASSERT-001 to ASSERT-099)
	ErrCodeAssertionFailed ErrorCode = "ASSERT-001"

	// Environment errors (ENV-001 to ENV-099)
	ErrCodeEnvUnavailable ErrorCode = "ENV-001"

	// Installation errors (INSTALL-001 to INSTALL-099)
	ErrCodeInstallExhausted ErrorCode = "INSTALL-001"

	// Configuration errors (CONFIG-001 to CONFIG-099)
	ErrCodeConfigInvalid ErrorCode = "CONFIG-001"

	// File I/O errors (IO-001 to IO-099)
	ErrCodeFileNotFound    ErrorCode = "IO-001"
	ErrCodeFileReadFailed  ErrorCode = "IO-002"
	ErrCodeFileWriteFailed ErrorCode = "IO-003"
)

// Failure classes shown to the operator next to a failed step.
const (
	ClassCommandFailure         = "CommandFailure"
	ClassTimeoutExceeded        = "TimeoutExceeded"
	ClassAssertionFailure       = "AssertionFailure"
	ClassEnvironmentUnavailable = "EnvironmentUnavailable"
	ClassInstallExhausted       = "InstallExhausted"
	ClassConfigInvalid          = "ConfigInvalid"
	ClassIO                     = "IOError"
	ClassUnknown                = "Error"
)

// ProbeError represents an enhanced error with code, suggestions, and documentation.
// Command and Output are set for failures of external commands.
type ProbeError struct {
	Code        ErrorCode
	Message     string
	Command     []string
	ExitCode    int
	Output      string
	Suggestions []string
	DocsURL     string
	Cause       error
}

// Error implements the error interface
func (e *ProbeError) Error() string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("[%s] %s", e.Code, e.Message))

	if e.Cause != nil {
		b.WriteString(fmt.Sprintf(": %v", e.Cause))
	}

	if len(e.Suggestions) > 0 {
		b.WriteString("\n\nSuggestions:")
		for _, suggestion := range e.Suggestions {
			b.WriteString(fmt.Sprintf("\n  • %s", suggestion))
		}
	}

	if e.DocsURL != "" {
		b.WriteString(fmt.Sprintf("\n\nDocumentation: %s", e.DocsURL))
	}

	return b.String()
}

// Unwrap implements error unwrapping for errors.Is and errors.As
func (e *ProbeError) Unwrap() error {
	return e.Cause
}

// Class returns the one-line failure classification for the error code
func (e *ProbeError) Class() string {
	switch e.Code {
	case ErrCodeCommandFailed, ErrCodeCommandStart:
		return ClassCommandFailure
	case ErrCodeCommandTimeout:
		return ClassTimeoutExceeded
	case ErrCodeAssertionFailed:
		return ClassAssertionFailure
	case ErrCodeEnvUnavailable:
		return ClassEnvironmentUnavailable
	case ErrCodeInstallExhausted:
		return ClassInstallExhausted
	case ErrCodeConfigInvalid:
		return ClassConfigInvalid
	case ErrCodeFileNotFound, ErrCodeFileReadFailed, ErrCodeFileWriteFailed:
		return ClassIO
	default:
		return ClassUnknown
	}
}

// New creates a new ProbeError
func New(code ErrorCode, message string) *ProbeError {
	return &ProbeError{
		Code:    code,
		Message: message,
	}
}

// Wrap creates a new ProbeError wrapping an existing error
func Wrap(code ErrorCode, message string, cause error) *ProbeError {
	return &ProbeError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// WithSuggestion adds a suggestion to the error
func (e *ProbeError) WithSuggestion(suggestion string) *ProbeError {
	e.Suggestions = append(e.Suggestions, suggestion)
	return e
}

// WithSuggestions adds multiple suggestions to the error
func (e *ProbeError) WithSuggestions(suggestions ...string) *ProbeError {
	e.Suggestions = append(e.Suggestions, suggestions...)
	return e
}

// WithDocs adds a documentation URL to the error
func (e *ProbeError) WithDocs(url string) *ProbeError {
	e.DocsURL = url
	return e
}

// CodeOf returns the code of the first ProbeError in err's chain, or "" if none.
func CodeOf(err error) ErrorCode {
	var pe *ProbeError
	if stderrors.As(err, &pe) {
		return pe.Code
	}
	return ""
}

// Is reports whether err's chain carries a ProbeError with the given code.
func Is(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}

// ClassOf returns the failure classification of err.
func ClassOf(err error) string {
	var pe *ProbeError
	if stderrors.As(err, &pe) {
		return pe.Class()
	}
	return ClassUnknown
}

// Common error constructors for frequently used errors

// NewCommandFailure creates an error for a command that exited with a disallowed code
func NewCommandFailure(argv []string, exitCode int, output string) *ProbeError {
	err := New(ErrCodeCommandFailed, fmt.Sprintf("command failed with exit code %d: %s", exitCode, strings.Join(argv, " ")))
	err.Command = argv
	err.ExitCode = exitCode
	err.Output = output
	return err
}

// NewCommandStartFailure creates an error for a command that could not be started
func NewCommandStartFailure(argv []string, cause error) *ProbeError {
	err := Wrap(ErrCodeCommandStart, fmt.Sprintf("command could not be started: %s", strings.Join(argv, " ")), cause).
		WithSuggestion("Check that the executable is installed and on PATH")
	err.Command = argv
	err.ExitCode = -1
	return err
}

// NewTimeoutExceeded creates an error for a command that exceeded its time budget
func NewTimeoutExceeded(argv []string, timeout time.Duration, output string) *ProbeError {
	err := New(ErrCodeCommandTimeout, fmt.Sprintf("command timed out after %s: %s", timeout, strings.Join(argv, " ")))
	err.Command = argv
	err.ExitCode = -1
	err.Output = output
	return err.WithSuggestion("Raise INSTALL_TIMEOUT for slow installs or check for a stuck process")
}

// NewAssertionFailure creates an error for a failed post-condition
func NewAssertionFailure(format string, args ...any) *ProbeError {
	return New(ErrCodeAssertionFailed, fmt.Sprintf(format, args...))
}

// NewEnvironmentUnavailable creates an error for required tools missing before the run
func NewEnvironmentUnavailable(tools ...string) *ProbeError {
	return New(ErrCodeEnvUnavailable, fmt.Sprintf("required tools not found: %s", strings.Join(tools, ", "))).
		WithSuggestion("Install the missing tools and make sure they are on PATH").
		WithSuggestion("Run 'brewprobe check-system' to see what is available").
		WithDocs("https://docs.brew.sh/Installation")
}

// NewInstallExhausted creates an error once every installation strategy has failed
func NewInstallExhausted(attempts ...error) *ProbeError {
	return Wrap(ErrCodeInstallExhausted, fmt.Sprintf("all %d installation strategies failed", len(attempts)), stderrors.Join(attempts...))
}

// NewConfigInvalidError creates a configuration error
func NewConfigInvalidError(key string, cause error) *ProbeError {
	return Wrap(ErrCodeConfigInvalid, fmt.Sprintf("invalid configuration value for %s", key), cause).
		WithSuggestion("Check the environment variable or brewprobe.yaml entry")
}

// NewFileNotFoundError creates a file not found error
func NewFileNotFoundError(path string) *ProbeError {
	return New(ErrCodeFileNotFound, fmt.Sprintf("file not found: %s", path)).
		WithSuggestion("Check if the file path is correct").
		WithSuggestion("Verify the file exists and you have read permissions")
}

// NewFileWriteError creates an error for an output file that could not be written
func NewFileWriteError(path string, cause error) *ProbeError {
	return Wrap(ErrCodeFileWriteFailed, fmt.Sprintf("failed to write %s", path), cause).
		WithSuggestion("Check that the directory exists and is writable")
}
