package runner

import (
	"context"
	"strings"
	"time"
)

// OutputMode selects how a command's output reaches the operator
type OutputMode int

const (
	// Buffered captures stdout/stderr into the result and echoes them afterwards
	Buffered OutputMode = iota
	// Streamed passes stdout/stderr through live; the result streams stay empty
	Streamed
)

// String returns the string representation of the output mode
func (m OutputMode) String() string {
	if m == Streamed {
		return "streamed"
	}
	return "buffered"
}

// CommandSpec describes one external command invocation
type CommandSpec struct {
	Argv             []string
	Timeout          time.Duration
	Output           OutputMode
	AllowedExitCodes []int  // defaults to {0}
	Stdin            string // fed to the child when non-empty
	Dir              string
	Env              map[string]string
}

// Command is a shorthand for a buffered CommandSpec
func Command(timeout time.Duration, argv ...string) CommandSpec {
	return CommandSpec{Argv: argv, Timeout: timeout}
}

// Allowing returns a copy of the spec that also accepts the given exit codes
func (s CommandSpec) Allowing(codes ...int) CommandSpec {
	s.AllowedExitCodes = append([]int{0}, codes...)
	return s
}

// Streaming returns a copy of the spec with streamed output
func (s CommandSpec) Streaming() CommandSpec {
	s.Output = Streamed
	return s
}

// String renders the argv the way it is shown to the operator
func (s CommandSpec) String() string {
	return strings.Join(s.Argv, " ")
}

func (s CommandSpec) allows(code int) bool {
	if len(s.AllowedExitCodes) == 0 {
		return code == 0
	}
	for _, c := range s.AllowedExitCodes {
		if c == code {
			return true
		}
	}
	return false
}

// ExecutionResult is the immutable outcome of one command
type ExecutionResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Elapsed  time.Duration
}

// Output returns stdout and stderr joined, trimmed
func (r *ExecutionResult) Output() string {
	if r == nil {
		return ""
	}
	return strings.TrimSpace(strings.TrimSpace(r.Stdout) + "\n" + strings.TrimSpace(r.Stderr))
}

// Runner is what verification steps use to reach the outside world.
// Executor is the production implementation.
type Runner interface {
	// Execute runs one command, failing with a CommandFailure or
	// TimeoutExceeded error from internal/errors.
	Execute(ctx context.Context, spec CommandSpec) (*ExecutionResult, error)
	// LookPath resolves an executable, honouring prepended directories.
	LookPath(file string) (string, error)
	// PrependPath adds a directory in front of the search path for later commands.
	PrependPath(dir string)
}
