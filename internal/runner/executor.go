package runner

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/felixgeelhaar/brewprobe/internal/errors"
	"github.com/felixgeelhaar/brewprobe/internal/log"
)

// DefaultTimeout applies when a spec carries no timeout
const DefaultTimeout = 300 * time.Second

// waitDelay bounds how long Wait blocks on inherited pipes after a kill
const waitDelay = 5 * time.Second

// longRunningVerbs are package-manager subcommands that take minutes and
// must be streamed so the operator can tell progress from a hang.
var longRunningVerbs = []string{"install", "audit", "style", "test"}

// Executor runs external commands one at a time
type Executor struct {
	// Stdout and Stderr receive streamed output, echoes and "Running:" lines.
	Stdout io.Writer
	Stderr io.Writer
	// PackageManager names the executable whose long-running verbs force streaming.
	PackageManager string
	Logger         *log.Logger

	extraPath []string
}

// NewExecutor creates an Executor writing to the process stdout/stderr
func NewExecutor(packageManager string, logger *log.Logger) *Executor {
	return &Executor{
		Stdout:         os.Stdout,
		Stderr:         os.Stderr,
		PackageManager: packageManager,
		Logger:         logger,
	}
}

// PrependPath adds dir in front of the command search path
func (e *Executor) PrependPath(dir string) {
	for _, d := range e.extraPath {
		if d == dir {
			return
		}
	}
	e.extraPath = append([]string{dir}, e.extraPath...)
}

// SearchPath returns the PATH value children are started with
func (e *Executor) SearchPath() string {
	parts := append([]string{}, e.extraPath...)
	if p := os.Getenv("PATH"); p != "" {
		parts = append(parts, p)
	}
	return strings.Join(parts, string(os.PathListSeparator))
}

// LookPath resolves file against the prepended directories, then PATH
func (e *Executor) LookPath(file string) (string, error) {
	if strings.ContainsRune(file, filepath.Separator) {
		return exec.LookPath(file)
	}
	for _, dir := range e.extraPath {
		candidate := filepath.Join(dir, file)
		if isExecutable(candidate) {
			return candidate, nil
		}
	}
	return exec.LookPath(file)
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	return info.Mode().Perm()&0o111 != 0
}

// IsLongRunning reports whether argv is a package-manager operation that must stream
func IsLongRunning(argv []string, packageManager string) bool {
	if len(argv) == 0 || packageManager == "" {
		return false
	}
	if filepath.Base(argv[0]) != packageManager {
		return false
	}
	for _, arg := range argv[1:] {
		for _, verb := range longRunningVerbs {
			if arg == verb {
				return true
			}
		}
	}
	return false
}

// EffectiveMode returns the output mode a spec actually runs with
func (e *Executor) EffectiveMode(spec CommandSpec) OutputMode {
	if IsLongRunning(spec.Argv, e.PackageManager) {
		return Streamed
	}
	return spec.Output
}

// Execute runs spec under its timeout.
// Parent-context cancellation is returned as ctx.Err(), never as a timeout.
func (e *Executor) Execute(ctx context.Context, spec CommandSpec) (*ExecutionResult, error) {
	if len(spec.Argv) == 0 {
		return nil, fmt.Errorf("empty command")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	timeout := spec.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	mode := e.EffectiveMode(spec)
	stdout, stderr := e.writers()

	fmt.Fprintf(stdout, "Running: %s\n", spec)
	log.OrDefault(e.Logger).Debug("executing command",
		"argv", spec.Argv, "timeout", timeout, "output", mode.String())

	path, err := e.LookPath(spec.Argv[0])
	if err != nil {
		return nil, errors.NewCommandStartFailure(spec.Argv, err)
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, path, spec.Argv[1:]...)
	cmd.Dir = spec.Dir
	cmd.Env = e.childEnv(spec.Env)
	cmd.WaitDelay = waitDelay
	if spec.Stdin != "" {
		cmd.Stdin = strings.NewReader(spec.Stdin)
	}

	var outBuf, errBuf bytes.Buffer
	if mode == Streamed {
		cmd.Stdout = stdout
		cmd.Stderr = stderr
	} else {
		cmd.Stdout = &outBuf
		cmd.Stderr = &errBuf
	}

	start := time.Now()
	runErr := cmd.Run()
	result := &ExecutionResult{
		ExitCode: exitCodeOf(runErr),
		Stdout:   outBuf.String(),
		Stderr:   errBuf.String(),
		Elapsed:  time.Since(start),
	}

	if mode == Buffered {
		echo(stdout, result)
	}

	if runErr != nil {
		// Operator interrupt wins over every other classification.
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		if stderrors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return result, errors.NewTimeoutExceeded(spec.Argv, timeout, result.Output())
		}
		var exitErr *exec.ExitError
		if !stderrors.As(runErr, &exitErr) {
			return result, errors.NewCommandStartFailure(spec.Argv, runErr)
		}
	}

	if !spec.allows(result.ExitCode) {
		fmt.Fprintf(stdout, "Command failed with exit code %d\n", result.ExitCode)
		return result, errors.NewCommandFailure(spec.Argv, result.ExitCode, result.Output())
	}

	return result, nil
}

func (e *Executor) writers() (io.Writer, io.Writer) {
	stdout, stderr := e.Stdout, e.Stderr
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	return stdout, stderr
}

func (e *Executor) childEnv(extra map[string]string) []string {
	if len(e.extraPath) == 0 && len(extra) == 0 {
		return nil
	}
	env := os.Environ()
	if len(e.extraPath) > 0 {
		env = append(env, "PATH="+e.SearchPath())
	}
	for key, value := range extra {
		env = append(env, fmt.Sprintf("%s=%s", key, value))
	}
	return env
}

func exitCodeOf(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if stderrors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

func echo(w io.Writer, result *ExecutionResult) {
	if out := strings.TrimSpace(result.Stdout); out != "" {
		fmt.Fprintf(w, "STDOUT: %s\n", out)
	}
	if out := strings.TrimSpace(result.Stderr); out != "" {
		fmt.Fprintf(w, "STDERR: %s\n", out)
	}
}
