// Package runnertest provides a scripted runner.Runner for tests.
package runnertest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/felixgeelhaar/brewprobe/internal/errors"
	"github.com/felixgeelhaar/brewprobe/internal/runner"
)

type response struct {
	exitCode int
	stdout   string
	timeout  bool
	hook     func(runner.CommandSpec)
}

// Fake answers commands by longest matching argv prefix.
// Commands without a scripted answer succeed with empty output.
type Fake struct {
	responses map[string]response
	paths     map[string]string

	Calls     []runner.CommandSpec
	Prepended []string
}

// New creates an empty Fake
func New() *Fake {
	return &Fake{
		responses: make(map[string]response),
		paths:     make(map[string]string),
	}
}

// On scripts a successful answer with the given stdout
func (f *Fake) On(prefix, stdout string) *Fake {
	f.set(prefix, response{stdout: stdout})
	return f
}

// Fail scripts a non-zero exit for commands starting with prefix
func (f *Fake) Fail(prefix string, exitCode int) *Fake {
	f.set(prefix, response{exitCode: exitCode})
	return f
}

// Timeout scripts a TimeoutExceeded for commands starting with prefix
func (f *Fake) Timeout(prefix string) *Fake {
	f.set(prefix, response{timeout: true})
	return f
}

func (f *Fake) set(prefix string, r response) {
	r.hook = f.responses[prefix].hook
	f.responses[prefix] = r
}

// Do runs hook whenever a command starting with prefix executes
func (f *Fake) Do(prefix string, hook func(spec runner.CommandSpec)) *Fake {
	r := f.responses[prefix]
	r.hook = hook
	f.responses[prefix] = r
	return f
}

// Tool makes LookPath(name) resolve to path
func (f *Fake) Tool(name, path string) *Fake {
	f.paths[name] = path
	return f
}

// Missing makes LookPath(name) fail again
func (f *Fake) Missing(name string) *Fake {
	delete(f.paths, name)
	return f
}

// Execute implements runner.Runner
func (f *Fake) Execute(ctx context.Context, spec runner.CommandSpec) (*runner.ExecutionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.Calls = append(f.Calls, spec)

	line := spec.String()
	best, found := "", false
	for prefix := range f.responses {
		if matches(line, prefix) && (!found || len(prefix) > len(best)) {
			best, found = prefix, true
		}
	}
	if !found {
		return &runner.ExecutionResult{}, nil
	}

	r := f.responses[best]
	if r.hook != nil {
		r.hook(spec)
	}
	if r.timeout {
		return &runner.ExecutionResult{ExitCode: -1}, errors.NewTimeoutExceeded(spec.Argv, time.Second, "")
	}

	result := &runner.ExecutionResult{ExitCode: r.exitCode, Stdout: r.stdout}
	if !allowed(spec, r.exitCode) {
		return result, errors.NewCommandFailure(spec.Argv, r.exitCode, result.Output())
	}
	return result, nil
}

// LookPath implements runner.Runner
func (f *Fake) LookPath(file string) (string, error) {
	if path, ok := f.paths[file]; ok {
		return path, nil
	}
	return "", fmt.Errorf("exec: %q: executable file not found in $PATH", file)
}

// PrependPath implements runner.Runner
func (f *Fake) PrependPath(dir string) {
	f.Prepended = append(f.Prepended, dir)
}

// Ran reports whether any executed command started with prefix
func (f *Fake) Ran(prefix string) bool {
	return f.Count(prefix) > 0
}

// Count returns how many executed commands started with prefix
func (f *Fake) Count(prefix string) int {
	n := 0
	for _, spec := range f.Calls {
		if matches(spec.String(), prefix) {
			n++
		}
	}
	return n
}

// Find returns the first executed spec starting with prefix
func (f *Fake) Find(prefix string) (runner.CommandSpec, bool) {
	for _, spec := range f.Calls {
		if matches(spec.String(), prefix) {
			return spec, true
		}
	}
	return runner.CommandSpec{}, false
}

func matches(line, prefix string) bool {
	return line == prefix || strings.HasPrefix(line, prefix+" ")
}

func allowed(spec runner.CommandSpec, code int) bool {
	if len(spec.AllowedExitCodes) == 0 {
		return code == 0
	}
	for _, c := range spec.AllowedExitCodes {
		if c == code {
			return true
		}
	}
	return false
}
