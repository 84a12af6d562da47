// Package install puts the packaged CLI on the search path without the
// package manager, trying one strategy after another.
package install

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"

	"github.com/felixgeelhaar/brewprobe/internal/errors"
	"github.com/felixgeelhaar/brewprobe/internal/log"
	"github.com/felixgeelhaar/brewprobe/internal/runner"
)

const (
	pipTimeout           = 1800 * time.Second
	venvTimeout          = 180 * time.Second
	pythonProbeTimeout   = 30 * time.Second
	pythonInstallTimeout = 1800 * time.Second
)

// Strategy is one way of installing the packaged CLI
type Strategy interface {
	Name() string
	// Install runs the installation and returns the directory holding the
	// installed executables.
	Install(ctx context.Context, r runner.Runner) (binDir string, err error)
}

// Chain tries strategies in order until one leaves Binary resolvable
type Chain struct {
	Strategies []Strategy
	Binary     string
	Runner     runner.Runner
	Logger     *log.Logger
}

// Install returns the name of the strategy that succeeded, or an
// InstallExhausted error carrying every attempt's failure.
func (c *Chain) Install(ctx context.Context) (string, error) {
	logger := log.OrDefault(c.Logger)
	var attempts []error

	for _, s := range c.Strategies {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		binDir, err := s.Install(ctx, c.Runner)
		if err != nil {
			if stderrors.Is(err, context.Canceled) {
				return "", err
			}
			logger.Warn("installation strategy failed", "strategy", s.Name(), "error", err)
			attempts = append(attempts, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}

		if binDir != "" {
			c.Runner.PrependPath(binDir)
		}
		if path, err := c.Runner.LookPath(c.Binary); err == nil {
			logger.Info("installation strategy succeeded", "strategy", s.Name(), "binary", path)
			return s.Name(), nil
		}

		err = errors.NewAssertionFailure("%s not found after %s install", c.Binary, s.Name())
		logger.Warn("installation strategy left no binary", "strategy", s.Name(), "bin_dir", binDir)
		attempts = append(attempts, fmt.Errorf("%s: %w", s.Name(), err))
	}

	if len(attempts) == 0 {
		return "", errors.New(errors.ErrCodeInstallExhausted, "no installation strategies configured")
	}
	return "", errors.NewInstallExhausted(attempts...)
}

// PythonVersion reports the interpreter version, or an error if it cannot be read
func PythonVersion(ctx context.Context, r runner.Runner, python string) (*semver.Version, error) {
	res, err := r.Execute(ctx, runner.Command(pythonProbeTimeout,
		python, "-c", "import sys; print(sys.version.split()[0])"))
	if err != nil {
		return nil, err
	}
	raw := strings.TrimSpace(res.Stdout)
	v, err := semver.NewVersion(numericPrefix(raw))
	if err != nil {
		return nil, fmt.Errorf("unrecognised %s version %q: %w", python, raw, err)
	}
	return v, nil
}

// EnsurePython makes sure the interpreter meets minimum, installing a newer
// one through the package manager if needed. A failed upgrade is logged and
// tolerated; only cancellation is returned as an error.
func EnsurePython(ctx context.Context, r runner.Runner, python, packageManager string, minimum *semver.Version, logger *log.Logger) (string, error) {
	logger = log.OrDefault(logger)

	v, err := PythonVersion(ctx, r, python)
	if stderrors.Is(err, context.Canceled) {
		return "", err
	}
	if err == nil && !v.LessThan(minimum) {
		return v.String(), nil
	}
	if err != nil {
		logger.Warn("could not determine interpreter version", "python", python, "error", err)
	} else {
		logger.Info("interpreter too old, installing a newer one", "version", v.String(), "minimum", minimum.String())
	}

	if _, err := r.Execute(ctx, runner.Command(pythonInstallTimeout, packageManager, "install", "python").Streaming()); err != nil {
		if stderrors.Is(err, context.Canceled) {
			return "", err
		}
		logger.Warn("interpreter install failed, continuing", "error", err)
	}

	v, err = PythonVersion(ctx, r, python)
	if err != nil {
		if stderrors.Is(err, context.Canceled) {
			return "", err
		}
		logger.Warn("could not verify interpreter after install", "error", err)
		return "", nil
	}
	return v.String(), nil
}

// VenvStrategy installs into a dedicated virtual environment
type VenvStrategy struct {
	Dir    string
	Python string
	Spec   string
}

// Name implements Strategy
func (s *VenvStrategy) Name() string { return "venv" }

// Install implements Strategy
func (s *VenvStrategy) Install(ctx context.Context, r runner.Runner) (string, error) {
	bin := filepath.Join(s.Dir, "bin")

	if !exists(filepath.Join(bin, "python")) {
		if _, err := r.Execute(ctx, runner.Command(venvTimeout, s.Python, "-m", "venv", s.Dir)); err != nil {
			return "", fmt.Errorf("create virtual environment: %w", err)
		}
	}

	pip := filepath.Join(bin, "pip")
	if !exists(pip) {
		return "", fmt.Errorf("virtual environment at %s has no pip", s.Dir)
	}

	if _, err := r.Execute(ctx, runner.Command(pipTimeout, pip, "install", "--no-cache-dir", s.Spec).Streaming()); err != nil {
		return "", err
	}
	return bin, nil
}

// UserStrategy installs into the user site with the interpreter's own pip,
// overriding the externally-managed marker.
type UserStrategy struct {
	Python  string
	Spec    string
	UserBin string
}

// Name implements Strategy
func (s *UserStrategy) Name() string { return "user" }

// Install implements Strategy
func (s *UserStrategy) Install(ctx context.Context, r runner.Runner) (string, error) {
	argv := []string{s.Python, "-m", "pip", "install", "--user", "--break-system-packages", "--no-cache-dir", s.Spec}
	if _, err := r.Execute(ctx, runner.Command(pipTimeout, argv...).Streaming()); err != nil {
		return "", err
	}
	return s.UserBin, nil
}

// DefaultUserBin is where pip --user places scripts on Linux and macOS
func DefaultUserBin() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".local", "bin")
}

// numericPrefix drops suffixes like "rc1" or "+" that interpreters append
func numericPrefix(s string) string {
	end := 0
	for end < len(s) && (s[end] == '.' || (s[end] >= '0' && s[end] <= '9')) {
		end++
	}
	return strings.TrimSuffix(s[:end], ".")
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
