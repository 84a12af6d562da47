// Package container runs the verification workflow inside a throwaway
// Linux image built from the workspace.
package container

import (
	"context"
	stderrors "errors"
	"fmt"
	"path"
	"path/filepath"
	"time"

	"github.com/google/go-containerregistry/pkg/name"

	"github.com/felixgeelhaar/brewprobe/internal/config"
	"github.com/felixgeelhaar/brewprobe/internal/errors"
	"github.com/felixgeelhaar/brewprobe/internal/exitcode"
	"github.com/felixgeelhaar/brewprobe/internal/log"
	"github.com/felixgeelhaar/brewprobe/internal/runner"
	"github.com/felixgeelhaar/brewprobe/internal/version"
)

const (
	buildTimeout = 3600 * time.Second
	cleanTimeout = 120 * time.Second

	// mountPoint is where the workspace appears inside the container
	mountPoint = "/workspace"

	agentLabel = "io.brewprobe.agent"
)

// Session is one build/run/clean cycle against a container runtime
type Session struct {
	Runtime       string
	Image         string
	Containerfile string
	// Workspace is the build context and is mounted read-only into the container.
	Workspace string
	// Forward holds the environment passed into the container, keyed by variable.
	Forward               map[string]string
	PreinstallDeps        bool
	PreinstallSkipTexlive bool
	RunTimeout            time.Duration

	Runner runner.Runner
	Logger *log.Logger

	ref name.Reference
}

// NewSession builds a session from settings. workspace overrides the
// configured workspace when non-empty.
func NewSession(settings *config.Settings, workspace string, r runner.Runner, logger *log.Logger) (*Session, error) {
	if workspace == "" {
		workspace = settings.Formula.Workspace
	}
	abs, err := filepath.Abs(workspace)
	if err != nil {
		return nil, errors.NewConfigInvalidError("formula.workspace", err)
	}

	ref, err := name.ParseReference(settings.Container.Image)
	if err != nil {
		return nil, errors.NewConfigInvalidError("container.image", err)
	}

	return &Session{
		Runtime:               settings.Container.Runtime,
		Image:                 settings.Container.Image,
		Containerfile:         settings.Container.Containerfile,
		Workspace:             abs,
		Forward:               settings.Forward,
		PreinstallDeps:        settings.PreinstallDeps,
		PreinstallSkipTexlive: settings.PreinstallSkipTexlive,
		// The inner workflow may spend its full install budget, plus setup.
		RunTimeout: settings.InstallTimeout + 30*time.Minute,
		Runner:     r,
		Logger:     log.OrDefault(logger),
		ref:        ref,
	}, nil
}

// ContainerName is the repository's last path element, used for --name and rm
func (s *Session) ContainerName() string {
	if s.ref == nil {
		return s.Image
	}
	return path.Base(s.ref.Context().RepositoryStr())
}

// Check resolves the runtime executable
func (s *Session) Check() error {
	if s.Runtime == "" {
		return errors.NewEnvironmentUnavailable("podman or docker")
	}
	if _, err := s.Runner.LookPath(s.Runtime); err != nil {
		return errors.NewEnvironmentUnavailable(s.Runtime)
	}
	return nil
}

// BuildArgs returns the runtime arguments for building the test image
func (s *Session) BuildArgs() []string {
	args := []string{
		"build", "-t", s.Image, "-f", s.Containerfile,
		"--label", agentLabel + "=" + version.GetInfo().UserAgent(),
	}
	if s.PreinstallDeps {
		args = append(args, "--build-arg", config.EnvPreinstallDeps+"=1")
		if s.PreinstallSkipTexlive {
			args = append(args, "--build-arg", config.EnvPreinstallSkipTexlive+"=1")
		}
	}
	return append(args, ".")
}

// RunArgs returns the runtime arguments for running the workflow container
func (s *Session) RunArgs() []string {
	args := []string{
		"run",
		"--rm",
		"--name", s.ContainerName(),
		// SELinux hosts would otherwise deny the bind mount
		"--security-opt", "label=disable",
		"-v", fmt.Sprintf("%s:%s:ro", s.Workspace, mountPoint),
	}

	for _, key := range config.ForwardedEnv {
		if value, ok := s.Forward[key]; ok {
			args = append(args, "-e", fmt.Sprintf("%s=%s", key, value))
		}
	}

	return append(args, s.Image)
}

// Build creates the test image
func (s *Session) Build(ctx context.Context) error {
	if s.PreinstallDeps {
		s.Logger.Info("caching package-manager dependencies inside image",
			"skip_texlive", s.PreinstallSkipTexlive)
	}
	spec := runner.Command(buildTimeout, s.argv(s.BuildArgs())...).Streaming()
	spec.Dir = s.Workspace
	_, err := s.Runner.Execute(ctx, spec)
	return err
}

// Run executes the workflow container and returns its exit code.
// Verdict codes of the inner run are returned without error.
func (s *Session) Run(ctx context.Context) (int, error) {
	spec := runner.Command(s.RunTimeout, s.argv(s.RunArgs())...).
		Streaming().
		Allowing(exitcode.GeneralError, exitcode.EnvironmentUnavailable, exitcode.Interrupted)

	res, err := s.Runner.Execute(ctx, spec)
	if err != nil {
		return exitcode.GeneralError, err
	}
	return res.ExitCode, nil
}

// RemoveContainer force-removes the named workflow container if it is still around
func (s *Session) RemoveContainer(ctx context.Context) error {
	_, err := s.Runner.Execute(ctx, runner.Command(cleanTimeout, s.argv([]string{"rm", "-f", s.ContainerName()})...).Allowing(1))
	return err
}

// Clean removes the container, the image and dangling layers.
// Every step is attempted; failures are joined.
func (s *Session) Clean(ctx context.Context) error {
	steps := [][]string{
		{"rm", "-f", s.ContainerName()},
		{"rmi", "-f", s.Image},
		{"image", "prune", "-f"},
	}

	var errs []error
	for _, args := range steps {
		if _, err := s.Runner.Execute(ctx, runner.Command(cleanTimeout, s.argv(args)...).Allowing(1)); err != nil {
			if stderrors.Is(err, context.Canceled) {
				return err
			}
			s.Logger.WithError(err).Warn("container cleanup step failed", "args", args)
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}

func (s *Session) argv(args []string) []string {
	return append([]string{s.Runtime}, args...)
}
