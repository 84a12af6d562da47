package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/brewprobe/internal/container"
	"github.com/felixgeelhaar/brewprobe/internal/detect"
	"github.com/felixgeelhaar/brewprobe/internal/exitcode"
	"github.com/felixgeelhaar/brewprobe/internal/log"
	"github.com/felixgeelhaar/brewprobe/internal/orchestrator"
	"github.com/felixgeelhaar/brewprobe/internal/report"
	"github.com/felixgeelhaar/brewprobe/internal/runner"
)

var containerCmd = &cobra.Command{
	Use:   "container",
	Short: "Run the workflow inside a Linux container",
}

var containerRunCmd = &cobra.Command{
	Use:   "run [workspace]",
	Short: "Build the test image and run the workflow in it",
	Long: `Build the test image from the configured Containerfile and run the
verification workflow inside it. The workspace (default: the configured
workspace) is mounted read-only at /workspace.

PREINSTALL_DEPS=1 caches the formula's dependencies in the image;
PREINSTALL_SKIP_TEXLIVE=1 additionally leaves out the TeX toolchain.
FAST_MODE, FORCE_FULL, INSTALL_TIMEOUT and the preinstall variables are
forwarded into the container when set.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runContainer,
}

var containerCleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove the test container, its image and dangling layers",
	Args:  cobra.NoArgs,
	RunE:  runContainerClean,
}

var containerRuntime string

func init() {
	containerCmd.PersistentFlags().StringVar(&containerRuntime, "runtime", "", "container runtime (podman, docker, auto); default from config")

	containerCmd.AddCommand(containerRunCmd, containerCleanCmd)
	rootCmd.AddCommand(containerCmd)
}

func newContainerSession(cmd *cobra.Command, workspace string) (*container.Session, error) {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return nil, err
	}
	settings, err := cmdCtx.Settings()
	if err != nil {
		return nil, err
	}

	switch containerRuntime {
	case "":
	case "auto":
		name, _ := detect.DetectContainerRuntime()
		settings.Container.Runtime = name
	default:
		settings.Container.Runtime = containerRuntime
	}

	logger := log.DefaultLogger()
	executor := runner.NewExecutor(packageManager, logger)
	executor.Stdout = cmd.OutOrStdout()
	executor.Stderr = cmd.ErrOrStderr()

	s, err := container.NewSession(settings, workspace, executor, logger)
	if err != nil {
		return nil, err
	}
	if err := s.Check(); err != nil {
		return nil, err
	}
	return s, nil
}

func runContainer(cmd *cobra.Command, args []string) error {
	var workspace string
	if len(args) > 0 {
		workspace = args[0]
	}
	s, err := newContainerSession(cmd, workspace)
	if err != nil {
		return err
	}
	out := report.NewPrinter(cmd.OutOrStdout(), !noColor(cmd))
	ctx := cmd.Context()

	// An interrupted run can leave the named container behind.
	guard := orchestrator.NewGuarantor(s.RemoveContainer, 0, s.Logger)
	defer guard.Run(ctx)

	out.Section(fmt.Sprintf("Building %s with %s", s.Image, s.Runtime))
	if err := s.Build(ctx); err != nil {
		return err
	}

	out.Section("Running workflow in container")
	code, err := s.Run(ctx)
	if err != nil {
		return err
	}
	if code == exitcode.Success {
		out.Pass("Container workflow passed")
	} else {
		out.Fail("Container workflow exited with %d (%s)", code, exitcode.GetExitCodeDescription(code))
	}
	return exitcode.WithCode(code)
}

func runContainerClean(cmd *cobra.Command, _ []string) error {
	s, err := newContainerSession(cmd, "")
	if err != nil {
		return err
	}
	out := report.NewPrinter(cmd.OutOrStdout(), !noColor(cmd))

	out.Section("Cleaning up test containers and images")
	if err := s.Clean(cmd.Context()); err != nil {
		out.Warn("Cleanup incomplete: %v", err)
		return err
	}
	out.Pass("Removed %s", s.Image)
	return nil
}

func noColor(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("no-color")
	return v
}
