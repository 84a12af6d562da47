package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/brewprobe/internal/exitcode"
	"github.com/felixgeelhaar/brewprobe/internal/log"
	"github.com/felixgeelhaar/brewprobe/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "brewprobe",
	Short: "Adaptive verification of a Homebrew formula",
	Long: `brewprobe validates that a Homebrew formula installs and works on the
current host. It picks a fast, adaptive or full verification mode from the
platform and flags, runs each step with failure isolation and always cleans
up what it installed.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setupLogging,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// ExecuteContext runs the root command with a cancellable context
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")
	rootCmd.PersistentFlags().Bool("no-color", false, "disable colored output")
	rootCmd.PersistentFlags().String("config", "", "config file (default ./brewprobe.yaml)")

	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError(err)
	})
}

func setupLogging(cmd *cobra.Command, _ []string) error {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return usageError(err)
	}
	logger := log.New(log.CLIConfig(cmdCtx.LogLevel, cmdCtx.LogFormat, version.Version))
	log.SetDefaultLogger(logger.With("component", "brewprobe"))
	return nil
}

// usageError marks err so that the process exits with the usage code
func usageError(err error) error {
	return fmt.Errorf("%w: %v", exitcode.WithCode(exitcode.UsageError), err)
}
