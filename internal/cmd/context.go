package cmd

import (
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/brewprobe/internal/catalog"
	"github.com/felixgeelhaar/brewprobe/internal/config"
	"github.com/felixgeelhaar/brewprobe/internal/detect"
	"github.com/felixgeelhaar/brewprobe/internal/formula"
	"github.com/felixgeelhaar/brewprobe/internal/log"
	"github.com/felixgeelhaar/brewprobe/internal/mode"
	"github.com/felixgeelhaar/brewprobe/internal/report"
	"github.com/felixgeelhaar/brewprobe/internal/runner"
)

// packageManager is the executable every suite drives
const packageManager = "brew"

// CommandContext holds the persistent flags shared by every command
type CommandContext struct {
	LogLevel   string
	LogFormat  string
	NoColor    bool
	ConfigPath string
}

// NewCommandContext extracts command context from cobra.Command flags.
func NewCommandContext(cmd *cobra.Command) (*CommandContext, error) {
	logLevel, err := cmd.Flags().GetString("log-level")
	if err != nil {
		return nil, err
	}

	logFormat, err := cmd.Flags().GetString("log-format")
	if err != nil {
		return nil, err
	}

	noColor, err := cmd.Flags().GetBool("no-color")
	if err != nil {
		return nil, err
	}

	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	return &CommandContext{
		LogLevel:   logLevel,
		LogFormat:  logFormat,
		NoColor:    noColor,
		ConfigPath: configPath,
	}, nil
}

// Settings loads the configuration once for the command
func (c *CommandContext) Settings() (*config.Settings, error) {
	return config.Load(c.ConfigPath)
}

// Env wires the step environment for the current host: profile, mode,
// executor and the parsed formula.
func (c *CommandContext) Env(cmd *cobra.Command, settings *config.Settings) *catalog.Env {
	logger := log.DefaultLogger()
	profile := detect.ProfileHost()
	cfg := mode.Select(profile, settings.FastMode, settings.ForceFull)

	executor := runner.NewExecutor(packageManager, logger)
	executor.Stdout = cmd.OutOrStdout()
	executor.Stderr = cmd.ErrOrStderr()

	f, err := formula.Load(settings.FormulaFile(), settings.Python.Package)
	if err != nil {
		logger.WithError(err).Warn("formula could not be read; continuing without it", "path", settings.FormulaFile())
		f = nil
	}

	return &catalog.Env{
		Runner:         executor,
		Mode:           cfg,
		Profile:        profile,
		Settings:       settings,
		Formula:        f,
		Printer:        report.NewPrinter(cmd.OutOrStdout(), !c.NoColor),
		Logger:         logger,
		PackageManager: packageManager,
	}
}
