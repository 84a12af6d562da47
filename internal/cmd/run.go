package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/brewprobe/internal/catalog"
	"github.com/felixgeelhaar/brewprobe/internal/config"
	"github.com/felixgeelhaar/brewprobe/internal/exitcode"
	"github.com/felixgeelhaar/brewprobe/internal/log"
	"github.com/felixgeelhaar/brewprobe/internal/orchestrator"
	"github.com/felixgeelhaar/brewprobe/internal/trace"
	"github.com/felixgeelhaar/brewprobe/internal/ux"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the adaptive verification workflow",
	Long: `Run the verification workflow for the configured formula.

The mode is chosen once per run:
  fast      FAST_MODE=1 or --fast: setup, tap and formula syntax only
  full      FORCE_FULL=1 or --force-full, or any non-ARM host
  adaptive  ARM hosts: lightweight install, heavy dependencies tolerated

Examples:
  # Let the platform decide
  brewprobe run

  # Quick formula check
  brewprobe run --fast

  # Write a JSON report and a trace next to it
  brewprobe run --report-file out/report.json --trace-dir out
`,
	Args: cobra.NoArgs,
	RunE: runWorkflow,
}

var (
	runFast         bool
	runForceFull    bool
	runReportFile   string
	runReportFormat string
	runTraceDir     string
)

func init() {
	runCmd.Flags().BoolVar(&runFast, "fast", false, "fast mode (same as FAST_MODE=1)")
	runCmd.Flags().BoolVar(&runForceFull, "force-full", false, "full mode even on ARM (same as FORCE_FULL=1)")
	addReportFlags(runCmd)

	rootCmd.AddCommand(runCmd)
}

func addReportFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&runReportFile, "report-file", "", "write the run report to this file")
	cmd.Flags().StringVar(&runReportFormat, "report-format", "", "report file format (text, json, yaml); default from extension")
	cmd.Flags().StringVar(&runTraceDir, "trace-dir", "", "write a JSONL trace of the run into this directory")
}

func runWorkflow(cmd *cobra.Command, _ []string) error {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	settings, err := cmdCtx.Settings()
	if err != nil {
		return err
	}
	settings.FastMode = settings.FastMode || runFast
	settings.ForceFull = settings.ForceFull || runForceFull

	return runSuite(cmd, cmdCtx, settings, catalog.Workflow())
}

// runSuite executes suite through the orchestrator and turns its verdict into an exit code
func runSuite(cmd *cobra.Command, cmdCtx *CommandContext, settings *config.Settings, suite catalog.Suite) error {
	logger := log.DefaultLogger()
	env := cmdCtx.Env(cmd, settings)

	tracer, err := trace.NewLogger(trace.Config{Dir: runTraceDir, Enabled: runTraceDir != ""})
	if err != nil {
		return err
	}
	defer tracer.Close()

	o := &orchestrator.Orchestrator{
		Env:      env,
		Suite:    suite,
		Required: []string{env.PackageManager},
		Trace:    tracer,
		Logger:   logger,
	}

	r, err := o.Run(cmd.Context())
	if err != nil {
		return suiteError(suite, err)
	}

	if runReportFile != "" {
		format := runReportFormat
		if format == "" {
			format = ux.FormatFromPath(runReportFile, "json")
		}
		if err := ux.WriteFile(runReportFile, format, r); err != nil {
			logger.With("path", runReportFile).LogError("report not written", err)
			return suiteError(suite, err)
		}
		logger.Info("report written", "path", runReportFile, "format", format)
	}
	if path := tracer.Path(); path != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "Trace: %s\n", path)
	}

	return exitcode.WithCode(r.ExitCode)
}

// suiteError adds the suite name and a recovery hint to a non-verdict failure
func suiteError(suite catalog.Suite, err error) error {
	return ux.FormatError(err, "running "+suite.Name)
}
