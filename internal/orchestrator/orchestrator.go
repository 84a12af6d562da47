// Package orchestrator runs a step sequence with failure isolation and
// guaranteed cleanup.
package orchestrator

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"time"

	"github.com/felixgeelhaar/brewprobe/internal/catalog"
	"github.com/felixgeelhaar/brewprobe/internal/errors"
	"github.com/felixgeelhaar/brewprobe/internal/log"
	"github.com/felixgeelhaar/brewprobe/internal/report"
	"github.com/felixgeelhaar/brewprobe/internal/trace"
)

// Orchestrator drives one suite against one environment
type Orchestrator struct {
	Env   *catalog.Env
	Suite catalog.Suite
	// Required tools are resolved before any step runs.
	Required []string
	// Cleaner overrides the default uninstall teardown.
	Cleaner        Cleaner
	CleanupTimeout time.Duration
	Trace          *trace.Logger
	Logger         *log.Logger
}

// Run executes every step that applies to the environment's mode, in order.
// A step failure is recorded and the sequence continues. Cancellation stops
// the sequence, leaves the interrupted step unrecorded and still cleans up.
// Missing required tools return EnvironmentUnavailable before anything runs.
func (o *Orchestrator) Run(ctx context.Context) (*report.Report, error) {
	logger := log.OrDefault(o.Logger)
	env := o.Env
	out := env.Printer
	if out == nil {
		out = report.NewPrinter(io.Discard, false)
	}

	if missing := o.preflight(); len(missing) > 0 {
		err := errors.NewEnvironmentUnavailable(missing...)
		_ = o.Trace.LogError("preflight failed", err)
		return nil, err
	}

	steps := catalog.Plan(o.Suite.Steps, env.Mode)
	started := time.Now()
	runID := o.Trace.RunID()
	if runID == "" {
		runID = trace.NewRunID()
	}

	logger.Info("starting run",
		"run_id", runID, "suite", o.Suite.Name, "mode", string(env.Mode.Mode),
		"platform", env.Profile.String(), "steps", catalog.IDs(steps))
	_ = o.Trace.LogRunStart(o.Suite.Name, string(env.Mode.Mode), env.Profile.String(), catalog.IDs(steps))

	var guarantor *Guarantor
	if o.Suite.Cleanup {
		guarantor = NewGuarantor(o.cleaner(), o.CleanupTimeout, logger)
		// Backstop for a panic escaping the loop; the normal path runs it below.
		defer guarantor.Run(ctx)
	}

	var outcomes []report.StepOutcome
	interrupted := false

	for _, step := range steps {
		if ctx.Err() != nil {
			interrupted = true
			break
		}

		out.Section(step.Title)
		_ = o.Trace.LogStepStart(step.ID, step.Title)

		start := time.Now()
		note, err := runStep(ctx, step, env)
		elapsed := time.Since(start)

		if err != nil && (stderrors.Is(err, context.Canceled) || ctx.Err() != nil) {
			interrupted = true
			out.Warn("%s interrupted", step.ID)
			logger.Warn("run interrupted", "step", step.ID)
			_ = o.Trace.LogInterrupt(step.ID)
			break
		}

		outcome := report.StepOutcome{Step: step.ID, Title: step.Title, Duration: elapsed}
		if err != nil {
			outcome.Status = report.Failed
			outcome.Detail = err.Error()
			outcome.Class = errors.ClassOf(err)
			logger.WithError(err).Warn("step failed", "step", step.ID)
			_ = o.Trace.LogStepFail(step.ID, outcome.Class, err, elapsed)
		} else {
			outcome.Status = report.Passed
			outcome.Detail = note
			_ = o.Trace.LogStepComplete(step.ID, note, elapsed)
		}
		outcomes = append(outcomes, outcome)
		out.Outcome(outcome)
	}

	var cleanup report.CleanupStatus
	if guarantor != nil {
		out.Section("Cleaning Up")
		cleanStart := time.Now()
		cleanup = guarantor.Run(ctx)
		var cleanErr error
		if !cleanup.OK {
			cleanErr = stderrors.New(cleanup.Detail)
		}
		_ = o.Trace.LogCleanup(cleanErr, time.Since(cleanStart))
	}

	r := report.Finalize(outcomes, interrupted)
	r.RunID = runID
	r.Suite = o.Suite.Name
	r.Mode = string(env.Mode.Mode)
	r.Platform = env.Profile.String()
	r.Machine = env.Profile.Machine
	r.Cleanup = cleanup
	r.StartedAt = started
	if env.Settings != nil {
		r.Formula = env.Settings.Formula.Name
	}
	if env.Formula != nil {
		r.FormulaDigest = env.Formula.Digest
	}

	out.Summary(r)
	logger.Info("run finished", "run_id", runID, "exit_code", r.ExitCode, "failed", r.Failed())
	_ = o.Trace.LogRunComplete(r.ExitCode, r.Failed(), r.Duration())

	return r, nil
}

func (o *Orchestrator) preflight() []string {
	var missing []string
	for _, tool := range o.Required {
		if _, err := o.Env.Runner.LookPath(tool); err != nil {
			missing = append(missing, tool)
		}
	}
	return missing
}

func (o *Orchestrator) cleaner() Cleaner {
	if o.Cleaner != nil {
		return o.Cleaner
	}
	return func(ctx context.Context) error {
		return catalog.Teardown(ctx, o.Env)
	}
}

// runStep converts a panicking body into an error
func runStep(ctx context.Context, step catalog.Step, env *catalog.Env) (note string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("step %s panicked: %v", step.ID, r)
		}
	}()
	return step.Body(ctx, env)
}
