package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/felixgeelhaar/brewprobe/internal/runner"
)

// Suite is a named step sequence, optionally followed by Teardown
type Suite struct {
	Name    string
	Steps   []Step
	Cleanup bool
}

// Workflow is the adaptive verification run
func Workflow() Suite {
	return Suite{Name: "workflow", Steps: Default(), Cleanup: true}
}

// Validate installs from source, then audits and style-checks the formula
func Validate() Suite {
	return Suite{
		Name: "validate",
		Steps: []Step{
			{ID: "install-from-source", Title: "Installing Formula From Source", Body: installOnly},
			{ID: StepFormulaSyntax, Title: "Validating Formula Syntax & Style", Body: formulaSyntax},
		},
		Cleanup: true,
	}
}

// InstallTest installs from source and exercises the installed CLI
func InstallTest() Suite {
	return Suite{
		Name: "install-test",
		Steps: []Step{
			{ID: "install-from-source", Title: "Installing Formula From Source", Body: installOnly},
			{ID: StepBrewTest, Title: "Running Homebrew Formula Test", Body: brewTest},
			{ID: "cli-version", Title: "Checking CLI Version", Body: cliVersion},
			{ID: "cli-self-check", Title: "Running CLI Self-Check", Body: cliSelfCheck},
		},
		Cleanup: true,
	}
}

// Local checks an existing installation without touching it
func Local() Suite {
	return Suite{
		Name: "local",
		Steps: []Step{
			{ID: StepBrewTest, Title: "Running Homebrew Formula Test", Body: brewTest},
			{ID: "cli-version", Title: "Checking CLI Version", Body: cliVersion},
			{ID: "cli-help", Title: "Checking CLI Help", Body: cliHelp},
		},
	}
}

// MacOS is the native macOS validation: sync the tap, install, audit, smoke-test.
// The package manager's own test is skipped because its sandbox kills heavy runtimes.
func MacOS() Suite {
	return Suite{
		Name: "macos",
		Steps: []Step{
			{ID: StepFormulaTap, Title: "Synchronizing Formula Into Tap", Body: formulaTap},
			{ID: "install-from-source", Title: "Installing Formula From Source", Body: installOnly},
			{ID: StepFormulaSyntax, Title: "Validating Formula Syntax & Style", Body: formulaSyntax},
			{ID: "cli-version", Title: "Checking CLI Version", Body: cliVersion},
			{ID: "cli-help", Title: "Checking CLI Help", Body: cliHelp},
			{ID: "cli-self-check", Title: "Running CLI Self-Check", Body: cliSelfCheck},
		},
		Cleanup: true,
	}
}

// Bench times installation and CLI responsiveness
func Bench() Suite {
	return Suite{
		Name: "bench",
		Steps: []Step{
			{ID: "install-from-source", Title: "Timing Installation", Body: timed("install", installOnly)},
			{ID: "cli-version", Title: "Timing CLI Version", Body: timed("version", cliVersion)},
			{ID: "cli-help", Title: "Timing CLI Help", Body: timed("help", cliHelp)},
			{ID: "bench-summary", Title: "Performance Summary", Body: benchSummary},
		},
		Cleanup: true,
	}
}

func installOnly(ctx context.Context, env *Env) (string, error) {
	spec := runner.Command(env.Settings.InstallTimeout, env.brew("install", "--build-from-source", env.formulaArg())...)
	if _, err := env.Runner.Execute(ctx, spec); err != nil {
		return "", err
	}
	env.out().Pass("Formula installed from source")
	return "", nil
}

func cliVersion(ctx context.Context, env *Env) (string, error) {
	if _, err := env.Runner.Execute(ctx, runner.Command(cliTimeout, env.cli("--version")...)); err != nil {
		return "", err
	}
	return "", nil
}

func cliHelp(ctx context.Context, env *Env) (string, error) {
	if _, err := env.Runner.Execute(ctx, runner.Command(cliTimeout, env.cli("--help")...)); err != nil {
		return "", err
	}
	return "", nil
}

func cliSelfCheck(ctx context.Context, env *Env) (string, error) {
	check := env.Settings.CLI.SelfCheck
	if check == "" {
		return "no self-check configured", nil
	}
	if _, err := env.Runner.Execute(ctx, runner.Command(selfCheckTimeout, env.cli(check)...)); err != nil {
		return "", err
	}
	return "", nil
}

func timed(label string, body Body) Body {
	return func(ctx context.Context, env *Env) (string, error) {
		start := time.Now()
		note, err := body(ctx, env)
		if err != nil {
			return note, err
		}
		elapsed := time.Since(start)
		env.record(label, elapsed)
		env.out().Info("%s completed in %.2f seconds", label, elapsed.Seconds())
		return fmt.Sprintf("%.2fs", elapsed.Seconds()), nil
	}
}

func benchSummary(_ context.Context, env *Env) (string, error) {
	var responsiveness time.Duration
	for _, t := range env.timings {
		env.out().Info("%-10s %.2fs", t.Label, t.Elapsed.Seconds())
		if t.Label != "install" && t.Elapsed > responsiveness {
			responsiveness = t.Elapsed
		}
	}
	env.out().Info("CLI responsiveness: %.2fs", responsiveness.Seconds())
	return fmt.Sprintf("CLI responsiveness %.2fs", responsiveness.Seconds()), nil
}
