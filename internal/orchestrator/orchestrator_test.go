package orchestrator

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/felixgeelhaar/brewprobe/internal/catalog"
	"github.com/felixgeelhaar/brewprobe/internal/config"
	"github.com/felixgeelhaar/brewprobe/internal/detect"
	"github.com/felixgeelhaar/brewprobe/internal/errors"
	"github.com/felixgeelhaar/brewprobe/internal/exitcode"
	"github.com/felixgeelhaar/brewprobe/internal/log"
	"github.com/felixgeelhaar/brewprobe/internal/mode"
	"github.com/felixgeelhaar/brewprobe/internal/report"
	"github.com/felixgeelhaar/brewprobe/internal/runner"
	"github.com/felixgeelhaar/brewprobe/internal/runner/runnertest"
	"github.com/felixgeelhaar/brewprobe/internal/trace"
)

type fixture struct {
	env   *catalog.Env
	fake  *runnertest.Fake
	out   *bytes.Buffer
	trace *trace.Logger
}

func newFixture(t *testing.T, machine string) *fixture {
	t.Helper()
	workspace := t.TempDir()
	if err := os.MkdirAll(filepath.Join(workspace, "Formula"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(workspace, "Formula", "rxiv-maker.rb"), []byte("class RxivMaker < Formula\nend\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	profile := detect.NewProfile("linux", machine)
	fake := runnertest.New()
	var out bytes.Buffer

	return &fixture{
		env: &catalog.Env{
			Runner:  fake,
			Mode:    mode.Select(profile, false, false),
			Profile: profile,
			Settings: &config.Settings{
				Formula: config.FormulaConfig{Name: "rxiv-maker", Path: "Formula/rxiv-maker.rb", Tap: "henriqueslab/rxiv-maker", Workspace: workspace},
				CLI: config.CLIConfig{
					Binary: "rxiv", SelfCheck: "check-installation", InitCommand: "init", ProjectName: "test_paper",
					BuildCommands: []string{"build", "pdf"}, MainCandidates: []string{"01_MAIN.md"}, ConfigFile: "00_CONFIG.yml",
				},
				Python:         config.PythonConfig{Package: "rxiv-maker", MinVersion: "3.11", VenvDir: filepath.Join(workspace, "venv")},
				InstallTimeout: config.DefaultInstallTimeout,
			},
			Printer:        report.NewPrinter(&out, false),
			Logger:         log.Nop(),
			PackageManager: "brew",
			TempDir:        t.TempDir(),
		},
		fake:  fake,
		out:   &out,
		trace: trace.Disabled("test-run"),
	}
}

// healthy scripts a host where every step of every mode passes
func (f *fixture) healthy(t *testing.T) {
	f.fake.
		Tool("brew", "/home/linuxbrew/.linuxbrew/bin/brew").
		Tool("node", "/usr/bin/node").
		Tool("pdflatex", "/usr/bin/pdflatex").
		On("brew --version", "Homebrew 4.4.0").
		On("brew --repository", t.TempDir()).
		On("brew list rxiv-maker", "/home/linuxbrew/.linuxbrew/Cellar/rxiv-maker/1.4.0/bin/rxiv").
		On("python3 -c", "3.12.4").
		On("rxiv --version", "rxiv, version 1.4.0").
		On("rxiv --help", "Usage: rxiv [OPTIONS] COMMAND").
		Do("python3 -m venv", func(spec runner.CommandSpec) {
			bin := filepath.Join(spec.Argv[len(spec.Argv)-1], "bin")
			_ = os.MkdirAll(bin, 0o755)
			_ = os.WriteFile(filepath.Join(bin, "pip"), nil, 0o755)
			f.fake.Tool("rxiv", filepath.Join(bin, "rxiv"))
		}).
		Do("rxiv init", func(spec runner.CommandSpec) {
			dir := spec.Argv[len(spec.Argv)-1]
			_ = os.MkdirAll(dir, 0o755)
			_ = os.WriteFile(filepath.Join(dir, "01_MAIN.md"), []byte("# x"), 0o644)
			_ = os.WriteFile(filepath.Join(dir, "00_CONFIG.yml"), []byte("title: x"), 0o644)
		})
}

func (f *fixture) orchestrator(suite catalog.Suite) *Orchestrator {
	return &Orchestrator{
		Env:      f.env,
		Suite:    suite,
		Required: []string{"brew"},
		Trace:    f.trace,
		Logger:   log.Nop(),
	}
}

func outcomeIDs(r *report.Report) []string {
	ids := make([]string, len(r.Outcomes))
	for i, o := range r.Outcomes {
		ids[i] = o.Step
	}
	return ids
}

func TestRunAdaptiveOnARM(t *testing.T) {
	f := newFixture(t, "aarch64")
	f.healthy(t)

	r, err := f.orchestrator(catalog.Workflow()).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if r.Mode != string(mode.Adaptive) || r.Platform != "linux/arm64" || r.Machine != "aarch64" {
		t.Errorf("report metadata = %s %s %s", r.Mode, r.Platform, r.Machine)
	}
	if r.ExitCode != exitcode.Success {
		t.Fatalf("ExitCode = %d, failed = %v\n%s", r.ExitCode, r.Failed(), f.out.String())
	}
	if _, ok := r.Outcome(catalog.StepBrewTest); ok {
		t.Error("brew-test must not run in adaptive mode")
	}
	if _, ok := r.Outcome(catalog.StepFormulaInstall); ok {
		t.Error("formula-install must not run in adaptive mode")
	}
	if f.fake.Ran("brew install --build-from-source") {
		t.Error("adaptive run must not build from source")
	}

	functional, _ := r.Outcome(catalog.StepFunctional)
	if functional.Status != report.Passed || functional.Detail != "" {
		t.Errorf("functional = %+v", functional)
	}
	if f.fake.Count("brew uninstall") != 1 {
		t.Errorf("uninstall ran %d times, want 1", f.fake.Count("brew uninstall"))
	}
	if !r.Cleanup.Attempted || !r.Cleanup.OK {
		t.Errorf("cleanup = %+v", r.Cleanup)
	}
	if !strings.Contains(f.out.String(), "✓ All tests passed") {
		t.Errorf("missing success summary:\n%s", f.out.String())
	}
}

func TestRunFullOnX86(t *testing.T) {
	f := newFixture(t, "x86_64")
	f.healthy(t)

	r, err := f.orchestrator(catalog.Workflow()).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	want := []string{
		catalog.StepHomebrewSetup, catalog.StepFormulaTap, catalog.StepFormulaInstall,
		catalog.StepCLISmoke, catalog.StepDependencies, catalog.StepFunctional,
		catalog.StepBrewTest, catalog.StepFormulaSyntax,
	}
	if got := outcomeIDs(r); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("outcomes = %v, want %v", got, want)
	}
	if r.ExitCode != exitcode.Success {
		t.Errorf("ExitCode = %d, failed = %v", r.ExitCode, r.Failed())
	}
	if !f.fake.Ran("brew test rxiv-maker") {
		t.Error("brew test not run in full mode")
	}
}

func TestRunAdaptiveWithoutDocumentToolchain(t *testing.T) {
	f := newFixture(t, "arm64")
	f.healthy(t)
	f.fake.Missing("pdflatex")

	r, err := f.orchestrator(catalog.Workflow()).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if r.ExitCode != exitcode.Success {
		t.Fatalf("ExitCode = %d, failed = %v\n%s", r.ExitCode, r.Failed(), f.out.String())
	}
	functional, _ := r.Outcome(catalog.StepFunctional)
	if functional.Status != report.Passed || functional.Detail != "build skipped: pdflatex not available" {
		t.Errorf("functional = %+v", functional)
	}
	if f.fake.Ran("rxiv build") || f.fake.Ran("rxiv pdf") {
		t.Error("document build must be skipped without pdflatex")
	}
	if _, ok := r.Outcome(catalog.StepBrewTest); ok {
		t.Error("brew-test must not run in adaptive mode")
	}
}

func TestRunFullFailsWithoutNode(t *testing.T) {
	f := newFixture(t, "x86_64")
	f.healthy(t)
	f.fake.Missing("node")

	r, err := f.orchestrator(catalog.Workflow()).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if r.ExitCode != exitcode.GeneralError {
		t.Errorf("ExitCode = %d, want %d", r.ExitCode, exitcode.GeneralError)
	}
	deps, _ := r.Outcome(catalog.StepDependencies)
	if deps.Status != report.Failed || deps.Class != errors.ClassAssertionFailure {
		t.Errorf("dependencies = %+v", deps)
	}
	if !strings.Contains(deps.Detail, "node not found but required in full mode") {
		t.Errorf("dependencies detail = %q", deps.Detail)
	}
	if failed := r.Failed(); len(failed) != 1 || failed[0] != catalog.StepDependencies {
		t.Errorf("failed = %v, want only dependencies", failed)
	}
	if f.fake.Count("brew uninstall") != 1 {
		t.Error("cleanup must still run after a failed step")
	}
}

func TestRunContinuesAfterFailure(t *testing.T) {
	f := newFixture(t, "x86_64")
	f.healthy(t)
	f.fake.Fail("brew install", 1)

	r, err := f.orchestrator(catalog.Workflow()).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if r.ExitCode != exitcode.GeneralError {
		t.Errorf("ExitCode = %d, want 1", r.ExitCode)
	}
	install, _ := r.Outcome(catalog.StepFormulaInstall)
	if install.Status != report.Failed || install.Class != errors.ClassCommandFailure {
		t.Errorf("formula-install = %+v", install)
	}
	if len(r.Outcomes) != 8 {
		t.Errorf("every planned step should be recorded, got %v", outcomeIDs(r))
	}
	if syntax, _ := r.Outcome(catalog.StepFormulaSyntax); syntax.Status != report.Passed {
		t.Errorf("later steps should still run: %+v", syntax)
	}
	if !strings.Contains(f.out.String(), "Failed steps: "+catalog.StepFormulaInstall) {
		t.Errorf("summary should name the failure:\n%s", f.out.String())
	}
	if f.fake.Count("brew uninstall") != 1 {
		t.Error("cleanup must run after failures")
	}
}

func passStep(id string) catalog.Step {
	return catalog.Step{ID: id, Title: id, Body: func(context.Context, *catalog.Env) (string, error) { return "", nil }}
}

func TestRunRecoversPanickingStep(t *testing.T) {
	f := newFixture(t, "x86_64")
	f.fake.Tool("brew", "/usr/local/bin/brew")

	suite := catalog.Suite{Name: "panics", Cleanup: true, Steps: []catalog.Step{
		{ID: "explodes", Title: "Explodes", Body: func(context.Context, *catalog.Env) (string, error) {
			panic("kaboom")
		}},
		passStep("after"),
	}}

	r, err := f.orchestrator(suite).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	o, _ := r.Outcome("explodes")
	if o.Status != report.Failed || !strings.Contains(o.Detail, "kaboom") {
		t.Errorf("panicking step = %+v", o)
	}
	if o, _ := r.Outcome("after"); o.Status != report.Passed {
		t.Error("steps after a panic must still run")
	}
	if r.ExitCode != exitcode.GeneralError {
		t.Errorf("ExitCode = %d", r.ExitCode)
	}
}

func TestRunInterrupted(t *testing.T) {
	f := newFixture(t, "x86_64")
	f.fake.Tool("brew", "/usr/local/bin/brew")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cleanups := 0
	var cleanupErr error
	later := false
	suite := catalog.Suite{Name: "interrupt", Cleanup: true, Steps: []catalog.Step{
		passStep("first"),
		{ID: "long", Title: "Long", Body: func(ctx context.Context, _ *catalog.Env) (string, error) {
			cancel()
			return "", ctx.Err()
		}},
		{ID: "never", Title: "Never", Body: func(context.Context, *catalog.Env) (string, error) {
			later = true
			return "", nil
		}},
	}}

	o := f.orchestrator(suite)
	o.Cleaner = func(ctx context.Context) error {
		cleanups++
		cleanupErr = ctx.Err()
		return nil
	}

	r, err := o.Run(ctx)
	if err != nil {
		t.Fatal(err)
	}

	if r.ExitCode != exitcode.Interrupted || !r.Interrupted {
		t.Errorf("ExitCode = %d, Interrupted = %v", r.ExitCode, r.Interrupted)
	}
	if got := outcomeIDs(r); len(got) != 1 || got[0] != "first" {
		t.Errorf("outcomes = %v, want only the completed step", got)
	}
	if later {
		t.Error("steps after the interrupt must not run")
	}
	if cleanups != 1 {
		t.Errorf("cleanup ran %d times, want 1", cleanups)
	}
	if cleanupErr != nil {
		t.Errorf("cleanup saw cancelled context: %v", cleanupErr)
	}
	if !strings.Contains(f.out.String(), "Interrupted") {
		t.Errorf("summary should mention the interrupt:\n%s", f.out.String())
	}
}

func TestRunZeroSteps(t *testing.T) {
	f := newFixture(t, "x86_64")
	f.fake.Tool("brew", "/usr/local/bin/brew")

	cleanups := 0
	o := f.orchestrator(catalog.Suite{Name: "empty", Cleanup: true})
	o.Cleaner = func(context.Context) error { cleanups++; return nil }

	r, err := o.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if r.ExitCode != exitcode.Success || len(r.Outcomes) != 0 {
		t.Errorf("report = %+v", r)
	}
	if cleanups != 1 {
		t.Errorf("cleanup ran %d times, want 1", cleanups)
	}
}

func TestRunWithoutCleanup(t *testing.T) {
	f := newFixture(t, "x86_64")
	f.fake.Tool("brew", "/usr/local/bin/brew")

	r, err := f.orchestrator(catalog.Local()).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if f.fake.Ran("brew uninstall") || r.Cleanup.Attempted {
		t.Error("suites without cleanup must leave the installation alone")
	}
}

func TestRunCleanupFailureKeepsVerdict(t *testing.T) {
	f := newFixture(t, "x86_64")
	f.fake.Tool("brew", "/usr/local/bin/brew")

	o := f.orchestrator(catalog.Suite{Name: "dirty", Cleanup: true, Steps: []catalog.Step{passStep("only")}})
	o.Cleaner = func(context.Context) error { return fmt.Errorf("still installed") }

	r, err := o.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if r.ExitCode != exitcode.Success {
		t.Errorf("cleanup failure must not change the verdict, ExitCode = %d", r.ExitCode)
	}
	if r.Cleanup.OK || r.Cleanup.Detail != "still installed" {
		t.Errorf("cleanup = %+v", r.Cleanup)
	}
}

func TestRunMissingRequiredTool(t *testing.T) {
	f := newFixture(t, "x86_64")

	cleanups := 0
	o := f.orchestrator(catalog.Workflow())
	o.Cleaner = func(context.Context) error { cleanups++; return nil }

	r, err := o.Run(context.Background())
	if r != nil {
		t.Errorf("no report expected, got %+v", r)
	}
	if !errors.Is(err, errors.ErrCodeEnvUnavailable) {
		t.Fatalf("err = %v, want environment unavailable", err)
	}
	if cleanups != 0 || len(f.fake.Calls) != 0 {
		t.Error("nothing may run when the environment is unusable")
	}
}

func TestRunTwiceIsIndependent(t *testing.T) {
	f := newFixture(t, "aarch64")
	f.healthy(t)

	first, err := f.orchestrator(catalog.Workflow()).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	second, err := f.orchestrator(catalog.Workflow()).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if first.ExitCode != second.ExitCode || strings.Join(outcomeIDs(first), ",") != strings.Join(outcomeIDs(second), ",") {
		t.Errorf("runs differ: %v vs %v", outcomeIDs(first), outcomeIDs(second))
	}
	if f.fake.Count("brew uninstall") != 2 {
		t.Errorf("each run cleans up once, got %d", f.fake.Count("brew uninstall"))
	}
}

func TestRunTraceEvents(t *testing.T) {
	f := newFixture(t, "x86_64")
	f.fake.Tool("brew", "/usr/local/bin/brew")

	suite := catalog.Suite{Name: "traced", Cleanup: true, Steps: []catalog.Step{
		passStep("ok"),
		{ID: "bad", Title: "Bad", Body: func(context.Context, *catalog.Env) (string, error) {
			return "", errors.NewAssertionFailure("nope")
		}},
	}}
	o := f.orchestrator(suite)
	o.Cleaner = func(context.Context) error { return nil }

	r, err := o.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if r.RunID != "test-run" {
		t.Errorf("RunID = %q", r.RunID)
	}

	var types []string
	for _, e := range f.trace.Events() {
		types = append(types, string(e.Type))
	}
	want := "run_start,step_start,step_complete,step_start,step_fail,cleanup,run_complete"
	if got := strings.Join(types, ","); got != want {
		t.Errorf("events = %s, want %s", got, want)
	}
}

func TestRunStepWrapsPanic(t *testing.T) {
	step := catalog.Step{ID: "p", Body: func(context.Context, *catalog.Env) (string, error) {
		panic(stderrors.New("deep"))
	}}
	_, err := runStep(context.Background(), step, &catalog.Env{})
	if err == nil || !strings.Contains(err.Error(), "step p panicked: deep") {
		t.Errorf("runStep() error = %v", err)
	}
}
