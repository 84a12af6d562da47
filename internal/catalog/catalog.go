// Package catalog declares the verification steps and which modes run them.
package catalog

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/felixgeelhaar/brewprobe/internal/config"
	"github.com/felixgeelhaar/brewprobe/internal/detect"
	"github.com/felixgeelhaar/brewprobe/internal/formula"
	"github.com/felixgeelhaar/brewprobe/internal/log"
	"github.com/felixgeelhaar/brewprobe/internal/mode"
	"github.com/felixgeelhaar/brewprobe/internal/report"
	"github.com/felixgeelhaar/brewprobe/internal/runner"
)

// Step IDs, in the order the default workflow runs them
const (
	StepHomebrewSetup   = "homebrew-setup"
	StepFormulaTap      = "formula-tap"
	StepFormulaInstall  = "formula-install"
	StepAdaptiveInstall = "adaptive-install"
	StepCLISmoke        = "cli-smoke"
	StepDependencies    = "dependencies"
	StepFunctional      = "functional"
	StepBrewTest        = "brew-test"
	StepFormulaSyntax   = "formula-syntax"
)

// Body performs a step. A non-empty note on success explains a degraded no-op.
type Body func(ctx context.Context, env *Env) (note string, err error)

// Step is one named unit of verification work
type Step struct {
	ID    string
	Title string
	// Modes lists the modes the step runs in; empty means every mode.
	Modes []mode.Mode
	Body  Body
}

// Applies reports whether the step runs under cfg
func (s Step) Applies(cfg mode.Config) bool {
	return len(s.Modes) == 0 || cfg.Is(s.Modes...)
}

// Env is everything a step body may touch
type Env struct {
	Runner         runner.Runner
	Mode           mode.Config
	Profile        detect.Profile
	Settings       *config.Settings
	Formula        *formula.Formula
	Printer        *report.Printer
	Logger         *log.Logger
	PackageManager string
	// TempDir is the parent for scratch directories; empty uses the OS default.
	TempDir string

	timings []Timing
}

// Timing is one measured command, collected by the bench suite
type Timing struct {
	Label   string
	Elapsed time.Duration
}

var discardPrinter = report.NewPrinter(io.Discard, false)

func (e *Env) out() *report.Printer {
	if e.Printer == nil {
		return discardPrinter
	}
	return e.Printer
}

func (e *Env) log() *log.Logger {
	return log.OrDefault(e.Logger)
}

func (e *Env) pm() string {
	if e.PackageManager == "" {
		return "brew"
	}
	return e.PackageManager
}

// formulaArg is the formula path in the form the package manager treats as a file
func (e *Env) formulaArg() string {
	p := e.Settings.FormulaFile()
	if filepath.IsAbs(p) || strings.HasPrefix(p, "."+string(filepath.Separator)) {
		return p
	}
	return "." + string(filepath.Separator) + p
}

func (e *Env) formulaAbs() (string, error) {
	return filepath.Abs(e.Settings.FormulaFile())
}

func (e *Env) cli(args ...string) []string {
	return append([]string{e.Settings.CLI.Binary}, args...)
}

func (e *Env) brew(args ...string) []string {
	return append([]string{e.pm()}, args...)
}

func (e *Env) mkTemp(pattern string) (string, error) {
	return os.MkdirTemp(e.TempDir, pattern)
}

// Timings returns the measurements recorded so far
func (e *Env) Timings() []Timing {
	return append([]Timing(nil), e.timings...)
}

func (e *Env) record(label string, elapsed time.Duration) {
	e.timings = append(e.timings, Timing{Label: label, Elapsed: elapsed})
}

var (
	allModes     = []mode.Mode{mode.Fast, mode.Adaptive, mode.Full}
	heavyModes   = []mode.Mode{mode.Adaptive, mode.Full}
	fullOnly     = []mode.Mode{mode.Full}
	adaptiveOnly = []mode.Mode{mode.Adaptive}
)

// Default returns the adaptive workflow, in its fixed order
func Default() []Step {
	return []Step{
		{ID: StepHomebrewSetup, Title: "Testing Homebrew Setup", Modes: allModes, Body: homebrewSetup},
		{ID: StepFormulaTap, Title: "Ensuring Formula Tap", Modes: allModes, Body: formulaTap},
		{ID: StepFormulaInstall, Title: "Testing Formula Installation", Modes: fullOnly, Body: formulaInstall},
		{ID: StepAdaptiveInstall, Title: "Adaptive Lightweight Installation", Modes: adaptiveOnly, Body: adaptiveInstall},
		{ID: StepCLISmoke, Title: "Testing CLI", Modes: heavyModes, Body: cliSmoke},
		{ID: StepDependencies, Title: "Testing Dependencies", Modes: heavyModes, Body: dependencies},
		{ID: StepFunctional, Title: "Testing Basic Functionality", Modes: heavyModes, Body: functional},
		{ID: StepBrewTest, Title: "Running Homebrew Formula Test", Modes: fullOnly, Body: brewTest},
		{ID: StepFormulaSyntax, Title: "Testing Formula Syntax & Style", Modes: allModes, Body: formulaSyntax},
	}
}

// Plan keeps the steps that apply under cfg, preserving order
func Plan(steps []Step, cfg mode.Config) []Step {
	var planned []Step
	for _, s := range steps {
		if s.Applies(cfg) {
			planned = append(planned, s)
		}
	}
	return planned
}

// IDs returns the step IDs in order
func IDs(steps []Step) []string {
	ids := make([]string, len(steps))
	for i, s := range steps {
		ids[i] = s.ID
	}
	return ids
}
