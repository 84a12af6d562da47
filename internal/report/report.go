// Package report aggregates step outcomes into the run's verdict.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/felixgeelhaar/brewprobe/internal/exitcode"
)

// Status is the result of one attempted step
type Status string

const (
	Passed  Status = "passed"
	Failed  Status = "failed"
	Skipped Status = "skipped"
)

// StepOutcome records one attempted step. Outcomes are appended in run
// order and never removed.
type StepOutcome struct {
	Step     string        `json:"step" yaml:"step"`
	Title    string        `json:"title,omitempty" yaml:"title,omitempty"`
	Status   Status        `json:"status" yaml:"status"`
	Detail   string        `json:"detail,omitempty" yaml:"detail,omitempty"`
	Class    string        `json:"class,omitempty" yaml:"class,omitempty"`
	Duration time.Duration `json:"duration_ns" yaml:"duration"`
}

// CleanupStatus is the best-effort teardown result
type CleanupStatus struct {
	Attempted bool   `json:"attempted" yaml:"attempted"`
	OK        bool   `json:"ok" yaml:"ok"`
	Detail    string `json:"detail,omitempty" yaml:"detail,omitempty"`
}

// Report is the aggregated result of one run
type Report struct {
	RunID         string        `json:"run_id" yaml:"run_id"`
	Suite         string        `json:"suite" yaml:"suite"`
	Mode          string        `json:"mode,omitempty" yaml:"mode,omitempty"`
	Platform      string        `json:"platform,omitempty" yaml:"platform,omitempty"`
	Machine       string        `json:"machine,omitempty" yaml:"machine,omitempty"`
	Formula       string        `json:"formula,omitempty" yaml:"formula,omitempty"`
	FormulaDigest string        `json:"formula_digest,omitempty" yaml:"formula_digest,omitempty"`
	Outcomes      []StepOutcome `json:"outcomes" yaml:"outcomes"`
	Cleanup       CleanupStatus `json:"cleanup" yaml:"cleanup"`
	Interrupted   bool          `json:"interrupted" yaml:"interrupted"`
	ExitCode      int           `json:"exit_code" yaml:"exit_code"`
	StartedAt     time.Time     `json:"started_at" yaml:"started_at"`
	FinishedAt    time.Time     `json:"finished_at" yaml:"finished_at"`
}

// Finalize builds a report whose exit code is 0 iff every recorded outcome
// passed, 1 otherwise, and the interrupt code when the run was cancelled.
func Finalize(outcomes []StepOutcome, interrupted bool) *Report {
	r := &Report{
		Outcomes:    append([]StepOutcome(nil), outcomes...),
		Interrupted: interrupted,
		FinishedAt:  time.Now(),
	}
	switch {
	case interrupted:
		r.ExitCode = exitcode.Interrupted
	case len(r.Failed()) > 0:
		r.ExitCode = exitcode.GeneralError
	default:
		r.ExitCode = exitcode.Success
	}
	return r
}

// Failed lists the names of steps that did not pass, in run order
func (r *Report) Failed() []string {
	var names []string
	for _, o := range r.Outcomes {
		if o.Status != Passed {
			names = append(names, o.Step)
		}
	}
	return names
}

// Passed reports whether the run succeeded
func (r *Report) Passed() bool {
	return r.ExitCode == exitcode.Success
}

// Outcome returns the recorded outcome for step, if any
func (r *Report) Outcome(step string) (StepOutcome, bool) {
	for _, o := range r.Outcomes {
		if o.Step == step {
			return o, true
		}
	}
	return StepOutcome{}, false
}

// Counts tallies outcomes by status
func (r *Report) Counts() map[Status]int {
	counts := map[Status]int{Passed: 0, Failed: 0, Skipped: 0}
	for _, o := range r.Outcomes {
		counts[o.Status]++
	}
	return counts
}

// Duration is the wall time between start and finish
func (r *Report) Duration() time.Duration {
	if r.StartedAt.IsZero() || r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// String renders the report as plain text for report files
func (r *Report) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "run %s suite=%s mode=%s platform=%s\n", r.RunID, r.Suite, r.Mode, r.Platform)
	if r.Formula != "" {
		fmt.Fprintf(&b, "formula %s %s\n", r.Formula, r.FormulaDigest)
	}
	for _, o := range r.Outcomes {
		fmt.Fprintf(&b, "%-8s %-20s %s", o.Status, o.Step, o.Duration.Round(time.Millisecond))
		if o.Detail != "" {
			fmt.Fprintf(&b, "  %s", firstLine(o.Detail))
		}
		b.WriteString("\n")
	}
	if r.Cleanup.Attempted {
		fmt.Fprintf(&b, "cleanup ok=%v %s\n", r.Cleanup.OK, r.Cleanup.Detail)
	}
	if r.Interrupted {
		b.WriteString("interrupted\n")
	}
	fmt.Fprintf(&b, "exit %d\n", r.ExitCode)
	return b.String()
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
