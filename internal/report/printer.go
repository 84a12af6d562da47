package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// Styles holds the console styles for report output
type Styles struct {
	Header  lipgloss.Style
	Pass    lipgloss.Style
	Fail    lipgloss.Style
	Warn    lipgloss.Style
	Muted   lipgloss.Style
	Summary lipgloss.Style
}

// NewStyles returns colored styles, or plain ones when color is false
func NewStyles(color bool) Styles {
	if !color {
		plain := lipgloss.NewStyle()
		return Styles{Header: plain, Pass: plain, Fail: plain, Warn: plain, Muted: plain, Summary: plain}
	}
	return Styles{
		Header:  lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true),
		Pass:    lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
		Fail:    lipgloss.NewStyle().Foreground(lipgloss.Color("1")),
		Warn:    lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
		Muted:   lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
		Summary: lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true),
	}
}

// Printer writes the human-readable report to the operator console
type Printer struct {
	w      io.Writer
	styles Styles
}

// NewPrinter creates a Printer writing to w
func NewPrinter(w io.Writer, color bool) *Printer {
	return &Printer{w: w, styles: NewStyles(color)}
}

// Writer returns the underlying writer
func (p *Printer) Writer() io.Writer {
	return p.w
}

// Section prints a "=== title ===" header
func (p *Printer) Section(title string) {
	fmt.Fprintf(p.w, "\n%s\n", p.styles.Header.Render("=== "+title+" ==="))
}

// Pass prints a ✓ line
func (p *Printer) Pass(format string, args ...any) {
	fmt.Fprintf(p.w, "%s %s\n", p.styles.Pass.Render("✓"), fmt.Sprintf(format, args...))
}

// Fail prints a ✗ line
func (p *Printer) Fail(format string, args ...any) {
	fmt.Fprintf(p.w, "%s %s\n", p.styles.Fail.Render("✗"), fmt.Sprintf(format, args...))
}

// Warn prints a ! line for tolerated problems
func (p *Printer) Warn(format string, args ...any) {
	fmt.Fprintf(p.w, "%s %s\n", p.styles.Warn.Render("!"), fmt.Sprintf(format, args...))
}

// Info prints an unmarked line
func (p *Printer) Info(format string, args ...any) {
	fmt.Fprintf(p.w, "%s\n", fmt.Sprintf(format, args...))
}

// Outcome prints the verdict line for a finished step
func (p *Printer) Outcome(o StepOutcome) {
	label := o.Title
	if label == "" {
		label = o.Step
	}
	elapsed := p.styles.Muted.Render(fmt.Sprintf("(%s)", o.Duration.Round(time.Millisecond)))

	switch o.Status {
	case Passed:
		if o.Detail != "" {
			p.Pass("%s passed: %s %s", label, o.Detail, elapsed)
			return
		}
		p.Pass("%s passed %s", label, elapsed)
	case Skipped:
		p.Warn("%s skipped: %s", label, o.Detail)
	default:
		p.Fail("%s failed [%s] %s", label, o.Class, elapsed)
		if o.Detail != "" {
			for _, line := range strings.Split(o.Detail, "\n") {
				fmt.Fprintf(p.w, "    %s\n", line)
			}
		}
	}
}

// Summary prints the final tally listing failed steps by name
func (p *Printer) Summary(r *Report) {
	counts := r.Counts()

	p.Section("Summary")
	if r.Mode != "" {
		p.Info("Mode: %s  Platform: %s", r.Mode, r.Platform)
	}
	p.Info("%s passed, %s failed, %d skipped in %s",
		p.styles.Pass.Render(fmt.Sprintf("%d", counts[Passed])),
		p.styles.Fail.Render(fmt.Sprintf("%d", counts[Failed])),
		counts[Skipped],
		r.Duration().Round(time.Second))

	if r.Cleanup.Attempted && !r.Cleanup.OK {
		p.Warn("cleanup did not complete: %s", r.Cleanup.Detail)
	}

	failed := r.Failed()
	switch {
	case r.Interrupted:
		p.Fail("Interrupted by operator")
		if len(failed) > 0 {
			p.Info("Failed before interrupt: %s", strings.Join(failed, ", "))
		}
	case len(failed) > 0:
		p.Fail("Failed steps: %s", strings.Join(failed, ", "))
	default:
		fmt.Fprintln(p.w, p.styles.Summary.Render("✓ All tests passed"))
	}
}
