package trace

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/brewprobe/internal/version"
)

// Logger appends trace events to a JSON-lines file
type Logger struct {
	runID   string
	path    string
	file    *os.File
	mu      sync.Mutex
	enabled bool
	events  []*Event
}

// Config contains logger configuration
type Config struct {
	// RunID identifies the run; generated when empty
	RunID string

	// Dir is where trace_<run>.jsonl is written
	Dir string

	// Enabled controls whether events reach disk; they are always kept in memory
	Enabled bool
}

// NewRunID returns a fresh run identifier
func NewRunID() string {
	return uuid.NewString()
}

// NewLogger creates a new trace logger
func NewLogger(config Config) (*Logger, error) {
	if config.RunID == "" {
		config.RunID = NewRunID()
	}

	l := &Logger{runID: config.RunID}
	if !config.Enabled {
		return l, nil
	}

	if err := os.MkdirAll(config.Dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create trace directory: %w", err)
	}

	l.path = filepath.Join(config.Dir, fmt.Sprintf("trace_%s.jsonl", config.RunID))
	file, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("failed to open trace file: %w", err)
	}
	l.file = file
	l.enabled = true

	return l, nil
}

// Disabled returns a logger that only keeps events in memory
func Disabled(runID string) *Logger {
	l, _ := NewLogger(Config{RunID: runID})
	return l
}

// Log records a trace event. Nil loggers ignore events.
func (l *Logger) Log(event *Event) error {
	if l == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.events = append(l.events, event)
	if !l.enabled {
		return nil
	}

	line, err := event.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to serialize event: %w", err)
	}
	if _, err := fmt.Fprintf(l.file, "%s\n", line); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}
	return nil
}

// LogRunStart logs the start of a run with its mode and platform
func (l *Logger) LogRunStart(suite, mode, platform string, steps []string) error {
	return l.Log(NewEvent(EventTypeRunStart, l.RunID(), "Run started").
		WithData("suite", suite).
		WithData("mode", mode).
		WithData("platform", platform).
		WithData("steps", steps).
		WithData("agent", version.GetInfo().UserAgent()))
}

// LogRunComplete logs the final verdict
func (l *Logger) LogRunComplete(exitCode int, failed []string, duration time.Duration) error {
	return l.Log(NewEvent(EventTypeRunComplete, l.RunID(), "Run completed").
		WithData("exit_code", exitCode).
		WithData("failed", failed).
		WithDuration(duration))
}

// LogStepStart logs a step start event
func (l *Logger) LogStepStart(stepID, title string) error {
	return l.Log(NewEvent(EventTypeStepStart, l.RunID(), fmt.Sprintf("Step started: %s", title)).
		WithStepID(stepID))
}

// LogStepComplete logs a step that passed
func (l *Logger) LogStepComplete(stepID, note string, duration time.Duration) error {
	event := NewEvent(EventTypeStepComplete, l.RunID(), fmt.Sprintf("Step completed: %s", stepID)).
		WithStepID(stepID).
		WithDuration(duration)
	if note != "" {
		event.WithData("note", note)
	}
	return l.Log(event)
}

// LogStepFail logs a step failure event
func (l *Logger) LogStepFail(stepID, class string, err error, duration time.Duration) error {
	return l.Log(NewEvent(EventTypeStepFail, l.RunID(), fmt.Sprintf("Step failed: %s", stepID)).
		WithStepID(stepID).
		WithData("class", class).
		WithError(err).
		WithDuration(duration))
}

// LogInterrupt logs an operator cancellation during stepID
func (l *Logger) LogInterrupt(stepID string) error {
	return l.Log(NewEvent(EventTypeInterrupt, l.RunID(), "Run interrupted").WithStepID(stepID))
}

// LogCleanup logs the teardown result
func (l *Logger) LogCleanup(err error, duration time.Duration) error {
	return l.Log(NewEvent(EventTypeCleanup, l.RunID(), "Cleanup finished").
		WithError(err).
		WithDuration(duration))
}

// LogError logs an error event
func (l *Logger) LogError(message string, err error) error {
	return l.Log(NewEvent(EventTypeError, l.RunID(), message).WithError(err))
}

// Close syncs and closes the trace file
func (l *Logger) Close() error {
	if l == nil || !l.enabled {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.file.Sync(); err != nil {
		return err
	}
	return l.file.Close()
}

// Path returns the trace file path, or "" when disabled
func (l *Logger) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// RunID returns the run ID
func (l *Logger) RunID() string {
	if l == nil {
		return ""
	}
	return l.runID
}

// Events returns all logged events (from memory)
func (l *Logger) Events() []*Event {
	if l == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	events := make([]*Event, len(l.events))
	copy(events, l.events)
	return events
}
