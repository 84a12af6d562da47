package trace

import (
	"bufio"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

// TestNewLogger tests logger creation
func TestNewLogger(t *testing.T) {
	tmpDir := t.TempDir()

	logger, err := NewLogger(Config{RunID: "run-1", Dir: tmpDir, Enabled: true})
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Close()

	if logger.RunID() != "run-1" {
		t.Errorf("Expected run ID 'run-1', got '%s'", logger.RunID())
	}

	if _, err := os.Stat(logger.Path()); os.IsNotExist(err) {
		t.Errorf("Trace file not created at %s", logger.Path())
	}
	if !strings.HasSuffix(logger.Path(), "trace_run-1.jsonl") {
		t.Errorf("unexpected trace path %s", logger.Path())
	}
}

// TestNewLoggerDisabled tests disabled logger
func TestNewLoggerDisabled(t *testing.T) {
	logger := Disabled("")

	if logger.Path() != "" {
		t.Error("Disabled logger should not have a trace path")
	}
	if _, err := uuid.Parse(logger.RunID()); err != nil {
		t.Errorf("generated run ID %q is not a UUID: %v", logger.RunID(), err)
	}

	if err := logger.LogStepStart("homebrew-setup", "Testing Homebrew Setup"); err != nil {
		t.Fatalf("Log() error = %v", err)
	}
	if len(logger.Events()) != 1 {
		t.Error("disabled logger should still keep events in memory")
	}
	if err := logger.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestNilLogger(t *testing.T) {
	var logger *Logger
	if err := logger.LogInterrupt("functional"); err != nil {
		t.Errorf("nil logger Log() = %v", err)
	}
	if logger.Events() != nil || logger.RunID() != "" || logger.Close() != nil {
		t.Error("nil logger should be inert")
	}
}

// TestRunLifecycle writes a full run and reads it back line by line
func TestRunLifecycle(t *testing.T) {
	logger, err := NewLogger(Config{RunID: "run-2", Dir: t.TempDir(), Enabled: true})
	if err != nil {
		t.Fatal(err)
	}

	steps := []string{"homebrew-setup", "formula-syntax"}
	mustLog(t, logger.LogRunStart("workflow", "fast", "linux/arm64", steps))
	mustLog(t, logger.LogStepStart("homebrew-setup", "Testing Homebrew Setup"))
	mustLog(t, logger.LogStepComplete("homebrew-setup", "", time.Second))
	mustLog(t, logger.LogStepStart("formula-syntax", "Testing Formula Syntax & Style"))
	mustLog(t, logger.LogStepFail("formula-syntax", "CommandFailure", errors.New("audit failed"), 2*time.Second))
	mustLog(t, logger.LogCleanup(nil, time.Second))
	mustLog(t, logger.LogRunComplete(1, []string{"formula-syntax"}, 4*time.Second))

	if err := logger.Close(); err != nil {
		t.Fatal(err)
	}

	f, err := os.Open(logger.Path())
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	var types []EventType
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		event, err := FromJSON(scanner.Bytes())
		if err != nil {
			t.Fatalf("line %q is not an event: %v", scanner.Text(), err)
		}
		if event.RunID != "run-2" {
			t.Errorf("RunID = %q", event.RunID)
		}
		types = append(types, event.Type)

		if event.Type == EventTypeRunStart {
			agent, _ := event.Data["agent"].(string)
			if !strings.HasPrefix(agent, "brewprobe/") {
				t.Errorf("run_start agent = %q", agent)
			}
		}

		if event.Type == EventTypeStepFail {
			if event.Level != "error" || event.Error != "audit failed" || event.Data["class"] != "CommandFailure" {
				t.Errorf("step_fail event = %+v", event)
			}
		}
	}

	want := []EventType{
		EventTypeRunStart, EventTypeStepStart, EventTypeStepComplete,
		EventTypeStepStart, EventTypeStepFail, EventTypeCleanup, EventTypeRunComplete,
	}
	if len(types) != len(want) {
		t.Fatalf("got %d events, want %d: %v", len(types), len(want), types)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Errorf("event %d = %s, want %s", i, types[i], want[i])
		}
	}
}

func TestEventIDsUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := NewEvent(EventTypeStepStart, "run", "x").ID
		if seen[id] {
			t.Fatalf("duplicate event ID %s", id)
		}
		seen[id] = true
	}
}

func TestInferLevel(t *testing.T) {
	tests := map[EventType]string{
		EventTypeStepFail:     "error",
		EventTypeError:        "error",
		EventTypeInterrupt:    "warning",
		EventTypeStepComplete: "info",
		EventTypeCleanup:      "info",
	}
	for eventType, want := range tests {
		if got := inferLevel(eventType); got != want {
			t.Errorf("inferLevel(%s) = %s, want %s", eventType, got, want)
		}
	}
}

func TestWithErrorNil(t *testing.T) {
	event := NewEvent(EventTypeCleanup, "run", "Cleanup finished").WithError(nil)
	if event.Error != "" || event.Level != "info" {
		t.Errorf("nil error should not change event: %+v", event)
	}
}

func mustLog(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("Log() error = %v", err)
	}
}
