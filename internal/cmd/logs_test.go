package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/felixgeelhaar/brewprobe/internal/trace"
)

func writeTrace(t *testing.T, dir, runID string, modified time.Time) string {
	t.Helper()
	tracer, err := trace.NewLogger(trace.Config{RunID: runID, Dir: dir, Enabled: true})
	if err != nil {
		t.Fatal(err)
	}
	_ = tracer.LogRunStart("workflow", "adaptive", "linux/arm64", []string{"homebrew-setup"})
	_ = tracer.LogStepStart("homebrew-setup", "Testing Homebrew Setup")
	_ = tracer.LogStepComplete("homebrew-setup", "", 1500*time.Millisecond)
	_ = tracer.LogRunComplete(0, nil, 2*time.Second)
	if err := tracer.Close(); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(tracer.Path(), modified, modified); err != nil {
		t.Fatal(err)
	}
	return tracer.Path()
}

func TestGetTraceFiles(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()
	writeTrace(t, dir, "run-1", now.Add(-2*time.Hour))
	writeTrace(t, dir, "run-3", now)
	writeTrace(t, dir, "run-2", now.Add(-time.Hour))

	if err := os.WriteFile(filepath.Join(dir, "other.log"), []byte("log"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "trace_old.json"), []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}

	traces, err := getTraceFiles(dir)
	if err != nil {
		t.Fatalf("getTraceFiles() error = %v", err)
	}

	var ids []string
	for _, tr := range traces {
		ids = append(ids, tr.RunID)
	}
	if strings.Join(ids, ",") != "run-3,run-2,run-1" {
		t.Errorf("traces = %v, want newest first", ids)
	}
}

func TestGetTraceFilesMissingDir(t *testing.T) {
	if _, err := getTraceFiles(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Error("expected error for missing directory")
	}
}

func TestReadTraceSkipsGarbage(t *testing.T) {
	path := writeTrace(t, t.TempDir(), "run-x", time.Now())

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = f.WriteString("not json\n\n")
	f.Close()

	events, err := readTrace(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 4 {
		t.Fatalf("got %d events, want 4", len(events))
	}
	if events[0].Type != trace.EventTypeRunStart || events[0].RunID != "run-x" {
		t.Errorf("first event = %+v", events[0])
	}
}

func TestWriteEvents(t *testing.T) {
	events, err := readTrace(writeTrace(t, t.TempDir(), "run-y", time.Now()))
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	writeEvents(&buf, events)

	out := buf.String()
	for _, want := range []string{"run_start", "step_complete", "homebrew-setup", "(1.5s)"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestFormatFileSize(t *testing.T) {
	tests := []struct {
		size int64
		want string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{2048, "2.00 KB"},
		{3 * 1024 * 1024, "3.00 MB"},
	}
	for _, tt := range tests {
		if got := formatFileSize(tt.size); got != tt.want {
			t.Errorf("formatFileSize(%d) = %q, want %q", tt.size, got, tt.want)
		}
	}
}
