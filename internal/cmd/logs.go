package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/brewprobe/internal/errors"
	"github.com/felixgeelhaar/brewprobe/internal/trace"
	"github.com/felixgeelhaar/brewprobe/internal/ux"
)

var (
	logsDir    string
	logsLines  int
	logsFormat string
)

var logsCmd = &cobra.Command{
	Use:   "logs [run-id]",
	Short: "Show the trace of a run",
	Long: `Show the trace events written by 'brewprobe run --trace-dir'.

Without a run ID the most recent trace in the directory is shown.

Examples:
  brewprobe logs --trace-dir out
  brewprobe logs --trace-dir out 3f2c9a1e-...
  brewprobe logs list --trace-dir out --format json
`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogs,
}

var logsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the traces in a directory",
	Args:  cobra.NoArgs,
	RunE:  runLogsList,
}

func init() {
	logsCmd.PersistentFlags().StringVar(&logsDir, "trace-dir", ".", "directory holding trace_<run>.jsonl files")
	logsCmd.Flags().IntVarP(&logsLines, "lines", "n", 0, "show only the last N events (0 = all)")
	logsListCmd.Flags().StringVar(&logsFormat, "format", "text", "output format (text, json, yaml)")

	logsCmd.AddCommand(logsListCmd)
	rootCmd.AddCommand(logsCmd)
}

// TraceFileInfo describes one trace file on disk
type TraceFileInfo struct {
	RunID      string    `json:"run_id" yaml:"run_id"`
	Path       string    `json:"path" yaml:"path"`
	Size       int64     `json:"size" yaml:"size"`
	ModifiedAt time.Time `json:"modified_at" yaml:"modified_at"`
}

func runLogs(cmd *cobra.Command, args []string) error {
	traces, err := getTraceFiles(logsDir)
	if err != nil {
		return err
	}

	var selected *TraceFileInfo
	switch {
	case len(args) == 1:
		for i := range traces {
			if traces[i].RunID == args[0] {
				selected = &traces[i]
				break
			}
		}
		if selected == nil {
			return errors.NewFileNotFoundError(filepath.Join(logsDir, "trace_"+args[0]+".jsonl"))
		}
	case len(traces) > 0:
		selected = &traces[0]
	default:
		fmt.Fprintf(cmd.OutOrStdout(), "No traces found in %s\n", logsDir)
		return nil
	}

	events, err := readTrace(selected.Path)
	if err != nil {
		return err
	}
	if logsLines > 0 && len(events) > logsLines {
		events = events[len(events)-logsLines:]
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Run %s (%s)\n\n", selected.RunID, selected.Path)
	writeEvents(cmd.OutOrStdout(), events)
	return nil
}

func runLogsList(cmd *cobra.Command, _ []string) error {
	traces, err := getTraceFiles(logsDir)
	if err != nil {
		return err
	}

	if logsFormat == "json" || logsFormat == "yaml" {
		formatter, err := ux.NewFormatter(logsFormat, &ux.FormatterOptions{Writer: cmd.OutOrStdout()})
		if err != nil {
			return err
		}
		return formatter.Format(traces)
	}

	out := cmd.OutOrStdout()
	if len(traces) == 0 {
		fmt.Fprintf(out, "No traces found in %s\n", logsDir)
		return nil
	}
	for _, t := range traces {
		fmt.Fprintf(out, "  %s  %s  (%s)\n", t.ModifiedAt.Format("2006-01-02 15:04:05"), t.RunID, formatFileSize(t.Size))
	}
	fmt.Fprintf(out, "\nTotal: %d traces\n", len(traces))
	return nil
}

// getTraceFiles returns trace_*.jsonl files in dir, newest first
func getTraceFiles(dir string) ([]TraceFileInfo, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeFileReadFailed, "failed to read trace directory", err)
	}

	var traces []TraceFileInfo
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, "trace_") || !strings.HasSuffix(name, ".jsonl") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		traces = append(traces, TraceFileInfo{
			RunID:      strings.TrimSuffix(strings.TrimPrefix(name, "trace_"), ".jsonl"),
			Path:       filepath.Join(dir, name),
			Size:       info.Size(),
			ModifiedAt: info.ModTime(),
		})
	}

	sort.Slice(traces, func(i, j int) bool {
		return traces[i].ModifiedAt.After(traces[j].ModifiedAt)
	})
	return traces, nil
}

// readTrace parses a JSONL trace; malformed lines are skipped
func readTrace(path string) ([]*trace.Event, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeFileReadFailed, "failed to open trace", err)
	}
	defer file.Close()

	var events []*trace.Event
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		event, err := trace.FromJSON([]byte(line))
		if err != nil {
			continue
		}
		events = append(events, event)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeFileReadFailed, "failed to read trace", err)
	}
	return events, nil
}

func writeEvents(w io.Writer, events []*trace.Event) {
	for _, e := range events {
		fmt.Fprintf(w, "[%s] %-14s", e.Timestamp.Format("15:04:05"), e.Type)
		if e.StepID != "" {
			fmt.Fprintf(w, " %-18s", e.StepID)
		}
		fmt.Fprintf(w, " %s", e.Message)
		if e.Duration != nil {
			fmt.Fprintf(w, " (%s)", e.Duration.Round(time.Millisecond))
		}
		if e.Error != "" {
			fmt.Fprintf(w, ": %s", e.Error)
		}
		fmt.Fprintln(w)
	}
}

func formatFileSize(size int64) string {
	const (
		KB = 1024
		MB = 1024 * KB
	)

	switch {
	case size >= MB:
		return fmt.Sprintf("%.2f MB", float64(size)/float64(MB))
	case size >= KB:
		return fmt.Sprintf("%.2f KB", float64(size)/float64(KB))
	default:
		return fmt.Sprintf("%d B", size)
	}
}
