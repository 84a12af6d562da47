package log

import (
	"io"
	"os"
)

// Format represents the output format for logs
type Format int

const (
	// FormatJSON outputs logs in JSON format
	FormatJSON Format = iota
	// FormatText outputs logs in human-readable text format
	FormatText
)

// String returns the string representation of the format
func (f Format) String() string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatText:
		return "text"
	default:
		return "text"
	}
}

// ParseFormat parses a string into a Format
func ParseFormat(s string) Format {
	switch s {
	case "json", "JSON":
		return FormatJSON
	default:
		return FormatText
	}
}

// Output represents where logs should be written
type Output struct {
	writer io.Writer
}

// Writer returns the underlying io.Writer
func (o Output) Writer() io.Writer {
	return o.writer
}

// NewOutput creates an Output from an io.Writer
func NewOutput(w io.Writer) Output {
	return Output{writer: w}
}

// OutputStderr creates an Output that writes to stderr
func OutputStderr() Output {
	return Output{writer: os.Stderr}
}

// Config holds configuration for the logger
type Config struct {
	// Level is the minimum log level to output
	Level Level
	// Format is the output format (JSON or Text)
	Format Format
	// Output is where logs should be written.
	// Stdout belongs to the run report, so logs default to stderr.
	Output Output
	// ServiceName is attached to every entry
	ServiceName string
	// ServiceVersion is attached to every entry
	ServiceVersion string
}

// DefaultConfig returns a sensible default configuration:
// INFO level, text format, stderr.
func DefaultConfig() Config {
	return Config{
		Level:          LevelInfo,
		Format:         FormatText,
		Output:         OutputStderr(),
		ServiceName:    "brewprobe",
		ServiceVersion: "dev",
	}
}

// CLIConfig builds a configuration from the --log-level and --log-format flags.
func CLIConfig(level, format, serviceVersion string) Config {
	cfg := DefaultConfig()
	cfg.Level = ParseLevel(level)
	cfg.Format = ParseFormat(format)
	if serviceVersion != "" {
		cfg.ServiceVersion = serviceVersion
	}
	return cfg
}
