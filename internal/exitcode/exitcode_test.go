package exitcode

import (
	"context"
	"errors"
	"fmt"
	"testing"

	probeerrors "github.com/felixgeelhaar/brewprobe/internal/errors"
)

func TestExitCodes(t *testing.T) {
	tests := []struct {
		name     string
		code     int
		expected int
	}{
		{"Success", Success, 0},
		{"GeneralError", GeneralError, 1},
		{"UsageError", UsageError, 2},
		{"EnvironmentUnavailable", EnvironmentUnavailable, 3},
		{"Interrupted", Interrupted, 130},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.code != tt.expected {
				t.Errorf("Exit code %s = %d, want %d", tt.name, tt.code, tt.expected)
			}
		})
	}
}

func TestDetermineExitCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{
			name:     "nil error returns success",
			err:      nil,
			expected: Success,
		},
		{
			name:     "explicit exit code",
			err:      WithCode(GeneralError),
			expected: GeneralError,
		},
		{
			name:     "wrapped explicit exit code",
			err:      fmt.Errorf("run: %w", WithCode(Interrupted)),
			expected: Interrupted,
		},
		{
			name:     "context cancelled",
			err:      fmt.Errorf("step: %w", context.Canceled),
			expected: Interrupted,
		},
		{
			name:     "environment unavailable",
			err:      probeerrors.NewEnvironmentUnavailable("brew"),
			expected: EnvironmentUnavailable,
		},
		{
			name:     "invalid configuration",
			err:      probeerrors.NewConfigInvalidError("INSTALL_TIMEOUT", errors.New("bad")),
			expected: UsageError,
		},
		{
			name:     "command failure",
			err:      probeerrors.NewCommandFailure([]string{"false"}, 1, ""),
			expected: GeneralError,
		},
		{
			name:     "plain error",
			err:      errors.New("boom"),
			expected: GeneralError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetermineExitCode(tt.err); got != tt.expected {
				t.Errorf("DetermineExitCode() = %d, want %d", got, tt.expected)
			}
		})
	}
}

func TestWithCodeSuccessIsNil(t *testing.T) {
	if err := WithCode(Success); err != nil {
		t.Errorf("WithCode(Success) = %v, want nil", err)
	}
}

func TestGetExitCodeDescription(t *testing.T) {
	codes := []int{Success, GeneralError, UsageError, EnvironmentUnavailable, Interrupted}
	for _, code := range codes {
		desc := GetExitCodeDescription(code)
		if desc == "" || desc == "Unknown error" {
			t.Errorf("code %d has no description", code)
		}
	}
	if GetExitCodeDescription(99) != "Unknown error" {
		t.Error("unknown code should be described as unknown")
	}
}
