package ux

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorWithSuggestion wraps an error with a recovery hint
type ErrorWithSuggestion struct {
	Err        error
	Suggestion string
}

// Error implements the error interface
func (e *ErrorWithSuggestion) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("%v\n\nSuggestion: %s", e.Err, e.Suggestion)
	}
	return e.Err.Error()
}

// Unwrap provides access to the underlying error
func (e *ErrorWithSuggestion) Unwrap() error {
	return e.Err
}

// NewErrorWithSuggestion creates a new error with a suggestion
func NewErrorWithSuggestion(err error, suggestion string) error {
	if err == nil {
		return nil
	}
	return &ErrorWithSuggestion{Err: err, Suggestion: suggestion}
}

// hints maps output fragments from brew, pip and container runtimes to advice.
// The first match wins.
var hints = []struct {
	match      []string
	suggestion string
}{
	{[]string{"externally-managed-environment"},
		"The interpreter is marked externally managed; use the adaptive mode so a virtual environment is created"},
	{[]string{"No available formula"},
		"The formula is not tapped yet; run the workflow without --fast once so the tap step can link it"},
	{[]string{"Cannot connect to the Docker daemon"},
		"Docker is not running. Start it and run 'docker ps' to verify, or install podman"},
	{[]string{"/var/run/docker.sock", "permission denied"},
		"Add your user to the docker group: sudo usermod -aG docker $USER (then logout/login)"},
	{[]string{"Error: Permission denied", "Cellar"},
		"Fix Homebrew prefix ownership: sudo chown -R $(whoami) $(brew --prefix)"},
	{[]string{"already installed"},
		"Uninstall the existing formula first: brew uninstall rxiv-maker"},
	{[]string{"connection refused"},
		"Check your network connection; source installs download dependencies"},
	{[]string{"no route to host"},
		"Check your network connection; source installs download dependencies"},
}

// EnhanceError adds a suggestion when the error text matches a known problem
func EnhanceError(err error) error {
	if err == nil {
		return nil
	}

	var hinted *ErrorWithSuggestion
	if errors.As(err, &hinted) {
		return err
	}

	msg := err.Error()
	for _, h := range hints {
		if containsAll(msg, h.match) {
			return NewErrorWithSuggestion(err, h.suggestion)
		}
	}
	return err
}

func containsAll(s string, parts []string) bool {
	for _, p := range parts {
		if !strings.Contains(s, p) {
			return false
		}
	}
	return true
}

// FormatError provides consistent error formatting with context
func FormatError(err error, context string) error {
	if err == nil {
		return nil
	}

	enhanced := EnhanceError(err)
	if context != "" {
		return fmt.Errorf("%s: %w", context, enhanced)
	}
	return enhanced
}
