// Package mode decides how thorough a verification run is.
package mode

import "github.com/felixgeelhaar/brewprobe/internal/detect"

// Mode is the thoroughness level of a run
type Mode string

const (
	// Fast checks only that the package manager and formula are sane
	Fast Mode = "fast"
	// Adaptive installs through the interpreter's package installer and
	// tolerates missing heavy dependencies
	Adaptive Mode = "adaptive"
	// Full builds the formula from source and requires every dependency
	Full Mode = "full"
)

// Config is the run configuration derived once per run
type Config struct {
	Mode                     Mode
	TolerateMissingHeavyDeps bool
	SkipHeavyInstall         bool
}

// Select picks the mode for a platform and the operator's requests.
// An explicit fast request beats a full one; arm64 hosts default to adaptive.
func Select(profile detect.Profile, fastRequested, forceFull bool) Config {
	switch {
	case fastRequested:
		return For(Fast)
	case forceFull:
		return For(Full)
	case profile.Arch == detect.ARM64:
		return For(Adaptive)
	default:
		return For(Full)
	}
}

// For returns the configuration a mode implies
func For(m Mode) Config {
	lenient := m != Full
	return Config{
		Mode:                     m,
		TolerateMissingHeavyDeps: lenient,
		SkipHeavyInstall:         lenient,
	}
}

// Is reports whether the configuration runs in any of the given modes
func (c Config) Is(modes ...Mode) bool {
	for _, m := range modes {
		if c.Mode == m {
			return true
		}
	}
	return false
}
