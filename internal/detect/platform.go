package detect

import (
	"runtime"
	"strings"
)

// OSFamily is the operating-system family of a host
type OSFamily string

const (
	Linux   OSFamily = "linux"
	Darwin  OSFamily = "darwin"
	OtherOS OSFamily = "other"
)

// Arch is the normalised CPU architecture of a host
type Arch string

const (
	X86_64    Arch = "x86_64"
	ARM64     Arch = "arm64"
	OtherArch Arch = "other"
)

var x86Names = map[string]bool{
	"x86_64": true,
	"amd64":  true,
	"x64":    true,
	"i386":   true,
	"i686":   true,
	"386":    true,
}

// Profile is the immutable platform description a run is planned against
type Profile struct {
	OS   OSFamily `json:"os" yaml:"os"`
	Arch Arch     `json:"arch" yaml:"arch"`
	// Machine is the raw string the kernel reported.
	Machine string `json:"machine" yaml:"machine"`
}

// String renders the profile as "os/arch"
func (p Profile) String() string {
	return string(p.OS) + "/" + string(p.Arch)
}

// NewProfile builds a profile from a GOOS-style name and a machine string
func NewProfile(goos, machine string) Profile {
	return Profile{
		OS:      NormalizeOS(goos),
		Arch:    NormalizeArch(machine),
		Machine: machine,
	}
}

// NormalizeOS maps an operating-system name onto the supported families
func NormalizeOS(name string) OSFamily {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "linux":
		return Linux
	case "darwin", "macos":
		return Darwin
	default:
		return OtherOS
	}
}

// NormalizeArch maps a machine string onto the supported architectures.
// Anything mentioning arm or aarch64 is arm64.
func NormalizeArch(machine string) Arch {
	m := strings.ToLower(strings.TrimSpace(machine))
	switch {
	case m == "":
		return OtherArch
	case strings.Contains(m, "arm"), strings.Contains(m, "aarch64"):
		return ARM64
	case x86Names[m]:
		return X86_64
	default:
		return OtherArch
	}
}

// ProfileHost describes the machine brewprobe is running on. It never fails.
func ProfileHost() Profile {
	machine := unameMachine()
	if machine == "" {
		machine = runtime.GOARCH
	}
	return NewProfile(runtime.GOOS, machine)
}
