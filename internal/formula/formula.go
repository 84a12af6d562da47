// Package formula reads the metadata brewprobe needs from a Homebrew formula file.
package formula

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/zeebo/blake3"

	"github.com/felixgeelhaar/brewprobe/internal/errors"
)

var (
	urlPattern      = regexp.MustCompile(`(?m)^\s*url\s+"([^"]+)"`)
	sha256Pattern   = regexp.MustCompile(`(?m)^\s*sha256\s+"([0-9a-fA-F]{64})"`)
	descPattern     = regexp.MustCompile(`(?m)^\s*desc\s+"([^"]+)"`)
	homepagePattern = regexp.MustCompile(`(?m)^\s*homepage\s+"([^"]+)"`)
	versionPattern  = regexp.MustCompile(`(?m)^\s*version\s+"([^"]+)"`)
)

// Formula is the subset of a formula file brewprobe reads
type Formula struct {
	Path     string
	Package  string
	URL      string
	Version  string
	SHA256   string
	Desc     string
	Homepage string
	// Digest is the blake3 hash of the file contents, hex encoded
	Digest string
}

// Load reads the formula at path. pkg is the Python distribution name used
// to recover the version from the source tarball name.
func Load(path, pkg string) (*Formula, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewFileNotFoundError(path)
		}
		return nil, errors.Wrap(errors.ErrCodeFileReadFailed, fmt.Sprintf("failed to read formula %s", path), err)
	}
	f := Parse(data, pkg)
	f.Path = path
	return f, nil
}

// Parse extracts formula metadata from its source text. Missing fields stay empty.
func Parse(data []byte, pkg string) *Formula {
	text := string(data)
	f := &Formula{
		Package:  pkg,
		URL:      firstGroup(urlPattern, text),
		SHA256:   strings.ToLower(firstGroup(sha256Pattern, text)),
		Desc:     firstGroup(descPattern, text),
		Homepage: firstGroup(homepagePattern, text),
		Digest:   Digest(data),
	}

	f.Version = firstGroup(versionPattern, text)
	if f.Version == "" && pkg != "" {
		f.Version = firstGroup(sdistVersionPattern(pkg), text)
	}

	return f
}

// sdistVersionPattern matches "<dist_name>-X.Y.Z" where dist_name is the
// package with dashes folded to underscores.
func sdistVersionPattern(pkg string) *regexp.Regexp {
	dist := regexp.QuoteMeta(strings.ReplaceAll(pkg, "-", "_"))
	return regexp.MustCompile(dist + `-(\d+\.\d+\.\d+)`)
}

// PackageSpec returns what pip should install: the source URL when the
// formula has one, else "<pkg>==<version>", else the bare package name.
func (f *Formula) PackageSpec() string {
	switch {
	case f.URL != "":
		return f.URL
	case f.Version != "":
		return fmt.Sprintf("%s==%s", f.Package, f.Version)
	default:
		return f.Package
	}
}

// Digest computes the blake3 hash of data
func Digest(data []byte) string {
	hasher := blake3.New()
	_, _ = hasher.Write(data)
	return fmt.Sprintf("%x", hasher.Sum(nil))
}

func firstGroup(re *regexp.Regexp, text string) string {
	m := re.FindStringSubmatch(text)
	if len(m) < 2 {
		return ""
	}
	return strings.TrimSpace(m[1])
}
