package detect

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// versionProbeTimeout bounds each "<tool> --version" call
const versionProbeTimeout = 10 * time.Second

// Context represents the detected host context
type Context struct {
	Profile Profile `json:"profile" yaml:"profile"`

	// Tools holds required and optional host tools keyed by name
	Tools map[string]Tool `json:"tools" yaml:"tools"`

	// Container runtime
	Docker  ContainerRuntime `json:"docker" yaml:"docker"`
	Podman  ContainerRuntime `json:"podman" yaml:"podman"`
	Runtime string           `json:"runtime" yaml:"runtime"` // "podman", "docker", or ""

	// CI/CD environment
	CI CIInfo `json:"ci" yaml:"ci"`
}

// Tool holds detection results for one executable
type Tool struct {
	Name      string `json:"name" yaml:"name"`
	Path      string `json:"path,omitempty" yaml:"path,omitempty"`
	Available bool   `json:"available" yaml:"available"`
	Version   string `json:"version,omitempty" yaml:"version,omitempty"`
	Required  bool   `json:"required" yaml:"required"`
}

// ContainerRuntime holds container runtime detection results
type ContainerRuntime struct {
	Available bool   `json:"available" yaml:"available"`
	Version   string `json:"version,omitempty" yaml:"version,omitempty"`
	Running   bool   `json:"running" yaml:"running"`
}

// CIInfo holds CI/CD environment information
type CIInfo struct {
	Detected bool   `json:"detected" yaml:"detected"`
	Name     string `json:"name,omitempty" yaml:"name,omitempty"` // "github", "gitlab", "jenkins", "circleci", etc.
}

// RequiredTools must be present for any workflow to run
var RequiredTools = []string{"brew", "git", "python3"}

// OptionalTools widen what can be verified but are never fatal
var OptionalTools = []string{"podman", "docker", "pipx", "pdflatex", "node"}

// DetectAll runs all detection checks and returns the context
func DetectAll() *Context {
	ctx := &Context{
		Profile: ProfileHost(),
		Tools:   make(map[string]Tool),
	}

	for _, tool := range DetectTools(RequiredTools...) {
		tool.Required = true
		ctx.Tools[tool.Name] = tool
	}
	for _, tool := range DetectTools(OptionalTools...) {
		ctx.Tools[tool.Name] = tool
	}

	ctx.Podman = detectPodman()
	ctx.Docker = detectDocker()
	ctx.Runtime = pickRuntime(ctx.Podman, ctx.Docker)

	ctx.CI = detectCI()

	return ctx
}

// DetectTools resolves each name on PATH and records its version line
func DetectTools(names ...string) []Tool {
	tools := make([]Tool, 0, len(names))
	for _, name := range names {
		tool := Tool{Name: name}
		if path, err := exec.LookPath(name); err == nil {
			tool.Path = path
			tool.Available = true
			tool.Version = firstLine(versionOutput(path, "--version"))
		}
		tools = append(tools, tool)
	}
	return tools
}

// DetectContainerRuntime returns the preferred runtime name, podman before docker
func DetectContainerRuntime() (string, ContainerRuntime) {
	podman := detectPodman()
	if podman.Available {
		return "podman", podman
	}
	docker := detectDocker()
	if docker.Available {
		return "docker", docker
	}
	return "", ContainerRuntime{}
}

func pickRuntime(podman, docker ContainerRuntime) string {
	switch {
	case podman.Available:
		return "podman"
	case docker.Available:
		return "docker"
	default:
		return ""
	}
}

// MissingRequired lists required tools that were not found
func (c *Context) MissingRequired() []string {
	var missing []string
	for _, name := range RequiredTools {
		if tool, ok := c.Tools[name]; !ok || !tool.Available {
			missing = append(missing, name)
		}
	}
	return missing
}

// detectDocker checks if Docker is available and its daemon is reachable
func detectDocker() ContainerRuntime {
	runtime := ContainerRuntime{}

	path, err := exec.LookPath("docker")
	if err != nil {
		return runtime
	}

	runtime.Available = true

	if out := versionOutput(path, "version", "--format", "{{.Server.Version}}"); out != "" {
		runtime.Version = out
		runtime.Running = true
		return runtime
	}

	// CLI exists but the daemon might not be running.
	// "Docker version 24.0.7, build afdd53b"
	parts := strings.Fields(versionOutput(path, "--version"))
	if len(parts) >= 3 {
		runtime.Version = strings.TrimSuffix(parts[2], ",")
	}

	return runtime
}

// detectPodman checks if Podman is available. Podman is daemonless.
func detectPodman() ContainerRuntime {
	runtime := ContainerRuntime{}

	path, err := exec.LookPath("podman")
	if err != nil {
		return runtime
	}

	runtime.Available = true
	runtime.Running = true

	// "podman version 4.7.2"
	parts := strings.Fields(versionOutput(path, "--version"))
	if len(parts) >= 3 {
		runtime.Version = parts[2]
	}

	return runtime
}

// detectCI detects CI/CD environment
func detectCI() CIInfo {
	ci := CIInfo{}

	ciChecks := []struct{ env, name string }{
		{"GITHUB_ACTIONS", "github"},
		{"GITLAB_CI", "gitlab"},
		{"JENKINS_HOME", "jenkins"},
		{"CIRCLECI", "circleci"},
		{"TRAVIS", "travis"},
		{"BUILDKITE", "buildkite"},
	}

	for _, check := range ciChecks {
		if os.Getenv(check.env) != "" {
			ci.Detected = true
			ci.Name = check.name
			return ci
		}
	}

	return ci
}

func versionOutput(path string, args ...string) string {
	ctx, cancel := context.WithTimeout(context.Background(), versionProbeTimeout)
	defer cancel()

	output, err := exec.CommandContext(ctx, path, args...).Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(output))
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return s
}

// Summary returns a human-readable summary of the detected context
func (c *Context) Summary() string {
	var sb strings.Builder

	sb.WriteString("Detected Context:\n\n")
	fmt.Fprintf(&sb, "  Platform: %s (machine: %s)\n", c.Profile, c.Profile.Machine)

	sb.WriteString("\n  Required Tools:\n")
	writeTools(&sb, c, RequiredTools)
	sb.WriteString("\n  Optional Tools:\n")
	writeTools(&sb, c, OptionalTools)

	if c.Runtime != "" {
		runtime := c.Podman
		if c.Runtime == "docker" {
			runtime = c.Docker
		}
		fmt.Fprintf(&sb, "\n  Container Runtime: %s (version %s, running: %v)\n",
			c.Runtime, runtime.Version, runtime.Running)
	} else {
		sb.WriteString("\n  Container Runtime: Not detected\n")
	}

	if c.CI.Detected {
		fmt.Fprintf(&sb, "  CI Environment: %s\n", c.CI.Name)
	}

	return sb.String()
}

func writeTools(sb *strings.Builder, c *Context, names []string) {
	for _, name := range names {
		tool := c.Tools[name]
		if !tool.Available {
			fmt.Fprintf(sb, "    ✗ %s (not found)\n", name)
			continue
		}
		fmt.Fprintf(sb, "    ✓ %s (%s", name, tool.Path)
		if tool.Version != "" {
			fmt.Fprintf(sb, ", %s", tool.Version)
		}
		sb.WriteString(")\n")
	}
}
