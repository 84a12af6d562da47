// Package config builds the process-wide settings once, from defaults,
// an optional YAML file and the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/felixgeelhaar/brewprobe/internal/errors"
)

// Environment variables read once per process
const (
	EnvFastMode              = "FAST_MODE"
	EnvForceFull             = "FORCE_FULL"
	EnvInstallTimeout        = "INSTALL_TIMEOUT"
	EnvPreinstallDeps        = "PREINSTALL_DEPS"
	EnvPreinstallSkipTexlive = "PREINSTALL_SKIP_TEXLIVE"
)

// ForwardedEnv lists the variables passed through to a container run, in order
var ForwardedEnv = []string{
	EnvFastMode,
	EnvForceFull,
	EnvInstallTimeout,
	EnvPreinstallDeps,
	EnvPreinstallSkipTexlive,
}

// DefaultInstallTimeout bounds a from-source formula install
const DefaultInstallTimeout = 3600 * time.Second

// Settings holds the application configuration.
type Settings struct {
	Formula   FormulaConfig   `mapstructure:"formula"`
	CLI       CLIConfig       `mapstructure:"cli"`
	Python    PythonConfig    `mapstructure:"python"`
	Container ContainerConfig `mapstructure:"container"`

	// Resolved from the environment, not from mapstructure.
	FastMode              bool          `mapstructure:"-"`
	ForceFull             bool          `mapstructure:"-"`
	PreinstallDeps        bool          `mapstructure:"-"`
	PreinstallSkipTexlive bool          `mapstructure:"-"`
	InstallTimeout        time.Duration `mapstructure:"-"`

	// Forward holds the raw values of ForwardedEnv that were set
	Forward map[string]string `mapstructure:"-"`
}

// FormulaConfig locates the formula under test.
type FormulaConfig struct {
	Name      string `mapstructure:"name"`
	Path      string `mapstructure:"path"`
	Tap       string `mapstructure:"tap"`
	Workspace string `mapstructure:"workspace"`
}

// CLIConfig describes the packaged command-line tool.
type CLIConfig struct {
	Binary         string   `mapstructure:"binary"`
	SelfCheck      string   `mapstructure:"self_check"`
	InitCommand    string   `mapstructure:"init_command"`
	ProjectName    string   `mapstructure:"project_name"`
	BuildCommands  []string `mapstructure:"build_commands"`
	MainCandidates []string `mapstructure:"main_candidates"`
	ConfigFile     string   `mapstructure:"config_file"`
}

// PythonConfig drives the adaptive installation path.
type PythonConfig struct {
	Package    string `mapstructure:"package"`
	MinVersion string `mapstructure:"min_version"`
	VenvDir    string `mapstructure:"venv_dir"`
}

// ContainerConfig drives the container workflow.
type ContainerConfig struct {
	Runtime       string `mapstructure:"runtime"`
	Image         string `mapstructure:"image"`
	Containerfile string `mapstructure:"containerfile"`
}

// Load reads configuration from file and environment.
// An empty configPath looks for ./brewprobe.yaml and tolerates its absence.
func Load(configPath string) (*Settings, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("brewprobe")
		v.SetConfigType("yaml")
	}

	for _, env := range ForwardedEnv {
		if err := v.BindEnv(strings.ToLower(env), env); err != nil {
			return nil, errors.NewConfigInvalidError(env, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found is OK, we'll use defaults
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, errors.Wrap(errors.ErrCodeConfigInvalid, "failed to read configuration file", err).
				WithSuggestion("Check the YAML syntax of the file passed with --config")
		}
	}

	var cfg Settings
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(errors.ErrCodeConfigInvalid, "failed to decode configuration", err)
	}

	cfg.FastMode = flag(v, EnvFastMode)
	cfg.ForceFull = flag(v, EnvForceFull)
	cfg.PreinstallDeps = flag(v, EnvPreinstallDeps)
	cfg.PreinstallSkipTexlive = flag(v, EnvPreinstallSkipTexlive)

	timeout, err := parseTimeout(v.GetString(key(EnvInstallTimeout)))
	if err != nil {
		return nil, errors.NewConfigInvalidError(EnvInstallTimeout, err)
	}
	cfg.InstallTimeout = timeout

	cfg.Forward = make(map[string]string)
	for _, env := range ForwardedEnv {
		if value, ok := os.LookupEnv(env); ok {
			cfg.Forward[env] = value
		}
	}

	cfg.Python.VenvDir = expandHome(cfg.Python.VenvDir)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("formula.name", "rxiv-maker")
	v.SetDefault("formula.path", "Formula/rxiv-maker.rb")
	v.SetDefault("formula.tap", "henriqueslab/rxiv-maker")
	v.SetDefault("formula.workspace", ".")

	v.SetDefault("cli.binary", "rxiv")
	v.SetDefault("cli.self_check", "check-installation")
	v.SetDefault("cli.init_command", "init")
	v.SetDefault("cli.project_name", "test_paper")
	v.SetDefault("cli.build_commands", []string{"build", "pdf"})
	v.SetDefault("cli.main_candidates", []string{"01_MAIN.md", "manuscript.md"})
	v.SetDefault("cli.config_file", "00_CONFIG.yml")

	v.SetDefault("python.package", "rxiv-maker")
	v.SetDefault("python.min_version", "3.11")
	v.SetDefault("python.venv_dir", "~/.rxiv_adaptive_venv")

	v.SetDefault("container.runtime", "podman")
	v.SetDefault("container.image", "homebrew-rxiv-maker-test")
	v.SetDefault("container.containerfile", "test/Containerfile")

	v.SetDefault(key(EnvInstallTimeout), strconv.Itoa(int(DefaultInstallTimeout/time.Second)))
}

// Validate rejects settings no workflow can run with.
func (s *Settings) Validate() error {
	required := map[string]string{
		"formula.name": s.Formula.Name,
		"formula.path": s.Formula.Path,
		"cli.binary":   s.CLI.Binary,
	}
	for name, value := range required {
		if strings.TrimSpace(value) == "" {
			return errors.NewConfigInvalidError(name, fmt.Errorf("must not be empty"))
		}
	}
	if s.Formula.Tap != "" && strings.Count(s.Formula.Tap, "/") != 1 {
		return errors.NewConfigInvalidError("formula.tap", fmt.Errorf("%q is not of the form user/repo", s.Formula.Tap))
	}
	return nil
}

// FormulaFile returns the formula path resolved against the workspace
func (s *Settings) FormulaFile() string {
	if filepath.IsAbs(s.Formula.Path) {
		return s.Formula.Path
	}
	return filepath.Join(s.Formula.Workspace, s.Formula.Path)
}

// TapParts splits the tap into its user and repository names
func (s *Settings) TapParts() (user, repo string) {
	user, repo, _ = strings.Cut(s.Formula.Tap, "/")
	return user, repo
}

func key(env string) string {
	return strings.ToLower(env)
}

// flag is true only for the exact value "1"
func flag(v *viper.Viper, env string) bool {
	return v.GetString(key(env)) == "1"
}

func parseTimeout(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return DefaultInstallTimeout, nil
	}
	seconds, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%q is not a whole number of seconds", raw)
	}
	if seconds <= 0 {
		return 0, fmt.Errorf("must be positive, got %d", seconds)
	}
	return time.Duration(seconds) * time.Second, nil
}

func expandHome(path string) string {
	if path == "" || path[0] != '~' {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
