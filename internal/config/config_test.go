package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/brewprobe/internal/errors"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, env := range ForwardedEnv {
		t.Setenv(env, "")
		os.Unsetenv(env)
	}
}

func inTempDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	inTempDir(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "rxiv-maker", cfg.Formula.Name)
	assert.Equal(t, "Formula/rxiv-maker.rb", cfg.Formula.Path)
	assert.Equal(t, "henriqueslab/rxiv-maker", cfg.Formula.Tap)
	assert.Equal(t, "rxiv", cfg.CLI.Binary)
	assert.Equal(t, []string{"build", "pdf"}, cfg.CLI.BuildCommands)
	assert.Equal(t, []string{"01_MAIN.md", "manuscript.md"}, cfg.CLI.MainCandidates)
	assert.Equal(t, "00_CONFIG.yml", cfg.CLI.ConfigFile)
	assert.Equal(t, "3.11", cfg.Python.MinVersion)
	assert.Equal(t, "podman", cfg.Container.Runtime)
	assert.Equal(t, DefaultInstallTimeout, cfg.InstallTimeout)
	assert.False(t, cfg.FastMode)
	assert.False(t, cfg.ForceFull)
	assert.Empty(t, cfg.Forward)

	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".rxiv_adaptive_venv"), cfg.Python.VenvDir)
}

func TestLoadBooleansAreExactlyOne(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{"1", true},
		{" 1", false},
		{"1 ", false},
		{"0", false},
		{"true", false},
		{"yes", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			clearEnv(t)
			inTempDir(t)
			t.Setenv(EnvFastMode, tt.value)
			t.Setenv(EnvForceFull, tt.value)
			t.Setenv(EnvPreinstallDeps, tt.value)
			t.Setenv(EnvPreinstallSkipTexlive, tt.value)

			cfg, err := Load("")
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg.FastMode)
			assert.Equal(t, tt.want, cfg.ForceFull)
			assert.Equal(t, tt.want, cfg.PreinstallDeps)
			assert.Equal(t, tt.want, cfg.PreinstallSkipTexlive)
		})
	}
}

func TestLoadInstallTimeout(t *testing.T) {
	clearEnv(t)
	inTempDir(t)
	t.Setenv(EnvInstallTimeout, "120")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 120*time.Second, cfg.InstallTimeout)
	assert.Equal(t, "120", cfg.Forward[EnvInstallTimeout])
}

func TestLoadInvalidInstallTimeout(t *testing.T) {
	for _, value := range []string{"soon", "-5", "0", "1.5"} {
		t.Run(value, func(t *testing.T) {
			clearEnv(t)
			inTempDir(t)
			t.Setenv(EnvInstallTimeout, value)

			_, err := Load("")
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrCodeConfigInvalid), "got %v", err)
		})
	}
}

func TestLoadConfigFile(t *testing.T) {
	clearEnv(t)
	dir := inTempDir(t)

	content := `
formula:
  name: other-tool
  path: Formula/other-tool.rb
  tap: someone/other-tool
cli:
  binary: other
  build_commands: [render]
install_timeout: "90"
`
	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "other-tool", cfg.Formula.Name)
	assert.Equal(t, "other", cfg.CLI.Binary)
	assert.Equal(t, []string{"render"}, cfg.CLI.BuildCommands)
	assert.Equal(t, 90*time.Second, cfg.InstallTimeout)
	// untouched keys keep defaults
	assert.Equal(t, "00_CONFIG.yml", cfg.CLI.ConfigFile)

	user, repo := cfg.TapParts()
	assert.Equal(t, "someone", user)
	assert.Equal(t, "other-tool", repo)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	clearEnv(t)
	dir := inTempDir(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "brewprobe.yaml"), []byte("install_timeout: \"90\"\n"), 0o644))
	t.Setenv(EnvInstallTimeout, "30")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, cfg.InstallTimeout)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	clearEnv(t)
	dir := inTempDir(t)

	_, err := Load(filepath.Join(dir, "nope.yaml"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeConfigInvalid))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Settings)
		wantErr bool
	}{
		{"valid", func(*Settings) {}, false},
		{"empty name", func(s *Settings) { s.Formula.Name = "" }, true},
		{"empty binary", func(s *Settings) { s.CLI.Binary = " " }, true},
		{"bad tap", func(s *Settings) { s.Formula.Tap = "no-slash" }, true},
		{"no tap", func(s *Settings) { s.Formula.Tap = "" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &Settings{
				Formula: FormulaConfig{Name: "x", Path: "Formula/x.rb", Tap: "u/x"},
				CLI:     CLIConfig{Binary: "x"},
			}
			tt.mutate(s)
			err := s.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestFormulaFile(t *testing.T) {
	s := &Settings{Formula: FormulaConfig{Path: "Formula/x.rb", Workspace: "/workspace"}}
	assert.Equal(t, "/workspace/Formula/x.rb", s.FormulaFile())

	s.Formula.Path = "/abs/x.rb"
	assert.Equal(t, "/abs/x.rb", s.FormulaFile())
}
