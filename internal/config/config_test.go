package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFromAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
[playback]
speed = 2.0

[server]
addr = "0.0.0.0:9000"
`)

	cfg, err := LoadFrom(path)
	require.NoError(t, err)

	assert.Equal(t, 2.0, cfg.Playback.Speed)
	assert.Equal(t, 50.0, cfg.Playback.Scale)
	assert.Equal(t, 2.0, cfg.Playback.YOffset)
	assert.Equal(t, 60, cfg.Playback.FPS)
	assert.Equal(t, "0.0.0.0:9000", cfg.Server.Addr)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.NoError(t, cfg.Validate())
}

func TestEnvOverrides(t *testing.T) {
	path := writeConfig(t, "")
	t.Setenv("MOCAP_PLAYBACK_SPEED", "0.5")
	t.Setenv("MOCAP_LOG_LEVEL", "debug")
	t.Setenv("MOCAP_PLAYBACK_FPS", "not-a-number")

	cfg, err := LoadFrom(path)
	require.NoError(t, err)

	assert.Equal(t, 0.5, cfg.Playback.Speed)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 60, cfg.Playback.FPS)
}

func TestLoadFromInvalidTOML(t *testing.T) {
	path := writeConfig(t, "[playback\nspeed = ")
	_, err := LoadFrom(path)
	assert.Error(t, err)
}

func TestLoadSearchesXDG(t *testing.T) {
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)
	t.Setenv("HOME", t.TempDir())

	dir := filepath.Join(xdg, "mocap")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte("[tui]\ntheme = \"dark\"\n"), 0o600))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "dark", cfg.TUI.Theme)
	assert.Equal(t, filepath.Join(dir, "config.toml"), Path())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"bad scale", func(c *Config) { c.Playback.Scale = -1 }, "playback: scale must be positive"},
		{"bad fps", func(c *Config) { c.Playback.FPS = 0 }, "playback: fps must be between 1 and 240"},
		{"bad theme", func(c *Config) { c.TUI.Theme = "neon" }, "tui: invalid theme"},
		{"bad addr", func(c *Config) { c.Server.Addr = "nope" }, "server: invalid addr"},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }, "log: invalid log level"},
		{"bad milestone", func(c *Config) { c.Tail.Milestone = 101 }, "tail: milestone"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
