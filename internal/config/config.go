package config

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/BurntSushi/toml"
)

// Load reads configuration from standard locations with environment overrides.
// Search order: ~/.mocaprc, $XDG_CONFIG_HOME/mocap/config.toml, ~/.config/mocap/config.toml
func Load() (*Config, error) {
	cfg := &Config{}

	path := findConfigFile()
	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, err
		}
	}

	cfg.ApplyDefaults()
	applyEnvOverrides(cfg)

	return cfg, nil
}

// LoadFrom reads configuration from a specific file path.
func LoadFrom(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	applyEnvOverrides(cfg)
	return cfg, nil
}

// Path returns the config file in use, or the default location for a new one.
func Path() string {
	if p := findConfigFile(); p != "" {
		return p
	}
	return DefaultPath()
}

// DefaultPath returns $XDG_CONFIG_HOME/mocap/config.toml.
func DefaultPath() string {
	return filepath.Join(configDir(), "mocap", "config.toml")
}

func configDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return xdg
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config")
}

// findConfigFile returns the first existing config file path.
func findConfigFile() string {
	var paths []string
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".mocaprc"))
	}
	paths = append(paths, DefaultPath())

	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}

// applyEnvOverrides applies environment variable overrides to the config.
func applyEnvOverrides(cfg *Config) {
	// Playback
	if v := os.Getenv("MOCAP_PLAYBACK_SCALE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Playback.Scale = f
		}
	}
	if v := os.Getenv("MOCAP_PLAYBACK_SPEED"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Playback.Speed = f
		}
	}
	if v := os.Getenv("MOCAP_PLAYBACK_FPS"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.Playback.FPS = i
		}
	}

	// Library
	if v := os.Getenv("MOCAP_LIBRARY_DIR"); v != "" {
		cfg.Library.Dir = v
	}
	if v := os.Getenv("MOCAP_LIBRARY_DATABASE"); v != "" {
		cfg.Library.Database = v
	}

	// Fetch
	if v := os.Getenv("MOCAP_FETCH_TIMEOUT"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.Fetch.Timeout = i
		}
	}

	// TUI
	if v := os.Getenv("MOCAP_TUI_THEME"); v != "" {
		cfg.TUI.Theme = v
	}

	// Server
	if v := os.Getenv("MOCAP_SERVER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}

	// Log
	if v := os.Getenv("MOCAP_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("MOCAP_LOG_FILE"); v != "" {
		cfg.Log.File = v
	}
}
