package config

// Default returns a Config populated with sensible defaults.
func Default() *Config {
	return &Config{
		Playback: PlaybackConfig{
			Scale:   50,
			YOffset: 2,
			Speed:   1,
			StepMS:  100,
			FPS:     60,
		},
		Library: LibraryConfig{
			Dir: ".",
		},
		Fetch: FetchConfig{
			Timeout: 30,
			Retries: 3,
		},
		Tail: TailConfig{
			Milestone: 25,
		},
		TUI: TUIConfig{
			Theme:       "auto",
			RotateSpeed: 30,
		},
		Server: ServerConfig{
			Addr: "127.0.0.1:7878",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// ApplyDefaults fills in zero values with sensible defaults.
func (c *Config) ApplyDefaults() {
	d := Default()

	// Playback
	if c.Playback.Scale == 0 {
		c.Playback.Scale = d.Playback.Scale
	}
	if c.Playback.YOffset == 0 {
		c.Playback.YOffset = d.Playback.YOffset
	}
	if c.Playback.Speed == 0 {
		c.Playback.Speed = d.Playback.Speed
	}
	if c.Playback.StepMS == 0 {
		c.Playback.StepMS = d.Playback.StepMS
	}
	if c.Playback.FPS == 0 {
		c.Playback.FPS = d.Playback.FPS
	}

	// Library
	if c.Library.Dir == "" {
		c.Library.Dir = d.Library.Dir
	}

	// Fetch
	if c.Fetch.Timeout == 0 {
		c.Fetch.Timeout = d.Fetch.Timeout
	}
	if c.Fetch.Retries == 0 {
		c.Fetch.Retries = d.Fetch.Retries
	}

	// Tail
	if c.Tail.Milestone == 0 {
		c.Tail.Milestone = d.Tail.Milestone
	}

	// TUI
	if c.TUI.Theme == "" {
		c.TUI.Theme = d.TUI.Theme
	}
	if c.TUI.RotateSpeed == 0 {
		c.TUI.RotateSpeed = d.TUI.RotateSpeed
	}

	// Server
	if c.Server.Addr == "" {
		c.Server.Addr = d.Server.Addr
	}

	// Log
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
}
