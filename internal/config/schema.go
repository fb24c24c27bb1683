package config

// Config is the root configuration structure.
type Config struct {
	Playback PlaybackConfig `toml:"playback"`
	Library  LibraryConfig  `toml:"library"`
	Fetch    FetchConfig    `toml:"fetch"`
	Tail     TailConfig     `toml:"tail"`
	TUI      TUIConfig      `toml:"tui"`
	Server   ServerConfig   `toml:"server"`
	Log      LogConfig      `toml:"log"`
}

// PlaybackConfig holds recording normalization and playback settings.
type PlaybackConfig struct {
	// Scale divides raw recording positions.
	Scale float64 `toml:"scale"`
	// YOffset is added to every normalized vertical position.
	YOffset        float64 `toml:"y_offset"`
	Speed          float64 `toml:"speed"`
	StepMS         int     `toml:"step_ms"`
	FPS            int     `toml:"fps"`
	HideIndicators bool    `toml:"hide_indicators"`
}

// LibraryConfig holds recording library settings.
type LibraryConfig struct {
	Dir      string `toml:"dir"`
	Database string `toml:"database"`
}

// FetchConfig holds settings for downloading remote recordings.
type FetchConfig struct {
	Timeout int `toml:"timeout"`
	Retries int `toml:"retries"`
}

// TailConfig holds settings for headless event output.
type TailConfig struct {
	Milestone  int    `toml:"milestone"`
	Timestamps bool   `toml:"timestamps"`
	Format     string `toml:"format"`
}

// TUIConfig holds terminal UI settings.
type TUIConfig struct {
	Theme        string  `toml:"theme"`
	AutoRotate   bool    `toml:"auto_rotate"`
	RotateSpeed  float64 `toml:"rotate_speed"`
	HideTimeline bool    `toml:"hide_timeline"`
}

// ServerConfig holds viewer server settings.
type ServerConfig struct {
	Addr string `toml:"addr"`
	Open bool   `toml:"open"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}
