package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/tessro/mocap/internal/config"
	mocaperrors "github.com/tessro/mocap/internal/errors"
)

type valueKind int

const (
	kindString valueKind = iota
	kindInt
	kindFloat
	kindBool
)

// configKeys lists the keys accepted by 'config set'.
var configKeys = map[string]valueKind{
	"playback.scale":           kindFloat,
	"playback.y_offset":        kindFloat,
	"playback.speed":           kindFloat,
	"playback.step_ms":         kindInt,
	"playback.fps":             kindInt,
	"playback.hide_indicators": kindBool,
	"library.dir":              kindString,
	"library.database":         kindString,
	"fetch.timeout":            kindInt,
	"fetch.retries":            kindInt,
	"tail.milestone":           kindInt,
	"tail.timestamps":          kindBool,
	"tail.format":              kindString,
	"tui.theme":                kindString,
	"tui.auto_rotate":          kindBool,
	"tui.rotate_speed":         kindFloat,
	"tui.hide_timeline":        kindBool,
	"server.addr":              kindString,
	"server.open":              kindBool,
	"log.level":                kindString,
	"log.file":                 kindString,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `Commands for viewing and editing mocap configuration.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the current configuration values.`,
	RunE:  runConfigShow,
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Edit configuration file",
	Long:  `Open the configuration file in your default editor.`,
	RunE:  runConfigEdit,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	Long:  `Create a new configuration file with default values.`,
	RunE:  runConfigInit,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value.

Supported keys:
  playback.scale      Divisor applied to raw positions
  playback.y_offset   Added to every vertical position
  playback.speed      Default speed multiplier
  playback.step_ms    Single-step length in milliseconds
  library.dir         Directory searched for recordings
  tui.theme           auto, dark or light
  server.addr         Viewer listen address
  log.level           debug, info, warn or error

Run 'mocap config show' for the full list.

Examples:
  mocap config set library.dir ~/recordings
  mocap config set playback.speed 0.5`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configSetupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Interactively set common options",
	RunE:  runConfigSetup,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configEditCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configSetupCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	if JSONOutput() {
		return json.NewEncoder(out).Encode(cfg)
	}

	encoder := toml.NewEncoder(out)
	encoder.Indent = "  "
	return encoder.Encode(cfg)
}

func runConfigEdit(cmd *cobra.Command, args []string) error {
	configPath := getConfigPath()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return mocaperrors.WithSuggestion(
			fmt.Errorf("%s: %w", configPath, mocaperrors.ErrConfigNotFound),
			"Run 'mocap config init' first")
	}

	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = os.Getenv("VISUAL")
	}
	if editor == "" {
		for _, e := range []string{"nano", "vim", "vi", "notepad"} {
			if _, err := exec.LookPath(e); err == nil {
				editor = e
				break
			}
		}
	}
	if editor == "" {
		return errors.New("no editor found. Set EDITOR environment variable")
	}

	editorCmd := exec.Command(editor, configPath)
	editorCmd.Stdin = os.Stdin
	editorCmd.Stdout = os.Stdout
	editorCmd.Stderr = os.Stderr

	return editorCmd.Run()
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	configPath := getConfigPath()

	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("config file already exists at %s", configPath)
	}

	if err := writeConfig(configPath, config.Default()); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if JSONOutput() {
		return json.NewEncoder(out).Encode(map[string]string{
			"status": "created",
			"path":   configPath,
		})
	}
	fmt.Fprintf(out, "Created config file: %s\n", configPath)
	fmt.Fprintln(out, "\nNext steps:")
	fmt.Fprintln(out, "  1. Point library.dir at your recordings: mocap config set library.dir <dir>")
	fmt.Fprintln(out, "  2. Run 'mocap ui' to pick a recording and play it")
	return nil
}

func getConfigPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return config.Path()
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key, value := args[0], args[1]

	typed, err := parseConfigValue(key, value)
	if err != nil {
		return err
	}

	configPath := getConfigPath()
	if err := setConfigValues(configPath, map[string]any{key: typed}); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if JSONOutput() {
		return json.NewEncoder(out).Encode(map[string]string{
			"status": "updated",
			"key":    key,
			"value":  value,
		})
	}
	fmt.Fprintf(out, "Set %s = %s\n", key, value)
	return nil
}

// parseConfigValue converts value to the type stored under key.
func parseConfigValue(key, value string) (any, error) {
	kind, ok := configKeys[key]
	if !ok {
		return nil, fmt.Errorf("unknown key %q (known: %s)", key, strings.Join(knownKeys(), ", "))
	}

	switch kind {
	case kindInt:
		i, err := strconv.Atoi(value)
		if err != nil {
			return nil, fmt.Errorf("value must be an integer for %s", key)
		}
		return i, nil
	case kindFloat:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, fmt.Errorf("value must be a number for %s", key)
		}
		return f, nil
	case kindBool:
		switch strings.ToLower(value) {
		case "true", "1", "yes", "on":
			return true, nil
		case "false", "0", "no", "off":
			return false, nil
		}
		return nil, fmt.Errorf("value must be true or false for %s", key)
	default:
		return value, nil
	}
}

func knownKeys() []string {
	keys := make([]string, 0, len(configKeys))
	for k := range configKeys {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// setConfigValues merges values into the TOML file at path, creating it if
// needed, and validates the result before writing.
func setConfigValues(path string, values map[string]any) error {
	raw := make(map[string]any)
	if data, err := os.ReadFile(path); err == nil {
		if _, err := toml.Decode(string(data), &raw); err != nil {
			return fmt.Errorf("failed to parse config: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to read config: %w", err)
	}

	for key, value := range values {
		section, field, ok := strings.Cut(key, ".")
		if !ok {
			return errors.New("invalid key format. Use 'section.key' (e.g., library.dir)")
		}
		sectionMap, ok := raw[section].(map[string]any)
		if !ok {
			sectionMap = make(map[string]any)
			raw[section] = sectionMap
		}
		sectionMap[field] = value
	}

	var check config.Config
	if err := roundTrip(raw, &check); err != nil {
		return err
	}
	check.ApplyDefaults()
	if err := check.Validate(); err != nil {
		return fmt.Errorf("%w: %w", mocaperrors.ErrInvalidConfig, err)
	}

	return writeConfig(path, raw)
}

func roundTrip(raw map[string]any, into *config.Config) error {
	var sb strings.Builder
	if err := toml.NewEncoder(&sb).Encode(raw); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if _, err := toml.Decode(sb.String(), into); err != nil {
		return fmt.Errorf("%w: %w", mocaperrors.ErrInvalidConfig, err)
	}
	return nil
}

func writeConfig(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	defer func() { _ = f.Close() }()

	if err := encodeConfig(f, v); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func encodeConfig(w io.Writer, v any) error {
	_, _ = fmt.Fprintln(w, "# Mocap Configuration")
	_, _ = fmt.Fprintln(w, "# https://github.com/tessro/mocap")
	_, _ = fmt.Fprintln(w, "")

	encoder := toml.NewEncoder(w)
	encoder.Indent = "  "
	return encoder.Encode(v)
}

func runConfigSetup(cmd *cobra.Command, args []string) error {
	dir := cfg.Library.Dir
	addr := cfg.Server.Addr
	theme := cfg.TUI.Theme
	autoRotate := cfg.TUI.AutoRotate
	speed := strconv.FormatFloat(cfg.Playback.Speed, 'g', -1, 64)

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Recording library").
				Description("Directory searched when no recording is given").
				Value(&dir),
			huh.NewInput().
				Title("Playback speed").
				Validate(func(s string) error {
					f, err := strconv.ParseFloat(s, 64)
					if err != nil || f <= 0 {
						return errors.New("enter a positive number")
					}
					return nil
				}).
				Value(&speed),
		),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Theme").
				Options(
					huh.NewOption("Detect from terminal", "auto"),
					huh.NewOption("Dark", "dark"),
					huh.NewOption("Light", "light"),
				).
				Value(&theme),
			huh.NewConfirm().
				Title("Rotate the camera on start?").
				Value(&autoRotate),
			huh.NewInput().
				Title("Viewer address").
				Value(&addr),
		),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("setup cancelled: %w", err)
	}

	s, _ := strconv.ParseFloat(speed, 64)
	configPath := getConfigPath()
	err := setConfigValues(configPath, map[string]any{
		"library.dir":     dir,
		"playback.speed":  s,
		"tui.theme":       theme,
		"tui.auto_rotate": autoRotate,
		"server.addr":     addr,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Saved %s\n", configPath)
	return nil
}
