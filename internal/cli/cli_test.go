package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tessro/mocap/internal/config"
	mocaperrors "github.com/tessro/mocap/internal/errors"
	"github.com/tessro/mocap/internal/store"
)

const header = "delta_time_ms," +
	"head_pos_x,head_pos_y,head_pos_z,head_rot_x,head_rot_y,head_rot_z,head_rot_w," +
	"left_hand_pos_x,left_hand_pos_y,left_hand_pos_z,left_hand_rot_x,left_hand_rot_y,left_hand_rot_z,left_hand_rot_w," +
	"right_hand_pos_x,right_hand_pos_y,right_hand_pos_z,right_hand_rot_x,right_hand_rot_y,right_hand_rot_z,right_hand_rot_w"

func writeRecording(t *testing.T, dir, name string) string {
	t.Helper()
	var sb strings.Builder
	sb.WriteString(header + "\n")
	for _, ms := range []int{0, 500, 1000} {
		fmt.Fprintf(&sb, "%d,0,100,0,0,0,0,1,-25,75,10,0,0,0,1,25,75,10,0,0,0,1\n", ms)
	}
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(sb.String()), 0o644))
	return path
}

type env struct {
	dir    string
	config string
}

func newEnv(t *testing.T) env {
	t.Helper()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.toml")
	content := fmt.Sprintf(`
[library]
  dir = %q
  database = %q

[log]
  level = "error"
`, dir, filepath.Join(dir, "bookmarks.sqlite"))
	require.NoError(t, os.WriteFile(cfgPath, []byte(content), 0o644))
	return env{dir: dir, config: cfgPath}
}

// execute runs the root command with fresh flag state.
func (e env) execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	jsonOut, verbose, cfgFile = false, false, ""
	playFlags = sessionFlags{}
	playMilestone = -1
	playFormat = ""

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(append([]string{"--config", e.config}, args...))
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	err := rootCmd.Execute()
	return out.String(), err
}

func TestParseConfigValue(t *testing.T) {
	tests := []struct {
		key, value string
		want       any
		wantErr    string
	}{
		{"playback.speed", "0.5", 0.5, ""},
		{"playback.step_ms", "250", 250, ""},
		{"tui.auto_rotate", "yes", true, ""},
		{"server.open", "off", false, ""},
		{"library.dir", "/rec", "/rec", ""},
		{"playback.fps", "fast", nil, "integer"},
		{"playback.scale", "big", nil, "number"},
		{"tail.timestamps", "maybe", nil, "true or false"},
		{"display.width", "80", nil, "unknown key"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			got, err := parseConfigValue(tt.key, tt.value)
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSetConfigValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	require.NoError(t, setConfigValues(path, map[string]any{"library.dir": "/rec"}))
	require.NoError(t, setConfigValues(path, map[string]any{"playback.speed": 2.0}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "# Mocap Configuration"))

	c, err := config.LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, "/rec", c.Library.Dir)
	assert.Equal(t, 2.0, c.Playback.Speed)
}

func TestSetConfigValuesValidates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	err := setConfigValues(path, map[string]any{"tui.theme": "neon"})
	assert.ErrorIs(t, err, mocaperrors.ErrInvalidConfig)
	assert.NoFileExists(t, path)
}

func TestUniqueNames(t *testing.T) {
	got := uniqueNames([]string{"a/walk.csv", "b/walk.csv", "https://x.test/jump.csv?v=1"})
	assert.Equal(t, []string{"walk", "walk#2", "jump"}, got)
}

func TestBookmarkKey(t *testing.T) {
	assert.Equal(t, "https://x.test/a.csv", bookmarkKey("https://x.test/a.csv"))

	key := bookmarkKey("walk.csv")
	assert.True(t, filepath.IsAbs(key))
	assert.Equal(t, "walk.csv", filepath.Base(key))
}

func TestFormatProgress(t *testing.T) {
	assert.Equal(t, "━━━━━─────", FormatProgress(0.5, 10))
	assert.Equal(t, "──────────", FormatProgress(-1, 10))
	assert.Equal(t, "━━━━━━━━━━", FormatProgress(3, 10))
}

func TestPlayPrintsEventsAndSavesBookmark(t *testing.T) {
	e := newEnv(t)
	rec := writeRecording(t, e.dir, "walk.csv")

	out, err := e.execute(t, "play", rec, "--json", "--speed", "20", "--save")
	require.NoError(t, err)

	var types []string
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		var ev jsonEvent
		require.NoError(t, json.Unmarshal([]byte(line), &ev), line)
		assert.Equal(t, "walk", ev.Engine)
		types = append(types, ev.Type)
	}
	require.NotEmpty(t, types)
	assert.Equal(t, "start", types[0])
	assert.Equal(t, "complete", types[len(types)-1])

	st, err := store.Open(filepath.Join(e.dir, "bookmarks.sqlite"))
	require.NoError(t, err)
	defer st.Close()
	b, err := st.Get(bookmarkKey(rec))
	require.NoError(t, err)
	assert.Equal(t, 1.0, b.Position)
	assert.Equal(t, "walk", b.Name)
}

func TestPlayEmptyRecordingExits(t *testing.T) {
	e := newEnv(t)
	rec := filepath.Join(e.dir, "empty.csv")
	require.NoError(t, os.WriteFile(rec, []byte(header+"\n"), 0o644))

	out, err := e.execute(t, "play", rec, "--json")
	require.NoError(t, err)

	var types []string
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		var ev jsonEvent
		require.NoError(t, json.Unmarshal([]byte(line), &ev), line)
		types = append(types, ev.Type)
	}
	assert.Equal(t, []string{"start", "complete"}, types)
}

func TestPlayMissingRecording(t *testing.T) {
	e := newEnv(t)

	_, err := e.execute(t, "play", filepath.Join(e.dir, "missing.csv"))
	assert.ErrorIs(t, err, mocaperrors.ErrRecordingNotFound)
}

func TestInfo(t *testing.T) {
	e := newEnv(t)
	rec := writeRecording(t, e.dir, "walk.csv")

	out, err := e.execute(t, "info", rec, "--json")
	require.NoError(t, err)

	var infos []recordingInfo
	require.NoError(t, json.Unmarshal([]byte(out), &infos))
	require.Len(t, infos, 1)
	assert.Equal(t, "walk", infos[0].Name)
	assert.Equal(t, 3, infos[0].Rows)
	assert.Equal(t, int64(1000), infos[0].DurationMS)
	assert.Equal(t, 3, infos[0].Samples["head"])
}

func TestInfoListsLibrary(t *testing.T) {
	e := newEnv(t)
	writeRecording(t, e.dir, "walk.csv")
	writeRecording(t, e.dir, "jump.csv")

	out, err := e.execute(t, "info")
	require.NoError(t, err)
	assert.Contains(t, out, "walk")
	assert.Contains(t, out, "jump")
	assert.Contains(t, out, "NAME")
}

func TestBookmarksCommands(t *testing.T) {
	e := newEnv(t)
	st, err := store.Open(filepath.Join(e.dir, "bookmarks.sqlite"))
	require.NoError(t, err)
	_, err = st.Save(store.Bookmark{Path: "/rec/walk.csv", Name: "walk", Position: 0.5})
	require.NoError(t, err)
	require.NoError(t, st.Close())

	out, err := e.execute(t, "bookmarks", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "walk")
	assert.Contains(t, out, "/rec/walk.csv")

	out, err = e.execute(t, "bookmarks", "clear")
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted 1 bookmark(s)")

	out, err = e.execute(t, "bookmarks", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No bookmarks")
}

func TestConfigSetCommand(t *testing.T) {
	e := newEnv(t)

	out, err := e.execute(t, "config", "set", "playback.speed", "0.5")
	require.NoError(t, err)
	assert.Contains(t, out, "Set playback.speed = 0.5")

	c, err := config.LoadFrom(e.config)
	require.NoError(t, err)
	assert.Equal(t, 0.5, c.Playback.Speed)
	assert.Equal(t, e.dir, c.Library.Dir)
}

func TestVersionJSON(t *testing.T) {
	e := newEnv(t)

	out, err := e.execute(t, "version", "--json")
	require.NoError(t, err)

	var info versionInfo
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, Version, info.Version)
}
