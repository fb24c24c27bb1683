package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/tessro/mocap/internal/core"
	mocaperrors "github.com/tessro/mocap/internal/errors"
	"github.com/tessro/mocap/internal/motion"
	"github.com/tessro/mocap/internal/tail"
)

var infoCmd = &cobra.Command{
	Use:   "info [recording...]",
	Short: "Show recording details",
	Long: `Parse recordings and show their duration, row count and tracked
devices. Without arguments, list the recordings in the library directory.`,
	RunE: runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

type recordingInfo struct {
	Name         string         `json:"name"`
	Source       string         `json:"source"`
	Rows         int            `json:"rows"`
	DurationMS   int64          `json:"duration_ms"`
	Size         int64          `json:"size,omitempty"`
	HeadFallback bool           `json:"head_fallback"`
	Samples      map[string]int `json:"samples"`
}

func describe(source string, s *core.Session) recordingInfo {
	info := recordingInfo{
		Name:         s.Name,
		Source:       source,
		Rows:         s.Rows,
		DurationMS:   s.Duration().Milliseconds(),
		HeadFallback: s.HeadFallback,
		Samples:      make(map[string]int),
	}
	for _, d := range core.Devices {
		if t := s.Track(d); t != nil {
			info.Samples[string(d)] = t.Len()
		}
	}
	if !motion.IsRemote(source) {
		if st, err := os.Stat(source); err == nil {
			info.Size = st.Size()
		}
	}
	return info
}

func runInfo(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return listLibrary(cmd)
	}

	loader := newLoader()
	result := &mocaperrors.PartialResult[[]recordingInfo]{}
	for _, src := range args {
		s, err := loader.Load(cmd.Context(), src)
		if err != nil {
			result.AddError(err)
			continue
		}
		result.Data = append(result.Data, describe(src, s))
	}

	out := cmd.OutOrStdout()
	if JSONOutput() {
		if err := json.NewEncoder(out).Encode(result.Data); err != nil {
			return err
		}
	} else if len(result.Data) > 0 {
		table := NewTableWriter(out, "NAME", "DURATION", "ROWS", "SIZE", "HEAD", "LEFT", "RIGHT")
		for _, info := range result.Data {
			size := "-"
			if info.Size > 0 {
				size = humanize.Bytes(uint64(info.Size))
			}
			head := strconv.Itoa(info.Samples[string(core.DeviceHead)])
			if info.HeadFallback {
				head = "fallback"
			}
			table.Row(
				info.Name,
				tail.FormatElapsed(time.Duration(info.DurationMS)*time.Millisecond),
				humanize.Comma(int64(info.Rows)),
				size,
				head,
				strconv.Itoa(info.Samples[string(core.DeviceLeftHand)]),
				strconv.Itoa(info.Samples[string(core.DeviceRightHand)]),
			)
		}
		table.Flush()
	}

	if result.HasErrors() {
		if len(result.Data) == 0 {
			return result.Errors[0]
		}
		fmt.Fprintln(cmd.ErrOrStderr(), result.ErrorSummary())
	}
	return nil
}

func listLibrary(cmd *cobra.Command) error {
	entries, err := motion.List(cfg.Library.Dir)
	if err != nil {
		return fmt.Errorf("list library %s: %w", cfg.Library.Dir, err)
	}

	out := cmd.OutOrStdout()
	if JSONOutput() {
		return json.NewEncoder(out).Encode(entries)
	}
	if len(entries) == 0 {
		fmt.Fprintf(out, "No recordings in %s\n", cfg.Library.Dir)
		return nil
	}

	table := NewTableWriter(out, "NAME", "SIZE", "MODIFIED", "PATH")
	for _, e := range entries {
		table.Row(e.Name, humanize.Bytes(uint64(e.Size)), humanize.Time(e.ModTime), e.Path)
	}
	table.Flush()
	return nil
}
