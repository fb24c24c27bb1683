package cli

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/tessro/mocap/internal/logging"
	"github.com/tessro/mocap/internal/store"
	"github.com/tessro/mocap/internal/tui"
	"github.com/tessro/mocap/internal/tui/styles"
)

var (
	uiFlags      sessionFlags
	uiNoTimeline bool
	uiRotate     bool
)

var uiCmd = &cobra.Command{
	Use:     "ui [recording...]",
	Aliases: []string{"tui", "view"},
	Short:   "Play recordings in the terminal viewer",
	Long: `Play recordings side by side in the interactive terminal viewer. Each
recording gets its own viewport with a scene, a timeline and a status line.

Keyboard shortcuts:
  Space        Toggle camera rotation
  p            Pause/resume
  .            Single step
  ←/→          Seek back/forward
  r            Restart
  +/-          Faster/slower
  Tab          Switch viewport
  s            Re-sync all viewports
  b            Bookmark focused recording
  ?            Help
  q, Ctrl+C    Quit

Click a timeline to seek.`,
	RunE: runUI,
}

func init() {
	uiFlags.register(uiCmd)
	uiCmd.Flags().BoolVar(&uiNoTimeline, "no-timeline", false, "Hide the timeline bar")
	uiCmd.Flags().BoolVar(&uiRotate, "rotate", false, "Start with the camera rotating")
	rootCmd.AddCommand(uiCmd)
}

func runUI(cmd *cobra.Command, args []string) error {
	sources, err := resolveSources(args, true)
	if err != nil {
		return err
	}

	// Stderr belongs to the terminal UI while it runs.
	if cfg.Log.File == "" {
		logger = logging.Discard()
	} else {
		l, closer, err := logging.New(cfg.Log, io.Discard, verbose)
		if err != nil {
			return err
		}
		defer func() { _ = closer.Close() }()
		logger = l
	}

	styles.ApplyTheme(cfg.TUI.Theme)

	var bookmarks *store.Store
	if bm, err := openStore(); err == nil {
		bookmarks = bm
		defer func() { _ = bookmarks.Close() }()
	} else {
		logger.Warn("bookmarks unavailable", "err", err)
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	engines := startEngines(ctx, sources, uiFlags, bookmarks)
	tuiSources := make([]tui.Source, len(engines))
	for i, e := range engines {
		tuiSources[i] = tui.Source{Engine: e, Path: bookmarkKey(sources[i])}
	}

	err = tui.Run(tuiSources, tui.Options{
		FPS:          cfg.Playback.FPS,
		Step:         time.Duration(cfg.Playback.StepMS) * time.Millisecond,
		ShowTimeline: !cfg.TUI.HideTimeline && !uiNoTimeline,
		AutoRotate:   cfg.TUI.AutoRotate || uiRotate,
		RotateSpeed:  cfg.TUI.RotateSpeed,
		Sync:         uiFlags.sync,
		Milestone:    cfg.Tail.Milestone,
		Bookmarks:    bookmarks,
		Logger:       logger,
	})

	if bookmarks != nil && uiFlags.save {
		if saveErr := saveBookmarks(bookmarks, engines, sources); saveErr != nil {
			err = errors.Join(err, saveErr)
		}
	}
	return err
}
