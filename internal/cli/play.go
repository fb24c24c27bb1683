package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tessro/mocap/internal/playback"
	"github.com/tessro/mocap/internal/store"
	"github.com/tessro/mocap/internal/syncgroup"
	"github.com/tessro/mocap/internal/tail"
)

var (
	playFlags      sessionFlags
	playNoEmoji    bool
	playTimestamps bool
	playFormat     string
	playMilestone  int
)

var playCmd = &cobra.Command{
	Use:   "play [recording...]",
	Short: "Play recordings headlessly and print playback events",
	Long: `Play one or more recordings without a display and print each playback
event as it happens. Recordings are CSV files or http(s) URLs. Without
arguments, pick from the library directory.

Playback stops once every recording has finished, unless --loop is set.

Examples:
  mocap play walk.csv
  mocap play a.csv b.csv --sync
  mocap play walk.csv --format "{{.Time}} {{.Type}} {{.Elapsed}}"
  mocap play walk.csv --json`,
	RunE: runPlay,
}

func init() {
	playFlags.register(playCmd)
	playCmd.Flags().BoolVar(&playNoEmoji, "no-emoji", false, "Disable emoji in output")
	playCmd.Flags().BoolVar(&playTimestamps, "timestamps", false, "Show timestamps (default: tail.timestamps)")
	playCmd.Flags().StringVar(&playFormat, "format", "", "Custom Go template for each event")
	playCmd.Flags().IntVar(&playMilestone, "milestone", -1, "Progress percent between milestone events, 0 to disable (default: tail.milestone)")
	rootCmd.AddCommand(playCmd)
}

type jsonEvent struct {
	Type      string    `json:"type"`
	Engine    string    `json:"engine"`
	Timestamp time.Time `json:"timestamp"`
	ElapsedMS int64     `json:"elapsed_ms"`
	Progress  float64   `json:"progress"`
	Running   bool      `json:"running"`
	Milestone int       `json:"milestone,omitempty"`
}

func toJSONEvent(e tail.Event) jsonEvent {
	return jsonEvent{
		Type:      e.Type.String(),
		Engine:    e.Engine,
		Timestamp: e.Timestamp,
		ElapsedMS: e.Current.Elapsed.Milliseconds(),
		Progress:  e.Current.Progress(),
		Running:   e.Current.Running,
		Milestone: e.Milestone,
	}
}

func runPlay(cmd *cobra.Command, args []string) error {
	sources, err := resolveSources(args, true)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var bookmarks *store.Store
	if playFlags.needsStore() {
		bookmarks, err = openStore()
		if err != nil {
			return err
		}
		defer func() { _ = bookmarks.Close() }()
	}

	engines := startEngines(ctx, sources, playFlags, bookmarks)
	loop := playback.NewLoop(cfg.Playback.FPS, nil, logger)

	milestone := cfg.Tail.Milestone
	if playMilestone >= 0 {
		milestone = playMilestone
	}
	watchers := make([]*tail.Watcher, len(engines))
	for i, e := range engines {
		loop.Add(e)
		watchers[i] = tail.NewWatcher(e, milestone)
	}

	formatter := tail.NewFormatter(
		tail.WithEmoji(!playNoEmoji),
		tail.WithTimestamp(playTimestamps || cfg.Tail.Timestamps),
		tail.WithTemplate(firstNonEmpty(playFormat, cfg.Tail.Format)),
	)

	g, gctx := errgroup.WithContext(ctx)
	runCtx, cancel := context.WithCancel(gctx)
	defer cancel()

	g.Go(func() error {
		return ignoreCanceled(loop.Run(runCtx))
	})
	for _, e := range engines {
		g.Go(func() error {
			if err := e.Ready().Wait(runCtx); err != nil && runCtx.Err() == nil {
				return err
			}
			return nil
		})
	}
	if playFlags.sync && len(engines) > 1 {
		group := syncgroup.New(logger)
		for _, e := range engines {
			group.Register(e)
		}
		g.Go(func() error {
			return ignoreCanceled(group.SynchronizeOn(runCtx, loop))
		})
	}
	g.Go(func() error {
		defer cancel()
		return printEvents(runCtx, cmd.OutOrStdout(), watchers, formatter, !playFlags.loop)
	})

	err = g.Wait()

	if bookmarks != nil && playFlags.save {
		if saveErr := saveBookmarks(bookmarks, engines, sources); saveErr != nil {
			err = errors.Join(err, saveErr)
		}
	}
	return err
}

// printEvents writes events from every watcher until ctx is done or, with
// stopAtEnd, every watcher has reported completion.
func printEvents(ctx context.Context, out io.Writer, watchers []*tail.Watcher, formatter *tail.Formatter, stopAtEnd bool) error {
	merged := make(chan tail.Event)
	for _, w := range watchers {
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case ev := <-w.Events():
					select {
					case merged <- ev:
					case <-ctx.Done():
						return
					}
				}
			}
		}()
	}

	enc := json.NewEncoder(out)
	completed := make(map[string]bool)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-merged:
			if JSONOutput() {
				if err := enc.Encode(toJSONEvent(ev)); err != nil {
					return err
				}
			} else if _, err := fmt.Fprintln(out, formatter.Format(ev)); err != nil {
				return err
			}

			if ev.Type == tail.EventComplete {
				completed[ev.Engine] = true
			}
			if stopAtEnd && len(completed) == len(watchers) {
				return nil
			}
		}
	}
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
