package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/tessro/mocap/internal/core"
	mocaperrors "github.com/tessro/mocap/internal/errors"
	"github.com/tessro/mocap/internal/motion"
	"github.com/tessro/mocap/internal/playback"
	"github.com/tessro/mocap/internal/store"
	"github.com/tessro/mocap/internal/wizard"
)

// sessionFlags are the playback flags shared by play, ui and serve.
type sessionFlags struct {
	sync         bool
	loop         bool
	speed        float64
	resume       bool
	save         bool
	noIndicators bool
}

func (f *sessionFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.sync, "sync", false, "Start all recordings on a common clock")
	cmd.Flags().BoolVar(&f.loop, "loop", false, "Wrap to the start instead of stopping at the end")
	cmd.Flags().Float64Var(&f.speed, "speed", 0, "Playback speed multiplier (default: playback.speed)")
	cmd.Flags().BoolVar(&f.resume, "resume", false, "Start from saved bookmarks")
	cmd.Flags().BoolVar(&f.save, "save", false, "Bookmark positions on exit")
	cmd.Flags().BoolVar(&f.noIndicators, "no-indicators", false, "Hide the marker at each device position")
}

func (f sessionFlags) timeScale() float64 {
	if f.speed > 0 {
		return f.speed
	}
	return cfg.Playback.Speed
}

func (f sessionFlags) needsStore() bool {
	return f.resume || f.save
}

func newLoader() *motion.Loader {
	fetcher := motion.NewFetcher(
		time.Duration(cfg.Fetch.Timeout)*time.Second,
		motion.WithRetries(cfg.Fetch.Retries),
		motion.WithFetchLogger(logger),
	)
	return motion.NewLoader(motion.Options{
		Scale:   cfg.Playback.Scale,
		YOffset: cfg.Playback.YOffset,
	}, fetcher, logger)
}

// resolveSources returns args, or asks the user to pick from the library
// when none were given.
func resolveSources(args []string, multi bool) ([]string, error) {
	if !wizard.NeedsRecording(args) {
		return args, nil
	}

	picked, err := wizard.NewInteractive(cfg.Library.Dir).PromptRecordings(multi)
	if err != nil {
		return nil, err
	}
	if len(picked) == 0 {
		return nil, mocaperrors.WithSuggestion(
			fmt.Errorf("no recording given: %w", mocaperrors.ErrRecordingNotFound),
			"Pass a recording path or URL, e.g. 'mocap play walk.csv'")
	}
	return picked, nil
}

func openStore() (*store.Store, error) {
	path := cfg.Library.Database
	if path == "" {
		p, err := store.DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	return store.Open(path)
}

// bookmarkKey identifies a recording across runs.
func bookmarkKey(source string) string {
	if motion.IsRemote(source) {
		return source
	}
	if abs, err := filepath.Abs(source); err == nil {
		return abs
	}
	return source
}

// uniqueNames returns display names for sources, suffixing repeats so each
// engine can be told apart in event output.
func uniqueNames(sources []string) []string {
	seen := make(map[string]int)
	names := make([]string, len(sources))
	for i, src := range sources {
		name := motion.DisplayName(src)
		seen[name]++
		if n := seen[name]; n > 1 {
			name = fmt.Sprintf("%s#%d", name, n)
		}
		names[i] = name
	}
	return names
}

// startEngines creates an engine per source and starts its load.
func startEngines(ctx context.Context, sources []string, f sessionFlags, bookmarks *store.Store) []*playback.Engine {
	loader := newLoader()
	names := uniqueNames(sources)

	engines := make([]*playback.Engine, len(sources))
	for i, src := range sources {
		opts := []playback.Option{
			playback.WithLogger(logger),
			playback.WithIndicators(!cfg.Playback.HideIndicators && !f.noIndicators),
			playback.WithLoop(f.loop),
			playback.WithTimeScale(f.timeScale()),
		}
		if f.resume && bookmarks != nil {
			if b, err := bookmarks.Get(bookmarkKey(src)); err == nil {
				opts = append(opts, playback.WithStartPosition(b.Position))
			} else {
				logger.Debug("no bookmark", "source", src, "err", err)
			}
		}

		e := playback.New(names[i], opts...)
		e.Load(ctx, func(ctx context.Context) (*core.Session, error) {
			return loader.Load(ctx, src)
		})
		engines[i] = e
	}
	return engines
}

// saveBookmarks records the position of every ready engine. It must run on
// the goroutine that drives the engines, or after it has stopped.
func saveBookmarks(st *store.Store, engines []*playback.Engine, sources []string) error {
	result := &mocaperrors.PartialResult[int]{}
	for i, e := range engines {
		if !e.IsReady() {
			continue
		}
		state := e.State()
		_, err := st.Save(store.Bookmark{
			Path:     bookmarkKey(sources[i]),
			Name:     e.Name(),
			Position: state.Progress(),
			Elapsed:  state.Elapsed,
			Duration: state.Duration,
		})
		if err != nil {
			result.AddError(err)
			continue
		}
		result.Data++
	}
	if result.HasErrors() {
		return fmt.Errorf("save bookmarks: %s", result.ErrorSummary())
	}
	logger.Info("saved bookmarks", "count", result.Data)
	return nil
}
