package cli

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tessro/mocap/internal/browser"
	mocaperrors "github.com/tessro/mocap/internal/errors"
	"github.com/tessro/mocap/internal/playback"
	"github.com/tessro/mocap/internal/server"
	"github.com/tessro/mocap/internal/syncgroup"
)

var (
	serveFlags sessionFlags
	serveAddr  string
	serveOpen  bool
)

var serveCmd = &cobra.Command{
	Use:   "serve [recording...]",
	Short: "Serve recordings to a browser viewer",
	Long: `Play recordings and stream their frames over WebSocket to a browser
viewer. Every connected client sees the same playback and can scrub, pause
and step any viewport.

Examples:
  mocap serve walk.csv --open
  mocap serve a.csv b.csv --sync --addr :8080`,
	RunE: runServe,
}

func init() {
	serveFlags.register(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default: server.addr)")
	serveCmd.Flags().BoolVar(&serveOpen, "open", false, "Open the viewer in a browser")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	sources, err := resolveSources(args, true)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	addr := firstNonEmpty(serveAddr, cfg.Server.Addr)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return mocaperrors.WithSuggestion(
			fmt.Errorf("listen on %s: %w: %w", addr, mocaperrors.ErrNetworkError, err),
			"Pick another address with --addr or server.addr")
	}

	engines := startEngines(ctx, sources, serveFlags, nil)
	loop := playback.NewLoop(cfg.Playback.FPS, nil, logger)
	hub := server.NewHub(loop,
		server.WithLogger(logger),
		server.WithDefaultStep(time.Duration(cfg.Playback.StepMS)*time.Millisecond),
	)
	for _, e := range engines {
		loop.Add(e)
		hub.Add(e)
	}

	url := "http://" + ln.Addr().String()
	if JSONOutput() {
		_ = json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{
			"status": "listening",
			"url":    url,
			"count":  len(engines),
		})
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "Serving %d recording(s) at %s\n", len(engines), url)
	}
	if serveOpen || cfg.Server.Open {
		if err := browser.Open(url); err != nil {
			logger.Warn("could not open browser", "url", url, "err", err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return loop.Run(gctx)
	})
	g.Go(func() error {
		return hub.Serve(gctx, ln)
	})
	for _, e := range engines {
		g.Go(func() error {
			// A failed viewport stays listed as not ready.
			if err := e.Ready().Wait(gctx); err != nil && gctx.Err() == nil {
				logger.Error("recording failed to load", "engine", e.Name(), "err", err)
			}
			return nil
		})
	}
	if serveFlags.sync && len(engines) > 1 {
		group := syncgroup.New(logger)
		for _, e := range engines {
			group.Register(e)
		}
		g.Go(func() error {
			if err := group.SynchronizeOn(gctx, loop); err != nil && gctx.Err() == nil {
				logger.Error("sync failed", "err", err)
			}
			return nil
		})
	}

	return g.Wait()
}
