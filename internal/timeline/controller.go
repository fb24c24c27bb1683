package timeline

import (
	"log/slog"

	"github.com/tessro/mocap/internal/events"
)

// Engine is the playback surface a timeline drives.
type Engine interface {
	Name() string
	IsReady() bool
	Progress() float64
	Seek(position float64) error
	Bus() *events.Bus
}

// Controller connects one timeline to one engine: seek requests become
// engine seeks, and engine steps refresh the fill.
type Controller struct {
	engine   Engine
	timeline *Timeline
	logger   *slog.Logger
}

// Bind wires a timeline to an engine. The engine need not be ready; nothing
// flows until it is.
func Bind(engine Engine, tl *Timeline, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Controller{
		engine:   engine,
		timeline: tl,
		logger:   logger.With("component", "timeline", "engine", engine.Name()),
	}

	events.On(tl.Bus(), c.onSeekRequest)
	events.On(engine.Bus(), func(events.Step) { c.refresh() })
	events.On(engine.Bus(), func(events.Seek) { c.refresh() })
	return c
}

// Timeline returns the bound timeline.
func (c *Controller) Timeline() *Timeline { return c.timeline }

func (c *Controller) refresh() {
	if !c.engine.IsReady() {
		return
	}
	c.timeline.Update(c.engine.Progress())
}

func (c *Controller) onSeekRequest(req events.SeekRequest) {
	if !c.engine.IsReady() {
		c.logger.Debug("dropping seek request before ready", "position", req.Position)
		return
	}
	if err := c.engine.Seek(req.Position); err != nil {
		c.logger.Warn("seek failed", "position", req.Position, "err", err)
	}
}
