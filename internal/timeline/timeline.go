// Package timeline maps pointer input on a progress bar to seek requests and
// playback progress back to the bar's fill.
package timeline

import (
	"log/slog"
	"math"

	"github.com/tessro/mocap/internal/events"
)

// Timeline is a horizontal progress bar. It never seeks on its own: clicks
// become SeekRequest events on its bus.
type Timeline struct {
	bus    *events.Bus
	logger *slog.Logger

	left  float64
	width float64
	fill  float64
}

// New creates a timeline with a registered SeekRequest channel.
func New(name string, logger *slog.Logger) *Timeline {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "timeline", "timeline", name)
	bus := events.NewBus(name+"-timeline", logger)
	bus.Register(events.KindSeekRequest)
	return &Timeline{bus: bus, logger: logger}
}

// Bus returns the bus carrying SeekRequest events.
func (t *Timeline) Bus() *events.Bus { return t.bus }

// SetBounds records where the bar sits along the pointer axis.
func (t *Timeline) SetBounds(left, width float64) {
	t.left = left
	t.width = width
}

// Bounds returns the bar's left edge and width.
func (t *Timeline) Bounds() (left, width float64) {
	return t.left, t.width
}

// Update sets the fill from a progress fraction, clamped to [0, 1].
func (t *Timeline) Update(progress float64) {
	if math.IsNaN(progress) {
		progress = 0
	}
	t.fill = math.Max(0, math.Min(1, progress))
}

// Fill returns the fill fraction.
func (t *Timeline) Fill() float64 { return t.fill }

// FillPercent returns the fill as a percentage of the bar width.
func (t *Timeline) FillPercent() float64 { return t.fill * 100 }

// FillWidth returns the filled width in the same units as cells.
func (t *Timeline) FillWidth(cells int) int {
	return FilledCells(t.fill, cells)
}

// FilledCells returns how many of width cells a progress fraction fills.
func FilledCells(fraction float64, width int) int {
	if width <= 0 || math.IsNaN(fraction) {
		return 0
	}
	filled := int(fraction * float64(width))
	return max(0, min(width, filled))
}

// Click converts a pointer position into a normalized seek request and
// dispatches it. It returns false when the bar has no usable width.
func (t *Timeline) Click(x float64) bool {
	if t.width <= 0 {
		t.logger.Warn("ignoring click on timeline without width", "x", x, "width", t.width)
		return false
	}
	pos := (x - t.left) / t.width
	if math.IsNaN(pos) {
		t.logger.Warn("ignoring click outside numeric range", "x", x, "left", t.left, "width", t.width)
		return false
	}
	pos = math.Max(0, math.Min(1, pos))
	t.bus.Dispatch(events.SeekRequest{Position: pos})
	return true
}

// Contains reports whether x falls on the bar.
func (t *Timeline) Contains(x float64) bool {
	return t.width > 0 && x >= t.left && x < t.left+t.width
}
