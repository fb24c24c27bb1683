package components

import (
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/tessro/mocap/internal/core"
	"github.com/tessro/mocap/internal/tui/styles"
)

// Scene bounds in normalized units. Heads sit around y = 2.
const (
	sceneHalfWidth = 2.5
	sceneHeight    = 4.0
)

var targetGlyphs = map[core.Target]string{
	core.TargetHMD:             "H",
	core.TargetLeftController:  "L",
	core.TargetRightController: "R",
}

// Project maps a position to a grid cell for a camera orbiting the vertical
// axis at azimuth radians. ok is false when the point falls off the grid.
func Project(p [3]float64, azimuth float64, width, height int) (col, row int, ok bool) {
	if width <= 0 || height <= 0 {
		return 0, 0, false
	}
	sin, cos := math.Sincos(azimuth)
	sx := p[0]*cos - p[2]*sin

	fx := (sx + sceneHalfWidth) / (2 * sceneHalfWidth)
	fy := p[1] / sceneHeight
	col = int(math.Round(fx * float64(width-1)))
	row = height - 1 - int(math.Round(fy*float64(height-1)))
	if col < 0 || col >= width || row < 0 || row >= height {
		return 0, 0, false
	}
	return col, row, true
}

// Scene draws poses as colored glyphs on a width×height grid with a floor
// along the bottom row. Indicators are drawn first so primaries win ties.
func Scene(poses map[core.Target]core.Pose, azimuth float64, width, height int) string {
	if width <= 0 || height <= 0 {
		return ""
	}

	cells := make([][]string, height)
	for r := range cells {
		cells[r] = make([]string, width)
		fill := " "
		if r == height-1 {
			fill = styles.Dim.Render("·")
		}
		for c := range cells[r] {
			cells[r][c] = fill
		}
	}

	plot := func(t core.Target, glyph string, style lipgloss.Style) {
		pose, ok := poses[t]
		if !ok {
			return
		}
		pos := [3]float64{pose.Position.X(), pose.Position.Y(), pose.Position.Z()}
		if col, row, ok := Project(pos, azimuth, width, height); ok {
			cells[row][col] = style.Render(glyph)
		}
	}

	for _, t := range core.IndicatorTargets {
		plot(t, "∘", styles.Dim)
	}
	for _, t := range core.PrimaryTargets {
		style := lipgloss.NewStyle().Bold(true).Foreground(styles.DeviceColor(string(t.Device())))
		plot(t, targetGlyphs[t], style)
	}

	lines := make([]string, height)
	for r, row := range cells {
		lines[r] = strings.Join(row, "")
	}
	return strings.Join(lines, "\n")
}
