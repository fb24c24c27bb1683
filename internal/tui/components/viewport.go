package components

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/tessro/mocap/internal/core"
	"github.com/tessro/mocap/internal/tui/styles"
)

// ViewportView is everything needed to draw one viewport.
type ViewportView struct {
	Name         string
	Loading      bool
	Err          error
	State        core.PlaybackState
	Poses        map[core.Target]core.Pose
	Azimuth      float64
	Fill         float64
	ShowTimeline bool
	Synced       bool
}

// Viewport displays one engine: a scene, its timeline bar and a status line.
type Viewport struct{}

// NewViewport creates a new Viewport component
func NewViewport() *Viewport {
	return &Viewport{}
}

// SceneRows returns how many scene rows fit in a panel of the given outer
// height.
func SceneRows(height int, showTimeline bool) int {
	rows := height - 2 - 1 - 1
	if showTimeline {
		rows--
	}
	if rows < 0 {
		rows = 0
	}
	return rows
}

// InnerWidth returns the content width of a panel of the given outer width.
func InnerWidth(width int) int {
	w := width - 4
	if w < 0 {
		w = 0
	}
	return w
}

// Render renders the viewport panel at the given outer size.
func (v *Viewport) Render(view ViewportView, width, height int, focused bool) string {
	inner := InnerWidth(width)
	rows := SceneRows(height, view.ShowTimeline)

	title := styles.PanelTitle(view.Name, focused)
	if view.Synced {
		title += styles.Dim.Render(" ⛓")
	}

	var body string
	switch {
	case view.Err != nil:
		body = lipgloss.NewStyle().Width(inner).Height(rows).Render(styles.ErrorText.Render(view.Err.Error()))
	case view.Loading:
		body = lipgloss.NewStyle().Width(inner).Height(rows).Render(styles.Muted.Render("Loading..."))
	default:
		body = Scene(view.Poses, view.Azimuth, inner, rows)
	}

	lines := []string{title, body}
	if view.ShowTimeline {
		lines = append(lines, styles.ProgressBar(view.Fill*100, inner))
	}
	lines = append(lines, v.renderStatus(view))

	panel := styles.Panel(focused).
		Width(width - 2).
		Height(height - 2)

	return panel.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func (v *Viewport) renderStatus(view ViewportView) string {
	if view.Loading || view.Err != nil {
		return styles.Dim.Render("--:--")
	}
	s := view.State
	status := fmt.Sprintf("%s %s / %s",
		styles.StatusIcon(s.Running),
		formatDuration(s.Elapsed),
		formatDuration(s.Duration))
	if s.TimeScale != 1 {
		status += styles.Dim.Render(fmt.Sprintf("  %.2gx", s.TimeScale))
	}
	return status
}

func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	d = d.Round(100 * time.Millisecond)
	m := d / time.Minute
	s := (d % time.Minute) / time.Second
	tenths := (d % time.Second) / (100 * time.Millisecond)
	return fmt.Sprintf("%d:%02d.%d", m, s, tenths)
}
