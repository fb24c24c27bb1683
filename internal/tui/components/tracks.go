package components

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/tessro/mocap/internal/core"
	"github.com/tessro/mocap/internal/tui/styles"
)

// Tracks lists the focused viewport's devices with their live positions.
type Tracks struct{}

// NewTracks creates a new Tracks component
func NewTracks() *Tracks {
	return &Tracks{}
}

// Render renders the tracks panel
func (t *Tracks) Render(session *core.Session, poses map[core.Target]core.Pose, width, height int, focused bool) string {
	title := styles.PanelTitle("Tracks", focused)

	var content string
	if session == nil {
		content = styles.Muted.Render("No recording loaded")
	} else {
		content = t.renderTracks(session, poses, height-3)
	}

	panel := styles.Panel(focused).
		Width(width - 2).
		Height(height - 2)

	return panel.Render(lipgloss.JoinVertical(lipgloss.Left,
		title,
		content,
	))
}

func (t *Tracks) renderTracks(session *core.Session, poses map[core.Target]core.Pose, maxLines int) string {
	lines := make([]string, 0, len(core.PrimaryTargets)+1)

	for _, target := range core.PrimaryTargets {
		d := target.Device()
		swatch := lipgloss.NewStyle().Foreground(styles.DeviceColor(string(d))).Render("●")

		samples := 0
		if track := session.Track(d); track != nil {
			samples = track.Len()
		}

		pos := styles.Dim.Render("-")
		if p, ok := poses[target]; ok {
			pos = fmt.Sprintf("%+.2f %+.2f %+.2f", p.Position.X(), p.Position.Y(), p.Position.Z())
		}

		lines = append(lines, fmt.Sprintf("%s %-11s %5d  %s", swatch, d.Label(), samples, pos))
		if len(lines) >= maxLines {
			break
		}
	}

	if session.HeadFallback && len(lines) < maxLines {
		lines = append(lines, styles.Dim.Render("head position missing; origin from right hand"))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}
