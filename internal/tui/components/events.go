package components

import (
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/tessro/mocap/internal/tail"
	"github.com/tessro/mocap/internal/tui/styles"
)

// Events displays recent playback events, newest first.
type Events struct {
	formatter *tail.Formatter
	now       func() time.Time
}

// NewEvents creates a new Events component
func NewEvents() *Events {
	return &Events{
		formatter: tail.NewFormatter(),
		now:       time.Now,
	}
}

// Render renders the events panel
func (e *Events) Render(entries []tail.Event, width, height int, focused bool) string {
	title := styles.PanelTitle("Events", focused)

	var content string
	if len(entries) == 0 {
		content = styles.Muted.Render("No events yet")
	} else {
		content = e.renderEvents(entries, width-4, height-3)
	}

	panel := styles.Panel(focused).
		Width(width - 2).
		Height(height - 2)

	return panel.Render(lipgloss.JoinVertical(lipgloss.Left,
		title,
		content,
	))
}

func (e *Events) renderEvents(entries []tail.Event, width, maxLines int) string {
	lines := make([]string, 0, maxLines)

	for i, entry := range entries {
		if i >= maxLines {
			break
		}

		ago := e.formatAgo(entry.Timestamp)
		text := truncate(e.formatter.Format(entry), width-lipgloss.Width(ago)-1)

		padding := width - lipgloss.Width(text) - lipgloss.Width(ago)
		if padding < 1 {
			padding = 1
		}

		lines = append(lines, text+styles.Repeat(" ", padding)+styles.Dim.Render(ago))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func (e *Events) formatAgo(t time.Time) string {
	d := e.now().Sub(t)
	if d < time.Second {
		return "now"
	}
	if d < time.Minute {
		return d.Truncate(time.Second).String()
	}
	return t.Format("15:04:05")
}

// truncate shortens s to at most n cells.
func truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if lipgloss.Width(s) <= n {
		return s
	}
	runes := []rune(s)
	for len(runes) > 0 && lipgloss.Width(string(runes))+1 > n {
		runes = runes[:len(runes)-1]
	}
	return string(runes) + "…"
}
