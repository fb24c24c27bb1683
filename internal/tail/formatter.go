package tail

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
	"time"
)

// Formatter formats events for output.
type Formatter struct {
	showEmoji     bool
	showTimestamp bool
	template      *template.Template
}

// FormatterOption configures a Formatter.
type FormatterOption func(*Formatter)

// WithEmoji enables emoji output.
func WithEmoji(enabled bool) FormatterOption {
	return func(f *Formatter) {
		f.showEmoji = enabled
	}
}

// WithTimestamp enables timestamp output.
func WithTimestamp(enabled bool) FormatterOption {
	return func(f *Formatter) {
		f.showTimestamp = enabled
	}
}

// WithTemplate sets a custom format template.
func WithTemplate(tmpl string) FormatterOption {
	return func(f *Formatter) {
		if tmpl != "" {
			t, err := template.New("format").Parse(tmpl)
			if err == nil {
				f.template = t
			}
		}
	}
}

// NewFormatter creates a new formatter with the given options.
func NewFormatter(opts ...FormatterOption) *Formatter {
	f := &Formatter{
		showEmoji:     true,
		showTimestamp: false,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Format formats an event as a string.
func (f *Formatter) Format(e Event) string {
	if f.template != nil {
		return f.formatTemplate(e)
	}
	return f.formatLine(e)
}

// formatLine formats an event as a simple line.
func (f *Formatter) formatLine(e Event) string {
	var parts []string

	if f.showTimestamp {
		parts = append(parts, e.Timestamp.Format("15:04:05"))
	}

	if f.showEmoji {
		parts = append(parts, eventEmoji(e.Type))
	}

	if e.Engine != "" {
		parts = append(parts, "["+e.Engine+"]")
	}

	parts = append(parts, f.eventDescription(e))

	return strings.Join(parts, " ")
}

// formatTemplate formats an event using a custom template.
func (f *Formatter) formatTemplate(e Event) string {
	data := templateData{
		Type:      eventTypeName(e.Type),
		Emoji:     eventEmoji(e.Type),
		Timestamp: e.Timestamp,
		Time:      e.Timestamp.Format("15:04:05"),
		Engine:    e.Engine,
		Elapsed:   FormatElapsed(e.Current.Elapsed),
		ElapsedMS: e.Current.Elapsed.Milliseconds(),
		Duration:  FormatElapsed(e.Current.Duration),
		Progress:  e.Current.ProgressPercent(),
		Running:   e.Current.Running,
		Milestone: e.Milestone,
	}

	var buf bytes.Buffer
	if err := f.template.Execute(&buf, data); err != nil {
		return f.formatLine(e)
	}
	return buf.String()
}

type templateData struct {
	Type      string
	Emoji     string
	Timestamp time.Time
	Time      string
	Engine    string
	Elapsed   string
	ElapsedMS int64
	Duration  string
	Progress  float64
	Running   bool
	Milestone int
}

// eventDescription returns a human-readable description of the event.
func (f *Formatter) eventDescription(e Event) string {
	pos := FormatElapsed(e.Current.Elapsed)

	switch e.Type {
	case EventStart:
		return fmt.Sprintf("Playing (%s)", FormatElapsed(e.Current.Duration))

	case EventPause:
		return "Paused at " + pos

	case EventResume:
		return "Resumed at " + pos

	case EventStep:
		return fmt.Sprintf("Stepping %s from %s", FormatElapsed(e.Current.PendingStep), pos)

	case EventSeek:
		return fmt.Sprintf("Seeked to %s (%.0f%%)", pos, e.Current.ProgressPercent())

	case EventRestart:
		return "Restarted"

	case EventMilestone:
		return fmt.Sprintf("%d%% (%s)", e.Milestone, pos)

	case EventComplete:
		return "Finished at " + pos

	default:
		return "Unknown event"
	}
}

// FormatElapsed formats a duration as m:ss.mmm.
func FormatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	ms := d.Milliseconds()
	return fmt.Sprintf("%d:%02d.%03d", ms/60000, (ms/1000)%60, ms%1000)
}

// eventEmoji returns an emoji for the event type.
func eventEmoji(t EventType) string {
	switch t {
	case EventStart:
		return "🎬"
	case EventPause:
		return "⏸️"
	case EventResume:
		return "▶️"
	case EventStep:
		return "👣"
	case EventSeek:
		return "⏩"
	case EventRestart:
		return "🔁"
	case EventMilestone:
		return "📍"
	case EventComplete:
		return "✅"
	default:
		return "❓"
	}
}

// eventTypeName returns the name of the event type.
func eventTypeName(t EventType) string {
	switch t {
	case EventStart:
		return "start"
	case EventPause:
		return "pause"
	case EventResume:
		return "resume"
	case EventStep:
		return "step"
	case EventSeek:
		return "seek"
	case EventRestart:
		return "restart"
	case EventMilestone:
		return "milestone"
	case EventComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// String returns the name of the event type.
func (t EventType) String() string {
	return eventTypeName(t)
}
