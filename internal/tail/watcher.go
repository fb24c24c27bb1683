package tail

import (
	"sync/atomic"
	"time"

	"github.com/tessro/mocap/internal/core"
	"github.com/tessro/mocap/internal/events"
)

// EventType represents the type of playback event.
type EventType int

const (
	EventStart EventType = iota
	EventPause
	EventResume
	EventStep
	EventSeek
	EventRestart
	EventMilestone
	EventComplete
)

// Event represents a playback state change.
type Event struct {
	Type      EventType
	Timestamp time.Time
	Engine    string
	Previous  *core.PlaybackState
	Current   core.PlaybackState
	// Milestone is the progress percentage reached, for EventMilestone.
	Milestone int
}

// Source is an engine the watcher can follow.
type Source interface {
	Name() string
	Bus() *events.Bus
	State() core.PlaybackState
}

// Watcher turns an engine's bus traffic into a channel of events that can
// be consumed from another goroutine.
type Watcher struct {
	source    Source
	milestone int
	events    chan Event
	stopped   atomic.Bool
	now       func() time.Time

	prev          *core.PlaybackState
	lastMilestone int
}

// NewWatcher subscribes to src. It must be called on the goroutine that
// drives src. milestone is the progress step, in percent, between
// EventMilestone events; zero disables them.
func NewWatcher(src Source, milestone int) *Watcher {
	w := &Watcher{
		source:    src,
		milestone: milestone,
		events:    make(chan Event, 16),
		now:       time.Now,
	}
	bus := src.Bus()
	events.On(bus, w.onStep)
	events.On(bus, w.onSeek)
	events.On(bus, w.onPlayState)
	return w
}

// Events returns the channel of playback events.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Stop stops emitting events.
func (w *Watcher) Stop() {
	w.stopped.Store(true)
}

func (w *Watcher) emit(t EventType, curr core.PlaybackState, milestone int) {
	if w.stopped.Load() {
		return
	}
	e := Event{
		Type:      t,
		Timestamp: w.now(),
		Engine:    w.source.Name(),
		Previous:  w.prev,
		Current:   curr,
		Milestone: milestone,
	}
	select {
	case w.events <- e:
	default:
		// Drop event if channel is full
	}
}

func (w *Watcher) onStep(events.Step) {
	curr := w.source.State()
	for _, d := range diffStates(w.prev, curr) {
		w.emit(d, curr, 0)
	}
	if m := w.reachedMilestone(curr); m > 0 {
		w.emit(EventMilestone, curr, m)
	}
	w.remember(curr)
}

func (w *Watcher) onSeek(events.Seek) {
	curr := w.source.State()
	w.emit(EventSeek, curr, 0)
	w.lastMilestone = w.floorMilestone(curr.Progress())
	w.remember(curr)
}

func (w *Watcher) onPlayState(ev events.PlayState) {
	curr := w.source.State()
	switch {
	case ev.Restarted:
		w.emit(EventRestart, curr, 0)
		w.lastMilestone = 0
	case w.prev != nil && ev.Running != w.prev.Running:
		if ev.Running {
			w.emit(EventResume, curr, 0)
		} else {
			w.emit(EventPause, curr, 0)
		}
	case ev.SingleStep:
		w.emit(EventStep, curr, 0)
	case w.prev == nil:
		// Start is reported by the first step.
		return
	}
	w.remember(curr)
}

func (w *Watcher) remember(s core.PlaybackState) {
	w.prev = &s
}

// reachedMilestone returns the newest milestone crossed, or 0.
func (w *Watcher) reachedMilestone(curr core.PlaybackState) int {
	if w.milestone <= 0 {
		return 0
	}
	m := w.floorMilestone(curr.Progress())
	if m <= w.lastMilestone || m <= 0 || m >= 100 {
		return 0
	}
	w.lastMilestone = m
	return m
}

func (w *Watcher) floorMilestone(progress float64) int {
	if w.milestone <= 0 {
		return 0
	}
	pct := int(progress * 100)
	return pct / w.milestone * w.milestone
}

// diffStates compares two states and returns detected events. An empty
// recording completes on its first step.
func diffStates(prev *core.PlaybackState, curr core.PlaybackState) []EventType {
	var out []EventType
	if prev == nil {
		out = append(out, EventStart)
		if curr.Duration <= 0 {
			return append(out, EventComplete)
		}
	}
	if curr.AtEnd() && (prev == nil || !prev.AtEnd()) {
		out = append(out, EventComplete)
	}
	return out
}
