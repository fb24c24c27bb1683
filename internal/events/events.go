// Package events provides a small synchronous publish/subscribe bus with a
// closed set of event kinds.
package events

import "time"

// Kind identifies an event channel.
type Kind int

const (
	// KindStep fires after every engine tick.
	KindStep Kind = iota
	// KindSeek fires after an engine moved its cursors to an absolute position.
	KindSeek
	// KindPlayState fires when an engine's run flag or step mode changes.
	KindPlayState
	// KindSeekRequest carries a user's normalized seek request from a timeline.
	KindSeekRequest
)

// String returns the event kind name.
func (k Kind) String() string {
	switch k {
	case KindStep:
		return "step"
	case KindSeek:
		return "seek"
	case KindPlayState:
		return "play_state"
	case KindSeekRequest:
		return "seek_request"
	default:
		return "unknown"
	}
}

// Event is a payload published on a bus.
type Event interface {
	Kind() Kind
}

// Step is published once per tick after all cursors have advanced.
type Step struct {
	Source   string
	Delta    time.Duration
	Elapsed  time.Duration
	Progress float64
}

func (Step) Kind() Kind { return KindStep }

// Seek is published after a seek has been applied.
type Seek struct {
	Source   string
	Position float64
	Elapsed  time.Duration
}

func (Seek) Kind() Kind { return KindSeek }

// PlayState is published when playback starts, pauses, resumes or restarts.
type PlayState struct {
	Source     string
	Running    bool
	SingleStep bool
	Restarted  bool
}

func (PlayState) Kind() Kind { return KindPlayState }

// SeekRequest is a normalized position in [0, 1] requested by a timeline.
type SeekRequest struct {
	Position float64
}

func (SeekRequest) Kind() Kind { return KindSeekRequest }
