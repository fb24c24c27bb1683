package core

import "time"

// PlaybackState is the cursor state shared by every target of one engine.
type PlaybackState struct {
	Running     bool          `json:"running"`
	SingleStep  bool          `json:"single_step"`
	PendingStep time.Duration `json:"pending_step"`
	Elapsed     time.Duration `json:"elapsed"`
	Duration    time.Duration `json:"duration"`
	TimeScale   float64       `json:"time_scale"`
}

// Progress returns elapsed time as a fraction of the duration in [0, 1].
func (s *PlaybackState) Progress() float64 {
	if s == nil || s.Duration <= 0 {
		return 0
	}
	p := float64(s.Elapsed) / float64(s.Duration)
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

// ProgressPercent returns playback progress as a percentage (0-100).
func (s *PlaybackState) ProgressPercent() float64 {
	return s.Progress() * 100
}

// Remaining returns the time left until the end of the recording.
func (s *PlaybackState) Remaining() time.Duration {
	if s == nil || s.Elapsed >= s.Duration {
		return 0
	}
	return s.Duration - s.Elapsed
}

// AtEnd reports whether playback reached the end of a non-empty recording.
func (s *PlaybackState) AtEnd() bool {
	return s != nil && s.Duration > 0 && s.Elapsed >= s.Duration
}
