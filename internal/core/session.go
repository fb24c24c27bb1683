package core

import "time"

// Session is a loaded recording: one motion track per device.
type Session struct {
	Name   string                  `json:"name"`
	Source string                  `json:"source"`
	Tracks map[Device]*MotionTrack `json:"-"`
	Rows   int                     `json:"rows"`

	// HeadFallback is set when the recording had no head position and
	// the right hand's first sample was used as the normalization origin.
	HeadFallback bool `json:"head_fallback"`
}

// Track returns the track for a device, or nil.
func (s *Session) Track(d Device) *MotionTrack {
	if s == nil {
		return nil
	}
	return s.Tracks[d]
}

// Duration returns the length of the longest track.
func (s *Session) Duration() time.Duration {
	if s == nil {
		return 0
	}
	var longest time.Duration
	for _, t := range s.Tracks {
		if d := t.Duration(); d > longest {
			longest = d
		}
	}
	return longest
}

// IsEmpty reports whether the session has nothing to play.
func (s *Session) IsEmpty() bool {
	return s.Duration() == 0
}
