package core

import "time"

// Player defines the interface for controlling one replay.
type Player interface {
	// Playback control
	ActivateAll()
	Pause()
	Resume()
	TogglePause()
	SingleStep(step time.Duration)
	Seek(position float64) error
	Restart()
	SetTimeScale(scale float64)

	// State queries
	IsReady() bool
	Progress() float64
	State() PlaybackState
	Poses() map[Target]Pose
}
