package core

import (
	"fmt"
	"sort"
	"time"

	"github.com/go-gl/mathgl/mgl64"
)

// Pose is a position and orientation in normalized scene space.
type Pose struct {
	Position mgl64.Vec3 `json:"position"`
	Rotation mgl64.Quat `json:"rotation"`
}

// IdentityPose is the origin with no rotation.
func IdentityPose() Pose {
	return Pose{Rotation: mgl64.QuatIdent()}
}

// PoseSample is a single timestamped pose.
type PoseSample struct {
	Time time.Duration `json:"time"`
	Pose
}

// MotionTrack is the time-ordered pose samples of one device.
// A track is immutable once constructed.
type MotionTrack struct {
	Device  Device
	samples []PoseSample
}

// NewMotionTrack builds a track from samples in non-decreasing time order.
func NewMotionTrack(device Device, samples []PoseSample) (*MotionTrack, error) {
	for i := 1; i < len(samples); i++ {
		if samples[i].Time < samples[i-1].Time {
			return nil, fmt.Errorf("%s sample %d: time %v before %v", device, i, samples[i].Time, samples[i-1].Time)
		}
	}
	cp := make([]PoseSample, len(samples))
	copy(cp, samples)
	return &MotionTrack{Device: device, samples: cp}, nil
}

// Len returns the number of samples.
func (t *MotionTrack) Len() int {
	if t == nil {
		return 0
	}
	return len(t.samples)
}

// At returns the i-th sample.
func (t *MotionTrack) At(i int) PoseSample {
	return t.samples[i]
}

// Duration returns the time of the last sample.
func (t *MotionTrack) Duration() time.Duration {
	if t.Len() == 0 {
		return 0
	}
	return t.samples[len(t.samples)-1].Time
}

// Sample returns the interpolated pose at time at. Positions are
// interpolated linearly and rotations spherically; times outside the
// sampled range clamp to the first or last sample.
func (t *MotionTrack) Sample(at time.Duration) Pose {
	n := t.Len()
	if n == 0 {
		return IdentityPose()
	}
	if at <= t.samples[0].Time {
		return t.samples[0].Pose
	}
	if at >= t.samples[n-1].Time {
		return t.samples[n-1].Pose
	}

	// First sample strictly after at; guaranteed in (0, n) by the checks above.
	i := sort.Search(n, func(i int) bool { return t.samples[i].Time > at })
	a, b := t.samples[i-1], t.samples[i]
	span := b.Time - a.Time
	if span <= 0 {
		return b.Pose
	}
	alpha := float64(at-a.Time) / float64(span)

	return Pose{
		Position: a.Position.Add(b.Position.Sub(a.Position).Mul(alpha)),
		Rotation: slerp(a.Rotation, b.Rotation, alpha),
	}
}

// slerp interpolates along the shortest arc.
func slerp(a, b mgl64.Quat, alpha float64) mgl64.Quat {
	if a.Dot(b) < 0 {
		b = b.Scale(-1)
	}
	return mgl64.QuatSlerp(a, b, alpha).Normalize()
}
