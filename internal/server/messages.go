package server

import (
	"encoding/json"
	"time"

	"github.com/tessro/mocap/internal/core"
	"github.com/tessro/mocap/internal/playback"
)

// Message types sent to clients.
const (
	TypeHello = "hello"
	TypeFrame = "frame"
	TypePong  = "pong"
	TypeError = "error"
)

// Message types accepted from clients.
const (
	TypeSeek    = "seek"
	TypePause   = "pause"
	TypeResume  = "resume"
	TypeToggle  = "toggle"
	TypeStep    = "step"
	TypeRestart = "restart"
	TypeSpeed   = "speed"
	TypePing    = "ping"
)

// ViewportInfo describes one viewport.
type ViewportInfo struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Ready      bool    `json:"ready"`
	Running    bool    `json:"running"`
	ElapsedMS  float64 `json:"elapsed_ms"`
	DurationMS float64 `json:"duration_ms"`
	Progress   float64 `json:"progress"`
	Fill       float64 `json:"fill"`
}

type helloMessage struct {
	Type      string         `json:"type"`
	Client    string         `json:"client"`
	Viewports []ViewportInfo `json:"viewports"`
}

// PoseMessage is a pose on the wire. Rotation is x, y, z, w.
type PoseMessage struct {
	Position [3]float64 `json:"position"`
	Rotation [4]float64 `json:"rotation"`
}

// FrameMessage is broadcast after every tick of every viewport.
type FrameMessage struct {
	Type       string                 `json:"type"`
	Viewport   string                 `json:"viewport"`
	ElapsedMS  float64                `json:"elapsed_ms"`
	DurationMS float64                `json:"duration_ms"`
	Progress   float64                `json:"progress"`
	Fill       float64                `json:"fill"`
	Running    bool                   `json:"running"`
	Poses      map[string]PoseMessage `json:"poses"`
}

type errorMessage struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// ControlMessage is a client request. An empty Viewport targets every
// viewport.
type ControlMessage struct {
	Type     string          `json:"type"`
	Viewport string          `json:"viewport,omitempty"`
	Position *float64        `json:"position,omitempty"`
	MS       float64         `json:"ms,omitempty"`
	Speed    float64         `json:"speed,omitempty"`
	Data     json.RawMessage `json:"data,omitempty"`
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func poseMessage(p core.Pose) PoseMessage {
	return PoseMessage{
		Position: [3]float64{p.Position.X(), p.Position.Y(), p.Position.Z()},
		Rotation: [4]float64{p.Rotation.X(), p.Rotation.Y(), p.Rotation.Z(), p.Rotation.W},
	}
}

func frameMessage(id string, f playback.Frame, fill float64) FrameMessage {
	poses := make(map[string]PoseMessage, len(f.Poses))
	for t, p := range f.Poses {
		poses[string(t)] = poseMessage(p)
	}
	return FrameMessage{
		Type:       TypeFrame,
		Viewport:   id,
		ElapsedMS:  ms(f.Elapsed),
		DurationMS: ms(f.Duration),
		Progress:   f.Progress,
		Fill:       fill,
		Running:    f.Running,
		Poses:      poses,
	}
}
