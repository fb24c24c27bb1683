// Package playback drives motion tracks through time.
//
// An Engine owns one cursor per animated target and advances them together
// once per tick. Engines are not safe for concurrent use: every method except
// Load and Ready must be called from the goroutine that ticks the engine,
// normally a Loop.
package playback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync/atomic"
	"time"

	"github.com/tessro/mocap/internal/core"
	mocaperrors "github.com/tessro/mocap/internal/errors"
	"github.com/tessro/mocap/internal/events"
)

var _ core.Player = (*Engine)(nil)

var errNoSession = errors.New("no session")

// Loader produces the session an engine plays.
type Loader func(ctx context.Context) (*core.Session, error)

// Frame is what a renderer sees after each tick.
type Frame struct {
	Engine   string
	Elapsed  time.Duration
	Duration time.Duration
	Progress float64
	Running  bool
	Poses    map[core.Target]core.Pose
}

// Renderer draws a frame. Render is called on the ticking goroutine.
type Renderer interface {
	Render(f Frame)
}

// RenderFunc adapts a function to Renderer.
type RenderFunc func(Frame)

func (fn RenderFunc) Render(f Frame) { fn(f) }

type cursor struct {
	target core.Target
	track  *core.MotionTrack
	time   time.Duration
}

// Engine plays one session.
type Engine struct {
	name     string
	logger   *slog.Logger
	bus      *events.Bus
	renderer Renderer

	indicators bool
	autoplay   bool
	loop       bool
	start      float64

	ready       *Readiness
	loadStarted atomic.Bool

	session *core.Session
	cursors []*cursor
	state   core.PlaybackState
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithRenderer sets the renderer called after every tick.
func WithRenderer(r Renderer) Option {
	return func(e *Engine) {
		e.renderer = r
	}
}

// WithIndicators toggles the duplicate indicator cursors.
func WithIndicators(on bool) Option {
	return func(e *Engine) {
		e.indicators = on
	}
}

// WithAutoplay controls whether playback starts as soon as loading finishes.
func WithAutoplay(on bool) Option {
	return func(e *Engine) {
		e.autoplay = on
	}
}

// WithLoop makes playback wrap to the start instead of stopping at the end.
func WithLoop(on bool) Option {
	return func(e *Engine) {
		e.loop = on
	}
}

// WithTimeScale sets the initial playback speed.
func WithTimeScale(s float64) Option {
	return func(e *Engine) {
		e.state.TimeScale = s
	}
}

// WithStartPosition sets the normalized position cursors start from once
// loading finishes.
func WithStartPosition(p float64) Option {
	return func(e *Engine) {
		if !math.IsNaN(p) {
			e.start = clamp01(p)
		}
	}
}

// New creates an engine. It plays nothing until Load or LoadSession.
func New(name string, opts ...Option) *Engine {
	e := &Engine{
		name:       name,
		logger:     slog.Default(),
		indicators: true,
		autoplay:   true,
		ready:      newReadiness(),
		state:      core.PlaybackState{TimeScale: 1},
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("component", "playback", "engine", name)
	e.bus = events.NewBus(name, e.logger)
	e.bus.Register(events.KindStep, events.KindSeek, events.KindPlayState)
	return e
}

// Name returns the engine name.
func (e *Engine) Name() string { return e.name }

// Bus returns the bus carrying Step, Seek and PlayState events.
func (e *Engine) Bus() *events.Bus { return e.bus }

// Ready returns the engine's readiness signal. Safe for concurrent use.
func (e *Engine) Ready() *Readiness { return e.ready }

// Load runs loader on its own goroutine and resolves Ready with the result.
// An engine loads at most once; later calls are ignored.
func (e *Engine) Load(ctx context.Context, loader Loader) *Readiness {
	if !e.loadStarted.CompareAndSwap(false, true) {
		e.logger.Warn("load already started")
		return e.ready
	}
	go func() {
		s, err := loader(ctx)
		if err == nil && s == nil {
			err = errNoSession
		}
		if err != nil {
			err = fmt.Errorf("%s: %w: %w", e.name, mocaperrors.ErrLoadFailed, err)
			e.logger.Error("load failed", "err", err)
		}
		e.ready.resolve(s, err)
	}()
	return e.ready
}

// LoadSession installs an already-parsed session synchronously. A nil
// session fails the load.
func (e *Engine) LoadSession(s *core.Session) {
	if !e.loadStarted.CompareAndSwap(false, true) {
		e.logger.Warn("load already started")
		return
	}
	if s == nil {
		err := fmt.Errorf("%s: %w: %w", e.name, mocaperrors.ErrLoadFailed, errNoSession)
		e.logger.Error("load failed", "err", err)
		e.ready.resolve(nil, err)
		return
	}
	e.ready.resolve(s, nil)
	e.install()
}

// install builds cursors the first time the engine is used after a
// successful load.
func (e *Engine) install() bool {
	if e.session != nil {
		return true
	}
	s, ok := e.ready.loaded()
	if !ok {
		return false
	}

	e.session = s
	targets := append([]core.Target(nil), core.PrimaryTargets...)
	if e.indicators {
		targets = append(targets, core.IndicatorTargets...)
	}
	for _, t := range targets {
		e.cursors = append(e.cursors, &cursor{target: t, track: s.Track(t.Device())})
	}
	e.state.Duration = s.Duration()
	e.setAll(time.Duration(e.start * float64(e.state.Duration)))

	e.logger.Debug("installed", "targets", len(e.cursors), "duration", e.state.Duration)
	if e.autoplay {
		e.ActivateAll()
	}
	return true
}

// IsReady reports whether the session has loaded and cursors exist.
func (e *Engine) IsReady() bool {
	return e.install()
}

// Session returns the installed session, or nil.
func (e *Engine) Session() *core.Session {
	e.install()
	return e.session
}

// ActivateAll starts every cursor from its current position.
func (e *Engine) ActivateAll() {
	e.install()
	e.setRunning(true)
}

// Pause stops time from advancing. Single-step state is untouched.
func (e *Engine) Pause() {
	if !e.install() {
		e.autoplay = false
	}
	e.setRunning(false)
}

// Resume lets time advance again.
func (e *Engine) Resume() {
	e.install()
	e.setRunning(true)
}

// TogglePause leaves single-step mode and flips the run flag.
func (e *Engine) TogglePause() {
	ready := e.install()
	e.state.SingleStep = false
	e.state.PendingStep = 0
	if !ready && e.state.Running {
		e.autoplay = false
	}
	e.setRunning(!e.state.Running)
}

// SingleStep makes the next tick advance by exactly step, regardless of the
// wall clock or the run flag.
func (e *Engine) SingleStep(step time.Duration) {
	e.install()
	if step < 0 {
		step = 0
	}
	e.state.SingleStep = true
	e.state.PendingStep = step
	e.dispatchPlayState(false)
}

// Restart rewinds every cursor to zero and plays.
func (e *Engine) Restart() {
	if !e.install() {
		return
	}
	e.state.SingleStep = false
	e.state.PendingStep = 0
	e.setAll(0)
	e.state.Running = true
	e.dispatchPlayState(true)
}

// SetTimeScale sets the playback speed. Negative or NaN scales are ignored.
func (e *Engine) SetTimeScale(s float64) {
	if math.IsNaN(s) || s < 0 {
		e.logger.Warn("ignoring invalid time scale", "scale", s)
		return
	}
	e.state.TimeScale = s
}

// Seek moves every cursor to position × duration. Positions outside [0, 1]
// are clamped. The run flag is preserved.
func (e *Engine) Seek(position float64) error {
	if math.IsNaN(position) {
		return fmt.Errorf("%w: NaN", mocaperrors.ErrInvalidPosition)
	}
	if !e.install() {
		return mocaperrors.ErrNotReady
	}
	position = clamp01(position)
	if e.state.Duration == 0 {
		return nil
	}

	e.setAll(time.Duration(position * float64(e.state.Duration)))
	e.bus.Dispatch(events.Seek{Source: e.name, Position: position, Elapsed: e.state.Elapsed})
	return nil
}

// Tick advances all cursors by one frame. In single-step mode the pending
// step is applied and the engine returns to its previous run state;
// otherwise a running engine advances by wall × time scale and a paused
// engine by zero. Step is dispatched and the frame rendered after all
// cursors have moved.
func (e *Engine) Tick(wall time.Duration) {
	if !e.install() {
		return
	}

	var delta time.Duration
	switch {
	case e.state.SingleStep:
		delta = e.state.PendingStep
		e.state.SingleStep = false
		e.state.PendingStep = 0
	case e.state.Running:
		delta = time.Duration(float64(wall) * e.state.TimeScale)
	}
	if delta < 0 {
		delta = 0
	}

	e.advance(delta)

	e.bus.Dispatch(events.Step{
		Source:   e.name,
		Delta:    delta,
		Elapsed:  e.state.Elapsed,
		Progress: e.state.Progress(),
	})

	if e.renderer != nil {
		e.renderer.Render(e.Frame())
	}
}

// AnchorTo copies a reference engine's elapsed time, speed and run flag.
func (e *Engine) AnchorTo(ref core.PlaybackState) error {
	if !e.install() {
		return mocaperrors.ErrNotReady
	}
	e.state.TimeScale = ref.TimeScale
	e.state.SingleStep = false
	e.state.PendingStep = 0
	e.setAll(ref.Elapsed)
	if e.state.Running != ref.Running {
		e.setRunning(ref.Running)
	}
	return nil
}

// Progress returns elapsed ÷ duration, or 0 before loading.
func (e *Engine) Progress() float64 {
	e.install()
	return e.state.Progress()
}

// Elapsed returns the shared cursor time.
func (e *Engine) Elapsed() time.Duration {
	e.install()
	return e.state.Elapsed
}

// CurrentTimestamp returns the shared cursor time in milliseconds.
func (e *Engine) CurrentTimestamp() float64 {
	return float64(e.Elapsed()) / float64(time.Millisecond)
}

// State returns a copy of the cursor state.
func (e *Engine) State() core.PlaybackState {
	e.install()
	return e.state
}

// Targets lists the animated targets in cursor order.
func (e *Engine) Targets() []core.Target {
	e.install()
	out := make([]core.Target, len(e.cursors))
	for i, c := range e.cursors {
		out[i] = c.target
	}
	return out
}

// Poses samples every target at its cursor.
func (e *Engine) Poses() map[core.Target]core.Pose {
	e.install()
	poses := make(map[core.Target]core.Pose, len(e.cursors))
	for _, c := range e.cursors {
		poses[c.target] = c.track.Sample(c.time)
	}
	return poses
}

// Frame snapshots the engine for rendering.
func (e *Engine) Frame() Frame {
	return Frame{
		Engine:   e.name,
		Elapsed:  e.state.Elapsed,
		Duration: e.state.Duration,
		Progress: e.state.Progress(),
		Running:  e.state.Running,
		Poses:    e.Poses(),
	}
}

func (e *Engine) advance(delta time.Duration) {
	next := e.state.Elapsed + delta
	if e.loop && e.state.Duration > 0 && next > e.state.Duration {
		next %= e.state.Duration
	}
	e.setAll(next)
}

// setAll moves every cursor to t, clamped to the session.
func (e *Engine) setAll(t time.Duration) {
	if t < 0 {
		t = 0
	}
	if t > e.state.Duration {
		t = e.state.Duration
	}
	for _, c := range e.cursors {
		c.time = t
	}
	e.state.Elapsed = t
}

func (e *Engine) setRunning(running bool) {
	if e.state.Running == running {
		return
	}
	e.state.Running = running
	e.dispatchPlayState(false)
}

func (e *Engine) dispatchPlayState(restarted bool) {
	if e.session == nil {
		return
	}
	e.bus.Dispatch(events.PlayState{
		Source:     e.name,
		Running:    e.state.Running,
		SingleStep: e.state.SingleStep,
		Restarted:  restarted,
	})
}

func clamp01(p float64) float64 {
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}
