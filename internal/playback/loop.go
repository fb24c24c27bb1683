package playback

import (
	"context"
	"log/slog"
	"time"
)

// Clock reports the wall time elapsed since it was last asked.
type Clock interface {
	Delta() time.Duration
}

// WallClock is a Clock backed by the system clock.
type WallClock struct {
	now  func() time.Time
	last time.Time
}

// NewWallClock returns a clock whose first Delta is zero.
func NewWallClock() *WallClock {
	return &WallClock{now: time.Now}
}

// Delta returns the time since the previous call.
func (c *WallClock) Delta() time.Duration {
	now := c.now()
	if c.last.IsZero() {
		c.last = now
		return 0
	}
	d := now.Sub(c.last)
	c.last = now
	return d
}

// Loop ticks a set of engines at a fixed rate. All engine access is
// serialized onto the goroutine running Run; other goroutines submit work
// with Do or Call.
type Loop struct {
	engines  []*Engine
	clock    Clock
	interval time.Duration
	cmds     chan func()
	done     chan struct{}
	logger   *slog.Logger
}

// NewLoop creates a loop ticking fps times per second.
func NewLoop(fps int, clock Clock, logger *slog.Logger) *Loop {
	if fps <= 0 {
		fps = 60
	}
	if clock == nil {
		clock = NewWallClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{
		clock:    clock,
		interval: time.Second / time.Duration(fps),
		cmds:     make(chan func(), 64),
		done:     make(chan struct{}),
		logger:   logger.With("component", "loop"),
	}
}

// Add registers an engine. Call before Run, or from inside Do.
func (l *Loop) Add(e *Engine) {
	l.engines = append(l.engines, e)
}

// Engines returns the registered engines.
func (l *Loop) Engines() []*Engine {
	return l.engines
}

// Interval returns the time between ticks.
func (l *Loop) Interval() time.Duration {
	return l.interval
}

// Do queues fn to run on the loop goroutine. It returns false if the loop
// has stopped.
func (l *Loop) Do(fn func()) bool {
	select {
	case <-l.done:
		return false
	default:
	}
	select {
	case l.cmds <- fn:
		return true
	case <-l.done:
		return false
	}
}

// Call runs fn on the loop goroutine and waits for it to finish.
func (l *Loop) Call(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	if !l.Do(func() {
		defer close(finished)
		fn()
	}) {
		return context.Canceled
	}
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		return context.Canceled
	}
}

// Step advances every engine by one clock delta.
func (l *Loop) Step() {
	delta := l.clock.Delta()
	for _, e := range l.engines {
		e.Tick(delta)
	}
}

// Run ticks until ctx is done.
func (l *Loop) Run(ctx context.Context) error {
	defer close(l.done)

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	l.logger.Debug("loop started", "engines", len(l.engines), "interval", l.interval)
	for {
		select {
		case <-ctx.Done():
			l.logger.Debug("loop stopped")
			return nil
		case fn := <-l.cmds:
			fn()
		case <-ticker.C:
			l.Step()
		}
	}
}
