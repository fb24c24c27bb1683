// Package syncgroup phase-locks several playback engines to one reference.
package syncgroup

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/tessro/mocap/internal/core"
	mocaperrors "github.com/tessro/mocap/internal/errors"
	"github.com/tessro/mocap/internal/playback"
)

// Member is an engine that can join a group.
type Member interface {
	Name() string
	Ready() *playback.Readiness
	State() core.PlaybackState
	AnchorTo(ref core.PlaybackState) error
}

// Group is an ordered set of engines. The first registered member is the
// coordinator every other member is anchored to.
type Group struct {
	members []Member
	logger  *slog.Logger
}

// New creates an empty group.
func New(logger *slog.Logger) *Group {
	if logger == nil {
		logger = slog.Default()
	}
	return &Group{logger: logger.With("component", "syncgroup")}
}

// Register appends a member.
func (g *Group) Register(m Member) {
	g.members = append(g.members, m)
}

// Members returns the members in registration order.
func (g *Group) Members() []Member {
	return g.members
}

// Coordinator returns the reference member, or nil for an empty group.
func (g *Group) Coordinator() Member {
	if len(g.members) == 0 {
		return nil
	}
	return g.members[0]
}

// Wait blocks until every member has finished loading. If any member fails
// the whole wait fails and nothing should be anchored. Safe to call from any
// goroutine.
func (g *Group) Wait(ctx context.Context) error {
	eg, ctx := errgroup.WithContext(ctx)
	for _, m := range g.members {
		eg.Go(func() error {
			if err := m.Ready().Wait(ctx); err != nil {
				return fmt.Errorf("%s: %w", m.Name(), err)
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		g.logger.Error("sync wait failed", "err", err)
		return fmt.Errorf("%w: %w", mocaperrors.ErrSyncFailed, err)
	}
	return nil
}

// Anchor copies the coordinator's cursor state onto every other member.
// It must run on the goroutine that ticks the members. If any member has not
// loaded successfully no member is touched.
func (g *Group) Anchor() error {
	if len(g.members) < 2 {
		return nil
	}
	if err := g.checkReady(); err != nil {
		g.logger.Warn("anchor skipped", "err", err)
		return err
	}
	ref := g.members[0].State()
	for _, m := range g.members[1:] {
		if err := m.AnchorTo(ref); err != nil {
			return fmt.Errorf("%w: %s: %w", mocaperrors.ErrSyncFailed, m.Name(), err)
		}
	}
	g.logger.Info("synchronized",
		"members", len(g.members),
		"coordinator", g.members[0].Name(),
		"elapsed", ref.Elapsed)
	return nil
}

func (g *Group) checkReady() error {
	for _, m := range g.members {
		r := m.Ready()
		if !r.Resolved() {
			return fmt.Errorf("%w: %s: %w", mocaperrors.ErrSyncFailed, m.Name(), mocaperrors.ErrNotReady)
		}
		if err := r.Err(); err != nil {
			return fmt.Errorf("%w: %s: %w", mocaperrors.ErrSyncFailed, m.Name(), err)
		}
	}
	return nil
}

// Synchronize waits for all members and anchors them. Groups of fewer than
// two members are left alone.
func (g *Group) Synchronize(ctx context.Context) error {
	if len(g.members) < 2 {
		return nil
	}
	if err := g.Wait(ctx); err != nil {
		return err
	}
	return g.Anchor()
}

// SynchronizeOn waits on the calling goroutine and then anchors on the loop
// goroutine.
func (g *Group) SynchronizeOn(ctx context.Context, loop *playback.Loop) error {
	if len(g.members) < 2 {
		return nil
	}
	if err := g.Wait(ctx); err != nil {
		return err
	}
	var anchorErr error
	if err := loop.Call(ctx, func() { anchorErr = g.Anchor() }); err != nil {
		return err
	}
	return anchorErr
}
