package playback

import (
	"context"
	"sync"

	"github.com/tessro/mocap/internal/core"
)

// Readiness is a one-shot signal resolved when an engine's recording has
// loaded, successfully or not. It is safe for concurrent use.
type Readiness struct {
	done    chan struct{}
	once    sync.Once
	session *core.Session
	err     error
}

func newReadiness() *Readiness {
	return &Readiness{done: make(chan struct{})}
}

// resolve records the outcome. Only the first call has any effect.
func (r *Readiness) resolve(s *core.Session, err error) {
	r.once.Do(func() {
		r.session = s
		r.err = err
		close(r.done)
	})
}

// Done is closed once the outcome is known.
func (r *Readiness) Done() <-chan struct{} {
	return r.done
}

// Resolved reports whether the outcome is known, without blocking.
func (r *Readiness) Resolved() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

// Err returns the load error. It is nil while loading.
func (r *Readiness) Err() error {
	if !r.Resolved() {
		return nil
	}
	return r.err
}

// Wait blocks until the outcome is known or ctx is done.
func (r *Readiness) Wait(ctx context.Context) error {
	select {
	case <-r.done:
		return r.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Readiness) loaded() (*core.Session, bool) {
	if !r.Resolved() || r.err != nil || r.session == nil {
		return nil, false
	}
	return r.session, true
}
