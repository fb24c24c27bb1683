package events

import (
	"log/slog"
)

// Listener receives events from a bus.
type Listener func(Event)

// Bus dispatches events to listeners synchronously, in subscription order.
// Channels must be registered before use; using an unregistered channel is
// logged as a warning and otherwise ignored.
//
// A Bus is not safe for concurrent use. It belongs to the goroutine that
// drives the engine it is attached to.
type Bus struct {
	name      string
	logger    *slog.Logger
	listeners map[Kind][]Listener
	warnings  int
}

// NewBus creates an empty bus. A nil logger uses slog.Default().
func NewBus(name string, logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		name:      name,
		logger:    logger.With("component", "events", "bus", name),
		listeners: make(map[Kind][]Listener),
	}
}

// Register opens a channel. Registering twice is a no-op.
func (b *Bus) Register(kinds ...Kind) {
	for _, k := range kinds {
		if _, ok := b.listeners[k]; !ok {
			b.listeners[k] = nil
		}
	}
}

// Registered reports whether a channel has been registered.
func (b *Bus) Registered(k Kind) bool {
	_, ok := b.listeners[k]
	return ok
}

// Subscribe adds a listener to a registered channel. It returns false, and
// logs a warning, if the channel is not registered.
func (b *Bus) Subscribe(k Kind, fn Listener) bool {
	if _, ok := b.listeners[k]; !ok {
		b.warn("subscribe to unregistered event", k)
		return false
	}
	b.listeners[k] = append(b.listeners[k], fn)
	return true
}

// Dispatch delivers ev to every listener of its channel and returns the
// number of listeners invoked. Dispatching on an unregistered channel
// logs a warning and delivers nothing.
func (b *Bus) Dispatch(ev Event) int {
	k := ev.Kind()
	listeners, ok := b.listeners[k]
	if !ok {
		b.warn("dispatch of unregistered event", k)
		return 0
	}
	for _, fn := range listeners {
		fn(ev)
	}
	return len(listeners)
}

// Listeners returns the number of listeners on a channel.
func (b *Bus) Listeners(k Kind) int {
	return len(b.listeners[k])
}

// Warnings returns how many misuse warnings the bus has logged.
func (b *Bus) Warnings() int {
	return b.warnings
}

func (b *Bus) warn(msg string, k Kind) {
	b.warnings++
	b.logger.Warn(msg, "event", k.String())
}

// On subscribes a typed listener. Events of other payload types on the
// same channel are skipped.
func On[T Event](b *Bus, fn func(T)) bool {
	var zero T
	return b.Subscribe(zero.Kind(), func(ev Event) {
		if typed, ok := ev.(T); ok {
			fn(typed)
		}
	})
}
