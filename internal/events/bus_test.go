package events

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBus(t *testing.T) (*Bus, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))
	return NewBus("test", logger), &buf
}

func TestDispatchOrder(t *testing.T) {
	bus, _ := newTestBus(t)
	bus.Register(KindStep)

	var order []string
	require.True(t, bus.Subscribe(KindStep, func(Event) { order = append(order, "a") }))
	require.True(t, bus.Subscribe(KindStep, func(Event) { order = append(order, "b") }))
	require.True(t, bus.Subscribe(KindStep, func(Event) { order = append(order, "c") }))

	n := bus.Dispatch(Step{Progress: 0.5})
	assert.Equal(t, 3, n)
	assert.Equal(t, []string{"a", "b", "c"}, order)
	assert.Equal(t, 0, bus.Warnings())
}

func TestRegisterIsIdempotent(t *testing.T) {
	bus, _ := newTestBus(t)
	bus.Register(KindSeek)
	bus.Subscribe(KindSeek, func(Event) {})
	bus.Register(KindSeek)

	assert.Equal(t, 1, bus.Listeners(KindSeek))
	assert.True(t, bus.Registered(KindSeek))
	assert.False(t, bus.Registered(KindStep))
}

func TestUnregisteredDispatchWarnsOnce(t *testing.T) {
	bus, buf := newTestBus(t)

	n := bus.Dispatch(Seek{Position: 0.3})
	assert.Equal(t, 0, n)
	assert.Equal(t, 1, bus.Warnings())
	assert.Equal(t, 1, strings.Count(buf.String(), "level=WARN"))
	assert.Contains(t, buf.String(), "event=seek")
}

func TestUnregisteredSubscribeWarnsOnce(t *testing.T) {
	bus, buf := newTestBus(t)

	called := false
	ok := bus.Subscribe(KindSeekRequest, func(Event) { called = true })
	assert.False(t, ok)
	assert.Equal(t, 1, bus.Warnings())
	assert.Equal(t, 1, strings.Count(buf.String(), "level=WARN"))

	// Registering afterwards does not resurrect the rejected listener.
	bus.Register(KindSeekRequest)
	bus.Dispatch(SeekRequest{Position: 1})
	assert.False(t, called)
	assert.Equal(t, 1, bus.Warnings())
}

func TestRegisteredWithoutListeners(t *testing.T) {
	bus, _ := newTestBus(t)
	bus.Register(KindPlayState)

	assert.Equal(t, 0, bus.Dispatch(PlayState{Running: true}))
	assert.Equal(t, 0, bus.Warnings())
}

func TestOnTyped(t *testing.T) {
	bus, _ := newTestBus(t)
	bus.Register(KindSeekRequest)

	var got []float64
	require.True(t, On(bus, func(r SeekRequest) { got = append(got, r.Position) }))

	bus.Dispatch(SeekRequest{Position: 0.25})
	bus.Dispatch(SeekRequest{Position: 0.75})
	assert.Equal(t, []float64{0.25, 0.75}, got)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "step", KindStep.String())
	assert.Equal(t, "seek_request", KindSeekRequest.String())
	assert.Equal(t, "unknown", Kind(99).String())
}
