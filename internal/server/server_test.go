package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tessro/mocap/internal/core"
	"github.com/tessro/mocap/internal/logging"
	"github.com/tessro/mocap/internal/playback"
)

type stillClock struct{}

func (stillClock) Delta() time.Duration { return 0 }

func testSession(t *testing.T) *core.Session {
	t.Helper()
	s := &core.Session{Name: "test", Tracks: map[core.Device]*core.MotionTrack{}, Rows: 2}
	for _, d := range core.Devices {
		track, err := core.NewMotionTrack(d, []core.PoseSample{
			{Time: 0, Pose: core.Pose{Position: mgl64.Vec3{0, 2, 0}, Rotation: mgl64.QuatIdent()}},
			{Time: time.Second, Pose: core.Pose{Position: mgl64.Vec3{1, 2, 0}, Rotation: mgl64.QuatIdent()}},
		})
		require.NoError(t, err)
		s.Tracks[d] = track
	}
	return s
}

type fixture struct {
	hub     *Hub
	loop    *playback.Loop
	engines []*playback.Engine
	srv     *httptest.Server
}

func newFixture(t *testing.T, names ...string) *fixture {
	t.Helper()
	loop := playback.NewLoop(120, stillClock{}, logging.Discard())
	hub := NewHub(loop, WithLogger(logging.Discard()), WithDefaultStep(250*time.Millisecond))

	f := &fixture{hub: hub, loop: loop}
	for _, name := range names {
		e := playback.New(name, playback.WithLogger(logging.Discard()))
		e.LoadSession(testSession(t))
		loop.Add(e)
		hub.Add(e)
		f.engines = append(f.engines, e)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = loop.Run(ctx)
	}()

	f.srv = httptest.NewServer(hub.Handler())
	t.Cleanup(func() {
		f.srv.Close()
		cancel()
		<-done
	})
	return f
}

func (f *fixture) dial(t *testing.T) (*websocket.Conn, helloMessage) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	var hello helloMessage
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	require.NoError(t, conn.ReadJSON(&hello))
	require.Equal(t, TypeHello, hello.Type)
	return conn, hello
}

// next reads until a message of the given type arrives.
func next(t *testing.T, conn *websocket.Conn, typ string) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		var msg map[string]any
		require.NoError(t, conn.ReadJSON(&msg))
		if msg["type"] == typ {
			return msg
		}
	}
}

func (f *fixture) state(t *testing.T, i int) core.PlaybackState {
	t.Helper()
	var st core.PlaybackState
	require.NoError(t, f.loop.Call(context.Background(), func() { st = f.engines[i].State() }))
	return st
}

func TestHelloListsViewports(t *testing.T) {
	f := newFixture(t, "left", "right")
	_, hello := f.dial(t)

	assert.NotEmpty(t, hello.Client)
	require.Len(t, hello.Viewports, 2)
	assert.Equal(t, "left", hello.Viewports[0].Name)
	assert.Equal(t, "right", hello.Viewports[1].Name)
	assert.True(t, hello.Viewports[0].Ready)
	assert.Equal(t, 1000.0, hello.Viewports[0].DurationMS)
}

func TestFramesAreBroadcast(t *testing.T) {
	f := newFixture(t, "solo")
	conn, hello := f.dial(t)

	frame := next(t, conn, TypeFrame)
	assert.Equal(t, hello.Viewports[0].ID, frame["viewport"])

	poses, ok := frame["poses"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, poses, string(core.TargetHMD))
	assert.Contains(t, poses, string(core.TargetLeftController))
	assert.Contains(t, poses, string(core.TargetRightController))
}

func TestSeekOneViewport(t *testing.T) {
	f := newFixture(t, "a", "b")
	conn, hello := f.dial(t)

	require.NoError(t, conn.WriteJSON(ControlMessage{Type: TypePause}))
	pos := 0.5
	require.NoError(t, conn.WriteJSON(ControlMessage{Type: TypeSeek, Viewport: hello.Viewports[0].ID, Position: &pos}))
	require.NoError(t, conn.WriteJSON(ControlMessage{Type: TypePing}))
	next(t, conn, TypePong)

	a, b := f.state(t, 0), f.state(t, 1)
	assert.False(t, a.Running)
	assert.False(t, b.Running)
	assert.Equal(t, 500*time.Millisecond, a.Elapsed)
	assert.Equal(t, time.Duration(0), b.Elapsed)
}

func TestSeekClampsPosition(t *testing.T) {
	f := newFixture(t, "a")
	conn, _ := f.dial(t)

	pos := 3.0
	require.NoError(t, conn.WriteJSON(ControlMessage{Type: TypeSeek, Position: &pos}))
	require.NoError(t, conn.WriteJSON(ControlMessage{Type: TypePing}))
	next(t, conn, TypePong)

	assert.Equal(t, time.Second, f.state(t, 0).Elapsed)
}

func TestStepUsesDefault(t *testing.T) {
	f := newFixture(t, "a")
	conn, _ := f.dial(t)

	require.NoError(t, conn.WriteJSON(ControlMessage{Type: TypePause}))
	require.NoError(t, conn.WriteJSON(ControlMessage{Type: TypeStep}))
	require.NoError(t, conn.WriteJSON(ControlMessage{Type: TypePing}))
	next(t, conn, TypePong)

	// The step lands on the next tick.
	assert.Eventually(t, func() bool {
		return f.state(t, 0).Elapsed == 250*time.Millisecond
	}, 2*time.Second, 10*time.Millisecond)
	assert.False(t, f.state(t, 0).Running)
}

func TestRestartAndSpeed(t *testing.T) {
	f := newFixture(t, "a")
	conn, _ := f.dial(t)

	pos := 0.8
	require.NoError(t, conn.WriteJSON(ControlMessage{Type: TypeSeek, Position: &pos}))
	require.NoError(t, conn.WriteJSON(ControlMessage{Type: TypeSpeed, Speed: 2}))
	require.NoError(t, conn.WriteJSON(ControlMessage{Type: TypeToggle}))
	require.NoError(t, conn.WriteJSON(ControlMessage{Type: TypeRestart}))
	require.NoError(t, conn.WriteJSON(ControlMessage{Type: TypePing}))
	next(t, conn, TypePong)

	st := f.state(t, 0)
	assert.Equal(t, time.Duration(0), st.Elapsed)
	assert.True(t, st.Running)
	assert.Equal(t, 2.0, st.TimeScale)
}

func TestControlErrors(t *testing.T) {
	f := newFixture(t, "a")
	conn, _ := f.dial(t)

	tests := []struct {
		name string
		msg  any
		want string
	}{
		{"unknown viewport", ControlMessage{Type: TypePause, Viewport: "nope"}, "unknown viewport"},
		{"unknown type", ControlMessage{Type: "dance"}, "unknown message type"},
		{"seek without position", ControlMessage{Type: TypeSeek}, "seek requires a position"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, conn.WriteJSON(tt.msg))
			msg := next(t, conn, TypeError)
			assert.Contains(t, msg["error"], tt.want)
		})
	}

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	msg := next(t, conn, TypeError)
	assert.Contains(t, msg["error"], "invalid message")
}

func TestSeekBeforeReady(t *testing.T) {
	loop := playback.NewLoop(120, stillClock{}, logging.Discard())
	hub := NewHub(loop, WithLogger(logging.Discard()))
	e := playback.New("pending", playback.WithLogger(logging.Discard()))
	loop.Add(e)
	hub.Add(e)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = loop.Run(ctx) }()

	pos := 0.5
	err := hub.handleControl(ctx, nil, ControlMessage{Type: TypeSeek, Position: &pos})
	assert.ErrorContains(t, err, "pending")
}

func TestViewportsEndpoint(t *testing.T) {
	f := newFixture(t, "a", "b")

	resp, err := http.Get(f.srv.URL + "/api/viewports")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var infos []ViewportInfo
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&infos))
	require.Len(t, infos, 2)
	assert.Equal(t, f.hub.Viewports()[0].ID, infos[0].ID)
	assert.True(t, infos[1].Running)
}

func TestIndexPage(t *testing.T) {
	f := newFixture(t, "a")

	resp, err := http.Get(f.srv.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
}

func TestClientDisconnectUnregisters(t *testing.T) {
	f := newFixture(t, "a")
	conn, _ := f.dial(t)

	assert.Eventually(t, func() bool { return f.hub.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)
	conn.Close()
	assert.Eventually(t, func() bool { return f.hub.Clients() == 0 }, 2*time.Second, 10*time.Millisecond)
}
