// Package server streams playback frames to browsers over websockets and
// accepts transport commands back.
package server

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	mocaperrors "github.com/tessro/mocap/internal/errors"
	"github.com/tessro/mocap/internal/events"
	"github.com/tessro/mocap/internal/playback"
	"github.com/tessro/mocap/internal/timeline"
)

//go:embed static/*
var staticFS embed.FS

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const (
	writeWait  = 5 * time.Second
	sendBuffer = 64
)

// Viewport is one engine exposed to clients, with the timeline that turns
// client seeks into engine seeks.
type Viewport struct {
	ID       string
	Engine   *playback.Engine
	Timeline *timeline.Timeline
}

// Hub owns the viewports and connected clients. Engine access always goes
// through the loop.
type Hub struct {
	loop        *playback.Loop
	logger      *slog.Logger
	defaultStep time.Duration

	viewports []*Viewport
	byID      map[string]*Viewport

	mu      sync.Mutex
	clients map[*client]struct{}
}

// Option configures a Hub.
type Option func(*Hub)

// WithLogger sets the hub logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Hub) {
		h.logger = l
	}
}

// WithDefaultStep sets the step used when a step command carries no ms.
func WithDefaultStep(d time.Duration) Option {
	return func(h *Hub) {
		h.defaultStep = d
	}
}

// NewHub creates a hub that drives engines through loop.
func NewHub(loop *playback.Loop, opts ...Option) *Hub {
	h := &Hub{
		loop:        loop,
		logger:      slog.Default(),
		defaultStep: 100 * time.Millisecond,
		byID:        make(map[string]*Viewport),
		clients:     make(map[*client]struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.With("component", "server")
	return h
}

// Add exposes an engine as a viewport. Call before the loop runs, or from
// inside loop.Do.
func (h *Hub) Add(e *playback.Engine) *Viewport {
	vp := &Viewport{
		ID:       uuid.NewString(),
		Engine:   e,
		Timeline: timeline.New(e.Name(), h.logger),
	}
	vp.Timeline.SetBounds(0, 1)
	timeline.Bind(e, vp.Timeline, h.logger)

	events.On(e.Bus(), func(events.Step) { h.publish(vp) })
	events.On(e.Bus(), func(events.Seek) { h.publish(vp) })

	h.viewports = append(h.viewports, vp)
	h.byID[vp.ID] = vp
	h.logger.Debug("viewport added", "id", vp.ID, "engine", e.Name())
	return vp
}

// Viewports returns the viewports in the order they were added.
func (h *Hub) Viewports() []*Viewport {
	return h.viewports
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Handler returns the HTTP routes: the viewer page, /ws and /api/viewports.
func (h *Hub) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws", h.handleWS)
	mux.HandleFunc("GET /api/viewports", h.handleViewports)

	static, err := fs.Sub(staticFS, "static")
	if err != nil {
		h.logger.Error("static files unavailable", "err", err)
	} else {
		mux.Handle("GET /", http.FileServerFS(static))
	}
	return mux
}

// Serve serves on ln until ctx is done.
func (h *Hub) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           h.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv.RegisterOnShutdown(h.closeClients)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			h.logger.Warn("shutdown", "err", err)
		}
	}()

	h.logger.Info("listening", "addr", ln.Addr().String())
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("%w: %w", mocaperrors.ErrNetworkError, err)
	}
	return nil
}

// publish runs on the loop goroutine.
func (h *Hub) publish(vp *Viewport) {
	h.mu.Lock()
	n := len(h.clients)
	h.mu.Unlock()
	if n == 0 {
		return
	}

	data, err := json.Marshal(frameMessage(vp.ID, vp.Engine.Frame(), vp.Timeline.Fill()))
	if err != nil {
		h.logger.Error("encode frame", "err", err)
		return
	}
	h.broadcast(data)
}

func (h *Hub) broadcast(data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			// Slow client; it catches up on the next frame.
		}
	}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.logger.Info("client connected", "client", c.id)
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
	h.logger.Info("client disconnected", "client", c.id)
}

func (h *Hub) closeClients() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		c.conn.Close()
	}
}

// snapshot runs on the loop goroutine.
func (h *Hub) snapshot() []ViewportInfo {
	out := make([]ViewportInfo, 0, len(h.viewports))
	for _, vp := range h.viewports {
		st := vp.Engine.State()
		out = append(out, ViewportInfo{
			ID:         vp.ID,
			Name:       vp.Engine.Name(),
			Ready:      vp.Engine.IsReady(),
			Running:    st.Running,
			ElapsedMS:  ms(st.Elapsed),
			DurationMS: ms(st.Duration),
			Progress:   st.Progress(),
			Fill:       vp.Timeline.Fill(),
		})
	}
	return out
}

func (h *Hub) viewportInfos(ctx context.Context) ([]ViewportInfo, error) {
	var infos []ViewportInfo
	if err := h.loop.Call(ctx, func() { infos = h.snapshot() }); err != nil {
		return nil, err
	}
	return infos, nil
}

func (h *Hub) handleViewports(w http.ResponseWriter, r *http.Request) {
	infos, err := h.viewportInfos(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(infos); err != nil {
		h.logger.Warn("encode viewports", "err", err)
	}
}

func (h *Hub) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	c := &client{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, sendBuffer),
	}

	infos, err := h.viewportInfos(r.Context())
	if err != nil {
		h.logger.Warn("hello failed", "client", c.id, "err", err)
		return
	}
	if err := c.writeJSON(helloMessage{Type: TypeHello, Client: c.id, Viewports: infos}); err != nil {
		return
	}

	h.register(c)
	defer h.unregister(c)
	go c.writePump()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("websocket read error", "client", c.id, "err", err)
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		var msg ControlMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.writeError(fmt.Errorf("invalid message: %w", err))
			continue
		}
		if err := h.handleControl(r.Context(), c, msg); err != nil {
			h.logger.Debug("control failed", "client", c.id, "type", msg.Type, "err", err)
			c.writeError(err)
		}
	}
}

// handleControl applies one client message. It returns once the command has
// run on the loop, so replies are ordered after their effects.
func (h *Hub) handleControl(ctx context.Context, c *client, msg ControlMessage) error {
	switch msg.Type {
	case TypePing:
		return c.writeJSON(map[string]string{"type": TypePong})
	case TypeSeek, TypePause, TypeResume, TypeToggle, TypeStep, TypeRestart, TypeSpeed:
	default:
		return fmt.Errorf("unknown message type %q", msg.Type)
	}

	targets, err := h.targets(msg.Viewport)
	if err != nil {
		return err
	}
	if msg.Type == TypeSeek && msg.Position == nil {
		return fmt.Errorf("%w: seek requires a position", mocaperrors.ErrInvalidPosition)
	}

	var applyErr error
	if err := h.loop.Call(ctx, func() { applyErr = h.apply(targets, msg) }); err != nil {
		return err
	}
	return applyErr
}

func (h *Hub) targets(id string) ([]*Viewport, error) {
	if id == "" {
		return h.viewports, nil
	}
	vp, ok := h.byID[id]
	if !ok {
		return nil, fmt.Errorf("unknown viewport %q", id)
	}
	return []*Viewport{vp}, nil
}

// apply runs on the loop goroutine.
func (h *Hub) apply(targets []*Viewport, msg ControlMessage) error {
	var errs []error
	for _, vp := range targets {
		e := vp.Engine
		switch msg.Type {
		case TypeSeek:
			if !e.IsReady() {
				errs = append(errs, fmt.Errorf("%s: %w", e.Name(), mocaperrors.ErrNotReady))
				continue
			}
			vp.Timeline.Click(*msg.Position)
		case TypePause:
			e.Pause()
		case TypeResume:
			e.Resume()
		case TypeToggle:
			e.TogglePause()
		case TypeStep:
			step := h.defaultStep
			if msg.MS > 0 {
				step = time.Duration(msg.MS * float64(time.Millisecond))
			}
			e.SingleStep(step)
		case TypeRestart:
			e.Restart()
		case TypeSpeed:
			e.SetTimeScale(msg.Speed)
		}
	}
	return errors.Join(errs...)
}

type client struct {
	id      string
	conn    *websocket.Conn
	send    chan []byte
	writeMu sync.Mutex
}

func (c *client) writePump() {
	for data := range c.send {
		if err := c.write(websocket.TextMessage, data); err != nil {
			c.conn.Close()
			for range c.send {
			}
			return
		}
	}
}

func (c *client) write(messageType int, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(messageType, data)
}

func (c *client) writeJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.write(websocket.TextMessage, data)
}

func (c *client) writeError(err error) {
	_ = c.writeJSON(errorMessage{Type: TypeError, Error: err.Error()})
}
