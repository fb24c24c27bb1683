package tui

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tessro/mocap/internal/events"
	"github.com/tessro/mocap/internal/playback"
	"github.com/tessro/mocap/internal/store"
	"github.com/tessro/mocap/internal/syncgroup"
	"github.com/tessro/mocap/internal/tail"
	"github.com/tessro/mocap/internal/timeline"
	"github.com/tessro/mocap/internal/tui/components"
	"github.com/tessro/mocap/internal/tui/styles"
)

const (
	headerHeight = 1
	statusHeight = 1
	bottomHeight = 7
	maxEvents    = 50
)

// Options configures the player.
type Options struct {
	FPS          int
	Step         time.Duration
	SeekStep     float64
	ShowTimeline bool
	AutoRotate   bool
	// RotateSpeed is the camera drift in degrees per second.
	RotateSpeed float64
	Sync        bool
	Milestone   int
	Bookmarks   *store.Store
	Clock       playback.Clock
	Logger      *slog.Logger
}

// Source is one recording to play.
type Source struct {
	Engine *playback.Engine
	// Path identifies the recording for bookmarks.
	Path string
}

type viewport struct {
	engine   *playback.Engine
	timeline *timeline.Timeline
	watcher  *tail.Watcher
	path     string
	err      error
}

// Model is the main TUI model
type Model struct {
	opts      Options
	loop      *playback.Loop
	viewports []*viewport
	group     *syncgroup.Group
	logger    *slog.Logger

	width   int
	height  int
	focused int

	// Components
	panel      *components.Viewport
	eventsView *components.Events
	tracksView *components.Tracks
	help       help.Model
	events     []tail.Event

	azimuth    float64
	autoRotate bool
	lastFrame  time.Time
	synced     bool
	showHelp   bool

	// Error handling
	lastError   error
	errorExpiry time.Time
	notice      string
	noticeUntil time.Time

	quitting bool
	now      func() time.Time
}

// NewModel creates a player for sources. Engines should already have their
// loads started.
func NewModel(sources []Source, opts Options) Model {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Step <= 0 {
		opts.Step = 100 * time.Millisecond
	}
	if opts.SeekStep <= 0 {
		opts.SeekStep = 0.05
	}
	logger := opts.Logger.With("component", "tui")

	m := Model{
		opts:       opts,
		loop:       playback.NewLoop(opts.FPS, opts.Clock, opts.Logger),
		logger:     logger,
		panel:      components.NewViewport(),
		eventsView: components.NewEvents(),
		tracksView: components.NewTracks(),
		help:       help.New(),
		autoRotate: opts.AutoRotate,
		now:        time.Now,
	}
	if opts.Sync {
		m.group = syncgroup.New(opts.Logger)
	}

	for _, src := range sources {
		e := src.Engine
		tl := timeline.New(e.Name(), opts.Logger)
		timeline.Bind(e, tl, opts.Logger)
		m.loop.Add(e)
		if m.group != nil {
			m.group.Register(e)
		}
		m.viewports = append(m.viewports, &viewport{
			engine:   e,
			timeline: tl,
			watcher:  tail.NewWatcher(e, opts.Milestone),
			path:     src.Path,
		})
	}
	return m
}

// Messages
type frameMsg time.Time
type readyMsg struct {
	index int
	err   error
}
type syncedMsg struct{ err error }
type errMsg error
type noticeMsg string

// Commands
func (m Model) tick() tea.Cmd {
	return tea.Tick(m.loop.Interval(), func(t time.Time) tea.Msg {
		return frameMsg(t)
	})
}

func (m Model) waitReady(i int) tea.Cmd {
	ready := m.viewports[i].engine.Ready()
	return func() tea.Msg {
		<-ready.Done()
		return readyMsg{index: i, err: ready.Err()}
	}
}

func (m Model) waitSync() tea.Cmd {
	if m.group == nil || len(m.group.Members()) < 2 {
		return nil
	}
	group := m.group
	return func() tea.Msg {
		return syncedMsg{err: group.Wait(context.Background())}
	}
}

func (m Model) saveBookmark() tea.Cmd {
	if m.opts.Bookmarks == nil || len(m.viewports) == 0 {
		return nil
	}
	vp := m.viewports[m.focused]
	if !vp.engine.IsReady() || vp.path == "" {
		return nil
	}
	st := vp.engine.State()
	b := store.Bookmark{
		Path:     vp.path,
		Name:     vp.engine.Name(),
		Position: st.Progress(),
		Elapsed:  st.Elapsed,
		Duration: st.Duration,
	}
	bookmarks := m.opts.Bookmarks
	return func() tea.Msg {
		if _, err := bookmarks.Save(b); err != nil {
			return errMsg(err)
		}
		return noticeMsg(fmt.Sprintf("Bookmarked %s at %.0f%%", b.Name, b.Position*100))
	}
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.tick(), m.waitSync()}
	for i := range m.viewports {
		cmds = append(cmds, m.waitReady(i))
	}
	return tea.Batch(cmds...)
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.MouseMsg:
		m.handleMouse(msg)
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.layout()
		return m, nil

	case frameMsg:
		m.frame(time.Time(msg))
		return m, m.tick()

	case readyMsg:
		vp := m.viewports[msg.index]
		vp.err = msg.err
		if msg.err != nil {
			m.setError(msg.err)
		}
		return m, nil

	case syncedMsg:
		if msg.err != nil {
			m.setError(msg.err)
			return m, nil
		}
		m.resync()
		return m, nil

	case errMsg:
		m.setError(msg)
		return m, nil

	case noticeMsg:
		m.notice = string(msg)
		m.noticeUntil = m.now().Add(3 * time.Second)
		return m, nil
	}

	return m, nil
}

// frame advances every engine by one loop step on the Update goroutine.
func (m *Model) frame(t time.Time) {
	if !m.lastFrame.IsZero() && m.autoRotate {
		dt := t.Sub(m.lastFrame).Seconds()
		m.azimuth = math.Mod(m.azimuth+m.opts.RotateSpeed*math.Pi/180*dt, 2*math.Pi)
	}
	m.lastFrame = t

	m.loop.Step()

	for _, vp := range m.viewports {
		for _, ev := range drain(vp.watcher) {
			m.events = append([]tail.Event{ev}, m.events...)
		}
	}
	if len(m.events) > maxEvents {
		m.events = m.events[:maxEvents]
	}

	if m.lastError != nil && m.now().After(m.errorExpiry) {
		m.lastError = nil
	}
}

func drain(w *tail.Watcher) []tail.Event {
	var out []tail.Event
	for {
		select {
		case ev := <-w.Events():
			out = append(out, ev)
		default:
			return out
		}
	}
}

func (m *Model) setError(err error) {
	m.logger.Warn("player error", "err", err)
	m.lastError = err
	m.errorExpiry = m.now().Add(5 * time.Second)
}

func (m *Model) resync() {
	if m.group == nil {
		return
	}
	if err := m.group.Anchor(); err != nil {
		m.setError(err)
		return
	}
	m.synced = true
}

// transport returns the viewports a playback key applies to: all of them
// when synchronized, otherwise the focused one.
func (m Model) transport() []*viewport {
	if len(m.viewports) == 0 {
		return nil
	}
	if m.group != nil {
		return m.viewports
	}
	return m.viewports[m.focused : m.focused+1]
}

func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, keys.Quit) {
		m.quitting = true
		return m, tea.Quit
	}

	if m.showHelp {
		if key.Matches(msg, keys.Help) || msg.String() == "esc" {
			m.showHelp = false
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, keys.Help):
		m.showHelp = true
	case key.Matches(msg, keys.Rotate):
		m.autoRotate = !m.autoRotate
	case key.Matches(msg, keys.Next):
		if n := len(m.viewports); n > 0 {
			m.focused = (m.focused + 1) % n
		}
	case key.Matches(msg, keys.Prev):
		if n := len(m.viewports); n > 0 {
			m.focused = (m.focused + n - 1) % n
		}
	case key.Matches(msg, keys.Sync):
		m.resync()
	case key.Matches(msg, keys.Bookmark):
		return m, m.saveBookmark()
	case key.Matches(msg, keys.Pause):
		for _, vp := range m.transport() {
			vp.engine.TogglePause()
		}
	case key.Matches(msg, keys.Step):
		for _, vp := range m.transport() {
			vp.engine.Pause()
			vp.engine.SingleStep(m.opts.Step)
		}
	case key.Matches(msg, keys.Restart):
		for _, vp := range m.transport() {
			vp.engine.Restart()
		}
	case key.Matches(msg, keys.Back):
		m.nudge(-m.opts.SeekStep)
	case key.Matches(msg, keys.Forward):
		m.nudge(m.opts.SeekStep)
	case key.Matches(msg, keys.Faster):
		m.scaleSpeed(2)
	case key.Matches(msg, keys.Slower):
		m.scaleSpeed(0.5)
	}
	return m, nil
}

// nudge seeks by delta through each timeline, as a click would.
func (m *Model) nudge(delta float64) {
	for _, vp := range m.transport() {
		if !vp.engine.IsReady() {
			continue
		}
		vp.timeline.Bus().Dispatch(events.SeekRequest{Position: vp.engine.Progress() + delta})
	}
}

func (m *Model) scaleSpeed(factor float64) {
	for _, vp := range m.transport() {
		s := vp.engine.State().TimeScale * factor
		s = math.Max(0.125, math.Min(8, s))
		vp.engine.SetTimeScale(s)
	}
}

func (m *Model) handleMouse(msg tea.MouseMsg) {
	if msg.Action != tea.MouseActionPress || msg.Button != tea.MouseButtonLeft {
		return
	}
	for i, vp := range m.viewports {
		left, width := vp.timeline.Bounds()
		inPanel := float64(msg.X) >= left-2 && float64(msg.X) < left+width+2
		if inPanel {
			m.focused = i
		}
		if m.opts.ShowTimeline && msg.Y == m.barRow() && vp.timeline.Contains(float64(msg.X)) {
			vp.timeline.Click(float64(msg.X))
		}
	}
}

func (m Model) panelWidth() int {
	if len(m.viewports) == 0 {
		return m.width
	}
	return m.width / len(m.viewports)
}

func (m Model) showBottom() bool {
	return m.height >= 24
}

func (m Model) panelHeight() int {
	h := m.height - headerHeight - statusHeight
	if m.showBottom() {
		h -= bottomHeight
	}
	return h
}

// barRow is the screen row of every timeline bar.
func (m Model) barRow() int {
	return headerHeight + 1 + 1 + components.SceneRows(m.panelHeight(), true)
}

// layout places each timeline under its panel.
func (m *Model) layout() {
	pw := m.panelWidth()
	for i, vp := range m.viewports {
		vp.timeline.SetBounds(float64(i*pw+2), float64(components.InnerWidth(pw)))
	}
}

// View renders the UI
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	if m.width == 0 {
		return "Loading..."
	}

	if m.showHelp {
		return m.renderHelp()
	}

	pw := m.panelWidth()
	ph := m.panelHeight()

	panels := make([]string, len(m.viewports))
	for i, vp := range m.viewports {
		panels[i] = m.panel.Render(m.viewportView(vp), pw, ph, i == m.focused)
	}

	sections := []string{m.renderHeader(), lipgloss.JoinHorizontal(lipgloss.Top, panels...)}
	if m.showBottom() {
		sections = append(sections, m.renderBottom())
	}
	sections = append(sections, m.renderStatusBar())

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) viewportView(vp *viewport) components.ViewportView {
	view := components.ViewportView{
		Name:         vp.engine.Name(),
		Loading:      !vp.engine.IsReady() && vp.err == nil,
		Err:          vp.err,
		Azimuth:      m.azimuth,
		Fill:         vp.timeline.Fill(),
		ShowTimeline: m.opts.ShowTimeline,
		Synced:       m.synced,
	}
	if vp.engine.IsReady() {
		view.State = vp.engine.State()
		view.Poses = vp.engine.Poses()
	}
	return view
}

func (m Model) renderHeader() string {
	title := styles.Title.Render("mocap")
	info := fmt.Sprintf(" %d viewport", len(m.viewports))
	if len(m.viewports) != 1 {
		info += "s"
	}
	if m.group != nil {
		if m.synced {
			info += "  synced"
		} else {
			info += "  waiting to sync"
		}
	}
	if m.autoRotate {
		info += "  ⟳"
	}
	return lipgloss.NewStyle().Width(m.width).Render(title + styles.Dim.Render(info))
}

func (m Model) renderBottom() string {
	left := m.width * 60 / 100
	right := m.width - left

	var tracks string
	log := m.eventsView.Render(m.events, left, bottomHeight, false)
	if len(m.viewports) > 0 {
		vp := m.viewports[m.focused]
		if vp.engine.IsReady() {
			tracks = m.tracksView.Render(vp.engine.Session(), vp.engine.Poses(), right, bottomHeight, false)
		} else {
			tracks = m.tracksView.Render(nil, nil, right, bottomHeight, false)
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, log, tracks)
}

func (m Model) renderStatusBar() string {
	status := m.help.View(keys)

	if m.notice != "" && m.now().Before(m.noticeUntil) {
		status = styles.Playing.Render(m.notice)
	}
	if m.lastError != nil {
		status = styles.ErrorText.Render("Error: " + m.lastError.Error())
	}

	return lipgloss.NewStyle().
		Width(m.width).
		Padding(0, 1).
		Render(status)
}

func (m Model) renderHelp() string {
	h := m.help
	h.ShowAll = true

	content := lipgloss.JoinVertical(lipgloss.Left,
		styles.Title.Render("mocap - Keyboard Shortcuts"),
		"",
		h.View(keys),
		"",
		styles.Dim.Render("Click a timeline to seek. Press ? or Esc to close"),
	)

	return lipgloss.NewStyle().
		Width(m.width).
		Height(m.height).
		Align(lipgloss.Center, lipgloss.Center).
		Render(styles.BorderStyle.Padding(1, 2).Render(content))
}

// Run starts the player and blocks until it quits.
func Run(sources []Source, opts Options) error {
	model := NewModel(sources, opts)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseCellMotion())

	_, err := p.Run()
	return err
}
