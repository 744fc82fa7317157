// Package app is the application coordinator: it owns the terminal
// collection, fans engine events out to the host, and drives rendering
// and composition on a display-linked schedule.
package app

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/vimo-ai/eterm"
	"github.com/vimo-ai/eterm/compose"
	"github.com/vimo-ai/eterm/pty"
	"github.com/vimo-ai/eterm/render"
)

// ErrNotFound is returned for operations addressing an unknown
// terminal id.
var ErrNotFound = errors.New("app: terminal not found")

// Layout places one terminal's frame at a host-chosen rectangle, in
// physical pixels with a top-left origin.
type Layout struct {
	ID   TerminalID
	Rect image.Rectangle

	// Glow asks the compositor for the active-terminal border.
	Glow bool
}

// App coordinates terminals, rendering and composition. The host
// drives it from one thread: commands, Tick and Render are safe to
// interleave; PTY readers only touch their own terminal and the dirty
// flag.
type App struct {
	cfg Config

	fonts      *render.FontSet
	theme      *render.Theme
	atlas      *render.Atlas
	compositor *compose.Compositor

	mu        sync.Mutex
	terminals map[TerminalID]*Terminal
	nextID    TerminalID
	closed    bool

	queue     eventQueue
	scheduler *Scheduler

	// callback receives every queued event as it is pushed (the host's
	// wakeup channel); nil-safe.
	callbackMu sync.Mutex
	callback   func(Event)
}

// New builds an App from the configuration. A font-config load failure
// falls back to the built-in face rather than failing construction;
// an invalid geometry is rejected.
func New(cfg Config) (*App, error) {
	cfg.applyDefaults()
	if !cfg.valid() {
		return nil, fmt.Errorf("app: invalid config")
	}

	fonts, err := render.LoadFontSet(cfg.FontPaths, cfg.FontSize, cfg.Scale, cfg.LineHeightFactor)
	if err != nil {
		return nil, fmt.Errorf("app: fonts: %w", err)
	}

	theme := render.DefaultTheme()
	if cfg.ThemePath != "" {
		loaded, err := render.LoadTheme(cfg.ThemePath)
		if err != nil {
			slog.Warn("theme load failed, using default", "path", cfg.ThemePath, "error", err)
		} else {
			theme = loaded
		}
	}

	a := &App{
		cfg:        cfg,
		fonts:      fonts,
		theme:      theme,
		atlas:      render.NewAtlas(0),
		compositor: compose.New(cfg.WindowWidth, cfg.WindowHeight, cfg.Scale),
		terminals:  make(map[TerminalID]*Terminal),
	}
	a.compositor.SetBackground(theme.Background)
	a.scheduler = newScheduler(cfg.RefreshRate, a.anyActiveBlinking, a.emitWakeup)
	a.scheduler.start()

	return a, nil
}

// Close tears down every terminal and stops the scheduler.
func (a *App) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	terms := make([]*Terminal, 0, len(a.terminals))
	for _, t := range a.terminals {
		terms = append(terms, t)
	}
	a.terminals = make(map[TerminalID]*Terminal)
	a.mu.Unlock()

	for _, t := range terms {
		t.close()
	}
	a.scheduler.close()
}

// SetEventCallback registers the host's event sink. Events are also
// buffered for Tick; the callback is the low-latency wakeup path.
func (a *App) SetEventCallback(fn func(Event)) {
	a.callbackMu.Lock()
	a.callback = fn
	a.callbackMu.Unlock()
}

// CreateTerminal spawns a shell and registers a new terminal. Zero
// cols/rows and an empty shell fall back to the configuration.
func (a *App) CreateTerminal(cols, rows int, shell, cwd string) (TerminalID, error) {
	if cols <= 0 {
		cols = a.cfg.Cols
	}
	if rows <= 0 {
		rows = a.cfg.Rows
	}
	if shell == "" {
		shell = a.cfg.Shell
	}

	env := append(os.Environ(), "TERM=xterm-256color", "COLORTERM=truecolor")
	p, err := pty.Spawn(cols, rows, shell, cwd, env)
	if err != nil {
		return 0, err
	}

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		p.Kill()
		_ = p.Close()
		return 0, ErrClosed
	}
	a.nextID++
	id := a.nextID
	a.mu.Unlock()

	t := &Terminal{
		id:      id,
		app:     a,
		pty:     p,
		writeCh: make(chan []byte, 64),
		done:    make(chan struct{}),
	}

	obs := terminalObserver{t: t}
	t.emu = eterm.New(
		eterm.WithSize(rows, cols),
		eterm.WithHistorySize(a.cfg.HistorySize),
		eterm.WithResponse(ptyResponder{t: t}),
		eterm.WithBell(obs),
		eterm.WithTitle(obs),
		eterm.WithWorkingDir(obs),
		eterm.WithWordDelimiters(a.cfg.WordDelimiters),
		eterm.WithSizeProvider(a),
	)
	t.renderer = render.New(a.fonts, a.theme, a.atlas)
	t.start()

	a.mu.Lock()
	a.terminals[id] = t
	a.mu.Unlock()

	return id, nil
}

// CloseTerminal destroys a terminal: the child is reaped and the fd
// released. Returns false for unknown ids.
func (a *App) CloseTerminal(id TerminalID) bool {
	a.mu.Lock()
	t, ok := a.terminals[id]
	delete(a.terminals, id)
	a.mu.Unlock()

	if !ok {
		return false
	}
	t.close()
	return true
}

// Terminal returns the aggregate for an id.
func (a *App) Terminal(id TerminalID) (*Terminal, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	t, ok := a.terminals[id]
	return t, ok
}

// TerminalIDs returns the ids of all live terminals.
func (a *App) TerminalIDs() []TerminalID {
	a.mu.Lock()
	defer a.mu.Unlock()

	ids := make([]TerminalID, 0, len(a.terminals))
	for id := range a.terminals {
		ids = append(ids, id)
	}
	return ids
}

// Write sends input bytes to a terminal.
func (a *App) Write(id TerminalID, data []byte) error {
	t, ok := a.Terminal(id)
	if !ok {
		return ErrNotFound
	}
	return t.Write(data)
}

// Resize changes a terminal's dimensions.
func (a *App) Resize(id TerminalID, cols, rows int) error {
	t, ok := a.Terminal(id)
	if !ok {
		return ErrNotFound
	}
	return t.Resize(cols, rows)
}

// Scroll moves a terminal's viewport.
func (a *App) Scroll(id TerminalID, deltaLines int) error {
	t, ok := a.Terminal(id)
	if !ok {
		return ErrNotFound
	}
	t.Scroll(deltaLines)
	return nil
}

// Tick drains queued events for the host.
func (a *App) Tick() []Event {
	return a.queue.drain()
}

// Render snapshots every terminal in the layout, renders frames, and
// composites them onto the final surface image in layout order.
func (a *App) Render(layouts []Layout) (*image.RGBA, error) {
	blinkOn := BlinkPhase(time.Now())

	placements := make([]compose.Placement, 0, len(layouts))
	for _, l := range layouts {
		t, ok := a.Terminal(l.ID)
		if !ok {
			return nil, ErrNotFound
		}

		snap := t.Snapshot()
		frame := t.renderer.Render(snap, render.Viewport{
			Width:  l.Rect.Dx(),
			Height: l.Rect.Dy(),
			Scale:  a.fonts.Scale(),
		}, render.RenderOptions{
			BlinkOn: blinkOn,
		})

		placements = append(placements, compose.Placement{
			Rect:  l.Rect,
			Frame: frame,
			Glow:  l.Glow,
		})
	}

	return a.compositor.Composite(placements), nil
}

// FontSizeOp re-exports the renderer's font size operations.
type FontSizeOp = render.FontSizeOp

const (
	FontSizeReset    = render.FontSizeReset
	FontSizeDecrease = render.FontSizeDecrease
	FontSizeIncrease = render.FontSizeIncrease
)

// ChangeFontSize applies a font zoom step across the engine: faces are
// rebuilt, the shared atlas is cleared, every line cache is purged and
// all terminals repaint.
func (a *App) ChangeFontSize(op FontSizeOp) {
	if !a.fonts.ChangeSize(op) {
		return
	}
	a.invalidateRenderState()
}

// SetScale applies a display scale (DPI) change.
func (a *App) SetScale(scale float64) {
	if !a.fonts.SetScale(scale) {
		return
	}
	a.invalidateRenderState()
}

func (a *App) invalidateRenderState() {
	a.atlas.Reset()

	a.mu.Lock()
	terms := make([]*Terminal, 0, len(a.terminals))
	for _, t := range a.terminals {
		terms = append(terms, t)
	}
	a.mu.Unlock()

	for _, t := range terms {
		t.renderer.InvalidateCache()
		t.emu.MarkFullDamage()
	}
	a.scheduler.MarkDirty()
	a.emitWakeup()
}

// ResizeSurface updates the compositor's surface geometry.
func (a *App) ResizeSurface(width, height int, scale float64) {
	a.compositor.Resize(width, height, scale)
	a.scheduler.MarkDirty()
}

// FontMetrics returns the current cell metrics in physical pixels.
func (a *App) FontMetrics() render.Metrics {
	return a.fonts.Metrics()
}

// CellSizePixels implements eterm.SizeProvider for pixel-size queries
// from child programs.
func (a *App) CellSizePixels() (width, height int) {
	m := a.fonts.Metrics()
	return m.CellWidth, m.CellHeight
}

// Scheduler exposes the scheduler (dirty flag) for hosts integrating
// their own display link.
func (a *App) Scheduler() *Scheduler {
	return a.scheduler
}

// --- internal plumbing ---

// notifyDamage coalesces content damage from a terminal into the
// scheduler and queues a Damaged event.
func (a *App) notifyDamage(id TerminalID) {
	a.queue.push(Event{Type: EventDamaged, Terminal: id})
	a.scheduler.MarkDirty()
}

// pushEvent queues an event without waking the scheduler.
func (a *App) pushEvent(ev Event) {
	a.queue.push(ev)
	a.deliver(ev)
}

// pushWakingEvent queues an event and marks the scheduler dirty; used
// for the events that wake the scheduler even for Background
// terminals (bell, title, exit).
func (a *App) pushWakingEvent(ev Event) {
	a.queue.push(ev)
	a.scheduler.MarkDirty()
	a.deliver(ev)
}

// emitWakeup posts the coalesced Wakeup to the host.
func (a *App) emitWakeup() {
	a.deliver(Event{Type: EventWakeup})
}

func (a *App) deliver(ev Event) {
	a.callbackMu.Lock()
	cb := a.callback
	a.callbackMu.Unlock()
	if cb != nil {
		cb(ev)
	}
}

// terminalExited records child exit. The terminal stays queryable and
// renderable with its last state until the host closes it.
func (a *App) terminalExited(t *Terminal, status pty.ExitStatus) {
	if status.Err != nil {
		slog.Debug("child reaped with error", "terminal", t.id, "error", status.Err)
	}
	a.pushWakingEvent(Event{Type: EventExit, Terminal: t.id, ExitCode: status.Code})
}

// anyActiveBlinking reports whether any active terminal currently
// shows a blinking, visible cursor (drives blink wakeups).
func (a *App) anyActiveBlinking() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, t := range a.terminals {
		if t.Mode() == ModeActive && t.emu.CursorBlinking() && t.emu.CursorVisible() {
			return true
		}
	}
	return false
}
