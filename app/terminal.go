package app

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/vimo-ai/eterm"
	"github.com/vimo-ai/eterm/pty"
	"github.com/vimo-ai/eterm/render"
)

// Mode selects how a terminal participates in scheduling.
type Mode int32

const (
	// ModeActive raises damage events and cursor blink ticks.
	ModeActive Mode = iota
	// ModeBackground keeps parsing bytes and mutating the grid for
	// correctness, but raises no content damage; only bell, title and
	// exit mark the scheduler dirty. Working-directory changes are still
	// queued for the host without waking it.
	ModeBackground
)

// readChunk bounds one PTY drain, which also bounds how long the
// emulator lock is held against Snapshot.
const readChunk = 64 * 1024

// Terminal is the aggregate for one terminal session: the PTY, the
// emulator, and this terminal's renderer (with its private line
// cache). The aggregate owns two goroutines: a reader draining the PTY
// into the emulator, and a writer serializing host input.
type Terminal struct {
	id       TerminalID
	app      *App
	emu      *eterm.Terminal
	pty      *pty.Pty
	renderer *render.Renderer

	mode atomic.Int32

	writeCh chan []byte
	done    chan struct{}
	wg      sync.WaitGroup

	exited   atomic.Bool
	exitCode atomic.Int64

	lastBlinking atomic.Bool

	closeOnce sync.Once
}

// ErrClosed is returned for commands on a terminal whose child exited.
var ErrClosed = errors.New("app: terminal closed")

// ID returns the terminal id.
func (t *Terminal) ID() TerminalID {
	return t.id
}

// start launches the reader and writer goroutines.
func (t *Terminal) start() {
	t.lastBlinking.Store(t.emu.CursorBlinking())

	t.wg.Add(2)
	go t.readLoop()
	go t.writeLoop()
}

// readLoop drains the PTY into the emulator until EOF. Each chunk is
// bounded so Snapshot on the render thread never waits on an unbounded
// parser step. Any read error after child exit (EIO on Linux) is an
// EOF; the loop then reaps and reports.
func (t *Terminal) readLoop() {
	defer t.wg.Done()

	buf := make([]byte, readChunk)
	for {
		n, err := t.pty.Read(buf)
		if n > 0 {
			if _, werr := t.emu.Write(buf[:n]); werr != nil {
				slog.Debug("emulator write failed", "terminal", t.id, "error", werr)
			}
			t.afterParse()
		}
		if err != nil {
			break
		}
	}

	status := t.pty.Reap()
	t.exited.Store(true)
	t.exitCode.Store(int64(status.Code))
	t.app.terminalExited(t, status)
}

// afterParse propagates damage and cursor-blink changes after a chunk
// of bytes was applied to the grid.
func (t *Terminal) afterParse() {
	blinking := t.emu.CursorBlinking()
	if t.lastBlinking.Swap(blinking) != blinking && t.Mode() == ModeActive {
		t.app.pushEvent(Event{Type: EventCursorBlinkingChange, Terminal: t.id, Blinking: blinking})
	}

	if t.emu.TakeDamage().Any() && t.Mode() == ModeActive {
		t.app.notifyDamage(t.id)
	}
}

// writeLoop serializes host input onto the PTY, retrying partial
// writes. Pending writes are dropped on close.
func (t *Terminal) writeLoop() {
	defer t.wg.Done()

	for {
		select {
		case data := <-t.writeCh:
			for len(data) > 0 {
				n, err := t.pty.Write(data)
				if err != nil {
					return
				}
				data = data[n:]
			}
		case <-t.done:
			return
		}
	}
}

// Write queues input bytes for the child. Ordering across calls is
// preserved. Fails with ErrClosed after child exit.
func (t *Terminal) Write(data []byte) error {
	if t.exited.Load() {
		return ErrClosed
	}

	// Copy: the caller may reuse the buffer.
	owned := make([]byte, len(data))
	copy(owned, data)

	select {
	case t.writeCh <- owned:
		return nil
	case <-t.done:
		return ErrClosed
	}
}

// Resize changes the terminal and PTY dimensions.
// Fails with ErrClosed after child exit.
func (t *Terminal) Resize(cols, rows int) error {
	if t.exited.Load() {
		return ErrClosed
	}
	t.emu.Resize(rows, cols)
	if err := t.pty.Resize(cols, rows); err != nil {
		return err
	}
	if t.Mode() == ModeActive {
		t.app.notifyDamage(t.id)
	}
	return nil
}

// Scroll moves the viewport; positive delta scrolls toward history.
func (t *Terminal) Scroll(deltaLines int) {
	t.emu.ScrollDisplay(deltaLines)
	if t.Mode() == ModeActive {
		t.app.notifyDamage(t.id)
	}
}

// SetMode switches between Active and Background. Returning to Active
// raises full damage so the next frame repaints everything that
// changed while backgrounded.
func (t *Terminal) SetMode(mode Mode) {
	old := Mode(t.mode.Swap(int32(mode)))
	if old != mode && mode == ModeActive {
		t.emu.MarkFullDamage()
		t.app.notifyDamage(t.id)
	}
}

// Mode returns the current scheduling mode.
func (t *Terminal) Mode() Mode {
	return Mode(t.mode.Load())
}

// Snapshot returns an immutable render snapshot of the terminal.
func (t *Terminal) Snapshot() *eterm.TerminalState {
	return t.emu.Snapshot()
}

// Emulator exposes the underlying emulator for queries.
func (t *Terminal) Emulator() *eterm.Terminal {
	return t.emu
}

// --- Selection ---

// StartSelection begins a selection at the given absolute grid point.
func (t *Terminal) StartSelection(p eterm.Point, kind eterm.SelectionKind) {
	t.emu.StartSelection(p, kind)
	if t.Mode() == ModeActive {
		t.app.notifyDamage(t.id)
	}
}

// UpdateSelection extends the active selection.
func (t *Terminal) UpdateSelection(p eterm.Point) {
	t.emu.UpdateSelection(p)
	if t.Mode() == ModeActive {
		t.app.notifyDamage(t.id)
	}
}

// ClearSelection removes the selection.
func (t *Terminal) ClearSelection() {
	t.emu.ClearSelection()
	if t.Mode() == ModeActive {
		t.app.notifyDamage(t.id)
	}
}

// SelectionText returns the text covered by the selection.
func (t *Terminal) SelectionText() string {
	return t.emu.SelectionText()
}

// --- Search ---

// Search scans for pattern and returns the match count.
func (t *Terminal) Search(pattern string) int {
	n := t.emu.Search(pattern)
	if t.Mode() == ModeActive {
		t.app.notifyDamage(t.id)
	}
	return n
}

// NextMatch advances the focused search match.
func (t *Terminal) NextMatch() (eterm.Match, bool) {
	m, ok := t.emu.NextMatch()
	if ok && t.Mode() == ModeActive {
		t.app.notifyDamage(t.id)
	}
	return m, ok
}

// PrevMatch moves the focused search match backwards.
func (t *Terminal) PrevMatch() (eterm.Match, bool) {
	m, ok := t.emu.PrevMatch()
	if ok && t.Mode() == ModeActive {
		t.app.notifyDamage(t.id)
	}
	return m, ok
}

// ClearSearch removes search overlays, keeping the pattern.
func (t *Terminal) ClearSearch() {
	t.emu.ClearSearch()
	if t.Mode() == ModeActive {
		t.app.notifyDamage(t.id)
	}
}

// --- Queries ---

// Cursor returns the cursor position (col, row).
func (t *Terminal) Cursor() (col, row int) {
	r, c := t.emu.CursorPos()
	return c, r
}

// Cwd returns the OSC 7 working directory path, empty if unreported.
func (t *Terminal) Cwd() string {
	return t.emu.WorkingDirectoryPath()
}

// Title returns the current window title.
func (t *Terminal) Title() string {
	return t.emu.Title()
}

// ForegroundProcessName probes the process currently owning the
// terminal foreground. Empty when unavailable.
func (t *Terminal) ForegroundProcessName() string {
	if t.exited.Load() {
		return ""
	}
	return t.pty.ForegroundProcessName()
}

// HasRunningChildProcess reports whether a program other than the
// shell owns the terminal foreground.
func (t *Terminal) HasRunningChildProcess() bool {
	if t.exited.Load() {
		return false
	}
	return t.pty.HasRunningChildProcess()
}

// IsBracketedPasteEnabled reports DEC mode 2004.
func (t *Terminal) IsBracketedPasteEnabled() bool {
	return t.emu.IsBracketedPasteEnabled()
}

// IsKittyKeyboardEnabled reports an active Kitty keyboard protocol mode.
func (t *Terminal) IsKittyKeyboardEnabled() bool {
	return t.emu.IsKittyKeyboardEnabled()
}

// WordAt returns the semantic word under the given point.
func (t *Terminal) WordAt(p eterm.Point) string {
	word, _, _ := t.emu.WordAt(p)
	return word
}

// InputRow returns the screen row of the shell input line.
func (t *Terminal) InputRow() int {
	return t.emu.InputRow()
}

// Exited reports whether the child process has exited.
func (t *Terminal) Exited() bool {
	return t.exited.Load()
}

// ExitCode returns the child exit code; valid after Exited.
func (t *Terminal) ExitCode() int {
	return int(t.exitCode.Load())
}

// close tears the aggregate down: the child is killed, the master fd
// closed (unblocking the reader), and both goroutines joined.
func (t *Terminal) close() {
	t.closeOnce.Do(func() {
		close(t.done)
		t.pty.Kill()
		_ = t.pty.Close()
		t.wg.Wait()
	})
}

// ptyResponder adapts the terminal's write queue as the emulator's
// response sink, so replies the emulator generates (cursor position
// reports, mode reports) are ordered with host input.
type ptyResponder struct {
	t *Terminal
}

func (r ptyResponder) Write(p []byte) (int, error) {
	if err := r.t.Write(p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// terminalObserver fans emulator provider callbacks into the app event
// queue. Bell, title and cwd events bypass the Background damage
// filter: the host hears them regardless of mode.
type terminalObserver struct {
	t *Terminal
}

func (o terminalObserver) Ring() {
	o.t.app.pushWakingEvent(Event{Type: EventBell, Terminal: o.t.id})
}

func (o terminalObserver) SetTitle(title string) {
	o.t.app.pushWakingEvent(Event{Type: EventTitleChanged, Terminal: o.t.id, Title: title})
}

func (o terminalObserver) PushTitle() {}

func (o terminalObserver) PopTitle() {
	o.t.app.pushWakingEvent(Event{Type: EventTitleChanged, Terminal: o.t.id, Title: o.t.emu.Title()})
}

func (o terminalObserver) WorkingDirChanged(path string) {
	o.t.app.pushEvent(Event{Type: EventCwdChanged, Terminal: o.t.id, Path: path})
}
