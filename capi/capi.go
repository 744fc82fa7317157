// Package capi is the host-facing boundary of the engine: opaque
// handles, flat functions and integer error codes, mirroring the C ABI
// a native host binds against. All pointers stay valid until the
// matching destroy call; no Go error ever crosses the boundary.
package capi

import (
	"image"
	"sync"
	"unicode/utf8"

	"github.com/vimo-ai/eterm"
	"github.com/vimo-ai/eterm/app"
)

// ErrorCode is the boundary's error taxonomy.
type ErrorCode int32

const (
	Success ErrorCode = iota
	NullPointer
	InvalidConfig
	InvalidUtf8
	RenderError
	OutOfBounds
	NotFound
	Closed
)

// AppHandle is an opaque reference to an engine instance.
type AppHandle uintptr

// Event type values delivered to the host callback.
const (
	EventWakeup uint32 = iota
	EventDamaged
	EventTitleChanged
	EventBell
	EventExit
	EventCursorBlinkingChange
	EventCwdChanged
)

// EventCallback receives non-string events. data packs the terminal id
// in the low 32 bits; EventExit adds the exit code in the high 32
// bits, EventCursorBlinkingChange sets bit 32 when blinking is on.
type EventCallback func(eventType uint32, data uint64)

// StringCallback receives events with a string payload
// (EventTitleChanged, EventCwdChanged).
type StringCallback func(eventType uint32, terminal uint64, payload string)

// registry maps handles to live apps.
var registry = struct {
	sync.Mutex
	apps map[AppHandle]*app.App
	next AppHandle
}{apps: make(map[AppHandle]*app.App)}

func lookup(h AppHandle) (*app.App, ErrorCode) {
	registry.Lock()
	defer registry.Unlock()

	a, ok := registry.apps[h]
	if !ok {
		return nil, NullPointer
	}
	return a, Success
}

// AppCreate builds an engine from the configuration and returns its
// handle.
func AppCreate(cfg *app.Config) (AppHandle, ErrorCode) {
	if cfg == nil {
		return 0, NullPointer
	}
	if !utf8.ValidString(cfg.Shell) || !utf8.ValidString(cfg.ThemePath) {
		return 0, InvalidUtf8
	}

	a, err := app.New(*cfg)
	if err != nil {
		return 0, InvalidConfig
	}

	registry.Lock()
	registry.next++
	h := registry.next
	registry.apps[h] = a
	registry.Unlock()
	return h, Success
}

// AppDestroy tears down the engine behind a handle. Idempotent on
// unknown handles.
func AppDestroy(h AppHandle) ErrorCode {
	registry.Lock()
	a, ok := registry.apps[h]
	delete(registry.apps, h)
	registry.Unlock()

	if !ok {
		return NullPointer
	}
	a.Close()
	return Success
}

// AppSetEventCallback registers the host's event sinks. Either may be
// nil.
func AppSetEventCallback(h AppHandle, fn EventCallback, strFn StringCallback) ErrorCode {
	a, code := lookup(h)
	if code != Success {
		return code
	}

	a.SetEventCallback(func(ev app.Event) {
		switch ev.Type {
		case app.EventTitleChanged:
			if strFn != nil {
				strFn(EventTitleChanged, uint64(ev.Terminal), ev.Title)
			}
		case app.EventCwdChanged:
			if strFn != nil {
				strFn(EventCwdChanged, uint64(ev.Terminal), ev.Path)
			}
		default:
			if fn == nil {
				return
			}
			data := uint64(ev.Terminal) & 0xffffffff
			switch ev.Type {
			case app.EventWakeup:
				fn(EventWakeup, 0)
				return
			case app.EventDamaged:
				fn(EventDamaged, data)
				return
			case app.EventBell:
				fn(EventBell, data)
				return
			case app.EventExit:
				fn(EventExit, data|uint64(uint32(ev.ExitCode))<<32)
				return
			case app.EventCursorBlinkingChange:
				if ev.Blinking {
					data |= 1 << 32
				}
				fn(EventCursorBlinkingChange, data)
				return
			}
		}
	})
	return Success
}

// AppCreateTerminal spawns a terminal; returns its id.
func AppCreateTerminal(h AppHandle, cols, rows int32, shell, cwd string) (uint64, ErrorCode) {
	a, code := lookup(h)
	if code != Success {
		return 0, code
	}
	if !utf8.ValidString(shell) || !utf8.ValidString(cwd) {
		return 0, InvalidUtf8
	}

	id, err := a.CreateTerminal(int(cols), int(rows), shell, cwd)
	if err != nil {
		return 0, InvalidConfig
	}
	return uint64(id), Success
}

// AppCloseTerminal destroys a terminal; false for unknown ids.
func AppCloseTerminal(h AppHandle, id uint64) bool {
	a, code := lookup(h)
	if code != Success {
		return false
	}
	return a.CloseTerminal(app.TerminalID(id))
}

// AppSetMode switches a terminal between Active (0) and Background (1).
func AppSetMode(h AppHandle, id uint64, mode uint32) ErrorCode {
	t, code := terminal(h, id)
	if code != Success {
		return code
	}
	if mode > 1 {
		return OutOfBounds
	}
	t.SetMode(app.Mode(mode))
	return Success
}

func terminal(h AppHandle, id uint64) (*app.Terminal, ErrorCode) {
	a, code := lookup(h)
	if code != Success {
		return nil, code
	}
	t, ok := a.Terminal(app.TerminalID(id))
	if !ok {
		return nil, NotFound
	}
	return t, Success
}

// AppWrite sends UTF-8 input bytes to a terminal.
func AppWrite(h AppHandle, id uint64, data []byte) ErrorCode {
	t, code := terminal(h, id)
	if code != Success {
		return code
	}
	if !utf8.Valid(data) {
		return InvalidUtf8
	}
	if err := t.Write(data); err != nil {
		return Closed
	}
	return Success
}

// AppResize changes a terminal's dimensions.
func AppResize(h AppHandle, id uint64, cols, rows int32) ErrorCode {
	t, code := terminal(h, id)
	if code != Success {
		return code
	}
	if cols <= 0 || rows <= 0 {
		return OutOfBounds
	}
	if err := t.Resize(int(cols), int(rows)); err != nil {
		return Closed
	}
	return Success
}

// AppScroll moves a terminal's viewport by delta lines (positive
// toward history).
func AppScroll(h AppHandle, id uint64, deltaLines int32) ErrorCode {
	t, code := terminal(h, id)
	if code != Success {
		return code
	}
	t.Scroll(int(deltaLines))
	return Success
}

// AppGetCursor writes the cursor position; false on unknown id.
func AppGetCursor(h AppHandle, id uint64, outCol, outRow *int32) bool {
	t, code := terminal(h, id)
	if code != Success || outCol == nil || outRow == nil {
		return false
	}
	col, row := t.Cursor()
	*outCol = int32(col)
	*outRow = int32(row)
	return true
}

// AppGetCwd returns the OSC 7 working directory path bytes.
func AppGetCwd(h AppHandle, id uint64) []byte {
	t, code := terminal(h, id)
	if code != Success {
		return nil
	}
	return []byte(t.Cwd())
}

// AppGetForegroundProcessName returns the foreground process name, nil
// when unavailable.
func AppGetForegroundProcessName(h AppHandle, id uint64) []byte {
	t, code := terminal(h, id)
	if code != Success {
		return nil
	}
	name := t.ForegroundProcessName()
	if name == "" {
		return nil
	}
	return []byte(name)
}

// AppHasRunningChildProcess reports whether a program other than the
// shell owns the terminal foreground.
func AppHasRunningChildProcess(h AppHandle, id uint64) bool {
	t, code := terminal(h, id)
	return code == Success && t.HasRunningChildProcess()
}

// AppIsBracketedPasteEnabled reports DEC mode 2004.
func AppIsBracketedPasteEnabled(h AppHandle, id uint64) bool {
	t, code := terminal(h, id)
	return code == Success && t.IsBracketedPasteEnabled()
}

// AppIsKittyKeyboardEnabled reports an active Kitty keyboard mode.
func AppIsKittyKeyboardEnabled(h AppHandle, id uint64) bool {
	t, code := terminal(h, id)
	return code == Success && t.IsKittyKeyboardEnabled()
}

// FontMetricsOut receives cell metrics in physical pixels.
type FontMetricsOut struct {
	CellWidth  int32
	CellHeight int32
	LineHeight int32
}

// AppGetFontMetrics writes the current cell metrics; false on a bad
// handle or nil out pointer.
func AppGetFontMetrics(h AppHandle, out *FontMetricsOut) bool {
	a, code := lookup(h)
	if code != Success || out == nil {
		return false
	}
	m := a.FontMetrics()
	out.CellWidth = int32(m.CellWidth)
	out.CellHeight = int32(m.CellHeight)
	out.LineHeight = int32(m.LineHeight)
	return true
}

// Selection kinds at the boundary.
const (
	SelectionSimple   uint32 = 0
	SelectionSemantic uint32 = 1
	SelectionLines    uint32 = 2
)

// AppStartSelection begins a selection at an absolute grid point
// (line may be negative, reaching into scrollback).
func AppStartSelection(h AppHandle, id uint64, line, col int32, kind uint32) ErrorCode {
	t, code := terminal(h, id)
	if code != Success {
		return code
	}
	if kind > SelectionLines {
		return OutOfBounds
	}
	t.StartSelection(eterm.Point{Line: int(line), Col: int(col)}, eterm.SelectionKind(kind))
	return Success
}

// AppUpdateSelection extends the active selection.
func AppUpdateSelection(h AppHandle, id uint64, line, col int32) ErrorCode {
	t, code := terminal(h, id)
	if code != Success {
		return code
	}
	t.UpdateSelection(eterm.Point{Line: int(line), Col: int(col)})
	return Success
}

// AppClearSelection removes the selection.
func AppClearSelection(h AppHandle, id uint64) ErrorCode {
	t, code := terminal(h, id)
	if code != Success {
		return code
	}
	t.ClearSelection()
	return Success
}

// AppGetSelectionText copies the selection text into buf.
// outWritten receives the byte count; OutOfBounds when buf is too
// small (outWritten then holds the required size).
func AppGetSelectionText(h AppHandle, id uint64, buf []byte, outWritten *int32) ErrorCode {
	t, code := terminal(h, id)
	if code != Success {
		return code
	}
	if outWritten == nil {
		return NullPointer
	}

	text := t.SelectionText()
	*outWritten = int32(len(text))
	if len(text) > len(buf) {
		return OutOfBounds
	}
	copy(buf, text)
	return Success
}

// AppSearch scans for a pattern; returns the match count.
func AppSearch(h AppHandle, id uint64, pattern string) (int32, ErrorCode) {
	t, code := terminal(h, id)
	if code != Success {
		return 0, code
	}
	if !utf8.ValidString(pattern) {
		return 0, InvalidUtf8
	}
	return int32(t.Search(pattern)), Success
}

// AppNextMatch advances the focused search match.
func AppNextMatch(h AppHandle, id uint64) ErrorCode {
	t, code := terminal(h, id)
	if code != Success {
		return code
	}
	t.NextMatch()
	return Success
}

// AppPrevMatch moves the focused search match backwards.
func AppPrevMatch(h AppHandle, id uint64) ErrorCode {
	t, code := terminal(h, id)
	if code != Success {
		return code
	}
	t.PrevMatch()
	return Success
}

// AppClearSearch removes search overlays, keeping the pattern.
func AppClearSearch(h AppHandle, id uint64) ErrorCode {
	t, code := terminal(h, id)
	if code != Success {
		return code
	}
	t.ClearSearch()
	return Success
}

// LayoutIn places one terminal at a rectangle in physical pixels,
// top-left origin.
type LayoutIn struct {
	Terminal uint64
	X, Y     int32
	Width    int32
	Height   int32
}

// AppRender renders every laid-out terminal and composites the final
// surface. The returned image is owned by the caller (host uploads it
// and drops it).
func AppRender(h AppHandle, layouts []LayoutIn) (*image.RGBA, ErrorCode) {
	a, code := lookup(h)
	if code != Success {
		return nil, code
	}

	ls := make([]app.Layout, 0, len(layouts))
	for _, l := range layouts {
		if l.Width <= 0 || l.Height <= 0 {
			return nil, OutOfBounds
		}
		ls = append(ls, app.Layout{
			ID:   app.TerminalID(l.Terminal),
			Rect: image.Rect(int(l.X), int(l.Y), int(l.X+l.Width), int(l.Y+l.Height)),
		})
	}

	surface, err := a.Render(ls)
	if err != nil {
		if err == app.ErrNotFound {
			return nil, NotFound
		}
		return nil, RenderError
	}
	return surface, Success
}

// Font size operations at the boundary.
const (
	FontSizeReset    uint32 = 0
	FontSizeDecrease uint32 = 1
	FontSizeIncrease uint32 = 2
)

// AppChangeFontSize applies a font zoom step across the engine.
func AppChangeFontSize(h AppHandle, op uint32) ErrorCode {
	a, code := lookup(h)
	if code != Success {
		return code
	}
	switch op {
	case FontSizeReset:
		a.ChangeFontSize(app.FontSizeReset)
	case FontSizeDecrease:
		a.ChangeFontSize(app.FontSizeDecrease)
	case FontSizeIncrease:
		a.ChangeFontSize(app.FontSizeIncrease)
	default:
		return OutOfBounds
	}
	return Success
}

// AppTick drains pending events for hosts polling instead of using the
// callback.
func AppTick(h AppHandle) []app.Event {
	a, code := lookup(h)
	if code != Success {
		return nil
	}
	return a.Tick()
}
