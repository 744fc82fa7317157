package eterm

// StateFlags is a compact snapshot of the DEC private modes the engine
// surfaces to the renderer and the host.
type StateFlags uint8

const (
	StateBracketedPaste StateFlags = 1 << iota
	StateFocusReporting
	StateKittyKeyboard
	StateMouseReporting
	StateAltScreen
)

// Has returns true if the given flag is set.
func (f StateFlags) Has(flag StateFlags) bool {
	return f&flag != 0
}

// TerminalState is an immutable, cheap-to-clone view of the terminal
// used as the sole input to rendering a frame. The grid rows are shared
// by reference and frozen: copy-on-write in the live buffer guarantees
// they never change under the snapshot. Scrollback rows resolve through
// the shared ring by absolute line number, so a row evicted after the
// snapshot reads as nil instead of aliasing newer content.
type TerminalState struct {
	Rows int
	Cols int

	// Screen holds exactly Rows frozen rows.
	Screen []*Row

	// History is the shared scrollback ring; HistoryLen and
	// HistoryTotal are frozen at snapshot time.
	History      ScrollbackProvider
	HistoryLen   int
	HistoryTotal int

	// DisplayOffset is the viewport scroll position in lines
	// (0 = bottom / live).
	DisplayOffset int

	Cursor        Cursor
	CursorBlink   bool
	Selection     *ResolvedSelection
	SearchMatches []Match
	SearchFocused int
	Flags         StateFlags

	Title      string
	WorkingDir string

	// Placements and images for Sixel/Kitty graphics, shared with the
	// image manager (image pixel data is immutable once stored).
	Placements []*ImagePlacement
	Images     *ImageManager
}

// Line resolves a signed absolute line index against the snapshot:
// 0..Rows-1 address the screen, negative values reach into scrollback
// (-1 is the most recent history line at snapshot time). Returns nil
// for out-of-range or evicted lines.
func (s *TerminalState) Line(index int) *Row {
	if index >= 0 {
		if index >= s.Rows {
			return nil
		}
		return s.Screen[index]
	}
	if s.History == nil || -index > s.HistoryLen {
		return nil
	}
	return s.History.AbsLine(s.HistoryTotal + index)
}

// VisibleLines returns the absolute indices of the lines in the
// viewport, top to bottom, honouring the display offset.
func (s *TerminalState) VisibleLines() []int {
	lines := make([]int, s.Rows)
	for i := range lines {
		lines[i] = i - s.DisplayOffset
	}
	return lines
}

// CursorOnScreen reports whether the cursor cell is inside the
// viewport, and its viewport-relative row when it is. With a scrolled
// viewport the cursor (which always lives on the live screen) may be
// below the visible range.
func (s *TerminalState) CursorOnScreen() (viewRow int, ok bool) {
	viewRow = s.Cursor.Row + s.DisplayOffset
	return viewRow, viewRow >= 0 && viewRow < s.Rows
}

// Snapshot produces an immutable TerminalState. Cost is O(rows): the
// screen rows are frozen and their pointers copied; no cell data moves.
// Safe to hand to a worker thread; later writes to the terminal are
// invisible to it.
func (t *Terminal) Snapshot() *TerminalState {
	t.mu.Lock()
	defer t.mu.Unlock()

	flags := StateFlags(0)
	if t.modes&ModeBracketedPaste != 0 {
		flags |= StateBracketedPaste
	}
	if t.modes&ModeReportFocusInOut != 0 {
		flags |= StateFocusReporting
	}
	if len(t.keyboardModes) > 0 && t.keyboardModes[len(t.keyboardModes)-1] != 0 {
		flags |= StateKittyKeyboard
	}
	if t.modes&(ModeReportMouseClicks|ModeReportCellMouseMotion|ModeReportAllMouseMotion) != 0 {
		flags |= StateMouseReporting
	}
	if t.activeBuffer == t.alternateBuffer {
		flags |= StateAltScreen
	}

	cursor := *t.cursor
	if t.modes&ModeShowCursor == 0 {
		cursor.Visible = false
	}

	snap := &TerminalState{
		Rows:          t.rows,
		Cols:          t.cols,
		Screen:        t.activeBuffer.SnapshotRows(),
		History:       t.scrollbackStorage,
		HistoryLen:    t.scrollbackStorage.Len(),
		HistoryTotal:  t.scrollbackStorage.Total(),
		DisplayOffset: t.displayOffset,
		Cursor:        cursor,
		CursorBlink:   t.cursor.Style.Blinking() || t.modes&ModeBlinkingCursor != 0,
		Selection:     t.resolveSelection(),
		SearchFocused: t.search.Focused,
		Flags:         flags,
		Title:         t.title,
		WorkingDir:    t.workingDir,
		Images:        t.images,
	}

	if len(t.search.Matches) > 0 {
		snap.SearchMatches = make([]Match, len(t.search.Matches))
		copy(snap.SearchMatches, t.search.Matches)
	}
	if t.images.PlacementCount() > 0 {
		snap.Placements = t.images.Placements()
	}

	return snap
}
