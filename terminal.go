package eterm

import (
	"image/color"
	"sync"

	"github.com/danielgatis/go-ansicode"
)

// Ensure Terminal implements ansicode.Handler
var _ ansicode.Handler = (*Terminal)(nil)

// TerminalMode is a bitmask of terminal behavior flags.
// Multiple modes can be active simultaneously.
type TerminalMode uint32

const (
	// ModeCursorKeys enables cursor key mode (DECCKM).
	ModeCursorKeys TerminalMode = 1 << iota
	// ModeColumnMode enables 132-column mode.
	ModeColumnMode
	// ModeInsert enables insert mode (characters shift right instead of overwrite).
	ModeInsert
	// ModeOrigin enables origin mode (cursor positioning relative to scroll region).
	ModeOrigin
	// ModeLineWrap enables automatic line wrapping at column boundaries (DECAWM).
	ModeLineWrap
	// ModeBlinkingCursor enables blinking cursor.
	ModeBlinkingCursor
	// ModeLineFeedNewLine makes line feed also move to column 0.
	ModeLineFeedNewLine
	// ModeShowCursor makes the cursor visible.
	ModeShowCursor
	// ModeReportMouseClicks enables mouse click reporting (1000).
	ModeReportMouseClicks
	// ModeReportCellMouseMotion enables mouse motion reporting (1002).
	ModeReportCellMouseMotion
	// ModeReportAllMouseMotion enables reporting of all mouse motion events (1003).
	ModeReportAllMouseMotion
	// ModeReportFocusInOut enables focus in/out event reporting (1004).
	ModeReportFocusInOut
	// ModeUTF8Mouse enables UTF-8 mouse encoding.
	ModeUTF8Mouse
	// ModeSGRMouse enables SGR mouse encoding (1006).
	ModeSGRMouse
	// ModeAlternateScroll enables alternate scroll mode.
	ModeAlternateScroll
	// ModeUrgencyHints enables urgency hints.
	ModeUrgencyHints
	// ModeSwapScreenAndSetRestoreCursor swaps to alternate screen and saves cursor (1049).
	// When unset, restores primary screen and cursor position.
	ModeSwapScreenAndSetRestoreCursor
	// ModeBracketedPaste enables bracketed paste mode (2004).
	ModeBracketedPaste
	// ModeKeypadApplication enables application keypad mode.
	ModeKeypadApplication
)

const (
	// DefaultRows is the default number of terminal rows.
	DefaultRows = 24
	// DefaultCols is the default number of terminal columns.
	DefaultCols = 80
	// DefaultHistorySize is the default scrollback capacity in lines.
	DefaultHistorySize = 10000
	// DefaultWordDelimiters are the runes that terminate a semantic
	// word in addition to Unicode space/letter/digit classes.
	DefaultWordDelimiters = " \t\"'`()[]{}<>,;:|"
)

// Terminal emulates a VT500-family terminal without a display.
// It maintains two buffers: primary (with scrollback) and alternate (no
// scrollback). The active buffer switches when entering/exiting
// alternate screen mode. All operations are thread-safe via internal
// locking; Snapshot produces an immutable view in O(rows) by freezing
// the grid rows.
type Terminal struct {
	mu sync.RWMutex

	// Dimensions
	rows int
	cols int

	// Buffers
	primaryBuffer   *Buffer
	alternateBuffer *Buffer
	activeBuffer    *Buffer

	// Cursor
	cursor      *Cursor
	savedCursor *SavedCursor

	// Current cell attributes
	template CellTemplate

	// Charsets
	charsets      [4]Charset
	activeCharset int

	// Scrolling region
	scrollTop    int
	scrollBottom int

	// Modes
	modes TerminalMode

	// Title
	title      string
	titleStack []string

	// Colors (OSC 4 overrides)
	colors map[int]color.Color

	// Hyperlink
	currentHyperlink *Hyperlink

	// Keyboard mode
	keyboardModes   []ansicode.KeyboardMode
	modifyOtherKeys ansicode.ModifyOtherKeys

	// Internal ANSI decoder
	decoder *ansicode.Decoder

	// Viewport scroll position: number of history lines between the
	// bottom of the viewport and the bottom of the screen. 0 = live.
	displayOffset int

	// Selection
	selection Selection

	// Search
	search SearchState

	// Scrollback provider
	scrollbackStorage ScrollbackProvider

	// Providers for external data/actions
	responseProvider   ResponseProvider
	bellProvider       BellProvider
	titleProvider      TitleProvider
	workingDirProvider WorkingDirProvider
	apcProvider        APCProvider
	pmProvider         PMProvider
	sosProvider        SOSProvider
	clipboardProvider  ClipboardProvider

	// AutoResize mode: terminal grows instead of scrolling/wrapping
	autoResize bool

	// Shell integration (OSC 133)
	shellIntegrationProvider ShellIntegrationProvider
	promptMarks              []PromptMark

	// Working directory (OSC 7)
	workingDir string

	// Semantic selection word rule
	wordDelimiters map[rune]struct{}

	// Size provider for pixel-level queries
	sizeProvider SizeProvider

	// Image manager for Sixel and Kitty graphics
	images *ImageManager

	// Image protocol flags
	sixelEnabled bool
	kittyEnabled bool
}

// SizeProvider answers pixel dimension queries (CSI 14 t and friends).
type SizeProvider interface {
	// CellSizePixels returns the cell dimensions in physical pixels.
	CellSizePixels() (width, height int)
}

// Option configures a Terminal during construction.
type Option func(*Terminal)

// WithSize sets the terminal dimensions.
// Values <= 0 are replaced with defaults (24x80).
func WithSize(rows, cols int) Option {
	if rows <= 0 {
		rows = DefaultRows
	}
	if cols <= 0 {
		cols = DefaultCols
	}

	return func(t *Terminal) {
		t.rows = rows
		t.cols = cols
	}
}

// WithHistorySize bounds the scrollback ring to the given number of lines.
func WithHistorySize(lines int) Option {
	return func(t *Terminal) {
		t.scrollbackStorage = NewRingScrollback(lines)
	}
}

// WithScrollback sets the storage for scrollback lines.
// Lines scrolled off the top are pushed here.
func WithScrollback(storage ScrollbackProvider) Option {
	return func(t *Terminal) {
		t.scrollbackStorage = storage
	}
}

// WithResponse sets the writer for terminal responses (e.g., cursor position reports).
// If nil, responses are discarded.
func WithResponse(p ResponseProvider) Option {
	return func(t *Terminal) {
		t.responseProvider = p
	}
}

// WithBell sets the handler for bell/beep events.
// Defaults to a no-op if not set.
func WithBell(p BellProvider) Option {
	return func(t *Terminal) {
		t.bellProvider = p
	}
}

// WithTitle sets the handler for window title changes.
// Defaults to a no-op if not set.
func WithTitle(p TitleProvider) Option {
	return func(t *Terminal) {
		t.titleProvider = p
	}
}

// WithWorkingDir sets the observer for OSC 7 working directory reports.
// Defaults to a no-op if not set.
func WithWorkingDir(p WorkingDirProvider) Option {
	return func(t *Terminal) {
		t.workingDirProvider = p
	}
}

// WithAPC sets the handler for Application Program Command sequences.
// Defaults to a no-op if not set.
func WithAPC(p APCProvider) Option {
	return func(t *Terminal) {
		t.apcProvider = p
	}
}

// WithPM sets the handler for Privacy Message sequences.
// Defaults to a no-op if not set.
func WithPM(p PMProvider) Option {
	return func(t *Terminal) {
		t.pmProvider = p
	}
}

// WithSOS sets the handler for Start of String sequences.
// Defaults to a no-op if not set.
func WithSOS(p SOSProvider) Option {
	return func(t *Terminal) {
		t.sosProvider = p
	}
}

// WithClipboard sets the handler for clipboard read/write operations (OSC 52).
// Defaults to a no-op if not set.
func WithClipboard(p ClipboardProvider) Option {
	return func(t *Terminal) {
		t.clipboardProvider = p
	}
}

// WithShellIntegration sets the handler for shell integration events (OSC 133).
func WithShellIntegration(p ShellIntegrationProvider) Option {
	return func(t *Terminal) {
		t.shellIntegrationProvider = p
	}
}

// WithAutoResize enables growth mode: the buffer expands instead of scrolling or wrapping.
// Useful for capturing complete output without truncation.
func WithAutoResize() Option {
	return func(t *Terminal) {
		t.autoResize = true
	}
}

// WithWordDelimiters sets the runes that terminate a semantic word
// selection in addition to whitespace.
func WithWordDelimiters(delims string) Option {
	return func(t *Terminal) {
		t.wordDelimiters = make(map[rune]struct{}, len(delims))
		for _, r := range delims {
			t.wordDelimiters[r] = struct{}{}
		}
	}
}

// WithSizeProvider sets the provider for pixel dimension queries.
func WithSizeProvider(p SizeProvider) Option {
	return func(t *Terminal) {
		t.sizeProvider = p
	}
}

// WithSixel enables or disables Sixel graphics protocol support.
// Default is true (enabled).
func WithSixel(enabled bool) Option {
	return func(t *Terminal) {
		t.sixelEnabled = enabled
	}
}

// WithKitty enables or disables Kitty graphics protocol support.
// Default is true (enabled).
func WithKitty(enabled bool) Option {
	return func(t *Terminal) {
		t.kittyEnabled = enabled
	}
}

// New creates a terminal with the given options.
// Defaults to 24x80 with line wrap, cursor visible, and a bounded
// in-memory scrollback ring.
func New(opts ...Option) *Terminal {
	t := &Terminal{
		rows:               DefaultRows,
		cols:               DefaultCols,
		colors:             make(map[int]color.Color),
		keyboardModes:      make([]ansicode.KeyboardMode, 0),
		bellProvider:       NoopBell{},
		titleProvider:      NoopTitle{},
		workingDirProvider: NoopWorkingDir{},
		apcProvider:        NoopAPC{},
		pmProvider:         NoopPM{},
		sosProvider:        NoopSOS{},
		clipboardProvider:  NoopClipboard{},
		sixelEnabled:       true,
		kittyEnabled:       true,
	}

	WithWordDelimiters(DefaultWordDelimiters)(t)

	for _, opt := range opts {
		opt(t)
	}

	if t.scrollbackStorage == nil {
		t.scrollbackStorage = NewRingScrollback(DefaultHistorySize)
	}
	t.primaryBuffer = NewBufferWithStorage(t.rows, t.cols, t.scrollbackStorage)
	t.alternateBuffer = NewBuffer(t.rows, t.cols) // no scrollback on alt screen
	t.activeBuffer = t.primaryBuffer

	t.cursor = NewCursor()
	t.template = NewCellTemplate()

	t.scrollTop = 0
	t.scrollBottom = t.rows

	t.modes = ModeLineWrap | ModeShowCursor

	t.search = SearchState{Focused: -1}
	t.decoder = ansicode.NewDecoder(t)
	t.images = NewImageManager()

	return t
}

// Rows returns the terminal height in character rows.
func (t *Terminal) Rows() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.rows
}

// Cols returns the terminal width in character columns.
func (t *Terminal) Cols() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.cols
}

// Cell returns the cell at (row, col) in the active buffer.
// Returns nil if coordinates are out of bounds. Read-only.
func (t *Terminal) Cell(row, col int) *Cell {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.activeBuffer.Cell(row, col)
}

// CursorPos returns the current cursor position (0-based).
func (t *Terminal) CursorPos() (row, col int) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.cursor.Row, t.cursor.Col
}

// CursorVisible returns true if the cursor is currently visible.
func (t *Terminal) CursorVisible() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.cursor.Visible
}

// CursorStyle returns the current cursor rendering style.
func (t *Terminal) CursorStyle() CursorStyle {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.cursor.Style
}

// CursorBlinking reports whether the cursor should blink, from the
// cursor style and the DEC blinking-cursor mode.
func (t *Terminal) CursorBlinking() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.cursor.Style.Blinking() || t.modes&ModeBlinkingCursor != 0
}

// Title returns the current window title string.
func (t *Terminal) Title() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.title
}

// HasMode returns true if the specified mode flag is enabled.
func (t *Terminal) HasMode(mode TerminalMode) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.modes&mode != 0
}

// IsBracketedPasteEnabled returns true if bracketed paste mode (2004) is on.
func (t *Terminal) IsBracketedPasteEnabled() bool {
	return t.HasMode(ModeBracketedPaste)
}

// IsKittyKeyboardEnabled returns true if a non-zero Kitty keyboard
// protocol mode is active (CSI > u stack).
func (t *Terminal) IsKittyKeyboardEnabled() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.keyboardModes) > 0 && t.keyboardModes[len(t.keyboardModes)-1] != ansicode.KeyboardModeNoMode
}

// IsFocusReportingEnabled returns true if focus in/out reporting (1004) is on.
func (t *Terminal) IsFocusReportingEnabled() bool {
	return t.HasMode(ModeReportFocusInOut)
}

// MouseReportingEnabled returns true if any mouse reporting mode is on.
func (t *Terminal) MouseReportingEnabled() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.modes&(ModeReportMouseClicks|ModeReportCellMouseMotion|ModeReportAllMouseMotion) != 0
}

// FocusIn reports a focus-in event to the application if focus
// reporting is enabled.
func (t *Terminal) FocusIn() {
	if t.IsFocusReportingEnabled() {
		t.writeResponseString("\x1b[I")
	}
}

// FocusOut reports a focus-out event to the application if focus
// reporting is enabled.
func (t *Terminal) FocusOut() {
	if t.IsFocusReportingEnabled() {
		t.writeResponseString("\x1b[O")
	}
}

// SixelEnabled returns true if Sixel graphics protocol is enabled.
func (t *Terminal) SixelEnabled() bool {
	return t.sixelEnabled
}

// KittyEnabled returns true if Kitty graphics protocol is enabled.
func (t *Terminal) KittyEnabled() bool {
	return t.kittyEnabled
}

// Resize changes the terminal dimensions and adjusts buffers accordingly.
// When shrinking rows, lines above cursor are moved to scrollback to preserve
// content near the cursor. Cursor position is clamped to the new bounds.
// Raises full damage. Invalid dimensions (<= 0) are ignored.
func (t *Terminal) Resize(rows, cols int) {
	if rows <= 0 || cols <= 0 {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	oldRows := t.rows

	// When shrinking rows on primary buffer, scroll lines to scrollback
	// to preserve content near cursor
	if rows < oldRows && t.activeBuffer == t.primaryBuffer {
		linesToScroll := oldRows - rows
		if t.cursor.Row >= rows {
			t.primaryBuffer.ScrollUp(0, oldRows, linesToScroll)
			t.cursor.Row -= linesToScroll
			if t.cursor.Row < 0 {
				t.cursor.Row = 0
			}
		}
	}

	t.rows = rows
	t.cols = cols
	t.primaryBuffer.Resize(rows, cols)
	t.alternateBuffer.Resize(rows, cols)

	t.cursor.Row = clamp(t.cursor.Row, 0, rows-1)
	t.cursor.Col = clamp(t.cursor.Col, 0, cols-1)

	t.scrollTop = 0
	t.scrollBottom = rows
}

// Write processes raw bytes, parsing ANSI escape sequences and updating
// the terminal state. A write while the viewport is scrolled into
// history re-sticks it to the bottom, unless the alternate screen is
// active. Implements io.Writer.
func (t *Terminal) Write(data []byte) (int, error) {
	t.mu.Lock()
	if t.displayOffset != 0 && t.activeBuffer != t.alternateBuffer {
		t.displayOffset = 0
		t.activeBuffer.MarkFullDamage()
	}
	t.mu.Unlock()

	return t.decoder.Write(data)
}

// WriteString is a convenience method that converts the string to bytes and calls Write.
func (t *Terminal) WriteString(s string) (int, error) {
	return t.Write([]byte(s))
}

// ScrollDisplay moves the viewport by delta lines; positive values move
// toward history. The offset clamps to [0, scrollback length] and is
// pinned to 0 while the alternate screen is active.
func (t *Terminal) ScrollDisplay(delta int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.activeBuffer == t.alternateBuffer {
		return
	}
	offset := clamp(t.displayOffset+delta, 0, t.primaryBuffer.ScrollbackLen())
	if offset != t.displayOffset {
		t.displayOffset = offset
		t.activeBuffer.MarkFullDamage()
	}
}

// DisplayOffset returns the current viewport scroll position in lines
// (0 = bottom / live).
func (t *Terminal) DisplayOffset() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.displayOffset
}

// clamp ensures the value is within the given range.
func clamp(val, min, max int) int {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}

// effectiveRow returns the effective row considering origin mode.
func (t *Terminal) effectiveRow(row int) int {
	if t.modes&ModeOrigin != 0 {
		return row + t.scrollTop
	}
	return row
}

// scrollIfNeeded performs scrolling if cursor is outside scroll region.
// In autoResize mode, grows the buffer instead of scrolling.
func (t *Terminal) scrollIfNeeded() {
	if t.cursor.Row >= t.scrollBottom {
		if t.autoResize {
			rowsToAdd := t.cursor.Row - t.scrollBottom + 1
			t.activeBuffer.GrowRows(rowsToAdd)
			t.rows = t.activeBuffer.Rows()
			t.scrollBottom = t.rows
		} else {
			linesToScroll := t.cursor.Row - t.scrollBottom + 1
			t.activeBuffer.ScrollUp(t.scrollTop, t.scrollBottom, linesToScroll)
			t.cursor.Row = t.scrollBottom - 1
		}
	} else if t.cursor.Row < t.scrollTop {
		linesToScroll := t.scrollTop - t.cursor.Row
		t.activeBuffer.ScrollDown(t.scrollTop, t.scrollBottom, linesToScroll)
		t.cursor.Row = t.scrollTop
	}
}

// writeResponse writes a response back via the response provider if set.
func (t *Terminal) writeResponse(data []byte) {
	t.mu.RLock()
	provider := t.responseProvider
	t.mu.RUnlock()

	if provider != nil {
		provider.Write(data)
	}
}

// writeResponseString writes a string response back via the writer if set.
func (t *Terminal) writeResponseString(s string) {
	t.writeResponse([]byte(s))
}

// SetResponseProvider sets the response provider at runtime.
func (t *Terminal) SetResponseProvider(p ResponseProvider) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.responseProvider = p
}

// --- Damage ---

// MarkFullDamage raises full damage on the active buffer (structural
// change: mode switch back to active, render-state invalidation).
func (t *Terminal) MarkFullDamage() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.activeBuffer.MarkFullDamage()
}

// HasDamage returns true if the active buffer changed since the last
// TakeDamage call.
func (t *Terminal) HasDamage() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.activeBuffer.HasDamage()
}

// TakeDamage drains and returns the damage accumulated on the active
// buffer since the previous call.
func (t *Terminal) TakeDamage() Damage {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.activeBuffer.TakeDamage()
}

// --- Scrollback ---

// ScrollbackLen returns the number of lines stored in scrollback (primary buffer only).
func (t *Terminal) ScrollbackLen() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.primaryBuffer.ScrollbackLen()
}

// ScrollbackLine returns a line from scrollback, where 0 is the oldest line.
// Returns nil if index is out of range.
func (t *Terminal) ScrollbackLine(index int) *Row {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.primaryBuffer.ScrollbackLine(index)
}

// ClearScrollback removes all stored scrollback lines.
func (t *Terminal) ClearScrollback() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.primaryBuffer.ClearScrollback()
	t.displayOffset = 0
	t.primaryBuffer.MarkFullDamage()
}

// SetMaxScrollback sets the maximum number of scrollback lines to retain.
func (t *Terminal) SetMaxScrollback(max int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.primaryBuffer.SetMaxScrollback(max)
}

// MaxScrollback returns the current maximum scrollback capacity.
func (t *Terminal) MaxScrollback() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.primaryBuffer.MaxScrollback()
}

// --- Row addressing ---

// line resolves a signed absolute line index against the live grid:
// 0..rows-1 address the screen, negative values reach into scrollback
// (-1 is the most recent history line). Caller must hold t.mu.
func (t *Terminal) line(index int) *Row {
	if index >= 0 {
		return t.activeBuffer.Row(index)
	}
	n := t.primaryBuffer.ScrollbackLen()
	return t.primaryBuffer.ScrollbackLine(n + index)
}

// Line resolves a signed absolute line index: 0..rows-1 address the
// screen, negative values reach into scrollback (-1 is the most recent
// history line). Returns nil when out of range.
func (t *Terminal) Line(index int) *Row {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.line(index)
}

// --- Convenience queries ---

// LineContent returns the text content of a screen line, trimming trailing spaces.
func (t *Terminal) LineContent(row int) string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.activeBuffer.LineContent(row)
}

// String returns the visible screen content as a newline-separated string.
// Trailing empty lines are omitted. Implements fmt.Stringer.
func (t *Terminal) String() string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	lines := make([]string, 0, t.rows)
	lastNonEmpty := -1

	for row := 0; row < t.rows; row++ {
		line := t.activeBuffer.LineContent(row)
		lines = append(lines, line)
		if line != "" {
			lastNonEmpty = row
		}
	}

	if lastNonEmpty < 0 {
		return ""
	}

	result := ""
	for i, line := range lines[:lastNonEmpty+1] {
		if i > 0 {
			result += "\n"
		}
		result += line
	}
	return result
}

// IsAlternateScreen returns true if the alternate buffer is currently active.
// The alternate buffer has no scrollback and is typically used by full-screen applications.
func (t *Terminal) IsAlternateScreen() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.activeBuffer == t.alternateBuffer
}

// ScrollRegion returns the current scrolling boundaries (0-based, exclusive bottom).
func (t *Terminal) ScrollRegion() (top, bottom int) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.scrollTop, t.scrollBottom
}

// IsWrapped returns true if the screen line was soft-wrapped, false if it ended with an explicit newline.
func (t *Terminal) IsWrapped(row int) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.activeBuffer.IsWrapped(row)
}

// AutoResize returns true if growth mode is enabled.
func (t *Terminal) AutoResize() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.autoResize
}

// --- Working directory (OSC 7) ---

// WorkingDirectory returns the current working directory URI (OSC 7).
func (t *Terminal) WorkingDirectory() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.workingDir
}

// WorkingDirectoryPath extracts the filesystem path from the working
// directory URI. Empty if no OSC 7 report was seen or the URI is not a
// file:// URI.
func (t *Terminal) WorkingDirectoryPath() string {
	t.mu.RLock()
	uri := t.workingDir
	t.mu.RUnlock()

	return workingDirPath(uri)
}

// workingDirPath parses a file://hostname/path URI into /path.
func workingDirPath(uri string) string {
	const prefix = "file://"
	if len(uri) <= len(prefix) || uri[:len(prefix)] != prefix {
		return ""
	}
	rest := uri[len(prefix):]
	for i := 0; i < len(rest); i++ {
		if rest[i] == '/' {
			return rest[i:]
		}
	}
	return ""
}

// --- Images ---

// Image returns the image data for the given ID, or nil if not found.
func (t *Terminal) Image(id uint32) *ImageData {
	return t.images.Image(id)
}

// ImagePlacements returns all current image placements.
func (t *Terminal) ImagePlacements() []*ImagePlacement {
	return t.images.Placements()
}

// ImageCount returns the number of stored images.
func (t *Terminal) ImageCount() int {
	return t.images.ImageCount()
}

// ImagePlacementCount returns the number of active image placements.
func (t *Terminal) ImagePlacementCount() int {
	return t.images.PlacementCount()
}

// ImageUsedMemory returns the current image memory usage in bytes.
func (t *Terminal) ImageUsedMemory() int64 {
	return t.images.UsedMemory()
}

// SetImageMaxMemory sets the maximum memory budget for images.
func (t *Terminal) SetImageMaxMemory(bytes int64) {
	t.images.SetMaxMemory(bytes)
}

// ClearImages removes all images and placements.
func (t *Terminal) ClearImages() {
	t.images.Clear()
}

// SetSizeProvider sets the provider for pixel dimension queries.
func (t *Terminal) SetSizeProvider(p SizeProvider) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sizeProvider = p
}
