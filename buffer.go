package eterm

import (
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Row is a single grid line. Rows are shared by reference between the
// live buffer, snapshots, and scrollback; a shared (frozen) row is
// cloned before its first mutation, so holders of a frozen row always
// observe the content at freeze time.
type Row struct {
	cells   []Cell
	wrapped bool
	hash    uint64 // cached content hash; 0 means stale
	frozen  bool
}

func newRow(cols int) *Row {
	r := &Row{cells: make([]Cell, cols)}
	for i := range r.cells {
		r.cells[i] = NewCell()
	}
	return r
}

func (r *Row) clone() *Row {
	c := &Row{
		cells:   make([]Cell, len(r.cells)),
		wrapped: r.wrapped,
		hash:    r.hash,
	}
	copy(c.cells, r.cells)
	return c
}

// Len returns the number of cells in the row. Scrollback rows keep the
// width they were written at.
func (r *Row) Len() int {
	return len(r.cells)
}

// Cell returns a read-only pointer to the cell at col, or nil if out of bounds.
func (r *Row) Cell(col int) *Cell {
	if col < 0 || col >= len(r.cells) {
		return nil
	}
	return &r.cells[col]
}

// Cells returns the row's cells. Callers must treat the slice as read-only.
func (r *Row) Cells() []Cell {
	return r.cells
}

// Wrapped reports whether the row continues onto the next line (soft wrap)
// rather than ending with an explicit newline.
func (r *Row) Wrapped() bool {
	return r.wrapped
}

// ContentHash returns a digest of everything that affects how the row
// rasterizes: characters, flags, colors, hyperlinks, image refs. The
// hash is computed lazily and cached; mutation through the buffer
// invalidates it. Cursor, selection and search state are not part of
// the row and therefore never part of this hash.
func (r *Row) ContentHash() uint64 {
	if r.hash != 0 {
		return r.hash
	}
	buf := make([]byte, 0, len(r.cells)*16)
	for i := range r.cells {
		buf = r.cells[i].appendHash(buf)
	}
	h := xxhash.Sum64(buf)
	if h == 0 {
		h = 1
	}
	r.hash = h
	return h
}

// Text returns the row's characters with trailing blanks trimmed.
// Wide spacers are skipped.
func (r *Row) Text() string {
	last := -1
	for col := len(r.cells) - 1; col >= 0; col-- {
		c := &r.cells[col]
		if c.Char != ' ' && c.Char != 0 && !c.IsWideSpacer() {
			last = col
			break
		}
	}
	if last < 0 {
		return ""
	}

	var sb strings.Builder
	sb.Grow(last + 1)
	for col := 0; col <= last; col++ {
		c := &r.cells[col]
		if c.IsWideSpacer() {
			continue
		}
		sb.WriteRune(c.Rune())
	}
	return sb.String()
}

// Damage describes which rows of a buffer changed since the last drain.
type Damage struct {
	// Full indicates a structural change (resize, screen swap, reset);
	// Rows is meaningless when set.
	Full bool
	Rows []int
}

// Any returns true if the damage covers at least one row.
func (d Damage) Any() bool {
	return d.Full || len(d.Rows) > 0
}

// Buffer stores a 2D grid of copy-on-write rows and tracks per-row
// damage. Supports optional scrollback storage for lines scrolled off
// the top.
type Buffer struct {
	rows       int
	cols       int
	lines      []*Row
	tabStop    []bool
	scrollback ScrollbackProvider

	damaged    []bool
	fullDamage bool
	anyDamage  bool
}

// NewBuffer creates a buffer with the given dimensions and no scrollback.
func NewBuffer(rows, cols int) *Buffer {
	return NewBufferWithStorage(rows, cols, NoopScrollback{})
}

// NewBufferWithStorage creates a buffer with custom scrollback storage.
// Tab stops are initialized every 8 columns.
func NewBufferWithStorage(rows, cols int, storage ScrollbackProvider) *Buffer {
	b := &Buffer{
		rows:       rows,
		cols:       cols,
		lines:      make([]*Row, rows),
		tabStop:    make([]bool, cols),
		scrollback: storage,
		damaged:    make([]bool, rows),
		fullDamage: true,
		anyDamage:  true,
	}

	for i := range b.lines {
		b.lines[i] = newRow(cols)
	}

	for i := 0; i < cols; i += 8 {
		b.tabStop[i] = true
	}

	return b
}

// Rows returns the buffer height in character rows.
func (b *Buffer) Rows() int {
	return b.rows
}

// Cols returns the buffer width in character columns.
func (b *Buffer) Cols() int {
	return b.cols
}

// Row returns the row at index, or nil if out of bounds. Read-only.
func (b *Buffer) Row(row int) *Row {
	if row < 0 || row >= b.rows {
		return nil
	}
	return b.lines[row]
}

// Cell returns a read-only pointer to the cell at (row, col).
// Returns nil if coordinates are out of bounds. Mutating through this
// pointer bypasses copy-on-write; writers use CellForWrite.
func (b *Buffer) Cell(row, col int) *Cell {
	if row < 0 || row >= b.rows || col < 0 || col >= b.cols {
		return nil
	}
	return b.lines[row].Cell(col)
}

// mutRow returns the row at index prepared for mutation: cloned if
// frozen, hash invalidated, marked damaged. Caller must have validated
// the index.
func (b *Buffer) mutRow(row int) *Row {
	r := b.lines[row]
	if r.frozen {
		r = r.clone()
		b.lines[row] = r
	}
	r.hash = 0
	b.damaged[row] = true
	b.anyDamage = true
	return r
}

// CellForWrite returns a mutable pointer to the cell at (row, col),
// applying copy-on-write and marking the row damaged.
// Returns nil if coordinates are out of bounds.
func (b *Buffer) CellForWrite(row, col int) *Cell {
	if row < 0 || row >= b.rows || col < 0 || col >= b.cols {
		return nil
	}
	r := b.mutRow(row)
	return &r.cells[col]
}

// SetCell replaces the cell at (row, col).
// Does nothing if coordinates are out of bounds.
func (b *Buffer) SetCell(row, col int, cell Cell) {
	if c := b.CellForWrite(row, col); c != nil {
		*c = cell
	}
}

// MarkFullDamage records a structural change (resize, swap, reset).
func (b *Buffer) MarkFullDamage() {
	b.fullDamage = true
	b.anyDamage = true
}

// HasDamage returns true if any row changed since the last TakeDamage.
func (b *Buffer) HasDamage() bool {
	return b.anyDamage
}

// TakeDamage drains and returns the accumulated damage.
func (b *Buffer) TakeDamage() Damage {
	if !b.anyDamage {
		return Damage{}
	}
	d := Damage{Full: b.fullDamage}
	if !d.Full {
		for row, dirty := range b.damaged {
			if dirty {
				d.Rows = append(d.Rows, row)
			}
		}
	}
	for row := range b.damaged {
		b.damaged[row] = false
	}
	b.fullDamage = false
	b.anyDamage = false
	return d
}

// ClearRow resets all cells in the row to default state.
func (b *Buffer) ClearRow(row int) {
	if row < 0 || row >= b.rows {
		return
	}
	r := b.mutRow(row)
	for col := range r.cells {
		r.cells[col].Reset()
	}
	r.wrapped = false
}

// ClearRowRange resets cells in the row from startCol (inclusive) to endCol (exclusive).
func (b *Buffer) ClearRowRange(row, startCol, endCol int) {
	if row < 0 || row >= b.rows {
		return
	}
	if startCol < 0 {
		startCol = 0
	}
	if endCol > b.cols {
		endCol = b.cols
	}
	if startCol >= endCol {
		return
	}
	r := b.mutRow(row)
	for col := startCol; col < endCol; col++ {
		r.cells[col].Reset()
	}
}

// ClearAll resets all cells in the buffer to default state.
func (b *Buffer) ClearAll() {
	for row := 0; row < b.rows; row++ {
		b.ClearRow(row)
	}
}

// ScrollUp shifts lines up by n positions within [top, bottom).
// Lines scrolled off the top are pushed to scrollback if enabled and top==0.
// Vacated bottom lines are fresh blank rows.
func (b *Buffer) ScrollUp(top, bottom, n int) {
	if n <= 0 || top >= bottom {
		return
	}
	if top < 0 {
		top = 0
	}
	if bottom > b.rows {
		bottom = b.rows
	}
	if n > bottom-top {
		n = bottom - top
	}

	// Departing rows are frozen before entering scrollback so later
	// screen writes can never reach them.
	if b.scrollback != nil && b.scrollback.MaxLines() > 0 && top == 0 {
		for i := 0; i < n; i++ {
			b.lines[i].frozen = true
			b.scrollback.Push(b.lines[i])
		}
	}

	for row := top; row < bottom-n; row++ {
		b.lines[row] = b.lines[row+n]
		b.damaged[row] = true
	}
	for row := bottom - n; row < bottom; row++ {
		b.lines[row] = newRow(b.cols)
		b.damaged[row] = true
	}
	b.anyDamage = true
}

// ScrollDown shifts lines down by n positions within [top, bottom).
// Vacated top lines are fresh blank rows.
func (b *Buffer) ScrollDown(top, bottom, n int) {
	if n <= 0 || top >= bottom {
		return
	}
	if top < 0 {
		top = 0
	}
	if bottom > b.rows {
		bottom = b.rows
	}
	if n > bottom-top {
		n = bottom - top
	}

	for row := bottom - 1; row >= top+n; row-- {
		b.lines[row] = b.lines[row-n]
		b.damaged[row] = true
	}
	for row := top; row < top+n; row++ {
		b.lines[row] = newRow(b.cols)
		b.damaged[row] = true
	}
	b.anyDamage = true
}

// InsertLines inserts n blank lines at row, shifting existing lines down.
// Equivalent to ScrollDown(row, bottom, n).
func (b *Buffer) InsertLines(row, n, bottom int) {
	if row < 0 || row >= bottom || n <= 0 {
		return
	}
	b.ScrollDown(row, bottom, n)
}

// DeleteLines removes n lines at row, shifting remaining lines up.
// Equivalent to ScrollUp(row, bottom, n).
func (b *Buffer) DeleteLines(row, n, bottom int) {
	if row < 0 || row >= bottom || n <= 0 {
		return
	}
	b.ScrollUp(row, bottom, n)
}

// InsertBlanks inserts n blank cells at (row, col), shifting existing characters right.
func (b *Buffer) InsertBlanks(row, col, n int) {
	if row < 0 || row >= b.rows || col < 0 || col >= b.cols || n <= 0 {
		return
	}
	r := b.mutRow(row)
	for c := b.cols - 1; c >= col+n; c-- {
		r.cells[c] = r.cells[c-n]
	}
	for c := col; c < col+n && c < b.cols; c++ {
		r.cells[c].Reset()
	}
}

// DeleteChars removes n characters at (row, col), shifting remaining characters left.
func (b *Buffer) DeleteChars(row, col, n int) {
	if row < 0 || row >= b.rows || col < 0 || col >= b.cols || n <= 0 {
		return
	}
	r := b.mutRow(row)
	for c := col; c < b.cols-n; c++ {
		r.cells[c] = r.cells[c+n]
	}
	for c := b.cols - n; c < b.cols; c++ {
		if c >= 0 {
			r.cells[c].Reset()
		}
	}
}

// Resize changes buffer dimensions, preserving existing cells where
// possible. Content is kept at the top-left corner; shrinking loses
// bottom/right content, growing adds blank cells. Rewrap is not
// attempted. Raises full damage.
func (b *Buffer) Resize(rows, cols int) {
	if rows <= 0 || cols <= 0 {
		return
	}

	newLines := make([]*Row, rows)
	for i := range newLines {
		if i < b.rows {
			old := b.lines[i]
			nr := &Row{cells: make([]Cell, cols), wrapped: old.wrapped}
			for j := range nr.cells {
				if j < len(old.cells) {
					nr.cells[j] = old.cells[j]
				} else {
					nr.cells[j] = NewCell()
				}
			}
			newLines[i] = nr
		} else {
			newLines[i] = newRow(cols)
		}
	}

	b.lines = newLines
	b.rows = rows
	b.cols = cols
	b.damaged = make([]bool, rows)
	b.MarkFullDamage()

	newTabStop := make([]bool, cols)
	copy(newTabStop, b.tabStop)
	for i := (len(b.tabStop) + 7) / 8 * 8; i < cols; i += 8 {
		newTabStop[i] = true
	}
	b.tabStop = newTabStop
}

// SetTabStop enables a tab stop at the specified column.
func (b *Buffer) SetTabStop(col int) {
	if col >= 0 && col < b.cols {
		b.tabStop[col] = true
	}
}

// ClearTabStop disables the tab stop at the specified column.
func (b *Buffer) ClearTabStop(col int) {
	if col >= 0 && col < b.cols {
		b.tabStop[col] = false
	}
}

// ClearAllTabStops disables all tab stops.
func (b *Buffer) ClearAllTabStops() {
	for i := range b.tabStop {
		b.tabStop[i] = false
	}
}

// NextTabStop returns the column index of the next enabled tab stop after col.
// Returns the last column if no tab stop is found.
func (b *Buffer) NextTabStop(col int) int {
	for c := col + 1; c < b.cols; c++ {
		if b.tabStop[c] {
			return c
		}
	}
	return b.cols - 1
}

// PrevTabStop returns the column index of the previous enabled tab stop before col.
// Returns 0 if no tab stop is found.
func (b *Buffer) PrevTabStop(col int) int {
	for c := col - 1; c >= 0; c-- {
		if b.tabStop[c] {
			return c
		}
	}
	return 0
}

// FillWithE fills all cells with 'E' (DECALN alignment test pattern).
func (b *Buffer) FillWithE() {
	for row := 0; row < b.rows; row++ {
		r := b.mutRow(row)
		for col := range r.cells {
			r.cells[col].Reset()
			r.cells[col].Char = 'E'
		}
	}
}

// SnapshotRows freezes the current screen rows and returns them.
// The returned slice is owned by the caller; the rows themselves are
// shared and copy-on-write protects them from later buffer mutation.
func (b *Buffer) SnapshotRows() []*Row {
	out := make([]*Row, b.rows)
	for i, r := range b.lines {
		r.frozen = true
		out[i] = r
	}
	return out
}

// ScrollbackLen returns the number of lines stored in scrollback.
func (b *Buffer) ScrollbackLen() int {
	if b.scrollback == nil {
		return 0
	}
	return b.scrollback.Len()
}

// ScrollbackLine returns a line from scrollback, where 0 is the oldest line.
// Returns nil if index is out of range or scrollback is disabled.
func (b *Buffer) ScrollbackLine(index int) *Row {
	if b.scrollback == nil {
		return nil
	}
	return b.scrollback.Line(index)
}

// ClearScrollback removes all stored scrollback lines.
func (b *Buffer) ClearScrollback() {
	if b.scrollback != nil {
		b.scrollback.Clear()
	}
}

// SetMaxScrollback sets the maximum number of scrollback lines to retain.
func (b *Buffer) SetMaxScrollback(max int) {
	if b.scrollback != nil {
		b.scrollback.SetMaxLines(max)
	}
}

// MaxScrollback returns the current maximum scrollback capacity.
func (b *Buffer) MaxScrollback() int {
	if b.scrollback == nil {
		return 0
	}
	return b.scrollback.MaxLines()
}

// SetScrollbackProvider replaces the scrollback storage implementation.
func (b *Buffer) SetScrollbackProvider(storage ScrollbackProvider) {
	b.scrollback = storage
}

// ScrollbackProviderValue returns the current scrollback storage implementation.
func (b *Buffer) ScrollbackProviderValue() ScrollbackProvider {
	return b.scrollback
}

// LineContent returns the text content of a line, trimming trailing spaces.
// Returns empty string if the line is empty or out of bounds.
func (b *Buffer) LineContent(row int) string {
	if row < 0 || row >= b.rows {
		return ""
	}
	return b.lines[row].Text()
}

// IsWrapped returns true if the line was wrapped due to column overflow.
func (b *Buffer) IsWrapped(row int) bool {
	if row < 0 || row >= b.rows {
		return false
	}
	return b.lines[row].wrapped
}

// SetWrapped sets whether the line was wrapped or ended with an explicit newline.
func (b *Buffer) SetWrapped(row int, wrapped bool) {
	if row < 0 || row >= b.rows {
		return
	}
	if b.lines[row].wrapped == wrapped {
		return
	}
	r := b.lines[row]
	if r.frozen {
		r = r.clone()
		b.lines[row] = r
	}
	r.wrapped = wrapped
}

// GrowRows appends n new blank rows to the bottom of the buffer
// (capture/auto-resize mode).
func (b *Buffer) GrowRows(n int) {
	if n <= 0 {
		return
	}
	for i := 0; i < n; i++ {
		b.lines = append(b.lines, newRow(b.cols))
		b.damaged = append(b.damaged, true)
	}
	b.rows += n
	b.anyDamage = true
}

// GrowCols expands a single row to at least minCols columns
// (capture/auto-resize mode). Tab stops are extended if needed.
func (b *Buffer) GrowCols(row, minCols int) {
	if row < 0 || row >= b.rows {
		return
	}
	if minCols <= len(b.lines[row].cells) {
		return
	}

	r := b.mutRow(row)
	old := len(r.cells)
	grown := make([]Cell, minCols)
	copy(grown, r.cells)
	for j := old; j < minCols; j++ {
		grown[j] = NewCell()
	}
	r.cells = grown

	if minCols > b.cols {
		b.cols = minCols
		newTabStop := make([]bool, minCols)
		copy(newTabStop, b.tabStop)
		for i := (len(b.tabStop) + 7) / 8 * 8; i < minCols; i += 8 {
			newTabStop[i] = true
		}
		b.tabStop = newTabStop
	}
}

// Position identifies a cell location in the terminal grid (0-based).
type Position struct {
	Row int
	Col int
}

// Before returns true if this position comes before other in reading order (top-to-bottom, left-to-right).
func (p Position) Before(other Position) bool {
	if p.Row < other.Row {
		return true
	}
	if p.Row == other.Row && p.Col < other.Col {
		return true
	}
	return false
}

// Equal returns true if both row and column match.
func (p Position) Equal(other Position) bool {
	return p.Row == other.Row && p.Col == other.Col
}
