package eterm

import (
	"strings"
	"unicode"
)

// SelectionKind determines how selection endpoints expand.
type SelectionKind int

const (
	// SelectionSimple selects the exact character range between the endpoints.
	SelectionSimple SelectionKind = iota
	// SelectionSemantic expands both endpoints to word boundaries.
	SelectionSemantic
	// SelectionLines selects whole logical lines (wrap-continued runs
	// collapse into one line for copy).
	SelectionLines
)

// Point identifies a cell in the absolute grid: Line 0 is the top of
// the screen, negative lines reach into scrollback (-1 is the most
// recent history line).
type Point struct {
	Line int
	Col  int
}

// Before returns true if this point comes before other in reading order.
func (p Point) Before(other Point) bool {
	if p.Line != other.Line {
		return p.Line < other.Line
	}
	return p.Col < other.Col
}

// Selection is a text region anchored at the point where the drag
// started. Direction is not normalized; readers order the endpoints.
type Selection struct {
	Kind   SelectionKind
	Anchor Point
	Head   Point
	Active bool
}

// Ordered returns the endpoints in reading order.
func (s Selection) Ordered() (start, end Point) {
	if s.Head.Before(s.Anchor) {
		return s.Head, s.Anchor
	}
	return s.Anchor, s.Head
}

// ResolvedSelection is a selection with semantic/line expansion already
// applied against the grid, ready for rendering and text extraction.
// Start and End are in reading order; End.Col is inclusive.
type ResolvedSelection struct {
	Kind  SelectionKind
	Start Point
	End   Point
}

// SpanOnLine returns the selected column range [startCol, endCol] on
// the given absolute line, or ok=false if the line is not covered.
// lineWidth is the cell count of that line.
func (r *ResolvedSelection) SpanOnLine(line, lineWidth int) (startCol, endCol int, ok bool) {
	if r == nil || line < r.Start.Line || line > r.End.Line {
		return 0, 0, false
	}
	startCol = 0
	endCol = lineWidth - 1
	if r.Kind != SelectionLines {
		if line == r.Start.Line {
			startCol = r.Start.Col
		}
		if line == r.End.Line {
			endCol = r.End.Col
		}
	}
	if endCol >= lineWidth {
		endCol = lineWidth - 1
	}
	if startCol > endCol {
		return 0, 0, false
	}
	return startCol, endCol, true
}

// StartSelection begins a selection of the given kind at point p.
func (t *Terminal) StartSelection(p Point, kind SelectionKind) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.selection = Selection{
		Kind:   kind,
		Anchor: p,
		Head:   p,
		Active: true,
	}
	t.activeBuffer.MarkFullDamage()
}

// UpdateSelection extends the active selection to point p.
// No-op when no selection is active.
func (t *Terminal) UpdateSelection(p Point) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.selection.Active {
		return
	}
	t.selection.Head = p
	t.activeBuffer.MarkFullDamage()
}

// ClearSelection deactivates the current selection.
func (t *Terminal) ClearSelection() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.selection.Active {
		t.selection.Active = false
		t.activeBuffer.MarkFullDamage()
	}
}

// HasSelection returns true if a selection is currently active.
func (t *Terminal) HasSelection() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.selection.Active
}

// GetSelection returns the raw (unexpanded) selection state.
func (t *Terminal) GetSelection() Selection {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.selection
}

// ResolvedSelection returns the selection with semantic/line expansion
// applied, or nil when inactive.
func (t *Terminal) ResolvedSelection() *ResolvedSelection {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.resolveSelection()
}

// resolveSelection expands the active selection. Caller must hold t.mu.
func (t *Terminal) resolveSelection() *ResolvedSelection {
	if !t.selection.Active {
		return nil
	}
	start, end := t.selection.Ordered()

	switch t.selection.Kind {
	case SelectionSemantic:
		start.Col = t.wordStart(start)
		end.Col = t.wordEnd(end)
	case SelectionLines:
		start.Col = 0
		if row := t.line(end.Line); row != nil {
			end.Col = row.Len() - 1
		}
	}

	return &ResolvedSelection{
		Kind:  t.selection.Kind,
		Start: start,
		End:   end,
	}
}

// isWordRune applies the semantic word rule: Unicode letters, digits
// and marks are word runes, everything in the configured delimiter set
// or Unicode space is not; remaining punctuation counts as word runes
// so paths and identifiers select as units.
func (t *Terminal) isWordRune(r rune) bool {
	if unicode.IsSpace(r) || r == 0 {
		return false
	}
	if _, ok := t.wordDelimiters[r]; ok {
		return false
	}
	return true
}

// wordStart walks left from p to the start of the word under it.
func (t *Terminal) wordStart(p Point) int {
	row := t.line(p.Line)
	if row == nil {
		return p.Col
	}
	col := clamp(p.Col, 0, row.Len()-1)
	if c := row.Cell(col); c == nil || !t.isWordRune(c.Rune()) {
		return col
	}
	for col > 0 {
		c := row.Cell(col - 1)
		if c == nil || c.IsWideSpacer() {
			col--
			continue
		}
		if !t.isWordRune(c.Rune()) {
			break
		}
		col--
	}
	return col
}

// wordEnd walks right from p to the end of the word under it.
func (t *Terminal) wordEnd(p Point) int {
	row := t.line(p.Line)
	if row == nil {
		return p.Col
	}
	col := clamp(p.Col, 0, row.Len()-1)
	if c := row.Cell(col); c == nil || !t.isWordRune(c.Rune()) {
		return col
	}
	for col < row.Len()-1 {
		c := row.Cell(col + 1)
		if c == nil {
			break
		}
		if c.IsWideSpacer() {
			col++
			continue
		}
		if !t.isWordRune(c.Rune()) {
			break
		}
		col++
	}
	return col
}

// WordAt returns the word under the given point and its column range,
// using the semantic word rule. Empty when the point is not on a word.
func (t *Terminal) WordAt(p Point) (text string, startCol, endCol int) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	row := t.line(p.Line)
	if row == nil {
		return "", 0, 0
	}
	col := clamp(p.Col, 0, row.Len()-1)
	if c := row.Cell(col); c == nil || !t.isWordRune(c.Rune()) {
		return "", col, col
	}
	startCol = t.wordStart(p)
	endCol = t.wordEnd(p)

	var sb strings.Builder
	for i := startCol; i <= endCol; i++ {
		c := row.Cell(i)
		if c == nil || c.IsWideSpacer() {
			continue
		}
		sb.WriteRune(c.Rune())
	}
	return sb.String(), startCol, endCol
}

// SelectionText extracts the text covered by the active selection.
// Rows joined by a soft wrap contribute no newline, so wrapped logical
// lines copy as one line. Empty when no selection is active.
func (t *Terminal) SelectionText() string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	sel := t.resolveSelection()
	if sel == nil {
		return ""
	}

	var sb strings.Builder
	for line := sel.Start.Line; line <= sel.End.Line; line++ {
		row := t.line(line)
		if row == nil {
			continue
		}
		startCol, endCol, ok := sel.SpanOnLine(line, row.Len())
		if ok {
			last := endCol
			// Trailing blanks on fully selected rows are noise for copy.
			if line != sel.End.Line || sel.Kind == SelectionLines {
				for last >= startCol {
					c := row.Cell(last)
					if c != nil && c.Char != ' ' && c.Char != 0 {
						break
					}
					last--
				}
			}
			for col := startCol; col <= last; col++ {
				c := row.Cell(col)
				if c == nil || c.IsWideSpacer() {
					continue
				}
				sb.WriteRune(c.Rune())
			}
		}
		if line < sel.End.Line && !row.Wrapped() {
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}
