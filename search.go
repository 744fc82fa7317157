package eterm

// Match is one search hit. Start is inclusive, End is the cell after
// the last matched cell (may be on a later line when the match spans a
// soft wrap).
type Match struct {
	Start Point
	End   Point
}

// SearchState carries the current pattern, the matches found at the
// time of the last Search call, and the focused match index (-1 when
// there are no matches).
type SearchState struct {
	Pattern string
	Matches []Match
	Focused int
}

// logicalCell is one visible rune of a logical line with its grid position.
type logicalCell struct {
	r    rune
	line int
	col  int
}

// logicalLines walks the grid from the oldest scrollback line to the
// bottom of the screen, joining wrap-continued rows, and calls fn with
// the runes and positions of each logical line. Caller must hold t.mu.
func (t *Terminal) logicalLines(fn func(cells []logicalCell)) {
	historyLen := t.primaryBuffer.ScrollbackLen()

	var cells []logicalCell
	for line := -historyLen; line < t.rows; line++ {
		row := t.line(line)
		if row == nil {
			continue
		}
		for col := 0; col < row.Len(); col++ {
			c := row.Cell(col)
			if c == nil || c.IsWideSpacer() {
				continue
			}
			cells = append(cells, logicalCell{r: c.Rune(), line: line, col: col})
		}
		if !row.Wrapped() || line == t.rows-1 {
			fn(cells)
			cells = cells[:0]
		}
	}
}

// Search scans the logical text of scrollback plus screen for the
// pattern and replaces the match set. Focus lands on the first match
// at or after the top of the current viewport (wrapping to the first
// match overall). Returns the match count. An empty pattern clears
// everything.
func (t *Terminal) Search(pattern string) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.search = SearchState{Pattern: pattern, Focused: -1}
	if pattern == "" {
		t.activeBuffer.MarkFullDamage()
		return 0
	}

	patRunes := []rune(pattern)
	t.logicalLines(func(cells []logicalCell) {
		// Trailing blank cells are not part of the logical text.
		end := len(cells)
		for end > 0 && cells[end-1].r == ' ' {
			end--
		}
		for i := 0; i+len(patRunes) <= end; i++ {
			found := true
			for j, pr := range patRunes {
				if cells[i+j].r != pr {
					found = false
					break
				}
			}
			if !found {
				continue
			}
			startCell := cells[i]
			lastCell := cells[i+len(patRunes)-1]
			t.search.Matches = append(t.search.Matches, Match{
				Start: Point{Line: startCell.line, Col: startCell.col},
				End:   Point{Line: lastCell.line, Col: lastCell.col + 1},
			})
		}
	})

	// Focus the first match at or after the viewport top.
	viewportTop := -t.displayOffset
	for i, m := range t.search.Matches {
		if m.Start.Line >= viewportTop {
			t.search.Focused = i
			break
		}
	}
	if t.search.Focused < 0 && len(t.search.Matches) > 0 {
		t.search.Focused = 0
	}

	t.activeBuffer.MarkFullDamage()
	return len(t.search.Matches)
}

// NextMatch advances the focused match, wrapping at the end.
// Returns the focused match and true, or false when there are none.
func (t *Terminal) NextMatch() (Match, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.search.Matches) == 0 {
		return Match{}, false
	}
	t.search.Focused = (t.search.Focused + 1) % len(t.search.Matches)
	t.activeBuffer.MarkFullDamage()
	return t.search.Matches[t.search.Focused], true
}

// PrevMatch moves the focused match backwards, wrapping at the start.
// Returns the focused match and true, or false when there are none.
func (t *Terminal) PrevMatch() (Match, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.search.Matches) == 0 {
		return Match{}, false
	}
	t.search.Focused--
	if t.search.Focused < 0 {
		t.search.Focused = len(t.search.Matches) - 1
	}
	t.activeBuffer.MarkFullDamage()
	return t.search.Matches[t.search.Focused], true
}

// ClearSearch removes the match overlays but keeps the pattern, so a
// caller can read it back with SearchPattern and re-run it.
func (t *Terminal) ClearSearch() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.search.Matches) > 0 {
		t.activeBuffer.MarkFullDamage()
	}
	t.search.Matches = nil
	t.search.Focused = -1
}

// SearchPattern returns the last searched pattern (kept across ClearSearch).
func (t *Terminal) SearchPattern() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.search.Pattern
}

// SearchMatches returns a copy of the current match list.
func (t *Terminal) SearchMatches() []Match {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]Match, len(t.search.Matches))
	copy(out, t.search.Matches)
	return out
}

// FocusedMatch returns the focused match index, or -1.
func (t *Terminal) FocusedMatch() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.search.Focused
}
