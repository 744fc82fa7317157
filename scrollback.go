package eterm

import "sync"

// ScrollbackProvider stores rows scrolled off the top of the primary buffer.
// Pushed rows are frozen and never mutated again, so implementations may
// hold them by reference.
type ScrollbackProvider interface {
	// Push appends a row to scrollback. Oldest rows are evicted when
	// MaxLines is exceeded.
	Push(row *Row)
	// Len returns the current number of stored rows.
	Len() int
	// Line returns the row at index, where 0 is the oldest retained row.
	// Returns nil if out of range.
	Line(index int) *Row
	// AbsLine returns the row with the given absolute line number
	// (0 = first row ever pushed). Returns nil if evicted or unwritten.
	AbsLine(abs int) *Row
	// Total returns the count of rows ever pushed, including evicted ones.
	Total() int
	// Clear removes all stored rows.
	Clear()
	// SetMaxLines sets the maximum capacity, trimming oldest rows if needed.
	SetMaxLines(max int)
	// MaxLines returns the current maximum capacity.
	MaxLines() int
}

// NoopScrollback discards all rows (used by the alternate buffer,
// which accrues no history).
type NoopScrollback struct{}

func (NoopScrollback) Push(*Row)         {}
func (NoopScrollback) Len() int          { return 0 }
func (NoopScrollback) Line(int) *Row     { return nil }
func (NoopScrollback) AbsLine(int) *Row  { return nil }
func (NoopScrollback) Total() int        { return 0 }
func (NoopScrollback) Clear()            {}
func (NoopScrollback) SetMaxLines(int)   {}
func (NoopScrollback) MaxLines() int     { return 0 }

var _ ScrollbackProvider = NoopScrollback{}

// RingScrollback is a bounded in-memory ring of history rows addressed
// both relatively (0 = oldest retained) and absolutely (0 = first row
// ever pushed). Absolute addressing lets snapshots keep resolving rows
// while the terminal continues to scroll: an evicted row simply reads
// as nil instead of silently aliasing a newer one.
type RingScrollback struct {
	mu    sync.RWMutex
	rows  []*Row
	max   int
	start int // ring index of the oldest retained row
	count int
	total int // rows ever pushed
}

// NewRingScrollback creates a ring holding at most max rows.
// A non-positive max disables storage.
func NewRingScrollback(max int) *RingScrollback {
	if max < 0 {
		max = 0
	}
	return &RingScrollback{
		rows: make([]*Row, max),
		max:  max,
	}
}

// Push appends a row, evicting the oldest when full.
func (s *RingScrollback) Push(row *Row) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.max == 0 {
		s.total++
		return
	}
	if s.count < s.max {
		s.rows[(s.start+s.count)%s.max] = row
		s.count++
	} else {
		s.rows[s.start] = row
		s.start = (s.start + 1) % s.max
	}
	s.total++
}

// Len returns the number of retained rows.
func (s *RingScrollback) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.count
}

// Line returns the row at index, where 0 is the oldest retained row.
func (s *RingScrollback) Line(index int) *Row {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if index < 0 || index >= s.count {
		return nil
	}
	return s.rows[(s.start+index)%s.max]
}

// AbsLine returns the row with the given absolute line number, or nil
// if it was evicted or not yet written.
func (s *RingScrollback) AbsLine(abs int) *Row {
	s.mu.RLock()
	defer s.mu.RUnlock()

	first := s.total - s.count
	if abs < first || abs >= s.total {
		return nil
	}
	return s.rows[(s.start+abs-first)%s.max]
}

// Total returns the count of rows ever pushed, including evicted ones.
func (s *RingScrollback) Total() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.total
}

// Clear removes all retained rows. The absolute counter keeps running
// so live snapshots resolve cleared lines as nil rather than stale.
func (s *RingScrollback) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.rows {
		s.rows[i] = nil
	}
	s.start = 0
	s.count = 0
}

// SetMaxLines resizes the ring, retaining the newest rows.
func (s *RingScrollback) SetMaxLines(max int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if max < 0 {
		max = 0
	}
	if max == s.max {
		return
	}

	keep := s.count
	if keep > max {
		keep = max
	}
	rows := make([]*Row, max)
	for i := 0; i < keep; i++ {
		// keep the newest rows
		rows[keep-1-i] = s.rows[(s.start+s.count-1-i)%s.max]
	}
	s.rows = rows
	s.max = max
	s.start = 0
	s.count = keep
}

// MaxLines returns the ring capacity.
func (s *RingScrollback) MaxLines() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.max
}

var _ ScrollbackProvider = (*RingScrollback)(nil)
