package eterm

import "testing"

func row(ch rune) *Row {
	r := newRow(4)
	r.cells[0].Char = ch
	return r
}

func TestRingScrollbackPushAndEvict(t *testing.T) {
	ring := NewRingScrollback(3)

	for _, ch := range "abcde" {
		ring.Push(row(ch))
	}

	if ring.Len() != 3 {
		t.Fatalf("len = %d, want 3", ring.Len())
	}
	if ring.Total() != 5 {
		t.Fatalf("total = %d, want 5", ring.Total())
	}

	// Oldest retained is 'c'.
	if ring.Line(0).Cell(0).Char != 'c' {
		t.Errorf("line 0 = %q, want c", ring.Line(0).Cell(0).Char)
	}
	if ring.Line(2).Cell(0).Char != 'e' {
		t.Errorf("line 2 = %q, want e", ring.Line(2).Cell(0).Char)
	}
	if ring.Line(3) != nil {
		t.Error("out of range read returned a row")
	}
}

func TestRingScrollbackAbsoluteAddressing(t *testing.T) {
	ring := NewRingScrollback(3)

	for _, ch := range "abcde" {
		ring.Push(row(ch))
	}

	// Absolute lines 0,1 are evicted; 2..4 are c,d,e.
	if ring.AbsLine(0) != nil || ring.AbsLine(1) != nil {
		t.Error("evicted absolute lines must read nil")
	}
	if ring.AbsLine(2).Cell(0).Char != 'c' {
		t.Error("abs 2 should be c")
	}
	if ring.AbsLine(4).Cell(0).Char != 'e' {
		t.Error("abs 4 should be e")
	}
	if ring.AbsLine(5) != nil {
		t.Error("unwritten absolute line must read nil")
	}
}

func TestRingScrollbackClearKeepsTotal(t *testing.T) {
	ring := NewRingScrollback(3)
	ring.Push(row('a'))
	ring.Push(row('b'))

	ring.Clear()
	if ring.Len() != 0 {
		t.Error("clear did not empty ring")
	}
	if ring.Total() != 2 {
		t.Error("clear reset the absolute counter")
	}
	if ring.AbsLine(1) != nil {
		t.Error("cleared line must read nil")
	}
}

func TestRingScrollbackResize(t *testing.T) {
	ring := NewRingScrollback(4)
	for _, ch := range "abcd" {
		ring.Push(row(ch))
	}

	ring.SetMaxLines(2)
	if ring.Len() != 2 {
		t.Fatalf("len = %d after shrink, want 2", ring.Len())
	}
	// Newest rows retained.
	if ring.Line(0).Cell(0).Char != 'c' || ring.Line(1).Cell(0).Char != 'd' {
		t.Error("shrink did not retain newest rows")
	}

	ring.SetMaxLines(5)
	ring.Push(row('e'))
	if ring.Len() != 3 {
		t.Errorf("len = %d after grow+push, want 3", ring.Len())
	}
}

func TestRingScrollbackZeroCapacity(t *testing.T) {
	ring := NewRingScrollback(0)
	ring.Push(row('a'))

	if ring.Len() != 0 {
		t.Error("zero-capacity ring stored a row")
	}
	if ring.Total() != 1 {
		t.Error("zero-capacity ring must still count pushes")
	}
}
