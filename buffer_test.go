package eterm

import "testing"

func TestBufferCellWrite(t *testing.T) {
	b := NewBuffer(5, 10)
	b.TakeDamage()

	c := b.CellForWrite(2, 3)
	if c == nil {
		t.Fatal("expected cell")
	}
	c.Char = 'x'

	if got := b.Cell(2, 3); got == nil || got.Char != 'x' {
		t.Error("write not visible")
	}

	d := b.TakeDamage()
	if len(d.Rows) != 1 || d.Rows[0] != 2 {
		t.Errorf("expected damage on row 2, got %+v", d)
	}
}

func TestBufferOutOfBounds(t *testing.T) {
	b := NewBuffer(5, 10)

	if b.Cell(-1, 0) != nil || b.Cell(0, -1) != nil || b.Cell(5, 0) != nil || b.Cell(0, 10) != nil {
		t.Error("out of bounds access returned a cell")
	}
	if b.CellForWrite(5, 0) != nil {
		t.Error("out of bounds write access returned a cell")
	}
}

func TestRowContentHashStableAndBumped(t *testing.T) {
	b := NewBuffer(2, 10)

	row := b.Row(0)
	h1 := row.ContentHash()
	if h1 != row.ContentHash() {
		t.Error("hash not stable across calls")
	}

	c := b.CellForWrite(0, 0)
	c.Char = 'a'
	h2 := b.Row(0).ContentHash()
	if h1 == h2 {
		t.Error("hash unchanged after mutation")
	}

	// Style-only change must also change the hash.
	c = b.CellForWrite(0, 0)
	c.SetFlag(CellFlagBold)
	if b.Row(0).ContentHash() == h2 {
		t.Error("hash unchanged after style mutation")
	}
}

func TestCopyOnWriteIsolatesFrozenRows(t *testing.T) {
	b := NewBuffer(2, 10)
	c := b.CellForWrite(0, 0)
	c.Char = 'a'

	frozen := b.SnapshotRows()

	c = b.CellForWrite(0, 0)
	c.Char = 'b'

	if frozen[0].Cell(0).Char != 'a' {
		t.Errorf("frozen row mutated: got %q", frozen[0].Cell(0).Char)
	}
	if b.Cell(0, 0).Char != 'b' {
		t.Errorf("live row missing write: got %q", b.Cell(0, 0).Char)
	}
}

func TestScrollUpPushesToScrollback(t *testing.T) {
	ring := NewRingScrollback(100)
	b := NewBufferWithStorage(3, 5, ring)

	b.CellForWrite(0, 0).Char = 'A'
	b.CellForWrite(1, 0).Char = 'B'
	b.ScrollUp(0, 3, 1)

	if ring.Len() != 1 {
		t.Fatalf("expected 1 scrollback line, got %d", ring.Len())
	}
	if ring.Line(0).Cell(0).Char != 'A' {
		t.Error("wrong row pushed to scrollback")
	}
	if b.Cell(0, 0).Char != 'B' {
		t.Error("rows not shifted")
	}
	if b.Cell(2, 0).Char != ' ' {
		t.Error("vacated bottom row not blank")
	}
}

func TestScrollbackRowSurvivesLaterWrites(t *testing.T) {
	ring := NewRingScrollback(100)
	b := NewBufferWithStorage(2, 5, ring)

	b.CellForWrite(0, 0).Char = 'A'
	b.ScrollUp(0, 2, 1)

	// The pushed row is frozen; the row now at the same screen slot is
	// distinct storage.
	b.CellForWrite(0, 0).Char = 'Z'
	if ring.Line(0).Cell(0).Char != 'A' {
		t.Error("scrollback row mutated by later screen write")
	}
}

func TestScrollRegionDoesNotFeedScrollback(t *testing.T) {
	ring := NewRingScrollback(100)
	b := NewBufferWithStorage(5, 5, ring)

	// Scrolling a sub-region (top != 0) must not push history.
	b.ScrollUp(1, 4, 1)
	if ring.Len() != 0 {
		t.Errorf("region scroll pushed %d rows to scrollback", ring.Len())
	}
}

func TestBufferResizePreservesContent(t *testing.T) {
	b := NewBuffer(3, 5)
	b.CellForWrite(0, 0).Char = 'x'
	b.TakeDamage()

	b.Resize(5, 8)
	if b.Cell(0, 0).Char != 'x' {
		t.Error("content lost on grow")
	}
	if !b.TakeDamage().Full {
		t.Error("resize must raise full damage")
	}

	b.Resize(2, 3)
	if b.Cell(0, 0).Char != 'x' {
		t.Error("content lost on shrink")
	}
	if b.Rows() != 2 || b.Cols() != 3 {
		t.Errorf("unexpected dims %dx%d", b.Rows(), b.Cols())
	}
}

func TestInsertDeleteChars(t *testing.T) {
	b := NewBuffer(1, 6)
	for i, r := range "abcdef" {
		b.CellForWrite(0, i).Char = r
	}

	b.InsertBlanks(0, 1, 2)
	if got := b.Row(0).Text(); got != "a  bcd" {
		t.Errorf("after insert: %q", got)
	}

	b.DeleteChars(0, 1, 2)
	if got := b.Row(0).Text(); got != "abcd" {
		t.Errorf("after delete: %q", got)
	}
}

func TestTabStops(t *testing.T) {
	b := NewBuffer(1, 24)

	if b.NextTabStop(0) != 8 {
		t.Errorf("next tab from 0 = %d, want 8", b.NextTabStop(0))
	}
	if b.PrevTabStop(9) != 8 {
		t.Errorf("prev tab from 9 = %d, want 8", b.PrevTabStop(9))
	}

	b.ClearAllTabStops()
	if b.NextTabStop(0) != 23 {
		t.Error("expected last column with no tab stops")
	}

	b.SetTabStop(4)
	if b.NextTabStop(0) != 4 {
		t.Error("custom tab stop not honored")
	}
}
