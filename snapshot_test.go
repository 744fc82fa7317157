package eterm

import "testing"

func TestSnapshotImmutableUnderWrites(t *testing.T) {
	term := New(WithSize(5, 20))
	term.WriteString("before")

	snap := term.Snapshot()

	term.WriteString("\x1b[2Jafter overwriting everything")

	if got := snap.Screen[0].Text(); got != "before" {
		t.Errorf("snapshot changed under later writes: %q", got)
	}
}

func TestSnapshotEqualAfterIdenticalWrites(t *testing.T) {
	term := New(WithSize(5, 20))
	term.WriteString("stable")

	a := term.Snapshot()
	b := term.Snapshot()

	if a.Rows != b.Rows || a.Cols != b.Cols {
		t.Fatal("geometry differs")
	}
	if a.Cursor != b.Cursor {
		t.Error("cursor differs between back-to-back snapshots")
	}
	for i := 0; i < a.Rows; i++ {
		if a.Screen[i].ContentHash() != b.Screen[i].ContentHash() {
			t.Errorf("row %d differs between back-to-back snapshots", i)
		}
	}
}

func TestSnapshotLineAddressing(t *testing.T) {
	term := New(WithSize(3, 20), WithHistorySize(100))
	term.WriteString("one\r\ntwo\r\nthree\r\nfour\r\nfive")

	snap := term.Snapshot()
	if snap.HistoryLen == 0 {
		t.Fatal("expected history")
	}

	// Line 0 is the top of the screen; -1 the newest history line.
	if got := snap.Line(-1).Text(); got == "" {
		t.Error("expected newest history line")
	}
	if snap.Line(snap.Rows) != nil {
		t.Error("below-screen line must be nil")
	}
	if snap.Line(-snap.HistoryLen-1) != nil {
		t.Error("line beyond history must be nil")
	}
}

func TestSnapshotHistorySurvivesEviction(t *testing.T) {
	term := New(WithSize(2, 10), WithHistorySize(4))
	for i := 0; i < 6; i++ {
		term.WriteString("x\r\n")
	}

	snap := term.Snapshot()
	oldest := snap.Line(-snap.HistoryLen)
	if oldest == nil {
		t.Fatal("expected oldest history line")
	}

	// Push enough new lines to evict everything the snapshot can see.
	for i := 0; i < 10; i++ {
		term.WriteString("y\r\n")
	}

	// Evicted lines read as nil rather than aliasing newer rows.
	if snap.Line(-snap.HistoryLen) != nil {
		t.Error("evicted history line aliased newer content")
	}
}

func TestSnapshotModeFlags(t *testing.T) {
	term := New(WithSize(5, 20))

	snap := term.Snapshot()
	if snap.Flags != 0 {
		t.Errorf("fresh terminal flags = %b", snap.Flags)
	}

	term.WriteString("\x1b[?2004h\x1b[?1004h\x1b[?1002h\x1b[?1049h")
	snap = term.Snapshot()

	for _, tc := range []struct {
		flag StateFlags
		name string
	}{
		{StateBracketedPaste, "bracketed paste"},
		{StateFocusReporting, "focus reporting"},
		{StateMouseReporting, "mouse reporting"},
		{StateAltScreen, "alt screen"},
	} {
		if !snap.Flags.Has(tc.flag) {
			t.Errorf("expected %s flag", tc.name)
		}
	}
}

func TestSnapshotHidesCursorWhenModeUnset(t *testing.T) {
	term := New(WithSize(5, 20))

	term.WriteString("\x1b[?25l")
	snap := term.Snapshot()
	if snap.Cursor.Visible {
		t.Error("cursor visible in snapshot despite DECTCEM reset")
	}
}

func TestSnapshotCursorOnScreen(t *testing.T) {
	term := New(WithSize(3, 20), WithHistorySize(100))
	for i := 0; i < 10; i++ {
		term.WriteString("x\r\n")
	}

	snap := term.Snapshot()
	if _, ok := snap.CursorOnScreen(); !ok {
		t.Error("cursor should be visible at bottom viewport")
	}

	term.ScrollDisplay(5)
	snap = term.Snapshot()
	if _, ok := snap.CursorOnScreen(); ok {
		t.Error("cursor should be outside a history viewport")
	}
}
