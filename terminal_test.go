package eterm

import (
	"bytes"
	"strings"
	"testing"
)

func TestNewTerminal(t *testing.T) {
	term := New()

	if term.Rows() != 24 {
		t.Errorf("expected 24 rows, got %d", term.Rows())
	}
	if term.Cols() != 80 {
		t.Errorf("expected 80 cols, got %d", term.Cols())
	}
}

func TestTerminalWithSize(t *testing.T) {
	term := New(WithSize(40, 120))

	if term.Rows() != 40 {
		t.Errorf("expected 40 rows, got %d", term.Rows())
	}
	if term.Cols() != 120 {
		t.Errorf("expected 120 cols, got %d", term.Cols())
	}
}

func TestTerminalWrite(t *testing.T) {
	term := New(WithSize(24, 80))

	term.WriteString("Hello")

	content := term.LineContent(0)
	if content != "Hello" {
		t.Errorf("expected 'Hello', got '%s'", content)
	}
}

func TestTerminalCursorPosition(t *testing.T) {
	term := New(WithSize(24, 80))

	term.WriteString("ABC")

	row, col := term.CursorPos()
	if row != 0 || col != 3 {
		t.Errorf("expected cursor at (0, 3), got (%d, %d)", row, col)
	}
}

func TestTerminalNewline(t *testing.T) {
	term := New(WithSize(24, 80))

	term.WriteString("Line1\r\nLine2")

	if term.LineContent(0) != "Line1" {
		t.Errorf("expected 'Line1', got '%s'", term.LineContent(0))
	}
	if term.LineContent(1) != "Line2" {
		t.Errorf("expected 'Line2', got '%s'", term.LineContent(1))
	}
}

func TestTerminalClearScreen(t *testing.T) {
	term := New(WithSize(24, 80))

	term.WriteString("Hello")
	term.WriteString("\x1b[2J")

	if term.LineContent(0) != "" {
		t.Errorf("expected empty line after clear, got '%s'", term.LineContent(0))
	}
}

func TestTerminalScrollback(t *testing.T) {
	term := New(WithSize(5, 80), WithHistorySize(100))

	for i := 0; i < 10; i++ {
		term.WriteString("Line\r\n")
	}

	if term.ScrollbackLen() < 5 {
		t.Errorf("expected at least 5 scrollback lines, got %d", term.ScrollbackLen())
	}
}

func TestTerminalWideChar(t *testing.T) {
	term := New(WithSize(24, 80))

	term.WriteString("世")

	cell := term.Cell(0, 0)
	if cell == nil || cell.Char != '世' {
		t.Fatalf("expected wide char at (0,0)")
	}
	if !cell.IsWide() {
		t.Error("expected wide flag on leading cell")
	}

	spacer := term.Cell(0, 1)
	if spacer == nil || !spacer.IsWideSpacer() {
		t.Error("expected wide spacer at (0,1)")
	}

	_, col := term.CursorPos()
	if col != 2 {
		t.Errorf("expected cursor at col 2, got %d", col)
	}
}

func TestWideCharDeferredAtLastColumn(t *testing.T) {
	term := New(WithSize(24, 4))

	term.WriteString("abc世")

	// The wide lead cannot fit at the last column; it wraps.
	if term.LineContent(0) != "abc" {
		t.Errorf("expected 'abc' on row 0, got '%s'", term.LineContent(0))
	}
	cell := term.Cell(1, 0)
	if cell == nil || cell.Char != '世' {
		t.Error("expected wide char at start of row 1")
	}
	if !term.IsWrapped(0) {
		t.Error("expected row 0 marked wrap-continued")
	}
}

func TestTerminalTitle(t *testing.T) {
	term := New()

	term.WriteString("\x1b]0;my title\x07")

	if term.Title() != "my title" {
		t.Errorf("expected 'my title', got '%s'", term.Title())
	}
}

func TestBracketedPasteMode(t *testing.T) {
	term := New()

	if term.IsBracketedPasteEnabled() {
		t.Error("bracketed paste should default off")
	}
	term.WriteString("\x1b[?2004h")
	if !term.IsBracketedPasteEnabled() {
		t.Error("expected bracketed paste enabled")
	}
	term.WriteString("\x1b[?2004l")
	if term.IsBracketedPasteEnabled() {
		t.Error("expected bracketed paste disabled")
	}
}

func TestFocusReporting(t *testing.T) {
	var buf bytes.Buffer
	term := New(WithResponse(&buf))

	term.FocusIn()
	if buf.Len() != 0 {
		t.Error("focus report emitted while mode 1004 off")
	}

	term.WriteString("\x1b[?1004h")
	term.FocusIn()
	term.FocusOut()
	if got := buf.String(); got != "\x1b[I\x1b[O" {
		t.Errorf("expected focus in/out reports, got %q", got)
	}
}

func TestAlternateScreen(t *testing.T) {
	term := New(WithSize(5, 20), WithHistorySize(100))

	term.WriteString("primary\r\n")
	before := term.String()
	historyBefore := term.ScrollbackLen()

	term.WriteString("\x1b[?1049h")
	if !term.IsAlternateScreen() {
		t.Fatal("expected alternate screen active")
	}
	term.WriteString("ALT\r\nALT\r\nALT\r\nALT\r\nALT\r\nALT\r\n")

	term.WriteString("\x1b[?1049l")
	if term.IsAlternateScreen() {
		t.Fatal("expected primary screen active")
	}

	// Alt-screen output must not accrue scrollback, and the primary
	// screen is restored unchanged.
	if term.ScrollbackLen() != historyBefore {
		t.Errorf("alt screen leaked %d lines into scrollback", term.ScrollbackLen()-historyBefore)
	}
	if term.String() != before {
		t.Errorf("primary screen changed across alt screen: %q vs %q", term.String(), before)
	}
}

func TestCursorPositionReport(t *testing.T) {
	var buf bytes.Buffer
	term := New(WithResponse(&buf))

	term.WriteString("hi")
	term.WriteString("\x1b[6n")

	if got := buf.String(); got != "\x1b[1;3R" {
		t.Errorf("expected cursor report \\x1b[1;3R, got %q", got)
	}
}

func TestTerminalResizeClampsCursor(t *testing.T) {
	term := New(WithSize(24, 80))

	term.WriteString("\x1b[24;80H")
	term.Resize(10, 20)

	row, col := term.CursorPos()
	if row >= 10 || col >= 20 {
		t.Errorf("cursor (%d,%d) outside 10x20 after resize", row, col)
	}

	term.Resize(1, 1)
	row, col = term.CursorPos()
	if row != 0 || col != 0 {
		t.Errorf("cursor (%d,%d) after 1x1 resize", row, col)
	}

	term.Resize(24, 80)
	row, col = term.CursorPos()
	if row >= 24 || col >= 80 {
		t.Errorf("cursor (%d,%d) outside 24x80", row, col)
	}
}

func TestDamageTracking(t *testing.T) {
	term := New(WithSize(24, 80))
	term.TakeDamage() // drop construction damage

	term.WriteString("hello")
	d := term.TakeDamage()
	if d.Full {
		t.Error("plain print raised full damage")
	}
	if len(d.Rows) != 1 || d.Rows[0] != 0 {
		t.Errorf("expected damage on row 0 only, got %v", d.Rows)
	}

	if term.TakeDamage().Any() {
		t.Error("damage not drained")
	}

	term.Resize(10, 40)
	if !term.TakeDamage().Full {
		t.Error("resize must raise full damage")
	}
}

func TestDamageOnScreenSwap(t *testing.T) {
	term := New(WithSize(24, 80))
	term.TakeDamage()

	term.WriteString("\x1b[?1049h")
	if !term.TakeDamage().Full {
		t.Error("entering alt screen must raise full damage")
	}

	term.WriteString("\x1b[?1049l")
	if !term.TakeDamage().Full {
		t.Error("leaving alt screen must raise full damage")
	}
}

func TestScrollDisplayClamped(t *testing.T) {
	term := New(WithSize(5, 20), WithHistorySize(100))

	for i := 0; i < 12; i++ {
		term.WriteString("x\r\n")
	}
	history := term.ScrollbackLen()

	term.ScrollDisplay(1000)
	if term.DisplayOffset() != history {
		t.Errorf("offset %d, want clamp to history %d", term.DisplayOffset(), history)
	}

	term.ScrollDisplay(-1000)
	if term.DisplayOffset() != 0 {
		t.Errorf("offset %d after scroll to bottom", term.DisplayOffset())
	}
}

func TestWriteResticksViewport(t *testing.T) {
	term := New(WithSize(5, 20), WithHistorySize(100))

	for i := 0; i < 12; i++ {
		term.WriteString("x\r\n")
	}
	term.ScrollDisplay(3)
	if term.DisplayOffset() != 3 {
		t.Fatalf("offset %d, want 3", term.DisplayOffset())
	}

	term.WriteString("y")
	if term.DisplayOffset() != 0 {
		t.Errorf("write did not re-stick viewport, offset %d", term.DisplayOffset())
	}
}

func TestWorkingDirectory(t *testing.T) {
	term := New()

	term.WriteString("\x1b]7;file://host/home/user\x07")

	if term.WorkingDirectory() != "file://host/home/user" {
		t.Errorf("unexpected uri %q", term.WorkingDirectory())
	}
	if term.WorkingDirectoryPath() != "/home/user" {
		t.Errorf("unexpected path %q", term.WorkingDirectoryPath())
	}
}

func TestHyperlinkGetsGeneratedID(t *testing.T) {
	term := New()

	term.WriteString("\x1b]8;;https://example.com\x07link\x1b]8;;\x07")

	cell := term.Cell(0, 0)
	if cell == nil || cell.Hyperlink == nil {
		t.Fatal("expected hyperlink on cell")
	}
	if cell.Hyperlink.URI != "https://example.com" {
		t.Errorf("unexpected uri %q", cell.Hyperlink.URI)
	}
	if cell.Hyperlink.ID == "" {
		t.Error("expected generated hyperlink id")
	}
}

func TestPartialUTF8AcrossWrites(t *testing.T) {
	term := New()

	full := []byte("héllo")
	// Split inside the two-byte é sequence.
	term.Write(full[:2])
	term.Write(full[2:])

	if got := term.LineContent(0); got != "héllo" {
		t.Errorf("expected 'héllo', got %q", got)
	}
	if strings.ContainsRune(term.LineContent(0), '�') {
		t.Error("premature replacement character emitted")
	}
}

func TestLineDrawingCharset(t *testing.T) {
	term := New()

	term.WriteString("\x1b(0qx\x1b(B")

	if c := term.Cell(0, 0); c == nil || c.Char != '─' {
		t.Errorf("expected line drawing translation, got %v", c)
	}
	if c := term.Cell(0, 1); c == nil || c.Char != '│' {
		t.Errorf("expected line drawing translation, got %v", c)
	}
}
