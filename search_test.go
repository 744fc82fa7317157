package eterm

import "testing"

func TestSearchBasic(t *testing.T) {
	term := New(WithSize(24, 80))
	term.WriteString("Hello World\r\nHello Go\r\n")

	n := term.Search("Hello")
	if n != 2 {
		t.Fatalf("expected 2 matches, got %d", n)
	}

	matches := term.SearchMatches()
	if matches[0].Start != (Point{Line: 0, Col: 0}) {
		t.Errorf("first match at %+v", matches[0].Start)
	}
	if matches[1].Start != (Point{Line: 1, Col: 0}) {
		t.Errorf("second match at %+v", matches[1].Start)
	}
	if term.FocusedMatch() != 0 {
		t.Errorf("focus = %d, want 0", term.FocusedMatch())
	}
}

func TestSearchNoMatches(t *testing.T) {
	term := New(WithSize(24, 80))
	term.WriteString("nothing here")

	if n := term.Search("absent"); n != 0 {
		t.Errorf("expected 0 matches, got %d", n)
	}
	if term.FocusedMatch() != -1 {
		t.Error("focus should be -1 with no matches")
	}
	if _, ok := term.NextMatch(); ok {
		t.Error("NextMatch should report no matches")
	}
}

func TestSearchCyclesFocus(t *testing.T) {
	term := New(WithSize(24, 80))
	term.WriteString("a b a b a\r\n")

	if n := term.Search("a"); n != 3 {
		t.Fatalf("expected 3 matches, got %d", n)
	}

	m, ok := term.NextMatch()
	if !ok || term.FocusedMatch() != 1 {
		t.Errorf("focus = %d after next, match %+v", term.FocusedMatch(), m)
	}
	term.NextMatch()
	term.NextMatch() // wraps
	if term.FocusedMatch() != 0 {
		t.Errorf("focus = %d, want wrap to 0", term.FocusedMatch())
	}
	term.PrevMatch() // wraps back
	if term.FocusedMatch() != 2 {
		t.Errorf("focus = %d, want 2", term.FocusedMatch())
	}
}

func TestSearchSpansSoftWrap(t *testing.T) {
	term := New(WithSize(24, 6))
	// "needle" split across the wrap at column 6.
	term.WriteString("xxxnee")
	term.WriteString("dlexxx")

	if n := term.Search("needle"); n != 1 {
		t.Fatalf("expected wrapped match, got %d", n)
	}

	m := term.SearchMatches()[0]
	if m.Start != (Point{Line: 0, Col: 3}) {
		t.Errorf("match start %+v", m.Start)
	}
	if m.End != (Point{Line: 1, Col: 3}) {
		t.Errorf("match end %+v", m.End)
	}
}

func TestSearchScrollback(t *testing.T) {
	term := New(WithSize(3, 20), WithHistorySize(100))
	term.WriteString("target\r\n")
	for i := 0; i < 6; i++ {
		term.WriteString("filler\r\n")
	}
	if term.ScrollbackLen() == 0 {
		t.Fatal("expected scrollback")
	}

	if n := term.Search("target"); n != 1 {
		t.Fatalf("expected 1 match in scrollback, got %d", n)
	}
	if m := term.SearchMatches()[0]; m.Start.Line >= 0 {
		t.Errorf("match should be in scrollback (negative line), got %+v", m.Start)
	}
}

func TestClearSearchKeepsPattern(t *testing.T) {
	term := New(WithSize(24, 80))
	term.WriteString("abc abc")

	term.Search("abc")
	term.ClearSearch()

	if len(term.SearchMatches()) != 0 {
		t.Error("matches survived clear")
	}
	if term.FocusedMatch() != -1 {
		t.Error("focus survived clear")
	}
	if term.SearchPattern() != "abc" {
		t.Errorf("pattern %q lost on clear", term.SearchPattern())
	}
}

func TestSearchFocusAtViewport(t *testing.T) {
	term := New(WithSize(3, 20), WithHistorySize(100))
	term.WriteString("hit\r\n")
	for i := 0; i < 6; i++ {
		term.WriteString("filler\r\n")
	}
	term.WriteString("hit\r\n")

	// Viewport at the bottom: focus should land on the on-screen hit,
	// not the scrollback one.
	term.Search("hit")
	matches := term.SearchMatches()
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(matches))
	}
	focused := matches[term.FocusedMatch()]
	if focused.Start.Line < 0 {
		t.Errorf("focus landed in scrollback: %+v", focused.Start)
	}
}
