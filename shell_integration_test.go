package eterm

import (
	"testing"

	"github.com/danielgatis/go-ansicode"
)

type recordingMarks struct {
	marks []ansicode.ShellIntegrationMark
	codes []int
}

func (r *recordingMarks) OnMark(mark ansicode.ShellIntegrationMark, exitCode int) {
	r.marks = append(r.marks, mark)
	r.codes = append(r.codes, exitCode)
}

func TestShellIntegrationMarks(t *testing.T) {
	rec := &recordingMarks{}
	term := New(WithSize(24, 80), WithShellIntegration(rec))

	term.WriteString("\x1b]133;A\x07$ ")
	term.WriteString("\x1b]133;B\x07ls\r\n")
	term.WriteString("\x1b]133;C\x07out\r\n")
	term.WriteString("\x1b]133;D;0\x07")

	if term.PromptMarkCount() != 4 {
		t.Fatalf("expected 4 marks, got %d", term.PromptMarkCount())
	}
	if len(rec.marks) != 4 {
		t.Fatalf("provider saw %d marks", len(rec.marks))
	}
	if rec.marks[0] != ansicode.PromptStart {
		t.Errorf("first mark %v", rec.marks[0])
	}
	if rec.codes[3] != 0 {
		t.Errorf("exit code %d", rec.codes[3])
	}
}

func TestInputRowFollowsPromptMark(t *testing.T) {
	term := New(WithSize(24, 80))

	term.WriteString("output\r\noutput\r\n")
	term.WriteString("\x1b]133;A\x07$ ")

	if got := term.InputRow(); got != 2 {
		t.Errorf("input row = %d, want 2", got)
	}
}

func TestInputRowFallsBackToCursor(t *testing.T) {
	term := New(WithSize(24, 80))

	term.WriteString("line\r\nline\r\n")

	row, _ := term.CursorPos()
	if got := term.InputRow(); got != row {
		t.Errorf("input row = %d, want cursor row %d", got, row)
	}
}

func TestGetLastCommandOutput(t *testing.T) {
	term := New(WithSize(24, 80))

	term.WriteString("\x1b]133;A\x07$ ls\r\n")
	term.WriteString("\x1b]133;C\x07")
	term.WriteString("file1\r\nfile2\r\n")
	term.WriteString("\x1b]133;D;0\x07")

	got := term.GetLastCommandOutput()
	if got != "file1\nfile2" {
		t.Errorf("last command output %q", got)
	}
}

func TestPromptNavigation(t *testing.T) {
	term := New(WithSize(24, 80))

	term.WriteString("\x1b]133;A\x07$ one\r\n")
	term.WriteString("\x1b]133;A\x07$ two\r\n")

	first := term.PromptMarks()[0].Row
	second := term.PromptMarks()[1].Row

	if got := term.NextPromptRow(first, ansicode.PromptStart); got != second {
		t.Errorf("next prompt after %d = %d, want %d", first, got, second)
	}
	if got := term.PrevPromptRow(second, ansicode.PromptStart); got != first {
		t.Errorf("prev prompt before %d = %d, want %d", second, got, first)
	}
	if got := term.NextPromptRow(second, ansicode.PromptStart); got != -1 {
		t.Errorf("expected -1 past last prompt, got %d", got)
	}
}
