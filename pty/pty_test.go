package pty_test

import (
	"errors"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/vimo-ai/eterm/pty"
)

func spawnShell(t *testing.T) *pty.Pty {
	t.Helper()
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("no /bin/sh on this system")
	}
	p, err := pty.Spawn(80, 24, "/bin/sh", "", nil)
	if err != nil {
		t.Skipf("pty unavailable: %v", err)
	}
	return p
}

// drain reads until EOF/EIO, returning everything seen.
func drain(p *pty.Pty) string {
	var sb strings.Builder
	buf := make([]byte, 4096)
	for {
		n, err := p.Read(buf)
		if n > 0 {
			sb.Write(buf[:n])
		}
		if err != nil {
			return sb.String()
		}
	}
}

func TestSpawnEchoAndReap(t *testing.T) {
	p := spawnShell(t)
	defer p.Close()

	if _, err := p.Write([]byte("echo pty-roundtrip; exit 0\n")); err != nil {
		t.Fatalf("write: %v", err)
	}

	out := make(chan string, 1)
	go func() { out <- drain(p) }()

	select {
	case got := <-out:
		if !strings.Contains(got, "pty-roundtrip") {
			t.Errorf("output missing echo: %q", got)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for child output")
	}

	status := p.Reap()
	if status.Err != nil {
		t.Errorf("reap error: %v", status.Err)
	}
	if status.Code != 0 {
		t.Errorf("exit code %d", status.Code)
	}

	// Reap is idempotent.
	if again := p.Reap(); again != status {
		t.Error("second reap differs")
	}
}

func TestSpawnFailure(t *testing.T) {
	_, err := pty.Spawn(80, 24, "/nonexistent/shell-xyz", "", nil)
	if err == nil {
		t.Fatal("expected spawn failure")
	}
	var spawnErr *pty.SpawnError
	if !errors.As(err, &spawnErr) {
		t.Errorf("error %T is not a SpawnError", err)
	}
}

func TestSpawnInvalidSize(t *testing.T) {
	if _, err := pty.Spawn(0, 24, "/bin/sh", "", nil); err == nil {
		t.Error("expected error for zero cols")
	}
}

func TestResize(t *testing.T) {
	p := spawnShell(t)
	defer func() {
		p.Kill()
		p.Close()
		p.Reap()
	}()

	if err := p.Resize(120, 40); err != nil {
		t.Fatalf("resize: %v", err)
	}
	cols, rows := p.Size()
	if cols != 120 || rows != 40 {
		t.Errorf("size %dx%d after resize", cols, rows)
	}

	if err := p.Resize(0, 0); err == nil {
		t.Error("expected error for invalid resize")
	}
}

func TestWriteAfterCloseFails(t *testing.T) {
	p := spawnShell(t)
	p.Kill()
	p.Reap()
	_ = p.Close()

	if _, err := p.Write([]byte("x")); err == nil {
		t.Error("expected write error on closed pty")
	}
}

func TestReadUnblocksOnClose(t *testing.T) {
	p := spawnShell(t)

	done := make(chan struct{})
	go func() {
		buf := make([]byte, 1024)
		for {
			if _, err := p.Read(buf); err != nil {
				close(done)
				return
			}
		}
	}()

	time.Sleep(100 * time.Millisecond)
	p.Kill()
	p.Reap()
	_ = p.Close()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("reader did not unblock on close")
	}
}

var _ io.Reader = (*pty.Pty)(nil)
var _ io.Writer = (*pty.Pty)(nil)
