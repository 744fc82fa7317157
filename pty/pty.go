// Package pty owns the pseudo-terminal side of a terminal session: it
// forks a child process attached to the slave end, and exposes read,
// write, resize and reap on the master.
package pty

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"

	"github.com/creack/pty"
)

// ErrClosed is returned by operations on a closed Pty.
var ErrClosed = errors.New("pty: closed")

// SpawnError wraps a fork/exec/ioctl failure at terminal creation.
type SpawnError struct {
	Shell string
	Err   error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("pty: spawn %s: %v", e.Shell, e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}

// ExitStatus describes a reaped child.
type ExitStatus struct {
	Code int
	Err  error
}

// Pty owns the master file descriptor of a forked child process and the
// child's lifecycle. Reads block; callers run them on a dedicated
// goroutine, where the runtime poller provides epoll/kqueue readiness.
type Pty struct {
	master *os.File
	cmd    *exec.Cmd
	shell  string

	mu     sync.Mutex
	cols   int
	rows   int
	waited bool
	status ExitStatus
	closed bool
}

// Spawn forks a child running the given shell attached to a fresh
// pseudo-terminal of the given size. cwd may be empty (inherit); env
// nil inherits the parent environment.
func Spawn(cols, rows int, shell string, cwd string, env []string) (*Pty, error) {
	if cols <= 0 || rows <= 0 {
		return nil, &SpawnError{Shell: shell, Err: fmt.Errorf("invalid size %dx%d", cols, rows)}
	}

	cmd := exec.Command(shell)
	cmd.Dir = cwd
	if env != nil {
		cmd.Env = env
	}

	master, err := pty.StartWithSize(cmd, &pty.Winsize{
		Rows: uint16(rows),
		Cols: uint16(cols),
	})
	if err != nil {
		return nil, &SpawnError{Shell: shell, Err: err}
	}

	return &Pty{
		master: master,
		cmd:    cmd,
		shell:  shell,
		cols:   cols,
		rows:   rows,
	}, nil
}

// Read reads child output from the master. Blocks until data, EOF, or
// close. EIO after child exit is treated as end of stream by the
// caller's loop. EINTR and EAGAIN are absorbed inside os.File.Read and
// never reach the caller; the reader goroutine stops on any error.
func (p *Pty) Read(buf []byte) (int, error) {
	return p.master.Read(buf)
}

// Write sends input bytes to the child. Partial writes are legal; the
// caller retries the remainder.
func (p *Pty) Write(data []byte) (int, error) {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return 0, ErrClosed
	}
	return p.master.Write(data)
}

// Resize issues TIOCSWINSZ for the new size and records it.
func (p *Pty) Resize(cols, rows int) error {
	if cols <= 0 || rows <= 0 {
		return fmt.Errorf("pty: invalid size %dx%d", cols, rows)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}

	if err := pty.Setsize(p.master, &pty.Winsize{
		Rows: uint16(rows),
		Cols: uint16(cols),
	}); err != nil {
		return fmt.Errorf("pty: resize: %w", err)
	}
	p.cols = cols
	p.rows = rows
	return nil
}

// Size returns the last size set via Spawn or Resize.
func (p *Pty) Size() (cols, rows int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cols, p.rows
}

// Pid returns the child process id, or -1 if unavailable.
func (p *Pty) Pid() int {
	if p.cmd.Process == nil {
		return -1
	}
	return p.cmd.Process.Pid
}

// Shell returns the spawned shell path.
func (p *Pty) Shell() string {
	return p.shell
}

// Reap waits the child if not yet waited and returns its exit status.
// Idempotent: later calls return the recorded status.
func (p *Pty) Reap() ExitStatus {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.waited {
		return p.status
	}
	p.waited = true

	err := p.cmd.Wait()
	code := 0
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
			err = nil
		} else {
			code = -1
		}
	}
	p.status = ExitStatus{Code: code, Err: err}
	return p.status
}

// Kill terminates the child process. The reader observes EOF/EIO and
// the caller then reaps.
func (p *Pty) Kill() {
	if p.cmd.Process != nil {
		_ = p.cmd.Process.Kill()
	}
}

// Close releases the master fd. Pending reads unblock with an error.
// The child, if still running, receives SIGHUP from the kernel.
func (p *Pty) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	return p.master.Close()
}

// Master exposes the master file for platform probes (foreground
// process group queries).
func (p *Pty) Master() *os.File {
	return p.master
}

// ForegroundProcessName returns the name of the process group currently
// owning the terminal, or empty when unavailable.
func (p *Pty) ForegroundProcessName() string {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return ""
	}
	return foregroundProcessName(p.master)
}

// HasRunningChildProcess reports whether a process other than the
// spawned shell owns the terminal foreground (e.g. an editor launched
// from the prompt).
func (p *Pty) HasRunningChildProcess() bool {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed || p.cmd.Process == nil {
		return false
	}
	pgrp := foregroundProcessGroup(p.master)
	return pgrp > 0 && pgrp != p.cmd.Process.Pid
}
