//go:build darwin

package pty

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"
)

// foregroundProcessGroup returns the foreground process group of the
// terminal via TIOCGPGRP, or 0 on failure.
func foregroundProcessGroup(master *os.File) int {
	if master == nil {
		return 0
	}
	pgrp, err := unix.IoctlGetInt(int(master.Fd()), unix.TIOCGPGRP)
	if err != nil || pgrp <= 0 {
		return 0
	}
	return pgrp
}

// foregroundProcessName resolves the foreground process name via ps
// (macOS has no /proc filesystem).
func foregroundProcessName(master *os.File) string {
	pgrp := foregroundProcessGroup(master)
	if pgrp <= 0 {
		return ""
	}

	out, err := exec.Command("ps", "-p", fmt.Sprintf("%d", pgrp), "-o", "comm=").Output()
	if err != nil {
		return ""
	}
	return filepath.Base(strings.TrimSpace(string(out)))
}
