//go:build linux

package pty

import (
	"fmt"
	"os"
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

// foregroundProcessName resolves the foreground process group leader's
// name from /proc/<pid>/comm.
func foregroundProcessName(master *os.File) string {
	pgrp := foregroundProcessGroup(master)
	if pgrp <= 0 {
		return ""
	}

	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/comm", pgrp))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
